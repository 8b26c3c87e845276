package category

import (
	"errors"
	"slices"
)

var (
	ErrNotFound = errors.New("category not found")
	ErrExists   = errors.New("category with this number already exists")
	// ErrCycle is returned when a parent/children change would make a category its own ancestor.
	ErrCycle = errors.New("category hierarchy would contain a cycle")
)

// Category is numbered per inventory; the number is chosen by the client.
type Category struct {
	InventoryID int64   `json:"-"`
	Number      int64   `json:"number"`
	Name        string  `json:"name"`
	Parent      *int64  `json:"parent"`
	Children    []int64 `json:"children"`
}

type UpsertCategoryRequest struct {
	Name     string  `json:"name" binding:"required,min=1,max=200"`
	Parent   *int64  `json:"parent"`
	Children []int64 `json:"children"`
}

// ValidateHierarchy checks that giving category number exactly the parent and
// children requested keeps the inventory's category tree acyclic. all is the current
// set of categories in the inventory; number may be absent from it (create).
func ValidateHierarchy(all []Category, number int64, parent *int64, children []int64) error {
	parents := make(map[int64]*int64, len(all)+1)
	for _, c := range all {
		parents[c.Number] = c.Parent
	}

	for _, child := range children {
		if child == number {
			return ErrCycle
		}
		if parent != nil && *parent == child {
			return ErrCycle
		}
	}

	// Apply the requested edges; former children not listed again are detached.
	for n, p := range parents {
		if p != nil && *p == number && !slices.Contains(children, n) {
			parents[n] = nil
		}
	}
	parents[number] = parent
	for _, child := range children {
		p := number
		parents[child] = &p
	}

	// Walk up from every node affected; a path longer than the node count loops.
	starts := append([]int64{number}, children...)
	for _, start := range starts {
		cur := start
		for steps := 0; ; steps++ {
			if steps > len(parents) {
				return ErrCycle
			}
			p := parents[cur]
			if p == nil {
				break
			}
			if *p == start {
				return ErrCycle
			}
			cur = *p
		}
	}

	return nil
}
