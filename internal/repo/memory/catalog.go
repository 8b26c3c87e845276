package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/geocoder89/inventoryhub/internal/domain/category"
	"github.com/geocoder89/inventoryhub/internal/domain/thing"
)

func categoryList(st *state, inventoryID int64) []category.Category {
	out := make([]category.Category, 0, len(st.categories[inventoryID]))
	for _, c := range st.categories[inventoryID] {
		out = append(out, withChildren(st, c))
	}
	slices.SortFunc(out, func(a, b category.Category) int { return cmp.Compare(a.Number, b.Number) })
	return out
}

func withChildren(st *state, c category.Category) category.Category {
	children := make([]int64, 0)
	for _, other := range st.categories[c.InventoryID] {
		if other.Parent != nil && *other.Parent == c.Number {
			children = append(children, other.Number)
		}
	}
	slices.Sort(children)
	c.Children = children
	return c
}

func (s *Store) ListCategories(_ context.Context, inventoryID int64) ([]category.Category, error) {
	var out []category.Category
	err := s.read("categories.list", func(st *state) error {
		out = categoryList(st, inventoryID)
		return nil
	})
	return out, err
}

func (s *Store) GetCategory(_ context.Context, inventoryID, number int64) (category.Category, error) {
	var out category.Category
	err := s.read("categories.get", func(st *state) error {
		c, ok := st.categories[inventoryID][number]
		if !ok {
			return category.ErrNotFound
		}
		out = withChildren(st, c)
		return nil
	})
	return out, err
}

func (s *Store) CreateCategory(_ context.Context, c category.Category) (category.Category, error) {
	var out category.Category
	err := s.write("categories.create", func(st *state) error {
		if _, ok := st.categories[c.InventoryID][c.Number]; ok {
			return category.ErrExists
		}
		if err := applyCategory(st, c); err != nil {
			return err
		}
		out = withChildren(st, st.categories[c.InventoryID][c.Number])
		return nil
	})
	return out, err
}

func (s *Store) UpdateCategory(_ context.Context, c category.Category) (category.Category, error) {
	var out category.Category
	err := s.write("categories.update", func(st *state) error {
		if _, ok := st.categories[c.InventoryID][c.Number]; !ok {
			return category.ErrNotFound
		}
		if err := applyCategory(st, c); err != nil {
			return err
		}
		out = withChildren(st, st.categories[c.InventoryID][c.Number])
		return nil
	})
	return out, err
}

// applyCategory writes c with exactly the given parent and children.
func applyCategory(st *state, c category.Category) error {
	cats := st.categories[c.InventoryID]
	if cats == nil {
		cats = make(map[int64]category.Category)
		st.categories[c.InventoryID] = cats
	}

	if c.Parent != nil {
		if _, ok := cats[*c.Parent]; !ok {
			return category.ErrNotFound
		}
	}
	for _, child := range c.Children {
		if _, ok := cats[child]; !ok {
			return category.ErrNotFound
		}
	}

	if err := category.ValidateHierarchy(categoryList(st, c.InventoryID), c.Number, c.Parent, c.Children); err != nil {
		return err
	}

	for n, other := range cats {
		if other.Parent != nil && *other.Parent == c.Number && !slices.Contains(c.Children, n) {
			other.Parent = nil
			cats[n] = other
		}
	}
	for _, child := range c.Children {
		other := cats[child]
		p := c.Number
		other.Parent = &p
		cats[child] = other
	}

	c.Children = nil
	cats[c.Number] = c
	return nil
}

func (s *Store) DeleteCategory(_ context.Context, inventoryID, number int64) error {
	return s.write("categories.delete", func(st *state) error {
		cats := st.categories[inventoryID]
		if _, ok := cats[number]; !ok {
			return category.ErrNotFound
		}
		delete(cats, number)
		for n, other := range cats {
			if other.Parent != nil && *other.Parent == number {
				other.Parent = nil
				cats[n] = other
			}
		}
		for n, t := range st.things[inventoryID] {
			if slices.Contains(t.Categories, number) {
				t.Categories = slices.DeleteFunc(slices.Clone(t.Categories), func(v int64) bool { return v == number })
				st.things[inventoryID][n] = t
			}
		}
		return nil
	})
}

func totalQuantity(st *state, inventoryID, number int64) int64 {
	var total int64
	for _, stk := range st.stocks[stockKey{inventoryID, number}] {
		total += stk.Quantity
	}
	return total
}

func (s *Store) ListThings(_ context.Context, inventoryID int64) ([]thing.Thing, error) {
	out := make([]thing.Thing, 0)
	err := s.read("things.list", func(st *state) error {
		for _, t := range st.things[inventoryID] {
			t.TotalQuantity = totalQuantity(st, inventoryID, t.Number)
			out = append(out, t)
		}
		return nil
	})
	slices.SortFunc(out, func(a, b thing.Thing) int { return cmp.Compare(a.Number, b.Number) })
	return out, err
}

func (s *Store) GetThing(_ context.Context, inventoryID, number int64) (thing.Thing, error) {
	var out thing.Thing
	err := s.read("things.get", func(st *state) error {
		t, ok := st.things[inventoryID][number]
		if !ok {
			return thing.ErrNotFound
		}
		t.TotalQuantity = totalQuantity(st, inventoryID, number)
		out = t
		return nil
	})
	return out, err
}

func checkCategories(st *state, inventoryID int64, numbers []int64) error {
	for _, n := range numbers {
		if _, ok := st.categories[inventoryID][n]; !ok {
			return thing.ErrUnknownCategory
		}
	}
	return nil
}

func dedupSorted(in []int64) []int64 {
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}

func (s *Store) CreateThing(_ context.Context, t thing.Thing) (thing.Thing, error) {
	err := s.write("things.create", func(st *state) error {
		if err := checkCategories(st, t.InventoryID, t.Categories); err != nil {
			return err
		}
		things := st.things[t.InventoryID]
		if things == nil {
			things = make(map[int64]thing.Thing)
			st.things[t.InventoryID] = things
		}
		var max int64
		for n := range things {
			max = maxInt(max, n)
		}
		t.Number = max + 1
		t.Categories = dedupSorted(t.Categories)
		t.TotalQuantity = 0
		things[t.Number] = t
		return nil
	})
	if err != nil {
		return thing.Thing{}, err
	}
	return t, nil
}

func (s *Store) UpdateThing(_ context.Context, t thing.Thing) (thing.Thing, error) {
	err := s.write("things.update", func(st *state) error {
		if _, ok := st.things[t.InventoryID][t.Number]; !ok {
			return thing.ErrNotFound
		}
		if err := checkCategories(st, t.InventoryID, t.Categories); err != nil {
			return err
		}
		t.Categories = dedupSorted(t.Categories)
		t.TotalQuantity = 0
		st.things[t.InventoryID][t.Number] = t
		t.TotalQuantity = totalQuantity(st, t.InventoryID, t.Number)
		return nil
	})
	if err != nil {
		return thing.Thing{}, err
	}
	return t, nil
}

func (s *Store) DeleteThing(_ context.Context, inventoryID, number int64) error {
	return s.write("things.delete", func(st *state) error {
		if _, ok := st.things[inventoryID][number]; !ok {
			return thing.ErrNotFound
		}
		delete(st.things[inventoryID], number)
		delete(st.stocks, stockKey{inventoryID, number})
		return nil
	})
}

func (s *Store) ListStocks(_ context.Context, inventoryID, thingNumber int64) ([]thing.Stock, error) {
	out := make([]thing.Stock, 0)
	err := s.read("stocks.list", func(st *state) error {
		if _, ok := st.things[inventoryID][thingNumber]; !ok {
			return thing.ErrNotFound
		}
		for _, stk := range st.stocks[stockKey{inventoryID, thingNumber}] {
			out = append(out, stk)
		}
		return nil
	})
	slices.SortFunc(out, func(a, b thing.Stock) int { return cmp.Compare(a.Number, b.Number) })
	return out, err
}

func (s *Store) GetStock(_ context.Context, inventoryID, thingNumber, number int64) (thing.Stock, error) {
	var out thing.Stock
	err := s.read("stocks.get", func(st *state) error {
		if _, ok := st.things[inventoryID][thingNumber]; !ok {
			return thing.ErrNotFound
		}
		stk, ok := st.stocks[stockKey{inventoryID, thingNumber}][number]
		if !ok {
			return thing.ErrStockNotFound
		}
		out = stk
		return nil
	})
	return out, err
}

func (s *Store) CreateStock(_ context.Context, stk thing.Stock) (thing.Stock, error) {
	err := s.write("stocks.create", func(st *state) error {
		if _, ok := st.things[stk.InventoryID][stk.ThingNumber]; !ok {
			return thing.ErrNotFound
		}
		key := stockKey{stk.InventoryID, stk.ThingNumber}
		batch := st.stocks[key]
		if batch == nil {
			batch = make(map[int64]thing.Stock)
			st.stocks[key] = batch
		}
		var max int64
		for n := range batch {
			max = maxInt(max, n)
		}
		stk.Number = max + 1
		stk.AddedOn = s.now().UTC()
		batch[stk.Number] = stk
		return nil
	})
	if err != nil {
		return thing.Stock{}, err
	}
	return stk, nil
}

func (s *Store) UpdateStock(_ context.Context, stk thing.Stock) (thing.Stock, error) {
	err := s.write("stocks.update", func(st *state) error {
		if _, ok := st.things[stk.InventoryID][stk.ThingNumber]; !ok {
			return thing.ErrNotFound
		}
		batch := st.stocks[stockKey{stk.InventoryID, stk.ThingNumber}]
		prev, ok := batch[stk.Number]
		if !ok {
			return thing.ErrStockNotFound
		}
		stk.AddedOn = prev.AddedOn
		batch[stk.Number] = stk
		return nil
	})
	if err != nil {
		return thing.Stock{}, err
	}
	return stk, nil
}

func (s *Store) DeleteStock(_ context.Context, inventoryID, thingNumber, number int64) error {
	return s.write("stocks.delete", func(st *state) error {
		if _, ok := st.things[inventoryID][thingNumber]; !ok {
			return thing.ErrNotFound
		}
		batch := st.stocks[stockKey{inventoryID, thingNumber}]
		if _, ok := batch[number]; !ok {
			return thing.ErrStockNotFound
		}
		delete(batch, number)
		return nil
	})
}

func maxInt(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
