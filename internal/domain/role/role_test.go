package role_test

import (
	"errors"
	"testing"

	"github.com/geocoder89/inventoryhub/internal/domain/role"
)

func TestCompare_AllPairs(t *testing.T) {
	want := map[role.Role]map[role.Role]role.Comparison{
		role.Owner: {role.Owner: role.Equal, role.Admin: role.Higher, role.Write: role.Higher, role.Read: role.Higher},
		role.Admin: {role.Owner: role.Lower, role.Admin: role.Equal, role.Write: role.Higher, role.Read: role.Higher},
		role.Write: {role.Owner: role.Lower, role.Admin: role.Lower, role.Write: role.Equal, role.Read: role.Higher},
		role.Read:  {role.Owner: role.Lower, role.Admin: role.Lower, role.Write: role.Lower, role.Read: role.Equal},
	}

	seen := 0
	for _, a := range role.All() {
		for _, b := range role.All() {
			got, err := role.Compare(a, b)
			if err != nil {
				t.Fatalf("Compare(%s, %s) returned error: %v", a, b, err)
			}
			if got != want[a][b] {
				t.Fatalf("Compare(%s, %s) = %s, want %s", a, b, got, want[a][b])
			}
			seen++
		}
	}

	if seen != 16 {
		t.Fatalf("expected 16 ordered pairs, got %d", seen)
	}
}

func TestCompare_InverseAndReflexive(t *testing.T) {
	for _, a := range role.All() {
		self, err := role.Compare(a, a)
		if err != nil || self != role.Equal {
			t.Fatalf("Compare(%s, %s) = %v, %v; want equal", a, a, self, err)
		}

		for _, b := range role.All() {
			ab, _ := role.Compare(a, b)
			ba, _ := role.Compare(b, a)
			if ab != -ba {
				t.Fatalf("Compare(%s,%s)=%d but Compare(%s,%s)=%d", a, b, ab, b, a, ba)
			}
		}
	}
}

func TestCompare_UnknownRole(t *testing.T) {
	tests := []struct {
		name      string
		candidate role.Role
		required  role.Role
	}{
		{name: "unknown candidate", candidate: "superuser", required: role.Read},
		{name: "unknown required", candidate: role.Owner, required: ""},
		{name: "both unknown", candidate: "x", required: "y"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := role.Compare(tc.candidate, tc.required)
			if !errors.Is(err, role.ErrUnknownRole) {
				t.Fatalf("got err %v, want ErrUnknownRole", err)
			}
			if tc.candidate.AtLeast(tc.required) {
				t.Fatalf("AtLeast must be false for unknown roles")
			}
		})
	}
}

func TestAtLeast(t *testing.T) {
	tests := []struct {
		held     role.Role
		required role.Role
		want     bool
	}{
		{role.Admin, role.Write, true},
		{role.Read, role.Write, false},
		{role.Owner, role.Owner, true},
		{role.Admin, role.Owner, false},
		{role.Write, role.Read, true},
		{role.Read, role.Read, true},
	}

	for _, tc := range tests {
		if got := tc.held.AtLeast(tc.required); got != tc.want {
			t.Fatalf("%s.AtLeast(%s) = %v, want %v", tc.held, tc.required, got, tc.want)
		}
	}
}

func TestParse(t *testing.T) {
	r, err := role.Parse(" ADMIN ")
	if err != nil || r != role.Admin {
		t.Fatalf("Parse returned %q, %v", r, err)
	}

	if _, err := role.Parse("root"); !errors.Is(err, role.ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}
