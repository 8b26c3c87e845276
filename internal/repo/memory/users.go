package memory

import (
	"context"

	"github.com/geocoder89/inventoryhub/internal/domain/user"
)

func (s *Store) Create(_ context.Context, u user.User) (user.User, error) {
	err := s.write("users.create", func(st *state) error {
		for _, existing := range st.users {
			if existing.Email == u.Email {
				return user.ErrEmailTaken
			}
		}
		st.nextUserID++
		u.ID = st.nextUserID
		if u.CreatedAt.IsZero() {
			u.CreatedAt = s.now().UTC()
		}
		st.users[u.ID] = u
		return nil
	})
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) GetByEmail(_ context.Context, email string) (user.User, error) {
	var out user.User
	err := s.read("users.get_by_email", func(st *state) error {
		for _, u := range st.users {
			if u.Email == email {
				out = u
				return nil
			}
		}
		return user.ErrNotFound
	})
	return out, err
}

func (s *Store) GetByID(_ context.Context, id int64) (user.User, error) {
	var out user.User
	err := s.read("users.get_by_id", func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return user.ErrNotFound
		}
		out = u
		return nil
	})
	return out, err
}

func (s *Store) SetTwoFactor(_ context.Context, id int64, secret, url *string, enabled bool) error {
	return s.write("users.set_two_factor", func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return user.ErrNotFound
		}
		u.TFASecret = secret
		u.TFAURL = url
		u.TFAEnabled = enabled
		st.users[id] = u
		return nil
	})
}

// EnrollTwoFactor stores a provisioning secret unless one is already set,
// and returns the user as stored.
func (s *Store) EnrollTwoFactor(_ context.Context, id int64, secret, url string) (user.User, error) {
	var out user.User
	err := s.write("users.enroll_two_factor", func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return user.ErrNotFound
		}
		if u.TFASecret == nil {
			u.TFASecret = &secret
			u.TFAURL = &url
			st.users[id] = u
		}
		out = u
		return nil
	})
	return out, err
}

// DeleteUser removes an account and every membership it held.
func (s *Store) DeleteUser(_ context.Context, id int64) error {
	return s.write("users.delete", func(st *state) error {
		if _, ok := st.users[id]; !ok {
			return user.ErrNotFound
		}
		delete(st.users, id)
		for _, m := range st.members {
			delete(m, id)
		}
		return nil
	})
}

func (s *Store) MissingUsers(_ context.Context, ids []int64) ([]int64, error) {
	var missing []int64
	err := s.read("users.missing", func(st *state) error {
		seen := make(map[int64]struct{}, len(ids))
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if _, ok := st.users[id]; !ok {
				missing = append(missing, id)
			}
		}
		return nil
	})
	return missing, err
}
