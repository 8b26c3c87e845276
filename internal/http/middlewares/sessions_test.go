package middlewares

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/inventoryhub/internal/accounts"
	"github.com/geocoder89/inventoryhub/internal/auth"
	"github.com/geocoder89/inventoryhub/internal/authz"
	"github.com/geocoder89/inventoryhub/internal/cache"
	"github.com/geocoder89/inventoryhub/internal/domain/inventory"
	"github.com/geocoder89/inventoryhub/internal/domain/role"
	"github.com/geocoder89/inventoryhub/internal/domain/user"
	"github.com/geocoder89/inventoryhub/internal/http/handlers"
)

type fakeAuth map[string]user.User

func (f fakeAuth) Authenticate(_ context.Context, token string) (user.User, error) {
	switch token {
	case "gone":
		return user.User{}, accounts.ErrAccountGone
	case "boom":
		return user.User{}, errors.New("db down")
	}
	u, ok := f[token]
	if !ok {
		return user.User{}, fmt.Errorf("%w: %w", accounts.ErrInvalidSession, auth.ErrTokenInvalid)
	}
	return u, nil
}

type fakeInventories map[int64]inventory.Inventory

func (f fakeInventories) GetInventory(_ context.Context, id int64) (inventory.Inventory, error) {
	inv, ok := f[id]
	if !ok {
		return inventory.Inventory{}, inventory.ErrNotFound
	}
	return inv, nil
}

func (f fakeInventories) LoadInventory(ctx context.Context, id int64) (inventory.Inventory, error) {
	return f.GetInventory(ctx, id)
}

type fakeMemberships map[[2]int64]role.Role

func (f fakeMemberships) GetMembership(_ context.Context, userID, inventoryID int64) (inventory.Membership, error) {
	r, ok := f[[2]int64{userID, inventoryID}]
	if !ok {
		return inventory.Membership{}, inventory.ErrMembershipNotFound
	}
	return inventory.Membership{UserID: userID, InventoryID: inventoryID, Role: r}, nil
}

func newSessions() *Sessions {
	users := fakeAuth{
		"alice": {ID: 1, Email: "alice@example.com"},
		"bob":   {ID: 2, Email: "bob@example.com"},
	}
	invs := fakeInventories{7: {ID: 7, Name: "Pantry"}}
	gate := authz.NewGate(fakeMemberships{{1, 7}: role.Owner, {2, 7}: role.Read}, nil)

	return NewSessions(users, invs, gate, handlers.CookiePolicy{}, nil)
}

func serve(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: handlers.SessionCookieName, Value: token})
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestScoped_DeniedRequestNeverReachesHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := newSessions()

	var calls []authz.Scope
	r := gin.New()
	r.GET("/inv/:inventoryId", s.Scoped(role.Write, func(c *gin.Context, scope authz.Scope) {
		calls = append(calls, scope)
		c.Status(http.StatusOK)
	}))

	cases := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{"no cookie", "/inv/7", "", http.StatusUnauthorized},
		{"bad token", "/inv/7", "forged", http.StatusUnauthorized},
		{"account gone", "/inv/7", "gone", http.StatusUnauthorized},
		{"store failure", "/inv/7", "boom", http.StatusInternalServerError},
		{"reader below write", "/inv/7", "bob", http.StatusForbidden},
		{"unknown inventory", "/inv/8", "alice", http.StatusNotFound},
		{"bad id", "/inv/abc", "alice", http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(r, tc.path, tc.token)
			if w.Code != tc.status {
				t.Fatalf("got %d want %d body=%s", w.Code, tc.status, w.Body.String())
			}
		})
	}

	if len(calls) != 0 {
		t.Fatalf("handler ran for rejected requests: %+v", calls)
	}

	w := serve(r, "/inv/7", "alice")
	if w.Code != http.StatusOK || len(calls) != 1 {
		t.Fatalf("owner should pass, got %d calls=%d", w.Code, len(calls))
	}
	if calls[0].Actor.ID != 1 || calls[0].Inventory.ID != 7 || calls[0].Role != role.Owner {
		t.Fatalf("unexpected scope %+v", calls[0])
	}
}

func TestAuthed_RejectedSessionClearsCookie(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := newSessions()

	r := gin.New()
	r.GET("/me", s.Authed(func(c *gin.Context, u user.User) {
		c.JSON(http.StatusOK, gin.H{"id": u.ID})
	}))

	w := serve(r, "/me", "gone")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	var cleared bool
	for _, c := range w.Result().Cookies() {
		if c.Name == handlers.SessionCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatalf("expected cookie to be cleared")
	}

	w = serve(r, "/me", "forged")
	cleared = false
	for _, c := range w.Result().Cookies() {
		if c.Name == handlers.SessionCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if w.Code != http.StatusUnauthorized || !cleared {
		t.Fatalf("invalid token should be rejected and cleared, got %d cleared=%v", w.Code, cleared)
	}

	w = serve(r, "/me", "")
	if len(w.Result().Cookies()) != 0 {
		t.Fatalf("nothing to clear without a cookie")
	}
}

// replicaStore is an inventory store another process can change behind
// this process's cache.
type replicaStore struct {
	invs fakeInventories
}

func (s *replicaStore) GetInventory(ctx context.Context, id int64) (inventory.Inventory, error) {
	return s.invs.GetInventory(ctx, id)
}

func (s *replicaStore) ListForUser(context.Context, int64) ([]inventory.Summary, error) {
	return nil, nil
}

func (s *replicaStore) DeleteInventory(_ context.Context, id int64) error {
	delete(s.invs, id)
	return nil
}

func TestScoped_CachedInventoryNeverDecidesAccess(t *testing.T) {
	gin.SetMode(gin.TestMode)

	users := fakeAuth{
		"alice": {ID: 1, Email: "alice@example.com"},
		"bob":   {ID: 2, Email: "bob@example.com"},
	}
	store := &replicaStore{invs: fakeInventories{7: {ID: 7, Name: "Pantry"}}}
	members := fakeMemberships{{1, 7}: role.Owner, {2, 7}: role.Read}
	cached := handlers.NewCachedInventories(store, cache.New[inventory.Inventory](16, time.Hour))
	s := NewSessions(users, cached, authz.NewGate(members, nil), handlers.CookiePolicy{}, nil)

	r := gin.New()
	r.GET("/inv/:inventoryId", s.Scoped(role.Read, func(c *gin.Context, scope authz.Scope) {
		c.JSON(http.StatusOK, scope.Inventory)
	}))

	if w := serve(r, "/inv/7", "bob"); w.Code != http.StatusOK {
		t.Fatalf("reader should pass, got %d", w.Code)
	}

	// bob is dropped from the set elsewhere; the cache still holds inventory 7
	delete(members, [2]int64{2, 7})
	if w := serve(r, "/inv/7", "bob"); w.Code != http.StatusForbidden {
		t.Fatalf("removed member should get 403, got %d", w.Code)
	}

	// the inventory is deleted elsewhere; its memberships go with it
	_ = store.DeleteInventory(context.Background(), 7)
	delete(members, [2]int64{1, 7})
	if w := serve(r, "/inv/7", "alice"); w.Code != http.StatusNotFound {
		t.Fatalf("deleted inventory should be 404 despite the cache, got %d", w.Code)
	}
}
