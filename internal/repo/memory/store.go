package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/geocoder89/inventoryhub/internal/domain/category"
	"github.com/geocoder89/inventoryhub/internal/domain/inventory"
	"github.com/geocoder89/inventoryhub/internal/domain/role"
	"github.com/geocoder89/inventoryhub/internal/domain/thing"
	"github.com/geocoder89/inventoryhub/internal/domain/user"
	"github.com/geocoder89/inventoryhub/internal/jobs"
	"github.com/geocoder89/inventoryhub/internal/membership"
)

type stockKey struct {
	inventoryID int64
	thingNumber int64
}

type delivery struct {
	jobID     string
	recipient string
	status    string
	lastError string
}

type state struct {
	users      map[int64]user.User
	nextUserID int64

	inventories map[int64]inventory.Inventory
	nextInvID   int64
	members     map[int64]map[int64]role.Role

	categories map[int64]map[int64]category.Category
	things     map[int64]map[int64]thing.Thing
	stocks     map[stockKey]map[int64]thing.Stock

	jobs       map[string]jobs.Job
	jobOrder   []string
	deliveries map[string]delivery
}

func newState() *state {
	return &state{
		users:       make(map[int64]user.User),
		inventories: make(map[int64]inventory.Inventory),
		members:     make(map[int64]map[int64]role.Role),
		categories:  make(map[int64]map[int64]category.Category),
		things:      make(map[int64]map[int64]thing.Thing),
		stocks:      make(map[stockKey]map[int64]thing.Stock),
		jobs:        make(map[string]jobs.Job),
		deliveries:  make(map[string]delivery),
	}
}

// clone copies every table; stored slices are never mutated in place.
func (s *state) clone() *state {
	out := &state{
		users:       maps.Clone(s.users),
		nextUserID:  s.nextUserID,
		inventories: maps.Clone(s.inventories),
		nextInvID:   s.nextInvID,
		members:     make(map[int64]map[int64]role.Role, len(s.members)),
		categories:  make(map[int64]map[int64]category.Category, len(s.categories)),
		things:      make(map[int64]map[int64]thing.Thing, len(s.things)),
		stocks:      make(map[stockKey]map[int64]thing.Stock, len(s.stocks)),
		jobs:        maps.Clone(s.jobs),
		jobOrder:    append([]string(nil), s.jobOrder...),
		deliveries:  maps.Clone(s.deliveries),
	}
	for k, v := range s.members {
		out.members[k] = maps.Clone(v)
	}
	for k, v := range s.categories {
		out.categories[k] = maps.Clone(v)
	}
	for k, v := range s.things {
		out.things[k] = maps.Clone(v)
	}
	for k, v := range s.stocks {
		out.stocks[k] = maps.Clone(v)
	}
	return out
}

// Store keeps every table in process. Transactions work on a private copy
// that replaces the shared state only on success, and run one at a time.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time

	failMu sync.Mutex
	fail   map[string]error
}

func NewStore() *Store {
	return &Store{
		st:   newState(),
		now:  time.Now,
		fail: make(map[string]error),
	}
}

// FailOn makes the next call of op return err. Used to simulate store failures.
func (s *Store) FailOn(op string, err error) {
	s.failMu.Lock()
	s.fail[op] = err
	s.failMu.Unlock()
}

func (s *Store) injected(op string) error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	err, ok := s.fail[op]
	if ok {
		delete(s.fail, op)
	}
	return err
}

// read runs fn against the committed state.
func (s *Store) read(op string, fn func(st *state) error) error {
	if err := s.injected(op); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

// write runs fn against a copy and commits it when fn succeeds.
func (s *Store) write(op string, fn func(st *state) error) error {
	if err := s.injected(op); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.st.clone()
	if err := fn(next); err != nil {
		return err
	}
	s.st = next
	return nil
}

func (s *Store) InTx(ctx context.Context, fn func(tx membership.Tx) error) error {
	if err := s.injected("tx.begin"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s, st: s.st.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.injected("tx.commit"); err != nil {
		return err
	}

	s.st = tx.st
	return nil
}

func (s *Store) Ping(context.Context) error {
	return nil
}
