// Package memstore is an in-process implementation of the storage ports.
//
// Admission state is serialized per event: a unit of work that locks an
// event holds that event's lock until it commits or rolls back, so units
// working on different events never block each other. A unit's writes are
// staged and applied in one step under the store-wide RWMutex when it
// commits, so plain reads always see whole units.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/Shivanand-hulikatti/event-participation/internal/model"
	"github.com/Shivanand-hulikatti/event-participation/internal/service/ports"
)

// Store holds every table in memory.
type Store struct {
	mu         sync.RWMutex
	users      map[string]model.User
	categories map[string]model.Category
	events     map[string]model.Event
	requests   map[string]model.ParticipationRequest

	lockMu     sync.Mutex
	eventLocks map[string]chan struct{}
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:      make(map[string]model.User),
		categories: make(map[string]model.Category),
		events:     make(map[string]model.Event),
		requests:   make(map[string]model.ParticipationRequest),
		eventLocks: make(map[string]chan struct{}),
	}
}

// eventLock returns the single-slot semaphore guarding one event. A channel
// is used instead of a sync.Mutex so acquisition can honor ctx.
func (s *Store) eventLock(id string) chan struct{} {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	l, ok := s.eventLocks[id]
	if !ok {
		l = make(chan struct{}, 1)
		s.eventLocks[id] = l
	}
	return l
}

// Users returns the user repository view of the store.
func (s *Store) Users() ports.UserRepo { return userRepo{s} }

// Categories returns the category repository view of the store.
func (s *Store) Categories() ports.CategoryRepo { return categoryRepo{s} }

// Events returns the event repository view of the store.
func (s *Store) Events() ports.EventRepo { return eventRepo{s} }

// Requests returns the request repository view of the store.
func (s *Store) Requests() ports.RequestRepo { return requestRepo{s} }

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return model.ErrDuplicateEmail
		}
	}
	r.s.users[u.ID] = *u
	return nil
}

func (r userRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return &u, nil
}

type categoryRepo struct{ s *Store }

func (r categoryRepo) Create(_ context.Context, c *model.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.categories {
		if existing.Name == c.Name {
			return model.ErrDuplicateCategory
		}
	}
	r.s.categories[c.ID] = *c
	return nil
}

func (r categoryRepo) GetByID(_ context.Context, id string) (*model.Category, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.categories[id]
	if !ok {
		return nil, model.ErrCategoryNotFound
	}
	return &c, nil
}

type eventRepo struct{ s *Store }

func (r eventRepo) Create(_ context.Context, e *model.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.events[e.ID] = *e
	return nil
}

func (r eventRepo) GetByID(_ context.Context, id string) (*model.Event, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	e, ok := r.s.events[id]
	if !ok {
		return nil, model.ErrEventNotFound
	}
	return &e, nil
}

func (r eventRepo) ListByInitiator(_ context.Context, initiatorID string) ([]model.Event, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var events []model.Event
	for _, e := range r.s.events {
		if e.InitiatorID == initiatorID {
			events = append(events, e)
		}
	}
	// Newest first, matching the Postgres ordering on created_on.
	sort.Slice(events, func(i, j int) bool { return events[i].ID > events[j].ID })
	return events, nil
}

type requestRepo struct{ s *Store }

func (r requestRepo) ListByRequester(_ context.Context, requesterID string) ([]model.ParticipationRequest, error) {
	return r.s.filterRequests(func(pr model.ParticipationRequest) bool {
		return pr.RequesterID == requesterID
	}), nil
}

func (r requestRepo) ListByEvent(_ context.Context, eventID string) ([]model.ParticipationRequest, error) {
	return r.s.filterRequests(func(pr model.ParticipationRequest) bool {
		return pr.EventID == eventID
	}), nil
}

func (r requestRepo) CountMismatches(_ context.Context) ([]model.CountMismatch, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	ledger := make(map[string]int, len(r.s.events))
	for _, pr := range r.s.requests {
		if pr.Status == model.RequestConfirmed {
			ledger[pr.EventID]++
		}
	}

	var out []model.CountMismatch
	for id, e := range r.s.events {
		if e.ConfirmedCount != ledger[id] {
			out = append(out, model.CountMismatch{EventID: id, Stored: e.ConfirmedCount, LedgerCount: ledger[id]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventID < out[j].EventID })
	return out, nil
}

// filterRequests returns matching requests ordered by id.
func (s *Store) filterRequests(keep func(model.ParticipationRequest) bool) []model.ParticipationRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.ParticipationRequest
	for _, pr := range s.requests {
		if keep(pr) {
			out = append(out, pr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
