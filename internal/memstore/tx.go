package memstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/Shivanand-hulikatti/event-participation/internal/model"
	"github.com/Shivanand-hulikatti/event-participation/internal/service/ports"
)

// InTx runs fn with exclusive access to every event it locks. Writes are
// staged in the unit and applied under the store mutex only when fn returns
// nil, so readers outside the unit never see part of it. If fn fails or
// panics the staged writes are dropped.
func (s *Store) InTx(ctx context.Context, fn func(ports.Tx) error) error {
	t := &tx{
		s:        s,
		held:     make(map[string]chan struct{}),
		events:   make(map[string]model.Event),
		requests: make(map[string]model.ParticipationRequest),
	}
	defer t.release()

	if err := fn(t); err != nil {
		return err
	}
	t.commit()
	return nil
}

type tx struct {
	s    *Store
	held map[string]chan struct{}

	// staged writes, keyed by id
	events   map[string]model.Event
	requests map[string]model.ParticipationRequest
}

func (t *tx) release() {
	for id, l := range t.held {
		<-l
		delete(t.held, id)
	}
}

func (t *tx) commit() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for id, e := range t.events {
		t.s.events[id] = e
	}
	for id, pr := range t.requests {
		t.s.requests[id] = pr
	}
}

func (t *tx) mustHold(eventID string) error {
	if _, ok := t.held[eventID]; !ok {
		return fmt.Errorf("memstore: event %s written without lock", eventID)
	}
	return nil
}

// event returns the unit's view of an event: staged if written, else stored.
func (t *tx) event(id string) (model.Event, bool) {
	if e, ok := t.events[id]; ok {
		return e, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	e, ok := t.s.events[id]
	return e, ok
}

func (t *tx) request(id string) (model.ParticipationRequest, bool) {
	if pr, ok := t.requests[id]; ok {
		return pr, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	pr, ok := t.s.requests[id]
	return pr, ok
}

// activeRequest looks through stored and staged requests.
func (t *tx) activeRequest(eventID, requesterID string) (model.ParticipationRequest, bool) {
	active := func(pr model.ParticipationRequest) bool {
		return pr.EventID == eventID && pr.RequesterID == requesterID && pr.Status != model.RequestCanceled
	}
	for _, pr := range t.requests {
		if active(pr) {
			return pr, true
		}
	}

	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	for id, pr := range t.s.requests {
		if _, staged := t.requests[id]; staged {
			continue
		}
		if active(pr) {
			return pr, true
		}
	}
	return model.ParticipationRequest{}, false
}

func (t *tx) LockEvent(ctx context.Context, id string) (*model.Event, error) {
	if _, ok := t.held[id]; !ok {
		t.s.mu.RLock()
		_, exists := t.s.events[id]
		t.s.mu.RUnlock()
		if !exists {
			return nil, model.ErrEventNotFound
		}

		l := t.s.eventLock(id)
		select {
		case l <- struct{}{}:
			t.held[id] = l
		case <-ctx.Done():
			return nil, fmt.Errorf("lock event %s: %w", id, ctx.Err())
		}
	}

	e, _ := t.event(id)
	return &e, nil
}

func (t *tx) UpdateEvent(_ context.Context, e *model.Event) error {
	if err := t.mustHold(e.ID); err != nil {
		return err
	}
	cur, ok := t.event(e.ID)
	if !ok {
		return model.ErrEventNotFound
	}
	next := *e
	next.ConfirmedCount = cur.ConfirmedCount
	t.events[next.ID] = next
	return nil
}

func (t *tx) SetConfirmedCount(_ context.Context, eventID string, count int) error {
	if err := t.mustHold(eventID); err != nil {
		return err
	}
	e, ok := t.event(eventID)
	if !ok {
		return model.ErrEventNotFound
	}
	e.ConfirmedCount = count
	t.events[eventID] = e
	return nil
}

func (t *tx) GetRequest(_ context.Context, id string) (*model.ParticipationRequest, error) {
	pr, ok := t.request(id)
	if !ok {
		return nil, model.ErrRequestNotFound
	}
	return &pr, nil
}

func (t *tx) FindActiveRequest(_ context.Context, eventID, requesterID string) (*model.ParticipationRequest, error) {
	if pr, ok := t.activeRequest(eventID, requesterID); ok {
		return &pr, nil
	}
	return nil, model.ErrRequestNotFound
}

func (t *tx) RequestsByIDs(_ context.Context, eventID string, ids []string) ([]model.ParticipationRequest, error) {
	var out []model.ParticipationRequest
	for _, id := range ids {
		if pr, ok := t.request(id); ok && pr.EventID == eventID {
			out = append(out, pr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) InsertRequest(_ context.Context, r *model.ParticipationRequest) error {
	if err := t.mustHold(r.EventID); err != nil {
		return err
	}
	if _, ok := t.activeRequest(r.EventID, r.RequesterID); ok {
		return model.ErrDuplicateRequest
	}
	t.requests[r.ID] = *r
	return nil
}

func (t *tx) SetRequestStatus(_ context.Context, id string, status model.RequestStatus) error {
	pr, ok := t.request(id)
	if !ok {
		return model.ErrRequestNotFound
	}
	if err := t.mustHold(pr.EventID); err != nil {
		return err
	}
	pr.Status = status
	t.requests[id] = pr
	return nil
}

var _ ports.Transactor = (*Store)(nil)
