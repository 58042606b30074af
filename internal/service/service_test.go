package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/event-participation/internal/memstore"
	"github.com/Shivanand-hulikatti/event-participation/internal/model"
	"github.com/Shivanand-hulikatti/event-participation/internal/service/ports"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// clock is a settable time source shared by the services under test.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store     *memstore.Store
	admission *AdmissionService
	events    *EventService
	directory *DirectoryService
	clock     *clock
	hook      *test.Hook
}

func newFixture(t *testing.T, stats ports.StatsClient) *fixture {
	t.Helper()
	log, hook := test.NewNullLogger()
	store := memstore.New()
	clk := &clock{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}

	admission := NewAdmissionService(store, store.Users(), store.Events(), store.Requests(), log)
	admission.now = clk.Now
	events := NewEventService(store, store.Users(), store.Categories(), store.Events(), stats, "ewm-main-service", log)
	events.now = clk.Now

	return &fixture{
		store:     store,
		admission: admission,
		events:    events,
		directory: NewDirectoryService(store.Users(), store.Categories(), log),
		clock:     clk,
		hook:      hook,
	}
}

func (f *fixture) user(t *testing.T, name string) string {
	t.Helper()
	u, err := f.directory.CreateUser(context.Background(), model.NewUserRequest{Name: name, Email: name + "@example.com"})
	require.NoError(t, err)
	return u.ID
}

func (f *fixture) category(t *testing.T) string {
	t.Helper()
	c, err := f.directory.CreateCategory(context.Background(), model.NewCategoryRequest{Name: "concerts-" + newID()})
	require.NoError(t, err)
	return c.ID
}

func (f *fixture) pendingEvent(t *testing.T, initiatorID string, limit int, moderated bool) string {
	t.Helper()
	e, err := f.events.Create(context.Background(), initiatorID, model.NewEventRequest{
		Category:          f.category(t),
		Title:             "Open air",
		Annotation:        "An evening of music in the park",
		Description:       "Bring a blanket and enjoy an evening of music in the park.",
		EventDate:         f.clock.Now().Add(48 * time.Hour),
		RequestModeration: &moderated,
		ParticipantLimit:  limit,
	})
	require.NoError(t, err)
	return e.ID
}

func (f *fixture) publishedEvent(t *testing.T, initiatorID string, limit int, moderated bool) string {
	t.Helper()
	id := f.pendingEvent(t, initiatorID, limit, moderated)
	_, err := f.events.Publish(context.Background(), id)
	require.NoError(t, err)
	return id
}

func (f *fixture) event(t *testing.T, id string) *model.Event {
	t.Helper()
	e, err := f.store.Events().GetByID(context.Background(), id)
	require.NoError(t, err)
	return e
}

// requireConsistent asserts that every stored confirmed counter matches the
// ledger and respects its limit.
func (f *fixture) requireConsistent(t *testing.T, eventIDs ...string) {
	t.Helper()
	mismatches, err := f.admission.Audit(context.Background())
	require.NoError(t, err)
	require.Empty(t, mismatches)
	for _, id := range eventIDs {
		e := f.event(t, id)
		if e.ParticipantLimit > 0 {
			require.LessOrEqual(t, e.ConfirmedCount, e.ParticipantLimit)
		}
	}
}

type mockStats struct {
	mock.Mock
}

func (m *mockStats) RecordHit(ctx context.Context, hit model.Hit) error {
	return m.Called(ctx, hit).Error(0)
}

func (m *mockStats) GetViews(ctx context.Context, start, end time.Time, uris []string, unique bool) ([]model.ViewStats, error) {
	args := m.Called(ctx, start, end, uris, unique)
	views, _ := args.Get(0).([]model.ViewStats)
	return views, args.Error(1)
}
