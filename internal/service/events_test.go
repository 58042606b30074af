package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/event-participation/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestCreateEvent(t *testing.T) {
	f := newFixture(t, nil)
	owner := f.user(t, "owner")
	cat := f.category(t)

	e, err := f.events.Create(context.Background(), owner, model.NewEventRequest{
		Category:    cat,
		Title:       "Chess night",
		Annotation:  "Casual chess games for all levels",
		Description: "Boards are provided, bring your own clock if you like.",
		EventDate:   f.clock.Now().Add(3 * time.Hour),
	})

	require.NoError(t, err)
	assert.Equal(t, model.EventPending, e.State)
	assert.True(t, e.RequestModeration)
	assert.Equal(t, 0, e.ParticipantLimit)
	assert.Nil(t, e.PublishedOn)
	assert.Equal(t, owner, e.InitiatorID)
}

func TestCreateEvent_Rejections(t *testing.T) {
	f := newFixture(t, nil)
	owner := f.user(t, "owner")
	cat := f.category(t)
	base := model.NewEventRequest{Category: cat, EventDate: f.clock.Now().Add(3 * time.Hour)}

	tooSoon := base
	tooSoon.EventDate = f.clock.Now().Add(time.Hour)
	noCategory := base
	noCategory.Category = "missing"

	_, err := f.events.Create(context.Background(), owner, tooSoon)
	require.ErrorIs(t, err, model.ErrEventDateTooSoon)
	_, err = f.events.Create(context.Background(), owner, noCategory)
	require.ErrorIs(t, err, model.ErrCategoryNotFound)
	_, err = f.events.Create(context.Background(), "nobody", base)
	require.ErrorIs(t, err, model.ErrUserNotFound)
}

func TestPublish(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	owner := f.user(t, "owner")
	eventID := f.pendingEvent(t, owner, 0, true)

	e, err := f.events.Publish(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, model.EventPublished, e.State)
	require.NotNil(t, e.PublishedOn)
	assert.Equal(t, f.clock.Now(), *e.PublishedOn)

	_, err = f.events.Publish(ctx, eventID)
	require.ErrorIs(t, err, model.ErrEventNotPending)
	_, err = f.events.Reject(ctx, eventID)
	require.ErrorIs(t, err, model.ErrEventPublished)
}

func TestPublish_TooCloseToStart(t *testing.T) {
	f := newFixture(t, nil)
	owner := f.user(t, "owner")
	eventID := f.pendingEvent(t, owner, 0, true) // starts in 48h

	f.clock.Advance(47*time.Hour + 30*time.Minute)

	_, err := f.events.Publish(context.Background(), eventID)
	require.ErrorIs(t, err, model.ErrEventDateTooSoon)
	assert.Equal(t, model.EventPending, f.event(t, eventID).State)
}

func TestReject_CanceledCannotBePublished(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	owner := f.user(t, "owner")
	eventID := f.pendingEvent(t, owner, 0, true)

	e, err := f.events.Reject(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, model.EventCanceled, e.State)

	_, err = f.events.Publish(ctx, eventID)
	require.ErrorIs(t, err, model.ErrEventNotPending)
}

func TestUpdateByAdmin_Validation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	owner := f.user(t, "owner")
	eventID := f.pendingEvent(t, owner, 0, true)

	_, err := f.events.UpdateByAdmin(ctx, eventID, model.UpdateEventRequest{StateAction: model.ActionSendToReview})
	require.ErrorIs(t, err, model.ErrInvalidStateAction)

	_, err = f.events.UpdateByAdmin(ctx, eventID, model.UpdateEventRequest{EventDate: ptr(f.clock.Now().Add(30 * time.Minute))})
	require.ErrorIs(t, err, model.ErrEventDateTooSoon)

	e, err := f.events.UpdateByAdmin(ctx, eventID, model.UpdateEventRequest{Title: ptr("Renamed")})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", e.Title)
	assert.Equal(t, model.EventPending, e.State)

	_, err = f.events.UpdateByAdmin(ctx, "missing", model.UpdateEventRequest{})
	require.ErrorIs(t, err, model.ErrEventNotFound)
}

func TestUpdateByInitiator(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	owner, other := f.user(t, "owner"), f.user(t, "other")
	eventID := f.pendingEvent(t, owner, 10, true)

	e, err := f.events.UpdateByInitiator(ctx, owner, eventID, model.UpdateEventRequest{
		Title:            ptr("New title"),
		ParticipantLimit: ptr(20),
		StateAction:      model.ActionSendToReview,
	})
	require.NoError(t, err)
	assert.Equal(t, "New title", e.Title)
	assert.Equal(t, 20, e.ParticipantLimit)
	assert.Equal(t, model.EventPending, e.State)

	_, err = f.events.UpdateByInitiator(ctx, other, eventID, model.UpdateEventRequest{Title: ptr("x")})
	require.ErrorIs(t, err, model.ErrEventNotFound)

	_, err = f.events.UpdateByInitiator(ctx, owner, eventID, model.UpdateEventRequest{EventDate: ptr(f.clock.Now().Add(time.Hour))})
	require.ErrorIs(t, err, model.ErrEventDateTooSoon)

	_, err = f.events.UpdateByInitiator(ctx, owner, eventID, model.UpdateEventRequest{StateAction: model.ActionPublishEvent})
	require.ErrorIs(t, err, model.ErrInvalidStateAction)
}

func TestUpdateByInitiator_CancelReview(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	owner := f.user(t, "owner")
	eventID := f.pendingEvent(t, owner, 0, true)

	e, err := f.events.UpdateByInitiator(ctx, owner, eventID, model.UpdateEventRequest{StateAction: model.ActionCancelReview})
	require.NoError(t, err)
	assert.Equal(t, model.EventCanceled, e.State)

	_, err = f.events.UpdateByInitiator(ctx, owner, eventID, model.UpdateEventRequest{StateAction: model.ActionSendToReview})
	require.ErrorIs(t, err, model.ErrEventCanceled)
	assert.Equal(t, model.EventCanceled, f.event(t, eventID).State)
}

func TestUpdateByInitiator_PublishedIsImmutable(t *testing.T) {
	f := newFixture(t, nil)
	owner := f.user(t, "owner")
	eventID := f.publishedEvent(t, owner, 0, true)

	_, err := f.events.UpdateByInitiator(context.Background(), owner, eventID, model.UpdateEventRequest{Title: ptr("Changed")})

	require.ErrorIs(t, err, model.ErrEventPublished)
	assert.NotEqual(t, "Changed", f.event(t, eventID).Title)
}

func TestUpdate_LimitBelowConfirmedCount(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	owner := f.user(t, "owner")
	eventID := f.publishedEvent(t, owner, 5, false)
	for _, name := range []string{"a", "b", "c"} {
		_, err := f.admission.CreateRequest(ctx, f.user(t, name), eventID)
		require.NoError(t, err)
	}

	_, err := f.events.UpdateByAdmin(ctx, eventID, model.UpdateEventRequest{ParticipantLimit: ptr(2)})
	require.ErrorIs(t, err, model.ErrLimitBelowCount)

	e, err := f.events.UpdateByAdmin(ctx, eventID, model.UpdateEventRequest{ParticipantLimit: ptr(3)})
	require.NoError(t, err)
	assert.Equal(t, 3, e.ParticipantLimit)
	assert.Equal(t, 3, e.ConfirmedCount)
	f.requireConsistent(t, eventID)
}

func TestGetPublished_RecordsHitAndViews(t *testing.T) {
	stats := &mockStats{}
	f := newFixture(t, stats)
	owner := f.user(t, "owner")
	stats.On("GetViews", mock.Anything, mock.Anything, mock.Anything, mock.Anything, true).Return(nil, nil).Once()
	eventID := f.publishedEvent(t, owner, 0, false)
	uri := model.EventURI(eventID)

	hit := make(chan model.Hit, 1)
	stats.On("RecordHit", mock.Anything, mock.AnythingOfType("model.Hit")).
		Run(func(args mock.Arguments) { hit <- args.Get(1).(model.Hit) }).
		Return(nil).Once()
	stats.On("GetViews", mock.Anything, mock.Anything, mock.Anything, []string{uri}, true).
		Return([]model.ViewStats{{App: "ewm-main-service", URI: uri, Hits: 4}}, nil)

	e, err := f.events.GetPublished(context.Background(), eventID, "10.1.1.1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), e.Views)

	select {
	case h := <-hit:
		assert.Equal(t, uri, h.URI)
		assert.Equal(t, "10.1.1.1", h.IP)
		assert.Equal(t, "ewm-main-service", h.App)
	case <-time.After(time.Second):
		t.Fatal("hit was not recorded")
	}
}

func TestGetPublished_UnpublishedIsNotFound(t *testing.T) {
	stats := &mockStats{}
	f := newFixture(t, stats)
	owner := f.user(t, "owner")
	eventID := f.pendingEvent(t, owner, 0, false)

	_, err := f.events.GetPublished(context.Background(), eventID, "10.1.1.1")

	require.ErrorIs(t, err, model.ErrEventNotFound)
	stats.AssertNotCalled(t, "RecordHit", mock.Anything, mock.Anything)
}

func TestViews_StatsUnavailable(t *testing.T) {
	stats := &mockStats{}
	f := newFixture(t, stats)
	owner := f.user(t, "owner")
	stats.On("RecordHit", mock.Anything, mock.Anything).Return(errors.New("connection refused")).Maybe()
	stats.On("GetViews", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, model.ErrServiceUnavailable)
	eventID := f.publishedEvent(t, owner, 0, false)

	e, err := f.events.GetPublished(context.Background(), eventID, "10.1.1.1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), e.Views)

	list, err := f.events.ListByInitiator(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(0), list[0].Views)
}

func TestListByInitiator_NewestFirst(t *testing.T) {
	f := newFixture(t, nil)
	owner, other := f.user(t, "owner"), f.user(t, "other")
	first := f.pendingEvent(t, owner, 0, true)
	second := f.pendingEvent(t, owner, 0, true)
	f.pendingEvent(t, other, 0, true)

	list, err := f.events.ListByInitiator(context.Background(), owner)

	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second, list[0].ID)
	assert.Equal(t, first, list[1].ID)

	got, err := f.events.GetForInitiator(context.Background(), owner, first)
	require.NoError(t, err)
	assert.Equal(t, first, got.ID)
	_, err = f.events.GetForInitiator(context.Background(), other, first)
	require.ErrorIs(t, err, model.ErrEventNotFound)
}
