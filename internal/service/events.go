package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/event-participation/internal/model"
	"github.com/Shivanand-hulikatti/event-participation/internal/service/ports"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	// initiatorLeadTime is how far ahead an event must start when its
	// initiator creates or reschedules it.
	initiatorLeadTime = 2 * time.Hour
	// publishLeadTime is how far ahead an event must start when an admin
	// publishes or reschedules it.
	publishLeadTime = time.Hour
)

// EventService manages the event lifecycle: creation and edits by the
// initiator, publication and rejection by an admin, and public reads enriched
// with view counts.
type EventService struct {
	tx         ports.Transactor
	users      ports.UserRepo
	categories ports.CategoryRepo
	events     ports.EventRepo
	stats      ports.StatsClient
	app        string
	log        logrus.FieldLogger
	now        func() time.Time
}

// NewEventService constructs an EventService. stats may be nil, in which case
// views are always reported as zero and no hits are recorded.
func NewEventService(
	tx ports.Transactor,
	users ports.UserRepo,
	categories ports.CategoryRepo,
	events ports.EventRepo,
	stats ports.StatsClient,
	app string,
	log logrus.FieldLogger,
) *EventService {
	return &EventService{
		tx:         tx,
		users:      users,
		categories: categories,
		events:     events,
		stats:      stats,
		app:        app,
		log:        log.WithField("component", "events"),
		now:        utcNow,
	}
}

// Create registers a new PENDING event for initiatorID.
func (s *EventService) Create(ctx context.Context, initiatorID string, in model.NewEventRequest) (_ *model.EventView, err error) {
	ctx, span := startSpan(ctx, "EventService.Create", attribute.String("user.id", initiatorID))
	entry := s.log.WithField("user_id", initiatorID)
	defer func() {
		logOutcome(entry, err, "create event")
		endSpan(span, err)
	}()

	now := s.now()
	if in.EventDate.Before(now.Add(initiatorLeadTime)) {
		return nil, model.ErrEventDateTooSoon
	}
	if _, err = s.users.GetByID(ctx, initiatorID); err != nil {
		return nil, wrap("create event", err)
	}
	if _, err = s.categories.GetByID(ctx, in.Category); err != nil {
		return nil, wrap("create event", err)
	}

	moderated := true
	if in.RequestModeration != nil {
		moderated = *in.RequestModeration
	}
	event := &model.Event{
		ID:                newID(),
		Title:             in.Title,
		Annotation:        in.Annotation,
		Description:       in.Description,
		CategoryID:        in.Category,
		InitiatorID:       initiatorID,
		Location:          in.Location,
		Paid:              in.Paid,
		State:             model.EventPending,
		ParticipantLimit:  in.ParticipantLimit,
		RequestModeration: moderated,
		CreatedOn:         now,
		EventDate:         in.EventDate.UTC(),
	}
	if err = s.events.Create(ctx, event); err != nil {
		return nil, wrap("create event", err)
	}

	entry = entry.WithField("event_id", event.ID)
	return &model.EventView{Event: *event}, nil
}

// GetForInitiator returns an event owned by initiatorID in any state.
func (s *EventService) GetForInitiator(ctx context.Context, initiatorID, eventID string) (*model.EventView, error) {
	if _, err := s.users.GetByID(ctx, initiatorID); err != nil {
		return nil, wrap("get event", err)
	}
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, wrap("get event", err)
	}
	if event.InitiatorID != initiatorID {
		return nil, model.ErrEventNotFound
	}
	return &s.withViews(ctx, *event)[0], nil
}

// ListByInitiator returns every event created by initiatorID, newest first.
func (s *EventService) ListByInitiator(ctx context.Context, initiatorID string) ([]model.EventView, error) {
	if _, err := s.users.GetByID(ctx, initiatorID); err != nil {
		return nil, wrap("list events", err)
	}
	events, err := s.events.ListByInitiator(ctx, initiatorID)
	if err != nil {
		return nil, wrap("list events", err)
	}
	return s.withViews(ctx, events...), nil
}

// GetPublished returns a published event to the public and records the view.
// Unpublished events are reported as not found.
func (s *EventService) GetPublished(ctx context.Context, eventID, clientIP string) (*model.EventView, error) {
	ctx, span := startSpan(ctx, "EventService.GetPublished", attribute.String("event.id", eventID))
	event, err := s.events.GetByID(ctx, eventID)
	if err == nil && event.State != model.EventPublished {
		err = model.ErrEventNotFound
	}
	endSpan(span, err)
	if err != nil {
		return nil, wrap("get published event", err)
	}

	if s.stats != nil {
		hit := model.Hit{
			App:       s.app,
			URI:       model.EventURI(eventID),
			IP:        clientIP,
			Timestamp: model.StatsTime{Time: s.now()},
		}
		go s.recordHit(context.WithoutCancel(ctx), hit)
	}
	return &s.withViews(ctx, *event)[0], nil
}

// UpdateByInitiator applies an initiator's edit to an event that is not yet
// published. StateAction may be SEND_TO_REVIEW or CANCEL_REVIEW.
func (s *EventService) UpdateByInitiator(
	ctx context.Context,
	initiatorID, eventID string,
	in model.UpdateEventRequest,
) (_ *model.EventView, err error) {
	ctx, span := startSpan(ctx, "EventService.UpdateByInitiator",
		attribute.String("event.id", eventID),
		attribute.String("user.id", initiatorID),
		attribute.String("state_action", in.StateAction),
	)
	entry := s.log.WithFields(logrus.Fields{"event_id": eventID, "user_id": initiatorID, "action": in.StateAction})
	defer func() {
		logOutcome(entry, err, "update event")
		endSpan(span, err)
	}()

	switch in.StateAction {
	case "", model.ActionSendToReview, model.ActionCancelReview:
	default:
		return nil, model.ErrInvalidStateAction
	}
	now := s.now()
	if in.EventDate != nil && in.EventDate.Before(now.Add(initiatorLeadTime)) {
		return nil, model.ErrEventDateTooSoon
	}
	if _, err = s.users.GetByID(ctx, initiatorID); err != nil {
		return nil, wrap("update event", err)
	}
	if in.Category != nil {
		if _, err = s.categories.GetByID(ctx, *in.Category); err != nil {
			return nil, wrap("update event", err)
		}
	}

	var updated *model.Event
	err = s.tx.InTx(ctx, func(tx ports.Tx) error {
		event, lockErr := tx.LockEvent(ctx, eventID)
		if lockErr != nil {
			return lockErr
		}
		if event.InitiatorID != initiatorID {
			return model.ErrEventNotFound
		}
		if event.State == model.EventPublished {
			return model.ErrEventPublished
		}
		if patchErr := applyPatch(event, in); patchErr != nil {
			return patchErr
		}

		switch in.StateAction {
		case model.ActionSendToReview:
			if event.State == model.EventCanceled {
				return model.ErrEventCanceled
			}
		case model.ActionCancelReview:
			event.State = model.EventCanceled
		}

		if updateErr := tx.UpdateEvent(ctx, event); updateErr != nil {
			return updateErr
		}
		updated = event
		return nil
	})
	if err != nil {
		return nil, wrap("update event", err)
	}
	return &s.withViews(ctx, *updated)[0], nil
}

// UpdateByAdmin applies an admin's edit to an event. StateAction may be
// PUBLISH_EVENT or REJECT_EVENT.
func (s *EventService) UpdateByAdmin(ctx context.Context, eventID string, in model.UpdateEventRequest) (_ *model.EventView, err error) {
	ctx, span := startSpan(ctx, "EventService.UpdateByAdmin",
		attribute.String("event.id", eventID),
		attribute.String("state_action", in.StateAction),
	)
	entry := s.log.WithFields(logrus.Fields{"event_id": eventID, "action": in.StateAction})
	defer func() {
		logOutcome(entry, err, "admin update event")
		endSpan(span, err)
	}()

	switch in.StateAction {
	case "", model.ActionPublishEvent, model.ActionRejectEvent:
	default:
		return nil, model.ErrInvalidStateAction
	}
	now := s.now()
	if in.EventDate != nil && in.EventDate.Before(now.Add(publishLeadTime)) {
		return nil, model.ErrEventDateTooSoon
	}
	if in.Category != nil {
		if _, err = s.categories.GetByID(ctx, *in.Category); err != nil {
			return nil, wrap("admin update event", err)
		}
	}

	var updated *model.Event
	err = s.tx.InTx(ctx, func(tx ports.Tx) error {
		event, lockErr := tx.LockEvent(ctx, eventID)
		if lockErr != nil {
			return lockErr
		}
		if patchErr := applyPatch(event, in); patchErr != nil {
			return patchErr
		}

		switch in.StateAction {
		case model.ActionPublishEvent:
			if event.State != model.EventPending {
				return model.ErrEventNotPending
			}
			if event.EventDate.Before(now.Add(publishLeadTime)) {
				return model.ErrEventDateTooSoon
			}
			event.State = model.EventPublished
			publishedOn := now
			event.PublishedOn = &publishedOn
		case model.ActionRejectEvent:
			if event.State == model.EventPublished {
				return model.ErrEventPublished
			}
			event.State = model.EventCanceled
		}

		if updateErr := tx.UpdateEvent(ctx, event); updateErr != nil {
			return updateErr
		}
		updated = event
		return nil
	})
	if err != nil {
		return nil, wrap("admin update event", err)
	}
	return &s.withViews(ctx, *updated)[0], nil
}

// Publish makes a PENDING event visible and open to requests.
func (s *EventService) Publish(ctx context.Context, eventID string) (*model.EventView, error) {
	return s.UpdateByAdmin(ctx, eventID, model.UpdateEventRequest{StateAction: model.ActionPublishEvent})
}

// Reject cancels an event that has not been published.
func (s *EventService) Reject(ctx context.Context, eventID string) (*model.EventView, error) {
	return s.UpdateByAdmin(ctx, eventID, model.UpdateEventRequest{StateAction: model.ActionRejectEvent})
}

// applyPatch copies the non-nil fields of in onto e.
func applyPatch(e *model.Event, in model.UpdateEventRequest) error {
	if in.ParticipantLimit != nil {
		limit := *in.ParticipantLimit
		if limit > 0 && limit < e.ConfirmedCount {
			return fmt.Errorf("%w (limit %d, confirmed %d)", model.ErrLimitBelowCount, limit, e.ConfirmedCount)
		}
		e.ParticipantLimit = limit
	}
	if in.Title != nil {
		e.Title = *in.Title
	}
	if in.Annotation != nil {
		e.Annotation = *in.Annotation
	}
	if in.Description != nil {
		e.Description = *in.Description
	}
	if in.Category != nil {
		e.CategoryID = *in.Category
	}
	if in.EventDate != nil {
		e.EventDate = in.EventDate.UTC()
	}
	if in.Location != nil {
		e.Location = *in.Location
	}
	if in.Paid != nil {
		e.Paid = *in.Paid
	}
	if in.RequestModeration != nil {
		e.RequestModeration = *in.RequestModeration
	}
	return nil
}

// withViews attaches view counts to events. Stats failures are logged and
// reported as zero views; they never fail the read.
func (s *EventService) withViews(ctx context.Context, events ...model.Event) []model.EventView {
	out := make([]model.EventView, len(events))
	for i, e := range events {
		out[i] = model.EventView{Event: e}
	}
	if s.stats == nil || len(events) == 0 {
		return out
	}

	start := events[0].CreatedOn
	uris := make([]string, len(events))
	for i, e := range events {
		uris[i] = model.EventURI(e.ID)
		if e.CreatedOn.Before(start) {
			start = e.CreatedOn
		}
	}

	stats, err := s.stats.GetViews(ctx, start, s.now(), uris, true)
	if err != nil {
		s.log.WithError(fmt.Errorf("%w: %w", model.ErrServiceUnavailable, err)).
			Warn("view counts unavailable, reporting zero")
		return out
	}
	hits := make(map[string]int64, len(stats))
	for _, st := range stats {
		hits[st.URI] = st.Hits
	}
	for i := range out {
		out[i].Views = hits[uris[i]]
	}
	return out
}

func (s *EventService) recordHit(ctx context.Context, hit model.Hit) {
	if err := s.stats.RecordHit(ctx, hit); err != nil {
		s.log.WithError(err).WithField("uri", hit.URI).Warn("record hit")
	}
}
