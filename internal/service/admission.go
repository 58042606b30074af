package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/Shivanand-hulikatti/event-participation/internal/model"
	"github.com/Shivanand-hulikatti/event-participation/internal/service/ports"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// AdmissionService decides who gets a seat at an event. It owns the
// participation-request ledger and the confirmed counter of every event.
type AdmissionService struct {
	tx       ports.Transactor
	users    ports.UserRepo
	events   ports.EventRepo
	requests ports.RequestRepo
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewAdmissionService constructs an AdmissionService with its dependencies.
func NewAdmissionService(
	tx ports.Transactor,
	users ports.UserRepo,
	events ports.EventRepo,
	requests ports.RequestRepo,
	log logrus.FieldLogger,
) *AdmissionService {
	return &AdmissionService{
		tx:       tx,
		users:    users,
		events:   events,
		requests: requests,
		log:      log.WithField("component", "admission"),
		now:      utcNow,
	}
}

// CreateRequest files a participation request of requesterID for eventID.
//
// The request is confirmed immediately (and a seat taken) when the event has
// no participant limit or does not moderate requests; otherwise it waits as
// PENDING for the initiator. A full event refuses new requests either way.
func (s *AdmissionService) CreateRequest(ctx context.Context, requesterID, eventID string) (_ *model.ParticipationRequest, err error) {
	ctx, span := startSpan(ctx, "AdmissionService.CreateRequest",
		attribute.String("event.id", eventID),
		attribute.String("user.id", requesterID),
	)
	entry := s.log.WithFields(logrus.Fields{"event_id": eventID, "user_id": requesterID})
	defer func() {
		logOutcome(entry, err, "create participation request")
		endSpan(span, err)
	}()

	if _, err = s.users.GetByID(ctx, requesterID); err != nil {
		return nil, wrap("create request", err)
	}

	var created *model.ParticipationRequest
	err = s.tx.InTx(ctx, func(tx ports.Tx) error {
		event, lockErr := tx.LockEvent(ctx, eventID)
		if lockErr != nil {
			return lockErr
		}
		if event.InitiatorID == requesterID {
			return model.ErrSelfRequest
		}
		if event.State != model.EventPublished {
			return model.ErrEventNotPublished
		}

		_, findErr := tx.FindActiveRequest(ctx, eventID, requesterID)
		switch {
		case findErr == nil:
			return model.ErrDuplicateRequest
		case !errors.Is(findErr, model.ErrRequestNotFound):
			return findErr
		}

		if event.IsFull() {
			return model.ErrLimitReached
		}

		status := model.RequestPending
		if event.AutoConfirms() {
			status = model.RequestConfirmed
		}
		pr := &model.ParticipationRequest{
			ID:          newID(),
			EventID:     eventID,
			RequesterID: requesterID,
			Status:      status,
			Created:     s.now(),
		}
		if insertErr := tx.InsertRequest(ctx, pr); insertErr != nil {
			return insertErr
		}
		if status == model.RequestConfirmed {
			if countErr := tx.SetConfirmedCount(ctx, eventID, event.ConfirmedCount+1); countErr != nil {
				return countErr
			}
		}
		created = pr
		return nil
	})
	if err != nil {
		return nil, wrap("create request", err)
	}

	entry = entry.WithFields(logrus.Fields{"request_id": created.ID, "status": created.Status})
	return created, nil
}

// BulkUpdateStatus confirms or rejects PENDING requests of a moderated event
// on behalf of its initiator.
//
// Ids are de-duplicated and handled in ascending order. If any of them is not
// PENDING nothing is changed. When confirming, requests are accepted while
// seats remain; once the limit is hit the rest stay PENDING, the confirmations
// made so far are kept, and the partial result is returned together with
// model.ErrLimitReached.
func (s *AdmissionService) BulkUpdateStatus(
	ctx context.Context,
	initiatorID, eventID string,
	in model.StatusUpdateRequest,
) (_ *model.StatusUpdateResult, err error) {
	ctx, span := startSpan(ctx, "AdmissionService.BulkUpdateStatus",
		attribute.String("event.id", eventID),
		attribute.String("user.id", initiatorID),
		attribute.String("status", string(in.Status)),
		attribute.Int("requests", len(in.RequestIDs)),
	)
	entry := s.log.WithFields(logrus.Fields{"event_id": eventID, "user_id": initiatorID, "target": in.Status})
	defer func() {
		logOutcome(entry, err, "bulk update request status")
		endSpan(span, err)
	}()

	if len(in.RequestIDs) == 0 {
		return nil, model.ErrEmptyRequestIDs
	}
	if in.Status != model.RequestConfirmed && in.Status != model.RequestRejected {
		return nil, model.ErrInvalidStatus
	}
	if _, err = s.users.GetByID(ctx, initiatorID); err != nil {
		return nil, wrap("bulk update status", err)
	}

	ids := uniqueSorted(in.RequestIDs)
	var (
		result       *model.StatusUpdateResult
		limitReached bool
	)
	err = s.tx.InTx(ctx, func(tx ports.Tx) error {
		event, lockErr := tx.LockEvent(ctx, eventID)
		if lockErr != nil {
			return lockErr
		}
		if event.InitiatorID != initiatorID {
			return model.ErrEventNotFound
		}
		if event.AutoConfirms() {
			return model.ErrModerationNotNeeded
		}

		targets, readErr := tx.RequestsByIDs(ctx, eventID, ids)
		if readErr != nil {
			return readErr
		}
		if len(targets) != len(ids) {
			return model.ErrRequestNotFound
		}
		for _, pr := range targets {
			if pr.Status != model.RequestPending {
				return model.ErrInvalidTransition
			}
		}

		res := &model.StatusUpdateResult{
			Confirmed: []model.ParticipationRequest{},
			Rejected:  []model.ParticipationRequest{},
		}

		if in.Status == model.RequestRejected {
			for _, pr := range targets {
				if setErr := tx.SetRequestStatus(ctx, pr.ID, model.RequestRejected); setErr != nil {
					return setErr
				}
				pr.Status = model.RequestRejected
				res.Rejected = append(res.Rejected, pr)
			}
			result = res
			return nil
		}

		count := event.ConfirmedCount
		for _, pr := range targets {
			if count >= event.ParticipantLimit {
				limitReached = true
				break
			}
			if setErr := tx.SetRequestStatus(ctx, pr.ID, model.RequestConfirmed); setErr != nil {
				return setErr
			}
			pr.Status = model.RequestConfirmed
			res.Confirmed = append(res.Confirmed, pr)
			count++
		}
		if count != event.ConfirmedCount {
			if countErr := tx.SetConfirmedCount(ctx, eventID, count); countErr != nil {
				return countErr
			}
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, wrap("bulk update status", err)
	}

	entry = entry.WithFields(logrus.Fields{
		"confirmed": len(result.Confirmed),
		"rejected":  len(result.Rejected),
	})
	if limitReached {
		return result, model.ErrLimitReached
	}
	return result, nil
}

// CancelRequest withdraws a request of requesterID. Cancelling a CONFIRMED
// request frees its seat.
func (s *AdmissionService) CancelRequest(ctx context.Context, requesterID, requestID string) (_ *model.ParticipationRequest, err error) {
	ctx, span := startSpan(ctx, "AdmissionService.CancelRequest",
		attribute.String("request.id", requestID),
		attribute.String("user.id", requesterID),
	)
	entry := s.log.WithFields(logrus.Fields{"request_id": requestID, "user_id": requesterID})
	defer func() {
		logOutcome(entry, err, "cancel participation request")
		endSpan(span, err)
	}()

	if _, err = s.users.GetByID(ctx, requesterID); err != nil {
		return nil, wrap("cancel request", err)
	}

	var canceled *model.ParticipationRequest
	err = s.tx.InTx(ctx, func(tx ports.Tx) error {
		pr, getErr := tx.GetRequest(ctx, requestID)
		if getErr != nil {
			return getErr
		}
		if pr.RequesterID != requesterID {
			return model.ErrRequestNotFound
		}

		event, lockErr := tx.LockEvent(ctx, pr.EventID)
		if lockErr != nil {
			return lockErr
		}
		// Re-read under the lock: a concurrent bulk update may have moved it.
		if pr, getErr = tx.GetRequest(ctx, requestID); getErr != nil {
			return getErr
		}
		if !pr.Status.CanTransition(model.RequestCanceled) {
			return model.ErrInvalidTransition
		}

		if setErr := tx.SetRequestStatus(ctx, pr.ID, model.RequestCanceled); setErr != nil {
			return setErr
		}
		if pr.Status == model.RequestConfirmed {
			if countErr := tx.SetConfirmedCount(ctx, pr.EventID, event.ConfirmedCount-1); countErr != nil {
				return countErr
			}
		}
		pr.Status = model.RequestCanceled
		canceled = pr
		return nil
	})
	if err != nil {
		return nil, wrap("cancel request", err)
	}

	entry = entry.WithField("event_id", canceled.EventID)
	return canceled, nil
}

// ListByRequester returns every request filed by userID.
func (s *AdmissionService) ListByRequester(ctx context.Context, userID string) ([]model.ParticipationRequest, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, wrap("list requests", err)
	}
	out, err := s.requests.ListByRequester(ctx, userID)
	return out, wrap("list requests", err)
}

// ListByEvent returns every request filed for an event owned by initiatorID.
func (s *AdmissionService) ListByEvent(ctx context.Context, initiatorID, eventID string) ([]model.ParticipationRequest, error) {
	if _, err := s.users.GetByID(ctx, initiatorID); err != nil {
		return nil, wrap("list event requests", err)
	}
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, wrap("list event requests", err)
	}
	if event.InitiatorID != initiatorID {
		return nil, model.ErrEventNotFound
	}
	out, err := s.requests.ListByEvent(ctx, eventID)
	return out, wrap("list event requests", err)
}

// Audit reports every event whose stored confirmed counter disagrees with
// the number of CONFIRMED requests in the ledger.
func (s *AdmissionService) Audit(ctx context.Context) ([]model.CountMismatch, error) {
	ctx, span := startSpan(ctx, "AdmissionService.Audit")
	out, err := s.requests.CountMismatches(ctx)
	endSpan(span, err)
	return out, wrap("audit confirmed counts", err)
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
