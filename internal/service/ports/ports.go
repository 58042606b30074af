// Package ports declares the storage and collaborator contracts the service
// layer depends on.
package ports

import (
	"context"
	"time"

	"github.com/Shivanand-hulikatti/event-participation/internal/model"
)

// Tx is the set of operations available inside one atomic unit of work.
//
// LockEvent must be called before any write that touches an event's
// confirmed counter or the status of one of its requests. It serializes the
// caller with every other unit of work that locked the same event, and all
// reads performed after it observe the latest committed state.
type Tx interface {
	LockEvent(ctx context.Context, id string) (*model.Event, error)
	UpdateEvent(ctx context.Context, e *model.Event) error
	SetConfirmedCount(ctx context.Context, eventID string, count int) error

	GetRequest(ctx context.Context, id string) (*model.ParticipationRequest, error)
	// FindActiveRequest returns the non-canceled request of requesterID for
	// eventID, or model.ErrRequestNotFound.
	FindActiveRequest(ctx context.Context, eventID, requesterID string) (*model.ParticipationRequest, error)
	// RequestsByIDs returns the requests of eventID among ids, ordered by id.
	RequestsByIDs(ctx context.Context, eventID string, ids []string) ([]model.ParticipationRequest, error)
	InsertRequest(ctx context.Context, r *model.ParticipationRequest) error
	SetRequestStatus(ctx context.Context, id string, status model.RequestStatus) error
}

// Transactor runs fn as a single atomic unit. If fn returns an error every
// write it made is rolled back.
type Transactor interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// UserRepo stores users.
type UserRepo interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// CategoryRepo stores event categories.
type CategoryRepo interface {
	Create(ctx context.Context, c *model.Category) error
	GetByID(ctx context.Context, id string) (*model.Category, error)
}

// EventRepo reads and creates events outside a unit. Event writes that
// touch the confirmed count go through Tx.
type EventRepo interface {
	Create(ctx context.Context, e *model.Event) error
	GetByID(ctx context.Context, id string) (*model.Event, error)
	ListByInitiator(ctx context.Context, initiatorID string) ([]model.Event, error)
}

// RequestRepo serves request reads that need no lock, and the audit.
type RequestRepo interface {
	ListByRequester(ctx context.Context, requesterID string) ([]model.ParticipationRequest, error)
	ListByEvent(ctx context.Context, eventID string) ([]model.ParticipationRequest, error)
	CountMismatches(ctx context.Context) ([]model.CountMismatch, error)
}

// StatsClient talks to the view-counting service.
type StatsClient interface {
	RecordHit(ctx context.Context, hit model.Hit) error
	GetViews(ctx context.Context, start, end time.Time, uris []string, unique bool) ([]model.ViewStats, error)
}
