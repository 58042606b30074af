package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/event-participation/internal/model"
	"github.com/Shivanand-hulikatti/event-participation/internal/service/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxManager runs units of work in a PostgreSQL transaction.
//
// ─────────────────────────────────────────────────────────────────────────────
// SEAT ACCOUNTING UNDER CONCURRENCY
// ─────────────────────────────────────────────────────────────────────────────
//
// Two requests for the last seat of an event race like this without a lock:
//
//	tx A: SELECT confirmed_count → 9 (limit 10)
//	tx B: SELECT confirmed_count → 9
//	tx A: INSERT request CONFIRMED, UPDATE confirmed_count = 10
//	tx B: INSERT request CONFIRMED, UPDATE confirmed_count = 10
//	Result: 11 CONFIRMED rows, counter says 10.
//
// LockEvent issues SELECT … FOR UPDATE on the event row. Every other unit
// that locks the same event blocks until this transaction commits or rolls
// back. Under READ COMMITTED each later statement takes a fresh snapshot, so
// everything read after the lock reflects the winner's committed writes.
// Units working on different events lock different rows and never wait on
// each other.
//
// ─────────────────────────────────────────────────────────────────────────────
type TxManager struct {
	db *pgxpool.Pool
}

// NewTxManager constructs a TxManager.
func NewTxManager(db *pgxpool.Pool) *TxManager {
	return &TxManager{db: db}
}

// InTx begins a transaction, runs fn, and commits if fn succeeds. The
// transaction is rolled back on error or panic.
func (m *TxManager) InTx(ctx context.Context, fn func(ports.Tx) error) (err error) {
	tx, err := m.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// Rollback must run even when ctx is already done.
	rollbackCtx := context.WithoutCancel(ctx)
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(rollbackCtx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(rollbackCtx)
		}
	}()

	if err = fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LockEvent(ctx context.Context, id string) (*model.Event, error) {
	e, err := getEvent(ctx, t.tx, `SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, id)
	if err != nil && !errors.Is(err, model.ErrEventNotFound) {
		return nil, fmt.Errorf("lock event row: %w", err)
	}
	return e, err
}

// UpdateEvent writes every mutable column except confirmed_count, which only
// SetConfirmedCount touches.
func (t *pgTx) UpdateEvent(ctx context.Context, e *model.Event) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE events SET
			title = $2, annotation = $3, description = $4, category_id = $5,
			lat = $6, lon = $7, paid = $8, state = $9, participant_limit = $10,
			request_moderation = $11, published_on = $12, event_date = $13
		 WHERE id = $1`,
		e.ID, e.Title, e.Annotation, e.Description, e.CategoryID,
		e.Location.Lat, e.Location.Lon, e.Paid, string(e.State), e.ParticipantLimit,
		e.RequestModeration, e.PublishedOn, e.EventDate,
	)
	if err != nil {
		return translate("update event", err, model.ErrEventNotFound)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrEventNotFound
	}
	return nil
}

func (t *pgTx) SetConfirmedCount(ctx context.Context, eventID string, count int) error {
	tag, err := t.tx.Exec(ctx, `UPDATE events SET confirmed_count = $2 WHERE id = $1`, eventID, count)
	if err != nil {
		return fmt.Errorf("set confirmed_count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrEventNotFound
	}
	return nil
}

func (t *pgTx) GetRequest(ctx context.Context, id string) (*model.ParticipationRequest, error) {
	pr, err := scanRequest(t.tx.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE id = $1`, id,
	))
	if err != nil {
		return nil, translate("get request", err, model.ErrRequestNotFound)
	}
	return pr, nil
}

func (t *pgTx) FindActiveRequest(ctx context.Context, eventID, requesterID string) (*model.ParticipationRequest, error) {
	pr, err := scanRequest(t.tx.QueryRow(ctx,
		`SELECT `+requestColumns+`
		 FROM requests
		 WHERE event_id = $1 AND requester_id = $2 AND status <> 'CANCELED'`,
		eventID, requesterID,
	))
	if err != nil {
		return nil, translate("find active request", err, model.ErrRequestNotFound)
	}
	return pr, nil
}

func (t *pgTx) RequestsByIDs(ctx context.Context, eventID string, ids []string) ([]model.ParticipationRequest, error) {
	return listRequests(ctx, t.tx,
		`SELECT `+requestColumns+`
		 FROM requests
		 WHERE event_id = $1 AND id = ANY($2)
		 ORDER BY id`,
		eventID, ids,
	)
}

func (t *pgTx) InsertRequest(ctx context.Context, r *model.ParticipationRequest) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO requests (`+requestColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		r.ID, r.EventID, r.RequesterID, string(r.Status), r.Created,
	)
	if err != nil {
		return translate("insert request", err, model.ErrRequestNotFound)
	}
	return nil
}

func (t *pgTx) SetRequestStatus(ctx context.Context, id string, status model.RequestStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE requests SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return translate("set request status", err, model.ErrRequestNotFound)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrRequestNotFound
	}
	return nil
}

var _ ports.Transactor = (*TxManager)(nil)
