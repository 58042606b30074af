// Package repository implements the storage ports on PostgreSQL.
// It uses pgx directly (no ORM) for transparency and performance.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/event-participation/internal/model"
	"github.com/Shivanand-hulikatti/event-participation/internal/service/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Constraint names the unique violations are translated from.
const (
	uniqueUserEmail     = "users_email_key"
	uniqueCategoryName  = "categories_name_key"
	uniqueActiveRequest = "requests_one_active_idx"
)

const eventColumns = `id, title, annotation, description, category_id, initiator_id,
	lat, lon, paid, state, participant_limit, request_moderation, confirmed_count,
	created_on, published_on, event_date`

const requestColumns = `id, event_id, requester_id, status, created`

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// translate maps driver errors onto the domain error taxonomy. Errors with no
// domain meaning are wrapped with op.
func translate(op string, err error, notFound error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case uniqueUserEmail:
			return model.ErrDuplicateEmail
		case uniqueCategoryName:
			return model.ErrDuplicateCategory
		case uniqueActiveRequest:
			return model.ErrDuplicateRequest
		}
		return fmt.Errorf("%w: %s", model.ErrConflict, pgErr.ConstraintName)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ─── Users & categories ──────────────────────────────────────────────────────

// UserRepository handles persistence for users.
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a user. A second user with the same email, ignoring case,
// yields model.ErrDuplicateEmail.
func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO users (id, name, email) VALUES ($1, $2, $3)`,
		u.ID, u.Name, u.Email,
	)
	if err != nil {
		return translate("insert user", err, model.ErrUserNotFound)
	}
	return nil
}

// GetByID returns model.ErrUserNotFound if no user has the id.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := r.db.QueryRow(ctx,
		`SELECT id, name, email FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Name, &u.Email)
	if err != nil {
		return nil, translate("get user", err, model.ErrUserNotFound)
	}
	return &u, nil
}

// CategoryRepository handles persistence for categories.
type CategoryRepository struct {
	db *pgxpool.Pool
}

// NewCategoryRepository constructs a CategoryRepository.
func NewCategoryRepository(db *pgxpool.Pool) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// Create inserts a category with a unique name.
func (r *CategoryRepository) Create(ctx context.Context, c *model.Category) error {
	_, err := r.db.Exec(ctx, `INSERT INTO categories (id, name) VALUES ($1, $2)`, c.ID, c.Name)
	if err != nil {
		return translate("insert category", err, model.ErrCategoryNotFound)
	}
	return nil
}

// GetByID returns model.ErrCategoryNotFound if no category has the id.
func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*model.Category, error) {
	var c model.Category
	err := r.db.QueryRow(ctx, `SELECT id, name FROM categories WHERE id = $1`, id).Scan(&c.ID, &c.Name)
	if err != nil {
		return nil, translate("get category", err, model.ErrCategoryNotFound)
	}
	return &c, nil
}

// ─── Events ──────────────────────────────────────────────────────────────────

// EventRepository handles persistence for events outside of a transaction.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts a new event. confirmed_count starts at whatever e carries,
// which is zero for every caller.
func (r *EventRepository) Create(ctx context.Context, e *model.Event) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		e.ID, e.Title, e.Annotation, e.Description, e.CategoryID, e.InitiatorID,
		e.Location.Lat, e.Location.Lon, e.Paid, string(e.State), e.ParticipantLimit,
		e.RequestModeration, e.ConfirmedCount, e.CreatedOn, e.PublishedOn, e.EventDate,
	)
	if err != nil {
		return translate("insert event", err, model.ErrEventNotFound)
	}
	return nil
}

// GetByID returns a single event or model.ErrEventNotFound. The row is read
// without a lock.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	return getEvent(ctx, r.db, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
}

// ListByInitiator returns the events of initiatorID ordered by creation time
// descending.
func (r *EventRepository) ListByInitiator(ctx context.Context, initiatorID string) ([]model.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+`
		 FROM events
		 WHERE initiator_id = $1
		 ORDER BY created_on DESC, id DESC`,
		initiatorID,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func getEvent(ctx context.Context, q querier, sql, id string) (*model.Event, error) {
	e, err := scanEvent(q.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

func scanEvent(row scanner) (*model.Event, error) {
	var (
		e     model.Event
		state string
	)
	err := row.Scan(
		&e.ID, &e.Title, &e.Annotation, &e.Description, &e.CategoryID, &e.InitiatorID,
		&e.Location.Lat, &e.Location.Lon, &e.Paid, &state, &e.ParticipantLimit,
		&e.RequestModeration, &e.ConfirmedCount, &e.CreatedOn, &e.PublishedOn, &e.EventDate,
	)
	if err != nil {
		return nil, err
	}
	e.State = model.EventState(state)
	e.CreatedOn = e.CreatedOn.UTC()
	e.EventDate = e.EventDate.UTC()
	if e.PublishedOn != nil {
		t := e.PublishedOn.UTC()
		e.PublishedOn = &t
	}
	return &e, nil
}

// ─── Participation requests ──────────────────────────────────────────────────

// RequestRepository serves read-only views of the participation-request
// ledger.
type RequestRepository struct {
	db *pgxpool.Pool
}

// NewRequestRepository constructs a RequestRepository.
func NewRequestRepository(db *pgxpool.Pool) *RequestRepository {
	return &RequestRepository{db: db}
}

// ListByRequester returns every request filed by requesterID.
func (r *RequestRepository) ListByRequester(ctx context.Context, requesterID string) ([]model.ParticipationRequest, error) {
	return listRequests(ctx, r.db,
		`SELECT `+requestColumns+` FROM requests WHERE requester_id = $1 ORDER BY id`,
		requesterID,
	)
}

// ListByEvent returns every request filed for eventID.
func (r *RequestRepository) ListByEvent(ctx context.Context, eventID string) ([]model.ParticipationRequest, error) {
	return listRequests(ctx, r.db,
		`SELECT `+requestColumns+` FROM requests WHERE event_id = $1 ORDER BY id`,
		eventID,
	)
}

// CountMismatches compares every event's confirmed_count with the number of
// CONFIRMED rows in the ledger.
func (r *RequestRepository) CountMismatches(ctx context.Context) ([]model.CountMismatch, error) {
	rows, err := r.db.Query(ctx,
		`SELECT e.id, e.confirmed_count, COUNT(rq.id) FILTER (WHERE rq.status = 'CONFIRMED')
		 FROM events e
		 LEFT JOIN requests rq ON rq.event_id = e.id
		 GROUP BY e.id, e.confirmed_count
		 HAVING e.confirmed_count <> COUNT(rq.id) FILTER (WHERE rq.status = 'CONFIRMED')
		 ORDER BY e.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("count mismatches: %w", err)
	}
	defer rows.Close()

	var out []model.CountMismatch
	for rows.Next() {
		var m model.CountMismatch
		if err := rows.Scan(&m.EventID, &m.Stored, &m.LedgerCount); err != nil {
			return nil, fmt.Errorf("scan mismatch: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func listRequests(ctx context.Context, q querier, sql string, args ...any) ([]model.ParticipationRequest, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var out []model.ParticipationRequest
	for rows.Next() {
		pr, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		out = append(out, *pr)
	}
	return out, rows.Err()
}

func scanRequest(row scanner) (*model.ParticipationRequest, error) {
	var (
		pr     model.ParticipationRequest
		status string
	)
	if err := row.Scan(&pr.ID, &pr.EventID, &pr.RequesterID, &status, &pr.Created); err != nil {
		return nil, err
	}
	pr.Status = model.RequestStatus(status)
	pr.Created = pr.Created.UTC()
	return &pr, nil
}

var (
	_ ports.UserRepo     = (*UserRepository)(nil)
	_ ports.CategoryRepo = (*CategoryRepository)(nil)
	_ ports.EventRepo    = (*EventRepository)(nil)
	_ ports.RequestRepo  = (*RequestRepository)(nil)
)
