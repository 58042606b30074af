package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/event-participation/internal/memstore"
	"github.com/Shivanand-hulikatti/event-participation/internal/model"
	"github.com/Shivanand-hulikatti/event-participation/internal/service"
	"github.com/Shivanand-hulikatti/event-participation/internal/service/ports"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) http.Handler {
	h, _ := newTestRouterWithStore(t, 5*time.Second)
	return h
}

func newTestRouterWithStore(t *testing.T, timeout time.Duration) (http.Handler, *memstore.Store) {
	t.Helper()
	log, _ := test.NewNullLogger()
	store := memstore.New()
	return NewRouter(Services{
		Admission: service.NewAdmissionService(store, store.Users(), store.Events(), store.Requests(), log),
		Events:    service.NewEventService(store, store.Users(), store.Categories(), store.Events(), nil, "ewm-main-service", log),
		Directory: service.NewDirectoryService(store.Users(), store.Categories(), log),
	}, timeout, log), store
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func createUser(t *testing.T, h http.Handler, name string) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/admin/users", model.NewUserRequest{Name: name, Email: name + "@example.com"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[model.User](t, rec).ID
}

func createPublishedEvent(t *testing.T, h http.Handler, owner string, limit int) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/admin/categories", model.NewCategoryRequest{Name: "talks-" + owner})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cat := decode[model.Category](t, rec)

	moderated := true
	rec = do(t, h, http.MethodPost, "/users/"+owner+"/events", model.NewEventRequest{
		Category:          cat.ID,
		Title:             "Go meetup",
		Annotation:        "Monthly meetup for Go developers",
		Description:       "Two talks, pizza and plenty of time to chat afterwards.",
		EventDate:         time.Now().Add(72 * time.Hour),
		RequestModeration: &moderated,
		ParticipantLimit:  limit,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[model.EventView](t, rec).ID

	rec = do(t, h, http.MethodGet, "/events/"+id, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPatch, "/admin/events/"+id, model.UpdateEventRequest{StateAction: model.ActionPublishEvent})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.EventPublished, decode[model.EventView](t, rec).State)
	return id
}

func TestHealthCheck(t *testing.T) {
	rec := do(t, newTestRouter(t), http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRequestLifecycle(t *testing.T) {
	h := newTestRouter(t)
	owner := createUser(t, h, "owner")
	guest := createUser(t, h, "guest")
	eventID := createPublishedEvent(t, h, owner, 0)

	rec := do(t, h, http.MethodGet, "/events/"+eventID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/users/"+guest+"/requests?eventId="+eventID, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	pr := decode[model.ParticipationRequest](t, rec)
	assert.Equal(t, model.RequestConfirmed, pr.Status)

	rec = do(t, h, http.MethodPost, "/users/"+guest+"/requests?eventId="+eventID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPost, "/users/"+owner+"/requests?eventId="+eventID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodGet, "/users/"+guest+"/requests", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.ParticipationRequest](t, rec), 1)

	rec = do(t, h, http.MethodPatch, "/users/"+guest+"/requests/"+pr.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.RequestCanceled, decode[model.ParticipationRequest](t, rec).Status)

	rec = do(t, h, http.MethodPatch, "/users/"+guest+"/requests/"+pr.ID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodGet, "/users/"+owner+"/events/"+eventID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[model.EventView](t, rec).ConfirmedCount)
}

func TestUpdateStatuses_LimitReachedReturnsPartialResult(t *testing.T) {
	h := newTestRouter(t)
	owner := createUser(t, h, "owner")
	eventID := createPublishedEvent(t, h, owner, 1)

	var ids []string
	for _, name := range []string{"first", "second"} {
		rec := do(t, h, http.MethodPost, "/users/"+createUser(t, h, name)+"/requests?eventId="+eventID, nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		pr := decode[model.ParticipationRequest](t, rec)
		require.Equal(t, model.RequestPending, pr.Status)
		ids = append(ids, pr.ID)
	}

	path := "/users/" + owner + "/events/" + eventID + "/requests"
	rec := do(t, h, http.MethodPatch, path, model.StatusUpdateRequest{RequestIDs: ids, Status: model.RequestConfirmed})

	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	body := decode[limitReachedResponse](t, rec)
	assert.NotEmpty(t, body.Error)
	require.Len(t, body.Confirmed, 1)
	assert.Equal(t, ids[0], body.Confirmed[0].ID)
	assert.Empty(t, body.Rejected)

	rec = do(t, h, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	statuses := map[string]model.RequestStatus{}
	for _, pr := range decode[[]model.ParticipationRequest](t, rec) {
		statuses[pr.ID] = pr.Status
	}
	assert.Equal(t, model.RequestConfirmed, statuses[ids[0]])
	assert.Equal(t, model.RequestPending, statuses[ids[1]])

	rec = do(t, h, http.MethodPatch, path, model.StatusUpdateRequest{RequestIDs: ids[1:], Status: model.RequestRejected})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[model.StatusUpdateResult](t, rec)
	assert.Empty(t, res.Confirmed)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, model.RequestRejected, res.Rejected[0].Status)
}

func TestBadInput(t *testing.T) {
	h := newTestRouter(t)
	owner := createUser(t, h, "owner")
	eventID := createPublishedEvent(t, h, owner, 5)
	bulk := "/users/" + owner + "/events/" + eventID + "/requests"

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"missing event id", http.MethodPost, "/users/" + owner + "/requests", nil, http.StatusBadRequest},
		{"empty id list", http.MethodPatch, bulk, `{"requestIds":[],"status":"CONFIRMED"}`, http.StatusBadRequest},
		{"bad status", http.MethodPatch, bulk, `{"requestIds":["x"],"status":"CANCELED"}`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/admin/users", `{"name":"Bob","email":"bob@example.com","age":3}`, http.StatusBadRequest},
		{"bad email", http.MethodPost, "/admin/users", `{"name":"Bob","email":"bob"}`, http.StatusBadRequest},
		{"malformed json", http.MethodPost, "/admin/categories", `{"name":`, http.StatusBadRequest},
		{"unknown state action", http.MethodPatch, "/admin/events/" + eventID, `{"stateAction":"ARCHIVE"}`, http.StatusBadRequest},
		{"unknown user", http.MethodGet, "/users/nobody/requests", nil, http.StatusNotFound},
		{"unknown event", http.MethodGet, "/events/nope", nil, http.StatusNotFound},
		{"foreign request id", http.MethodPatch, bulk, `{"requestIds":["nope"],"status":"CONFIRMED"}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[model.ErrorResponse](t, rec).Error)
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{model.ErrEventNotFound, http.StatusNotFound},
		{model.ErrLimitReached, http.StatusConflict},
		{fmt.Errorf("%w (limit 1, confirmed 2)", model.ErrLimitBelowCount), http.StatusConflict},
		{model.ErrEmptyRequestIDs, http.StatusBadRequest},
		{model.ErrServiceUnavailable, http.StatusServiceUnavailable},
		{fmt.Errorf("create request: lock event e1: %w", context.DeadlineExceeded), http.StatusInternalServerError},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestWriteServiceError_HidesInternalErrors(t *testing.T) {
	log, hook := test.NewNullLogger()
	rec := httptest.NewRecorder()

	writeServiceError(rec, log, errors.New("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, strings.Contains(rec.Body.String(), "password"))
	require.NotNil(t, hook.LastEntry())
	assert.Contains(t, hook.LastEntry().Data["error"].(error).Error(), "password")
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.7:52311"
	assert.Equal(t, "203.0.113.7", clientIP(r))

	r.RemoteAddr = "203.0.113.8"
	assert.Equal(t, "203.0.113.8", clientIP(r))
}

func TestGetUser(t *testing.T) {
	h := newTestRouter(t)
	id := createUser(t, h, "ann")

	rec := do(t, h, http.MethodGet, "/admin/users/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	u := decode[model.User](t, rec)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, "ann@example.com", u.Email)

	rec = do(t, h, http.MethodGet, "/admin/users/nobody", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEventJSON_UsesCamelCase(t *testing.T) {
	h := newTestRouter(t)
	owner := createUser(t, h, "owner")
	eventID := createPublishedEvent(t, h, owner, 3)

	rec := do(t, h, http.MethodGet, "/users/"+owner+"/events/"+eventID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[map[string]any](t, rec)

	for _, key := range []string{
		"category", "initiator", "participantLimit", "requestModeration",
		"confirmedRequests", "createdOn", "publishedOn", "eventDate",
	} {
		assert.Contains(t, body, key)
	}
	for _, key := range []string{"participant_limit", "request_moderation", "confirmed_requests", "event_date"} {
		assert.NotContains(t, body, key)
	}
	assert.Equal(t, float64(3), body["participantLimit"])
}

func TestCreateRequest_LockWaitPastDeadlineIs504(t *testing.T) {
	h, store := newTestRouterWithStore(t, 100*time.Millisecond)
	owner := createUser(t, h, "owner")
	guest := createUser(t, h, "guest")
	eventID := createPublishedEvent(t, h, owner, 0)

	ctx := context.Background()
	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- store.InTx(ctx, func(tx ports.Tx) error {
			if _, err := tx.LockEvent(ctx, eventID); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	rec := do(t, h, http.MethodPost, "/users/"+guest+"/requests?eventId="+eventID, nil)
	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/users/"+guest+"/requests?eventId="+eventID, nil)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestWriteServiceError_LeavesDeadlineToTimeoutMiddleware(t *testing.T) {
	log, hook := test.NewNullLogger()
	rec := httptest.NewRecorder()

	writeServiceError(rec, log, fmt.Errorf("lock event e1: %w", context.DeadlineExceeded))

	assert.Empty(t, rec.Body.String())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "request deadline exceeded", hook.LastEntry().Message)

	rec = httptest.NewRecorder()
	writeServiceError(rec, log, fmt.Errorf("%w: stats: %w", model.ErrServiceUnavailable, context.DeadlineExceeded))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
