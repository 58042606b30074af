// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the storage layer.
//
// Every operation that changes an event's confirmed counter or the status of
// one of its participation requests runs inside a single ports.Transactor
// unit that first locks the event. Domain errors from internal/model are
// returned unwrapped so handlers can map them with errors.Is; anything else is
// wrapped with the name of the failing operation.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/event-participation/internal/model"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/Shivanand-hulikatti/event-participation/internal/service"

// newID returns a time-ordered identifier so that sorting ids sorts by
// creation time.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// endSpan records err on span (if any) and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// wrap passes domain errors through untouched and annotates the rest.
func wrap(op string, err error) error {
	if err == nil || model.IsDomain(err) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

func utcNow() time.Time {
	return time.Now().UTC()
}

// logOutcome logs a finished operation: domain errors are expected business
// outcomes and go to warn, everything else that failed goes to error.
func logOutcome(entry logrus.FieldLogger, err error, msg string) {
	switch {
	case err == nil:
		entry.Info(msg)
	case model.IsDomain(err):
		entry.WithError(err).Warn(msg + " rejected")
	default:
		entry.WithError(err).Error(msg + " failed")
	}
}
