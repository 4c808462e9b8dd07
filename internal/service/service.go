package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sigef-backend/internal/cache"
	"sigef-backend/internal/ws"
	"sigef-backend/pkg/logger"
	"sigef-backend/pkg/validator"
)

var tracer = otel.Tracer("sigef-backend/service")

// ErrValidation is the kind behind every request validation failure.
var ErrValidation = errors.New("validation failed")

type ValidationError struct {
	Field string
	Tag   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: field '%s' failed on tag '%s'", e.Field, e.Tag)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// validate runs the struct validator and returns the first failure.
func validate(req interface{}) error {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return &ValidationError{Field: errs[0].FailedField, Tag: errs[0].Tag}
	}
	return nil
}

// Actor is the authenticated user behind a mutation, recorded in audit fields and events.
type Actor struct {
	ID    string
	Name  string
	Email string
}

func (a Actor) eventUser() *ws.EventUser {
	if a.ID == "" {
		return nil
	}
	return &ws.EventUser{ID: a.ID, Name: a.Name, Email: a.Email}
}

// Notifier receives an event after every committed write.
type Notifier interface {
	Notify(ev ws.Event)
}

// Deps are the collaborators shared by the services. Zero fields get no-op defaults.
type Deps struct {
	Locker   cache.Locker
	Cache    cache.ReportCache
	Notifier Notifier
	Log      *logrus.Logger
	Now      func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Locker == nil {
		d.Locker = cache.NoopLocker{}
	}
	if d.Cache == nil {
		d.Cache = cache.NoopReportCache{}
	}
	if d.Log == nil {
		d.Log = logrus.New()
		d.Log.SetOutput(io.Discard)
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// committed runs after a write transaction succeeds.
func (d Deps) committed(ctx context.Context, module string, ev ws.Event) {
	if err := d.Cache.Invalidate(ctx); err != nil {
		logger.LogError(d.Log, module, "committed", "report cache invalidation failed", ev.Entity, err)
	}
	if d.Notifier != nil {
		d.Notifier.Notify(ev)
	}
}

// startSpan opens a span named after the service method.
func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

// endSpan records err on the span, if any, and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
