package notification

import (
	"context"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-assignment-api/internal/observability"
)

const sourceName = "assignment-service"

// Dispatcher sends events to every configured transport.
// Delivery failures are logged and never returned.
type Dispatcher struct {
	publishers []Publisher
	sanitizer  *bluemonday.Policy
	logger     zerolog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// NewDispatcher builds a dispatcher. With no publishers events are only logged.
func NewDispatcher(logger zerolog.Logger, publishers ...Publisher) *Dispatcher {
	active := make([]Publisher, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			active = append(active, p)
		}
	}
	return &Dispatcher{
		publishers: active,
		sanitizer:  bluemonday.StrictPolicy(),
		logger:     logger.With().Str("component", "notification_dispatcher").Logger(),
		tracer:     otel.Tracer("github.com/noah-isme/gema-assignment-api/internal/notification"),
		now:        time.Now,
	}
}

// Notify delivers event on a best effort basis.
func (d *Dispatcher) Notify(ctx context.Context, event Event) {
	event.Title = d.plainText(event.Title)
	event.Body = d.plainText(event.Body)
	if event.Channel == "" {
		event.Channel = ChannelInApp
	}
	if event.Source == "" {
		event.Source = sourceName
	}
	if event.SentAt.IsZero() {
		event.SentAt = d.now().UTC()
	}
	if event.RequestID == "" {
		event.RequestID = observability.CorrelationID(ctx)
	}

	ctx, span := d.tracer.Start(ctx, "notifications.dispatch", trace.WithAttributes(
		attribute.String("notification.type", event.Type),
		attribute.Int64("notification.user_id", int64(event.TargetUserID)),
	))
	defer span.End()

	if len(d.publishers) == 0 {
		d.logger.Debug().Str("type", event.Type).Uint("user_id", event.TargetUserID).Msg("no notification transport configured")
		return
	}

	for _, publisher := range d.publishers {
		if err := publisher.Publish(ctx, event); err != nil {
			span.RecordError(err)
			observability.NotificationsPublished().WithLabelValues(publisher.Name(), "error").Inc()
			d.logger.Warn().
				Err(err).
				Str("transport", publisher.Name()).
				Str("type", event.Type).
				Uint("user_id", event.TargetUserID).
				Msg("failed to publish notification")
			continue
		}
		observability.NotificationsPublished().WithLabelValues(publisher.Name(), "ok").Inc()
	}
}

// plainText strips markup from s. Events carry plain text, so the entities
// bluemonday emits are decoded again.
func (d *Dispatcher) plainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(d.sanitizer.Sanitize(s)))
}
