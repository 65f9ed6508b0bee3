// Package notify fans out route alerts to subscribers over NATS.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/kjstillabower/rain-route-planner/internal/models"
	"github.com/kjstillabower/rain-route-planner/internal/observability"
)

// DefaultSubjectPrefix is prepended to the severity to form the subject, e.g. "route.alerts.high".
const DefaultSubjectPrefix = "route.alerts"

// AlertEvent is the JSON payload published per alert.
type AlertEvent struct {
	Source        string       `json:"source"`
	Destination   string       `json:"destination"`
	Alert         models.Alert `json:"alert"`
	CorrelationID string       `json:"correlationId,omitempty"`
	PublishedAt   time.Time    `json:"publishedAt"`
}

// conn is the part of *nats.Conn the publisher needs.
type conn interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes alerts of selected severities on "<prefix>.<severity>".
type NATSPublisher struct {
	conn       conn
	nc         *nats.Conn
	prefix     string
	severities map[models.Severity]bool
	logger     *zap.Logger
}

// Connect dials NATS with reconnects enabled. severities defaults to high only.
func Connect(url, prefix string, severities []models.Severity, logger *zap.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("rain-route-planner"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	p := newPublisher(nc, prefix, severities, logger)
	p.nc = nc
	return p, nil
}

func newPublisher(c conn, prefix string, severities []models.Severity, logger *zap.Logger) *NATSPublisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if len(severities) == 0 {
		severities = []models.Severity{models.SeverityHigh}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	set := make(map[models.Severity]bool, len(severities))
	for _, s := range severities {
		set[s] = true
	}
	return &NATSPublisher{conn: c, prefix: prefix, severities: set, logger: logger}
}

// Subject returns the subject an alert of severity s is published on.
func (p *NATSPublisher) Subject(s models.Severity) string {
	return p.prefix + "." + string(s)
}

// PublishAlerts publishes every alert whose severity is selected. Failures are
// logged and counted; they never fail the route check.
func (p *NATSPublisher) PublishAlerts(ctx context.Context, source, destination string, alerts []models.Alert) {
	corrID := observability.CorrelationID(ctx)
	now := time.Now().UTC()
	for _, a := range alerts {
		if !p.severities[a.Severity] {
			continue
		}
		data, err := json.Marshal(AlertEvent{
			Source:        source,
			Destination:   destination,
			Alert:         a,
			CorrelationID: corrID,
			PublishedAt:   now,
		})
		if err != nil {
			observability.AlertPublishTotal.WithLabelValues("error").Inc()
			p.logger.Warn("encode alert event", zap.Error(err))
			continue
		}
		if err := p.conn.Publish(p.Subject(a.Severity), data); err != nil {
			observability.AlertPublishTotal.WithLabelValues("error").Inc()
			p.logger.Warn("publish alert",
				zap.String("location", a.LocationName),
				zap.String("correlation_id", corrID),
				zap.Error(err),
			)
			continue
		}
		observability.AlertPublishTotal.WithLabelValues("success").Inc()
	}
}

// Connected reports whether the underlying connection is up (for health checks).
func (p *NATSPublisher) Connected() bool {
	return p.nc != nil && p.nc.IsConnected()
}

// Flush waits until buffered publishes reach the server or ctx is done.
func (p *NATSPublisher) Flush(ctx context.Context) error {
	if p.nc == nil || !p.nc.IsConnected() {
		return nil
	}
	if err := p.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	return nil
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
	}
}
