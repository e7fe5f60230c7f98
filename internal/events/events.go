// Package events publishes batch lifecycle events to NATS for external
// progress consumers. Publishing is best-effort: a failed publish is
// logged and never affects the dispatch loop.
package events

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/festal-inc/haishin/internal/domain"
)

// Subjects for batch lifecycle events.
const (
	SubjectJobStarted   = "haishin.jobs.started"
	SubjectJobResult    = "haishin.jobs.result"
	SubjectJobCompleted = "haishin.jobs.completed"
)

// JobStartedEvent announces that a batch began dispatching.
type JobStartedEvent struct {
	JobID       string    `json:"job_id"`
	SenderEmail string    `json:"sender_email"`
	Total       int       `json:"total"`
	StartedAt   time.Time `json:"started_at"`
}

// JobResultEvent carries one ledger entry as it is recorded.
type JobResultEvent struct {
	JobID  string                `json:"job_id"`
	Result domain.DispatchResult `json:"result"`
}

// JobCompletedEvent announces a finished batch with its outcome counts.
type JobCompletedEvent struct {
	JobID     string    `json:"job_id"`
	Total     int       `json:"total"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	DoneAt    time.Time `json:"done_at"`
}

// Publisher emits batch lifecycle events.
type Publisher interface {
	JobStarted(e JobStartedEvent)
	JobResult(e JobResultEvent)
	JobCompleted(e JobCompletedEvent)
}

// NATSPublisher publishes events to a NATS connection.
type NATSPublisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// Connect dials NATS and returns a publisher over the connection.
func Connect(url string, logger *slog.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("haishin"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return NewNATSPublisher(conn, logger), nil
}

// NewNATSPublisher wraps an existing NATS connection.
func NewNATSPublisher(conn *nats.Conn, logger *slog.Logger) *NATSPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSPublisher{conn: conn, logger: logger}
}

// Close drains the underlying connection.
func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.logger.Warn("events: drain failed", "error", err)
	}
}

func (p *NATSPublisher) JobStarted(e JobStartedEvent)     { p.publish(SubjectJobStarted, e) }
func (p *NATSPublisher) JobResult(e JobResultEvent)       { p.publish(SubjectJobResult, e) }
func (p *NATSPublisher) JobCompleted(e JobCompletedEvent) { p.publish(SubjectJobCompleted, e) }

func (p *NATSPublisher) publish(subject string, event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("events: marshal failed", "subject", subject, "error", err)
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Warn("events: publish failed", "subject", subject, "error", err)
	}
}

// Noop discards all events. Used when no NATS URL is configured.
type Noop struct{}

func (Noop) JobStarted(JobStartedEvent)     {}
func (Noop) JobResult(JobResultEvent)       {}
func (Noop) JobCompleted(JobCompletedEvent) {}
