// Package events publishes run and job lifecycle events to NATS when
// configured. Event publishing is best effort: a broker outage never affects
// run outcomes.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/matrixci/internal/config"
	"git.home.luguber.info/inful/matrixci/internal/logfields"
)

// Event types published on the configured subject.
const (
	TypeRunStarted  = "run.started"
	TypeRunFinished = "run.finished"
	TypeJobFinished = "job.finished"
)

// Event is the wire form of a lifecycle event.
type Event struct {
	Type      string    `json:"type"`
	RunID     string    `json:"run_id"`
	JobID     string    `json:"job_id,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	Tolerated bool      `json:"tolerated,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher publishes lifecycle events. The zero value (or a nil pointer) is
// a disabled publisher; all methods are safe on it.
type Publisher struct {
	conn    *nats.Conn
	subject string
}

// NewPublisher connects to NATS using the events configuration. Returns a nil
// publisher when event publishing is disabled.
func NewPublisher(cfg config.EventsConfig) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	conn, err := nats.Connect(cfg.NATSURL,
		nats.Name("matrixci"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	slog.Info("Event publisher connected", logfields.URL(cfg.NATSURL), slog.String("subject", cfg.Subject))
	return &Publisher{conn: conn, subject: cfg.Subject}, nil
}

// RunStarted publishes a run-started event.
func (p *Publisher) RunStarted(runID string) {
	p.publish(Event{Type: TypeRunStarted, RunID: runID, Timestamp: time.Now()})
}

// RunFinished publishes a run-finished event with the overall outcome.
func (p *Publisher) RunFinished(runID, outcome string) {
	p.publish(Event{Type: TypeRunFinished, RunID: runID, Outcome: outcome, Timestamp: time.Now()})
}

// JobFinished publishes a job-finished event.
func (p *Publisher) JobFinished(runID, jobID, outcome string, tolerated bool) {
	p.publish(Event{Type: TypeJobFinished, RunID: runID, JobID: jobID, Outcome: outcome, Tolerated: tolerated, Timestamp: time.Now()})
}

func (p *Publisher) publish(ev Event) {
	if p == nil || p.conn == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Warn("Failed to marshal lifecycle event", logfields.Error(err))
		return
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		slog.Warn("Failed to publish lifecycle event",
			slog.String("type", ev.Type), logfields.Error(err))
	}
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
