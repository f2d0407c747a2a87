// Package events broadcasts screening progress updates over RabbitMQ so
// dashboards can follow a batch without polling.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

const exchangeName = "screening.progress"

// ProgressEvent is the payload published after every recorded resume outcome
// and on batch initialization.
type ProgressEvent struct {
	JobID       string  `json:"job_id"`
	Filename    string  `json:"filename,omitempty"`
	Outcome     string  `json:"outcome,omitempty"`
	Status      string  `json:"status"`
	Processed   int     `json:"processed"`
	Total       int     `json:"total"`
	Percentage  float64 `json:"percentage"`
	ScreeningID string  `json:"screening_id,omitempty"`
}

// Publisher pushes progress events to a topic exchange. A nil Publisher is
// valid and drops every event, so event delivery stays optional.
type Publisher struct {
	conn   *amqp.Connection
	logger *zap.Logger
}

// Connect dials the broker and declares the progress exchange.
func Connect(url string, logger *zap.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dialing rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declaring exchange %s: %w", exchangeName, err)
	}

	return &Publisher{conn: conn, logger: logger}, nil
}

// Publish sends the event with routing key "job.<job_id>". Delivery is best
// effort. Failures are logged and swallowed so screening never stalls on a
// broker outage.
func (p *Publisher) Publish(event ProgressEvent) {
	if p == nil {
		return
	}

	ch, err := p.conn.Channel()
	if err != nil {
		p.logger.Warn("progress event dropped", zap.String("job_id", event.JobID), zap.Error(err))
		return
	}
	defer ch.Close()

	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("progress event dropped", zap.String("job_id", event.JobID), zap.Error(err))
		return
	}

	err = ch.Publish(
		exchangeName,
		fmt.Sprintf("job.%s", event.JobID),
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		p.logger.Warn("progress event dropped", zap.String("job_id", event.JobID), zap.Error(err))
	}
}

// Close shuts the broker connection down.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.conn.Close()
}
