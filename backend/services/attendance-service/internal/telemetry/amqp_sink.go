package telemetry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rabbitmq/amqp091-go"

	"fieldattendance/backend/services/attendance-service/internal/models"
)

// Publisher is the *amqp091.Channel method used by AMQPSink.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// AMQPSink publishes events to a topic exchange under
// attendance.<status>.<worker id>.
type AMQPSink struct {
	channel  Publisher
	exchange string
}

// NewAMQPSink returns a sink publishing to exchange.
func NewAMQPSink(channel Publisher, exchange string) *AMQPSink {
	return &AMQPSink{channel: channel, exchange: exchange}
}

// RoutingKey returns the topic key for event.
func RoutingKey(event models.Event) string {
	return fmt.Sprintf("attendance.%s.%s", event.Kind, event.WorkerID)
}

// Send implements Sink.
func (s *AMQPSink) Send(ctx context.Context, event models.Event) error {
	const op = "AMQPSink.Send"

	body, err := json.Marshal(event.Payload())
	if err != nil {
		return fmt.Errorf("%s: marshal event: %w", op, err)
	}

	if err := s.channel.PublishWithContext(
		ctx,
		s.exchange,
		RoutingKey(event),
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    event.ID,
			Timestamp:    event.Timestamp,
			Body:         body,
		},
	); err != nil {
		return fmt.Errorf("%s: publish: %w", op, err)
	}
	return nil
}
