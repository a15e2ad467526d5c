package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"resume-agent/internal/model"
)

// EventPublisher pushes chat turns and usage events onto durable queues so
// the request path never waits on the database.
type EventPublisher struct {
	conn       *amqp.Connection
	turnQueue  string
	eventQueue string
}

func NewEventPublisher(conn *amqp.Connection, turnQueue, eventQueue string) *EventPublisher {
	return &EventPublisher{
		conn:       conn,
		turnQueue:  turnQueue,
		eventQueue: eventQueue,
	}
}

func (p *EventPublisher) PublishTurn(ctx context.Context, turn model.ChatTurn) error {
	return p.publish(ctx, p.turnQueue, turn)
}

func (p *EventPublisher) PublishUsage(ctx context.Context, event model.UsageEvent) error {
	return p.publish(ctx, p.eventQueue, event)
}

func (p *EventPublisher) publish(ctx context.Context, queue string, payload any) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue failed: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal queue payload failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		queue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish to %s failed: %w", queue, err)
	}
	return nil
}
