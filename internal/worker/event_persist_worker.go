package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"resume-agent/internal/model"
	"resume-agent/internal/repository"
)

// EventPersistWorker drains the turn and usage queues into MySQL so the hot
// path never blocks on a database write.
type EventPersistWorker struct {
	conn       *amqp.Connection
	turns      *repository.TurnRepository
	events     *repository.UsageEventRepository
	turnQueue  string
	eventQueue string
	log        *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewEventPersistWorker(
	conn *amqp.Connection,
	turns *repository.TurnRepository,
	events *repository.UsageEventRepository,
	turnQueue, eventQueue string,
	log *zap.Logger,
) *EventPersistWorker {
	return &EventPersistWorker{
		conn:       conn,
		turns:      turns,
		events:     events,
		turnQueue:  turnQueue,
		eventQueue: eventQueue,
		log:        log,
	}
}

func (w *EventPersistWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	if err := w.consume(workerCtx, w.turnQueue, w.persistTurn); err != nil {
		cancel()
		return err
	}
	if err := w.consume(workerCtx, w.eventQueue, w.persistEvent); err != nil {
		cancel()
		return err
	}
	return nil
}

func (w *EventPersistWorker) consume(ctx context.Context, queueName string, handle func(context.Context, []byte) error) error {
	ch, err := w.conn.Channel()
	if err != nil {
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	deliveries, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				if err := handle(ctx, d.Body); err != nil {
					w.log.Warn("worker persist failed", zap.String("queue", queueName), zap.Error(err))
					_ = d.Nack(false, false)
					continue
				}
				_ = d.Ack(false)
			}
		}
	}()
	return nil
}

func (w *EventPersistWorker) persistTurn(ctx context.Context, body []byte) error {
	var turn model.ChatTurn
	if err := json.Unmarshal(body, &turn); err != nil {
		return fmt.Errorf("decode turn failed: %w", err)
	}
	return w.turns.Create(ctx, &turn)
}

func (w *EventPersistWorker) persistEvent(ctx context.Context, body []byte) error {
	var event model.UsageEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("decode usage event failed: %w", err)
	}
	return w.events.Create(ctx, &event)
}

func (w *EventPersistWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
