package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/askhat-b/taxi-dispatch/internal/domain/models"
	"github.com/askhat-b/taxi-dispatch/internal/domain/types"
	"github.com/askhat-b/taxi-dispatch/pkg/logger"
	wrap "github.com/askhat-b/taxi-dispatch/pkg/logger/wrapper"
	"github.com/askhat-b/taxi-dispatch/pkg/metrics"
	"github.com/askhat-b/taxi-dispatch/pkg/rabbit"
)

const (
	ExchangeDispatchTopic = "dispatch_topic"

	QueueDriverOffers = "driver_offers"

	serviceName = "dispatch"
)

type DispatchBroker struct {
	client *rabbit.RabbitMQ

	l logger.Logger
}

func NewDispatchBroker(ctx context.Context, client *rabbit.RabbitMQ, l logger.Logger) (*DispatchBroker, error) {
	b := &DispatchBroker{
		client: client,
		l:      l,
	}

	if err := b.declareTopology(ctx); err != nil {
		return nil, err
	}

	return b, nil
}

// declareTopology makes sure the exchange and queues exist before anything
// publishes or consumes. Declarations are idempotent on the broker side.
func (b *DispatchBroker) declareTopology(ctx context.Context) error {
	const op = "DispatchBroker.declareTopology"

	if err := b.client.Channel.ExchangeDeclare(ExchangeDispatchTopic, "topic", true, false, false, false, nil); err != nil {
		return wrap.Error(ctx, fmt.Errorf("%s: declare exchange failed: %w", op, err))
	}

	q, err := b.client.Channel.QueueDeclare(QueueDriverOffers, true, false, false, false, nil)
	if err != nil {
		return wrap.Error(ctx, fmt.Errorf("%s: declare queue failed: %w", op, err))
	}

	if err := b.client.Channel.QueueBind(q.Name, "driver.offer.*", ExchangeDispatchTopic, false, nil); err != nil {
		return wrap.Error(ctx, fmt.Errorf("%s: bind queue failed: %w", op, err))
	}

	return nil
}

// публикует волну поиска водителей.
// отправляет в exchange 'dispatch_topic' с ключом 'ride.wave.{wave}'.
func (b *DispatchBroker) PublishWaveBroadcast(ctx context.Context, msg models.WaveBroadcastMessage) error {
	ctx = wrap.WithAction(ctx, "rabbitmq_publish_wave_broadcast")

	key := fmt.Sprintf("ride.wave.%d", msg.Wave)

	err := b.publish(ctx, key, msg.CorrelationID, msg)
	metrics.RecordRabbitMQPublish(serviceName, key, err)
	if err != nil {
		return wrap.Error(ctx, err)
	}
	return nil
}

// публикует событие об изменении статуса поездки.
// отправляет в exchange 'dispatch_topic' с ключом 'ride.status.{state}'.
func (b *DispatchBroker) PublishRideStatus(ctx context.Context, msg models.RideStatusMessage) error {
	ctx = wrap.WithAction(ctx, "rabbitmq_publish_ride_status")

	key := fmt.Sprintf("ride.status.%s", msg.State)

	err := b.publish(ctx, key, msg.CorrelationID, msg)
	metrics.RecordRabbitMQPublish(serviceName, key, err)
	if err != nil {
		return wrap.Error(ctx, err)
	}
	return nil
}

func (b *DispatchBroker) publish(ctx context.Context, routingKey, correlationID string, msg any) error {
	// Проверяем и восстанавливаем соединение
	if err := b.client.EnsureConnection(ctx); err != nil {
		b.l.Error(ctx, "ensure connection failed", err)
		return fmt.Errorf("%w: %w", types.ErrFailedToPublishMessage, err)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if correlationID == "" {
		correlationID = wrap.GetRequestID(ctx)
	}

	if err := retry(5, time.Second, func() error {
		return b.client.Channel.PublishWithContext(
			ctx,
			ExchangeDispatchTopic, // exchange
			routingKey,            // routing key
			false,                 // mandatory
			false,                 // immediate
			amqp.Publishing{
				ContentType:   "application/json",
				CorrelationId: correlationID,
				Body:          body,
				Timestamp:     time.Now(),
			},
		)
	}); err != nil {
		return fmt.Errorf("%w: %w", types.ErrFailedToPublishMessage, err)
	}

	return nil
}

// DriverOfferHandler обрабатывает предложение цены от водителя
type DriverOfferHandler func(ctx context.Context, msg models.DriverOfferMessage) error

// ConsumeDriverOffers слушает driver.offer.* события и передаёт их в обработчик fn.
func (b *DispatchBroker) ConsumeDriverOffers(ctx context.Context, fn DriverOfferHandler) error {
	ctx = wrap.WithAction(ctx, "rabbitmq_consume_driver_offers")

	// Основной цикл потребителя
	for {
		if ctx.Err() != nil {
			b.l.Debug(ctx, "consume driver offers stopped by context")
			return nil
		}

		// Проверяем и восстанавливаем соединение
		if err := b.client.EnsureConnection(ctx); err != nil {
			b.l.Error(ctx, "ensure connection failed", err)
			time.Sleep(2 * time.Second)
			continue
		}

		// Гарантируем наличие exchange и очереди после реконнекта
		if err := b.declareTopology(ctx); err != nil {
			b.l.Error(ctx, "declare topology failed", err)
			time.Sleep(3 * time.Second)
			continue
		}

		// Подписываемся на очередь
		msgs, err := b.client.Channel.Consume(QueueDriverOffers, "", false, false, false, false, nil)
		if err != nil {
			b.l.Error(ctx, "consume failed", err)
			time.Sleep(2 * time.Second)
			continue
		}

		b.l.Info(ctx, "start consuming driver offers", "queue", QueueDriverOffers)

		// Цикл чтения сообщений
	consumeLoop:
		for {
			select {
			case <-ctx.Done():
				b.l.Info(ctx, "driver offer consumer shutting down")
				return nil

			case msg, ok := <-msgs:
				if !ok {
					b.l.Warn(ctx, "message channel closed, reconnecting...")
					time.Sleep(2 * time.Second)
					break consumeLoop
				}

				go b.handleDriverOffer(ctx, fn, msg)
			}
		}
	}
}

func (b *DispatchBroker) handleDriverOffer(ctx context.Context, fn DriverOfferHandler, msg amqp.Delivery) {
	const op = "DispatchBroker.handleDriverOffer"

	var req models.DriverOfferMessage
	if err := json.Unmarshal(msg.Body, &req); err != nil {
		b.l.Error(ctx, "decode failed", err, "op", op)
		metrics.RecordRabbitMQConsume(serviceName, QueueDriverOffers, err)
		_ = msg.Nack(false, false)
		return
	}

	ctxx := wrap.WithRequestID(ctx, msg.CorrelationId)
	ctxx = wrap.WithRideID(ctxx, req.RideID.String())
	ctxx = wrap.WithDriverID(ctxx, req.DriverID.String())

	// Вызываем бизнес-обработчик
	err := fn(ctxx, req)
	metrics.RecordRabbitMQConsume(serviceName, QueueDriverOffers, err)
	if err != nil {
		b.l.Error(ctxx, "failed to handle driver offer", err, "op", op)

		// Гонки и закрытые поездки не требуют повторной доставки
		if !isRecoverableError(err) {
			b.l.Warn(ctxx, "dropping message", "reason", err.Error())
			_ = msg.Reject(false)
			return
		}

		_ = msg.Nack(false, true)
		return
	}

	// Успешно обработано
	if err := msg.Ack(false); err != nil {
		b.l.Warn(ctxx, "ack failed", err, "op", op)
	}
}
