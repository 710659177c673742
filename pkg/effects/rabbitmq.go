package effects

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/jordanlanch/leadflow/pkg/logger"
)

// Topology names
const (
	ExchangeName = "leadflow.effects"
	QueueName    = "leadflow.effects"
	DLXName      = "leadflow.effects.dlx"
	DLQName      = "leadflow.effects.dlq"
	RoutingKey   = "effect"
)

// RabbitMQQueue publishes effects to a durable queue. Unhandled effects are
// dead-lettered to DLQName.
type RabbitMQQueue struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	mu     sync.Mutex
	logger logger.Logger
}

// NewRabbitMQQueue dials url and declares the exchange, queue and dead
// letter topology
func NewRabbitMQQueue(url string, log logger.Logger) (*RabbitMQQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := setupTopology(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare topology: %w", err)
	}

	log.Info("effects queue connected", "queue", QueueName)
	return &RabbitMQQueue{conn: conn, ch: ch, logger: log}, nil
}

func setupTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(DLXName, "direct", true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(DLQName, true, false, false, false, nil); err != nil {
		return err
	}
	if err := ch.QueueBind(DLQName, RoutingKey, DLXName, false, nil); err != nil {
		return err
	}

	args := amqp.Table{
		"x-dead-letter-exchange":    DLXName,
		"x-dead-letter-routing-key": RoutingKey,
	}
	if err := ch.ExchangeDeclare(ExchangeName, "direct", true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, args); err != nil {
		return err
	}
	return ch.QueueBind(QueueName, RoutingKey, ExchangeName, false, nil)
}

// Enqueue publishes e as a persistent JSON message
func (q *RabbitMQQueue) Enqueue(ctx context.Context, e Effect) error {
	if err := e.Validate(); err != nil {
		return err
	}
	msg, err := encode(e)
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.ch.PublishWithContext(ctx, ExchangeName, RoutingKey, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish effect: %w", err)
	}
	return nil
}

// Consume handles deliveries until ctx is done or the channel closes.
// Failed effects are rejected without requeue.
func (q *RabbitMQQueue) Consume(ctx context.Context, h Handler) error {
	if err := q.ch.Qos(10, 0, false); err != nil {
		return fmt.Errorf("failed to set prefetch: %w", err)
	}
	deliveries, err := q.ch.ConsumeWithContext(ctx, QueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	q.logger.Info("effects consumer started", "queue", QueueName)
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("effects delivery channel closed")
			}
			q.handleDelivery(ctx, d, h)
		}
	}
}

func (q *RabbitMQQueue) handleDelivery(ctx context.Context, d amqp.Delivery, h Handler) {
	e, err := decode(d.Body)
	if err != nil {
		q.logger.Error("malformed effect", "error", err)
		_ = d.Nack(false, false)
		return
	}

	if err := h(ctx, e); err != nil {
		q.logger.Error("effect failed", "kind", e.Kind, "send_id", e.SendID, "campaign_id", e.CampaignID, "error", err)
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

// Close closes the channel and connection
func (q *RabbitMQQueue) Close() error {
	if err := q.ch.Close(); err != nil {
		q.conn.Close()
		return err
	}
	return q.conn.Close()
}

func encode(e Effect) (amqp.Publishing, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to encode effect: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Type:         string(e.Kind),
	}, nil
}

func decode(body []byte) (Effect, error) {
	var e Effect
	if err := json.Unmarshal(body, &e); err != nil {
		return Effect{}, fmt.Errorf("failed to decode effect: %w", err)
	}
	if err := e.Validate(); err != nil {
		return Effect{}, err
	}
	return e, nil
}
