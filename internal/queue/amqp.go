package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// Channel is the subset of *amqp.Channel used here.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// Publisher sends a payload to a topic.
type Publisher interface {
	Publish(topic string, payload any) error
}

// AMQPPublisher publishes JSON payloads to durable RabbitMQ queues named
// after the topic.
type AMQPPublisher struct {
	mu       sync.Mutex
	ch       Channel
	declared map[string]bool
}

func NewAMQPPublisher(ch Channel) *AMQPPublisher {
	return &AMQPPublisher{ch: ch, declared: make(map[string]bool)}
}

// DialAMQP connects to RabbitMQ and opens a channel.
func DialAMQP(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	return conn, ch, nil
}

func (p *AMQPPublisher) Publish(topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", topic, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.declare(topic); err != nil {
		return err
	}
	return p.ch.Publish("", topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

func (p *AMQPPublisher) declare(topic string) error {
	if p.declared[topic] {
		return nil
	}
	if _, err := declareQueue(p.ch, topic); err != nil {
		return err
	}
	p.declared[topic] = true
	return nil
}

func (p *AMQPPublisher) Close() error {
	return p.ch.Close()
}

func declareQueue(ch Channel, name string) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(
		name,  // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return amqp.Queue{}, fmt.Errorf("failed to declare queue %s: %w", name, err)
	}
	return q, nil
}

// Forward mirrors every payload published on topic in q to pub.
func Forward(q Queue, topic string, pub Publisher, logger *zap.Logger) (func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return q.Subscribe(topic, func(payload any) error {
		if err := pub.Publish(topic, payload); err != nil {
			logger.Error("forward failed", zap.String("topic", topic), zap.Error(err))
			return err
		}
		return nil
	})
}

// Consume delivers each message body on topic to handler until ctx is done
// or the channel closes. Messages are acked on success and dropped on error.
func Consume(ctx context.Context, ch Channel, topic string, handler func(body []byte) error, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	q, err := declareQueue(ch, topic)
	if err != nil {
		return err
	}
	msgs, err := ch.Consume(
		q.Name,
		"",
		false, // autoAck = false, ack after handling
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			if err := handler(d.Body); err != nil {
				logger.Warn("message rejected", zap.String("topic", topic), zap.Error(err))
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}
