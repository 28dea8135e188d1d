// Package mq publishes stock events to RabbitMQ.
package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/millbrook-supply/api/internal/domain"
	"github.com/millbrook-supply/api/internal/repositories"
)

// StockPublisher emits stock change events onto a topic exchange. Routing
// keys follow "stock.<direction>" so consumers can bind to a subset.
type StockPublisher struct {
	conn     *amqp.Connection
	exchange string

	mu      sync.Mutex
	channel *amqp.Channel
}

// NewStockPublisher dials the broker and declares the exchange.
func NewStockPublisher(url, exchange string) (*StockPublisher, error) {
	if url == "" {
		return nil, errors.New("mq: broker url is required")
	}
	if exchange == "" {
		exchange = "millbrook.stock"
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("mq: dial %s: %w", url, err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("mq: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("mq: declare exchange %s: %w", exchange, err)
	}

	return &StockPublisher{conn: conn, exchange: exchange, channel: ch}, nil
}

var _ repositories.StockEventPublisher = (*StockPublisher)(nil)

// PublishStockEvent serialises the event as JSON and publishes it with a
// persistent delivery mode.
func (p *StockPublisher) PublishStockEvent(ctx context.Context, event domain.StockEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("mq: marshal stock event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel == nil || p.channel.IsClosed() {
		ch, err := p.conn.Channel()
		if err != nil {
			return fmt.Errorf("mq: reopen channel: %w", err)
		}
		p.channel = ch
	}

	routingKey := "stock." + string(event.Direction)
	return p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

// Close releases the channel and connection.
func (p *StockPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
