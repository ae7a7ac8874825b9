package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	exchangeName = "booking.events"

	RoutingKeyBookingConfirmed = "booking.confirmed"
	RoutingKeyBookingCancelled = "booking.cancelled"
)

// BookingEvent は予約イベントのペイロード
type BookingEvent struct {
	BookingID  string    `json:"booking_id"`
	UserID     string    `json:"user_id"`
	TrainID    string    `json:"train_id"`
	Class      string    `json:"class"`
	Quota      string    `json:"quota"`
	SeatCount  int       `json:"seat_count"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher は予約イベントの発行インターフェース
type Publisher interface {
	PublishBookingConfirmed(ctx context.Context, event BookingEvent) error
	PublishBookingCancelled(ctx context.Context, event BookingEvent) error
	Close() error
}

// AMQPPublisher は RabbitMQ への予約イベント発行を担う
type AMQPPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewAMQPPublisher はRabbitMQに接続しexchangeを宣言する
func NewAMQPPublisher(url string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("RabbitMQ接続に失敗しました: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("チャネル作成に失敗しました: %w", err)
	}

	if err := ch.ExchangeDeclare(
		exchangeName,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("exchange宣言に失敗しました: %w", err)
	}

	return &AMQPPublisher{conn: conn, channel: ch}, nil
}

// PublishBookingConfirmed は予約確定イベントを発行する
func (p *AMQPPublisher) PublishBookingConfirmed(ctx context.Context, event BookingEvent) error {
	return p.publish(ctx, RoutingKeyBookingConfirmed, event)
}

// PublishBookingCancelled は予約キャンセルイベントを発行する
func (p *AMQPPublisher) PublishBookingCancelled(ctx context.Context, event BookingEvent) error {
	return p.publish(ctx, RoutingKeyBookingCancelled, event)
}

func (p *AMQPPublisher) publish(ctx context.Context, routingKey string, event BookingEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("イベントのシリアライズに失敗: %w", err)
	}

	if err := p.channel.PublishWithContext(ctx,
		exchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.OccurredAt,
			Body:         body,
		},
	); err != nil {
		return fmt.Errorf("イベント発行に失敗: %w", err)
	}
	return nil
}

// Close は接続を閉じる
func (p *AMQPPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		return fmt.Errorf("チャネルのクローズに失敗: %w", err)
	}
	if err := p.conn.Close(); err != nil {
		return fmt.Errorf("接続のクローズに失敗: %w", err)
	}
	return nil
}

// NoopPublisher はブローカー未接続時に使うイベント発行の無効実装
type NoopPublisher struct{}

func (NoopPublisher) PublishBookingConfirmed(ctx context.Context, event BookingEvent) error {
	return nil
}

func (NoopPublisher) PublishBookingCancelled(ctx context.Context, event BookingEvent) error {
	return nil
}

func (NoopPublisher) Close() error { return nil }

var (
	_ Publisher = (*AMQPPublisher)(nil)
	_ Publisher = NoopPublisher{}
)
