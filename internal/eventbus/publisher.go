package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"resume-agent-go/internal/tracing"
)

// 事件发布的专用tracer
var eventbusTracer = otel.Tracer("resume-agent-go/eventbus")

// ActivityEvent 会话中产生的一条活动记录，发布给下游消费者
type ActivityEvent struct {
	SessionID string    `json:"session_id"`
	Operation string    `json:"operation"`
	Fact      string    `json:"fact"`
	Timestamp time.Time `json:"timestamp"`
}

// EventPublisher 活动事件发布接口
type EventPublisher interface {
	// PublishActivity 发布一条活动事件；发布失败不应影响主流程
	PublishActivity(ctx context.Context, event ActivityEvent) error

	// Close 关闭底层连接
	Close() error
}

// NopPublisher 空实现，未配置消息队列时使用
type NopPublisher struct{}

var _ EventPublisher = (*NopPublisher)(nil)

func (NopPublisher) PublishActivity(ctx context.Context, event ActivityEvent) error { return nil }
func (NopPublisher) Close() error                                                   { return nil }

// RabbitMQPublisher 基于RabbitMQ的事件发布器
type RabbitMQPublisher struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	mu         sync.Mutex
	logger     zerolog.Logger
}

var _ EventPublisher = (*RabbitMQPublisher)(nil)

// NewRabbitMQPublisher 连接RabbitMQ并声明活动事件交换机
func NewRabbitMQPublisher(url, exchange, routingKey string, logger zerolog.Logger) (*RabbitMQPublisher, error) {
	if url == "" {
		return nil, fmt.Errorf("RabbitMQ URL不能为空")
	}
	if exchange == "" {
		return nil, fmt.Errorf("exchange名称不能为空")
	}
	if routingKey == "" {
		routingKey = "session.activity"
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("无法连接到RabbitMQ服务器 (%s): %w", url, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("创建RabbitMQ通道失败: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("声明交换机 %s 失败: %w", exchange, err)
	}

	logger.Info().Str("exchange", exchange).Msg("RabbitMQ事件发布器初始化完成")
	return &RabbitMQPublisher{
		conn:       conn,
		channel:    ch,
		exchange:   exchange,
		routingKey: routingKey,
		logger:     logger,
	}, nil
}

// PublishActivity 实现 EventPublisher 接口
func (p *RabbitMQPublisher) PublishActivity(ctx context.Context, event ActivityEvent) error {
	ctx, span := eventbusTracer.Start(ctx, "rabbitmq.publish")
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.destination", p.exchange),
		attribute.String("messaging.routing_key", p.routingKey),
	)

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	body, err := json.Marshal(event)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRabbitMQ)
		return fmt.Errorf("序列化活动事件失败: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx, p.exchange, p.routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.Timestamp,
		Body:         body,
	})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRabbitMQ)
		return fmt.Errorf("发布活动事件失败: %w", err)
	}

	p.logger.Debug().
		Str("session_id", event.SessionID).
		Str("operation", event.Operation).
		Msg("活动事件已发布")
	return nil
}

// Close 实现 EventPublisher 接口
func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		_ = p.channel.Close()
	}
	return p.conn.Close()
}
