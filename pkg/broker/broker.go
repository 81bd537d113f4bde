package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"hostcal/config"
)

// Publisher 将同步完成事件发布到 RabbitMQ 持久化队列
// 连接懒建立，断开后下次发布时重连
type Publisher struct {
	url    string
	queue  string
	logger *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher 创建发布器；URL 为空时返回 nil，调用方据此跳过发布
func NewPublisher(cfg *config.BrokerConfig, logger *zap.Logger) *Publisher {
	if cfg.URL == "" {
		return nil
	}
	return &Publisher{url: cfg.URL, queue: cfg.Queue, logger: logger}
}

// Publish 以 JSON 序列化 v 并投递到默认交换机，routing key 即队列名
func (p *Publisher) Publish(ctx context.Context, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureChannel(); err != nil {
		return err
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		p.reset()
		return fmt.Errorf("发布事件失败: %w", err)
	}
	return nil
}

func (p *Publisher) ensureChannel() error {
	if p.ch != nil && !p.ch.IsClosed() {
		return nil
	}
	p.reset()

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("连接 RabbitMQ 失败: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("打开 RabbitMQ 通道失败: %w", err)
	}
	// 队列持久化，broker 重启后消息不丢失
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("声明队列失败: %w", err)
	}

	p.conn, p.ch = conn, ch
	p.logger.Info("RabbitMQ 连接成功", zap.String("queue", p.queue))
	return nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Close 关闭连接
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
}
