// Package pubsub 实时事件总线：按频道（chat:<id> / game:<code> / user:<id>）推送事件
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Shopify/sarama"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"campusconnect/backend/config"
)

// ErrBrokerClosed 事件总线已关闭
var ErrBrokerClosed = errors.New("事件总线已关闭")

const metadataChannel = "channel"

// Event 推送给客户端的事件，ID 供客户端去重
type Event struct {
	ID        string          `json:"id"`
	Channel   string          `json:"channel"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
}

// Publisher 业务层使用的发布接口
type Publisher interface {
	Publish(ctx context.Context, channel, eventType string, data interface{}) error
}

// ChatChannel 聊天室频道名
func ChatChannel(roomID string) string { return "chat:" + roomID }

// GameChannel 游戏房间频道名
func GameChannel(code string) string { return "game:" + code }

// UserChannel 用户私有频道名
func UserChannel(userID string) string { return "user:" + userID }

// Broker 基于 watermill 的事件总线
// 每个进程只订阅一次主题，再按频道名在本地分发给监听者
type Broker struct {
	pub    message.Publisher
	sub    message.Subscriber
	shared bool // gochannel 下发布者与订阅者为同一实例
	topic  string
	buffer int
	logger *zap.Logger

	mu        sync.RWMutex
	listeners map[string]map[*Subscription]struct{}
	closed    bool
}

// NewBroker 根据配置创建 gochannel 或 kafka 后端
func NewBroker(cfg *config.BrokerConfig, logger *zap.Logger) (*Broker, error) {
	wmLogger := NewZapLoggerAdapter(logger.Named("watermill"))
	buffer := cfg.BufferSize
	if buffer <= 0 {
		buffer = 64
	}

	b := &Broker{
		topic:     cfg.Topic,
		buffer:    buffer,
		logger:    logger,
		listeners: make(map[string]map[*Subscription]struct{}),
	}

	switch cfg.Backend {
	case "kafka":
		pub, err := kafka.NewPublisher(kafka.PublisherConfig{
			Brokers:   cfg.KafkaBrokers,
			Marshaler: kafka.DefaultMarshaler{},
		}, wmLogger)
		if err != nil {
			return nil, fmt.Errorf("创建 Kafka 发布者失败: %w", err)
		}

		saramaCfg := kafka.DefaultSaramaSubscriberConfig()
		// 实时推送只关心订阅之后的事件
		saramaCfg.Consumer.Offsets.Initial = sarama.OffsetNewest

		sub, err := kafka.NewSubscriber(kafka.SubscriberConfig{
			Brokers:               cfg.KafkaBrokers,
			Unmarshaler:           kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: saramaCfg,
			// 每个实例独立的消费组，保证所有实例都能收到全部事件
			ConsumerGroup: "campusconnect-" + uuid.NewString(),
		}, wmLogger)
		if err != nil {
			_ = pub.Close()
			return nil, fmt.Errorf("创建 Kafka 订阅者失败: %w", err)
		}
		b.pub, b.sub = pub, sub
	default:
		ch := gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: int64(buffer),
		}, wmLogger)
		b.pub, b.sub, b.shared = ch, ch, true
	}

	return b, nil
}

// Start 订阅主题并启动分发协程，ctx 取消时停止
func (b *Broker) Start(ctx context.Context) error {
	messages, err := b.sub.Subscribe(ctx, b.topic)
	if err != nil {
		return fmt.Errorf("订阅事件主题失败: %w", err)
	}

	go func() {
		for msg := range messages {
			b.dispatch(msg)
			msg.Ack()
		}
		b.logger.Info("事件分发已停止")
	}()

	b.logger.Info("事件总线已启动", zap.String("topic", b.topic))
	return nil
}

// Publish 序列化并发布事件
func (b *Broker) Publish(_ context.Context, channel, eventType string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}

	evt := Event{
		ID:        uuid.NewString(),
		Channel:   channel,
		Type:      eventType,
		Data:      raw,
		CreatedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}

	msg := message.NewMessage(evt.ID, payload)
	msg.Metadata.Set(metadataChannel, channel)
	msg.Metadata.Set("event_type", eventType)

	if err := b.pub.Publish(b.topic, msg); err != nil {
		b.logger.Error("发布事件失败",
			zap.String("channel", channel),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return fmt.Errorf("发布事件失败: %w", err)
	}
	return nil
}

func (b *Broker) dispatch(msg *message.Message) {
	var evt Event
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		b.logger.Warn("丢弃无法解析的事件", zap.String("message_uuid", msg.UUID), zap.Error(err))
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.listeners[evt.Channel] {
		select {
		case s.ch <- evt:
		default:
			// 客户端消费过慢时丢弃，客户端可通过普通接口重新拉取状态
			b.logger.Debug("监听者缓冲已满，丢弃事件",
				zap.String("channel", evt.Channel),
				zap.String("event_id", evt.ID),
			)
		}
	}
}

// Subscription 单个监听者
type Subscription struct {
	C       <-chan Event
	ch      chan Event
	channel string
	broker  *Broker
	once    sync.Once
}

// Subscribe 监听指定频道，使用完毕需调用 Close
func (b *Broker) Subscribe(channel string) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBrokerClosed
	}

	ch := make(chan Event, b.buffer)
	s := &Subscription{C: ch, ch: ch, channel: channel, broker: b}
	if b.listeners[channel] == nil {
		b.listeners[channel] = make(map[*Subscription]struct{})
	}
	b.listeners[channel][s] = struct{}{}
	return s, nil
}

// Close 取消监听
func (s *Subscription) Close() {
	s.once.Do(func() {
		b := s.broker
		b.mu.Lock()
		defer b.mu.Unlock()
		if set, ok := b.listeners[s.channel]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(b.listeners, s.channel)
			}
		}
		close(s.ch)
	})
}

// ListenerCount 返回某频道当前监听者数量
func (b *Broker) ListenerCount(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[channel])
}

// Close 关闭发布者与订阅者，并结束所有监听
func (b *Broker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*Subscription, 0)
	for _, set := range b.listeners {
		for s := range set {
			subs = append(subs, s)
		}
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}

	var errs []error
	if err := b.pub.Close(); err != nil {
		errs = append(errs, err)
	}
	if !b.shared {
		if err := b.sub.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
