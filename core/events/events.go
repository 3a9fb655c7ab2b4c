package events

import (
	"context"
	"encoding/json"
	"time"

	"TuneBay/logger"
	"TuneBay/model"

	"github.com/redis/go-redis/v9"
)

// EventChannel 任务状态变更事件的 Redis 频道
const EventChannel = "tunebay:queue:events"

// EventType 事件类型
type EventType string

const (
	EventJobEnqueued EventType = "job_enqueued"
	EventJobClaimed  EventType = "job_claimed"
	EventJobDone     EventType = "job_completed"
	EventJobFailed   EventType = "job_failed"
)

// Event 一次离散的任务状态变更
type Event struct {
	Type      EventType       `json:"type"`
	JobID     string          `json:"jobId"`
	Status    model.JobStatus `json:"status"`
	TrackID   string          `json:"trackId,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Notifier 任务状态变更的单向事件发射能力。
// 核心流水线只负责发射离散事件，推送方式由订阅端决定。
type Notifier interface {
	JobUpdated(ctx context.Context, event Event)
}

// redisNotifier 通过 Redis 发布/订阅多路分发事件，
// 跨进程的 worker 与 HTTP 服务共用同一事件流
type redisNotifier struct {
	client *redis.Client
}

// NewRedisNotifier 创建基于 Redis 的事件发射器
func NewRedisNotifier(client *redis.Client) Notifier {
	return &redisNotifier{client: client}
}

// JobUpdated 发布事件。发布失败只记录日志，绝不影响流水线本身。
func (n *redisNotifier) JobUpdated(ctx context.Context, event Event) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error("事件序列化失败", logger.ErrorField(err))
		return
	}

	if err := n.client.Publish(ctx, EventChannel, payload).Err(); err != nil {
		logger.Warn("事件发布失败",
			logger.String("jobId", event.JobID),
			logger.ErrorField(err))
	}
}

// Subscribe 订阅事件流。返回的取消函数负责关闭订阅。
func Subscribe(ctx context.Context, client *redis.Client) (<-chan Event, func()) {
	pubsub := client.Subscribe(ctx, EventChannel)
	out := make(chan Event, 16)

	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				logger.Warn("事件反序列化失败", logger.ErrorField(err))
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, func() { pubsub.Close() }
}

// NopNotifier 不做任何事的事件发射器
type NopNotifier struct{}

// JobUpdated 空实现
func (NopNotifier) JobUpdated(ctx context.Context, event Event) {}
