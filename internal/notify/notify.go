// Package notify 通过 Redis Pub/Sub 推送简历状态变化，WebSocket 处理器负责转发给前端。
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"interviewer/internal/resume"
)

// 事件类型。字段名与前端解析保持一致。
const (
	TypePublished    = "resume_published"
	TypeUnpublished  = "resume_unpublished"
	TypeContentSaved = "resume_content_saved"
	TypeDeleted      = "resume_deleted"
)

// Event 是推送给某个用户的一条消息。
type Event struct {
	Type      string        `json:"type"`
	NodeID    string        `json:"node_id"`
	Status    resume.Status `json:"status"`
	Count     int64         `json:"count,omitempty"`
	Owner     string        `json:"-"`
	Timestamp time.Time     `json:"timestamp"`
}

// Channel 返回用户的通知频道。
func Channel(owner string) string {
	return fmt.Sprintf("user_notify:%s", owner)
}

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Publisher 把事件发布到 Redis。发布失败只记录日志，不影响调用方。
type Publisher struct {
	client redisPublisher
	logger *slog.Logger
}

// NewPublisher 创建 Publisher；client 为 nil 时所有通知被丢弃。
func NewPublisher(client redisPublisher, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{client: client, logger: logger}
}

// Notify 序列化并发布事件。
func (p *Publisher) Notify(ctx context.Context, ev Event) {
	if p == nil || p.client == nil || ev.Owner == "" {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("encode notify event failed", slog.Any("error", err))
		return
	}
	if err := p.client.Publish(ctx, Channel(ev.Owner), payload).Err(); err != nil {
		p.logger.Warn("publish notify event failed",
			slog.String("type", ev.Type),
			slog.String("node_id", ev.NodeID),
			slog.Any("error", err),
		)
	}
}
