package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeArtifactPurge = "artifact:purge"
	TypePreviewSweep  = "preview:sweep"
)

const (
	purgeMaxRetry = 5
	purgeTimeout  = 2 * time.Minute
)

// ArtifactPurgePayload 列出需要清理产物的已删除节点。
type ArtifactPurgePayload struct {
	NodeIDs []string `json:"node_ids"`
}

// NewArtifactPurgeTask 构造产物清理任务，最多重试 5 次。
func NewArtifactPurgeTask(nodeIDs []string) (*asynq.Task, error) {
	payload, err := json.Marshal(ArtifactPurgePayload{NodeIDs: nodeIDs})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeArtifactPurge, payload,
		asynq.MaxRetry(purgeMaxRetry),
		asynq.Timeout(purgeTimeout),
	), nil
}

// NewPreviewSweepTask 构造过期预览清理任务。同一时刻只保留一个待执行的清理任务。
func NewPreviewSweepTask() *asynq.Task {
	return asynq.NewTask(TypePreviewSweep, nil, asynq.MaxRetry(1), asynq.Unique(10*time.Minute))
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// PurgeScheduler 把产物清理交给 worker 异步重试。
type PurgeScheduler struct {
	client enqueuer
}

// NewPurgeScheduler 创建 PurgeScheduler。*asynq.Client 满足 enqueuer。
func NewPurgeScheduler(client enqueuer) *PurgeScheduler {
	return &PurgeScheduler{client: client}
}

// SchedulePurge 入队一个清理任务。
func (s *PurgeScheduler) SchedulePurge(ctx context.Context, nodeIDs []string) error {
	if len(nodeIDs) == 0 {
		return nil
	}
	task, err := NewArtifactPurgeTask(nodeIDs)
	if err != nil {
		return fmt.Errorf("build purge task: %w", err)
	}
	if _, err := s.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue purge task: %w", err)
	}
	return nil
}
