// Package worker 包含 asynq 任务处理器。
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"interviewer/internal/database"
	"interviewer/internal/resume"
	"interviewer/internal/tasks"
)

type nodeArtifacts interface {
	DeleteNode(ctx context.Context, nodeID string) error
}

type nodeReader interface {
	GetNode(ctx context.Context, id string) (*database.ResumeNode, error)
}

// PurgeHandler 重试删除已删除节点的产物。
type PurgeHandler struct {
	nodes     nodeReader
	artifacts nodeArtifacts
	logger    *slog.Logger
}

// NewPurgeHandler 创建任务处理器。
func NewPurgeHandler(nodes nodeReader, artifacts nodeArtifacts, logger *slog.Logger) *PurgeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PurgeHandler{nodes: nodes, artifacts: artifacts, logger: logger}
}

// ProcessTask 实现 asynq.Handler。只清理状态为 deleted 的节点；任何节点失败都会让任务整体重试。
func (h *PurgeHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.ArtifactPurgePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal purge payload failed", slog.Any("error", err))
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}

	var failed []string
	for _, id := range payload.NodeIDs {
		log := h.logger.With(slog.String("node_id", id))

		node, err := h.nodes.GetNode(ctx, id)
		switch {
		case errors.Is(err, resume.ErrNotFound):
			log.Warn("purge target missing, skipping")
			continue
		case err != nil:
			return fmt.Errorf("load node %s: %w", id, err)
		case node.Status != resume.StatusDeleted:
			log.Warn("purge target is active, skipping", slog.String("status", string(node.Status)))
			continue
		}

		if err := h.artifacts.DeleteNode(ctx, id); err != nil {
			log.Warn("purge node artifacts failed", slog.Any("error", err))
			failed = append(failed, id)
			continue
		}
		log.Info("node artifacts purged")
	}

	if len(failed) > 0 {
		return fmt.Errorf("purge artifacts of %d nodes failed: %v", len(failed), failed)
	}
	return nil
}
