package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

type previewSweeper interface {
	SweepPreviews(ctx context.Context) (int, error)
}

// SweepHandler 删除超过有效期的预览 PDF。清理晚了无害，失败时等下一轮即可。
type SweepHandler struct {
	sweeper previewSweeper
	logger  *slog.Logger
}

// NewSweepHandler 创建任务处理器。
func NewSweepHandler(sweeper previewSweeper, logger *slog.Logger) *SweepHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SweepHandler{sweeper: sweeper, logger: logger}
}

// ProcessTask 实现 asynq.Handler。
func (h *SweepHandler) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	removed, err := h.sweeper.SweepPreviews(ctx)
	if err != nil {
		h.logger.Warn("preview sweep incomplete", slog.Int("removed", removed), slog.Any("error", err))
		return fmt.Errorf("sweep previews: %w", err)
	}
	h.logger.Info("preview sweep finished", slog.Int("removed", removed))
	return nil
}
