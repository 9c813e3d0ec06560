package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"interviewer/internal/artifact"
	"interviewer/internal/database"
	"interviewer/internal/notify"
	"interviewer/internal/render"
	"interviewer/internal/resume"
	"interviewer/internal/store"
)

// saveAttempts 是内容保存遇到版本冲突时的最大尝试次数。
const saveAttempts = 3

// Artifacts 是状态引擎用到的产物仓库操作。
type Artifacts interface {
	SaveContentSnapshot(ctx context.Context, nodeID string, content resume.Content) error
	SaveRenderYAML(ctx context.Context, nodeID string, data []byte) error
	StagePublish(ctx context.Context, nodeID string, yaml, pdf []byte) (artifact.Staged, error)
	PromoteStaged(ctx context.Context, staged artifact.Staged) error
	DiscardStaged(ctx context.Context, staged artifact.Staged) error
	PutPreview(ctx context.Context, owner string, pdf []byte) (artifact.SignedURL, error)
	PublishedURL(ctx context.Context, nodeID string) (artifact.SignedURL, error)
}

// Renderer 把内容渲染为 YAML 与 PDF。
type Renderer interface {
	Render(ctx context.Context, content resume.Content) (render.Output, error)
}

// Notifier 接收状态变化事件。
type Notifier interface {
	Notify(ctx context.Context, ev notify.Event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, notify.Event) {}

// Engine 负责所有会改变或依赖节点状态的操作。
type Engine struct {
	store     *store.Store
	artifacts Artifacts
	renderer  Renderer
	notifier  Notifier
	logger    *slog.Logger
	now       func() time.Time
}

// Option 调整 Engine。
type Option func(*Engine)

// WithNotifier 设置状态事件接收者。
func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

// WithLogger 设置日志记录器。
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock 替换时钟，测试中使用。
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine 创建状态引擎。
func NewEngine(st *store.Store, artifacts Artifacts, renderer Renderer, opts ...Option) *Engine {
	e := &Engine{
		store:     st,
		artifacts: artifacts,
		renderer:  renderer,
		notifier:  nopNotifier{},
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) clock() time.Time {
	return e.now().UTC()
}

// PublishResult 是发布后的节点与 PDF 访问链接。
type PublishResult struct {
	Node *database.ResumeNode `json:"resume"`
	URL  *artifact.SignedURL  `json:"published_url,omitempty"`
}

// Publish 读取内容并渲染，产物先写入暂存目录；状态切换与正式产物覆盖在同一事务内完成。
// 任何一步失败状态与正式产物都保持不变；渲染期间节点被修改时返回 ErrConflict。
func (e *Engine) Publish(ctx context.Context, nodeID, requester string) (*PublishResult, error) {
	node, err := e.store.OwnedNode(ctx, nodeID, requester)
	if err != nil {
		return nil, err
	}
	next, err := Next(node.Status, EventPublish)
	if err != nil {
		return nil, err
	}
	content, err := e.store.GetContent(ctx, node.ID)
	if err != nil {
		return nil, err
	}

	out, err := e.renderer.Render(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("publish %s: %w", node.ID, err)
	}
	staged, err := e.artifacts.StagePublish(ctx, node.ID, out.YAML, out.PDF)
	if err != nil {
		return nil, fmt.Errorf("publish %s: %w", node.ID, err)
	}
	defer func() {
		if err := e.artifacts.DiscardStaged(context.WithoutCancel(ctx), staged); err != nil {
			e.logger.Warn("discard staged artifacts failed", slog.String("node_id", node.ID), slog.Any("error", err))
		}
	}()

	err = e.store.Transaction(ctx, func(tx *store.Store) error {
		if err := tx.UpdateStatus(ctx, node.ID, node.Version, next, e.clock()); err != nil {
			return err
		}
		// 版本校验通过后才覆盖正式产物，复制失败时状态一并回滚。
		return e.artifacts.PromoteStaged(ctx, staged)
	})
	if err != nil {
		return nil, fmt.Errorf("publish %s: %w", node.ID, err)
	}

	updated, err := e.store.GetNode(ctx, node.ID)
	if err != nil {
		return nil, err
	}
	result := &PublishResult{Node: updated}
	if signed, err := e.artifacts.PublishedURL(ctx, node.ID); err != nil {
		e.logger.Warn("sign published pdf failed", slog.String("node_id", node.ID), slog.Any("error", err))
	} else {
		result.URL = &signed
	}

	e.logger.Info("resume published", slog.String("node_id", node.ID), slog.Int64("version", updated.Version))
	e.notify(ctx, notify.TypePublished, updated)
	return result, nil
}

// Unpublish 把已发布节点改回草稿，已发布的 PDF 保留到下一次发布覆盖。
func (e *Engine) Unpublish(ctx context.Context, nodeID, requester string) (*database.ResumeNode, error) {
	node, err := e.store.OwnedNode(ctx, nodeID, requester)
	if err != nil {
		return nil, err
	}
	next, err := Next(node.Status, EventUnpublish)
	if err != nil {
		return nil, err
	}
	if err := e.store.UpdateStatus(ctx, node.ID, node.Version, next, e.clock()); err != nil {
		return nil, fmt.Errorf("unpublish %s: %w", node.ID, err)
	}
	updated, err := e.store.GetNode(ctx, node.ID)
	if err != nil {
		return nil, err
	}
	e.notify(ctx, notify.TypeUnpublished, updated)
	return updated, nil
}

// SaveContent 整体替换内容；无论之前是什么状态，保存后节点都是草稿。
// 并发保存按版本号串行，冲突时重试，最后一次写入生效。
func (e *Engine) SaveContent(ctx context.Context, nodeID, requester string, content resume.Content) (*database.ResumeNode, error) {
	if _, err := e.store.OwnedNode(ctx, nodeID, requester); err != nil {
		return nil, err
	}

	var saved *database.ResumeNode
	var err error
	for attempt := 1; attempt <= saveAttempts; attempt++ {
		saved, err = e.saveOnce(ctx, nodeID, requester, content)
		if !errors.Is(err, resume.ErrConflict) {
			break
		}
		e.logger.Debug("content save conflict, retrying", slog.String("node_id", nodeID), slog.Int("attempt", attempt))
	}
	if err != nil {
		return nil, err
	}

	e.writeSnapshots(ctx, nodeID, content)
	e.notify(ctx, notify.TypeContentSaved, saved)
	return saved, nil
}

func (e *Engine) saveOnce(ctx context.Context, nodeID, requester string, content resume.Content) (*database.ResumeNode, error) {
	var saved *database.ResumeNode
	err := e.store.Transaction(ctx, func(tx *store.Store) error {
		node, err := tx.OwnedNode(ctx, nodeID, requester)
		if err != nil {
			return err
		}
		next, err := Next(node.Status, EventContentSaved)
		if err != nil {
			return err
		}
		at := e.clock()
		if err := tx.UpdateStatus(ctx, node.ID, node.Version, next, at); err != nil {
			return err
		}
		if err := tx.ReplaceContent(ctx, node.ID, content, at); err != nil {
			return err
		}
		saved, err = tx.GetNode(ctx, node.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("save content of %s: %w", nodeID, err)
	}
	return saved, nil
}

// writeSnapshots 重写 content.json 与 rendercv.yaml，失败只记录日志。
func (e *Engine) writeSnapshots(ctx context.Context, nodeID string, content resume.Content) {
	log := e.logger.With(slog.String("node_id", nodeID))
	if err := e.artifacts.SaveContentSnapshot(ctx, nodeID, content); err != nil {
		log.Warn("write content snapshot failed", slog.Any("error", err))
	}
	description, err := render.Describe(content)
	if err != nil {
		log.Warn("build render description failed", slog.Any("error", err))
		return
	}
	if err := e.artifacts.SaveRenderYAML(ctx, nodeID, description); err != nil {
		log.Warn("write render description failed", slog.Any("error", err))
	}
}

// GetContent 返回节点当前内容。
func (e *Engine) GetContent(ctx context.Context, nodeID, requester string) (resume.Content, error) {
	node, err := e.store.OwnedNode(ctx, nodeID, requester)
	if err != nil {
		return resume.Content{}, err
	}
	return e.store.GetContent(ctx, node.ID)
}

// RenderDescription 返回节点当前内容对应的 RenderCV YAML，不要求调用方身份（供内部渲染服务拉取）。
func (e *Engine) RenderDescription(ctx context.Context, nodeID string) ([]byte, error) {
	node, err := e.store.GetActiveNode(ctx, strings.TrimSpace(nodeID))
	if err != nil {
		return nil, err
	}
	content, err := e.store.GetContent(ctx, node.ID)
	if err != nil {
		return nil, err
	}
	return render.Describe(content)
}

// Preview 渲染当前内容并上传为临时 PDF，不改变节点状态。
func (e *Engine) Preview(ctx context.Context, nodeID, requester string) (artifact.SignedURL, error) {
	node, err := e.store.OwnedNode(ctx, nodeID, requester)
	if err != nil {
		return artifact.SignedURL{}, err
	}
	content, err := e.store.GetContent(ctx, node.ID)
	if err != nil {
		return artifact.SignedURL{}, err
	}
	out, err := e.renderer.Render(ctx, content)
	if err != nil {
		return artifact.SignedURL{}, fmt.Errorf("preview %s: %w", node.ID, err)
	}
	if err := e.artifacts.SaveRenderYAML(ctx, node.ID, out.YAML); err != nil {
		e.logger.Warn("write render description failed", slog.String("node_id", node.ID), slog.Any("error", err))
	}
	signed, err := e.artifacts.PutPreview(ctx, node.OwnerAddress, out.PDF)
	if err != nil {
		return artifact.SignedURL{}, fmt.Errorf("preview %s: %w", node.ID, err)
	}
	return signed, nil
}

// GetPublishedURL 为已发布节点签发 PDF 链接；草稿节点返回 ErrNotPublished。
func (e *Engine) GetPublishedURL(ctx context.Context, nodeID, requester string) (artifact.SignedURL, error) {
	node, err := e.store.OwnedNode(ctx, nodeID, requester)
	if err != nil {
		return artifact.SignedURL{}, err
	}
	if node.Status != resume.StatusPublished {
		return artifact.SignedURL{}, fmt.Errorf("resume %s: %w", node.ID, resume.ErrNotPublished)
	}
	return e.artifacts.PublishedURL(ctx, node.ID)
}

// ValidateAttachment 校验节点能否挂到面试间：必须属于 requester 且处于发布状态。
func (e *Engine) ValidateAttachment(ctx context.Context, nodeID, requester string) (*database.ResumeNode, error) {
	node, err := e.store.OwnedNode(ctx, nodeID, requester)
	if err != nil {
		return nil, err
	}
	if !CanAttach(node.Status) {
		return nil, fmt.Errorf("resume %s is %s: %w", node.ID, node.Status, resume.ErrNotPublished)
	}
	return node, nil
}

// ListPublishable 返回 owner 可以用于面试的简历。
func (e *Engine) ListPublishable(ctx context.Context, owner string) ([]database.ResumeNode, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, fmt.Errorf("owner required: %w", resume.ErrInvalidArgument)
	}
	return e.store.PublishedNodes(ctx, owner)
}

func (e *Engine) notify(ctx context.Context, eventType string, node *database.ResumeNode) {
	e.notifier.Notify(ctx, notify.Event{
		Type:      eventType,
		NodeID:    node.ID,
		Status:    node.Status,
		Owner:     node.OwnerAddress,
		Timestamp: e.clock(),
	})
}
