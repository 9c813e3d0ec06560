// Package tree 实现简历版本树的创建、fork、子树删除与查询。
package tree

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"interviewer/internal/database"
	"interviewer/internal/metrics"
	"interviewer/internal/notify"
	"interviewer/internal/resume"
	"interviewer/internal/status"
	"interviewer/internal/store"
)

const defaultPurgeParallelism = 4

// Artifacts 是树引擎用到的产物仓库操作。
type Artifacts interface {
	SaveContentSnapshot(ctx context.Context, nodeID string, content resume.Content) error
	CopyNodeArtifacts(ctx context.Context, srcID, dstID string, fallback resume.Content) error
	DeleteNode(ctx context.Context, nodeID string) error
}

// PurgeScheduler 接收删除失败的节点，稍后重试清理它们的产物。
type PurgeScheduler interface {
	SchedulePurge(ctx context.Context, nodeIDs []string) error
}

// Engine 负责树结构相关的操作。
type Engine struct {
	store       *store.Store
	artifacts   Artifacts
	notifier    status.Notifier
	purger      PurgeScheduler
	logger      *slog.Logger
	now         func() time.Time
	parallelism int
}

// Option 调整 Engine。
type Option func(*Engine)

// WithNotifier 设置删除事件的接收者。
func WithNotifier(n status.Notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

// WithPurgeScheduler 设置产物清理的重试队列。
func WithPurgeScheduler(p PurgeScheduler) Option {
	return func(e *Engine) { e.purger = p }
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

// WithPurgeParallelism 限制并发删除产物的节点数。
func WithPurgeParallelism(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

// NewEngine 创建树引擎。
func NewEngine(st *store.Store, artifacts Artifacts, opts ...Option) *Engine {
	e := &Engine{
		store:       st,
		artifacts:   artifacts,
		notifier:    nil,
		logger:      slog.Default(),
		now:         time.Now,
		parallelism: defaultPurgeParallelism,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateRootInput 是创建根简历的参数。Content 为 nil 时写入空内容。
type CreateRootInput struct {
	Name           string
	TargetCompany  string
	TargetPosition string
	Content        *resume.Content
}

// CreateRoot 新建一棵树的根节点。带初始内容时同时写一份 content.json，写入失败只记录日志。
func (e *Engine) CreateRoot(ctx context.Context, owner string, in CreateRootInput) (*database.ResumeNode, error) {
	owner = strings.TrimSpace(owner)
	name := strings.TrimSpace(in.Name)
	if owner == "" {
		return nil, fmt.Errorf("owner required: %w", resume.ErrInvalidArgument)
	}
	if name == "" {
		return nil, fmt.Errorf("name required: %w", resume.ErrInvalidArgument)
	}

	at := e.now().UTC()
	id := uuid.NewString()
	node := &database.ResumeNode{
		ID:             id,
		RootID:         id,
		Depth:          0,
		OwnerAddress:   owner,
		Status:         resume.StatusDraft,
		Name:           name,
		TargetCompany:  optional(in.TargetCompany),
		TargetPosition: optional(in.TargetPosition),
		Version:        1,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
	var content resume.Content
	if in.Content != nil {
		content = in.Content.Clone()
	}
	err := e.store.Transaction(ctx, func(tx *store.Store) error {
		return tx.CreateNode(ctx, node, store.NewContentRecord(id, content, at))
	})
	if err != nil {
		return nil, fmt.Errorf("create root: %w", err)
	}
	if in.Content != nil {
		if err := e.artifacts.SaveContentSnapshot(ctx, id, content); err != nil {
			e.logger.Warn("write content snapshot failed", slog.String("node_id", id), slog.Any("error", err))
		}
	}
	e.logger.Info("resume root created", slog.String("node_id", id), slog.String("owner", owner))
	return node, nil
}

// Fork 在 parentID 下创建一个草稿子节点，深拷贝内容并复制 content.json 与 rendercv.yaml。
// 节点、内容和产物复制作为一个整体：任一步失败都不会留下子节点。
func (e *Engine) Fork(ctx context.Context, parentID, requester string) (*database.ResumeNode, error) {
	now := e.now()
	at := now.UTC()

	var child *database.ResumeNode
	err := e.store.Transaction(ctx, func(tx *store.Store) error {
		parent, err := tx.OwnedNode(ctx, parentID, requester)
		if err != nil {
			return err
		}
		if parent.Depth >= resume.MaxDepth {
			return fmt.Errorf("resume %s at depth %d: %w", parent.ID, parent.Depth, resume.ErrDepthLimitExceeded)
		}
		// 与并发的子树删除串行化：父节点已被删除时这里返回 ErrNotFound。
		if err := tx.LockActive(ctx, parent.ID); err != nil {
			return err
		}
		content, err := tx.GetContent(ctx, parent.ID)
		if err != nil {
			return err
		}

		parentRef := parent.ID
		child = &database.ResumeNode{
			ID:             uuid.NewString(),
			ParentID:       &parentRef,
			RootID:         parent.RootID,
			Depth:          parent.Depth + 1,
			OwnerAddress:   parent.OwnerAddress,
			Status:         resume.StatusDraft,
			Name:           resume.ForkName(now),
			TargetCompany:  clonePtr(parent.TargetCompany),
			TargetPosition: clonePtr(parent.TargetPosition),
			Version:        1,
			CreatedAt:      at,
			UpdatedAt:      at,
		}
		if err := tx.CreateNode(ctx, child, store.NewContentRecord(child.ID, content.Clone(), at)); err != nil {
			return err
		}
		return e.artifacts.CopyNodeArtifacts(ctx, parent.ID, child.ID, content)
	})
	if err != nil {
		if child != nil {
			e.discardArtifacts(ctx, child.ID)
		}
		return nil, fmt.Errorf("fork %s: %w", parentID, err)
	}

	e.logger.Info("resume forked",
		slog.String("parent_id", parentID),
		slog.String("node_id", child.ID),
		slog.Int("depth", child.Depth),
	)
	return child, nil
}

func (e *Engine) discardArtifacts(ctx context.Context, nodeID string) {
	if err := e.artifacts.DeleteNode(context.WithoutCancel(ctx), nodeID); err != nil {
		e.logger.Warn("discard artifacts of rolled back fork failed", slog.String("node_id", nodeID), slog.Any("error", err))
	}
}

// DeleteSubtree 在一个事务里逐层把节点及其所有未删除后代标记为 deleted，
// 并清空引用这些节点的面试间。提交后尽力删除产物，失败的交给重试队列。
func (e *Engine) DeleteSubtree(ctx context.Context, nodeID, requester string) (int64, error) {
	at := e.now().UTC()

	var (
		count    int64
		affected []string
		owner    string
	)
	err := e.store.Transaction(ctx, func(tx *store.Store) error {
		node, err := tx.OwnedNode(ctx, nodeID, requester)
		if err != nil {
			return err
		}
		if _, err := status.Next(node.Status, status.EventDelete); err != nil {
			return err
		}
		owner = node.OwnerAddress

		frontier := []string{node.ID}
		for len(frontier) > 0 {
			n, err := tx.MarkDeleted(ctx, frontier, at)
			if err != nil {
				return err
			}
			count += n
			affected = append(affected, frontier...)

			if frontier, err = tx.ActiveChildren(ctx, frontier); err != nil {
				return err
			}
		}

		_, err = tx.ClearRoomReferences(ctx, affected, at)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("delete subtree %s: %w", nodeID, err)
	}

	e.logger.Info("resume subtree deleted", slog.String("node_id", nodeID), slog.Int64("count", count))
	// 删除已提交，后续清理与通知不随请求取消。
	detached := context.WithoutCancel(ctx)
	e.purgeArtifacts(detached, affected)
	if e.notifier != nil {
		e.notifier.Notify(detached, notify.Event{
			Type:      notify.TypeDeleted,
			NodeID:    nodeID,
			Status:    resume.StatusDeleted,
			Count:     count,
			Owner:     owner,
			Timestamp: at,
		})
	}
	return count, nil
}

// purgeArtifacts 并发删除各节点的产物。失败只记录并转交重试，不影响删除结果。
func (e *Engine) purgeArtifacts(ctx context.Context, nodeIDs []string) {
	var (
		mu     sync.Mutex
		failed []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for _, id := range nodeIDs {
		g.Go(func() error {
			if err := e.artifacts.DeleteNode(gctx, id); err != nil {
				e.logger.Warn("delete node artifacts failed", slog.String("node_id", id), slog.Any("error", err))
				metrics.IncArtifactPurgeFailure()
				mu.Lock()
				failed = append(failed, id)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(failed) == 0 || e.purger == nil {
		return
	}
	if err := e.purger.SchedulePurge(ctx, failed); err != nil {
		e.logger.Error("schedule artifact purge failed", slog.Any("node_ids", failed), slog.Any("error", err))
	}
}

// UpdateMetadataInput 是元数据更新参数，nil 字段不修改。
type UpdateMetadataInput struct {
	Name           *string
	TargetCompany  *string
	TargetPosition *string
}

// UpdateMetadata 修改名称与目标岗位信息，不影响状态。
func (e *Engine) UpdateMetadata(ctx context.Context, nodeID, requester string, in UpdateMetadataInput) (*database.ResumeNode, error) {
	patch := store.MetadataPatch{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("name must not be empty: %w", resume.ErrInvalidArgument)
		}
		patch.Name = &name
	}
	if in.TargetCompany != nil {
		v := strings.TrimSpace(*in.TargetCompany)
		patch.TargetCompany = &v
	}
	if in.TargetPosition != nil {
		v := strings.TrimSpace(*in.TargetPosition)
		patch.TargetPosition = &v
	}

	node, err := e.store.OwnedNode(ctx, nodeID, requester)
	if err != nil {
		return nil, err
	}
	if err := e.store.UpdateMetadata(ctx, node.ID, node.Version, patch, e.now().UTC()); err != nil {
		return nil, fmt.Errorf("update metadata of %s: %w", node.ID, err)
	}
	return e.store.GetNode(ctx, node.ID)
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func clonePtr(v *string) *string {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
