// Package store 是简历节点、内容与面试间记录的持久化层。
// 所有多步修改都通过 Transaction 在同一个数据库事务中完成。
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"interviewer/internal/database"
	"interviewer/internal/resume"
)

// Store 包装一个 gorm 句柄，可以是普通连接也可以是事务。
type Store struct {
	db *gorm.DB
}

// New 创建 Store。
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Transaction 在事务中执行 fn，fn 返回错误时整体回滚。
// fn 内只能使用传入的 tx，避免在同一连接池上自锁。
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func notFound(err error, what, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w", what, id, resume.ErrNotFound)
	}
	return fmt.Errorf("load %s %s: %w", what, id, err)
}

// CreateNode 同时写入节点和它的内容记录。
func (s *Store) CreateNode(ctx context.Context, node *database.ResumeNode, content *database.ResumeContent) error {
	if err := s.conn(ctx).Create(node).Error; err != nil {
		return fmt.Errorf("insert resume node: %w", err)
	}
	if err := s.conn(ctx).Create(content).Error; err != nil {
		return fmt.Errorf("insert resume content: %w", err)
	}
	return nil
}

// GetNode 按 id 读取节点，包括已删除节点。
func (s *Store) GetNode(ctx context.Context, id string) (*database.ResumeNode, error) {
	var node database.ResumeNode
	if err := s.conn(ctx).Where("id = ?", id).Take(&node).Error; err != nil {
		return nil, notFound(err, "resume", id)
	}
	return &node, nil
}

// GetActiveNode 读取未删除的节点，已删除视为不存在。
func (s *Store) GetActiveNode(ctx context.Context, id string) (*database.ResumeNode, error) {
	node, err := s.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}
	if node.Status == resume.StatusDeleted {
		return nil, fmt.Errorf("resume %s is deleted: %w", id, resume.ErrNotFound)
	}
	return node, nil
}

// LockActive 对未删除的节点行做一次空更新，使并发的删除与本事务串行化。
func (s *Store) LockActive(ctx context.Context, id string) error {
	res := s.conn(ctx).Model(&database.ResumeNode{}).
		Where("id = ? AND status <> ?", id, resume.StatusDeleted).
		UpdateColumn("version", gorm.Expr("version"))
	if res.Error != nil {
		return fmt.Errorf("lock resume %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("resume %s: %w", id, resume.ErrNotFound)
	}
	return nil
}

// ActiveChildren 返回一批父节点下所有未删除的直接子节点 id。
func (s *Store) ActiveChildren(ctx context.Context, parentIDs []string) ([]string, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}
	var ids []string
	err := s.conn(ctx).Model(&database.ResumeNode{}).
		Where("parent_id IN ? AND status <> ?", parentIDs, resume.StatusDeleted).
		Order("created_at ASC, id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return ids, nil
}

// MarkDeleted 把一批节点标记为已删除，已删除的节点不计数。
func (s *Store) MarkDeleted(ctx context.Context, ids []string, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.conn(ctx).Model(&database.ResumeNode{}).
		Where("id IN ? AND status <> ?", ids, resume.StatusDeleted).
		UpdateColumns(map[string]any{
			"status":     resume.StatusDeleted,
			"version":    gorm.Expr("version + 1"),
			"updated_at": at,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("mark deleted: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// UpdateStatus 在版本号匹配时修改状态并递增版本；版本不匹配返回 ErrConflict。
func (s *Store) UpdateStatus(ctx context.Context, id string, version int64, status resume.Status, at time.Time) error {
	return s.updateVersioned(ctx, id, version, map[string]any{
		"status":     status,
		"updated_at": at,
	})
}

// MetadataPatch 描述元数据的部分更新，nil 字段保持不变。
type MetadataPatch struct {
	Name           *string
	TargetCompany  *string
	TargetPosition *string
}

// UpdateMetadata 在版本号匹配时更新名称与目标岗位信息。
func (s *Store) UpdateMetadata(ctx context.Context, id string, version int64, patch MetadataPatch, at time.Time) error {
	fields := map[string]any{"updated_at": at}
	if patch.Name != nil {
		fields["name"] = *patch.Name
	}
	if patch.TargetCompany != nil {
		fields["target_company"] = nullable(*patch.TargetCompany)
	}
	if patch.TargetPosition != nil {
		fields["target_position"] = nullable(*patch.TargetPosition)
	}
	return s.updateVersioned(ctx, id, version, fields)
}

func nullable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func (s *Store) updateVersioned(ctx context.Context, id string, version int64, fields map[string]any) error {
	fields["version"] = gorm.Expr("version + 1")
	res := s.conn(ctx).Model(&database.ResumeNode{}).
		Where("id = ? AND version = ? AND status <> ?", id, version, resume.StatusDeleted).
		UpdateColumns(fields)
	if res.Error != nil {
		return fmt.Errorf("update resume %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("resume %s changed since version %d: %w", id, version, resume.ErrConflict)
	}
	return nil
}

// OwnerNodes 返回某个用户全部未删除的节点，按创建顺序排列。
func (s *Store) OwnerNodes(ctx context.Context, owner string) ([]database.ResumeNode, error) {
	var nodes []database.ResumeNode
	err := s.conn(ctx).
		Where("owner_address = ? AND status <> ?", owner, resume.StatusDeleted).
		Order("created_at ASC, id ASC").
		Find(&nodes).Error
	if err != nil {
		return nil, fmt.Errorf("list resumes of %s: %w", owner, err)
	}
	return nodes, nil
}

// TreeNodes 返回一棵树中全部未删除的节点，按创建顺序排列。
func (s *Store) TreeNodes(ctx context.Context, rootID string) ([]database.ResumeNode, error) {
	var nodes []database.ResumeNode
	err := s.conn(ctx).
		Where("root_id = ? AND status <> ?", rootID, resume.StatusDeleted).
		Order("created_at ASC, id ASC").
		Find(&nodes).Error
	if err != nil {
		return nil, fmt.Errorf("list tree %s: %w", rootID, err)
	}
	return nodes, nil
}

// PublishedNodes 返回用户所有已发布的节点，最近更新的在前。
func (s *Store) PublishedNodes(ctx context.Context, owner string) ([]database.ResumeNode, error) {
	var nodes []database.ResumeNode
	err := s.conn(ctx).
		Where("owner_address = ? AND status = ?", owner, resume.StatusPublished).
		Order("updated_at DESC, id ASC").
		Find(&nodes).Error
	if err != nil {
		return nil, fmt.Errorf("list published resumes of %s: %w", owner, err)
	}
	return nodes, nil
}

// AllNodes 返回全部节点（含已删除），供离线审计使用。
func (s *Store) AllNodes(ctx context.Context) ([]database.ResumeNode, error) {
	var nodes []database.ResumeNode
	if err := s.conn(ctx).Order("created_at ASC, id ASC").Find(&nodes).Error; err != nil {
		return nil, fmt.Errorf("list all resumes: %w", err)
	}
	return nodes, nil
}

// OwnedNode 读取未删除的节点并校验归属。
func (s *Store) OwnedNode(ctx context.Context, id, requester string) (*database.ResumeNode, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("resume id required: %w", resume.ErrInvalidArgument)
	}
	node, err := s.GetActiveNode(ctx, id)
	if err != nil {
		return nil, err
	}
	if node.OwnerAddress != requester {
		return nil, fmt.Errorf("resume %s: %w", id, resume.ErrPermissionDenied)
	}
	return node, nil
}
