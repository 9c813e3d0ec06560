package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"interviewer/internal/database"
	"interviewer/internal/resume"
)

// NewContentRecord 为节点构造一条内容记录。
func NewContentRecord(nodeID string, content resume.Content, at time.Time) *database.ResumeContent {
	record := &database.ResumeContent{
		ID:        uuid.NewString(),
		ResumeID:  nodeID,
		CreatedAt: at,
		UpdatedAt: at,
	}
	record.ApplyContent(content)
	return record
}

// GetContent 读取节点的内容；记录缺失返回 ErrContentMissing。
func (s *Store) GetContent(ctx context.Context, nodeID string) (resume.Content, error) {
	var record database.ResumeContent
	if err := s.conn(ctx).Where("resume_id = ?", nodeID).Take(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return resume.Content{}, fmt.Errorf("content of %s: %w", nodeID, resume.ErrContentMissing)
		}
		return resume.Content{}, fmt.Errorf("load content of %s: %w", nodeID, err)
	}
	return record.ToContent(), nil
}

// ReplaceContent 整体覆盖节点内容。
func (s *Store) ReplaceContent(ctx context.Context, nodeID string, content resume.Content, at time.Time) error {
	var record database.ResumeContent
	if err := s.conn(ctx).Where("resume_id = ?", nodeID).Take(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("content of %s: %w", nodeID, resume.ErrContentMissing)
		}
		return fmt.Errorf("load content of %s: %w", nodeID, err)
	}
	record.ApplyContent(content)
	record.UpdatedAt = at
	if err := s.conn(ctx).Select("*").Omit("id", "resume_id", "created_at").Updates(&record).Error; err != nil {
		return fmt.Errorf("replace content of %s: %w", nodeID, err)
	}
	return nil
}

// ContentNodeIDs 返回所有拥有内容记录的节点 id，供审计使用。
func (s *Store) ContentNodeIDs(ctx context.Context) (map[string]struct{}, error) {
	var ids []string
	if err := s.conn(ctx).Model(&database.ResumeContent{}).Pluck("resume_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list content owners: %w", err)
	}
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}
