package store

import (
	"context"
	"fmt"
	"time"

	"interviewer/internal/database"
)

// CreateRoom 写入一个面试间。
func (s *Store) CreateRoom(ctx context.Context, room *database.InterviewRoom) error {
	if err := s.conn(ctx).Create(room).Error; err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	return nil
}

// GetRoom 按 id 读取面试间。
func (s *Store) GetRoom(ctx context.Context, id string) (*database.InterviewRoom, error) {
	var room database.InterviewRoom
	if err := s.conn(ctx).Where("id = ?", id).Take(&room).Error; err != nil {
		return nil, notFound(err, "room", id)
	}
	return &room, nil
}

// SetRoomResume 设置或清空（resumeID 为 nil）面试间引用的简历。
func (s *Store) SetRoomResume(ctx context.Context, roomID string, resumeID *string, at time.Time) error {
	res := s.conn(ctx).Model(&database.InterviewRoom{}).
		Where("id = ?", roomID).
		UpdateColumns(map[string]any{"resume_id": resumeID, "updated_at": at})
	if res.Error != nil {
		return fmt.Errorf("update room %s: %w", roomID, res.Error)
	}
	return nil
}

// ClearRoomReferences 清除所有引用这些简历的面试间外键，返回受影响的面试间数量。
func (s *Store) ClearRoomReferences(ctx context.Context, resumeIDs []string, at time.Time) (int64, error) {
	if len(resumeIDs) == 0 {
		return 0, nil
	}
	res := s.conn(ctx).Model(&database.InterviewRoom{}).
		Where("resume_id IN ?", resumeIDs).
		UpdateColumns(map[string]any{"resume_id": nil, "updated_at": at})
	if res.Error != nil {
		return 0, fmt.Errorf("clear room references: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// RoomIDsByResume 返回引用该简历的面试间 id。
func (s *Store) RoomIDsByResume(ctx context.Context, resumeID string) ([]string, error) {
	var ids []string
	err := s.conn(ctx).Model(&database.InterviewRoom{}).
		Where("resume_id = ?", resumeID).
		Order("created_at ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list rooms of resume %s: %w", resumeID, err)
	}
	return ids, nil
}
