// Package interview 管理面试间对简历的引用。面试间只读取简历状态并持有简历 id。
package interview

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"interviewer/internal/database"
	"interviewer/internal/resume"
	"interviewer/internal/status"
	"interviewer/internal/store"
)

// AttachValidator 判断简历能否被 requester 挂到面试间。
type AttachValidator interface {
	ValidateAttachment(ctx context.Context, nodeID, requester string) (*database.ResumeNode, error)
}

// Service 提供面试间的创建与简历挂载。
type Service struct {
	store     *store.Store
	validator AttachValidator
	logger    *slog.Logger
	now       func() time.Time
}

// NewService 创建 Service；now 为 nil 时使用 time.Now。
func NewService(st *store.Store, validator AttachValidator, logger *slog.Logger, now func() time.Time) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Service{store: st, validator: validator, logger: logger, now: now}
}

// CreateRoom 创建面试间，resumeID 非空时同时挂载简历。
func (s *Service) CreateRoom(ctx context.Context, owner, name, resumeID string) (*database.InterviewRoom, error) {
	owner = strings.TrimSpace(owner)
	name = strings.TrimSpace(name)
	if owner == "" || name == "" {
		return nil, fmt.Errorf("owner and name required: %w", resume.ErrInvalidArgument)
	}

	resumeID = strings.TrimSpace(resumeID)
	var node *database.ResumeNode
	if resumeID != "" {
		var err error
		if node, err = s.validator.ValidateAttachment(ctx, resumeID, owner); err != nil {
			return nil, err
		}
	}

	at := s.now().UTC()
	room := &database.InterviewRoom{
		ID:           uuid.NewString(),
		Name:         name,
		OwnerAddress: owner,
		CreatedAt:    at,
		UpdatedAt:    at,
	}
	// 建房与挂载同一事务，挂载失败不留下空面试间。
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		if node != nil {
			if err := lockAttachable(ctx, tx, node.ID); err != nil {
				return err
			}
			room.ResumeID = &node.ID
		}
		return tx.CreateRoom(ctx, room)
	})
	if err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}

	s.logger.Info("room created", slog.String("room_id", room.ID), slog.String("resume_id", resumeID))
	return s.store.GetRoom(ctx, room.ID)
}

// lockAttachable 锁住节点行并重新确认它仍可挂载。
func lockAttachable(ctx context.Context, tx *store.Store, nodeID string) error {
	if err := tx.LockActive(ctx, nodeID); err != nil {
		return err
	}
	current, err := tx.GetNode(ctx, nodeID)
	if err != nil {
		return err
	}
	if !status.CanAttach(current.Status) {
		return fmt.Errorf("resume %s is %s: %w", nodeID, current.Status, resume.ErrNotPublished)
	}
	return nil
}

// GetRoom 读取 requester 自己的面试间。
func (s *Service) GetRoom(ctx context.Context, roomID, requester string) (*database.InterviewRoom, error) {
	room, err := s.store.GetRoom(ctx, strings.TrimSpace(roomID))
	if err != nil {
		return nil, err
	}
	if room.OwnerAddress != requester {
		return nil, fmt.Errorf("room %s: %w", roomID, resume.ErrPermissionDenied)
	}
	return room, nil
}

// AttachResume 只允许挂载 requester 自己的已发布简历。
// 校验与写入在同一事务里重新确认状态，防止并发的编辑或删除插入其间。
func (s *Service) AttachResume(ctx context.Context, roomID, nodeID, requester string) (*database.InterviewRoom, error) {
	room, err := s.GetRoom(ctx, roomID, requester)
	if err != nil {
		return nil, err
	}
	node, err := s.validator.ValidateAttachment(ctx, nodeID, requester)
	if err != nil {
		return nil, err
	}

	at := s.now().UTC()
	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		if err := lockAttachable(ctx, tx, node.ID); err != nil {
			return err
		}
		return tx.SetRoomResume(ctx, room.ID, &node.ID, at)
	})
	if err != nil {
		return nil, fmt.Errorf("attach resume %s to room %s: %w", nodeID, roomID, err)
	}

	s.logger.Info("resume attached to room", slog.String("room_id", room.ID), slog.String("node_id", node.ID))
	return s.store.GetRoom(ctx, room.ID)
}

// DetachResume 清空面试间的简历引用，面试继续进行。
func (s *Service) DetachResume(ctx context.Context, roomID, requester string) (*database.InterviewRoom, error) {
	room, err := s.GetRoom(ctx, roomID, requester)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetRoomResume(ctx, room.ID, nil, s.now().UTC()); err != nil {
		return nil, err
	}
	return s.store.GetRoom(ctx, room.ID)
}
