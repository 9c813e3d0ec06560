package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewer/internal/database"
	"interviewer/internal/resume"
	"interviewer/internal/testutil"
)

var epoch = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *Store {
	t.Helper()
	return New(testutil.OpenDB(t))
}

func insertNode(t *testing.T, s *Store, parent *database.ResumeNode, owner string, at time.Time) *database.ResumeNode {
	t.Helper()
	id := uuid.NewString()
	node := &database.ResumeNode{
		ID:           id,
		RootID:       id,
		OwnerAddress: owner,
		Status:       resume.StatusDraft,
		Name:         "resume",
		Version:      1,
		CreatedAt:    at,
		UpdatedAt:    at,
	}
	if parent != nil {
		pid := parent.ID
		node.ParentID = &pid
		node.RootID = parent.RootID
		node.Depth = parent.Depth + 1
	}
	require.NoError(t, s.CreateNode(context.Background(), node, NewContentRecord(id, resume.Content{FullName: "Li"}, at)))
	return node
}

func TestCreateAndGetNode(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	root := insertNode(t, s, nil, "0xa", epoch)

	got, err := s.GetNode(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, root.ID, got.RootID)
	assert.True(t, got.IsRoot())
	assert.Equal(t, int64(1), got.Version)

	content, err := s.GetContent(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, "Li", content.FullName)

	_, err = s.GetNode(ctx, "missing")
	assert.ErrorIs(t, err, resume.ErrNotFound)
	_, err = s.GetContent(ctx, "missing")
	assert.ErrorIs(t, err, resume.ErrContentMissing)
}

func TestUpdateStatusChecksVersion(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	node := insertNode(t, s, nil, "0xa", epoch)

	require.NoError(t, s.UpdateStatus(ctx, node.ID, 1, resume.StatusPublished, epoch.Add(time.Minute)))
	err := s.UpdateStatus(ctx, node.ID, 1, resume.StatusDraft, epoch.Add(2*time.Minute))
	assert.ErrorIs(t, err, resume.ErrConflict)

	got, err := s.GetNode(ctx, node.ID)
	require.NoError(t, err)
	assert.Equal(t, resume.StatusPublished, got.Status)
	assert.Equal(t, int64(2), got.Version)
}

func TestUpdateMetadata(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	node := insertNode(t, s, nil, "0xa", epoch)

	name, company, position := "后端", "ACME", ""
	require.NoError(t, s.UpdateMetadata(ctx, node.ID, 1, MetadataPatch{
		Name:           &name,
		TargetCompany:  &company,
		TargetPosition: &position,
	}, epoch.Add(time.Minute)))

	got, err := s.GetNode(ctx, node.ID)
	require.NoError(t, err)
	assert.Equal(t, "后端", got.Name)
	require.NotNil(t, got.TargetCompany)
	assert.Equal(t, "ACME", *got.TargetCompany)
	assert.Nil(t, got.TargetPosition)
	assert.Equal(t, resume.StatusDraft, got.Status)
}

func TestDeletedNodesAreHidden(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	root := insertNode(t, s, nil, "0xa", epoch)
	child := insertNode(t, s, root, "0xa", epoch.Add(time.Second))

	n, err := s.MarkDeleted(ctx, []string{child.ID}, epoch.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.MarkDeleted(ctx, []string{child.ID}, epoch.Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n, "already deleted nodes are not counted twice")

	_, err = s.GetActiveNode(ctx, child.ID)
	assert.ErrorIs(t, err, resume.ErrNotFound)
	assert.ErrorIs(t, s.LockActive(ctx, child.ID), resume.ErrNotFound)
	assert.NoError(t, s.LockActive(ctx, root.ID))

	children, err := s.ActiveChildren(ctx, []string{root.ID})
	require.NoError(t, err)
	assert.Empty(t, children)

	nodes, err := s.OwnerNodes(ctx, "0xa")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, root.ID, nodes[0].ID)

	all, err := s.AllNodes(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	err = s.UpdateStatus(ctx, child.ID, 2, resume.StatusDraft, epoch.Add(time.Hour))
	assert.ErrorIs(t, err, resume.ErrConflict)
}

func TestOwnedNode(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	node := insertNode(t, s, nil, "0xa", epoch)

	_, err := s.OwnedNode(ctx, "  ", "0xa")
	assert.ErrorIs(t, err, resume.ErrInvalidArgument)
	_, err = s.OwnedNode(ctx, node.ID, "0xb")
	assert.ErrorIs(t, err, resume.ErrPermissionDenied)
	got, err := s.OwnedNode(ctx, node.ID, "0xa")
	require.NoError(t, err)
	assert.Equal(t, node.ID, got.ID)
}

func TestReplaceContent(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	node := insertNode(t, s, nil, "0xa", epoch)

	next := resume.Content{
		FullName: "Wang",
		Skills:   []resume.SkillGroup{{Category: "语言", Items: []string{"Go", "SQL"}}},
	}
	require.NoError(t, s.ReplaceContent(ctx, node.ID, next, epoch.Add(time.Minute)))

	got, err := s.GetContent(ctx, node.ID)
	require.NoError(t, err)
	assert.Equal(t, "Wang", got.FullName)
	assert.Equal(t, next.Skills, got.Skills)
	assert.Empty(t, got.Education)

	assert.ErrorIs(t, s.ReplaceContent(ctx, "missing", next, epoch), resume.ErrContentMissing)

	ids, err := s.ContentNodeIDs(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, node.ID)
}

func TestTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	node := insertNode(t, s, nil, "0xa", epoch)

	err := s.Transaction(ctx, func(tx *Store) error {
		require.NoError(t, tx.UpdateStatus(ctx, node.ID, 1, resume.StatusPublished, epoch.Add(time.Minute)))
		return resume.ErrConflict
	})
	require.ErrorIs(t, err, resume.ErrConflict)

	got, err := s.GetNode(ctx, node.ID)
	require.NoError(t, err)
	assert.Equal(t, resume.StatusDraft, got.Status)
	assert.Equal(t, int64(1), got.Version)
}

func TestPublishedNodesOrder(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	older := insertNode(t, s, nil, "0xa", epoch)
	newer := insertNode(t, s, nil, "0xa", epoch.Add(time.Second))
	insertNode(t, s, nil, "0xa", epoch.Add(2*time.Second))
	insertNode(t, s, nil, "0xb", epoch)

	require.NoError(t, s.UpdateStatus(ctx, newer.ID, 1, resume.StatusPublished, epoch.Add(time.Hour)))
	require.NoError(t, s.UpdateStatus(ctx, older.ID, 1, resume.StatusPublished, epoch.Add(2*time.Hour)))

	nodes, err := s.PublishedNodes(ctx, "0xa")
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, older.ID, nodes[0].ID)
	assert.Equal(t, newer.ID, nodes[1].ID)
}

func TestRoomReferences(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	node := insertNode(t, s, nil, "0xa", epoch)

	ref := node.ID
	room := &database.InterviewRoom{ID: uuid.NewString(), Name: "一面", OwnerAddress: "0xa", ResumeID: &ref, CreatedAt: epoch, UpdatedAt: epoch}
	require.NoError(t, s.CreateRoom(ctx, room))

	ids, err := s.RoomIDsByResume(ctx, node.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{room.ID}, ids)

	n, err := s.ClearRoomReferences(ctx, []string{node.ID}, epoch.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := s.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ResumeID)

	require.NoError(t, s.SetRoomResume(ctx, room.ID, &ref, epoch.Add(2*time.Minute)))
	got, err = s.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ResumeID)
	assert.Equal(t, node.ID, *got.ResumeID)

	_, err = s.GetRoom(ctx, "missing")
	assert.ErrorIs(t, err, resume.ErrNotFound)
}
