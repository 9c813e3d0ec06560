package status

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"interviewer/internal/artifact"
	"interviewer/internal/database"
	"interviewer/internal/notify"
	"interviewer/internal/render"
	"interviewer/internal/resume"
	"interviewer/internal/store"
	"interviewer/internal/testutil"
)

const owner = "0xowner"

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *recordingNotifier) Notify(_ context.Context, ev notify.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, ev := range n.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	db       *gorm.DB
	store    *store.Store
	objects  *testutil.ObjectStore
	pipeline *testutil.Pipeline
	engine   *Engine
	notifier *recordingNotifier
}

func newFixture(t *testing.T, opts ...render.Option) *fixture {
	t.Helper()
	clock := testutil.NewClock(time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC))
	db := testutil.OpenDB(t)
	st := store.New(db)
	objects := testutil.NewObjectStore(clock.Now)
	repo := artifact.NewRepository(objects, artifact.Options{Now: clock.Now})
	pipeline := &testutil.Pipeline{}
	notifier := &recordingNotifier{}
	return &fixture{
		db:       db,
		store:    st,
		objects:  objects,
		pipeline: pipeline,
		engine: NewEngine(st, repo, render.NewRenderer(pipeline, opts...),
			WithClock(clock.Now),
			WithNotifier(notifier),
		),
		notifier: notifier,
	}
}

func (f *fixture) node(t *testing.T, content resume.Content) *database.ResumeNode {
	t.Helper()
	at := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	id := uuid.NewString()
	node := &database.ResumeNode{
		ID:           id,
		RootID:       id,
		OwnerAddress: owner,
		Status:       resume.StatusDraft,
		Name:         "root",
		Version:      1,
		CreatedAt:    at,
		UpdatedAt:    at,
	}
	require.NoError(t, f.store.CreateNode(context.Background(), node, store.NewContentRecord(id, content, at)))
	return node
}

func (f *fixture) statusOf(t *testing.T, id string) resume.Status {
	t.Helper()
	node, err := f.store.GetNode(context.Background(), id)
	require.NoError(t, err)
	return node.Status
}

func TestPublishAndUnpublish(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	node := f.node(t, resume.Content{FullName: "Li Lei", Phone: "138 0013 8000"})

	res, err := f.engine.Publish(ctx, node.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, resume.StatusPublished, res.Node.Status)
	assert.Equal(t, int64(2), res.Node.Version)
	require.NotNil(t, res.URL)
	assert.Equal(t, artifact.PublishedPDFKey(node.ID), res.URL.Key)

	yaml := f.objects.Data(artifact.RenderYAMLKey(node.ID))
	assert.Contains(t, string(yaml), "name: Li Lei")
	assert.Contains(t, string(yaml), "+86 138 0013 8000")
	assert.Equal(t, append([]byte("%PDF-1.7\n"), yaml...), f.objects.Data(artifact.PublishedPDFKey(node.ID)))
	assert.Equal(t, yaml, f.pipeline.Last())

	// 重复发布是允许的，会重新渲染并覆盖 PDF。
	_, err = f.engine.Publish(ctx, node.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, 2, f.pipeline.Calls())

	unpublished, err := f.engine.Unpublish(ctx, node.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, resume.StatusDraft, unpublished.Status)
	assert.True(t, f.objects.Has(artifact.PublishedPDFKey(node.ID)))

	_, err = f.engine.Unpublish(ctx, node.ID, owner)
	assert.ErrorIs(t, err, resume.ErrConflict)

	assert.Equal(t, []string{notify.TypePublished, notify.TypePublished, notify.TypeUnpublished}, f.notifier.types())
}

func TestPublishFailureKeepsStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("render failure", func(t *testing.T) {
		f := newFixture(t)
		node := f.node(t, resume.Content{FullName: "Li"})
		f.pipeline.Err = errors.New("rendercv exited 1")

		_, err := f.engine.Publish(ctx, node.ID, owner)
		require.ErrorIs(t, err, resume.ErrRenderFailure)
		assert.True(t, resume.Retryable(err))
		assert.Equal(t, resume.StatusDraft, f.statusOf(t, node.ID))
		assert.False(t, f.objects.Has(artifact.PublishedPDFKey(node.ID)))
	})

	t.Run("render timeout", func(t *testing.T) {
		f := newFixture(t, render.WithTimeout(20*time.Millisecond))
		node := f.node(t, resume.Content{FullName: "Li"})
		f.pipeline.Block = true

		_, err := f.engine.Publish(ctx, node.ID, owner)
		require.ErrorIs(t, err, resume.ErrRenderTimeout)
		assert.Equal(t, resume.StatusDraft, f.statusOf(t, node.ID))
	})

	t.Run("staging failure", func(t *testing.T) {
		f := newFixture(t)
		node := f.node(t, resume.Content{FullName: "Li"})
		f.objects.Fail = func(op, _ string) error {
			if op == "put" {
				return errors.New("bucket unavailable")
			}
			return nil
		}

		_, err := f.engine.Publish(ctx, node.ID, owner)
		require.ErrorIs(t, err, resume.ErrStorageFailure)
		assert.Equal(t, resume.StatusDraft, f.statusOf(t, node.ID))
		assert.Empty(t, f.objects.Keys("resumes/"))
	})

	t.Run("promotion failure rolls back status", func(t *testing.T) {
		f := newFixture(t)
		node := f.node(t, resume.Content{FullName: "Li"})
		f.objects.Fail = func(op, key string) error {
			if op == "copy" && key == artifact.PublishedPDFKey(node.ID) {
				return errors.New("bucket unavailable")
			}
			return nil
		}

		_, err := f.engine.Publish(ctx, node.ID, owner)
		require.ErrorIs(t, err, resume.ErrStorageFailure)
		assert.Equal(t, resume.StatusDraft, f.statusOf(t, node.ID))
		assert.False(t, f.objects.Has(artifact.PublishedPDFKey(node.ID)))
		assert.Empty(t, f.objects.Keys("resumes/temp/"))
	})

	t.Run("published node stays published", func(t *testing.T) {
		f := newFixture(t)
		node := f.node(t, resume.Content{FullName: "Li"})
		_, err := f.engine.Publish(ctx, node.ID, owner)
		require.NoError(t, err)

		f.pipeline.Err = errors.New("boom")
		_, err = f.engine.Publish(ctx, node.ID, owner)
		require.Error(t, err)
		assert.Equal(t, resume.StatusPublished, f.statusOf(t, node.ID))
	})
}

func TestPublishRejectsEditDuringRender(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	node := f.node(t, resume.Content{FullName: "Old"})
	f.pipeline.OnRender = func() {
		f.pipeline.OnRender = nil
		_, err := f.engine.SaveContent(ctx, node.ID, owner, resume.Content{FullName: "New"})
		assert.NoError(t, err)
	}

	_, err := f.engine.Publish(ctx, node.ID, owner)
	require.ErrorIs(t, err, resume.ErrConflict)

	assert.Equal(t, resume.StatusDraft, f.statusOf(t, node.ID))
	assert.False(t, f.objects.Has(artifact.PublishedPDFKey(node.ID)), "a draft that never published has no published pdf")
	yaml := string(f.objects.Data(artifact.RenderYAMLKey(node.ID)))
	assert.Contains(t, yaml, "New")
	assert.NotContains(t, yaml, "Old")
	assert.Empty(t, f.objects.Keys("resumes/temp/"))

	// 重新发布使用的是最新内容。
	res, err := f.engine.Publish(ctx, node.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, resume.StatusPublished, res.Node.Status)
	assert.Contains(t, string(f.objects.Data(artifact.PublishedPDFKey(node.ID))), "New")
}

func TestPublishMissingContent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	node := &database.ResumeNode{ID: "bare", RootID: "bare", OwnerAddress: owner, Status: resume.StatusDraft, Name: "bare", Version: 1}
	require.NoError(t, f.db.Create(node).Error)

	_, err := f.engine.Publish(ctx, node.ID, owner)
	require.ErrorIs(t, err, resume.ErrContentMissing)
	assert.Equal(t, 0, f.pipeline.Calls())
}

func TestSaveContent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	node := f.node(t, resume.Content{})

	_, err := f.engine.Publish(ctx, node.ID, owner)
	require.NoError(t, err)

	content := resume.Content{FullName: "Han Meimei", Skills: []resume.SkillGroup{{Category: "语言", Items: []string{"Go"}}}}
	saved, err := f.engine.SaveContent(ctx, node.ID, owner, content)
	require.NoError(t, err)
	assert.Equal(t, resume.StatusDraft, saved.Status, "saving a published resume makes it a draft again")
	assert.Equal(t, int64(3), saved.Version)

	got, err := f.engine.GetContent(ctx, node.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	snapshot := f.objects.Data(artifact.ContentKey(node.ID))
	assert.Contains(t, string(snapshot), "Han Meimei")
	assert.Contains(t, string(f.objects.Data(artifact.RenderYAMLKey(node.ID))), "Han Meimei")

	_, err = f.engine.SaveContent(ctx, node.ID, "0xother", content)
	assert.ErrorIs(t, err, resume.ErrPermissionDenied)
}

func TestSaveContentSurvivesSnapshotFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	node := f.node(t, resume.Content{})
	f.objects.Fail = func(op, _ string) error {
		if op == "put" {
			return errors.New("bucket unavailable")
		}
		return nil
	}

	_, err := f.engine.SaveContent(ctx, node.ID, owner, resume.Content{FullName: "Li"})
	require.NoError(t, err)

	got, err := f.engine.GetContent(ctx, node.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, "Li", got.FullName)
}

func TestConcurrentSavesKeepOneWriter(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	node := f.node(t, resume.Content{})

	var wg sync.WaitGroup
	names := []string{"A", "B", "C"}
	errs := make([]error, len(names))
	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.engine.SaveContent(ctx, node.ID, owner, resume.Content{FullName: name})
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	got, err := f.engine.GetContent(ctx, node.ID, owner)
	require.NoError(t, err)
	assert.Contains(t, names, got.FullName)

	current, err := f.store.GetNode(ctx, node.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1+len(names)), current.Version)
}

func TestPreview(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	node := f.node(t, resume.Content{FullName: "Li"})

	signed, err := f.engine.Preview(ctx, node.ID, owner)
	require.NoError(t, err)
	assert.Contains(t, signed.Key, "resumes/temp/"+owner+"/preview_")
	assert.True(t, f.objects.Has(signed.Key))
	assert.Equal(t, resume.StatusDraft, f.statusOf(t, node.ID))
	assert.False(t, f.objects.Has(artifact.PublishedPDFKey(node.ID)))

	f.pipeline.Err = errors.New("boom")
	_, err = f.engine.Preview(ctx, node.ID, owner)
	assert.ErrorIs(t, err, resume.ErrRenderFailure)
}

func TestGetPublishedURL(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	node := f.node(t, resume.Content{FullName: "Li"})

	_, err := f.engine.GetPublishedURL(ctx, node.ID, owner)
	require.ErrorIs(t, err, resume.ErrNotPublished)

	_, err = f.engine.Publish(ctx, node.ID, owner)
	require.NoError(t, err)
	signed, err := f.engine.GetPublishedURL(ctx, node.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, artifact.PublishedPDFKey(node.ID), signed.Key)
	assert.NotEmpty(t, signed.URL)
}

func TestValidateAttachment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	node := f.node(t, resume.Content{FullName: "Li"})

	_, err := f.engine.ValidateAttachment(ctx, node.ID, owner)
	require.ErrorIs(t, err, resume.ErrNotPublished)

	_, err = f.engine.Publish(ctx, node.ID, owner)
	require.NoError(t, err)
	_, err = f.engine.ValidateAttachment(ctx, node.ID, owner)
	require.NoError(t, err)
	_, err = f.engine.ValidateAttachment(ctx, node.ID, "0xother")
	require.ErrorIs(t, err, resume.ErrPermissionDenied)

	// 编辑后回到草稿，不能再挂到面试间。
	_, err = f.engine.SaveContent(ctx, node.ID, owner, resume.Content{FullName: "Li v2"})
	require.NoError(t, err)
	_, err = f.engine.ValidateAttachment(ctx, node.ID, owner)
	require.ErrorIs(t, err, resume.ErrNotPublished)

	published, err := f.engine.ListPublishable(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, published)
}

func TestRenderDescription(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	node := f.node(t, resume.Content{FullName: "Li", Summary: "十年后端经验"})

	data, err := f.engine.RenderDescription(ctx, node.ID)
	require.NoError(t, err)
	assert.Contains(t, string(data), "十年后端经验")

	_, err = f.engine.RenderDescription(ctx, "missing")
	assert.ErrorIs(t, err, resume.ErrNotFound)
}
