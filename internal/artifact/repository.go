// Package artifact 管理简历节点在对象存储中的产物：内容快照、渲染描述、发布 PDF 与临时预览。
package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"interviewer/internal/resume"
	"interviewer/internal/storage"
)

const (
	contentFile   = "content.json"
	renderFile    = "rendercv.yaml"
	publishedFile = "published.pdf"

	nodeRoot      = "resumes/"
	previewRoot   = "resumes/temp/"
	stagingRoot   = "resumes/temp/publish/"
	previewLayout = "20060102150405.000"

	contentTypeJSON = "application/json"
	contentTypeYAML = "application/x-yaml"
	contentTypePDF  = "application/pdf"
)

// DefaultPreviewTTL 是预览 PDF 的有效期。
const DefaultPreviewTTL = 24 * time.Hour

// ObjectStore 是仓库依赖的对象存储子集，*storage.Client 满足该接口。
type ObjectStore interface {
	PutObject(ctx context.Context, objectKey string, data []byte, contentType string) error
	GetObject(ctx context.Context, objectKey string) ([]byte, error)
	ObjectExists(ctx context.Context, objectKey string) (bool, error)
	CopyObject(ctx context.Context, srcKey, dstKey string) error
	ListObjects(ctx context.Context, prefix string) ([]storage.ObjectMeta, error)
	DeleteObject(ctx context.Context, objectKey string) error
	DeletePrefix(ctx context.Context, prefix string) error
	PresignGetURL(ctx context.Context, objectKey string, ttl time.Duration, params map[string]string) (string, error)
}

// Options 配置仓库行为，零值字段使用默认值。
type Options struct {
	PreviewTTL      time.Duration
	PublishedURLTTL time.Duration
	Now             func() time.Time
}

// Repository 负责产物键的布局以及读写。
type Repository struct {
	store        ObjectStore
	previewTTL   time.Duration
	publishedTTL time.Duration
	now          func() time.Time
}

// SignedURL 是带过期时间的访问链接。
type SignedURL struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewRepository 创建产物仓库。
func NewRepository(store ObjectStore, opts Options) *Repository {
	if opts.PreviewTTL <= 0 {
		opts.PreviewTTL = DefaultPreviewTTL
	}
	if opts.PublishedURLTTL <= 0 {
		opts.PublishedURLTTL = 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Repository{
		store:        store,
		previewTTL:   opts.PreviewTTL,
		publishedTTL: opts.PublishedURLTTL,
		now:          opts.Now,
	}
}

// NodePrefix 返回节点产物的命名空间。
func NodePrefix(nodeID string) string { return nodeRoot + nodeID + "/" }

// ContentKey 返回内容快照的键。
func ContentKey(nodeID string) string { return NodePrefix(nodeID) + contentFile }

// RenderYAMLKey 返回渲染描述的键。
func RenderYAMLKey(nodeID string) string { return NodePrefix(nodeID) + renderFile }

// PublishedPDFKey 返回发布 PDF 的键。
func PublishedPDFKey(nodeID string) string { return NodePrefix(nodeID) + publishedFile }

// PreviewKey 返回某次预览的临时键，时间戳精确到毫秒。
func PreviewKey(owner string, at time.Time) string {
	stamp := strings.Replace(at.UTC().Format(previewLayout), ".", "", 1)
	return fmt.Sprintf("%s%s/preview_%s.pdf", previewRoot, owner, stamp)
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, resume.ErrStorageFailure, err)
}

// SaveContentSnapshot 以 JSON 形式覆盖 content.json。
func (r *Repository) SaveContentSnapshot(ctx context.Context, nodeID string, content resume.Content) error {
	data, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("encode content snapshot: %w", err)
	}
	if err := r.store.PutObject(ctx, ContentKey(nodeID), data, contentTypeJSON); err != nil {
		return storageErr("save content snapshot", err)
	}
	return nil
}

// LoadContentSnapshot 读取 content.json，admin audit 用它核对快照与数据库是否一致。
func (r *Repository) LoadContentSnapshot(ctx context.Context, nodeID string) (resume.Content, error) {
	data, err := r.store.GetObject(ctx, ContentKey(nodeID))
	if err != nil {
		if storage.IsNoSuchKey(err) {
			return resume.Content{}, fmt.Errorf("content snapshot of %s: %w", nodeID, resume.ErrNotFound)
		}
		return resume.Content{}, storageErr("load content snapshot", err)
	}
	var content resume.Content
	if err := json.Unmarshal(data, &content); err != nil {
		return resume.Content{}, fmt.Errorf("decode content snapshot: %w", err)
	}
	return content, nil
}

// SaveRenderYAML 覆盖 rendercv.yaml。
func (r *Repository) SaveRenderYAML(ctx context.Context, nodeID string, data []byte) error {
	if err := r.store.PutObject(ctx, RenderYAMLKey(nodeID), data, contentTypeYAML); err != nil {
		return storageErr("save render description", err)
	}
	return nil
}

// Staged 是一次发布暂存的渲染产物，提升之前不会出现在节点命名空间下。
type Staged struct {
	NodeID string
	Prefix string
}

func (s Staged) yamlKey() string { return s.Prefix + renderFile }
func (s Staged) pdfKey() string  { return s.Prefix + publishedFile }

// StagePublish 把渲染结果写到临时目录。任一写入失败时清理已写入的部分。
func (r *Repository) StagePublish(ctx context.Context, nodeID string, yaml, pdf []byte) (Staged, error) {
	staged := Staged{NodeID: nodeID, Prefix: fmt.Sprintf("%s%s/%s/", stagingRoot, nodeID, uuid.NewString())}
	if err := r.store.PutObject(ctx, staged.yamlKey(), yaml, contentTypeYAML); err != nil {
		return Staged{}, storageErr("stage render description", err)
	}
	if err := r.store.PutObject(ctx, staged.pdfKey(), pdf, contentTypePDF); err != nil {
		_ = r.store.DeletePrefix(ctx, staged.Prefix)
		return Staged{}, storageErr("stage published pdf", err)
	}
	return staged, nil
}

// PromoteStaged 把暂存产物复制到节点的正式键，published.pdf 最后覆盖。
// rendercv.yaml 描述的是节点当前内容，PDF 复制失败时先覆盖的 YAML 仍然一致。
func (r *Repository) PromoteStaged(ctx context.Context, staged Staged) error {
	if err := r.store.CopyObject(ctx, staged.yamlKey(), RenderYAMLKey(staged.NodeID)); err != nil {
		return storageErr("promote render description", err)
	}
	if err := r.store.CopyObject(ctx, staged.pdfKey(), PublishedPDFKey(staged.NodeID)); err != nil {
		return storageErr("promote published pdf", err)
	}
	return nil
}

// DiscardStaged 删除暂存目录；残留对象也会被预览清理任务回收。
func (r *Repository) DiscardStaged(ctx context.Context, staged Staged) error {
	if staged.Prefix == "" {
		return nil
	}
	if err := r.store.DeletePrefix(ctx, staged.Prefix); err != nil {
		return storageErr("discard staged artifacts", err)
	}
	return nil
}

// CopyNodeArtifacts 把父节点的 content.json 与 rendercv.yaml 复制到子节点命名空间。
// 父节点缺少 content.json 时用 fallback 写一份快照；published.pdf 不复制。
func (r *Repository) CopyNodeArtifacts(ctx context.Context, srcID, dstID string, fallback resume.Content) error {
	ok, err := r.store.ObjectExists(ctx, ContentKey(srcID))
	if err != nil {
		return storageErr("stat parent content snapshot", err)
	}
	if ok {
		if err := r.store.CopyObject(ctx, ContentKey(srcID), ContentKey(dstID)); err != nil {
			return storageErr("copy content snapshot", err)
		}
	} else if err := r.SaveContentSnapshot(ctx, dstID, fallback); err != nil {
		return err
	}

	ok, err = r.store.ObjectExists(ctx, RenderYAMLKey(srcID))
	if err != nil {
		return storageErr("stat parent render description", err)
	}
	if ok {
		if err := r.store.CopyObject(ctx, RenderYAMLKey(srcID), RenderYAMLKey(dstID)); err != nil {
			return storageErr("copy render description", err)
		}
	}
	return nil
}

// DeleteNode 删除节点命名空间下的全部产物。
func (r *Repository) DeleteNode(ctx context.Context, nodeID string) error {
	if strings.TrimSpace(nodeID) == "" {
		return fmt.Errorf("delete node artifacts: %w", resume.ErrInvalidArgument)
	}
	if err := r.store.DeletePrefix(ctx, NodePrefix(nodeID)); err != nil {
		return storageErr("delete node artifacts", err)
	}
	return nil
}

// PutPreview 上传一份预览 PDF 并返回 24 小时内有效的链接。
func (r *Repository) PutPreview(ctx context.Context, owner string, pdf []byte) (SignedURL, error) {
	now := r.now()
	key := PreviewKey(owner, now)
	if err := r.store.PutObject(ctx, key, pdf, contentTypePDF); err != nil {
		return SignedURL{}, storageErr("save preview", err)
	}
	url, err := r.store.PresignGetURL(ctx, key, r.previewTTL, inlinePDF("preview.pdf"))
	if err != nil {
		return SignedURL{}, storageErr("presign preview", err)
	}
	return SignedURL{Key: key, URL: url, ExpiresAt: now.Add(r.previewTTL)}, nil
}

// PublishedURL 为已发布 PDF 签发链接；PDF 不存在时返回 ErrNotFound。
func (r *Repository) PublishedURL(ctx context.Context, nodeID string) (SignedURL, error) {
	key := PublishedPDFKey(nodeID)
	ok, err := r.store.ObjectExists(ctx, key)
	if err != nil {
		return SignedURL{}, storageErr("stat published pdf", err)
	}
	if !ok {
		return SignedURL{}, fmt.Errorf("published pdf of %s: %w", nodeID, resume.ErrNotFound)
	}
	url, err := r.store.PresignGetURL(ctx, key, r.publishedTTL, inlinePDF(nodeID+".pdf"))
	if err != nil {
		return SignedURL{}, storageErr("presign published pdf", err)
	}
	return SignedURL{Key: key, URL: url, ExpiresAt: r.now().Add(r.publishedTTL)}, nil
}

// SweepPreviews 删除超过有效期的预览对象，返回删除数量。单个对象删除失败不会中断清理。
func (r *Repository) SweepPreviews(ctx context.Context) (int, error) {
	objects, err := r.store.ListObjects(ctx, previewRoot)
	if err != nil {
		return 0, storageErr("list previews", err)
	}
	cutoff := r.now().Add(-r.previewTTL)
	removed := 0
	var firstErr error
	for _, object := range objects {
		if object.LastModified.After(cutoff) {
			continue
		}
		if err := r.store.DeleteObject(ctx, object.Key); err != nil {
			if firstErr == nil {
				firstErr = storageErr("delete preview", err)
			}
			continue
		}
		removed++
	}
	return removed, firstErr
}

func inlinePDF(filename string) map[string]string {
	return map[string]string{
		"response-content-type":        contentTypePDF,
		"response-content-disposition": fmt.Sprintf("inline; filename=%q", filename),
	}
}
