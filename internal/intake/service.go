// Package intake 把用户上传的简历 PDF 导入为一棵新树：校验、病毒扫描、外部解析，再创建带内容的根节点。
package intake

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"interviewer/internal/database"
	"interviewer/internal/metrics"
	"interviewer/internal/resume"
	"interviewer/internal/tree"
)

const (
	// DefaultMaxBytes 是单个上传文件的大小上限。
	DefaultMaxBytes = 10 << 20
	// DefaultParseTimeout 是一次外部解析的时间上限。
	DefaultParseTimeout = 3 * time.Minute
)

var pdfMagic = []byte("%PDF-")

// RootCreator 创建带初始内容的根节点，*tree.Engine 满足该接口。
type RootCreator interface {
	CreateRoot(ctx context.Context, owner string, in tree.CreateRootInput) (*database.ResumeNode, error)
}

// Upload 是一次上传的文件与元数据。Name 为空时使用文件名。
type Upload struct {
	Filename       string
	Data           []byte
	Name           string
	TargetCompany  string
	TargetPosition string
}

// Result 是导入得到的根节点和抽取出的内容。
type Result struct {
	Node    *database.ResumeNode `json:"resume"`
	Content resume.Content       `json:"content"`
}

// Service 负责简历导入。
type Service struct {
	creator  RootCreator
	parser   Parser
	scanner  Scanner
	maxBytes int64
	timeout  time.Duration
	logger   *slog.Logger
}

// Option 调整 Service。
type Option func(*Service)

// WithScanner 设置上传扫描器；未设置时跳过扫描。
func WithScanner(s Scanner) Option {
	return func(svc *Service) { svc.scanner = s }
}

// WithMaxBytes 设置上传大小上限。
func WithMaxBytes(n int64) Option {
	return func(svc *Service) {
		if n > 0 {
			svc.maxBytes = n
		}
	}
}

// WithParseTimeout 设置单次解析超时。
func WithParseTimeout(d time.Duration) Option {
	return func(svc *Service) {
		if d > 0 {
			svc.timeout = d
		}
	}
}

// WithLogger 设置日志记录器。
func WithLogger(l *slog.Logger) Option {
	return func(svc *Service) {
		if l != nil {
			svc.logger = l
		}
	}
}

// NewService 创建导入服务。
func NewService(creator RootCreator, parser Parser, opts ...Option) *Service {
	svc := &Service{
		creator:  creator,
		parser:   parser,
		maxBytes: DefaultMaxBytes,
		timeout:  DefaultParseTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// MaxBytes 返回上传大小上限。
func (s *Service) MaxBytes() int64 { return s.maxBytes }

// Import 校验并扫描上传的 PDF，交给解析服务抽取内容，然后创建一棵以该内容为根的新树。
// 任何一步失败都不会创建节点。
func (s *Service) Import(ctx context.Context, owner string, up Upload) (*Result, error) {
	result, outcome, err := s.importPDF(ctx, owner, up)
	metrics.IncIntake(outcome)
	return result, err
}

func (s *Service) importPDF(ctx context.Context, owner string, up Upload) (*Result, string, error) {
	filename := path.Base(strings.ReplaceAll(strings.TrimSpace(up.Filename), "\\", "/"))
	if err := s.validate(owner, filename, up.Data); err != nil {
		return nil, "rejected", err
	}
	log := s.logger.With(slog.String("owner", owner), slog.String("filename", filename), slog.Int("size", len(up.Data)))

	if s.scanner != nil {
		if err := s.scanner.Scan(ctx, bytes.NewReader(up.Data)); err != nil {
			if errors.Is(err, ErrInfected) {
				log.Warn("upload rejected by scanner", slog.Any("error", err))
				return nil, "infected", fmt.Errorf("%w: %w", resume.ErrInvalidArgument, err)
			}
			log.Error("scan upload failed", slog.Any("error", err))
			return nil, "error", fmt.Errorf("scan upload: %w", err)
		}
	}

	pctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	start := time.Now()
	content, err := s.parser.Parse(pctx, filename, up.Data)
	if err == nil && Empty(content) {
		err = errors.New("nothing extracted")
	}
	if err != nil {
		log.Warn("extract resume failed", slog.Duration("elapsed", time.Since(start)), slog.Any("error", err))
		return nil, "extract_error", fmt.Errorf("%w: %w", resume.ErrExtractFailure, err)
	}

	name := strings.TrimSpace(up.Name)
	if name == "" {
		name = filename
	}
	node, err := s.creator.CreateRoot(ctx, owner, tree.CreateRootInput{
		Name:           name,
		TargetCompany:  up.TargetCompany,
		TargetPosition: up.TargetPosition,
		Content:        &content,
	})
	if err != nil {
		return nil, "error", err
	}

	log.Info("resume imported", slog.String("node_id", node.ID), slog.Duration("elapsed", time.Since(start)))
	return &Result{Node: node, Content: content}, "ok", nil
}

func (s *Service) validate(owner, filename string, data []byte) error {
	switch {
	case strings.TrimSpace(owner) == "":
		return fmt.Errorf("owner required: %w", resume.ErrInvalidArgument)
	case filename == "" || filename == "." || filename == "/":
		return fmt.Errorf("no file selected: %w", resume.ErrInvalidArgument)
	case !strings.EqualFold(path.Ext(filename), ".pdf"):
		return fmt.Errorf("only pdf files are accepted: %w", resume.ErrInvalidArgument)
	case len(data) == 0:
		return fmt.Errorf("empty file: %w", resume.ErrInvalidArgument)
	case int64(len(data)) > s.maxBytes:
		return fmt.Errorf("file exceeds %d bytes: %w", s.maxBytes, resume.ErrInvalidArgument)
	case !bytes.HasPrefix(data, pdfMagic):
		return fmt.Errorf("file is not a pdf document: %w", resume.ErrInvalidArgument)
	}
	return nil
}
