package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"interviewer/internal/metrics"
	"interviewer/internal/resume"
)

// DefaultTimeout 是单次外部渲染的时间上限。
const DefaultTimeout = 120 * time.Second

// Output 是一次成功渲染的产物，YAML 与 PDF 一一对应。
type Output struct {
	YAML []byte
	PDF  []byte
}

// Renderer 把内容转换、编码并交给流水线，负责超时和错误分类。
type Renderer struct {
	pipeline Pipeline
	timeout  time.Duration
	label    string
	logger   *slog.Logger
}

// Option 调整 Renderer。
type Option func(*Renderer)

// WithTimeout 设置单次渲染超时。
func WithTimeout(d time.Duration) Option {
	return func(r *Renderer) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLabel 设置指标里的 pipeline 标签。
func WithLabel(label string) Option {
	return func(r *Renderer) { r.label = label }
}

// WithLogger 设置日志记录器。
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRenderer 创建 Renderer。
func NewRenderer(p Pipeline, opts ...Option) *Renderer {
	r := &Renderer{
		pipeline: p,
		timeout:  DefaultTimeout,
		label:    "default",
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render 先生成 YAML 再调用流水线。失败时不会产生任何可被节点引用的产物。
func (r *Renderer) Render(ctx context.Context, content resume.Content) (Output, error) {
	description, err := Describe(content)
	if err != nil {
		return Output{}, fmt.Errorf("%w: %w", resume.ErrRenderFailure, err)
	}

	rctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	pdf, err := r.pipeline.Render(rctx, description)
	elapsed := time.Since(start)

	switch {
	case err == nil && len(pdf) == 0:
		err = fmt.Errorf("%w: pipeline returned empty pdf", resume.ErrRenderFailure)
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(rctx.Err(), context.DeadlineExceeded):
		err = fmt.Errorf("%w after %s: %w", resume.ErrRenderTimeout, r.timeout, err)
	default:
		err = fmt.Errorf("%w: %w", resume.ErrRenderFailure, err)
	}

	metrics.ObserveRender(r.label, outcome(err), elapsed)
	if err != nil {
		r.logger.Warn("render failed",
			slog.String("pipeline", r.label),
			slog.Duration("elapsed", elapsed),
			slog.Any("error", err),
		)
		return Output{}, err
	}
	return Output{YAML: description, PDF: pdf}, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, resume.ErrRenderTimeout):
		return "timeout"
	default:
		return "error"
	}
}
