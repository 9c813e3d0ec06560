package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"interviewer/internal/config"
)

// Pipeline 把 RenderCV 描述渲染为 PDF。
type Pipeline interface {
	Render(ctx context.Context, description []byte) ([]byte, error)
}

const (
	inputFile = "resume.yaml"
	outputDir = "rendercv_output"
	maxOutput = 8 * 1024
)

// CLIPipeline 在临时目录里调用 `rendercv render resume.yaml`。
type CLIPipeline struct {
	Binary  string
	WorkDir string
}

// Render 写入描述、执行 CLI 并读取第一个生成的 PDF；临时目录总会被删除。
func (p CLIPipeline) Render(ctx context.Context, description []byte) ([]byte, error) {
	binary := p.Binary
	if binary == "" {
		binary = "rendercv"
	}

	dir, err := os.MkdirTemp(p.WorkDir, "rendercv_")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	if err := os.WriteFile(filepath.Join(dir, inputFile), description, 0o600); err != nil {
		return nil, fmt.Errorf("write render description: %w", err)
	}

	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, "render", inputFile)
	cmd.Dir = dir
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("rendercv exited: %w: %s", err, tail(output.String()))
	}

	pdfPath, err := findPDF(dir)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(pdfPath)
}

// findPDF 优先在 rendercv_output 下查找，找不到再扫描整个目录。
func findPDF(dir string) (string, error) {
	roots := []string{filepath.Join(dir, outputDir), dir}
	for _, root := range roots {
		var found string
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".pdf") {
				found = path
				return fs.SkipAll
			}
			return nil
		})
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("scan render output: %w", err)
		}
		if found != "" {
			return found, nil
		}
	}
	return "", errors.New("rendercv produced no pdf")
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxOutput {
		s = s[len(s)-maxOutput:]
	}
	return s
}

// HTTPPipeline 把描述 POST 给独立的渲染服务，响应体即 PDF。
type HTTPPipeline struct {
	Endpoint string
	Secret   string
	Client   *http.Client
}

// Render 只接受 2xx 响应；错误响应体截断后带入错误信息。
func (p HTTPPipeline) Render(ctx context.Context, description []byte) ([]byte, error) {
	endpoint := strings.TrimSpace(p.Endpoint)
	if endpoint == "" {
		return nil, errors.New("render endpoint missing")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(description))
	if err != nil {
		return nil, fmt.Errorf("build render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-yaml")
	req.Header.Set("Accept", "application/pdf")
	if secret := strings.TrimSpace(p.Secret); secret != "" {
		req.Header.Set("X-Internal-Secret", secret)
	}

	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 3 * time.Minute}
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("request render service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxOutput))
		return nil, fmt.Errorf("render service status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	pdf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read render response: %w", err)
	}
	if len(pdf) == 0 {
		return nil, errors.New("render service returned empty body")
	}
	return pdf, nil
}

// NewPipeline 按配置选择 CLI 或 HTTP 流水线，并返回用于指标的标签。
func NewPipeline(cfg config.RenderConfig, secret string) (Pipeline, string, error) {
	switch cfg.Mode {
	case config.RenderModeCLI, "":
		return CLIPipeline{Binary: cfg.Binary, WorkDir: cfg.WorkDir}, config.RenderModeCLI, nil
	case config.RenderModeHTTP:
		return HTTPPipeline{
			Endpoint: cfg.Endpoint,
			Secret:   secret,
			Client:   &http.Client{Timeout: cfg.Timeout + 10*time.Second},
		}, config.RenderModeHTTP, nil
	default:
		return nil, "", fmt.Errorf("unknown render mode %q", cfg.Mode)
	}
}
