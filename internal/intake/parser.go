package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"interviewer/internal/resume"
)

// maxResponse 限制解析服务响应体大小。
const maxResponse = 4 << 20

// Parser 把 PDF 转成结构化内容。OCR 与大模型抽取都在外部服务里完成。
type Parser interface {
	Parse(ctx context.Context, filename string, pdf []byte) (resume.Content, error)
}

// HTTPParser 以 multipart 表单把 PDF 发给解析服务，响应体是抽取出的 JSON。
type HTTPParser struct {
	Endpoint string
	Secret   string
	Client   *http.Client
}

// Parse 只接受 2xx 响应；响应可以带 markdown 代码块包裹。
func (p HTTPParser) Parse(ctx context.Context, filename string, pdf []byte) (resume.Content, error) {
	endpoint := strings.TrimSpace(p.Endpoint)
	if endpoint == "" {
		return resume.Content{}, errors.New("parser endpoint missing")
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return resume.Content{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(pdf); err != nil {
		return resume.Content{}, fmt.Errorf("write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return resume.Content{}, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return resume.Content{}, fmt.Errorf("build parser request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")
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
			return resume.Content{}, ctxErr
		}
		return resume.Content{}, fmt.Errorf("request parser service: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponse))
	if err != nil {
		return resume.Content{}, fmt.Errorf("read parser response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resume.Content{}, fmt.Errorf("parser service status %d: %s", resp.StatusCode, truncate(strings.TrimSpace(string(data)), 512))
	}
	return DecodeContent(data)
}

// DecodeContent 解析抽取结果。模型输出常带 ```json 包裹或前后说明文字，取第一个 { 到最后一个 } 之间的部分。
func DecodeContent(data []byte) (resume.Content, error) {
	text := bytes.TrimSpace(data)
	start := bytes.IndexByte(text, '{')
	end := bytes.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return resume.Content{}, errors.New("no json object in parser response")
	}

	var content resume.Content
	if err := json.Unmarshal(text[start:end+1], &content); err != nil {
		return resume.Content{}, fmt.Errorf("decode parser response: %w", err)
	}
	return Normalize(content), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
