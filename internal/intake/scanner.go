package intake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dutchcoders/go-clamd"
)

// ErrInfected 表示扫描发现了恶意内容。
var ErrInfected = errors.New("malicious file detected")

// Scanner 在解析之前检查上传文件。
type Scanner interface {
	Scan(ctx context.Context, r io.Reader) error
}

// ClamdScanner 通过 clamd 的 INSTREAM 命令扫描文件流。Addr 形如 tcp://clamav:3310。
type ClamdScanner struct {
	Addr string
}

// Scan 读完全部扫描结果；任何一条不是 OK 都视为失败。
func (s ClamdScanner) Scan(ctx context.Context, r io.Reader) error {
	addr := strings.TrimSpace(s.Addr)
	if addr == "" {
		return errors.New("clamd address missing")
	}

	abort := make(chan bool)
	defer close(abort)
	results, err := clamd.NewClamd(addr).ScanStream(r, abort)
	if err != nil {
		return fmt.Errorf("scan upload: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case result, ok := <-results:
			if !ok {
				return nil
			}
			switch result.Status {
			case clamd.RES_OK:
			case clamd.RES_FOUND:
				return fmt.Errorf("%w: %s", ErrInfected, result.Description)
			default:
				return fmt.Errorf("clamd status %s: %s", result.Status, result.Raw)
			}
		}
	}
}
