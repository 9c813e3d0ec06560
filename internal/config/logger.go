package config

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger 根据 log.format 构造 slog 日志，json 以外的值都使用文本格式。
func NewLogger(cfg LogConfig) *slog.Logger {
	if strings.EqualFold(strings.TrimSpace(cfg.Format), "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}
