package render

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewer/internal/config"
)

func TestHTTPPipeline(t *testing.T) {
	var gotBody []byte
	var gotSecret string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSecret = r.Header.Get("X-Internal-Secret")
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.7 rendered"))
	}))
	t.Cleanup(srv.Close)

	p := HTTPPipeline{Endpoint: srv.URL, Secret: "s3cret"}
	pdf, err := p.Render(context.Background(), []byte("cv:\n  name: Li\n"))
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7 rendered"), pdf)
	assert.Equal(t, "cv:\n  name: Li\n", string(gotBody))
	assert.Equal(t, "s3cret", gotSecret)
}

func TestHTTPPipelineErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/empty":
			w.WriteHeader(http.StatusOK)
		case "/slow":
			<-r.Context().Done()
		default:
			http.Error(w, "invalid theme", http.StatusUnprocessableEntity)
		}
	}))
	t.Cleanup(srv.Close)

	_, err := HTTPPipeline{Endpoint: srv.URL + "/bad"}.Render(context.Background(), []byte("cv: {}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "invalid theme")

	_, err = HTTPPipeline{Endpoint: srv.URL + "/empty"}.Render(context.Background(), []byte("cv: {}"))
	assert.Error(t, err)

	_, err = HTTPPipeline{}.Render(context.Background(), []byte("cv: {}"))
	assert.Error(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = HTTPPipeline{Endpoint: srv.URL + "/slow"}.Render(ctx, []byte("cv: {}"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// fakeRenderCV 写一个模拟 rendercv 命令的脚本：把输入复制到 rendercv_output/out.pdf。
func fakeRenderCV(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stub requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "rendercv")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestCLIPipeline(t *testing.T) {
	bin := fakeRenderCV(t, `mkdir -p rendercv_output && cp "$2" rendercv_output/out.pdf`)
	work := t.TempDir()

	pdf, err := CLIPipeline{Binary: bin, WorkDir: work}.Render(context.Background(), []byte("cv: {}"))
	require.NoError(t, err)
	assert.Equal(t, []byte("cv: {}"), pdf)

	entries, err := os.ReadDir(work)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch directory is removed")
}

func TestCLIPipelineFailures(t *testing.T) {
	t.Run("non-zero exit", func(t *testing.T) {
		bin := fakeRenderCV(t, `echo "schema error" >&2; exit 3`)
		_, err := CLIPipeline{Binary: bin, WorkDir: t.TempDir()}.Render(context.Background(), []byte("cv: {}"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "schema error")
	})

	t.Run("no pdf produced", func(t *testing.T) {
		bin := fakeRenderCV(t, `exit 0`)
		_, err := CLIPipeline{Binary: bin, WorkDir: t.TempDir()}.Render(context.Background(), []byte("cv: {}"))
		require.Error(t, err)
	})

	t.Run("timeout", func(t *testing.T) {
		bin := fakeRenderCV(t, `exec sleep 5`)
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := CLIPipeline{Binary: bin, WorkDir: t.TempDir()}.Render(ctx, []byte("cv: {}"))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestNewPipeline(t *testing.T) {
	p, label, err := NewPipeline(config.RenderConfig{Mode: config.RenderModeCLI, Binary: "rendercv"}, "")
	require.NoError(t, err)
	assert.Equal(t, config.RenderModeCLI, label)
	assert.IsType(t, CLIPipeline{}, p)

	p, label, err = NewPipeline(config.RenderConfig{Mode: config.RenderModeHTTP, Endpoint: "http://render:8000"}, "s")
	require.NoError(t, err)
	assert.Equal(t, config.RenderModeHTTP, label)
	assert.Equal(t, "s", p.(HTTPPipeline).Secret)

	_, _, err = NewPipeline(config.RenderConfig{Mode: "docker"}, "")
	assert.Error(t, err)
}
