package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func serve(r *gin.Engine, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCorrelationID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CorrelationIDMiddleware())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetCorrelationID(c)) })

	w := serve(r, map[string]string{"X-Correlation-ID": "req-1"})
	assert.Equal(t, "req-1", w.Body.String())
	assert.Equal(t, "req-1", w.Header().Get("X-Correlation-ID"))

	w = serve(r, nil)
	assert.Len(t, w.Body.String(), 36)

	w = serve(r, map[string]string{"X-Correlation-ID": strings.Repeat("x", 200)})
	assert.Len(t, w.Body.String(), 36)
}

func TestInternalSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(InternalSecretMiddleware("s3cret"))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	assert.Equal(t, http.StatusUnauthorized, serve(r, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, map[string]string{"X-Internal-Secret": "wrong"}).Code)
	assert.Equal(t, http.StatusNoContent, serve(r, map[string]string{"X-Internal-Secret": "s3cret"}).Code)

	unset := gin.New()
	unset.Use(InternalSecretMiddleware(" "))
	unset.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	assert.Equal(t, http.StatusInternalServerError, serve(unset, nil).Code)
}
