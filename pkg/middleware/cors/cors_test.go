package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newEngine(origins []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(origins))
	r.GET("/documents/download", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func request(r *gin.Engine, method, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/documents/download", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCORSAllowListedOrigin(t *testing.T) {
	r := newEngine([]string{"https://portal.example.edu/"})

	rec := request(r, http.MethodGet, "https://portal.example.edu")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://portal.example.edu", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "X-Document-Version")

	preflight := request(r, http.MethodOptions, "https://portal.example.edu")
	assert.Equal(t, http.StatusNoContent, preflight.Code)
	assert.Contains(t, preflight.Header().Get("Access-Control-Allow-Methods"), http.MethodPatch)
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	r := newEngine([]string{"https://portal.example.edu"})

	rec := request(r, http.MethodGet, "https://evil.example.com")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	preflight := request(r, http.MethodOptions, "https://evil.example.com")
	assert.Equal(t, http.StatusForbidden, preflight.Code)
}

func TestCORSAllowAllWithoutCredentials(t *testing.T) {
	r := newEngine(nil)

	rec := request(r, http.MethodGet, "https://anywhere.example.org")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}
