package mcp

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func guardRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/mcp", MCPMethodGuard(allowedMCPMethods), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router
}

func TestMCPMethodGuard(t *testing.T) {
	router := guardRouter()

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"allowed method", `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`, http.StatusOK},
		{"tool call", `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{}}`, http.StatusOK},
		{"unsupported method", `{"jsonrpc":"2.0","id":3,"method":"sampling/createMessage"}`, http.StatusBadRequest},
		{"missing method", `{"jsonrpc":"2.0","id":4}`, http.StatusBadRequest},
		{"malformed payload", `{not json`, http.StatusBadRequest},
		{"empty body", ``, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestMCPMethodGuardPreservesBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	var seen string
	router.POST("/mcp", MCPMethodGuard(allowedMCPMethods), func(c *gin.Context) {
		data, _ := c.GetRawData()
		seen = string(data)
		c.Status(http.StatusOK)
	})

	body := `{"jsonrpc":"2.0","id":1,"method":"ping"}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, body, seen)
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$0.003", formatMoney(0.003, "USD"))
	assert.Equal(t, "$0.05", formatMoney(0.05, ""))
	assert.Equal(t, "$1", formatMoney(1.0, "USD"))
	assert.Equal(t, "$0", formatMoney(0, "USD"))
	assert.Equal(t, "2.5 EUR", formatMoney(2.5, "EUR"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcde...", truncate("abcdefgh", 5))
}
