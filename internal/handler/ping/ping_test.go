package ping

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"novaflow/conf"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := conf.Default()
	cfg.Exchange.Name = "kraken"
	cfg.Exchange.Kraken.ApiKey = "key"
	cfg.Environment = "Production"

	g := gin.New()
	g.GET("/", Status(&cfg))
	g.GET("/health", Health())

	w := httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "Production", doc["environment"])
	assert.Equal(t, true, doc["api_key_set"])
	assert.Equal(t, false, doc["api_secret_set"])
	assert.NotContains(t, w.Body.String(), `"key"`)

	w = httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}
