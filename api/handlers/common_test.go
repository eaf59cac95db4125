// Common test helpers
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/docufetch/docufetch/config"
	"github.com/docufetch/docufetch/db/catalog"
	"github.com/docufetch/docufetch/db/searchdb"
	"github.com/docufetch/docufetch/logger"
	"github.com/docufetch/docufetch/validation"
)

type testCase struct {
	name             string
	requestHeaders   map[string]string
	requestBody      map[string]any
	queryParams      map[string]string
	expectedStatus   int
	expectedResponse *response
}

func newTestLogger() logger.Logger {

	opts := &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: true,
	}
	handler := slog.NewJSONHandler(os.Stderr, opts)
	return slog.New(handler)
}

func setupTestServer(t *testing.T, assert *require.Assertions) (*gin.Engine, catalog.Store) {

	t.Setenv("ENV", "test")
	t.Setenv("CATALOG_PATH", filepath.Join(t.TempDir(), "catalog.db"))
	t.Setenv("INDEX_PATH", filepath.Join(t.TempDir(), "preview.bleve"))
	t.Setenv("OUTPUT_ROOT", t.TempDir())

	cfg, err := config.Load()
	assert.NoError(err, "could not load config")

	testLogger := newTestLogger()

	searchDB, err := searchdb.New(testLogger, cfg)
	assert.NoError(err, "could not create search database")

	store, err := catalog.New(testLogger, cfg, searchDB)
	assert.NoError(err, "could not create catalog")

	validator, err := validation.New(testLogger)
	assert.NoError(err, "could not create validator")

	ctx, cancel := context.WithCancel(context.Background())

	gin.SetMode(gin.TestMode)
	router := gin.New()

	SetupIndex(ctx, router, testLogger, cfg, store, validator)
	SetupRetrieve(ctx, router, testLogger, cfg, store, validator)
	SetupSearch(router, testLogger, store, searchDB, validator)
	SetupStats(router, testLogger, store)

	t.Cleanup(func() {
		cancel()
		assert.NoError(store.Close(), "could not close catalog")
		assert.NoError(searchDB.Close(), "could not close search database")
	})

	return router, store
}

// writeTestTree lays out the fixture files under a fresh directory and
// returns its absolute path.
func writeTestTree(t *testing.T, assert *require.Assertions, files map[string]string) string {
	root := t.TempDir()
	for relPath, content := range files {
		fullPath := filepath.Join(root, relPath)
		err := os.MkdirAll(filepath.Dir(fullPath), 0755)
		assert.NoError(err, "could not create test sub-directory")
		err = os.WriteFile(fullPath, []byte(content), 0644)
		assert.NoError(err, "could not write test file")
	}
	return root
}

func makeTestHTTPRequest(router *gin.Engine, assert *require.Assertions, method string, endpoint string, headers map[string]string, requestBodyMap map[string]interface{}, queryParams map[string]string) *httptest.ResponseRecorder {

	var err error
	w := httptest.NewRecorder()

	if len(queryParams) > 0 {
		endpoint = endpoint + "?"
		for key, value := range queryParams {
			if endpoint[len(endpoint)-1] != '?' {
				endpoint = endpoint + "&"
			}
			endpoint = endpoint + key + "=" + value
		}
	}
	var jsonBody []byte
	var req *http.Request
	if requestBodyMap != nil {
		jsonBody, err = json.Marshal(requestBodyMap)
		assert.NoError(err)
	}

	slog.Info("Making test request", "method", method, "endpoint", endpoint, "headers", headers, "body", string(jsonBody))

	if len(jsonBody) > 0 {
		req, err = http.NewRequest(method, endpoint, bytes.NewBuffer(jsonBody))
	} else {
		req, err = http.NewRequest(method, endpoint, nil)
	}
	assert.NoError(err)

	for key, value := range headers {
		req.Header.Set(key, value)
	}
	router.ServeHTTP(w, req)

	return w
}
