package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guanabara/catalog-sync/internal/catalog"
	cataloghttp "github.com/guanabara/catalog-sync/internal/catalog/http"
	"github.com/guanabara/catalog-sync/internal/catalogsync"
	synchttp "github.com/guanabara/catalog-sync/internal/catalogsync/http"
	"github.com/guanabara/catalog-sync/internal/observability"
	_ "github.com/guanabara/catalog-sync/internal/testing/guard"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("VF_BASE_URL", "")
	require.NoError(t, os.Unsetenv("VF_BASE_URL"))
	t.Setenv("VF_TOKEN", "token")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, "https://atacadaoguanabara.varejofacil.com/api", cfg.VendorBaseURL)
	assert.Equal(t, 300, cfg.VendorProductPageSize)
	assert.Equal(t, 1000, cfg.VendorLookupPageSize)
	assert.True(t, cfg.VendorFetchGroups)
	assert.Equal(t, 10*time.Minute, cfg.SyncLockTTL)
	assert.False(t, cfg.SyncAbortOnEmptyProducts)
	assert.Equal(t, "products.json", cfg.CatalogFile)
	assert.Equal(t, "varejo-facil-sync.json", cfg.SyncSnapshotFile)
	assert.True(t, cfg.HasVendorCredentials())
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"VF_BASE_URL":          "not a url",
		"VF_PRODUCT_PAGE_SIZE": "0",
		"LOG_FORMAT":           "xml",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestInTestMode(t *testing.T) {
	t.Setenv("CATALOG_TEST_MODE", "1")
	RefreshTestMode()
	assert.True(t, InTestMode())
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&Config{LogFormat: "json"}, &buf).Info("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
}

type staticReader struct{}

func (staticReader) Products(ctx context.Context, f catalog.Filter) (catalog.Page, error) {
	return catalog.Page{Items: []catalog.Record{{ID: "1", Name: "Arroz"}}, Total: 1, Limit: f.Limit}, nil
}

func (staticReader) Product(ctx context.Context, id catalog.ID) (catalog.Record, error) {
	return catalog.Record{ID: id}, nil
}

func (staticReader) Sections(ctx context.Context) ([]catalog.Section, error) {
	return nil, nil
}

type idleSyncer struct{}

func (idleSyncer) Run(ctx context.Context, trigger string) (catalogsync.Result, error) {
	return catalogsync.Result{RunID: "r", Trigger: trigger}, nil
}

func (idleSyncer) Status(ctx context.Context) (catalogsync.Status, error) {
	return catalogsync.Status{}, nil
}

func (idleSyncer) History(ctx context.Context, limit int) ([]catalogsync.Result, error) {
	return nil, nil
}

func TestRouterServesRoutes(t *testing.T) {
	cfg := &Config{AppRequestTimeout: time.Second}
	router := NewRouter(RouterParams{
		Config:         cfg,
		CatalogHandler: cataloghttp.NewHandler(nil, staticReader{}, nil, nil),
		SyncHandler:    synchttp.NewHandler(nil, idleSyncer{}, nil, nil, time.Second),
		Metrics:        observability.NewMetrics(),
	})

	for _, path := range []string{"/healthz", "/catalog/products", "/sync", "/metrics"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
}
