package catalogsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guanabara/catalog-sync/internal/catalog"
	"github.com/guanabara/catalog-sync/internal/erp"
	jobmetrics "github.com/guanabara/catalog-sync/internal/jobs"
	"github.com/guanabara/catalog-sync/internal/shared"
)

const adminImage = "https://cdn.guanabara.com.br/produtos/7.jpg"

// fakeSource serves fixed collections in pages and can fail individual
// collections or a specific product page.
type fakeSource struct {
	mu            sync.Mutex
	products      []erp.Product
	prices        []erp.Price
	sections      []erp.Lookup
	brands        []erp.Lookup
	genres        []erp.Lookup
	groups        map[int64][]erp.Group
	failing       map[string]bool
	failProductAt int
	productCalls  int
	block         chan struct{}
}

func (f *fakeSource) fail(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failing[name]
}

func window[T any](path string, all []T, start, count int) erp.Page[T] {
	if start >= len(all) {
		return erp.JSONPage[T](path, []T{})
	}
	end := start + count
	if end > len(all) {
		end = len(all)
	}
	return erp.JSONPage(path, all[start:end])
}

func (f *fakeSource) Products(ctx context.Context, start, count int) erp.Page[erp.Product] {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.productCalls++
	call := f.productCalls
	f.mu.Unlock()
	if f.fail("produtos") || (f.failProductAt > 0 && call == f.failProductAt) {
		return erp.Page[erp.Product]{Kind: erp.KindHTML, Path: "/v1/produto/produtos", Status: http.StatusOK}
	}
	return window("/v1/produto/produtos", f.products, start, count)
}

func (f *fakeSource) Prices(ctx context.Context, start, count int) erp.Page[erp.Price] {
	if f.fail("precos") {
		return erp.ErrorPage[erp.Price]("/v1/produto/precos", http.StatusInternalServerError, "boom")
	}
	return window("/v1/produto/precos", f.prices, start, count)
}

func (f *fakeSource) Sections(ctx context.Context, start, count int) erp.Page[erp.Lookup] {
	if f.fail("secoes") {
		return erp.ErrorPage[erp.Lookup]("/v1/produto/secoes", http.StatusBadGateway, "down")
	}
	return window("/v1/produto/secoes", f.sections, start, count)
}

func (f *fakeSource) Brands(ctx context.Context, start, count int) erp.Page[erp.Lookup] {
	if f.fail("marcas") {
		return erp.ErrorPage[erp.Lookup]("/v1/produto/marcas", http.StatusBadGateway, "down")
	}
	return window("/v1/produto/marcas", f.brands, start, count)
}

func (f *fakeSource) Genres(ctx context.Context, start, count int) erp.Page[erp.Lookup] {
	if f.fail("generos") {
		return erp.ErrorPage[erp.Lookup]("/v1/produto/generos", http.StatusBadGateway, "down")
	}
	return window("/v1/produto/generos", f.genres, start, count)
}

func (f *fakeSource) Groups(ctx context.Context, sectionID int64, start, count int) erp.Page[erp.Group] {
	path := fmt.Sprintf("/v1/produto/secoes/%d/grupos", sectionID)
	if f.fail("grupos") {
		return erp.ErrorPage[erp.Group](path, http.StatusNotFound, "no groups")
	}
	return window(path, f.groups[sectionID], start, count)
}

func newFakeSource(n int) *fakeSource {
	src := &fakeSource{
		sections: []erp.Lookup{{ID: 1, Descricao: "MERCEARIA"}, {ID: 2, Descricao: "BEBIDAS"}},
		brands:   []erp.Lookup{{ID: 10, Descricao: "CAMIL"}},
		genres:   []erp.Lookup{{ID: 20, Descricao: "ALIMENTOS"}},
		groups:   map[int64][]erp.Group{1: {{ID: 5, SecaoID: 1, Descricao: "GRÃOS"}}},
		failing:  map[string]bool{},
	}
	for i := 1; i <= n; i++ {
		src.products = append(src.products, erp.Product{
			ID:        int64(i),
			Descricao: fmt.Sprintf("PRODUTO %d", i),
			SecaoID:   1,
			GrupoID:   5,
			MarcaID:   10,
			GeneroID:  20,
		})
		src.prices = append(src.prices, erp.Price{ProdutoID: int64(i), PrecoVenda1: erp.Amount(10 + i)})
	}
	return src
}

type fixture struct {
	svc     *Service
	src     *fakeSource
	store   *catalog.FileStore
	history *MemoryHistory
	mr      *miniredis.Miniredis
	cache   *catalog.Cache
	metrics *prometheus.Registry
}

func newFixture(t *testing.T, products int) *fixture {
	t.Helper()
	return newConfiguredFixture(t, products, nil)
}

func newConfiguredFixture(t *testing.T, products int, configure func(*Config)) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	src := newFakeSource(products)
	store := catalog.NewFileStore(t.TempDir(), "products.json", "varejo-facil-sync.json")
	history := NewMemoryHistory(10)
	cache := catalog.NewCache(client, time.Minute, nil)
	registry := prometheus.NewRegistry()
	cfg := Config{ProductPageSize: 2, LookupPageSize: 10, FetchGroups: true, LockTTL: time.Minute}
	if configure != nil {
		configure(&cfg)
	}
	svc, err := NewService(cfg, Deps{
		Source:  src,
		Store:   store,
		Locker:  shared.NewRedisLocker(client),
		Cache:   cache,
		History: history,
		Metrics: jobmetrics.NewMetrics(registry),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return &fixture{svc: svc, src: src, store: store, history: history, mr: mr, cache: cache, metrics: registry}
}

func TestRunWritesCatalogAndSnapshot(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	ver, err := f.cache.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), ver)

	res, err := f.svc.Run(ctx, TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, catalog.Totals{Products: 5, Prices: 5, Sections: 2, Brands: 1, Genres: 1, Groups: 1}, res.Totals)
	assert.Empty(t, res.Warnings)
	assert.False(t, res.ProductsTruncated)
	assert.NotEmpty(t, res.RunID)

	records, err := f.store.Load()
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, catalog.ID("1"), records[0].ID)
	assert.Equal(t, "MERCEARIA", records[0].Category)
	assert.Equal(t, "GRÃOS", records[0].Group)
	assert.Equal(t, 11.0, records[0].Price)

	snap, err := f.store.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, res.RunID, snap.RunID)
	assert.Len(t, snap.RawProducts, 5)
	assert.Len(t, snap.Sections, 2)
	assert.Len(t, snap.Groups, 1)

	ver, err = f.cache.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), ver, "sync bumps the cache version")

	runs, err := f.svc.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, res.RunID, runs[0].RunID)
	assert.False(t, f.mr.Exists(shared.CatalogSyncLockKey), "lock released")
}

func TestRunPreservesAdminImages(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	_, err := f.svc.Run(ctx, TriggerManual)
	require.NoError(t, err)

	_, err = f.svc.UpdateImage(ctx, "2", adminImage)
	require.NoError(t, err)

	res, err := f.svc.Run(ctx, TriggerScheduled)
	require.NoError(t, err)
	assert.Equal(t, 1, res.PreservedImages)

	records, err := f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, adminImage, records[1].Image)
	assert.Equal(t, catalog.PlaceholderImage, records[0].Image)

	before, err := os.ReadFile(f.store.CatalogPath())
	require.NoError(t, err)
	res, err = f.svc.Run(ctx, TriggerScheduled)
	require.NoError(t, err)
	assert.Equal(t, 1, res.PreservedImages)
	after, err := os.ReadFile(f.store.CatalogPath())
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after), "unchanged vendor data rewrites the same catalog")
}

func TestRunDegradesFailedLookups(t *testing.T) {
	f := newFixture(t, 2)
	f.src.failing["marcas"] = true
	f.src.failing["precos"] = true
	f.src.failing["grupos"] = true

	res, err := f.svc.Run(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.Len(t, res.Warnings, 3)
	assert.Zero(t, res.Totals.Brands)
	assert.Zero(t, res.Totals.Prices)

	records, err := f.store.Load()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, catalog.DefaultBrand, records[0].Brand)
	assert.Zero(t, records[0].Price)
	assert.Equal(t, "MERCEARIA", records[0].Category)
}

func TestRunMissingSectionsFallsBackToDefaultCategory(t *testing.T) {
	f := newFixture(t, 1)
	f.src.failing["secoes"] = true

	res, err := f.svc.Run(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.Len(t, res.Warnings, 1)

	records, err := f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, catalog.DefaultCategory, records[0].Category)
}

func TestRunKeepsPagesBeforeProductFailure(t *testing.T) {
	f := newFixture(t, 7)
	f.src.failProductAt = 3

	res, err := f.svc.Run(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.True(t, res.ProductsTruncated)
	assert.Equal(t, 4, res.Totals.Products)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "produtos")

	snap, err := f.store.Snapshot()
	require.NoError(t, err)
	assert.True(t, snap.ProductsTruncated)
}

func TestRunWithoutProductsWritesEmptyCatalog(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	_, err := f.svc.Run(ctx, TriggerManual)
	require.NoError(t, err)

	f.src.failing["produtos"] = true
	res, err := f.svc.Run(ctx, TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.True(t, res.ProductsTruncated)
	assert.Zero(t, res.Totals.Products)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "produtos")
	assert.Contains(t, res.Warnings[0], "html page")

	records, err := f.store.Load()
	require.NoError(t, err)
	assert.Empty(t, records)

	snap, err := f.store.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, res.RunID, snap.RunID)
	assert.True(t, snap.ProductsTruncated)
	assert.Equal(t, res.Warnings, snap.Warnings)

	failures, err := testutil.GatherAndCount(f.metrics, "catalog_sync_collection_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 1, failures)
}

func TestRunAbortOnEmptyProductsKeepsCatalog(t *testing.T) {
	f := newConfiguredFixture(t, 3, func(cfg *Config) { cfg.AbortOnEmptyProducts = true })
	ctx := context.Background()
	_, err := f.svc.Run(ctx, TriggerManual)
	require.NoError(t, err)
	before, err := os.ReadFile(f.store.CatalogPath())
	require.NoError(t, err)

	f.src.failing["produtos"] = true
	res, err := f.svc.Run(ctx, TriggerManual)
	require.ErrorIs(t, err, ErrNoProducts)
	require.ErrorIs(t, err, erp.ErrLoginPage)
	assert.Equal(t, StatusFailed, res.Status)

	after, err := os.ReadFile(f.store.CatalogPath())
	require.NoError(t, err)
	assert.Equal(t, before, after)

	runs, err := f.svc.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, StatusFailed, runs[0].Status)
}

func TestRunSnapshotFailureKeepsNewCatalog(t *testing.T) {
	f := newFixture(t, 2)
	require.NoError(t, os.MkdirAll(filepath.Join(f.store.SnapshotPath(), "occupied"), 0o755))

	res, err := f.svc.Run(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	require.Len(t, res.Warnings, 1)
	assert.True(t, strings.HasPrefix(res.Warnings[0], "snapshot: "))

	records, err := f.store.Load()
	require.NoError(t, err)
	assert.Len(t, records, 2)

	runs, err := f.svc.History(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, res.Warnings, runs[0].Warnings)
}

func TestRunAbortsOnCorruptCatalog(t *testing.T) {
	f := newFixture(t, 2)
	require.NoError(t, os.WriteFile(f.store.CatalogPath(), []byte("{not json"), 0o644))

	_, err := f.svc.Run(context.Background(), TriggerManual)
	require.Error(t, err)

	data, err := os.ReadFile(f.store.CatalogPath())
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(data))
	_, err = os.Stat(filepath.Join(filepath.Dir(f.store.CatalogPath()), "varejo-facil-sync.json"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestRunRejectsConcurrentSync(t *testing.T) {
	f := newFixture(t, 2)
	f.src.block = make(chan struct{})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Run(ctx, TriggerManual)
		done <- err
	}()

	require.Eventually(t, f.svc.Running, time.Second, 5*time.Millisecond)
	_, err := f.svc.Run(ctx, TriggerManual)
	require.ErrorIs(t, err, shared.ErrSyncInProgress)

	_, err = f.svc.UpdateImage(ctx, "1", adminImage)
	require.ErrorIs(t, err, shared.ErrSyncInProgress)

	status, err := f.svc.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Running)
	assert.Nil(t, status.LastSync)

	close(f.src.block)
	require.NoError(t, <-done)

	status, err = f.svc.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.Running)
	require.NotNil(t, status.LastSync)
	assert.Equal(t, 2, status.LastSync.Totals.Products)
}

func TestUpdateImageUnknownProduct(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	_, err := f.svc.Run(ctx, TriggerManual)
	require.NoError(t, err)

	_, err = f.svc.UpdateImage(ctx, "999", adminImage)
	require.ErrorIs(t, err, catalog.ErrRecordNotFound)
}

func TestRunRecordsMetrics(t *testing.T) {
	f := newFixture(t, 3)
	f.src.failing["marcas"] = true

	_, err := f.svc.Run(context.Background(), TriggerScheduled)
	require.NoError(t, err)

	expected := `
# HELP catalog_sync_products Products written by the last successful catalog sync.
# TYPE catalog_sync_products gauge
catalog_sync_products 3
# HELP catalog_sync_collection_failures_total Vendor collections that failed during a sync, by collection.
# TYPE catalog_sync_collection_failures_total counter
catalog_sync_collection_failures_total{collection="marcas"} 1
`
	require.NoError(t, testutil.GatherAndCompare(f.metrics, strings.NewReader(expected),
		"catalog_sync_products", "catalog_sync_collection_failures_total"))

	count, err := testutil.GatherAndCount(f.metrics, "catalog_jobs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMemoryHistoryBounded(t *testing.T) {
	h := NewMemoryHistory(3)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		require.NoError(t, h.Record(ctx, Result{RunID: fmt.Sprint(i)}))
	}
	runs, err := h.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "5", runs[0].RunID)
	assert.Equal(t, "3", runs[2].RunID)

	runs, err = h.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
}
