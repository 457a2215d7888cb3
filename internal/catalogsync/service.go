// Package catalogsync orchestrates one-way catalog synchronization from the
// Varejo Fácil API into the catalog store.
package catalogsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/guanabara/catalog-sync/internal/catalog"
	"github.com/guanabara/catalog-sync/internal/erp"
	jobmetrics "github.com/guanabara/catalog-sync/internal/jobs"
	"github.com/guanabara/catalog-sync/internal/shared"
)

// MetricsJob labels sync runs in the job metrics, whatever their trigger.
const MetricsJob = "catalog:sync"

// ErrNoProducts is returned when the products collection failed before any
// page arrived and Config.AbortOnEmptyProducts is set. Nothing is written in
// that case.
var ErrNoProducts = errors.New("catalogsync: no products fetched")

// Source is the vendor API as seen by the orchestrator.
type Source interface {
	Products(ctx context.Context, start, count int) erp.Page[erp.Product]
	Prices(ctx context.Context, start, count int) erp.Page[erp.Price]
	Sections(ctx context.Context, start, count int) erp.Page[erp.Lookup]
	Brands(ctx context.Context, start, count int) erp.Page[erp.Lookup]
	Genres(ctx context.Context, start, count int) erp.Page[erp.Lookup]
	Groups(ctx context.Context, sectionID int64, start, count int) erp.Page[erp.Group]
}

// Store persists the catalog and its snapshot.
type Store interface {
	Load() ([]catalog.Record, error)
	Save(records []catalog.Record, snap catalog.Snapshot) error
	Snapshot() (catalog.Snapshot, error)
	UpdateImage(id catalog.ID, image string) (catalog.Record, error)
}

// CacheInvalidator drops cached catalog reads after a write.
type CacheInvalidator interface {
	Bump(ctx context.Context) error
}

// Config tunes a Service.
type Config struct {
	ProductPageSize int
	LookupPageSize  int
	FetchGroups     bool
	LockTTL         time.Duration
	// AbortOnEmptyProducts fails the run instead of writing an empty catalog
	// when the first products page fails.
	AbortOnEmptyProducts bool
}

func (c Config) withDefaults() Config {
	if c.ProductPageSize <= 0 {
		c.ProductPageSize = 300
	}
	if c.LookupPageSize <= 0 {
		c.LookupPageSize = 1000
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 10 * time.Minute
	}
	return c
}

// Service runs catalog syncs. At most one run, or image edit, holds the
// catalog lock at a time.
type Service struct {
	cfg     Config
	source  Source
	store   Store
	locker  shared.Locker
	cache   CacheInvalidator
	history HistoryRepository
	metrics *jobmetrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
	running atomic.Bool
}

// Deps groups the collaborators of a Service. Cache, History and Metrics are
// optional.
type Deps struct {
	Source  Source
	Store   Store
	Locker  shared.Locker
	Cache   CacheInvalidator
	History HistoryRepository
	Metrics *jobmetrics.Metrics
	Logger  *slog.Logger
}

// NewService wires a Service.
func NewService(cfg Config, deps Deps) (*Service, error) {
	if deps.Source == nil {
		return nil, errors.New("catalogsync: source required")
	}
	if deps.Store == nil {
		return nil, errors.New("catalogsync: store required")
	}
	locker := deps.Locker
	if locker == nil {
		locker = shared.NewLocalLocker()
	}
	history := deps.History
	if history == nil {
		history = NewMemoryHistory(DefaultHistoryLimit)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:     cfg.withDefaults(),
		source:  deps.Source,
		store:   deps.Store,
		locker:  locker,
		cache:   deps.Cache,
		history: history,
		metrics: deps.Metrics,
		logger:  logger.With(slog.String("component", "catalogsync")),
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Running reports whether a sync is executing in this process.
func (s *Service) Running() bool { return s.running.Load() }

// Run performs one full sync. It returns shared.ErrSyncInProgress when
// another run holds the lock, ErrNoProducts when the product collection
// yielded nothing and AbortOnEmptyProducts is set, and a wrapped store error
// when the catalog could not be read or written. Lookup, price and product
// failures otherwise only add warnings.
func (s *Service) Run(ctx context.Context, trigger string) (Result, error) {
	if trigger == "" {
		trigger = TriggerManual
	}
	lease, ok, err := s.locker.TryLock(ctx, shared.CatalogSyncLockKey, s.cfg.LockTTL)
	if err != nil {
		return Result{}, fmt.Errorf("catalogsync: acquire lock: %w", err)
	}
	if !ok {
		return Result{}, shared.ErrSyncInProgress
	}
	s.running.Store(true)
	defer func() {
		s.running.Store(false)
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("release sync lock", slog.Any("error", err))
		}
	}()

	res := Result{
		RunID:     uuid.NewString(),
		Trigger:   trigger,
		StartedAt: s.now(),
		Warnings:  []string{},
	}
	logger := s.logger.With(slog.String("run_id", res.RunID), slog.String("trigger", trigger))
	logger.Info("catalog sync started")

	tracker := s.metrics.Track(MetricsJob)
	runErr := tracker.End(s.run(ctx, &res, logger))

	res.FinishedAt = s.now()
	res.DurationMillis = res.FinishedAt.Sub(res.StartedAt).Milliseconds()
	res.Status = StatusSuccess
	if runErr != nil {
		res.Status = StatusFailed
		res.Error = runErr.Error()
	}
	if err := s.history.Record(context.WithoutCancel(ctx), res); err != nil {
		logger.Warn("record sync history", slog.Any("error", err))
	}

	if runErr != nil {
		logger.Error("catalog sync failed",
			slog.Any("error", runErr),
			slog.Int64("duration_ms", res.DurationMillis),
			slog.Int("warnings", len(res.Warnings)),
		)
		return res, runErr
	}
	s.metrics.RecordSync(res.Totals.Products, res.PreservedImages, res.FinishedAt)
	logger.Info("catalog sync finished",
		slog.Int("products", res.Totals.Products),
		slog.Int("prices", res.Totals.Prices),
		slog.Int("sections", res.Totals.Sections),
		slog.Int("brands", res.Totals.Brands),
		slog.Int("genres", res.Totals.Genres),
		slog.Int("groups", res.Totals.Groups),
		slog.Int("preserved_images", res.PreservedImages),
		slog.Bool("products_truncated", res.ProductsTruncated),
		slog.Int("warnings", len(res.Warnings)),
		slog.Int64("duration_ms", res.DurationMillis),
	)
	return res, nil
}

type collected struct {
	sections erp.Batch[erp.Lookup]
	brands   erp.Batch[erp.Lookup]
	genres   erp.Batch[erp.Lookup]
	groups   []erp.Group
	rawGroup []json.RawMessage
	prices   erp.Batch[erp.Price]
}

func (s *Service) run(ctx context.Context, res *Result, logger *slog.Logger) error {
	var (
		mu  sync.Mutex
		col collected
	)
	warn := func(collection string, err error) {
		s.metrics.CollectionFailed(collection)
		logger.Warn("collection degraded", slog.String("collection", collection), slog.Any("error", err))
		mu.Lock()
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", collection, err))
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	lookups := []struct {
		collection erp.Collection
		fetch      erp.PageFunc[erp.Lookup]
		dest       *erp.Batch[erp.Lookup]
	}{
		{erp.CollectionSections, s.source.Sections, &col.sections},
		{erp.CollectionBrands, s.source.Brands, &col.brands},
		{erp.CollectionGenres, s.source.Genres, &col.genres},
	}
	for _, l := range lookups {
		g.Go(func() error {
			batch, err := erp.Paginate(gctx, s.cfg.LookupPageSize, l.fetch)
			if err != nil {
				warn(string(l.collection), err)
				return nil
			}
			*l.dest = batch
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("catalogsync: lookups: %w", err)
	}

	if s.cfg.FetchGroups {
		s.collectGroups(ctx, &col, warn)
	}

	prices, err := erp.Paginate(ctx, s.cfg.LookupPageSize, s.source.Prices)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("catalogsync: prices: %w", ctxErr)
		}
		warn(string(erp.CollectionPrices), err)
	} else {
		col.prices = prices
	}

	existing, err := s.store.Load()
	if err != nil {
		return fmt.Errorf("catalogsync: load existing catalog: %w", err)
	}
	preserve := catalog.BuildPreservationMap(existing)

	products, err := erp.Paginate(ctx, s.cfg.ProductPageSize, s.source.Products)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("catalogsync: products: %w", ctxErr)
		}
		if len(products.Items) == 0 && s.cfg.AbortOnEmptyProducts {
			s.metrics.CollectionFailed(string(erp.CollectionProducts))
			return fmt.Errorf("%w: %w", ErrNoProducts, err)
		}
		res.ProductsTruncated = true
		warn(string(erp.CollectionProducts), fmt.Errorf("truncated after %d products: %w", len(products.Items), err))
	}

	lookupIndex := catalog.NewLookups(col.prices.Items, col.sections.Items, col.brands.Items, col.genres.Items, col.groups)
	records := lookupIndex.FlattenAll(products.Items)
	res.PreservedImages = catalog.ApplyPreservation(records, preserve)
	res.Totals = catalog.Totals{
		Products: len(records),
		Prices:   len(col.prices.Items),
		Sections: len(col.sections.Items),
		Brands:   len(col.brands.Items),
		Genres:   len(col.genres.Items),
		Groups:   len(col.groups),
	}

	snap := catalog.Snapshot{
		RunID:             res.RunID,
		Trigger:           res.Trigger,
		LastSync:          s.now(),
		DurationMillis:    s.now().Sub(res.StartedAt).Milliseconds(),
		Totals:            res.Totals,
		PreservedImages:   res.PreservedImages,
		ProductsTruncated: res.ProductsTruncated,
		Warnings:          res.Warnings,
		Sections:          nonNilRaw(col.sections.Raw),
		Brands:            nonNilRaw(col.brands.Raw),
		Genres:            nonNilRaw(col.genres.Raw),
		Groups:            nonNilRaw(col.rawGroup),
		Prices:            nonNilRaw(col.prices.Raw),
		RawProducts:       nonNilRaw(products.Raw),
	}
	if err := s.store.Save(records, snap); err != nil {
		if !errors.Is(err, catalog.ErrSnapshotNotSaved) {
			return fmt.Errorf("catalogsync: save catalog: %w", err)
		}
		// The new catalog is live; only the diagnostics file is stale.
		logger.Error("catalog written without snapshot", slog.Any("error", err))
		res.Warnings = append(res.Warnings, fmt.Sprintf("snapshot: %v", err))
	}

	if s.cache != nil {
		if err := s.cache.Bump(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("invalidate catalog cache", slog.Any("error", err))
		}
	}
	return nil
}

// collectGroups fetches groups section by section. Failed sections are
// skipped and reported as one warning.
func (s *Service) collectGroups(ctx context.Context, col *collected, warn func(string, error)) {
	failed := 0
	var firstErr error
	for _, section := range col.sections.Items {
		if ctx.Err() != nil {
			return
		}
		sectionID := section.ID
		batch, err := erp.Paginate(ctx, s.cfg.LookupPageSize, func(ctx context.Context, start, count int) erp.Page[erp.Group] {
			return s.source.Groups(ctx, sectionID, start, count)
		})
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = fmt.Errorf("section %d: %w", sectionID, err)
			}
			continue
		}
		col.groups = append(col.groups, batch.Items...)
		col.rawGroup = append(col.rawGroup, batch.Raw...)
	}
	if failed > 0 {
		warn("grupos", fmt.Errorf("%d of %d sections failed, first: %w", failed, len(col.sections.Items), firstErr))
	}
}

func nonNilRaw(raw []json.RawMessage) []json.RawMessage {
	if raw == nil {
		return []json.RawMessage{}
	}
	return raw
}

// UpdateImage sets an admin image on one record. It takes the sync lock so
// an edit never lands between a run's load and save.
func (s *Service) UpdateImage(ctx context.Context, id catalog.ID, image string) (catalog.Record, error) {
	lease, ok, err := s.locker.TryLock(ctx, shared.CatalogSyncLockKey, time.Minute)
	if err != nil {
		return catalog.Record{}, fmt.Errorf("catalogsync: acquire lock: %w", err)
	}
	if !ok {
		return catalog.Record{}, shared.ErrSyncInProgress
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("release image lock", slog.Any("error", err))
		}
	}()

	rec, err := s.store.UpdateImage(id, image)
	if err != nil {
		return catalog.Record{}, err
	}
	if s.cache != nil {
		if err := s.cache.Bump(ctx); err != nil {
			s.logger.Warn("invalidate catalog cache", slog.Any("error", err))
		}
	}
	return rec, nil
}

// Status returns the last snapshot summary without syncing.
func (s *Service) Status(ctx context.Context) (Status, error) {
	st := Status{Running: s.Running()}
	snap, err := s.store.Snapshot()
	if errors.Is(err, catalog.ErrNoSnapshot) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("catalogsync: read snapshot: %w", err)
	}
	summary := snap.Summary()
	st.LastSync = &summary
	return st, nil
}

// History lists recent runs, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]Result, error) {
	return s.history.List(ctx, limit)
}
