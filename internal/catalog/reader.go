package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/sync/singleflight"
)

// Source is the read side of the catalog store.
type Source interface {
	Load() ([]Record, error)
}

// Reader answers storefront queries from the catalog file, caching results
// in Redis. Concurrent misses for the same key share one file load.
type Reader struct {
	source Source
	cache  *Cache
	logger *slog.Logger
	loads  singleflight.Group
}

// NewReader builds a reader. cache may be nil.
func NewReader(source Source, cache *Cache, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{source: source, cache: cache, logger: logger}
}

func (r *Reader) records(ctx context.Context) ([]Record, error) {
	ch := r.loads.DoChan("catalog", func() (any, error) {
		return r.source.Load()
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]Record), nil
	}
}

// Products returns one page of records matching f.
func (r *Reader) Products(ctx context.Context, f Filter) (Page, error) {
	f = f.Normalized()
	key, err := r.cache.BuildKey(ctx, "products",
		f.Category, f.Group, foldText(f.Search),
		strconv.FormatBool(f.IncludeOutOfStock), strconv.Itoa(f.Limit), strconv.Itoa(f.Offset))
	if err != nil {
		r.logger.Warn("catalog cache unavailable", slog.Any("error", err))
		return r.queryDirect(ctx, f)
	}
	var page Page
	err = r.cache.FetchJSON(ctx, key, &page, func(ctx context.Context) (any, error) {
		return r.queryDirect(ctx, f)
	})
	if err != nil {
		return Page{}, fmt.Errorf("catalog: query products: %w", err)
	}
	return page, nil
}

func (r *Reader) queryDirect(ctx context.Context, f Filter) (Page, error) {
	records, err := r.records(ctx)
	if err != nil {
		return Page{}, err
	}
	return Query(records, f), nil
}

// Product returns a single record regardless of stock.
func (r *Reader) Product(ctx context.Context, id ID) (Record, error) {
	records, err := r.records(ctx)
	if err != nil {
		return Record{}, err
	}
	rec, ok := Find(records, id)
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	return rec, nil
}

// Sections returns the section tree of in-stock records.
func (r *Reader) Sections(ctx context.Context) ([]Section, error) {
	key, err := r.cache.BuildKey(ctx, "sections")
	if err != nil {
		r.logger.Warn("catalog cache unavailable", slog.Any("error", err))
		records, err := r.records(ctx)
		if err != nil {
			return nil, err
		}
		return Sections(records), nil
	}
	var sections []Section
	err = r.cache.FetchJSON(ctx, key, &sections, func(ctx context.Context) (any, error) {
		records, err := r.records(ctx)
		if err != nil {
			return nil, err
		}
		return Sections(records), nil
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: sections: %w", err)
	}
	return sections, nil
}
