package erp

import (
	"context"
	"encoding/json"
	"fmt"
)

// PageFunc fetches one page starting at start.
type PageFunc[T any] func(ctx context.Context, start, count int) Page[T]

// Batch is the accumulated result of a paginated collection.
type Batch[T any] struct {
	Items    []T
	Raw      []json.RawMessage
	Requests int
	Total    int
}

// Paginate walks a collection sequentially with fixed page size count. It
// stops on a short or empty page, or once the reported total is reached. On
// the first non-JSON page it returns what was accumulated so far together with
// that page's error.
func Paginate[T any](ctx context.Context, count int, fetch PageFunc[T]) (Batch[T], error) {
	var batch Batch[T]
	if count <= 0 {
		return batch, fmt.Errorf("erp: page size must be positive, got %d", count)
	}
	start := 0
	for {
		if err := ctx.Err(); err != nil {
			return batch, err
		}
		page := fetch(ctx, start, count)
		batch.Requests++

		switch page.Kind {
		case KindJSON:
		case KindHTML, KindError:
			return batch, page.Err()
		default:
			return batch, page.Err()
		}

		batch.Items = append(batch.Items, page.Items...)
		batch.Raw = append(batch.Raw, page.Raw...)
		if page.Total > batch.Total {
			batch.Total = page.Total
		}

		n := len(page.Items)
		if n == 0 || n < count {
			return batch, nil
		}
		// total is the collection-wide count, so a full last page ends the walk.
		if page.Total > 0 && len(batch.Items) >= page.Total {
			return batch, nil
		}
		start += count
	}
}
