package erp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrLoginPage is returned when the vendor answers with an HTML login page
	// instead of JSON, which is how expired or missing credentials surface.
	ErrLoginPage = errors.New("erp: vendor returned an html page instead of json")
	// ErrUnauthorized is returned on explicit 401/403 responses.
	ErrUnauthorized = errors.New("erp: unauthorized")
)

// Kind classifies a vendor response.
type Kind int

const (
	KindJSON Kind = iota + 1
	KindHTML
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindJSON:
		return "json"
	case KindHTML:
		return "html"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// RequestError describes a failed page request.
type RequestError struct {
	Path   string
	Status int
	Detail string
}

func (e *RequestError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("erp: %s: status %d: %s", e.Path, e.Status, e.Detail)
	}
	return fmt.Sprintf("erp: %s: %s", e.Path, e.Detail)
}

// Unwrap lets callers match ErrUnauthorized with errors.Is.
func (e *RequestError) Unwrap() error {
	if e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden {
		return ErrUnauthorized
	}
	return nil
}

// Page is the tagged result of one page request. Only KindJSON pages carry
// items; callers must switch over Kind.
type Page[T any] struct {
	Kind   Kind
	Path   string
	Items  []T
	Raw    []json.RawMessage
	Total  int
	Status int
	Detail string
}

// Err returns nil for JSON pages and a descriptive error otherwise.
func (p Page[T]) Err() error {
	switch p.Kind {
	case KindJSON:
		return nil
	case KindHTML:
		return fmt.Errorf("%w: %s (status %d)", ErrLoginPage, p.Path, p.Status)
	case KindError:
		return &RequestError{Path: p.Path, Status: p.Status, Detail: p.Detail}
	default:
		return fmt.Errorf("erp: %s: unknown response kind %s", p.Path, p.Kind)
	}
}

// ErrorPage builds a KindError page.
func ErrorPage[T any](path string, status int, detail string) Page[T] {
	return Page[T]{Kind: KindError, Path: path, Status: status, Detail: detail}
}

// JSONPage builds a KindJSON page for sources that do not talk to the vendor
// over HTTP. Raw holds each item re-encoded so snapshots see the same
// collections as with the HTTP client.
func JSONPage[T any](path string, items []T) Page[T] {
	raw := make([]json.RawMessage, 0, len(items))
	for i, item := range items {
		b, err := json.Marshal(item)
		if err != nil {
			return ErrorPage[T](path, http.StatusOK, fmt.Sprintf("encode item %d: %v", i, err))
		}
		raw = append(raw, b)
	}
	return Page[T]{Kind: KindJSON, Path: path, Items: items, Raw: raw, Status: http.StatusOK}
}

// decodePage converts a classified response into a typed page.
func decodePage[T any](resp response) Page[T] {
	switch resp.kind {
	case KindHTML:
		return Page[T]{Kind: KindHTML, Path: resp.path, Status: resp.status, Detail: resp.detail}
	case KindError:
		return ErrorPage[T](resp.path, resp.status, resp.detail)
	case KindJSON:
	default:
		return ErrorPage[T](resp.path, resp.status, "unclassified response")
	}

	var env envelope
	if err := json.Unmarshal(resp.body, &env); err != nil {
		return ErrorPage[T](resp.path, resp.status, "malformed json: "+err.Error())
	}
	items := make([]T, 0, len(env.Items))
	for i, raw := range env.Items {
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			return ErrorPage[T](resp.path, resp.status, fmt.Sprintf("malformed item %d: %v", i, err))
		}
		items = append(items, item)
	}
	return Page[T]{
		Kind:   KindJSON,
		Path:   resp.path,
		Items:  items,
		Raw:    env.Items,
		Total:  env.Total,
		Status: resp.status,
	}
}
