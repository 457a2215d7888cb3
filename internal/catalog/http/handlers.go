package cataloghttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/guanabara/catalog-sync/internal/catalog"
	"github.com/guanabara/catalog-sync/internal/platform/httpx"
	"github.com/guanabara/catalog-sync/internal/shared"
)

const maxPageSize = 500

// Reader serves storefront queries.
type Reader interface {
	Products(ctx context.Context, f catalog.Filter) (catalog.Page, error)
	Product(ctx context.Context, id catalog.ID) (catalog.Record, error)
	Sections(ctx context.Context) ([]catalog.Section, error)
}

// ImageUpdater applies admin image edits.
type ImageUpdater interface {
	UpdateImage(ctx context.Context, id catalog.ID, image string) (catalog.Record, error)
}

// Handler exposes the catalog over HTTP.
type Handler struct {
	logger    *slog.Logger
	reader    Reader
	images    ImageUpdater
	guard     *shared.AdminGuard
	validator *validator.Validate
}

// NewHandler builds the catalog handler. images may be nil, which disables
// the image edit endpoint.
func NewHandler(logger *slog.Logger, reader Reader, images ImageUpdater, guard *shared.AdminGuard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		reader:    reader,
		images:    images,
		guard:     guard,
		validator: validator.New(),
	}
}

type imageForm struct {
	Image string `json:"image" validate:"required,url,max=2048"`
}

func (h *Handler) handleProducts(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	page, err := h.reader.Products(r.Context(), filter)
	if err != nil {
		h.handleServerError(w, "query products", err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) handleProduct(w http.ResponseWriter, r *http.Request) {
	id := catalog.ID(strings.TrimSpace(chi.URLParam(r, "id")))
	rec, err := h.reader.Product(r.Context(), id)
	if err != nil {
		if errors.Is(err, catalog.ErrRecordNotFound) {
			httpx.RespondError(w, fmt.Errorf("%w: product %s", httpx.ErrNotFound, id))
			return
		}
		h.handleServerError(w, "load product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) handleSections(w http.ResponseWriter, r *http.Request) {
	sections, err := h.reader.Sections(r.Context())
	if err != nil {
		h.handleServerError(w, "build sections", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sections": sections})
}

func (h *Handler) handleUpdateImage(w http.ResponseWriter, r *http.Request) {
	if h.images == nil {
		http.Error(w, http.StatusText(http.StatusNotImplemented), http.StatusNotImplemented)
		return
	}
	id := catalog.ID(strings.TrimSpace(chi.URLParam(r, "id")))
	var form imageForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	form.Image = strings.TrimSpace(form.Image)
	if err := h.validator.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			httpx.RespondError(w, fmt.Errorf("%w: image must be an absolute url (%s)", httpx.ErrValidation, fieldErrs[0].Tag()))
			return
		}
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	if catalog.IsPlaceholder(form.Image) {
		httpx.RespondError(w, fmt.Errorf("%w: placeholder images are not kept across syncs", httpx.ErrValidation))
		return
	}

	rec, err := h.images.UpdateImage(r.Context(), id, form.Image)
	switch {
	case err == nil:
		h.logger.Info("catalog image updated", slog.String("id", string(id)))
		httpx.JSON(w, http.StatusOK, rec)
	case errors.Is(err, catalog.ErrRecordNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: product %s", httpx.ErrNotFound, id))
	case errors.Is(err, shared.ErrSyncInProgress):
		w.Header().Set("Retry-After", "30")
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrConflict, err))
	default:
		h.handleServerError(w, "update image", err)
	}
}

func (h *Handler) handleServerError(w http.ResponseWriter, action string, err error) {
	h.logger.Error(action, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func parseFilter(r *http.Request) (catalog.Filter, error) {
	q := r.URL.Query()
	f := catalog.Filter{
		Category: q.Get("category"),
		Group:    q.Get("group"),
		Search:   firstParam(q.Get("search"), q.Get("q")),
	}
	if raw := q.Get("includeOutOfStock"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return f, fmt.Errorf("%w: includeOutOfStock must be a boolean", httpx.ErrValidation)
		}
		f.IncludeOutOfStock = v
	}
	var err error
	if f.Limit, err = intParam(q.Get("limit"), "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = intParam(q.Get("offset"), "offset"); err != nil {
		return f, err
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	return f, nil
}

func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", httpx.ErrValidation, name)
	}
	return v, nil
}

func firstParam(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
