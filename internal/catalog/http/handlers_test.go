package cataloghttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/guanabara/catalog-sync/internal/catalog"
	"github.com/guanabara/catalog-sync/internal/shared"
)

type stubImages struct {
	err    error
	lastID catalog.ID
	image  string
}

func (s *stubImages) UpdateImage(ctx context.Context, id catalog.ID, image string) (catalog.Record, error) {
	s.lastID, s.image = id, image
	if s.err != nil {
		return catalog.Record{}, s.err
	}
	return catalog.Record{ID: id, Image: image}, nil
}

type memorySource []catalog.Record

func (m memorySource) Load() ([]catalog.Record, error) { return m, nil }

func newTestRouter(t *testing.T, images ImageUpdater, guard *shared.AdminGuard) http.Handler {
	t.Helper()
	records := memorySource{
		{ID: "1", Name: "AÇÚCAR", Category: "MERCEARIA", InStock: true},
		{ID: "2", Name: "SABÃO", Category: "LIMPEZA", InStock: true},
	}
	reader := catalog.NewReader(records, nil, nil)
	r := chi.NewRouter()
	NewHandler(nil, reader, images, guard).MountRoutes(r)
	return r
}

func TestListProductsFilters(t *testing.T) {
	router := newTestRouter(t, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/catalog/products?category=Todos&q=acucar", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var page catalog.Page
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, catalog.ID("1"), page.Items[0].ID)
}

func TestListProductsRejectsBadLimit(t *testing.T) {
	router := newTestRouter(t, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/catalog/products?limit=abc", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetProductNotFound(t *testing.T) {
	router := newTestRouter(t, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/catalog/products/99", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSectionsEndpoint(t *testing.T) {
	router := newTestRouter(t, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/catalog/sections", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Sections []catalog.Section `json:"sections"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Sections, 2)
	assert.Equal(t, "LIMPEZA", body.Sections[0].Name)
}

func TestUpdateImage(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("admin"), bcrypt.MinCost)
	require.NoError(t, err)
	guard := shared.NewAdminGuard(string(hash))

	cases := []struct {
		name   string
		token  string
		body   string
		err    error
		status int
	}{
		{name: "no token", body: `{"image":"https://cdn.example.com/a.jpg"}`, status: http.StatusUnauthorized},
		{name: "not a url", token: "admin", body: `{"image":"arroz.jpg"}`, status: http.StatusBadRequest},
		{name: "placeholder", token: "admin", body: `{"image":"https://images.unsplash.com/x.jpg"}`, status: http.StatusBadRequest},
		{name: "unknown field", token: "admin", body: `{"img":"https://cdn.example.com/a.jpg"}`, status: http.StatusBadRequest},
		{name: "sync running", token: "admin", body: `{"image":"https://cdn.example.com/a.jpg"}`, err: shared.ErrSyncInProgress, status: http.StatusConflict},
		{name: "missing record", token: "admin", body: `{"image":"https://cdn.example.com/a.jpg"}`, err: catalog.ErrRecordNotFound, status: http.StatusNotFound},
		{name: "ok", token: "admin", body: `{"image":"https://cdn.example.com/a.jpg"}`, status: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			images := &stubImages{err: tc.err}
			router := newTestRouter(t, images, guard)
			req := httptest.NewRequest(http.MethodPut, "/catalog/products/1/image", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			if tc.token != "" {
				req.Header.Set(shared.AdminTokenHeader, tc.token)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			require.Equal(t, tc.status, rr.Code, rr.Body.String())
			if tc.status == http.StatusOK {
				assert.Equal(t, catalog.ID("1"), images.lastID)
				assert.Equal(t, "https://cdn.example.com/a.jpg", images.image)
			}
		})
	}
}
