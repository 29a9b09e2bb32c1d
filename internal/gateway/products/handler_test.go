package products_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookstore/internal/domain"
	gw "bookstore/internal/gateway"
	"bookstore/internal/gateway/products"
)

type fakeCatalog struct {
	items  []domain.Item
	err    error
	caller domain.Identity
}

func (f *fakeCatalog) VisibleItems(_ context.Context, id domain.Identity) ([]domain.Item, error) {
	f.caller = id
	return f.items, f.err
}

func serve(t *testing.T, h http.Handler, path string, id *domain.Identity) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if id != nil {
		req = req.WithContext(gw.ContextWithIdentity(req.Context(), *id))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestListProducts(t *testing.T) {
	cat := &fakeCatalog{items: []domain.Item{
		{ID: "b1", Title: "Dune", Publisher: "Dante", Price: 9.99, Currency: "USD"},
		{ID: "b2", Title: "Emma", Publisher: "William", PremiumOffer: true},
	}}
	r := products.NewRouter(cat, nil, nil)
	caller := domain.NewIdentity("Andrew", domain.RoleCustomer, nil, "US")

	rec := serve(t, r, "/product", &caller)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "Andrew", cat.caller.Username)

	var body struct {
		Products []map[string]any `json:"products"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Products, 2)
	assert.Equal(t, "b1", body.Products[0]["id"])
	assert.Equal(t, "Dune", body.Products[0]["title"])
	assert.Equal(t, true, body.Products[1]["premiumOffer"])
}

func TestListProductsEmptyIsArray(t *testing.T) {
	r := products.NewRouter(&fakeCatalog{}, nil, nil)

	rec := serve(t, r, "/product", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"products":[]}`, rec.Body.String())
}

func TestListProductsWithoutIdentityIsUnknown(t *testing.T) {
	cat := &fakeCatalog{}
	r := products.NewRouter(cat, nil, nil)

	serve(t, r, "/product", nil)
	assert.Equal(t, domain.UnknownIdentity(), cat.caller)
}

func TestListProductsErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "decision service down",
			err:        fmt.Errorf("evaluating: %w", domain.ErrServiceUnavailable),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "service_unavailable",
		},
		{
			name:       "unexpected",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "internal_error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := products.NewRouter(&fakeCatalog{err: tt.err}, nil, nil)

			rec := serve(t, r, "/product", nil)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var resp domain.ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.wantCode, resp.Error)
			assert.NotContains(t, resp.Message, "boom")
		})
	}
}

func TestGetProduct(t *testing.T) {
	cat := &fakeCatalog{items: []domain.Item{{ID: "b1", Title: "Dune"}, {ID: "b2", Title: "Emma"}}}
	r := products.NewRouter(cat, nil, nil)

	rec := serve(t, r, "/product/b2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Product *domain.Item `json:"product"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.NotNil(t, body.Product)
	assert.Equal(t, "Emma", body.Product.Title)
}

func TestGetProductHiddenOrMissing(t *testing.T) {
	cat := &fakeCatalog{items: []domain.Item{{ID: "b1"}}}
	r := products.NewRouter(cat, nil, nil)

	rec := serve(t, r, "/product/premium-book", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"product":null}`, rec.Body.String())
}

func TestGetProductServiceUnavailable(t *testing.T) {
	r := products.NewRouter(&fakeCatalog{err: domain.ErrServiceUnavailable}, nil, nil)

	rec := serve(t, r, "/product/b1", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	r := products.NewRouter(&fakeCatalog{}, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/product", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthz(t *testing.T) {
	r := products.NewRouter(&fakeCatalog{}, nil, nil)

	rec := serve(t, r, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReadyz(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	r := products.NewRouter(&fakeCatalog{}, map[string]products.ReadyCheck{"jwks": ok}, nil)
	rec := serve(t, r, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())

	r = products.NewRouter(&fakeCatalog{}, map[string]products.ReadyCheck{"jwks": ok, "redis": down}, nil)
	rec = serve(t, r, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"not_ready","check":"redis"}`, rec.Body.String())
}
