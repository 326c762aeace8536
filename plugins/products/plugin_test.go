package products

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SnowzyTech/regime/plugin"
	"github.com/SnowzyTech/regime/storage"
	"github.com/SnowzyTech/regime/storage/memory"
)

func setup(t *testing.T) (*plugin.Registry, *memory.Store) {
	t.Helper()
	store := memory.New()
	reg := plugin.NewRegistry(plugin.Services{Store: store})
	require.NoError(t, New().Register(reg))
	return reg, store
}

func do(t *testing.T, reg *plugin.Registry, method, target, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for _, ep := range reg.Endpoints() {
		if ep.Method == method && ep.Path == req.URL.Path {
			rec := httptest.NewRecorder()
			ep.Handler(rec, req)
			var out map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
			return rec.Code, out
		}
	}
	t.Fatalf("no endpoint for %s %s", method, target)
	return 0, nil
}

func seed(t *testing.T, store *memory.Store, n int) []storage.Product {
	t.Helper()
	out := make([]storage.Product, 0, n)
	for i := 0; i < n; i++ {
		concern := "dryness"
		if i%2 == 1 {
			concern = "acne"
		}
		p, err := store.CreateProduct(context.Background(), storage.CreateProductParams{
			Title:       fmt.Sprintf("Serum %d", i),
			Description: "A gentle daily serum",
			Price:       float64(40 + i),
			Category:    "serums",
			ProductType: "serum",
			SkinConcern: concern,
			SKU:         fmt.Sprintf("SER-%03d", i),
			Stock:       10,
		})
		require.NoError(t, err)
		out = append(out, p)
		time.Sleep(time.Millisecond)
	}
	return out
}

func TestEndpointTiers(t *testing.T) {
	reg, _ := setup(t)
	for _, ep := range reg.Endpoints() {
		if ep.Path == "/admin/products" {
			assert.True(t, ep.Protected)
			assert.Equal(t, "admin", ep.Tier)
			continue
		}
		assert.False(t, ep.Protected, ep.Path)
		assert.Equal(t, "relaxed", ep.Tier, ep.Path)
	}
}

func TestListPaginatesAndFilters(t *testing.T) {
	reg, store := setup(t)
	seed(t, store, 8)

	code, out := do(t, reg, http.MethodGet, "/products", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, out["products"].([]any), 6)
	assert.EqualValues(t, 8, out["total"])
	assert.EqualValues(t, 1, out["page"])
	assert.EqualValues(t, 6, out["perPage"])
	assert.Equal(t, "Serum 7", out["products"].([]any)[0].(map[string]any)["title"])

	code, out = do(t, reg, http.MethodGet, "/products?page=2&limit=6", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, out["products"].([]any), 2)

	code, out = do(t, reg, http.MethodGet, "/products?skinConcern=acne", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 4, out["total"])

	code, out = do(t, reg, http.MethodGet, "/products?search=serum%203", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, out["total"])
}

func TestListClampsPaging(t *testing.T) {
	reg, store := setup(t)
	seed(t, store, 2)

	code, out := do(t, reg, http.MethodGet, "/products?page=0&limit=5000", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, out["page"])
	assert.EqualValues(t, 100, out["perPage"])

	code, out = do(t, reg, http.MethodGet, "/products?page=abc&limit=0x2", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, out["page"])
	assert.EqualValues(t, 2, out["perPage"])
}

func TestDetail(t *testing.T) {
	reg, store := setup(t)
	products := seed(t, store, 1)

	code, out := do(t, reg, http.MethodGet, "/products/detail?id="+strings.ToUpper(products[0].ID), "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, products[0].ID, out["product"].(map[string]any)["id"])

	code, out = do(t, reg, http.MethodGet, "/products/detail?id=1", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid product ID", out["message"])

	code, out = do(t, reg, http.MethodGet, "/products/detail?id="+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "PRODUCT_NOT_FOUND", out["code"])
}

func TestFeatured(t *testing.T) {
	reg, store := setup(t)
	seed(t, store, 6)

	code, out := do(t, reg, http.MethodGet, "/products/featured", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, out["products"].([]any), 4)

	code, out = do(t, reg, http.MethodGet, "/products/featured?limit=2", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, out["products"].([]any), 2)
}

func TestCreate(t *testing.T) {
	reg, store := setup(t)

	body := `{
		"title": "  Gentle Cleanser\u0000 ",
		"description": "pH-balanced, non-stripping formula for sensitive skin.",
		"price": 45,
		"category": "cleansers",
		"productType": "cleanser",
		"sku": "CLN-001",
		"stock": 50,
		"images": ["https://cdn.example.com/cleanser.png"],
		"ingredients": ["Water", "  ", "Glycerin"]
	}`
	code, out := do(t, reg, http.MethodPost, "/admin/products", body)
	require.Equal(t, http.StatusCreated, code, out)
	id := out["productId"].(string)

	p, err := store.FindProductByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Gentle Cleanser", p.Title)
	assert.Equal(t, []string{"Water", "Glycerin"}, p.Ingredients)
	assert.Equal(t, 50, p.Stock)
}

func TestCreateRejectsInvalidFields(t *testing.T) {
	reg, _ := setup(t)
	valid := map[string]any{
		"title":       "Gentle Cleanser",
		"description": "pH-balanced, non-stripping formula",
		"price":       45,
		"category":    "cleansers",
		"productType": "cleanser",
		"sku":         "CLN-001",
		"stock":       50,
	}
	cases := map[string]any{
		"title":  "ab",
		"price":  "45",
		"stock":  2.5,
		"images": []string{"javascript:alert(1)"},
		"sku":    "",
	}
	for field, bad := range cases {
		payload := map[string]any{}
		for k, v := range valid {
			payload[k] = v
		}
		payload[field] = bad
		raw, err := json.Marshal(payload)
		require.NoError(t, err)

		code, out := do(t, reg, http.MethodPost, "/admin/products", string(raw))
		assert.Equal(t, http.StatusBadRequest, code, field)
		assert.Equal(t, "VALIDATION_FAILED", out["code"], field)
	}
}
