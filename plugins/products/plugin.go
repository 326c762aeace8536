package products

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/SnowzyTech/regime/plugin"
	"github.com/SnowzyTech/regime/plugins/internal/plugutil"
	"github.com/SnowzyTech/regime/ratelimit"
	"github.com/SnowzyTech/regime/sanitize"
	"github.com/SnowzyTech/regime/storage"
	"github.com/SnowzyTech/regime/validate"
)

const (
	defaultPerPage  = 6
	maxPerPage      = 100
	maxPage         = 1000
	defaultFeatured = 4
	maxFeatured     = 20

	maxTitle       = 200
	maxDescription = 5000
	maxPrice       = 10_000_000
	maxFacet       = 100
	maxSKU         = 50
	maxStock       = 1_000_000
	maxImages      = 20
	maxImageURL    = 500
	maxIngredients = 100
	maxIngredient  = 200
	maxSizes       = 20
	maxSize        = 50
	maxApplication = 2000
	maxWarning     = 1000
)

type Plugin struct{}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) ID() string { return "products" }

type productView struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Category    string    `json:"category"`
	ProductType string    `json:"productType"`
	SkinConcern string    `json:"skinConcern,omitempty"`
	SKU         string    `json:"sku"`
	Stock       int       `json:"stock"`
	Images      []string  `json:"images"`
	Ingredients []string  `json:"ingredients"`
	Sizes       []string  `json:"sizes"`
	Application string    `json:"application,omitempty"`
	Warning     string    `json:"warning,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toView(p storage.Product) productView {
	return productView{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Price:       p.Price,
		Category:    p.Category,
		ProductType: p.ProductType,
		SkinConcern: p.SkinConcern,
		SKU:         p.SKU,
		Stock:       p.Stock,
		Images:      p.Images,
		Ingredients: p.Ingredients,
		Sizes:       p.Sizes,
		Application: p.Application,
		Warning:     p.Warning,
		CreatedAt:   p.CreatedAt,
	}
}

func (p *Plugin) Register(r *plugin.Registry) error {
	svc := r.Services()
	h := &handlers{store: svc.Store, log: svc.Logger.With("plugin", p.ID())}

	endpoints := []plugin.Endpoint{
		{
			Method:    http.MethodGet,
			Path:      "/products",
			Summary:   "Browse the catalog",
			Tags:      []string{"Products"},
			Operation: "products",
			Tier:      ratelimit.TierRelaxed,
			Handler:   h.list,
		},
		{
			Method:    http.MethodGet,
			Path:      "/products/detail",
			Summary:   "Get one product by id",
			Tags:      []string{"Products"},
			Operation: "product-detail",
			Tier:      ratelimit.TierRelaxed,
			Handler:   h.detail,
		},
		{
			Method:    http.MethodGet,
			Path:      "/products/featured",
			Summary:   "Newest products for the home page",
			Tags:      []string{"Products"},
			Operation: "products-featured",
			Tier:      ratelimit.TierRelaxed,
			Handler:   h.featured,
		},
		{
			Method:    http.MethodPost,
			Path:      "/admin/products",
			Summary:   "Create a product",
			Tags:      []string{"Products", "Admin"},
			Operation: "admin-products",
			Tier:      ratelimit.TierAdmin,
			Protected: true,
			Handler:   h.create,
		},
	}
	for _, ep := range endpoints {
		if err := r.Handle(ep); err != nil {
			return err
		}
	}
	return nil
}

type handlers struct {
	store storage.Primary
	log   *slog.Logger
}

func (h *handlers) list(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	page := intParam(q, "page", 1, maxPage, 1)
	perPage := intParam(q, "limit", 1, maxPerPage, defaultPerPage)

	filter := storage.ProductFilter{
		Search:      sanitize.String(q.Get("search"), sanitize.MaxLength(100), sanitize.SingleLine()),
		Category:    sanitize.String(q.Get("category"), sanitize.MaxLength(50), sanitize.SingleLine()),
		SkinConcern: sanitize.String(q.Get("skinConcern"), sanitize.MaxLength(50), sanitize.SingleLine()),
		ProductType: sanitize.String(q.Get("productType"), sanitize.MaxLength(50), sanitize.SingleLine()),
		Offset:      (page - 1) * perPage,
		Limit:       perPage,
	}
	list, total, err := h.store.ListProducts(req.Context(), filter)
	if err != nil {
		h.log.ErrorContext(req.Context(), "list products", "err", err)
		plugutil.WriteError(w, http.StatusInternalServerError, "PRODUCTS_FAILED", "Failed to fetch products", nil)
		return
	}
	plugutil.WriteJSON(w, http.StatusOK, map[string]any{
		"products": toViews(list),
		"total":    total,
		"page":     page,
		"perPage":  perPage,
	})
}

func (h *handlers) detail(w http.ResponseWriter, req *http.Request) {
	id, ok := sanitize.UUID(req.URL.Query().Get("id"))
	if !ok {
		plugutil.WriteError(w, http.StatusBadRequest, "INVALID_PRODUCT_ID", "Invalid product ID", nil)
		return
	}
	p, err := h.store.FindProductByID(req.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		plugutil.WriteError(w, http.StatusNotFound, "PRODUCT_NOT_FOUND", "Product not found", nil)
		return
	}
	if err != nil {
		h.log.ErrorContext(req.Context(), "find product", "id", id, "err", err)
		plugutil.WriteError(w, http.StatusInternalServerError, "PRODUCT_FAILED", "Failed to fetch product", nil)
		return
	}
	plugutil.WriteJSON(w, http.StatusOK, map[string]any{"product": toView(p)})
}

func (h *handlers) featured(w http.ResponseWriter, req *http.Request) {
	limit := intParam(req.URL.Query(), "limit", 1, maxFeatured, defaultFeatured)
	list, _, err := h.store.ListProducts(req.Context(), storage.ProductFilter{Limit: limit})
	if err != nil {
		h.log.ErrorContext(req.Context(), "list featured products", "err", err)
		plugutil.WriteError(w, http.StatusInternalServerError, "PRODUCTS_FAILED", "Failed to fetch featured products", nil)
		return
	}
	plugutil.WriteJSON(w, http.StatusOK, map[string]any{"products": toViews(list)})
}

type createPayload struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       any      `json:"price"`
	Category    string   `json:"category"`
	ProductType string   `json:"productType"`
	SkinConcern string   `json:"skinConcern"`
	SKU         string   `json:"sku"`
	Stock       any      `json:"stock"`
	Images      []string `json:"images"`
	Ingredients []string `json:"ingredients"`
	Sizes       []string `json:"sizes"`
	Application string   `json:"application"`
	Warning     string   `json:"warning"`
}

func (h *handlers) create(w http.ResponseWriter, req *http.Request) {
	var body createPayload
	if err := plugutil.DecodeJSON(w, req, &body); err != nil {
		plugutil.WriteInvalidJSON(w)
		return
	}

	var errs validate.Errors
	if !validate.Length(strings.TrimSpace(body.Title), 3, maxTitle) {
		errs.Add("title", "Title must be between 3 and 200 characters")
	}
	if !validate.Length(strings.TrimSpace(body.Description), 10, maxDescription) {
		errs.Add("description", "Description must be between 10 and 5000 characters")
	}
	price, ok := jsonNumber(body.Price)
	if !ok || price < 0 || price > maxPrice {
		errs.Add("price", "Price must be a number between 0 and 10000000")
	}
	if !validate.Length(strings.TrimSpace(body.Category), 1, maxFacet) {
		errs.Add("category", "Category is required")
	}
	if !validate.Length(strings.TrimSpace(body.ProductType), 1, maxFacet) {
		errs.Add("productType", "Product type is required")
	}
	if !validate.Length(body.SkinConcern, 0, maxFacet) {
		errs.Add("skinConcern", "Skin concern too long")
	}
	if !validate.Length(strings.TrimSpace(body.SKU), 1, maxSKU) {
		errs.Add("sku", "SKU is required")
	}
	stock, ok := jsonNumber(body.Stock)
	if !ok || stock != math.Trunc(stock) || stock < 0 || stock > maxStock {
		errs.Add("stock", "Stock must be a whole number between 0 and 1000000")
	}
	images, ok := cleanImages(body.Images)
	if !ok {
		errs.Add("images", "Images must be at most 20 http(s) URLs")
	}
	if !listWithin(body.Ingredients, maxIngredients, maxIngredient) {
		errs.Add("ingredients", "Too many ingredients or ingredient name too long")
	}
	if !listWithin(body.Sizes, maxSizes, maxSize) {
		errs.Add("sizes", "Too many sizes or size too long")
	}
	if !validate.Length(body.Application, 0, maxApplication) {
		errs.Add("application", "Application instructions too long")
	}
	if !validate.Length(body.Warning, 0, maxWarning) {
		errs.Add("warning", "Warning text too long")
	}
	if !errs.Empty() {
		plugutil.WriteValidationError(w, errs)
		return
	}

	single := func(v string, n int) string {
		return sanitize.String(v, sanitize.MaxLength(n), sanitize.SingleLine())
	}
	params := storage.CreateProductParams{
		Title:       single(body.Title, maxTitle),
		Description: sanitize.String(body.Description, sanitize.MaxLength(maxDescription)),
		Price:       sanitize.Number(price, sanitize.WithMin(0), sanitize.WithMax(maxPrice)),
		Category:    single(body.Category, maxFacet),
		ProductType: single(body.ProductType, maxFacet),
		SkinConcern: single(body.SkinConcern, maxFacet),
		SKU:         single(body.SKU, maxSKU),
		Stock:       int(sanitize.Number(stock, sanitize.WithMin(0), sanitize.WithMax(maxStock))),
		Images:      images,
		Ingredients: cleanList(body.Ingredients, maxIngredient),
		Sizes:       cleanList(body.Sizes, maxSize),
		Application: sanitize.String(body.Application, sanitize.MaxLength(maxApplication)),
		Warning:     sanitize.String(body.Warning, sanitize.MaxLength(maxWarning)),
	}
	if params.Title == "" || params.Category == "" || params.ProductType == "" || params.SKU == "" {
		errs.Add("body", "Required fields are empty after removing control characters")
		plugutil.WriteValidationError(w, errs)
		return
	}

	p, err := h.store.CreateProduct(req.Context(), params)
	if err != nil {
		h.log.ErrorContext(req.Context(), "create product", "err", err)
		plugutil.WriteError(w, http.StatusInternalServerError, "CREATE_PRODUCT_FAILED", "Failed to create product", nil)
		return
	}
	h.log.InfoContext(req.Context(), "product created", "id", p.ID, "sku", p.SKU)
	plugutil.WriteJSON(w, http.StatusCreated, map[string]any{
		"success":   true,
		"productId": p.ID,
		"product":   toView(p),
	})
}

func toViews(in []storage.Product) []productView {
	out := make([]productView, 0, len(in))
	for _, p := range in {
		out = append(out, toView(p))
	}
	return out
}

// intParam reads a whole-number query parameter clamped into [min, max]. A
// missing or non-numeric value yields def.
func intParam(q url.Values, name string, lo, hi, def int) int {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return def
	}
	n := sanitize.Number(raw, sanitize.WithMin(float64(lo)), sanitize.WithMax(float64(hi)), sanitize.WithDefault(float64(def)))
	return int(n)
}

// jsonNumber accepts JSON numbers only; numeric strings are rejected.
func jsonNumber(v any) (float64, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	f := sanitize.Number(n, sanitize.WithDefault(math.NaN()))
	return f, !math.IsNaN(f)
}

func cleanImages(in []string) ([]string, bool) {
	if len(in) > maxImages {
		return nil, false
	}
	out := make([]string, 0, len(in))
	for _, raw := range in {
		if !validate.Length(raw, 1, maxImageURL) {
			return nil, false
		}
		u, ok := sanitize.URL(strings.TrimSpace(raw))
		if !ok {
			return nil, false
		}
		out = append(out, u)
	}
	return out, true
}

func listWithin(in []string, maxItems, maxLen int) bool {
	if len(in) > maxItems {
		return false
	}
	for _, v := range in {
		if !validate.Length(v, 0, maxLen) {
			return false
		}
	}
	return true
}

// cleanList sanitizes each entry and drops the ones left empty.
func cleanList(in []string, maxLen int) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if c := sanitize.String(v, sanitize.MaxLength(maxLen), sanitize.SingleLine()); c != "" {
			out = append(out, c)
		}
	}
	return out
}
