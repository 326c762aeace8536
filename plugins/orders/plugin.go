package orders

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
	defaultPerPage = 10
	maxPerPage     = 100
	maxPage        = 1000

	maxItems       = 50
	maxQuantity    = 100
	maxCustomer    = 100
	maxStreet      = 200
	maxPlace       = 100
	maxFilterLabel = 20
)

// Options configures the plugin. Now defaults to time.Now.
type Options struct {
	Now func() time.Time
}

type Plugin struct {
	now func() time.Time
}

func New(opts Options) *Plugin {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Plugin{now: opts.Now}
}

func (p *Plugin) ID() string { return "orders" }

type orderView struct {
	ID              string              `json:"id"`
	Email           string              `json:"email"`
	CustomerName    string              `json:"customerName"`
	Items           []storage.OrderItem `json:"items"`
	Total           float64             `json:"total"`
	Status          storage.OrderStatus `json:"status"`
	ShippingAddress *storage.Address    `json:"shippingAddress"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

func toView(o storage.Order) orderView {
	return orderView{
		ID:              o.ID,
		Email:           o.Email,
		CustomerName:    o.CustomerName,
		Items:           o.Items,
		Total:           o.Total,
		Status:          o.Status,
		ShippingAddress: o.ShippingAddress,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func (p *Plugin) Register(r *plugin.Registry) error {
	svc := r.Services()
	h := &handlers{store: svc.Store, log: svc.Logger.With("plugin", p.ID()), now: p.now}

	endpoints := []plugin.Endpoint{
		{
			Method:    http.MethodPost,
			Path:      "/orders",
			Summary:   "Place an order",
			Tags:      []string{"Orders"},
			Operation: "orders",
			Tier:      ratelimit.TierStandard,
			Handler:   h.place,
		},
		{
			Method:    http.MethodGet,
			Path:      "/admin/orders",
			Summary:   "List orders",
			Tags:      []string{"Orders", "Admin"},
			Operation: "admin-orders",
			Tier:      ratelimit.TierAdmin,
			Protected: true,
			Handler:   h.list,
		},
		{
			Method:    http.MethodPatch,
			Path:      "/admin/orders",
			Summary:   "Change an order's status",
			Tags:      []string{"Orders", "Admin"},
			Operation: "admin-orders",
			Tier:      ratelimit.TierAdmin,
			Protected: true,
			Handler:   h.updateStatus,
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
	now   func() time.Time
}

type itemPayload struct {
	ProductID string `json:"productId"`
	Quantity  any    `json:"quantity"`
	Price     any    `json:"price"`
}

type placePayload struct {
	Items    []itemPayload `json:"items"`
	Customer struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"customer"`
	Total           any              `json:"total"`
	ShippingAddress *storage.Address `json:"shippingAddress"`
}

// place records a PENDING order. Payment happens elsewhere.
func (h *handlers) place(w http.ResponseWriter, req *http.Request) {
	var body placePayload
	if err := plugutil.DecodeJSON(w, req, &body); err != nil {
		plugutil.WriteInvalidJSON(w)
		return
	}

	var errs validate.Errors
	if len(body.Items) == 0 {
		errs.Add("items", "Order must have at least one item")
	} else if len(body.Items) > maxItems {
		errs.Add("items", "Order has too many items")
	}
	items := make([]storage.OrderItem, 0, len(body.Items))
	for _, it := range body.Items {
		item, msg := cleanItem(it)
		if msg != "" {
			errs.Add("items", msg)
			break
		}
		items = append(items, item)
	}
	if !validate.Email(body.Customer.Email) {
		errs.Add("customer.email", "Invalid email address")
	}
	if !validate.Length(strings.TrimSpace(body.Customer.Name), 1, maxCustomer) {
		errs.Add("customer.name", "Name is required and must be at most 100 characters")
	}
	total, ok := jsonNumber(body.Total)
	if !ok || total <= 0 {
		errs.Add("total", "Total must be positive")
	}
	address, addressErr := cleanAddress(body.ShippingAddress)
	if addressErr != "" {
		errs.Add("shippingAddress", addressErr)
	}
	if !errs.Empty() {
		plugutil.WriteValidationError(w, errs)
		return
	}

	params := storage.CreateOrderParams{
		Email:           sanitize.Email(body.Customer.Email),
		CustomerName:    sanitize.String(body.Customer.Name, sanitize.MaxLength(maxCustomer), sanitize.SingleLine()),
		Items:           items,
		Total:           total,
		ShippingAddress: address,
	}
	if params.CustomerName == "" {
		errs.Add("customer.name", "Name is required and must be at most 100 characters")
		plugutil.WriteValidationError(w, errs)
		return
	}

	o, err := h.store.CreateOrder(req.Context(), params)
	if err != nil {
		h.log.ErrorContext(req.Context(), "create order", "err", err)
		plugutil.WriteError(w, http.StatusInternalServerError, "CREATE_ORDER_FAILED", "Failed to create order", nil)
		return
	}
	h.log.InfoContext(req.Context(), "order placed", "id", o.ID, "items", len(o.Items))
	plugutil.WriteJSON(w, http.StatusCreated, map[string]any{"success": true, "orderId": o.ID})
}

func (h *handlers) list(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	page := intParam(q, "page", maxPage, 1)
	limit := intParam(q, "limit", maxPerPage, defaultPerPage)
	filter := storage.OrderFilter{
		Since:  since(sanitize.String(q.Get("filter"), sanitize.MaxLength(maxFilterLabel)), h.now()),
		Offset: (page - 1) * limit,
		Limit:  limit,
	}

	list, total, err := h.store.ListOrders(req.Context(), filter)
	if err != nil {
		h.log.ErrorContext(req.Context(), "list orders", "err", err)
		plugutil.WriteError(w, http.StatusInternalServerError, "ORDERS_FAILED", "Failed to fetch orders", nil)
		return
	}
	views := make([]orderView, 0, len(list))
	for _, o := range list {
		views = append(views, toView(o))
	}
	plugutil.WriteJSON(w, http.StatusOK, map[string]any{
		"orders":     views,
		"total":      total,
		"page":       page,
		"limit":      limit,
		"totalPages": (total + limit - 1) / limit,
	})
}

// updateStatus takes the order id from ?id= or, failing that, from the
// body's orderId.
func (h *handlers) updateStatus(w http.ResponseWriter, req *http.Request) {
	var body struct {
		OrderID string `json:"orderId"`
		Status  string `json:"status"`
	}
	if err := plugutil.DecodeJSON(w, req, &body); err != nil {
		plugutil.WriteInvalidJSON(w)
		return
	}

	rawID := req.URL.Query().Get("id")
	if rawID == "" {
		rawID = body.OrderID
	}
	id, ok := sanitize.UUID(rawID)
	if !ok {
		plugutil.WriteError(w, http.StatusBadRequest, "INVALID_ORDER_ID", "Invalid order ID", nil)
		return
	}
	status := storage.OrderStatus(strings.TrimSpace(body.Status))
	if !status.Valid() {
		plugutil.WriteError(w, http.StatusBadRequest, "INVALID_ORDER_STATUS", "Invalid order status", map[string]any{
			"allowed": storage.OrderStatuses,
		})
		return
	}

	o, err := h.store.UpdateOrderStatus(req.Context(), id, status)
	if errors.Is(err, storage.ErrNotFound) {
		plugutil.WriteError(w, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found", nil)
		return
	}
	if err != nil {
		h.log.ErrorContext(req.Context(), "update order status", "id", id, "err", err)
		plugutil.WriteError(w, http.StatusInternalServerError, "UPDATE_ORDER_FAILED", "Failed to update order", nil)
		return
	}
	h.log.InfoContext(req.Context(), "order status changed", "id", id, "status", status)
	plugutil.WriteJSON(w, http.StatusOK, map[string]any{"order": toView(o)})
}

// since maps the admin date filter onto a lower bound. Unknown labels,
// including "all", select every order.
func since(label string, now time.Time) time.Time {
	day := 24 * time.Hour
	switch label {
	case "7days":
		return now.Add(-7 * day)
	case "month":
		return now.Add(-30 * day)
	case "year":
		return now.Add(-365 * day)
	default:
		return time.Time{}
	}
}

func cleanItem(it itemPayload) (storage.OrderItem, string) {
	id, ok := sanitize.UUID(it.ProductID)
	if !ok {
		return storage.OrderItem{}, "Invalid product ID"
	}
	qty, ok := jsonNumber(it.Quantity)
	if !ok || qty != math.Trunc(qty) || qty < 1 || qty > maxQuantity {
		return storage.OrderItem{}, "Quantity must be a whole number between 1 and 100"
	}
	price, ok := jsonNumber(it.Price)
	if !ok || price <= 0 {
		return storage.OrderItem{}, "Price must be positive"
	}
	return storage.OrderItem{ProductID: id, Quantity: int(qty), Price: price}, ""
}

// cleanAddress validates an optional shipping address. It returns a message
// when the address is present but invalid.
func cleanAddress(in *storage.Address) (*storage.Address, string) {
	if in == nil {
		return nil, ""
	}
	if !validate.Length(strings.TrimSpace(in.Street), 5, maxStreet) {
		return nil, "Street address is required (at least 5 characters)"
	}
	for _, f := range []string{in.City, in.State, in.Country} {
		if !validate.Length(strings.TrimSpace(f), 2, maxPlace) {
			return nil, "City, state and country need at least 2 characters"
		}
	}
	single := func(v string, n int) string {
		return sanitize.String(v, sanitize.MaxLength(n), sanitize.SingleLine())
	}
	return &storage.Address{
		Street:  single(in.Street, maxStreet),
		City:    single(in.City, maxPlace),
		State:   single(in.State, maxPlace),
		Country: single(in.Country, maxPlace),
	}, ""
}

func intParam(q url.Values, name string, hi, def int) int {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return def
	}
	return int(sanitize.Number(raw, sanitize.WithMin(1), sanitize.WithMax(float64(hi)), sanitize.WithDefault(float64(def))))
}

func jsonNumber(v any) (float64, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	f := sanitize.Number(n, sanitize.WithDefault(math.NaN()))
	return f, !math.IsNaN(f)
}
