package testimonials

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
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
	maxUserName = 100
	maxReview   = 2000
	maxDate     = 50
)

type Plugin struct{}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) ID() string { return "testimonials" }

type testimonialView struct {
	ID        string    `json:"id"`
	ProductID string    `json:"productId"`
	UserName  string    `json:"userName"`
	Rating    int       `json:"rating"`
	Review    string    `json:"review"`
	Date      string    `json:"date"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toView(t storage.Testimonial) testimonialView {
	return testimonialView{
		ID:        t.ID,
		ProductID: t.ProductID,
		UserName:  t.UserName,
		Rating:    t.Rating,
		Review:    t.Review,
		Date:      t.ReviewDate,
		ImageURL:  t.ImageURL,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func toViews(in []storage.Testimonial) []testimonialView {
	out := make([]testimonialView, 0, len(in))
	for _, t := range in {
		out = append(out, toView(t))
	}
	return out
}

// payload is shared by create and update. Pointer fields distinguish
// "absent" from "empty" for partial updates.
type payload struct {
	ProductID *string `json:"productId"`
	UserName  *string `json:"userName"`
	Rating    any     `json:"rating"`
	Review    *string `json:"review"`
	Date      *string `json:"date"`
	ImageURL  *string `json:"imageUrl"`
}

func (p *Plugin) Register(r *plugin.Registry) error {
	svc := r.Services()
	h := &handlers{store: svc.Store, log: svc.Logger.With("plugin", p.ID())}

	endpoints := []plugin.Endpoint{
		{
			Method:    http.MethodGet,
			Path:      "/testimonials",
			Summary:   "List testimonials for a product",
			Tags:      []string{"Testimonials"},
			Operation: "testimonials",
			Tier:      ratelimit.TierRelaxed,
			Handler:   h.listByProduct,
		},
		{
			Method:    http.MethodGet,
			Path:      "/admin/testimonials",
			Summary:   "List all testimonials",
			Tags:      []string{"Testimonials", "Admin"},
			Operation: "admin-testimonials",
			Tier:      ratelimit.TierAdmin,
			Protected: true,
			Handler:   h.listAll,
		},
		{
			Method:    http.MethodPost,
			Path:      "/admin/testimonials",
			Summary:   "Create a testimonial",
			Tags:      []string{"Testimonials", "Admin"},
			Operation: "admin-testimonials",
			Tier:      ratelimit.TierAdmin,
			Protected: true,
			Handler:   h.create,
		},
		{
			Method:    http.MethodPatch,
			Path:      "/admin/testimonials",
			Summary:   "Update a testimonial by id",
			Tags:      []string{"Testimonials", "Admin"},
			Operation: "admin-testimonials",
			Tier:      ratelimit.TierAdmin,
			Protected: true,
			Handler:   h.update,
		},
		{
			Method:    http.MethodDelete,
			Path:      "/admin/testimonials",
			Summary:   "Delete a testimonial by id",
			Tags:      []string{"Testimonials", "Admin"},
			Operation: "admin-testimonials",
			Tier:      ratelimit.TierAdmin,
			Protected: true,
			Handler:   h.delete,
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

func (h *handlers) listByProduct(w http.ResponseWriter, req *http.Request) {
	productID, ok := sanitize.UUID(req.URL.Query().Get("productId"))
	if !ok {
		plugutil.WriteError(w, http.StatusBadRequest, "INVALID_PRODUCT_ID", "Invalid product ID", nil)
		return
	}
	list, err := h.store.ListTestimonialsByProduct(req.Context(), productID)
	if err != nil {
		h.log.ErrorContext(req.Context(), "list testimonials by product", "err", err)
		plugutil.WriteError(w, http.StatusInternalServerError, "TESTIMONIALS_FAILED", "failed to fetch testimonials", nil)
		return
	}
	plugutil.WriteJSON(w, http.StatusOK, map[string]any{"testimonials": toViews(list)})
}

func (h *handlers) listAll(w http.ResponseWriter, req *http.Request) {
	list, err := h.store.ListTestimonials(req.Context())
	if err != nil {
		h.log.ErrorContext(req.Context(), "list testimonials", "err", err)
		plugutil.WriteError(w, http.StatusInternalServerError, "TESTIMONIALS_FAILED", "failed to fetch testimonials", nil)
		return
	}
	plugutil.WriteJSON(w, http.StatusOK, map[string]any{"testimonials": toViews(list)})
}

func (h *handlers) create(w http.ResponseWriter, req *http.Request) {
	var body payload
	if err := plugutil.DecodeJSON(w, req, &body); err != nil {
		plugutil.WriteInvalidJSON(w)
		return
	}

	var errs validate.Errors
	var productID string
	if body.ProductID == nil {
		errs.Add("productId", "Invalid product ID")
	} else if id, ok := sanitize.UUID(*body.ProductID); !ok {
		errs.Add("productId", "Invalid product ID")
	} else {
		productID = id
	}
	if body.UserName == nil || !validate.Length(strings.TrimSpace(*body.UserName), 1, maxUserName) {
		errs.Add("userName", "User name is required and must be at most 100 characters")
	}
	rating, ratingOK := parseRating(body.Rating)
	if !ratingOK {
		errs.Add("rating", "Rating must be a whole number between 1 and 5")
	}
	if body.Review == nil || !validate.Length(strings.TrimSpace(*body.Review), 1, maxReview) {
		errs.Add("review", "Review is required and must be at most 2000 characters")
	}
	date := ""
	if body.Date != nil {
		if !validate.Length(*body.Date, 0, maxDate) {
			errs.Add("date", "Date must be at most 50 characters")
		}
		date = *body.Date
	}
	imageURL, imageOK := cleanImageURL(body.ImageURL)
	if !imageOK {
		errs.Add("imageUrl", "Invalid image URL")
	}
	if !errs.Empty() {
		plugutil.WriteValidationError(w, errs)
		return
	}

	params := storage.CreateTestimonialParams{
		ProductID:  productID,
		UserName:   sanitize.String(*body.UserName, sanitize.MaxLength(maxUserName), sanitize.SingleLine()),
		Rating:     rating,
		Review:     sanitize.String(*body.Review, sanitize.MaxLength(maxReview)),
		ReviewDate: sanitize.String(date, sanitize.MaxLength(maxDate), sanitize.SingleLine()),
		ImageURL:   imageURL,
	}
	if params.UserName == "" || params.Review == "" {
		errs.Add("body", "Required fields are empty after removing control characters")
		plugutil.WriteValidationError(w, errs)
		return
	}

	t, err := h.store.CreateTestimonial(req.Context(), params)
	if err != nil {
		h.log.ErrorContext(req.Context(), "create testimonial", "err", err)
		plugutil.WriteError(w, http.StatusInternalServerError, "CREATE_TESTIMONIAL_FAILED", "Failed to create testimonial", nil)
		return
	}
	h.log.InfoContext(req.Context(), "testimonial created", "id", t.ID, "productId", t.ProductID)
	plugutil.WriteJSON(w, http.StatusCreated, map[string]any{"success": true, "testimonial": toView(t)})
}

func (h *handlers) update(w http.ResponseWriter, req *http.Request) {
	id, ok := sanitize.UUID(req.URL.Query().Get("id"))
	if !ok {
		plugutil.WriteError(w, http.StatusBadRequest, "INVALID_TESTIMONIAL_ID", "Invalid testimonial ID", nil)
		return
	}

	var body payload
	if err := plugutil.DecodeJSON(w, req, &body); err != nil {
		plugutil.WriteInvalidJSON(w)
		return
	}

	var errs validate.Errors
	var params storage.UpdateTestimonialParams
	if body.ProductID != nil {
		if pid, ok := sanitize.UUID(*body.ProductID); ok {
			params.ProductID = &pid
		} else {
			errs.Add("productId", "Invalid product ID")
		}
	}
	if body.UserName != nil {
		if v := sanitize.String(*body.UserName, sanitize.MaxLength(maxUserName), sanitize.SingleLine()); v != "" && validate.Length(strings.TrimSpace(*body.UserName), 1, maxUserName) {
			params.UserName = &v
		} else {
			errs.Add("userName", "User name is required and must be at most 100 characters")
		}
	}
	if body.Rating != nil {
		if rating, ok := parseRating(body.Rating); ok {
			params.Rating = &rating
		} else {
			errs.Add("rating", "Rating must be a whole number between 1 and 5")
		}
	}
	if body.Review != nil {
		if v := sanitize.String(*body.Review, sanitize.MaxLength(maxReview)); v != "" && validate.Length(strings.TrimSpace(*body.Review), 1, maxReview) {
			params.Review = &v
		} else {
			errs.Add("review", "Review is required and must be at most 2000 characters")
		}
	}
	if body.Date != nil {
		if validate.Length(*body.Date, 0, maxDate) {
			v := sanitize.String(*body.Date, sanitize.MaxLength(maxDate), sanitize.SingleLine())
			params.ReviewDate = &v
		} else {
			errs.Add("date", "Date must be at most 50 characters")
		}
	}
	if body.ImageURL != nil {
		if v, ok := cleanImageURL(body.ImageURL); ok {
			params.ImageURL = &v
		} else {
			errs.Add("imageUrl", "Invalid image URL")
		}
	}
	if !errs.Empty() {
		plugutil.WriteValidationError(w, errs)
		return
	}
	if params.Empty() {
		plugutil.WriteError(w, http.StatusBadRequest, "NO_CHANGES", "No fields to update", nil)
		return
	}

	t, err := h.store.UpdateTestimonial(req.Context(), id, params)
	if errors.Is(err, storage.ErrNotFound) {
		plugutil.WriteError(w, http.StatusNotFound, "TESTIMONIAL_NOT_FOUND", "Testimonial not found", nil)
		return
	}
	if err != nil {
		h.log.ErrorContext(req.Context(), "update testimonial", "id", id, "err", err)
		plugutil.WriteError(w, http.StatusInternalServerError, "UPDATE_TESTIMONIAL_FAILED", "Failed to update testimonial", nil)
		return
	}
	plugutil.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "testimonial": toView(t)})
}

func (h *handlers) delete(w http.ResponseWriter, req *http.Request) {
	id, ok := sanitize.UUID(req.URL.Query().Get("id"))
	if !ok {
		plugutil.WriteError(w, http.StatusBadRequest, "INVALID_TESTIMONIAL_ID", "Invalid testimonial ID", nil)
		return
	}
	err := h.store.DeleteTestimonial(req.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		plugutil.WriteError(w, http.StatusNotFound, "TESTIMONIAL_NOT_FOUND", "Testimonial not found", nil)
		return
	}
	if err != nil {
		h.log.ErrorContext(req.Context(), "delete testimonial", "id", id, "err", err)
		plugutil.WriteError(w, http.StatusInternalServerError, "DELETE_TESTIMONIAL_FAILED", "Failed to delete testimonial", nil)
		return
	}
	h.log.InfoContext(req.Context(), "testimonial deleted", "id", id)
	plugutil.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

// parseRating accepts JSON numbers only. The value must be a whole number
// in [1, 5]; clamping is not applied to out-of-range input.
func parseRating(v any) (int, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	f := sanitize.Number(n, sanitize.WithDefault(math.NaN()))
	if math.IsNaN(f) || f != math.Trunc(f) || f < 1 || f > 5 {
		return 0, false
	}
	return int(sanitize.Number(f, sanitize.WithMin(1), sanitize.WithMax(5))), true
}

// cleanImageURL treats nil and "" as "no image".
func cleanImageURL(v *string) (string, bool) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return "", true
	}
	return sanitize.URL(strings.TrimSpace(*v))
}
