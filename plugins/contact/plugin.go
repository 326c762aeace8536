package contact

import (
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

type Options struct {
	// ListLimit is the default page size of the admin listing.
	ListLimit int
	// MaxListLimit caps the limit query parameter.
	MaxListLimit int
}

type Plugin struct {
	opts Options
}

func New(opts Options) *Plugin {
	if opts.ListLimit <= 0 {
		opts.ListLimit = 50
	}
	if opts.MaxListLimit <= 0 {
		opts.MaxListLimit = 500
	}
	if opts.ListLimit > opts.MaxListLimit {
		opts.ListLimit = opts.MaxListLimit
	}
	return &Plugin{opts: opts}
}

func (p *Plugin) ID() string { return "contact" }

type messageView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
	InquiryType string    `json:"inquiryType"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (p *Plugin) Register(r *plugin.Registry) error {
	svc := r.Services()
	log := svc.Logger.With("plugin", p.ID())

	submit := func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Name        string `json:"name"`
			Phone       string `json:"phone"`
			Email       string `json:"email"`
			InquiryType string `json:"inquiryType"`
			Message     string `json:"message"`
		}
		if err := plugutil.DecodeJSON(w, req, &body); err != nil {
			plugutil.WriteInvalidJSON(w)
			return
		}

		var errs validate.Errors
		if !validate.Length(strings.TrimSpace(body.Name), 1, 100) {
			if strings.TrimSpace(body.Name) == "" {
				errs.Add("name", "Name is required")
			} else {
				errs.Add("name", "Name too long")
			}
		}
		if !validate.Length(body.Phone, 0, sanitize.MaxPhoneLength) {
			errs.Add("phone", "Phone number too long")
		}
		if !validate.Email(body.Email) {
			errs.Add("email", "Invalid email address")
		}
		if !validate.Length(strings.TrimSpace(body.InquiryType), 1, 50) {
			errs.Add("inquiryType", "Inquiry type is required and must be at most 50 characters")
		}
		if !validate.Length(strings.TrimSpace(body.Message), 10, 5000) {
			errs.Add("message", "Message must be between 10 and 5000 characters")
		}
		if !errs.Empty() {
			plugutil.WriteValidationError(w, errs)
			return
		}

		params := storage.CreateContactMessageParams{
			Name:        sanitize.String(body.Name, sanitize.MaxLength(100), sanitize.SingleLine()),
			Phone:       sanitize.Phone(body.Phone),
			Email:       sanitize.Email(body.Email),
			InquiryType: sanitize.String(body.InquiryType, sanitize.MaxLength(50), sanitize.SingleLine()),
			Message:     sanitize.String(body.Message, sanitize.MaxLength(5000)),
			IPAddress:   ratelimit.ClientIdentifier(req.Header),
		}
		if params.Name == "" || params.InquiryType == "" || params.Message == "" {
			errs.Add("body", "Required fields are empty after removing control characters")
			plugutil.WriteValidationError(w, errs)
			return
		}

		msg, err := svc.Store.CreateContactMessage(req.Context(), params)
		if err != nil {
			log.ErrorContext(req.Context(), "store contact message", "err", err)
			plugutil.WriteError(w, http.StatusInternalServerError, "CONTACT_FAILED", "Failed to send message", nil)
			return
		}
		log.InfoContext(req.Context(), "contact message received", "id", msg.ID, "inquiryType", msg.InquiryType)

		plugutil.WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Message received. We will contact you soon.",
		})
	}

	list := func(w http.ResponseWriter, req *http.Request) {
		limit := plugutil.ParsePositiveInt(req.URL.Query().Get("limit"), p.opts.ListLimit)
		if limit > p.opts.MaxListLimit {
			limit = p.opts.MaxListLimit
		}
		msgs, err := svc.Store.ListContactMessages(req.Context(), limit)
		if err != nil {
			log.ErrorContext(req.Context(), "list contact messages", "err", err)
			plugutil.WriteError(w, http.StatusInternalServerError, "CONTACT_LIST_FAILED", "failed to list contact messages", nil)
			return
		}
		out := make([]messageView, 0, len(msgs))
		for _, m := range msgs {
			out = append(out, messageView{
				ID:          m.ID,
				Name:        m.Name,
				Email:       m.Email,
				Phone:       m.Phone,
				InquiryType: m.InquiryType,
				Message:     m.Message,
				CreatedAt:   m.CreatedAt,
			})
		}
		plugutil.WriteJSON(w, http.StatusOK, map[string]any{"messages": out})
	}

	if err := r.Handle(plugin.Endpoint{
		Method:    http.MethodPost,
		Path:      "/contact",
		Summary:   "Submit the contact form",
		Tags:      []string{"Contact"},
		Operation: "contact",
		Tier:      ratelimit.TierStrict,
		Handler:   submit,
	}); err != nil {
		return err
	}
	return r.Handle(plugin.Endpoint{
		Method:    http.MethodGet,
		Path:      "/admin/contact-messages",
		Summary:   "List contact form submissions",
		Tags:      []string{"Contact", "Admin"},
		Operation: "admin-contact",
		Tier:      ratelimit.TierAdmin,
		Protected: true,
		Handler:   list,
	})
}
