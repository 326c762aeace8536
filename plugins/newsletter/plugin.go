package newsletter

import (
	"errors"
	"net/http"

	"github.com/SnowzyTech/regime/plugin"
	"github.com/SnowzyTech/regime/plugins/internal/plugutil"
	"github.com/SnowzyTech/regime/ratelimit"
	"github.com/SnowzyTech/regime/sanitize"
	"github.com/SnowzyTech/regime/storage"
	"github.com/SnowzyTech/regime/validate"
)

type Plugin struct{}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) ID() string { return "newsletter" }

func (p *Plugin) Register(r *plugin.Registry) error {
	svc := r.Services()
	log := svc.Logger.With("plugin", p.ID())

	// An existing subscriber gets the same answer as a new one so the
	// endpoint cannot reveal who is on the list.
	subscribe := func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Email string `json:"email"`
		}
		if err := plugutil.DecodeJSON(w, req, &body); err != nil {
			plugutil.WriteInvalidJSON(w)
			return
		}
		if !validate.Email(body.Email) {
			var errs validate.Errors
			errs.Add("email", "Invalid email address")
			plugutil.WriteValidationError(w, errs)
			return
		}

		_, err := svc.Store.CreateNewsletterSubscriber(req.Context(), sanitize.Email(body.Email))
		switch {
		case err == nil:
			log.InfoContext(req.Context(), "newsletter subscription")
		case errors.Is(err, storage.ErrAlreadyExists):
		default:
			log.ErrorContext(req.Context(), "store newsletter subscriber", "err", err)
			plugutil.WriteError(w, http.StatusInternalServerError, "SUBSCRIBE_FAILED", "Failed to subscribe", nil)
			return
		}

		plugutil.WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Subscribed successfully",
		})
	}

	return r.Handle(plugin.Endpoint{
		Method:    http.MethodPost,
		Path:      "/newsletter",
		Summary:   "Subscribe to the newsletter",
		Tags:      []string{"Newsletter"},
		Operation: "newsletter",
		Tier:      ratelimit.TierStrict,
		Handler:   subscribe,
	})
}
