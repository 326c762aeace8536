package plugin

import (
	"log/slog"
	"net/http"

	"github.com/SnowzyTech/regime/storage"
)

// Endpoint is a route contributed by a plugin. The server rate limits it
// under Operation with the named Tier and, when Protected is set, runs the
// admin gate before Handler.
type Endpoint struct {
	Method    string
	Path      string
	Summary   string
	Tags      []string
	Operation string
	Tier      string
	Protected bool
	Handler   http.HandlerFunc
}

type Services struct {
	Store  storage.Primary
	Logger *slog.Logger
}

type Plugin interface {
	ID() string
	Register(*Registry) error
}
