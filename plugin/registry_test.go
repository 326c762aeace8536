package plugin

import (
	"net/http"
	"testing"
)

func noop(http.ResponseWriter, *http.Request) {}

func TestRegistryNormalizesEndpoints(t *testing.T) {
	r := NewRegistry(Services{})
	if err := r.Handle(Endpoint{Method: " post ", Path: "contact/", Operation: " contact ", Tier: "STRICT", Handler: noop}); err != nil {
		t.Fatalf("handle: %v", err)
	}

	eps := r.Endpoints()
	if len(eps) != 1 {
		t.Fatalf("expected one endpoint, got %d", len(eps))
	}
	ep := eps[0]
	if ep.Method != "POST" || ep.Path != "/contact" || ep.Operation != "contact" || ep.Tier != "strict" {
		t.Fatalf("unexpected endpoint %+v", ep)
	}
	if r.Services().Logger == nil {
		t.Fatalf("expected default logger")
	}
}

func TestRegistryRejectsInvalidEndpoints(t *testing.T) {
	r := NewRegistry(Services{})
	if err := r.Handle(Endpoint{Method: "GET", Path: "/x", Handler: noop}); err != nil {
		t.Fatalf("handle: %v", err)
	}

	cases := []Endpoint{
		{Method: "GET", Path: "/x", Handler: noop},
		{Method: "", Path: "/y", Handler: noop},
		{Method: "GET", Path: "", Handler: noop},
		{Method: "GET", Path: "/z"},
		{Method: "GET", Path: "/w", Operation: "a:b", Handler: noop},
	}
	for _, ep := range cases {
		if err := r.Handle(ep); err == nil {
			t.Fatalf("expected error for %+v", ep)
		}
	}
}
