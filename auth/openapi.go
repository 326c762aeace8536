package auth

import (
	"encoding/json"
	"sort"
	"strings"
)

type routeDoc struct {
	Method      string
	Path        string
	Summary     string
	Description string
	Tags        []string
	Operation   string
	Tier        string
	Protected   bool
}

type openAPISpec struct {
	OpenAPI    string                 `json:"openapi"`
	Info       openAPIInfo            `json:"info"`
	Paths      map[string]openAPIPath `json:"paths"`
	Components openAPIComponents      `json:"components"`
}

type openAPIInfo struct {
	Title   string `json:"title"`
	Version string `json:"version"`
}

type openAPIComponents struct {
	SecuritySchemes map[string]openAPISecurityScheme `json:"securitySchemes"`
}

type openAPISecurityScheme struct {
	Type string `json:"type"`
	In   string `json:"in"`
	Name string `json:"name"`
}

type openAPIPath map[string]openAPIOperation

type openAPIOperation struct {
	Summary     string                     `json:"summary,omitempty"`
	Description string                     `json:"description,omitempty"`
	Tags        []string                   `json:"tags,omitempty"`
	OperationID string                     `json:"operationId,omitempty"`
	Security    []map[string][]string      `json:"security,omitempty"`
	RateLimit   string                     `json:"x-rate-limit-tier,omitempty"`
	Responses   map[string]openAPIResponse `json:"responses"`
}

type openAPIResponse struct {
	Description string `json:"description"`
}

const adminSecurityScheme = "adminSession"

func buildOpenAPISpec(appName, cookieName string, docs []routeDoc) ([]byte, error) {
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Path == docs[j].Path {
			return docs[i].Method < docs[j].Method
		}
		return docs[i].Path < docs[j].Path
	})

	spec := openAPISpec{
		OpenAPI: "3.0.3",
		Info: openAPIInfo{
			Title:   appName + " API",
			Version: Version,
		},
		Paths: map[string]openAPIPath{},
		Components: openAPIComponents{
			SecuritySchemes: map[string]openAPISecurityScheme{
				adminSecurityScheme: {Type: "apiKey", In: "cookie", Name: cookieName},
			},
		},
	}

	for _, d := range docs {
		if _, ok := spec.Paths[d.Path]; !ok {
			spec.Paths[d.Path] = openAPIPath{}
		}
		responses := map[string]openAPIResponse{
			"200": {Description: "Success"},
			"400": {Description: "Bad request"},
			"403": {Description: "Untrusted origin"},
		}
		op := openAPIOperation{
			Summary:     d.Summary,
			Description: d.Description,
			Tags:        d.Tags,
			RateLimit:   d.Tier,
			Responses:   responses,
		}
		if d.Operation != "" {
			op.OperationID = strings.ToLower(d.Method) + "-" + d.Operation
		}
		if d.Tier != "" {
			responses["429"] = openAPIResponse{Description: "Too many requests"}
		}
		if d.Protected {
			op.Security = []map[string][]string{{adminSecurityScheme: {}}}
			responses["401"] = openAPIResponse{Description: "Missing or invalid admin session"}
		}
		spec.Paths[d.Path][strings.ToLower(d.Method)] = op
	}

	return json.MarshalIndent(spec, "", "  ")
}
