package api

import (
	"net/http"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/mcpbridge/gateway/internal/domain/tool"
	"github.com/mcpbridge/gateway/internal/domain/upstream"
)

// openapiCache memoizes the aggregated OpenAPI document keyed by a
// content hash of every mounted tool's schema, so a request that hits
// between two reloads doesn't re-render the whole document (spec.md §9
// Open Question (b): the original used MD5 content-equality to decide
// whether two tools' schemas can share one OpenAPI component; this reuses
// the same idea — xxhash instead of MD5, see DESIGN.md — for cache
// invalidation rather than component sharing, which the spec allows
// simplifying).
type openapiCache struct {
	mu   sync.Mutex
	hash uint64
	doc  map[string]any
}

func newOpenAPICache() *openapiCache {
	return &openapiCache{}
}

// operation is one synthesized endpoint's OpenAPI operation object.
type operation struct {
	OperationID string                 `json:"operationId"`
	Summary     string                 `json:"summary,omitempty"`
	RequestBody map[string]any         `json:"requestBody,omitempty"`
	Responses   map[string]any         `json:"responses"`
}

// handleAggregateOpenAPI serves GET /_meta/aggregate_openapi, rebuilding
// the document only when the mounted tool set's combined schema hash
// changed since the last build, or when force_refresh is set.
func (s *Server) handleAggregateOpenAPI(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force_refresh") == "true"
	doc := s.openapi.build(s.deps, force)
	writeOK(w, doc)
}

func (c *openapiCache) build(deps Deps, force bool) map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()

	paths := make(map[string]any)
	digest := xxhash.New()

	for _, sess := range deps.Supervisor.Sessions() {
		if !deps.State.IsServerEnabled(sess.Name()) {
			continue
		}
		for _, t := range sess.Tools() {
			key := upstream.Key(sess.Name(), t.Name)
			if !deps.State.IsToolEnabled(key) {
				continue
			}
			_, _ = digest.WriteString(key)
			_, _ = digest.Write(t.InputSchema)

			paths["/"+sess.Name()+"/"+t.Name] = map[string]any{
				"post": operation{
					OperationID: key,
					Summary:     t.Description,
					RequestBody: map[string]any{
						"content": map[string]any{
							"application/json": map[string]any{"schema": schemaFragment(t.InputSchema)},
						},
					},
					Responses: map[string]any{
						"200": map[string]any{"description": "ok"},
					},
				},
			}
		}
	}

	sum := digest.Sum64()
	if !force && sum == c.hash && c.doc != nil {
		return c.doc
	}

	doc := map[string]any{
		"openapi": "3.0.3",
		"info":    map[string]any{"title": "mcp-gateway", "version": deps.Version},
		"paths":   paths,
	}
	c.hash = sum
	c.doc = doc
	return doc
}

func schemaFragment(raw []byte) *tool.Fragment {
	if len(raw) == 0 {
		return &tool.Fragment{AdditionalProperties: true}
	}
	schema, err := tool.Compile(raw)
	if err != nil {
		return &tool.Fragment{AdditionalProperties: true}
	}
	return schema.Fragment()
}
