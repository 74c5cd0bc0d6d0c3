package api

import (
	"io"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/mcpbridge/gateway/internal/config"
	"github.com/mcpbridge/gateway/internal/domain/envelope"
	"github.com/mcpbridge/gateway/internal/domain/upstream"
)

// handleGetConfig returns the parsed, currently-loaded upstream configs
// (secrets already ${VAR}-expanded — this mirrors what the supervisor
// sees, not what's checked into version control).
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	configs, err := config.LoadUpstreams(s.deps.Config.Server.ConfigPath)
	if err != nil {
		writeFail(w, err.Error(), envelope.CodeIOError, nil)
		return
	}
	writeOK(w, configs)
}

// handleGetGatewayConfig renders the live in-process GatewayConfig (the
// gateway.yaml + GATEWAY_ env-var result, after SetDefaults) back out as
// YAML, for an admin UI to display what's actually running rather than
// what's on disk.
func (s *Server) handleGetGatewayConfig(w http.ResponseWriter, r *http.Request) {
	data, err := yaml.Marshal(s.deps.Config)
	if err != nil {
		writeFail(w, err.Error(), envelope.CodeIOError, nil)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(data)
}

// handleGetConfigSchema reflects GatewayConfig into a JSON Schema document,
// for a config-builder admin UI — generated dynamically from the struct
// tags so it never drifts from what Viper actually accepts.
func (s *Server) handleGetConfigSchema(w http.ResponseWriter, r *http.Request) {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(&config.GatewayConfig{})
	schema.Title = "Gateway Configuration Schema"
	schema.Description = "Runtime configuration accepted via gateway.yaml and GATEWAY_ env overrides"

	writeOK(w, schema)
}

// handleGetConfigContent returns the raw bytes of the config file, for an
// admin UI's edit-in-place text box.
func (s *Server) handleGetConfigContent(w http.ResponseWriter, r *http.Request) {
	raw, err := os.ReadFile(s.deps.Config.Server.ConfigPath)
	if err != nil {
		writeFail(w, err.Error(), envelope.CodeIOError, nil)
		return
	}
	writeOK(w, map[string]any{"content": string(raw)})
}

// handleSaveConfig overwrites the config file with the request body,
// rolling back to the previous content if the new document doesn't parse
// as a valid mcpServers document (spec.md §6 "Config file (JSON)").
func (s *Server) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	if s.requireWritable(w) {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxSynthBodyBytes))
	if err != nil {
		writeFail(w, err.Error(), envelope.CodeInvalidJSON, nil)
		return
	}

	path := s.deps.Config.Server.ConfigPath
	previous, _ := os.ReadFile(path)

	if err := os.WriteFile(path, body, 0o644); err != nil {
		writeFail(w, err.Error(), envelope.CodeIOError, nil)
		return
	}

	if _, err := config.LoadUpstreams(path); err != nil {
		if previous != nil {
			_ = os.WriteFile(path, previous, 0o644)
		}
		writeFail(w, "invalid config: "+err.Error(), envelope.CodeInvalid, nil)
		return
	}

	writeOK(w, map[string]any{"saved": true})
}

// handleReload re-reads the config file and drives the Upstream
// Supervisor's hot-reload diff (spec.md §4.1 "Hot-reload diff").
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.requireWritable(w) {
		return
	}

	configs, err := config.LoadUpstreams(s.deps.Config.Server.ConfigPath)
	if err != nil {
		writeFail(w, err.Error(), envelope.CodeInvalid, nil)
		return
	}
	values := make([]upstream.Config, len(configs))
	for i, c := range configs {
		values[i] = *c
	}

	if err := s.deps.Supervisor.Reload(r.Context(), values); err != nil {
		writeFail(w, err.Error(), envelope.CodeReloadFailed, nil)
		return
	}

	gen, _ := s.deps.Supervisor.Generation()
	writeOK(w, map[string]any{"generation": gen})
}

// handleReinit re-runs the connect handshake for one already-mounted
// upstream without touching the route table (spec.md §4.1 "reinit(name)").
func (s *Server) handleReinit(w http.ResponseWriter, r *http.Request) {
	if s.requireWritable(w) {
		return
	}

	name := chi.URLParam(r, "name")
	if err := s.deps.Supervisor.Reinit(name); err != nil {
		writeFail(w, err.Error(), envelope.CodeReinitFailed, nil)
		return
	}
	writeOK(w, map[string]any{"reinitialized": name})
}
