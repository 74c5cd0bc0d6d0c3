package api

import (
	"encoding/json"
	"net/http"

	"github.com/mcpbridge/gateway/internal/domain/envelope"
)

// statusForCode maps the closed error taxonomy (spec.md §7) onto an HTTP
// status. Codes not listed here (there are none left unmapped) would fall
// through to 400, the same as "invalid".
func statusForCode(code envelope.Code) int {
	switch code {
	case envelope.CodeReadOnly, envelope.CodeDisabled:
		return http.StatusForbidden
	case envelope.CodeNotFound:
		return http.StatusNotFound
	case envelope.CodeExists:
		return http.StatusConflict
	case envelope.CodeProtocol:
		return http.StatusUpgradeRequired // 426
	case envelope.CodeTimeout:
		return http.StatusGatewayTimeout // 504
	case envelope.CodeOutputValidation:
		return http.StatusBadGateway // 502
	case envelope.CodeNotImplemented:
		return http.StatusNotImplemented
	case envelope.CodeIOError, envelope.CodeReloadFailed, envelope.CodeReinitFailed, envelope.CodeUnexpected:
		return http.StatusInternalServerError
	case envelope.CodeInvalid, envelope.CodeInvalidJSON, envelope.CodeInvalidTimeout, envelope.CodeNoConfig:
		return http.StatusBadRequest
	default:
		return http.StatusBadRequest
	}
}

// writeEnvelope renders env as JSON with the status implied by its error
// code (200 for a success envelope).
func writeEnvelope(w http.ResponseWriter, env envelope.Envelope) {
	status := http.StatusOK
	if !env.OK && env.Error != nil {
		status = statusForCode(env.Error.Code)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

// writeFail is a shorthand for writeEnvelope(w, envelope.Fail(...)).
func writeFail(w http.ResponseWriter, message string, code envelope.Code, data any) {
	writeEnvelope(w, envelope.Fail(message, code, data, false))
}

// writeOK is a shorthand for writeEnvelope(w, envelope.Success(result, false)).
func writeOK(w http.ResponseWriter, result any) {
	writeEnvelope(w, envelope.Success(result, false))
}

// decodeJSON parses r.Body into v, returning a descriptive error suitable
// for a CodeInvalidJSON envelope on failure.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// httpTimeFormat is the RFC3339 layout every timestamp field in this
// package's JSON responses uses.
const httpTimeFormat = "2006-01-02T15:04:05Z07:00"

// writeJSON encodes v onto w without touching the status line, for
// handlers (like /healthz) that need to set headers before the body.
func writeJSON(w http.ResponseWriter, v any) error {
	return json.NewEncoder(w).Encode(v)
}
