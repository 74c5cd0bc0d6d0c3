// Package envelope defines the uniform response shape returned by every
// synthesized HTTP endpoint and by the chat/meta surfaces.
package envelope

// Code is the closed taxonomy of error codes the gateway returns.
type Code string

const (
	CodeReadOnly          Code = "read_only"
	CodeNoConfig          Code = "no_config"
	CodeInvalid           Code = "invalid"
	CodeInvalidJSON       Code = "invalid_json"
	CodeInvalidTimeout    Code = "invalid_timeout"
	CodeTimeout           Code = "timeout"
	CodeDisabled          Code = "disabled"
	CodeProtocol          Code = "protocol"
	CodeNotFound          Code = "not_found"
	CodeExists            Code = "exists"
	CodeIOError           Code = "io_error"
	CodeReloadFailed      Code = "reload_failed"
	CodeReinitFailed      Code = "reinit_failed"
	CodeOutputValidation  Code = "output_validation"
	CodeNotImplemented    Code = "not_implemented"
	CodeUnexpected        Code = "unexpected"
)

// ErrorDetail carries the failure half of an Envelope.
type ErrorDetail struct {
	Message string `json:"message"`
	Code    Code   `json:"code,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface so ErrorDetail can be returned and
// wrapped like any other Go error across service boundaries.
func (e *ErrorDetail) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// OutputItem is one entry of a structured_output collection.
type OutputItem struct {
	Type  string `json:"type"`
	Value any    `json:"value,omitempty"`
}

// StructuredOutput is the optional `output` field emitted when the caller
// opted into structured_output mode.
type StructuredOutput struct {
	Type  string       `json:"type"`
	Items []OutputItem `json:"items"`
}

// Envelope is the uniform {ok, result|error, output?} shape.
type Envelope struct {
	OK     bool              `json:"ok"`
	Result any               `json:"result,omitempty"`
	Error  *ErrorDetail      `json:"error,omitempty"`
	Output *StructuredOutput `json:"output,omitempty"`
}

// Success builds an ok envelope, optionally attaching structured output.
func Success(result any, structured bool) Envelope {
	env := Envelope{OK: true, Result: result}
	if structured {
		env.Output = collect(result)
	}
	return env
}

// Fail builds a failed envelope. When structured is true the failure still
// carries an empty structured_output collection, per spec.md §7.
func Fail(message string, code Code, data any, structured bool) Envelope {
	env := Envelope{
		OK:    false,
		Error: &ErrorDetail{Message: message, Code: code, Data: data},
	}
	if structured {
		env.Output = &StructuredOutput{Type: "collection", Items: []OutputItem{}}
	}
	return env
}

// FailErr adapts an *ErrorDetail (or a plain error) into a failure envelope.
func FailErr(err error, structured bool) Envelope {
	var ed *ErrorDetail
	if e, ok := err.(*ErrorDetail); ok {
		ed = e
	} else {
		ed = &ErrorDetail{Message: err.Error(), Code: CodeUnexpected}
	}
	env := Envelope{OK: false, Error: ed}
	if structured {
		env.Output = &StructuredOutput{Type: "collection", Items: []OutputItem{}}
	}
	return env
}

// collect wraps an arbitrary result value into a single-item collection.
// Lists are flattened into one item per element; everything else becomes a
// single "value" item.
func collect(result any) *StructuredOutput {
	out := &StructuredOutput{Type: "collection"}
	if items, ok := result.([]any); ok {
		for _, it := range items {
			out.Items = append(out.Items, OutputItem{Type: "value", Value: it})
		}
		return out
	}
	out.Items = []OutputItem{{Type: "value", Value: result}}
	return out
}
