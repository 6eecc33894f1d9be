// internal/models/result.go
package models

// Result is the HTTP-style outcome envelope every resource operation returns.
// Body is either a string (plain status or error text) or a JSON-encodable
// value (records, lists, success payloads).
type Result struct {
	Status int `json:"status"`
	Body   any `json:"body"`
}

// JSONResult wraps a JSON-encodable body.
func JSONResult(status int, body any) Result {
	return Result{Status: status, Body: body}
}

// SuccessResult wraps body fields together with success=true, mirroring the
// jsonSuccess envelope clients already parse.
func SuccessResult(status int, fields map[string]any) Result {
	body := map[string]any{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	return Result{Status: status, Body: body}
}

// TextResult wraps a plain status message.
func TextResult(status int, message string) Result {
	return Result{Status: status, Body: message}
}

// ErrorResult wraps a human-readable failure message.
func ErrorResult(status int, message string) Result {
	return Result{Status: status, Body: message}
}

// IsError reports whether the operation outcome should suppress broadcasts.
func (r Result) IsError() bool {
	return r.Status >= 300
}
