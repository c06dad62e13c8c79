package graphql

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Error codes stored in Error.Extensions["code"] and OperationError.Code.
const (
	ErrRequestError  = "request_error"
	ErrJsonEncode    = "json_encode_error"
	ErrJsonDecode    = "json_decode_error"
	ErrGraphQLEncode = "graphql_encode_error"
	ErrGraphQLDecode = "graphql_decode_error"
	ErrTimeout       = "timeout_error"
	ErrGraphQL       = "graphql_error"
	ErrInternal      = "internal_error"
)

// Sentinel errors for operations stopped before they reach the transport.
var (
	ErrQueryValidation = errors.New("query validation failed")
	ErrRateLimited     = errors.New("rate limit exceeded")
)

// Errors represents the "errors" array in a response from a GraphQL server.
// If returned via error interface, the slice is expected to contain at least 1 element.
//
// Specification: https://spec.graphql.org/October2021/#sec-Errors.
type Errors []Error

// Error is a single GraphQL error, or a transport failure expressed as one.
type Error struct {
	Message    string         `json:"message"`
	Extensions map[string]any `json:"extensions"`
	Locations  []struct {
		Line   int `json:"line"`
		Column int `json:"column"`
	} `json:"locations"`
	Path []any `json:"path,omitempty"`

	cause error
}

// RequestInfo contains HTTP request information stored in error extensions.
type RequestInfo struct {
	Headers http.Header
	Body    string
}

// ResponseInfo contains HTTP response information stored in error extensions.
type ResponseInfo struct {
	Headers http.Header
	Body    string
}

// InternalExtensions contains internal debugging information stored in error
// extensions. This information is added when debug mode is enabled.
type InternalExtensions struct {
	Request  *RequestInfo
	Response *ResponseInfo
	Error    error
}

// Error implements error interface.
func (e Error) Error() string {
	return fmt.Sprintf("Message: %s, Locations: %+v", e.Message, e.Locations)
}

// Unwrap returns the underlying error of a transport failure, if any.
func (e Error) Unwrap() error { return e.cause }

// Error implements error interface.
func (e Errors) Error() string {
	b := strings.Builder{}
	for _, err := range e {
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap exposes each error to errors.Is and errors.As.
func (e Errors) Unwrap() []error {
	out := make([]error, len(e))
	for i, err := range e {
		out[i] = err
	}
	return out
}

// First returns the first error carrying code.
func (e Errors) First(code string) (Error, bool) {
	for _, err := range e {
		if err.GetCode() == code {
			return err, true
		}
	}
	return Error{}, false
}

// Execution returns the errors reported by the GraphQL server itself, as
// opposed to failures of the client.
func (e Errors) Execution() Errors {
	var out Errors
	for _, err := range e {
		if !isClientCode(err.GetCode()) {
			out = append(out, err)
		}
	}
	return out
}

func isClientCode(code string) bool {
	switch code {
	case ErrRequestError, ErrJsonEncode, ErrJsonDecode, ErrGraphQLEncode, ErrGraphQLDecode:
		return true
	}
	return false
}

// GetCode returns the error code from the extensions, or an empty string if
// not present.
func (e Error) GetCode() string {
	if e.Extensions == nil {
		return ""
	}
	code, ok := e.Extensions["code"].(string)
	if !ok {
		return ""
	}
	return code
}

// GetInternalExtensions returns the typed internal extensions, or nil if not
// present.
func (e Error) GetInternalExtensions() *InternalExtensions {
	if e.Extensions == nil {
		return nil
	}

	internal, ok := e.Extensions["internal"].(map[string]any)
	if !ok {
		return nil
	}

	ext := &InternalExtensions{}

	if req, ok := internal["request"].(map[string]any); ok {
		ext.Request = &RequestInfo{}
		if headers, ok := req["headers"].(http.Header); ok {
			ext.Request.Headers = headers
		}
		if body, ok := req["body"].(string); ok {
			ext.Request.Body = body
		}
	}

	if resp, ok := internal["response"].(map[string]any); ok {
		ext.Response = &ResponseInfo{}
		if headers, ok := resp["headers"].(http.Header); ok {
			ext.Response.Headers = headers
		}
		if body, ok := resp["body"].(string); ok {
			ext.Response.Body = body
		}
	}

	if err, ok := internal["error"].(error); ok {
		ext.Error = err
	}

	return ext
}

func (e Error) getInternalExtension() map[string]any {
	if e.Extensions == nil {
		return make(map[string]any)
	}

	if ex, ok := e.Extensions["internal"].(map[string]any); ok {
		return ex
	}

	return make(map[string]any)
}

// newError creates a new Error with the given code. err is kept as the
// unwrapped cause.
func newError(code string, err error) Error {
	return Error{
		Message: err.Error(),
		Extensions: map[string]any{
			"code": code,
		},
		cause: err,
	}
}

// newSimpleErrors creates an Errors slice with a single error.
func newSimpleErrors(code string, err error) Errors {
	return Errors{newError(code, err)}
}

// withDebugInfo adds debug information to the error's internal extensions
// under the infoType key ("request" or "response").
func (e Error) withDebugInfo(
	infoType string,
	headers http.Header,
	bodyReader io.Reader,
) Error {
	internal := e.getInternalExtension()
	bodyBytes, err := io.ReadAll(bodyReader)
	if err != nil {
		internal["error"] = err
	} else {
		internal[infoType] = map[string]any{
			"headers": headers,
			"body":    string(bodyBytes),
		}
	}

	if e.Extensions == nil {
		e.Extensions = make(map[string]any)
	}
	e.Extensions["internal"] = internal
	return e
}

func (e Error) withRequest(req *http.Request, bodyReader io.Reader) Error {
	return e.withDebugInfo("request", req.Header, bodyReader)
}

func (e Error) withResponse(res *http.Response, bodyReader io.Reader) Error {
	return e.withDebugInfo("response", res.Header, bodyReader)
}

// ValidationError reports a query rejected by structural analysis. Its
// message is generic; Reasons holds the analyzer findings for server-side
// use.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string { return ErrQueryValidation.Error() }

// Is matches ErrQueryValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrQueryValidation }

// RateLimitError reports an operation refused by the rate limiter.
type RateLimitError struct {
	Remaining int
	ResetTime time.Time
}

func (e *RateLimitError) Error() string { return ErrRateLimited.Error() }

// Is matches ErrRateLimited.
func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// RetryAfter returns how long to wait, from now, before the window resets.
func (e *RateLimitError) RetryAfter(now time.Time) time.Duration {
	if d := e.ResetTime.Sub(now); d > 0 {
		return d
	}
	return 0
}

// OperationError is the masked failure of an operation that reached the
// transport. It never carries the raw transport error.
type OperationError struct {
	Code    string
	Message string
}

func (e *OperationError) Error() string { return e.Message }

// Timeout reports whether the operation was aborted by its deadline.
func (e *OperationError) Timeout() bool { return e.Code == ErrTimeout }
