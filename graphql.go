package graphql

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// This function allows you to tweak the HTTP request. It might be useful to set authentication
// headers amongst other things
type RequestModifier func(*http.Request)

// Request is a single GraphQL operation as sent to a Transport.
type Request struct {
	Query         string
	Variables     map[string]any
	OperationName string
	// Header is added to the outgoing HTTP request before the
	// RequestModifier runs.
	Header http.Header
}

// Transport executes GraphQL operations. Execute returns the raw "data"
// member of the response. When the server reports errors, the returned error
// is an Errors value and the data may still hold a partial result.
// Implementations must honor ctx cancellation.
type Transport interface {
	Execute(ctx context.Context, req *Request) ([]byte, error)
}

// Client is a GraphQL client over HTTP. It implements Transport.
//
// # Immutable Pattern
//
// The Client's With* methods (WithDebug, WithRequestModifier) follow an
// immutable pattern: they return a new Client instance rather than modifying
// the receiver. This allows for safe concurrent use and makes it clear when
// configuration changes take effect.
//
// Always use the returned Client:
//
//	client = client.WithDebug(true)  // Correct
//	client.WithDebug(true)            // Wrong - original client unchanged
type Client struct {
	url             string // GraphQL server URL.
	httpClient      *http.Client
	requestModifier RequestModifier
	debug           bool
}

var _ Transport = (*Client)(nil)

// NewClient creates a GraphQL client targeting the specified GraphQL server URL.
// If httpClient is nil, then http.DefaultClient is used.
func NewClient(url string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		url:        url,
		httpClient: httpClient,
	}
}

// URL returns the server URL.
func (c *Client) URL() string { return c.url }

// Execute sends req and returns the raw data of the response.
func (c *Client) Execute(ctx context.Context, req *Request) ([]byte, error) {
	data, _, _, errs := c.request(ctx, req)
	if len(errs) > 0 {
		return data, errs
	}
	return data, nil
}

// handleGzipResponse wraps the response body reader with a gzip decompressor
// if the Content-Encoding header indicates gzip compression.
func handleGzipResponse(
	resp *http.Response,
	bodyReader io.Reader,
) (io.ReadCloser, error) {
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gr, err := gzip.NewReader(bodyReader)
		if err != nil {
			return nil, fmt.Errorf("problem trying to create gzip reader: %w", err)
		}
		return gr, nil
	}
	return io.NopCloser(bodyReader), nil
}

// copyResponseForDebug reads the entire response body into memory
// and returns both the bytes and a reader positioned at the start.
func copyResponseForDebug(r io.Reader) ([]byte, *bytes.Reader, error) {
	respBody, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}
	return respBody, bytes.NewReader(respBody), nil
}

func (c *Client) request(
	ctx context.Context,
	req *Request,
) ([]byte, *http.Response, io.Reader, Errors) {
	request, reqBody, err := c.BuildRequest(ctx, req)
	if err != nil {
		e := c.NewRequestError(
			ErrRequestError,
			fmt.Errorf("problem constructing request: %w", err),
			request,
			nil,
			bytes.NewReader(reqBody),
			nil,
		)
		return nil, nil, nil, Errors{e}
	}

	resp, err := c.httpClient.Do(request)
	if err != nil {
		e := c.NewRequestError(
			ErrRequestError,
			err,
			request,
			nil,
			bytes.NewReader(reqBody),
			nil,
		)
		return nil, nil, nil, Errors{e}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		e := c.NewRequestError(
			ErrRequestError,
			fmt.Errorf("%v; body: %q", resp.Status, body),
			request,
			resp,
			bytes.NewReader(reqBody),
			bytes.NewReader(body),
		)
		return nil, nil, nil, Errors{e}
	}

	r, err := handleGzipResponse(resp, resp.Body)
	if err != nil {
		return nil, nil, nil, newSimpleErrors(ErrJsonDecode, err)
	}
	defer func() { _ = r.Close() }()

	var respBody []byte
	var respReader *bytes.Reader
	if c.debug {
		respBody, respReader, err = copyResponseForDebug(r)
		if err != nil {
			return nil, nil, nil, newSimpleErrors(ErrJsonDecode, err)
		}
		r = io.NopCloser(respReader)
	}

	rawData, gqlErrors := c.DecodeResponse(r)

	if respReader != nil {
		_, _ = respReader.Seek(0, io.SeekStart)
	}

	if len(gqlErrors) > 0 {
		if gqlErrors[0].GetCode() == ErrJsonDecode {
			we := c.NewRequestError(
				ErrJsonDecode,
				fmt.Errorf("%s", gqlErrors[0].Message),
				request,
				resp,
				bytes.NewReader(reqBody),
				bytes.NewReader(respBody),
			)
			return nil, nil, nil, Errors{we}
		}

		if c.debug &&
			(gqlErrors[0].Extensions == nil || gqlErrors[0].Extensions["internal"] == nil) {
			gqlErrors[0] = c.DecorateError(
				gqlErrors[0],
				request,
				resp,
				bytes.NewReader(reqBody),
				bytes.NewReader(respBody),
			)
		}

		return rawData, resp, respReader, gqlErrors
	}

	return rawData, resp, respReader, nil
}

// BuildRequest constructs an HTTP request with JSON body for a GraphQL operation.
// It returns the HTTP request and the request body bytes (useful for error decoration).
func (c *Client) BuildRequest(
	ctx context.Context,
	req *Request,
) (*http.Request, []byte, error) {
	in := struct {
		Query         string         `json:"query"`
		Variables     map[string]any `json:"variables,omitempty"`
		OperationName string         `json:"operationName,omitempty"`
	}{
		Query:         req.Query,
		Variables:     req.Variables,
		OperationName: req.OperationName,
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(in); err != nil {
		return nil, nil, err
	}

	reqBody := buf.Bytes()
	request, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.url,
		bytes.NewReader(reqBody),
	)
	if err != nil {
		return nil, reqBody, err
	}
	request.Header.Set("Content-Type", "application/json")
	for key, values := range req.Header {
		request.Header.Del(key)
		for _, v := range values {
			request.Header.Add(key, v)
		}
	}

	if c.requestModifier != nil {
		c.requestModifier(request)
	}

	return request, reqBody, nil
}

// DecodeResponse decodes a GraphQL JSON response into raw data and errors.
// It returns the raw data bytes (if present) and any GraphQL errors.
func (c *Client) DecodeResponse(reader io.Reader) ([]byte, Errors) {
	var out struct {
		Data   *json.RawMessage
		Errors Errors
	}

	if err := json.NewDecoder(reader).Decode(&out); err != nil {
		return nil, newSimpleErrors(ErrJsonDecode, err)
	}

	var rawData []byte
	if out.Data != nil && len(*out.Data) > 0 {
		rawData = *out.Data
	}

	if len(out.Errors) > 0 {
		return rawData, out.Errors
	}

	return rawData, nil
}

// clone creates a copy of the Client with all fields preserved.
func (c *Client) clone() *Client {
	return &Client{
		url:             c.url,
		httpClient:      c.httpClient,
		requestModifier: c.requestModifier,
		debug:           c.debug,
	}
}

// WithRequestModifier returns a new Client with the request modifier set.
// The modifier runs after the headers of the Request have been applied, so it
// can override them.
func (c *Client) WithRequestModifier(f RequestModifier) *Client {
	clone := c.clone()
	clone.requestModifier = f
	return clone
}

// WithDebug returns a new Client with debug mode enabled or disabled.
// When enabled, debug mode adds detailed request/response information to
// error extensions.
func (c *Client) WithDebug(debug bool) *Client {
	clone := c.clone()
	clone.debug = debug
	return clone
}

// DecorateError decorates an error with request/response information if debug
// mode is enabled.
func (c *Client) DecorateError(
	err Error,
	req *http.Request,
	resp *http.Response,
	reqBody,
	respBody io.Reader,
) Error {
	if !c.debug {
		return err
	}

	if req != nil && reqBody != nil {
		err = err.withRequest(req, reqBody)
	}

	if resp != nil && respBody != nil {
		err = err.withResponse(resp, respBody)
	}

	return err
}

// NewRequestError creates a new error with the given code and decorates it with
// request/response information if debug mode is enabled.
func (c *Client) NewRequestError(
	code string,
	err error,
	req *http.Request,
	resp *http.Response,
	reqBody,
	respBody io.Reader,
) Error {
	e := newError(code, err)
	return c.DecorateError(e, req, resp, reqBody, respBody)
}
