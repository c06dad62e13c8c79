package graphql_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	graphql "github.com/llehouerou/go-graphql-guard"
)

func TestClient_Execute_partialDataWithErrorResponse(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		mustWrite(w, `{
			"data": {
				"node1": {
					"id": "MDEyOklzc3VlQ29tbWVudDE2OTQwNzk0Ng=="
				},
				"node2": null
			},
			"errors": [
				{
					"message": "Could not resolve to a node with the global id of 'NotExist'",
					"type": "NOT_FOUND",
					"path": [
						"node2"
					],
					"locations": [
						{
							"line": 10,
							"column": 4
						}
					]
				}
			]
		}`)
	})
	client := graphql.NewClient(
		"/graphql",
		&http.Client{Transport: localRoundTripper{handler: mux}},
	)

	data, err := client.Execute(context.Background(), &graphql.Request{
		Query: `{ node1: node(id: "x") { id } node2: node(id: "NotExist") { id } }`,
	})
	if err == nil {
		t.Fatal("got error: nil, want: non-nil")
	}
	if got, want := err.Error(), "Message: Could not resolve to a node with the global id of 'NotExist', Locations: [{Line:10 Column:4}]"; got != want {
		t.Errorf("got error: %v, want: %v", got, want)
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, data); err != nil {
		t.Fatal(err)
	}
	if got, want := compact.String(), `{"node1":{"id":"MDEyOklzc3VlQ29tbWVudDE2OTQwNzk0Ng=="},"node2":null}`; got != want {
		t.Errorf("got data: %v, want: %v", got, want)
	}

	var errs graphql.Errors
	if !errors.As(err, &errs) {
		t.Fatalf("got error type %T, want graphql.Errors", err)
	}
	if got := len(errs.Execution()); got != 1 {
		t.Errorf("got %d execution errors, want 1", got)
	}
	if got := errs[0].Path; len(got) != 1 || got[0] != "node2" {
		t.Errorf("got path %v, want [node2]", got)
	}
}

func TestClient_Execute_errorStatusCode(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		mustWrite(w, `{"errors":[{"message":"boom"}]}`)
	})
	client := graphql.NewClient("/graphql", &http.Client{Transport: localRoundTripper{handler: mux}})

	_, err := client.Execute(context.Background(), &graphql.Request{Query: "{ hello }"})
	var errs graphql.Errors
	if !errors.As(err, &errs) {
		t.Fatalf("got error %v, want graphql.Errors", err)
	}
	if got, want := errs[0].GetCode(), graphql.ErrRequestError; got != want {
		t.Errorf("got code %q, want %q", got, want)
	}
	if !strings.Contains(errs[0].Message, "500 Internal Server Error") {
		t.Errorf("got message %q, want status in it", errs[0].Message)
	}
	if errs[0].GetInternalExtensions() != nil {
		t.Error("got internal extensions without debug mode")
	}
}

func TestClient_Execute_debugDecoratesErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("X-Upstream", "test")
		w.WriteHeader(http.StatusBadGateway)
		mustWrite(w, `bad gateway`)
	})
	client := graphql.NewClient("/graphql", &http.Client{Transport: localRoundTripper{handler: mux}}).
		WithDebug(true)

	_, err := client.Execute(context.Background(), &graphql.Request{Query: "{ hello }"})
	var errs graphql.Errors
	if !errors.As(err, &errs) {
		t.Fatalf("got error %v, want graphql.Errors", err)
	}
	ext := errs[0].GetInternalExtensions()
	if ext == nil || ext.Request == nil || ext.Response == nil {
		t.Fatalf("got internal extensions %+v, want request and response", ext)
	}
	if !strings.Contains(ext.Request.Body, `"query":"{ hello }"`) {
		t.Errorf("got request body %q", ext.Request.Body)
	}
	if got, want := ext.Response.Body, "bad gateway"; got != want {
		t.Errorf("got response body %q, want %q", got, want)
	}
	if got := ext.Response.Headers.Get("X-Upstream"); got != "test" {
		t.Errorf("got response header %q, want test", got)
	}
}

func TestClient_Execute_gzip(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Encoding", "gzip")
		gw := gzip.NewWriter(w)
		mustWrite(gw, `{"data":{"hello":"world"}}`)
		if err := gw.Close(); err != nil {
			panic(err)
		}
	})
	client := graphql.NewClient("/graphql", &http.Client{Transport: localRoundTripper{handler: mux}})

	data, err := client.Execute(context.Background(), &graphql.Request{Query: "{ hello }"})
	if err != nil {
		t.Fatalf("got error: %v", err)
	}
	if got, want := string(data), `{"hello":"world"}`; got != want {
		t.Errorf("got data %s, want %s", got, want)
	}
}

func TestClient_Execute_invalidJSON(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, req *http.Request) {
		mustWrite(w, `{"data":`)
	})
	client := graphql.NewClient("/graphql", &http.Client{Transport: localRoundTripper{handler: mux}})

	_, err := client.Execute(context.Background(), &graphql.Request{Query: "{ hello }"})
	var errs graphql.Errors
	if !errors.As(err, &errs) {
		t.Fatalf("got error %v, want graphql.Errors", err)
	}
	if got, want := errs[0].GetCode(), graphql.ErrJsonDecode; got != want {
		t.Errorf("got code %q, want %q", got, want)
	}
}

func TestClient_Execute_deadline(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		select {
		case <-release:
		case <-req.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := graphql.NewClient(server.URL, server.Client())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Execute(ctx, &graphql.Request{Query: "{ hello }"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got error %v, want context.DeadlineExceeded in chain", err)
	}
	var errs graphql.Errors
	if !errors.As(err, &errs) || errs[0].GetCode() != graphql.ErrRequestError {
		t.Errorf("got error %v, want request_error", err)
	}
}

func TestClient_Execute_body(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, req *http.Request) {
		body := mustRead(req.Body)
		if got, want := body, `{"query":"query GetCharacter($id: ID!) { character(id: $id) { name } }","variables":{"id":"1"},"operationName":"GetCharacter"}`+"\n"; got != want {
			t.Errorf("got body: %v, want %v", got, want)
		}
		w.Header().Set("Content-Type", "application/json")
		mustWrite(w, `{"data": {"character": {"name": "Rick Sanchez"}}}`)
	})
	client := graphql.NewClient("/graphql", &http.Client{Transport: localRoundTripper{handler: mux}})

	data, err := client.Execute(context.Background(), &graphql.Request{
		Query:         "query GetCharacter($id: ID!) { character(id: $id) { name } }",
		Variables:     map[string]any{"id": "1"},
		OperationName: "GetCharacter",
	})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(data), `{"character": {"name": "Rick Sanchez"}}`; got != want {
		t.Errorf("got data %s, want %s", got, want)
	}
}

func TestClient_BuildRequest(t *testing.T) {
	t.Run("builds request with query, variables and operation name", func(t *testing.T) {
		client := graphql.NewClient("http://example.com/graphql", nil)
		req, reqBody, err := client.BuildRequest(context.Background(), &graphql.Request{
			Query:         "query Q { user { name } }",
			Variables:     map[string]any{"id": "123"},
			OperationName: "Q",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if req.Method != http.MethodPost {
			t.Errorf("expected method POST, got %s", req.Method)
		}
		if contentType := req.Header.Get("Content-Type"); contentType != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", contentType)
		}

		var body struct {
			Query         string         `json:"query"`
			Variables     map[string]any `json:"variables"`
			OperationName string         `json:"operationName"`
		}
		if err := json.Unmarshal(reqBody, &body); err != nil {
			t.Fatalf("failed to unmarshal request body: %v", err)
		}
		if body.Variables["id"] != "123" {
			t.Errorf("expected variables[id]=123, got %v", body.Variables["id"])
		}
		if body.OperationName != "Q" {
			t.Errorf("expected operationName Q, got %q", body.OperationName)
		}
	})

	t.Run("omits empty variables", func(t *testing.T) {
		client := graphql.NewClient("http://example.com/graphql", nil)
		_, reqBody, err := client.BuildRequest(context.Background(), &graphql.Request{
			Query:     "{ user { name } }",
			Variables: map[string]any{},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got, want := string(reqBody), `{"query":"{ user { name } }"}`+"\n"; got != want {
			t.Errorf("got body %q, want %q", got, want)
		}
	})

	t.Run("applies request headers then modifier", func(t *testing.T) {
		client := graphql.NewClient("http://example.com/graphql", nil).
			WithRequestModifier(func(req *http.Request) {
				req.Header.Set("Authorization", "Bearer token123")
				req.Header.Set("Pragma", "overridden")
			})

		req, _, err := client.BuildRequest(context.Background(), &graphql.Request{
			Query:  "{ user { name } }",
			Header: graphql.SecurityHeaders(),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := req.Header.Get("X-Frame-Options"); got != "DENY" {
			t.Errorf("expected X-Frame-Options DENY, got %q", got)
		}
		if got := req.Header.Get("Authorization"); got != "Bearer token123" {
			t.Errorf("expected Authorization header, got %q", got)
		}
		if got := req.Header.Get("Pragma"); got != "overridden" {
			t.Errorf("expected modifier to win, got Pragma %q", got)
		}
		if got := len(req.Header.Values("Content-Type")); got != 1 {
			t.Errorf("expected a single Content-Type, got %d", got)
		}
	})
}

func TestClient_ImmutablePattern(t *testing.T) {
	var calls []string
	mux := http.NewServeMux()
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, req *http.Request) {
		calls = append(calls, req.Header.Get("X-Tenant"))
		mustWrite(w, `{"data":{}}`)
	})
	base := graphql.NewClient("/graphql", &http.Client{Transport: localRoundTripper{handler: mux}})
	tenant := base.WithRequestModifier(func(req *http.Request) {
		req.Header.Set("X-Tenant", "a")
	})
	if base == tenant {
		t.Fatal("WithRequestModifier returned the receiver")
	}
	if base.WithDebug(true) == base {
		t.Fatal("WithDebug returned the receiver")
	}

	if _, err := base.Execute(context.Background(), &graphql.Request{Query: "{ a }"}); err != nil {
		t.Fatal(err)
	}
	if _, err := tenant.Execute(context.Background(), &graphql.Request{Query: "{ a }"}); err != nil {
		t.Fatal(err)
	}
	if got, want := strings.Join(calls, ","), ",a"; got != want {
		t.Errorf("got tenant headers %q, want %q", got, want)
	}
	if got, want := tenant.URL(), "/graphql"; got != want {
		t.Errorf("got url %q, want %q", got, want)
	}
}

func TestClient_DecodeResponse(t *testing.T) {
	client := graphql.NewClient("/graphql", nil)

	data, errs := client.DecodeResponse(strings.NewReader(`{"data":null}`))
	if data != nil || errs != nil {
		t.Errorf("got %s %v, want nil data and errors", data, errs)
	}

	data, errs = client.DecodeResponse(strings.NewReader(`{"data":{"a":1},"errors":[{"message":"x","extensions":{"code":"FORBIDDEN"}}]}`))
	if string(data) != `{"a":1}` {
		t.Errorf("got data %s", data)
	}
	if len(errs) != 1 || errs[0].GetCode() != "FORBIDDEN" {
		t.Errorf("got errors %v", errs)
	}

	_, errs = client.DecodeResponse(strings.NewReader(`not json`))
	if len(errs) != 1 || errs[0].GetCode() != graphql.ErrJsonDecode {
		t.Errorf("got errors %v, want json_decode_error", errs)
	}
}

func TestErrors_FirstAndExecution(t *testing.T) {
	errs := graphql.Errors{
		{Message: "server says no"},
		{Message: "dial failed", Extensions: map[string]any{"code": graphql.ErrRequestError}},
		{Message: "bad", Extensions: map[string]any{"code": 42}},
	}

	network, ok := errs.First(graphql.ErrRequestError)
	if !ok || network.Message != "dial failed" {
		t.Errorf("got %v %v, want dial failed", network, ok)
	}
	if _, ok := errs.First(graphql.ErrTimeout); ok {
		t.Error("found an error with a code that is not present")
	}
	if got := len(errs.Execution()); got != 2 {
		t.Errorf("got %d execution errors, want 2", got)
	}
	if got := errs[2].GetCode(); got != "" {
		t.Errorf("got code %q for a non-string code, want empty", got)
	}
}

// localRoundTripper is an http.RoundTripper that executes HTTP transactions
// by using handler directly, instead of going over an HTTP connection.
type localRoundTripper struct {
	handler http.Handler
}

func (l localRoundTripper) RoundTrip(
	req *http.Request,
) (*http.Response, error) {
	w := httptest.NewRecorder()
	l.handler.ServeHTTP(w, req)
	return w.Result(), nil
}

func mustRead(r io.Reader) string {
	b, err := io.ReadAll(r)
	if err != nil {
		panic(err)
	}
	return string(b)
}

func mustWrite(w io.Writer, s string) {
	_, err := io.WriteString(w, s)
	if err != nil {
		panic(err)
	}
}
