package graphql

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/llehouerou/go-graphql-guard/pkg/analyzer"
	"github.com/llehouerou/go-graphql-guard/pkg/audit"
	"github.com/llehouerou/go-graphql-guard/pkg/config"
	"github.com/llehouerou/go-graphql-guard/pkg/document"
	"github.com/llehouerou/go-graphql-guard/pkg/jsonutil"
	"github.com/llehouerou/go-graphql-guard/pkg/masking"
	"github.com/llehouerou/go-graphql-guard/pkg/metrics"
	"github.com/llehouerou/go-graphql-guard/pkg/ratelimit"
	"github.com/llehouerou/go-graphql-guard/pkg/sanitize"
	"github.com/llehouerou/go-graphql-guard/types"
)

// AnonymousOperation names operations that have neither an explicit nor a
// document operation name.
const AnonymousOperation = "anonymous"

// Operation states, logged at debug level on every transition.
const (
	stateValidating  = "validating"
	stateBlocked     = "blocked"
	stateRateLimited = "rate_limited"
	stateSanitizing  = "sanitizing"
	stateInFlight    = "in_flight"
	stateCompleted   = "completed"
	stateFailed      = "failed"
)

// SecurityHeaders returns the headers attached to every guarded request.
func SecurityHeaders() http.Header {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("X-Frame-Options", "DENY")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-XSS-Protection", "1; mode=block")
	return h
}

var defaultMasker = sync.OnceValue(func() *masking.Masker {
	return masking.New(config.FromEnv().Masking())
})

// DefaultMasker returns the process-wide masker configured from the
// environment. It is built on first use.
func DefaultMasker() *masking.Masker {
	return defaultMasker()
}

// QueryResult is the outcome of a guarded operation.
type QueryResult struct {
	// Data is the masked response data. It may hold partial data when Error
	// is set.
	Data jsonutil.Value
	// Loading is true only for the first result emitted by QueryAsync.
	Loading bool
	// Error is a *ValidationError, a *RateLimitError or an *OperationError.
	Error error
	// IsQueryValid reports whether the query passed structural analysis.
	IsQueryValid bool
}

// Decode unmarshals the masked data into v.
func (r *QueryResult) Decode(v any) error {
	if r.Data == nil {
		return errors.New("graphql: result has no data")
	}
	return jsonutil.Unmarshal(r.Data, v)
}

// Option configures a single guarded operation.
type Option func(*callOptions)

type callOptions struct {
	operationName string
	operationID   string
	rateLimitKey  string
}

// OperationName sets the operation name sent to the server and used in audit
// entries and metrics. It defaults to the name of the first operation in the
// document.
func OperationName(name string) Option {
	return func(o *callOptions) { o.operationName = name }
}

// OperationID sets the id that correlates audit entries of the operation.
func OperationID(id string) Option {
	return func(o *callOptions) { o.operationID = id }
}

// RateLimitKey sets the rate limiter identifier charged for the operation.
func RateLimitKey(key string) Option {
	return func(o *callOptions) { o.rateLimitKey = key }
}

// SecureClient runs GraphQL operations through structural validation, rate
// limiting, variable sanitization and response masking before and after
// handing them to a Transport.
//
// Like Client, its With* methods return a new SecureClient and leave the
// receiver unchanged.
type SecureClient struct {
	transport Transport
	analyzer  *analyzer.Analyzer
	limiter   *ratelimit.Limiter
	masker    *masking.Masker
	audit     *audit.Logger
	metrics   *metrics.Metrics
	log       *zap.Logger
	timeout   time.Duration
}

// NewSecureClient creates a SecureClient. Nil collaborators are replaced by
// defaults: an analyzer with the default limits, a limiter with the default
// window, DefaultMasker, and an audit logger that discards entries.
func NewSecureClient(
	transport Transport,
	az *analyzer.Analyzer,
	limiter *ratelimit.Limiter,
	masker *masking.Masker,
) *SecureClient {
	if az == nil {
		az = analyzer.NewDefault()
	}
	if limiter == nil {
		limiter = ratelimit.NewDefault()
	}
	if masker == nil {
		masker = DefaultMasker()
	}
	return &SecureClient{
		transport: transport,
		analyzer:  az,
		limiter:   limiter,
		masker:    masker,
		audit:     audit.New(nil, masker, audit.ModeDevelopment),
		log:       zap.NewNop(),
		timeout:   config.DefaultRequestTimeout,
	}
}

// NewSecureClientFromConfig wires an HTTP Client and every collaborator from
// cfg. Audit entries go to log.
func NewSecureClientFromConfig(cfg config.Config, httpClient *http.Client, log *zap.Logger) *SecureClient {
	if log == nil {
		log = zap.NewNop()
	}
	masker := masking.New(cfg.Masking())
	c := NewSecureClient(
		NewClient(cfg.Endpoint, httpClient),
		analyzer.New(cfg.MaxQueryDepth, cfg.MaxQueryComplexity),
		ratelimit.New(cfg.RateLimitRequests, cfg.RateLimitWindow),
		masker,
	)
	c.audit = audit.New(log.Named("audit"), masker, audit.ParseMode(string(cfg.Environment)))
	c.log = log
	c.timeout = cfg.RequestTimeout
	return c
}

func (s *SecureClient) clone() *SecureClient {
	c := *s
	return &c
}

// WithTimeout returns a new SecureClient whose transport calls are aborted
// after d.
func (s *SecureClient) WithTimeout(d time.Duration) *SecureClient {
	c := s.clone()
	c.timeout = d
	return c
}

// WithMetrics returns a new SecureClient recording into m.
func (s *SecureClient) WithMetrics(m *metrics.Metrics) *SecureClient {
	c := s.clone()
	c.metrics = m
	return c
}

// WithAuditLogger returns a new SecureClient writing audit entries to l.
func (s *SecureClient) WithAuditLogger(l *audit.Logger) *SecureClient {
	c := s.clone()
	c.audit = l
	return c
}

// WithLogger returns a new SecureClient logging state transitions to l.
func (s *SecureClient) WithLogger(l *zap.Logger) *SecureClient {
	c := s.clone()
	if l == nil {
		l = zap.NewNop()
	}
	c.log = l
	return c
}

// Timeout returns the transport timeout.
func (s *SecureClient) Timeout() time.Duration { return s.timeout }

// Masker returns the masker applied to results and errors.
func (s *SecureClient) Masker() *masking.Masker { return s.masker }

// AuditLogger returns the audit logger.
func (s *SecureClient) AuditLogger() *audit.Logger { return s.audit }

// operation is a guarded operation that passed validation and rate limiting.
type operation struct {
	kind      string
	name      string
	id        string
	doc       *document.Document
	request   *Request
	variables jsonutil.Value
}

// Query runs a read operation and returns its final result. Failures are
// reported in QueryResult.Error.
func (s *SecureClient) Query(
	ctx context.Context,
	query string,
	variables map[string]any,
	opts ...Option,
) *QueryResult {
	op, blocked := s.prepare(types.OperationQuery, query, variables, opts)
	if blocked != nil {
		return blocked
	}
	return s.execute(ctx, op)
}

// QueryAsync runs a read operation in the background. The returned channel
// first yields a result with Loading set, then the final result, and is then
// closed. Validation and rate limiting happen before QueryAsync returns.
func (s *SecureClient) QueryAsync(
	ctx context.Context,
	query string,
	variables map[string]any,
	opts ...Option,
) <-chan *QueryResult {
	ch := make(chan *QueryResult, 2)
	op, blocked := s.prepare(types.OperationQuery, query, variables, opts)
	if blocked != nil {
		ch <- &QueryResult{Loading: true, IsQueryValid: blocked.IsQueryValid}
		ch <- blocked
		close(ch)
		return ch
	}

	ch <- &QueryResult{Loading: true, IsQueryValid: true}
	go func() {
		defer close(ch)
		ch <- s.execute(ctx, op)
	}()
	return ch
}

// Mutate runs a mutation. It returns an error, without contacting the
// transport, when the mutation is rejected by validation or rate limiting.
// Otherwise it returns the final result, whose Error field reports transport
// failures.
func (s *SecureClient) Mutate(
	ctx context.Context,
	mutation string,
	variables map[string]any,
	opts ...Option,
) (*QueryResult, error) {
	op, blocked := s.prepare(types.OperationMutation, mutation, variables, opts)
	if blocked != nil {
		return nil, blocked.Error
	}
	return s.execute(ctx, op), nil
}

func newOperationID() string {
	return uuid.NewString()
}

func (s *SecureClient) transition(op *operation, state string) {
	s.log.Debug("operation state",
		zap.String("operation", op.name),
		zap.String("operation_id", op.id),
		zap.String("state", state),
	)
}

// prepare runs the synchronous stages of an operation. It returns either the
// operation ready for execution or the result of a rejected one.
func (s *SecureClient) prepare(
	kind, query string,
	variables map[string]any,
	opts []Option,
) (*operation, *QueryResult) {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}

	op := &operation{kind: kind, id: o.operationID}
	if op.id == "" {
		op.id = newOperationID()
	}
	op.name = o.operationName
	sanitized := sanitize.Variables(variables)
	op.variables = jsonutil.FromAny(sanitized)

	doc, err := document.Parse(query)
	if err == nil {
		op.doc = doc
		if op.name == "" {
			op.name = doc.OperationName()
		}
		if t := doc.OperationType(); t != "" {
			op.kind = t
		}
	}
	if op.name == "" {
		op.name = AnonymousOperation
	}

	s.transition(op, stateValidating)
	var reasons []string
	if err != nil {
		reasons = []string{analyzer.ErrMsgAnalysisFailed}
	} else {
		result := s.analyzer.Validate(doc)
		s.metrics.ObserveAnalysis(result.Depth, result.Complexity)
		reasons = result.Errors
	}
	if len(reasons) > 0 {
		s.transition(op, stateBlocked)
		s.metrics.RecordOutcome(op.kind, metrics.OutcomeBlocked)
		s.audit.Log(audit.Event{
			Tag:           types.AuditQueryBlocked,
			OperationName: op.name,
			OperationID:   op.id,
			Query:         op.doc,
			Variables:     op.variables,
			Reasons:       reasons,
		})
		return nil, &QueryResult{Error: &ValidationError{Reasons: reasons}}
	}

	verdict := s.limiter.Check(o.rateLimitKey)
	if !verdict.Allowed {
		s.transition(op, stateRateLimited)
		s.metrics.RecordOutcome(op.kind, metrics.OutcomeRateLimited)
		return nil, &QueryResult{
			Error:        &RateLimitError{Remaining: verdict.Remaining, ResetTime: verdict.ResetTime},
			IsQueryValid: true,
		}
	}

	s.transition(op, stateSanitizing)
	op.request = &Request{
		Query:         query,
		Variables:     sanitized,
		OperationName: o.operationName,
		Header:        SecurityHeaders(),
	}
	if op.request.OperationName == "" && doc != nil {
		op.request.OperationName = doc.OperationName()
	}
	return op, nil
}

// execute performs the transport call of a prepared operation.
func (s *SecureClient) execute(ctx context.Context, op *operation) *QueryResult {
	s.transition(op, stateInFlight)

	budget := s.timeout
	if deadline, ok := ctx.Deadline(); ok {
		budget = min(budget, time.Until(deadline))
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	raw, err := s.transport.Execute(ctx, op.request)
	s.metrics.ObserveDuration(op.kind, time.Since(start))
	if ctxErr := ctx.Err(); err != nil && ctxErr != nil {
		err = ctxErr
	}

	var data jsonutil.Value
	if len(raw) > 0 {
		decoded, decodeErr := jsonutil.Decode(raw)
		if decodeErr != nil && err == nil {
			err = newSimpleErrors(ErrJsonDecode, decodeErr)
		}
		data = decoded
	}

	result := &QueryResult{IsQueryValid: true}
	if data != nil {
		result.Data = s.masker.MaskResponseData(data)
	}

	if err != nil {
		opErr := s.handleError(err, budget)
		s.transition(op, stateFailed)
		s.metrics.RecordOutcome(op.kind, metrics.OutcomeFailed)
		s.audit.Log(audit.Event{
			Tag:           types.AuditOperationFailed,
			OperationName: op.name,
			OperationID:   op.id,
			Query:         op.doc,
			Variables:     op.variables,
			Err:           opErr,
		})
		result.Error = opErr
		return result
	}

	s.transition(op, stateCompleted)
	s.metrics.RecordOutcome(op.kind, metrics.OutcomeCompleted)
	s.audit.Log(audit.Event{
		Tag:           types.AuditOperationCompleted,
		OperationName: op.name,
		OperationID:   op.id,
		Query:         op.doc,
		Variables:     op.variables,
		Result:        data,
	})
	return result
}

// HandleError converts a transport failure into a masked OperationError.
// A deadline becomes a timeout error. Otherwise a network error takes
// priority over errors reported by the GraphQL server, and when neither is
// present the error itself is masked.
func (s *SecureClient) HandleError(err error) *OperationError {
	return s.handleError(err, s.timeout)
}

// handleError is HandleError with the time budget of the deadline that may
// have fired.
func (s *SecureClient) handleError(err error, budget time.Duration) *OperationError {
	if err == nil {
		return nil
	}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &OperationError{
			Code:    ErrTimeout,
			Message: fmt.Sprintf("Request timed out after %dms", budget.Round(time.Millisecond).Milliseconds()),
		}
	}

	var errs Errors
	if !errors.As(err, &errs) {
		var single Error
		if errors.As(err, &single) {
			errs = Errors{single}
		}
	}

	if network, ok := errs.First(ErrRequestError); ok {
		return &OperationError{Code: ErrRequestError, Message: s.masker.MaskMessage(network.Message)}
	}
	if errors.Is(err, context.Canceled) {
		return &OperationError{Code: ErrRequestError, Message: s.masker.MaskErrorMessage(err)}
	}
	if execution := errs.Execution(); len(execution) > 0 {
		return &OperationError{Code: ErrGraphQL, Message: s.masker.MaskMessage(execution[0].Message)}
	}
	if len(errs) > 0 {
		return &OperationError{Code: errs[0].GetCode(), Message: s.masker.MaskMessage(errs[0].Message)}
	}
	return &OperationError{Code: ErrInternal, Message: s.masker.MaskErrorMessage(err)}
}
