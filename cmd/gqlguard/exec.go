package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	graphql "github.com/llehouerou/go-graphql-guard"
	"github.com/llehouerou/go-graphql-guard/pkg/jsonutil"
	"github.com/llehouerou/go-graphql-guard/pkg/metrics"
)

var errOperationFailed = errors.New("operation failed")

type execOptions struct {
	vars      []string
	varsFile  string
	mutation  bool
	endpoint  string
	timeout   time.Duration
	operation string
}

type execOutput struct {
	Data  jsonutil.Value `json:"data"`
	Error *execError     `json:"error,omitempty"`
}

type execError struct {
	Code         string   `json:"code"`
	Message      string   `json:"message"`
	Reasons      []string `json:"reasons,omitempty"`
	RetryAfterMs int64    `json:"retry_after_ms,omitempty"`
}

func newExecCmd(a *app) *cobra.Command {
	var opts execOptions

	cmd := &cobra.Command{
		Use:   "exec <query-file|->",
		Short: "Run an operation through the guarded client",
		Long: `Validates, rate limits and sends a GraphQL operation to the configured
endpoint, then prints the masked result. Variables are given with --var
name=value, where value is parsed as JSON when possible and taken as a
string otherwise, or with --vars-file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			variables, err := opts.variables()
			if err != nil {
				return err
			}

			out, err := a.exec(cmd, string(src), variables, opts)
			if werr := writeJSON(cmd.OutOrStdout(), out); werr != nil {
				return werr
			}
			return err
		},
	}

	f := cmd.Flags()
	f.StringArrayVar(&opts.vars, "var", nil, "variable as name=value, repeatable")
	f.StringVar(&opts.varsFile, "vars-file", "", "JSON file holding the variables object")
	f.BoolVar(&opts.mutation, "mutation", false, "run the document as a mutation")
	f.StringVar(&opts.endpoint, "endpoint", "", "override the configured endpoint")
	f.DurationVar(&opts.timeout, "timeout", 0, "override the configured request timeout")
	f.StringVar(&opts.operation, "operation-name", "", "operation to run in a multi-operation document")
	return cmd
}

func (o execOptions) variables() (map[string]any, error) {
	vars := map[string]any{}
	if o.varsFile != "" {
		data, err := os.ReadFile(o.varsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", o.varsFile, err)
		}
		v, err := jsonutil.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("invalid variables file %s: %w", o.varsFile, err)
		}
		m, ok := jsonutil.ToAny(v).(map[string]any)
		if !ok {
			return nil, fmt.Errorf("variables file %s must hold a JSON object", o.varsFile)
		}
		vars = m
	}

	for _, kv := range o.vars {
		name, raw, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --var %q, want name=value", kv)
		}
		vars[name] = parseVarValue(raw)
	}
	return vars, nil
}

func parseVarValue(raw string) any {
	v, err := jsonutil.Decode([]byte(raw))
	if err != nil {
		return raw
	}
	return jsonutil.ToAny(v)
}

func (a *app) exec(cmd *cobra.Command, src string, variables map[string]any, opts execOptions) (execOutput, error) {
	cfg := a.cfg
	if opts.endpoint != "" {
		cfg.Endpoint = opts.endpoint
	}

	reg := prometheus.NewRegistry()
	m, err := metrics.NewRegistered(reg)
	if err != nil {
		return execOutput{}, err
	}

	client := graphql.NewSecureClientFromConfig(cfg, a.httpClient, a.log).WithMetrics(m)
	if opts.timeout > 0 {
		client = client.WithTimeout(opts.timeout)
	}

	var callOpts []graphql.Option
	if opts.operation != "" {
		callOpts = append(callOpts, graphql.OperationName(opts.operation))
	}

	ctx := cmd.Context()
	var result *graphql.QueryResult
	if opts.mutation {
		result, err = client.Mutate(ctx, src, variables, callOpts...)
		if err != nil {
			result = &graphql.QueryResult{Error: err}
		}
	} else {
		result = client.Query(ctx, src, variables, callOpts...)
	}
	logMetrics(a.log, reg)

	out := execOutput{Data: result.Data}
	if result.Error == nil {
		return out, nil
	}
	out.Error = describeError(result.Error, time.Now())
	return out, errOperationFailed
}

func describeError(err error, now time.Time) *execError {
	var (
		validationErr *graphql.ValidationError
		rateErr       *graphql.RateLimitError
		opErr         *graphql.OperationError
	)
	switch {
	case errors.As(err, &validationErr):
		return &execError{
			Code:    "validation_error",
			Message: validationErr.Error(),
			Reasons: validationErr.Reasons,
		}
	case errors.As(err, &rateErr):
		return &execError{
			Code:         "rate_limited",
			Message:      rateErr.Error(),
			RetryAfterMs: rateErr.RetryAfter(now).Milliseconds(),
		}
	case errors.As(err, &opErr):
		return &execError{Code: opErr.Code, Message: opErr.Message}
	}
	return &execError{Code: graphql.ErrInternal, Message: err.Error()}
}

// logMetrics writes every gathered sample at debug level.
func logMetrics(log *zap.Logger, g prometheus.Gatherer) {
	families, err := g.Gather()
	if err != nil {
		log.Warn("failed to gather metrics", zap.Error(err))
		return
	}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			labels := make([]string, 0, len(metric.GetLabel()))
			for _, l := range metric.GetLabel() {
				labels = append(labels, l.GetName()+"="+l.GetValue())
			}
			fields := []zap.Field{
				zap.String("metric", mf.GetName()),
				zap.Strings("labels", labels),
			}
			switch {
			case metric.GetCounter() != nil:
				fields = append(fields, zap.Float64("value", metric.GetCounter().GetValue()))
			case metric.GetHistogram() != nil:
				fields = append(fields,
					zap.Uint64("count", metric.GetHistogram().GetSampleCount()),
					zap.Float64("sum", metric.GetHistogram().GetSampleSum()))
			}
			log.Debug("metric", fields...)
		}
	}
}
