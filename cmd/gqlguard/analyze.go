package main

import (
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/llehouerou/go-graphql-guard/pkg/analyzer"
	"github.com/llehouerou/go-graphql-guard/pkg/document"
)

var errQueryRejected = errors.New("query rejected")

type analysis struct {
	Operation  string   `json:"operation,omitempty"`
	Type       string   `json:"type,omitempty"`
	Depth      int      `json:"depth"`
	Complexity int      `json:"complexity"`
	Valid      bool     `json:"valid"`
	Errors     []string `json:"errors,omitempty"`
}

func newAnalyzeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <query-file|->",
		Short: "Report the depth and complexity of a GraphQL document",
		Long: `Parses a GraphQL document and checks it against the configured depth and
complexity limits. Exits with a non-zero status when the document would be
blocked.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}

			res := a.analyze(string(src))
			if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.Valid {
				return errQueryRejected
			}
			return nil
		},
	}
}

func (a *app) analyze(src string) analysis {
	doc, err := document.Parse(src)
	if err != nil {
		a.log.Debug("parse failed", zap.Error(err))
		return analysis{Errors: []string{analyzer.ErrMsgAnalysisFailed}}
	}

	v := analyzer.New(a.cfg.MaxQueryDepth, a.cfg.MaxQueryComplexity).Validate(doc)
	return analysis{
		Operation:  doc.OperationName(),
		Type:       doc.OperationType(),
		Depth:      v.Depth,
		Complexity: v.Complexity,
		Valid:      v.Valid,
		Errors:     v.Errors,
	}
}
