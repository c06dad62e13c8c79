package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/llehouerou/go-graphql-guard/pkg/masking"
)

type configView struct {
	Environment string `yaml:"environment"`
	Endpoint    string `yaml:"endpoint"`
	Limits      struct {
		MaxQueryDepth      float64 `yaml:"max_query_depth"`
		MaxQueryComplexity float64 `yaml:"max_query_complexity"`
		RequestTimeoutMs   int64   `yaml:"request_timeout_ms"`
	} `yaml:"limits"`
	RateLimit struct {
		Requests int   `yaml:"requests"`
		WindowMs int64 `yaml:"window_ms"`
	} `yaml:"rate_limit"`
	Masking  masking.Config `yaml:"masking"`
	Warnings []string       `yaml:"warnings,omitempty"`
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var v configView
			v.Environment = string(a.cfg.Environment)
			v.Endpoint = a.cfg.Endpoint
			v.Limits.MaxQueryDepth = a.cfg.MaxQueryDepth
			v.Limits.MaxQueryComplexity = a.cfg.MaxQueryComplexity
			v.Limits.RequestTimeoutMs = a.cfg.RequestTimeout.Milliseconds()
			v.RateLimit.Requests = a.cfg.RateLimitRequests
			v.RateLimit.WindowMs = a.cfg.RateLimitWindow.Milliseconds()
			v.Masking = a.cfg.Masking()
			v.Warnings = a.cfg.Warnings

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(v); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}
