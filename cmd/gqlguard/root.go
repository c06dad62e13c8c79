package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/llehouerou/go-graphql-guard/pkg/config"
)

// app holds the state shared by every subcommand.
type app struct {
	cfgFile  string
	logLevel string

	cfg config.Config
	// log is built from --log-level unless already set.
	log *zap.Logger
	// httpClient is used by exec. nil means http.DefaultClient.
	httpClient *http.Client
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gqlguard",
		Short: "Guarded GraphQL client: analysis, masking and execution",
		Long: `gqlguard validates GraphQL documents against depth and complexity
limits, masks sensitive fields in response payloads and runs operations
through the guarded client with rate limiting, timeouts and audit logging.

Configuration comes from GRAPHQL_* environment variables, optionally
overlaid by a YAML file given with --config.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	cmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "YAML config file overlaid on the environment")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "log level: debug, info, warn or error")

	cmd.AddCommand(
		newAnalyzeCmd(a),
		newMaskCmd(a),
		newExecCmd(a),
		newConfigCmd(a),
	)
	return cmd
}

func (a *app) init() error {
	if a.log == nil {
		log, err := buildLogger(a.logLevel)
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		a.log = log
	}

	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	for _, w := range cfg.Warnings {
		a.log.Warn("configuration fallback", zap.String("warning", w))
	}
	a.cfg = cfg
	return nil
}

// readInput returns the contents of the file named by arg, or of stdin when
// arg is "-".
func readInput(cmd *cobra.Command, arg string) ([]byte, error) {
	if arg == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", arg, err)
	}
	return data, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
