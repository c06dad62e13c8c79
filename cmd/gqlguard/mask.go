package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/llehouerou/go-graphql-guard/pkg/jsonutil"
	"github.com/llehouerou/go-graphql-guard/pkg/masking"
)

func newMaskCmd(a *app) *cobra.Command {
	var auditForm bool

	cmd := &cobra.Command{
		Use:   "mask <json-file|->",
		Short: "Mask sensitive fields in a JSON payload",
		Long: `Applies the configured masking rules to a JSON document, such as the data
of a GraphQL response. With --audit, sensitive members are removed instead,
as they would be in an audit record.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			v, err := jsonutil.Decode(data)
			if err != nil {
				return fmt.Errorf("invalid JSON: %w", err)
			}

			m := masking.New(a.cfg.Masking())
			if auditForm {
				v = m.CreateAuditLogData(v)
			} else {
				v = m.MaskResponseData(v)
			}
			return writeJSON(cmd.OutOrStdout(), v)
		},
	}

	cmd.Flags().BoolVar(&auditForm, "audit", false, "produce the audit-log form: sensitive members removed")
	return cmd
}
