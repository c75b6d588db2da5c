package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"docmapper/internal/analyze"
	"docmapper/internal/diagnostic"
	"docmapper/internal/mapping"
)

func newCheckCommand(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check [PACKAGE...]",
		Short: "Report mapping configuration errors",
		Long: "Report the configuration errors mapping the packages' types would raise: " +
			"duplicate keys and identities, identities on embedded values, unknown options " +
			"and, with --config, problems in the mapping file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, global, args)
		},
	}
}

func runCheck(cmd *cobra.Command, global *globalOptions, patterns []string) error {
	s, err := global.load(cmd, patterns)
	if err != nil {
		return err
	}

	_, diags := analyze.Scan(s.graph, s.config)
	if s.mapping != nil {
		fileDiags := mapping.Validate(s.mapping, s.graph)
		diags.Merge(*fileDiags)
	}

	printDiagnostics(cmd, diags)

	s.logger.Debug("check finished",
		zap.Int("errors", len(diags.Errors)),
		zap.Int("warnings", len(diags.Warnings)))

	if diags.HasErrors() {
		return fmt.Errorf("%d mapping error(s) found", len(diags.Errors))
	}

	fmt.Fprintln(cmd.OutOrStdout(), "ok")

	return nil
}

func printDiagnostics(cmd *cobra.Command, diags *diagnostic.Diagnostics) {
	out := cmd.OutOrStdout()
	for _, d := range diags.All() {
		fmt.Fprintf(out, "%s: %s\n", d.Severity, d)
	}
}
