package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"docmapper/internal/analyze"
)

const (
	formatYAML  = "yaml"
	formatTable = "table"
)

type scanOptions struct {
	format string
}

func newScanCommand(global *globalOptions) *cobra.Command {
	var opts scanOptions

	cmd := &cobra.Command{
		Use:   "scan [PACKAGE...]",
		Short: "Print the storage layout of the mapped types",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, global, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", formatYAML, "Output format: yaml or table")

	return cmd
}

func runScan(cmd *cobra.Command, global *globalOptions, opts scanOptions, patterns []string) error {
	if opts.format != formatYAML && opts.format != formatTable {
		return fmt.Errorf("unknown format %q: use %s or %s", opts.format, formatYAML, formatTable)
	}

	s, err := global.load(cmd, patterns)
	if err != nil {
		return err
	}

	report, diags := analyze.Scan(s.graph, s.config)
	for _, d := range diags.All() {
		fmt.Fprintln(cmd.ErrOrStderr(), d.String())
	}

	out := cmd.OutOrStdout()
	if opts.format == formatTable {
		return analyze.WriteTable(out, report)
	}

	data, err := analyze.MarshalReport(report)
	if err != nil {
		return err
	}

	_, err = out.Write(data)

	return err
}
