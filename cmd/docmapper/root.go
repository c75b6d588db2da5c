package main

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"docmapper/internal/analyze"
	"docmapper/internal/mapping"
	"docmapper/options"
)

type globalOptions struct {
	mappingFile string
	sub         bool
	debug       bool
	dir         string
}

func newRootCommand() *cobra.Command {
	var opts globalOptions

	cmd := &cobra.Command{
		Use:          "docmapper",
		Short:        "Inspect how Go types map onto BSON documents",
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.mappingFile, "config", "c", "", "Mapping file (YAML or TOML) with overrides and configuration")
	flags.BoolVar(&opts.sub, "sub", false, "Descend into sub-packages of every pattern")
	flags.BoolVar(&opts.debug, "debug", false, "Log progress and dump the loaded type graph")
	flags.StringVar(&opts.dir, "dir", "", "Directory package patterns are resolved in")

	cmd.AddCommand(
		newScanCommand(&opts),
		newCheckCommand(&opts),
	)

	return cmd
}

// session is the state shared by the subcommands: the effective
// configuration, the optional mapping file and the loaded type graph.
type session struct {
	config  options.Config
	mapping *mapping.MappingFile
	graph   *analyze.TypeGraph
	logger  *zap.Logger
}

func (o *globalOptions) newLogger() *zap.Logger {
	if !o.debug {
		return zap.NewNop()
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}

	return logger
}

// load reads the mapping file, if any, and loads the packages matching
// patterns.
func (o *globalOptions) load(cmd *cobra.Command, patterns []string) (*session, error) {
	s := &session{config: options.Default(), logger: o.newLogger()}

	if o.mappingFile != "" {
		mf, err := mapping.LoadFile(o.mappingFile)
		if err != nil {
			return nil, err
		}

		cfg, err := mf.MergedConfig(s.config)
		if err != nil {
			return nil, err
		}

		s.mapping = mf
		s.config = cfg
		s.logger.Debug("loaded mapping file", zap.String("path", o.mappingFile), zap.Int("types", len(mf.Types)))
	}

	if o.sub {
		s.config.MapSubPackagesWhenScanning = true
	}

	if err := s.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if len(patterns) == 0 {
		patterns = []string{"."}
	}

	analyzer := analyze.NewAnalyzer()
	analyzer.SubPackages = s.config.MapSubPackagesWhenScanning
	analyzer.Dir = o.dir

	graph, err := analyzer.LoadPackages(patterns...)
	if err != nil {
		return nil, err
	}

	s.graph = graph
	s.logger.Debug("loaded packages",
		zap.Strings("patterns", analyze.ExpandPatterns(patterns, analyzer.SubPackages)),
		zap.Int("packages", len(graph.Packages)),
		zap.Int("types", len(graph.Types)))

	if o.debug {
		cfg := spew.ConfigState{Indent: "  ", MaxDepth: 3, DisablePointerAddresses: true, SortKeys: true}
		cfg.Fdump(cmd.ErrOrStderr(), graph.Structs())
	}

	return s, nil
}
