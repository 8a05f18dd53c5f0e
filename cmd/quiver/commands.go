package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	gojson "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/quiver/pkg/bridge"
	"github.com/ajitpratap0/quiver/pkg/compression"
	"github.com/ajitpratap0/quiver/pkg/errors"
	"github.com/ajitpratap0/quiver/pkg/extension"
	"github.com/ajitpratap0/quiver/pkg/handle"
	"github.com/ajitpratap0/quiver/pkg/json"
	"github.com/ajitpratap0/quiver/pkg/mmap"
	"github.com/ajitpratap0/quiver/pkg/observability"
	"github.com/ajitpratap0/quiver/pkg/sniff"
)

func newRootCommand(a *app) *cobra.Command {
	a.viper = viper.New()

	rootCmd := &cobra.Command{
		Use:           "quiver",
		Short:         "Inspect, validate and convert Arrow and Parquet data",
		Long:          `Quiver detects Arrow IPC, Feather and Parquet buffers, decodes them into in-memory tables and writes them back out with optional LZ4 or ZSTD compression.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.setup()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "Path to a YAML configuration file")
	flags.StringVar(&a.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.Bool("strict", false, "Reject inputs whose format detection produced warnings")
	_ = a.viper.BindPFlag("logging.level", flags.Lookup("log-level"))
	_ = a.viper.BindPFlag("sniffer.strict", flags.Lookup("strict"))

	rootCmd.AddCommand(
		newVersionCommand(),
		newSniffCommand(a),
		newInspectCommand(a),
		newConvertCommand(a),
		newAnalyzeCommand(a),
		newValidateCommand(a),
	)
	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Quiver v%s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "Formats: %s\n", formatNames())
			fmt.Fprintf(cmd.OutOrStdout(), "Compressions: %s\n", algorithmNames(compression.Available()))
		},
	}
}

func newSniffCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sniff FILE",
		Short: "Detect the container format of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := a.readInput(args[0])
			if err != nil {
				return err
			}
			det, err := sniff.Detect(data)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), detectionReport(det))
		},
	}
}

type detection struct {
	Format      string   `json:"format"`
	DisplayName string   `json:"display_name"`
	Ambiguous   []string `json:"ambiguous,omitempty"`
	Speculative bool     `json:"speculative"`
	Warnings    []string `json:"warnings,omitempty"`
}

func detectionReport(d sniff.Detection) detection {
	out := detection{
		Format:      d.Format.String(),
		DisplayName: d.Format.DisplayName(),
		Speculative: d.Speculative,
		Warnings:    d.Warnings,
	}
	for _, f := range d.Ambiguous {
		out.Ambiguous = append(out.Ambiguous, f.String())
	}
	return out
}

func newInspectCommand(a *app) *cobra.Command {
	var rows int64
	var stats bool

	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Decode a file and print its schema, statistics and leading rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.traced(cmd.Context(), "cli.inspect", func(ctx context.Context) error {
				h, err := a.decodeFile(ctx, args[0])
				if err != nil {
					return err
				}
				defer a.store.Free(h) //nolint:errcheck

				report, err := a.inspect(h, rows, stats)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	cmd.Flags().Int64Var(&rows, "rows", 5, "Number of leading rows to print")
	cmd.Flags().BoolVar(&stats, "stats", true, "Compute per-column statistics")
	return cmd
}

type inspection struct {
	Format   string                             `json:"format"`
	Schema   gojson.RawMessage                  `json:"schema"`
	Metadata map[string]string                  `json:"metadata,omitempty"`
	Stats    map[string]bridge.ColumnStatistics `json:"statistics,omitempty"`
	Rows     []map[string]any                   `json:"rows"`
}

func (a *app) inspect(h handle.Handle, rows int64, stats bool) (*inspection, error) {
	summary, err := a.store.SchemaSummary(h)
	if err != nil {
		return nil, err
	}
	info, err := a.store.FormatInfo(h)
	if err != nil {
		return nil, err
	}
	md, err := a.store.Metadata(h)
	if err != nil {
		return nil, err
	}
	report := &inspection{Format: info, Schema: summary, Metadata: md, Rows: []map[string]any{}}

	view, err := a.store.Table(h)
	if err != nil {
		return nil, err
	}
	names, err := view.ColumnNames()
	if err != nil {
		return nil, err
	}
	if stats {
		report.Stats = make(map[string]bridge.ColumnStatistics, len(names))
		for i, name := range names {
			col, err := view.Column(i)
			if err != nil {
				return nil, err
			}
			st, err := col.Statistics()
			if err != nil {
				return nil, err
			}
			report.Stats[name] = st
		}
	}

	n, err := view.NumRows()
	if err != nil {
		return nil, err
	}
	for i := int64(0); i < min(rows, n); i++ {
		row, err := view.Row(i)
		if err != nil {
			return nil, err
		}
		m, err := row.ToMap()
		if err != nil {
			return nil, err
		}
		report.Rows = append(report.Rows, m)
	}
	return report, nil
}

func newConvertCommand(a *app) *cobra.Command {
	var (
		format  string
		codec   string
		columns []string
		sortBy  string
		desc    bool
	)

	cmd := &cobra.Command{
		Use:   "convert IN OUT",
		Short: "Re-encode a file into another container, optionally projecting and sorting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := sniff.ParseFormat(format)
			if err != nil {
				return errors.Wrap(err, errors.CodeValidation, "--format")
			}
			cfg := a.cfg.Compression
			if cmd.Flags().Changed("compression") {
				alg, err := compression.ParseAlgorithm(codec)
				if err != nil {
					return errors.Wrap(err, errors.CodeValidation, "--compression")
				}
				cfg.Algorithm = alg
				cfg.Enabled = alg != compression.None
			}

			return a.traced(cmd.Context(), "cli.convert", func(ctx context.Context) error {
				out, err := a.convert(ctx, args[0], target, cfg, columns, sortBy, desc)
				if err != nil {
					return err
				}
				if err := writeOutput(args[1], out); err != nil {
					return err
				}
				a.log.Info("converted",
					zap.String("input", args[0]),
					zap.String("output", args[1]),
					zap.String("format", target.String()),
					zap.String("compression", string(cfg.Algorithm)),
					zap.Int("bytes", len(out)))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "arrow_ipc_file", "Output format (arrow_ipc_file, arrow_ipc_stream, feather, parquet)")
	cmd.Flags().StringVar(&codec, "compression", "none", "Body compression (none, lz4, zstd)")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "Keep only these columns, in this order")
	cmd.Flags().StringVar(&sortBy, "sort-by", "", "Sort rows by this column")
	cmd.Flags().BoolVar(&desc, "desc", false, "Sort descending")
	return cmd
}

func (a *app) convert(ctx context.Context, path string, target sniff.Format, cfg compression.Config, columns []string, sortBy string, desc bool) ([]byte, error) {
	h, err := a.decodeFile(ctx, path)
	if err != nil {
		return nil, err
	}
	defer a.store.Free(h) //nolint:errcheck

	if len(columns) > 0 {
		sel, err := a.store.Select(h, columns)
		if err != nil {
			return nil, err
		}
		defer a.store.Free(sel) //nolint:errcheck
		h = sel
	}
	if sortBy != "" {
		sorted, err := a.store.SortBy(ctx, h, sortBy, desc)
		if err != nil {
			return nil, err
		}
		defer a.store.Free(sorted) //nolint:errcheck
		h = sorted
	}
	return a.store.Write(ctx, h, target, cfg)
}

func newAnalyzeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze FILE",
		Short: "Report the codec of a file and estimate each codec's ratio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := a.readInput(args[0])
			if err != nil {
				return err
			}
			return a.traced(cmd.Context(), "cli.analyze", func(ctx context.Context) error {
				analysis, err := a.store.AnalyzeCompression(ctx, data)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), analysis)
			})
		},
	}
}

func newValidateCommand(a *app) *cobra.Command {
	var extensions []string

	cmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Check that a file decodes and that extension columns hold valid values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range extensions {
				if err := a.store.Extensions().EnableID(id); err != nil {
					return err
				}
			}
			return a.traced(cmd.Context(), "cli.validate", func(ctx context.Context) error {
				h, err := a.decodeFile(ctx, args[0])
				if err != nil {
					return err
				}
				defer a.store.Free(h) //nolint:errcheck

				if err := a.store.ValidateExtensions(h); err != nil {
					return err
				}
				info, err := a.store.FormatInfo(h)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "OK %s\n", info)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&extensions, "extension", nil, "Enable an extension validator ("+kindNames()+" or a dotted id)")
	return cmd
}

func (a *app) decodeFile(ctx context.Context, path string) (handle.Handle, error) {
	data, err := a.readInput(path)
	if err != nil {
		return 0, err
	}
	return a.store.Decode(ctx, data)
}

func (a *app) traced(ctx context.Context, name string, fn func(context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := observability.StartSpan(ctx, name)
	err := fn(ctx)
	span.End(err)
	return err
}

// readInput maps path, or reads stdin for "-". Mappings stay open until the
// app closes.
func (a *app) readInput(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeIO, "failed to read stdin")
		}
		return data, nil
	}
	f, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	a.inputs = append(a.inputs, f)
	return f.Bytes(), nil
}

func writeOutput(path string, data []byte) error {
	if path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrapf(err, errors.CodeIO, "failed to write %s", path)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.CodeIO, "failed to encode output")
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func formatNames() string {
	var names []string
	for _, f := range sniff.Supported() {
		names = append(names, f.String())
	}
	return strings.Join(names, ", ")
}

func algorithmNames(algs []compression.Algorithm) string {
	names := make([]string, len(algs))
	for i, alg := range algs {
		names[i] = string(alg)
	}
	return strings.Join(names, ", ")
}

func kindNames() string {
	var names []string
	for _, k := range extension.Kinds() {
		names = append(names, k.String())
	}
	return strings.Join(names, ", ")
}
