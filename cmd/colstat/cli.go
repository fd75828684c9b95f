package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/paveg/colstat"
	"github.com/paveg/colstat/internal/config"
	"github.com/paveg/colstat/internal/version"
)

// globalFlags are shared by every subcommand that opens a dataset.
type globalFlags struct {
	configPath string
	filter     string
	selection  string
	jsonOutput bool
	variables  []string
	virtual    []string
}

func newRootCommand() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "colstat",
		Short: "Streaming statistics over columnar files",
		Long: `colstat opens a CSV, JSON or Parquet file as a dataset and computes
statistics over expressions in a single streaming pass per request.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Configuration file (JSON or YAML); COLSTAT_* variables otherwise")
	root.PersistentFlags().StringVarP(&g.filter, "filter", "f", "", "Filter expression applied before everything else")
	root.PersistentFlags().StringVarP(&g.selection, "selection", "s", "", "Selection expression the statistics are restricted to")
	root.PersistentFlags().BoolVarP(&g.jsonOutput, "json", "j", false, "Output results in JSON format")
	root.PersistentFlags().StringArrayVar(&g.variables, "var", nil, "Variable as name=value, repeatable")
	root.PersistentFlags().StringArrayVar(&g.virtual, "virtual", nil, "Virtual column as name=expression, repeatable")

	root.AddCommand(
		newDescribeCommand(g),
		newStatCommand(g),
		newHistogramCommand(g),
		newExportCommand(g),
		newVersionCommand(),
	)
	return root
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.LoadFromEnv(), nil
	}
	return config.LoadFromFile(path)
}

// open loads the file and applies the variables, virtual columns and filter
// given on the command line.
func (g *globalFlags) open(path string) (*colstat.Dataset, error) {
	cfg, err := loadConfig(g.configPath)
	if err != nil {
		return nil, err
	}
	ds, err := colstat.Open(path, colstat.WithConfig(cfg))
	if err != nil {
		return nil, err
	}
	if err := g.apply(ds); err != nil {
		ds.Release()
		return nil, err
	}
	return ds, nil
}

func (g *globalFlags) apply(ds *colstat.Dataset) error {
	for _, kv := range g.variables {
		name, raw, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("variable %q: want name=value", kv)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return fmt.Errorf("variable %q: %w", name, err)
		}
		if err := ds.SetVariable(strings.TrimSpace(name), v); err != nil {
			return err
		}
	}
	for _, kv := range g.virtual {
		name, formula, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("virtual column %q: want name=expression", kv)
		}
		if err := ds.AddVirtualColumn(strings.TrimSpace(name), formula); err != nil {
			return err
		}
	}
	return ds.SetFilter(g.filter)
}

// selectionOption restricts statistics to the --selection expression.
func (g *globalFlags) selectionOption() colstat.StatOption {
	if g.selection == "" {
		return colstat.Selection(nil)
	}
	return colstat.Selection(g.selection)
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetAutoIndex(false)
	t.Style().Options.SeparateRows = false
	return t
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// summary is one row of describe output.
type summary struct {
	Column string  `json:"column"`
	Count  float64 `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

func newDescribeCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "describe FILE [EXPRESSION...]",
		Short: "Count, mean, std, min and max of numeric columns",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := g.open(args[0])
			if err != nil {
				return err
			}
			defer ds.Release()

			exprs := args[1:]
			if len(exprs) == 0 {
				exprs = ds.ColumnNames(true, false)
			}
			rows, err := describe(cmd.Context(), ds, exprs, g.selectionOption())
			if err != nil {
				return err
			}
			if g.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), rows)
			}
			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"column", "count", "mean", "std", "min", "max"})
			for _, r := range rows {
				t.AppendRow(table.Row{r.Column, formatFloat(r.Count), formatFloat(r.Mean),
					formatFloat(r.Std), formatFloat(r.Min), formatFloat(r.Max)})
			}
			t.Render()
			return nil
		},
	}
}

// describe computes every summary in one pass.
func describe(ctx context.Context, ds *colstat.Dataset, exprs []string, sel colstat.StatOption) ([]summary, error) {
	b := ds.Delayed()
	type pending struct {
		count, mean, std, minmax *colstat.Future[*colstat.Grid]
	}
	futures := make([]pending, len(exprs))
	for i, x := range exprs {
		futures[i] = pending{
			count:  b.Count(x, sel),
			mean:   b.Mean(x, sel),
			std:    b.Std(x, sel),
			minmax: b.MinMax(x, sel),
		}
	}
	if err := b.Execute(ctx); err != nil {
		return nil, err
	}
	out := make([]summary, len(exprs))
	for i, f := range futures {
		count, err := f.count.Get(ctx)
		if err != nil {
			return nil, err
		}
		mean, err := f.mean.Get(ctx)
		if err != nil {
			return nil, err
		}
		std, err := f.std.Get(ctx)
		if err != nil {
			return nil, err
		}
		mm, err := f.minmax.Get(ctx)
		if err != nil {
			return nil, err
		}
		out[i] = summary{
			Column: exprs[i],
			Count:  count.Scalar(),
			Mean:   mean.Scalar(),
			Std:    std.Scalar(),
			Min:    mm.Values[0],
			Max:    mm.Values[1],
		}
	}
	return out, nil
}

// statistic is an immediate single-expression statistic of a dataset.
type statistic func(ds *colstat.Dataset, ctx context.Context, expression string, opts ...colstat.StatOption) (*colstat.Grid, error)

// scalarStats are the statistics the stat command knows by name.
var scalarStats = map[string]statistic{
	"count":          (*colstat.Dataset).Count,
	"sum":            (*colstat.Dataset).Sum,
	"mean":           (*colstat.Dataset).Mean,
	"var":            (*colstat.Dataset).Var,
	"var-noncentral": (*colstat.Dataset).VarNonCentral,
	"std":            (*colstat.Dataset).Std,
	"min":            (*colstat.Dataset).Min,
	"max":            (*colstat.Dataset).Max,
	"minmax":         (*colstat.Dataset).MinMax,
	"median":         (*colstat.Dataset).MedianApprox,
}

func statNames() []string {
	names := make([]string, 0, len(scalarStats))
	for name := range scalarStats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newStatCommand(g *globalFlags) *cobra.Command {
	var (
		binby  []string
		shape  []int
		limits []string
	)
	cmd := &cobra.Command{
		Use:   "stat FILE STATISTIC EXPRESSION",
		Short: "Compute one statistic, optionally on a grid",
		Long:  "STATISTIC is one of: " + strings.Join(statNames(), ", "),
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			fn, ok := scalarStats[args[1]]
			if !ok {
				return fmt.Errorf("unknown statistic %q", args[1])
			}
			ds, err := g.open(args[0])
			if err != nil {
				return err
			}
			defer ds.Release()

			opts, err := gridOptions(binby, shape, limits)
			if err != nil {
				return err
			}
			opts = append(opts, g.selectionOption())
			result, err := fn(ds, cmd.Context(), args[2], opts...)
			if err != nil {
				return err
			}
			return printGrid(cmd.OutOrStdout(), g.jsonOutput, args[1]+"("+args[2]+")", result)
		},
	}
	cmd.Flags().StringSliceVarP(&binby, "binby", "b", nil, "Expressions to bin by")
	cmd.Flags().IntSliceVar(&shape, "shape", nil, "Bins per binby expression")
	cmd.Flags().StringSliceVar(&limits, "limits", nil, "Limits per binby expression: minmax, NN% or lo:hi")
	return cmd
}

// gridOptions builds the binning options given on the command line.
func gridOptions(binby []string, shape []int, limits []string) ([]colstat.StatOption, error) {
	if len(binby) == 0 {
		return nil, nil
	}
	opts := []colstat.StatOption{colstat.BinBy(binby...)}
	if len(shape) > 0 {
		opts = append(opts, colstat.Shape(shape...))
	}
	if len(limits) > 0 {
		specs := make([]any, len(limits))
		for i, l := range limits {
			spec, err := parseLimitFlag(l)
			if err != nil {
				return nil, err
			}
			specs[i] = spec
		}
		opts = append(opts, colstat.Limits(specs...))
	}
	return opts, nil
}

// parseLimitFlag turns "lo:hi" into explicit bounds and passes anything
// else through as a limits keyword.
func parseLimitFlag(s string) (any, error) {
	lo, hi, ok := strings.Cut(s, ":")
	if !ok {
		return s, nil
	}
	l, err := strconv.ParseFloat(lo, 64)
	if err != nil {
		return nil, fmt.Errorf("limits %q: %w", s, err)
	}
	h, err := strconv.ParseFloat(hi, 64)
	if err != nil {
		return nil, fmt.Errorf("limits %q: %w", s, err)
	}
	return [2]float64{l, h}, nil
}

func newHistogramCommand(g *globalFlags) *cobra.Command {
	var (
		shape  int
		limits string
		weight string
	)
	cmd := &cobra.Command{
		Use:   "histogram FILE EXPRESSION",
		Short: "Counts of EXPRESSION in equal-width bins",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := g.open(args[0])
			if err != nil {
				return err
			}
			defer ds.Release()

			spec, err := parseLimitFlag(limits)
			if err != nil {
				return err
			}
			bounds, err := ds.Limits(cmd.Context(), []string{args[1]}, spec)
			if err != nil {
				return err
			}
			opts := []colstat.StatOption{
				g.selectionOption(),
				colstat.BinBy(args[1]),
				colstat.Limits(bounds[0]),
				colstat.Shape(shape),
			}
			if weight != "" {
				opts = append(opts, colstat.Weight(weight))
			}
			counts, err := ds.Histogram(cmd.Context(), opts...)
			if err != nil {
				return err
			}
			return printHistogram(cmd.OutOrStdout(), g.jsonOutput, bounds[0], counts)
		},
	}
	cmd.Flags().IntVar(&shape, "shape", 10, "Number of bins")
	cmd.Flags().StringVar(&limits, "limits", colstat.MinMax, "minmax, NN% or lo:hi")
	cmd.Flags().StringVarP(&weight, "weight", "w", "", "Sum this expression instead of counting rows")
	return cmd
}

type bin struct {
	Lo    float64 `json:"lo"`
	Hi    float64 `json:"hi"`
	Value float64 `json:"value"`
}

func printHistogram(w io.Writer, asJSON bool, limits [2]float64, counts *colstat.Grid) error {
	n := len(counts.Values)
	width := (limits[1] - limits[0]) / float64(n)
	bins := make([]bin, n)
	for i, v := range counts.Values {
		lo := limits[0] + float64(i)*width
		bins[i] = bin{Lo: lo, Hi: lo + width, Value: v}
	}
	if asJSON {
		return writeJSON(w, bins)
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"lo", "hi", "value"})
	for _, b := range bins {
		t.AppendRow(table.Row{formatFloat(b.Lo), formatFloat(b.Hi), formatFloat(b.Value)})
	}
	t.Render()
	return nil
}

// printGrid prints a scalar as one row and a grid as one row per cell
// with its multi-dimensional index.
func printGrid(w io.Writer, asJSON bool, label string, g *colstat.Grid) error {
	if asJSON {
		return writeJSON(w, map[string]any{"statistic": label, "shape": g.Shape, "values": g.Values})
	}
	t := newTable(w)
	if len(g.Shape) == 0 {
		t.AppendHeader(table.Row{"statistic", "value"})
		t.AppendRow(table.Row{label, formatFloat(g.Scalar())})
		t.Render()
		return nil
	}
	t.AppendHeader(table.Row{"cell", label})
	for flat, v := range g.Values {
		t.AppendRow(table.Row{cellIndex(g.Shape, flat), formatFloat(v)})
	}
	t.Render()
	return nil
}

func cellIndex(shape []int, flat int) string {
	idx := make([]string, len(shape))
	for d := len(shape) - 1; d >= 0; d-- {
		idx[d] = strconv.Itoa(flat % shape[d])
		flat /= shape[d]
	}
	return "[" + strings.Join(idx, ",") + "]"
}

func newExportCommand(g *globalFlags) *cobra.Command {
	var exprs []string
	cmd := &cobra.Command{
		Use:   "export FILE OUTPUT",
		Short: "Write expressions over the filtered and selected rows to a file",
		Long:  "The OUTPUT extension picks the format: .csv, .json, .jsonl or .parquet.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := g.open(args[0])
			if err != nil {
				return err
			}
			defer ds.Release()
			if len(exprs) == 0 {
				exprs = ds.ColumnNames(true, true)
			}
			var sel any
			if g.selection != "" {
				sel = g.selection
			}
			if err := ds.Export(args[1], exprs, sel); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[1])
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&exprs, "expr", "e", nil, "Expressions to export (default: all columns)")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprint(cmd.OutOrStdout(), version.Info().String())
			return err
		},
	}
}
