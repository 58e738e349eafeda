package reporting

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/pkg/optimizer"
)

// RenderTopTrials prints the validated trials ordered as given, up to
// limit rows (limit <= 0 prints everything).
func RenderTopTrials(out io.Writer, trials []*optimizer.Trial, limit int) {
	if len(trials) == 0 {
		fmt.Fprintln(out, "no validated trials")
		return
	}
	if limit <= 0 || limit > len(trials) {
		limit = len(trials)
	}

	names := unionParamNames(trials)

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)

	header := table.Row{"#", "fold"}
	for _, name := range names {
		header = append(header, name)
	}
	header = append(header, "sharpe")
	t.AppendHeader(header)

	for i, trial := range trials[:limit] {
		row := table.Row{i + 1, foldCell(trial)}
		for _, name := range names {
			if v, ok := trial.Params[name]; ok {
				row = append(row, v.String())
			} else {
				row = append(row, "")
			}
		}
		row = append(row, scoreCell(trial.Score))
		t.AppendRow(row)
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: len(header), Align: text.AlignRight},
	})
	t.Render()
}

// RenderAggregatedParams prints the single parameter set produced by
// cross-fold aggregation.
func RenderAggregatedParams(out io.Writer, params optimizer.Params) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"parameter", "value"})

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t.AppendRow(table.Row{name, params[name].String()})
	}
	t.Render()
}

// RenderPathMetrics prints per-path out-of-sample metrics plus their
// cross-path mean.
func RenderPathMetrics(out io.Writer, metricNames []string, perPath map[string][]float64, mean []float64) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)

	header := table.Row{"path"}
	for _, name := range metricNames {
		header = append(header, name)
	}
	t.AppendHeader(header)

	paths := make([]string, 0, len(perPath))
	for path := range perPath {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		row := table.Row{path}
		for _, v := range perPath[path] {
			row = append(row, scoreCell(v))
		}
		t.AppendRow(row)
	}
	if len(mean) > 0 {
		row := table.Row{"mean"}
		for _, v := range mean {
			row = append(row, scoreCell(v))
		}
		t.AppendFooter(row)
	}

	configs := make([]table.ColumnConfig, 0, len(metricNames))
	for i := range metricNames {
		configs = append(configs, table.ColumnConfig{Number: i + 2, Align: text.AlignRight})
	}
	t.SetColumnConfigs(configs)
	t.Render()
}

func foldCell(t *optimizer.Trial) string {
	if t.Fold == nil {
		return ""
	}
	return strconv.Itoa(*t.Fold)
}

func scoreCell(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return strconv.FormatFloat(v, 'f', 4, 64)
}
