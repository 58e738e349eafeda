package stress

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gonum.org/v1/gonum/stat"

	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/pkg/metrics"
	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/pkg/types"
)

// SummaryBattery is a built-in battery that prints per-column robustness
// statistics of the daily return panel: annualized Sharpe, max drawdown
// and the cross-sectional dispersion of daily returns.
type SummaryBattery struct {
	Out io.Writer
}

func NewSummaryBattery(out io.Writer) *SummaryBattery {
	return &SummaryBattery{Out: out}
}

func (b *SummaryBattery) Run(panel *ReturnPanel) error {
	t := table.NewWriter()
	t.SetOutputMirror(b.Out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"params", "sharpe", "max_drawdown", "daily_vol"})

	for i, label := range panel.Labels {
		col := panel.Columns[i]
		s, err := types.NewSeries(panel.Dates, col)
		if err != nil {
			return err
		}
		t.AppendRow(table.Row{
			label,
			metrics.AnnualSharpe(s),
			metrics.MaxDrawdown(s),
			stat.StdDev(col, nil),
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	t.Render()
	return nil
}
