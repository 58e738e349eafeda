package reporting

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/pkg/types"
)

// EquityRenderer persists reconstructed out-of-sample equity curves.
// Rendering is best-effort: callers log failures and continue.
type EquityRenderer interface {
	Render(curves map[string]*types.Series, dest string) error
}

// CSVEquityRenderer writes every path's cumulative-return curve into a
// single wide CSV keyed by timestamp. Paths with no observation at a
// timestamp leave the cell blank.
type CSVEquityRenderer struct{}

func NewCSVEquityRenderer() *CSVEquityRenderer {
	return &CSVEquityRenderer{}
}

func (r *CSVEquityRenderer) Render(curves map[string]*types.Series, dest string) error {
	if dir := filepath.Dir(dest); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	paths := make([]string, 0, len(curves))
	for path := range curves {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	byTime := make(map[time.Time]map[string]float64)
	for _, path := range paths {
		s := curves[path]
		if s == nil {
			continue
		}
		for i := 0; i < s.Len(); i++ {
			ts, v := s.At(i)
			row, ok := byTime[ts]
			if !ok {
				row = make(map[string]float64, len(paths))
				byTime[ts] = row
			}
			row[path] = v
		}
	}

	stamps := make([]time.Time, 0, len(byTime))
	for ts := range byTime {
		stamps = append(stamps, ts)
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })

	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := append([]string{"timestamp"}, paths...)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, ts := range stamps {
		row := make([]string, 0, len(paths)+1)
		row = append(row, ts.UTC().Format(time.RFC3339))
		for _, path := range paths {
			if v, ok := byTime[ts][path]; ok {
				row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
			} else {
				row = append(row, "")
			}
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}
