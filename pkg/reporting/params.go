package reporting

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/pkg/optimizer"
)

// Package reporting persists the run's parameter tables and renders
// results. Two tabular files are written per run: a top-parameters table
// (one row per validated trial, with a nullable fold attribution and the
// validation score) and an all-tested-parameters table (one row per
// distinct trial ever evaluated).

// ErrBadSchema signals a persisted parameter table missing the expected
// columns; reload cannot proceed.
var ErrBadSchema = errors.New("reporting: parameter table missing expected columns")

const (
	foldColumn  = "fold_num"
	scoreColumn = "sharpe"

	topParamsFile = "top_params"
	allParamsFile = "all_tested_params"
)

// ParamTables is the reloaded state of a previous run.
type ParamTables struct {
	TopTrials   []*optimizer.Trial
	BestPerFold map[int]*optimizer.Trial
	AllTested   []*optimizer.Trial
}

// ParamStore saves and reloads parameter tables under a directory and
// file prefix. Format is "csv" or "xlsx"; destinations ending in .xlsx
// are written with the Excel writer.
type ParamStore struct {
	Dir    string
	Prefix string
	Format string
}

// NewParamStore creates a CSV-format parameter store.
func NewParamStore(dir, prefix string) *ParamStore {
	return &ParamStore{Dir: dir, Prefix: prefix, Format: "csv"}
}

// Save writes both parameter tables. Top trials are ordered by validation
// score descending with unscored trials last.
func (s *ParamStore) Save(topTrials, allTested []*optimizer.Trial) error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("reporting: create save dir: %w", err)
	}

	sorted := make([]*optimizer.Trial, len(topTrials))
	copy(sorted, topTrials)
	sort.SliceStable(sorted, func(i, j int) bool {
		si, sj := sorted[i].Score, sorted[j].Score
		if math.IsNaN(si) {
			return false
		}
		if math.IsNaN(sj) {
			return true
		}
		return si > sj
	})

	names := unionParamNames(append(append([]*optimizer.Trial{}, topTrials...), allTested...))

	topHeader := append(append([]string{}, names...), foldColumn, scoreColumn)
	topRows := make([][]string, 0, len(sorted))
	for _, t := range sorted {
		topRows = append(topRows, trialRow(t, names, true))
	}
	if err := s.writeTable(s.path(topParamsFile), topHeader, topRows); err != nil {
		return err
	}

	allHeader := append(append([]string{}, names...), scoreColumn)
	allRows := make([][]string, 0, len(allTested))
	for _, t := range allTested {
		allRows = append(allRows, trialRow(t, names, false))
	}
	return s.writeTable(s.path(allParamsFile), allHeader, allRows)
}

// Load reconstructs the top-trial list, the best-per-fold mapping and the
// full ledger from the persisted tables.
func (s *ParamStore) Load() (*ParamTables, error) {
	topHeader, topRows, err := s.readTable(s.path(topParamsFile))
	if err != nil {
		return nil, err
	}
	foldIdx := indexOf(topHeader, foldColumn)
	scoreIdx := indexOf(topHeader, scoreColumn)
	if foldIdx < 0 || scoreIdx < 0 {
		return nil, fmt.Errorf("%w: want %q and %q in %v", ErrBadSchema, foldColumn, scoreColumn, topHeader)
	}

	out := &ParamTables{BestPerFold: make(map[int]*optimizer.Trial)}
	for _, row := range topRows {
		trial := &optimizer.Trial{Params: rowParams(topHeader, row, foldIdx, scoreIdx)}
		trial.Score = parseScore(cellAt(row, scoreIdx))
		if cell := cellAt(row, foldIdx); cell != "" {
			fold, err := strconv.Atoi(cell)
			if err != nil {
				return nil, fmt.Errorf("reporting: bad %s value %q: %w", foldColumn, cell, err)
			}
			trial.Fold = &fold
			out.BestPerFold[fold] = trial
		}
		out.TopTrials = append(out.TopTrials, trial)
	}

	allHeader, allRows, err := s.readTable(s.path(allParamsFile))
	if err != nil {
		return nil, err
	}
	allScoreIdx := indexOf(allHeader, scoreColumn)
	if allScoreIdx < 0 {
		return nil, fmt.Errorf("%w: want %q in %v", ErrBadSchema, scoreColumn, allHeader)
	}
	for _, row := range allRows {
		trial := &optimizer.Trial{Params: rowParams(allHeader, row, -1, allScoreIdx)}
		trial.Score = parseScore(cellAt(row, allScoreIdx))
		out.AllTested = append(out.AllTested, trial)
	}
	return out, nil
}

func (s *ParamStore) path(name string) string {
	ext := s.Format
	if ext == "" {
		ext = "csv"
	}
	return filepath.Join(s.Dir, s.Prefix+name+"."+ext)
}

func (s *ParamStore) writeTable(path string, header []string, rows [][]string) error {
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return writeTableXLSX(path, header, rows)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func (s *ParamStore) readTable(path string) ([]string, [][]string, error) {
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return readTableXLSX(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%w: %s is empty", ErrBadSchema, path)
	}
	return records[0], records[1:], nil
}

func unionParamNames(trials []*optimizer.Trial) []string {
	seen := make(map[string]struct{})
	for _, t := range trials {
		for name := range t.Params {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func trialRow(t *optimizer.Trial, names []string, withFold bool) []string {
	row := make([]string, 0, len(names)+2)
	for _, name := range names {
		if v, ok := t.Params[name]; ok {
			row = append(row, v.String())
		} else {
			row = append(row, "")
		}
	}
	if withFold {
		if t.Fold != nil {
			row = append(row, strconv.Itoa(*t.Fold))
		} else {
			row = append(row, "")
		}
	}
	if math.IsNaN(t.Score) {
		row = append(row, "")
	} else {
		row = append(row, strconv.FormatFloat(t.Score, 'g', -1, 64))
	}
	return row
}

func rowParams(header, row []string, foldIdx, scoreIdx int) optimizer.Params {
	params := make(optimizer.Params)
	for i, name := range header {
		if i == foldIdx || i == scoreIdx || i >= len(row) || row[i] == "" {
			continue
		}
		params[name] = parseValue(row[i])
	}
	return params
}

// parseValue reconstructs the richest type a cell supports: int, float,
// bool, numeric list, then string.
func parseValue(cell string) optimizer.ParamValue {
	if v, err := strconv.Atoi(cell); err == nil {
		return optimizer.IntValue(v)
	}
	if v, err := strconv.ParseFloat(cell, 64); err == nil {
		return optimizer.FloatValue(v)
	}
	if v, err := strconv.ParseBool(cell); err == nil {
		return optimizer.BoolValue(v)
	}
	if strings.HasPrefix(cell, "[") && strings.HasSuffix(cell, "]") {
		parts := strings.Fields(strings.Trim(cell, "[]"))
		vals := make([]float64, 0, len(parts))
		ok := true
		for _, p := range parts {
			v, err := strconv.ParseFloat(p, 64)
			if err != nil {
				ok = false
				break
			}
			vals = append(vals, v)
		}
		if ok {
			return optimizer.FloatsValue(vals)
		}
	}
	return optimizer.StringValue(cell)
}

func parseScore(cell string) float64 {
	if cell == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// cellAt tolerates rows shorter than the header; readers of xlsx tables
// trim trailing empty cells.
func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}
