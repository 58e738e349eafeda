package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/pkg/types"
)

// CSVLoader reads per-ticker OHLCV files into frames for the backtest
// pipeline. Malformed rows are skipped with a warning rather than
// failing the whole load.
type CSVLoader struct {
	format CSVColumnMapping
	log    zerolog.Logger
}

// NewCSVLoader creates a loader with the default column mapping.
func NewCSVLoader(log zerolog.Logger) *CSVLoader {
	return &CSVLoader{format: DefaultCSVFormat, log: log}
}

// NewCSVLoaderWithFormat creates a loader with a custom column mapping.
func NewCSVLoaderWithFormat(format CSVColumnMapping, log zerolog.Logger) *CSVLoader {
	return &CSVLoader{format: format, log: log}
}

// LoadFrame loads one ticker file into a frame with open, high, low,
// close and volume columns indexed by timestamp.
func (l *CSVLoader) LoadFrame(filename string) (*types.Frame, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	lineNum := 0
	if l.format.HasHeader {
		if _, err := reader.Read(); err != nil {
			return nil, fmt.Errorf("reading header of %s: %w", filename, err)
		}
		lineNum = 1
	}

	var (
		index  []time.Time
		opens  []float64
		highs  []float64
		lows   []float64
		closes []float64
		vols   []float64
	)
	for {
		record, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("error reading CSV at line %d: %w", lineNum+1, err)
		}
		lineNum++

		if len(record) < l.format.MinColumns {
			l.log.Warn().Str("file", filename).Int("line", lineNum).
				Int("expected", l.format.MinColumns).Int("got", len(record)).
				Msg("insufficient columns, skipping row")
			continue
		}

		timestamp, err := time.Parse(l.format.DateFormat, record[l.format.TimestampCol])
		if err != nil {
			l.log.Warn().Str("file", filename).Int("line", lineNum).
				Str("value", record[l.format.TimestampCol]).
				Msg("invalid timestamp, skipping row")
			continue
		}

		fields, ok := l.parseRow(record, filename, lineNum)
		if !ok {
			continue
		}

		if len(index) > 0 && !timestamp.After(index[len(index)-1]) {
			l.log.Warn().Str("file", filename).Int("line", lineNum).
				Time("timestamp", timestamp).
				Msg("out-of-order or duplicate timestamp, skipping row")
			continue
		}

		index = append(index, timestamp)
		opens = append(opens, fields[0])
		highs = append(highs, fields[1])
		lows = append(lows, fields[2])
		closes = append(closes, fields[3])
		vols = append(vols, fields[4])
	}

	return types.NewFrame(index,
		[]string{"open", "high", "low", "close", "volume"},
		map[string][]float64{
			"open":   opens,
			"high":   highs,
			"low":    lows,
			"close":  closes,
			"volume": vols,
		})
}

func (l *CSVLoader) parseRow(record []string, filename string, lineNum int) ([5]float64, bool) {
	var out [5]float64
	cols := [5]int{l.format.OpenCol, l.format.HighCol, l.format.LowCol, l.format.CloseCol, l.format.VolumeCol}
	names := [5]string{"open", "high", "low", "close", "volume"}
	for i, col := range cols {
		v, err := strconv.ParseFloat(record[col], 64)
		if err != nil {
			l.log.Warn().Str("file", filename).Int("line", lineNum).
				Str("field", names[i]).Str("value", record[col]).
				Msg("invalid numeric field, skipping row")
			return out, false
		}
		out[i] = v
	}

	open, high, low, close := out[0], out[1], out[2], out[3]
	if open <= 0 || high <= 0 || low <= 0 || close <= 0 {
		l.log.Warn().Str("file", filename).Int("line", lineNum).
			Msg("non-positive price, skipping row")
		return out, false
	}
	if high < open || high < close || high < low || low > open || low > close {
		l.log.Warn().Str("file", filename).Int("line", lineNum).
			Msg("inconsistent OHLC bounds, skipping row")
		return out, false
	}
	return out, true
}

// LoadPanel loads every *.csv file in dir into a panel keyed by the file
// base name (BTCUSDT.csv becomes ticker BTCUSDT). An empty directory is
// an error; an individual unreadable file is not.
func (l *CSVLoader) LoadPanel(dir string) (types.Panel, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading data dir %s: %w", dir, err)
	}

	panel := make(types.Panel)
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			continue
		}
		ticker := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		frame, err := l.LoadFrame(filepath.Join(dir, entry.Name()))
		if err != nil {
			l.log.Warn().Err(err).Str("ticker", ticker).Msg("failed to load ticker file, skipping")
			continue
		}
		if frame.Empty() {
			l.log.Warn().Str("ticker", ticker).Msg("ticker file has no usable rows, skipping")
			continue
		}
		panel[ticker] = frame
	}
	if len(panel) == 0 {
		return nil, fmt.Errorf("no usable ticker files in %s", dir)
	}

	l.log.Info().Int("tickers", len(panel)).Str("dir", dir).Msg("loaded price panel")
	return panel, nil
}
