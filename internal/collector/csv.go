package collector

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"StockCast/internal/model"
)

const csvDateLayout = "2006-01-02"

var csvHeader = []string{"date", "open", "high", "low", "close", "volume"}

// CSVFetcher reads bars from a CSV file. When Path is a directory the file
// <Path>/<symbol>.csv is read.
type CSVFetcher struct {
	Path string
}

func (f *CSVFetcher) Name() string { return "csv" }

func (f *CSVFetcher) FetchBars(_ context.Context, symbol string, _, _ time.Time) ([]model.OHLCV, error) {
	path := f.Path
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, symbol+".csv")
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("csv %s: %w", path, model.ErrDataUnavailable)
		}
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer file.Close()
	return ReadCSV(file)
}

// ReadCSV parses date,open,high,low,close,volume rows. The header is required and matched
// case-insensitively; other columns are ignored. Rows with an empty date or close are skipped.
func ReadCSV(r io.Reader) ([]model.OHLCV, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, &model.RecordError{Row: 1, Err: err}
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"date", "close"} {
		if _, ok := cols[required]; !ok {
			return nil, &model.RecordError{Row: 1, Field: required, Err: errors.New("missing column")}
		}
	}

	var bars []model.OHLCV
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &model.RecordError{Row: line, Err: err}
		}

		field := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		if field("date") == "" || field("close") == "" {
			continue
		}

		ts, err := parseCSVTime(field("date"))
		if err != nil {
			return nil, &model.RecordError{Row: line, Field: "date", Err: err}
		}
		bar := model.OHLCV{Time: ts}
		for _, target := range []struct {
			name string
			dst  *float64
		}{
			{"open", &bar.Open}, {"high", &bar.High}, {"low", &bar.Low},
			{"close", &bar.Close}, {"volume", &bar.Volume},
		} {
			s := field(target.name)
			if s == "" {
				continue
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, &model.RecordError{Row: line, Field: target.name, Err: err}
			}
			*target.dst = v
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseCSVTime(s string) (time.Time, error) {
	for _, layout := range []string{csvDateLayout, time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

func formatCSVTime(t time.Time) string {
	t = t.UTC()
	if t.Equal(t.Truncate(24 * time.Hour)) {
		return t.Format(csvDateLayout)
	}
	return t.Format(time.RFC3339Nano)
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// WriteCSV exports series in the format ReadCSV accepts. Values are written with the shortest
// representation that parses back to the same float64.
func WriteCSV(w io.Writer, series *model.PriceSeries) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, b := range series.Bars() {
		row := []string{
			formatCSVTime(b.Time),
			formatFloat(b.Open),
			formatFloat(b.High),
			formatFloat(b.Low),
			formatFloat(b.Close),
			formatFloat(b.Volume),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteCSVFile writes series to path, creating parent directories.
func WriteCSVFile(path string, series *model.PriceSeries) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(file, series); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
