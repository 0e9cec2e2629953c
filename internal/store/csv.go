package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"ignition/internal/domain"
)

// csvHeader is the column layout for bar CSV files.
var csvHeader = []string{"timestamp", "open", "high", "low", "close", "volume"}

// ReadBarsCSV loads bars for one symbol from a CSV file with a
// timestamp,open,high,low,close,volume header. Timestamps are RFC 3339.
func ReadBarsCSV(path, symbol string) ([]domain.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(csvHeader)

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("store: reading %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("store: %s: empty file", path)
	}
	if records[0][0] != csvHeader[0] {
		return nil, fmt.Errorf("store: %s: missing header row", path)
	}

	bars := make([]domain.Bar, 0, len(records)-1)
	for i, rec := range records[1:] {
		ts, err := time.Parse(time.RFC3339, rec[0])
		if err != nil {
			return nil, fmt.Errorf("store: %s row %d: timestamp: %w", path, i+2, err)
		}
		vals := make([]float64, 4)
		for j := 0; j < 4; j++ {
			v, err := strconv.ParseFloat(rec[j+1], 64)
			if err != nil {
				return nil, fmt.Errorf("store: %s row %d: %s: %w", path, i+2, csvHeader[j+1], err)
			}
			vals[j] = v
		}
		vol, err := strconv.ParseInt(rec[5], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("store: %s row %d: volume: %w", path, i+2, err)
		}
		bars = append(bars, domain.Bar{
			Symbol:    symbol,
			Timestamp: ts,
			Open:      vals[0],
			High:      vals[1],
			Low:       vals[2],
			Close:     vals[3],
			Volume:    vol,
		})
	}
	return bars, nil
}

// WriteBarsCSV writes bars to a CSV file in the layout ReadBarsCSV expects.
func WriteBarsCSV(path string, bars []domain.Bar) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, b := range bars {
		rec := []string{
			b.Timestamp.UTC().Format(time.RFC3339),
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatInt(b.Volume, 10),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
