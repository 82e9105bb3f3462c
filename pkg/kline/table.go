package kline

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// TimeLayout is the ISO-8601 UTC layout used for persisted timestamps.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// TableColumns is the header of the persisted table.
var TableColumns = []string{
	"openTime", "Open", "High", "Low", "Close", "Volume",
	"closeTime", "QuoteVolume", "Trades", "TakerBuyBase", "TakerBuyQuote",
}

// WriteCSV writes the series as a CSV table, one row per record in series
// order. Invalid numeric values are written as empty cells.
func WriteCSV(w io.Writer, s Series) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(TableColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, r := range s {
		trades := ""
		if r.Trades.Valid {
			trades = strconv.FormatInt(r.Trades.Int64, 10)
		}
		row := []string{
			FormatTime(r.OpenTime),
			decimalText(r.Open),
			decimalText(r.High),
			decimalText(r.Low),
			decimalText(r.Close),
			decimalText(r.Volume),
			FormatTime(r.CloseTime),
			decimalText(r.QuoteVolume),
			trades,
			decimalText(r.TakerBuyBase),
			decimalText(r.TakerBuyQuote),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// FormatTime formats an instant the way the persisted table does.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}
