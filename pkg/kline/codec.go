package kline

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// ErrDecode is wrapped by every DecodeError.
var ErrDecode = errors.New("kline decode failed")

// DecodeError reports a page body that cannot be turned into records.
// Row is -1 when the body as a whole is malformed.
type DecodeError struct {
	Row    int
	Reason string
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("decode klines: %s", e.Reason)
	}
	return fmt.Sprintf("decode klines: row %d: %s", e.Row, e.Reason)
}

// Unwrap allows errors.Is(err, ErrDecode).
func (e *DecodeError) Unwrap() error {
	return ErrDecode
}

// Decode parses a /api/v3/klines response body. Rows keep the order the
// exchange sent them in.
func Decode(body []byte) ([]Record, error) {
	if !gjson.ValidBytes(body) {
		return nil, &DecodeError{Row: -1, Reason: "body is not valid JSON"}
	}
	page := gjson.ParseBytes(body)
	if !page.IsArray() {
		return nil, &DecodeError{Row: -1, Reason: "body is not a JSON array"}
	}

	rows := page.Array()
	out := make([]Record, 0, len(rows))
	for i, row := range rows {
		if !row.IsArray() {
			return nil, &DecodeError{Row: i, Reason: "row is not an array"}
		}
		rec, err := decodeRow(i, row.Array())
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// DecodeRows decodes rows that were already unmarshalled into Go values.
func DecodeRows(rows [][]any) ([]Record, error) {
	if rows == nil {
		rows = [][]any{}
	}
	body, err := json.Marshal(rows)
	if err != nil {
		return nil, &DecodeError{Row: -1, Reason: err.Error()}
	}
	return Decode(body)
}

func decodeRow(idx int, f []gjson.Result) (Record, error) {
	if len(f) != FieldCount {
		return Record{}, &DecodeError{Row: idx, Reason: fmt.Sprintf("expected %d fields, got %d", FieldCount, len(f))}
	}

	openMs, ok := parseMillis(f[0])
	if !ok {
		return Record{}, &DecodeError{Row: idx, Reason: fmt.Sprintf("open time %s is not an integer", f[0].Raw)}
	}
	closeMs, ok := parseMillis(f[6])
	if !ok {
		return Record{}, &DecodeError{Row: idx, Reason: fmt.Sprintf("close time %s is not an integer", f[6].Raw)}
	}
	if openMs >= closeMs {
		return Record{}, &DecodeError{Row: idx, Reason: fmt.Sprintf("open time %d not before close time %d", openMs, closeMs)}
	}

	return Record{
		OpenTime:      time.UnixMilli(openMs).UTC(),
		CloseTime:     time.UnixMilli(closeMs).UTC(),
		Open:          parseDecimal(f[1]),
		High:          parseDecimal(f[2]),
		Low:           parseDecimal(f[3]),
		Close:         parseDecimal(f[4]),
		Volume:        parseDecimal(f[5]),
		QuoteVolume:   parseDecimal(f[7]),
		Trades:        parseCount(f[8]),
		TakerBuyBase:  parseDecimal(f[9]),
		TakerBuyQuote: parseDecimal(f[10]),
	}, nil
}

func numericText(v gjson.Result) (string, bool) {
	switch v.Type {
	case gjson.Number:
		return v.Raw, true
	case gjson.String:
		return v.Str, true
	default:
		return "", false
	}
}

func parseMillis(v gjson.Result) (int64, bool) {
	s, ok := numericText(v)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseDecimal(v gjson.Result) decimal.NullDecimal {
	s, ok := numericText(v)
	if !ok {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func parseCount(v gjson.Result) sql.NullInt64 {
	s, ok := numericText(v)
	if !ok {
		return sql.NullInt64{}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: n, Valid: true}
}

// Encode re-emits records in the exchange's 12-field row layout. Decimals
// are written as strings the way the exchange sends them; invalid values
// become empty strings.
func Encode(records []Record) [][]any {
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		var trades any = ""
		if r.Trades.Valid {
			trades = r.Trades.Int64
		}
		rows = append(rows, []any{
			r.OpenTime.UnixMilli(),
			decimalText(r.Open),
			decimalText(r.High),
			decimalText(r.Low),
			decimalText(r.Close),
			decimalText(r.Volume),
			r.CloseTime.UnixMilli(),
			decimalText(r.QuoteVolume),
			trades,
			decimalText(r.TakerBuyBase),
			decimalText(r.TakerBuyQuote),
			"0",
		})
	}
	return rows
}

func decimalText(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}
