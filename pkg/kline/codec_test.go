package kline

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `[
  [1704067200000,"42283.58000000","42554.57000000","42261.02000000","42475.23000000","1271.68108000",1704070799999,"53957248.77433290",47134,"682.57581000","28957416.81916020","0"],
  [1704070800000,"42475.23000000","42775.00000000","42431.65000000","42613.56000000","1196.37856000",1704074399999,"50984538.46033230",44567,"597.52017000","25463798.43062010","0"]
]`

func TestDecode_WellFormedPage(t *testing.T) {
	records, err := Decode([]byte(samplePage))
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), first.OpenTime)
	assert.Equal(t, int64(1704070799999), first.CloseTime.UnixMilli())
	assert.True(t, first.Open.Valid)
	assert.True(t, first.Open.Decimal.Equal(decimal.RequireFromString("42283.58")))
	assert.True(t, first.TakerBuyQuote.Decimal.Equal(decimal.RequireFromString("28957416.8191602")))
	assert.Equal(t, int64(47134), first.Trades.Int64)
	assert.True(t, first.Trades.Valid)
	assert.True(t, records[0].OpenTime.Before(records[1].OpenTime))
}

func TestDecode_EmptyPage(t *testing.T) {
	records, err := Decode([]byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDecode_ElevenFieldsFails(t *testing.T) {
	body := `[[1704067200000,"1","2","0.5","1.5","10",1704070799999,"15",3,"4","6"]]`

	_, err := Decode([]byte(body))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecode))

	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, 0, decodeErr.Row)
	assert.Contains(t, decodeErr.Error(), "expected 12 fields, got 11")
}

func TestDecode_MalformedBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>busy</html>`},
		{"object instead of array", `{"code":-1121,"msg":"Invalid symbol."}`},
		{"row is scalar", `[1,2,3]`},
		{"open time not numeric", `[["x","1","2","0.5","1.5","10",1704070799999,"15",3,"4","6","0"]]`},
		{"close time missing", `[[1704067200000,"1","2","0.5","1.5","10",null,"15",3,"4","6","0"]]`},
		{"close before open", `[[1704067200000,"1","2","0.5","1.5","10",1704067100000,"15",3,"4","6","0"]]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.body))
			assert.ErrorIs(t, err, ErrDecode)
		})
	}
}

func TestDecode_LenientNumericFields(t *testing.T) {
	body := `[[1704067200000,"abc","2",null,1.5,"",1704070799999,"15","many","4",true,"0"]]`

	records, err := Decode([]byte(body))
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.False(t, r.Open.Valid, "unparseable string")
	assert.True(t, r.High.Valid)
	assert.False(t, r.Low.Valid, "null")
	assert.True(t, r.Close.Valid, "bare JSON number")
	assert.True(t, r.Close.Decimal.Equal(decimal.RequireFromString("1.5")))
	assert.False(t, r.Volume.Valid, "empty string")
	assert.False(t, r.Trades.Valid)
	assert.False(t, r.TakerBuyQuote.Valid, "boolean")
}

func TestDecode_StringTimestamps(t *testing.T) {
	body := `[["1704067200000","1","2","0.5","1.5","10","1704070799999","15","3","4","6","0"]]`

	records, err := Decode([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, int64(1704067200000), records[0].OpenTimeMs())
	assert.Equal(t, int64(3), records[0].Trades.Int64)
}

func TestDecode_PreservesInputOrder(t *testing.T) {
	body := `[
	  [1704070800000,"1","1","1","1","1",1704074399999,"1",1,"1","1","0"],
	  [1704067200000,"2","2","2","2","2",1704070799999,"2",2,"2","2","0"]
	]`
	records, err := Decode([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, int64(1704070800000), records[0].OpenTimeMs())
	assert.Equal(t, int64(1704067200000), records[1].OpenTimeMs())
}

func TestEncode_RoundTrip(t *testing.T) {
	original, err := Decode([]byte(samplePage))
	require.NoError(t, err)

	rows := Encode(original)
	require.Len(t, rows, len(original))
	for _, row := range rows {
		assert.Len(t, row, FieldCount)
	}

	again, err := DecodeRows(rows)
	require.NoError(t, err)
	require.Len(t, again, len(original))

	for i := range original {
		a, b := original[i], again[i]
		assert.True(t, a.OpenTime.Equal(b.OpenTime))
		assert.True(t, a.CloseTime.Equal(b.CloseTime))
		assert.Equal(t, a.Trades, b.Trades)
		pairs := [][2]decimal.NullDecimal{
			{a.Open, b.Open}, {a.High, b.High}, {a.Low, b.Low}, {a.Close, b.Close},
			{a.Volume, b.Volume}, {a.QuoteVolume, b.QuoteVolume},
			{a.TakerBuyBase, b.TakerBuyBase}, {a.TakerBuyQuote, b.TakerBuyQuote},
		}
		for _, p := range pairs {
			assert.Equal(t, p[0].Valid, p[1].Valid)
			assert.True(t, p[0].Decimal.Equal(p[1].Decimal), "%s != %s", p[0].Decimal, p[1].Decimal)
		}
	}
}

func TestEncode_InvalidMarkersSurvive(t *testing.T) {
	records, err := Decode([]byte(`[[1704067200000,"bad","2","0.5","1.5","10",1704070799999,"15","x","4","6","0"]]`))
	require.NoError(t, err)

	raw, err := json.Marshal(Encode(records))
	require.NoError(t, err)

	again, err := Decode(raw)
	require.NoError(t, err)
	assert.False(t, again[0].Open.Valid)
	assert.False(t, again[0].Trades.Valid)
	assert.True(t, again[0].High.Valid)
}

func TestWriteCSV(t *testing.T) {
	records, err := Decode([]byte(samplePage))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, Merge(records)))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "openTime,Open,High,Low,Close,Volume,closeTime,QuoteVolume,Trades,TakerBuyBase,TakerBuyQuote", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "2024-01-01T00:00:00.000Z,42283.58,"), lines[1])
	assert.Contains(t, lines[1], ",2024-01-01T00:59:59.999Z,")
	assert.True(t, strings.HasPrefix(lines[2], "2024-01-01T01:00:00.000Z,"))
}
