package lean

import (
	"strconv"
	"strings"
	"time"

	"github.com/rxtech-lab/lean-toolbox/internal/types"
	"github.com/rxtech-lab/lean-toolbox/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	timestampLayout = "20060102 15:04:05"
	fieldCount      = 6
)

// Serialize renders a bar as one CSV row without a line terminator.
// Prices keep their own scale so 151.00 stays "151.00".
func Serialize(bar types.Bar) string {
	var sb strings.Builder

	sb.WriteString(bar.Time.Format(timestampLayout))
	sb.WriteByte(',')
	sb.WriteString(formatDecimal(bar.Open))
	sb.WriteByte(',')
	sb.WriteString(formatDecimal(bar.High))
	sb.WriteByte(',')
	sb.WriteString(formatDecimal(bar.Low))
	sb.WriteByte(',')
	sb.WriteString(formatDecimal(bar.Close))
	sb.WriteByte(',')
	sb.WriteString(strconv.FormatInt(bar.Volume, 10))

	return sb.String()
}

// SerializeAll renders bars in the given order, terminating every row with a newline.
func SerializeAll(bars []types.Bar) []byte {
	var sb strings.Builder

	for _, bar := range bars {
		sb.WriteString(Serialize(bar))
		sb.WriteByte('\n')
	}

	return []byte(sb.String())
}

// Parse decodes one CSV row. Any field count other than six, or any field that fails
// to parse, yields an ErrCodeMalformedRow error.
func Parse(line string) (types.Bar, error) {
	fields := strings.Split(line, ",")
	if len(fields) != fieldCount {
		return types.Bar{}, errors.Newf(errors.ErrCodeMalformedRow, "expected %d fields, got %d", fieldCount, len(fields))
	}

	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	timestamp, err := time.ParseInLocation(timestampLayout, fields[0], time.UTC)
	if err != nil {
		return types.Bar{}, errors.Wrapf(errors.ErrCodeMalformedRow, err, "invalid timestamp %q", fields[0])
	}

	prices := make([]decimal.Decimal, 4)
	for i := range prices {
		prices[i], err = decimal.NewFromString(fields[i+1])
		if err != nil {
			return types.Bar{}, errors.Wrapf(errors.ErrCodeMalformedRow, err, "invalid price %q", fields[i+1])
		}
	}

	volume, err := strconv.ParseInt(fields[5], 10, 64)
	if err != nil {
		return types.Bar{}, errors.Wrapf(errors.ErrCodeMalformedRow, err, "invalid volume %q", fields[5])
	}

	return types.Bar{
		Time:   timestamp,
		Open:   prices[0],
		High:   prices[1],
		Low:    prices[2],
		Close:  prices[3],
		Volume: volume,
	}, nil
}

// IsBlank reports whether a line carries no data.
func IsBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

func formatDecimal(d decimal.Decimal) string {
	places := int32(0)
	if d.Exponent() < 0 {
		places = -d.Exponent()
	}

	return d.StringFixed(places)
}
