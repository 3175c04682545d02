package record

import (
	"fmt"
	"strconv"
)

// Record is one merged transaction row ready for scoring.
type Record struct {
	TransactionID string
	Amount        float64
	Fields        map[string]string
}

// Source produces the ordered, finite sequence of records for a replay.
// Implementations must be safe for concurrent readers.
type Source interface {
	Len() int
	At(i int) (Record, error)
}

// FromMap builds a Record from a decoded JSON object, tolerating numeric or
// string TransactionID values. Used by the single-prediction HTTP endpoint.
func FromMap(m map[string]any) Record {
	rec := Record{Fields: make(map[string]string, len(m))}
	for k, v := range m {
		s := stringify(v)
		rec.Fields[k] = s
		switch k {
		case "TransactionID":
			rec.TransactionID = s
		case "TransactionAmt":
			if f, ok := toFloat(v); ok {
				rec.Amount = f
			}
		}
	}
	return rec
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
