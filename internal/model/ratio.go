package model

import (
	"encoding/json"
	"math"
	"strconv"
)

// Ratio is a float that may be +Inf (wins without losses). JSON has no
// infinity, so it is encoded as the string "Infinity".
type Ratio float64

// Inf is the ratio reported for wins without losses.
var Inf = Ratio(math.Inf(1))

func (r Ratio) IsInf() bool { return math.IsInf(float64(r), 1) }

func (r Ratio) MarshalJSON() ([]byte, error) {
	f := float64(r)
	switch {
	case math.IsInf(f, 1):
		return []byte(`"Infinity"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-Infinity"`), nil
	case math.IsNaN(f):
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

func (r *Ratio) UnmarshalJSON(b []byte) error {
	switch string(b) {
	case `"Infinity"`:
		*r = Inf
		return nil
	case `"-Infinity"`:
		*r = Ratio(math.Inf(-1))
		return nil
	case "null":
		*r = 0
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*r = Ratio(f)
	return nil
}

// RatioOf returns win/loss with the aggregate edge rules: +Inf when there
// are wins but no losses, 0 when there are neither.
func RatioOf(avgWin, avgLoss float64, wins, losses int) Ratio {
	switch {
	case losses > 0 && avgLoss != 0:
		return Ratio(avgWin / avgLoss)
	case wins > 0:
		return Inf
	}
	return 0
}
