package portfolio

import (
	"net/url"
	"strconv"

	"signal-engine/internal/model"
)

// Filters constrain which trade rows are aggregated or simulated. A zero
// field means no constraint. MinMarketCap is given in billions and compared
// against the stored dollar value, so a stored 0 fails any set minimum.
type Filters struct {
	MinWinRate   float64 `json:"minWinrate,omitempty"`
	MaxWinRate   float64 `json:"maxWinrate,omitempty"`
	MinRR        float64 `json:"minRR,omitempty"`
	MaxRR        float64 `json:"maxRR,omitempty"`
	MinAvgReturn float64 `json:"minAvgReturn,omitempty"`
	MaxAvgReturn float64 `json:"maxAvgReturn,omitempty"`
	MinMarketCap float64 `json:"minMarketCap,omitempty"`
}

// Pass reports whether a row satisfies every set constraint.
func (f Filters) Pass(r model.ModeTrade) bool {
	rr := float64(r.RiskReward)
	switch {
	case f.MinWinRate != 0 && r.WinRate < f.MinWinRate:
		return false
	case f.MaxWinRate != 0 && r.WinRate > f.MaxWinRate:
		return false
	case f.MinRR != 0 && rr < f.MinRR:
		return false
	case f.MaxRR != 0 && rr > f.MaxRR:
		return false
	case f.MinAvgReturn != 0 && r.AvgReturn < f.MinAvgReturn:
		return false
	case f.MaxAvgReturn != 0 && r.AvgReturn > f.MaxAvgReturn:
		return false
	case f.MinMarketCap != 0 && r.MarketCap < f.MinMarketCap*1e9:
		return false
	}
	return true
}

// ParseFilters reads filters from query parameters (min_winrate, max_winrate,
// min_rr, max_rr, min_avg_return, max_avg_return, min_market_cap).
// Missing or unparsable values leave the constraint unset.
func ParseFilters(q url.Values) Filters {
	get := func(key string) float64 {
		v, err := strconv.ParseFloat(q.Get(key), 64)
		if err != nil {
			return 0
		}
		return v
	}
	return Filters{
		MinWinRate:   get("min_winrate"),
		MaxWinRate:   get("max_winrate"),
		MinRR:        get("min_rr"),
		MaxRR:        get("max_rr"),
		MinAvgReturn: get("min_avg_return"),
		MaxAvgReturn: get("max_avg_return"),
		MinMarketCap: get("min_market_cap"),
	}
}
