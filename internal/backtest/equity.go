package backtest

import "signal-engine/internal/model"

// EquityCurve samples portfolio value from start to end. Closed profit is
// realised at the exit; an open position contributes its profit pro-rated
// linearly over its holding period. The step is one day, widened so the
// walk stays within maxEquityPoints. The first point is the required
// capital; the last lies exactly on end, where every position is realised,
// and carries the end capital.
func EquityCurve(positions []SimTrade, eigen, endValue float64, start, end int64) []model.EquityPoint {
	step := int64(secondsPerDay)
	if spanSteps := (end - start + maxEquityPoints - 1) / maxEquityPoints; spanSteps > step {
		step = spanSteps
	}

	points := make([]model.EquityPoint, 0, (end-start)/step+2)
	points = append(points, model.EquityPoint{Time: start, Value: eigen})
	for ts := start + step; ts < end; ts += step {
		points = append(points, model.EquityPoint{Time: ts, Value: valueAt(positions, eigen, ts)})
	}
	points = append(points, model.EquityPoint{Time: end, Value: endValue})
	return points
}

func valueAt(positions []SimTrade, eigen float64, ts int64) float64 {
	v := eigen
	for _, p := range positions {
		switch {
		case p.exit <= ts:
			v += p.Profit
		case p.EntryDate < ts:
			v += p.Profit * float64(ts-p.EntryDate) / float64(p.exit-p.EntryDate)
		}
	}
	return v
}
