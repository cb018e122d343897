package model

import "strings"

// Mode names one strategy variant. Each mode produces one trade stream per symbol.
type Mode string

const (
	ModeDefensive  Mode = "defensive"
	ModeAggressive Mode = "aggressive"
	ModeQuant      Mode = "quant"
	ModeDitz       Mode = "ditz"
	ModeTrader     Mode = "trader"
	ModeMomentum   Mode = "momentum"
)

// AllModes lists every known mode in display order.
var AllModes = []Mode{
	ModeDefensive, ModeAggressive, ModeQuant, ModeDitz, ModeTrader, ModeMomentum,
}

// ParseMode normalises s and reports whether it names a known mode.
func ParseMode(s string) (Mode, bool) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllModes {
		if m == known {
			return m, true
		}
	}
	return "", false
}
