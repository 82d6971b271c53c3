// Package outlook scores a technical snapshot of a series. The result is reported next to
// model forecasts and is never combined with them.
package outlook

import "StockCast/internal/model"

// Stances from most oversold to most overbought.
var Stances = []model.Stance{
	{Label: "Strongly oversold", MinScore: 1.5},
	{Label: "Oversold", MinScore: 1.2},
	{Label: "Mildly oversold", MinScore: 0.8},
	{Label: "Neutral", MinScore: 0.0},
	{Label: "Mildly overbought", MinScore: -0.8},
	{Label: "Overbought", MinScore: -1.5},
}

// FloorStance applies to scores below every entry in Stances.
var FloorStance = model.Stance{Label: "Strongly overbought", MinScore: -2}

func stanceFor(total float64) model.Stance {
	for _, s := range Stances {
		if total >= s.MinScore {
			return s
		}
	}
	return FloorStance
}

// Evaluate scores snap for symbol.
func Evaluate(symbol string, snap *model.Snapshot) *model.Outlook {
	f1 := scoreMA200Deviation(snap)
	f2 := scoreRSI(FactorWeeklyRSI, snap.WeeklyRSI, weightWeeklyRSI)
	f3 := scoreRSI(FactorDailyRSI, snap.DailyRSI, weightDailyRSI)
	f5 := scoreTrendAlignment(snap)

	// the position factor depends on how stretched everything else already is
	others := (f1.RawScore + f2.RawScore + f3.RawScore + f5.RawScore) / 4.0
	f4 := score52WeekPosition(snap, others)

	factors := []model.FactorScore{f1, f2, f3, f4, f5}
	total := 0.0
	for _, f := range factors {
		total += f.Weighted
	}

	out := &model.Outlook{
		Symbol:     symbol,
		Snapshot:   *snap,
		Factors:    factors,
		TotalScore: total,
		Stance:     stanceFor(total),
	}
	if snap.WeeklyRSI > 85 || snap.DailyRSI > 85 {
		out.Warning = "RSI above 85: momentum is stretched"
	}
	return out
}
