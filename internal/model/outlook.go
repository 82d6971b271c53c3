package model

// Snapshot holds the latest technical readings the outlook scores.
type Snapshot struct {
	CurrentPrice float64 `json:"current_price"`
	MA200        float64 `json:"ma200"`
	MA20w        float64 `json:"ma20w"`
	MA50w        float64 `json:"ma50w"`
	WeeklyRSI    float64 `json:"weekly_rsi"`
	DailyRSI     float64 `json:"daily_rsi"`
	High52w      float64 `json:"high_52w"`
	Low52w       float64 `json:"low_52w"`
	High30d      float64 `json:"high_30d"`
	Low30d       float64 `json:"low_30d"`
	Position52w  float64 `json:"position_52w"` // 0.0 ~ 1.0
}

// FactorScore represents a single factor's scoring result.
type FactorScore struct {
	Name       string  `json:"name"`
	RawScore   float64 `json:"raw_score"`
	Weight     float64 `json:"weight"`
	Weighted   float64 `json:"weighted"`
	Commentary string  `json:"commentary"`
}

// Stance maps a total score range to a label.
type Stance struct {
	Label    string  `json:"label"`
	MinScore float64 `json:"min_score"`
}

// Outlook is the technical-analysis reading of a series. It is reported next to
// model forecasts and never blended into them.
type Outlook struct {
	Symbol     string        `json:"symbol"`
	Snapshot   Snapshot      `json:"snapshot"`
	Factors    []FactorScore `json:"factors"`
	TotalScore float64       `json:"total_score"`
	Stance     Stance        `json:"stance"`
	Warning    string        `json:"warning,omitempty"`
}
