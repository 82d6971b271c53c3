package indicator

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies an indicator family.
type Kind string

const (
	KindSMA    Kind = "SMA"
	KindEMA    Kind = "EMA"
	KindRSI    Kind = "RSI"
	KindMACD   Kind = "MACD"
	KindBB     Kind = "BB"
	KindATR    Kind = "ATR"
	KindHigh   Kind = "HIGH"
	KindLow    Kind = "LOW"
	KindLogRet Kind = "LOGRET"
)

// Spec is one parsed indicator request such as "SMA_20" or "MACD_12_26_9".
type Spec struct {
	Name   string
	Kind   Kind
	Window int
	Slow   int     // MACD slow EMA
	Signal int     // MACD signal EMA
	K      float64 // Bollinger width in standard deviations
}

// Outputs lists the IndicatorSet columns the spec produces.
func (s Spec) Outputs() []string {
	switch s.Kind {
	case KindMACD:
		return []string{s.Name, s.Name + "_SIGNAL", s.Name + "_HIST"}
	case KindBB:
		return []string{s.Name + "_UPPER", s.Name + "_MID", s.Name + "_LOWER"}
	default:
		return []string{s.Name}
	}
}

// ParseSpec parses the indicator grammar: SMA_n, EMA_n, RSI_n, MACD[_f_s_g], BB_n[_k], ATR_n,
// HIGH_n, LOW_n and LOGRET. Names are case-insensitive and normalised to upper case.
func ParseSpec(raw string) (Spec, error) {
	name := strings.ToUpper(strings.TrimSpace(raw))
	parts := strings.Split(name, "_")
	spec := Spec{Name: name, Kind: Kind(parts[0])}
	args := parts[1:]

	switch spec.Kind {
	case KindLogRet:
		if len(args) != 0 {
			return Spec{}, fmt.Errorf("indicator %q: LOGRET takes no window", raw)
		}
		return spec, nil

	case KindMACD:
		spec.Window, spec.Slow, spec.Signal = 12, 26, 9
		if len(args) == 0 {
			return spec, nil
		}
		if len(args) != 3 {
			return Spec{}, fmt.Errorf("indicator %q: want MACD or MACD_fast_slow_signal", raw)
		}
		windows, err := parseWindows(raw, args)
		if err != nil {
			return Spec{}, err
		}
		spec.Window, spec.Slow, spec.Signal = windows[0], windows[1], windows[2]
		if spec.Window >= spec.Slow {
			return Spec{}, fmt.Errorf("indicator %q: fast window must be shorter than slow", raw)
		}
		return spec, nil

	case KindBB:
		spec.K = 2
		if len(args) < 1 || len(args) > 2 {
			return Spec{}, fmt.Errorf("indicator %q: want BB_n or BB_n_k", raw)
		}
		windows, err := parseWindows(raw, args[:1])
		if err != nil {
			return Spec{}, err
		}
		spec.Window = windows[0]
		if spec.Window < 2 {
			return Spec{}, fmt.Errorf("indicator %q: Bollinger window must be at least 2", raw)
		}
		if len(args) == 2 {
			k, err := strconv.ParseFloat(args[1], 64)
			if err != nil || k <= 0 {
				return Spec{}, fmt.Errorf("indicator %q: invalid band width %q", raw, args[1])
			}
			spec.K = k
		}
		return spec, nil

	case KindSMA, KindEMA, KindRSI, KindATR, KindHigh, KindLow:
		if len(args) != 1 {
			return Spec{}, fmt.Errorf("indicator %q: want %s_n", raw, spec.Kind)
		}
		windows, err := parseWindows(raw, args)
		if err != nil {
			return Spec{}, err
		}
		spec.Window = windows[0]
		return spec, nil
	}
	return Spec{}, fmt.Errorf("indicator %q: unknown kind %q", raw, parts[0])
}

func parseWindows(raw string, args []string) ([]int, error) {
	out := make([]int, len(args))
	for i, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("indicator %q: invalid window %q", raw, a)
		}
		if n <= 0 {
			return nil, fmt.Errorf("indicator %q: window must be positive", raw)
		}
		out[i] = n
	}
	return out, nil
}
