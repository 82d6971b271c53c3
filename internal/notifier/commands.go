package notifier

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"StockCast/internal/forecast"
	"StockCast/internal/logger"
	"StockCast/internal/outlook"
	"StockCast/internal/pipeline"
)

// Runner executes forecast runs; Prepare stops after the indicator stage.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
	Prepare(ctx context.Context, symbol string, from, to time.Time) (*pipeline.Result, error)
}

// Commands answers chat commands by running the pipeline.
type Commands struct {
	Runner Runner
	Assets []string
	Log    *logger.Logger
}

const helpText = `<b>StockCast commands</b>
/assets - list the watchlist
/forecast SYMBOL [model] [days] - run a forecast
/outlook SYMBOL - technical outlook only
/help - this message`

// Handle implements CommandHandler.
func (c *Commands) Handle(ctx context.Context, text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	// Commands may arrive as /forecast@BotName in groups.
	cmd := strings.ToLower(strings.SplitN(fields[0], "@", 2)[0])
	args := fields[1:]

	switch cmd {
	case "/start", "/help":
		return helpText
	case "/assets":
		return "Watchlist: " + strings.Join(c.Assets, ", ")
	case "/forecast":
		req, err := parseForecastArgs(args)
		if err != nil {
			return err.Error()
		}
		res, err := c.Runner.Run(ctx, req)
		if err != nil {
			return FormatFailure(req.Symbol, err)
		}
		return FormatForecast(res)
	case "/outlook":
		if len(args) != 1 {
			return "usage: /outlook SYMBOL"
		}
		symbol := strings.ToUpper(args[0])
		res, err := c.Runner.Prepare(ctx, symbol, time.Time{}, time.Time{})
		if err != nil {
			return FormatFailure(symbol, err)
		}
		return FormatOutlook(outlook.Analyze(res.Series, c.Log))
	}
	return "unknown command, try /help"
}

func parseForecastArgs(args []string) (pipeline.Request, error) {
	if len(args) == 0 || len(args) > 3 {
		return pipeline.Request{}, fmt.Errorf("usage: /forecast SYMBOL [model] [days]")
	}
	req := pipeline.Request{Symbol: strings.ToUpper(args[0])}
	for _, a := range args[1:] {
		if n, err := strconv.Atoi(a); err == nil {
			if n < 7 || n > 90 {
				return req, fmt.Errorf("days must be between 7 and 90")
			}
			req.Days = n
			continue
		}
		v, err := forecast.ParseVariant(a)
		if err != nil {
			return req, err
		}
		req.Variant = v
	}
	return req, nil
}
