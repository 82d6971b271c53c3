package dashboard

import (
	"bytes"
	"context"
	"math"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"StockCast/internal/forecast"
	"StockCast/internal/logger"
	"StockCast/internal/outlook"
	"StockCast/internal/pipeline"
	"StockCast/internal/recorder"
	"StockCast/internal/render"
)

const dateLayout = "2006-01-02"

// Runner is the pipeline as the dashboard uses it.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
	Prepare(ctx context.Context, symbol string, from, to time.Time) (*pipeline.Result, error)
}

// HandlerConfig holds what the index page offers.
type HandlerConfig struct {
	Assets       []string
	DefaultModel string
	DefaultDays  int
}

// Handler serves pages, charts and the JSON API. Every chart or API request performs one run.
type Handler struct {
	runner   Runner
	renderer *render.Renderer
	recorder recorder.Recorder
	cfg      HandlerConfig
	log      *logger.Logger
}

func NewHandler(runner Runner, renderer *render.Renderer, rec recorder.Recorder, cfg HandlerConfig, log *logger.Logger) *Handler {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	if log == nil {
		log = logger.Nop()
	}
	if cfg.DefaultDays == 0 {
		cfg.DefaultDays = 30
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = string(forecast.VariantLinear)
	}
	return &Handler{runner: runner, renderer: renderer, recorder: rec, cfg: cfg, log: log}
}

// RegisterRoutes mounts every dashboard route on e.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Index)
	e.GET("/healthz", h.Health)

	charts := e.Group("/chart")
	charts.GET("/history", h.HistoryChart)
	charts.GET("/forecast", h.ForecastChart)
	charts.GET("/indicators", h.IndicatorsChart)

	api := e.Group("/api")
	api.GET("/assets", h.Assets)
	api.GET("/history", h.History)
	api.GET("/forecast", h.Forecast)
	api.GET("/outlook", h.Outlook)
	api.GET("/runs", h.Runs)
}

// SeriesRequest selects a symbol and an optional date range.
type SeriesRequest struct {
	Symbol string `query:"symbol" validate:"required,max=32"`
	From   string `query:"from" validate:"omitempty,datetime=2006-01-02"`
	To     string `query:"to" validate:"omitempty,datetime=2006-01-02"`
}

func (r SeriesRequest) Range() (from, to time.Time) {
	// Both are validated already.
	if r.From != "" {
		from, _ = time.Parse(dateLayout, r.From)
	}
	if r.To != "" {
		to, _ = time.Parse(dateLayout, r.To)
	}
	return from, to
}

// ForecastRequest adds the model and horizon to a SeriesRequest.
type ForecastRequest struct {
	SeriesRequest
	Model string `query:"model" validate:"omitempty,oneof=linear arima random_forest gradient_boosting mlp"`
	Days  int    `query:"days" default:"30" validate:"gte=7,lte=90"`
}

func (r ForecastRequest) Pipeline() pipeline.Request {
	from, to := r.Range()
	return pipeline.Request{
		Symbol:  r.Symbol,
		From:    from,
		To:      to,
		Variant: forecast.Variant(r.Model),
		Days:    r.Days,
	}
}

// RunsRequest pages through recorded runs.
type RunsRequest struct {
	Symbol string `query:"symbol" validate:"max=32"`
	Limit  int    `query:"limit" default:"20" validate:"gte=1,lte=200"`
}

func (h *Handler) Health(c echo.Context) error {
	return SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *Handler) Assets(c echo.Context) error {
	return SuccessResponse(c, map[string]interface{}{
		"assets":        h.cfg.Assets,
		"models":        forecast.Variants(),
		"default_model": h.cfg.DefaultModel,
		"default_days":  h.cfg.DefaultDays,
		"days_min":      7,
		"days_max":      90,
	})
}

// finite maps NaN and infinities to JSON null.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func finiteSlice(values []float64) []*float64 {
	out := make([]*float64, len(values))
	for i, v := range values {
		out[i] = finite(v)
	}
	return out
}

func finiteMap(m map[string]float64) map[string]*float64 {
	out := make(map[string]*float64, len(m))
	for k, v := range m {
		out[k] = finite(v)
	}
	return out
}

func (h *Handler) History(c echo.Context) error {
	var req SeriesRequest
	if errs := ReadAndValidateRequest(c, &req); errs != nil {
		return BadRequestResponse(c, errs)
	}
	from, to := req.Range()
	res, err := h.runner.Prepare(c.Request().Context(), req.Symbol, from, to)
	if err != nil {
		return RunErrorResponse(c, err)
	}

	indicators := make(map[string][]*float64)
	for _, name := range res.Indicators.Names() {
		values, _ := res.Indicators.Get(name)
		indicators[name] = finiteSlice(values)
	}
	return SuccessResponse(c, map[string]interface{}{
		"symbol":     res.Series.Symbol(),
		"source":     res.Source,
		"bars":       res.Series.Bars(),
		"indicators": indicators,
	})
}

func (h *Handler) Forecast(c echo.Context) error {
	var req ForecastRequest
	if errs := ReadAndValidateRequest(c, &req); errs != nil {
		return BadRequestResponse(c, errs)
	}
	res, err := h.runner.Run(c.Request().Context(), req.Pipeline())
	if err != nil {
		return RunErrorResponse(c, err)
	}

	diag := res.Trained.Diagnostics
	return SuccessResponse(c, map[string]interface{}{
		"symbol":   res.Series.Symbol(),
		"source":   res.Source,
		"forecast": res.Forecast,
		"evaluation": map[string]interface{}{
			"model":      res.Evaluation.Model,
			"metrics":    finiteMap(res.Evaluation.Metrics),
			"train_rows": res.Evaluation.TrainRows,
			"test_rows":  res.Evaluation.TestRows,
		},
		"diagnostics": map[string]interface{}{
			"converged":  diag.Converged,
			"iterations": diag.Iterations,
			"final_loss": finite(diag.FinalLoss()),
		},
		"dropped_rows": res.Dataset.Dropped,
		"outlook":      res.Outlook,
	})
}

func (h *Handler) Outlook(c echo.Context) error {
	var req SeriesRequest
	if errs := ReadAndValidateRequest(c, &req); errs != nil {
		return BadRequestResponse(c, errs)
	}
	from, to := req.Range()
	res, err := h.runner.Prepare(c.Request().Context(), req.Symbol, from, to)
	if err != nil {
		return RunErrorResponse(c, err)
	}
	return SuccessResponse(c, outlook.Analyze(res.Series, h.log))
}

func (h *Handler) Runs(c echo.Context) error {
	var req RunsRequest
	if errs := ReadAndValidateRequest(c, &req); errs != nil {
		return BadRequestResponse(c, errs)
	}
	runs, err := h.recorder.RecentRuns(c.Request().Context(), req.Symbol, req.Limit)
	if err != nil {
		h.log.Error("list runs", logger.Error(err))
		return DataResponse(c, http.StatusInternalServerError, []ValidationError{{Code: "ERR_INTERNAL", Message: err.Error()}})
	}
	if runs == nil {
		runs = []recorder.RunRecord{}
	}
	return SuccessResponse(c, runs)
}

// chart renders c into a buffer first so a failed render never leaves a half-written page.
func (h *Handler) chart(c echo.Context, what string, build func() (render.Chart, error)) error {
	ch, err := build()
	if err != nil {
		return h.errorCard(c, err)
	}
	var buf bytes.Buffer
	if err := render.Write(&buf, what, ch); err != nil {
		return h.errorCard(c, err)
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

func (h *Handler) HistoryChart(c echo.Context) error {
	var req SeriesRequest
	if errs := ReadAndValidateRequest(c, &req); errs != nil {
		return h.badRequestCard(c, errs)
	}
	from, to := req.Range()
	return h.chart(c, "history", func() (render.Chart, error) {
		res, err := h.runner.Prepare(c.Request().Context(), req.Symbol, from, to)
		if err != nil {
			return nil, err
		}
		return h.renderer.History(res.Series, res.Indicators)
	})
}

func (h *Handler) ForecastChart(c echo.Context) error {
	var req ForecastRequest
	if errs := ReadAndValidateRequest(c, &req); errs != nil {
		return h.badRequestCard(c, errs)
	}
	return h.chart(c, "forecast", func() (render.Chart, error) {
		res, err := h.runner.Run(c.Request().Context(), req.Pipeline())
		if err != nil {
			return nil, err
		}
		return h.renderer.Forecast(res.Series, res.Forecast)
	})
}

func (h *Handler) IndicatorsChart(c echo.Context) error {
	var req SeriesRequest
	if errs := ReadAndValidateRequest(c, &req); errs != nil {
		return h.badRequestCard(c, errs)
	}
	from, to := req.Range()
	return h.chart(c, "indicators", func() (render.Chart, error) {
		res, err := h.runner.Prepare(c.Request().Context(), req.Symbol, from, to)
		if err != nil {
			return nil, err
		}
		return h.renderer.Indicators(res.Series, res.Indicators)
	})
}

func (h *Handler) errorCard(c echo.Context, err error) error {
	status := StatusFor(err)
	if status >= 500 {
		h.log.Error("chart failed", logger.String("path", c.Path()), logger.Error(err))
	}
	return h.card(c, status, errorCode(err), []string{err.Error()})
}

func (h *Handler) badRequestCard(c echo.Context, errs []ValidationError) error {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Message
	}
	return h.card(c, http.StatusBadRequest, "ERR_BAD_REQUEST", msgs)
}

func (h *Handler) card(c echo.Context, status int, code string, msgs []string) error {
	var buf bytes.Buffer
	if err := errorCardTmpl.Execute(&buf, map[string]interface{}{
		"Status": status, "Title": http.StatusText(status), "Code": code, "Messages": msgs,
	}); err != nil {
		return err
	}
	return c.HTMLBlob(status, buf.Bytes())
}

// Index serves the dashboard page.
func (h *Handler) Index(c echo.Context) error {
	var buf bytes.Buffer
	err := indexTmpl.Execute(&buf, map[string]interface{}{
		"Assets":       h.cfg.Assets,
		"Models":       forecast.Variants(),
		"DefaultModel": h.cfg.DefaultModel,
		"DefaultDays":  h.cfg.DefaultDays,
	})
	if err != nil {
		return err
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}
