package api

import (
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/gorilla/mux"
	engine "github.com/rxtech-lab/moth-trading/internal/backtest/engine/engine_v1"
	"github.com/rxtech-lab/moth-trading/internal/backtest/engine/engine_v1/commission_fee"
	"github.com/rxtech-lab/moth-trading/internal/indicator"
	"github.com/rxtech-lab/moth-trading/internal/types"
	"github.com/rxtech-lab/moth-trading/internal/version"
	"github.com/rxtech-lab/moth-trading/pkg/errors"
	"go.uber.org/zap"
)

type backtestRequest struct {
	Bars           []types.Bar           `json:"bars"`
	InitialBalance *float64              `json:"initial_balance"`
	FeeRate        *float64              `json:"fee_rate"`
	Broker         commission_fee.Broker `json:"broker"`
	// Strategy is decoded over the default strategy, so omitted fields keep
	// their defaults.
	Strategy json.RawMessage `json:"strategy"`
}

// reportPayload replaces the profit factor with null when it is infinite,
// since JSON has no infinity.
type reportPayload struct {
	types.Report
	ProfitFactor         *float64 `json:"profit_factor"`
	ProfitFactorInfinite bool     `json:"profit_factor_infinite"`
}

type backtestResponse struct {
	Report      reportPayload       `json:"report"`
	Trades      []types.ClosedTrade `json:"trades"`
	EquityCurve []float64           `json:"equity_curve"`
}

type indicatorsRequest struct {
	Bars       []types.Bar     `json:"bars"`
	Indicators json.RawMessage `json:"indicators"`
}

type indicatorsResponse struct {
	Rows    []types.IndicatorRow    `json:"rows"`
	Summary indicator.MarketSummary `json:"summary"`
}

type openPositionRequest struct {
	Symbol   string     `json:"symbol"`
	Exchange string     `json:"exchange"`
	Price    float64    `json:"price"`
	Size     float64    `json:"size"`
	Side     types.Side `json:"side"`
	// Risk sizes the position from the free balance when Size is zero
	Risk float64 `json:"risk"`
}

type closePositionRequest struct {
	Price float64 `json:"price"`
}

type errorResponse struct {
	Error string           `json:"error"`
	Code  errors.ErrorCode `json:"code"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version.GetVersion()})
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	var request backtestRequest
	if err := decodeBody(r, &request); err != nil {
		s.writeError(w, err)

		return
	}

	config := engine.EmptyConfig()
	if request.InitialBalance != nil {
		config.InitialBalance = *request.InitialBalance
	}

	if request.FeeRate != nil {
		config.FeeRate = *request.FeeRate
	}

	if request.Broker != "" {
		config.Broker = request.Broker
	}

	strategy := engine.DefaultStrategyConfig()
	if len(request.Strategy) > 0 {
		if err := json.Unmarshal(request.Strategy, &strategy); err != nil {
			s.writeError(w, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse strategy", err))

			return
		}
	}

	simulator, err := engine.NewSimulator(config, strategy, engine.WithLogger(s.log))
	if err != nil {
		s.writeError(w, err)

		return
	}

	result := simulator.Run(request.Bars)

	s.writeJSON(w, http.StatusOK, backtestResponse{
		Report:      newReportPayload(result.Report),
		Trades:      result.Trades,
		EquityCurve: result.EquityCurve,
	})
}

func (s *Server) handleIndicators(w http.ResponseWriter, r *http.Request) {
	var request indicatorsRequest
	if err := decodeBody(r, &request); err != nil {
		s.writeError(w, err)

		return
	}

	settings := indicator.DefaultSettings()
	if len(request.Indicators) > 0 {
		if err := json.Unmarshal(request.Indicators, &settings); err != nil {
			s.writeError(w, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse indicator settings", err))

			return
		}
	}

	pipeline, err := indicator.NewPipelineFromSettings(settings, s.log)
	if err != nil {
		s.writeError(w, err)

		return
	}

	rows := pipeline.Calculate(request.Bars)

	s.writeJSON(w, http.StatusOK, indicatorsResponse{
		Rows:    rows,
		Summary: indicator.Summarize(rows),
	})
}

func (s *Server) handleOpportunities(w http.ResponseWriter, r *http.Request) {
	exchanges, err := exchangesParam(r)
	if err != nil {
		s.writeError(w, err)

		return
	}

	opportunities, err := s.detector.FindOpportunities(r.Context(), mux.Vars(r)["symbol"], exchanges)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, opportunities)
}

func (s *Server) handleExecutionPath(w http.ResponseWriter, r *http.Request) {
	exchanges, err := exchangesParam(r)
	if err != nil {
		s.writeError(w, err)

		return
	}

	amount, err := strconv.ParseFloat(r.URL.Query().Get("amount"), 64)
	if err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidParameter, "amount must be a number", err))

		return
	}

	path, err := s.detector.BestExecutionPath(r.Context(), mux.Vars(r)["symbol"], exchanges, amount)
	if err != nil {
		s.writeError(w, err)

		return
	}

	if path.IsNone() {
		w.WriteHeader(http.StatusNoContent)

		return
	}

	s.writeJSON(w, http.StatusOK, path.Unwrap())
}

func (s *Server) handleListPositions(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.trader.OpenPositions())
}

func (s *Server) handleOpenPosition(w http.ResponseWriter, r *http.Request) {
	var request openPositionRequest
	if err := decodeBody(r, &request); err != nil {
		s.writeError(w, err)

		return
	}

	size := request.Size
	if size == 0 && request.Risk > 0 {
		var err error

		size, err = s.trader.MaxPositionSize(request.Price, request.Risk)
		if err != nil {
			s.writeError(w, err)

			return
		}
	}

	trade, err := s.trader.Open(request.Symbol, request.Exchange, request.Price, size, request.Side)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusCreated, trade)
}

func (s *Server) handleClosePosition(w http.ResponseWriter, r *http.Request) {
	var request closePositionRequest
	if err := decodeBody(r, &request); err != nil {
		s.writeError(w, err)

		return
	}

	trade, err := s.trader.Close(mux.Vars(r)["symbol"], request.Price)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, trade)
}

func (s *Server) handleClosedTrades(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.trader.ClosedTrades())
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.trader.Metrics())
}

func newReportPayload(report types.Report) reportPayload {
	payload := reportPayload{Report: report}

	if math.IsInf(report.ProfitFactor, 1) {
		payload.ProfitFactorInfinite = true
	} else {
		value := report.ProfitFactor
		payload.ProfitFactor = &value
	}

	return payload
}

func exchangesParam(r *http.Request) ([]string, error) {
	raw := r.URL.Query().Get("exchanges")
	if raw == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "exchanges query parameter is required")
	}

	exchanges := make([]string, 0)

	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			exchanges = append(exchanges, name)
		}
	}

	return exchanges, nil
}

func decodeBody(r *http.Request, target any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "failed to read request body", err)
	}

	if len(body) > maxBodyBytes {
		return errors.Newf(errors.ErrCodeInvalidParameter, "request body exceeds %d bytes", maxBodyBytes)
	}

	if err := json.Unmarshal(body, target); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "malformed JSON body", err)
	}

	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		s.log.Error("Failed to encode response", zap.Error(err))
		http.Error(w, "failed to encode response", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	status := statusOf(code)

	if status >= http.StatusInternalServerError {
		s.log.Error("Request failed", zap.Error(err))
	}

	s.writeJSON(w, status, errorResponse{Error: err.Error(), Code: code})
}

func statusOf(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeInvalidParameter,
		errors.ErrCodeInvalidConfiguration,
		errors.ErrCodeInvalidType,
		errors.ErrCodeInvalidPeriod,
		errors.ErrCodeMissingParameter,
		errors.ErrCodeInvalidMultiplier,
		errors.ErrCodeInvalidSide,
		errors.ErrCodeInvalidPositionSize,
		errors.ErrCodeBacktestConfigError:
		return http.StatusBadRequest
	case errors.ErrCodePositionNotFound:
		return http.StatusNotFound
	case errors.ErrCodePositionExists:
		return http.StatusConflict
	case errors.ErrCodeInsufficientBalance, errors.ErrCodeInsufficientLiquidity:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeDataSourceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
