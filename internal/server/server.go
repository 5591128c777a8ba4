// Package server exposes the signal classifier and the backtest simulator
// over HTTP.
package server

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"signal-backtester/internal/engine"
	"signal-backtester/internal/interfaces"
	"signal-backtester/internal/report"
	"signal-backtester/internal/signal"
	"signal-backtester/internal/store"
	"signal-backtester/internal/ta"
	"signal-backtester/internal/types"
)

// defaultLimit is the candle window used when source.limit is unset.
const defaultLimit = 500

type Server struct {
	source interfaces.CandleSource
	cfg    *store.Config
	log    *zap.Logger
	now    func() time.Time
}

func New(source interfaces.CandleSource, cfg *store.Config, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{source: source, cfg: cfg, log: log, now: time.Now}
}

// Router builds the gin engine with recovery and access logging.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())
	r.GET("/", s.handleHome)
	r.GET("/healthz", s.handleHealth)
	r.GET("/signal", s.handleSignal)
	r.POST("/backtest", s.handleBacktest)
	return r
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func (s *Server) handleHome(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Welcome to the Signal API! Visit /signal to get signals."})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"source":    s.source.Name(),
		"timestamp": s.now().Unix(),
	})
}

// SignalResponse is the body of GET /signal when a signal exists.
type SignalResponse struct {
	Symbol     string           `json:"symbol"`
	Timestamp  time.Time        `json:"timestamp"`
	Close      float64          `json:"close"`
	EMA        float64          `json:"ema"`
	SMA        float64          `json:"sma"`
	RSI        *float64         `json:"rsi,omitempty"`
	Signal     types.SignalCode `json:"signal"`
	SignalType string           `json:"signal_type"`
}

func (s *Server) handleSignal(c *gin.Context) {
	symbol := c.DefaultQuery("symbol", s.cfg.Symbol)
	ctx := c.Request.Context()

	candles, states, err := s.snapshot(ctx, symbol)
	if err != nil {
		s.fail(c, "signal", symbol, err)
		return
	}

	latest, ok := signal.NewClassifier(s.cfg.Signal).LatestSignal(ctx, candles, states, len(candles)-1)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"message": "No signal generated"})
		return
	}

	resp := SignalResponse{
		Symbol:     symbol,
		Timestamp:  latest.Candle.Ts,
		Close:      round5(latest.Candle.Close),
		EMA:        round5(latest.State.EMAFast),
		SMA:        round5(latest.State.SMASlow),
		Signal:     latest.Code,
		SignalType: SignalType(latest.Code),
	}
	if !math.IsNaN(latest.State.RSI) {
		v := round5(latest.State.RSI)
		resp.RSI = &v
	}
	c.JSON(http.StatusOK, resp)
}

// BacktestRequest is the optional body of POST /backtest.
type BacktestRequest struct {
	Symbol string `json:"symbol"`
}

// BacktestResponse carries the summary and the trade log of one run.
type BacktestResponse struct {
	Summary report.Summary `json:"summary"`
	Trades  []types.Trade  `json:"trades"`
}

func (s *Server) handleBacktest(c *gin.Context) {
	var req BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	symbol := req.Symbol
	if symbol == "" {
		symbol = s.cfg.Symbol
	}
	ctx := c.Request.Context()

	ec, err := s.cfg.Backtest()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ec.Symbol = symbol
	bt, err := engine.New(ec)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	candles, err := s.source.Candles(ctx, s.request(symbol))
	if err != nil {
		s.fail(c, "backtest", symbol, err)
		return
	}
	res, err := bt.Run(ctx, candles)
	if err != nil {
		s.fail(c, "backtest", symbol, err)
		return
	}

	s.log.Info("backtest finished",
		zap.String("symbol", symbol),
		zap.Int("candles", len(candles)),
		zap.Int("trades", len(res.Trades)),
		zap.String("final_balance", res.FinalBalance.String()),
	)
	c.JSON(http.StatusOK, BacktestResponse{
		Summary: report.Summarize(symbol, res),
		Trades:  res.Trades,
	})
}

func (s *Server) request(symbol string) types.CandleRequest {
	req := s.cfg.Request(symbol, s.now())
	if req.Limit == 0 {
		req.Limit = defaultLimit
	}
	return req
}

func (s *Server) snapshot(ctx context.Context, symbol string) ([]types.Candle, []types.IndicatorState, error) {
	candles, err := s.source.Candles(ctx, s.request(symbol))
	if err != nil {
		return nil, nil, err
	}
	if errs := ta.ValidateCandles(candles); len(errs) > 0 {
		return nil, nil, errors.Join(errs...)
	}
	states, err := ta.Compute(candles, s.cfg.Indicators)
	if err != nil {
		return nil, nil, err
	}
	return candles, states, nil
}

// fail maps core errors to a status: bad input data is 422, anything else 500.
func (s *Server) fail(c *gin.Context, op, symbol string, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, types.ErrInsufficientHistory) || errors.Is(err, types.ErrMalformedCandle) {
		status = http.StatusUnprocessableEntity
	}
	s.log.Error(op+" failed", zap.String("symbol", symbol), zap.Int("status", status), zap.Error(err))
	c.JSON(status, gin.H{"error": err.Error()})
}

// SignalType is the upper-case label the API reports for a code.
func SignalType(code types.SignalCode) string {
	switch code {
	case types.StrongBuy:
		return "STRONG BUY"
	case types.Buy:
		return "BUY"
	case types.Sell:
		return "SELL"
	case types.StrongSell:
		return "STRONG SELL"
	}
	return "HOLD"
}

func round5(v float64) float64 { return math.Round(v*1e5) / 1e5 }
