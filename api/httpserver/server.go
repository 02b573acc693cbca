// Package httpserver adapts the JSON/HTTP control surface to the
// engine. Prices cross this boundary as decimal dollars and are
// converted to integer cents; the engine never sees a floating-point
// price.
package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"clob/domain/book"
	"clob/service"
)

const (
	maxQuantity    = 1_000_000
	maxPriceCents  = 100_000_000 // $1,000,000.00
	maxRequestBody = 1 << 16
)

var (
	centsFactor   = decimal.NewFromInt(100)
	maxPriceBound = decimal.NewFromInt(maxPriceCents)
)

type Server struct {
	svc *service.OrderService
	log *zap.Logger
	ws  http.Handler
}

// New builds the HTTP surface. ws may be nil when the trade feed is
// disabled.
func New(svc *service.OrderService, logger *zap.Logger, ws http.Handler) *Server {
	return &Server{svc: svc, log: logger, ws: ws}
}

// Handler returns the routed handler with CORS and request logging
// applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /order", s.handlePlaceOrder)
	mux.HandleFunc("DELETE /order", s.handleCancelOrder)
	mux.HandleFunc("GET /orderbook", s.handleOrderBook)
	mux.HandleFunc("GET /stats", s.handleStats)
	if s.ws != nil {
		mux.Handle("GET /ws", s.ws)
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Not Found"})
	})
	return s.withCORS(s.withLogging(mux))
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.log.Debug("request", zap.String("method", r.Method), zap.String("path", r.URL.Path))
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

// centsToDollars renders an engine price for the JSON surface. The zero
// sentinel stays 0.
func centsToDollars(cents uint64) float64 {
	if cents == 0 {
		return 0
	}
	return decimal.New(int64(cents), -2).InexactFloat64()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type placeOrderRequest struct {
	Price    *json.Number `json:"price"`
	Quantity *json.Number `json:"quantity"`
	Side     *string      `json:"side"`
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.UseNumber()

	var req placeOrderRequest
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Price == nil || req.Quantity == nil || req.Side == nil {
		writeError(w, http.StatusBadRequest, "missing required fields: price, quantity, side")
		return
	}

	price, ok := parsePriceCents(w, *req.Price)
	if !ok {
		return
	}
	qty, ok := parseQuantity(w, *req.Quantity)
	if !ok {
		return
	}
	side, err := book.ParseSide(*req.Side)
	if err != nil {
		writeError(w, http.StatusBadRequest, "side must be 'BUY' or 'SELL'")
		return
	}

	id, trades, err := s.svc.Submit(price, qty, side)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out := make([]map[string]any, 0, len(trades))
	for _, tr := range trades {
		out = append(out, map[string]any{
			"buyer_id":  tr.BuyerID,
			"seller_id": tr.SellerID,
			"price":     centsToDollars(tr.Price),
			"quantity":  tr.Quantity,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "success",
		"order_id":    id,
		"order_count": s.svc.Stats().OrderCount,
		"trades":      out,
	})
}

// parsePriceCents converts a decimal dollar amount to integer cents,
// rounding to the nearest cent. Writes the 400 itself on failure.
func parsePriceCents(w http.ResponseWriter, num json.Number) (uint64, bool) {
	d, err := decimal.NewFromString(num.String())
	if err != nil {
		writeError(w, http.StatusBadRequest, "price must be a number")
		return 0, false
	}
	cents := d.Mul(centsFactor).Round(0)
	if cents.Sign() <= 0 {
		writeError(w, http.StatusBadRequest, "price must be positive")
		return 0, false
	}
	if cents.GreaterThan(maxPriceBound) {
		writeError(w, http.StatusBadRequest, "price too large (max: $1,000,000)")
		return 0, false
	}
	return uint64(cents.IntPart()), true
}

func parseQuantity(w http.ResponseWriter, num json.Number) (uint32, bool) {
	q, err := num.Int64()
	if err != nil || q <= 0 {
		writeError(w, http.StatusBadRequest, "quantity must be a positive integer")
		return 0, false
	}
	if q > maxQuantity {
		writeError(w, http.StatusBadRequest, "quantity too large (max: 1,000,000)")
		return 0, false
	}
	return uint32(q), true
}

type cancelOrderRequest struct {
	OrderID *uint64 `json:"order_id"`
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelOrderRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil || req.OrderID == nil {
		writeError(w, http.StatusBadRequest, "missing order_id")
		return
	}

	if !s.svc.Cancel(*req.OrderID) {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error":    "Order not found",
			"order_id": *req.OrderID,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "cancelled",
		"order_id": *req.OrderID,
	})
}

func (s *Server) handleOrderBook(w http.ResponseWriter, r *http.Request) {
	st := s.svc.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"best_bid":    centsToDollars(st.BestBid),
		"best_ask":    centsToDollars(st.BestAsk),
		"spread":      centsToDollars(st.Spread),
		"order_count": st.OrderCount,
		"bid_levels":  st.BidLevels,
		"ask_levels":  st.AskLevels,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st := s.svc.Stats()

	var mid any
	if st.BestBid > 0 && st.BestAsk > 0 {
		mid = decimal.New(int64(st.BestBid+st.BestAsk), -2).
			Div(decimal.NewFromInt(2)).InexactFloat64()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_orders": st.OrderCount,
		"bid_levels":   st.BidLevels,
		"ask_levels":   st.AskLevels,
		"best_bid":     centsToDollars(st.BestBid),
		"best_ask":     centsToDollars(st.BestAsk),
		"spread":       centsToDollars(st.Spread),
		"mid_price":    mid,
	})
}
