package handlers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"stock-exchange/src/analytics"
	"stock-exchange/src/exchange"
	"stock-exchange/src/models"
)

type ExchangeHandler struct {
	Exchange  *exchange.Exchange
	Analyzer  *analytics.Analyzer
	StartTime time.Time
}

func NewExchangeHandler(ex *exchange.Exchange) *ExchangeHandler {
	return &ExchangeHandler{
		Exchange:  ex,
		Analyzer:  analytics.NewAnalyzer(ex),
		StartTime: time.Now(),
	}
}

// SubmitOrder accepts a new order and enqueues it for matching. Submission
// is fire-and-forget, so success is 202 Accepted, not a fill report.
func (h *ExchangeHandler) SubmitOrder(c *fiber.Ctx) error {
	var req models.SubmitOrderRequest

	if err := c.BodyParser(&req); err != nil {
		log.Warn().
			Err(err).
			Str("ip", c.IP()).
			Str("path", c.Path()).
			Msg("Invalid request: malformed JSON")
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid request: malformed JSON",
		})
	}

	if err := validateSubmitOrderRequest(&req); err != nil {
		log.Warn().
			Err(err).
			Str("symbol", req.Symbol).
			Str("side", req.Side).
			Str("trader_id", req.TraderID).
			Str("ip", c.IP()).
			Msg("Invalid order request")
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: err.Error(),
		})
	}

	order := exchange.NewOrder(req.Symbol, exchange.Side(req.Side), req.Price, req.Quantity, req.TraderID)

	if err := h.Exchange.SubmitOrder(order); err != nil {
		return h.engineError(c, err, order.ID)
	}

	log.Info().
		Str("order_id", order.ID).
		Str("symbol", req.Symbol).
		Str("side", req.Side).
		Int64("price", req.Price).
		Int64("quantity", req.Quantity).
		Str("trader_id", req.TraderID).
		Msg("Order queued")

	return c.Status(fiber.StatusAccepted).JSON(models.SubmitOrderResponse{
		OrderID: order.ID,
		Status:  "QUEUED",
	})
}

func (h *ExchangeHandler) CancelOrder(c *fiber.Ctx) error {
	orderID := c.Params("id")

	if err := h.Exchange.CancelOrder(orderID); err != nil {
		return h.engineError(c, err, orderID)
	}

	log.Info().
		Str("order_id", orderID).
		Str("ip", c.IP()).
		Msg("Cancel queued")

	return c.Status(fiber.StatusAccepted).JSON(models.OrderActionResponse{
		OrderID: orderID,
		Status:  "CANCEL_QUEUED",
	})
}

func (h *ExchangeHandler) ModifyOrder(c *fiber.Ctx) error {
	orderID := c.Params("id")

	var req models.ModifyOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid request: malformed JSON",
		})
	}
	if req.NewPrice <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid modify: new_price must be positive",
		})
	}

	if err := h.Exchange.ModifyOrder(orderID, req.NewPrice); err != nil {
		return h.engineError(c, err, orderID)
	}

	log.Info().
		Str("order_id", orderID).
		Int64("new_price", req.NewPrice).
		Msg("Modify queued")

	return c.Status(fiber.StatusAccepted).JSON(models.OrderActionResponse{
		OrderID: orderID,
		Status:  "MODIFY_QUEUED",
	})
}

func (h *ExchangeHandler) GetOrder(c *fiber.Ctx) error {
	orderID := c.Params("id")

	view, err := h.Exchange.Order(orderID)
	if err != nil {
		return h.engineError(c, err, orderID)
	}

	return c.Status(fiber.StatusOK).JSON(models.OrderResponse{
		OrderID:   view.ID,
		TraderID:  view.TraderID,
		Symbol:    view.Symbol,
		Side:      string(view.Side),
		Price:     view.Price,
		Quantity:  view.Quantity,
		CreatedAt: view.CreatedAt,
	})
}

func (h *ExchangeHandler) GetOrderBook(c *fiber.Ctx) error {
	symbol := c.Params("symbol")

	depth, err := strconv.Atoi(c.Query("depth", "10"))
	if err != nil || depth <= 0 {
		depth = 10
	}
	if depth > 1000 {
		depth = 1000
	}

	snapshot, err := h.Exchange.BookSnapshot(symbol, depth)
	if err != nil {
		return h.engineError(c, err, symbol)
	}

	bids := make([]models.PriceLevelInfo, 0, len(snapshot.Bids))
	for _, level := range snapshot.Bids {
		bids = append(bids, models.PriceLevelInfo{Price: level.Price, Quantity: level.Quantity, Orders: level.Orders})
	}
	asks := make([]models.PriceLevelInfo, 0, len(snapshot.Asks))
	for _, level := range snapshot.Asks {
		asks = append(asks, models.PriceLevelInfo{Price: level.Price, Quantity: level.Quantity, Orders: level.Orders})
	}

	return c.Status(fiber.StatusOK).JSON(models.OrderBookResponse{
		Symbol:    snapshot.Symbol,
		Timestamp: snapshot.Timestamp,
		Bids:      bids,
		Asks:      asks,
	})
}

func (h *ExchangeHandler) GetTrades(c *fiber.Ctx) error {
	history := h.Exchange.TradeHistory()

	trades := make([]models.TradeInfo, 0, len(history))
	for _, trade := range history {
		trades = append(trades, models.TradeInfo{
			TradeID:   trade.TradeID,
			Symbol:    trade.Symbol,
			Quantity:  trade.Quantity,
			Price:     trade.Price,
			BuyerID:   trade.BuyerID,
			SellerID:  trade.SellerID,
			Timestamp: trade.Timestamp,
		})
	}

	return c.Status(fiber.StatusOK).JSON(trades)
}

func (h *ExchangeHandler) GetAlerts(c *fiber.Ctx) error {
	traderID := c.Query("trader_id")
	if traderID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid request: trader_id is required",
		})
	}

	views := h.Exchange.ActiveAlerts(traderID)

	alerts := make([]models.AlertInfo, 0, len(views))
	for _, view := range views {
		alerts = append(alerts, models.AlertInfo{
			AlertID:   view.ID,
			OrderID:   view.OrderID,
			Symbol:    view.Symbol,
			SellerID:  view.SellerID,
			Price:     view.Price,
			Quantity:  view.Quantity,
			CreatedAt: view.CreatedAt,
		})
	}

	return c.Status(fiber.StatusOK).JSON(alerts)
}

// ClaimAlert resolves the claim race synchronously: the winner gets
// claimed=true, every loser a reason and a conflict-class status.
func (h *ExchangeHandler) ClaimAlert(c *fiber.Ctx) error {
	alertID := c.Params("id")

	var req models.ClaimAlertRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid request: malformed JSON",
		})
	}
	if req.BuyerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid claim: buyer_id is required",
		})
	}

	err := h.Exchange.ClaimAlert(alertID, req.BuyerID)
	if err == nil {
		log.Info().
			Str("alert_id", alertID).
			Str("buyer_id", req.BuyerID).
			Msg("Alert claim accepted")
		return c.Status(fiber.StatusOK).JSON(models.ClaimAlertResponse{
			AlertID: alertID,
			Claimed: true,
		})
	}

	status := fiber.StatusConflict
	switch {
	case errors.Is(err, exchange.ErrUnknownAlert):
		status = fiber.StatusNotFound
	case errors.Is(err, exchange.ErrOwnAlert):
		status = fiber.StatusForbidden
	case errors.Is(err, exchange.ErrOrderGone):
		status = fiber.StatusGone
	case errors.Is(err, exchange.ErrClosed):
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(models.ClaimAlertResponse{
		AlertID: alertID,
		Claimed: false,
		Reason:  err.Error(),
	})
}

func (h *ExchangeHandler) GetAnalysis(c *fiber.Ctx) error {
	symbol := c.Params("symbol")

	return c.Status(fiber.StatusOK).JSON(analysisResponse(h.Analyzer.Analyze(symbol)))
}

// GetAllAnalyses reports every symbol that has traded at least once.
func (h *ExchangeHandler) GetAllAnalyses(c *fiber.Ctx) error {
	reports := h.Analyzer.AnalyzeAll()

	responses := make([]models.AnalysisResponse, 0, len(reports))
	for _, analysis := range reports {
		responses = append(responses, analysisResponse(analysis))
	}
	return c.Status(fiber.StatusOK).JSON(responses)
}

func analysisResponse(analysis analytics.Analysis) models.AnalysisResponse {
	return models.AnalysisResponse{
		Symbol:         analysis.Symbol,
		Samples:        analysis.Samples,
		CurrentPrice:   analysis.CurrentPrice,
		PredictedPrice: analysis.PredictedPrice,
		Slope:          analysis.Slope,
		Signal:         string(analysis.Signal),
	}
}

func (h *ExchangeHandler) HealthCheck(c *fiber.Ctx) error {
	stats := h.Exchange.Stats()

	return c.Status(fiber.StatusOK).JSON(models.HealthResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.StartTime).Seconds()),
		OrdersResting: stats.OrdersResting,
	})
}

func (h *ExchangeHandler) Metrics(c *fiber.Ctx) error {
	stats := h.Exchange.Stats()

	return c.Status(fiber.StatusOK).JSON(models.MetricsResponse{
		OrdersSubmitted: stats.OrdersSubmitted,
		OrdersResting:   stats.OrdersResting,
		OrdersCancelled: stats.OrdersCancelled,
		OrdersModified:  stats.OrdersModified,
		TradesExecuted:  stats.TradesExecuted,
		AlertsActive:    stats.AlertsActive,
		AlertsCreated:   stats.AlertsCreated,
		AlertsClaimed:   stats.AlertsClaimed,
	})
}

func (h *ExchangeHandler) engineError(c *fiber.Ctx, err error, id string) error {
	switch {
	case errors.Is(err, exchange.ErrUnknownSymbol):
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{Error: "Unknown symbol: " + id})
	case errors.Is(err, exchange.ErrUnknownOrder):
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{Error: "Order not found"})
	case errors.Is(err, exchange.ErrClosed):
		return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{Error: "Exchange is shutting down"})
	}

	log.Error().Err(err).Str("id", id).Msg("Engine error")
	return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{Error: "Internal server error"})
}

func validateSubmitOrderRequest(req *models.SubmitOrderRequest) error {
	if req.Symbol == "" {
		return &ValidationError{Message: "Invalid order: symbol is required"}
	}
	if req.Side != "BUY" && req.Side != "SELL" {
		return &ValidationError{Message: "Invalid order: side must be BUY or SELL"}
	}
	if req.TraderID == "" {
		return &ValidationError{Message: "Invalid order: trader_id is required"}
	}
	if req.Quantity <= 0 {
		return &ValidationError{Message: "Invalid order: quantity must be positive"}
	}
	if req.Price <= 0 {
		return &ValidationError{Message: "Invalid order: price must be positive"}
	}
	return nil
}

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
