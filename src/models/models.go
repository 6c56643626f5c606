package models

type SubmitOrderRequest struct {
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Price    int64  `json:"price"` // price in cents
	Quantity int64  `json:"quantity"`
	TraderID string `json:"trader_id"`
}

type SubmitOrderResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

type ModifyOrderRequest struct {
	NewPrice int64 `json:"new_price"` // price in cents
}

type OrderActionResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

type OrderResponse struct {
	OrderID   string `json:"order_id"`
	TraderID  string `json:"trader_id"`
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`
	Price     int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
	CreatedAt int64  `json:"created_at"` // unix millis
}

type TradeInfo struct {
	TradeID   string `json:"trade_id"`
	Symbol    string `json:"symbol"`
	Quantity  int64  `json:"quantity"`
	Price     int64  `json:"price"`
	BuyerID   string `json:"buyer_id"`
	SellerID  string `json:"seller_id"`
	Timestamp int64  `json:"timestamp"`
}

type AlertInfo struct {
	AlertID   string `json:"alert_id"`
	OrderID   string `json:"order_id"`
	Symbol    string `json:"symbol"`
	SellerID  string `json:"seller_id"`
	Price     int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
	CreatedAt int64  `json:"created_at"`
}

type ClaimAlertRequest struct {
	BuyerID string `json:"buyer_id"`
}

type ClaimAlertResponse struct {
	AlertID string `json:"alert_id"`
	Claimed bool   `json:"claimed"`
	Reason  string `json:"reason,omitempty"`
}

type OrderBookResponse struct {
	Symbol    string           `json:"symbol"`
	Timestamp int64            `json:"timestamp"`
	Bids      []PriceLevelInfo `json:"bids"` // sorted descending (highest first)
	Asks      []PriceLevelInfo `json:"asks"` // sorted ascending (lowest first)
}

type PriceLevelInfo struct {
	Price    int64 `json:"price"`
	Quantity int64 `json:"quantity"`
	Orders   int   `json:"orders"`
}

type AnalysisResponse struct {
	Symbol         string  `json:"symbol"`
	Samples        int     `json:"samples"`
	CurrentPrice   int64   `json:"current_price"`
	PredictedPrice int64   `json:"predicted_price"`
	Slope          float64 `json:"slope"`
	Signal         string  `json:"signal"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	OrdersResting int64  `json:"orders_resting"`
}

type MetricsResponse struct {
	OrdersSubmitted int64 `json:"orders_submitted"`
	OrdersResting   int64 `json:"orders_resting"`
	OrdersCancelled int64 `json:"orders_cancelled"`
	OrdersModified  int64 `json:"orders_modified"`
	TradesExecuted  int64 `json:"trades_executed"`
	AlertsActive    int64 `json:"alerts_active"`
	AlertsCreated   int64 `json:"alerts_created"`
	AlertsClaimed   int64 `json:"alerts_claimed"`
}
