package analytics

import (
	"stock-exchange/src/exchange"
)

type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// Analysis is the trend report for one symbol, fitted over that symbol's
// trade prices in ledger order.
type Analysis struct {
	Symbol         string
	Samples        int
	CurrentPrice   int64
	PredictedPrice int64
	Slope          float64
	Signal         Signal
}

// TradeSource is the slice of the engine boundary the analyzer needs.
type TradeSource interface {
	TradeHistory() []exchange.Trade
}

type Analyzer struct {
	source TradeSource
}

func NewAnalyzer(source TradeSource) *Analyzer {
	return &Analyzer{source: source}
}

// Analyze fits a least-squares line over a symbol's trade prices, indexed
// by ledger position, and predicts the next price. Fewer than two trades
// yield a HOLD with no prediction.
func (a *Analyzer) Analyze(symbol string) Analysis {
	var prices []float64
	for _, trade := range a.source.TradeHistory() {
		if trade.Symbol == symbol {
			prices = append(prices, float64(trade.Price))
		}
	}

	analysis := Analysis{
		Symbol:  symbol,
		Samples: len(prices),
		Signal:  SignalHold,
	}

	if len(prices) == 0 {
		return analysis
	}

	current := prices[len(prices)-1]
	analysis.CurrentPrice = int64(current)

	if len(prices) < 2 {
		analysis.PredictedPrice = analysis.CurrentPrice
		return analysis
	}

	var model regression
	for i, price := range prices {
		model.add(float64(i), price)
	}

	predicted := model.predict(float64(len(prices)))
	analysis.Slope = model.slope()
	analysis.PredictedPrice = int64(predicted + 0.5)

	// signal on a 1% move against the last traded price
	switch {
	case predicted > current*1.01:
		analysis.Signal = SignalBuy
	case predicted < current*0.99:
		analysis.Signal = SignalSell
	}

	return analysis
}

// AnalyzeAll reports every symbol with at least one trade.
func (a *Analyzer) AnalyzeAll() []Analysis {
	seen := make(map[string]bool)
	var symbols []string
	for _, trade := range a.source.TradeHistory() {
		if !seen[trade.Symbol] {
			seen[trade.Symbol] = true
			symbols = append(symbols, trade.Symbol)
		}
	}

	reports := make([]Analysis, 0, len(symbols))
	for _, symbol := range symbols {
		reports = append(reports, a.Analyze(symbol))
	}
	return reports
}

// regression is a streaming simple linear regression over (x, y) samples.
type regression struct {
	sumX  float64
	sumY  float64
	sumXY float64
	sumX2 float64
	n     float64
}

func (r *regression) add(x, y float64) {
	r.sumX += x
	r.sumY += y
	r.sumXY += x * y
	r.sumX2 += x * x
	r.n++
}

func (r *regression) slope() float64 {
	if r.n < 2 {
		return 0
	}
	denom := r.n*r.sumX2 - r.sumX*r.sumX
	if denom == 0 {
		return 0
	}
	return (r.n*r.sumXY - r.sumX*r.sumY) / denom
}

func (r *regression) intercept() float64 {
	if r.n == 0 {
		return 0
	}
	return (r.sumY - r.slope()*r.sumX) / r.n
}

func (r *regression) predict(x float64) float64 {
	return r.slope()*x + r.intercept()
}
