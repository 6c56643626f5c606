package analytics_test

import (
	"testing"

	"stock-exchange/src/analytics"
	"stock-exchange/src/exchange"
)

type fakeSource struct {
	trades []exchange.Trade
}

func (f *fakeSource) TradeHistory() []exchange.Trade {
	return f.trades
}

func tradesAt(symbol string, prices ...int64) []exchange.Trade {
	trades := make([]exchange.Trade, 0, len(prices))
	for _, price := range prices {
		trades = append(trades, exchange.Trade{Symbol: symbol, Price: price, Quantity: 1})
	}
	return trades
}

func TestRisingTrendSignalsBuy(t *testing.T) {
	analyzer := analytics.NewAnalyzer(&fakeSource{
		trades: tradesAt("AAPL", 10000, 11000, 12000, 13000),
	})

	analysis := analyzer.Analyze("AAPL")

	if analysis.Signal != analytics.SignalBuy {
		t.Errorf("Expected BUY, got: %s", analysis.Signal)
	}
	if analysis.Slope <= 0 {
		t.Errorf("Expected positive slope, got: %f", analysis.Slope)
	}
	if analysis.CurrentPrice != 13000 {
		t.Errorf("Expected current price 13000, got: %d", analysis.CurrentPrice)
	}
	// perfect line: next point is one step further up
	if analysis.PredictedPrice != 14000 {
		t.Errorf("Expected predicted price 14000, got: %d", analysis.PredictedPrice)
	}
}

func TestFallingTrendSignalsSell(t *testing.T) {
	analyzer := analytics.NewAnalyzer(&fakeSource{
		trades: tradesAt("AAPL", 13000, 12000, 11000, 10000),
	})

	analysis := analyzer.Analyze("AAPL")

	if analysis.Signal != analytics.SignalSell {
		t.Errorf("Expected SELL, got: %s", analysis.Signal)
	}
	if analysis.Slope >= 0 {
		t.Errorf("Expected negative slope, got: %f", analysis.Slope)
	}
}

func TestFlatTrendSignalsHold(t *testing.T) {
	analyzer := analytics.NewAnalyzer(&fakeSource{
		trades: tradesAt("AAPL", 10000, 10000, 10000, 10000),
	})

	if analysis := analyzer.Analyze("AAPL"); analysis.Signal != analytics.SignalHold {
		t.Errorf("Expected HOLD, got: %s", analysis.Signal)
	}
}

func TestNoTradesYieldsHold(t *testing.T) {
	analyzer := analytics.NewAnalyzer(&fakeSource{})

	analysis := analyzer.Analyze("AAPL")
	if analysis.Signal != analytics.SignalHold || analysis.Samples != 0 {
		t.Errorf("Expected empty HOLD report, got: %+v", analysis)
	}
}

func TestSingleTradeYieldsNoPrediction(t *testing.T) {
	analyzer := analytics.NewAnalyzer(&fakeSource{
		trades: tradesAt("AAPL", 10000),
	})

	analysis := analyzer.Analyze("AAPL")
	if analysis.Signal != analytics.SignalHold {
		t.Errorf("Expected HOLD, got: %s", analysis.Signal)
	}
	if analysis.PredictedPrice != analysis.CurrentPrice {
		t.Errorf("Expected prediction pinned to current price, got: %d vs %d",
			analysis.PredictedPrice, analysis.CurrentPrice)
	}
}

func TestAnalyzeAllCoversTradedSymbols(t *testing.T) {
	source := &fakeSource{}
	source.trades = append(source.trades, tradesAt("AAPL", 10000, 11000)...)
	source.trades = append(source.trades, tradesAt("MSFT", 30000, 29000)...)

	analyzer := analytics.NewAnalyzer(source)

	reports := analyzer.AnalyzeAll()
	if len(reports) != 2 {
		t.Fatalf("Expected 2 reports, got: %d", len(reports))
	}

	symbols := map[string]bool{}
	for _, report := range reports {
		symbols[report.Symbol] = true
	}
	if !symbols["AAPL"] || !symbols["MSFT"] {
		t.Errorf("Expected reports for AAPL and MSFT, got: %v", symbols)
	}
}

// TestMixedSymbolsAreIsolated makes sure a symbol's fit only sees its own
// trades.
func TestMixedSymbolsAreIsolated(t *testing.T) {
	source := &fakeSource{}
	source.trades = append(source.trades, tradesAt("AAPL", 10000, 11000, 12000)...)
	source.trades = append(source.trades, tradesAt("MSFT", 50000)...)

	analyzer := analytics.NewAnalyzer(source)

	analysis := analyzer.Analyze("AAPL")
	if analysis.Samples != 3 {
		t.Errorf("Expected 3 samples for AAPL, got: %d", analysis.Samples)
	}
	if analysis.CurrentPrice != 12000 {
		t.Errorf("Expected AAPL current price 12000, got: %d", analysis.CurrentPrice)
	}
}
