package domain

import (
	"strings"
	"testing"
	"time"
)

func TestEnumValues(t *testing.T) {
	if OrderSideBuy != "buy" || OrderSideSell != "sell" {
		t.Error("OrderSide constants have unexpected values")
	}
	if OrderKindMarket != "market" || OrderKindStopLoss != "stop_loss" || OrderKindTakeProfit != "take_profit" {
		t.Error("OrderKind constants have unexpected values")
	}
	if OrderStatusPending != "pending" || OrderStatusExpired != "expired" {
		t.Error("OrderStatus constants have unexpected values")
	}
	if ActionBuy != "buy" || ActionSell != "sell" || ActionHold != "hold" {
		t.Error("ActionType constants have unexpected values")
	}
}

func TestZeroValues(t *testing.T) {
	bar := Bar{}
	if bar.Symbol != "" || !bar.Date.IsZero() {
		t.Error("expected empty Symbol and zero Date for zero-value Bar")
	}
	if bar.Open != 0 || bar.High != 0 || bar.Low != 0 || bar.Close != 0 || bar.Volume != 0 {
		t.Error("expected zero OHLCV for zero-value Bar")
	}

	order := Order{}
	if order.ID != "" || order.Side != "" || order.Kind != "" || order.Status != "" {
		t.Error("expected empty enum fields for zero-value Order")
	}
	if order.Qty != 0 || order.Price != 0 {
		t.Error("expected zero Qty/Price for zero-value Order")
	}

	pos := Position{Symbol: "AAPL", Qty: 100, AvgCost: 185.5}
	if pos.Qty != 100 || pos.AvgCost != 185.5 {
		t.Error("Position fields not set as constructed")
	}
}

func TestDiagnostics(t *testing.T) {
	var d Diagnostics
	date := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	d.Add(date, "order %s rejected: %s", "ord-000001", "insufficient cash")
	d.Add(date, "no bar for %s", "MSFT")

	if d.Len() != 2 {
		t.Fatalf("Len = %d, want 2", d.Len())
	}
	entries := d.Entries()
	if !strings.HasPrefix(entries[0], "2024-03-04 ") {
		t.Errorf("entry not date-prefixed: %q", entries[0])
	}
	if !strings.Contains(entries[1], "MSFT") {
		t.Errorf("entry missing detail: %q", entries[1])
	}

	// Entries returns a copy; mutating it must not affect the log.
	entries[0] = "mutated"
	if d.Entries()[0] == "mutated" {
		t.Error("Entries should return a copy")
	}
}
