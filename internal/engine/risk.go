package engine

import (
	"quantarena/internal/domain"
)

// ApplyRiskRules evaluates the engine-level automatic rules for the bar's
// instrument: stop-loss first, then scale-out / scale-in. Rules are resolved
// as orders through the same fill machinery as everything else and run before
// the day's strategy decision.
func (e *Engine) ApplyRiskRules(bar domain.Bar) []domain.Trade {
	p, ok := e.positions[bar.Symbol]
	if !ok || p.Qty <= 0 || p.AvgCost <= 0 {
		return nil
	}

	var fills []domain.Trade

	// Stop-loss: a synthetic stop order at avg_cost*(1-pct), evaluated
	// against the day's full range. A triggered stop closes the whole
	// position at the trigger price and suppresses scaling for the day.
	if e.risk.StopLossPct > 0 {
		trigger := p.AvgCost * (1 - e.risk.StopLossPct)
		stop := &domain.Order{
			ID:        e.newOrderID(),
			Symbol:    bar.Symbol,
			Side:      domain.OrderSideSell,
			Kind:      domain.OrderKindStopLoss,
			Price:     trigger,
			Qty:       p.Qty,
			Status:    domain.OrderStatusPending,
			CreatedOn: bar.Date,
		}
		if triggered(stop, bar) {
			price := e.conditionalFillPrice(stop)
			trade := domain.Trade{
				OrderID:   stop.ID,
				Symbol:    stop.Symbol,
				Side:      stop.Side,
				Qty:       stop.Qty,
				FillPrice: price,
				Fee:       e.fee(price * float64(stop.Qty)),
				Date:      bar.Date,
			}
			if err := e.ApplyFill(trade); err != nil {
				e.diags.Add(bar.Date, "stop-loss for %s not filled: %v", bar.Symbol, err)
				return nil
			}
			stop.Status = domain.OrderStatusFilled
			e.diags.Add(bar.Date, "auto stop-loss sold %d %s at %.2f", trade.Qty, trade.Symbol, trade.FillPrice)
			return []domain.Trade{trade}
		}
	}

	// Scale rules mark the position to the close.
	pnlPct := (bar.Close - p.AvgCost) / p.AvgCost

	if e.risk.ScaleOutThreshold > 0 && pnlPct >= e.risk.ScaleOutThreshold {
		qty := scaleQty(p.Qty, e.risk.ScaleOutFraction)
		// Scaling out never closes the position entirely; that is the
		// stop-loss's job.
		if p.Qty-qty > 0 {
			if t, ok := e.autoTrade(bar, domain.OrderSideSell, qty, "scale-out"); ok {
				fills = append(fills, t)
			}
		}
	} else if e.risk.ScaleInThreshold > 0 && pnlPct <= -e.risk.ScaleInThreshold {
		qty := scaleQty(p.Qty, e.risk.ScaleInFraction)
		if t, ok := e.autoTrade(bar, domain.OrderSideBuy, qty, "scale-in"); ok {
			fills = append(fills, t)
		}
	}

	return fills
}

// autoTrade executes a risk-rule market trade at the day's close.
func (e *Engine) autoTrade(bar domain.Bar, side domain.OrderSide, qty int64, rule string) (domain.Trade, bool) {
	price := e.execPrice(side, bar.Close)
	trade := domain.Trade{
		OrderID:   e.newOrderID(),
		Symbol:    bar.Symbol,
		Side:      side,
		Qty:       qty,
		FillPrice: price,
		Fee:       e.fee(price * float64(qty)),
		Date:      bar.Date,
	}
	if err := e.ApplyFill(trade); err != nil {
		e.diags.Add(bar.Date, "auto %s for %s skipped: %v", rule, bar.Symbol, err)
		return domain.Trade{}, false
	}
	e.diags.Add(bar.Date, "auto %s traded %d %s at %.2f", rule, qty, bar.Symbol, price)
	return trade, true
}

// scaleQty sizes a scaling trade as a fraction of the position, at least one
// share.
func scaleQty(held int64, fraction float64) int64 {
	qty := int64(float64(held) * fraction)
	if qty < 1 {
		qty = 1
	}
	return qty
}
