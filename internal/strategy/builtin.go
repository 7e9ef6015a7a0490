package strategy

import (
	"quantarena/internal/domain"
)

func init() {
	for _, d := range []Descriptor{
		{Name: "buy-and-hold", New: func() Strategy { return &buyAndHold{} }},
		{Name: "ma-cross", New: func() Strategy { return &maCross{} }},
		{Name: "momentum", New: func() Strategy { return &momentum{} }},
	} {
		if err := Register(d); err != nil {
			panic(err)
		}
	}
}

// buyAndHold spends the starting cash equally across the universe on the
// first day and never trades again.
type buyAndHold struct {
	bought bool
}

func (s *buyAndHold) Init() error {
	s.bought = false
	return nil
}

func (s *buyAndHold) Next(snap Snapshot, _ PortfolioView) []domain.Action {
	if s.bought || len(snap.Universe) == 0 || snap.Cash <= 0 {
		return nil
	}

	perSymbol := snap.Cash / float64(len(snap.Universe))
	var actions []domain.Action
	for _, sym := range snap.Universe {
		price := snap.Prices[sym]
		if price <= 0 {
			continue
		}
		if qty := int64(perSymbol / price); qty > 0 {
			actions = append(actions, domain.Action{Type: domain.ActionBuy, Symbol: sym, Qty: qty})
		}
	}
	s.bought = true
	return actions
}

// maCross buys when the close crosses above its 20-day moving average and
// sells the whole position when it falls below, sizing entries at 10% of
// cash.
type maCross struct {
	lookback int
}

func (s *maCross) Init() error {
	s.lookback = 20
	return nil
}

func (s *maCross) Next(snap Snapshot, portfolio PortfolioView) []domain.Action {
	var actions []domain.Action
	for _, sym := range snap.Universe {
		price := snap.Prices[sym]
		bars := snap.History[sym]
		if price <= 0 || len(bars) < s.lookback {
			continue
		}

		sum := 0.0
		for _, b := range bars[len(bars)-s.lookback:] {
			sum += b.Close
		}
		ma := sum / float64(s.lookback)
		held := portfolio[sym]

		switch {
		case price > ma && held == 0:
			if qty := int64(snap.Cash * 0.10 / price); qty >= 1 {
				actions = append(actions, domain.Action{Type: domain.ActionBuy, Symbol: sym, Qty: qty})
			}
		case price < ma && held > 0:
			actions = append(actions, domain.Action{Type: domain.ActionSell, Symbol: sym, Qty: held})
		}
	}
	return actions
}

// momentum buys on a 10-day gain above 2% and exits on a 10-day loss beyond
// -2%, sizing entries at 15% of cash.
type momentum struct {
	lookback  int
	threshold float64
}

func (s *momentum) Init() error {
	s.lookback = 10
	s.threshold = 0.02
	return nil
}

func (s *momentum) Next(snap Snapshot, portfolio PortfolioView) []domain.Action {
	var actions []domain.Action
	for _, sym := range snap.Universe {
		price := snap.Prices[sym]
		bars := snap.History[sym]
		if price <= 0 || len(bars) < s.lookback+1 {
			continue
		}

		past := bars[len(bars)-s.lookback-1].Close
		if past <= 0 {
			continue
		}
		mom := (price - past) / past
		held := portfolio[sym]

		switch {
		case mom > s.threshold && held == 0:
			if qty := int64(snap.Cash * 0.15 / price); qty > 0 {
				actions = append(actions, domain.Action{Type: domain.ActionBuy, Symbol: sym, Qty: qty})
			}
		case mom < -s.threshold && held > 0:
			actions = append(actions, domain.Action{Type: domain.ActionSell, Symbol: sym, Qty: held})
		}
	}
	return actions
}
