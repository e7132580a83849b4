package models

import "time"

// SignalType is the canonical set of actions a signal can propose.
type SignalType string

const (
	SignalBuyEntry  SignalType = "buy_entry"
	SignalSellEntry SignalType = "sell_entry"
	SignalBuyExit   SignalType = "buy_exit"
	SignalSellExit  SignalType = "sell_exit"
	SignalHold      SignalType = "hold"
	SignalReduce    SignalType = "reduce"
)

// Entry reports whether the type opens a position.
func (t SignalType) Entry() bool { return t == SignalBuyEntry || t == SignalSellEntry }

// Exit reports whether the type closes a position.
func (t SignalType) Exit() bool { return t == SignalBuyExit || t == SignalSellExit }

// Direction maps a type to its directional bias.
func (t SignalType) Direction() Direction {
	if t == SignalBuyEntry || t == SignalSellExit {
		return Bullish
	}
	return Bearish
}

// SignalSourceName identifies the analyzer that produced a signal.
type SignalSourceName string

const (
	SourceZone      SignalSourceName = "zone"
	SourceStructure SignalSourceName = "structure"
)

// Signal is a directional trade proposal.
type Signal struct {
	Symbol     string           `json:"symbol"`
	Type       SignalType       `json:"type"`
	Source     SignalSourceName `json:"source"`
	Timeframe  string           `json:"timeframe,omitempty"`
	Entry      float64          `json:"entry_price"`
	StopLoss   float64          `json:"stop_loss,omitempty"`
	TakeProfit float64          `json:"take_profit,omitempty"`
	Confidence float64          `json:"confidence"` // [0,1]
	CreatedAt  time.Time        `json:"created_at"`
	ExpiresAt  time.Time        `json:"expires_at"`
	Reason     string           `json:"reason"`
	Processed  bool             `json:"processed"`
}

// RewardRisk returns target distance over stop distance, or 0 when the
// stop distance is degenerate.
func (s *Signal) RewardRisk() float64 {
	risk := s.Entry - s.StopLoss
	reward := s.TakeProfit - s.Entry
	if risk < 0 {
		risk = -risk
	}
	if reward < 0 {
		reward = -reward
	}
	if risk == 0 {
		return 0
	}
	return reward / risk
}

// Expired reports whether the signal is past its expiry.
func (s *Signal) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
