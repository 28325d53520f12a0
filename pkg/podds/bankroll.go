package podds

import (
	"github.com/shopspring/decimal"
)

// Wager is a staking decision paired with the result of the match it was made on.
type Wager struct {
	Side    Side
	Result  Side
	Kelly   float64
	NetOdds float64
}

// Won reports whether a placed wager backed the actual result.
func (w Wager) Won() bool {
	return w.Side != SideNone && w.Side == w.Result
}

// BankrollStep is the bankroll movement caused by one wager. Placed is set only
// when a non-zero stake was settled.
type BankrollStep struct {
	Stake    decimal.Decimal `json:"stake"`
	Profit   decimal.Decimal `json:"profit"`
	Bankroll decimal.Decimal `json:"bankroll"`
	Placed   bool            `json:"placed"`
	Won      bool            `json:"won"`
}

// BankrollSimulator replays wagers in order, compounding the bankroll.
// The stake on each wager is bankroll * kelly / KellyDivisor.
type BankrollSimulator struct {
	KellyDivisor float64
	// FloorAtZero stops staking once the bankroll is exhausted and never lets it go negative.
	// Without it the simulator is permissive and a bankroll may go negative.
	FloorAtZero bool

	divisor  decimal.Decimal
	bankroll decimal.Decimal
}

// NewBankrollSimulator validates the divisor and sets the opening bankroll.
func NewBankrollSimulator(kellyDivisor float64, floorAtZero bool, start decimal.Decimal) (*BankrollSimulator, error) {
	if !(kellyDivisor > 0) {
		return nil, configError("kelly_divisor", "must be positive, got %g", kellyDivisor)
	}
	if !start.IsPositive() {
		return nil, configError("start_bankroll", "must be positive, got %s", start)
	}
	return &BankrollSimulator{
		KellyDivisor: kellyDivisor,
		FloorAtZero:  floorAtZero,
		divisor:      decimal.NewFromFloat(kellyDivisor),
		bankroll:     start,
	}, nil
}

// Bankroll is the current balance.
func (bs *BankrollSimulator) Bankroll() decimal.Decimal {
	return bs.bankroll
}

// Apply settles one wager against the current bankroll.
func (bs *BankrollSimulator) Apply(w Wager) BankrollStep {
	step := BankrollStep{Placed: w.Side != SideNone}
	if !step.Placed || (bs.FloorAtZero && !bs.bankroll.IsPositive()) {
		step.Placed = false
		step.Bankroll = bs.bankroll
		return step
	}

	step.Stake = bs.bankroll.Mul(decimal.NewFromFloat(w.Kelly)).Div(bs.divisor)
	// a side chosen with no edge stakes nothing and is not a bet
	if step.Stake.IsZero() {
		step.Placed = false
		step.Bankroll = bs.bankroll
		return step
	}
	if w.Won() {
		step.Won = true
		step.Profit = step.Stake.Mul(decimal.NewFromFloat(w.NetOdds))
	} else {
		step.Profit = step.Stake.Neg()
	}
	bs.bankroll = bs.bankroll.Add(step.Profit)
	if bs.FloorAtZero && bs.bankroll.IsNegative() {
		bs.bankroll = decimal.Zero
	}
	step.Bankroll = bs.bankroll
	return step
}

// Simulate replays bets with the permissive policy.
func Simulate(bets []Wager, kellyDivisor float64, start decimal.Decimal) ([]BankrollStep, error) {
	bs, err := NewBankrollSimulator(kellyDivisor, false, start)
	if err != nil {
		return nil, err
	}
	return bs.Run(bets), nil
}

// Run applies every wager in order.
func (bs *BankrollSimulator) Run(bets []Wager) []BankrollStep {
	steps := make([]BankrollStep, 0, len(bets))
	for _, w := range bets {
		steps = append(steps, bs.Apply(w))
	}
	return steps
}

// Summary aggregates a bankroll trajectory.
type Summary struct {
	Bets         int             `json:"bets"`
	Won          int             `json:"won"`
	Lost         int             `json:"lost"`
	Turnover     decimal.Decimal `json:"turnover"`
	Start        decimal.Decimal `json:"start"`
	Final        decimal.Decimal `json:"final"`
	Peak         decimal.Decimal `json:"peak"`
	TotalPnL     decimal.Decimal `json:"totalPnl"`
	MaxDrawdown  decimal.Decimal `json:"maxDrawdown"` // fraction of the running peak
	ReturnOnTurn decimal.Decimal `json:"roi"`         // TotalPnL / Turnover, zero with no turnover
}

// Summarize computes the summary of steps that started from start.
func Summarize(start decimal.Decimal, steps []BankrollStep) Summary {
	s := Summary{Start: start, Final: start, Peak: start}
	for _, step := range steps {
		if step.Placed {
			s.Bets++
			s.Turnover = s.Turnover.Add(step.Stake)
			if step.Won {
				s.Won++
			} else {
				s.Lost++
			}
		}
		s.Final = step.Bankroll
		if s.Final.GreaterThan(s.Peak) {
			s.Peak = s.Final
		}
		if s.Peak.IsPositive() {
			drawdown := s.Peak.Sub(s.Final).Div(s.Peak)
			if drawdown.GreaterThan(s.MaxDrawdown) {
				s.MaxDrawdown = drawdown
			}
		}
	}
	s.TotalPnL = s.Final.Sub(start)
	if s.Turnover.IsPositive() {
		s.ReturnOnTurn = s.TotalPnL.Div(s.Turnover)
	}
	return s
}
