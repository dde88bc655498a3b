// Package roulette is the shared, clock-driven roulette round. The phase is
// never stored: it is derived from StartedAt and the configured durations.
package roulette

import (
	"math/rand/v2"
	"time"

	"chatsino/internal/models"
)

type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusTakingBets Status = "taking-bets"
	StatusNoMoreBets Status = "no-more-bets"
	StatusSpinning   Status = "spinning"
	StatusFinished   Status = "finished"
)

type Durations struct {
	TakingBets time.Duration
	NoMoreBets time.Duration
	Spinning   time.Duration
}

var DefaultDurations = Durations{
	TakingBets: 15 * time.Minute,
	NoMoreBets: 8 * time.Second,
	Spinning:   5 * time.Second,
}

type Bet struct {
	ClientID int64         `json:"clientId"`
	Which    models.Target `json:"which"`
	Wager    int64         `json:"wager"`
}

type State struct {
	StartedAt *time.Time        `json:"startedAt"`
	Bets      map[BetKind][]Bet `json:"bets"`
	Result    *int              `json:"result"`
	Winners   map[int64]int64   `json:"winners"`
}

type View struct {
	State
	EndsAt     *time.Time `json:"endsAt"`
	SpinningAt *time.Time `json:"spinningAt"`
	FinishedAt *time.Time `json:"finishedAt"`
	Status     Status     `json:"status"`
}

type Game struct {
	State
	durations Durations
	rng       *rand.Rand
	now       func() time.Time
}

type Option func(*Game)

func WithClock(now func() time.Time) Option {
	return func(g *Game) { g.now = now }
}

func WithRand(rng *rand.Rand) Option {
	return func(g *Game) { g.rng = rng }
}

func New(d Durations, opts ...Option) *Game {
	return FromState(State{}, d, opts...)
}

func FromState(state State, d Durations, opts ...Option) *Game {
	if state.Bets == nil {
		state.Bets = make(map[BetKind][]Bet)
	}
	if state.Winners == nil {
		state.Winners = make(map[int64]int64)
	}
	g := &Game{State: state, durations: d, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return g
}

func (g *Game) at(offset time.Duration) *time.Time {
	if g.StartedAt == nil {
		return nil
	}
	t := g.StartedAt.Add(offset)
	return &t
}

func (g *Game) EndsAt() *time.Time { return g.at(g.durations.TakingBets) }

func (g *Game) SpinningAt() *time.Time {
	return g.at(g.durations.TakingBets + g.durations.NoMoreBets)
}

func (g *Game) FinishedAt() *time.Time {
	return g.at(g.durations.TakingBets + g.durations.NoMoreBets + g.durations.Spinning)
}

func (g *Game) Status() Status {
	if g.StartedAt == nil {
		return StatusWaiting
	}
	now := g.now()
	switch {
	case now.Before(*g.EndsAt()):
		return StatusTakingBets
	case now.Before(*g.SpinningAt()):
		return StatusNoMoreBets
	case now.Before(*g.FinishedAt()):
		return StatusSpinning
	}
	return StatusFinished
}

func (g *Game) View() View {
	return View{
		State:      g.State,
		EndsAt:     g.EndsAt(),
		SpinningAt: g.SpinningAt(),
		FinishedAt: g.FinishedAt(),
		Status:     g.Status(),
	}
}

func (g *Game) StartTakingBets() error {
	if g.Status() != StatusWaiting {
		return models.ErrCannotStartRound
	}
	now := g.now()
	g.StartedAt = &now
	return nil
}

func (g *Game) TakeBet(kind BetKind, bet Bet) error {
	if g.Status() != StatusTakingBets {
		return models.ErrNotTakingBets
	}
	n, numeric := bet.Which.Int()
	if bet.Wager <= 0 || !validTarget(kind, string(bet.Which), n, numeric) {
		return models.ErrInvalidArguments
	}
	g.Bets[kind] = append(g.Bets[kind], bet)
	return nil
}

// Spin draws the result once and settles every bet against it.
func (g *Game) Spin() (int, error) {
	if g.Status() != StatusFinished {
		return 0, models.ErrCannotSpin
	}
	if g.Result != nil {
		return *g.Result, models.ErrAlreadySpun
	}

	result := g.rng.IntN(DoubleZero + 1)
	g.settle(result)
	return result, nil
}

func (g *Game) settle(result int) {
	g.Result = &result
	g.Winners = make(map[int64]int64)

	buckets := BucketsFor(result)
	for kind, bets := range g.Bets {
		multiplier := Multipliers[kind]
		for _, bet := range bets {
			n, numeric := bet.Which.Int()
			if buckets.Wins(kind, string(bet.Which), n, numeric) {
				g.Winners[bet.ClientID] += bet.Wager + multiplier*bet.Wager
			}
		}
	}
}

// Wagered sums every chip a client has on the table this round.
func (g *Game) Wagered(clientID int64) int64 {
	var total int64
	for _, bets := range g.Bets {
		for _, bet := range bets {
			if bet.ClientID == clientID {
				total += bet.Wager
			}
		}
	}
	return total
}
