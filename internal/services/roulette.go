package services

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"chatsino/internal/games/roulette"
	"chatsino/internal/models"
	"chatsino/internal/store"

	log "github.com/sirupsen/logrus"
)

type RouletteGame struct {
	ID      int64         `json:"id"`
	Active  bool          `json:"active"`
	PaidOut bool          `json:"paidOut"`
	State   roulette.View `json:"state"`
}

// RouletteService wraps the single shared round. One mutex covers every
// read-modify-write of the row.
type RouletteService struct {
	mu        sync.Mutex
	games     RouletteRepository
	ledger    Ledger
	durations roulette.Durations
	now       func() time.Time
	newRand   func() *rand.Rand
	log       *log.Entry
}

func NewRouletteService(games RouletteRepository, ledger Ledger, durations roulette.Durations, logger *log.Entry) *RouletteService {
	return &RouletteService{
		games:     games,
		ledger:    ledger,
		durations: durations,
		now:       time.Now,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
		log: logger.WithField("service", "roulette"),
	}
}

// SetClock replaces the wall clock; used by tests.
func (s *RouletteService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *RouletteService) game(state roulette.State) *roulette.Game {
	return roulette.FromState(state, s.durations,
		roulette.WithClock(s.now), roulette.WithRand(s.newRand()))
}

func (s *RouletteService) view(row store.RouletteRow) *RouletteGame {
	return &RouletteGame{
		ID:      row.ID,
		Active:  row.Active,
		PaidOut: row.PaidOut,
		State:   s.game(row.State).View(),
	}
}

// Load returns the current round, or nil when none is running.
func (s *RouletteService) Load(ctx context.Context) (*RouletteGame, error) {
	row, err := s.games.ActiveRoulette(ctx)
	if errors.Is(err, models.ErrNoGameInProgress) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.view(row), nil
}

func (s *RouletteService) Start(ctx context.Context) (*RouletteGame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.games.ActiveRoulette(ctx); err == nil {
		return nil, models.ErrGameInProgress
	} else if !errors.Is(err, models.ErrNoGameInProgress) {
		return nil, err
	}

	game := s.game(roulette.State{})
	if err := game.StartTakingBets(); err != nil {
		return nil, err
	}
	row := store.RouletteRow{Active: true, State: game.State}
	if err := s.games.InsertRoulette(ctx, &row); err != nil {
		return nil, err
	}

	s.log.WithField("ends_at", game.EndsAt()).Info("roulette round started")
	return s.view(row), nil
}

// Play charges the wager and records the bet. Any failure after the charge
// refunds it.
func (s *RouletteService) Play(ctx context.Context, clientID int64, kind roulette.BetKind, bet roulette.Bet) (*RouletteGame, error) {
	if bet.ClientID != clientID {
		return nil, models.ErrDifferentClient
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row, err := s.games.ActiveRoulette(ctx)
	if err != nil {
		return nil, err
	}
	game := s.game(row.State)
	if game.Status() != roulette.StatusTakingBets {
		return nil, models.ErrNotTakingBets
	}

	if _, err := s.ledger.Charge(ctx, clientID, bet.Wager, "roulette wager"); err != nil {
		if errors.Is(err, models.ErrInsufficientChips) {
			return nil, models.ErrCannotAffordWager
		}
		return nil, err
	}

	if err := game.TakeBet(kind, bet); err != nil {
		s.refund(ctx, clientID, bet.Wager)
		return nil, err
	}
	row.State = game.State
	if err := s.games.UpdateRoulette(ctx, &row); err != nil {
		s.refund(ctx, clientID, bet.Wager)
		return nil, err
	}

	s.log.WithFields(log.Fields{
		"client_id": clientID,
		"kind":      kind,
		"wager":     bet.Wager,
		"on_table":  game.Wagered(clientID),
	}).Info("roulette bet placed")
	return s.view(row), nil
}

// Payout spins a finished round and pays every winner exactly once. Closing
// the row and crediting the winners commit together; on failure the round
// stays open and the next call spins it again.
func (s *RouletteService) Payout(ctx context.Context) (*RouletteGame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, err := s.games.ActiveRoulette(ctx)
	if errors.Is(err, models.ErrNoGameInProgress) {
		return nil, models.ErrCannotPayout
	}
	if err != nil {
		return nil, err
	}
	if row.PaidOut {
		return nil, models.ErrAlreadyPaidOut
	}

	game := s.game(row.State)
	if game.Status() != roulette.StatusFinished {
		return nil, models.ErrCannotPayout
	}
	if _, err := game.Spin(); err != nil && !errors.Is(err, models.ErrAlreadySpun) {
		return nil, err
	}

	row.State = game.State
	if err := s.games.SettleRoulette(ctx, &row, game.Winners); err != nil {
		s.log.WithField("round", row.ID).WithError(err).Error("roulette settlement failed")
		return nil, err
	}

	s.log.WithFields(log.Fields{"round": row.ID, "result": *game.Result, "winners": len(game.Winners)}).Info("roulette round paid out")
	return s.view(row), nil
}

func (s *RouletteService) refund(ctx context.Context, clientID, wager int64) {
	if _, err := s.ledger.Refund(ctx, clientID, wager, "roulette refund"); err != nil {
		s.log.WithFields(log.Fields{"client_id": clientID, "wager": wager}).
			WithError(err).Error("roulette refund failed")
	}
}
