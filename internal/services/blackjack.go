package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"chatsino/internal/games/blackjack"
	"chatsino/internal/models"
	"chatsino/internal/store"

	log "github.com/sirupsen/logrus"
)

// BlackjackGame is a hand as clients see it.
type BlackjackGame struct {
	ID       int64          `json:"id"`
	ClientID int64          `json:"clientId"`
	Active   bool           `json:"active"`
	Wager    int64          `json:"wager"`
	Winnings int64          `json:"winnings"`
	State    blackjack.View `json:"state"`
}

type BlackjackService struct {
	games   BlackjackRepository
	ledger  Ledger
	decks   int
	locks   *KeyedMutex
	newRand func() *rand.Rand
	log     *log.Entry
}

func NewBlackjackService(games BlackjackRepository, ledger Ledger, decks int, logger *log.Entry) *BlackjackService {
	return &BlackjackService{
		games:  games,
		ledger: ledger,
		decks:  decks,
		locks:  NewKeyedMutex(),
		newRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
		log: logger.WithField("service", "blackjack"),
	}
}

// SetRandSource overrides the shuffle source; used by tests.
func (s *BlackjackService) SetRandSource(newRand func() *rand.Rand) {
	s.newRand = newRand
}

func (s *BlackjackService) view(row store.BlackjackRow) *BlackjackGame {
	game := blackjack.FromState(row.State, s.decks, nil)
	return &BlackjackGame{
		ID:       row.ID,
		ClientID: row.ClientID,
		Active:   row.Active,
		Wager:    row.Wager,
		Winnings: row.Winnings,
		State:    game.View(),
	}
}

// Load returns the client's active hand, or nil when there is none.
func (s *BlackjackService) Load(ctx context.Context, clientID int64) (*BlackjackGame, error) {
	row, err := s.games.ActiveBlackjack(ctx, clientID)
	if errors.Is(err, models.ErrNoGameInProgress) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.view(row), nil
}

func (s *BlackjackService) Start(ctx context.Context, clientID, wager int64) (*BlackjackGame, error) {
	if wager <= 0 {
		return nil, models.ErrInvalidArguments
	}
	unlock := s.locks.Lock(clientID)
	defer unlock()

	if _, err := s.games.ActiveBlackjack(ctx, clientID); err == nil {
		return nil, models.ErrGameInProgress
	} else if !errors.Is(err, models.ErrNoGameInProgress) {
		return nil, err
	}

	if _, err := s.ledger.Charge(ctx, clientID, wager, "blackjack wager"); err != nil {
		if errors.Is(err, models.ErrInsufficientChips) {
			return nil, models.ErrCannotAffordWager
		}
		return nil, err
	}

	game := blackjack.New(s.decks, s.newRand())
	if err := game.Deal(); err != nil {
		s.refund(ctx, clientID, wager)
		return nil, err
	}

	row := store.BlackjackRow{ClientID: clientID, Active: true, State: game.State, Wager: wager}
	if game.Status().Terminal() {
		payout := s.settle(game, &row)
		if err := s.games.SettleBlackjack(ctx, &row, payout); err != nil {
			s.refund(ctx, clientID, wager)
			return nil, err
		}
	} else if err := s.games.InsertBlackjack(ctx, &row); err != nil {
		s.refund(ctx, clientID, wager)
		return nil, err
	}

	s.log.WithFields(log.Fields{"client_id": clientID, "wager": wager, "status": game.Status()}).Info("blackjack hand dealt")
	return s.view(row), nil
}

func (s *BlackjackService) Play(ctx context.Context, clientID int64, action blackjack.Action) (*BlackjackGame, error) {
	unlock := s.locks.Lock(clientID)
	defer unlock()

	row, err := s.games.ActiveBlackjack(ctx, clientID)
	if err != nil {
		return nil, err
	}

	game := blackjack.FromState(row.State, s.decks, s.newRand())
	if err := game.Take(action); err != nil {
		return nil, err
	}

	row.State = game.State
	if !game.Status().Terminal() {
		if err := s.games.UpdateBlackjack(ctx, &row); err != nil {
			return nil, err
		}
		return s.view(row), nil
	}

	// A failed settlement leaves the stored hand as it was before this
	// action, still active, so the client can act again.
	payout := s.settle(game, &row)
	if err := s.games.SettleBlackjack(ctx, &row, payout); err != nil {
		s.log.WithFields(log.Fields{"client_id": clientID, "payout": payout}).
			WithError(err).Error("blackjack settlement failed")
		return nil, err
	}
	return s.view(row), nil
}

// settle marks a finished hand closed on row and returns how many chips the
// client gets back.
func (s *BlackjackService) settle(game *blackjack.Game, row *store.BlackjackRow) int64 {
	if !game.Status().Terminal() {
		return 0
	}
	payout, winnings := game.Settle(row.Wager)
	row.Active = false
	row.Winnings = winnings
	return payout
}

func (s *BlackjackService) refund(ctx context.Context, clientID, wager int64) {
	if _, err := s.ledger.Refund(ctx, clientID, wager, "blackjack refund"); err != nil {
		s.log.WithFields(log.Fields{"client_id": clientID, "wager": wager}).
			WithError(fmt.Errorf("refund: %w", err)).Error("blackjack refund failed")
	}
}
