package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"chatsino/internal/common"
	"chatsino/internal/games/roulette"
	"chatsino/internal/models"

	log "github.com/sirupsen/logrus"
)

// RouletteResult is pushed to every client that won the round.
type RouletteResult struct {
	Round    int64 `json:"round"`
	Result   int   `json:"result"`
	Winnings int64 `json:"winnings"`
}

// RoundRunner drives the shared roulette round: it opens a round when none
// is running and pays out a finished one.
type RoundRunner struct {
	roulette    *RouletteService
	broadcaster Broadcaster
	interval    time.Duration
	log         *log.Entry

	stopOnce sync.Once
	stopChan chan struct{}
}

func NewRoundRunner(svc *RouletteService, broadcaster Broadcaster, interval time.Duration, logger *log.Entry) *RoundRunner {
	if interval <= 0 {
		interval = time.Second
	}
	return &RoundRunner{
		roulette:    svc,
		broadcaster: broadcaster,
		interval:    interval,
		log:         logger.WithField("component", "roulette-runner"),
		stopChan:    make(chan struct{}),
	}
}

// Run blocks until ctx is cancelled or Stop is called.
func (r *RoundRunner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.WithField("interval", r.interval).Info("roulette runner started")
	for {
		common.WithRecover(r.log, func() { r.Tick(ctx) }, "roulette tick panicked")

		select {
		case <-ticker.C:
		case <-r.stopChan:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func (r *RoundRunner) Stop() {
	r.stopOnce.Do(func() { close(r.stopChan) })
}

// Tick advances the round by at most one step.
func (r *RoundRunner) Tick(ctx context.Context) {
	game, err := r.roulette.Load(ctx)
	if err != nil {
		r.log.WithError(err).Error("failed to load roulette round")
		return
	}

	if game == nil {
		if _, err := r.roulette.Start(ctx); err != nil && !errors.Is(err, models.ErrGameInProgress) {
			r.log.WithError(err).Error("failed to start roulette round")
		}
		return
	}

	if game.State.Status != roulette.StatusFinished || game.PaidOut {
		return
	}

	paid, err := r.roulette.Payout(ctx)
	if err != nil {
		if !errors.Is(err, models.ErrAlreadyPaidOut) && !errors.Is(err, models.ErrCannotPayout) {
			r.log.WithError(err).Error("failed to pay out roulette round")
		}
		return
	}
	r.notifyWinners(ctx, paid)
}

func (r *RoundRunner) notifyWinners(ctx context.Context, game *RouletteGame) {
	if r.broadcaster == nil || game.State.Result == nil {
		return
	}
	for clientID, amount := range game.State.Winners {
		msg := RouletteResult{Round: game.ID, Result: *game.State.Result, Winnings: amount}
		if err := r.broadcaster.SendTo(ctx, clientID, models.KindRouletteResult, msg); err != nil {
			r.log.WithField("client_id", clientID).WithError(err).Warn("failed to push roulette result")
		}
	}
}
