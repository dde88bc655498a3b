package subcontrollers

import (
	"context"

	"chatsino/internal/games/blackjack"
	"chatsino/internal/models"
	"chatsino/internal/services"
)

var blackjackErrors = map[error]string{
	models.ErrGameInProgress:   "You already have a blackjack game in progress.",
	models.ErrNoGameInProgress: "You do not have a game of blackjack in progress.",
}

func RegisterBlackjack(r *Router, svc *services.BlackjackService) {
	r.Register(models.KindGetActiveBlackjackGame, Route{
		Handler: func(ctx context.Context, req Request) (any, error) {
			return svc.Load(ctx, req.From.ID)
		},
		Errors:   blackjackErrors,
		Fallback: "Unable to get active blackjack game.",
	})

	r.Register(models.KindStartBlackjackGame, Route{
		NewArgs: func() any { return &models.StartBlackjackArgs{} },
		Handler: func(ctx context.Context, req Request) (any, error) {
			args := req.Args.(*models.StartBlackjackArgs)
			return svc.Start(ctx, req.From.ID, args.Wager)
		},
		Errors:   blackjackErrors,
		Fallback: "Unable to start blackjack game.",
	})

	r.Register(models.KindTakeBlackjackAction, Route{
		NewArgs: func() any { return &models.BlackjackActionArgs{} },
		Handler: func(ctx context.Context, req Request) (any, error) {
			args := req.Args.(*models.BlackjackActionArgs)
			return svc.Play(ctx, req.From.ID, blackjack.Action(args.Action))
		},
		Errors:   blackjackErrors,
		Fallback: "Unable to take blackjack action.",
	})
}
