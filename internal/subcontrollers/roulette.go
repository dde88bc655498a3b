package subcontrollers

import (
	"context"

	"chatsino/internal/games/roulette"
	"chatsino/internal/models"
	"chatsino/internal/services"
)

var rouletteErrors = map[error]string{
	models.ErrNoGameInProgress: "There is no roulette game in progress.",
}

func RegisterRoulette(r *Router, svc *services.RouletteService) {
	r.Register(models.KindGetActiveRouletteGame, Route{
		Handler: func(ctx context.Context, _ Request) (any, error) {
			return svc.Load(ctx)
		},
		Errors:   rouletteErrors,
		Fallback: "Unable to get active roulette game.",
	})

	r.Register(models.KindPlaceRouletteBet, Route{
		NewArgs: func() any { return &models.PlaceRouletteBetArgs{} },
		Handler: func(ctx context.Context, req Request) (any, error) {
			args := req.Args.(*models.PlaceRouletteBetArgs)
			bet := roulette.Bet{ClientID: req.From.ID, Which: args.Which, Wager: args.Wager}
			return svc.Play(ctx, req.From.ID, roulette.BetKind(args.Kind), bet)
		},
		Errors:   rouletteErrors,
		Fallback: "Unable to place roulette bet.",
	})
}
