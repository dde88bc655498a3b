// Package blackjack is a pure single-player blackjack state machine. Nothing
// here touches storage or the chip ledger.
package blackjack

import (
	"math/rand/v2"
	"slices"

	"chatsino/internal/games/cards"
	"chatsino/internal/models"
)

type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusPlaying   Status = "playing"
	StatusPushed    Status = "pushed"
	StatusBlackjack Status = "blackjack"
	StatusLost      Status = "lost"
	StatusWon       Status = "won"
)

type Action string

const (
	ActionDeal         Action = "deal"
	ActionHit          Action = "hit"
	ActionStay         Action = "stay"
	ActionDoubleDown   Action = "double-down"
	ActionBuyInsurance Action = "buy-insurance"
)

const dealerStandsOnValue = 17

// State is the persisted part of a hand. Values, status and actions are
// always derived from it.
type State struct {
	DealerCards           []cards.Card `json:"dealerCards"`
	PlayerCards           []cards.Card `json:"playerCards"`
	PlayerBoughtInsurance bool         `json:"playerBoughtInsurance"`
	PlayerDoubledDown     bool         `json:"playerDoubledDown"`
	PlayerStayed          bool         `json:"playerStayed"`
}

// View is State plus everything derived from it, as sent to clients.
type View struct {
	State
	DealerValue int      `json:"dealerValue"`
	PlayerValue int      `json:"playerValue"`
	Status      Status   `json:"status"`
	Actions     []Action `json:"actions"`
}

type Game struct {
	State
	decks int
	rng   *rand.Rand
}

func New(decks int, rng *rand.Rand) *Game {
	return FromState(State{}, decks, rng)
}

func FromState(state State, decks int, rng *rand.Rand) *Game {
	if decks < 1 {
		decks = 1
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Game{State: state, decks: decks, rng: rng}
}

func (g *Game) DealerValue() int { return HandValue(g.DealerCards) }
func (g *Game) PlayerValue() int { return HandValue(g.PlayerCards) }

// justDealt is true until either hand draws past the initial deal.
func (g *Game) justDealt() bool {
	return len(g.PlayerCards) <= 2 && len(g.DealerCards) <= 2
}

func (g *Game) Status() Status {
	if len(g.PlayerCards) == 0 {
		return StatusWaiting
	}

	player, dealer := g.PlayerValue(), g.DealerValue()

	if g.justDealt() {
		if player == 21 && dealer == 21 {
			return StatusPushed
		}
		if player == 21 {
			return StatusBlackjack
		}
	}

	switch {
	case player == -1:
		return StatusLost
	case dealer == -1:
		return StatusWon
	}

	if g.PlayerStayed {
		switch {
		case player > dealer:
			return StatusWon
		case dealer > player:
			return StatusLost
		default:
			return StatusPushed
		}
	}

	return StatusPlaying
}

func (g *Game) dealerShowsAce() bool {
	return len(g.DealerCards) > 0 && g.DealerCards[0].Rank() == 'A'
}

// InsuranceApplies reports a dealer blackjack: an ace up and 21 on exactly
// two cards.
func (g *Game) InsuranceApplies() bool {
	return g.dealerShowsAce() && len(g.DealerCards) == 2 && g.DealerValue() == 21
}

func (g *Game) Actions() []Action {
	if g.Status() != StatusPlaying {
		return []Action{ActionDeal}
	}

	actions := []Action{ActionHit, ActionStay}
	if v := g.PlayerValue(); (v == 10 || v == 11) && len(g.PlayerCards) <= 2 {
		actions = append(actions, ActionDoubleDown)
	}
	if g.dealerShowsAce() && !g.PlayerBoughtInsurance {
		actions = append(actions, ActionBuyInsurance)
	}
	return actions
}

func (g *Game) CanTake(action Action) bool {
	return slices.Contains(g.Actions(), action)
}

func (g *Game) View() View {
	return View{
		State:       g.State,
		DealerValue: g.DealerValue(),
		PlayerValue: g.PlayerValue(),
		Status:      g.Status(),
		Actions:     g.Actions(),
	}
}

func (g *Game) shoe() []cards.Card {
	dealt := make([]cards.Card, 0, len(g.DealerCards)+len(g.PlayerCards))
	dealt = append(dealt, g.DealerCards...)
	dealt = append(dealt, g.PlayerCards...)
	return cards.Shoe(g.decks, dealt, g.rng)
}

// Deal starts a fresh hand: player, dealer, player.
func (g *Game) Deal() error {
	if g.Status() == StatusPlaying {
		return models.ErrGameInProgress
	}

	g.State = State{}
	shoe := g.shoe()
	g.PlayerCards = []cards.Card{shoe[0], shoe[2]}
	g.DealerCards = []cards.Card{shoe[1]}
	return nil
}

// Take applies one player action.
func (g *Game) Take(action Action) error {
	if g.Status() != StatusPlaying {
		return models.ErrNoGameInProgress
	}
	if !g.CanTake(action) {
		return models.ErrCannotTakeAction
	}

	switch action {
	case ActionHit:
		g.hit()
	case ActionStay:
		g.stay()
	case ActionDoubleDown:
		g.PlayerDoubledDown = true
		g.hit()
		if g.Status() == StatusPlaying {
			g.stay()
		}
	case ActionBuyInsurance:
		g.PlayerBoughtInsurance = true
	default:
		return models.ErrCannotTakeAction
	}
	return nil
}

func (g *Game) hit() {
	g.PlayerCards = append(g.PlayerCards, g.shoe()[0])
}

func (g *Game) stay() {
	g.PlayerStayed = true

	shoe := g.shoe()
	for i := 0; i < len(shoe); i++ {
		v := g.DealerValue()
		if v == -1 || v >= dealerStandsOnValue {
			break
		}
		g.DealerCards = append(g.DealerCards, shoe[i])
	}
}

// Settle returns how many chips go back to the player and the net result,
// for a hand that has left the playing state.
func (g *Game) Settle(wager int64) (payout, winnings int64) {
	switch g.Status() {
	case StatusPushed:
		return wager, 0
	case StatusWon:
		return 2 * wager, wager
	case StatusBlackjack:
		winnings = 3 * wager / 2
		return wager + winnings, winnings
	case StatusLost:
		if g.PlayerBoughtInsurance && g.InsuranceApplies() {
			return wager, 0
		}
		return 0, -wager
	}
	return 0, 0
}

func (s Status) Terminal() bool {
	switch s {
	case StatusPushed, StatusBlackjack, StatusLost, StatusWon:
		return true
	}
	return false
}
