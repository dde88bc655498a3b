package blackjack

import (
	"strings"

	"chatsino/internal/games/cards"
)

// CardValue is the face value of a card. Aces count 0 here; HandValue
// decides what every ace in the hand is worth at once.
func CardValue(c cards.Card) int {
	if c.Rank() == 'A' {
		return 0
	}
	idx := strings.IndexByte(cards.Ranks, c.Rank())
	if idx < 0 {
		return 0
	}
	return min(idx+2, 10)
}

// HandValue returns the best total not over 21, or -1 if every way of
// counting the aces busts.
func HandValue(hand []cards.Card) int {
	base, aces := 0, 0
	for _, c := range hand {
		if c.Rank() == 'A' {
			aces++
			continue
		}
		base += CardValue(c)
	}

	best := -1
	for i := 0; i <= aces; i++ {
		total := base + (aces - i) + 11*i
		if total <= 21 && total > best {
			best = total
		}
	}
	return best
}
