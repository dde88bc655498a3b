// Package cards models a standard French deck as two-character strings:
// rank then suit, e.g. "AS" or "TH".
package cards

import (
	"math/rand/v2"
	"strings"
)

const (
	Ranks = "23456789TJQKA"
	Suits = "CDHS"
)

type Card string

func (c Card) Rank() byte {
	if len(c) != 2 {
		return 0
	}
	return c[0]
}

func (c Card) Valid() bool {
	return len(c) == 2 && strings.IndexByte(Ranks, c[0]) >= 0 && strings.IndexByte(Suits, c[1]) >= 0
}

// Deck returns the 52 cards of a single deck in rank-major order.
func Deck() []Card {
	deck := make([]Card, 0, len(Ranks)*len(Suits))
	for i := 0; i < len(Ranks); i++ {
		for j := 0; j < len(Suits); j++ {
			deck = append(deck, Card([]byte{Ranks[i], Suits[j]}))
		}
	}
	return deck
}

// Shoe assembles decks copies of the deck, removes one copy of every card in
// dealt and shuffles what is left.
func Shoe(decks int, dealt []Card, rng *rand.Rand) []Card {
	removed := make(map[Card]int, len(dealt))
	for _, c := range dealt {
		removed[c]++
	}

	shoe := make([]Card, 0, decks*52)
	for i := 0; i < decks; i++ {
		for _, c := range Deck() {
			if removed[c] > 0 {
				removed[c]--
				continue
			}
			shoe = append(shoe, c)
		}
	}

	rng.Shuffle(len(shoe), func(i, j int) {
		shoe[i], shoe[j] = shoe[j], shoe[i]
	})
	return shoe
}
