package roulette

import "slices"

// DoubleZero is the 38th pocket. 0 and DoubleZero fall in no outside bucket.
const DoubleZero = 37

var red = []int{1, 3, 5, 7, 9, 12, 14, 16, 18, 19, 21, 23, 25, 27, 30, 32, 34, 36}

type BetKind string

const (
	BetStraightUp BetKind = "straight-up"
	BetLine       BetKind = "line"
	BetColumn     BetKind = "column"
	BetDozen      BetKind = "dozen"
	BetEvenOdd    BetKind = "even-odd"
	BetRedBlack   BetKind = "red-black"
	BetHighLow    BetKind = "high-low"
)

var Multipliers = map[BetKind]int64{
	BetStraightUp: 35,
	BetLine:       5,
	BetColumn:     2,
	BetDozen:      2,
	BetEvenOdd:    1,
	BetRedBlack:   1,
	BetHighLow:    1,
}

// Buckets is every outside grouping a result belongs to.
type Buckets struct {
	Number int    `json:"number"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
	Dozen  int    `json:"dozen,omitempty"`
	Color  string `json:"color,omitempty"`
	Parity string `json:"parity,omitempty"`
	Half   string `json:"half,omitempty"`
}

func BucketsFor(n int) Buckets {
	b := Buckets{Number: n}
	if n < 1 || n > 36 {
		return b
	}

	b.Line = (n-1)/6 + 1
	b.Column = (n-1)%3 + 1
	b.Dozen = (n-1)/12 + 1

	b.Color = "black"
	if slices.Contains(red, n) {
		b.Color = "red"
	}
	b.Parity = "odd"
	if n%2 == 0 {
		b.Parity = "even"
	}
	b.Half = "low"
	if n >= 19 {
		b.Half = "high"
	}
	return b
}

// Wins reports whether a bet of kind on which pays out for b.
func (b Buckets) Wins(kind BetKind, which string, n int, numeric bool) bool {
	switch kind {
	case BetStraightUp:
		return numeric && n == b.Number
	case BetLine:
		return numeric && b.Line != 0 && n == b.Line
	case BetColumn:
		return numeric && b.Column != 0 && n == b.Column
	case BetDozen:
		return numeric && b.Dozen != 0 && n == b.Dozen
	case BetRedBlack:
		return b.Color != "" && which == b.Color
	case BetEvenOdd:
		return b.Parity != "" && which == b.Parity
	case BetHighLow:
		return b.Half != "" && which == b.Half
	}
	return false
}

// validTarget reports whether which makes sense for kind.
func validTarget(kind BetKind, which string, n int, numeric bool) bool {
	switch kind {
	case BetStraightUp:
		return numeric && n >= 0 && n <= DoubleZero
	case BetLine:
		return numeric && n >= 1 && n <= 6
	case BetColumn, BetDozen:
		return numeric && n >= 1 && n <= 3
	case BetRedBlack:
		return which == "red" || which == "black"
	case BetEvenOdd:
		return which == "even" || which == "odd"
	case BetHighLow:
		return which == "high" || which == "low"
	}
	return false
}
