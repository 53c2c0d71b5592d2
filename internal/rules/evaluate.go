package rules

import (
	"github.com/chehsunliu/poker"
)

// Category is a poker hand class, weakest first.
type Category int

const (
	HighCard Category = iota
	OnePair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
)

// classes counts treys rank classes; class 1 is a straight flush and class 9
// is high card.
const classes = 9

var categoryNames = [...]string{
	HighCard:      "High Card",
	OnePair:       "Pair",
	TwoPair:       "Two Pair",
	ThreeOfAKind:  "Three of a Kind",
	Straight:      "Straight",
	Flush:         "Flush",
	FullHouse:     "Full House",
	FourOfAKind:   "Four of a Kind",
	StraightFlush: "Straight Flush",
}

func (c Category) String() string {
	if c < HighCard || c > StraightFlush {
		return "Unknown"
	}
	return categoryNames[c]
}

// Score orders hands. Compare returns 1 when s beats o and 0 on a tie.
type Score struct {
	Category Category
	rank     int32 // treys rank, 1 is a royal flush
}

func (s Score) Compare(o Score) int {
	switch {
	case s.rank < o.rank:
		return 1
	case s.rank > o.rank:
		return -1
	default:
		return 0
	}
}

func (s Score) String() string { return poker.RankString(s.rank) }

// Evaluate scores the best five cards of hole plus board. Together they must
// hold five to seven cards.
func Evaluate(board, hole []Card) Score {
	all := make([]Card, 0, len(board)+len(hole))
	all = append(all, board...)
	all = append(all, hole...)
	rank := poker.Evaluate(all)
	return Score{Category: Category(classes - poker.RankClass(rank)), rank: rank}
}
