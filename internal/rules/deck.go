package rules

import (
	"errors"
	"strings"

	"github.com/chehsunliu/poker"

	"github.com/DoyleJ11/heist-sync/pkg/types"
)

var ErrDeckExhausted = errors.New("deck exhausted")

// Card is a treys-encoded card. Codes look like "As", "Td", "9h".
type Card = poker.Card

func NewCard(code string) Card { return poker.NewCard(code) }

var suitSymbols = map[byte]string{
	's': "♠",
	'h': "♥",
	'd': "♦",
	'c': "♣",
}

// View converts a card to its wire form. Tens are spelled out.
func View(c Card) types.Card {
	code := c.String()
	rank := code[:1]
	if rank == "T" {
		rank = "10"
	}
	suit := suitSymbols[strings.ToLower(code[1:])[0]]
	return types.Card{Rank: rank, Suit: suit, Display: rank + suit}
}

func Views(cards []Card) []types.Card {
	out := make([]types.Card, 0, len(cards))
	for _, c := range cards {
		out = append(out, View(c))
	}
	return out
}

type Deck struct {
	cards []Card
}

// NewDeck returns a freshly shuffled 52-card deck.
func NewDeck() *Deck {
	return &Deck{cards: poker.NewDeck().Draw(52)}
}

// StackedDeck deals cards in the given order.
func StackedDeck(cards ...Card) *Deck {
	return &Deck{cards: append([]Card(nil), cards...)}
}

func (d *Deck) Remaining() int { return len(d.cards) }

func (d *Deck) Draw(n int) ([]Card, error) {
	if n > len(d.cards) {
		return nil, ErrDeckExhausted
	}
	out := append([]Card(nil), d.cards[:n]...)
	d.cards = d.cards[n:]
	return out, nil
}

// Clone copies the remaining cards so a cloned table state can keep dealing
// without touching the original.
func (d *Deck) Clone() *Deck {
	if d == nil {
		return nil
	}
	return &Deck{cards: append([]Card(nil), d.cards...)}
}
