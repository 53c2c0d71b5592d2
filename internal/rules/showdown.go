package rules

import (
	"fmt"
	"slices"
	"strings"
)

// Claim is one player's ranking claim at showdown. Claims are passed in
// claimed order: the first claim says "my hand is the strongest".
type Claim struct {
	Name string
	Hand []Card
}

type Placement struct {
	Name      string
	Guess     int
	TrueFrom  int
	TrueTo    int
	Error     int
	HandClass Category
}

func (p Placement) trueRank() string {
	if p.TrueFrom == p.TrueTo {
		return fmt.Sprintf("%d", p.TrueFrom)
	}
	return fmt.Sprintf("%d-%d", p.TrueFrom, p.TrueTo)
}

type Outcome struct {
	Placements []Placement
	TotalError int
	MaxError   int
}

// Cracked is true when every claim landed inside its true rank window.
func (o Outcome) Cracked() bool { return o.MaxError == 0 }

// Showdown scores the claims against the board. Equal hands share a rank
// window, so either order between them is correct.
func Showdown(board []Card, claims []Claim) Outcome {
	type scored struct {
		idx   int
		score Score
	}
	evals := make([]scored, len(claims))
	for i, c := range claims {
		evals[i] = scored{idx: i, score: Evaluate(board, c.Hand)}
	}

	byStrength := slices.Clone(evals)
	slices.SortStableFunc(byStrength, func(a, b scored) int { return b.score.Compare(a.score) })

	windows := make([][2]int, len(claims))
	rank := 1
	for i := 0; i < len(byStrength); {
		j := i
		for j < len(byStrength) && byStrength[j].score.Compare(byStrength[i].score) == 0 {
			j++
		}
		for k := i; k < j; k++ {
			windows[byStrength[k].idx] = [2]int{rank, rank + (j - i) - 1}
		}
		rank += j - i
		i = j
	}

	var out Outcome
	for i, c := range claims {
		guess := i + 1
		from, to := windows[i][0], windows[i][1]
		errAmt := 0
		if guess < from || guess > to {
			errAmt = min(abs(guess-from), abs(guess-to))
		}
		out.TotalError += errAmt
		out.MaxError = max(out.MaxError, errAmt)
		out.Placements = append(out.Placements, Placement{
			Name:      c.Name,
			Guess:     guess,
			TrueFrom:  from,
			TrueTo:    to,
			Error:     errAmt,
			HandClass: evals[i].score.Category,
		})
	}
	return out
}

var bucketLabels = [...]string{"Perfect", "Close", "Off", "Way off"}

// Summary renders the placements grouped by accuracy. Perfect placements
// share one line; every miss gets its own, closest misses first.
func (o Outcome) Summary() []string {
	var perfect []string
	misses := make([][]string, len(bucketLabels))
	for _, p := range o.Placements {
		if p.Error == 0 {
			perfect = append(perfect, fmt.Sprintf("%s (#%s %s)", p.Name, p.trueRank(), p.HandClass))
			continue
		}
		bucket := min(p.Error, 3)
		misses[bucket] = append(misses[bucket], fmt.Sprintf("%s: %s guessed #%d, true #%s (%s)",
			bucketLabels[bucket], p.Name, p.Guess, p.trueRank(), p.HandClass))
	}

	var lines []string
	if len(perfect) > 0 {
		lines = append(lines, bucketLabels[0]+": "+strings.Join(perfect, ", "))
	}
	for _, m := range misses[1:] {
		lines = append(lines, m...)
	}
	return lines
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
