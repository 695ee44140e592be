package bingo

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"
)

// TestGenerateCardProperty checks that every seed yields a stable, sorted card
// of distinct in-range numbers.
func TestGenerateCardProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seed := rapid.Int64().Draw(t, "seed")

		card := GenerateCard(seed)
		again := GenerateCard(seed)

		if len(card) != CardSize {
			t.Fatalf("card has %d numbers", len(card))
		}

		seen := make(map[int]bool, CardSize)
		for i, n := range card {
			if n != again[i] {
				t.Fatalf("seed %d produced different cards", seed)
			}
			if n < MinNumber || n > MaxNumber {
				t.Fatalf("number %d out of range", n)
			}
			if seen[n] {
				t.Fatalf("duplicate number %d", n)
			}
			if i > 0 && card[i-1] > n {
				t.Fatalf("card not sorted at %d", i)
			}
			seen[n] = true
		}
	})
}

// TestCompletedLineWinsProperty draws a full row or column plus noise and
// expects a win.
func TestCompletedLineWinsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		card := GenerateCard(rapid.Int64().Draw(t, "seed"))
		line := winningLines[rapid.IntRange(0, len(winningLines)-1).Draw(t, "line")]

		drawn := rapid.SliceOfDistinct(rapid.IntRange(MinNumber, MaxNumber), func(n int) int { return n }).
			Draw(t, "noise")
		for _, idx := range line {
			drawn = append(drawn, card[idx])
		}

		if !EvaluateWin(card, drawn) {
			t.Fatalf("line %v drawn but no win", line)
		}
	})
}

// TestFewerThanFiveMarksNeverWinsProperty: a line needs five marked cells.
func TestFewerThanFiveMarksNeverWinsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		card := GenerateCard(rapid.Int64().Draw(t, "seed"))

		onCard := make(map[int]bool, CardSize)
		for _, n := range card {
			onCard[n] = true
		}

		var drawn []int
		for n := MinNumber; n <= MaxNumber; n++ {
			if !onCard[n] {
				drawn = append(drawn, n)
			}
		}
		marks := rapid.IntRange(0, GridSize-1).Draw(t, "marks")
		drawn = append(drawn, card[:marks]...)

		if EvaluateWin(card, drawn) {
			t.Fatalf("won with only %d marks", marks)
		}
	})
}

// TestDrawNeverRepeatsProperty draws a random number of times and checks
// uniqueness.
func TestDrawNeverRepeatsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := rand.New(rand.NewSource(rapid.Int64().Draw(t, "seed")))
		calls := rapid.IntRange(1, MaxNumber).Draw(t, "calls")

		seen := make(map[int]bool, calls)
		var drawn []int
		for i := 0; i < calls; i++ {
			n, err := Draw(drawn, r)
			if err != nil {
				t.Fatalf("draw %d failed: %v", i+1, err)
			}
			if seen[n] {
				t.Fatalf("number %d drawn twice", n)
			}
			seen[n] = true
			drawn = append(drawn, n)
		}
	})
}

// TestPayoutProperty compares the decimal payout with integer arithmetic for
// a two percent cut.
func TestPayoutProperty(t *testing.T) {
	cut := decimal.RequireFromString("0.02")

	rapid.Check(t, func(t *rapid.T) {
		bet := rapid.Int64Range(1, 10000).Draw(t, "bet")
		players := rapid.IntRange(2, 500).Draw(t, "players")

		pool := Pool(bet, players)
		got := Payout(pool, cut)
		want := pool * 98 / 100

		if got != want {
			t.Fatalf("Payout(%d) = %d, want %d", pool, got, want)
		}
		if got > pool || got < 0 {
			t.Fatalf("payout %d outside [0, %d]", got, pool)
		}
	})
}
