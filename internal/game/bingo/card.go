// Package bingo implements the bingo card, win and draw rules.
package bingo

import (
	"math/rand"
	"sort"
)

const (
	// MinNumber and MaxNumber bound both card numbers and drawn numbers.
	MinNumber = 1
	MaxNumber = 100

	// GridSize is the side of the square card grid.
	GridSize = 5

	// CardSize is the number of distinct numbers on a card.
	CardSize = GridSize * GridSize
)

// GenerateCard derives a card from seed.
// The generator is local to the call, so concurrent callers cannot
// influence each other and the same seed always yields the same card.
// The result is sorted ascending; that order is also the grid order.
func GenerateCard(seed int64) []int {
	r := rand.New(rand.NewSource(seed))

	perm := r.Perm(MaxNumber - MinNumber + 1)
	card := make([]int, CardSize)
	for i := 0; i < CardSize; i++ {
		card[i] = perm[i] + MinNumber
	}
	sort.Ints(card)

	return card
}

// ValidSeed reports whether seed is a selectable number.
func ValidSeed(seed int) bool {
	return seed >= MinNumber && seed <= MaxNumber
}

// Grid lays card out row by row in the order given.
func Grid(card []int) [GridSize][GridSize]int {
	var grid [GridSize][GridSize]int
	for i := 0; i < CardSize && i < len(card); i++ {
		grid[i/GridSize][i%GridSize] = card[i]
	}
	return grid
}

// lines returns the index sets of every winning line:
// five rows, five columns, the main diagonal and the anti-diagonal.
func lines() [][GridSize]int {
	out := make([][GridSize]int, 0, 2*GridSize+2)

	for row := 0; row < GridSize; row++ {
		var line [GridSize]int
		for col := 0; col < GridSize; col++ {
			line[col] = row*GridSize + col
		}
		out = append(out, line)
	}

	for col := 0; col < GridSize; col++ {
		var line [GridSize]int
		for row := 0; row < GridSize; row++ {
			line[row] = row*GridSize + col
		}
		out = append(out, line)
	}

	var diag, anti [GridSize]int
	for i := 0; i < GridSize; i++ {
		diag[i] = i*GridSize + i
		anti[i] = i*GridSize + (GridSize - 1 - i)
	}
	out = append(out, diag, anti)

	return out
}

var winningLines = lines()

// WinningLine returns the numbers of the first completed line, or nil.
// Lines are checked rows first, then columns, then the two diagonals.
func WinningLine(card []int, drawn []int) []int {
	if len(card) != CardSize {
		return nil
	}

	called := make(map[int]struct{}, len(drawn))
	for _, n := range drawn {
		called[n] = struct{}{}
	}

	for _, line := range winningLines {
		complete := true
		for _, idx := range line {
			if _, ok := called[card[idx]]; !ok {
				complete = false
				break
			}
		}
		if complete {
			numbers := make([]int, GridSize)
			for i, idx := range line {
				numbers[i] = card[idx]
			}
			return numbers
		}
	}

	return nil
}

// EvaluateWin reports whether any row, column or diagonal of the card
// is entirely contained in drawn.
func EvaluateWin(card []int, drawn []int) bool {
	return WinningLine(card, drawn) != nil
}
