package bingo

import "github.com/shopspring/decimal"

// Pool returns the gross prize pool of a round.
func Pool(bet int64, players int) int64 {
	return bet * int64(players)
}

// Payout returns floor(pool × (1 − houseCut)).
func Payout(pool int64, houseCut decimal.Decimal) int64 {
	keep := decimal.NewFromInt(1).Sub(houseCut)
	return decimal.NewFromInt(pool).Mul(keep).Floor().IntPart()
}
