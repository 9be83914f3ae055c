package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ExerciseState is the lifecycle of a held option position.
type ExerciseState uint8

const (
	Unexercisable ExerciseState = iota
	Exercisable
	Exercised
)

func (s ExerciseState) String() string {
	switch s {
	case Exercisable:
		return "exercisable"
	case Exercised:
		return "exercised"
	default:
		return "unexercisable"
	}
}

// StateAt derives the state of a position. Exercised is terminal; a
// position becomes exercisable once expired with a positive payoff.
func StateAt(terms OptionTerms, now time.Time, profit *big.Int, exercised bool) ExerciseState {
	switch {
	case exercised:
		return Exercised
	case terms.Expired(now) && profit != nil && profit.Sign() > 0:
		return Exercisable
	default:
		return Unexercisable
	}
}

// Position is an option holding. SecondaryID distinguishes positions of
// protocols that issue non-fungible options; it is 0 for fungible tokens.
type Position struct {
	Holder      common.Address
	Token       common.Address
	SecondaryID uint64
	Amount      *big.Int
}
