package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// EventType names what happened.
type EventType string

const (
	EventPurchased    EventType = "purchased"
	EventExercised    EventType = "exercised"
	EventShortCreated EventType = "short_created"
)

// Event records a completed adapter operation.
//
// Amount is the option quantity and Value the native or collateral amount
// that moved with it: the premium paid, the profit received, or the
// collateral posted.
type Event struct {
	ID       uuid.UUID
	Type     EventType
	Protocol string
	Caller   common.Address
	Token    common.Address
	OptionID uint64
	Amount   *big.Int
	Value    *big.Int
	VaultID  VaultID
	At       time.Time
}

// NewPurchased records a purchase of amount tokens for premium.
func NewPurchased(protocol string, caller, token common.Address, amount, premium *big.Int, at time.Time) Event {
	return Event{
		ID:       uuid.New(),
		Type:     EventPurchased,
		Protocol: protocol,
		Caller:   caller,
		Token:    token,
		Amount:   amount,
		Value:    premium,
		At:       at,
	}
}

// NewExercised records an exercise of amount tokens paying profit.
func NewExercised(protocol string, caller, token common.Address, optionID uint64, amount, profit *big.Int, at time.Time) Event {
	return Event{
		ID:       uuid.New(),
		Type:     EventExercised,
		Protocol: protocol,
		Caller:   caller,
		Token:    token,
		OptionID: optionID,
		Amount:   amount,
		Value:    profit,
		At:       at,
	}
}

// NewShortCreated records a short backed by vault.
func NewShortCreated(protocol string, caller common.Address, vault Vault, at time.Time) Event {
	return Event{
		ID:       uuid.New(),
		Type:     EventShortCreated,
		Protocol: protocol,
		Caller:   caller,
		Token:    vault.Token,
		Amount:   vault.MintedAmount,
		Value:    vault.CollateralAmount,
		VaultID:  vault.ID,
		At:       at,
	}
}
