// Package bank is the native-balance book the ledger runs on top of. It plays
// the execution host: it reports balances and moves funds atomically or not
// at all.
package bank

import (
	"errors"
)

var (
	ErrInsufficientFunds = errors.New("bank: insufficient funds")
	ErrOverflow          = errors.New("bank: balance overflow")
	ErrContention        = errors.New("bank: too much contention, transfer not applied")
)
