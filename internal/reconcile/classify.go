// Package reconcile classifies confirmed transactions and applies the
// resulting mint and transfer events to the local store, idempotently.
package reconcile

import (
	"ticketsync/internal/arc4"
	"ticketsync/internal/model"
)

// Kind is the classification of a raw transaction.
type Kind int

const (
	KindIgnored Kind = iota
	KindMint
	KindTransfer
)

func (k Kind) String() string {
	switch k {
	case KindMint:
		return "mint"
	case KindTransfer:
		return "transfer"
	default:
		return "ignored"
	}
}

// Classify categorizes a transaction. It is total: any shape that is not an
// application call against appID with a recognized first-argument selector
// comes back as KindIgnored, never as an error.
func Classify(txn model.RawTransaction, appID uint64) Kind {
	if txn.TxType != model.TxTypeApplication {
		return KindIgnored
	}
	if txn.Application == nil || txn.Application.ApplicationID != appID {
		return KindIgnored
	}
	args := txn.Application.ApplicationArgs
	if len(args) == 0 {
		return KindIgnored
	}

	selector, err := arc4.DecodeSelector(args[0])
	if err != nil {
		return KindIgnored
	}
	switch selector {
	case arc4.SelectorMint:
		return KindMint
	case arc4.SelectorTransfer:
		return KindTransfer
	default:
		return KindIgnored
	}
}
