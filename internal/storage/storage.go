// Package storage defines the transactional gateway the reconciliation
// engine writes through, with an in-memory implementation for tests and
// DSN-less runs. The Postgres implementation lives in the postgres subpackage.
package storage

import (
	"context"

	"ticketsync/internal/model"
)

// TransferResult is the outcome of ApplyTransfer.
type TransferResult int

const (
	TransferApplied TransferResult = iota
	TransferDuplicate
	TransferTicketNotFound
)

func (r TransferResult) String() string {
	switch r {
	case TransferApplied:
		return "applied"
	case TransferDuplicate:
		return "duplicate"
	case TransferTicketNotFound:
		return "ticket not found"
	default:
		return "unknown"
	}
}

// Store is transactional read/write access to the ticket read model.
//
// InsertTicketIfAbsent and ApplyTransfer are each a single atomic unit: the
// duplicate check and the write happen inside one transaction so that two
// concurrent writers (the sync loop and the API-driven mint path) cannot
// double-apply the same event.
type Store interface {
	// GetTicketByASA returns the ticket for the asset id; false when absent.
	GetTicketByASA(ctx context.Context, asaID uint64) (model.Ticket, bool, error)

	// InsertTicketIfAbsent inserts the ticket unless a row with the same
	// asset id exists. Returns true when a row was inserted.
	InsertTicketIfAbsent(ctx context.Context, ticket model.Ticket) (bool, error)

	// ApplyTransfer atomically appends a Transfer row (from = the ticket's
	// current owner) and moves ownership to toWallet, setting the ticket
	// status to transferred. A transfer with an already-recorded transaction
	// id is reported as duplicate and leaves state untouched.
	ApplyTransfer(ctx context.Context, asaID uint64, toWallet string, price uint64, txnID string) (TransferResult, error)

	// ListTransfers returns the append-only transfer log for a ticket in
	// insertion order.
	ListTransfers(ctx context.Context, asaID uint64) ([]model.Transfer, error)
}
