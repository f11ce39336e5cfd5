package model

import "time"

// TicketStatus is the lifecycle state of a ticket row.
type TicketStatus string

const (
	TicketMinted      TicketStatus = "minted"
	TicketSold        TicketStatus = "sold"
	TicketTransferred TicketStatus = "transferred"
	TicketUsed        TicketStatus = "used"
	TicketCancelled   TicketStatus = "cancelled"
)

// Ticket is the mutable current-state projection of one on-chain ticket
// asset. ASAID is globally unique and immutable after creation; the sync
// engine mutates only owner and status after the initial insert.
type Ticket struct {
	ASAID       uint64
	SeatNumber  string
	TicketPrice uint64
	Status      TicketStatus
	OwnerWallet string
	TxnID       string
	MintedAt    time.Time
}

// Transfer is one row of the append-only ownership event log. Immutable once
// written; (ASAID, TxnID) identifies the on-chain transfer it records.
type Transfer struct {
	ASAID      uint64
	FromWallet string
	ToWallet   string
	Price      uint64
	TxnID      string
	CreatedAt  time.Time
}
