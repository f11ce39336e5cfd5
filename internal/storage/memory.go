package storage

import (
	"context"
	"sync"
	"time"

	"ticketsync/internal/model"
)

// MemoryStore is a Store backed by process memory. One mutex spans every
// operation, which gives each call the same atomicity the Postgres store
// gets from a transaction.
type MemoryStore struct {
	mu        sync.Mutex
	tickets   map[uint64]model.Ticket
	transfers map[uint64][]model.Transfer
	cursors   map[string]uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tickets:   make(map[uint64]model.Ticket),
		transfers: make(map[uint64][]model.Transfer),
		cursors:   make(map[string]uint64),
	}
}

func (s *MemoryStore) GetTicketByASA(ctx context.Context, asaID uint64) (model.Ticket, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[asaID]
	return ticket, ok, nil
}

func (s *MemoryStore) InsertTicketIfAbsent(ctx context.Context, ticket model.Ticket) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tickets[ticket.ASAID]; exists {
		return false, nil
	}
	if ticket.MintedAt.IsZero() {
		ticket.MintedAt = time.Now().UTC()
	}
	s.tickets[ticket.ASAID] = ticket
	return true, nil
}

func (s *MemoryStore) ApplyTransfer(ctx context.Context, asaID uint64, toWallet string, price uint64, txnID string) (TransferResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets[asaID]
	if !ok {
		return TransferTicketNotFound, nil
	}
	for _, tr := range s.transfers[asaID] {
		if tr.TxnID == txnID {
			return TransferDuplicate, nil
		}
	}

	s.transfers[asaID] = append(s.transfers[asaID], model.Transfer{
		ASAID:      asaID,
		FromWallet: ticket.OwnerWallet,
		ToWallet:   toWallet,
		Price:      price,
		TxnID:      txnID,
		CreatedAt:  time.Now().UTC(),
	})
	ticket.OwnerWallet = toWallet
	ticket.Status = model.TicketTransferred
	s.tickets[asaID] = ticket
	return TransferApplied, nil
}

func (s *MemoryStore) ListTransfers(ctx context.Context, asaID uint64) ([]model.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Transfer, len(s.transfers[asaID]))
	copy(out, s.transfers[asaID])
	return out, nil
}

// LoadCursor and SaveCursor let the MemoryStore double as a CursorStore in
// tests and DSN-less runs.
func (s *MemoryStore) LoadCursor(ctx context.Context, name string) (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	round, ok := s.cursors[name]
	return round, ok, nil
}

func (s *MemoryStore) SaveCursor(ctx context.Context, name string, round uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[name] = round
	return nil
}
