// Package postgres implements the storage gateway on pgx. The store
// bootstraps its own schema on open and also persists the sync cursor, so a
// single DSN is all the daemon needs.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ticketsync/internal/model"
	"ticketsync/internal/storage"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS tickets (
	asa_id               BIGINT PRIMARY KEY,
	seat_number          TEXT NOT NULL,
	ticket_price         BIGINT NOT NULL DEFAULT 0,
	status               TEXT NOT NULL DEFAULT 'minted',
	current_owner_wallet TEXT NOT NULL,
	txn_id               TEXT,
	minted_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS transfers (
	id          BIGSERIAL PRIMARY KEY,
	asa_id      BIGINT NOT NULL REFERENCES tickets (asa_id),
	from_wallet TEXT NOT NULL,
	to_wallet   TEXT NOT NULL,
	price       BIGINT NOT NULL DEFAULT 0,
	txn_id      TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (asa_id, txn_id)
);

CREATE TABLE IF NOT EXISTS sync_state (
	name                 TEXT PRIMARY KEY,
	last_processed_round BIGINT NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for tickets, transfers, and the sync
// cursor.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	store := &Store{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaSQL)
	return err
}

func (s *Store) GetTicketByASA(ctx context.Context, asaID uint64) (model.Ticket, bool, error) {
	var ticket model.Ticket
	var status string
	row := s.pool.QueryRow(ctx, `
		SELECT asa_id, seat_number, ticket_price, status, current_owner_wallet, COALESCE(txn_id, ''), minted_at
		FROM tickets WHERE asa_id = $1
	`, int64(asaID))
	err := row.Scan(&ticket.ASAID, &ticket.SeatNumber, &ticket.TicketPrice, &status, &ticket.OwnerWallet, &ticket.TxnID, &ticket.MintedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Ticket{}, false, nil
		}
		return model.Ticket{}, false, err
	}
	ticket.Status = model.TicketStatus(status)
	return ticket, true, nil
}

// InsertTicketIfAbsent relies on the asa_id primary key: ON CONFLICT DO
// NOTHING makes the check-then-insert a single atomic statement.
func (s *Store) InsertTicketIfAbsent(ctx context.Context, ticket model.Ticket) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO tickets (asa_id, seat_number, ticket_price, status, current_owner_wallet, txn_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (asa_id) DO NOTHING
	`,
		int64(ticket.ASAID),
		ticket.SeatNumber,
		int64(ticket.TicketPrice),
		string(ticket.Status),
		ticket.OwnerWallet,
		ticket.TxnID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) ApplyTransfer(ctx context.Context, asaID uint64, toWallet string, price uint64, txnID string) (storage.TransferResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var owner string
	row := tx.QueryRow(ctx, `SELECT current_owner_wallet FROM tickets WHERE asa_id = $1 FOR UPDATE`, int64(asaID))
	if err := row.Scan(&owner); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.TransferTicketNotFound, nil
		}
		return 0, err
	}

	var duplicate bool
	row = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM transfers WHERE asa_id = $1 AND txn_id = $2)`, int64(asaID), txnID)
	if err := row.Scan(&duplicate); err != nil {
		return 0, err
	}
	if duplicate {
		return storage.TransferDuplicate, nil
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO transfers (asa_id, from_wallet, to_wallet, price, txn_id)
		VALUES ($1, $2, $3, $4, $5)
	`, int64(asaID), owner, toWallet, int64(price), txnID); err != nil {
		return 0, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE tickets SET current_owner_wallet = $2, status = $3 WHERE asa_id = $1
	`, int64(asaID), toWallet, string(model.TicketTransferred)); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return storage.TransferApplied, nil
}

func (s *Store) ListTransfers(ctx context.Context, asaID uint64) ([]model.Transfer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT asa_id, from_wallet, to_wallet, price, txn_id, created_at
		FROM transfers WHERE asa_id = $1 ORDER BY id
	`, int64(asaID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Transfer
	for rows.Next() {
		var tr model.Transfer
		if err := rows.Scan(&tr.ASAID, &tr.FromWallet, &tr.ToWallet, &tr.Price, &tr.TxnID, &tr.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

// LoadCursor returns the persisted last-processed round for a name.
func (s *Store) LoadCursor(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("cursor name required")
	}
	var round int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_round FROM sync_state WHERE name = $1`, name)
	if err := row.Scan(&round); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(round), true, nil
}

// SaveCursor upserts the last-processed round for a name.
func (s *Store) SaveCursor(ctx context.Context, name string, round uint64) error {
	if name == "" {
		return fmt.Errorf("cursor name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_state (name, last_processed_round, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_round = EXCLUDED.last_processed_round, updated_at = now()
	`, name, int64(round))
	return err
}
