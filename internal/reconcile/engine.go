package reconcile

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"ticketsync/internal/arc4"
	"ticketsync/internal/model"
	"ticketsync/internal/storage"
)

// Outcome reports how a reconciliation step handled an event. Skips are
// routine: duplicates come from overlapping poll windows and from the
// API-driven mint path writing the same row first.
type Outcome int

const (
	OutcomeApplied Outcome = iota
	OutcomeSkippedDuplicate
	OutcomeSkippedNotFound
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeSkippedDuplicate:
		return "skipped duplicate"
	case OutcomeSkippedNotFound:
		return "skipped ticket not found"
	default:
		return "unknown"
	}
}

// ResolutionError reports a mint event whose created asset id could not be
// derived from either the inner asset-config transaction or the return log.
type ResolutionError struct {
	TxnID string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("mint txn %s: asset id not resolvable", e.TxnID)
}

// PaymentResolver resolves the payment leg of an atomic transaction group.
// A nil resolver disables price resolution (prices persist as zero).
type PaymentResolver interface {
	LookupGroupPayment(ctx context.Context, round uint64, groupID string) (uint64, bool, error)
}

// Engine derives domain effects from classified transactions and applies
// them to the store.
type Engine struct {
	appID    uint64
	custody  string
	store    storage.Store
	payments PaymentResolver
	logger   *zap.Logger
}

// NewEngine builds an Engine. custody is the wallet that owns freshly minted
// tickets (the contract's escrow address); when empty, the mint sender is
// recorded instead.
func NewEngine(appID uint64, custody string, store storage.Store, payments PaymentResolver, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		appID:    appID,
		custody:  custody,
		store:    store,
		payments: payments,
		logger:   logger,
	}
}

// Process runs one transaction through classify, decode, and reconcile.
// Malformed or unresolvable transactions are logged and skipped (nil error);
// only store failures propagate, so the scheduler can hold the cursor back
// and retry the window.
func (e *Engine) Process(ctx context.Context, txn model.RawTransaction) error {
	switch Classify(txn, e.appID) {
	case KindMint:
		event, err := e.DecodeMint(txn)
		if err != nil {
			e.logger.Warn("skipping malformed mint",
				zap.String("txn_id", txn.ID),
				zap.Uint64("round", txn.ConfirmedRound),
				zap.Error(err),
			)
			return nil
		}
		outcome, err := e.ReconcileMint(ctx, event)
		if err != nil {
			return err
		}
		e.logger.Info("mint reconciled",
			zap.Uint64("asa_id", event.CreatedAssetID),
			zap.String("seat", event.SeatNumber),
			zap.String("outcome", outcome.String()),
		)

	case KindTransfer:
		event, err := e.DecodeTransfer(txn)
		if err != nil {
			e.logger.Warn("skipping malformed transfer",
				zap.String("txn_id", txn.ID),
				zap.Uint64("round", txn.ConfirmedRound),
				zap.Error(err),
			)
			return nil
		}
		outcome, err := e.ReconcileTransfer(ctx, event)
		if err != nil {
			return err
		}
		e.logger.Info("transfer reconciled",
			zap.Uint64("asa_id", event.AssetID),
			zap.String("buyer", event.Buyer),
			zap.String("outcome", outcome.String()),
		)
	}
	return nil
}

// DecodeMint extracts the typed fields of a mint_ticket call and resolves
// the created asset id.
func (e *Engine) DecodeMint(txn model.RawTransaction) (model.DecodedMintEvent, error) {
	args := txn.AppArgs()
	if len(args) < 3 {
		return model.DecodedMintEvent{}, &arc4.DecodeError{
			Field:  "mint args",
			Reason: fmt.Sprintf("expected 3 arguments, got %d", len(args)),
		}
	}

	price, err := arc4.DecodeUint64(args[1])
	if err != nil {
		return model.DecodedMintEvent{}, err
	}
	seat, err := arc4.DecodeString(args[2])
	if err != nil {
		return model.DecodedMintEvent{}, err
	}

	asaID, ok := resolveAssetID(txn)
	if !ok {
		return model.DecodedMintEvent{}, &ResolutionError{TxnID: txn.ID}
	}

	return model.DecodedMintEvent{
		CreatedAssetID: asaID,
		TicketPrice:    price,
		SeatNumber:     seat,
		Sender:         txn.Sender,
		TxnID:          txn.ID,
		ConfirmedRound: txn.ConfirmedRound,
	}, nil
}

// resolveAssetID tries the inner asset-config transaction first, then the
// ARC-4 return log. Unresolvable mints are dropped by the caller; they are
// never assumed to be zero.
func resolveAssetID(txn model.RawTransaction) (uint64, bool) {
	for _, inner := range txn.InnerTxns {
		if inner.TxType != model.TxTypeAssetConfig {
			continue
		}
		if inner.CreatedAssetIndex != 0 {
			return inner.CreatedAssetIndex, true
		}
		if inner.AssetConfig != nil && inner.AssetConfig.AssetID != 0 {
			return inner.AssetConfig.AssetID, true
		}
	}

	if len(txn.Logs) > 0 {
		if asaID, err := arc4.DecodeReturnLog(txn.Logs[len(txn.Logs)-1]); err == nil {
			return asaID, true
		}
	}
	return 0, false
}

// DecodeTransfer extracts the typed fields of a transfer_ticket call. The
// buyer is the caller of the method.
func (e *Engine) DecodeTransfer(txn model.RawTransaction) (model.DecodedTransferEvent, error) {
	args := txn.AppArgs()
	if len(args) < 2 {
		return model.DecodedTransferEvent{}, &arc4.DecodeError{
			Field:  "transfer args",
			Reason: fmt.Sprintf("expected 2 arguments, got %d", len(args)),
		}
	}

	asaID, err := arc4.DecodeUint64(args[1])
	if err != nil {
		return model.DecodedTransferEvent{}, err
	}

	return model.DecodedTransferEvent{
		AssetID:        asaID,
		Buyer:          txn.Sender,
		TxnID:          txn.ID,
		ConfirmedRound: txn.ConfirmedRound,
		Group:          txn.Group,
	}, nil
}

// ReconcileMint inserts the ticket row unless one already exists for the
// asset id. The duplicate case is expected whenever the API mint path got
// there first or the same chain event is observed twice.
func (e *Engine) ReconcileMint(ctx context.Context, event model.DecodedMintEvent) (Outcome, error) {
	owner := e.custody
	if owner == "" {
		owner = event.Sender
	}

	inserted, err := e.store.InsertTicketIfAbsent(ctx, model.Ticket{
		ASAID:       event.CreatedAssetID,
		SeatNumber:  event.SeatNumber,
		TicketPrice: event.TicketPrice,
		Status:      model.TicketMinted,
		OwnerWallet: owner,
		TxnID:       event.TxnID,
	})
	if err != nil {
		return 0, fmt.Errorf("insert ticket asa %d: %w", event.CreatedAssetID, err)
	}
	if !inserted {
		return OutcomeSkippedDuplicate, nil
	}
	return OutcomeApplied, nil
}

// ReconcileTransfer appends a transfer row and moves ownership. A missing
// ticket is skipped with a warning: the indexer's pagination does not
// guarantee the mint was observed first, and escalating would stall the
// whole window.
func (e *Engine) ReconcileTransfer(ctx context.Context, event model.DecodedTransferEvent) (Outcome, error) {
	price := e.resolvePrice(ctx, event)

	result, err := e.store.ApplyTransfer(ctx, event.AssetID, event.Buyer, price, event.TxnID)
	if err != nil {
		return 0, fmt.Errorf("apply transfer asa %d: %w", event.AssetID, err)
	}
	switch result {
	case storage.TransferTicketNotFound:
		e.logger.Warn("transfer for unknown ticket",
			zap.Uint64("asa_id", event.AssetID),
			zap.String("txn_id", event.TxnID),
		)
		return OutcomeSkippedNotFound, nil
	case storage.TransferDuplicate:
		return OutcomeSkippedDuplicate, nil
	default:
		return OutcomeApplied, nil
	}
}

// resolvePrice looks up the atomic group's payment leg. Best effort: any
// failure degrades to a zero price rather than blocking the transfer.
func (e *Engine) resolvePrice(ctx context.Context, event model.DecodedTransferEvent) uint64 {
	if e.payments == nil || event.Group == "" {
		return 0
	}
	amount, found, err := e.payments.LookupGroupPayment(ctx, event.ConfirmedRound, event.Group)
	if err != nil {
		e.logger.Warn("payment lookup failed",
			zap.String("txn_id", event.TxnID),
			zap.Error(err),
		)
		return 0
	}
	if !found {
		return 0
	}
	return amount
}

// IsResolutionError reports whether err is a dropped-mint resolution
// failure.
func IsResolutionError(err error) bool {
	var resErr *ResolutionError
	return errors.As(err, &resErr)
}
