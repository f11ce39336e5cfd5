package reconcile

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"ticketsync/internal/arc4"
	"ticketsync/internal/model"
	"ticketsync/internal/storage"
)

const custodyAddr = "CUSTODY777AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

type fixedPayments struct {
	amount uint64
	found  bool
	err    error
}

func (p *fixedPayments) LookupGroupPayment(ctx context.Context, round uint64, groupID string) (uint64, bool, error) {
	return p.amount, p.found, p.err
}

func newTestEngine(t *testing.T, payments PaymentResolver) (*Engine, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	return NewEngine(testAppID, custodyAddr, store, payments, zap.NewNop()), store
}

func mintTxn(asaID uint64, price uint64, seat string) model.RawTransaction {
	txn := appCall(testAppID, arc4.MintSelector[:], arc4.EncodeUint64(price), arc4.EncodeString(seat))
	txn.ID = "MINTTXN"
	txn.Sender = "MINTER"
	txn.ConfirmedRound = 10
	txn.InnerTxns = []model.RawTransaction{{
		TxType:            model.TxTypeAssetConfig,
		CreatedAssetIndex: asaID,
	}}
	return txn
}

func transferTxn(asaID uint64, buyer, txnID string) model.RawTransaction {
	txn := appCall(testAppID, arc4.TransferSelector[:], arc4.EncodeUint64(asaID))
	txn.ID = txnID
	txn.Sender = buyer
	txn.ConfirmedRound = 11
	return txn
}

func TestDecodeMintScenario(t *testing.T) {
	engine, _ := newTestEngine(t, nil)

	event, err := engine.DecodeMint(mintTxn(555, 100, "VIP-1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.CreatedAssetID != 555 || event.TicketPrice != 100 || event.SeatNumber != "VIP-1" {
		t.Fatalf("decoded event mismatch: %+v", event)
	}
	if event.Sender != "MINTER" || event.ConfirmedRound != 10 {
		t.Fatalf("metadata mismatch: %+v", event)
	}
}

func TestDecodeMintAssetIDFromReturnLog(t *testing.T) {
	engine, _ := newTestEngine(t, nil)

	txn := appCall(testAppID, arc4.MintSelector[:], arc4.EncodeUint64(100), arc4.EncodeString("A-1"))
	txn.ID = "LOGMINT"
	txn.Logs = [][]byte{arc4.EncodeReturnLog(808)}

	event, err := engine.DecodeMint(txn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.CreatedAssetID != 808 {
		t.Fatalf("expected asa 808 from return log, got %d", event.CreatedAssetID)
	}
}

func TestDecodeMintUnresolvable(t *testing.T) {
	engine, _ := newTestEngine(t, nil)

	txn := appCall(testAppID, arc4.MintSelector[:], arc4.EncodeUint64(100), arc4.EncodeString("A-1"))
	txn.ID = "NOASA"

	_, err := engine.DecodeMint(txn)
	if err == nil {
		t.Fatalf("expected resolution error")
	}
	if !IsResolutionError(err) {
		t.Fatalf("expected *ResolutionError, got %T", err)
	}
}

func TestDecodeMintMalformedArgs(t *testing.T) {
	engine, _ := newTestEngine(t, nil)

	txn := appCall(testAppID, arc4.MintSelector[:], []byte{0x01})
	txn.InnerTxns = []model.RawTransaction{{TxType: model.TxTypeAssetConfig, CreatedAssetIndex: 1}}

	_, err := engine.DecodeMint(txn)
	var decodeErr *arc4.DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected *DecodeError, got %v", err)
	}
}

func TestReconcileMintScenario(t *testing.T) {
	engine, store := newTestEngine(t, nil)
	ctx := context.Background()

	if err := engine.Process(ctx, mintTxn(555, 100, "VIP-1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ticket, ok, err := store.GetTicketByASA(ctx, 555)
	if err != nil || !ok {
		t.Fatalf("ticket not stored: %v", err)
	}
	if ticket.TicketPrice != 100 || ticket.SeatNumber != "VIP-1" || ticket.Status != model.TicketMinted {
		t.Fatalf("ticket mismatch: %+v", ticket)
	}
	if ticket.OwnerWallet != custodyAddr {
		t.Fatalf("minted ticket must be escrowed to custody, got %s", ticket.OwnerWallet)
	}
}

func TestReconcileMintIdempotent(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	event, err := engine.DecodeMint(mintTxn(555, 100, "VIP-1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	outcome, err := engine.ReconcileMint(ctx, event)
	if err != nil || outcome != OutcomeApplied {
		t.Fatalf("first mint: outcome %v err %v", outcome, err)
	}

	outcome, err = engine.ReconcileMint(ctx, event)
	if err != nil || outcome != OutcomeSkippedDuplicate {
		t.Fatalf("second mint: outcome %v err %v", outcome, err)
	}
}

func TestReconcileTransferTicketNotFound(t *testing.T) {
	engine, store := newTestEngine(t, nil)
	ctx := context.Background()

	event, err := engine.DecodeTransfer(transferTxn(555, "BUYERAAA", "XFER1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	outcome, err := engine.ReconcileTransfer(ctx, event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeSkippedNotFound {
		t.Fatalf("expected skipped not found, got %v", outcome)
	}

	transfers, err := store.ListTransfers(ctx, 555)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(transfers) != 0 {
		t.Fatalf("no transfer row must be written, got %d", len(transfers))
	}
}

func TestReconcileTransferIdempotent(t *testing.T) {
	engine, store := newTestEngine(t, nil)
	ctx := context.Background()

	if err := engine.Process(ctx, mintTxn(555, 100, "VIP-1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	event, err := engine.DecodeTransfer(transferTxn(555, "BUYERAAA", "XFER1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	outcome, err := engine.ReconcileTransfer(ctx, event)
	if err != nil || outcome != OutcomeApplied {
		t.Fatalf("first transfer: outcome %v err %v", outcome, err)
	}
	outcome, err = engine.ReconcileTransfer(ctx, event)
	if err != nil || outcome != OutcomeSkippedDuplicate {
		t.Fatalf("second transfer: outcome %v err %v", outcome, err)
	}

	transfers, err := store.ListTransfers(ctx, 555)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(transfers) != 1 {
		t.Fatalf("expected exactly one transfer row, got %d", len(transfers))
	}
	if transfers[0].FromWallet != custodyAddr || transfers[0].ToWallet != "BUYERAAA" {
		t.Fatalf("transfer endpoints mismatch: %+v", transfers[0])
	}

	ticket, _, err := store.GetTicketByASA(ctx, 555)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ticket.OwnerWallet != "BUYERAAA" || ticket.Status != model.TicketTransferred {
		t.Fatalf("ticket not updated: %+v", ticket)
	}
}

func TestReconcileTransferResolvesPrice(t *testing.T) {
	engine, store := newTestEngine(t, &fixedPayments{amount: 2500, found: true})
	ctx := context.Background()

	if err := engine.Process(ctx, mintTxn(555, 100, "VIP-1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	txn := transferTxn(555, "BUYERAAA", "XFER1")
	txn.Group = "grp=="
	event, err := engine.DecodeTransfer(txn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := engine.ReconcileTransfer(ctx, event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	transfers, err := store.ListTransfers(ctx, 555)
	if err != nil || len(transfers) != 1 {
		t.Fatalf("expected one transfer: %v", err)
	}
	if transfers[0].Price != 2500 {
		t.Fatalf("expected resolved price 2500, got %d", transfers[0].Price)
	}
}

func TestReconcileTransferPriceLookupFailureDegradesToZero(t *testing.T) {
	engine, store := newTestEngine(t, &fixedPayments{err: errors.New("indexer down")})
	ctx := context.Background()

	if err := engine.Process(ctx, mintTxn(555, 100, "VIP-1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	txn := transferTxn(555, "BUYERAAA", "XFER1")
	txn.Group = "grp=="
	event, err := engine.DecodeTransfer(txn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	outcome, err := engine.ReconcileTransfer(ctx, event)
	if err != nil || outcome != OutcomeApplied {
		t.Fatalf("lookup failure must not block transfer: outcome %v err %v", outcome, err)
	}

	transfers, _ := store.ListTransfers(ctx, 555)
	if len(transfers) != 1 || transfers[0].Price != 0 {
		t.Fatalf("expected zero price fallback, got %+v", transfers)
	}
}

func TestProcessSkipsMalformedTransaction(t *testing.T) {
	engine, store := newTestEngine(t, nil)
	ctx := context.Background()

	// Mint with an undecodable price arg: logged and skipped, not an error.
	txn := appCall(testAppID, arc4.MintSelector[:], []byte{0x01}, arc4.EncodeString("A-1"))
	txn.ID = "BADMINT"
	if err := engine.Process(ctx, txn); err != nil {
		t.Fatalf("malformed transaction must not abort the batch: %v", err)
	}

	if _, ok, _ := store.GetTicketByASA(ctx, 0); ok {
		t.Fatalf("no ticket row expected")
	}
}

func TestProcessIgnoresForeignTransactions(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	txn := model.RawTransaction{ID: "PAY", TxType: model.TxTypePayment}
	if err := engine.Process(ctx, txn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
