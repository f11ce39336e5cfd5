package model

// Transaction type tags as reported by the indexer.
const (
	TxTypeApplication = "appl"
	TxTypePayment     = "pay"
	TxTypeAssetConfig = "acfg"
)

// RawTransaction is a confirmed transaction record as returned by the
// Algorand Indexer search API. Byte-blob fields (application args, logs)
// arrive base64-encoded and decode into []byte directly. Inner transactions
// nest one level, matching what the sync pipeline consumes.
type RawTransaction struct {
	ID                string                  `json:"id"`
	TxType            string                  `json:"tx-type"`
	Sender            string                  `json:"sender"`
	ConfirmedRound    uint64                  `json:"confirmed-round"`
	Group             string                  `json:"group,omitempty"`
	CreatedAssetIndex uint64                  `json:"created-asset-index,omitempty"`
	Application       *ApplicationTransaction `json:"application-transaction,omitempty"`
	Payment           *PaymentTransaction     `json:"payment-transaction,omitempty"`
	AssetConfig       *AssetConfigTransaction `json:"asset-config-transaction,omitempty"`
	Logs              [][]byte                `json:"logs,omitempty"`
	InnerTxns         []RawTransaction        `json:"inner-txns,omitempty"`
}

// ApplicationTransaction holds the application-call fields of a transaction.
type ApplicationTransaction struct {
	ApplicationID   uint64   `json:"application-id"`
	ApplicationArgs [][]byte `json:"application-args,omitempty"`
}

// PaymentTransaction holds the payment fields of a transaction.
type PaymentTransaction struct {
	Amount   uint64 `json:"amount"`
	Receiver string `json:"receiver"`
}

// AssetConfigTransaction holds the asset-config fields of a transaction.
type AssetConfigTransaction struct {
	AssetID uint64 `json:"asset-id,omitempty"`
}

// AppArgs returns the application-call arguments, or nil for
// non-application transactions.
func (t RawTransaction) AppArgs() [][]byte {
	if t.Application == nil {
		return nil
	}
	return t.Application.ApplicationArgs
}
