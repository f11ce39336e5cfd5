package model

// DecodedMintEvent is a mint_ticket application call with its typed fields
// extracted and the created asset id resolved.
type DecodedMintEvent struct {
	CreatedAssetID uint64
	TicketPrice    uint64
	SeatNumber     string
	Sender         string
	TxnID          string
	ConfirmedRound uint64
}

// DecodedTransferEvent is a transfer_ticket application call. Price is the
// amount of the atomic group's payment leg when it could be resolved, zero
// otherwise.
type DecodedTransferEvent struct {
	AssetID        uint64
	Buyer          string
	TxnID          string
	ConfirmedRound uint64
	Group          string
	Price          uint64
}
