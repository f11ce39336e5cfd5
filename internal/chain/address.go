package chain

import (
	"crypto/sha512"
	"encoding/base32"
	"encoding/binary"
)

var addressEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

const addressChecksumLen = 4

// AppAddress derives the escrow address of an application: the SHA-512/256
// digest of "appID" followed by the big-endian application id, rendered as a
// standard Algorand address (base32 of digest plus 4-byte checksum).
func AppAddress(appID uint64) string {
	input := make([]byte, 0, 13)
	input = append(input, "appID"...)
	input = binary.BigEndian.AppendUint64(input, appID)
	digest := sha512.Sum512_256(input)
	return encodeAddress(digest[:])
}

func encodeAddress(publicKey []byte) string {
	checksum := sha512.Sum512_256(publicKey)
	full := make([]byte, 0, len(publicKey)+addressChecksumLen)
	full = append(full, publicKey...)
	full = append(full, checksum[len(checksum)-addressChecksumLen:]...)
	return addressEncoding.EncodeToString(full)
}
