// Package arc4 decodes the ARC-4 encoded application-call arguments and
// return logs emitted by the ticketing contract. All functions are pure and
// never read past the input slice; failures are reported as *DecodeError.
package arc4

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// Method selectors pinned to the deployed contract's ABI. These are fixed
// hashes of the method signatures and must never be derived at runtime:
//
//	mint_ticket(uint64,string)uint64 -> 3311de72
//	transfer_ticket(pay,uint64)void  -> e5ff5d13
var (
	MintSelector     = [4]byte{0x33, 0x11, 0xde, 0x72}
	TransferSelector = [4]byte{0xe5, 0xff, 0x5d, 0x13}
)

// returnMarker prefixes every ABI return value emitted as a log.
var returnMarker = [4]byte{0x15, 0x1f, 0x7c, 0x75}

const (
	selectorLen     = 4
	uint64Len       = 8
	stringPrefixLen = 2
	returnLogMinLen = len(returnMarker) + uint64Len
)

// MethodSelector identifies which tracked contract method a call invokes.
// Unrecognized is a routine value, not an error: the pipeline sees calls to
// methods it does not track.
type MethodSelector int

const (
	SelectorUnrecognized MethodSelector = iota
	SelectorMint
	SelectorTransfer
)

func (s MethodSelector) String() string {
	switch s {
	case SelectorMint:
		return "mint_ticket"
	case SelectorTransfer:
		return "transfer_ticket"
	default:
		return "unrecognized"
	}
}

// DecodeError records a malformed binary field. It aborts only the single
// transaction being decoded, never the batch.
type DecodeError struct {
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %s", e.Field, e.Reason)
}

// DecodeSelector maps a 4-byte argument to a method selector. Inputs that
// are exactly 4 bytes but match neither tracked method decode to
// SelectorUnrecognized without error.
func DecodeSelector(arg []byte) (MethodSelector, error) {
	if len(arg) != selectorLen {
		return SelectorUnrecognized, &DecodeError{
			Field:  "selector",
			Reason: fmt.Sprintf("expected %d bytes, got %d", selectorLen, len(arg)),
		}
	}
	switch {
	case bytes.Equal(arg, MintSelector[:]):
		return SelectorMint, nil
	case bytes.Equal(arg, TransferSelector[:]):
		return SelectorTransfer, nil
	default:
		return SelectorUnrecognized, nil
	}
}

// DecodeUint64 interprets the first 8 bytes of arg as a big-endian unsigned
// integer.
func DecodeUint64(arg []byte) (uint64, error) {
	if len(arg) < uint64Len {
		return 0, &DecodeError{
			Field:  "uint64",
			Reason: fmt.Sprintf("expected at least %d bytes, got %d", uint64Len, len(arg)),
		}
	}
	return binary.BigEndian.Uint64(arg[:uint64Len]), nil
}

// DecodeString decodes an ARC-4 string: a 2-byte big-endian length prefix
// followed by UTF-8 bytes.
func DecodeString(arg []byte) (string, error) {
	if len(arg) < stringPrefixLen {
		return "", &DecodeError{
			Field:  "string",
			Reason: fmt.Sprintf("expected at least %d bytes, got %d", stringPrefixLen, len(arg)),
		}
	}
	declared := int(binary.BigEndian.Uint16(arg[:stringPrefixLen]))
	body := arg[stringPrefixLen:]
	if declared > len(body) {
		return "", &DecodeError{
			Field:  "string",
			Reason: fmt.Sprintf("declared length %d exceeds %d remaining bytes", declared, len(body)),
		}
	}
	body = body[:declared]
	if !utf8.Valid(body) {
		return "", &DecodeError{Field: "string", Reason: "invalid utf-8"}
	}
	return string(body), nil
}

// DecodeReturnLog extracts the uint64 return value from an ABI return log:
// the 4-byte return marker followed by 8 big-endian bytes.
func DecodeReturnLog(log []byte) (uint64, error) {
	if len(log) < returnLogMinLen {
		return 0, &DecodeError{
			Field:  "return log",
			Reason: fmt.Sprintf("expected at least %d bytes, got %d", returnLogMinLen, len(log)),
		}
	}
	if !bytes.Equal(log[:len(returnMarker)], returnMarker[:]) {
		return 0, &DecodeError{Field: "return log", Reason: "missing return marker"}
	}
	return binary.BigEndian.Uint64(log[len(returnMarker) : len(returnMarker)+uint64Len]), nil
}

// EncodeString is the counterpart of DecodeString.
func EncodeString(s string) []byte {
	out := make([]byte, stringPrefixLen+len(s))
	binary.BigEndian.PutUint16(out, uint16(len(s)))
	copy(out[stringPrefixLen:], s)
	return out
}

// EncodeUint64 is the counterpart of DecodeUint64.
func EncodeUint64(v uint64) []byte {
	out := make([]byte, uint64Len)
	binary.BigEndian.PutUint64(out, v)
	return out
}

// EncodeReturnLog is the counterpart of DecodeReturnLog.
func EncodeReturnLog(v uint64) []byte {
	out := make([]byte, 0, returnLogMinLen)
	out = append(out, returnMarker[:]...)
	return append(out, EncodeUint64(v)...)
}
