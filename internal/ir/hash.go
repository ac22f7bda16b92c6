package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// Domain prefixes for content-addressed identity. The version suffix leaves
// room for changing the canonical form later.
const (
	DomainDelta = "provstream/delta/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data). The separator
// keeps domain and data from running into each other.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DeltaID computes the content-addressed ID of an inference delta.
// canonical is the delta's sorted N-Triples serialization; it is NFC
// normalized here so equivalent Unicode spellings hash identically.
// engine and seq are included so identical deltas produced by different
// engines, or by one engine on different windows, stay distinct.
func DeltaID(engine string, seq int64, canonical string) string {
	data := norm.NFC.String(engine) + "\n" + strconv.FormatInt(seq, 10) + "\n" + norm.NFC.String(canonical)
	return hashWithDomain(DomainDelta, []byte(data))
}
