// Package hkds holds the types and wire-format helpers shared by the server
// and client derivation paths: the Key Serial Number, the Master Derivation
// Key set, and the CTOK/TMS customization-string builders (spec.md §3, §6).
package hkds

import (
	"encoding/binary"

	"github.com/kdflabs/hkds-go/internal/constants"
	hkdserrors "github.com/kdflabs/hkds-go/internal/errors"
)

// KSN is a 16-byte Key Serial Number: DID(12) ‖ transaction counter(4,
// big-endian). Its layout is fixed by spec.md §6.
type KSN [constants.KSNSize]byte

// NewKSN builds a KSN from a 12-byte device identity with the counter at
// zero.
func NewKSN(did [constants.DIDSize]byte) KSN {
	var k KSN
	copy(k[:constants.DIDSize], did[:])
	return k
}

// ParseKSN validates and wraps a 16-byte slice as a KSN.
func ParseKSN(b []byte) (KSN, error) {
	var k KSN
	if len(b) != constants.KSNSize {
		return k, hkdserrors.NewCryptoError("hkds.ParseKSN", hkdserrors.ErrInvalidKSN)
	}
	copy(k[:], b)
	return k, nil
}

// DID returns the 12-byte device identity portion of the KSN.
func (k KSN) DID() [constants.DIDSize]byte {
	var did [constants.DIDSize]byte
	copy(did[:], k[:constants.DIDSize])
	return did
}

// Counter returns the big-endian transaction counter.
func (k KSN) Counter() uint32 {
	return binary.BigEndian.Uint32(k[constants.OffsetCounter:])
}

// SetCounter overwrites the KSN's counter field in place.
func (k *KSN) SetCounter(c uint32) {
	binary.BigEndian.PutUint32(k[constants.OffsetCounter:], c)
}

// Increment advances the counter by one, wrapping on overflow per normal
// unsigned arithmetic (a real deployment retires a device long before 2^32
// transactions).
func (k *KSN) Increment() {
	k.SetCounter(k.Counter() + 1)
}

// Epoch returns count/cacheSize, the token epoch this KSN currently belongs
// to (spec.md §3: "defined as TKC-ctr / CacheSize, integer division").
func (k KSN) Epoch(cacheSize uint32) uint32 {
	return k.Counter() / cacheSize
}

// Index returns count mod cacheSize, the cache slot this KSN's counter
// currently addresses.
func (k KSN) Index(cacheSize uint32) uint32 {
	return k.Counter() % cacheSize
}

// ProtocolID returns the byte at KSN[4], identifying unauth vs authenticated
// mode.
func (k KSN) ProtocolID() byte {
	return k[constants.OffsetProtocolID]
}

// ModeTag returns the byte at KSN[5], identifying the security mode.
func (k KSN) ModeTag() byte {
	return k[constants.OffsetPRFMode]
}

// SetProtocolAndMode writes the protocol id and mode tag bytes into the KSN.
func (k *KSN) SetProtocolAndMode(protocolID, modeTag byte) {
	k[constants.OffsetProtocolID] = protocolID
	k[constants.OffsetPRFMode] = modeTag
}

// Bytes returns the KSN as a plain byte slice.
func (k KSN) Bytes() []byte {
	out := make([]byte, constants.KSNSize)
	copy(out, k[:])
	return out
}
