// Package xof implements the extendable-output-function and keyed-MAC
// primitive adapter that the HKDS derivation tree is built on.
//
// This file (xof.go) uses cSHAKE128/cSHAKE256 (NIST SP 800-185), customizable
// variants of SHAKE (FIPS 202), built on the Keccak sponge construction. The
// customization-string (S) parameter is how every HKDS derivation step
// separates its domain from every other step, without appending extra tag
// bytes of its own (spec.md §4.1: "domain-separated purely by the position
// and content of the customization/key inputs").
//
// Mathematical Foundation:
//
// cSHAKE128 and cSHAKE256 use the Keccak-f[1600] permutation with rate
// r = 1344 bits (168 bytes) and r = 1088 bits (136 bytes) respectively. The
// sponge construction absorbs the function-name/customization pair plus the
// message, then squeezes an arbitrary-length output.
//
// Security Properties:
//   - cSHAKE128: 128-bit preimage/collision resistance
//   - cSHAKE256: 256-bit preimage/collision resistance
//   - Extendable output: can generate arbitrary length keys
//   - Distinct (N, S) pairs are domain-separated by construction
package xof

import (
	"encoding/binary"
	"io"

	"golang.org/x/crypto/sha3"

	"github.com/kdflabs/hkds-go/internal/constants"
	hkdserrors "github.com/kdflabs/hkds-go/internal/errors"
)

// Suite binds the XOF/MAC operations to one security mode's parameters
// (L = KeySize, R = Rate). It is the "security level" trait described in
// spec.md §9: a generic parameter carrying (L, R, xof, mac, xof_x8, mac_x8).
type Suite struct {
	mode constants.Mode
}

// New returns a Suite for the given security mode.
func New(mode constants.Mode) (*Suite, error) {
	if !mode.IsSupported() {
		return nil, hkdserrors.NewCryptoError("xof.New", hkdserrors.ErrInvalidMode)
	}
	return &Suite{mode: mode}, nil
}

// Mode returns the suite's security mode.
func (s *Suite) Mode() constants.Mode { return s.mode }

// KeySize returns L, the suite's security-level byte length.
func (s *Suite) KeySize() int { return s.mode.KeySize() }

// Rate returns R, the suite's XOF block rate in bytes.
func (s *Suite) Rate() int { return s.mode.Rate() }

// newHash returns a fresh cSHAKE state for this suite's mode, with N left
// empty (N is reserved for NIST-defined function names) and S set to the
// caller's customization string.
func (s *Suite) newHash(custom []byte) sha3.ShakeHash {
	if s.mode == constants.M128 {
		return sha3.NewCShake128(nil, custom)
	}
	return sha3.NewCShake256(nil, custom)
}

// XOF squeezes outLen bytes from the unkeyed absorption of in, with no
// customization string. This implements the `xof(out, in)` contract of
// spec.md §4.1, used for EDK, Token, and key-stream derivation.
func (s *Suite) XOF(in []byte, outLen int) []byte {
	h := s.newHash(nil)
	h.Write(in)
	out := make([]byte, outLen)
	_, _ = h.Read(out) // ShakeHash.Read never fails
	return out
}

// SqueezeBlocks implements `xof_init`/`xof_squeeze_blocks`: it squeezes the
// minimum whole number of R-byte blocks covering `need` bytes, returning a
// buffer of that rounded-up length. Callers slice out the target range and
// let earlier/later blocks be discarded, matching the server's requirement
// to produce whole blocks rather than an exact-length read.
func (s *Suite) SqueezeBlocks(in []byte, need int) []byte {
	r := s.Rate()
	nBlocks := (need + r - 1) / r
	if nBlocks == 0 {
		nBlocks = 1
	}
	total := nBlocks * r
	h := s.newHash(nil)
	h.Write(in)
	out := make([]byte, total)
	_, _ = io.ReadFull(h, out)
	return out
}

// MAC computes a keyed, customization-bound MAC over msg, truncated to
// tagLen bytes. Key and message are each length-prefixed before absorption
// so that no (key, msg) concatenation is ambiguous — the same
// length-prefix-then-concatenate domain separation the corpus uses for its
// own SHAKE-based key derivation. The customization string occupies cSHAKE's
// S parameter, so the MAC domain and the key/message domain are separated
// two different ways.
func (s *Suite) MAC(key, msg, custom []byte, tagLen int) []byte {
	h := s.newHash(custom)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(key)))
	h.Write(lenBuf[:])
	h.Write(key)
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(msg)))
	h.Write(lenBuf[:])
	h.Write(msg)
	tag := make([]byte, tagLen)
	_, _ = h.Read(tag)
	return tag
}
