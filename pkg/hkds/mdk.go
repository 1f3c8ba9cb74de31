package hkds

import (
	"github.com/kdflabs/hkds-go/internal/constants"
	hkdserrors "github.com/kdflabs/hkds-go/internal/errors"
	"github.com/kdflabs/hkds-go/pkg/xof"
)

// MDK is the Master Derivation Key set held by the server: a Base
// Derivation Key (device-key derivation), a Secret Token Key (token
// derivation), and a non-secret key identity label (spec.md §3).
type MDK struct {
	BDK []byte
	STK []byte
	KID [constants.KIDSize]byte
}

// EntropySource fills b with cryptographically strong bytes. It must not
// return a short read; generate_mdk treats a failure here as fatal
// (spec.md §4.2, §4.5).
type EntropySource func(b []byte) error

// GenerateMDK draws BDK‖STK from src as a single 2L-byte block, splitting
// the first L bytes into BDK and the next L into STK, and stores kid
// verbatim. This is the single place a master secret enters the system; it
// is invoked at provisioning time, never on a per-transaction hot path.
func GenerateMDK(mode constants.Mode, src EntropySource, kid [constants.KIDSize]byte) (*MDK, error) {
	if !mode.IsSupported() {
		return nil, hkdserrors.NewCryptoError("hkds.GenerateMDK", hkdserrors.ErrInvalidMode)
	}
	l := mode.KeySize()
	block := make([]byte, 2*l)
	if err := src(block); err != nil {
		return nil, hkdserrors.NewCryptoError("hkds.GenerateMDK", hkdserrors.ErrEntropySourceFailed)
	}
	mdk := &MDK{
		BDK: block[:l],
		STK: block[l:],
		KID: kid,
	}
	return mdk, nil
}

// DefaultEntropySource reads from the OS CSPRNG via pkg/xof.SecureRandom.
// generate_mdk's contract says the source must not fail; a CSPRNG failure
// here is treated as fatal by the caller, per spec.md §4.5.
func DefaultEntropySource(b []byte) error {
	return xof.SecureRandom(b)
}

// Zeroize overwrites BDK and STK with zeros. Called when an MDK is retired
// or falls out of scope, per spec.md §5's resource-hygiene requirement.
func (m *MDK) Zeroize() {
	xof.ZeroizeMultiple(m.BDK, m.STK)
}

// GenerateEDK derives the Embedded Device Key binding a device identity to
// this MDK's BDK: EDK = XOF(DID ‖ BDK, L). The ordering (DID first) is
// fixed; it is the single point that ties a device to the master secret
// (spec.md §4.2).
func GenerateEDK(suite *xof.Suite, bdk []byte, did [constants.DIDSize]byte) []byte {
	in := make([]byte, 0, constants.DIDSize+len(bdk))
	in = append(in, did[:]...)
	in = append(in, bdk...)
	return suite.XOF(in, suite.KeySize())
}
