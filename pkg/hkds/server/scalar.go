// Package server implements the stateless server-side HKDS derivation
// tree: device-key derivation, token issuance, and message decryption, in
// scalar, eight-way, and sixty-four-way forms (spec.md §4.2–§4.3).
package server

import (
	"time"

	"github.com/kdflabs/hkds-go/internal/constants"
	hkdserrors "github.com/kdflabs/hkds-go/internal/errors"
	"github.com/kdflabs/hkds-go/pkg/hkds"
	"github.com/kdflabs/hkds-go/pkg/xof"
)

// State is one server-side derivation context: a borrowed, read-only MDK
// and the KSN identifying the device and counter position to derive for.
// State is ephemeral — owned for the duration of a single operation, never
// mutated across calls except by the caller overwriting KSN.
type State struct {
	Suite    *xof.Suite
	MDK      *hkds.MDK
	KSN      hkds.KSN
	Observer hkds.Observer
}

// New builds a scalar server state over suite, a borrowed MDK, and a KSN,
// observing derivation latency and failures through NoOpObserver. Use
// WithObserver to attach a metrics-backed observer instead.
func New(suite *xof.Suite, mdk *hkds.MDK, ksn hkds.KSN) *State {
	return &State{Suite: suite, MDK: mdk, KSN: ksn, Observer: hkds.NoOpObserver{}}
}

// WithObserver attaches obs to s and returns s for chaining.
func (s *State) WithObserver(obs hkds.Observer) *State {
	s.Observer = obs
	return s
}

func (s *State) observer() hkds.Observer {
	if s.Observer == nil {
		return hkds.NoOpObserver{}
	}
	return s.Observer
}

// edk derives this state's Embedded Device Key.
func (s *State) edk() []byte {
	return hkds.GenerateEDK(s.Suite, s.MDK.BDK, s.KSN.DID())
}

// token derives this state's per-epoch Token along with the EDK and CTOK
// used to compute it, so callers deriving a key stream from the same Token
// don't redo the XOF call.
func (s *State) token() (token, edk, ctok []byte) {
	edk = s.edk()
	epoch := s.KSN.Epoch(constants.CacheSize)
	ctok = hkds.BuildCTOK(s.Suite.Mode(), epoch, s.KSN.DID())
	l := s.Suite.KeySize()
	token = s.Suite.XOF(append(append([]byte{}, ctok...), s.MDK.STK...), l)
	return token, edk, ctok
}

// EncryptToken issues an encrypted token for the current KSN: ETOK =
// (KeyStream ⊕ Token) ‖ MAC(EDK, ciphertext, TMS). The MAC key is EDK,
// deliberately not STK, so the client can verify without ever learning STK
// (spec.md §4.2).
func (s *State) EncryptToken() []byte {
	start := time.Now()
	defer func() { s.observer().OnTokenIssued(time.Since(start)) }()

	token, edk, ctok := s.token()
	l := s.Suite.KeySize()
	keyStream := s.Suite.XOF(append(append([]byte{}, ctok...), edk...), l)

	etok := make([]byte, l+l)
	for i := 0; i < l; i++ {
		etok[i] = keyStream[i] ^ token[i]
	}
	tms := hkds.BuildTMS(s.Suite.Mode(), s.KSN)
	tag := s.Suite.MAC(edk, etok[:l], tms, l)
	copy(etok[l:], tag)

	xof.ZeroizeMultiple(token, keyStream, edk)
	return etok
}

// transactionKeyStream derives the minimum whole number of XOF blocks
// covering the byte range [0, index*MsgLen+sliceLen) of XOF(Token ‖ EDK),
// and returns the sliceLen bytes at offset index*MsgLen. Per spec.md §4.2
// the server must use the streaming squeeze interface and discard earlier
// blocks rather than derive the slice directly.
func (s *State) transactionKeyStream(sliceLen int) []byte {
	token, edk, _ := s.token()
	defer xof.ZeroizeMultiple(token, edk)

	index := int(s.KSN.Index(constants.CacheSize))
	need := index*constants.MsgLen + sliceLen
	in := append(append([]byte{}, token...), edk...)
	blocks := s.Suite.SqueezeBlocks(in, need)

	out := make([]byte, sliceLen)
	copy(out, blocks[index*constants.MsgLen:index*constants.MsgLen+sliceLen])
	xof.Zeroize(blocks)
	return out
}

// DecryptMessage recovers plaintext from an unauthenticated MsgLen-byte
// ciphertext using the transaction key matching the current KSN counter.
func (s *State) DecryptMessage(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) != constants.MsgLen {
		return nil, hkdserrors.NewCryptoError("server.DecryptMessage", hkdserrors.ErrInvalidKeySize)
	}
	start := time.Now()
	key := s.transactionKeyStream(constants.MsgLen)
	defer xof.Zeroize(key)

	plaintext := make([]byte, constants.MsgLen)
	for i := range plaintext {
		plaintext[i] = key[i] ^ ciphertext[i]
	}
	s.observer().OnMessageDecrypted(time.Since(start))
	return plaintext, nil
}

// DecryptVerifyMessage recovers and authenticates plaintext from an
// authenticated ciphertext‖tag. It derives two consecutive transaction-key
// slots — the first as the stream key, the second as the MAC key — and
// verifies the tag in constant time before decrypting. On mismatch it
// returns ok=false with a zeroed plaintext buffer; no partial output is
// produced (spec.md §4.2, §4.5).
func (s *State) DecryptVerifyMessage(ciphertextAndTag, data []byte) (plaintext []byte, ok bool, err error) {
	tagLen := s.Suite.KeySize()
	if len(ciphertextAndTag) != constants.MsgLen+tagLen {
		return nil, false, hkdserrors.NewCryptoError("server.DecryptVerifyMessage", hkdserrors.ErrInvalidKeySize)
	}
	ciphertext := ciphertextAndTag[:constants.MsgLen]
	tag := ciphertextAndTag[constants.MsgLen:]

	start := time.Now()
	keys := s.transactionKeyStream(2 * constants.MsgLen)
	defer xof.Zeroize(keys)
	streamKey := keys[:constants.MsgLen]
	macKey := keys[constants.MsgLen:]

	wantTag := s.Suite.MAC(macKey, ciphertext, data, tagLen)
	defer xof.Zeroize(wantTag)

	plaintext = make([]byte, constants.MsgLen)
	if !xof.ConstantTimeCompare(tag, wantTag) {
		s.observer().OnMessageAuthFailed()
		return plaintext, false, nil
	}
	for i := range plaintext {
		plaintext[i] = streamKey[i] ^ ciphertext[i]
	}
	s.observer().OnMessageDecrypted(time.Since(start))
	return plaintext, true, nil
}
