// Package client implements the per-device HKDS state machine: token
// ingestion, transaction-key cache management, and per-message encrypt /
// encrypt-authenticate (spec.md §4.4).
package client

import (
	"time"

	"github.com/kdflabs/hkds-go/internal/constants"
	hkdserrors "github.com/kdflabs/hkds-go/internal/errors"
	"github.com/kdflabs/hkds-go/pkg/hkds"
	"github.com/kdflabs/hkds-go/pkg/xof"
)

// State is one device's HKDS client state: its Embedded Device Key, its
// KSN (device identity plus live transaction counter), and a cache of
// pre-derived transaction keys. State is exclusively owned — it is not
// safe for concurrent use by more than one goroutine (spec.md §5).
type State struct {
	Suite     *xof.Suite
	EDK       []byte
	KSN       hkds.KSN
	Observer  hkds.Observer
	cache     [constants.CacheSize][constants.MsgLen]byte
	cacheFull [constants.CacheSize]bool
	empty     bool
}

// New initializes client state for a device: copies EDK and DID into the
// KSN, zeroes the counter and cache, and marks the cache empty. Per
// spec.md §4.4 this is the only way to construct a State.
func New(suite *xof.Suite, edk []byte, did [constants.DIDSize]byte) (*State, error) {
	if len(edk) != suite.KeySize() {
		return nil, hkdserrors.NewCryptoError("client.New", hkdserrors.ErrInvalidKeySize)
	}
	s := &State{
		Suite:    suite,
		EDK:      append([]byte{}, edk...),
		KSN:      hkds.NewKSN(did),
		Observer: hkds.NoOpObserver{},
		empty:    true,
	}
	return s, nil
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

// CacheEmpty reports whether the client has no transaction keys left to
// consume: true iff the last-consumed index was CacheSize-1, or the state
// is freshly initialised (spec.md §3).
func (s *State) CacheEmpty() bool { return s.empty }

// DecryptToken verifies and decrypts an encrypted token for the state's
// current KSN. The MAC over the ciphertext is checked before any plaintext
// token material is produced — the asymmetry with the server's
// encrypt-then-MAC is deliberate: the client MUST NOT recover a Token
// whose MAC does not verify (spec.md §4.4).
func (s *State) DecryptToken(etok []byte) (token []byte, ok bool, err error) {
	l := s.Suite.KeySize()
	if len(etok) != 2*l {
		return nil, false, hkdserrors.NewCryptoError("client.DecryptToken", hkdserrors.ErrInvalidKeySize)
	}
	ciphertext, tag := etok[:l], etok[l:]
	start := time.Now()

	tms := hkds.BuildTMS(s.Suite.Mode(), s.KSN)
	wantTag := s.Suite.MAC(s.EDK, ciphertext, tms, l)
	defer xof.Zeroize(wantTag)
	if !xof.ConstantTimeCompare(tag, wantTag) {
		s.observer().OnTokenAuthFailed()
		return nil, false, nil
	}

	epoch := s.KSN.Epoch(constants.CacheSize)
	ctok := hkds.BuildCTOK(s.Suite.Mode(), epoch, s.KSN.DID())
	keyStream := s.Suite.XOF(append(append([]byte{}, ctok...), s.EDK...), l)
	defer xof.Zeroize(keyStream)

	token = make([]byte, l)
	for i := 0; i < l; i++ {
		token[i] = keyStream[i] ^ ciphertext[i]
	}
	s.observer().OnTokenDecrypted(time.Since(start))
	return token, true, nil
}

// GenerateCache expands Token into a full cache of CacheSize pre-derived
// transaction keys. It must only be called with the Token matching the
// current epoch (count/CacheSize); callers that ingest a token for a
// future epoch must first advance the counter themselves (spec.md §4.4).
func (s *State) GenerateCache(token []byte) error {
	if len(token) != s.Suite.KeySize() {
		return hkdserrors.NewCryptoError("client.GenerateCache", hkdserrors.ErrInvalidKeySize)
	}
	buf := s.Suite.XOF(append(append([]byte{}, token...), s.EDK...), constants.CacheSize*constants.MsgLen)
	defer xof.Zeroize(buf)

	for i := 0; i < constants.CacheSize; i++ {
		copy(s.cache[i][:], buf[i*constants.MsgLen:(i+1)*constants.MsgLen])
		s.cacheFull[i] = true
	}
	s.empty = false
	s.observer().OnCacheRefilled()
	return nil
}

// consume returns the transaction key at the current counter's cache
// index, zeroes that slot, advances the counter, and updates cache_empty.
// It is the shared implementation behind EncryptMessage and
// EncryptAuthenticateMessage's one- and two-slot consumption.
func (s *State) consume() ([constants.MsgLen]byte, bool) {
	idx := s.KSN.Index(constants.CacheSize)
	if !s.cacheFull[idx] {
		var zero [constants.MsgLen]byte
		return zero, false
	}
	key := s.cache[idx]
	s.cache[idx] = [constants.MsgLen]byte{}
	s.cacheFull[idx] = false
	s.KSN.Increment()
	if idx == constants.CacheSize-1 {
		s.empty = true
	}
	return key, true
}

// EncryptMessage consumes one transaction key and encrypts a MsgLen-byte
// plaintext. If the cache is empty it returns ok=false and leaves the
// plaintext buffer untouched (spec.md §4.4, §4.5).
func (s *State) EncryptMessage(plaintext []byte) (ciphertext []byte, ok bool, err error) {
	if len(plaintext) != constants.MsgLen {
		return nil, false, hkdserrors.NewCryptoError("client.EncryptMessage", hkdserrors.ErrInvalidKeySize)
	}
	if s.empty {
		s.observer().OnCacheExhausted()
		return nil, false, hkdserrors.NewCryptoError("client.EncryptMessage", hkdserrors.ErrCacheExhausted)
	}
	start := time.Now()
	key, got := s.consume()
	if !got {
		s.observer().OnCacheExhausted()
		return nil, false, hkdserrors.NewCryptoError("client.EncryptMessage", hkdserrors.ErrCacheExhausted)
	}
	defer xof.Zeroize(key[:])

	ciphertext = make([]byte, constants.MsgLen)
	for i := range ciphertext {
		ciphertext[i] = key[i] ^ plaintext[i]
	}
	s.observer().OnMessageEncrypted(time.Since(start))
	return ciphertext, true, nil
}

// EncryptAuthenticateMessage consumes two transaction keys and produces
// ciphertext ‖ tag over associated data. A successful call always consumes
// exactly two slots and advances the counter by two; if either slot is
// unavailable the call fails with no output and no partial consumption
// (spec.md §4.4).
func (s *State) EncryptAuthenticateMessage(plaintext, data []byte) (ciphertextAndTag []byte, ok bool, err error) {
	if len(plaintext) != constants.MsgLen {
		return nil, false, hkdserrors.NewCryptoError("client.EncryptAuthenticateMessage", hkdserrors.ErrInvalidKeySize)
	}
	if s.empty || s.remaining() < 2 {
		s.observer().OnCacheExhausted()
		return nil, false, hkdserrors.NewCryptoError("client.EncryptAuthenticateMessage", hkdserrors.ErrCacheExhausted)
	}
	start := time.Now()
	k1, got1 := s.consume()
	if !got1 {
		s.observer().OnCacheExhausted()
		return nil, false, hkdserrors.NewCryptoError("client.EncryptAuthenticateMessage", hkdserrors.ErrCacheExhausted)
	}
	k2, got2 := s.consume()
	if !got2 {
		xof.Zeroize(k1[:])
		s.observer().OnCacheExhausted()
		return nil, false, hkdserrors.NewCryptoError("client.EncryptAuthenticateMessage", hkdserrors.ErrCacheExhausted)
	}
	defer xof.Zeroize(k1[:])
	defer xof.Zeroize(k2[:])

	ctxt := make([]byte, constants.MsgLen)
	for i := range ctxt {
		ctxt[i] = k1[i] ^ plaintext[i]
	}
	tagLen := s.Suite.KeySize()
	tag := s.Suite.MAC(k2[:], ctxt, data, tagLen)

	ciphertextAndTag = make([]byte, constants.MsgLen+tagLen)
	copy(ciphertextAndTag, ctxt)
	copy(ciphertextAndTag[constants.MsgLen:], tag)
	s.observer().OnMessageEncrypted(time.Since(start))
	return ciphertextAndTag, true, nil
}

// remaining reports how many cache slots, from the current index to the
// last slot of the current epoch, are still populated. Used to
// decide up front whether an authenticated call can consume two slots
// without a partial consumption (spec.md §4.4: "an implementation MAY
// check cache availability for two keys up front").
func (s *State) remaining() int {
	if s.empty {
		return 0
	}
	idx := s.KSN.Index(constants.CacheSize)
	n := 0
	for i := idx; i < constants.CacheSize; i++ {
		if s.cacheFull[i] {
			n++
		}
	}
	return n
}

// Zeroize overwrites the EDK and the entire transaction-key cache with
// zeros. Called when client state is retired (spec.md §4.4, §5).
func (s *State) Zeroize() {
	xof.Zeroize(s.EDK)
	for i := range s.cache {
		s.cache[i] = [constants.MsgLen]byte{}
		s.cacheFull[i] = false
	}
}
