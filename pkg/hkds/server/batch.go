package server

import (
	"time"

	"github.com/kdflabs/hkds-go/internal/constants"
	hkdserrors "github.com/kdflabs/hkds-go/internal/errors"
	"github.com/kdflabs/hkds-go/pkg/hkds"
	"github.com/kdflabs/hkds-go/pkg/xof"
)

// BatchState holds eight independent KSNs advanced in lockstep over one
// shared, read-only MDK. Lane i of every BatchState operation is
// bit-identical to the scalar path over (MDK, KSNs[i]); lanes never
// observe each other's inputs or outputs (spec.md §4.3).
type BatchState struct {
	Suite    *xof.Suite
	MDK      *hkds.MDK
	KSNs     [xof.Lanes]hkds.KSN
	Observer hkds.Observer
}

// NewBatch builds an eight-lane batch state.
func NewBatch(suite *xof.Suite, mdk *hkds.MDK, ksns [xof.Lanes]hkds.KSN) *BatchState {
	return &BatchState{Suite: suite, MDK: mdk, KSNs: ksns, Observer: hkds.NoOpObserver{}}
}

// WithObserver attaches obs to b and returns b for chaining.
func (b *BatchState) WithObserver(obs hkds.Observer) *BatchState {
	b.Observer = obs
	return b
}

func (b *BatchState) observer() hkds.Observer {
	if b.Observer == nil {
		return hkds.NoOpObserver{}
	}
	return b.Observer
}

// lanes returns one scalar State per lane, all borrowing the same MDK.
func (b *BatchState) lanes() [xof.Lanes]*State {
	var s [xof.Lanes]*State
	for i := range b.KSNs {
		s[i] = New(b.Suite, b.MDK, b.KSNs[i]).WithObserver(hkds.NoOpObserver{})
	}
	return s
}

// EncryptTokenX8 issues eight encrypted tokens, one per lane, by running the
// scalar derivation's three XOF calls and one MAC call through their batched
// forms. Each
// lane's output is produced from exactly the inputs the scalar path would
// use for that lane, so equivalence with eight independent EncryptToken
// calls is structural rather than something to maintain by hand.
func (b *BatchState) EncryptTokenX8() [xof.Lanes][]byte {
	start := time.Now()
	defer func() { b.observer().OnBatchX8(time.Since(start)) }()

	l := b.Suite.KeySize()

	var edkIns, tokenIns, ksIns, ctoks [xof.Lanes][]byte
	for i, ks := range b.KSNs {
		did := ks.DID()
		edkIns[i] = append(append([]byte{}, did[:]...), b.MDK.BDK...)
		ctoks[i] = hkds.BuildCTOK(b.Suite.Mode(), ks.Epoch(constants.CacheSize), did)
	}
	edks := b.Suite.XOFx8(edkIns, l)

	for i := range b.KSNs {
		tokenIns[i] = append(append([]byte{}, ctoks[i]...), b.MDK.STK...)
		ksIns[i] = append(append([]byte{}, ctoks[i]...), edks[i]...)
	}
	tokens := b.Suite.XOFx8(tokenIns, l)
	keyStreams := b.Suite.XOFx8(ksIns, l)

	var etoks [xof.Lanes][]byte
	var tms [xof.Lanes][]byte
	for i := range b.KSNs {
		etoks[i] = make([]byte, l+l)
		for j := 0; j < l; j++ {
			etoks[i][j] = keyStreams[i][j] ^ tokens[i][j]
		}
		tms[i] = hkds.BuildTMS(b.Suite.Mode(), b.KSNs[i])
	}

	var macKeys, macMsgs [xof.Lanes][]byte
	for i := range b.KSNs {
		macKeys[i] = edks[i]
		macMsgs[i] = etoks[i][:l]
	}
	tags := b.Suite.MACx8(macKeys, macMsgs, tms, l)
	for i := range b.KSNs {
		copy(etoks[i][l:], tags[i])
	}

	for i := range edks {
		xof.ZeroizeMultiple(edks[i], tokens[i], keyStreams[i])
	}
	return etoks
}

// DecryptMessageX8 decrypts eight unauthenticated messages, one per lane.
// A lane's own transaction-key derivation is independent of the others';
// there is no cross-lane fan-out below the XOF/MAC level for this
// operation since each lane needs its own streaming-squeeze length.
func (b *BatchState) DecryptMessageX8(ciphertexts [xof.Lanes][]byte) ([xof.Lanes][]byte, error) {
	start := time.Now()
	defer func() { b.observer().OnBatchX8(time.Since(start)) }()

	lanes := b.lanes()
	var out [xof.Lanes][]byte
	for i, s := range lanes {
		pt, err := s.DecryptMessage(ciphertexts[i])
		if err != nil {
			return out, hkdserrors.NewCryptoError("server.DecryptMessageX8", err)
		}
		out[i] = pt
	}
	return out, nil
}

// DecryptVerifyMessageX8 decrypts and authenticates eight messages, one per
// lane. Lane failures (MAC mismatch) are independent: ok[i] reports lane
// i's result without affecting any other lane (spec.md §4.3).
func (b *BatchState) DecryptVerifyMessageX8(ciphertextsAndTags, data [xof.Lanes][]byte) (plaintexts [xof.Lanes][]byte, ok [xof.Lanes]bool, err error) {
	start := time.Now()
	defer func() { b.observer().OnBatchX8(time.Since(start)) }()

	lanes := b.lanes()
	for i, s := range lanes {
		pt, lok, lerr := s.DecryptVerifyMessage(ciphertextsAndTags[i], data[i])
		if lerr != nil {
			return plaintexts, ok, hkdserrors.NewCryptoError("server.DecryptVerifyMessageX8", lerr)
		}
		plaintexts[i] = pt
		ok[i] = lok
	}
	return plaintexts, ok, nil
}
