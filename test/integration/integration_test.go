// Package integration provides end-to-end integration tests for the HKDS
// key-derivation system, covering the full-cycle and equivalence scenarios
// named in spec.md §8 and supplemented from
// original_source/HKDSTest/hkds_test.h (full-cycle, Monte Carlo).
package integration

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/kdflabs/hkds-go/internal/constants"
	"github.com/kdflabs/hkds-go/pkg/hkds"
	"github.com/kdflabs/hkds-go/pkg/hkds/client"
	"github.com/kdflabs/hkds-go/pkg/hkds/server"
	"github.com/kdflabs/hkds-go/pkg/xof"
)

func testDID(tag byte) [constants.DIDSize]byte {
	var did [constants.DIDSize]byte
	copy(did[:4], []byte{0x01, 0x00, 0x00, 0x00})
	did[6], did[7] = 0x01, 0x00
	did[8], did[9], did[10], did[11] = 0x01, 0x00, 0x00, tag
	return did
}

func fixedEntropy(pattern byte) hkds.EntropySource {
	return func(b []byte) error {
		for i := range b {
			b[i] = pattern
		}
		return nil
	}
}

// newDevice provisions one (MDK, EDK, client, server) tuple for a mode.
func newDevice(t *testing.T, mode constants.Mode, protocolID byte) (*xof.Suite, *hkds.MDK, *client.State, func(ksn hkds.KSN) *server.State) {
	t.Helper()
	suite, err := xof.New(mode)
	if err != nil {
		t.Fatalf("xof.New: %v", err)
	}
	var kid [constants.KIDSize]byte
	mdk, err := hkds.GenerateMDK(mode, fixedEntropy(0xAA), kid)
	if err != nil {
		t.Fatalf("GenerateMDK: %v", err)
	}
	did := testDID(0x01)
	did[constants.OffsetProtocolID] = protocolID
	did[constants.OffsetPRFMode] = mode.PRFModeTag()
	edk := hkds.GenerateEDK(suite, mdk.BDK, did)
	cs, err := client.New(suite, edk, did)
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}
	newServer := func(ksn hkds.KSN) *server.State {
		ksn.SetProtocolAndMode(protocolID, mode.PRFModeTag())
		return server.New(suite, mdk, ksn)
	}
	return suite, mdk, cs, newServer
}

// TestFullCycleUnauthenticated walks scenario 1 and 2 of spec.md §8: a
// server-issued token is ingested by the client, the cache is filled, and
// every message in the epoch round-trips through the server.
func TestFullCycleUnauthenticated(t *testing.T) {
	_, _, cs, newServer := newDevice(t, constants.M256, constants.ProtocolIDUnauth)

	srv := newServer(cs.KSN)
	etok := srv.EncryptToken()

	token, ok, err := cs.DecryptToken(etok)
	if err != nil || !ok {
		t.Fatalf("DecryptToken: ok=%v err=%v", ok, err)
	}
	if err := cs.GenerateCache(token); err != nil {
		t.Fatalf("GenerateCache: %v", err)
	}

	for i := 0; i < constants.CacheSize; i++ {
		plaintext := make([]byte, constants.MsgLen)
		for j := range plaintext {
			plaintext[j] = byte(i + j)
		}
		ciphertext, ok, err := cs.EncryptMessage(plaintext)
		if err != nil || !ok {
			t.Fatalf("round %d: EncryptMessage: ok=%v err=%v", i, ok, err)
		}

		recoverKSN := hkds.NewKSN(testDID(0x01))
		recoverKSN.SetCounter(uint32(i))
		decryptSrv := newServer(recoverKSN)
		recovered, err := decryptSrv.DecryptMessage(ciphertext)
		if err != nil {
			t.Fatalf("round %d: DecryptMessage: %v", i, err)
		}
		if !bytes.Equal(recovered, plaintext) {
			t.Fatalf("round %d: round-trip mismatch: got %x want %x", i, recovered, plaintext)
		}
	}
	if !cs.CacheEmpty() {
		t.Fatal("expected cache empty after consuming a full epoch")
	}
}

// TestAuthenticatedRoundTrip covers scenario 3: an authenticated message
// round-trips and any single-bit tamper of ciphertext, tag, or associated
// data is detected.
func TestAuthenticatedRoundTrip(t *testing.T) {
	_, _, cs, newServer := newDevice(t, constants.M256, constants.ProtocolIDAuth)

	srv := newServer(cs.KSN)
	etok := srv.EncryptToken()
	token, ok, err := cs.DecryptToken(etok)
	if err != nil || !ok {
		t.Fatalf("DecryptToken: ok=%v err=%v", ok, err)
	}
	if err := cs.GenerateCache(token); err != nil {
		t.Fatalf("GenerateCache: %v", err)
	}

	plaintext := make([]byte, constants.MsgLen)
	for i := range plaintext {
		plaintext[i] = byte(i)
	}
	data := []byte{0xC0, 0xA8, 0x00, 0x01}

	ciphertextAndTag, ok, err := cs.EncryptAuthenticateMessage(plaintext, data)
	if err != nil || !ok {
		t.Fatalf("EncryptAuthenticateMessage: ok=%v err=%v", ok, err)
	}

	authKSN := hkds.NewKSN(testDID(0x01))
	authKSN.SetCounter(0)
	authSrv := newServer(authKSN)

	recovered, verified, err := authSrv.DecryptVerifyMessage(ciphertextAndTag, data)
	if err != nil {
		t.Fatalf("DecryptVerifyMessage: %v", err)
	}
	if !verified || !bytes.Equal(recovered, plaintext) {
		t.Fatalf("expected verified round-trip, got verified=%v recovered=%x", verified, recovered)
	}

	tamperedData := []byte{0xC0, 0xA8, 0x00, 0x02}
	_, verified, err = authSrv.DecryptVerifyMessage(ciphertextAndTag, tamperedData)
	if err != nil {
		t.Fatalf("DecryptVerifyMessage (tampered data): %v", err)
	}
	if verified {
		t.Fatal("expected tampered associated data to fail verification")
	}

	tamperedCT := append([]byte{}, ciphertextAndTag...)
	tamperedCT[0] ^= 0x01
	_, verified, err = authSrv.DecryptVerifyMessage(tamperedCT, data)
	if err != nil {
		t.Fatalf("DecryptVerifyMessage (tampered ciphertext): %v", err)
	}
	if verified {
		t.Fatal("expected tampered ciphertext to fail verification")
	}

	tamperedTag := append([]byte{}, ciphertextAndTag...)
	tamperedTag[len(tamperedTag)-1] ^= 0x01
	_, verified, err = authSrv.DecryptVerifyMessage(tamperedTag, data)
	if err != nil {
		t.Fatalf("DecryptVerifyMessage (tampered tag): %v", err)
	}
	if verified {
		t.Fatal("expected tampered tag to fail verification")
	}
}

// TestCacheExhaustionAndEpochRollover covers scenario 4 and 5: the
// (CacheSize+1)-th message fails, and a new token at counter=CacheSize
// restores service.
func TestCacheExhaustionAndEpochRollover(t *testing.T) {
	_, _, cs, newServer := newDevice(t, constants.M128, constants.ProtocolIDUnauth)

	srv := newServer(cs.KSN)
	token, ok, err := cs.DecryptToken(srv.EncryptToken())
	if err != nil || !ok {
		t.Fatalf("DecryptToken: ok=%v err=%v", ok, err)
	}
	if err := cs.GenerateCache(token); err != nil {
		t.Fatalf("GenerateCache: %v", err)
	}

	for i := 0; i < constants.CacheSize; i++ {
		if _, ok, err := cs.EncryptMessage(make([]byte, constants.MsgLen)); err != nil || !ok {
			t.Fatalf("draining message %d: ok=%v err=%v", i, ok, err)
		}
	}

	if _, ok, err := cs.EncryptMessage(make([]byte, constants.MsgLen)); ok || err == nil {
		t.Fatalf("expected cache-exhausted failure, got ok=%v err=%v", ok, err)
	}
	if cs.KSN.Counter() != constants.CacheSize {
		t.Fatalf("expected counter to have advanced by exactly CacheSize, got %d", cs.KSN.Counter())
	}

	rolloverKSN := hkds.NewKSN(testDID(0x01))
	rolloverKSN.SetCounter(constants.CacheSize)
	rolloverSrv := newServer(rolloverKSN)
	token2, ok, err := cs.DecryptToken(rolloverSrv.EncryptToken())
	if err != nil || !ok {
		t.Fatalf("rollover DecryptToken: ok=%v err=%v", ok, err)
	}
	if err := cs.GenerateCache(token2); err != nil {
		t.Fatalf("rollover GenerateCache: %v", err)
	}

	ciphertext, ok, err := cs.EncryptMessage([]byte("0123456789ABCDEF"))
	if err != nil || !ok {
		t.Fatalf("post-rollover EncryptMessage: ok=%v err=%v", ok, err)
	}
	recoverKSN := hkds.NewKSN(testDID(0x01))
	recoverKSN.SetCounter(constants.CacheSize)
	recovered, err := newServer(recoverKSN).DecryptMessage(ciphertext)
	if err != nil {
		t.Fatalf("post-rollover DecryptMessage: %v", err)
	}
	if string(recovered) != "0123456789ABCDEF" {
		t.Fatalf("post-rollover round-trip mismatch: got %q", recovered)
	}
}

// TestBatchEquivalenceX8 covers scenario 6: eight independent devices' token
// issuance through EncryptTokenX8 is byte-identical to eight scalar calls.
func TestBatchEquivalenceX8(t *testing.T) {
	mode := constants.M256
	suite, _ := xof.New(mode)
	var kid [constants.KIDSize]byte
	mdk, err := hkds.GenerateMDK(mode, fixedEntropy(0x42), kid)
	if err != nil {
		t.Fatalf("GenerateMDK: %v", err)
	}

	var ksns [xof.Lanes]hkds.KSN
	for i := range ksns {
		did := testDID(byte(i))
		ksns[i] = hkds.NewKSN(did)
		ksns[i].SetProtocolAndMode(constants.ProtocolIDAuth, mode.PRFModeTag())
	}

	batch := server.NewBatch(suite, mdk, ksns)
	etoksX8 := batch.EncryptTokenX8()

	for i, ksn := range ksns {
		scalar := server.New(suite, mdk, ksn)
		want := scalar.EncryptToken()
		if !bytes.Equal(etoksX8[i], want) {
			t.Fatalf("lane %d: x8 output differs from scalar: got %x want %x", i, etoksX8[i], want)
		}
	}
}

// TestBatchEquivalenceX64 extends the x8 equivalence property across all
// sixty-four lanes of the parallel driver.
func TestBatchEquivalenceX64(t *testing.T) {
	mode := constants.M256
	suite, _ := xof.New(mode)
	var kid [constants.KIDSize]byte
	mdk, err := hkds.GenerateMDK(mode, fixedEntropy(0x7E), kid)
	if err != nil {
		t.Fatalf("GenerateMDK: %v", err)
	}

	var ksns [constants.CacheX64Depth]hkds.KSN
	for i := range ksns {
		did := testDID(byte(i))
		ksns[i] = hkds.NewKSN(did)
		ksns[i].SetProtocolAndMode(constants.ProtocolIDAuth, mode.PRFModeTag())
	}

	par := server.NewParallel(suite, mdk, ksns)
	etoksX64 := par.EncryptTokenX64()

	for i, ksn := range ksns {
		want := server.New(suite, mdk, ksn).EncryptToken()
		if !bytes.Equal(etoksX64[i], want) {
			t.Fatalf("lane %d: x64 output differs from scalar: got %x want %x", i, etoksX64[i], want)
		}
	}
}

// TestTokenTamperDetection covers the "decrypt_token returns ok=false for
// any single-bit modification of ETOK" property of spec.md §8.
func TestTokenTamperDetection(t *testing.T) {
	_, _, cs, newServer := newDevice(t, constants.M256, constants.ProtocolIDUnauth)
	srv := newServer(cs.KSN)
	etok := srv.EncryptToken()

	for i := 0; i < len(etok); i++ {
		tampered := append([]byte{}, etok...)
		tampered[i] ^= 0x01
		if _, ok, err := cs.DecryptToken(tampered); ok || err != nil {
			t.Fatalf("byte %d: expected tampered token to be rejected, got ok=%v err=%v", i, ok, err)
		}
	}
}

// TestMonteCarlo supplements spec.md with the original implementation's
// Monte Carlo looping test (original_source/HKDSTest/hkds_test.h), run for a
// bounded number of epochs instead of an open-ended loop: each epoch's
// token is freshly issued and every message in it is round-tripped with a
// plaintext derived from the previous round's ciphertext.
func TestMonteCarlo(t *testing.T) {
	const epochs = 3
	_, mdk, cs, newServer := newDevice(t, constants.M128, constants.ProtocolIDUnauth)

	plaintext := make([]byte, constants.MsgLen)
	if _, err := rand.Read(plaintext); err != nil {
		t.Fatalf("seed plaintext: %v", err)
	}

	for e := 0; e < epochs; e++ {
		epochStart := uint32(e) * constants.CacheSize
		tokenKSN := hkds.NewKSN(testDID(0x01))
		tokenKSN.SetCounter(epochStart)
		srv := newServer(tokenKSN)
		token, ok, err := cs.DecryptToken(srv.EncryptToken())
		if err != nil || !ok {
			t.Fatalf("epoch %d: DecryptToken: ok=%v err=%v", e, ok, err)
		}
		if err := cs.GenerateCache(token); err != nil {
			t.Fatalf("epoch %d: GenerateCache: %v", e, err)
		}

		for i := 0; i < constants.CacheSize; i++ {
			ciphertext, ok, err := cs.EncryptMessage(plaintext)
			if err != nil || !ok {
				t.Fatalf("epoch %d msg %d: EncryptMessage: ok=%v err=%v", e, i, ok, err)
			}
			decryptKSN := hkds.NewKSN(testDID(0x01))
			decryptKSN.SetCounter(epochStart + uint32(i))
			recovered, err := newServer(decryptKSN).DecryptMessage(ciphertext)
			if err != nil {
				t.Fatalf("epoch %d msg %d: DecryptMessage: %v", e, i, err)
			}
			if !bytes.Equal(recovered, plaintext) {
				t.Fatalf("epoch %d msg %d: round-trip mismatch", e, i)
			}
			plaintext = ciphertext
		}
	}
	_ = mdk
}
