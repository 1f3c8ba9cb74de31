package server

import (
	"bytes"
	"testing"

	"github.com/kdflabs/hkds-go/internal/constants"
	"github.com/kdflabs/hkds-go/pkg/hkds"
	"github.com/kdflabs/hkds-go/pkg/xof"
)

func sixtyFourDIDs() [constants.CacheX64Depth][constants.DIDSize]byte {
	var out [constants.CacheX64Depth][constants.DIDSize]byte
	base := testDID()
	for i := range out {
		out[i] = base
		out[i][8] = byte(i)
		out[i][9] = byte(i >> 8)
	}
	return out
}

func TestEncryptTokenX64MatchesScalarPerLane(t *testing.T) {
	suite, err := xof.New(constants.M128)
	if err != nil {
		t.Fatal(err)
	}
	mdk := fixedMDK(t, constants.M128, 0x77)
	dids := sixtyFourDIDs()

	var ksns [constants.CacheX64Depth]hkds.KSN
	for i, did := range dids {
		ksns[i] = hkds.NewKSN(did)
	}

	p := NewParallel(suite, mdk, ksns)
	got := p.EncryptTokenX64()

	for i := range ksns {
		scalar := New(suite, mdk, ksns[i])
		want := scalar.EncryptToken()
		if !bytes.Equal(got[i], want) {
			t.Errorf("lane %d: EncryptTokenX64 = %x, want %x", i, got[i], want)
		}
	}
}

func TestDecryptVerifyMessageX64PlacesResultsDeterministically(t *testing.T) {
	suite, err := xof.New(constants.M128)
	if err != nil {
		t.Fatal(err)
	}
	mdk := fixedMDK(t, constants.M128, 0x88)
	dids := sixtyFourDIDs()
	var ksns [constants.CacheX64Depth]hkds.KSN
	for i, did := range dids {
		ksns[i] = hkds.NewKSN(did)
	}

	var ciphertextsAndTags, datas [constants.CacheX64Depth][]byte
	plaintext := bytes.Repeat([]byte{0x0B}, constants.MsgLen)
	for i := range ksns {
		scalar := New(suite, mdk, ksns[i])
		keys := scalar.transactionKeyStream(2 * constants.MsgLen)
		streamKey, macKey := keys[:constants.MsgLen], keys[constants.MsgLen:]
		ciphertext := make([]byte, constants.MsgLen)
		for j := range ciphertext {
			ciphertext[j] = streamKey[j] ^ plaintext[j]
		}
		data := []byte{byte(i), 0, 0, 0}
		tag := suite.MAC(macKey, ciphertext, data, suite.KeySize())
		ciphertextsAndTags[i] = append(ciphertext, tag...)
		datas[i] = data
	}

	p := NewParallel(suite, mdk, ksns)
	plaintexts, ok, err := p.DecryptVerifyMessageX64(ciphertextsAndTags, datas)
	if err != nil {
		t.Fatal(err)
	}
	for i := range ok {
		if !ok[i] {
			t.Fatalf("lane %d should succeed", i)
		}
		if !bytes.Equal(plaintexts[i], plaintext) {
			t.Errorf("lane %d: plaintext mismatch", i)
		}
	}
}
