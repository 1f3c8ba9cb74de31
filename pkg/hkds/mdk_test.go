package hkds

import (
	"bytes"
	"errors"
	"testing"

	"github.com/kdflabs/hkds-go/internal/constants"
	hkdserrors "github.com/kdflabs/hkds-go/internal/errors"
	"github.com/kdflabs/hkds-go/pkg/xof"
)

func fixedEntropy(fill byte) EntropySource {
	return func(b []byte) error {
		for i := range b {
			b[i] = fill
		}
		return nil
	}
}

func failingEntropy(b []byte) error {
	return errors.New("no entropy")
}

func TestGenerateMDKSplitsBlockIntoBDKAndSTK(t *testing.T) {
	kid := [constants.KIDSize]byte{1, 2, 3, 4}
	mdk, err := GenerateMDK(constants.M256, fixedEntropy(0xAA), kid)
	if err != nil {
		t.Fatal(err)
	}
	l := constants.M256.KeySize()
	if len(mdk.BDK) != l || len(mdk.STK) != l {
		t.Fatalf("BDK/STK length = %d/%d, want %d", len(mdk.BDK), len(mdk.STK), l)
	}
	if !bytes.Equal(mdk.BDK, bytes.Repeat([]byte{0xAA}, l)) {
		t.Error("BDK should come from the first L bytes of the entropy block")
	}
	if !bytes.Equal(mdk.STK, bytes.Repeat([]byte{0xAA}, l)) {
		t.Error("STK should come from the next L bytes of the entropy block")
	}
	if mdk.KID != kid {
		t.Errorf("KID = %v, want %v", mdk.KID, kid)
	}
}

func TestGenerateMDKRejectsUnsupportedMode(t *testing.T) {
	var kid [constants.KIDSize]byte
	if _, err := GenerateMDK(constants.Mode(0xFF), fixedEntropy(0), kid); err == nil {
		t.Error("GenerateMDK should reject an unsupported mode")
	}
}

func TestGenerateMDKPropagatesEntropyFailure(t *testing.T) {
	var kid [constants.KIDSize]byte
	_, err := GenerateMDK(constants.M128, failingEntropy, kid)
	if err == nil {
		t.Fatal("GenerateMDK should fail when the entropy source fails")
	}
	if !hkdserrors.Is(err, hkdserrors.ErrEntropySourceFailed) {
		t.Errorf("err = %v, want wrapping ErrEntropySourceFailed", err)
	}
}

func TestMDKZeroize(t *testing.T) {
	kid := [constants.KIDSize]byte{}
	mdk, err := GenerateMDK(constants.M128, fixedEntropy(0x11), kid)
	if err != nil {
		t.Fatal(err)
	}
	mdk.Zeroize()
	for _, b := range mdk.BDK {
		if b != 0 {
			t.Fatal("Zeroize should clear BDK")
		}
	}
	for _, b := range mdk.STK {
		if b != 0 {
			t.Fatal("Zeroize should clear STK")
		}
	}
}

func TestGenerateEDKOrderingIsDIDThenBDK(t *testing.T) {
	suite, err := xof.New(constants.M128)
	if err != nil {
		t.Fatal(err)
	}
	bdk := bytes.Repeat([]byte{0x01}, constants.M128.KeySize())
	did := testDID()

	edk := GenerateEDK(suite, bdk, did)
	if len(edk) != constants.M128.KeySize() {
		t.Fatalf("EDK length = %d, want %d", len(edk), constants.M128.KeySize())
	}

	want := suite.XOF(append(append([]byte{}, did[:]...), bdk...), constants.M128.KeySize())
	if !bytes.Equal(edk, want) {
		t.Error("GenerateEDK must hash DID before BDK")
	}
}

func TestGenerateEDKDiffersPerDevice(t *testing.T) {
	suite, err := xof.New(constants.M256)
	if err != nil {
		t.Fatal(err)
	}
	bdk := bytes.Repeat([]byte{0x02}, constants.M256.KeySize())
	didA := testDID()
	didB := testDID()
	didB[8] = 0xFF

	edkA := GenerateEDK(suite, bdk, didA)
	edkB := GenerateEDK(suite, bdk, didB)
	if bytes.Equal(edkA, edkB) {
		t.Error("distinct DIDs under the same BDK should derive distinct EDKs")
	}
}
