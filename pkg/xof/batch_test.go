package xof

import (
	"bytes"
	"testing"

	"github.com/kdflabs/hkds-go/internal/constants"
)

func TestXOFx8MatchesScalarPerLane(t *testing.T) {
	s, err := New(constants.M256)
	if err != nil {
		t.Fatal(err)
	}
	var ins [Lanes][]byte
	for i := range ins {
		ins[i] = []byte{byte(i), byte(i + 1), byte(i + 2)}
	}
	got := s.XOFx8(ins, 32)
	for i := range got {
		want := s.XOF(ins[i], 32)
		if !bytes.Equal(got[i], want) {
			t.Errorf("lane %d: XOFx8 = %x, want %x", i, got[i], want)
		}
	}
}

func TestXOFx8LanesAreIndependent(t *testing.T) {
	s, err := New(constants.M128)
	if err != nil {
		t.Fatal(err)
	}
	var ins [Lanes][]byte
	for i := range ins {
		ins[i] = []byte{byte(i)}
	}
	out := s.XOFx8(ins, 16)
	for i := 0; i < Lanes; i++ {
		for j := i + 1; j < Lanes; j++ {
			if bytes.Equal(out[i], out[j]) {
				t.Errorf("lanes %d and %d produced identical output for distinct inputs", i, j)
			}
		}
	}
}

func TestSqueezeBlocksX8MatchesScalarPerLane(t *testing.T) {
	s, err := New(constants.M128)
	if err != nil {
		t.Fatal(err)
	}
	var ins [Lanes][]byte
	for i := range ins {
		ins[i] = []byte{byte(i), 0xAA, 0xBB}
	}
	got := s.SqueezeBlocksX8(ins, 50)
	for i := range got {
		want := s.SqueezeBlocks(ins[i], 50)
		if !bytes.Equal(got[i], want) {
			t.Errorf("lane %d: SqueezeBlocksX8 = %x, want %x", i, got[i], want)
		}
	}
}

func TestMACx8MatchesScalarPerLane(t *testing.T) {
	s, err := New(constants.M256)
	if err != nil {
		t.Fatal(err)
	}
	var keys, msgs, customs [Lanes][]byte
	for i := range keys {
		keys[i] = bytes.Repeat([]byte{byte(i + 1)}, 32)
		msgs[i] = []byte{byte(i), byte(i), byte(i)}
		customs[i] = []byte("custom-lane")
	}
	got := s.MACx8(keys, msgs, customs, 16)
	for i := range got {
		want := s.MAC(keys[i], msgs[i], customs[i], 16)
		if !bytes.Equal(got[i], want) {
			t.Errorf("lane %d: MACx8 = %x, want %x", i, got[i], want)
		}
	}
}

func TestWaitGroupRunsAllGoroutines(t *testing.T) {
	var wg waitGroup
	var results [Lanes]int
	for i := 0; i < Lanes; i++ {
		i := i
		wg.Go(func() {
			results[i] = i * i
		})
	}
	wg.Wait()
	for i, v := range results {
		if v != i*i {
			t.Errorf("results[%d] = %d, want %d", i, v, i*i)
		}
	}
}
