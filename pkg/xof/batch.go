// batch.go implements the eight-way batched XOF/MAC forms described in
// spec.md §4.1 and §4.3.
//
// The reference HKDS library amortises the Keccak absorb cost across eight
// independent lanes with a SIMD-parallel permutation. Go has no portable
// intrinsic for a four- or eight-way Keccak-f[1600] permutation without a
// cgo dependency the example corpus does not provide (cloudflare/circl,
// which SPEC_FULL.md drops, doesn't help here either — its ML-KEM stack has
// no general XOF surface). XOFx8/MACx8 instead fan the eight lanes out across
// goroutines: wall-clock parallel, not SIMD-register parallel, but bound by
// the same contract spec.md §4.3 requires — lane i's output is bit-identical
// to a scalar call with the same input, and one lane's content can never
// influence another's.
package xof

// Lanes is the batch width of the x8 primitive forms.
const Lanes = 8

// XOFx8 runs XOF independently across eight lanes and returns eight outputs,
// each bit-identical to Suite.XOF(ins[i], outLen).
func (s *Suite) XOFx8(ins [Lanes][]byte, outLen int) [Lanes][]byte {
	var out [Lanes][]byte
	var wg waitGroup
	for i := 0; i < Lanes; i++ {
		i := i
		wg.Go(func() {
			out[i] = s.XOF(ins[i], outLen)
		})
	}
	wg.Wait()
	return out
}

// SqueezeBlocksX8 runs SqueezeBlocks independently across eight lanes.
func (s *Suite) SqueezeBlocksX8(ins [Lanes][]byte, need int) [Lanes][]byte {
	var out [Lanes][]byte
	var wg waitGroup
	for i := 0; i < Lanes; i++ {
		i := i
		wg.Go(func() {
			out[i] = s.SqueezeBlocks(ins[i], need)
		})
	}
	wg.Wait()
	return out
}

// MACx8 runs MAC independently across eight lanes and returns eight tags,
// each bit-identical to Suite.MAC(keys[i], msgs[i], customs[i], tagLen).
func (s *Suite) MACx8(keys, msgs, customs [Lanes][]byte, tagLen int) [Lanes][]byte {
	var out [Lanes][]byte
	var wg waitGroup
	for i := 0; i < Lanes; i++ {
		i := i
		wg.Go(func() {
			out[i] = s.MAC(keys[i], msgs[i], customs[i], tagLen)
		})
	}
	wg.Wait()
	return out
}

// waitGroup is a minimal fixed-fan-out helper: each Go call runs fn in its
// own goroutine, and Wait blocks until all of them return. Lanes share no
// mutable state, so no further synchronisation is required.
type waitGroup struct {
	done chan struct{}
	n    int
}

func (w *waitGroup) Go(fn func()) {
	if w.done == nil {
		w.done = make(chan struct{}, Lanes)
	}
	w.n++
	go func() {
		fn()
		w.done <- struct{}{}
	}()
}

func (w *waitGroup) Wait() {
	for i := 0; i < w.n; i++ {
		<-w.done
	}
}
