package server

import (
	"sync"
	"time"

	"github.com/kdflabs/hkds-go/internal/constants"
	hkdserrors "github.com/kdflabs/hkds-go/internal/errors"
	"github.com/kdflabs/hkds-go/pkg/hkds"
	"github.com/kdflabs/hkds-go/pkg/xof"
)

// ParallelState fans a sixty-four-device operation out to eight independent
// eight-way BatchStates. It is a pure data-parallel fan-out over
// constants.ParallelDepth tasks: the MDK and every KSN array are read-only
// for the duration, and each task writes to a disjoint slice of the output
// arrays, so no synchronisation beyond a wait for completion is required
// (spec.md §4.3, §5).
type ParallelState struct {
	Suite    *xof.Suite
	MDK      *hkds.MDK
	KSNs     [constants.CacheX64Depth]hkds.KSN
	Observer hkds.Observer
}

// NewParallel builds a sixty-four-lane parallel state.
func NewParallel(suite *xof.Suite, mdk *hkds.MDK, ksns [constants.CacheX64Depth]hkds.KSN) *ParallelState {
	return &ParallelState{Suite: suite, MDK: mdk, KSNs: ksns, Observer: hkds.NoOpObserver{}}
}

// WithObserver attaches obs to p and returns p for chaining.
func (p *ParallelState) WithObserver(obs hkds.Observer) *ParallelState {
	p.Observer = obs
	return p
}

func (p *ParallelState) observer() hkds.Observer {
	if p.Observer == nil {
		return hkds.NoOpObserver{}
	}
	return p.Observer
}

// batches splits the 64 KSNs into ParallelDepth independent 8-way batches.
// Each task's own BatchState reports through NoOpObserver: ParallelState
// records one OnBatchX64 observation for the whole fan-out rather than
// ParallelDepth separate OnBatchX8 observations.
func (p *ParallelState) batches() [constants.ParallelDepth]*BatchState {
	var out [constants.ParallelDepth]*BatchState
	for t := 0; t < constants.ParallelDepth; t++ {
		var lane [xof.Lanes]hkds.KSN
		copy(lane[:], p.KSNs[t*xof.Lanes:(t+1)*xof.Lanes])
		out[t] = NewBatch(p.Suite, p.MDK, lane).WithObserver(hkds.NoOpObserver{})
	}
	return out
}

// EncryptTokenX64 issues sixty-four encrypted tokens by running
// ParallelDepth EncryptTokenX8 calls across worker goroutines. Result
// placement is position-determined: task t owns output indices
// [t*8, t*8+8), so the result is deterministic regardless of goroutine
// scheduling order.
func (p *ParallelState) EncryptTokenX64() [constants.CacheX64Depth][]byte {
	start := time.Now()
	defer func() { p.observer().OnBatchX64(time.Since(start)) }()

	batches := p.batches()
	var out [constants.CacheX64Depth][]byte
	var wg sync.WaitGroup
	wg.Add(constants.ParallelDepth)
	for t := 0; t < constants.ParallelDepth; t++ {
		t := t
		go func() {
			defer wg.Done()
			etoks := batches[t].EncryptTokenX8()
			copy(out[t*xof.Lanes:(t+1)*xof.Lanes], etoks[:])
		}()
	}
	wg.Wait()
	return out
}

// DecryptVerifyMessageX64 decrypts and authenticates sixty-four messages
// across ParallelDepth worker goroutines, each running one
// DecryptVerifyMessageX8 call.
func (p *ParallelState) DecryptVerifyMessageX64(ciphertextsAndTags, data [constants.CacheX64Depth][]byte) (plaintexts [constants.CacheX64Depth][]byte, ok [constants.CacheX64Depth]bool, err error) {
	start := time.Now()
	defer func() { p.observer().OnBatchX64(time.Since(start)) }()

	batches := p.batches()
	errs := make([]error, constants.ParallelDepth)
	var wg sync.WaitGroup
	wg.Add(constants.ParallelDepth)
	for t := 0; t < constants.ParallelDepth; t++ {
		t := t
		go func() {
			defer wg.Done()
			var ctLane, dataLane [xof.Lanes][]byte
			copy(ctLane[:], ciphertextsAndTags[t*xof.Lanes:(t+1)*xof.Lanes])
			copy(dataLane[:], data[t*xof.Lanes:(t+1)*xof.Lanes])
			pts, oks, lerr := batches[t].DecryptVerifyMessageX8(ctLane, dataLane)
			if lerr != nil {
				errs[t] = lerr
				return
			}
			copy(plaintexts[t*xof.Lanes:(t+1)*xof.Lanes], pts[:])
			copy(ok[t*xof.Lanes:(t+1)*xof.Lanes], oks[:])
		}()
	}
	wg.Wait()
	for _, e := range errs {
		if e != nil {
			return plaintexts, ok, hkdserrors.NewCryptoError("server.DecryptVerifyMessageX64", e)
		}
	}
	return plaintexts, ok, nil
}
