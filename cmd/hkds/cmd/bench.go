package cmd

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kdflabs/hkds-go/internal/constants"
	"github.com/kdflabs/hkds-go/pkg/hkds"
	"github.com/kdflabs/hkds-go/pkg/hkds/server"
	"github.com/kdflabs/hkds-go/pkg/xof"
)

var benchIterations int

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Compare scalar, x8, and x64 token-issuance throughput",
	Long: `bench issues tokens through the scalar, eight-way, and sixty-four-way
server derivation paths and reports throughput, illustrating the batching
payoff spec.md §2 motivates ("amortise the absorb cost ... across eight or
sixty-four independent device states in one SIMD-parallel invocation").`,
	RunE: runBench,
}

func init() {
	benchCmd.Flags().IntVar(&benchIterations, "iterations", 200, "Number of batch operations per path")
}

func runBench(cmd *cobra.Command, args []string) error {
	mode := parseMode(modeFlag)
	suite, err := xof.New(mode)
	if err != nil {
		return fmt.Errorf("build suite: %w", err)
	}

	var kid [constants.KIDSize]byte
	mdk, err := hkds.GenerateMDK(mode, hkds.DefaultEntropySource, kid)
	if err != nil {
		return fmt.Errorf("generate MDK: %w", err)
	}
	defer mdk.Zeroize()

	scalarKSN := devKSN(0, mode)
	start := time.Now()
	s := server.New(suite, mdk, scalarKSN)
	for i := 0; i < benchIterations*constants.CacheX64Depth; i++ {
		_ = s.EncryptToken()
	}
	scalarElapsed := time.Since(start)
	scalarPerTok := scalarElapsed / time.Duration(benchIterations*constants.CacheX64Depth)

	var ksns8 [xof.Lanes]hkds.KSN
	for i := range ksns8 {
		ksns8[i] = devKSN(uint32(i), mode)
	}
	start = time.Now()
	b := server.NewBatch(suite, mdk, ksns8)
	for i := 0; i < benchIterations; i++ {
		_ = b.EncryptTokenX8()
	}
	x8Elapsed := time.Since(start)
	x8PerTok := x8Elapsed / time.Duration(benchIterations*xof.Lanes)

	var ksns64 [constants.CacheX64Depth]hkds.KSN
	for i := range ksns64 {
		ksns64[i] = devKSN(uint32(i), mode)
	}
	start = time.Now()
	p := server.NewParallel(suite, mdk, ksns64)
	for i := 0; i < benchIterations; i++ {
		_ = p.EncryptTokenX64()
	}
	x64Elapsed := time.Since(start)
	x64PerTok := x64Elapsed / time.Duration(benchIterations*constants.CacheX64Depth)

	fmt.Printf("mode=%s iterations=%d\n", mode, benchIterations)
	fmt.Printf("  scalar  : %-10v total, %v/token\n", scalarElapsed, scalarPerTok)
	fmt.Printf("  x8      : %-10v total, %v/token\n", x8Elapsed, x8PerTok)
	fmt.Printf("  x64     : %-10v total, %v/token\n", x64Elapsed, x64PerTok)
	return nil
}

func devKSN(idx uint32, mode constants.Mode) hkds.KSN {
	var did [constants.DIDSize]byte
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	copy(did[:4], b)
	did[8] = byte(idx >> 24)
	did[9] = byte(idx >> 16)
	did[10] = byte(idx >> 8)
	did[11] = byte(idx)
	k := hkds.NewKSN(did)
	k.SetProtocolAndMode(constants.ProtocolIDAuth, mode.PRFModeTag())
	return k
}
