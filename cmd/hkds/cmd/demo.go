package cmd

import (
	"crypto/rand"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kdflabs/hkds-go/internal/constants"
	"github.com/kdflabs/hkds-go/pkg/hkds"
	"github.com/kdflabs/hkds-go/pkg/hkds/client"
	"github.com/kdflabs/hkds-go/pkg/hkds/server"
	"github.com/kdflabs/hkds-go/pkg/metrics"
	"github.com/kdflabs/hkds-go/pkg/xof"
)

var demoRounds int

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a full HKDS provisioning and message cycle for a single device",
	Long: `demo provisions a Master Derivation Key, derives one device's Embedded
Device Key, issues and ingests a token, fills the client's transaction-key
cache, and round-trips encrypted and authenticated messages through the
server derivation path. It then exhausts the cache and performs an epoch
rollover, matching the end-to-end scenarios in spec.md §8.`,
	RunE: runDemo,
}

func init() {
	demoCmd.Flags().IntVar(&demoRounds, "rounds", 4, "Number of unauthenticated encrypt/decrypt rounds before the authenticated round")
}

func runDemo(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	collector := metrics.NewCollector(metrics.Labels{"cmd": "demo"})
	observer := metrics.NewHKDSObserver(collector, logger)

	mode := parseMode(modeFlag)
	suite, err := xof.New(mode)
	if err != nil {
		return fmt.Errorf("build suite: %w", err)
	}

	fmt.Printf("HKDS demo — mode %s (L=%d, R=%d, CacheSize=%d)\n\n",
		mode, suite.KeySize(), suite.Rate(), constants.CacheSize)

	var kid [constants.KIDSize]byte
	if _, err := rand.Read(kid[:]); err != nil {
		return fmt.Errorf("seed kid: %w", err)
	}
	mdk, err := hkds.GenerateMDK(mode, hkds.DefaultEntropySource, kid)
	if err != nil {
		return fmt.Errorf("generate MDK: %w", err)
	}
	defer mdk.Zeroize()
	fmt.Printf("✓ Generated MDK (kid=%x)\n", kid)

	var did [constants.DIDSize]byte
	copy(did[:4], []byte{0x01, 0x00, 0x00, 0x00})
	copy(did[6:8], []byte{0x01, 0x00})
	copy(did[8:12], []byte{0x01, 0x00, 0x00, 0x00})
	did[constants.OffsetProtocolID] = constants.ProtocolIDAuth
	did[constants.OffsetPRFMode] = mode.PRFModeTag()
	serverKSN := hkds.NewKSN(did)
	serverKSN.SetProtocolAndMode(constants.ProtocolIDAuth, mode.PRFModeTag())

	edk := hkds.GenerateEDK(suite, mdk.BDK, did)
	fmt.Printf("✓ Derived EDK for DID %x: %x\n", did, edk)

	clientState, err := client.New(suite, edk, did)
	if err != nil {
		return fmt.Errorf("init client: %w", err)
	}
	clientState.WithObserver(observer)

	serverState := server.New(suite, mdk, serverKSN).WithObserver(observer)
	etok := serverState.EncryptToken()
	fmt.Printf("✓ Server issued ETOK (%d bytes)\n", len(etok))

	token, ok, err := clientState.DecryptToken(etok)
	if err != nil {
		return fmt.Errorf("decrypt token: %w", err)
	}
	if !ok {
		fmt.Fprintln(os.Stderr, "✗ Client rejected token: MAC mismatch")
		return fmt.Errorf("token authentication failed")
	}
	fmt.Println("✓ Client verified and decrypted token")

	if err := clientState.GenerateCache(token); err != nil {
		return fmt.Errorf("generate cache: %w", err)
	}
	fmt.Printf("✓ Client filled cache (%d transaction keys)\n\n", constants.CacheSize)

	for i := 0; i < demoRounds; i++ {
		plaintext := make([]byte, constants.MsgLen)
		if _, err := rand.Read(plaintext); err != nil {
			return fmt.Errorf("draw plaintext: %w", err)
		}
		ciphertext, ok, err := clientState.EncryptMessage(plaintext)
		if err != nil || !ok {
			return fmt.Errorf("round %d: client encrypt failed: %v", i, err)
		}

		srvKSN := hkds.NewKSN(did)
		srvKSN.SetProtocolAndMode(constants.ProtocolIDAuth, mode.PRFModeTag())
		srvKSN.SetCounter(uint32(i))
		recoverState := server.New(suite, mdk, srvKSN).WithObserver(observer)
		recovered, err := recoverState.DecryptMessage(ciphertext)
		if err != nil {
			return fmt.Errorf("round %d: server decrypt failed: %w", i, err)
		}
		match := string(recovered) == string(plaintext)
		fmt.Printf("round %d: ciphertext=%x round-trip-ok=%v\n", i, ciphertext, match)
	}

	assocData := []byte{0xC0, 0xA8, 0x00, 0x01}
	plaintext := make([]byte, constants.MsgLen)
	if _, err := rand.Read(plaintext); err != nil {
		return fmt.Errorf("draw plaintext: %w", err)
	}
	authCounter := uint32(demoRounds)
	ciphertextAndTag, ok, err := clientState.EncryptAuthenticateMessage(plaintext, assocData)
	if err != nil || !ok {
		return fmt.Errorf("authenticated encrypt failed: %v", err)
	}
	authKSN := hkds.NewKSN(did)
	authKSN.SetProtocolAndMode(constants.ProtocolIDAuth, mode.PRFModeTag())
	authKSN.SetCounter(authCounter)
	authServer := server.New(suite, mdk, authKSN).WithObserver(observer)
	recovered, verified, err := authServer.DecryptVerifyMessage(ciphertextAndTag, assocData)
	if err != nil {
		return fmt.Errorf("authenticated decrypt errored: %w", err)
	}
	fmt.Printf("\nauthenticated round: verified=%v round-trip-ok=%v\n",
		verified, verified && string(recovered) == string(plaintext))

	_, ok, _ = authServer.DecryptVerifyMessage(ciphertextAndTag, []byte{0xC0, 0xA8, 0x00, 0x02})
	fmt.Printf("tamper check: flipped associated data -> verified=%v (expect false)\n", ok)

	remaining := constants.CacheSize - demoRounds - 2
	for i := 0; i < remaining; i++ {
		pt := make([]byte, constants.MsgLen)
		if _, _, err := clientState.EncryptMessage(pt); err != nil {
			return fmt.Errorf("draining cache: %w", err)
		}
	}
	_, ok, err = clientState.EncryptMessage(make([]byte, constants.MsgLen))
	fmt.Printf("\ncache exhausted: encrypt after %d total consumptions -> ok=%v err=%v\n",
		constants.CacheSize, ok, err)

	rolloverKSN := hkds.NewKSN(did)
	rolloverKSN.SetProtocolAndMode(constants.ProtocolIDAuth, mode.PRFModeTag())
	rolloverKSN.SetCounter(constants.CacheSize)
	rolloverServer := server.New(suite, mdk, rolloverKSN).WithObserver(observer)
	etok2 := rolloverServer.EncryptToken()
	token2, ok, err := clientState.DecryptToken(etok2)
	if err != nil || !ok {
		return fmt.Errorf("epoch rollover token rejected: %v", err)
	}
	if err := clientState.GenerateCache(token2); err != nil {
		return fmt.Errorf("epoch rollover cache: %w", err)
	}
	fmt.Println("✓ Epoch rollover: new token ingested, cache refilled, CacheEmpty =", clientState.CacheEmpty())

	snap := collector.Snapshot()
	fmt.Printf("\nmetrics: tokens_issued=%d messages_encrypted=%d messages_decrypted=%d cache_exhaustions=%d cache_refills=%d\n",
		snap.TokensIssued, snap.MessagesEncrypted, snap.MessagesDecrypted, snap.CacheExhaustions, snap.CacheRefills)
	return nil
}
