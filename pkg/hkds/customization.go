package hkds

import (
	"encoding/binary"

	"github.com/kdflabs/hkds-go/internal/constants"
)

// BuildCTOK constructs the token customization string: be32(epoch) ‖
// formal-name(7) ‖ DID(12). It binds a token to its epoch, to the HKDS
// construction/security level, and to the device (spec.md §3, §4.2).
func BuildCTOK(mode constants.Mode, epoch uint32, did [constants.DIDSize]byte) []byte {
	out := make([]byte, 0, constants.CTOKSize)
	var epochBuf [4]byte
	binary.BigEndian.PutUint32(epochBuf[:], epoch)
	out = append(out, epochBuf[:]...)
	name := mode.FormalName()
	out = append(out, name[:]...)
	out = append(out, did[:]...)
	return out
}

// BuildTMS constructs the token-MAC customization string: KSN(16) ‖
// mac-name(7). It binds a token's MAC to the exact KSN it was issued under
// (spec.md §3, §4.2).
func BuildTMS(mode constants.Mode, ksn KSN) []byte {
	out := make([]byte, 0, constants.TMSSize)
	out = append(out, ksn[:]...)
	name := mode.MACName()
	out = append(out, name[:]...)
	return out
}
