package xof

import (
	"crypto/rand"
	"crypto/subtle"
	"io"

	hkdserrors "github.com/kdflabs/hkds-go/internal/errors"
)

// SecureRandom fills b with cryptographically secure random bytes sourced
// from the OS CSPRNG. generate_mdk's default entropy source uses this to
// seed the root of a derivation tree (spec.md §4.2: "fills the provided buffer
// with cryptographically strong bytes; must not fail").
func SecureRandom(b []byte) error {
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return hkdserrors.NewCryptoError("xof.SecureRandom", hkdserrors.ErrEntropySourceFailed)
	}
	return nil
}

// SecureRandomBytes returns n cryptographically secure random bytes.
func SecureRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if err := SecureRandom(b); err != nil {
		return nil, err
	}
	return b, nil
}

// MustSecureRandom fills b with cryptographically secure random bytes and
// panics if the CSPRNG fails. generate_mdk's RNG contract is fatal-on-failure
// by definition, so callers that cannot propagate an error use this form.
func MustSecureRandom(b []byte) {
	if err := SecureRandom(b); err != nil {
		panic("xof: failed to read from CSPRNG: " + err.Error())
	}
}

// ConstantTimeCompare reports whether a and b are equal, in time independent
// of their content. Every MAC tag verification (decrypt_token,
// decrypt_verify_message) must use this instead of bytes.Equal.
func ConstantTimeCompare(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// Zeroize overwrites b with zeros. Called on derived keys, MDKs, EDKs, and
// consumed transaction-key cache slots once they are no longer needed.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ZeroizeMultiple zeroizes every slice given.
func ZeroizeMultiple(slices ...[]byte) {
	for _, s := range slices {
		Zeroize(s)
	}
}
