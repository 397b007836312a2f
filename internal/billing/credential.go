package billing

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// passwordAlphabet leaves out 0/O and 1/I/l so the credential can be read
// off an email and typed by hand.
const passwordAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghjkmnpqrstuvwxyz23456789"

const DefaultPasswordLength = 12

// GenerateTempPassword returns a random one-time login credential.
func GenerateTempPassword(length int) (string, error) {
	if length <= 0 {
		length = DefaultPasswordLength
	}

	max := big.NewInt(int64(len(passwordAlphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("reading random source: %w", err)
		}
		buf[i] = passwordAlphabet[n.Int64()]
	}
	return string(buf), nil
}
