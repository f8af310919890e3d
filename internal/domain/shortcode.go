package domain

import (
	"crypto/md5" //nolint:gosec // content addressing, not authentication
	"crypto/rand"
	"encoding/hex"
	"math/big"
)

// ShortCodeAlphabet is the character set for generated short codes.
const ShortCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// ShortCodeLen is the fixed length of a short code.
const ShortCodeLen = 7

// CodeGenerator produces candidate short codes. Tests inject a colliding
// generator to exercise the insert retry loop.
type CodeGenerator interface {
	Generate() (string, error)
}

// RandomCodeGenerator generates uniformly random codes from ShortCodeAlphabet
// using crypto/rand.
type RandomCodeGenerator struct{}

// Generate returns a random ShortCodeLen-character code.
func (RandomCodeGenerator) Generate() (string, error) {
	max := big.NewInt(int64(len(ShortCodeAlphabet)))
	b := make([]byte, ShortCodeLen)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = ShortCodeAlphabet[n.Int64()]
	}
	return string(b), nil
}

// HashURL returns the hex MD5 digest of s. Used for Domain.url_hash and
// ShortURL.original_url_hash deduplicated lookups.
func HashURL(s string) string {
	sum := md5.Sum([]byte(s)) //nolint:gosec // content addressing, not authentication
	return hex.EncodeToString(sum[:])
}
