package common

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// Trim 0x or 0X prefix off the string.
func Trim0xPrefix(str string) string {
	s := strings.TrimPrefix(str, "0x")
	return strings.TrimPrefix(s, "0X")
}

// RandBytes32 generates [32]byte with random values.
// It panics if the system randomness source fails, a seed of zeros is worse.
func RandBytes32() [32]byte {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return b
}

// Shorten keeps n characters on both sides of a hex string, for log fields.
func Shorten(hexStr string, n int) string {
	str := Trim0xPrefix(hexStr)
	if len(str) <= n*2 {
		return str
	}
	return str[:n] + "..." + str[len(str)-n:]
}

// BigIntClone returns a copy, nil stays nil.
func BigIntClone(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
