// Package challenge generates verification codes, recovery passwords, and
// arithmetic captchas for the linking flows.
package challenge

import (
	"crypto/rand"
	"fmt"
	"math/big"
	mathrand "math/rand/v2"
	"strings"
)

const passwordChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Code returns a uniformly random 6-digit verification code in
// [100000, 999999]. Codes are scoped per link row, so collisions across rows
// are accepted and not checked.
func Code() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()) + 100000, nil
}

// Password returns a random password of the given length over letters and
// digits, rejection-sampled until it contains at least one lowercase letter,
// one uppercase letter, and one digit. For length >= 3 a draw passes with
// high probability, so the loop terminates after a handful of tries.
func Password(length int) (string, error) {
	if length < 3 {
		return "", fmt.Errorf("challenge: password length %d cannot satisfy the character classes", length)
	}
	max := big.NewInt(int64(len(passwordChars)))
	for {
		var b strings.Builder
		b.Grow(length)
		for i := 0; i < length; i++ {
			n, err := rand.Int(rand.Reader, max)
			if err != nil {
				return "", err
			}
			b.WriteByte(passwordChars[n.Int64()])
		}
		pw := b.String()
		if strings.ContainsAny(pw, "abcdefghijklmnopqrstuvwxyz") &&
			strings.ContainsAny(pw, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") &&
			strings.ContainsAny(pw, "0123456789") {
			return pw, nil
		}
	}
}

// Arithmetic returns a human-solvable prompt like "7 + 3" and the exact
// string form of its answer. Operands are in [1, 10]; subtraction may yield a
// negative answer and is rendered as-is. The captcha gates an accidental tap,
// not an attacker, so math/rand randomness is sufficient.
func Arithmetic() (prompt, answer string) {
	a := mathrand.IntN(10) + 1
	b := mathrand.IntN(10) + 1
	if mathrand.IntN(2) == 0 {
		return fmt.Sprintf("%d + %d", a, b), fmt.Sprintf("%d", a+b)
	}
	return fmt.Sprintf("%d - %d", a, b), fmt.Sprintf("%d", a-b)
}
