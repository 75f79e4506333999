// SPDX-License-Identifier: MIT

// Package password hashes and checks secrets with bcrypt.
package password

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/seedlab/seedlab/internal/apperr"
)

const (
	MinLength = 8
	// bcrypt ignores input past 72 bytes.
	MaxLength = 72
)

// Cost is the bcrypt work factor. Tests lower it.
var Cost = bcrypt.DefaultCost

// Validate enforces the password policy: minimum length, at least one letter
// and one digit.
func Validate(pw string) error {
	var letter, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	switch {
	case len(pw) < MinLength:
		return apperr.Invalid("password too short").WithField("password", fmt.Sprintf("must be at least %d characters", MinLength))
	case len(pw) > MaxLength:
		return apperr.Invalid("password too long").WithField("password", fmt.Sprintf("must be at most %d bytes", MaxLength))
	case !letter || !digit:
		return apperr.Invalid("password too weak").WithField("password", "must contain a letter and a digit")
	}
	return nil
}

// Hash returns the bcrypt hash of secret.
func Hash(secret string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(secret), Cost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(h), nil
}

// Verify reports whether secret matches hash. Malformed hashes never match.
func Verify(hash, secret string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	if err != nil && !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false
	}
	return err == nil
}

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// RandomCode returns n characters from an alphabet without ambiguous glyphs.
func RandomCode(n int) (string, error) {
	return randomFrom(codeAlphabet, n)
}

// RandomDigits returns n decimal digits.
func RandomDigits(n int) (string, error) {
	return randomFrom("0123456789", n)
}

func randomFrom(alphabet string, n int) (string, error) {
	out := make([]byte, n)
	max := big.NewInt(int64(len(alphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("random code: %w", err)
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}
