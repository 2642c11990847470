package auth

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/pbkdf2"
)

const (
	hashScheme = "pbkdf2-sha512"

	defaultIterations = 210000
	saltBytes         = 16
	keyBytes          = 64

	legacyIterations = 1000

	// MinPasswordLength is the shortest password accepted at signup.
	MinPasswordLength = 6
)

var ErrPasswordTooShort = errors.New("password must be at least 6 characters")

// HashPassword derives a PBKDF2-SHA512 hash encoded as
// "pbkdf2-sha512$<iterations>$<salthex>$<hashhex>".
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := pbkdf2.Key([]byte(password), salt, defaultIterations, keyBytes, sha512.New)
	return fmt.Sprintf("%s$%d$%s$%s", hashScheme, defaultIterations, hex.EncodeToString(salt), hex.EncodeToString(key)), nil
}

// CheckPassword reports whether password matches stored. Besides the current
// format it accepts legacy "salthex:hashhex" records, whose salt string is
// used as raw bytes with 1000 iterations.
func CheckPassword(password, stored string) bool {
	if strings.HasPrefix(stored, hashScheme+"$") {
		return checkCurrent(password, stored)
	}
	salt, hash, ok := strings.Cut(stored, ":")
	if !ok || salt == "" || hash == "" {
		return false
	}
	want, err := hex.DecodeString(hash)
	if err != nil {
		return false
	}
	got := pbkdf2.Key([]byte(password), []byte(salt), legacyIterations, len(want), sha512.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}

func checkCurrent(password, stored string) bool {
	parts := strings.Split(stored, "$")
	if len(parts) != 4 {
		return false
	}
	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 {
		return false
	}
	salt, err := hex.DecodeString(parts[2])
	if err != nil {
		return false
	}
	want, err := hex.DecodeString(parts[3])
	if err != nil || len(want) == 0 {
		return false
	}
	got := pbkdf2.Key([]byte(password), salt, iterations, len(want), sha512.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}

// ValidatePassword enforces the signup password policy.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}
