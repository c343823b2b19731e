// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"context"
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/sync/semaphore"
)

// # Key Derivation Parameters

const (
	// DefaultIterations is the PBKDF2 work factor for new records.
	DefaultIterations = 100_000

	// MinIterations is the lowest work factor accepted for new records.
	MinIterations = 10_000

	// SaltLength is the random salt size in bytes.
	SaltLength = 16

	// KeyLength is the derived key size in bytes (SHA-512 output).
	KeyLength = 64

	// maxStoredIterations guards Verify against records that would pin a CPU.
	maxStoredIterations = 10_000_000
)

// ErrMalformedRecord is returned when a stored hash does not parse as
// "saltHex:iterations:derivedKeyHex".
var ErrMalformedRecord = errors.New("sec: malformed password hash record")

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = errors.New("sec: password cannot be empty")

// # Hasher

// Hasher salts, derives and verifies password records with PBKDF2-HMAC-SHA512.
//
// Derivation is CPU-bound, so every call first acquires a slot from a
// weighted semaphore sized to GOMAXPROCS. A burst of logins queues behind
// the pool instead of starving every other request of CPU time.
//
// # Concurrency
//
// Hasher is safe for concurrent use.
type Hasher struct {
	iterations int
	slots      *semaphore.Weighted
}

// NewHasher returns a Hasher deriving new records with the given iteration count.
// A count below [MinIterations] is raised to [MinIterations].
func NewHasher(iterations int) *Hasher {
	if iterations < MinIterations {
		iterations = MinIterations
	}
	return &Hasher{
		iterations: iterations,
		slots:      semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0))),
	}
}

// Hash derives a fresh record for password.
func (hasher *Hasher) Hash(ctx context.Context, password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("sec: failed to generate salt: %w", err)
	}

	derived, err := hasher.derive(ctx, password, salt, hasher.iterations, KeyLength)
	if err != nil {
		return "", err
	}

	return strings.Join([]string{
		hex.EncodeToString(salt),
		strconv.Itoa(hasher.iterations),
		hex.EncodeToString(derived),
	}, ":"), nil
}

// Verify re-derives password with the parameters stored in record and
// compares the keys in constant time.
//
// Returns (true, nil) on match, (false, nil) on mismatch and
// (false, [ErrMalformedRecord]) when record cannot be parsed.
func (hasher *Hasher) Verify(ctx context.Context, password, record string) (bool, error) {
	salt, iterations, expected, err := parseRecord(record)
	if err != nil {
		return false, err
	}

	derived, err := hasher.derive(ctx, password, salt, iterations, len(expected))
	if err != nil {
		return false, err
	}

	return subtle.ConstantTimeCompare(derived, expected) == 1, nil
}

// NeedsRehash reports whether record was derived with fewer iterations than
// the hasher currently uses.
func (hasher *Hasher) NeedsRehash(record string) bool {
	_, iterations, _, err := parseRecord(record)
	return err == nil && iterations < hasher.iterations
}

// derive runs PBKDF2 inside a pool slot.
func (hasher *Hasher) derive(ctx context.Context, password string, salt []byte, iterations, keyLength int) ([]byte, error) {
	if err := hasher.slots.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("sec: hashing pool: %w", err)
	}
	defer hasher.slots.Release(1)

	return pbkdf2.Key([]byte(password), salt, iterations, keyLength, sha512.New), nil
}

// parseRecord splits "saltHex:iterations:derivedKeyHex".
func parseRecord(record string) (salt []byte, iterations int, key []byte, err error) {
	parts := strings.Split(record, ":")
	if len(parts) != 3 {
		return nil, 0, nil, ErrMalformedRecord
	}

	salt, err = hex.DecodeString(parts[0])
	if err != nil || len(salt) == 0 {
		return nil, 0, nil, ErrMalformedRecord
	}

	iterations, err = strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 || iterations > maxStoredIterations {
		return nil, 0, nil, ErrMalformedRecord
	}

	key, err = hex.DecodeString(parts[2])
	if err != nil || len(key) < 16 || len(key) > 512 {
		return nil, 0, nil, ErrMalformedRecord
	}

	return salt, iterations, key, nil
}
