// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/kinbank/internal/platform/sec"
)

func TestHasher_Hash(t *testing.T) {
	hasher := sec.NewHasher(sec.MinIterations)
	ctx := context.Background()

	t.Run("record has salt, iterations and key", func(t *testing.T) {
		record, err := hasher.Hash(ctx, "password123")
		require.NoError(t, err)

		parts := strings.Split(record, ":")
		require.Len(t, parts, 3)
		assert.Len(t, parts[0], sec.SaltLength*2)
		assert.Equal(t, "10000", parts[1])
		assert.Len(t, parts[2], sec.KeyLength*2)
	})

	t.Run("same password produces different records (salt)", func(t *testing.T) {
		first, err := hasher.Hash(ctx, "samepassword")
		require.NoError(t, err)
		second, err := hasher.Hash(ctx, "samepassword")
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("rejects empty password", func(t *testing.T) {
		_, err := hasher.Hash(ctx, "")
		assert.ErrorIs(t, err, sec.ErrEmptyPassword)
	})

	t.Run("low iteration counts are raised to the minimum", func(t *testing.T) {
		record, err := sec.NewHasher(10).Hash(ctx, "password123")
		require.NoError(t, err)
		assert.Equal(t, "10000", strings.Split(record, ":")[1])
	})
}

func TestHasher_Verify(t *testing.T) {
	hasher := sec.NewHasher(sec.MinIterations)
	ctx := context.Background()

	record, err := hasher.Hash(ctx, "correct horse")
	require.NoError(t, err)

	tests := []struct {
		name     string
		password string
		want     bool
	}{
		{"correct password", "correct horse", true},
		{"wrong password", "battery staple", false},
		{"case differs", "Correct horse", false},
		{"empty password", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := hasher.Verify(ctx, tt.password, record)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestHasher_Verify_MalformedRecord(t *testing.T) {
	hasher := sec.NewHasher(sec.MinIterations)

	records := []string{
		"",
		"not-a-record",
		"aa:bb",
		"zz:10000:" + strings.Repeat("ab", 32),
		"00112233445566778899aabbccddeeff:abc:" + strings.Repeat("ab", 32),
		"00112233445566778899aabbccddeeff:-1:" + strings.Repeat("ab", 32),
		"00112233445566778899aabbccddeeff:10000:xyz",
		"a:b:c:d",
	}

	for _, record := range records {
		ok, err := hasher.Verify(context.Background(), "pw", record)
		assert.ErrorIs(t, err, sec.ErrMalformedRecord, "record %q", record)
		assert.False(t, ok)
	}
}

func TestHasher_VerifyHonoursStoredIterations(t *testing.T) {
	ctx := context.Background()
	weak := sec.NewHasher(sec.MinIterations)
	strong := sec.NewHasher(sec.MinIterations * 2)

	record, err := weak.Hash(ctx, "pw1")
	require.NoError(t, err)

	ok, err := strong.Verify(ctx, "pw1", record)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, strong.NeedsRehash(record))
	assert.False(t, weak.NeedsRehash(record))
}

func TestHasher_CancelledContext(t *testing.T) {
	hasher := sec.NewHasher(sec.MinIterations)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A cancelled context may still win the semaphore when a slot is free,
	// so only a result or a context error is acceptable.
	_, err := hasher.Hash(ctx, "pw")
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestHasher_ConcurrentUse(t *testing.T) {
	hasher := sec.NewHasher(sec.MinIterations)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record, err := hasher.Hash(ctx, "concurrent")
			if err != nil {
				errs <- err
				return
			}
			ok, err := hasher.Verify(ctx, "concurrent", record)
			if err != nil || !ok {
				errs <- assert.AnError
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent hashing failed: %v", err)
	}
}
