package sidecar

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingCapturesWrites(t *testing.T) {
	r := newStderrRing(64)
	_, err := r.Write([]byte("hello "))
	assert.NoError(t, err)
	_, _ = r.Write([]byte("world"))
	assert.Equal(t, "hello world", r.String())
	assert.Zero(t, r.Dropped())
}

func TestRingDropsOldestWhenFull(t *testing.T) {
	r := newStderrRing(8)
	_, _ = r.Write([]byte("abcdefgh"))
	_, _ = r.Write([]byte("XY"))
	assert.Equal(t, "cdefghXY", r.String())
	assert.Equal(t, int64(2), r.Dropped())
}

func TestRingOversizeWriteKeepsTail(t *testing.T) {
	r := newStderrRing(4)
	_, _ = r.Write([]byte("0123456789"))
	assert.Equal(t, "6789", r.String())
	assert.Equal(t, int64(6), r.Dropped())
}

func TestRingNeverBlocks(t *testing.T) {
	r := newStderrRing(16)
	chunk := strings.Repeat("x", 1024)
	for i := 0; i < 1000; i++ {
		n, err := r.Write([]byte(chunk))
		assert.NoError(t, err)
		assert.Equal(t, len(chunk), n)
	}
	assert.Len(t, r.String(), 16)
}

func TestCancelToken(t *testing.T) {
	tok := NewCancelToken()
	assert.False(t, tok.Cancelled())

	select {
	case <-tok.Done():
		t.Fatal("done channel closed before cancel")
	default:
	}

	tok.Cancel()
	tok.Cancel() // idempotent
	assert.True(t, tok.Cancelled())

	select {
	case <-tok.Done():
	default:
		t.Fatal("done channel still open after cancel")
	}
}
