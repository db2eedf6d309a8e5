package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucketAllow(t *testing.T) {
	bucket := NewTokenBucket(3, time.Minute)

	assert.True(t, bucket.Allow())
	assert.True(t, bucket.Allow())
	assert.True(t, bucket.Allow())
	assert.False(t, bucket.Allow())
}

func TestTokenBucketRefill(t *testing.T) {
	bucket := NewTokenBucket(2, 20*time.Millisecond)

	assert.True(t, bucket.Allow())
	assert.True(t, bucket.Allow())
	assert.False(t, bucket.Allow())

	time.Sleep(30 * time.Millisecond)
	assert.True(t, bucket.Allow())
}

func TestTokenBucketReset(t *testing.T) {
	bucket := NewTokenBucket(1, time.Minute)
	assert.True(t, bucket.Allow())
	assert.False(t, bucket.Allow())

	bucket.Reset()
	assert.True(t, bucket.Allow())
}

func TestTokenBucketWait(t *testing.T) {
	bucket := NewTokenBucket(1, 20*time.Millisecond)
	assert.True(t, bucket.Allow())

	start := time.Now()
	bucket.Wait()
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestPerMinute(t *testing.T) {
	bucket := PerMinute(60, 10)
	for i := 0; i < 10; i++ {
		assert.True(t, bucket.Allow(), "burst request %d", i)
	}
	assert.False(t, bucket.Allow())
}

func TestPerMinuteBurstClamped(t *testing.T) {
	bucket := PerMinute(5, 100)
	for i := 0; i < 5; i++ {
		assert.True(t, bucket.Allow())
	}
	assert.False(t, bucket.Allow())
}
