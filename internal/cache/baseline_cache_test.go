package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hlview/hl-dashboard/internal/account"
)

func TestBaselineCache_SetAndGet(t *testing.T) {
	c := NewBaselineCache(time.Minute)

	c.Set("0xabc", account.Snapshot{User: "0xabc", AccountValue: "100"})

	snap, ok := c.Get("0xabc")
	require.True(t, ok)
	assert.Equal(t, "100", snap.AccountValue)
}

func TestBaselineCache_CaseInsensitiveKey(t *testing.T) {
	c := NewBaselineCache(time.Minute)

	c.Set("0xAbCdEf", account.Snapshot{User: "0xabcdef"})

	_, ok := c.Get("0xABCDEF")
	assert.True(t, ok)
}

func TestBaselineCache_Miss(t *testing.T) {
	c := NewBaselineCache(time.Minute)

	_, ok := c.Get("0x999")
	assert.False(t, ok)
}

func TestBaselineCache_Delete(t *testing.T) {
	c := NewBaselineCache(time.Minute)
	c.Set("0xabc", account.Snapshot{})

	c.Delete("0xABC")

	_, ok := c.Get("0xabc")
	assert.False(t, ok)
}

func TestBaselineCache_Expires(t *testing.T) {
	c := NewBaselineCache(10 * time.Millisecond)
	c.Set("0xabc", account.Snapshot{})

	time.Sleep(30 * time.Millisecond)

	_, ok := c.Get("0xabc")
	assert.False(t, ok)
}
