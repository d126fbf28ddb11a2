package server

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crisscross-dht/crisscrossdht/ids"
)

type tokenClock struct{ now time.Time }

func (c *tokenClock) Now() time.Time                 { return c.now }
func (c *tokenClock) Since(t time.Time) time.Duration { return c.now.Sub(t) }

func TestTokenMintAndVerify(t *testing.T) {
	clock := &tokenClock{now: time.Unix(0, 0)}
	m := NewTokenMinter(5*time.Minute, clock)

	addr := netip.MustParseAddrPort("10.0.0.1:1")
	target, err := ids.Random()
	require.NoError(t, err)

	token := m.Mint(addr, target)
	assert.True(t, m.Verify(token, addr, target))
}

func TestTokenRejectsWrongAddrOrTarget(t *testing.T) {
	clock := &tokenClock{now: time.Unix(0, 0)}
	m := NewTokenMinter(5*time.Minute, clock)

	addr := netip.MustParseAddrPort("10.0.0.1:1")
	other := netip.MustParseAddrPort("10.0.0.2:1")
	target, err := ids.Random()
	require.NoError(t, err)

	token := m.Mint(addr, target)
	assert.False(t, m.Verify(token, other, target))
}

func TestTokenValidDuringGracePeriodAfterRotation(t *testing.T) {
	clock := &tokenClock{now: time.Unix(0, 0)}
	m := NewTokenMinter(5*time.Minute, clock)

	addr := netip.MustParseAddrPort("10.0.0.1:1")
	target, err := ids.Random()
	require.NoError(t, err)

	token := m.Mint(addr, target)

	clock.now = clock.now.Add(6 * time.Minute)
	assert.True(t, m.Verify(token, addr, target), "token should survive one rotation via the previous-key grace period")
}

func TestTokenExpiresAfterGracePeriod(t *testing.T) {
	clock := &tokenClock{now: time.Unix(0, 0)}
	m := NewTokenMinter(5*time.Minute, clock)

	addr := netip.MustParseAddrPort("10.0.0.1:1")
	target, err := ids.Random()
	require.NoError(t, err)

	token := m.Mint(addr, target)

	clock.now = clock.now.Add(11 * time.Minute)
	m.Verify(token, addr, target) // triggers the second rotation
	assert.False(t, m.Verify(token, addr, target))
}
