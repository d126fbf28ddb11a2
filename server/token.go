package server

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"net/netip"
	"sync"
	"time"

	"github.com/crisscross-dht/crisscrossdht/crypto"
	"github.com/crisscross-dht/crisscrossdht/dht"
	"github.com/crisscross-dht/crisscrossdht/ids"
)

// TokenSize is the length in bytes of a minted write token.
const TokenSize = 20

// DefaultTokenRotationInterval is how long a minting key stays current
// before a fresh one replaces it. The previous key remains valid for one
// more interval as a grace period, so a token minted just before rotation
// doesn't immediately fail announce_peer/store (spec §9 "Token design").
const DefaultTokenRotationInterval = 5 * time.Minute

// TokenMinter issues and checks write tokens bound to a requester's
// address and the key/name/info-hash they're writing to, without storing
// any per-token state — verification just recomputes the HMAC under the
// current or previous rotation key.
type TokenMinter struct {
	mu       sync.Mutex
	current  []byte
	previous []byte
	rotated  time.Time
	interval time.Duration
	tp       dht.TimeProvider
}

// NewTokenMinter creates a minter with a freshly generated key. interval
// of 0 uses DefaultTokenRotationInterval.
func NewTokenMinter(interval time.Duration, tp dht.TimeProvider) *TokenMinter {
	if interval <= 0 {
		interval = DefaultTokenRotationInterval
	}
	if tp == nil {
		tp = dht.DefaultTimeProvider{}
	}
	m := &TokenMinter{interval: interval, tp: tp}
	m.current = randomKey()
	m.rotated = tp.Now()
	return m
}

func randomKey() []byte {
	k := make([]byte, 32)
	_, _ = rand.Read(k)
	return k
}

// maybeRotate replaces the current key with a fresh one once interval has
// elapsed, demoting the old current key to previous. Once two intervals
// have elapsed it rotates twice, so the old current key is dropped as well.
// Caller must hold m.mu.
func (m *TokenMinter) maybeRotate() {
	elapsed := m.tp.Now().Sub(m.rotated)
	if elapsed < m.interval {
		return
	}
	steps := 1
	if elapsed >= 2*m.interval {
		steps = 2
	}
	for i := 0; i < steps; i++ {
		if m.previous != nil {
			crypto.ZeroBytes(m.previous)
		}
		m.previous = m.current
		m.current = randomKey()
	}
	m.rotated = m.tp.Now()
}

func (m *TokenMinter) compute(key []byte, addr netip.AddrPort, target ids.NodeID) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(addr.String()))
	mac.Write(target[:])
	sum := mac.Sum(nil)
	return sum[:TokenSize]
}

// Mint issues a token authorizing addr to write to target (an info hash,
// value key, or name id) for roughly one rotation interval, plus the
// grace period the previous key still honors (spec §9).
func (m *TokenMinter) Mint(addr netip.AddrPort, target ids.NodeID) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maybeRotate()
	return m.compute(m.current, addr, target)
}

// Verify reports whether token was minted for addr/target under the
// current or previous rotation key.
func (m *TokenMinter) Verify(token []byte, addr netip.AddrPort, target ids.NodeID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maybeRotate()

	if hmac.Equal(token, m.compute(m.current, addr, target)) {
		return true
	}
	if m.previous != nil && hmac.Equal(token, m.compute(m.previous, addr, target)) {
		return true
	}
	return false
}
