package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crisscross-dht/crisscrossdht/wire"
)

func TestPendingTableDeliversToWaiter(t *testing.T) {
	p := newPendingTable()
	tid := []byte("abcd")
	ch := p.register(tid)

	delivered := p.deliver(&wire.Message{TID: tid})
	require.True(t, delivered)

	select {
	case m := <-ch:
		assert.Equal(t, tid, m.TID)
	default:
		t.Fatal("expected message on channel")
	}
}

func TestPendingTableDropsUnmatchedDeliveries(t *testing.T) {
	p := newPendingTable()
	delivered := p.deliver(&wire.Message{TID: []byte("nobody-waiting")})
	assert.False(t, delivered)
}

func TestPendingTableForgetRemovesWaiter(t *testing.T) {
	p := newPendingTable()
	tid := []byte("xyz")
	p.register(tid)
	p.forget(tid)

	assert.False(t, p.deliver(&wire.Message{TID: tid}))
}
