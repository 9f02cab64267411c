package toa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaiters(t *testing.T) {
	t.Run("deliver completes registered waiter once", func(t *testing.T) {
		r := newWaiters()
		w := r.register(PrefixTDIResponse)

		require.True(t, r.deliver(PrefixTDIResponse, []byte{0x0F}))
		assert.Equal(t, Response{Prefix: PrefixTDIResponse, Data: []byte{0x0F}}, <-w.ch)
		assert.False(t, r.deliver(PrefixTDIResponse, []byte{0x0F}), "waiter MUST be single-shot")
		assert.Zero(t, r.len())
	})

	t.Run("unsolicited prefix is not delivered", func(t *testing.T) {
		r := newWaiters()
		assert.False(t, r.deliver(PrefixReady, nil))
	})

	t.Run("multi-prefix waiter drops every registration", func(t *testing.T) {
		r := newWaiters()
		w := r.register(PrefixAuthResponse, PrefixAssociate)
		assert.Equal(t, 2, r.len())

		require.True(t, r.deliver(PrefixAssociate, []byte{1}))
		assert.Equal(t, PrefixAssociate, (<-w.ch).Prefix)
		assert.Zero(t, r.len())
		assert.False(t, r.deliver(PrefixAuthResponse, nil))
	})

	t.Run("newer registration replaces older", func(t *testing.T) {
		r := newWaiters()
		old := r.register(PrefixSongResponse)
		fresh := r.register(PrefixSongResponse)

		require.True(t, r.deliver(PrefixSongResponse, []byte{2}))
		assert.Len(t, fresh.ch, 1)
		assert.Empty(t, old.ch)
	})

	t.Run("cancel removes without completing", func(t *testing.T) {
		r := newWaiters()
		w := r.register(PrefixOpenChannel)
		r.cancel(w)

		assert.Zero(t, r.len())
		assert.False(t, r.deliver(PrefixOpenChannel, nil))
		assert.Empty(t, w.ch)
	})

	t.Run("cancel of replaced waiter keeps the new one", func(t *testing.T) {
		r := newWaiters()
		old := r.register(PrefixReady)
		fresh := r.register(PrefixReady)
		r.cancel(old)

		require.True(t, r.deliver(PrefixReady, []byte{20}))
		assert.Len(t, fresh.ch, 1)
	})
}
