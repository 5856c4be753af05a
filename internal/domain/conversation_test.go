package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirectKey(t *testing.T) {
	t.Run("canonicalizes participant order", func(t *testing.T) {
		assert.Equal(t, DirectKey(7, 3), DirectKey(3, 7))
		assert.Equal(t, int64(3), DirectKey(7, 3).Low)
		assert.Equal(t, int64(7), DirectKey(7, 3).High)
	})

	t.Run("self conversation collapses to one key", func(t *testing.T) {
		key := DirectKey(5, 5)
		assert.Equal(t, int64(5), key.Low)
		assert.Equal(t, int64(5), key.High)
	})

	t.Run("is not a group key", func(t *testing.T) {
		assert.False(t, DirectKey(1, 2).IsGroup())
		assert.True(t, GroupKey(9).IsGroup())
	})
}

func TestConversationKeyCounterpart(t *testing.T) {
	key := DirectKey(3, 7)

	assert.Equal(t, int64(7), key.Counterpart(3))
	assert.Equal(t, int64(3), key.Counterpart(7))

	self := DirectKey(5, 5)
	assert.Equal(t, int64(5), self.Counterpart(5))
}
