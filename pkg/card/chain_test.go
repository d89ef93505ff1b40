package card_test

import (
	"testing"

	"github.com/capiscio/capiscio-cards/pkg/card"
	"github.com/capiscio/capiscio-cards/pkg/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkedCardList_Chain(t *testing.T) {
	c := crypto.NewEd25519Crypto()
	a, _ := newSelfSignedCard(t, c, "alice", "")
	b, _ := newSelfSignedCard(t, c, "alice", a.ID)
	cc, _ := newSelfSignedCard(t, c, "alice", b.ID)

	heads, err := card.LinkedCardList([]*card.Card{b, cc, a})
	require.NoError(t, err)
	require.Len(t, heads, 1)

	head := heads[0]
	assert.Equal(t, cc.ID, head.ID)
	assert.False(t, head.IsOutdated)

	require.NotNil(t, head.PreviousCard)
	assert.Equal(t, b.ID, head.PreviousCard.ID)
	assert.True(t, head.PreviousCard.IsOutdated)

	require.NotNil(t, head.PreviousCard.PreviousCard)
	assert.Equal(t, a.ID, head.PreviousCard.PreviousCard.ID)
	assert.True(t, a.IsOutdated)
	assert.Nil(t, a.PreviousCard)
}

func TestLinkedCardList_Unrelated(t *testing.T) {
	c := crypto.NewEd25519Crypto()
	a, _ := newSelfSignedCard(t, c, "alice", "")
	b, _ := newSelfSignedCard(t, c, "bob", "")
	d, _ := newSelfSignedCard(t, c, "carol", "")

	heads, err := card.LinkedCardList([]*card.Card{a, b, d})
	require.NoError(t, err)
	assert.Equal(t, []*card.Card{a, b, d}, heads)
	for _, h := range heads {
		assert.False(t, h.IsOutdated)
		assert.Nil(t, h.PreviousCard)
	}
}

func TestLinkedCardList_MissingPredecessor(t *testing.T) {
	c := crypto.NewEd25519Crypto()
	orphan, _ := newSelfSignedCard(t, c, "alice", "0000000000000000000000000000000000000000000000000000000000000000")

	heads, err := card.LinkedCardList([]*card.Card{orphan})
	require.NoError(t, err)
	require.Len(t, heads, 1)
	assert.Nil(t, heads[0].PreviousCard)
	assert.False(t, heads[0].IsOutdated)
}

func TestLinkedCardList_Fork(t *testing.T) {
	c := crypto.NewEd25519Crypto()
	root, _ := newSelfSignedCard(t, c, "alice", "")
	left, _ := newSelfSignedCard(t, c, "alice", root.ID)
	right, _ := newSelfSignedCard(t, c, "alice", root.ID)

	heads, err := card.LinkedCardList([]*card.Card{root, left, right})
	require.NoError(t, err)
	assert.Equal(t, []*card.Card{left, right}, heads)
	assert.Same(t, root, left.PreviousCard)
	assert.Same(t, root, right.PreviousCard)
	assert.True(t, root.IsOutdated)
}

func TestLinkedCardList_Cycle(t *testing.T) {
	a := &card.Card{ID: "a", PreviousCardID: "b"}
	b := &card.Card{ID: "b", PreviousCardID: "a"}

	_, err := card.LinkedCardList([]*card.Card{a, b})
	assert.ErrorIs(t, err, card.ErrCardChainCycle)
	assert.False(t, a.IsOutdated)
	assert.False(t, b.IsOutdated)

	self := &card.Card{ID: "s", PreviousCardID: "s"}
	_, err = card.LinkedCardList([]*card.Card{self})
	assert.ErrorIs(t, err, card.ErrCardChainCycle)
}

func TestLinkedCardList_Duplicates(t *testing.T) {
	a := &card.Card{ID: "a"}
	dup := &card.Card{ID: "a"}

	heads, err := card.LinkedCardList([]*card.Card{a, nil, dup})
	require.NoError(t, err)
	require.Len(t, heads, 1)
	assert.Same(t, a, heads[0])
}
