package snapshot_test

import (
	"testing"

	"github.com/capiscio/capiscio-cards/pkg/sdkerr"
	"github.com/capiscio/capiscio-cards/pkg/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type content struct {
	Identity  string `json:"identity"`
	PublicKey string `json:"public_key"`
	CreatedAt int64  `json:"created_at"`
	Version   string `json:"version"`
}

func TestTakeFieldOrder(t *testing.T) {
	data, err := snapshot.Take(content{Identity: "alice", PublicKey: "QUJD", CreatedAt: 1000, Version: "5.0"})
	require.NoError(t, err)
	assert.Equal(t, `{"identity":"alice","public_key":"QUJD","created_at":1000,"version":"5.0"}`, string(data))
}

func TestTakeIsStable(t *testing.T) {
	extra := map[string]string{"zeta": "1", "alpha": "2", "mid": "<&>"}

	first, err := snapshot.Take(extra)
	require.NoError(t, err)
	second, err := snapshot.Take(extra)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, `{"alpha":"2","mid":"<&>","zeta":"1"}`, string(first))
}

func TestRoundTrip(t *testing.T) {
	in := content{Identity: "bob@example.com", PublicKey: "AAEC", CreatedAt: 1700000000, Version: "5.0"}

	data, err := snapshot.Take(in)
	require.NoError(t, err)

	out, err := snapshot.Parse[content](data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestParseErrors(t *testing.T) {
	t.Run("invalid UTF-8", func(t *testing.T) {
		_, err := snapshot.Parse[content]([]byte{'{', 0xff, '}'})
		assert.ErrorIs(t, err, sdkerr.ErrParse)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		_, err := snapshot.Parse[content]([]byte(`{"identity":`))
		assert.ErrorIs(t, err, sdkerr.ErrParse)
	})
}
