package delivery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jibmail/jib/internal/address"
)

func TestRouterPartition(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LocalDomains = []string{"ours.example"}
	router := NewRouter(cfg)

	parse := func(s string) address.ForwardPath {
		fp, err := address.ParseForwardPath(s)
		require.NoError(t, err)
		return fp
	}

	foreign, local := router.Partition([]address.ForwardPath{
		parse("bob@remote.example"),
		parse("postmaster"),
		parse("carol@OURS.example"),
		parse("dave@other.example"),
	})

	require.Len(t, foreign, 2)
	assert.Equal(t, "bob@remote.example", foreign[0].String())
	assert.Equal(t, "dave@other.example", foreign[1].String())

	require.Len(t, local, 2)
	assert.True(t, local[0].IsPostmaster())
	assert.Equal(t, "carol@OURS.example", local[1].String())
}

func TestRouterIsLocal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LocalDomains = []string{"Ours.Example"}
	router := NewRouter(cfg)

	d, err := address.ParseDomain("ours.example")
	require.NoError(t, err)
	assert.True(t, router.IsLocal(d), "local matching must fold case")

	other, err := address.ParseDomain("remote.example")
	require.NoError(t, err)
	assert.False(t, router.IsLocal(other))

	literal, err := address.ParseDomain("[192.0.2.1]")
	require.NoError(t, err)
	assert.False(t, router.IsLocal(literal), "literals are never local")
}
