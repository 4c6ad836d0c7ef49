package guard

import (
	"testing"

	"github.com/chainreactor/quest-relayer/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chainId(id uint64) *uint64 {
	return &id
}

func TestEvaluateWrongNetwork(t *testing.T) {
	d := Evaluate(chainId(1), registry.PolygonAmoy)

	assert.False(t, d.Allowed)
	assert.Equal(t, registry.PolygonAmoy, d.RequiredChainId)
	require.NotNil(t, d.CurrentChainId)
	assert.Equal(t, uint64(1), *d.CurrentChainId)
	assert.Equal(t, "Please switch to Polygon Amoy network", d.Remediation())
	assert.Equal(t, "Switch to Polygon Amoy", d.SwitchLabel())
}

func TestEvaluateAllowed(t *testing.T) {
	d := Evaluate(chainId(registry.PolygonAmoy), registry.PolygonAmoy)

	assert.True(t, d.Allowed)
	assert.Empty(t, d.Remediation())
	assert.Empty(t, d.SwitchLabel())
}

func TestEvaluateNoWallet(t *testing.T) {
	d := Evaluate(nil, registry.PolygonAmoy)

	assert.False(t, d.Allowed)
	assert.Nil(t, d.CurrentChainId)
	assert.NotEmpty(t, d.Remediation())
}

func TestEvaluateCopiesCurrent(t *testing.T) {
	current := chainId(5)
	d := Evaluate(current, 5)
	*current = 6
	assert.Equal(t, uint64(5), *d.CurrentChainId)
}
