package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strategy(name string, available bool, calls *int, out string, err error) Strategy[int, string] {
	return Strategy[int, string]{
		Name:      name,
		Available: func() bool { return available },
		Fn: func(context.Context, int) (string, error) {
			*calls++
			return out, err
		},
	}
}

func TestChain_FirstSuccessWins(t *testing.T) {
	var a, b int
	c := NewChain("test",
		strategy("a", true, &a, "from-a", nil),
		strategy("b", true, &b, "from-b", nil),
	)
	out, name, err := c.Run(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "from-a", out)
	assert.Equal(t, "a", name)
	assert.Equal(t, 0, b)
}

// TestChain_SkipsUnavailable verifies an unavailable strategy is never invoked.
func TestChain_SkipsUnavailable(t *testing.T) {
	var a, b int
	c := NewChain("test",
		strategy("a", false, &a, "from-a", nil),
		strategy("b", true, &b, "from-b", nil),
	)
	out, name, err := c.Run(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "from-b", out)
	assert.Equal(t, "b", name)
	assert.Equal(t, 0, a)
}

func TestChain_FallsThroughOnError(t *testing.T) {
	var a, b int
	c := NewChain("test",
		strategy("a", true, &a, "", errors.New("boom")),
		strategy("b", true, &b, "from-b", nil),
	)
	out, name, err := c.Run(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "from-b", out)
	assert.Equal(t, "b", name)
	assert.Equal(t, 1, a)
}

func TestChain_AllFail(t *testing.T) {
	var a, b int
	c := NewChain("test",
		strategy("a", true, &a, "", errors.New("boom")),
		strategy("b", false, &b, "", nil),
	)
	_, _, err := c.Run(context.Background(), 1)
	require.ErrorIs(t, err, ErrNoData)
	assert.Contains(t, err.Error(), "boom")
}

func TestChain_Empty(t *testing.T) {
	_, _, err := NewChain[int, string]("test").Run(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestChain_RecoversPanic(t *testing.T) {
	var b int
	c := NewChain("test",
		Strategy[int, string]{Name: "bad", Fn: func(context.Context, int) (string, error) { panic("nil map") }},
		strategy("b", true, &b, "from-b", nil),
	)
	out, _, err := c.Run(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "from-b", out)
}

func TestChain_StopsOnCanceledContext(t *testing.T) {
	var a int
	c := NewChain("test", strategy("a", true, &a, "from-a", nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := c.Run(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, a)
}
