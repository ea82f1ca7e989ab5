package decode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrameRate(t *testing.T) {
	rate, err := parseFrameRate("30000/1001")
	require.NoError(t, err)
	assert.InDelta(t, 29.97, rate, 0.01)

	rate, err = parseFrameRate("25/1")
	require.NoError(t, err)
	assert.InDelta(t, 25.0, rate, 1e-9)

	rate, err = parseFrameRate("24")
	require.NoError(t, err)
	assert.InDelta(t, 24.0, rate, 1e-9)
}

func TestParseFrameRateInvalid(t *testing.T) {
	for _, in := range []string{"", "abc", "0/0", "25/0", "-30/1", "0"} {
		_, err := parseFrameRate(in)
		assert.Error(t, err, "input %q", in)
	}
}
