package eventlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOffsetString(t *testing.T) {
	assert.Equal(t, "0000000000000000", Offset(0).String())
	assert.Equal(t, "0000000000000042", Offset(42).String())
	assert.Equal(t, "-1", NoOffset.String())
}

func TestParseOffsetRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 42, 9999999999999999} {
		s := Offset(v).String()
		got, err := ParseOffset(s)
		require.NoError(t, err)
		assert.Equal(t, Offset(v), got)
	}
}

func TestParseOffsetSentinels(t *testing.T) {
	for _, s := range []string{"", "-1"} {
		got, err := ParseOffset(s)
		require.NoError(t, err)
		assert.Equal(t, NoOffset, got)
	}
}

func TestParseOffsetInvalid(t *testing.T) {
	for _, s := range []string{"abc", "123", "-2", "00000000000000001"} {
		_, err := ParseOffset(s)
		assert.Error(t, err, s)
	}
}

func TestOffsetOrdering(t *testing.T) {
	assert.True(t, NoOffset.Less(Offset(0)))
	assert.True(t, Offset(0).Less(Offset(1)))
	assert.False(t, Offset(1).Less(Offset(0)))
	assert.True(t, Offset(5).LessOrEqual(Offset(5)))
}

func TestOffsetNext(t *testing.T) {
	assert.Equal(t, Offset(0), NoOffset.Next())
	assert.Equal(t, Offset(1), Offset(0).Next())
}
