package sensors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeartRateMeasurement_Uint8(t *testing.T) {
	bpm, err := ParseHeartRateMeasurement([]byte{0x00, 142})
	require.NoError(t, err)
	assert.Equal(t, 142, bpm)

	// Extra fields (energy expended, RR intervals) after the value are ignored
	bpm, err = ParseHeartRateMeasurement([]byte{0x10, 95, 0x34, 0x02})
	require.NoError(t, err)
	assert.Equal(t, 95, bpm)
}

func TestParseHeartRateMeasurement_Uint16(t *testing.T) {
	// Flags bit 0 set: little-endian uint16 value
	bpm, err := ParseHeartRateMeasurement([]byte{0x01, 0x2C, 0x01})
	require.NoError(t, err)
	assert.Equal(t, 300, bpm)

	bpm, err = ParseHeartRateMeasurement([]byte{0x01, 0x8F, 0x00})
	require.NoError(t, err)
	assert.Equal(t, 143, bpm)
}

func TestParseHeartRateMeasurement_TooShort(t *testing.T) {
	_, err := ParseHeartRateMeasurement(nil)
	require.Error(t, err)

	_, err = ParseHeartRateMeasurement([]byte{0x00})
	require.Error(t, err)

	// UINT16 flag with only one value byte
	_, err = ParseHeartRateMeasurement([]byte{0x01, 0x8F})
	require.Error(t, err)
}
