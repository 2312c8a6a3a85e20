package edition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVolumeCount(t *testing.T) {
	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{"34", 34, true},
		{" 12 ", 12, true},
		{"12 (as of 2023)", 12, true},
		{"ongoing", 0, false},
		{"0", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseVolumeCount(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseVolumeDescription(t *testing.T) {
	m, err := NewDefaultMapper()
	require.NoError(t, err)

	got := m.ParseVolumeDescription("7 (in the Colossal Edition format, which collects 34 standard volumes)")
	assert.True(t, got.IsAlternateEdition)
	assert.Equal(t, "Attack on Titan: Colossal Edition", got.Edition)
	assert.Equal(t, "31-34", got.Range)
	assert.Equal(t, 7, got.TotalVolumes)

	got = m.ParseVolumeDescription("22 (as of 2024)")
	assert.False(t, got.IsAlternateEdition)
	assert.Equal(t, "1-22", got.Range)
	assert.Equal(t, 22, got.TotalVolumes)

	got = m.ParseVolumeDescription("41")
	assert.Equal(t, "1-41", got.Range)

	assert.Equal(t, VolumeDescription{}, m.ParseVolumeDescription("unknown"))
}
