package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/pairtrade/pkg/models"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		x        float64
		decimals int
		want     float64
	}{
		{1.9999999, 0, 1.0},
		{1.9999999, 1, 1.9},
		{1.9999999, 2, 1.99},
		{1.9999999, 3, 1.999},
		{1.9999999, 4, 1.9999},
		{1.9999999, 5, 1.99999},
		{1.0, 3, 1.0},
		{-0.8765, 2, -0.87},
		{123.456, 0, 123},
	}
	for _, tt := range tests {
		got, err := Truncate(tt.x, tt.decimals)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "Truncate(%v, %d)", tt.x, tt.decimals)
	}
}

func TestTruncateErrors(t *testing.T) {
	_, err := Truncate(1.5, -1)
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = Truncate(math.NaN(), 2)
	assert.ErrorIs(t, err, models.ErrInvalidValue)
}

func TestDecimalsFromFloat(t *testing.T) {
	d, err := DecimalsFromFloat(3)
	require.NoError(t, err)
	assert.Equal(t, 3, d)

	_, err = DecimalsFromFloat(2.5)
	assert.ErrorIs(t, err, models.ErrTypeMismatch)

	_, err = DecimalsFromFloat(-1)
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
}

func TestTruncateFloatDecimals(t *testing.T) {
	got, err := TruncateFloatDecimals(3.14159, 2)
	require.NoError(t, err)
	assert.Equal(t, 3.14, got)

	_, err = TruncateFloatDecimals(3.14159, 1.5)
	assert.ErrorIs(t, err, models.ErrTypeMismatch)
}
