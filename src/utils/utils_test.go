package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLedgerDateLayouts(t *testing.T) {
	want := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2024-01-02", "1/2/2024", "01/02/2024", "1/2'24"} {
		got, err := ParseLedgerDate(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	// Two-digit years without an apostrophe are pre-2000.
	got, err := ParseLedgerDate("1/2/98")
	require.NoError(t, err)
	assert.Equal(t, 1998, got.Year())

	_, err = ParseLedgerDate("yesterday")
	assert.Error(t, err)
}

func TestStoreDateRoundTrip(t *testing.T) {
	d := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	s := FormatStoreDate(d)
	assert.Equal(t, "2024-06-30", s)

	back, err := ParseStoreDate(s)
	require.NoError(t, err)
	assert.Equal(t, d, back)
}

func TestFormatAmountShortestForm(t *testing.T) {
	assert.Equal(t, "1.1", FormatAmount(1.10))
	assert.Equal(t, "-500", FormatAmount(-500.0))
	assert.Equal(t, "0", FormatAmount(0))
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "corner store", NormalizeName("  Corner   STORE "))
	assert.Equal(t, "", NormalizeName("   "))
}

func TestContentHashStableAndTruncated(t *testing.T) {
	a := ContentHash([]byte("payload"))
	b := ContentHash([]byte("payload"))
	assert.Equal(t, a, b)
	assert.Len(t, a, 16)
	assert.NotEqual(t, a, ContentHash([]byte("payload2")))
}
