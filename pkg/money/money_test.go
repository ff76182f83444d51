package money

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWei(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"zero", "0", "0", nil},
		{"large", "2020000000000000000", "2020000000000000000", nil},
		{"beyond uint64", "340282366920938463463374607431768211456", "340282366920938463463374607431768211456", nil},
		{"negative", "-1", "", ErrNegative},
		{"decimal point", "1.5", "", ErrMalformed},
		{"empty", "", "", ErrMalformed},
		{"hex", "0x10", "", ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseWei(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestParseEther(t *testing.T) {
	v, err := ParseEther("2.02")
	require.NoError(t, err)
	assert.Equal(t, "2020000000000000000", v.String())

	v, err = ParseEther("0.000000000000000001")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1), v)

	_, err = ParseEther("0.0000000000000000001")
	assert.ErrorIs(t, err, ErrFraction)

	_, err = ParseEther("-2")
	assert.ErrorIs(t, err, ErrNegative)

	_, err = ParseEther("two")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestFormatEther(t *testing.T) {
	assert.Equal(t, "2.02", FormatEther(MustEther("2.02")))
	assert.Equal(t, "0.02", FormatEther(big.NewInt(20000000000000000)))
	assert.Equal(t, "0", FormatEther(nil))
	assert.Equal(t, "0.000000000000000001", FormatEther(big.NewInt(1)))
}

func TestEtherFloat(t *testing.T) {
	assert.InDelta(t, 2.02, EtherFloat(MustEther("2.02")), 1e-12)
	assert.Zero(t, EtherFloat(nil))
}

func TestMustEther_Panics(t *testing.T) {
	assert.Panics(t, func() { MustEther("nope") })
}
