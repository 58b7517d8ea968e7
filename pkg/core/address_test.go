package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "short form",
			input: "0x2",
			want:  "0x0000000000000000000000000000000000000000000000000000000000000002",
		},
		{
			name:  "full form",
			input: "0x2fe369414fa9dff6349989668af1fce51ca655031845ea47ad15ac1936638949",
			want:  "0x2fe369414fa9dff6349989668af1fce51ca655031845ea47ad15ac1936638949",
		},
		{
			name:  "no prefix and odd length",
			input: "abc",
			want:  "0x0000000000000000000000000000000000000000000000000000000000000abc",
		},
		{
			name:    "empty",
			input:   "0x",
			wantErr: true,
		},
		{
			name:    "not hex",
			input:   "0xzz",
			wantErr: true,
		},
		{
			name:    "too long",
			input:   "0x002fe369414fa9dff6349989668af1fce51ca655031845ea47ad15ac1936638949",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := ParseAddress(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidAddress)
				return
			}
			require.Nil(t, err)
			require.Equal(t, tt.want, a.String())
		})
	}
}

func TestParseMoveTarget(t *testing.T) {
	target, err := ParseMoveTarget("0x2fe369414fa9dff6349989668af1fce51ca655031845ea47ad15ac1936638949::media::post_message")
	require.Nil(t, err)
	require.Equal(t, "media", target.Module)
	require.Equal(t, "post_message", target.Function)
	require.Equal(t, MustParseAddress("0x2fe369414fa9dff6349989668af1fce51ca655031845ea47ad15ac1936638949"), target.Package)
	require.Equal(t, "0x2fe369414fa9dff6349989668af1fce51ca655031845ea47ad15ac1936638949::media::post_message", target.String())

	for _, bad := range []string{"", "0x2::media", "0x2::::post_message", "xyz::media::post_message"} {
		_, err := ParseMoveTarget(bad)
		require.ErrorIs(t, err, ErrInvalidTarget, bad)
	}
}

func TestParseObjectDigest(t *testing.T) {
	d, err := ParseObjectDigest("4vJ9JU1bJJE96FWSJKvHsmmFADCg4gpZQff4P3bkLKi")
	require.Nil(t, err)
	for _, b := range d {
		require.Equal(t, byte(1), b)
	}
	require.Equal(t, "4vJ9JU1bJJE96FWSJKvHsmmFADCg4gpZQff4P3bkLKi", d.String())

	_, err = ParseObjectDigest("2g")
	require.NotNil(t, err)
	_, err = ParseObjectDigest("0OIl")
	require.NotNil(t, err)
}
