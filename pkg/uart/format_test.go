package uart

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	testCases := []struct {
		str    string
		format Format
	}{
		{"8E1", 0x1b},
		{"8N1", 0x03},
		{"7O2", 0x0e},
		{"5N1", 0x00},
		{"8M1", 0x2b},
		{"8S1", 0x3b},
	}
	for _, tc := range testCases {
		t.Run(tc.str, func(t *testing.T) {
			f, err := ParseFormat(tc.str)
			require.NoError(t, err)
			require.Equal(t, tc.format, f)
			require.Equal(t, tc.str, f.String())
		})
	}
	require.Equal(t, Format8E1, Format(0x1b))
	require.Equal(t, 8, Format8E1.DataBits())
	require.Equal(t, ParityEven, Format8E1.Parity())
	require.Equal(t, 1, Format8E1.StopBits())
}

func TestFormatInvalid(t *testing.T) {
	for _, s := range []string{"", "8E", "9N1", "4N1", "8X1", "8N3", "xN1"} {
		_, err := ParseFormat(s)
		require.Error(t, err, s)
	}
}
