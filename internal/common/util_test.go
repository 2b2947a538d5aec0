package common

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccessCode(t *testing.T) {
	code, err := NewAccessCode()
	require.NoError(t, err)

	assert.Len(t, code, 2*AccessCodeSize)
	assert.Equal(t, code, NormalizeCode(code), "codes are issued in canonical form")
	raw, err := hex.DecodeString(code)
	require.NoError(t, err)
	assert.Len(t, raw, AccessCodeSize)
}

func TestNewAccessCode_Distinct(t *testing.T) {
	seen := make(map[string]struct{}, 500)
	for i := 0; i < 500; i++ {
		code, err := NewAccessCode()
		require.NoError(t, err)
		_, dup := seen[code]
		require.False(t, dup, "access code %s issued twice", code)
		seen[code] = struct{}{}
	}
}

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "typed lower case", in: "a1b2c3d4e5f6", want: "A1B2C3D4E5F6"},
		{name: "pasted with whitespace", in: "  A1B2C3D4E5F6\n", want: "A1B2C3D4E5F6"},
		{name: "blank", in: " \t ", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeCode(tt.in))
		})
	}
}

func TestMakeRandHexString(t *testing.T) {
	s, err := MakeRandHexString(AccessCodeSize)
	require.NoError(t, err)
	assert.Len(t, s, 2*AccessCodeSize)

	empty, err := MakeRandHexString(0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestKeyMaterialHelpers(t *testing.T) {
	key := GenerateRandByteArray(32)
	require.Len(t, key, 32)

	WipeByteArray(key)
	assert.Equal(t, make([]byte, 32), key)
	WipeByteArray(nil)
}
