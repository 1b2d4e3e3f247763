package rsakey

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePublicKeyPEMAndFingerprint(t *testing.T) {
	data, err := os.ReadFile("testdata/test_key.pem")
	require.NoError(t, err)

	key, err := ParsePublicKeyPEM(data)
	require.NoError(t, err)
	require.NotNil(t, key.N)
	require.NotNil(t, key.E)
	require.NotZero(t, key.Fingerprint)

	// Parsing the same bytes twice must yield the same fingerprint.
	key2, err := ParsePublicKeyPEM(data)
	require.NoError(t, err)
	require.Equal(t, key.Fingerprint, key2.Fingerprint)
}

func TestRegistrySelect(t *testing.T) {
	data, err := os.ReadFile("testdata/test_key.pem")
	require.NoError(t, err)
	key, err := ParsePublicKeyPEM(data)
	require.NoError(t, err)

	reg := NewRegistry(key)

	got, ok := reg.Select([]int64{1, 2, key.Fingerprint, 3})
	require.True(t, ok)
	require.Equal(t, key.Fingerprint, got.Fingerprint)

	_, ok = reg.Select([]int64{1, 2, 3})
	require.False(t, ok)
}
