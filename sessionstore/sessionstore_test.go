package sessionstore

import (
	"os"
	"testing"

	"github.com/ansel1/merry/v2"
	"github.com/stretchr/testify/require"
)

func testRecord(dcID int) *Record {
	rec := &Record{
		DCID:       dcID,
		AuthKeyID:  12345,
		ServerSalt: 678,
		SessionID:  999,
		Addr:       "149.154.167.50:443",
	}
	for i := range rec.AuthKey {
		rec.AuthKey[i] = byte(i)
	}
	return rec
}

func TestSaveLoadRoundTripPlaintext(t *testing.T) {
	dir := t.TempDir()
	s := &Store{Dir: dir}

	rec := testRecord(2)
	require.NoError(t, s.Save(rec))

	loaded, err := s.Load(2)
	require.NoError(t, err)
	require.Equal(t, rec, loaded)
}

func TestSaveLoadRoundTripEncrypted(t *testing.T) {
	dir := t.TempDir()
	s := &Store{Dir: dir, Passphrase: "correct horse battery staple"}

	rec := testRecord(4)
	require.NoError(t, s.Save(rec))

	raw, err := os.ReadFile(s.path(4))
	require.NoError(t, err)
	require.NotContains(t, string(raw), "149.154.167.50")

	loaded, err := s.Load(4)
	require.NoError(t, err)
	require.Equal(t, rec, loaded)
}

func TestLoadMissingFileReturnsErrNoSessionData(t *testing.T) {
	s := &Store{Dir: t.TempDir()}

	_, err := s.Load(1)
	require.True(t, merry.Is(err, ErrNoSessionData))
}

func TestLoadWrongPassphraseFails(t *testing.T) {
	dir := t.TempDir()
	s := &Store{Dir: dir, Passphrase: "right-passphrase"}
	require.NoError(t, s.Save(testRecord(5)))

	wrong := &Store{Dir: dir, Passphrase: "wrong-passphrase"}
	_, err := wrong.Load(5)
	require.Error(t, err)
}
