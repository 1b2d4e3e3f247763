package frame

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tplgy/tgl-go/internal/crypto"
)

func testAuthKey() [256]byte {
	var k [256]byte
	copy(k[:], crypto.SecureRandom(256))
	return k
}

func TestPackUnpackRoundTrip(t *testing.T) {
	authKey := testAuthKey()
	authKeyID := int64(12345)

	p := Plaintext{
		ServerSalt: 1,
		SessionID:  2,
		MsgID:      3,
		SeqNo:      4,
		Message:    []byte("hello world, 4-byte aligned!!!!!"),
	}
	require.Zero(t, len(p.Message)%4)

	packed, err := Pack(authKeyID, authKey, crypto.Client2Server, p)
	require.NoError(t, err)

	sessionID, got, err := Unpack(packed, authKeyID, authKey, crypto.Client2Server)
	require.NoError(t, err)
	require.Equal(t, p.SessionID, sessionID)
	require.Equal(t, p.ServerSalt, got.ServerSalt)
	require.Equal(t, p.MsgID, got.MsgID)
	require.Equal(t, p.SeqNo, got.SeqNo)
	require.Equal(t, p.Message, got.Message)
}

func TestUnpackRejectsWrongAuthKeyID(t *testing.T) {
	authKey := testAuthKey()
	packed, err := Pack(1, authKey, crypto.Client2Server, Plaintext{Message: []byte("abcd")})
	require.NoError(t, err)

	_, _, err = Unpack(packed, 2, authKey, crypto.Client2Server)
	require.Error(t, err)
}

func TestUnpackRejectsTamperedCiphertext(t *testing.T) {
	authKey := testAuthKey()
	packed, err := Pack(1, authKey, crypto.Client2Server, Plaintext{Message: []byte("abcd")})
	require.NoError(t, err)

	packed[len(packed)-1] ^= 0xff
	_, _, err = Unpack(packed, 1, authKey, crypto.Client2Server)
	require.Error(t, err)
}
