package dcclient

import (
	"context"

	"github.com/tplgy/tgl-go/internal/crypto"
	"github.com/tplgy/tgl-go/internal/frame"
	"github.com/tplgy/tgl-go/internal/tl"
	"github.com/tplgy/tgl-go/tgerr"
)

// bindTempAuthKey implements spec.md §4.3: binds a freshly negotiated
// temp_auth_key to a permanent auth_key by encrypting a bind_auth_key_inner
// payload under the *permanent* key and sending it as an ordinary
// encrypted RPC over the already-authorized temp-key connection.
//
// Grounded on mtproto_client::send_bind_temp_auth_key (msg_id generation,
// bind_auth_key_inner field order) and init_enc_msg_inner_temp's random
// server_salt/session_id for the inner envelope.
func (c *Client) bindTempAuthKey(ctx context.Context, sessionID int64, expiresAt int32) error {
	nonce := int64(0)
	for nonce == 0 {
		var b [8]byte
		copy(b[:], crypto.SecureRandom(8))
		nonce = int64(b[0]) | int64(b[1])<<8 | int64(b[2])<<16 | int64(b[3])<<24 |
			int64(b[4])<<32 | int64(b[5])<<40 | int64(b[6])<<48 | int64(b[7])<<56
	}

	innerMsgID := c.msgID.Next()
	inner := tl.BindAuthKeyInner{
		Nonce:         nonce,
		TempAuthKeyID: c.tempAuthKeyID,
		PermAuthKeyID: c.authKeyID,
		SessionID:     sessionID,
		ExpiresAt:     expiresAt,
	}
	innerEnc := tl.NewEncoder(64)
	inner.Encode(innerEnc)

	// the inner message is framed and encrypted exactly like a normal
	// content message, but under the permanent key with a throwaway
	// random salt/session_id, per init_enc_msg_inner_temp.
	var randSalt, randSession [8]byte
	copy(randSalt[:], crypto.SecureRandom(8))
	copy(randSession[:], crypto.SecureRandom(8))

	encrypted, err := frame.Pack(c.authKeyID, c.authKey, crypto.Client2Server, frame.Plaintext{
		ServerSalt: int64(le64(randSalt)),
		SessionID:  int64(le64(randSession)),
		MsgID:      innerMsgID,
		SeqNo:      0,
		Message:    innerEnc.Bytes(),
	})
	if err != nil {
		return tgerr.Wrap(tgerr.Handshake, err)
	}

	req := tl.AuthBindTempAuthKey{
		PermAuthKeyID:    c.authKeyID,
		Nonce:            nonce,
		ExpiresAt:        expiresAt,
		EncryptedMessage: encrypted,
	}

	result, err := c.executeOverTempKey(ctx, req)
	if err != nil {
		return tgerr.Wrap(tgerr.Handshake, err)
	}
	if _, ok := result.(tl.BoolTrue); !ok {
		return tgerr.New(tgerr.Handshake, "auth.bindTempAuthKey: expected boolTrue, got %T", result)
	}
	return nil
}

func le64(b [8]byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * uint(i))
	}
	return v
}
