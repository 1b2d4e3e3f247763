// Package frame packs and unpacks the encrypted message layout of spec.md
// §3/§4.4: an 8-byte auth_key_id, a 16-byte msg_key, then the AES-IGE
// ciphertext of (server_salt, session_id, msg_id, seq_no, msg_len,
// message, padding).
package frame

import (
	"encoding/binary"

	"github.com/ansel1/merry/v2"

	"github.com/tplgy/tgl-go/internal/crypto"
)

const (
	headerSize   = 8 + 16 // auth_key_id + msg_key
	innerMinSize = 8 + 8 + 8 + 4 + 4 // server_salt + session_id + msg_id + seq_no + msg_len
)

// Plaintext is the decoded inner payload of an encrypted frame.
type Plaintext struct {
	ServerSalt int64
	SessionID  int64
	MsgID      int64
	SeqNo      int32
	Message    []byte
}

// Pack builds a full encrypted frame: computes msg_key from the inner
// plaintext, derives the AES-IGE key/IV from authKey and msg_key, and
// returns auth_key_id || msg_key || ciphertext.
func Pack(authKeyID int64, authKey [256]byte, dir crypto.Direction, p Plaintext) ([]byte, error) {
	inner := make([]byte, innerMinSize+len(p.Message))
	binary.LittleEndian.PutUint64(inner[0:8], uint64(p.ServerSalt))
	binary.LittleEndian.PutUint64(inner[8:16], uint64(p.SessionID))
	binary.LittleEndian.PutUint64(inner[16:24], uint64(p.MsgID))
	binary.LittleEndian.PutUint32(inner[24:28], uint32(p.SeqNo))
	binary.LittleEndian.PutUint32(inner[28:32], uint32(len(p.Message)))
	copy(inner[32:], p.Message)

	sha1 := crypto.SHA1(inner)
	var msgKey [16]byte
	copy(msgKey[:], sha1[4:20])

	padded := padTo16(inner, 0)
	key, iv := crypto.DeriveMessageKeyIV(authKey, msgKey, dir)
	cipherText, err := crypto.IGEEncrypt(key, iv, padded)
	if err != nil {
		return nil, merry.Prepend(err, "frame: encrypting")
	}

	out := make([]byte, headerSize+len(cipherText))
	binary.LittleEndian.PutUint64(out[0:8], uint64(authKeyID))
	copy(out[8:24], msgKey[:])
	copy(out[24:], cipherText)
	return out, nil
}

// padTo16 appends cryptographically random bytes until the total length
// is a multiple of 16 and at least minPad bytes longer than the input,
// per spec.md §4.4's 1.0 padding rule.
func padTo16(data []byte, minPad int) []byte {
	total := len(data) + minPad
	if rem := total % 16; rem != 0 {
		total += 16 - rem
	}
	padded := make([]byte, total)
	copy(padded, data)
	copy(padded[len(data):], crypto.SecureRandom(total-len(data)))
	return padded
}

// Unpack reverses Pack: validates structure and the msg_key integrity
// check, and returns the decrypted session_id together with the decoded
// Plaintext. The session_id is not compared against any expected session
// here; it is returned unchecked.
func Unpack(data []byte, authKeyID int64, authKey [256]byte, dir crypto.Direction) (int64, Plaintext, error) {
	if len(data) < headerSize+16 {
		return 0, Plaintext{}, merry.New("frame: message shorter than minimum header")
	}
	gotAuthKeyID := int64(binary.LittleEndian.Uint64(data[0:8]))
	if gotAuthKeyID != authKeyID {
		return 0, Plaintext{}, merry.Errorf("frame: auth_key_id mismatch: got %d want %d", gotAuthKeyID, authKeyID)
	}
	var msgKey [16]byte
	copy(msgKey[:], data[8:24])
	cipherText := data[24:]
	if len(cipherText)%16 != 0 {
		return 0, Plaintext{}, merry.New("frame: ciphertext length not a multiple of 16")
	}

	key, iv := crypto.DeriveMessageKeyIV(authKey, msgKey, dir)
	plain, err := crypto.IGEDecrypt(key, iv, cipherText)
	if err != nil {
		return 0, Plaintext{}, merry.Prepend(err, "frame: decrypting")
	}
	if len(plain) < innerMinSize {
		return 0, Plaintext{}, merry.New("frame: decrypted payload shorter than inner header")
	}

	serverSalt := int64(binary.LittleEndian.Uint64(plain[0:8]))
	sessionID := int64(binary.LittleEndian.Uint64(plain[8:16]))
	msgID := int64(binary.LittleEndian.Uint64(plain[16:24]))
	seqNo := int32(binary.LittleEndian.Uint32(plain[24:28]))
	msgLen := int32(binary.LittleEndian.Uint32(plain[28:32]))

	if msgLen < 0 || msgLen%4 != 0 {
		return 0, Plaintext{}, merry.Errorf("frame: invalid msg_len %d", msgLen)
	}
	if int(msgLen) > len(plain)-innerMinSize {
		return 0, Plaintext{}, merry.New("frame: msg_len exceeds decrypted payload")
	}
	// the original implementation additionally bounds leftover padding to
	// at most 12 bytes beyond the minimum, catching tampering that
	// inflates msg_len's declared slack.
	if len(plain)-innerMinSize-int(msgLen) > 12 {
		return 0, Plaintext{}, merry.New("frame: excessive padding beyond declared msg_len")
	}

	ehash := crypto.SHA1(plain[:innerMinSize+int(msgLen)])
	var want [16]byte
	copy(want[:], ehash[4:20])
	if want != msgKey {
		return 0, Plaintext{}, merry.New("frame: msg_key mismatch")
	}

	return sessionID, Plaintext{
		ServerSalt: serverSalt,
		SessionID:  sessionID,
		MsgID:      msgID,
		SeqNo:      seqNo,
		Message:    plain[innerMinSize : innerMinSize+int(msgLen)],
	}, nil
}
