// Package sessionstore persists per-DC session state to disk, optionally
// encrypting it at rest with a passphrase-derived key. Grounded on
// mtproto.go's SessFileStore (same Save/Load shape, same "write the
// whole file, read the whole file back" approach) generalized from one
// fixed DC record to the keyed-by-DC-id set SPEC_FULL.md's UserAgent
// owns, and wrapped with encryption the original leaves entirely to the
// host.
package sessionstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"os"

	"github.com/ansel1/merry/v2"
	"golang.org/x/crypto/pbkdf2"

	"github.com/tplgy/tgl-go/internal/tl"
)

// Record is one DC's persisted session state: the long-lived pieces a
// restarted process needs to resume without a fresh DH handshake.
type Record struct {
	DCID       int
	AuthKey    [256]byte
	AuthKeyID  int64
	ServerSalt int64
	SessionID  int64
	Addr       string
}

// ErrNoSessionData mirrors mtproto.go's ErrNoSessionData: the store file
// doesn't exist yet, which is a normal "first run" condition, not an
// error the caller should abort on.
var ErrNoSessionData = merry.New("no session data")

const (
	pbkdf2Iterations = 100_000
	pbkdf2KeyLen      = 32
	saltLen           = 16
)

// Store persists a set of Records under dir, one file per DC id, via
// internal/tl's Encoder/Decoder (mtproto.go's NewEncodeBuf/NewDecodeBuf,
// generalized). A nonempty Passphrase enables AES-GCM encryption of the
// written blob; the store transparently decrypts on Load, and with a
// passphrase set Load fails on a file written without one (AES-GCM open
// fails). Without a passphrase Load does not detect an encrypted file:
// it decodes the file's bytes as a plaintext record.
type Store struct {
	Dir        string
	Passphrase string
}

func (s *Store) path(dcID int) string {
	return fmt.Sprintf("%s/tg-dc%d.session", s.Dir, dcID)
}

func (s *Store) Save(rec *Record) error {
	b := tl.NewEncoder(512)
	b.OutI32(int32(rec.DCID))
	b.OutBytes(rec.AuthKey[:])
	b.OutI64(rec.AuthKeyID)
	b.OutI64(rec.ServerSalt)
	b.OutI64(rec.SessionID)
	b.OutString([]byte(rec.Addr))

	payload := b.Bytes()
	if s.Passphrase != "" {
		encrypted, err := s.encrypt(payload)
		if err != nil {
			return merry.Wrap(err)
		}
		payload = encrypted
	}

	if err := os.WriteFile(s.path(rec.DCID), payload, 0o600); err != nil {
		return merry.Wrap(err)
	}
	return nil
}

func (s *Store) Load(dcID int) (*Record, error) {
	raw, err := os.ReadFile(s.path(dcID))
	if os.IsNotExist(err) {
		return nil, ErrNoSessionData.Here()
	}
	if err != nil {
		return nil, merry.Wrap(err)
	}

	payload := raw
	if s.Passphrase != "" {
		decrypted, err := s.decrypt(raw)
		if err != nil {
			return nil, merry.Wrap(err)
		}
		payload = decrypted
	}

	d := tl.NewDecoder(payload)
	rec := &Record{
		DCID: int(d.FetchI32()),
	}
	copy(rec.AuthKey[:], d.FetchBytes(256))
	rec.AuthKeyID = d.FetchI64()
	rec.ServerSalt = d.FetchI64()
	rec.SessionID = d.FetchI64()
	rec.Addr = string(d.FetchString())

	if d.Err() != nil {
		return nil, merry.Wrap(d.Err())
	}
	return rec, nil
}

// encrypt derives a key from Passphrase with a random salt (stored
// alongside the nonce in the output) and seals payload with AES-GCM.
func (s *Store) encrypt(payload []byte) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	key := pbkdf2.Key([]byte(s.Passphrase), salt, pbkdf2Iterations, pbkdf2KeyLen, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	sealed := gcm.Seal(nil, nonce, payload, nil)
	out := make([]byte, 0, saltLen+len(nonce)+len(sealed))
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, sealed...)
	return out, nil
}

func (s *Store) decrypt(blob []byte) ([]byte, error) {
	if len(blob) < saltLen {
		return nil, merry.New("session blob too short")
	}
	salt, rest := blob[:saltLen], blob[saltLen:]
	key := pbkdf2.Key([]byte(s.Passphrase), salt, pbkdf2Iterations, pbkdf2KeyLen, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(rest) < gcm.NonceSize() {
		return nil, merry.New("session blob too short")
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	return gcm.Open(nil, nonce, ciphertext, nil)
}
