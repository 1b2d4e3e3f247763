package dcclient

import (
	"context"
	"encoding/binary"
	"math/big"
	"time"

	"github.com/tplgy/tgl-go/internal/crypto"
	"github.com/tplgy/tgl-go/internal/rsakey"
	"github.com/tplgy/tgl-go/internal/tl"
	"github.com/tplgy/tgl-go/tgerr"
	"github.com/tplgy/tgl-go/transport"
)

// handshake runs the unauthenticated key-exchange of spec.md §4.2 over an
// already-open transport.Connection, producing either a permanent or
// temporary 2048-bit auth key.
type handshake struct {
	conn    transport.Connection
	keys    *rsakey.Registry
	msgID   *msgIDGenerator
	temp    bool
	expires int32 // only used when temp

	nonce       [16]byte
	serverNonce [16]byte
	newNonce    [32]byte
}

// handshakeResult is everything the caller (Client.Authorize) needs to adopt a
// freshly negotiated key.
type handshakeResult struct {
	AuthKey        [256]byte
	AuthKeyID      int64
	ServerSalt     int64
	ServerTimeSkew float64
}

func newHandshake(conn transport.Connection, keys *rsakey.Registry, msgID *msgIDGenerator, temp bool, expires int32) *handshake {
	return &handshake{conn: conn, keys: keys, msgID: msgID, temp: temp, expires: expires}
}

func (h *handshake) Run(ctx context.Context) (handshakeResult, error) {
	copy(h.nonce[:], crypto.SecureRandom(16))

	resPQ, err := h.stepReqPQ(ctx)
	if err != nil {
		return handshakeResult{}, err
	}

	key, ok := h.keys.Select(resPQ.Fingerprints)
	if !ok {
		return handshakeResult{}, tgerr.New(tgerr.Handshake, "no known RSA key among server fingerprints")
	}

	p, q := crypto.FactorizePQ(resPQ.PQ)

	inner, serverTime, err := h.stepReqDHParams(ctx, resPQ.PQ, p, q, key)
	if err != nil {
		return handshakeResult{}, err
	}

	authKey, err := h.stepSetClientDHParams(ctx, inner)
	if err != nil {
		return handshakeResult{}, err
	}

	authKeyHash := crypto.SHA1(authKey[:])
	var authKeyID int64
	authKeyID = int64(binary.LittleEndian.Uint64(authKeyHash[12:20]))

	var saltA, saltB int64
	saltA = int64(binary.LittleEndian.Uint64(h.serverNonce[0:8]))
	saltB = int64(binary.LittleEndian.Uint64(h.newNonce[0:8]))

	return handshakeResult{
		AuthKey:        authKey,
		AuthKeyID:      authKeyID,
		ServerSalt:     saltA ^ saltB,
		ServerTimeSkew: float64(serverTime) - float64(time.Now().Unix()),
	}, nil
}

func (h *handshake) stepReqPQ(ctx context.Context) (tl.ResPQ, error) {
	if err := h.sendPlaintext(ctx, tl.ReqPQ{Nonce: h.nonce}); err != nil {
		return tl.ResPQ{}, err
	}
	obj, err := h.recvPlaintext(ctx)
	if err != nil {
		return tl.ResPQ{}, err
	}
	res, ok := obj.(tl.ResPQ)
	if !ok {
		return tl.ResPQ{}, tgerr.New(tgerr.Handshake, "expected res_pq, got %T", obj)
	}
	if res.Nonce != h.nonce {
		return tl.ResPQ{}, tgerr.New(tgerr.Handshake, "res_pq: client_nonce mismatch")
	}
	h.serverNonce = res.ServerNonce
	return res, nil
}

func (h *handshake) stepReqDHParams(ctx context.Context, pq, p, q *big.Int, key rsakey.Key) (tl.ServerDHInnerData, int32, error) {
	copy(h.newNonce[:], crypto.SecureRandom(32))

	inner := tl.PQInnerData{
		Temp:        h.temp,
		PQ:          pq,
		P:           p,
		Q:           q,
		Nonce:       h.nonce,
		ServerNonce: h.serverNonce,
		NewNonce:    h.newNonce,
		ExpiresIn:   h.expires,
	}
	enc := tl.NewEncoder(320)
	inner.Encode(enc)

	encryptedData, err := crypto.RSAEncrypt(enc.Bytes(), key.N, key.E)
	if err != nil {
		return tl.ServerDHInnerData{}, 0, tgerr.Wrap(tgerr.Handshake, err)
	}

	req := tl.ReqDHParams{
		Nonce:         h.nonce,
		ServerNonce:   h.serverNonce,
		P:             p,
		Q:             q,
		PublicKeyFP:   key.Fingerprint,
		EncryptedData: encryptedData,
	}
	if err := h.sendPlaintext(ctx, req); err != nil {
		return tl.ServerDHInnerData{}, 0, err
	}

	obj, err := h.recvPlaintext(ctx)
	if err != nil {
		return tl.ServerDHInnerData{}, 0, err
	}
	switch v := obj.(type) {
	case tl.ServerDHParamsFail:
		return tl.ServerDHInnerData{}, 0, tgerr.New(tgerr.Handshake, "server_DH_params_fail")
	case tl.ServerDHParamsOK:
		if v.Nonce != h.nonce || v.ServerNonce != h.serverNonce {
			return tl.ServerDHInnerData{}, 0, tgerr.New(tgerr.Handshake, "server_DH_params_ok: nonce mismatch")
		}
		inner, err := h.decryptServerDHInnerData(v.EncryptedAnswer)
		return inner, inner.ServerTime, err
	default:
		return tl.ServerDHInnerData{}, 0, tgerr.New(tgerr.Handshake, "expected server_DH_params_ok/fail, got %T", obj)
	}
}

func (h *handshake) decryptServerDHInnerData(encryptedAnswer []byte) (tl.ServerDHInnerData, error) {
	key, iv := crypto.DeriveUnauthKeyIV(h.serverNonce, h.newNonce)
	plain, err := crypto.IGEDecrypt(key, iv, encryptedAnswer)
	if err != nil {
		return tl.ServerDHInnerData{}, tgerr.Wrap(tgerr.Handshake, err)
	}
	if len(plain) < 20 {
		return tl.ServerDHInnerData{}, tgerr.New(tgerr.Handshake, "decrypted server_DH_inner_data too short")
	}

	wantHash := crypto.SHA1(plain[20:])
	if string(wantHash[:]) != string(plain[:20]) {
		return tl.ServerDHInnerData{}, tgerr.New(tgerr.Handshake, "server_DH_inner_data: SHA1 integrity check failed")
	}

	d := tl.NewDecoder(plain[20:])
	obj := tl.DecodeObject(d)
	if err := d.Err(); err != nil {
		return tl.ServerDHInnerData{}, tgerr.Wrap(tgerr.Handshake, err)
	}
	inner, ok := obj.(tl.ServerDHInnerData)
	if !ok {
		return tl.ServerDHInnerData{}, tgerr.New(tgerr.Handshake, "expected server_DH_inner_data, got %T", obj)
	}
	if inner.Nonce != h.nonce || inner.ServerNonce != h.serverNonce {
		return tl.ServerDHInnerData{}, tgerr.New(tgerr.Handshake, "server_DH_inner_data: nonce mismatch")
	}
	if err := crypto.CheckDHParams(inner.G, inner.DHPrime, inner.GA); err != nil {
		return tl.ServerDHInnerData{}, tgerr.Wrap(tgerr.Handshake, err)
	}
	return inner, nil
}

func (h *handshake) stepSetClientDHParams(ctx context.Context, inner tl.ServerDHInnerData) ([256]byte, error) {
	private := crypto.GenerateDHPrivate(inner.DHPrime)
	gb := crypto.ModExp(big.NewInt(int64(inner.G)), private, inner.DHPrime)
	sharedSecret := crypto.ModExp(inner.GA, private, inner.DHPrime)

	var authKey [256]byte
	secretBytes := sharedSecret.Bytes()
	if len(secretBytes) > 256 {
		return authKey, tgerr.New(tgerr.Handshake, "computed auth key longer than 256 bytes")
	}
	copy(authKey[256-len(secretBytes):], secretBytes)

	clientInner := tl.ClientDHInnerData{
		Nonce:       h.nonce,
		ServerNonce: h.serverNonce,
		RetryID:     0,
		GB:          gb,
	}
	enc := tl.NewEncoder(320)
	clientInner.Encode(enc)
	plain := enc.Bytes()

	hash := crypto.SHA1(plain)
	payload := append(append([]byte{}, hash[:]...), plain...)
	// pad to a multiple of 16 with random bytes, per tgl_pad_aes_encrypt.
	if rem := len(payload) % 16; rem != 0 {
		payload = append(payload, crypto.SecureRandom(16-rem)...)
	}

	key, iv := crypto.DeriveUnauthKeyIV(h.serverNonce, h.newNonce)
	encrypted, err := crypto.IGEEncrypt(key, iv, payload)
	if err != nil {
		return authKey, tgerr.Wrap(tgerr.Handshake, err)
	}

	req := tl.SetClientDHParams{Nonce: h.nonce, ServerNonce: h.serverNonce, EncryptedData: encrypted}
	if err := h.sendPlaintext(ctx, req); err != nil {
		return authKey, err
	}

	obj, err := h.recvPlaintext(ctx)
	if err != nil {
		return authKey, err
	}

	switch v := obj.(type) {
	case tl.DHGenRetry:
		return authKey, tgerr.New(tgerr.Handshake, "dh_gen_retry")
	case tl.DHGenFail:
		return authKey, tgerr.New(tgerr.Handshake, "dh_gen_fail")
	case tl.DHGenOK:
		if v.Nonce != h.nonce || v.ServerNonce != h.serverNonce {
			return authKey, tgerr.New(tgerr.Handshake, "dh_gen_ok: nonce mismatch")
		}
		if err := h.verifyNewNonceHash(authKey, 1, v.NewNonceHash1); err != nil {
			return authKey, err
		}
		return authKey, nil
	default:
		return authKey, tgerr.New(tgerr.Handshake, "expected dh_gen_*, got %T", obj)
	}
}

// verifyNewNonceHash implements spec.md §4.2 step 7's
// th = new_nonce || N || SHA1(auth_key)[0:8]; SHA1(th)[4:20] == hashN.
func (h *handshake) verifyNewNonceHash(authKey [256]byte, n byte, want [16]byte) error {
	authKeyHash := crypto.SHA1(authKey[:])
	th := make([]byte, 0, 41)
	th = append(th, h.newNonce[:]...)
	th = append(th, n)
	th = append(th, authKeyHash[0:8]...)
	got := crypto.SHA1(th)
	var gotTrunc [16]byte
	copy(gotTrunc[:], got[4:20])
	if gotTrunc != want {
		return tgerr.New(tgerr.Handshake, "new_nonce_hash%d mismatch", n)
	}
	return nil
}

// sendPlaintext wraps obj in the auth_key_id=0 envelope spec.md §4.2
// requires for every handshake message and writes it as one frame.
func (h *handshake) sendPlaintext(ctx context.Context, obj tl.Object) error {
	body := tl.NewEncoder(256)
	obj.Encode(body)
	bodyBytes := body.Bytes()

	out := tl.NewEncoder(20 + len(bodyBytes))
	out.OutI64(0) // auth_key_id
	out.OutI64(h.msgID.Next())
	out.OutI32(int32(len(bodyBytes)))
	out.OutBytes(bodyBytes)

	if err := h.conn.WriteFrame(ctx, out.Bytes()); err != nil {
		return tgerr.Wrap(tgerr.Transport, err)
	}
	return nil
}

// recvPlaintext reads one frame and strips the auth_key_id=0/msg_id/len
// envelope, returning the decoded body object.
func (h *handshake) recvPlaintext(ctx context.Context) (tl.Object, error) {
	frame, err := h.conn.ReadFrame(ctx)
	if err != nil {
		return nil, tgerr.Wrap(tgerr.Transport, err)
	}
	d := tl.NewDecoder(frame)
	authKeyID := d.FetchI64()
	if authKeyID != 0 {
		return nil, tgerr.New(tgerr.Handshake, "expected plaintext envelope (auth_key_id=0), got %d", authKeyID)
	}
	d.FetchI64() // msg_id, unchecked: server-assigned, not correlated to ours during handshake
	length := d.FetchI32()
	if d.Err() != nil {
		return nil, tgerr.Wrap(tgerr.Handshake, d.Err())
	}
	body := d.FetchBytes(int(length))
	if d.Err() != nil {
		return nil, tgerr.Wrap(tgerr.Handshake, d.Err())
	}

	bd := tl.NewDecoder(body)
	obj := tl.DecodeObject(bd)
	if err := bd.Err(); err != nil {
		return nil, tgerr.Wrap(tgerr.Handshake, err)
	}
	if rpcErr, ok := obj.(tl.RPCError); ok {
		return nil, &tgerr.RPCError{Code: rpcErr.ErrorCode, Message: rpcErr.Message}
	}
	return obj, nil
}
