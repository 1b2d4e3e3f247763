package tl

import "math/big"

// ReqPQ is step 1 of spec.md §4.2.
type ReqPQ struct {
	Nonce [16]byte
}

func (ReqPQ) Constructor() uint32 { return CRCReqPQ }
func (r ReqPQ) Encode(e *Encoder) {
	e.OutUInt32(CRCReqPQ)
	e.OutBytes(r.Nonce[:])
}

// ResPQ is the server's answer to req_pq.
type ResPQ struct {
	Nonce        [16]byte
	ServerNonce  [16]byte
	PQ           *big.Int
	Fingerprints []int64
}

func (ResPQ) Constructor() uint32 { return CRCResPQ }
func (r ResPQ) Encode(e *Encoder) {
	e.OutUInt32(CRCResPQ)
	e.OutBytes(r.Nonce[:])
	e.OutBytes(r.ServerNonce[:])
	e.OutBignum(r.PQ)
	e.OutUInt32(CRCVector)
	e.OutI32(int32(len(r.Fingerprints)))
	for _, f := range r.Fingerprints {
		e.OutI64(f)
	}
}

func decodeResPQ(d *Decoder) Object {
	var v ResPQ
	copy(v.Nonce[:], d.FetchBytes(16))
	copy(v.ServerNonce[:], d.FetchBytes(16))
	v.PQ = d.FetchBignum()
	v.Fingerprints = d.FetchVectorLong()
	if d.Err() != nil {
		return nil
	}
	return v
}

// PQInnerData is the p_q_inner_data (or _temp variant) plaintext encrypted
// under the selected RSA key in step 3 of spec.md §4.2.
type PQInnerData struct {
	Temp        bool
	PQ          *big.Int
	P           *big.Int
	Q           *big.Int
	Nonce       [16]byte
	ServerNonce [16]byte
	NewNonce    [32]byte
	ExpiresIn   int32 // only meaningful when Temp
}

func (p PQInnerData) Constructor() uint32 {
	if p.Temp {
		return CRCPQInnerDataTemp
	}
	return CRCPQInnerData
}

func (p PQInnerData) Encode(e *Encoder) {
	e.OutUInt32(p.Constructor())
	e.OutBignum(p.PQ)
	e.OutBignum(p.P)
	e.OutBignum(p.Q)
	e.OutBytes(p.Nonce[:])
	e.OutBytes(p.ServerNonce[:])
	e.OutBytes(p.NewNonce[:])
	if p.Temp {
		e.OutI32(p.ExpiresIn)
	}
}

// ReqDHParams is step 3's outer envelope.
type ReqDHParams struct {
	Nonce         [16]byte
	ServerNonce   [16]byte
	P             *big.Int
	Q             *big.Int
	PublicKeyFP   int64
	EncryptedData []byte
}

func (ReqDHParams) Constructor() uint32 { return CRCReqDHParams }
func (r ReqDHParams) Encode(e *Encoder) {
	e.OutUInt32(CRCReqDHParams)
	e.OutBytes(r.Nonce[:])
	e.OutBytes(r.ServerNonce[:])
	e.OutBignum(r.P)
	e.OutBignum(r.Q)
	e.OutI64(r.PublicKeyFP)
	e.OutString(r.EncryptedData)
}

// ServerDHParamsOK/Fail are the two possible answers to req_DH_params.
type ServerDHParamsOK struct {
	Nonce          [16]byte
	ServerNonce    [16]byte
	EncryptedAnswer []byte
}

func (ServerDHParamsOK) Constructor() uint32 { return CRCServerDHParamsOK }
func (s ServerDHParamsOK) Encode(e *Encoder) {
	e.OutUInt32(CRCServerDHParamsOK)
	e.OutBytes(s.Nonce[:])
	e.OutBytes(s.ServerNonce[:])
	e.OutString(s.EncryptedAnswer)
}

func decodeServerDHParamsOK(d *Decoder) Object {
	var v ServerDHParamsOK
	copy(v.Nonce[:], d.FetchBytes(16))
	copy(v.ServerNonce[:], d.FetchBytes(16))
	v.EncryptedAnswer = d.FetchString()
	if d.Err() != nil {
		return nil
	}
	return v
}

type ServerDHParamsFail struct {
	Nonce          [16]byte
	ServerNonce    [16]byte
	NewNonceHash   [16]byte
}

func (ServerDHParamsFail) Constructor() uint32 { return CRCServerDHParamsFail }
func (s ServerDHParamsFail) Encode(e *Encoder) {
	e.OutUInt32(CRCServerDHParamsFail)
	e.OutBytes(s.Nonce[:])
	e.OutBytes(s.ServerNonce[:])
	e.OutBytes(s.NewNonceHash[:])
}

func decodeServerDHParamsFail(d *Decoder) Object {
	var v ServerDHParamsFail
	copy(v.Nonce[:], d.FetchBytes(16))
	copy(v.ServerNonce[:], d.FetchBytes(16))
	copy(v.NewNonceHash[:], d.FetchBytes(16))
	if d.Err() != nil {
		return nil
	}
	return v
}

// ServerDHInnerData is the AES-IGE-decrypted answer, spec.md §4.2 step 4.
type ServerDHInnerData struct {
	Nonce       [16]byte
	ServerNonce [16]byte
	G           int32
	DHPrime     *big.Int
	GA          *big.Int
	ServerTime  int32
}

func (ServerDHInnerData) Constructor() uint32 { return CRCServerDHInnerData }
func (s ServerDHInnerData) Encode(e *Encoder) {
	e.OutUInt32(CRCServerDHInnerData)
	e.OutBytes(s.Nonce[:])
	e.OutBytes(s.ServerNonce[:])
	e.OutI32(s.G)
	e.OutBignum(s.DHPrime)
	e.OutBignum(s.GA)
	e.OutI32(s.ServerTime)
}

func decodeServerDHInnerData(d *Decoder) Object {
	var v ServerDHInnerData
	copy(v.Nonce[:], d.FetchBytes(16))
	copy(v.ServerNonce[:], d.FetchBytes(16))
	v.G = d.FetchI32()
	v.DHPrime = d.FetchBignum()
	v.GA = d.FetchBignum()
	v.ServerTime = d.FetchI32()
	if d.Err() != nil {
		return nil
	}
	return v
}

// ClientDHInnerData is step 6's AES-IGE-encrypted payload.
type ClientDHInnerData struct {
	Nonce       [16]byte
	ServerNonce [16]byte
	RetryID     int64
	GB          *big.Int
}

func (ClientDHInnerData) Constructor() uint32 { return CRCClientDHInnerData }
func (c ClientDHInnerData) Encode(e *Encoder) {
	e.OutUInt32(CRCClientDHInnerData)
	e.OutBytes(c.Nonce[:])
	e.OutBytes(c.ServerNonce[:])
	e.OutI64(c.RetryID)
	e.OutBignum(c.GB)
}

// SetClientDHParams is step 6's outer envelope.
type SetClientDHParams struct {
	Nonce         [16]byte
	ServerNonce   [16]byte
	EncryptedData []byte
}

func (SetClientDHParams) Constructor() uint32 { return CRCSetClientDHParams }
func (s SetClientDHParams) Encode(e *Encoder) {
	e.OutUInt32(CRCSetClientDHParams)
	e.OutBytes(s.Nonce[:])
	e.OutBytes(s.ServerNonce[:])
	e.OutString(s.EncryptedData)
}

// DHGenOK/Retry/Fail are the three possible answers to
// set_client_DH_params, each carrying a new_nonce_hashN per spec.md §4.2
// step 7.
type DHGenOK struct {
	Nonce        [16]byte
	ServerNonce  [16]byte
	NewNonceHash1 [16]byte
}

func (DHGenOK) Constructor() uint32 { return CRCDHGenOK }
func (d2 DHGenOK) Encode(e *Encoder) {
	e.OutUInt32(CRCDHGenOK)
	e.OutBytes(d2.Nonce[:])
	e.OutBytes(d2.ServerNonce[:])
	e.OutBytes(d2.NewNonceHash1[:])
}

func decodeDHGenOK(d *Decoder) Object {
	var v DHGenOK
	copy(v.Nonce[:], d.FetchBytes(16))
	copy(v.ServerNonce[:], d.FetchBytes(16))
	copy(v.NewNonceHash1[:], d.FetchBytes(16))
	if d.Err() != nil {
		return nil
	}
	return v
}

type DHGenRetry struct {
	Nonce        [16]byte
	ServerNonce  [16]byte
	NewNonceHash2 [16]byte
}

func (DHGenRetry) Constructor() uint32 { return CRCDHGenRetry }
func (d2 DHGenRetry) Encode(e *Encoder) {
	e.OutUInt32(CRCDHGenRetry)
	e.OutBytes(d2.Nonce[:])
	e.OutBytes(d2.ServerNonce[:])
	e.OutBytes(d2.NewNonceHash2[:])
}

func decodeDHGenRetry(d *Decoder) Object {
	var v DHGenRetry
	copy(v.Nonce[:], d.FetchBytes(16))
	copy(v.ServerNonce[:], d.FetchBytes(16))
	copy(v.NewNonceHash2[:], d.FetchBytes(16))
	if d.Err() != nil {
		return nil
	}
	return v
}

type DHGenFail struct {
	Nonce        [16]byte
	ServerNonce  [16]byte
	NewNonceHash3 [16]byte
}

func (DHGenFail) Constructor() uint32 { return CRCDHGenFail }
func (d2 DHGenFail) Encode(e *Encoder) {
	e.OutUInt32(CRCDHGenFail)
	e.OutBytes(d2.Nonce[:])
	e.OutBytes(d2.ServerNonce[:])
	e.OutBytes(d2.NewNonceHash3[:])
}

func decodeDHGenFail(d *Decoder) Object {
	var v DHGenFail
	copy(v.Nonce[:], d.FetchBytes(16))
	copy(v.ServerNonce[:], d.FetchBytes(16))
	copy(v.NewNonceHash3[:], d.FetchBytes(16))
	if d.Err() != nil {
		return nil
	}
	return v
}

// BindAuthKeyInner is spec.md §4.3's inner payload, encrypted under the
// permanent key and sent as the `encrypted_message` argument of
// auth.bindTempAuthKey.
type BindAuthKeyInner struct {
	Nonce         int64
	TempAuthKeyID int64
	PermAuthKeyID int64
	SessionID     int64
	ExpiresAt     int32
}

func (BindAuthKeyInner) Constructor() uint32 { return CRCBindAuthKeyInner }
func (b BindAuthKeyInner) Encode(e *Encoder) {
	e.OutUInt32(CRCBindAuthKeyInner)
	e.OutI64(b.Nonce)
	e.OutI64(b.TempAuthKeyID)
	e.OutI64(b.PermAuthKeyID)
	e.OutI64(b.SessionID)
	e.OutI32(b.ExpiresAt)
}

// AuthBindTempAuthKey is the outer RPC of spec.md §4.3.
type AuthBindTempAuthKey struct {
	PermAuthKeyID    int64
	Nonce            int64
	ExpiresAt        int32
	EncryptedMessage []byte
}

func (AuthBindTempAuthKey) Constructor() uint32 { return CRCAuthBindTempAuthKey }
func (a AuthBindTempAuthKey) Encode(e *Encoder) {
	e.OutUInt32(CRCAuthBindTempAuthKey)
	e.OutI64(a.PermAuthKeyID)
	e.OutI64(a.Nonce)
	e.OutI32(a.ExpiresAt)
	e.OutString(a.EncryptedMessage)
}

func init() {
	register(CRCResPQ, decodeResPQ)
	register(CRCServerDHParamsOK, decodeServerDHParamsOK)
	register(CRCServerDHParamsFail, decodeServerDHParamsFail)
	register(CRCServerDHInnerData, decodeServerDHInnerData)
	register(CRCDHGenOK, decodeDHGenOK)
	register(CRCDHGenRetry, decodeDHGenRetry)
	register(CRCDHGenFail, decodeDHGenFail)
}
