package tl

// MsgsAck acknowledges a batch of msg_ids.
type MsgsAck struct {
	MsgIDs []int64
}

func (MsgsAck) Constructor() uint32 { return CRCMsgsAck }
func (m MsgsAck) Encode(e *Encoder) {
	e.OutUInt32(CRCMsgsAck)
	e.OutUInt32(CRCVector)
	e.OutI32(int32(len(m.MsgIDs)))
	for _, id := range m.MsgIDs {
		e.OutI64(id)
	}
}

func decodeMsgsAck(d *Decoder) Object {
	ids := d.FetchVectorLong()
	if d.Err() != nil {
		return nil
	}
	return MsgsAck{MsgIDs: ids}
}

// BadServerSalt is spec.md §4.6's bad_server_salt notification.
type BadServerSalt struct {
	BadMsgID    int64
	BadMsgSeqNo int32
	ErrorCode   int32
	NewServerSalt int64
}

func (BadServerSalt) Constructor() uint32 { return CRCBadServerSalt }
func (b BadServerSalt) Encode(e *Encoder) {
	e.OutUInt32(CRCBadServerSalt)
	e.OutI64(b.BadMsgID)
	e.OutI32(b.BadMsgSeqNo)
	e.OutI32(b.ErrorCode)
	e.OutI64(b.NewServerSalt)
}

func decodeBadServerSalt(d *Decoder) Object {
	v := BadServerSalt{
		BadMsgID:      d.FetchI64(),
		BadMsgSeqNo:   d.FetchI32(),
		ErrorCode:     d.FetchI32(),
		NewServerSalt: d.FetchI64(),
	}
	if d.Err() != nil {
		return nil
	}
	return v
}

// BadMsgNotification is spec.md §4.6's bad_msg_notification(code).
type BadMsgNotification struct {
	BadMsgID    int64
	BadMsgSeqNo int32
	ErrorCode   int32
}

func (BadMsgNotification) Constructor() uint32 { return CRCBadMsgNotification }
func (b BadMsgNotification) Encode(e *Encoder) {
	e.OutUInt32(CRCBadMsgNotification)
	e.OutI64(b.BadMsgID)
	e.OutI32(b.BadMsgSeqNo)
	e.OutI32(b.ErrorCode)
}

func decodeBadMsgNotification(d *Decoder) Object {
	v := BadMsgNotification{
		BadMsgID:    d.FetchI64(),
		BadMsgSeqNo: d.FetchI32(),
		ErrorCode:   d.FetchI32(),
	}
	if d.Err() != nil {
		return nil
	}
	return v
}

// NewSessionCreated carries the server's initial salt for a freshly
// created session.
type NewSessionCreated struct {
	FirstMsgID int64
	UniqueID   int64
	ServerSalt int64
}

func (NewSessionCreated) Constructor() uint32 { return CRCNewSessionCreated }
func (n NewSessionCreated) Encode(e *Encoder) {
	e.OutUInt32(CRCNewSessionCreated)
	e.OutI64(n.FirstMsgID)
	e.OutI64(n.UniqueID)
	e.OutI64(n.ServerSalt)
}

func decodeNewSessionCreated(d *Decoder) Object {
	v := NewSessionCreated{
		FirstMsgID: d.FetchI64(),
		UniqueID:   d.FetchI64(),
		ServerSalt: d.FetchI64(),
	}
	if d.Err() != nil {
		return nil
	}
	return v
}

// Ping/Pong implement the protocol keepalive.
type Ping struct {
	PingID int64
}

func (Ping) Constructor() uint32 { return CRCPing }
func (p Ping) Encode(e *Encoder) {
	e.OutUInt32(CRCPing)
	e.OutI64(p.PingID)
}

func decodePing(d *Decoder) Object {
	v := Ping{PingID: d.FetchI64()}
	if d.Err() != nil {
		return nil
	}
	return v
}

type Pong struct {
	MsgID  int64
	PingID int64
}

func (Pong) Constructor() uint32 { return CRCPong }
func (p Pong) Encode(e *Encoder) {
	e.OutUInt32(CRCPong)
	e.OutI64(p.MsgID)
	e.OutI64(p.PingID)
}

func decodePong(d *Decoder) Object {
	v := Pong{MsgID: d.FetchI64(), PingID: d.FetchI64()}
	if d.Err() != nil {
		return nil
	}
	return v
}

// MsgDetailedInfo / MsgNewDetailedInfo are accepted and acked per
// spec.md §4.6 with no further action.
type MsgDetailedInfo struct {
	MsgID       int64
	AnswerMsgID int64
	Bytes       int32
	Status      int32
}

func (MsgDetailedInfo) Constructor() uint32 { return CRCMsgDetailedInfo }
func (m MsgDetailedInfo) Encode(e *Encoder) {
	e.OutUInt32(CRCMsgDetailedInfo)
	e.OutI64(m.MsgID)
	e.OutI64(m.AnswerMsgID)
	e.OutI32(m.Bytes)
	e.OutI32(m.Status)
}

func decodeMsgDetailedInfo(d *Decoder) Object {
	v := MsgDetailedInfo{
		MsgID:       d.FetchI64(),
		AnswerMsgID: d.FetchI64(),
		Bytes:       d.FetchI32(),
		Status:      d.FetchI32(),
	}
	if d.Err() != nil {
		return nil
	}
	return v
}

type MsgNewDetailedInfo struct {
	AnswerMsgID int64
	Bytes       int32
	Status      int32
}

func (MsgNewDetailedInfo) Constructor() uint32 { return CRCMsgNewDetailedInfo }
func (m MsgNewDetailedInfo) Encode(e *Encoder) {
	e.OutUInt32(CRCMsgNewDetailedInfo)
	e.OutI64(m.AnswerMsgID)
	e.OutI32(m.Bytes)
	e.OutI32(m.Status)
}

func decodeMsgNewDetailedInfo(d *Decoder) Object {
	v := MsgNewDetailedInfo{
		AnswerMsgID: d.FetchI64(),
		Bytes:       d.FetchI32(),
		Status:      d.FetchI32(),
	}
	if d.Err() != nil {
		return nil
	}
	return v
}

func init() {
	register(CRCMsgsAck, decodeMsgsAck)
	register(CRCBadServerSalt, decodeBadServerSalt)
	register(CRCBadMsgNotification, decodeBadMsgNotification)
	register(CRCNewSessionCreated, decodeNewSessionCreated)
	register(CRCPing, decodePing)
	register(CRCPong, decodePong)
	register(CRCMsgDetailedInfo, decodeMsgDetailedInfo)
	register(CRCMsgNewDetailedInfo, decodeMsgNewDetailedInfo)
}
