package dcclient

import (
	"github.com/tplgy/tgl-go/internal/tl"
)

// dispatch walks one decoded TL object from an inbound frame, per spec.md
// §4.6's message-type switch: containers are unrolled item by item,
// rpc_result resolves a pending query, service notifications are handled
// in place, and anything left over is forwarded to the host as an update.
//
// Grounded on mtproto_client::work_container/rpc_execute_answer's dispatch
// switch (mtproto_client.cpp lines ~900-1150 of the original client).
func (c *Client) dispatch(msgID int64, seqNo int32, obj tl.Object) {
	if seqNo&1 != 0 {
		// "useful" messages require an ack, per spec.md §4.6.
		c.sess.QueueAck(msgID)
	}

	switch v := obj.(type) {
	case tl.MsgContainer:
		for _, item := range v.Items {
			c.dispatch(item.MsgID, item.SeqNo, item.Object)
		}

	case tl.RPCResult:
		c.handleRPCResult(v.ReqMsgID, v.Result)

	case tl.MsgsAck:
		for _, id := range v.MsgIDs {
			c.sess.RecordAcked(id)
		}

	case tl.BadServerSalt:
		c.mu.Lock()
		c.serverSalt = v.NewServerSalt
		c.mu.Unlock()
		if c.cb.OnResendNeeded != nil {
			c.cb.OnResendNeeded(v.BadMsgID)
		}

	case tl.BadMsgNotification:
		// error codes 16/17 (msg_id too old/new) mean the local clock has
		// drifted enough that msg_ids need to be re-based, per spec.md
		// §4.5; codes 32/33 (seq_no too low/high) and 48 (bad server_salt,
		// handled above via BadServerSalt instead) are surfaced as-is.
		if v.ErrorCode == 16 || v.ErrorCode == 17 {
			c.msgID.Reset()
		}
		if c.cb.OnResendNeeded != nil {
			c.cb.OnResendNeeded(v.BadMsgID)
		}

	case tl.NewSessionCreated:
		c.mu.Lock()
		c.serverSalt = v.ServerSalt
		c.mu.Unlock()

	case tl.Ping:
		c.sendPong(v.PingID)

	case tl.Pong:
		// nothing to do: pong only confirms liveness, no pending state
		// beyond the ack already queued above.

	case tl.MsgDetailedInfo, tl.MsgNewDetailedInfo:
		// acked above; no further action per spec.md §4.6.

	default:
		// tl.Unparsed (the ~50-variant update_* family and domain types
		// this package doesn't model) and anything else unrecognized is
		// forwarded to the host as-is.
		if c.cb.OnUpdate != nil {
			c.cb.OnUpdate(v)
		}
	}
}

func (c *Client) handleRPCResult(reqMsgID int64, result tl.Object) {
	c.sess.RecordAcked(reqMsgID)
	if rpcErr, ok := result.(tl.RPCError); ok {
		if c.cb.OnRPCError != nil {
			c.cb.OnRPCError(reqMsgID, rpcErr.ErrorCode, rpcErr.Message)
		}
		return
	}
	if c.cb.OnRPCResult != nil {
		c.cb.OnRPCResult(reqMsgID, result)
	}
}

func (c *Client) sendPong(pingID int64) {
	msgID := c.msgID.Next()
	pong := tl.Pong{MsgID: msgID, PingID: pingID}
	if err := c.sendEncrypted(pong, false); err != nil && c.cb.OnTransportError != nil {
		c.cb.OnTransportError(err)
	}
}
