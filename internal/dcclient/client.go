// Package dcclient implements the per-datacenter connection state machine
// of spec.md §4.2-§4.6: handshake to a permanent auth key, negotiation and
// binding of a PFS temp key, and the encrypted send/dispatch loop that
// runs once authorized.
package dcclient

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tplgy/tgl-go/internal/crypto"
	"github.com/tplgy/tgl-go/internal/frame"
	"github.com/tplgy/tgl-go/internal/rsakey"
	"github.com/tplgy/tgl-go/internal/session"
	"github.com/tplgy/tgl-go/internal/tl"
	"github.com/tplgy/tgl-go/tgerr"
	"github.com/tplgy/tgl-go/transport"
)

// cryptoOffloadWorkers bounds the CPU-bound IGE encrypt/decrypt work a
// single Client will run concurrently, per spec.md §5's note that framing
// is CPU-bound enough to need its own pool separate from network I/O.
const cryptoOffloadWorkers = 4

// defaultTempKeyLifetime is how long a negotiated temp key is requested
// to remain valid before a fresh one must be bound, per spec.md §4.3.
const defaultTempKeyLifetime = 7200 * time.Second

// Callbacks are the host hooks a Client reports inbound events through.
// All are optional; a nil callback silently drops that event class.
type Callbacks struct {
	OnRPCResult      func(reqMsgID int64, result tl.Object)
	OnRPCError       func(reqMsgID int64, code int32, message string)
	OnUpdate         func(obj tl.Object)
	OnResendNeeded   func(badMsgID int64)
	OnTransportError func(err error)
}

// Client owns one authorized connection to a single datacenter: its
// handshake-derived keys, its session (worker multiplexing + ack
// batching), and the msg_id/seq_no bookkeeping spec.md §4.5 requires of
// every outbound message.
type Client struct {
	dial    func() (transport.Connection, error)
	factory transport.TimerFactory
	keys    *rsakey.Registry
	cb      Callbacks
	id      int

	// offloadSem bounds how many AES-IGE pack/unpack calls run
	// concurrently; each call still runs through its own errgroup.Group
	// (see packOffload) so one failing frame never poisons later ones.
	offloadSem chan struct{}

	mu             sync.Mutex
	state          State
	authKey        [256]byte
	authKeyID      int64
	tempAuthKey    [256]byte
	tempAuthKeyID  int64
	tempExpiresAt  int32
	serverSalt     int64
	serverTimeSkew float64
	configured     bool
	loggedIn       bool
	loggingOut     bool

	msgID *msgIDGenerator
	sess  *session.Session
}

// New builds a Client that will dial fresh connections via dial whenever
// it needs one (the initial handshake connection, and any secondary
// session workers).
func New(dial func() (transport.Connection, error), factory transport.TimerFactory, keys *rsakey.Registry, cb Callbacks) *Client {
	return &Client{
		dial:       dial,
		factory:    factory,
		keys:       keys,
		cb:         cb,
		offloadSem: make(chan struct{}, cryptoOffloadWorkers),
		state:      StateInit,
	}
}

// packOffload runs fn (an AES-IGE pack/unpack call) on the bounded crypto
// offload pool, per spec.md §5. A fresh errgroup.Group backs every call so
// one frame's failure never contaminates the error seen by an unrelated,
// concurrently-running frame.
func (c *Client) packOffload(ctx context.Context, fn func() error) error {
	select {
	case c.offloadSem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-c.offloadSem }()

	g, _ := errgroup.WithContext(ctx)
	g.Go(fn)
	return g.Wait()
}

// SetID records which datacenter number this Client talks to, purely for
// logging and for internal/query's migration handling; it has no effect
// on dialing or key derivation.
func (c *Client) SetID(id int) { c.id = id }

// ID reports the datacenter number passed to SetID, or 0 if unset.
func (c *Client) ID() int { return c.id }

// State reports the client's current handshake/authorization state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether the client has completed its handshake and
// owns a live session, per spec.md §4.7's "has no session, is not
// connected" pending-query check.
func (c *Client) Connected() bool {
	c.mu.Lock()
	authorized := c.state == StateAuthorized
	c.mu.Unlock()
	return authorized && c.sess != nil
}

// SessionID reports the current session's id, or 0 before Authorize has
// run. internal/query uses this to detect whether a query's recorded
// session has been replaced underneath it (spec.md §4.8's session
// replacement).
func (c *Client) SessionID() int64 {
	if c.sess == nil {
		return 0
	}
	return c.sess.SessionID
}

// Configured/SetConfigured track whether help.getConfig has completed on
// this DC, per spec.md §4.7's "unconfigured (and not Force)" pending gate.
func (c *Client) Configured() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.configured
}

func (c *Client) SetConfigured(v bool) {
	c.mu.Lock()
	c.configured = v
	c.mu.Unlock()
}

// LoggedIn/SetLoggedIn track whether this DC has a logged-in user session,
// per spec.md §4.7's "not logged-in (and not Login/Force)" pending gate.
func (c *Client) LoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loggedIn
}

func (c *Client) SetLoggedIn(v bool) {
	c.mu.Lock()
	c.loggedIn = v
	c.mu.Unlock()
}

// LoggingOut/SetLoggingOut track the logout-in-progress flag spec.md §4.7
// checks before accepting a non-Force query.
func (c *Client) LoggingOut() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loggingOut
}

func (c *Client) SetLoggingOut(v bool) {
	c.mu.Lock()
	c.loggingOut = v
	c.mu.Unlock()
}

// Authorize runs the full key-exchange sequence of spec.md §4.2-§4.3: a
// permanent-key handshake, followed by a temp-key handshake and bind,
// leaving the Client ready to send and receive encrypted RPCs under the
// temp key (spec.md §4.3's PFS default).
func (c *Client) Authorize(ctx context.Context) error {
	conn, err := c.dial()
	if err != nil {
		return tgerr.Wrap(tgerr.Transport, err)
	}
	if err := conn.Open(ctx); err != nil {
		return tgerr.Wrap(tgerr.Transport, err)
	}

	bootstrapMsgID := newMsgIDGenerator(func() float64 { return float64(time.Now().Unix()) })

	c.setState(StateReqPQSent)
	permResult, err := newHandshake(conn, c.keys, bootstrapMsgID, false, 0).Run(ctx)
	if err != nil {
		conn.Close()
		return err
	}

	c.mu.Lock()
	c.authKey = permResult.AuthKey
	c.authKeyID = permResult.AuthKeyID
	c.serverSalt = permResult.ServerSalt
	c.serverTimeSkew = permResult.ServerTimeSkew
	c.state = StateAuthorized
	c.msgID = newMsgIDGenerator(c.serverTime)
	c.mu.Unlock()

	var sessionID int64
	for sessionID == 0 {
		var b [8]byte
		copy(b[:], crypto.SecureRandom(8))
		sessionID = int64(binary.LittleEndian.Uint64(b[:]))
	}
	c.sess = session.New(sessionID, conn, c.factory, c.dial)
	c.sess.OnAckFlush(c.flushAcks)

	c.setState(StateReqPQSentTemp)
	tempResult, err := newHandshake(conn, c.keys, c.msgID, true, int32(defaultTempKeyLifetime/time.Second)).Run(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.tempAuthKey = tempResult.AuthKey
	c.tempAuthKeyID = tempResult.AuthKeyID
	c.tempExpiresAt = int32(time.Now().Unix()) + int32(defaultTempKeyLifetime/time.Second)
	c.state = StateAuthorized
	c.mu.Unlock()

	if err := c.bindTempAuthKey(ctx, sessionID, c.tempExpiresAt); err != nil {
		return err
	}

	go c.readLoop(ctx, conn)
	return nil
}

// Authorized reports whether the permanent-key handshake has completed,
// independent of whether a PFS temp key has since been bound. Grounded
// on mtproto_client::is_authorized (mtproto_client.h line 115).
func (c *Client) Authorized() bool {
	s := c.State()
	return s == StateAuthorized || s.isTemp()
}

// RestartAuthorization re-runs the full permanent+temp key handshake from
// scratch, per mtproto_client::restart_authorization
// (mtproto_client.cpp:1533): used by internal/query's 303 migration
// handling when a newly-active DC hasn't been authorized yet.
func (c *Client) RestartAuthorization(ctx context.Context) error {
	c.setState(StateInit)
	return c.Authorize(ctx)
}

// RestartTempAuthorization re-negotiates only the PFS temp key, keeping
// the existing permanent key and session, per
// mtproto_client::restart_temp_authorization (mtproto_client.cpp:1518):
// used when a query gets back AUTH_KEY_PERM_EMPTY.
func (c *Client) RestartTempAuthorization(ctx context.Context) error {
	conn, err := c.dial()
	if err != nil {
		return tgerr.Wrap(tgerr.Transport, err)
	}
	if err := conn.Open(ctx); err != nil {
		return tgerr.Wrap(tgerr.Transport, err)
	}

	c.setState(StateReqPQSentTemp)
	tempResult, err := newHandshake(conn, c.keys, c.msgID, true, int32(defaultTempKeyLifetime/time.Second)).Run(ctx)
	if err != nil {
		conn.Close()
		return err
	}

	c.mu.Lock()
	c.tempAuthKey = tempResult.AuthKey
	c.tempAuthKeyID = tempResult.AuthKeyID
	c.tempExpiresAt = int32(time.Now().Unix()) + int32(defaultTempKeyLifetime/time.Second)
	c.state = StateAuthorized
	c.mu.Unlock()

	return c.bindTempAuthKey(ctx, c.SessionID(), c.tempExpiresAt)
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// serverTime returns the Client's best estimate of the server's wall
// clock, used to seed msg_id generation (spec.md §4.5).
func (c *Client) serverTime() float64 {
	c.mu.Lock()
	skew := c.serverTimeSkew
	c.mu.Unlock()
	return float64(time.Now().UnixNano())/1e9 + skew
}

// activeKey returns whichever key should encrypt/decrypt outbound
// traffic: the temp key once bound, falling back to the permanent key
// during the brief window before binding completes.
func (c *Client) activeKey() (key [256]byte, keyID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tempAuthKeyID != 0 {
		return c.tempAuthKey, c.tempAuthKeyID
	}
	return c.authKey, c.authKeyID
}

// executeOverTempKey is used only by bind.go: auth.bindTempAuthKey is the
// one RPC that must be sent encrypted under the *temp* key even though
// the temp key isn't considered "bound" until this call succeeds.
func (c *Client) executeOverTempKey(ctx context.Context, req tl.Object) (tl.Object, error) {
	return c.roundTrip(ctx, req, c.tempAuthKeyID, c.tempAuthKey)
}

// Send encrypts obj under the active key and writes it to the
// least-loaded worker, per spec.md §4.5/§4.8. contentMessage controls the
// seq_no low bit and therefore whether the server will expect (and send)
// an ack for it.
func (c *Client) Send(ctx context.Context, obj tl.Object, contentMessage bool) (int64, error) {
	key, keyID := c.activeKey()
	msgID, _, err := c.sendVia(ctx, obj, contentMessage, keyID, key, 0, 0)
	return msgID, err
}

// SendQuery sends obj as a fresh outbound message and reports the triple
// internal/query needs to track a pending RPC, per spec.md §4.7's "record
// (msg_id, session_id, seq_no)" requirement.
func (c *Client) SendQuery(ctx context.Context, obj tl.Object) (msgID, sessionID int64, seqNo int32, err error) {
	key, keyID := c.activeKey()
	msgID, seqNo, err = c.sendVia(ctx, obj, true, keyID, key, 0, 0)
	if err != nil {
		return 0, 0, 0, err
	}
	return msgID, c.SessionID(), seqNo, nil
}

// Resend re-sends obj reusing a previously-assigned msg_id and seq_no,
// per spec.md §4.7's same-session alarm() path: the server already knows
// this (msg_id, seq_no) pair, so a fresh pair would just create a
// duplicate in-flight query rather than refresh the existing one.
func (c *Client) Resend(ctx context.Context, obj tl.Object, msgID int64, seqNo int32) error {
	key, keyID := c.activeKey()
	_, _, err := c.sendVia(ctx, obj, true, keyID, key, msgID, seqNo)
	return err
}

func (c *Client) sendEncrypted(obj tl.Object, contentMessage bool) error {
	key, keyID := c.activeKey()
	_, _, err := c.sendVia(context.Background(), obj, contentMessage, keyID, key, 0, 0)
	return err
}

// sendVia frames and writes obj. A nonzero reuseMsgID/reuseSeqNo pair
// resends under an already-assigned identity instead of minting a new
// one; pass 0, 0 for normal fresh sends (msg_id 0 is never valid so this
// unambiguously means "generate one").
func (c *Client) sendVia(ctx context.Context, obj tl.Object, contentMessage bool, keyID int64, key [256]byte, reuseMsgID int64, reuseSeqNo int32) (int64, int32, error) {
	w, err := c.sess.SelectWorker(contentMessage)
	if err != nil {
		return 0, 0, tgerr.Wrap(tgerr.Transport, err)
	}

	body := tl.NewEncoder(256)
	obj.Encode(body)

	msgID := reuseMsgID
	if msgID == 0 {
		msgID = c.msgID.Next()
	}
	seqNo := reuseSeqNo
	if reuseMsgID == 0 {
		seqNo = c.sess.NextSeqNo(contentMessage)
	}
	c.mu.Lock()
	salt := c.serverSalt
	c.mu.Unlock()

	var encrypted []byte
	packErr := c.packOffload(ctx, func() error {
		var err error
		encrypted, err = frame.Pack(keyID, key, crypto.Client2Server, frame.Plaintext{
			ServerSalt: salt,
			SessionID:  c.sess.SessionID,
			MsgID:      msgID,
			SeqNo:      seqNo,
			Message:    body.Bytes(),
		})
		return err
	})
	if packErr != nil {
		return 0, 0, tgerr.Wrap(tgerr.Session, packErr)
	}

	if err := w.Connection.WriteFrame(ctx, encrypted); err != nil {
		return 0, 0, tgerr.Wrap(tgerr.Transport, err)
	}
	c.sess.RecordSent(w, msgID)
	c.sess.Touch()
	return msgID, seqNo, nil
}

// roundTrip sends req and blocks for exactly one matching rpc_result,
// used only during the handshake/bind sequence where there is no
// concurrent traffic to confuse the correlation. The general query layer
// (internal/query) owns request/response correlation for everything
// after authorization.
func (c *Client) roundTrip(ctx context.Context, req tl.Object, keyID int64, key [256]byte) (tl.Object, error) {
	msgID, _, err := c.sendVia(ctx, req, true, keyID, key, 0, 0)
	if err != nil {
		return nil, err
	}

	w, err := c.sess.SelectWorker(false)
	if err != nil {
		return nil, tgerr.Wrap(tgerr.Transport, err)
	}
	for {
		raw, err := w.Connection.ReadFrame(ctx)
		if err != nil {
			return nil, tgerr.Wrap(tgerr.Transport, err)
		}
		_, plain, err := frame.Unpack(raw, keyID, key, crypto.Server2Client)
		if err != nil {
			return nil, tgerr.Wrap(tgerr.Session, err)
		}
		d := tl.NewDecoder(plain.Message)
		obj := tl.DecodeObject(d)
		if err := d.Err(); err != nil {
			return nil, tgerr.Wrap(tgerr.Protocol, err)
		}
		if res, ok := obj.(tl.RPCResult); ok && res.ReqMsgID == msgID {
			return res.Result, nil
		}
		// anything else received while waiting on the bind reply still
		// needs normal handling (e.g. the new_session_created that often
		// precedes it), so route it through the regular dispatcher.
		c.dispatch(plain.MsgID, plain.SeqNo, obj)
	}
}

// readLoop is the steady-state dispatch loop run once Authorize
// completes: every inbound frame off the primary connection is decrypted
// under whichever key it claims to be keyed with and handed to dispatch.
func (c *Client) readLoop(ctx context.Context, conn transport.Connection) {
	for {
		raw, err := conn.ReadFrame(ctx)
		if err != nil {
			if c.cb.OnTransportError != nil {
				c.cb.OnTransportError(tgerr.Wrap(tgerr.Transport, err))
			}
			return
		}

		msgID, plain, err := c.unpackInbound(ctx, raw)
		if err != nil {
			if c.cb.OnTransportError != nil {
				c.cb.OnTransportError(err)
			}
			continue
		}

		d := tl.NewDecoder(plain.Message)
		obj := tl.DecodeObject(d)
		if err := d.Err(); err != nil {
			if c.cb.OnTransportError != nil {
				c.cb.OnTransportError(tgerr.Wrap(tgerr.Protocol, err))
			}
			continue
		}
		c.sess.Touch()
		c.dispatch(msgID, plain.SeqNo, obj)
	}
}

// unpackInbound tries the temp key first (the common case once bound),
// falling back to the permanent key, since both remain simultaneously
// valid for a window around binding.
func (c *Client) unpackInbound(ctx context.Context, raw []byte) (int64, frame.Plaintext, error) {
	c.mu.Lock()
	tempKey, tempID := c.tempAuthKey, c.tempAuthKeyID
	permKey, permID := c.authKey, c.authKeyID
	c.mu.Unlock()

	var plain frame.Plaintext
	if tempID != 0 {
		var unpackErr error
		if err := c.packOffload(ctx, func() error {
			_, p, err := frame.Unpack(raw, tempID, tempKey, crypto.Server2Client)
			plain, unpackErr = p, err
			return nil
		}); err == nil && unpackErr == nil {
			return plain.MsgID, plain, nil
		}
	}

	var unpackErr error
	if err := c.packOffload(ctx, func() error {
		_, p, err := frame.Unpack(raw, permID, permKey, crypto.Server2Client)
		plain, unpackErr = p, err
		return nil
	}); err != nil {
		return 0, frame.Plaintext{}, tgerr.Wrap(tgerr.Transport, err)
	}
	if unpackErr != nil {
		return 0, frame.Plaintext{}, tgerr.Wrap(tgerr.Session, unpackErr)
	}
	return plain.MsgID, plain, nil
}

func (c *Client) flushAcks(ids []int64) {
	if len(ids) == 0 {
		return
	}
	if err := c.sendEncrypted(tl.MsgsAck{MsgIDs: ids}, false); err != nil && c.cb.OnTransportError != nil {
		c.cb.OnTransportError(err)
	}
}

// KeyMaterial reports this Client's permanent auth key, key id, and
// current server salt — the pieces a host needs to persist a session via
// sessionstore.Store. Safe to call once Authorize has completed;
// meaningless (all zero) before that.
func (c *Client) KeyMaterial() (authKey [256]byte, authKeyID int64, serverSalt int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authKey, c.authKeyID, c.serverSalt
}

// Close tears down the session and every worker connection it owns.
func (c *Client) Close() {
	if c.sess != nil {
		c.sess.Close()
	}
}
