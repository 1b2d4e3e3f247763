package tgl

import (
	"context"
	"net"
	"strconv"
	"sync"

	"github.com/ansel1/merry/v2"

	"github.com/tplgy/tgl-go/internal/dcclient"
	"github.com/tplgy/tgl-go/internal/query"
	"github.com/tplgy/tgl-go/internal/rsakey"
	"github.com/tplgy/tgl-go/internal/tl"
	"github.com/tplgy/tgl-go/internal/updater"
	"github.com/tplgy/tgl-go/sessionstore"
	"github.com/tplgy/tgl-go/tgerr"
	"github.com/tplgy/tgl-go/tlog"
	"github.com/tplgy/tgl-go/transport"
	"github.com/tplgy/tgl-go/transport/tcp"
)

// protocolLayer is the TL schema layer every fresh connection's
// invokeWithLayer envelope declares, matching mtproto.go:293's
// TL_invokeWithLayer(TL_Layer, ...) call.
const protocolLayer int32 = 143

// eventQueueDepth bounds how many pending closures UserAgent.post will
// buffer before a caller blocks handing one off, per spec.md §5's single
// cooperative loop fed by a fan-in channel.
const eventQueueDepth = 256

// queryKey identifies a pending query by which DCClient it was last sent
// through and its msg_id, since msg_id spaces of distinct DCs are not
// guaranteed disjoint (internal/query.Query.Client's doc comment).
type queryKey struct {
	client *dcclient.Client
	msgID  int64
}

// UserAgent is the root façade of spec.md §2 item 10: it owns every
// per-DC dcclient.Client, the update-consistency engine, the RSA key
// registry, and session persistence, and serializes all of it through
// one cooperative event loop. Grounded on
// _examples/original_source/src/user_agent.h/.cpp's user_agent class
// (one struct owning every DC, the active-DC pointer, and the global
// pts/qts/seq/date) and mtproto.go's MTProto struct for the ambient
// config/logging/session shape. Build one with New, then call Run in its
// own goroutine.
type UserAgent struct {
	cfg      Config
	keys     *rsakey.Registry
	log      tlog.Logger
	callback Callback
	secrets  UnconfirmedSecretMessageStorage
	store    *sessionstore.Store
	timers   transport.TimerFactory
	updater  *updater.Updater

	events chan func()
	ctx    context.Context
	cancel context.CancelFunc

	mu             sync.Mutex
	clients        map[int]*dcclient.Client
	endpoints      map[int][]tl.DCOption
	activeDC       int
	homeDC         int
	ourID          int64
	passwordLocked bool

	queriesMu sync.Mutex
	queries   map[queryKey]*query.Query
	pending   []*query.Query
}

// New builds a UserAgent. callback may be NopCallback{} for a host that
// only cares about a handful of notifications.
func New(cfg Config, keys *rsakey.Registry, callback Callback, logHandler tlog.LogHandler) *UserAgent {
	if callback == nil {
		callback = NopCallback{}
	}
	ua := &UserAgent{
		cfg:       cfg,
		keys:      keys,
		log:       tlog.New(logHandler),
		callback:  callback,
		secrets:   NewMemoryUnconfirmedSecretMessageStorage(),
		timers:    transport.RealTimerFactory{},
		clients:   make(map[int]*dcclient.Client),
		endpoints: make(map[int][]tl.DCOption),
		queries:   make(map[queryKey]*query.Query),
		events:    make(chan func(), eventQueueDepth),
		activeDC:  cfg.bootstrapDC(),
		homeDC:    cfg.bootstrapDC(),
	}
	if cfg.SessionDir != "" {
		ua.store = &sessionstore.Store{Dir: cfg.SessionDir, Passphrase: cfg.SessionPassphrase}
	}
	ua.updater = updater.New(ua)
	return ua
}

// Run is UserAgent's single cooperative loop: every Client callback,
// timer firing, and query completion reaches application state only by
// posting a closure here, per spec.md §5 ("one goroutine... reading from
// a fan-in channel"). It blocks until ctx is cancelled.
func (ua *UserAgent) Run(ctx context.Context) {
	ua.mu.Lock()
	ua.ctx, ua.cancel = context.WithCancel(ctx)
	loopCtx := ua.ctx
	ua.mu.Unlock()

	for {
		select {
		case <-loopCtx.Done():
			return
		case fn := <-ua.events:
			fn()
		}
	}
}

// Stop cancels the event loop started by Run.
func (ua *UserAgent) Stop() {
	ua.mu.Lock()
	cancel := ua.cancel
	ua.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// post hands fn to the event loop. Called from Client callback
// goroutines and from timer-driven goroutines (internal/updater,
// internal/query); never from inside the loop itself.
func (ua *UserAgent) post(fn func()) {
	ua.mu.Lock()
	ctx := ua.ctx
	ua.mu.Unlock()
	if ctx == nil {
		// Run hasn't started yet (e.g. AddDC called eagerly before it);
		// there's nobody to serialize against yet, so just run it.
		fn()
		return
	}
	select {
	case ua.events <- fn:
	case <-ctx.Done():
	}
}

// Bootstrap authorizes the configured BootstrapDC at its resolved
// address (Config.BootstrapAddr if set, else the compile-time endpoint
// table of spec.md §6.5), the entrypoint a fresh UserAgent with no
// restored session needs before it knows any DC's address.
func (ua *UserAgent) Bootstrap(ctx context.Context) {
	ua.AddDC(ctx, ua.cfg.bootstrapDC(), ua.cfg.bootstrapAddr())
}

// AddDC dials and authorizes a client for dcID at addr if one doesn't
// already exist, without blocking the caller: the handshake runs on its
// own goroutine and every side effect (help.getConfig, session save,
// Callback notification) is posted back onto the event loop. If addr is
// empty it is resolved from a learned dc_option or, failing that, the
// compile-time endpoint table of spec.md §6.5.
func (ua *UserAgent) AddDC(ctx context.Context, dcID int, addr string) {
	if addr == "" {
		resolved, ok := ua.resolveAddr(dcID)
		if !ok {
			ua.log.Error(merry.Errorf("no known address for DC %d", dcID), "AddDC: cannot resolve address")
			return
		}
		addr = resolved
	}

	c := ua.clientForDC(dcID, addr)
	if c.Authorized() {
		return
	}
	go func() {
		err := c.Authorize(ctx)
		ua.post(func() {
			if err != nil {
				ua.log.Error(err, "authorization failed for DC %d", dcID)
				return
			}
			ua.onClientAuthorized(ctx, c)
		})
	}()
}

// clientForDC returns dcID's Client, creating and wiring it (but not
// authorizing it) on first use.
func (ua *UserAgent) clientForDC(dcID int, addr string) *dcclient.Client {
	ua.mu.Lock()
	if c, ok := ua.clients[dcID]; ok {
		ua.mu.Unlock()
		return c
	}
	ua.mu.Unlock()

	var c *dcclient.Client
	c = dcclient.New(func() (transport.Connection, error) { return tcp.New(addr), nil }, ua.timers, ua.keys, dcclient.Callbacks{
		OnRPCResult: func(reqMsgID int64, result tl.Object) {
			ua.post(func() { ua.handleRPCResult(c, reqMsgID, result) })
		},
		OnRPCError: func(reqMsgID int64, code int32, message string) {
			ua.post(func() { ua.handleRPCError(c, reqMsgID, code, message) })
		},
		OnUpdate: func(obj tl.Object) {
			ua.post(func() { ua.handleUpdate(obj) })
		},
		OnResendNeeded: func(badMsgID int64) {
			// the owning Query's own alarm-driven retry (triggered by its
			// timeout timer) already covers this; nothing extra to do.
			ua.log.Debug("resend needed for msg_id %d on DC %d", badMsgID, dcID)
		},
		OnTransportError: func(err error) {
			ua.post(func() { ua.handleTransportError(c, err) })
		},
	})
	c.SetID(dcID)

	ua.mu.Lock()
	ua.clients[dcID] = c
	ua.mu.Unlock()

	ua.callback.DCUpdated(dcID)
	return c
}

// onClientAuthorized runs help.getConfig to mark c configured, persists
// its session if a Store is configured, and seeds the update-consistency
// engine the first time any client comes up.
func (ua *UserAgent) onClientAuthorized(ctx context.Context, c *dcclient.Client) {
	ua.callback.ConnectionStatusChanged(c.ID(), true)
	ua.saveSession(c)

	ua.ExecuteQuery(ctx, c, "help.getConfig",
		tl.InvokeWithLayer{Layer: protocolLayer, Query: tl.InitConnection{
			APIID:          ua.cfg.App.AppID,
			DeviceModel:    ua.cfg.App.DeviceModel,
			SystemVersion:  ua.cfg.App.SystemVersion,
			AppVersion:     ua.cfg.App.AppVersion,
			SystemLangCode: ua.cfg.App.SystemLangCode,
			LangPack:       ua.cfg.App.LangPack,
			LangCode:       ua.cfg.App.LangCode,
			Query:          tl.HelpGetConfig{},
		}},
		query.OptionForce,
		func(result tl.Object) {
			c.SetConfigured(true)
			if cfg, ok := result.(tl.Config); ok {
				ua.learnDCOptions(cfg.DCOptions)
			}
			ua.log.Info("DC %d configured", c.ID())
			ua.callback.DCUpdated(c.ID())
		},
		func(code int32, message string) bool {
			ua.log.Warn("help.getConfig failed on DC %d: %d %s", c.ID(), code, message)
			return true
		},
	)

	ua.mu.Lock()
	isHome := ua.homeDC == c.ID()
	ua.mu.Unlock()
	if isHome {
		// StartStatePoll creates its timer once and re-arms that same
		// timer on later calls, so calling it again on every home-DC
		// reconnect does not stack polls.
		ua.updater.StartStatePoll(ctx)
	}
}

// saveSession persists c's long-lived identity via the configured Store,
// if any.
func (ua *UserAgent) saveSession(c *dcclient.Client) {
	if ua.store == nil {
		return
	}
	authKey, authKeyID, serverSalt := c.KeyMaterial()
	rec := &sessionstore.Record{
		DCID:       c.ID(),
		AuthKey:    authKey,
		AuthKeyID:  authKeyID,
		ServerSalt: serverSalt,
		SessionID:  c.SessionID(),
	}
	if err := ua.store.Save(rec); err != nil {
		ua.log.Warn("failed to save session for DC %d: %v", c.ID(), err)
	}
}

// handlerFuncs adapts plain result/error funcs to query.Handler without
// a named type per caller, matching this package's preference for small
// call-site closures over a proliferation of Handler implementations.
type handlerFuncs struct {
	onResult func(tl.Object)
	onError  func(code int32, message string) bool
}

func (h handlerFuncs) OnResult(result tl.Object) { h.onResult(result) }
func (h handlerFuncs) OnError(code int32, message string) bool {
	return h.onError(code, message)
}

// ExecuteQuery issues one RPC against client and routes its outcome to
// onResult/onError, the shape every internal caller in this package
// needs instead of hand-rolling a query.Handler each time.
func (ua *UserAgent) ExecuteQuery(ctx context.Context, client *dcclient.Client, name string, body tl.Object, opt query.ExecOption, onResult func(tl.Object), onError func(code int32, message string) bool) {
	q := query.New(ua, name, body, handlerFuncs{onResult: onResult, onError: onError}, 0)
	q.Execute(ctx, client, opt)
}

func (ua *UserAgent) lookupQuery(c *dcclient.Client, msgID int64) *query.Query {
	ua.queriesMu.Lock()
	defer ua.queriesMu.Unlock()
	return ua.queries[queryKey{client: c, msgID: msgID}]
}

func (ua *UserAgent) handleRPCResult(c *dcclient.Client, reqMsgID int64, result tl.Object) {
	if q := ua.lookupQuery(c, reqMsgID); q != nil {
		q.HandleResult(result)
	}
}

func (ua *UserAgent) handleRPCError(c *dcclient.Client, reqMsgID int64, code int32, message string) {
	if q := ua.lookupQuery(c, reqMsgID); q != nil {
		q.HandleError(code, message)
	}
}

// handleUpdate routes one decoded update through the consistency engine;
// Deliver (called back from Updater once it clears the gap/duplicate
// checks) is what actually reaches the application Callback.
func (ua *UserAgent) handleUpdate(obj tl.Object) {
	ua.updater.WorkUpdate(ua.loopCtx(), updater.Update{Payload: obj})
}

func (ua *UserAgent) handleTransportError(c *dcclient.Client, err error) {
	ua.log.Error(err, "transport error on DC %d", c.ID())
	ua.callback.ConnectionStatusChanged(c.ID(), false)
}

// loopCtx returns the context Run is using, or context.Background() if
// Run hasn't started (only relevant to calls made eagerly before it).
func (ua *UserAgent) loopCtx() context.Context {
	ua.mu.Lock()
	ctx := ua.ctx
	ua.mu.Unlock()
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// --- internal/query.Host ---

func (ua *UserAgent) Log() tlog.Logger                     { return ua.log }
func (ua *UserAgent) TimerFactory() transport.TimerFactory { return ua.timers }

func (ua *UserAgent) AddQuery(q *query.Query) {
	c, ok := q.Client().(*dcclient.Client)
	if !ok || c == nil {
		return
	}
	ua.queriesMu.Lock()
	ua.queries[queryKey{client: c, msgID: q.MsgID()}] = q
	ua.queriesMu.Unlock()
}

func (ua *UserAgent) RemoveQuery(q *query.Query) {
	c, ok := q.Client().(*dcclient.Client)
	if !ok || c == nil {
		return
	}
	ua.queriesMu.Lock()
	delete(ua.queries, queryKey{client: c, msgID: q.MsgID()})
	ua.queriesMu.Unlock()
}

func (ua *UserAgent) AddPendingQuery(q *query.Query) {
	ua.queriesMu.Lock()
	ua.pending = append(ua.pending, q)
	ua.queriesMu.Unlock()
}

func (ua *UserAgent) RemovePendingQuery(q *query.Query) {
	ua.queriesMu.Lock()
	for i, p := range ua.pending {
		if p == q {
			ua.pending = append(ua.pending[:i], ua.pending[i+1:]...)
			break
		}
	}
	ua.queriesMu.Unlock()
}

// learnDCOptions merges newly-learned dc_options into ua.endpoints, per
// spec.md §6.5: media_only variants are dropped since this package
// never opens a separate media connection to act on them.
func (ua *UserAgent) learnDCOptions(opts []tl.DCOption) {
	ua.mu.Lock()
	defer ua.mu.Unlock()
	for _, o := range opts {
		if o.MediaOnly {
			continue
		}
		dcID := int(o.ID)
		ua.endpoints[dcID] = append(ua.endpoints[dcID], o)
	}
}

// resolveAddr returns the best known address for dcID: a learned
// dc_option matching Config.PreferIPv6 if one exists, else any learned
// dc_option, else the compile-time endpoint table of spec.md §6.5.
func (ua *UserAgent) resolveAddr(dcID int) (string, bool) {
	ua.mu.Lock()
	opts := ua.endpoints[dcID]
	preferIPv6 := ua.cfg.PreferIPv6
	ua.mu.Unlock()

	var fallback string
	for _, o := range opts {
		addr := net.JoinHostPort(o.IPAddress, strconv.Itoa(int(o.Port)))
		if preferIPv6 == o.Ipv6 {
			return addr, true
		}
		if fallback == "" {
			fallback = addr
		}
	}
	if fallback != "" {
		return fallback, true
	}
	return staticDCAddr(dcID, ua.cfg.TestMode, preferIPv6)
}

// SetActiveDC repoints the active DC, creating (but not yet authorizing)
// a client for dcID via the compile-time/learned endpoint table if this
// is the first time it has ever been seen, per spec.md §6.5/§9's 303
// migration path: the caller (internal/query's HandleError) immediately
// dereferences ActiveClient(), so a never-before-seen DC must already
// have a Client by the time this returns.
func (ua *UserAgent) SetActiveDC(dcID int) {
	ua.mu.Lock()
	_, known := ua.clients[dcID]
	ua.mu.Unlock()
	if !known {
		if addr, ok := ua.resolveAddr(dcID); ok {
			ua.clientForDC(dcID, addr)
		} else {
			ua.log.Error(merry.Errorf("no known address for DC %d", dcID), "SetActiveDC: cannot resolve address")
		}
	}

	ua.mu.Lock()
	ua.activeDC = dcID
	ua.mu.Unlock()
	ua.callback.ActiveDCChanged(dcID)
}

func (ua *UserAgent) ActiveClient() query.DCClient {
	ua.mu.Lock()
	defer ua.mu.Unlock()
	c := ua.clients[ua.activeDC]
	if c == nil {
		return nil
	}
	return c
}

// TransferAuthToMe drives the auth.exportAuthorization/
// auth.importAuthorization pair of spec.md's cross-DC auth transfer,
// restored from original_source's query_export_auth.h/query_import_auth.h,
// so a newly-active DC from a 303 migration doesn't need the user to log
// in again.
func (ua *UserAgent) TransferAuthToMe(c query.DCClient) {
	dst, ok := c.(*dcclient.Client)
	if !ok || dst == nil {
		return
	}
	ua.mu.Lock()
	home := ua.clients[ua.homeDC]
	ua.mu.Unlock()
	if home == nil || home == dst || !home.LoggedIn() {
		return
	}

	ctx := ua.loopCtx()
	ua.ExecuteQuery(ctx, home, "auth.exportAuthorization", tl.AuthExportAuthorization{DCID: int32(dst.ID())}, query.OptionNormal,
		func(result tl.Object) {
			exported, ok := result.(tl.AuthExportedAuthorization)
			if !ok {
				ua.log.Warn("auth.exportAuthorization: unexpected result type %T", result)
				return
			}
			ua.ExecuteQuery(ctx, dst, "auth.importAuthorization", tl.AuthImportAuthorization{ID: exported.ID, Bytes: exported.Bytes}, query.OptionLogin,
				func(tl.Object) {
					dst.SetLoggedIn(true)
					ua.saveSession(dst)
					ua.callback.DCUpdated(dst.ID())
				},
				func(code int32, message string) bool {
					ua.log.Warn("auth.importAuthorization failed on DC %d: %d %s", dst.ID(), code, message)
					return true
				},
			)
		},
		func(code int32, message string) bool {
			ua.log.Warn("auth.exportAuthorization failed: %d %s", code, message)
			return true
		},
	)
}

// Login is the query layer's hook for "an AUTH_KEY_UNREGISTERED/
// AUTH_KEY_INVALID error means this DC needs the user to authenticate
// again"; the actual phone/code/password exchange is an application-
// level RPC sequence this package leaves to the host, prompted through
// Callback.GetValue per spec.md §6.3.
func (ua *UserAgent) Login() {
	ua.callback.GetValue(ValueRequest{Kind: ValueRequestPhone, Respond: func(string) {}})
}

func (ua *UserAgent) SetClientLoggedOut(c query.DCClient, loggedOut bool) {
	client, ok := c.(*dcclient.Client)
	if !ok || client == nil {
		return
	}
	client.SetLoggedIn(!loggedOut)
	ua.callback.DCUpdated(client.ID())
}

func (ua *UserAgent) IsPasswordLocked() bool {
	ua.mu.Lock()
	defer ua.mu.Unlock()
	return ua.passwordLocked
}

func (ua *UserAgent) SetPasswordLocked(v bool) {
	ua.mu.Lock()
	ua.passwordLocked = v
	ua.mu.Unlock()
}

// CheckPassword asks the host for the 2FA password via Callback.GetValue;
// cb is invoked with whether one was supplied (the actual
// account.getPassword/auth.checkPassword RPC pair is, like Login, an
// application-level flow out of this package's scope).
func (ua *UserAgent) CheckPassword(cb func(success bool)) {
	ua.callback.GetValue(ValueRequest{Kind: ValueRequestPassword, Respond: func(answer string) {
		ua.SetPasswordLocked(false)
		cb(answer != "")
	}})
}

// --- internal/updater.Host ---

// GetDifference issues updates.getDifference and decodes whichever of
// the three response shapes came back. Only differenceEmpty and
// differenceTooLong get typed decoding (internal/tl/updates.go's doc
// comment): the full difference/differenceSlice variants carry
// Vector<Message>/Vector<Update>/Vector<Chat>/Vector<User> payloads this
// package's decoder can only capture as one opaque Unparsed blob, never
// split into the per-field pts/qts/seq a three-way compare needs. When
// that happens this returns the unchanged counters rather than guess,
// so a repeated gap keeps re-triggering recovery instead of silently
// adopting a wrong state.
func (ua *UserAgent) GetDifference(ctx context.Context, from updater.Counters) (updater.Difference, error) {
	client := ua.activeOrHomeClient()
	if client == nil {
		return updater.Difference{}, merry.New("tgl: no active client to fetch updates.getDifference from")
	}

	type outcome struct {
		diff updater.Difference
		err  error
	}
	done := make(chan outcome, 1)

	ua.ExecuteQuery(ctx, client, "updates.getDifference",
		tl.UpdatesGetDifference{Pts: from.Pts, Date: from.Date, Qts: from.Qts}, query.OptionNormal,
		func(result tl.Object) {
			switch v := result.(type) {
			case tl.UpdatesDifferenceEmpty:
				done <- outcome{diff: updater.Difference{Counters: updater.Counters{Pts: from.Pts, Qts: from.Qts, Seq: v.Seq, Date: v.Date}}}
			case tl.UpdatesDifferenceTooLong:
				done <- outcome{diff: updater.Difference{Counters: updater.Counters{Pts: v.Pts, Qts: from.Qts, Seq: from.Seq, Date: from.Date}}}
			default:
				ua.log.Warn("updates.getDifference: full difference decoding is out of scope (got %T); consistency state held at previous value", result)
				done <- outcome{diff: updater.Difference{Counters: from}}
			}
		},
		func(code int32, message string) bool {
			done <- outcome{err: &tgerr.RPCError{Code: code, Message: message}}
			return true
		},
	)

	select {
	case o := <-done:
		return o.diff, o.err
	case <-ctx.Done():
		return updater.Difference{}, ctx.Err()
	}
}

// GetChannelDifference is left unimplemented: channels.getDifference's
// response carries the same Vector<Message> payload GetDifference's full
// variant does, and this package models no channel message schema to
// decode it into. internal/updater already treats a GetChannelDifference
// error as non-fatal (it logs and leaves that channel's pts where it
// was), so returning one here is the honest behavior rather than
// fabricating progress.
func (ua *UserAgent) GetChannelDifference(ctx context.Context, channelID int64, fromPts int32) (int32, []updater.Update, error) {
	return fromPts, nil, merry.New("tgl: channels.getDifference requires channel message decoding, out of this package's scope")
}

func (ua *UserAgent) GetState(ctx context.Context) (updater.Counters, error) {
	client := ua.activeOrHomeClient()
	if client == nil {
		return updater.Counters{}, merry.New("tgl: no active client to fetch updates.getState from")
	}

	type outcome struct {
		counters updater.Counters
		err      error
	}
	done := make(chan outcome, 1)

	ua.ExecuteQuery(ctx, client, "updates.getState", tl.UpdatesGetState{}, query.OptionNormal,
		func(result tl.Object) {
			st, ok := result.(tl.UpdatesState)
			if !ok {
				done <- outcome{err: merry.Errorf("tgl: updates.getState: unexpected result type %T", result)}
				return
			}
			done <- outcome{counters: updater.Counters{Pts: st.Pts, Qts: st.Qts, Seq: st.Seq, Date: st.Date}}
		},
		func(code int32, message string) bool {
			done <- outcome{err: &tgerr.RPCError{Code: code, Message: message}}
			return true
		},
	)

	select {
	case o := <-done:
		return o.counters, o.err
	case <-ctx.Done():
		return updater.Counters{}, ctx.Err()
	}
}

// Deliver fans a consistency-checked update out to the host Callback,
// per spec.md §6.3. The ~50-variant update_* schema itself stays
// undecoded (Payload), so every update surfaces through NewMessages
// rather than through one of Callback's more specific methods; a host
// that needs typing back out of Payload does so itself (spec.md's
// decoded-payload boundary, same one internal/updater documents).
func (ua *UserAgent) Deliver(u updater.Update) {
	if u.HasPts {
		ua.callback.PtsChanged(u.Pts)
	}
	if u.HasQts {
		ua.callback.QtsChanged(u.Qts)
	}
	if u.Date != 0 {
		ua.callback.DateChanged(u.Date)
	}
	if u.Payload != nil {
		ua.callback.NewMessages([]tl.Object{u.Payload})
	}
}

// Secrets exposes the unconfirmed-secret-message store, per spec.md §6.4:
// a secretchat.Chat delivering through this UserAgent persists its
// outbound ciphertext here before sending.
func (ua *UserAgent) Secrets() UnconfirmedSecretMessageStorage { return ua.secrets }

// OurID reports the authenticated user's id, or 0 before auth.signIn/
// auth.importAuthorization has completed.
func (ua *UserAgent) OurID() int64 {
	ua.mu.Lock()
	defer ua.mu.Unlock()
	return ua.ourID
}

// SetOurID records the authenticated user's id and notifies Callback,
// per spec.md §6.3's our_id notification.
func (ua *UserAgent) SetOurID(id int64) {
	ua.mu.Lock()
	ua.ourID = id
	ua.mu.Unlock()
	ua.callback.OurID(id)
}

// activeOrHomeClient prefers the active DC's client, falling back to the
// home DC's (the common case right after startup, before any 303 has
// ever moved activeDC away from homeDC).
func (ua *UserAgent) activeOrHomeClient() *dcclient.Client {
	ua.mu.Lock()
	defer ua.mu.Unlock()
	if c, ok := ua.clients[ua.activeDC]; ok && c != nil {
		return c
	}
	return ua.clients[ua.homeDC]
}

