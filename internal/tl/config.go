package tl

import "github.com/ansel1/merry/v2"

// BoolTrue/BoolFalse are TL's boolean encoding: a dedicated constructor per
// value rather than a single boolean field.
type BoolTrue struct{}

func (BoolTrue) Constructor() uint32 { return CRCBoolTrue }
func (BoolTrue) Encode(e *Encoder)   { e.OutUInt32(CRCBoolTrue) }

type BoolFalse struct{}

func (BoolFalse) Constructor() uint32 { return CRCBoolFalse }
func (BoolFalse) Encode(e *Encoder)   { e.OutUInt32(CRCBoolFalse) }

// DecodeBool fetches a constructor-tagged boolean.
func (d *Decoder) DecodeBool() bool {
	ctor := d.FetchUInt32()
	if d.Err() != nil {
		return false
	}
	return ctor == CRCBoolTrue
}

func decodeBool(d *Decoder) Object {
	if d.Err() != nil {
		return nil
	}
	return BoolTrue{}
}

func decodeBoolFalse(d *Decoder) Object {
	if d.Err() != nil {
		return nil
	}
	return BoolFalse{}
}

// DCOption is one (dc_id, ip, port) entry learned from help.getConfig, per
// spec.md §6.5.
type DCOption struct {
	Ipv6      bool
	MediaOnly bool
	TCPOOnly  bool
	CDN       bool
	ID        int32
	IPAddress string
	Port      int32
}

func (DCOption) Constructor() uint32 { return CRCDCOption }
func (o DCOption) Encode(e *Encoder) {
	e.OutUInt32(CRCDCOption)
	var flags int32
	if o.Ipv6 {
		flags |= 1
	}
	if o.MediaOnly {
		flags |= 2
	}
	if o.TCPOOnly {
		flags |= 4
	}
	if o.CDN {
		flags |= 8
	}
	e.OutI32(flags)
	e.OutI32(o.ID)
	e.OutString([]byte(o.IPAddress))
	e.OutI32(o.Port)
}

func decodeDCOption(d *Decoder) Object {
	flags := d.FetchI32()
	v := DCOption{
		Ipv6:      flags&1 != 0,
		MediaOnly: flags&2 != 0,
		TCPOOnly:  flags&4 != 0,
		CDN:       flags&8 != 0,
	}
	v.ID = d.FetchI32()
	v.IPAddress = string(d.FetchString())
	v.Port = d.FetchI32()
	if d.Err() != nil {
		return nil
	}
	return v
}

// Config is help.getConfig's answer; only the fields the core dispatch
// loop needs (this_dc, dc_options) are modeled, everything else is kept as
// raw trailing bytes so a newer server schema doesn't break decoding.
type Config struct {
	ThisDC   int32
	DCOptions []DCOption
	Trailing []byte
}

func (Config) Constructor() uint32 { return CRCConfig }
func (c Config) Encode(e *Encoder) {
	e.OutUInt32(CRCConfig)
	e.OutI32(c.ThisDC)
	e.OutUInt32(CRCVector)
	e.OutI32(int32(len(c.DCOptions)))
	for _, o := range c.DCOptions {
		o.Encode(e)
	}
	e.OutBytes(c.Trailing)
}

// decodeConfig mirrors Config.Encode above: this_dc, then a dc_options
// vector, then whatever trailing fields the server layer sent that this
// package doesn't model individually (date, expires, test_mode, chat/call
// size limits, ...). The teacher's own client (mtproto.go Connect()) only
// ever read cfg.ThisDc and cfg.DcOptions out of the full config object, so
// only those two are given real types; everything after is kept as an
// opaque trailing blob rather than enumerated field by field.
func decodeConfig(d *Decoder) Object {
	v := Config{ThisDC: d.FetchI32()}
	n := d.FetchUInt32()
	if d.Err() != nil {
		return nil
	}
	if n != CRCVector {
		d.fail(merry.Errorf("tl: config: expected dc_options vector, got 0x%08x", n))
		return nil
	}
	count := d.FetchI32()
	if d.Err() != nil || count < 0 {
		return nil
	}
	v.DCOptions = make([]DCOption, 0, count)
	for i := int32(0); i < count; i++ {
		ctor := d.FetchUInt32()
		if d.Err() != nil {
			return nil
		}
		if ctor != CRCDCOption {
			d.fail(merry.Errorf("tl: config: expected dcOption, got 0x%08x", ctor))
			return nil
		}
		opt, ok := decodeDCOption(d).(DCOption)
		if !ok || d.Err() != nil {
			return nil
		}
		v.DCOptions = append(v.DCOptions, opt)
	}
	v.Trailing = d.buf[d.off:]
	d.off = len(d.buf)
	return v
}

func init() {
	register(CRCBoolTrue, decodeBool)
	register(CRCBoolFalse, decodeBoolFalse)
	register(CRCDCOption, decodeDCOption)
	register(CRCConfig, decodeConfig)
}

// HelpGetConfig is the zero-argument RPC used after initConnection.
type HelpGetConfig struct{}

func (HelpGetConfig) Constructor() uint32 { return CRCHelpGetConfig }
func (HelpGetConfig) Encode(e *Encoder)   { e.OutUInt32(CRCHelpGetConfig) }

// InitConnection wraps the first RPC of a fresh connection with client
// metadata, per spec.md §6.6.
type InitConnection struct {
	APIID          int32
	DeviceModel    string
	SystemVersion  string
	AppVersion     string
	SystemLangCode string
	LangPack       string
	LangCode       string
	Query          Object
}

func (InitConnection) Constructor() uint32 { return CRCInitConnection }
func (c InitConnection) Encode(e *Encoder) {
	e.OutUInt32(CRCInitConnection)
	e.OutI32(c.APIID)
	e.OutString([]byte(c.DeviceModel))
	e.OutString([]byte(c.SystemVersion))
	e.OutString([]byte(c.AppVersion))
	e.OutString([]byte(c.SystemLangCode))
	e.OutString([]byte(c.LangPack))
	e.OutString([]byte(c.LangCode))
	c.Query.Encode(e)
}

// InvokeWithLayer is the outermost envelope every first connection RPC is
// wrapped in.
type InvokeWithLayer struct {
	Layer int32
	Query Object
}

func (InvokeWithLayer) Constructor() uint32 { return CRCInvokeWithLayer }
func (i InvokeWithLayer) Encode(e *Encoder) {
	e.OutUInt32(CRCInvokeWithLayer)
	e.OutI32(i.Layer)
	i.Query.Encode(e)
}

// AuthExportAuthorization / AuthImportAuthorization / AuthExportedAuthorization
// implement cross-DC auth transfer, restored from original_source per
// DESIGN.md (dropped by spec.md's distillation, kept in scope by §1's PFS/
// temp-key-binding carve-out).
type AuthExportAuthorization struct {
	DCID int32
}

func (AuthExportAuthorization) Constructor() uint32 { return CRCAuthExportAuthorization }
func (a AuthExportAuthorization) Encode(e *Encoder) {
	e.OutUInt32(CRCAuthExportAuthorization)
	e.OutI32(a.DCID)
}

type AuthExportedAuthorization struct {
	ID    int32
	Bytes []byte
}

func (AuthExportedAuthorization) Constructor() uint32 { return CRCAuthExportedAuthorization }
func (a AuthExportedAuthorization) Encode(e *Encoder) {
	e.OutUInt32(CRCAuthExportedAuthorization)
	e.OutI32(a.ID)
	e.OutString(a.Bytes)
}

func decodeAuthExportedAuthorization(d *Decoder) Object {
	v := AuthExportedAuthorization{ID: d.FetchI32(), Bytes: d.FetchString()}
	if d.Err() != nil {
		return nil
	}
	return v
}

type AuthImportAuthorization struct {
	ID    int32
	Bytes []byte
}

func (AuthImportAuthorization) Constructor() uint32 { return CRCAuthImportAuthorization }
func (a AuthImportAuthorization) Encode(e *Encoder) {
	e.OutUInt32(CRCAuthImportAuthorization)
	e.OutI32(a.ID)
	e.OutString(a.Bytes)
}

func init() {
	register(CRCAuthExportedAuthorization, decodeAuthExportedAuthorization)
}
