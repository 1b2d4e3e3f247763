package tl

import (
	"bytes"
	"compress/gzip"
	"io"

	"github.com/ansel1/merry/v2"
)

// Object is any decoded TL value: either one of the concrete types this
// package defines, or an Unparsed passthrough for constructors this
// package does not model (spec.md §1's "opaque decoded payloads").
type Object interface {
	// Constructor returns the TL constructor CRC this value encodes as.
	Constructor() uint32
	// Encode appends the constructor tag and body to e.
	Encode(e *Encoder)
}

// Unparsed is a TL value whose constructor this package does not decode
// further: the ~50-variant update_* family and all chat/user/message
// domain types, per spec.md's explicit scope line. Raw is the body bytes
// immediately following the constructor tag.
type Unparsed struct {
	Ctor uint32
	Raw  []byte
}

func (u Unparsed) Constructor() uint32 { return u.Ctor }
func (u Unparsed) Encode(e *Encoder) {
	e.OutUInt32(u.Ctor)
	e.OutBytes(u.Raw)
}

// DecodeFunc decodes the body of a TL object (constructor tag already
// consumed) from d.
type DecodeFunc func(d *Decoder) Object

// registry maps known constructors to decode functions, per spec.md §9's
// "table-driven decoder" note. Populated by init() in the sibling files
// that define each concrete type.
var registry = map[uint32]DecodeFunc{}

// register is called from package-level init()s; it panics on a duplicate
// constructor, which would indicate a mistake in this package, not in
// caller input.
func register(ctor uint32, fn DecodeFunc) {
	if _, dup := registry[ctor]; dup {
		panic("tl: duplicate constructor registration")
	}
	registry[ctor] = fn
}

// DecodeObject reads one constructor-tagged TL value from d. Container,
// rpc_result and gzip_packed are handled directly (they need recursive
// access to DecodeObject itself); everything else goes through the
// registry, falling back to Unparsed for constructors nobody registered.
//
// gzip_packed recursion is capped at depth 1: a gzip-wrapped payload that
// itself starts with gzip_packed is a protocol error per spec.md §4.6, not
// a format this function will unwrap further.
func DecodeObject(d *Decoder) Object {
	return decodeObject(d, 0)
}

func decodeObject(d *Decoder, gzipDepth int) Object {
	ctor := d.FetchUInt32()
	if d.Err() != nil {
		return nil
	}

	switch ctor {
	case CRCMsgContainer:
		n := d.FetchI32()
		if d.Err() != nil {
			return nil
		}
		items := make([]ContainerItem, 0, n)
		for i := int32(0); i < n; i++ {
			msgID := d.FetchI64()
			seqNo := d.FetchI32()
			length := d.FetchI32()
			if d.Err() != nil {
				return nil
			}
			// A container item with msg_len == 0 is ignored without
			// error, per spec.md §8 boundary behavior.
			if length == 0 {
				continue
			}
			if length < 0 {
				d.fail(merry.Errorf("tl: negative msg_container item length %d", length))
				return nil
			}
			if !d.need(int(length)) {
				return nil
			}
			// decode the item from exactly its declared bytes, so an
			// over-long body cannot run into the next item and trailing
			// padding inside the declared length is skipped
			sub := NewDecoder(d.buf[d.off : d.off+int(length)])
			inner := decodeObject(sub, gzipDepth)
			if sub.Err() != nil {
				d.fail(sub.Err())
				return nil
			}
			d.off += int(length)
			items = append(items, ContainerItem{MsgID: msgID, SeqNo: seqNo, Object: inner})
		}
		return MsgContainer{Items: items}

	case CRCRPCResult:
		reqMsgID := d.FetchI64()
		if d.Err() != nil {
			return nil
		}
		// An rpc_error is not itself gzip-wrapped in practice, but the
		// decode is still just a recursive Object() call.
		body := decodeObject(d, gzipDepth)
		if d.Err() != nil {
			return nil
		}
		return RPCResult{ReqMsgID: reqMsgID, Result: body}

	case CRCGzipPacked:
		if gzipDepth > 0 {
			d.fail(merry.Prepend(errNestedGzip, "tl"))
			return nil
		}
		packed := d.FetchString()
		if d.Err() != nil {
			return nil
		}
		zr, err := gzip.NewReader(bytes.NewReader(packed))
		if err != nil {
			d.fail(merry.Wrap(err))
			return nil
		}
		raw, err := io.ReadAll(zr)
		if err != nil {
			d.fail(merry.Wrap(err))
			return nil
		}
		inner := NewDecoder(raw)
		obj := decodeObject(inner, gzipDepth+1)
		if inner.Err() != nil {
			d.fail(inner.Err())
			return nil
		}
		return obj

	default:
		if fn, ok := registry[ctor]; ok {
			return fn(d)
		}
		// Unknown constructor: consume the rest of the buffer as this
		// object's raw body is the conservative, safe choice only when
		// this object is not itself nested inside something with a
		// declared length (the container case above trims any excess
		// itself via its own `length` field).
		raw := d.buf[d.off:]
		d.off = len(d.buf)
		return Unparsed{Ctor: ctor, Raw: raw}
	}
}

var errNestedGzip = merry.New("nested gzip_packed is a protocol error")

// ContainerItem is one (msg_id, seq_no, body) triple inside a msg_container.
type ContainerItem struct {
	MsgID  int64
	SeqNo  int32
	Object Object
}

// MsgContainer is spec.md §4.6's msg_container: a batch of independently
// addressed inner messages.
type MsgContainer struct {
	Items []ContainerItem
}

func (MsgContainer) Constructor() uint32 { return CRCMsgContainer }
func (m MsgContainer) Encode(e *Encoder) {
	e.OutUInt32(CRCMsgContainer)
	e.OutI32(int32(len(m.Items)))
	for _, it := range m.Items {
		e.OutI64(it.MsgID)
		e.OutI32(it.SeqNo)
		bodyOff := e.ReserveI32s(1)
		start := len(e.buf)
		it.Object.Encode(e)
		length := len(e.buf) - start
		_ = e.OutI32sAt(bodyOff, []int32{int32(length)})
	}
}

// RPCResult is spec.md §4.6's rpc_result(req_msg_id, body).
type RPCResult struct {
	ReqMsgID int64
	Result   Object
}

func (RPCResult) Constructor() uint32 { return CRCRPCResult }
func (r RPCResult) Encode(e *Encoder) {
	e.OutUInt32(CRCRPCResult)
	e.OutI64(r.ReqMsgID)
	r.Result.Encode(e)
}

// RPCError is spec.md's rpc_error(error_code, error_message).
type RPCError struct {
	ErrorCode int32
	Message   string
}

func (RPCError) Constructor() uint32 { return CRCRPCError }
func (r RPCError) Encode(e *Encoder) {
	e.OutUInt32(CRCRPCError)
	e.OutI32(r.ErrorCode)
	e.OutString([]byte(r.Message))
}

func decodeRPCError(d *Decoder) Object {
	code := d.FetchI32()
	msg := d.FetchString()
	if d.Err() != nil {
		return nil
	}
	return RPCError{ErrorCode: code, Message: string(msg)}
}

func init() { register(CRCRPCError, decodeRPCError) }
