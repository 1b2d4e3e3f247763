package tl

// UpdatesGetState is the zero-argument RPC that seeds internal/updater's
// Counters at startup and backs its periodic drift poll, per spec.md
// §4.9.
type UpdatesGetState struct{}

func (UpdatesGetState) Constructor() uint32 { return CRCUpdatesGetState }
func (UpdatesGetState) Encode(e *Encoder)   { e.OutUInt32(CRCUpdatesGetState) }

// UpdatesState answers UpdatesGetState (and appears embedded in the full
// updates.difference/differenceSlice variants, which this package does
// not decode — see CRCUpdatesDifferenceEmpty's doc comment).
type UpdatesState struct {
	Pts         int32
	Qts         int32
	Date        int32
	Seq         int32
	UnreadCount int32
}

func (UpdatesState) Constructor() uint32 { return CRCUpdatesState }
func (s UpdatesState) Encode(e *Encoder) {
	e.OutUInt32(CRCUpdatesState)
	e.OutI32(s.Pts)
	e.OutI32(s.Qts)
	e.OutI32(s.Date)
	e.OutI32(s.Seq)
	e.OutI32(s.UnreadCount)
}

func decodeUpdatesState(d *Decoder) Object {
	v := UpdatesState{
		Pts:         d.FetchI32(),
		Qts:         d.FetchI32(),
		Date:        d.FetchI32(),
		Seq:         d.FetchI32(),
		UnreadCount: d.FetchI32(),
	}
	if d.Err() != nil {
		return nil
	}
	return v
}

// UpdatesGetDifference requests everything the server has past (pts,
// qts, date); pts_total_limit is never set (flags left at 0), matching
// the teacher's lack of any chat-list-size capping concern.
type UpdatesGetDifference struct {
	Pts  int32
	Date int32
	Qts  int32
}

func (UpdatesGetDifference) Constructor() uint32 { return CRCUpdatesGetDifference }
func (u UpdatesGetDifference) Encode(e *Encoder) {
	e.OutUInt32(CRCUpdatesGetDifference)
	e.OutI32(0) // flags: pts_total_limit absent
	e.OutI32(u.Pts)
	e.OutI32(u.Date)
	e.OutI32(u.Qts)
}

// UpdatesDifferenceEmpty means nothing happened since (pts, qts): only
// the server date/seq need adopting.
type UpdatesDifferenceEmpty struct {
	Date int32
	Seq  int32
}

func (UpdatesDifferenceEmpty) Constructor() uint32 { return CRCUpdatesDifferenceEmpty }
func (u UpdatesDifferenceEmpty) Encode(e *Encoder) {
	e.OutUInt32(CRCUpdatesDifferenceEmpty)
	e.OutI32(u.Date)
	e.OutI32(u.Seq)
}

func decodeUpdatesDifferenceEmpty(d *Decoder) Object {
	v := UpdatesDifferenceEmpty{Date: d.FetchI32(), Seq: d.FetchI32()}
	if d.Err() != nil {
		return nil
	}
	return v
}

// UpdatesDifferenceTooLong means the gap exceeds what the server will
// replay inline: the client must discard its local update log and
// resume from Pts directly rather than expect a message list.
type UpdatesDifferenceTooLong struct {
	Pts int32
}

func (UpdatesDifferenceTooLong) Constructor() uint32 { return CRCUpdatesDifferenceTooLong }
func (u UpdatesDifferenceTooLong) Encode(e *Encoder) {
	e.OutUInt32(CRCUpdatesDifferenceTooLong)
	e.OutI32(u.Pts)
}

func decodeUpdatesDifferenceTooLong(d *Decoder) Object {
	v := UpdatesDifferenceTooLong{Pts: d.FetchI32()}
	if d.Err() != nil {
		return nil
	}
	return v
}

func init() {
	register(CRCUpdatesState, decodeUpdatesState)
	register(CRCUpdatesDifferenceEmpty, decodeUpdatesDifferenceEmpty)
	register(CRCUpdatesDifferenceTooLong, decodeUpdatesDifferenceTooLong)
}
