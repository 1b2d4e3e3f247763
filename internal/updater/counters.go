package updater

// Counters is the process-wide consistency record of spec.md §4.9:
// (pts, qts, seq, date). It is treated as one atomic record — changed
// only through the Updater that owns it, under that Updater's mutex —
// rather than four
// independently-racing fields, per spec.md §6.1's "Global consistency
// counters" note.
type Counters struct {
	Pts  int32
	Qts  int32
	Seq  int32
	Date int32
}
