package dcclient

// State is the per-DC handshake/authorization state machine of spec.md
// §4.2, named after mtproto_client::state in the original implementation.
type State int

const (
	StateInit State = iota
	StateReqPQSent
	StateReqDHSent
	StateClientDHSent
	StateAuthorized

	// *Temp variants run the identical handshake shape for a PFS temp key
	// once the permanent key already exists (spec.md §4.3).
	StateReqPQSentTemp
	StateReqDHSentTemp
	StateClientDHSentTemp
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateReqPQSent:
		return "reqpq_sent"
	case StateReqDHSent:
		return "reqdh_sent"
	case StateClientDHSent:
		return "client_dh_sent"
	case StateAuthorized:
		return "authorized"
	case StateReqPQSentTemp:
		return "reqpq_sent_temp"
	case StateReqDHSentTemp:
		return "reqdh_sent_temp"
	case StateClientDHSentTemp:
		return "client_dh_sent_temp"
	default:
		return "unknown"
	}
}

func (s State) isTemp() bool {
	switch s {
	case StateReqPQSentTemp, StateReqDHSentTemp, StateClientDHSentTemp:
		return true
	default:
		return false
	}
}
