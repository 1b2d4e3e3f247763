package tgl

import "github.com/tplgy/tgl-go/internal/tl"

// ValueRequestKind enumerates the login-time host prompts spec.md §6.3's
// get_value(request) notification can carry.
type ValueRequestKind int

const (
	ValueRequestPhone ValueRequestKind = iota
	ValueRequestCode
	ValueRequestPassword
	ValueRequestName
)

// ValueRequest is one get_value(request) prompt; Respond is called by
// the host with the collected answer (or "" to abandon it).
type ValueRequest struct {
	Kind    ValueRequestKind
	Respond func(answer string)
}

// Callback is the engine -> host notification fan-out of spec.md §6.3.
// Every method is called from UserAgent's single cooperative loop
// goroutine; implementations must not block it.
type Callback interface {
	DCUpdated(dcID int)
	ActiveDCChanged(dcID int)
	OurID(id int64)

	PtsChanged(pts int32)
	QtsChanged(qts int32)
	DateChanged(date int32)

	ConnectionStatusChanged(dcID int, connected bool)

	NewMessages(updates []tl.Object)
	MessageIDUpdated(randomID, serverID int64, peer int64)
	MessageDeleted(msgID int64)
	MarkMessagesRead(outgoing bool, peer int64, maxIDOrDate int32)

	TypingStatusChanged(peer, actor int64, typing bool)
	StatusNotification(userID int64, online bool)
	AvatarUpdate(peer int64)
	ChatUpdateParticipants(chatID int64)
	SecretChatUpdate(chatID int64)
	UpdateNotificationSettings(peer int64)
	MessageMediaWebpageUpdated(msgID int64)

	GetValue(req ValueRequest)
}

// NopCallback implements Callback with every method a no-op, for tests
// and for hosts that only care about a handful of notifications (embed
// it and override what you need).
type NopCallback struct{}

func (NopCallback) DCUpdated(int)                                 {}
func (NopCallback) ActiveDCChanged(int)                            {}
func (NopCallback) OurID(int64)                                    {}
func (NopCallback) PtsChanged(int32)                                {}
func (NopCallback) QtsChanged(int32)                                {}
func (NopCallback) DateChanged(int32)                               {}
func (NopCallback) ConnectionStatusChanged(int, bool)               {}
func (NopCallback) NewMessages([]tl.Object)                         {}
func (NopCallback) MessageIDUpdated(int64, int64, int64)            {}
func (NopCallback) MessageDeleted(int64)                            {}
func (NopCallback) MarkMessagesRead(bool, int64, int32)             {}
func (NopCallback) TypingStatusChanged(int64, int64, bool)          {}
func (NopCallback) StatusNotification(int64, bool)                  {}
func (NopCallback) AvatarUpdate(int64)                              {}
func (NopCallback) ChatUpdateParticipants(int64)                    {}
func (NopCallback) SecretChatUpdate(int64)                          {}
func (NopCallback) UpdateNotificationSettings(int64)                {}
func (NopCallback) MessageMediaWebpageUpdated(int64)                {}
func (NopCallback) GetValue(ValueRequest)                           {}
