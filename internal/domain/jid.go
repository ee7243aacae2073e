package domain

import "strings"

// WhatsApp server suffixes.
const (
	UserServer  = "s.whatsapp.net"
	GroupServer = "g.us"
)

// JID identifies a WhatsApp user or group. The canonical text form is
// "user@server"; the device part never appears in it.
type JID struct {
	User   string
	Server string
	Device uint16
}

func (j JID) String() string {
	if j.User == "" {
		return j.Server
	}
	return j.User + "@" + j.Server
}

func (j JID) IsEmpty() bool {
	return j.User == "" && j.Server == ""
}

func (j JID) IsUser() bool {
	return j.Server == UserServer
}

func (j JID) IsGroup() bool {
	return j.Server == GroupServer
}

// PhoneNumber returns the bare number for user JIDs, "" otherwise.
func (j JID) PhoneNumber() string {
	if j.IsUser() {
		return j.User
	}
	return ""
}

// ParseJID parses the canonical "user@server" form. Both parts must be
// non-empty.
func ParseJID(s string) (JID, error) {
	user, server, ok := strings.Cut(s, "@")
	if !ok || user == "" || server == "" {
		return JID{}, Errorf(KindInvalidArgument, "invalid JID %q", s)
	}
	return JID{User: user, Server: server}, nil
}

// MustParseJID is ParseJID for literals; it panics on malformed input.
func MustParseJID(s string) JID {
	jid, err := ParseJID(s)
	if err != nil {
		panic(err)
	}
	return jid
}
