package structs

// MemberStatus is the closed set of chat membership roles. Raw platform
// status strings are mapped to this enum once, at the platform adapter.
type MemberStatus int

const (
	StatusUnknown MemberStatus = iota
	StatusCreator
	StatusAdministrator
	StatusMember
	StatusRestricted
	StatusLeft
	StatusKicked
)

func (s MemberStatus) String() string {
	switch s {
	case StatusCreator:
		return "creator"
	case StatusAdministrator:
		return "administrator"
	case StatusMember:
		return "member"
	case StatusRestricted:
		return "restricted"
	case StatusLeft:
		return "left"
	case StatusKicked:
		return "kicked"
	default:
		return "unknown"
	}
}

// IsAdmin reports whether the role carries chat admin rights.
func (s MemberStatus) IsAdmin() bool {
	return s == StatusCreator || s == StatusAdministrator
}

// Absent reports whether the member is no longer part of the chat.
func (s MemberStatus) Absent() bool {
	return s == StatusLeft || s == StatusKicked || s == StatusUnknown
}

// ChatMember is a chat membership fact resolved through the platform client.
// CanSendMessages and CanDeleteMessages default to true when the platform
// does not report them for the role.
type ChatMember struct {
	UserID            int64
	Status            MemberStatus
	CanSendMessages   bool
	CanDeleteMessages bool
}
