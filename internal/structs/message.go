package structs

// MessageRef identifies a single message in a chat.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Zero reports whether the ref points at no message.
func (r MessageRef) Zero() bool {
	return r.MessageID == 0
}

// AuthType names a guard a user can be individually exempted from.
type AuthType string

const (
	AuthEdit  AuthType = "edit"
	AuthMedia AuthType = "media"
	AuthSlang AuthType = "slang"
)

func (a AuthType) Valid() bool {
	switch a {
	case AuthEdit, AuthMedia, AuthSlang:
		return true
	}
	return false
}
