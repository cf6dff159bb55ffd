// Package platform abstracts the chat platform behind a narrow client
// interface. The Telegram adapter is the only place raw API types and
// status strings are handled; everything above it works with the closed
// MemberStatus enum and MessageRef values.
package platform

import (
	"context"

	"github.com/guardifyhq/guardify/internal/structs"
)

type Client interface {
	// GetChatMember resolves one user's membership in a chat.
	GetChatMember(ctx context.Context, chatID, userID int64) (structs.ChatMember, error)
	// ChatAdmins lists the user IDs of the chat's current administrators.
	ChatAdmins(ctx context.Context, chatID int64) ([]int64, error)
	SendMessage(ctx context.Context, chatID int64, text string) (structs.MessageRef, error)
	ReplyMessage(ctx context.Context, chatID int64, replyTo int, text string) (structs.MessageRef, error)
	// DeleteMessage removes a message. Deleting a message that is already
	// gone is a no-op success.
	DeleteMessage(ctx context.Context, ref structs.MessageRef) error
	BanMember(ctx context.Context, chatID, userID int64) error
	// SelfID is the moderating bot's own user ID.
	SelfID() int64
}
