package platform

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/avast/retry-go"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/guardifyhq/guardify/internal/structs"
)

const sendAttempts = 3

// Telegram adapts the Bot API to the Client interface. Outbound sends go
// through a shared rate limiter so the bot itself never floods a chat.
type Telegram struct {
	api     *tgbotapi.BotAPI
	limiter *rate.Limiter
	logger  *slog.Logger
}

var _ Client = (*Telegram)(nil)

// NewTelegram wraps an authorized Bot API handle. sendRate is outbound
// messages per second; zero or negative means unthrottled.
func NewTelegram(api *tgbotapi.BotAPI, sendRate float64, logger *slog.Logger) *Telegram {
	var limiter *rate.Limiter
	if sendRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(sendRate), 1)
	} else {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return &Telegram{
		api:     api,
		limiter: limiter,
		logger:  logger,
	}
}

// API exposes the underlying handle for the update loop.
func (t *Telegram) API() *tgbotapi.BotAPI {
	return t.api
}

func (t *Telegram) SelfID() int64 {
	return t.api.Self.ID
}

func (t *Telegram) GetChatMember(_ context.Context, chatID, userID int64) (structs.ChatMember, error) {
	member, err := t.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: chatID,
			UserID: userID,
		},
	})
	if err != nil {
		return structs.ChatMember{}, fmt.Errorf("api.GetChatMember: %w", err)
	}
	return memberFromAPI(member), nil
}

func (t *Telegram) ChatAdmins(_ context.Context, chatID int64) ([]int64, error) {
	admins, err := t.api.GetChatAdministrators(tgbotapi.ChatAdministratorsConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
	})
	if err != nil {
		return nil, fmt.Errorf("api.GetChatAdministrators: %w", err)
	}
	ids := make([]int64, 0, len(admins))
	for _, admin := range admins {
		if admin.User != nil {
			ids = append(ids, admin.User.ID)
		}
	}
	return ids, nil
}

func (t *Telegram) SendMessage(ctx context.Context, chatID int64, text string) (structs.MessageRef, error) {
	return t.send(ctx, tgbotapi.NewMessage(chatID, text))
}

func (t *Telegram) ReplyMessage(ctx context.Context, chatID int64, replyTo int, text string) (structs.MessageRef, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyTo
	return t.send(ctx, msg)
}

func (t *Telegram) send(ctx context.Context, msg tgbotapi.MessageConfig) (structs.MessageRef, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return structs.MessageRef{}, fmt.Errorf("limiter.Wait: %w", err)
	}

	var sent tgbotapi.Message
	err := retry.Do(
		func() error {
			var err error
			sent, err = t.api.Send(msg)
			if err != nil {
				return fmt.Errorf("api.Send: %w", err)
			}
			return nil
		},
		retry.OnRetry(func(i uint, err error) {
			t.logger.Warn("Send failed, retrying", "attempt", i, "chatID", msg.ChatID, "error", err)
		}),
		retry.Attempts(sendAttempts),
		retry.Context(ctx),
	)
	if err != nil {
		return structs.MessageRef{}, fmt.Errorf("retry.Do: %w", err)
	}
	return structs.MessageRef{ChatID: sent.Chat.ID, MessageID: sent.MessageID}, nil
}

func (t *Telegram) DeleteMessage(_ context.Context, ref structs.MessageRef) error {
	_, err := t.api.Request(tgbotapi.NewDeleteMessage(ref.ChatID, ref.MessageID))
	if err != nil {
		if messageAlreadyGone(err) {
			return nil
		}
		return fmt.Errorf("api.Request: %w", err)
	}
	return nil
}

func (t *Telegram) BanMember(_ context.Context, chatID, userID int64) error {
	_, err := t.api.Request(tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{
			ChatID: chatID,
			UserID: userID,
		},
	})
	if err != nil {
		return fmt.Errorf("api.Request: %w", err)
	}
	return nil
}

// messageAlreadyGone classifies delete failures that mean the message no
// longer exists, which callers treat as success.
func messageAlreadyGone(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "message to delete not found") ||
		strings.Contains(msg, "message can't be deleted") ||
		strings.Contains(msg, "message_id_invalid") ||
		strings.Contains(msg, "message identifier is not specified")
}

// mapStatus converts a raw Bot API status string to the closed enum, once,
// at the boundary.
func mapStatus(status string) structs.MemberStatus {
	switch status {
	case "creator":
		return structs.StatusCreator
	case "administrator":
		return structs.StatusAdministrator
	case "member":
		return structs.StatusMember
	case "restricted":
		return structs.StatusRestricted
	case "left":
		return structs.StatusLeft
	case "kicked":
		return structs.StatusKicked
	default:
		return structs.StatusUnknown
	}
}

func memberFromAPI(m tgbotapi.ChatMember) structs.ChatMember {
	status := mapStatus(m.Status)

	cm := structs.ChatMember{Status: status}
	if m.User != nil {
		cm.UserID = m.User.ID
	}

	switch {
	case status.Absent():
		// Gone from the chat: no rights at all.
	case status == structs.StatusCreator:
		cm.CanSendMessages = true
		cm.CanDeleteMessages = true
	case status == structs.StatusAdministrator:
		cm.CanSendMessages = true
		cm.CanDeleteMessages = m.CanDeleteMessages
	case status == structs.StatusRestricted:
		cm.CanSendMessages = m.CanSendMessages
	default:
		// Plain member: can talk, cannot moderate.
		cm.CanSendMessages = true
	}
	return cm
}
