// Package bot owns the Telegram update loop: it classifies each update
// (command, edited message, media, plain text, membership change) and routes
// it to the guard service or the matching command handler.
package bot

import (
	"context"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/guardifyhq/guardify/internal/config"
	"github.com/guardifyhq/guardify/internal/guard"
	"github.com/guardifyhq/guardify/internal/lang"
	"github.com/guardifyhq/guardify/internal/platform"
	"github.com/guardifyhq/guardify/internal/store"
	"github.com/guardifyhq/guardify/internal/structs"
)

type Bot struct {
	api      *tgbotapi.BotAPI
	client   platform.Client
	service  *guard.Service
	store    *store.Store
	langs    *lang.Store
	cfg      config.Config
	logger   *slog.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func New(tg *platform.Telegram, service *guard.Service, st *store.Store, langs *lang.Store, cfg config.Config, logger *slog.Logger) *Bot {
	return &Bot{
		api:      tg.API(),
		client:   tg,
		service:  service,
		store:    st,
		langs:    langs,
		cfg:      cfg,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

func (b *Bot) Start() {
	b.logger.Info("Authorized on account", "username", b.api.Self.UserName)
	b.logger.Info("Starting bot")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	for {
		select {
		case <-b.stopChan:
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.wg.Add(1)
			go b.handleUpdate(update)
		}
	}
}

func (b *Bot) Stop() {
	b.api.StopReceivingUpdates()
	close(b.stopChan)
	b.wg.Wait()
}

// handleUpdate runs one update as its own task so a slow store or platform
// call never stalls the receive loop. A panic takes down that one update,
// not the loop.
func (b *Bot) handleUpdate(update tgbotapi.Update) {
	defer b.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Update handler panicked", "panic", r)
		}
	}()
	b.dispatch(update)
}

func (b *Bot) dispatch(update tgbotapi.Update) {
	ctx := context.Background()

	if update.EditedMessage != nil {
		b.handleEdited(ctx, update.EditedMessage)
		return
	}
	if update.Message == nil {
		return
	}
	msg := update.Message

	if len(msg.NewChatMembers) > 0 {
		b.handleNewMembers(ctx, msg)
		return
	}
	if msg.LeftChatMember != nil && msg.LeftChatMember.ID == b.client.SelfID() {
		if err := b.store.RemoveActiveGroup(ctx, msg.Chat.ID); err != nil {
			b.logger.Warn("Failed to untrack group", "chatID", msg.Chat.ID, "error", err)
		}
		return
	}
	if msg.From == nil || msg.From.ID == b.client.SelfID() {
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	if !isGroup(msg.Chat) {
		return
	}
	if hasMedia(msg) {
		b.service.HandleMedia(ctx, eventFrom(msg))
		return
	}
	if msg.Text != "" {
		b.service.HandleText(ctx, eventFrom(msg))
	}
}

func (b *Bot) handleEdited(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.From.ID == b.client.SelfID() || !isGroup(msg.Chat) {
		return
	}
	b.service.HandleEdited(ctx, eventFrom(msg))
}

func (b *Bot) handleNewMembers(ctx context.Context, msg *tgbotapi.Message) {
	for _, member := range msg.NewChatMembers {
		if member.ID == b.client.SelfID() {
			if err := b.store.AddActiveGroup(ctx, msg.Chat.ID, msg.Chat.Title); err != nil {
				b.logger.Warn("Failed to track group", "chatID", msg.Chat.ID, "error", err)
			}
			continue
		}
		ev := guard.Event{
			Message:   structs.MessageRef{ChatID: msg.Chat.ID, MessageID: msg.MessageID},
			UserID:    member.ID,
			Username:  member.UserName,
			FirstName: member.FirstName,
		}
		if removed := b.service.HandleNewMember(ctx, msg.Chat.ID, ev); removed {
			b.logger.Info("Removed globally banned user on join", "chatID", msg.Chat.ID, "userID", member.ID)
		}
	}
}

func eventFrom(msg *tgbotapi.Message) guard.Event {
	ev := guard.Event{
		Message: structs.MessageRef{ChatID: msg.Chat.ID, MessageID: msg.MessageID},
		Text:    msg.Text,
	}
	if ev.Text == "" {
		ev.Text = msg.Caption
	}
	if msg.From != nil {
		ev.UserID = msg.From.ID
		ev.Username = msg.From.UserName
		ev.FirstName = msg.From.FirstName
	}
	return ev
}

func isGroup(chat *tgbotapi.Chat) bool {
	return chat != nil && (chat.IsGroup() || chat.IsSuperGroup())
}

func hasMedia(msg *tgbotapi.Message) bool {
	return len(msg.Photo) > 0 ||
		msg.Video != nil ||
		msg.Document != nil ||
		msg.Animation != nil ||
		msg.Sticker != nil ||
		msg.Audio != nil ||
		msg.Voice != nil ||
		msg.VideoNote != nil
}
