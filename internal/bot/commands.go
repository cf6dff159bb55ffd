package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/guardifyhq/guardify/internal/structs"
)

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := strings.ToLower(msg.Command())
	args := strings.Fields(msg.CommandArguments())

	switch cmd {
	case "start", "help":
		b.cmdStart(ctx, msg)
		return
	case "gban":
		b.cmdGban(ctx, msg, args)
		return
	case "ungban":
		b.cmdUngban(ctx, msg, args)
		return
	case "stats":
		b.cmdStats(ctx, msg)
		return
	}

	// Everything below operates on one group's settings.
	if !isGroup(msg.Chat) {
		b.reply(ctx, msg, "group_only")
		return
	}
	if !b.service.IsAdmin(ctx, msg.Chat.ID, msg.From.ID) {
		b.reply(ctx, msg, "admin_only")
		return
	}

	switch cmd {
	case "setdelay", "edelay":
		b.cmdSetDelay(ctx, msg, args, structs.AuthEdit)
	case "getdelay":
		b.cmdGetDelay(ctx, msg, structs.AuthEdit)
	case "setmdelay", "mdelay":
		b.cmdSetDelay(ctx, msg, args, structs.AuthMedia)
	case "getmdelay":
		b.cmdGetDelay(ctx, msg, structs.AuthMedia)
	case "eauth":
		b.cmdAuth(ctx, msg, args, structs.AuthEdit, true)
	case "eunauth":
		b.cmdAuth(ctx, msg, args, structs.AuthEdit, false)
	case "eauthlist":
		b.cmdAuthList(ctx, msg, structs.AuthEdit)
	case "mauth":
		b.cmdAuth(ctx, msg, args, structs.AuthMedia, true)
	case "munauth":
		b.cmdAuth(ctx, msg, args, structs.AuthMedia, false)
	case "mauthlist":
		b.cmdAuthList(ctx, msg, structs.AuthMedia)
	case "sauth":
		b.cmdAuth(ctx, msg, args, structs.AuthSlang, true)
	case "sunauth":
		b.cmdAuth(ctx, msg, args, structs.AuthSlang, false)
	case "sauthlist":
		b.cmdAuthList(ctx, msg, structs.AuthSlang)
	case "slang":
		b.cmdToggleSlang(ctx, msg, args)
	case "pretender":
		b.cmdTogglePretender(ctx, msg, args)
	case "setlang":
		b.cmdSetLang(ctx, msg, args)
	case "reload":
		b.cmdReload(ctx, msg)
	}
}

func (b *Bot) cmdStart(ctx context.Context, msg *tgbotapi.Message) {
	b.replyArgs(ctx, msg, "start", map[string]string{"support": b.cfg.SupportChatURL})
}

func (b *Bot) cmdSetDelay(ctx context.Context, msg *tgbotapi.Message, args []string, authType structs.AuthType) {
	if len(args) != 1 {
		b.reply(ctx, msg, "delay_usage")
		return
	}
	minutes, err := strconv.Atoi(args[0])
	if err != nil || minutes < 0 {
		b.reply(ctx, msg, "delay_usage")
		return
	}

	chatID := msg.Chat.ID
	action := "setdelay"
	if authType == structs.AuthMedia {
		action = "setmdelay"
		b.service.UpdateMediaDelay(ctx, chatID, minutes)
	} else {
		b.service.UpdateEditDelay(ctx, chatID, minutes)
	}
	b.service.LogAdminAction(ctx, chatID, msg.From.ID, fmt.Sprintf("%s %d", action, minutes), 0)

	if minutes == 0 {
		b.reply(ctx, msg, "delay_disabled")
		return
	}
	b.replyArgs(ctx, msg, "delay_set", map[string]string{"delay": strconv.Itoa(minutes)})
}

func (b *Bot) cmdGetDelay(ctx context.Context, msg *tgbotapi.Message, authType structs.AuthType) {
	var minutes int
	if authType == structs.AuthMedia {
		minutes = b.service.MediaDelay(ctx, msg.Chat.ID)
	} else {
		minutes = b.service.EditDelay(ctx, msg.Chat.ID)
	}
	if minutes <= 0 {
		b.reply(ctx, msg, "delay_disabled")
		return
	}
	b.replyArgs(ctx, msg, "delay_current", map[string]string{"delay": strconv.Itoa(minutes)})
}

func (b *Bot) cmdAuth(ctx context.Context, msg *tgbotapi.Message, args []string, authType structs.AuthType, grant bool) {
	target, ok := targetUser(msg, args)
	if !ok {
		b.reply(ctx, msg, "target_usage")
		return
	}

	chatID := msg.Chat.ID
	if grant {
		b.service.Authorize(ctx, chatID, target, authType)
	} else {
		b.service.Unauthorize(ctx, chatID, target, authType)
	}

	verb := "unauth"
	key := "auth_revoked"
	if grant {
		verb = "auth"
		key = "auth_granted"
	}
	b.service.LogAdminAction(ctx, chatID, msg.From.ID, fmt.Sprintf("%s:%s", authType, verb), target)
	b.replyArgs(ctx, msg, key, map[string]string{"user": strconv.FormatInt(target, 10)})
}

func (b *Bot) cmdAuthList(ctx context.Context, msg *tgbotapi.Message, authType structs.AuthType) {
	ids, err := b.service.AuthList(ctx, msg.Chat.ID, authType)
	if err != nil {
		b.logger.Warn("Failed to list authorizations", "chatID", msg.Chat.ID, "error", err)
		b.reply(ctx, msg, "store_unavailable")
		return
	}
	if len(ids) == 0 {
		b.reply(ctx, msg, "authlist_empty")
		return
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	b.replyArgs(ctx, msg, "authlist", map[string]string{"users": strings.Join(parts, ", ")})
}

func (b *Bot) cmdToggleSlang(ctx context.Context, msg *tgbotapi.Message, args []string) {
	enabled, ok := parseToggle(args)
	if !ok {
		b.reply(ctx, msg, "toggle_usage")
		return
	}
	b.service.UpdateSlangEnabled(ctx, msg.Chat.ID, enabled)
	b.service.LogAdminAction(ctx, msg.Chat.ID, msg.From.ID, fmt.Sprintf("slang %v", enabled), 0)
	if enabled {
		b.reply(ctx, msg, "slang_on")
		return
	}
	b.reply(ctx, msg, "slang_off")
}

func (b *Bot) cmdTogglePretender(ctx context.Context, msg *tgbotapi.Message, args []string) {
	// Identity surveillance is the owner's call, not every admin's.
	if !b.service.IsCreator(ctx, msg.Chat.ID, msg.From.ID) {
		b.reply(ctx, msg, "creator_only")
		return
	}
	enabled, ok := parseToggle(args)
	if !ok {
		b.reply(ctx, msg, "toggle_usage")
		return
	}
	b.service.UpdatePretenderEnabled(ctx, msg.Chat.ID, enabled)
	b.service.LogAdminAction(ctx, msg.Chat.ID, msg.From.ID, fmt.Sprintf("pretender %v", enabled), 0)
	if enabled {
		b.reply(ctx, msg, "pretender_on")
		return
	}
	b.reply(ctx, msg, "pretender_off")
}

func (b *Bot) cmdSetLang(ctx context.Context, msg *tgbotapi.Message, args []string) {
	if len(args) != 1 || !b.langs.Has(args[0]) {
		b.reply(ctx, msg, "lang_usage")
		return
	}
	b.service.UpdateLanguage(ctx, msg.Chat.ID, args[0])
	b.service.LogAdminAction(ctx, msg.Chat.ID, msg.From.ID, "setlang "+args[0], 0)
	b.reply(ctx, msg, "lang_set")
}

func (b *Bot) cmdReload(ctx context.Context, msg *tgbotapi.Message) {
	if _, err := b.service.ReloadAdmins(ctx, msg.Chat.ID); err != nil {
		b.logger.Warn("Failed to reload admins", "chatID", msg.Chat.ID, "error", err)
		b.reply(ctx, msg, "reload_failed")
		return
	}
	b.reply(ctx, msg, "reload_done")
}

func (b *Bot) cmdGban(ctx context.Context, msg *tgbotapi.Message, args []string) {
	if !b.cfg.IsSudo(msg.From.ID) {
		b.reply(ctx, msg, "sudo_only")
		return
	}
	target, ok := targetUser(msg, args)
	if !ok {
		b.reply(ctx, msg, "target_usage")
		return
	}
	args = trimTargetArg(msg, args)

	// Optional duration in minutes; anything after it is the reason.
	duration := 0
	reason := ""
	if len(args) > 0 {
		if d, err := strconv.Atoi(args[0]); err == nil && d > 0 {
			duration = d
			args = args[1:]
		}
	}
	if len(args) > 0 {
		reason = strings.Join(args, " ")
	}

	b.service.AddGban(ctx, target, reason, duration)
	b.service.LogAdminAction(ctx, msg.Chat.ID, msg.From.ID, "gban", target)
	b.notifyLoggerChat(ctx, fmt.Sprintf("gban: user %d by %d, duration %dm, reason: %s", target, msg.From.ID, duration, reason))
	b.replyArgs(ctx, msg, "gban_added", map[string]string{"user": strconv.FormatInt(target, 10)})
}

func (b *Bot) cmdUngban(ctx context.Context, msg *tgbotapi.Message, args []string) {
	if !b.cfg.IsSudo(msg.From.ID) {
		b.reply(ctx, msg, "sudo_only")
		return
	}
	target, ok := targetUser(msg, args)
	if !ok {
		b.reply(ctx, msg, "target_usage")
		return
	}
	b.service.RemoveGban(ctx, target)
	b.service.LogAdminAction(ctx, msg.Chat.ID, msg.From.ID, "ungban", target)
	b.notifyLoggerChat(ctx, fmt.Sprintf("ungban: user %d by %d", target, msg.From.ID))
	b.replyArgs(ctx, msg, "gban_removed", map[string]string{"user": strconv.FormatInt(target, 10)})
}

func (b *Bot) cmdStats(ctx context.Context, msg *tgbotapi.Message) {
	if !b.cfg.IsSudo(msg.From.ID) {
		b.reply(ctx, msg, "sudo_only")
		return
	}
	stats, err := b.store.Stats(ctx)
	if err != nil {
		b.logger.Warn("Failed to read stats", "error", err)
		b.reply(ctx, msg, "store_unavailable")
		return
	}
	b.replyArgs(ctx, msg, "stats", map[string]string{
		"groups": strconv.FormatInt(stats.Groups, 10),
		"users":  strconv.FormatInt(stats.Users, 10),
	})
}

// targetUser resolves the user a moderation command acts on: the author of
// the replied-to message, or a numeric ID as the first argument.
func targetUser(msg *tgbotapi.Message, args []string) (int64, bool) {
	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil {
		return msg.ReplyToMessage.From.ID, true
	}
	if len(args) > 0 {
		if id, err := strconv.ParseInt(args[0], 10, 64); err == nil && id > 0 {
			return id, true
		}
	}
	return 0, false
}

// trimTargetArg drops the leading ID argument when the target did not come
// from a reply.
func trimTargetArg(msg *tgbotapi.Message, args []string) []string {
	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil {
		return args
	}
	if len(args) > 0 {
		return args[1:]
	}
	return args
}

func parseToggle(args []string) (enabled, ok bool) {
	if len(args) != 1 {
		return false, false
	}
	switch strings.ToLower(args[0]) {
	case "on", "yes", "true", "1":
		return true, true
	case "off", "no", "false", "0":
		return false, true
	}
	return false, false
}

// notifyLoggerChat mirrors global moderation actions to the operator's log
// chat when one is configured.
func (b *Bot) notifyLoggerChat(ctx context.Context, text string) {
	if b.cfg.LoggerChatID == 0 {
		return
	}
	if _, err := b.client.SendMessage(ctx, b.cfg.LoggerChatID, text); err != nil {
		b.logger.Warn("Failed to notify logger chat", "error", err)
	}
}

func (b *Bot) reply(ctx context.Context, msg *tgbotapi.Message, key string) {
	b.replyArgs(ctx, msg, key, nil)
}

func (b *Bot) replyArgs(ctx context.Context, msg *tgbotapi.Message, key string, args map[string]string) {
	text := b.langs.Get(key, b.service.Language(ctx, msg.Chat.ID), args)
	if _, err := b.client.ReplyMessage(ctx, msg.Chat.ID, msg.MessageID, text); err != nil {
		b.logger.Warn("Failed to send command reply", "chatID", msg.Chat.ID, "command", msg.Command(), "error", err)
	}
}
