package guard

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/guardifyhq/guardify/internal/cache"
	"github.com/guardifyhq/guardify/internal/consts"
	"github.com/guardifyhq/guardify/internal/lang"
	"github.com/guardifyhq/guardify/internal/platform"
	"github.com/guardifyhq/guardify/internal/pretender"
	"github.com/guardifyhq/guardify/internal/slang"
	"github.com/guardifyhq/guardify/internal/structs"
)

// Store is the durable persistence the guard service needs. The redis-backed
// implementation lives in internal/store.
type Store interface {
	GetEditDelay(ctx context.Context, chatID int64) (int, error)
	SetEditDelay(ctx context.Context, chatID int64, minutes int) error
	GetMediaDelay(ctx context.Context, chatID int64) (int, error)
	SetMediaDelay(ctx context.Context, chatID int64, minutes int) error
	GetSlangEnabled(ctx context.Context, chatID int64) (bool, error)
	SetSlangEnabled(ctx context.Context, chatID int64, enabled bool) error
	GetPretenderEnabled(ctx context.Context, chatID int64) (bool, error)
	SetPretenderEnabled(ctx context.Context, chatID int64, enabled bool) error
	GetGroupLanguage(ctx context.Context, chatID int64) (string, error)
	SetGroupLanguage(ctx context.Context, chatID int64, langCode string) error

	IsAuthorized(ctx context.Context, chatID, userID int64, authType structs.AuthType) (bool, error)
	AddAuth(ctx context.Context, chatID, userID int64, authType structs.AuthType) error
	RemoveAuth(ctx context.Context, chatID, userID int64, authType structs.AuthType) error
	ListAuth(ctx context.Context, chatID int64, authType structs.AuthType) ([]int64, error)

	IsGbanned(ctx context.Context, userID int64) (bool, error)
	AddGban(ctx context.Context, userID int64, reason string, durationMinutes int) error
	RemoveGban(ctx context.Context, userID int64) error

	AddKnownUser(ctx context.Context, userID int64) error
	LogAdminAction(ctx context.Context, chatID, adminID int64, action string, targetUser int64) error
}

// Event is an inbound guarded event as seen by the policy layer.
type Event struct {
	Message   structs.MessageRef
	UserID    int64
	FirstName string
	Username  string
	Text      string
}

// Mention is the user-facing handle used in warning templates.
func (e Event) Mention() string {
	if e.Username != "" {
		return "@" + e.Username
	}
	return e.FirstName
}

// Service applies per-chat moderation policy: it resolves configuration and
// authorization cache-first with store fallback, decides whether to warn,
// and hands delayed deletions to the scheduler. Store and platform failures
// are absorbed here; the event pipeline never fails because of them.
type Service struct {
	cache     *cache.Manager
	store     Store
	client    platform.Client
	tracker   *Tracker
	scheduler *Scheduler
	lang      *lang.Store
	slang     *slang.List
	pretender *pretender.Tracker

	defaultLang string
	logger      *slog.Logger
}

type ServiceDeps struct {
	Cache       *cache.Manager
	Store       Store
	Client      platform.Client
	Tracker     *Tracker
	Scheduler   *Scheduler
	Lang        *lang.Store
	Slang       *slang.List
	Pretender   *pretender.Tracker
	DefaultLang string
	Logger      *slog.Logger
}

func NewService(deps ServiceDeps) *Service {
	if deps.DefaultLang == "" {
		deps.DefaultLang = "en"
	}
	return &Service{
		cache:       deps.Cache,
		store:       deps.Store,
		client:      deps.Client,
		tracker:     deps.Tracker,
		scheduler:   deps.Scheduler,
		lang:        deps.Lang,
		slang:       deps.Slang,
		pretender:   deps.Pretender,
		defaultLang: deps.DefaultLang,
		logger:      deps.Logger,
	}
}

// AttachScheduler wires the delayed-action scheduler in after construction.
// The scheduler rechecks exemption through the service, so the two are
// built in sequence: service, then scheduler with the service as its
// Authorizer, then this call.
func (s *Service) AttachScheduler(sched *Scheduler) {
	s.scheduler = sched
}

// ---- configuration reads (cache first, store on miss, write-back) ----

func (s *Service) intSetting(ctx context.Context, chatID int64, name string,
	load func(context.Context, int64) (int, error)) int {
	if v, ok := s.cache.GetSetting(chatID, name); ok {
		if d, ok := v.(int); ok {
			return d
		}
	}
	d, err := load(ctx, chatID)
	if err != nil {
		// Store unreadable: the guard is treated as disabled for this event.
		s.logger.Warn("Settings read failed", "chatID", chatID, "setting", name, "error", err)
		return 0
	}
	s.cache.SetSetting(chatID, name, d)
	return d
}

func (s *Service) boolSetting(ctx context.Context, chatID int64, name string,
	load func(context.Context, int64) (bool, error)) bool {
	if v, ok := s.cache.GetSetting(chatID, name); ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	b, err := load(ctx, chatID)
	if err != nil {
		s.logger.Warn("Settings read failed", "chatID", chatID, "setting", name, "error", err)
		return false
	}
	s.cache.SetSetting(chatID, name, b)
	return b
}

// EditDelay is the edit-guard delay in minutes, zero when the guard is off.
func (s *Service) EditDelay(ctx context.Context, chatID int64) int {
	return s.intSetting(ctx, chatID, consts.SettingEditDelay, s.store.GetEditDelay)
}

func (s *Service) MediaDelay(ctx context.Context, chatID int64) int {
	return s.intSetting(ctx, chatID, consts.SettingMediaDelay, s.store.GetMediaDelay)
}

func (s *Service) SlangEnabled(ctx context.Context, chatID int64) bool {
	return s.boolSetting(ctx, chatID, consts.SettingSlang, s.store.GetSlangEnabled)
}

func (s *Service) PretenderEnabled(ctx context.Context, chatID int64) bool {
	return s.boolSetting(ctx, chatID, consts.SettingPretender, s.store.GetPretenderEnabled)
}

// Language resolves the chat's language code, defaulting when unset or
// unreadable.
func (s *Service) Language(ctx context.Context, chatID int64) string {
	if v, ok := s.cache.GetSetting(chatID, consts.SettingLanguage); ok {
		if code, ok := v.(string); ok && code != "" {
			return code
		}
	}
	code, err := s.store.GetGroupLanguage(ctx, chatID)
	if err != nil {
		s.logger.Warn("Language read failed", "chatID", chatID, "error", err)
		return s.defaultLang
	}
	if code == "" {
		code = s.defaultLang
	}
	s.cache.SetSetting(chatID, consts.SettingLanguage, code)
	return code
}

// ---- write-through updates used by the command layer ----
//
// The cache is updated unconditionally so a read within the same request
// observes the new value; a store failure is logged and isolated.

func (s *Service) UpdateEditDelay(ctx context.Context, chatID int64, minutes int) {
	s.cache.SetSetting(chatID, consts.SettingEditDelay, minutes)
	if err := s.store.SetEditDelay(ctx, chatID, minutes); err != nil {
		s.logger.Error("Failed to persist edit delay", "chatID", chatID, "error", err)
	}
}

func (s *Service) UpdateMediaDelay(ctx context.Context, chatID int64, minutes int) {
	s.cache.SetSetting(chatID, consts.SettingMediaDelay, minutes)
	if err := s.store.SetMediaDelay(ctx, chatID, minutes); err != nil {
		s.logger.Error("Failed to persist media delay", "chatID", chatID, "error", err)
	}
}

func (s *Service) UpdateSlangEnabled(ctx context.Context, chatID int64, enabled bool) {
	s.cache.SetSetting(chatID, consts.SettingSlang, enabled)
	if err := s.store.SetSlangEnabled(ctx, chatID, enabled); err != nil {
		s.logger.Error("Failed to persist slang toggle", "chatID", chatID, "error", err)
	}
}

func (s *Service) UpdatePretenderEnabled(ctx context.Context, chatID int64, enabled bool) {
	s.cache.SetSetting(chatID, consts.SettingPretender, enabled)
	if err := s.store.SetPretenderEnabled(ctx, chatID, enabled); err != nil {
		s.logger.Error("Failed to persist pretender toggle", "chatID", chatID, "error", err)
	}
}

func (s *Service) UpdateLanguage(ctx context.Context, chatID int64, code string) {
	s.cache.SetSetting(chatID, consts.SettingLanguage, code)
	if err := s.store.SetGroupLanguage(ctx, chatID, code); err != nil {
		s.logger.Error("Failed to persist language", "chatID", chatID, "error", err)
	}
}

func (s *Service) Authorize(ctx context.Context, chatID, userID int64, authType structs.AuthType) {
	s.cache.SetAuth(chatID, userID, authType, true)
	if err := s.store.AddAuth(ctx, chatID, userID, authType); err != nil {
		s.logger.Error("Failed to persist authorization", "chatID", chatID, "userID", userID, "error", err)
	}
}

func (s *Service) Unauthorize(ctx context.Context, chatID, userID int64, authType structs.AuthType) {
	s.cache.SetAuth(chatID, userID, authType, false)
	if err := s.store.RemoveAuth(ctx, chatID, userID, authType); err != nil {
		s.logger.Error("Failed to persist deauthorization", "chatID", chatID, "userID", userID, "error", err)
	}
}

func (s *Service) AddGban(ctx context.Context, userID int64, reason string, durationMinutes int) {
	s.cache.SetGban(userID, true)
	if err := s.store.AddGban(ctx, userID, reason, durationMinutes); err != nil {
		s.logger.Error("Failed to persist gban", "userID", userID, "error", err)
	}
}

func (s *Service) RemoveGban(ctx context.Context, userID int64) {
	s.cache.SetGban(userID, false)
	if err := s.store.RemoveGban(ctx, userID); err != nil {
		s.logger.Error("Failed to persist ungban", "userID", userID, "error", err)
	}
}

// ---- admin and authorization resolution ----

func (s *Service) adminList(ctx context.Context, chatID int64) ([]int64, error) {
	if admins, ok := s.cache.GetAdmins(chatID); ok {
		return admins, nil
	}
	admins, err := s.client.ChatAdmins(ctx, chatID)
	if err != nil {
		return nil, err
	}
	s.cache.SetAdmins(chatID, admins)
	return admins, nil
}

// ReloadAdmins drops the cached admin list and refetches it.
func (s *Service) ReloadAdmins(ctx context.Context, chatID int64) ([]int64, error) {
	s.cache.ClearAdmins(chatID)
	return s.adminList(ctx, chatID)
}

// IsAdmin reports whether the user currently administers the chat, failing
// closed when the platform cannot be reached.
func (s *Service) IsAdmin(ctx context.Context, chatID, userID int64) bool {
	admins, err := s.adminList(ctx, chatID)
	if err != nil {
		s.logger.Warn("Admin list unavailable", "chatID", chatID, "error", err)
		return false
	}
	for _, id := range admins {
		if id == userID {
			return true
		}
	}
	return false
}

// IsCreator reports whether the user owns the chat.
func (s *Service) IsCreator(ctx context.Context, chatID, userID int64) bool {
	member, err := s.client.GetChatMember(ctx, chatID, userID)
	if err != nil {
		s.logger.Warn("Member lookup failed", "chatID", chatID, "userID", userID, "error", err)
		return false
	}
	return member.Status == structs.StatusCreator
}

// IsExempt reports whether the user is an authorized admin for the guard
// type, resolving the admin list and authorization flag cache-first with
// store fallback. It re-reads current state every call so the scheduler
// sees grants made after warn time.
func (s *Service) IsExempt(ctx context.Context, chatID, userID int64, authType structs.AuthType) (bool, error) {
	admins, err := s.adminList(ctx, chatID)
	if err != nil {
		return false, err
	}
	isAdmin := false
	for _, id := range admins {
		if id == userID {
			isAdmin = true
			break
		}
	}
	if !isAdmin {
		return false, nil
	}

	if v, ok := s.cache.GetAuth(chatID, userID, authType); ok {
		return v, nil
	}
	v, err := s.store.IsAuthorized(ctx, chatID, userID, authType)
	if err != nil {
		return false, err
	}
	s.cache.SetAuth(chatID, userID, authType, v)
	return v, nil
}

// IsGbanned resolves the global-ban flag cache-first. An absent cache entry
// always consults the store; a store failure reads as not banned.
func (s *Service) IsGbanned(ctx context.Context, userID int64) bool {
	if v, ok := s.cache.GetGban(userID); ok {
		return v
	}
	v, err := s.store.IsGbanned(ctx, userID)
	if err != nil {
		s.logger.Warn("Gban lookup failed", "userID", userID, "error", err)
		return false
	}
	s.cache.SetGban(userID, v)
	return v
}

// ---- event handlers ----

// HandleEdited applies the edit guard to an edited message.
func (s *Service) HandleEdited(ctx context.Context, ev Event) {
	chatID := ev.Message.ChatID
	delay := s.EditDelay(ctx, chatID)
	if delay <= 0 {
		return
	}
	if s.exemptAtWarnTime(ctx, chatID, ev.UserID, structs.AuthEdit) {
		return
	}
	s.warnAndSchedule(ctx, ev, structs.AuthEdit, delay, "edit_warning")
}

// HandleMedia applies the media guard to a media post.
func (s *Service) HandleMedia(ctx context.Context, ev Event) {
	chatID := ev.Message.ChatID

	if s.IsGbanned(ctx, ev.UserID) {
		if _, canDelete := s.tracker.BotPermissions(ctx, chatID); canDelete {
			if err := s.client.DeleteMessage(ctx, ev.Message); err != nil {
				s.logger.Warn("Failed to delete gbanned user's media", "chatID", chatID, "userID", ev.UserID, "error", err)
			}
		}
		return
	}

	delay := s.MediaDelay(ctx, chatID)
	if delay <= 0 {
		return
	}
	if s.exemptAtWarnTime(ctx, chatID, ev.UserID, structs.AuthMedia) {
		return
	}
	s.warnAndSchedule(ctx, ev, structs.AuthMedia, delay, "media_warning")
}

// HandleText runs the pretender check and the slang filter on a plain
// message.
func (s *Service) HandleText(ctx context.Context, ev Event) {
	chatID := ev.Message.ChatID

	if s.pretender != nil && s.PretenderEnabled(ctx, chatID) {
		s.reportPretender(ctx, ev)
	}

	if s.slang == nil || !s.SlangEnabled(ctx, chatID) {
		return
	}
	if s.exemptAtWarnTime(ctx, chatID, ev.UserID, structs.AuthSlang) {
		return
	}
	found := s.slang.Match(ev.Text)
	if len(found) == 0 {
		return
	}

	canSend, canDelete := s.tracker.BotPermissions(ctx, chatID)
	if canDelete {
		if err := s.client.DeleteMessage(ctx, ev.Message); err != nil {
			s.logger.Warn("Failed to delete slang message", "chatID", chatID, "error", err)
		}
	}

	count := s.tracker.RecordEvent(chatID)
	if count > s.tracker.Threshold() || s.tracker.WasRecentlyWarned(chatID, ev.UserID) || !canSend {
		return
	}
	text := s.lang.Get("slang_detected", s.Language(ctx, chatID), map[string]string{
		"user":  ev.Mention(),
		"words": strings.Join(found, ", "),
	})
	if _, err := s.client.SendMessage(ctx, chatID, text); err != nil {
		s.logger.Error("Failed to send slang warning", "chatID", chatID, "error", err)
		return
	}
	s.tracker.MarkWarned(chatID, ev.UserID)
}

// HandleNewMember enforces global bans on join and tracks known users.
// It reports whether the member was removed.
func (s *Service) HandleNewMember(ctx context.Context, chatID int64, ev Event) bool {
	if s.IsGbanned(ctx, ev.UserID) {
		if err := s.client.BanMember(ctx, chatID, ev.UserID); err != nil {
			s.logger.Error("Failed to ban gbanned user on join", "chatID", chatID, "userID", ev.UserID, "error", err)
			return false
		}
		text := s.lang.Get("gban_enforced", s.Language(ctx, chatID), map[string]string{"user": ev.Mention()})
		if _, err := s.client.SendMessage(ctx, chatID, text); err != nil {
			s.logger.Warn("Failed to announce gban enforcement", "chatID", chatID, "error", err)
		}
		return true
	}
	if err := s.store.AddKnownUser(ctx, ev.UserID); err != nil {
		s.logger.Warn("Failed to track user", "userID", ev.UserID, "error", err)
	}
	return false
}

// LogAdminAction records a moderation command; failures are logged only.
func (s *Service) LogAdminAction(ctx context.Context, chatID, adminID int64, action string, targetUser int64) {
	if err := s.store.LogAdminAction(ctx, chatID, adminID, action, targetUser); err != nil {
		s.logger.Warn("Failed to log admin action", "chatID", chatID, "action", action, "error", err)
	}
}

// AuthList lists the users exempted from one guard type.
func (s *Service) AuthList(ctx context.Context, chatID int64, authType structs.AuthType) ([]int64, error) {
	return s.store.ListAuth(ctx, chatID, authType)
}

// exemptAtWarnTime is the warn-time exemption check: resolution errors mean
// the guard proceeds, matching the always-guard bias of the pipeline.
func (s *Service) exemptAtWarnTime(ctx context.Context, chatID, userID int64, authType structs.AuthType) bool {
	exempt, err := s.IsExempt(ctx, chatID, userID, authType)
	if err != nil {
		s.logger.Warn("Exemption check failed at warn time", "chatID", chatID, "userID", userID, "error", err)
		return false
	}
	return exempt
}

func (s *Service) warnAndSchedule(ctx context.Context, ev Event, authType structs.AuthType, delayMinutes int, key string) {
	chatID := ev.Message.ChatID
	canSend, canDelete := s.tracker.BotPermissions(ctx, chatID)

	count := s.tracker.RecordEvent(chatID)
	suppressed := count > s.tracker.Threshold() ||
		s.tracker.WasRecentlyWarned(chatID, ev.UserID) ||
		!canSend

	var warnRef structs.MessageRef
	if !suppressed {
		text := s.lang.Get(key, s.Language(ctx, chatID), map[string]string{
			"user":  ev.Mention(),
			"delay": strconv.Itoa(delayMinutes),
		})
		ref, err := s.client.ReplyMessage(ctx, chatID, ev.Message.MessageID, text)
		if err != nil {
			// No warning went out, so there is nothing to reconcile later.
			s.logger.Error("Failed to send warning", "chatID", chatID, "userID", ev.UserID, "error", err)
			return
		}
		warnRef = ref
		s.tracker.MarkWarned(chatID, ev.UserID)
	}

	s.scheduler.Schedule(Action{
		Target:    ev.Message,
		Warning:   warnRef,
		ChatID:    chatID,
		UserID:    ev.UserID,
		AuthType:  authType,
		CanDelete: canDelete,
		Delay:     time.Duration(delayMinutes) * time.Minute,
	})
}

func (s *Service) reportPretender(ctx context.Context, ev Event) {
	chatID := ev.Message.ChatID
	changes := s.pretender.Observe(chatID, ev.UserID, pretender.Identity{
		FirstName: ev.FirstName,
		Username:  ev.Username,
	})
	if len(changes) == 0 {
		return
	}

	langCode := s.Language(ctx, chatID)
	lines := make([]string, 0, len(changes)+1)
	lines = append(lines, s.lang.Get("pretender_alert", langCode, map[string]string{"user": ev.Mention()}))
	for _, change := range changes {
		key := "name_changed"
		if change.Field == "username" {
			key = "username_changed"
		}
		lines = append(lines, s.lang.Get(key, langCode, map[string]string{
			"old": orNone(change.Old),
			"new": orNone(change.New),
		}))
	}
	if _, err := s.client.ReplyMessage(ctx, chatID, ev.Message.MessageID, strings.Join(lines, "\n")); err != nil {
		s.logger.Warn("Failed to send pretender alert", "chatID", chatID, "error", err)
	}
}

func orNone(v string) string {
	if v == "" {
		return "none"
	}
	return v
}
