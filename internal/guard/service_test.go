package guard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/guardifyhq/guardify/internal/cache"
	"github.com/guardifyhq/guardify/internal/lang"
	"github.com/guardifyhq/guardify/internal/pretender"
	"github.com/guardifyhq/guardify/internal/slang"
	"github.com/guardifyhq/guardify/internal/structs"
)

// botMember is the bot's own membership as seen by the permission tracker:
// an administrator that can both send and delete.
func botMember(selfID int64) structs.ChatMember {
	return structs.ChatMember{
		UserID:            selfID,
		Status:            structs.StatusAdministrator,
		CanSendMessages:   true,
		CanDeleteMessages: true,
	}
}

type testHarness struct {
	svc    *Service
	sched  *Scheduler
	clock  *fakeClock
	client *fakeClient
	store  *fakeStore
}

func newHarness(t *testing.T, client *fakeClient, st *fakeStore) *testHarness {
	t.Helper()

	logger := discardLogger()
	tracker := NewTracker(client, TrackerConfig{
		Window:    10 * time.Second,
		Threshold: 3,
		Cooldown:  time.Minute,
		PermsTTL:  time.Minute,
	}, logger)

	svc := NewService(ServiceDeps{
		Cache:       cache.NewManager(100, 100, time.Hour, logger),
		Store:       st,
		Client:      client,
		Tracker:     tracker,
		Lang:        lang.Load(t.TempDir(), "en", logger),
		Slang:       slang.NewList([]string{"spamcoin"}),
		// TTL 0 keeps the identity cache janitor goroutine out of the
		// leak check.
		Pretender:   pretender.New(100, 0),
		DefaultLang: "en",
		Logger:      logger,
	})
	clock := newFakeClock()
	sched := NewScheduler(client, svc, clock, logger)
	svc.AttachScheduler(sched)

	return &testHarness{svc: svc, sched: sched, clock: clock, client: client, store: st}
}

func (h *testHarness) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.sched.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func event(chatID int64, msgID int, userID int64) Event {
	return Event{
		Message:   structs.MessageRef{ChatID: chatID, MessageID: msgID},
		UserID:    userID,
		FirstName: "Ann",
	}
}

func TestEditDelayCachedAfterFirstRead(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	st.editDelay[1] = 5
	h := newHarness(t, &fakeClient{}, st)
	ctx := context.Background()

	if got := h.svc.EditDelay(ctx, 1); got != 5 {
		t.Fatalf("EditDelay = %d, want 5", got)
	}
	if got := h.svc.EditDelay(ctx, 1); got != 5 {
		t.Fatalf("EditDelay second read = %d, want 5", got)
	}
	if st.readCalls != 1 {
		t.Fatalf("store reads = %d, want 1", st.readCalls)
	}
}

func TestSettingReadFailureMeansDisabled(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	st.editDelay[1] = 5
	st.failReads = true
	h := newHarness(t, &fakeClient{}, st)

	if got := h.svc.EditDelay(context.Background(), 1); got != 0 {
		t.Fatalf("EditDelay with store down = %d, want 0", got)
	}
}

func TestUpdateSurvivesStoreWriteFailure(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	st.failWrites = true
	h := newHarness(t, &fakeClient{}, st)
	ctx := context.Background()

	h.svc.UpdateEditDelay(ctx, 1, 7)

	if got := h.svc.EditDelay(ctx, 1); got != 7 {
		t.Fatalf("EditDelay after failed persist = %d, want 7 from cache", got)
	}
	if len(st.editDelay) != 0 {
		t.Fatal("store write unexpectedly succeeded")
	}
}

func TestIsExemptRequiresAdminAndAuth(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	st.auth[authKey(1, 10, structs.AuthEdit)] = true
	st.auth[authKey(1, 30, structs.AuthEdit)] = true
	client := &fakeClient{admins: []int64{10, 20}}
	h := newHarness(t, client, st)
	ctx := context.Background()

	if exempt, err := h.svc.IsExempt(ctx, 1, 10, structs.AuthEdit); err != nil || !exempt {
		t.Fatalf("authorized admin: exempt=%v err=%v, want true", exempt, err)
	}
	if exempt, err := h.svc.IsExempt(ctx, 1, 20, structs.AuthEdit); err != nil || exempt {
		t.Fatalf("unauthorized admin: exempt=%v err=%v, want false", exempt, err)
	}
	if exempt, err := h.svc.IsExempt(ctx, 1, 30, structs.AuthEdit); err != nil || exempt {
		t.Fatalf("authorized non-admin: exempt=%v err=%v, want false", exempt, err)
	}
}

func TestHandleEditedGuardOff(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeClient{selfID: 99, member: botMember(99)}, newFakeStore())

	h.svc.HandleEdited(context.Background(), event(1, 100, 10))
	h.drain(t)

	if h.client.replyCount() != 0 || len(h.client.deletedRefs()) != 0 {
		t.Fatal("guard acted while disabled")
	}
}

func TestHandleEditedWarnsAndDeletes(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	st.editDelay[1] = 1
	h := newHarness(t, &fakeClient{selfID: 99, member: botMember(99)}, st)

	ev := event(1, 100, 10)
	h.svc.HandleEdited(context.Background(), ev)

	if h.client.replyCount() != 1 {
		t.Fatalf("warnings sent = %d, want 1", h.client.replyCount())
	}

	h.clock.fire()
	h.drain(t)

	if !h.client.wasDeleted(ev.Message) {
		t.Fatal("edited message not deleted after delay")
	}
	if got := len(h.client.deletedRefs()); got != 2 {
		t.Fatalf("deletions = %d, want target and warning", got)
	}
}

func TestHandleEditedExemptUserUntouched(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	st.editDelay[1] = 1
	st.auth[authKey(1, 10, structs.AuthEdit)] = true
	client := &fakeClient{selfID: 99, member: botMember(99), admins: []int64{10}}
	h := newHarness(t, client, st)

	h.svc.HandleEdited(context.Background(), event(1, 100, 10))
	h.drain(t)

	if h.client.replyCount() != 0 || len(h.client.deletedRefs()) != 0 {
		t.Fatal("exempt user was warned or scheduled")
	}
}

func TestHandleEditedWarnFailureSkipsScheduling(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	st.editDelay[1] = 1
	client := &fakeClient{selfID: 99, member: botMember(99), replyErr: errors.New("flood wait")}
	h := newHarness(t, client, st)

	h.svc.HandleEdited(context.Background(), event(1, 100, 10))
	h.drain(t)

	if got := len(h.client.deletedRefs()); got != 0 {
		t.Fatalf("deletions = %d, want 0 when the warning never went out", got)
	}
}

func TestRateSuppressionSkipsWarningNotAction(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	st.editDelay[1] = 1
	h := newHarness(t, &fakeClient{selfID: 99, member: botMember(99)}, st)
	ctx := context.Background()

	// Threshold is 3: the fourth event in the window warns nobody but its
	// message is still scheduled for deletion.
	events := []Event{
		event(1, 100, 10),
		event(1, 101, 11),
		event(1, 102, 12),
		event(1, 103, 13),
	}
	for _, ev := range events {
		h.svc.HandleEdited(ctx, ev)
	}

	if got := h.client.replyCount(); got != 3 {
		t.Fatalf("warnings = %d, want 3", got)
	}

	for range events {
		h.clock.fire()
	}
	h.drain(t)

	for _, ev := range events {
		if !h.client.wasDeleted(ev.Message) {
			t.Fatalf("message %d not deleted", ev.Message.MessageID)
		}
	}
}

func TestHandleMediaGbannedUserDeletedImmediately(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	st.mediaDelay[1] = 1
	st.gban[10] = true
	h := newHarness(t, &fakeClient{selfID: 99, member: botMember(99)}, st)

	ev := event(1, 100, 10)
	h.svc.HandleMedia(context.Background(), ev)
	h.drain(t)

	if !h.client.wasDeleted(ev.Message) {
		t.Fatal("gbanned user's media not deleted")
	}
	if h.client.replyCount() != 0 {
		t.Fatal("gbanned user was warned instead of silently removed")
	}
}

func TestHandleMediaGbannedWithoutDeleteRight(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	st.mediaDelay[1] = 1
	st.gban[10] = true
	client := &fakeClient{
		selfID: 99,
		member: structs.ChatMember{
			UserID:          99,
			Status:          structs.StatusAdministrator,
			CanSendMessages: true,
		},
	}
	h := newHarness(t, client, st)

	h.svc.HandleMedia(context.Background(), event(1, 100, 10))
	h.drain(t)

	if got := len(h.client.deletedRefs()); got != 0 {
		t.Fatalf("deletions without delete right = %d, want 0", got)
	}
}

func TestHandleTextSlangDeleteAndCooldown(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	st.slangOn[1] = true
	h := newHarness(t, &fakeClient{selfID: 99, member: botMember(99)}, st)
	ctx := context.Background()

	first := event(1, 100, 10)
	first.Text = "get rich with SpamCoin today"
	h.svc.HandleText(ctx, first)

	if !h.client.wasDeleted(first.Message) {
		t.Fatal("slang message not deleted")
	}
	if h.client.sentCount() != 1 {
		t.Fatalf("slang warnings = %d, want 1", h.client.sentCount())
	}

	// Same user inside the cooldown: delete again, stay quiet.
	second := event(1, 101, 10)
	second.Text = "spamcoin"
	h.svc.HandleText(ctx, second)

	if !h.client.wasDeleted(second.Message) {
		t.Fatal("second slang message not deleted")
	}
	if h.client.sentCount() != 1 {
		t.Fatalf("slang warnings after cooldown hit = %d, want 1", h.client.sentCount())
	}
	h.drain(t)
}

func TestHandleTextCleanMessageIgnored(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	st.slangOn[1] = true
	h := newHarness(t, &fakeClient{selfID: 99, member: botMember(99)}, st)

	ev := event(1, 100, 10)
	ev.Text = "good morning everyone"
	h.svc.HandleText(context.Background(), ev)
	h.drain(t)

	if len(h.client.deletedRefs()) != 0 || h.client.sentCount() != 0 {
		t.Fatal("clean message triggered the slang guard")
	}
}

func TestHandleTextPretenderAlert(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	st.pretenderOn[1] = true
	h := newHarness(t, &fakeClient{selfID: 99, member: botMember(99)}, st)
	ctx := context.Background()

	ev := event(1, 100, 10)
	ev.FirstName = "Ann"
	h.svc.HandleText(ctx, ev)

	if h.client.replyCount() != 0 {
		t.Fatal("first sighting produced an alert")
	}

	ev = event(1, 101, 10)
	ev.FirstName = "Support Team"
	h.svc.HandleText(ctx, ev)

	if h.client.replyCount() != 1 {
		t.Fatalf("alerts after identity change = %d, want 1", h.client.replyCount())
	}
	h.drain(t)
}

func TestHandleNewMemberEnforcesGban(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	st.gban[10] = true
	h := newHarness(t, &fakeClient{selfID: 99, member: botMember(99)}, st)
	ctx := context.Background()

	if removed := h.svc.HandleNewMember(ctx, 1, event(1, 0, 10)); !removed {
		t.Fatal("gbanned joiner not removed")
	}
	if len(h.client.banned) != 1 || h.client.banned[0] != 10 {
		t.Fatalf("banned = %v, want [10]", h.client.banned)
	}

	if removed := h.svc.HandleNewMember(ctx, 1, event(1, 0, 20)); removed {
		t.Fatal("clean joiner removed")
	}
	if !st.known[20] {
		t.Fatal("clean joiner not tracked")
	}
	h.drain(t)
}

func TestGbanUpdateVisibleBeforePersist(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	st.failWrites = true
	h := newHarness(t, &fakeClient{}, st)
	ctx := context.Background()

	h.svc.AddGban(ctx, 10, "spam", 0)
	if !h.svc.IsGbanned(ctx, 10) {
		t.Fatal("gban not visible from cache after failed persist")
	}

	h.svc.RemoveGban(ctx, 10)
	if h.svc.IsGbanned(ctx, 10) {
		t.Fatal("ungban not visible from cache")
	}
}

func TestLanguageDefaultsWhenUnset(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	h := newHarness(t, &fakeClient{}, st)
	ctx := context.Background()

	if got := h.svc.Language(ctx, 1); got != "en" {
		t.Fatalf("Language = %q, want default en", got)
	}

	st.language[2] = "ru"
	if got := h.svc.Language(ctx, 2); got != "ru" {
		t.Fatalf("Language = %q, want ru", got)
	}
}
