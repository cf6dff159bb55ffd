package guard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/guardifyhq/guardify/internal/structs"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClient is a scripted platform.Client shared by the guard tests.
type fakeClient struct {
	mu sync.Mutex

	selfID    int64
	member    structs.ChatMember
	memberErr error
	admins    []int64
	adminsErr error
	replyErr  error
	sendErr   error
	deleteErr error

	memberCalls int
	nextMsgID   int
	sent        []string
	replies     []string
	deleted     []structs.MessageRef
	banned      []int64
}

func (c *fakeClient) GetChatMember(ctx context.Context, chatID, userID int64) (structs.ChatMember, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.memberCalls++
	if c.memberErr != nil {
		return structs.ChatMember{}, c.memberErr
	}
	return c.member, nil
}

func (c *fakeClient) ChatAdmins(ctx context.Context, chatID int64) ([]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.adminsErr != nil {
		return nil, c.adminsErr
	}
	return c.admins, nil
}

func (c *fakeClient) SendMessage(ctx context.Context, chatID int64, text string) (structs.MessageRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return structs.MessageRef{}, c.sendErr
	}
	c.nextMsgID++
	c.sent = append(c.sent, text)
	return structs.MessageRef{ChatID: chatID, MessageID: 1000 + c.nextMsgID}, nil
}

func (c *fakeClient) ReplyMessage(ctx context.Context, chatID int64, replyTo int, text string) (structs.MessageRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.replyErr != nil {
		return structs.MessageRef{}, c.replyErr
	}
	c.nextMsgID++
	c.replies = append(c.replies, text)
	return structs.MessageRef{ChatID: chatID, MessageID: 1000 + c.nextMsgID}, nil
}

func (c *fakeClient) DeleteMessage(ctx context.Context, ref structs.MessageRef) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deleteErr != nil {
		return c.deleteErr
	}
	c.deleted = append(c.deleted, ref)
	return nil
}

func (c *fakeClient) BanMember(ctx context.Context, chatID, userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.banned = append(c.banned, userID)
	return nil
}

func (c *fakeClient) SelfID() int64 { return c.selfID }

func (c *fakeClient) deletedRefs() []structs.MessageRef {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]structs.MessageRef, len(c.deleted))
	copy(out, c.deleted)
	return out
}

func (c *fakeClient) wasDeleted(ref structs.MessageRef) bool {
	for _, d := range c.deletedRefs() {
		if d == ref {
			return true
		}
	}
	return false
}

func (c *fakeClient) replyCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.replies)
}

func (c *fakeClient) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

// fakeClock drives scheduler timers by hand. Every After call shares one
// channel; each fire releases exactly one waiter.
type fakeClock struct {
	ch chan time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{ch: make(chan time.Time)}
}

func (c *fakeClock) Now() time.Time { return time.Unix(0, 0) }

func (c *fakeClock) After(time.Duration) <-chan time.Time { return c.ch }

func (c *fakeClock) fire() { c.ch <- time.Unix(1, 0) }

// fakeAuthorizer scripts the fire-time exemption recheck.
type fakeAuthorizer struct {
	mu     sync.Mutex
	exempt bool
	err    error
	calls  int
}

func (a *fakeAuthorizer) IsExempt(ctx context.Context, chatID, userID int64, authType structs.AuthType) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	return a.exempt, a.err
}

// fakeStore is an in-memory Store with switchable read/write failures.
type fakeStore struct {
	mu sync.Mutex

	editDelay   map[int64]int
	mediaDelay  map[int64]int
	slangOn     map[int64]bool
	pretenderOn map[int64]bool
	language    map[int64]string
	auth        map[string]bool
	gban        map[int64]bool
	known       map[int64]bool
	logs        []string

	failReads  bool
	failWrites bool
	readCalls  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		editDelay:   make(map[int64]int),
		mediaDelay:  make(map[int64]int),
		slangOn:     make(map[int64]bool),
		pretenderOn: make(map[int64]bool),
		language:    make(map[int64]string),
		auth:        make(map[string]bool),
		gban:        make(map[int64]bool),
		known:       make(map[int64]bool),
	}
}

var errStoreDown = errors.New("store down")

func (s *fakeStore) readErr() error {
	s.readCalls++
	if s.failReads {
		return errStoreDown
	}
	return nil
}

func (s *fakeStore) writeErr() error {
	if s.failWrites {
		return errStoreDown
	}
	return nil
}

func authKey(chatID, userID int64, authType structs.AuthType) string {
	return fmt.Sprintf("%d:%d:%s", chatID, userID, authType)
}

func (s *fakeStore) GetEditDelay(ctx context.Context, chatID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.readErr(); err != nil {
		return 0, err
	}
	return s.editDelay[chatID], nil
}

func (s *fakeStore) SetEditDelay(ctx context.Context, chatID int64, minutes int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErr(); err != nil {
		return err
	}
	s.editDelay[chatID] = minutes
	return nil
}

func (s *fakeStore) GetMediaDelay(ctx context.Context, chatID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.readErr(); err != nil {
		return 0, err
	}
	return s.mediaDelay[chatID], nil
}

func (s *fakeStore) SetMediaDelay(ctx context.Context, chatID int64, minutes int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErr(); err != nil {
		return err
	}
	s.mediaDelay[chatID] = minutes
	return nil
}

func (s *fakeStore) GetSlangEnabled(ctx context.Context, chatID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.readErr(); err != nil {
		return false, err
	}
	return s.slangOn[chatID], nil
}

func (s *fakeStore) SetSlangEnabled(ctx context.Context, chatID int64, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErr(); err != nil {
		return err
	}
	s.slangOn[chatID] = enabled
	return nil
}

func (s *fakeStore) GetPretenderEnabled(ctx context.Context, chatID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.readErr(); err != nil {
		return false, err
	}
	return s.pretenderOn[chatID], nil
}

func (s *fakeStore) SetPretenderEnabled(ctx context.Context, chatID int64, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErr(); err != nil {
		return err
	}
	s.pretenderOn[chatID] = enabled
	return nil
}

func (s *fakeStore) GetGroupLanguage(ctx context.Context, chatID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.readErr(); err != nil {
		return "", err
	}
	return s.language[chatID], nil
}

func (s *fakeStore) SetGroupLanguage(ctx context.Context, chatID int64, langCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErr(); err != nil {
		return err
	}
	s.language[chatID] = langCode
	return nil
}

func (s *fakeStore) IsAuthorized(ctx context.Context, chatID, userID int64, authType structs.AuthType) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.readErr(); err != nil {
		return false, err
	}
	return s.auth[authKey(chatID, userID, authType)], nil
}

func (s *fakeStore) AddAuth(ctx context.Context, chatID, userID int64, authType structs.AuthType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErr(); err != nil {
		return err
	}
	s.auth[authKey(chatID, userID, authType)] = true
	return nil
}

func (s *fakeStore) RemoveAuth(ctx context.Context, chatID, userID int64, authType structs.AuthType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErr(); err != nil {
		return err
	}
	delete(s.auth, authKey(chatID, userID, authType))
	return nil
}

func (s *fakeStore) ListAuth(ctx context.Context, chatID int64, authType structs.AuthType) ([]int64, error) {
	return nil, nil
}

func (s *fakeStore) IsGbanned(ctx context.Context, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.readErr(); err != nil {
		return false, err
	}
	return s.gban[userID], nil
}

func (s *fakeStore) AddGban(ctx context.Context, userID int64, reason string, durationMinutes int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErr(); err != nil {
		return err
	}
	s.gban[userID] = true
	return nil
}

func (s *fakeStore) RemoveGban(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErr(); err != nil {
		return err
	}
	delete(s.gban, userID)
	return nil
}

func (s *fakeStore) AddKnownUser(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErr(); err != nil {
		return err
	}
	s.known[userID] = true
	return nil
}

func (s *fakeStore) LogAdminAction(ctx context.Context, chatID, adminID int64, action string, targetUser int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErr(); err != nil {
		return err
	}
	s.logs = append(s.logs, action)
	return nil
}
