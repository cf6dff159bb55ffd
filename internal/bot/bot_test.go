package bot

import (
	"io"
	"log/slog"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Handlers run as detached tasks; a panic in one must neither crash the
// process nor wedge the waitgroup the receive loop shuts down through.
func TestHandleUpdateIsolatesPanics(t *testing.T) {
	t.Parallel()

	b := &Bot{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		stopChan: make(chan struct{}),
	}

	// The nil platform client makes every edited-message handler panic.
	update := tgbotapi.Update{
		EditedMessage: &tgbotapi.Message{
			MessageID: 1,
			From:      &tgbotapi.User{ID: 10},
			Chat:      &tgbotapi.Chat{ID: 1, Type: "supergroup"},
		},
	}

	for i := 0; i < 4; i++ {
		b.wg.Add(1)
		go b.handleUpdate(update)
	}
	b.wg.Wait()
}
