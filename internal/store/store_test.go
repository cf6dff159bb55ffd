package store

import (
	"testing"

	"github.com/guardifyhq/guardify/internal/structs"
)

func TestSettingsKey(t *testing.T) {
	t.Parallel()

	if got := settingsKey(-1001234); got != "settings:-1001234" {
		t.Fatalf("settingsKey: got %q", got)
	}
}

func TestAuthSetKeyPerType(t *testing.T) {
	t.Parallel()

	edit := authSetKey(-100, structs.AuthEdit)
	media := authSetKey(-100, structs.AuthMedia)
	if edit == media {
		t.Fatal("auth keys must differ per guard type")
	}
	if edit != "auth:edit:-100" {
		t.Fatalf("authSetKey: got %q", edit)
	}
}

func TestAdminLogKey(t *testing.T) {
	t.Parallel()

	if got := adminLogKey(55); got != "adminlog:55" {
		t.Fatalf("adminLogKey: got %q", got)
	}
}

func TestBoolValue(t *testing.T) {
	t.Parallel()

	if boolValue(true) != "1" || boolValue(false) != "0" {
		t.Fatalf("boolValue: got %q/%q", boolValue(true), boolValue(false))
	}
}
