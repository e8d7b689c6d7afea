package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsWhenMissing(t *testing.T) {
	t.Parallel()

	s := Open(filepath.Join(t.TempDir(), "settings.json"))
	if got := s.LastProjectID(); got != 0 {
		t.Fatalf("LastProjectID = %d", got)
	}
	if !s.ShowCompletedItems() {
		t.Fatalf("ShowCompletedItems should default to true")
	}
	if got := s.NotificationDelay(3 * time.Second); got != 3*time.Second {
		t.Fatalf("NotificationDelay = %v", got)
	}
}

func TestSetPersists(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	s := Open(path)
	if err := s.SetLastProjectID(42); err != nil {
		t.Fatalf("SetLastProjectID: %v", err)
	}
	if err := s.SetString(KeyShowCompletedItems, "false"); err != nil {
		t.Fatalf("SetString: %v", err)
	}
	if err := s.SetString(KeyNotificationDelay, "750ms"); err != nil {
		t.Fatalf("SetString: %v", err)
	}

	re := Open(path)
	if got := re.LastProjectID(); got != 42 {
		t.Fatalf("LastProjectID = %d", got)
	}
	if re.ShowCompletedItems() {
		t.Fatalf("ShowCompletedItems should be false")
	}
	if got := re.NotificationDelay(time.Second); got != 750*time.Millisecond {
		t.Fatalf("NotificationDelay = %v", got)
	}
	if got := len(re.All()); got != 3 {
		t.Fatalf("All() has %d entries", got)
	}
}

func TestCorruptFileIsIgnored(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := Open(path)
	if !s.ShowCompletedItems() {
		t.Fatalf("expected default")
	}
	if err := s.SetLastProjectID(1); err != nil {
		t.Fatalf("SetLastProjectID: %v", err)
	}
}

func TestSetStringRejectsUnknownAndBadValues(t *testing.T) {
	t.Parallel()

	s := Open(filepath.Join(t.TempDir(), "settings.json"))
	if err := s.SetString("theme", "dark"); err == nil {
		t.Fatalf("expected error for unknown key")
	}
	if err := s.SetString(KeyLastProjectID, "abc"); err == nil {
		t.Fatalf("expected parse error")
	}
}
