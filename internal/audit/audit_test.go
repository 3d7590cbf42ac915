package audit

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func useTempLog(t *testing.T, name string) string {
	t.Helper()
	logFile := filepath.Join(t.TempDir(), name)
	SetLogPathOverride(logFile)
	t.Cleanup(func() { SetLogPathOverride("") })
	return logFile
}

func TestAuditLogLifecycle(t *testing.T) {
	logFile := useTempLog(t, "test_history.jsonl")

	entry1 := LogEntry{ID: "1", Role: RoleClient, Status: StatusSuccess}
	if err := WriteEntry(entry1); err != nil {
		t.Fatalf("WriteEntry failed: %v", err)
	}

	entries, err := LoadHistory()
	if err != nil {
		t.Fatalf("LoadHistory failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0].ID != "1" {
		t.Errorf("Expected ID 1, got %s", entries[0].ID)
	}

	// Push past MaxEntries; timestamps increase so the order is known.
	base := time.Now()
	for i := 0; i < 1100; i++ {
		e := LogEntry{
			ID:        fmt.Sprintf("p-%d", i),
			Role:      RoleServer,
			Timestamp: base.Add(time.Duration(i+1) * time.Second),
		}
		if err := WriteEntry(e); err != nil {
			t.Fatalf("WriteEntry loop failed at %d: %v", i, err)
		}
	}

	entries, err = LoadHistory()
	if err != nil {
		t.Fatalf("LoadHistory after prune failed: %v", err)
	}
	if len(entries) != MaxEntries {
		t.Errorf("Pruning failed. Expected %d entries, got %d", MaxEntries, len(entries))
	}
	if entries[0].ID != "p-1099" {
		t.Errorf("Expected newest entry p-1099, got %s", entries[0].ID)
	}
	if last := entries[len(entries)-1].ID; last != "p-100" {
		t.Errorf("Expected oldest kept entry p-100, got %s", last)
	}

	if err := ClearHistory(); err != nil {
		t.Fatalf("ClearHistory failed: %v", err)
	}
	entries, err = LoadHistory()
	if err != nil {
		t.Fatalf("LoadHistory after clear failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("History not cleared. Got %d entries", len(entries))
	}
	if _, err := os.Stat(logFile); !os.IsNotExist(err) {
		t.Error("Log file still exists after clear")
	}
}

func TestWriteEntryFillsDefaults(t *testing.T) {
	useTempLog(t, "defaults.jsonl")

	before := time.Now()
	if err := WriteEntry(LogEntry{Role: RoleServer, Status: StatusFailed, Error: "boom"}); err != nil {
		t.Fatal(err)
	}
	entries, _ := LoadHistory()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.ID == "" || !strings.Contains(e.ID, "-") {
		t.Errorf("Expected a petname id, got %q", e.ID)
	}
	if e.Timestamp.Before(before.Add(-time.Second)) {
		t.Errorf("Timestamp not set: %v", e.Timestamp)
	}
}

func TestLoadHistorySkipsMalformedLines(t *testing.T) {
	logFile := useTempLog(t, "malformed.jsonl")
	os.WriteFile(logFile, []byte("not json\n{\"id\":\"ok\",\"role\":\"client\"}\n"), 0644)

	entries, err := LoadHistory()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].ID != "ok" {
		t.Errorf("Expected only the valid entry, got %+v", entries)
	}
}

func TestConcurrentWrites(t *testing.T) {
	useTempLog(t, "pru_history.jsonl")

	const numGoroutines = 10
	const entriesPerGoroutine = 50

	errCh := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			for j := 0; j < entriesPerGoroutine; j++ {
				entry := LogEntry{
					ID:        fmt.Sprintf("worker-%d-%d", id, j),
					Timestamp: time.Now(),
					Role:      RoleServer,
					Status:    StatusSuccess,
				}
				if err := WriteEntry(entry); err != nil {
					errCh <- fmt.Errorf("worker %d failed: %v", id, err)
					return
				}
			}
			errCh <- nil
		}(i)
	}

	for i := 0; i < numGoroutines; i++ {
		if err := <-errCh; err != nil {
			t.Fatal(err)
		}
	}

	entries, err := LoadHistory()
	if err != nil {
		t.Fatalf("LoadHistory failed: %v", err)
	}

	expected := numGoroutines * entriesPerGoroutine
	if len(entries) != expected {
		t.Errorf("Expected %d entries, got %d", expected, len(entries))
	}
}

func TestShowHistory(t *testing.T) {
	useTempLog(t, "show.jsonl")

	var buf bytes.Buffer
	if err := ShowHistory(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No transfer history found.") {
		t.Errorf("Unexpected empty output: %q", buf.String())
	}

	WriteEntry(LogEntry{Role: RoleClient, Peer: "127.0.0.1:9999", FileName: "notes.txt", FileSize: 2048, Chunks: 7, Status: StatusSuccess})
	buf.Reset()
	if err := ShowHistory(&buf); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"notes.txt", "127.0.0.1:9999", "2.0 KB", "CLIENT"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("Output missing %q:\n%s", want, buf.String())
		}
	}
}

func TestFormatBytes(t *testing.T) {
	cases := map[int64]string{0: "0 B", 1023: "1023 B", 1024: "1.0 KB", 5 << 20: "5.0 MB"}
	for in, want := range cases {
		if got := FormatBytes(in); got != want {
			t.Errorf("FormatBytes(%d): expected %q, got %q", in, want, got)
		}
	}
}
