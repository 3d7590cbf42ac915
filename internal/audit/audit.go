package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	petname "github.com/dustinkirkland/golang-petname"
	"github.com/gofrs/flock"
)

// MaxEntries is how many entries the history file keeps.
const MaxEntries = 1000

const (
	RoleClient = "client"
	RoleServer = "server"

	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// LogEntry represents a single transfer, seen from either end.
type LogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Role      string    `json:"role"` // "client" or "server"
	Peer      string    `json:"peer,omitempty"`
	FileName  string    `json:"file_name,omitempty"`
	FileSize  int64     `json:"file_size"`
	Chunks    int       `json:"chunks"`
	Output    string    `json:"output,omitempty"`
	Status    string    `json:"status"` // "success" or "failed"
	Error     string    `json:"error,omitempty"`
	Duration  float64   `json:"duration_seconds"`
}

var (
	overrideMu      sync.RWMutex
	logPathOverride string

	// writeMu serializes writers in this process; the flock covers other processes.
	writeMu sync.Mutex
)

// SetLogPathOverride points the history at path. An empty path restores the default.
func SetLogPathOverride(path string) {
	overrideMu.Lock()
	defer overrideMu.Unlock()
	logPathOverride = path
}

// GetLogPath returns the path to the history log file
func GetLogPath() (string, error) {
	overrideMu.RLock()
	p := logPathOverride
	overrideMu.RUnlock()
	if p != "" {
		return p, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".flip")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.jsonl"), nil
}

func lockFor(path string) *flock.Flock {
	return flock.New(path + ".lock")
}

// WriteEntry appends a log entry to the history file, pruning the oldest
// entries once the file holds more than MaxEntries.
func WriteEntry(entry LogEntry) error {
	path, err := GetLogPath()
	if err != nil {
		return err
	}

	if entry.ID == "" {
		entry.ID = petname.Generate(2, "-")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	writeMu.Lock()
	defer writeMu.Unlock()
	lock := lockFor(path)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock history: %w", err)
	}
	defer lock.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}
	return prune(f, path)
}

// prune rewrites the file with its newest MaxEntries lines. The caller holds the lock.
func prune(f *os.File, path string) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	var lines [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, bytes.Clone(scanner.Bytes()))
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if len(lines) <= MaxEntries {
		return nil
	}

	keep := lines[len(lines)-MaxEntries:]
	tmp := path + ".tmp"
	out := bytes.Join(keep, []byte{'\n'})
	out = append(out, '\n')
	if err := os.WriteFile(tmp, out, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadHistory reads all log entries from the history file, newest first.
func LoadHistory() ([]LogEntry, error) {
	path, err := GetLogPath()
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []LogEntry{}, nil
		}
		return nil, err
	}
	defer f.Close()

	entries := []LogEntry{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var entry LogEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue // Skip malformed lines
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})

	return entries, scanner.Err()
}

// ClearHistory removes the history file.
func ClearHistory() error {
	path, err := GetLogPath()
	if err != nil {
		return err
	}
	writeMu.Lock()
	defer writeMu.Unlock()
	lock := lockFor(path)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock history: %w", err)
	}
	defer func() {
		lock.Unlock()
		os.Remove(path + ".lock")
	}()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// --- Display Logic ---

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	rowStyle = lipgloss.NewStyle().
			Padding(0, 1)

	statusSuccessStr = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")).Render("SUCCESS")
	statusFailStr    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Render("FAILED")
	clientRoleStr    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500")).Render("CLIENT")
	serverRoleStr    = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FFFF")).Render("SERVER")
)

// ShowHistory prints the history table to w.
func ShowHistory(w io.Writer) error {
	entries, err := LoadHistory()
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}

	if len(entries) == 0 {
		fmt.Fprintln(w, "No transfer history found.")
		return nil
	}

	// DATE | ROLE | PEER | FILE | SIZE | CHUNKS | TIME | STATUS
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %s %s %s %s %s %s %s\n",
		headerStyle.Width(18).Render("DATE"),
		headerStyle.Width(8).Render("ROLE"),
		headerStyle.Width(23).Render("PEER"),
		headerStyle.Width(22).Render("FILE"),
		headerStyle.Width(10).Render("SIZE"),
		headerStyle.Width(8).Render("CHUNKS"),
		headerStyle.Width(8).Render("TIME"),
		headerStyle.Width(10).Render("STATUS"),
	)
	fmt.Fprintln(w)

	for _, e := range entries {
		file := e.FileName
		if len(file) > 20 {
			file = file[:17] + "..."
		}
		status := statusSuccessStr
		if e.Status != StatusSuccess {
			status = statusFailStr
		}
		role := serverRoleStr
		if e.Role == RoleClient {
			role = clientRoleStr
		}

		fmt.Fprintf(w, "%s %s %s %s %s %s %s %s\n",
			rowStyle.Width(18).Render(e.Timestamp.Format("2006-01-02 15:04")),
			rowStyle.Width(8).Render(role),
			rowStyle.Width(23).Render(e.Peer),
			rowStyle.Width(22).Render(file),
			rowStyle.Width(10).Render(FormatBytes(e.FileSize)),
			rowStyle.Width(8).Render(fmt.Sprint(e.Chunks)),
			rowStyle.Width(8).Render(fmt.Sprintf("%.1fs", e.Duration)),
			rowStyle.Width(10).Render(status),
		)
		if e.Error != "" {
			fmt.Fprintf(w, "    %s\n", e.Error)
		}
	}
	fmt.Fprintln(w)
	return nil
}

func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
