package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gofrs/flock"

	"github.com/darkprince558/flip/internal/audit"
	"github.com/darkprince558/flip/internal/chunk"
	"github.com/darkprince558/flip/internal/client"
	"github.com/darkprince558/flip/internal/config"
	"github.com/darkprince558/flip/internal/discovery"
	"github.com/darkprince558/flip/internal/textenc"
	"github.com/darkprince558/flip/internal/transport"
	"github.com/darkprince558/flip/internal/ui"
)

// OutputPrefix is prepended to the input's base name for the default output.
const OutputPrefix = "reversed_"

// SendOptions configures one run of flip send.
type SendOptions struct {
	File string
	// Addr is an IPv4 ip:port. When empty, Name is resolved instead.
	Addr        string
	Name        string
	RegistryURL string
	Out         string
	Min, Max    int
	// Seed makes the partition reproducible. Zero picks one from the clock.
	Seed      int64
	Timeout   time.Duration
	Transport transport.Kind
	Encoding  string
	Copy      bool
	NoHistory bool
}

// SendResult is what a successful run produced.
type SendResult struct {
	Output string
	Chunks int
	Bytes  int64
	Addr   string
}

// DefaultOutput is reversed_<base> next to the input.
func DefaultOutput(input string) string {
	return filepath.Join(filepath.Dir(input), OutputPrefix+filepath.Base(input))
}

// RunSend handles the main sending logic. With p == nil it prints plain
// status lines instead of driving the UI.
func RunSend(ctx context.Context, p *tea.Program, opts SendOptions) (res SendResult, finalErr error) {
	startTime := time.Now()
	var fileSize int64

	sendMsg := func(msg tea.Msg) {
		if p != nil {
			p.Send(msg)
			return
		}
		// Headless fallback
		switch m := msg.(type) {
		case ui.ErrorMsg:
			fmt.Println("Error:", m)
		case ui.StatusMsg:
			fmt.Println("Status:", m)
		case ui.ProgressMsg:
			fmt.Printf("Chunk %d/%d processed %s\n", m.Chunk, m.Total, ui.ViewProgress(float64(m.Chunk)/float64(m.Total), 40))
		case ui.DoneMsg:
			fmt.Printf("Done! %s written to %s\n", audit.FormatBytes(m.Bytes), m.Output)
		}
	}

	// Audit Log Defer
	defer func() {
		status := audit.StatusSuccess
		errMsg := ""
		if finalErr != nil {
			status = audit.StatusFailed
			errMsg = finalErr.Error()
			sendMsg(ui.ErrorMsg(finalErr))
		}
		if !opts.NoHistory {
			audit.WriteEntry(audit.LogEntry{
				Timestamp: startTime,
				Role:      audit.RoleClient,
				Peer:      res.Addr,
				FileName:  filepath.Base(opts.File),
				FileSize:  fileSize,
				Chunks:    res.Chunks,
				Output:    res.Output,
				Status:    status,
				Error:     errMsg,
				Duration:  time.Since(startTime).Seconds(),
			})
		}
	}()

	if err := chunk.CheckBounds(opts.Min, opts.Max); err != nil {
		return res, err
	}
	enc, err := textenc.Lookup(opts.Encoding)
	if err != nil {
		return res, err
	}
	kind := opts.Transport
	if kind == "" {
		kind = transport.KindTCP
	}
	dialer, err := transport.NewDialer(kind)
	if err != nil {
		return res, err
	}

	content, err := readInput(opts.File, sendMsg)
	if err != nil {
		return res, err
	}
	fileSize = int64(len(content))
	if err := textenc.Validate(enc, content); err != nil {
		return res, fmt.Errorf("%s: %w", opts.File, err)
	}

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	chunks, err := partition(content, opts.Min, opts.Max, enc, seed)
	if err != nil {
		return res, err
	}
	res.Chunks = len(chunks)
	sendMsg(ui.StatusMsg(fmt.Sprintf("Split %s into %d chunks (sizes %d-%d, seed %d)", audit.FormatBytes(fileSize), len(chunks), opts.Min, opts.Max, seed)))

	addr, err := resolveTarget(ctx, opts, sendMsg)
	if err != nil {
		return res, err
	}
	res.Addr = addr

	sendMsg(ui.StatusMsg(fmt.Sprintf("Connecting to %s over %s...", addr, kind)))
	var done int64
	responses, err := client.Transfer(ctx, addr, chunks, client.Options{
		Timeout:  opts.Timeout,
		Dialer:   dialer,
		Encoding: enc,
		OnChunk: func(pr client.Progress) {
			done += int64(pr.Sent)
			sendMsg(ui.ProgressMsg{
				Chunk:      pr.Index,
				Total:      pr.Total,
				BytesDone:  done,
				BytesTotal: fileSize,
				Rate:       ui.Rate(done, startTime),
			})
		},
	})
	if err != nil {
		return res, err
	}

	output := client.Assemble(responses)
	out := opts.Out
	if out == "" {
		out = DefaultOutput(opts.File)
	}
	if err := WriteFileAtomic(out, output, 0644); err != nil {
		return res, fmt.Errorf("write output: %w", err)
	}
	res.Output = out
	res.Bytes = int64(len(output))

	if opts.Copy {
		text, err := enc.Decode(output)
		if err == nil {
			err = clipboard.WriteAll(text)
		}
		if err != nil {
			sendMsg(ui.StatusMsg(fmt.Sprintf("Warning: clipboard copy failed: %v", err)))
		} else {
			sendMsg(ui.StatusMsg("Output copied to clipboard!"))
		}
	}

	sendMsg(ui.DoneMsg{Output: out, Bytes: res.Bytes})
	return res, nil
}

// readInput reads a regular file while holding a shared lock on it when the
// platform allows one.
func readInput(path string, sendMsg func(tea.Msg)) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", path)
	}

	// Try to Lock (Best Effort)
	fileLock := flock.New(path)
	locked, err := fileLock.TryRLock()
	switch {
	case err != nil:
		sendMsg(ui.StatusMsg(fmt.Sprintf("Warning: Could not enable file lock: %v", err)))
	case !locked:
		sendMsg(ui.StatusMsg("Warning: File is being written by another process. The input may change while it is read."))
	default:
		defer fileLock.Unlock()
	}

	return os.ReadFile(path)
}

func partition(content []byte, min, max int, enc textenc.Encoding, seed int64) ([][]byte, error) {
	src := chunk.NewSource(seed)
	if enc.MultiByte() {
		return chunk.PartitionRunes(content, min, max, src)
	}
	return chunk.Partition(content, min, max, src)
}

func resolveTarget(ctx context.Context, opts SendOptions, sendMsg func(tea.Msg)) (string, error) {
	if opts.Addr != "" {
		if err := config.ValidateAddr(opts.Addr); err != nil {
			return "", err
		}
		return opts.Addr, nil
	}
	if opts.Name == "" {
		return "", errors.New("no server given: use --addr IP:PORT or --to NAME")
	}
	sendMsg(ui.StatusMsg(fmt.Sprintf("Looking for server %q...", opts.Name)))
	addr, err := discovery.NewResolver(opts.RegistryURL).Resolve(ctx, opts.Name)
	if err != nil {
		return "", err
	}
	sendMsg(ui.StatusMsg(fmt.Sprintf("Found %s at %s", opts.Name, addr)))
	return addr, nil
}

// WriteFileAtomic writes data to a temp file in the target directory and
// renames it into place, so a failed run never leaves a partial output.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.partial")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
