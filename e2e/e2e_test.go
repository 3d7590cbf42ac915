package e2e

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/darkprince558/flip/internal/audit"
)

// Binary path relative to this test file
const binaryPath = "../bin/flip"

func TestMain(m *testing.M) {
	cmd := exec.Command("go", "build", "-o", binaryPath, "../cmd/flip")
	if out, err := cmd.CombinedOutput(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build binary: %v\n%s\n", err, out)
		os.Exit(1)
	}

	code := m.Run()
	os.Remove(binaryPath)
	os.Exit(code)
}

// env isolates ~/.flip under a temp home.
func env(t *testing.T) (home string, vars []string) {
	t.Helper()
	home = t.TempDir()
	return home, append(os.Environ(), "HOME="+home, "FLIP_CONFIG="+filepath.Join(home, "config.json"))
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

// startServer runs "flip serve" and waits for its Ready line.
func startServer(t *testing.T, vars []string, args ...string) (*exec.Cmd, int) {
	t.Helper()
	port := freePort(t)
	cmd := exec.Command(binaryPath, append([]string{"serve", "--port", fmt.Sprint(port)}, args...)...)
	cmd.Env = vars
	out, err := cmd.StdoutPipe()
	if err != nil {
		t.Fatal(err)
	}
	if err := cmd.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() {
		if cmd.ProcessState == nil {
			cmd.Process.Kill()
			cmd.Wait()
		}
	})

	ready := make(chan struct{})
	go func() {
		scanner := bufio.NewScanner(out)
		signaled := false
		for scanner.Scan() {
			line := scanner.Text()
			t.Logf("[Server] %s", line)
			if !signaled && strings.HasPrefix(line, "Ready: ") {
				close(ready)
				signaled = true
			}
		}
		io.Copy(io.Discard, out)
	}()

	select {
	case <-ready:
	case <-time.After(10 * time.Second):
		t.Fatal("Timeout waiting for server to start")
	}
	return cmd, port
}

func send(vars []string, args ...string) ([]byte, error) {
	cmd := exec.Command(binaryPath, append([]string{"send", "--headless"}, args...)...)
	cmd.Env = vars
	return cmd.CombinedOutput()
}

func TestFileTransfer(t *testing.T) {
	home, vars := env(t)
	_, port := startServer(t, vars)

	srcFile := filepath.Join(home, "payload.txt")
	content := "Hello, flip! This line goes out in pieces and comes back reversed."
	if err := os.WriteFile(srcFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := send(vars, srcFile, "--addr", fmt.Sprintf("127.0.0.1:%d", port), "--min", "3", "--max", "8", "--seed", "42")
	t.Logf("[Client]\n%s", out)
	if err != nil {
		t.Fatalf("Client failed: %v", err)
	}
	if !bytes.Contains(out, []byte("Chunk 1/")) || !bytes.Contains(out, []byte("Done!")) {
		t.Errorf("Missing progress output")
	}

	got, err := os.ReadFile(filepath.Join(home, "reversed_payload.txt"))
	if err != nil {
		t.Fatalf("Failed to read output file: %v", err)
	}
	want := reverse(content)
	if string(got) != want {
		t.Errorf("Content mismatch.\nExpected: %s\nGot: %s", want, got)
	}
}

func TestAuditLog(t *testing.T) {
	home, vars := env(t)
	_, port := startServer(t, vars)

	srcFile := filepath.Join(home, "audit_payload.txt")
	os.WriteFile(srcFile, []byte("Audit"), 0644)
	if out, err := send(vars, srcFile, "--addr", fmt.Sprintf("127.0.0.1:%d", port), "--min", "1", "--max", "2"); err != nil {
		t.Fatalf("Client failed: %v\n%s", err, out)
	}

	data, err := os.ReadFile(filepath.Join(home, ".flip", "history.jsonl"))
	if err != nil {
		t.Fatalf("Failed to read history: %v", err)
	}

	var client, server bool
	for _, line := range bytes.Split(data, []byte("\n")) {
		var entry audit.LogEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		if entry.Status != audit.StatusSuccess {
			continue
		}
		switch {
		case entry.Role == audit.RoleClient && entry.FileName == "audit_payload.txt":
			client = true
		case entry.Role == audit.RoleServer && entry.FileSize > 0:
			server = true
		}
	}
	// The server records after its handler returns, which can trail the client.
	if !client {
		t.Error("Client history entry for 'audit_payload.txt' not found or not successful")
	}
	if !server {
		t.Log("Server entry not yet written")
	}

	histCmd := exec.Command(binaryPath, "history")
	histCmd.Env = vars
	hist, err := histCmd.CombinedOutput()
	if err != nil || !bytes.Contains(hist, []byte("audit_payload")) {
		t.Errorf("history output missing entry: %v\n%s", err, hist)
	}
}

func TestSendFailureExitCode(t *testing.T) {
	home, vars := env(t)
	srcFile := filepath.Join(home, "lost.txt")
	os.WriteFile(srcFile, []byte("nobody listens"), 0644)

	out, err := send(vars, srcFile, "--addr", fmt.Sprintf("127.0.0.1:%d", freePort(t)), "--timeout", "1s")
	if err == nil {
		t.Fatalf("Expected non-zero exit, output:\n%s", out)
	}
	if !bytes.Contains(out, []byte("Error:")) {
		t.Errorf("Expected an error line, got:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(home, "reversed_lost.txt")); !os.IsNotExist(err) {
		t.Error("Output written despite failure")
	}
}

func TestInvalidArguments(t *testing.T) {
	home, vars := env(t)
	srcFile := filepath.Join(home, "x.txt")
	os.WriteFile(srcFile, []byte("x"), 0644)

	cases := [][]string{
		{"--addr", "127.0.0.1:80"},
		{"--addr", "not-an-ip:5000"},
		{"--addr", "127.0.0.1:5000", "--min", "9", "--max", "3"},
		{"--addr", "127.0.0.1:5000", "--max", "5000"},
	}
	for _, args := range cases {
		if out, err := send(vars, append([]string{srcFile}, args...)...); err == nil {
			t.Errorf("send %v should fail, got:\n%s", args, out)
		}
	}

	serve := exec.Command(binaryPath, "serve", "--port", "80")
	serve.Env = vars
	if err := serve.Run(); err == nil {
		t.Error("serve on port 80 should fail validation")
	}
}

func TestServerStopsOnSignal(t *testing.T) {
	_, vars := env(t)
	cmd, _ := startServer(t, vars, "--shutdown-grace", "1s")

	if err := cmd.Process.Signal(syscall.SIGINT); err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Server exited with error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Server did not exit after SIGINT")
	}
}

func TestConfigSetAndShow(t *testing.T) {
	home, vars := env(t)

	set := exec.Command(binaryPath, "config", "set", "max_chunk", "42")
	set.Env = vars
	if out, err := set.CombinedOutput(); err != nil {
		t.Fatalf("config set failed: %v\n%s", err, out)
	}
	bad := exec.Command(binaryPath, "config", "set", "listen_port", "22")
	bad.Env = vars
	if err := bad.Run(); err == nil {
		t.Error("config set listen_port 22 should fail")
	}

	data, err := os.ReadFile(filepath.Join(home, "config.json"))
	if err != nil || !bytes.Contains(data, []byte(`"max_chunk": 42`)) {
		t.Errorf("Config not saved: %v\n%s", err, data)
	}

	show := exec.Command(binaryPath, "config", "show")
	show.Env = vars
	out, err := show.CombinedOutput()
	if err != nil || !bytes.Contains(out, []byte("42")) {
		t.Errorf("config show missing value: %v\n%s", err, out)
	}
}

func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}
