package shutdown

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"httpbridge/pkg/logger"
)

// replaced in tests
var exit = os.Exit

type exitRequest struct {
	Time      string            `json:"time"`
	Reason    string            `json:"reason"`
	Cmd       string            `json:"cmd"`
	CrashPath string            `json:"crash_path,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// StateDir returns the directory crash dumps are written to.
// HTTPBRIDGE_STATE_DIR overrides the default "./state".
func StateDir() string {
	if d := os.Getenv("HTTPBRIDGE_STATE_DIR"); d != "" {
		return d
	}
	return "./state"
}

// Abort logs a fatal startup error, writes a crash dump and exits with
// status 2 after delaySeconds (default 0).
func Abort(contextMsg string, err error, delaySeconds ...int) {
	delay := 0
	if len(delaySeconds) > 0 && delaySeconds[0] >= 0 {
		delay = delaySeconds[0]
	}
	logger.Error("startup_fatal", "msg", contextMsg, "error", err)
	dumpPath, reqPath, derr := AbortWithDiagnostics(StateDir(), contextMsg, err)
	if derr != nil {
		logger.Error("abort_with_diagnostics_failed", "error", derr)
		fmt.Fprintf(os.Stderr, "FAILED TO WRITE CRASH DUMP: %v\n", derr)
	} else {
		logger.Info("wrote_crash_dump", "path", dumpPath, "request", reqPath)
		fmt.Fprintf(os.Stderr, "CRASH DUMP WRITTEN: %s\n", dumpPath)
	}
	for i := delay; i > 0; i-- {
		logger.Info("exiting_in_seconds", "seconds", i)
		time.Sleep(1 * time.Second)
	}
	logger.Sync()
	exit(2)
}

// AbortWithDiagnostics writes a crash dump with all goroutine stacks under
// dir/crash and an abort request referencing it under dir/abort.
func AbortWithDiagnostics(dir, reason string, err error) (string, string, error) {
	crashDir := filepath.Join(dir, "crash")
	abortDir := filepath.Join(dir, "abort")
	if e := os.MkdirAll(crashDir, 0o700); e != nil {
		return "", "", fmt.Errorf("failed to create crash dir: %w", e)
	}
	if e := os.MkdirAll(abortDir, 0o700); e != nil {
		return "", "", fmt.Errorf("failed to create abort dir: %w", e)
	}

	ts := time.Now().UnixNano()
	dumpPath := filepath.Join(crashDir, fmt.Sprintf("crash-%d.log", ts))

	f, ferr := os.CreateTemp(crashDir, ".crash-*.tmp")
	if ferr != nil {
		return "", "", fmt.Errorf("failed to create temp crash file: %w", ferr)
	}
	tmpName := f.Name()
	defer func() { _ = os.Remove(tmpName) }()

	fmt.Fprintf(f, "time: %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(f, "reason: %s\n", reason)
	fmt.Fprintf(f, "error: %v\n", err)
	fmt.Fprintf(f, "go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(f, "\n--- goroutine stacks ---\n")
	buf := make([]byte, 1<<20)
	n := runtime.Stack(buf, true)
	_, _ = f.Write(buf[:n])
	_ = f.Sync()
	_ = f.Close()

	if err := os.Rename(tmpName, dumpPath); err != nil {
		return "", "", fmt.Errorf("failed to move crash dump into place: %w", err)
	}
	_ = os.Chmod(dumpPath, 0o600)

	req := exitRequest{
		Time:      time.Now().UTC().Format(time.RFC3339),
		Reason:    reason,
		Cmd:       "crash",
		CrashPath: dumpPath,
		Meta:      map[string]string{"pid": fmt.Sprintf("%d", os.Getpid())},
	}
	reqPath := filepath.Join(abortDir, fmt.Sprintf("req-%d.json", ts))
	if err := writeJSONAtomic(abortDir, reqPath, req); err != nil {
		return dumpPath, "", err
	}
	return dumpPath, reqPath, nil
}

func writeJSONAtomic(dir, path string, v any) error {
	tmp, err := os.CreateTemp(dir, ".req-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp req file: %w", err)
	}
	name := tmp.Name()
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		_ = os.Remove(name)
		return fmt.Errorf("failed to encode req: %w", err)
	}
	_ = tmp.Sync()
	_ = tmp.Close()
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("failed to move req into place: %w", err)
	}
	_ = os.Chmod(path, 0o600)
	return nil
}

// SetupSignalHandler returns a context that is cancelled on SIGINT or
// SIGTERM. SIGPIPE dumps goroutine stacks and cancels as well. Calling the
// returned cancel func stops watching.
func SetupSignalHandler(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	sigpipe := make(chan os.Signal, 1)
	signal.Notify(sigpipe, syscall.SIGPIPE)

	go func() {
		defer signal.Stop(sigc)
		defer signal.Stop(sigpipe)
		select {
		case s := <-sigc:
			logger.Info("signal_received", "signal", s.String(), "msg", "shutdown requested")
		case s := <-sigpipe:
			logger.Info("signal_received", "signal", s.String(), "msg", "SIGPIPE - dumping goroutine stacks")
			buf := make([]byte, 1<<20)
			n := runtime.Stack(buf, true)
			logger.Info("goroutine_stack_dump", "dump", string(buf[:n]))
		case <-ctx.Done():
			return
		}
		cancel()
	}()

	return ctx, cancel
}
