// Package installer hands the machine over to the macOS installer. Launching
// is the workflow's point of no return: the process is started exactly once,
// never retried, and never supervised beyond passing along the PID to signal
// when preparation completes.
package installer

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/winseng/upgrade-agent/internal/logging"
)

var log = logging.L("installer")

// Handle is an opaque reference to the launched installer process.
type Handle struct {
	PID int
}

// Launcher starts the irreversible upgrade process.
type Launcher interface {
	// Launch starts the installer. signalPID, when non-zero, names a process
	// the installer terminates once preparation finishes (the "preparing"
	// notice shown to the user).
	Launch(ctx context.Context, signalPID int) (Handle, error)
}

// StartOSInstall launches the startosinstall binary bundled inside the
// installer application.
type StartOSInstall struct {
	appPath string
	logPath string
}

// New creates a Launcher for the installer app at appPath, redirecting
// installer output to logPath.
func New(appPath, logPath string) *StartOSInstall {
	return &StartOSInstall{appPath: appPath, logPath: logPath}
}

// Launch starts startosinstall detached and returns as soon as the process
// is running. The OS installer takes over from there; this process's only
// remaining job is to exit cleanly.
func (s *StartOSInstall) Launch(ctx context.Context, signalPID int) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return Handle{}, err
	}

	bin := filepath.Join(s.appPath, "Contents", "Resources", "startosinstall")
	if _, err := os.Stat(bin); err != nil {
		return Handle{}, fmt.Errorf("startosinstall not found in payload: %w", err)
	}

	args := []string{"--agreetolicense", "--nointeraction", "--forcequitapps"}
	if signalPID > 0 {
		args = append(args, "--pidtosignal", strconv.Itoa(signalPID))
	}

	logFile, err := os.OpenFile(s.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return Handle{}, fmt.Errorf("open install log %s: %w", s.logPath, err)
	}

	// Deliberately not CommandContext: once started, nothing cancels the
	// installer.
	cmd := exec.Command(bin, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return Handle{}, fmt.Errorf("start installer: %w", err)
	}
	logFile.Close()

	pid := cmd.Process.Pid
	log.Info("installer launched",
		"pid", pid,
		"signalPid", signalPID,
		"log", s.logPath,
	)

	// Release so the installer survives this process exiting.
	if err := cmd.Process.Release(); err != nil {
		log.Warn("failed to release installer process handle", "error", err)
	}

	return Handle{PID: pid}, nil
}
