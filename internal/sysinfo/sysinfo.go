// Package sysinfo answers the environment questions the upgrade workflow
// asks: what OS version is installed, how much disk is free, whether the
// machine is on AC power, whether FileVault is mid-encryption, and whether
// something is holding the display awake. Command output parsing is kept in
// portable functions; only the command invocations are platform-specific.
package sysinfo

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"

	"github.com/winseng/upgrade-agent/internal/logging"
)

var log = logging.L("sysinfo")

// Querier is the live system introspection implementation.
type Querier struct{}

// OSVersion returns the installed OS product version, e.g. "10.15.7".
func (Querier) OSVersion() (string, error) {
	return osVersion()
}

// FreeBytes returns the free space on the volume holding path.
func (Querier) FreeBytes(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, fmt.Errorf("disk usage for %s: %w", path, err)
	}
	return usage.Free, nil
}

// OnACPower reports whether the machine is currently drawing from AC.
func (Querier) OnACPower() (bool, error) {
	return onACPower()
}

// EncryptionInProgress reports whether full-disk encryption is still
// initializing.
func (Querier) EncryptionInProgress() (bool, error) {
	return encryptionInProgress()
}

// DisplayAssertions returns processes currently holding the display awake,
// with known false-positive sources already filtered out.
func (Querier) DisplayAssertions() ([]Assertion, error) {
	return displayAssertions()
}

// PayloadPresent reports whether the installer payload exists on disk.
func (Querier) PayloadPresent(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Assertion is one process-level power-management assertion that prevents
// display sleep.
type Assertion struct {
	PID     int
	Process string
	Type    string
}

// Assertion types that indicate an active presentation, screen share, or
// video call.
var displayAssertionTypes = map[string]bool{
	"PreventUserIdleDisplaySleep": true,
	"NoDisplaySleepAssertion":     true,
}

// Processes that hold display assertions for audio-only playback and must
// not count as "display busy".
var ignoredAssertionProcesses = map[string]bool{
	"coreaudiod": true,
}

// pid 1234(Zoom): [0x...] 00:12:34 PreventUserIdleDisplaySleep named: "..."
var assertionLinePattern = regexp.MustCompile(`^\s*pid\s+(\d+)\(([^)]*)\):.*?\b(\w+)\s+named:`)

// parseAssertions extracts qualifying display assertions from
// `pmset -g assertions` output.
func parseAssertions(output string) []Assertion {
	var assertions []Assertion

	for _, line := range strings.Split(output, "\n") {
		matches := assertionLinePattern.FindStringSubmatch(line)
		if len(matches) != 4 {
			continue
		}
		if !displayAssertionTypes[matches[3]] {
			continue
		}

		process := strings.TrimSpace(matches[2])
		if ignoredAssertionProcesses[process] {
			continue
		}

		var pid int
		fmt.Sscanf(matches[1], "%d", &pid)
		assertions = append(assertions, Assertion{
			PID:     pid,
			Process: process,
			Type:    matches[3],
		})
	}

	return assertions
}

// parsePowerSource reports AC power from `pmset -g ps` output, which starts
// with a line like: Now drawing from 'AC Power'
func parsePowerSource(output string) bool {
	return strings.Contains(output, "'AC Power'")
}

// parseEncryptionStatus reports in-progress encryption from `fdesetup status`
// output. A fully encrypted or unencrypted disk both count as "not in
// progress".
func parseEncryptionStatus(output string) bool {
	return strings.Contains(strings.ToLower(output), "encryption in progress")
}

// hostVersion is the gopsutil fallback when the platform tool is missing.
func hostVersion() (string, error) {
	info, err := host.Info()
	if err != nil {
		return "", fmt.Errorf("host info: %w", err)
	}
	if info.PlatformVersion == "" {
		return "", fmt.Errorf("host info reported no platform version")
	}
	return info.PlatformVersion, nil
}
