// Package gate holds the precondition checks that guard the upgrade
// workflow. The cheap checks (version, payload, display busy, encryption)
// run once before any prompting; the power and free-space checks run again
// immediately before the irreversible install step, because hours may pass
// between the user's decision and the installer actually launching.
package gate

import (
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/winseng/upgrade-agent/internal/logging"
	"github.com/winseng/upgrade-agent/internal/sysinfo"
)

var log = logging.L("gate")

// Status classifies a check outcome.
type Status int

const (
	// StatusPass means the workflow may continue.
	StatusPass Status = iota
	// StatusAbort means the workflow must terminate with a failure exit code.
	StatusAbort
	// StatusWait means conditions are temporarily unsuitable; the workflow
	// exits silently and the scheduler retries on its next run.
	StatusWait
)

// Result is the outcome of a single check, computed fresh each time.
type Result struct {
	Status Status
	Reason string
}

// Pass returns a passing result.
func Pass() Result {
	return Result{Status: StatusPass}
}

// Abort returns a terminal failure result.
func Abort(reason string) Result {
	return Result{Status: StatusAbort, Reason: reason}
}

// Wait returns a soft-wait result.
func Wait(reason string) Result {
	return Result{Status: StatusWait, Reason: reason}
}

// Env is the system state the checks consult. sysinfo.Querier is the live
// implementation; tests substitute fakes.
type Env interface {
	OSVersion() (string, error)
	FreeBytes(path string) (uint64, error)
	OnACPower() (bool, error)
	EncryptionInProgress() (bool, error)
	DisplayAssertions() ([]sysinfo.Assertion, error)
	PayloadPresent(path string) bool
}

// CheckVersion aborts when the installed OS major version already meets or
// exceeds the upgrade target. An unreadable installed version fails open:
// prompting a current machine is annoying, skipping an outdated one is a
// compliance gap.
func CheckVersion(env Env, targetVersion string) Result {
	target, err := semver.NewVersion(targetVersion)
	if err != nil {
		log.Warn("unparseable target version, skipping version check", "target", targetVersion, "error", err)
		return Pass()
	}

	installedRaw, err := env.OSVersion()
	if err != nil {
		log.Warn("could not determine installed OS version, skipping version check", "error", err)
		return Pass()
	}

	installed, err := semver.NewVersion(installedRaw)
	if err != nil {
		log.Warn("unparseable installed OS version, skipping version check", "installed", installedRaw, "error", err)
		return Pass()
	}

	if installed.Major() >= target.Major() {
		return Abort(fmt.Sprintf("already current: installed %s, target %s", installedRaw, targetVersion))
	}

	return Pass()
}

// CheckPayload aborts when the installer application is missing from disk.
func CheckPayload(env Env, appPath string) Result {
	if !env.PayloadPresent(appPath) {
		return Abort(fmt.Sprintf("installer payload missing: %s", appPath))
	}
	return Pass()
}

// CheckDisplayBusy returns Wait when a presentation, screen share, or video
// call is holding the display awake. Detection is best effort: if the
// assertion query fails, the check passes rather than silently skipping the
// machine every day.
func CheckDisplayBusy(env Env) Result {
	assertions, err := env.DisplayAssertions()
	if err != nil {
		log.Warn("display assertion query failed, assuming display is free", "error", err)
		return Pass()
	}

	if len(assertions) > 0 {
		first := assertions[0]
		return Wait(fmt.Sprintf("display busy: %s (pid %d) holds %s", first.Process, first.PID, first.Type))
	}

	return Pass()
}

// CheckEncryption aborts while full-disk encryption is still initializing.
func CheckEncryption(env Env) Result {
	inProgress, err := env.EncryptionInProgress()
	if err != nil {
		log.Warn("encryption status query failed, assuming not in progress", "error", err)
		return Pass()
	}

	if inProgress {
		return Abort("encryption in progress")
	}

	return Pass()
}

// CheckFreeSpace aborts when free space on the volume is strictly below
// minGB. Exactly at the threshold passes.
func CheckFreeSpace(env Env, volume string, minGB float64) Result {
	free, err := env.FreeBytes(volume)
	if err != nil {
		log.Warn("free space query failed, assuming sufficient", "volume", volume, "error", err)
		return Pass()
	}

	freeGB := float64(free) / (1 << 30)
	if freeGB < minGB {
		return Abort(fmt.Sprintf("insufficient space: %.1f GB free, %.0f GB required", freeGB, minGB))
	}

	return Pass()
}

// PowerOptions bounds the AC-power retry loop.
type PowerOptions struct {
	Interval    time.Duration
	MaxAttempts int
	// Sleep is injectable for tests; nil means time.Sleep.
	Sleep func(time.Duration)
	// OnBattery is invoked once when battery power is first detected, before
	// polling begins. The controller uses it to show a wait notification.
	OnBattery func()
}

// CheckPower passes immediately on AC power. On battery it polls the power
// source at a fixed interval for a bounded number of attempts, passing as
// soon as AC is restored and aborting once the attempts are exhausted.
// A failed power query counts as battery: this check guards the point of no
// return, so unknown power state must not launch the installer.
func CheckPower(env Env, opts PowerOptions) Result {
	sleep := opts.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	onAC := queryPower(env)
	if onAC {
		return Pass()
	}

	log.Info("on battery power, waiting for AC",
		"interval", opts.Interval,
		"maxAttempts", opts.MaxAttempts,
	)
	if opts.OnBattery != nil {
		opts.OnBattery()
	}

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		sleep(opts.Interval)

		if queryPower(env) {
			log.Info("AC power restored", "attempt", attempt)
			return Pass()
		}
	}

	return Abort(fmt.Sprintf("no AC power after %d polls", opts.MaxAttempts))
}

func queryPower(env Env) bool {
	onAC, err := env.OnACPower()
	if err != nil {
		log.Warn("power source query failed, assuming battery", "error", err)
		return false
	}
	return onAC
}
