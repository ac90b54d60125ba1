// Package workflow sequences one invocation of the upgrade rollout: gate
// checks, the postponement decision, the optional in-day deferral, the final
// environment re-validation, and the handoff to the installer. It runs the
// state machine exactly once per scheduled invocation; "postpone" means "try
// again tomorrow", never an in-process loop.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/winseng/upgrade-agent/internal/audit"
	"github.com/winseng/upgrade-agent/internal/config"
	"github.com/winseng/upgrade-agent/internal/gate"
	"github.com/winseng/upgrade-agent/internal/installer"
	"github.com/winseng/upgrade-agent/internal/logging"
	"github.com/winseng/upgrade-agent/internal/prompt"
)

var log = logging.L("workflow")

// systemVolume is where the installer unpacks; free space is measured here.
const systemVolume = "/"

// Counter is the postponement store the controller consumes.
type Counter interface {
	Load() (int, error)
	Increment() (int, error)
}

// Controller drives the upgrade workflow to completion or deferral.
type Controller struct {
	cfg      *config.Config
	counter  Counter
	env      gate.Env
	prompter prompt.Prompter
	launcher installer.Launcher
	trail    *audit.Trail

	// Injectable for tests so deferral sleeps and run IDs are deterministic.
	sleep func(time.Duration)
	now   func() time.Time
}

// New wires a Controller from its collaborators. trail may be nil.
func New(cfg *config.Config, counter Counter, env gate.Env, prompter prompt.Prompter, launcher installer.Launcher, trail *audit.Trail) *Controller {
	return &Controller{
		cfg:      cfg,
		counter:  counter,
		env:      env,
		prompter: prompter,
		launcher: launcher,
		trail:    trail,
		sleep:    time.Sleep,
		now:      time.Now,
	}
}

// Run executes one pass of the workflow and returns the process exit code.
func (c *Controller) Run(ctx context.Context) ExitCode {
	runID := c.now().UTC().Format("20060102T150405Z")
	c.trail.Record(audit.EventRunStarted, runID, map[string]any{
		"targetVersion": c.cfg.TargetVersion,
	})

	code := c.run(ctx, runID)

	c.trail.Record(audit.EventRunExit, runID, map[string]any{"exitCode": int(code)})
	log.Info("workflow finished", logging.KeyExitCode, int(code))
	return code
}

func (c *Controller) run(ctx context.Context, runID string) ExitCode {
	// Cheap aborts come first: no point consuming a postponement slot or
	// interrupting the user when the upgrade cannot or need not proceed.
	if code, done := c.gateInitial(runID); done {
		return code
	}

	count, err := c.counter.Load()
	if err != nil {
		// A corrupt counter must not strand the machine; zero restores the
		// full postponement allowance rather than force-installing early.
		log.Warn("postponement counter unreadable, assuming 0", logging.KeyError, err)
		count = 0
	}

	remaining := c.cfg.MaxPostponements - count
	if remaining < 0 {
		remaining = 0
	}
	log.Info("postponement state", "used", count, "max", c.cfg.MaxPostponements, "remaining", remaining)

	variant := prompt.VariantStandard
	if remaining == 0 {
		variant = prompt.VariantForced
	}

	decision, err := c.ask(ctx, runID, variant, remaining)
	if err != nil {
		return c.failUnknown(runID, err)
	}

	if variant == prompt.VariantForced {
		// Every way out of the forced prompt leads to the installer.
		return c.install(ctx, runID)
	}

	switch decision.Outcome {
	case prompt.OutcomeInstall, prompt.OutcomeTimedOut, prompt.OutcomeDismissed:
		return c.install(ctx, runID)
	case prompt.OutcomePostpone:
		return c.postpone(runID)
	case prompt.OutcomeDefer:
		return c.deferAndRemind(ctx, runID, decision.Offset)
	default:
		return c.failUnknown(runID, fmt.Errorf("unrecognized decision outcome %v", decision.Outcome))
	}
}

// gateInitial runs the pre-prompt checks. done is true when the workflow must
// stop with the returned code.
func (c *Controller) gateInitial(runID string) (ExitCode, bool) {
	checks := []struct {
		name   string
		result gate.Result
		code   ExitCode
	}{
		{"version", gate.CheckVersion(c.env, c.cfg.TargetVersion), ExitAlreadyCurrent},
		{"payload", gate.CheckPayload(c.env, c.cfg.InstallerAppPath), ExitPayloadMissing},
		{"encryption", gate.CheckEncryption(c.env), ExitEncryptionInProgress},
		{"display", gate.CheckDisplayBusy(c.env), ExitOK},
	}

	for _, check := range checks {
		switch check.result.Status {
		case gate.StatusAbort:
			log.Info("gate abort", logging.KeyCheck, check.name, "reason", check.result.Reason)
			c.trail.Record(audit.EventGateAbort, runID, map[string]any{
				"check":  check.name,
				"reason": check.result.Reason,
			})
			return check.code, true
		case gate.StatusWait:
			// Intentionally indistinguishable from success: the scheduler
			// retries tomorrow and nobody gets paged about a video call.
			log.Info("gate wait, exiting silently", logging.KeyCheck, check.name, "reason", check.result.Reason)
			c.trail.Record(audit.EventGateWait, runID, map[string]any{
				"check":  check.name,
				"reason": check.result.Reason,
			})
			return ExitOK, true
		}
	}

	return ExitOK, false
}

func (c *Controller) ask(ctx context.Context, runID string, variant prompt.Variant, remaining int) (prompt.Decision, error) {
	offsets := make([]time.Duration, 0, len(c.cfg.DeferralOffsetsSeconds))
	for _, seconds := range c.cfg.DeferralOffsetsSeconds {
		offsets = append(offsets, time.Duration(seconds)*time.Second)
	}

	c.trail.Record(audit.EventPromptShown, runID, map[string]any{
		"variant":   variant.String(),
		"remaining": remaining,
	})

	decision, err := c.prompter.Ask(ctx, prompt.Request{
		Variant:       variant,
		Timeout:       time.Duration(c.cfg.PromptTimeoutSeconds) * time.Second,
		Offsets:       offsets,
		TargetVersion: c.cfg.TargetVersion,
		ContactInfo:   c.cfg.ContactInfo,
		Remaining:     remaining,
	})
	if err != nil {
		return prompt.Decision{}, fmt.Errorf("prompt failed: %w", err)
	}

	c.trail.Record(audit.EventDecision, runID, map[string]any{
		"variant": variant.String(),
		"outcome": decision.Outcome.String(),
		"offset":  decision.Offset.Seconds(),
	})
	return decision, nil
}

// postpone burns one postponement slot and ends the run. A storage failure is
// logged but does not block: the user chose to postpone, and refusing them
// because a file was unwritable would punish them for our disk problem.
func (c *Controller) postpone(runID string) ExitCode {
	newCount, err := c.counter.Increment()
	if err != nil {
		log.Warn("failed to record postponement, honoring it anyway", logging.KeyError, err)
		c.trail.Record(audit.EventPostponed, runID, map[string]any{"recorded": false})
	} else {
		log.Info("postponement recorded", "count", newCount)
		c.trail.Record(audit.EventPostponed, runID, map[string]any{"recorded": true, "count": newCount})
	}

	c.prompter.Notify(prompt.Notice{
		Heading: "Upgrade postponed",
		Body:    "You will be reminded at the next scheduled check.",
	})

	return ExitOK
}

// deferAndRemind suspends the workflow for the chosen offset, then re-prompts
// with the reduced reminder variant. Exactly one reminder: the reminder
// offers no further deferral, bounding the re-prompt cycle.
func (c *Controller) deferAndRemind(ctx context.Context, runID string, offset time.Duration) ExitCode {
	log.Info("deferral chosen", "offset", offset)
	c.trail.Record(audit.EventDeferred, runID, map[string]any{"offsetSeconds": offset.Seconds()})

	c.prompter.Notify(prompt.Notice{
		Heading: "Reminder scheduled",
		Body:    fmt.Sprintf("You will be reminded about the upgrade in %s.", formatOffset(offset)),
	})

	c.sleep(offset)

	decision, err := c.ask(ctx, runID, prompt.VariantReminder, 0)
	if err != nil {
		return c.failUnknown(runID, err)
	}

	switch decision.Outcome {
	case prompt.OutcomeInstall, prompt.OutcomeTimedOut:
		return c.install(ctx, runID)
	case prompt.OutcomePostpone, prompt.OutcomeDismissed:
		return c.postpone(runID)
	default:
		return c.failUnknown(runID, fmt.Errorf("unrecognized reminder outcome %v", decision.Outcome))
	}
}

// install re-validates the environment and hands off to the installer. The
// user may have decided hours ago; power and disk are checked fresh here,
// immediately before the point of no return.
func (c *Controller) install(ctx context.Context, runID string) ExitCode {
	power := gate.CheckPower(c.env, gate.PowerOptions{
		Interval:    time.Duration(c.cfg.PowerPollIntervalSeconds) * time.Second,
		MaxAttempts: c.cfg.PowerPollMaxAttempts,
		Sleep:       c.sleep,
		OnBattery: func() {
			c.prompter.Notify(prompt.Notice{
				Heading: "Connect to power",
				Body:    "The upgrade will start once this Mac is connected to AC power.",
				Timeout: time.Duration(c.cfg.PowerPollIntervalSeconds) * time.Second,
			})
		},
	})
	if power.Status == gate.StatusAbort {
		log.Warn("final power check failed", "reason", power.Reason)
		c.trail.Record(audit.EventGateAbort, runID, map[string]any{"check": "power", "reason": power.Reason})
		return ExitNoACPower
	}

	space := gate.CheckFreeSpace(c.env, systemVolume, c.cfg.MinFreeSpaceGB)
	if space.Status == gate.StatusAbort {
		log.Warn("final space check failed", "reason", space.Reason)
		c.trail.Record(audit.EventGateAbort, runID, map[string]any{"check": "space", "reason": space.Reason})
		c.prompter.Notify(prompt.Notice{
			Heading: "Not enough free space",
			Body:    fmt.Sprintf("The upgrade needs %.0f GB free. Please free up space; it will be retried at the next scheduled check.", c.cfg.MinFreeSpaceGB),
		})
		return ExitInsufficientSpace
	}

	// The preparing notice stays up until the installer signals it: its PID
	// is the completion signal target.
	var signalPID int
	notice, err := c.prompter.NotifyBlocking(prompt.Notice{
		Heading: "Preparing upgrade",
		Body:    "Do not restart or power off this Mac. It will restart automatically when preparation completes.",
	})
	if err != nil {
		log.Warn("failed to show preparing notice, installing without it", logging.KeyError, err)
	} else {
		signalPID = notice.PID
	}

	handle, err := c.launcher.Launch(ctx, signalPID)
	if err != nil {
		notice.Close()
		return c.failUnknown(runID, fmt.Errorf("install handoff: %w", err))
	}

	c.trail.Record(audit.EventInstallLaunched, runID, map[string]any{"installerPid": handle.PID})
	log.Info("handed off to installer", "pid", handle.PID)
	return ExitOK
}

// failUnknown is the never-silent path: the user sees an error notice, the
// log carries the cause, and the scheduler sees the unknown-error code.
func (c *Controller) failUnknown(runID string, err error) ExitCode {
	log.Error("workflow failed", logging.KeyError, err)

	body := "An unexpected error interrupted the upgrade workflow."
	if c.cfg.ContactInfo != "" {
		body += " Please contact " + c.cfg.ContactInfo + "."
	}
	c.prompter.Notify(prompt.Notice{Heading: "Upgrade error", Body: body})

	return ExitUnknown
}

func formatOffset(offset time.Duration) string {
	hours := int(offset / time.Hour)
	minutes := int(offset/time.Minute) % 60

	switch {
	case hours > 0 && minutes > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%d hour(s)", hours)
	default:
		return fmt.Sprintf("%d minute(s)", minutes)
	}
}
