package prompt

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/winseng/upgrade-agent/internal/logging"
)

var log = logging.L("prompt")

const (
	defaultTitle  = "Managed Software Update"
	labelInstall  = "Install Now"
	labelPostpone = "Postpone"
)

// JamfHelper renders prompts through the Jamf binary of the same name.
// The binary prints its composite result to stdout and exits.
type JamfHelper struct {
	helperPath string
	iconPath   string
}

// NewJamfHelper creates a prompter using the helper binary at helperPath.
// iconPath is optional.
func NewJamfHelper(helperPath, iconPath string) *JamfHelper {
	return &JamfHelper{helperPath: helperPath, iconPath: iconPath}
}

// Ask shows the dialog for the requested variant and blocks until it
// resolves. The helper's own countdown enforces the timeout, so the context
// here only guards against the helper never exiting at all.
func (j *JamfHelper) Ask(ctx context.Context, req Request) (Decision, error) {
	args := j.askArgs(req)

	log.Debug("showing prompt", "variant", req.Variant.String(), "timeout", req.Timeout)

	cmd := exec.CommandContext(ctx, j.helperPath, args...)
	out, err := cmd.Output()

	raw := strings.TrimSpace(string(out))
	if raw == "" {
		if exitErr, ok := err.(*exec.ExitError); ok {
			// Older helper builds report the button via exit code only.
			raw = strconv.Itoa(exitErr.ExitCode())
		} else if err != nil {
			return Decision{}, fmt.Errorf("run prompt helper: %w", err)
		}
	}

	decision, err := decodeHelperResult(raw, req.Variant)
	if err != nil {
		return Decision{}, err
	}

	log.Info("prompt resolved",
		"variant", req.Variant.String(),
		"outcome", decision.Outcome.String(),
		"offset", decision.Offset,
	)
	return decision, nil
}

// Notify shows a self-dismissing informational window without waiting for it.
func (j *JamfHelper) Notify(notice Notice) {
	args := j.noticeArgs(notice, true)

	cmd := exec.Command(j.helperPath, args...)
	if err := cmd.Start(); err != nil {
		log.Warn("failed to show notice", "heading", notice.Heading, "error", err)
		return
	}
	go cmd.Wait()
}

// NotifyBlocking shows a persistent notice and returns its handle. The
// caller owns the handle; the installer kills the PID when it finishes
// preparing.
func (j *JamfHelper) NotifyBlocking(notice Notice) (*Handle, error) {
	args := j.noticeArgs(notice, false)

	cmd := exec.Command(j.helperPath, args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("show blocking notice: %w", err)
	}
	go cmd.Wait()

	return &Handle{
		PID:  cmd.Process.Pid,
		stop: cmd.Process.Kill,
	}, nil
}

func (j *JamfHelper) askArgs(req Request) []string {
	args := []string{
		"-windowType", "utility",
		"-title", defaultTitle,
		"-heading", fmt.Sprintf("macOS %s upgrade required", req.TargetVersion),
		"-description", bodyText(req),
		"-button1", labelInstall,
		"-defaultButton", "1",
		"-timeout", strconv.Itoa(int(req.Timeout / time.Second)),
		"-countdown",
	}
	if j.iconPath != "" {
		args = append(args, "-icon", j.iconPath)
	}

	switch req.Variant {
	case VariantStandard:
		args = append(args,
			"-button2", labelPostpone,
			"-showDelayOptions", delayOptions(req.Offsets),
		)
	case VariantReminder:
		args = append(args, "-button2", labelPostpone)
	case VariantForced:
		// Install is the only way out.
		args = append(args, "-lockHUD")
	}

	return args
}

func (j *JamfHelper) noticeArgs(notice Notice, autoDismiss bool) []string {
	args := []string{
		"-windowType", "hud",
		"-title", defaultTitle,
		"-heading", notice.Heading,
		"-description", notice.Body,
		"-lockHUD",
	}
	if j.iconPath != "" {
		args = append(args, "-icon", j.iconPath)
	}
	if autoDismiss {
		timeout := notice.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		args = append(args, "-timeout", strconv.Itoa(int(timeout/time.Second)))
	}
	return args
}

// delayOptions renders the deferral offsets the way the helper expects:
// a comma-separated seconds list with a leading 0 for "start now".
func delayOptions(offsets []time.Duration) string {
	parts := []string{"0"}
	for _, offset := range offsets {
		parts = append(parts, strconv.Itoa(int(offset/time.Second)))
	}
	return strings.Join(parts, ", ")
}

func bodyText(req Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "This Mac must be upgraded to macOS %s.\n\n", req.TargetVersion)

	switch req.Variant {
	case VariantStandard:
		fmt.Fprintf(&b, "You may install now, remind yourself later today, or postpone until the next scheduled check.\n")
		fmt.Fprintf(&b, "Postponements remaining: %d.\n", req.Remaining)
	case VariantForced:
		b.WriteString("All postponements have been used. The upgrade will begin when you click Install Now, or automatically when the countdown ends.\n")
	case VariantReminder:
		b.WriteString("This is your deferral reminder. Install now, or postpone until the next scheduled check.\n")
	}

	b.WriteString("\nSave your work before installing. The upgrade takes 30-60 minutes and restarts this Mac.")

	if req.ContactInfo != "" {
		fmt.Fprintf(&b, "\n\nQuestions? Contact %s.", req.ContactInfo)
	}

	return b.String()
}
