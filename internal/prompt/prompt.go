// Package prompt abstracts "ask the logged-in user a timed multiple-choice
// question". The jamfHelper binary does the actual drawing; everything that
// interprets its composite result lives here so the workflow only ever sees
// structured decisions.
package prompt

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Variant selects which dialog the user sees.
type Variant int

const (
	// VariantStandard offers install, three deferral offsets, and postpone.
	VariantStandard Variant = iota
	// VariantForced offers only install; postponements are exhausted.
	VariantForced
	// VariantReminder follows a deferral: install or postpone, nothing else.
	VariantReminder
)

func (v Variant) String() string {
	switch v {
	case VariantStandard:
		return "standard"
	case VariantForced:
		return "forced"
	case VariantReminder:
		return "reminder"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// Outcome is what the user (or the clock) decided.
type Outcome int

const (
	OutcomeInstall Outcome = iota
	OutcomePostpone
	OutcomeDefer
	OutcomeTimedOut
	OutcomeDismissed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInstall:
		return "install"
	case OutcomePostpone:
		return "postpone"
	case OutcomeDefer:
		return "defer"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeDismissed:
		return "dismissed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Decision is the structured result of one prompt. Offset is set only for
// OutcomeDefer.
type Decision struct {
	Outcome Outcome
	Offset  time.Duration
}

// Request describes one prompt to show.
type Request struct {
	Variant       Variant
	Timeout       time.Duration
	Offsets       []time.Duration // deferral choices; standard variant only
	TargetVersion string
	ContactInfo   string
	Remaining     int // postponements left, shown in the standard body text
}

// Notice is a purely informational message that never collects a decision.
type Notice struct {
	Heading string
	Body    string
	// Timeout auto-dismisses the notice; zero keeps it up until closed.
	Timeout time.Duration
}

// Handle refers to a displayed notice process so it can be signalled later.
type Handle struct {
	PID  int
	stop func() error
}

// Close tears the notice down. Safe on a nil handle.
func (h *Handle) Close() error {
	if h == nil || h.stop == nil {
		return nil
	}
	return h.stop()
}

// Prompter is the decision interface the workflow drives.
type Prompter interface {
	// Ask blocks until the user decides, the countdown expires, or the
	// window is dismissed.
	Ask(ctx context.Context, req Request) (Decision, error)
	// Notify shows a fire-and-forget informational notice.
	Notify(notice Notice)
	// NotifyBlocking shows a persistent notice and returns its handle so the
	// installer can terminate it on completion.
	NotifyBlocking(notice Notice) (*Handle, error)
}

// Button identifiers as jamfHelper reports them.
const (
	buttonInstall  = "1"
	buttonPostpone = "2"
	// dismissSentinel is jamfHelper's result when the window process is
	// killed rather than a button clicked.
	dismissSentinel = "239"
)

// decodeHelperResult turns jamfHelper's composite output into a Decision.
//
// The helper smashes the chosen delay and the clicked button into one decimal
// string: "36001" means 3600 seconds selected and button 1 clicked. A bare
// "0"/"1" is button 1, "2" is button 2, and 239 means the window was killed.
// Anything else is malformed and must surface as an error, never as a silent
// default.
func decodeHelperResult(raw string, variant Variant) (Decision, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return Decision{}, fmt.Errorf("empty prompt result")
	}

	if value == dismissSentinel {
		return Decision{Outcome: OutcomeDismissed}, nil
	}

	if _, err := strconv.Atoi(value); err != nil {
		return Decision{}, fmt.Errorf("malformed prompt result %q", raw)
	}

	switch value {
	case "0", buttonInstall:
		return Decision{Outcome: OutcomeInstall}, nil
	case buttonPostpone:
		return Decision{Outcome: OutcomePostpone}, nil
	}

	// Composite delay+button value: everything but the last digit is the
	// chosen delay in seconds.
	if variant == VariantStandard && len(value) > 1 {
		seconds, err := strconv.Atoi(value[:len(value)-1])
		if err != nil {
			return Decision{}, fmt.Errorf("malformed prompt result %q", raw)
		}
		button := value[len(value)-1:]

		switch button {
		case buttonInstall:
			if seconds == 0 {
				return Decision{Outcome: OutcomeInstall}, nil
			}
			return Decision{Outcome: OutcomeDefer, Offset: time.Duration(seconds) * time.Second}, nil
		case buttonPostpone:
			return Decision{Outcome: OutcomePostpone}, nil
		}
	}

	return Decision{}, fmt.Errorf("unrecognized prompt result %q for %s variant", raw, variant)
}
