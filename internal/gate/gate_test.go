package gate

import (
	"errors"
	"testing"
	"time"

	"github.com/winseng/upgrade-agent/internal/sysinfo"
)

type fakeEnv struct {
	osVersion     string
	osVersionErr  error
	freeBytes     uint64
	freeBytesErr  error
	acSequence    []bool // consumed one per OnACPower call; last value repeats
	acErr         error
	acCalls       int
	encrypting    bool
	encryptingErr error
	assertions    []sysinfo.Assertion
	assertionsErr error
	payload       bool
}

func (f *fakeEnv) OSVersion() (string, error) {
	return f.osVersion, f.osVersionErr
}

func (f *fakeEnv) FreeBytes(string) (uint64, error) {
	return f.freeBytes, f.freeBytesErr
}

func (f *fakeEnv) OnACPower() (bool, error) {
	f.acCalls++
	if f.acErr != nil {
		return false, f.acErr
	}
	if len(f.acSequence) == 0 {
		return false, nil
	}
	idx := f.acCalls - 1
	if idx >= len(f.acSequence) {
		idx = len(f.acSequence) - 1
	}
	return f.acSequence[idx], nil
}

func (f *fakeEnv) EncryptionInProgress() (bool, error) {
	return f.encrypting, f.encryptingErr
}

func (f *fakeEnv) DisplayAssertions() ([]sysinfo.Assertion, error) {
	return f.assertions, f.assertionsErr
}

func (f *fakeEnv) PayloadPresent(string) bool {
	return f.payload
}

func TestCheckVersionAbortsWhenAlreadyCurrent(t *testing.T) {
	env := &fakeEnv{osVersion: "11.0.1"}

	result := CheckVersion(env, "11")
	if result.Status != StatusAbort {
		t.Fatalf("expected abort for installed 11.0.1 target 11, got %+v", result)
	}
}

func TestCheckVersionAbortsWhenAheadOfTarget(t *testing.T) {
	env := &fakeEnv{osVersion: "12.3"}

	if result := CheckVersion(env, "11"); result.Status != StatusAbort {
		t.Fatalf("expected abort for installed 12.3 target 11, got %+v", result)
	}
}

func TestCheckVersionPassesWhenBehindTarget(t *testing.T) {
	env := &fakeEnv{osVersion: "10.15.7"}

	if result := CheckVersion(env, "11"); result.Status != StatusPass {
		t.Fatalf("expected pass for installed 10.15.7 target 11, got %+v", result)
	}
}

func TestCheckVersionFailsOpenOnQueryError(t *testing.T) {
	env := &fakeEnv{osVersionErr: errors.New("sw_vers exploded")}

	if result := CheckVersion(env, "11"); result.Status != StatusPass {
		t.Fatalf("expected fail-open pass, got %+v", result)
	}
}

func TestCheckPayload(t *testing.T) {
	if result := CheckPayload(&fakeEnv{payload: true}, "/Applications/Install macOS.app"); result.Status != StatusPass {
		t.Fatalf("expected pass when payload present, got %+v", result)
	}
	if result := CheckPayload(&fakeEnv{payload: false}, "/Applications/Install macOS.app"); result.Status != StatusAbort {
		t.Fatalf("expected abort when payload missing, got %+v", result)
	}
}

func TestCheckDisplayBusyReturnsWait(t *testing.T) {
	env := &fakeEnv{assertions: []sysinfo.Assertion{
		{PID: 4821, Process: "zoom.us", Type: "PreventUserIdleDisplaySleep"},
	}}

	result := CheckDisplayBusy(env)
	if result.Status != StatusWait {
		t.Fatalf("expected wait, got %+v", result)
	}
}

func TestCheckDisplayBusyPassesWhenIdle(t *testing.T) {
	if result := CheckDisplayBusy(&fakeEnv{}); result.Status != StatusPass {
		t.Fatalf("expected pass, got %+v", result)
	}
}

func TestCheckDisplayBusyFailsOpenOnQueryError(t *testing.T) {
	env := &fakeEnv{assertionsErr: errors.New("pmset missing")}

	if result := CheckDisplayBusy(env); result.Status != StatusPass {
		t.Fatalf("expected fail-open pass, got %+v", result)
	}
}

func TestCheckEncryption(t *testing.T) {
	if result := CheckEncryption(&fakeEnv{encrypting: true}); result.Status != StatusAbort {
		t.Fatalf("expected abort while encrypting, got %+v", result)
	}
	if result := CheckEncryption(&fakeEnv{encrypting: false}); result.Status != StatusPass {
		t.Fatalf("expected pass when settled, got %+v", result)
	}
}

func TestCheckFreeSpaceBoundary(t *testing.T) {
	const gb = 1 << 30

	cases := []struct {
		freeGB uint64
		want   Status
	}{
		{39, StatusAbort},
		{40, StatusPass},
		{41, StatusPass},
	}

	for _, tc := range cases {
		env := &fakeEnv{freeBytes: tc.freeGB * gb}
		result := CheckFreeSpace(env, "/", 40)
		if result.Status != tc.want {
			t.Fatalf("free %d GB: expected status %v, got %+v", tc.freeGB, tc.want, result)
		}
	}
}

func TestCheckPowerPassesImmediatelyOnAC(t *testing.T) {
	env := &fakeEnv{acSequence: []bool{true}}

	result := CheckPower(env, PowerOptions{Interval: 15 * time.Second, MaxAttempts: 20, Sleep: func(time.Duration) {}})
	if result.Status != StatusPass {
		t.Fatalf("expected pass, got %+v", result)
	}
	if env.acCalls != 1 {
		t.Fatalf("expected a single power query, got %d", env.acCalls)
	}
}

func TestCheckPowerPassesWhenACRestoredMidPoll(t *testing.T) {
	// Battery on the initial check and the first two polls, AC on the third.
	env := &fakeEnv{acSequence: []bool{false, false, false, true}}

	var slept []time.Duration
	var notified int
	result := CheckPower(env, PowerOptions{
		Interval:    15 * time.Second,
		MaxAttempts: 20,
		Sleep:       func(d time.Duration) { slept = append(slept, d) },
		OnBattery:   func() { notified++ },
	})

	if result.Status != StatusPass {
		t.Fatalf("expected pass after AC restore, got %+v", result)
	}
	if len(slept) != 3 {
		t.Fatalf("expected 3 sleeps before AC restore, got %d", len(slept))
	}
	for _, d := range slept {
		if d != 15*time.Second {
			t.Fatalf("expected 15s interval, got %v", d)
		}
	}
	if notified != 1 {
		t.Fatalf("expected exactly one battery notification, got %d", notified)
	}
}

func TestCheckPowerAbortsAfterExhaustingPolls(t *testing.T) {
	env := &fakeEnv{acSequence: []bool{false}}

	var sleeps int
	result := CheckPower(env, PowerOptions{
		Interval:    15 * time.Second,
		MaxAttempts: 20,
		Sleep:       func(time.Duration) { sleeps++ },
	})

	if result.Status != StatusAbort {
		t.Fatalf("expected abort, got %+v", result)
	}
	if sleeps != 20 {
		t.Fatalf("expected 20 polls, got %d", sleeps)
	}
	// Initial check plus one query per poll.
	if env.acCalls != 21 {
		t.Fatalf("expected 21 power queries, got %d", env.acCalls)
	}
}

func TestCheckPowerTreatsQueryErrorAsBattery(t *testing.T) {
	env := &fakeEnv{acErr: errors.New("pmset missing")}

	result := CheckPower(env, PowerOptions{Interval: time.Second, MaxAttempts: 2, Sleep: func(time.Duration) {}})
	if result.Status != StatusAbort {
		t.Fatalf("expected abort when power state is unknowable, got %+v", result)
	}
}
