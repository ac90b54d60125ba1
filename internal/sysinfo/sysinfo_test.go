package sysinfo

import "testing"

const sampleAssertions = `Assertion status system-wide:
   BackgroundTask                 0
   ApplePushServiceTask           0
   UserIsActive                   1
   PreventUserIdleDisplaySleep    1
   PreventSystemSleep             0
   ExternalMedia                  0
   PreventUserIdleSystemSleep     1
   NetworkClientActive            0
Listed by owning process:
   pid 333(coreaudiod): [0x0000012c00098765] 01:15:49 PreventUserIdleDisplaySleep named: "com.apple.audio.context.preventuseridledisplaysleep"
   pid 4821(zoom.us): [0x0000098100054321] 00:42:10 PreventUserIdleDisplaySleep named: "Video conference in progress"
   pid 612(caffeinate): [0x0000002b00011111] 00:00:05 PreventUserIdleSystemSleep named: "caffeinate command-line tool"
`

func TestParseAssertionsFindsDisplayHolders(t *testing.T) {
	assertions := parseAssertions(sampleAssertions)

	if len(assertions) != 1 {
		t.Fatalf("expected 1 qualifying assertion, got %d: %+v", len(assertions), assertions)
	}
	if assertions[0].Process != "zoom.us" {
		t.Fatalf("expected zoom.us, got %q", assertions[0].Process)
	}
	if assertions[0].PID != 4821 {
		t.Fatalf("expected pid 4821, got %d", assertions[0].PID)
	}
	if assertions[0].Type != "PreventUserIdleDisplaySleep" {
		t.Fatalf("unexpected assertion type %q", assertions[0].Type)
	}
}

func TestParseAssertionsIgnoresAudioDaemon(t *testing.T) {
	output := `Listed by owning process:
   pid 333(coreaudiod): [0x0000012c00098765] 01:15:49 PreventUserIdleDisplaySleep named: "audio playback"
`
	if got := parseAssertions(output); len(got) != 0 {
		t.Fatalf("expected coreaudiod to be filtered, got %+v", got)
	}
}

func TestParseAssertionsIgnoresSystemSleepOnly(t *testing.T) {
	output := `Listed by owning process:
   pid 612(backupd): [0x0000002b00011111] 00:00:05 PreventUserIdleSystemSleep named: "backup"
`
	if got := parseAssertions(output); len(got) != 0 {
		t.Fatalf("expected system-sleep assertion to be ignored, got %+v", got)
	}
}

func TestParseAssertionsNoProcessList(t *testing.T) {
	output := `Assertion status system-wide:
   PreventUserIdleDisplaySleep    0
`
	if got := parseAssertions(output); len(got) != 0 {
		t.Fatalf("expected no assertions, got %+v", got)
	}
}

func TestParsePowerSource(t *testing.T) {
	ac := `Now drawing from 'AC Power'
 -InternalBattery-0 (id=4587619)	100%; charged; 0:00 remaining present: true
`
	battery := `Now drawing from 'Battery Power'
 -InternalBattery-0 (id=4587619)	86%; discharging; 4:12 remaining present: true
`
	if !parsePowerSource(ac) {
		t.Fatal("expected AC power to be detected")
	}
	if parsePowerSource(battery) {
		t.Fatal("expected battery power to be detected")
	}
}

func TestParseEncryptionStatus(t *testing.T) {
	cases := []struct {
		output string
		want   bool
	}{
		{"FileVault is On.", false},
		{"FileVault is Off.", false},
		{"FileVault is On.\nEncryption in progress: Percent completed: 47", true},
		{"FileVault is Off.\nDecryption in progress: Percent completed: 12", false},
	}

	for _, tc := range cases {
		if got := parseEncryptionStatus(tc.output); got != tc.want {
			t.Fatalf("parseEncryptionStatus(%q) = %v, want %v", tc.output, got, tc.want)
		}
	}
}
