package workflow

// ExitCode is the process exit code inspected by the external scheduler.
// These values are part of the deployment contract and must not change.
type ExitCode int

const (
	// ExitOK covers success, postponement, and the silent display-busy wait.
	ExitOK ExitCode = 0
	// ExitUnknown is the catch-all for malformed decisions and launch failures.
	ExitUnknown ExitCode = 10
	// ExitNoACPower means battery power persisted through the whole poll window.
	ExitNoACPower ExitCode = 11
	// ExitPayloadMissing means the installer application is not on disk.
	ExitPayloadMissing ExitCode = 12
	// ExitEncryptionInProgress means full-disk encryption is still initializing.
	ExitEncryptionInProgress ExitCode = 13
	// ExitAlreadyCurrent means the installed OS already meets the target.
	ExitAlreadyCurrent ExitCode = 14
	// ExitInsufficientSpace means free disk space is below the install minimum.
	ExitInsufficientSpace ExitCode = 15
)
