//go:build darwin

package sysinfo

import (
	"fmt"
	"os/exec"
	"strings"
)

func osVersion() (string, error) {
	out, err := exec.Command("sw_vers", "-productVersion").Output()
	if err != nil {
		log.Warn("sw_vers failed, falling back to host info", "error", err)
		return hostVersion()
	}

	version := strings.TrimSpace(string(out))
	if version == "" {
		return "", fmt.Errorf("sw_vers returned empty version")
	}
	return version, nil
}

func onACPower() (bool, error) {
	out, err := exec.Command("pmset", "-g", "ps").Output()
	if err != nil {
		return false, fmt.Errorf("pmset power source query: %w", err)
	}
	return parsePowerSource(string(out)), nil
}

func encryptionInProgress() (bool, error) {
	out, err := exec.Command("fdesetup", "status").Output()
	if err != nil {
		return false, fmt.Errorf("fdesetup status: %w", err)
	}
	return parseEncryptionStatus(string(out)), nil
}

func displayAssertions() ([]Assertion, error) {
	out, err := exec.Command("pmset", "-g", "assertions").Output()
	if err != nil {
		return nil, fmt.Errorf("pmset assertions query: %w", err)
	}
	return parseAssertions(string(out)), nil
}
