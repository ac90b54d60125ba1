//go:build !darwin

package sysinfo

import "fmt"

// The upgrade workflow only ships to macOS fleets; these stubs keep the tree
// building on other platforms for development and CI.

func osVersion() (string, error) {
	return hostVersion()
}

func onACPower() (bool, error) {
	return false, fmt.Errorf("power source detection not supported on this platform")
}

func encryptionInProgress() (bool, error) {
	return false, fmt.Errorf("encryption status not supported on this platform")
}

func displayAssertions() ([]Assertion, error) {
	return nil, fmt.Errorf("display assertions not supported on this platform")
}
