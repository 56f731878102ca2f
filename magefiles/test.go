//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// envZKAddress points the integration tests at a running ZooKeeper ensemble.
const envZKAddress = "BLOOM_ZK_ADDRESS"

// Test groups test targets.
type Test mg.Namespace

// All runs all tests.
func (Test) All() error {
	return sh.RunV(binGo, "test", "-v", "./...")
}

// Unit runs tests in short mode, skipping anything that needs external services.
func (Test) Unit() error {
	return sh.RunV(binGo, "test", "-short", "./...")
}

// Race runs all tests with the race detector.
func (Test) Race() error {
	return sh.RunV(binGo, "test", "-race", "./...")
}

// Cover writes a coverage profile to bin/coverage.out and prints the summary.
func (Test) Cover() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	profile := filepath.Join(binaryDir, "coverage.out")
	if err := sh.RunV(binGo, "test", "-coverprofile", profile, "./..."); err != nil {
		return err
	}
	return sh.RunV(binGo, "tool", "cover", "-func", profile)
}

// Integration runs the ZooKeeper-backed store tests against BLOOM_ZK_ADDRESS.
func (Test) Integration() error {
	if os.Getenv(envZKAddress) == "" {
		fmt.Printf("%s is not set; skipping integration tests.\n", envZKAddress)
		return nil
	}
	return sh.RunV(binGo, "test", "-v", "-run", "Integration", "./internal/zkstore/...")
}
