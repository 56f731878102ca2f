//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo   = "go"
	binLint = "golangci-lint"

	binaryDir = "bin"
	cmdDir    = "./cmd/bloom"

	// smokeDecl is the declaration file the smoke target checks.
	smokeDecl = "internal/decl/testdata/app.hcl"
)

var binaryPath = filepath.Join(binaryDir, "bloom")

// Build compiles the bloom binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV(binGo, "build", "-o", binaryPath, cmdDir)
}

// Lint runs go vet, then golangci-lint.
func Lint() error {
	if err := sh.RunV(binGo, "vet", "./..."); err != nil {
		return err
	}
	return sh.RunV(binLint, "run", "./...")
}

// Smoke builds bloom and runs "bloom check" and "bloom kinds" against a
// scratch config and data directory.
func Smoke() error {
	mg.Deps(Build)
	tmp, err := os.MkdirTemp("", "bloom-smoke-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	dirs := []string{
		"--config-dir", filepath.Join(tmp, "config"),
		"--data-dir", filepath.Join(tmp, "data"),
	}
	if err := sh.RunV(binaryPath, append(dirs, "check", smokeDecl)...); err != nil {
		return err
	}
	return sh.RunV(binaryPath, append(dirs, "--json", "kinds")...)
}

// CI runs lint, the full test suite and the smoke check.
func CI() {
	mg.SerialDeps(Lint, Test.All, Smoke)
}

// Clean removes build artifacts.
func Clean() error {
	return os.RemoveAll(binaryDir)
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	return sh.Copy(filepath.Join(gopath, "bin", filepath.Base(binaryPath)), binaryPath)
}
