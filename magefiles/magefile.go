//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main provides build targets for the bloomstate project using Mage.
//
// Usage:
//
//	mage build             Compile the bloom binary to bin/
//	mage test:all          Run all tests
//	mage test:unit         Run tests in short mode
//	mage test:race         Run all tests with the race detector
//	mage test:cover        Write coverage to bin/coverage.out
//	mage test:integration  Run ZooKeeper-backed tests (needs BLOOM_ZK_ADDRESS)
//	mage lint              Run go vet and golangci-lint
//	mage smoke             Build bloom and check internal/decl/testdata/app.hcl
//	mage ci                Lint, test:all, then smoke
//	mage clean             Remove build artifacts
//	mage install           Install bloom to GOPATH/bin
package main

// Default is the target run by a bare "mage".
var Default = Build
