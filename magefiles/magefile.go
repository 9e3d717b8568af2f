//go:build mage

// Package main provides build targets for the flocksync project using Mage.
//
// Usage:
//
//	mage build     Compile the server and agent binaries to bin/
//	mage test      Run all tests
//	mage cover     Run tests with coverage report
//	mage lint      Run golangci-lint
//	mage generate  Run go generate (mocks)
//	mage clean     Remove build artifacts
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const binaryDir = "bin"

var binaries = map[string]string{
	"flocksync-server": "./cmd/server",
	"flocksync-agent":  "./cmd/agent",
}

func ldflags() string {
	version, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	if err != nil {
		version = "dev"
	}
	commit, err := sh.Output("git", "rev-parse", "--short", "HEAD")
	if err != nil {
		commit = "unknown"
	}
	date := time.Now().UTC().Format(time.RFC3339)
	return fmt.Sprintf("-X main.Version=%s -X main.GitCommit=%s -X main.BuildDate=%s",
		version, commit, date)
}

// Build compiles the server and agent binaries to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	flags := ldflags()
	for name, dir := range binaries {
		out := filepath.Join(binaryDir, name)
		if err := sh.RunV("go", "build", "-ldflags", flags, "-o", out, dir); err != nil {
			return err
		}
	}
	return nil
}

// Test runs all tests.
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Cover runs tests with a coverage report.
func Cover() error {
	if err := sh.RunV("go", "test", "-coverprofile=coverage.out", "./..."); err != nil {
		return err
	}
	return sh.RunV("go", "tool", "cover", "-func=coverage.out")
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV("golangci-lint", "run", "./...")
}

// Generate regenerates mocks.
func Generate() error {
	return sh.RunV("go", "generate", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	_ = os.Remove("coverage.out")
	return sh.RunV("go", "clean")
}

// Install builds and copies both binaries to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output("go", "env", "GOPATH")
	if err != nil {
		return err
	}
	for name := range binaries {
		src := filepath.Join(binaryDir, name)
		dst := filepath.Join(gopath, "bin", name)
		if err := sh.Copy(dst, src); err != nil {
			return err
		}
	}
	return nil
}
