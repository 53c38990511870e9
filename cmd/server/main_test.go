// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

package main

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
)

func parseFlags(t *testing.T, args ...string) (flags, string, error) {
	t.Helper()
	var f flags
	var out bytes.Buffer
	parser, err := newParser(&f,
		kong.Writers(&out, &out),
		kong.Exit(func(int) {}),
	)
	if err != nil {
		t.Fatalf("newParser() error = %v", err)
	}
	_, err = parser.Parse(args)
	return f, out.String(), err
}

func TestFlags_Config(t *testing.T) {
	f, _, err := parseFlags(t, "--config", "/etc/spire/config.yaml")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if f.Config != "/etc/spire/config.yaml" {
		t.Errorf("Config = %q, want /etc/spire/config.yaml", f.Config)
	}
}

func TestFlags_ConfigFromEnv(t *testing.T) {
	t.Setenv("CONFIG_PATH", "/srv/spire.yaml")

	f, _, err := parseFlags(t)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if f.Config != "/srv/spire.yaml" {
		t.Errorf("Config = %q, want /srv/spire.yaml", f.Config)
	}
}

func TestFlags_Defaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "unused")
	os.Unsetenv("CONFIG_PATH")

	f, _, err := parseFlags(t)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if f.Config != "" {
		t.Errorf("Config = %q, want empty", f.Config)
	}
}

func TestFlags_Version(t *testing.T) {
	_, out, _ := parseFlags(t, "--version")
	if !strings.Contains(out, version) {
		t.Errorf("--version output = %q, want %q", out, version)
	}
}

func TestFlags_UnknownFlag(t *testing.T) {
	if _, _, err := parseFlags(t, "--listen", ":9000"); err == nil {
		t.Error("Parse(--listen) error = nil, want unknown flag error")
	}
}
