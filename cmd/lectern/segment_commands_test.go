package main

import (
	"strings"
	"testing"
)

func TestStartAndStatusOverSocket(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"start", "7", "700"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	requireContains(t, out, "Extraction queued")

	out, _, err = runCLI(t, []string{"status", "7", "700"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Processing")

	out, _, err = runCLI(t, []string{"list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, "700")
}

func TestStartRejectsBadArgs(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"start", "abc", "700"}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "invalid course id") {
		t.Fatalf("expected invalid course id error, got %v", err)
	}
}

func TestApproveBeforeExtractionFails(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"start", "7", "701"}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("start: %v", err)
	}
	_, _, err := runCLI(t, []string{"approve", "7", "701"}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected approve to fail before audio is extracted")
	}
}

func TestHealthReportsCounters(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"start", "7", "702"}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("start: %v", err)
	}
	out, _, err := runCLI(t, []string{"health"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	requireContains(t, out, "In flight")
	requireContains(t, out, "Queued jobs")
}
