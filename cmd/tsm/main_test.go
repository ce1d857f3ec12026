package main

import (
	"testing"

	"github.com/mikey-austin/tsmusic/internal/core"
)

func TestSplitVolumeArgs(t *testing.T) {
	cases := []struct {
		args     []string
		selector string
		value    string
		wantErr  bool
	}{
		{args: []string{"40"}, value: "40"},
		{args: []string{"+5"}, value: "+5"},
		{args: []string{"-5"}, value: "-5"},
		{args: []string{"lounge", "70"}, selector: "lounge", value: "70"},
		{args: []string{"lounge"}, wantErr: true},
	}
	for _, tc := range cases {
		selector, value, err := splitVolumeArgs(tc.args)
		if tc.wantErr {
			if core.ExitCode(err) != core.ExitUsage {
				t.Fatalf("%v: expected usage error, got %v", tc.args, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%v: %v", tc.args, err)
		}
		if selector != tc.selector || value != tc.value {
			t.Fatalf("%v: got %q/%q", tc.args, selector, value)
		}
	}
}

func TestDefaultIdentity(t *testing.T) {
	if got := defaultIdentity("flag", "cfg"); got != "flag" {
		t.Fatalf("expected flag identity, got %q", got)
	}
	if got := defaultIdentity("", "cfg"); got != "cfg" {
		t.Fatalf("expected config identity, got %q", got)
	}
	if got := defaultIdentity("", ""); got == "" {
		t.Fatalf("expected fallback identity")
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := rootCommand()
	for _, name := range []string{"ls", "status", "queue", "add", "clear", "skip", "stop", "pause", "resume", "vol"} {
		found := false
		for _, cmd := range root.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("missing command %q", name)
		}
	}
}
