package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSplitDetach(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		detach bool
	}{
		{in: "print(1)\r", want: "print(1)\r"},
		{in: "ab\x1dcd", want: "ab", detach: true},
		{in: "\x1d", want: "", detach: true},
	}
	for _, tc := range tests {
		got, detach := splitDetach([]byte(tc.in))
		if string(got) != tc.want || detach != tc.detach {
			t.Fatalf("splitDetach(%q) = %q, %v", tc.in, got, detach)
		}
	}
}

func TestFlashOffset(t *testing.T) {
	tests := []struct {
		flag string
		base uint32
		want uint32
		err  bool
	}{
		{flag: "", base: 0x10, want: 0x10},
		{flag: "0x100000", want: 0x100000},
		{flag: "4096", want: 4096},
		{flag: "nope", err: true},
	}
	for _, tc := range tests {
		got, err := flashOffset(tc.flag, tc.base)
		if (err != nil) != tc.err || got != tc.want {
			t.Fatalf("flashOffset(%q, %d) = %d, %v", tc.flag, tc.base, got, err)
		}
	}
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "ports", "state", "repl", "uart", "flash", "select", "clock", "ui-in", "reset", "step", "bootloader", "factory-test", "config", "version"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Fatalf("command %q not registered", name)
		}
	}
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tt.yaml")
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"config", "init", "--config", path})
	if err := root.Execute(); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if strings.TrimSpace(out.String()) != path {
		t.Fatalf("unexpected output %q", out.String())
	}
	data, err := os.ReadFile(path)
	if err != nil || !strings.Contains(string(data), "config_version: 1") {
		t.Fatalf("unexpected config file %q: %v", data, err)
	}

	root = newRootCmd()
	root.SetArgs([]string{"config", "init", "--config", path})
	if err := root.Execute(); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out.String(), "2.0.0RC2") {
		t.Fatalf("unexpected output %q", out.String())
	}
}
