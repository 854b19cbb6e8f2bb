package main

import (
	"testing"

	"github.com/creachadair/command"
	"github.com/creachadair/numtools/extract"
	"github.com/creachadair/numtools/keying"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		args []string
		want int
	}{
		{[]string{"--match", "bogus"}, 1},
		{[]string{"--match", "expr"}, 1},
		{[]string{"--group-by", "expr"}, 1},
		{[]string{"--pattern", "fuzzy"}, 1},
		{[]string{"--columns", "x-y"}, 1},
		{[]string{"--colcount=-1"}, 1},
		{[]string{"--format", "%((delta"}, 1},
		{[]string{"--show-if", "1 +"}, 1},
		{[]string{"--width", "wide"}, 1},
		{[]string{"--nonesuch"}, 1},
		{[]string{"help"}, 0},
	}
	for _, test := range tests {
		err := command.Run(newRoot().NewEnv(nil), test.args)
		if got := exitCode(err); got != test.want {
			t.Errorf("Run %q: exit %d, want %d (err=%v)", test.args, got, test.want, err)
		}
	}
}

func TestNewConfig(t *testing.T) {
	saved := flags
	defer func() { flags = saved }()

	flags.Match = "text"
	flags.GroupBy = "line"
	flags.Pattern = "punct"
	flags.Width = "auto"
	flags.SkipLast = true
	cfg, err := newConfig(newRoot().NewEnv(nil))
	if err != nil {
		t.Fatalf("newConfig: unexpected error: %v", err)
	}
	if cfg.Match != keying.Text {
		t.Errorf("Match: got %v, want %v", cfg.Match, keying.Text)
	}
	if !cfg.Grouped || cfg.GroupBy != keying.Text {
		t.Errorf("Group: got %v %v, want true %v", cfg.Grouped, cfg.GroupBy, keying.Text)
	}
	if cfg.Pattern != extract.Aggressive {
		t.Errorf("Pattern: got %v, want %v", cfg.Pattern, extract.Aggressive)
	}
	if cfg.Align == nil || !cfg.Align.Auto || !cfg.Align.SkipLast {
		t.Errorf("Align: got %+v, want auto with skip-last", cfg.Align)
	}

	flags.GroupBy = "count"
	flags.Pattern = ""
	if cfg, err = newConfig(newRoot().NewEnv(nil)); err != nil {
		t.Fatalf("newConfig: unexpected error: %v", err)
	}
	if cfg.GroupBy != keying.Count || cfg.Pattern != extract.Plain {
		t.Errorf("Config: got group %v pattern %v, want %v %v", cfg.GroupBy, cfg.Pattern, keying.Count, extract.Plain)
	}
}
