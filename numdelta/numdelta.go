// Program numdelta annotates the numbers in its input with how much they
// have changed since the last time the same input was seen.
package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creachadair/command"
	"github.com/creachadair/flax"
	"github.com/creachadair/mds/mstr"
	"github.com/creachadair/mds/shell"
	"github.com/creachadair/numtools/delta"
	"github.com/creachadair/numtools/expr"
	"github.com/creachadair/numtools/extract"
	"github.com/creachadair/numtools/format"
	"github.com/creachadair/numtools/history"
	"github.com/creachadair/numtools/keying"
)

var flags struct {
	Format     string `flag:"format,Inline format template (default ' (%((delta))+v)')"`
	RowFormat  string `flag:"row-format,Render one line per record from this template"`
	Replace    bool   `flag:"replace,Replace each number with the format instead of appending it"`
	Columns    string `flag:"columns,Only annotate these 0-based columns (list or ranges like 0-3)"`
	ColCount   int    `flag:"colcount,Only process lines with exactly this many numbers"`
	Pattern    string `flag:"pattern,How numbers are recognized (plain or aggressive)"`
	Aggressive bool   `flag:"aggressive,Recognize numbers delimited by any punctuation (same as --pattern=aggressive)"`
	Match      string `flag:"match,Correlate lines by number (line) or by text (text)"`
	GroupBy    string `flag:"group-by,Group lines by text (line) or by number count (count)"`
	GroupAgg   string `flag:"group-agg,Aggregate function applied to grouped columns (default sum)"`
	ShowIf     string `flag:"show-if,Only annotate numbers for which this expression is true"`
	Execute    string `flag:"execute,Statements to evaluate before formatting"`
	Memory     string `flag:"memory,Name or path of the history to use"`
	NoHistory  bool   `flag:"no-history,Do not load or save history"`
	Fresh      bool   `flag:"fresh,Discard existing history before starting"`
	Keep       bool   `flag:"keep,Keep the existing history without saving updates"`
	Width      string `flag:"width,Align columns to this width or to the widest value (auto)"`
	SkipFirst  bool   `flag:"skip-first,Do not pad the first column when aligning"`
	SkipLast   bool   `flag:"skip-last,Do not pad the last column when aligning"`
	Unbuffered bool   `flag:"unbuffered,Flush output after each line"`
	Debug      bool   `flag:"debug,Report expression errors in detail"`
	Verbose    bool   `flag:"v,Enable verbose logging"`
}

func main() {
	args := os.Args[1:]
	if s := os.Getenv("NUMDELTA_FLAGS"); s != "" {
		pre, ok := shell.Split(s)
		if !ok {
			log.Fatalf("Invalid NUMDELTA_FLAGS: %q", s)
		}
		args = append(pre, args...)
	}
	if code := exitCode(command.Run(newRoot().NewEnv(nil), args)); code != 0 {
		os.Exit(code)
	}
}

func newRoot() *command.C {
	return &command.C{
		Name:  command.ProgramName(),
		Usage: "[options] [file ...]",
		Help: `Annotate numbers with their change since the previous run.

Each line of input is split into numbers and the text around them. Each
number is compared with the value in the same position the last time the
same history was used, and the line is printed with the change appended
to each number. With no files, or with "-", input is read from stdin.

Lines are correlated by line number unless --match=text is given, in which
case lines with the same non-numeric text are correlated.

Templates (--format, --row-format) are literal text with embedded
expressions of the form %((expr))spec, where spec is a printf verb such as
"d", "+v", or ".2f". Use %% for a literal percent sign.

Variables available to --format, --show-if, and --execute:
  v value prev delta d sign unit pct rate elapsed
  min max avg sum count col line key first

Variables available to --row-format:
  f0 ... fN   values of the numbers on the line
  p0 ... pN   previous values, d0 ... dN changes (when known)
  fields line lineno ncols key first

With --group-by, also:
  c0 ... cN   values of each column across the group
  lines nlines group

Default options may be set in the NUMDELTA_FLAGS environment variable.`,

		SetFlags: command.Flags(flax.MustBind, &flags),
		Run:      command.Adapt(runMain),

		Commands: []*command.C{
			command.HelpCommand(nil),
			command.VersionCommand(),
		},
	}
}

// exitCode reports err and returns the process exit status for it. Any
// failure, including a usage error, exits with status 1.
func exitCode(err error) int {
	var uerr command.UsageError
	switch {
	case err == nil, errors.Is(err, command.ErrRequestHelp):
		return 0
	case errors.As(err, &uerr):
		log.Printf("Error: %s", uerr.Message)
		uerr.Env.Command.HelpInfo(0).WriteUsage(uerr.Env)
	default:
		log.Printf("Error: %v", err)
	}
	return 1
}

func runMain(env *command.Env, files ...string) error {
	cfg, err := newConfig(env)
	if err != nil {
		return err
	}

	var store *history.Store
	var h *history.Handle
	if flags.NoHistory {
		store = history.NewStore(cfg.Now())
	} else {
		path := history.Locate("numdelta", flags.Memory)
		h, err = history.Open(path, history.Options{
			Fresh:    flags.Fresh,
			ReadOnly: flags.Keep,
		})
		if err != nil {
			return err
		}
		defer h.Close()
		vlog("Loaded %d entries from %q (previous run %v)", h.Len(), path, h.Previous)
		store = h.Store
	}

	e, err := delta.New(cfg, store, os.Stdout)
	if err != nil {
		return env.Usagef("%v", err)
	}
	if len(files) == 0 {
		files = []string{"-"}
	}
	for _, path := range files {
		if err := processFile(e, path); err != nil {
			return err
		}
	}
	if err := e.Finish(); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	nread, nskip, nfail := e.Stats()
	vlog("Read %d lines, skipped %d, failed %d", nread, nskip, nfail)

	if h != nil && !flags.Keep {
		if err := h.Save(); err != nil {
			return fmt.Errorf("saving history: %w", err)
		}
		vlog("Saved %d entries to %q", h.Len(), h.Path())
	}
	return nil
}

func processFile(e *delta.Engine, path string) error {
	var r io.Reader
	name := path
	if path == "-" {
		name = "<stdin>"
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	vlog("Reading %q", name)
	return e.Process(r, name)
}

// newConfig constructs an engine configuration from the command-line flags.
// Invalid settings are reported as usage errors.
func newConfig(env *command.Env) (delta.Config, error) {
	cfg := delta.Config{
		Replace:    flags.Replace,
		Unbuffered: flags.Unbuffered,
		Debug:      flags.Debug,
		GroupAgg:   flags.GroupAgg,
	}
	var err error
	if cfg.Pattern, err = extract.ParsePattern(flags.Pattern); err != nil {
		return cfg, env.Usagef("invalid --pattern: %v", err)
	} else if flags.Aggressive {
		cfg.Pattern = extract.Aggressive
	}

	m, err := keying.ParseMode(flags.Match)
	if err != nil || (m != keying.Line && m != keying.Text) {
		return cfg, env.Usagef("invalid --match %q (want line or text)", flags.Match)
	}
	cfg.Match = m
	if flags.GroupBy != "" {
		m, err := keying.ParseMode(flags.GroupBy)
		switch {
		case err != nil || m == keying.Expr:
			return cfg, env.Usagef("invalid --group-by %q (want line or count)", flags.GroupBy)
		case m == keying.Line:
			m = keying.Text // lines are grouped by their text
		}
		cfg.Grouped, cfg.GroupBy = true, m
	}

	if flags.Columns != "" {
		cols, err := keying.ParseColumns(flags.Columns)
		if err != nil {
			return cfg, env.Usagef("invalid --columns: %v", err)
		}
		cfg.Filter.Columns = cols
	}
	if flags.ColCount < 0 {
		return cfg, env.Usagef("invalid --colcount %d", flags.ColCount)
	}
	cfg.Filter.ColCount = flags.ColCount

	if flags.Format != "" {
		if cfg.Format, err = format.Parse(flags.Format); err != nil {
			return cfg, usageError(env, "--format", err)
		}
	}
	if flags.RowFormat != "" {
		if cfg.RowFormat, err = format.Parse(flags.RowFormat); err != nil {
			return cfg, usageError(env, "--row-format", err)
		}
	}
	if flags.ShowIf != "" {
		if cfg.ShowIf, err = expr.Compile(flags.ShowIf); err != nil {
			return cfg, usageError(env, "--show-if", err)
		}
	}
	if flags.Execute != "" {
		if cfg.Execute, err = expr.Compile(flags.Execute); err != nil {
			return cfg, usageError(env, "--execute", err)
		}
	}

	switch w := strings.ToLower(flags.Width); w {
	case "", "0":
	case "auto":
		cfg.Align = &format.Aligner{Auto: true}
	default:
		n, err := strconv.Atoi(w)
		if err != nil || n < 0 {
			return cfg, env.Usagef("invalid --width %q (want a number or auto)", flags.Width)
		}
		cfg.Align = &format.Aligner{Width: n}
	}
	if cfg.Align != nil {
		cfg.Align.SkipFirst = flags.SkipFirst
		cfg.Align.SkipLast = flags.SkipLast
	}
	if flags.Debug {
		cfg.Logf = func(msg string, args ...any) {
			log.Print(mstr.Trunc(fmt.Sprintf(msg, args...), 2000))
		}
	}
	cfg.Now = time.Now
	return cfg, nil
}

func usageError(env *command.Env, flag string, err error) error {
	if flags.Debug {
		return env.Usagef("invalid %s: %s", flag, expr.Detail(err))
	}
	return env.Usagef("invalid %s: %v", flag, err)
}

func vlog(msg string, args ...any) {
	if flags.Verbose {
		log.Printf(msg, args...)
	}
}
