// Program csv-query filters, projects, and groups rows of CSV data using
// expressions over the column names.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/creachadair/command"
	"github.com/creachadair/flax"
	"github.com/creachadair/mds/shell"
	"github.com/creachadair/numtools/csvrow"
	"github.com/creachadair/numtools/expr"
	"github.com/creachadair/numtools/format"
	"github.com/creachadair/numtools/query"
)

var flags struct {
	Where    string   `flag:"where,Only include rows for which this expression is true"`
	Select   multi    `flag:"select,Output column [name=]expr (repeatable)"`
	Group    multi    `flag:"group,Group rows by [name=]expr (repeatable)"`
	Fields   string   `flag:"fields,Comma-separated glob patterns of input columns to output"`
	ShowIf   string   `flag:"show-if,Suppress output rows for which this expression is false"`
	Execute  string   `flag:"execute,Statements to evaluate for each row"`
	Sort     string   `flag:"sort,Sort output rows by this expression"`
	Desc     bool     `flag:"desc,Sort in descending order"`
	Limit    int      `flag:"limit,Output at most this many rows"`
	Delim    string   `flag:"delim,Input field delimiter (default comma)"`
	OutDelim string   `flag:"out-delim,Output field delimiter (default: same as input)"`
	Output   string   `flag:"output,Output format (plain or csv or json or yaml)"`
	Width    string   `flag:"width,Align plain output columns to this width or to the widest value (auto)"`
	NoHeader bool     `flag:"no-header,Input has no header row (columns are named c1 c2 ...)"`
	Headless bool     `flag:"headless,Do not print a header row"`
	Trim     bool     `flag:"trim,Trim whitespace around input fields"`
	Debug    bool     `flag:"debug,Report expression errors in detail"`
	Verbose  bool     `flag:"v,Enable verbose logging"`
}

func main() {
	args := os.Args[1:]
	if s := os.Getenv("CSVQUERY_FLAGS"); s != "" {
		pre, ok := shell.Split(s)
		if !ok {
			log.Fatalf("Invalid CSVQUERY_FLAGS: %q", s)
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
		Usage: "[options] [file]",
		Help: `Query rows of CSV data.

Read CSV data with a header row from the named file, or stdin, and print
the rows that satisfy --where. Each --select adds an output column whose
value is an expression over the input columns; --fields adds input columns
whose names match the given glob patterns.

If any --group is given, or any --select uses an aggregate function such as
sum, avg, or stdev, rows are grouped by the values of the --group
expressions and one row is printed per group. Within a group each input
column denotes the list of its values, and each group name denotes the
value shared by the group.

Unnamed expressions are named by their text. An output name that matches a
column selected by --fields, or another output name, is an error.

Default options may be set in the CSVQUERY_FLAGS environment variable.`,

		SetFlags: command.Flags(flax.MustBind, &flags),
		Run:      command.Adapt(runMain),

		Commands: []*command.C{
			{
				Name: "functions",
				Help: "List the functions available to expressions.",
				Run: command.Adapt(func(env *command.Env) error {
					for _, name := range expr.Functions() {
						tag := ""
						if expr.IsAggregateFunc(name) {
							tag = " (aggregate)"
						}
						fmt.Println(name + tag)
					}
					return nil
				}),
			},
			command.HelpCommand(nil),
			command.VersionCommand(),
		},
	}
}

// exitCode reports err and returns the process exit status for it. Usage
// errors print the command synopsis, but like other failures exit 1.
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
	if len(files) > 1 {
		return env.Usagef("at most one input file may be given")
	}
	delim, err := csvrow.ParseDelim(flags.Delim)
	if err != nil {
		return env.Usagef("invalid --delim: %v", err)
	}
	out, err := format.ParseOutput(flags.Output)
	if err != nil {
		return env.Usagef("%v", err)
	}
	cfg, err := newConfig(env)
	if err != nil {
		return err
	}
	opts := format.Options{
		Delim:  string(delim),
		Header: !flags.Headless,
	}
	if flags.OutDelim != "" {
		od, err := csvrow.ParseDelim(flags.OutDelim)
		if err != nil {
			return env.Usagef("invalid --out-delim: %v", err)
		}
		opts.Delim = string(od)
	}
	switch w := strings.ToLower(flags.Width); w {
	case "", "0":
	case "auto":
		opts.Align = &format.Aligner{Auto: true, SkipLast: true}
	default:
		n, err := strconv.Atoi(w)
		if err != nil || n < 0 {
			return env.Usagef("invalid --width %q (want a number or auto)", flags.Width)
		}
		opts.Align = &format.Aligner{Width: n, SkipLast: true}
	}

	var in io.Reader = os.Stdin
	if len(files) == 1 && files[0] != "-" {
		f, err := os.Open(files[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	rd := csvrow.NewReader(bufio.NewReader(in), csvrow.Options{
		Delim:    delim,
		Trim:     flags.Trim,
		NoHeader: flags.NoHeader,
	})
	q, tab, err := query.Run(rd, cfg)
	if errors.Is(err, query.ErrConfig) {
		return env.Usagef("%v", err)
	} else if err != nil {
		return err
	}
	nread, nfail := q.Stats()
	vlog("Read %d rows, %d failed; %d output rows", nread, nfail, len(tab.Rows))

	w := bufio.NewWriter(os.Stdout)
	if err := tab.Write(w, out, opts); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return w.Flush()
}

// newConfig constructs a query configuration from the command-line flags.
// Expressions that do not compile are reported as usage errors.
func newConfig(env *command.Env) (query.Config, error) {
	cfg := query.Config{
		Desc:  flags.Desc,
		Limit: flags.Limit,
		Debug: flags.Debug,
	}
	if flags.Fields != "" {
		cfg.Fields = strings.Split(flags.Fields, ",")
	}
	compile := func(name, src string) (*expr.Expr, error) {
		if src == "" {
			return nil, nil
		}
		x, err := expr.Compile(src)
		if err != nil {
			return nil, usageError(env, name, err)
		}
		return x, nil
	}
	var err error
	if cfg.Where, err = compile("--where", flags.Where); err != nil {
		return cfg, err
	}
	if cfg.ShowIf, err = compile("--show-if", flags.ShowIf); err != nil {
		return cfg, err
	}
	if cfg.Execute, err = compile("--execute", flags.Execute); err != nil {
		return cfg, err
	}
	if cfg.Sort, err = compile("--sort", flags.Sort); err != nil {
		return cfg, err
	}
	for _, spec := range flags.Select {
		c, err := query.ParseColumn(spec)
		if err != nil {
			return cfg, usageError(env, "--select", err)
		}
		cfg.Select = append(cfg.Select, c)
	}
	for _, spec := range flags.Group {
		c, err := query.ParseColumn(spec)
		if err != nil {
			return cfg, usageError(env, "--group", err)
		}
		cfg.Group = append(cfg.Group, c)
	}
	return cfg, nil
}

func usageError(env *command.Env, flag string, err error) error {
	if flags.Debug {
		return env.Usagef("invalid %s: %s", flag, expr.Detail(err))
	}
	return env.Usagef("invalid %s: %v", flag, err)
}

// multi is a flag.Value that collects each occurrence of a repeated flag.
type multi []string

func (m *multi) String() string { return strings.Join(*m, ", ") }

func (m *multi) Set(s string) error { *m = append(*m, s); return nil }

func vlog(msg string, args ...any) {
	if flags.Verbose {
		log.Printf(msg, args...)
	}
}
