// Binary stats computes basic statistics on a column of values read from files
// specified on the command-line, or from standard input.
package main

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/creachadair/command"
	"github.com/creachadair/flax"
	"github.com/creachadair/numtools/aggregate"
	"github.com/creachadair/numtools/extract"
	"github.com/creachadair/numtools/history"
	"github.com/creachadair/numtools/value"
)

var flags struct {
	Cat   bool `flag:"cat,Catenate input to stdout"`
	Sum   bool `flag:"sum,Print sum of entries"`
	Min   bool `flag:"min,Print minimum entry"`
	Max   bool `flag:"max,Print maximum entry"`
	Mean  bool `flag:"mean,Print arithmetic mean"`
	Var   bool `flag:"var,Print sample variance"`
	Stdev bool `flag:"stdev,Print sample standard deviation"`
	Trim  bool `flag:"trim,Trim leading and trailing whitespace"`

	Split      string `flag:"split,Split input lines on this regexp (\"\" means don't split)"`
	Field      int    `flag:"field,Field to select (1-based; use 0 for the entire line)"`
	First      bool   `flag:"first,Select the first number on each line"`
	Aggressive bool   `flag:"aggressive,With --first recognize numbers delimited by punctuation"`
	Pct        string `flag:"pct,Comma-separated percentiles to print"`
	Precision  int    `flag:"prec,default=1,Number of digits of precision for fractional values"`
}

func main() {
	root := &command.C{
		Name:  command.ProgramName(),
		Usage: "[options] <input-file>...",
		Help: `Print basic statistics on a column of values read from the given input files.

If no files are specified, input is read from stdin. Files are read in the
order specified; use the special name "-" to read from stdin explicitly.`,

		SetFlags: command.Flags(flax.MustBind, &flags),
		Run:      command.Adapt(runMain),

		Commands: []*command.C{
			command.HelpCommand(nil),
			command.VersionCommand(),
		},
	}
	command.RunOrFail(root.NewEnv(nil), os.Args[1:])
}

func runMain(env *command.Env, files ...string) error {
	p, err := newPicker(flags.Split, flags.Field)
	if err != nil {
		return env.Usagef("invalid --split: %v", err)
	}
	pcts, err := parsePercentiles(flags.Pct)
	if err != nil {
		return env.Usagef("invalid --pct: %v", err)
	}
	s := new(stats)

	var w *bufio.Writer
	if flags.Cat {
		w = bufio.NewWriter(os.Stdout)
	}

	if len(files) == 0 {
		files = []string{"-"}
	}
	for _, path := range files {
		if err := readFile(path, p, s, w); err != nil {
			return err
		}
	}
	if w != nil {
		if err := w.Flush(); err != nil {
			log.Printf("Flushing output failed: %v", err)
		}
	}

	out := []string{fmt.Sprintf("n=%d", s.Count)}
	if flags.Sum {
		out = append(out, "sum="+valueString(s.Sum))
	}
	if flags.Min {
		out = append(out, "min="+valueString(s.Min))
	}
	if flags.Max {
		out = append(out, "max="+valueString(s.Max))
	}
	if flags.Mean {
		out = append(out, "avg="+valueString(s.Avg()))
	}
	if flags.Var {
		out = append(out, "var="+floatString(aggregate.Variance(s.xs, true)))
	}
	if flags.Stdev {
		out = append(out, fmt.Sprintf("sdv=%.2f", aggregate.Stdev(s.xs, true)))
	}
	for _, n := range pcts {
		v, _ := aggregate.Percentile(n, s.xs)
		out = append(out, fmt.Sprintf("p%v=%s", n, floatString(v)))
	}
	if flags.Cat {
		fmt.Fprintln(os.Stderr, strings.Join(out, ", "))
	} else {
		fmt.Println(strings.Join(out, ", "))
	}
	return nil
}

// readFile adds the values picked from each line of the named file to s,
// copying the input to w if it is not nil.
func readFile(path string, p *picker, s *stats, w *bufio.Writer) error {
	var r io.Reader
	if path == "-" {
		path = "<stdin>"
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	br := bufio.NewReader(r)
	for ln := 1; ; ln++ {
		line, err := br.ReadString('\n')
		if err == io.EOF && line == "" {
			return nil
		} else if err != nil && err != io.EOF {
			return fmt.Errorf("in %s: line %d: %w", path, ln, err)
		}

		v, err := p.Pick(trim(line))
		if err != nil {
			log.Printf("In %s: line %d: %v", path, ln, err)
			continue
		}
		s.Add(v)

		if w != nil {
			if _, err := w.WriteString(line); err != nil {
				return fmt.Errorf("output: %w", err)
			}
		}
	}
}

// stats accumulates running statistics, and retains the samples for order
// statistics.
type stats struct {
	history.Entry
	xs []float64
}

// Add adds v to the statistics.
func (s *stats) Add(v value.Value) {
	if s.Update(v, time.Time{}) {
		f, _ := v.AsFloat()
		s.xs = append(s.xs, f)
	}
}

func newPicker(re string, n int) (*picker, error) {
	if re == "" {
		return &picker{field: n}, nil
	}
	r, err := regexp.Compile(re)
	if err != nil {
		return nil, err
	}
	return &picker{r, n}, nil
}

type picker struct {
	*regexp.Regexp
	field int
}

// Pick returns the value selected by the current settings from s.
func (p picker) Pick(s string) (value.Value, error) {
	var field string
	if flags.First {
		ln := extract.Split(s, pattern())
		if len(ln.Fields) == 0 {
			return value.Value{}, fmt.Errorf("no numbers found in %q", s)
		}
		return ln.Fields[0].Value, nil
	} else if p.Regexp == nil || p.field <= 0 {
		field = strings.TrimSpace(s)
	} else if fields := p.Split(s, -1); len(fields) < p.field {
		return value.Value{}, fmt.Errorf("field %d out of range (%d found)", p.field, len(fields))
	} else {
		field = fields[p.field-1]
	}

	if v := value.Parse(field); v.IsNumeric() {
		return v, nil
	}
	return value.Value{}, fmt.Errorf("invalid number format for %q", field)
}

func pattern() extract.Pattern {
	if flags.Aggressive {
		return extract.Aggressive
	}
	return extract.Plain
}

func parsePercentiles(s string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part == "" {
			continue
		}
		n, err := strconv.ParseFloat(part, 64)
		if err != nil || n < 0 || n > 100 {
			return nil, fmt.Errorf("percentile %q must be a number between 0 and 100", part)
		}
		out = append(out, n)
	}
	return out, nil
}

func valueString(v value.Value) string {
	if !v.IsValid() {
		return "0"
	} else if v.Kind() == value.IntKind {
		return v.String()
	}
	f, _ := v.AsFloat()
	return floatString(f)
}

func floatString(f float64) string {
	if flags.Precision <= 0 {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', flags.Precision, 64)
}

func trim(s string) string {
	if flags.Trim {
		return strings.TrimSpace(s)
	}
	return strings.TrimRight(s, "\n")
}
