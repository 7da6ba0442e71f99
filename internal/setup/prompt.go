// Package setup implements the interactive first-run wizard that writes the
// SalesLive configuration file.
package setup

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Prompter asks questions on w and reads answers line by line from r.
// Production wires os.Stdin and os.Stdout; tests pass buffers.
type Prompter struct {
	scanner *bufio.Scanner
	w       io.Writer
}

// NewPrompter creates a Prompter wired to the given reader and writer.
func NewPrompter(r io.Reader, w io.Writer) *Prompter {
	return &Prompter{scanner: bufio.NewScanner(r), w: w}
}

// ask prints the label with an optional bracketed hint and reads one trimmed
// line. ok is false once input is exhausted.
func (p *Prompter) ask(label, hint string) (answer string, ok bool) {
	if hint != "" {
		p.printf("  %s [%s]: ", label, hint)
	} else {
		p.printf("  %s: ", label)
	}
	if !p.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(p.scanner.Text()), true
}

func (p *Prompter) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, format, args...)
}

// String asks for a text value. An empty answer returns defaultVal; when
// defaultVal is empty too the question repeats until something is typed.
func (p *Prompter) String(label, defaultVal string) string {
	for {
		val, ok := p.ask(label, defaultVal)
		switch {
		case !ok:
			return defaultVal
		case val != "":
			return val
		case defaultVal != "":
			return defaultVal
		}
		p.printf("  (required, please enter a value)\n")
	}
}

// Optional asks for a value that may be left empty. An empty answer returns
// defaultVal, which may itself be empty.
func (p *Prompter) Optional(label, defaultVal string) string {
	hint := defaultVal
	if hint == "" {
		hint = "optional"
	}
	val, ok := p.ask(label, hint)
	if !ok || val == "" {
		return defaultVal
	}
	return val
}

// Duration asks for a Go duration such as "15s". Unparsable answers and
// values outside [minVal, maxVal] are asked again.
func (p *Prompter) Duration(label string, defaultVal, minVal, maxVal time.Duration) time.Duration {
	for {
		val, ok := p.ask(label, defaultVal.String())
		if !ok || val == "" {
			return defaultVal
		}
		if d, err := time.ParseDuration(val); err == nil && d >= minVal && d <= maxVal {
			return d
		}
		p.printf("  (enter a duration between %s and %s, e.g. %s)\n", minVal, maxVal, defaultVal)
	}
}

// Confirm asks a yes/no question; an empty answer picks defaultYes.
func (p *Prompter) Confirm(label string, defaultYes bool) bool {
	hint := "y/N"
	if defaultYes {
		hint = "Y/n"
	}
	val, ok := p.ask(label, hint)
	if !ok || val == "" {
		return defaultYes
	}
	val = strings.ToLower(val)
	return val == "y" || val == "yes"
}

// Select lists options with 1-based numbers and returns the zero-based index
// of the one picked.
func (p *Prompter) Select(label string, options []string) (int, error) {
	if len(options) == 0 {
		return -1, fmt.Errorf("no options to select from")
	}

	p.printf("  %s:\n", label)
	for i, opt := range options {
		p.printf("    %d) %s\n", i+1, opt)
	}

	for {
		val, ok := p.ask("Choice", fmt.Sprintf("1-%d", len(options)))
		if !ok {
			return -1, fmt.Errorf("no input")
		}
		if n, err := strconv.Atoi(val); err == nil && n >= 1 && n <= len(options) {
			return n - 1, nil
		}
		p.printf("  (enter a number between 1 and %d)\n", len(options))
	}
}
