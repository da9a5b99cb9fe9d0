// Package notify renders transient pending/success/error status lines for
// asynchronous operations. Reporting is observational only and never alters
// control flow.
package notify

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/text"
)

// Terminal writes theme-aware status lines to Out. Theme is "light" or
// "dark"; dark terminals get the high-intensity palette.
type Terminal struct {
	Out   io.Writer
	Theme string
}

func NewTerminal(out io.Writer, theme string) *Terminal {
	return &Terminal{Out: out, Theme: theme}
}

func (t *Terminal) palette() (pending, success, failure text.Color) {
	if t.Theme == "dark" {
		return text.FgHiYellow, text.FgHiGreen, text.FgHiRed
	}
	return text.FgYellow, text.FgGreen, text.FgRed
}

// Await runs op, rendering the pending line first and a success or failure
// line once it returns. op's error is returned untouched.
func (t *Terminal) Await(op func() error, pending, success, failure string) error {
	pc, sc, fc := t.palette()
	fmt.Fprintln(t.Out, pc.Sprint(pending))
	err := op()
	if err != nil {
		fmt.Fprintf(t.Out, "%s\n", fc.Sprintf("%s: %v", failure, err))
		return err
	}
	fmt.Fprintln(t.Out, sc.Sprint(success))
	return nil
}

// Silent discards all reporting.
type Silent struct{}

func (Silent) Await(op func() error, _, _, _ string) error { return op() }
