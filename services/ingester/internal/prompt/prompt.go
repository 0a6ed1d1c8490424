// Package prompt asks an operator for the ingestion date range on a terminal.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/02loveslollipop/howmuchwater/internal/daterange"
)

// Prompter reads answers line by line from in and writes questions to out.
type Prompter struct {
	in  *bufio.Scanner
	out io.Writer
	now func() time.Time
}

// New builds a Prompter. now defaults to time.Now.
func New(in io.Reader, out io.Writer, now func() time.Time) *Prompter {
	if now == nil {
		now = time.Now
	}
	return &Prompter{in: bufio.NewScanner(in), out: out, now: now}
}

func (p *Prompter) line(question string) (string, error) {
	fmt.Fprint(p.out, question)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(p.in.Text()), nil
}

// Date asks until the answer is a valid YYYY-MM-DD date.
func (p *Prompter) Date(label string) (time.Time, error) {
	for {
		answer, err := p.line(fmt.Sprintf("Enter the %s date (YYYY-MM-DD): ", label))
		if err != nil {
			return time.Time{}, err
		}
		d, err := daterange.Parse(answer)
		if err == nil {
			return d, nil
		}
		fmt.Fprintln(p.out, "Invalid date format. Please use YYYY-MM-DD.")
	}
}

// Confirm reports whether the answer is "y" or "yes", in any case.
func (p *Prompter) Confirm(question string) (bool, error) {
	answer, err := p.line(question + " (y/n): ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// Range runs the interactive flow: end date, then start date, each repaired
// the same way a non-interactive run would be, until the operator confirms.
// io.EOF is returned when input ends first.
func (p *Prompter) Range() (daterange.Range, error) {
	for {
		today := daterange.Today(p.now())

		end, err := p.Date("end")
		if err != nil {
			return daterange.Range{}, err
		}
		if daterange.Day(end).After(today) {
			fmt.Fprintf(p.out, "End date is in the future. Using today's date: %s\n", today.Format(daterange.Layout))
		}
		// Clamp first so the start check compares against the effective end.
		clamped, _ := daterange.Normalize(time.Time{}, end, today)

		start, err := p.Date("start")
		if err != nil {
			return daterange.Range{}, err
		}
		rng, notes := daterange.Normalize(start, clamped.End, today)
		if notes.StartReset {
			fmt.Fprintf(p.out, "Start date is not before end date. Using one week before end: %s\n",
				rng.Start.Format(daterange.Layout))
		}

		fmt.Fprintf(p.out, "Start date: %s\nEnd date: %s\n",
			rng.Start.Format(daterange.Layout), rng.End.Format(daterange.Layout))
		ok, err := p.Confirm("Proceed with these dates?")
		if err != nil {
			return daterange.Range{}, err
		}
		if ok {
			return rng, nil
		}
	}
}

// IsAbort reports whether err means the operator closed the input.
func IsAbort(err error) bool {
	return errors.Is(err, io.EOF)
}
