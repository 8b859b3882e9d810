package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/muesli/cancelreader"
	"golang.org/x/term"

	"github.com/andaru/nntp/session"
)

const prompt = "nntp> "

// shell runs the command lines read from in until QUIT, end of input
// or cancellation of ctx. Cancellation also aborts a pending response.
func shell(ctx context.Context, s *session.Session, in io.Reader, out io.Writer) error {
	cr, err := cancelreader.NewReader(in)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	defer cr.Close()

	interactive := false
	if f, ok := in.(*os.File); ok {
		interactive = term.IsTerminal(int(f.Fd()))
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			cr.Cancel()
			s.Abort()
		case <-stop:
		}
	}()

	showPrompt := func() {
		if interactive {
			fmt.Fprint(out, prompt)
		}
	}
	scanner := bufio.NewScanner(cr)
	for showPrompt(); scanner.Scan(); showPrompt() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if _, err := exchange(s, line, out); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if lookupVerb(line).name == "QUIT" {
			return s.Close()
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, cancelreader.ErrCanceled) {
		return fmt.Errorf("reading input: %w", err)
	}
	return nil
}
