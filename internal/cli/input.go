package cli

import (
	"bufio"
	"context"
	"io"
)

// Input is a shared line source for the REPL and the confirmation prompter.
// A single reader goroutine feeds lines through a channel so that reads can
// be abandoned on context cancellation (stdin reads are not interruptible).
type Input struct {
	lines chan string
	errs  chan error
}

// NewInput starts reading lines from r.
func NewInput(r io.Reader) *Input {
	in := &Input{
		lines: make(chan string),
		errs:  make(chan error, 1),
	}
	go func() {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			in.lines <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			in.errs <- err
		} else {
			in.errs <- io.EOF
		}
		close(in.lines)
	}()
	return in
}

// ReadLine returns the next line, io.EOF at end of input, or ctx.Err() on
// cancellation.
func (in *Input) ReadLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-in.lines:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	case err := <-in.errs:
		return "", err
	}
}
