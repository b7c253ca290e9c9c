// Package recorder drives `ragts record`: it runs a command inside a PTY,
// puts the controlling terminal into raw mode, and writes everything the
// child produces (plus resize events) out as an asciicast v3 NDJSON
// stream, ready for internal/pipeline to later ingest.
//
// Grounded on the teacher's internal/session/virtualterminal.VT for PTY
// lifecycle (creack/pty) and its overlay.Run for raw-mode/SIGWINCH
// handling (golang.org/x/term), adapted from "feed a virtual terminal for
// interactive display" to "record a wire-format event log".
package recorder

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/google/shlex"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// Options configures one recording session.
type Options struct {
	// Command is the full command line to run, e.g. "bash -l". Split with
	// google/shlex so callers can pass a single string (the --exec
	// convenience flag) as they would type it at a shell, without
	// invoking a real shell. Ignored when Argv is set.
	Command string
	// Argv is the already-split command and arguments, used as-is when
	// set (the "-- <command> [args...]" form, which needs no re-splitting
	// and so can't be broken by shell-meaningful characters in an arg).
	Argv   []string
	Output io.Writer
	Stdin  io.Reader
}

// Record runs the configured command in a PTY sized to the controlling
// terminal and writes an asciicast v3 stream to opts.Output until the
// child exits.
func Record(opts Options) error {
	argv := opts.Argv
	if len(argv) == 0 {
		split, err := shlex.Split(opts.Command)
		if err != nil || len(split) == 0 {
			return fmt.Errorf("parse command %q: %w", opts.Command, err)
		}
		argv = split
	}

	stdin := opts.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}

	fd, isTerminal := terminalFd(stdin)
	cols, rows := 80, 24
	if isTerminal {
		if c, r, err := term.GetSize(fd); err == nil {
			cols, rows = c, r
		}
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	ptm, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
	if err != nil {
		return fmt.Errorf("start %s in pty: %w", argv[0], err)
	}
	defer ptm.Close()

	var restore *term.State
	if isTerminal {
		restore, err = term.MakeRaw(fd)
		if err == nil {
			defer term.Restore(fd, restore)
		}
	}

	w := newWriter(opts.Output, cols, rows)
	if err := w.writeHeader(); err != nil {
		return err
	}

	if isTerminal {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGWINCH)
		defer signal.Stop(sigCh)
		go watchResize(sigCh, fd, ptm, w)
	}

	var copyErr error
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		copyErr = w.copyOutput(ptm)
	}()

	go io.Copy(ptm, stdin) //nolint:errcheck

	err = cmd.Wait()
	wg.Wait()

	exitCode := 0
	if ee, ok := err.(*exec.ExitError); ok {
		exitCode = ee.ExitCode()
	} else if err != nil {
		return fmt.Errorf("wait for %s: %w", argv[0], err)
	}
	if werr := w.writeExit(exitCode); werr != nil {
		return werr
	}
	return copyErr
}

// terminalFd reports the file descriptor backing r, when r is an
// *os.File connected to a real terminal.
func terminalFd(r io.Reader) (int, bool) {
	f, ok := r.(*os.File)
	if !ok {
		return 0, false
	}
	fd := int(f.Fd())
	return fd, isatty.IsTerminal(uintptr(fd)) || isatty.IsCygwinTerminal(uintptr(fd))
}

func watchResize(sigCh chan os.Signal, fd int, ptm *os.File, w *writer) {
	for range sigCh {
		cols, rows, err := term.GetSize(fd)
		if err != nil {
			continue
		}
		_ = pty.Setsize(ptm, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
		_ = w.writeResize(cols, rows)
	}
}

// writer serializes asciicast v3 event lines with a monotonic,
// wall-clock-derived delta time.
type writer struct {
	mu    sync.Mutex
	out   io.Writer
	cols  int
	rows  int
	start time.Time
	last  float64
}

func newWriter(out io.Writer, cols, rows int) *writer {
	return &writer{out: out, cols: cols, rows: rows, start: time.Now()}
}

func (w *writer) writeHeader() error {
	header := map[string]any{
		"version": 3,
		"term": map[string]any{
			"cols": w.cols,
			"rows": w.rows,
		},
		"timestamp": w.start.Unix(),
	}
	return w.writeLine(header)
}

// copyOutput reads child PTY output until the read fails. On Linux a
// child's exit surfaces as EIO on the master side, not io.EOF, so any
// read error here just means the stream is over, not that recording
// failed — matching the teacher's own PipeOutput loop.
func (w *writer) copyOutput(ptm *os.File) error {
	buf := make([]byte, 4096)
	for {
		n, err := ptm.Read(buf)
		if n > 0 {
			if werr := w.writeEvent("o", string(buf[:n])); werr != nil {
				return werr
			}
		}
		if err != nil {
			return nil
		}
	}
}

func (w *writer) writeResize(cols, rows int) error {
	return w.writeEvent("r", fmt.Sprintf("%dx%d", cols, rows))
}

func (w *writer) writeExit(code int) error {
	return w.writeEvent("x", fmt.Sprintf("%d", code))
}

func (w *writer) writeEvent(kind, payload string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	elapsed := time.Since(w.start).Seconds()
	delta := elapsed - w.last
	w.last = elapsed

	return w.writeLineLocked([]any{delta, kind, payload})
}

func (w *writer) writeLine(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writeLineLocked(v)
}

func (w *writer) writeLineLocked(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	data = append(data, '\n')
	_, err = w.out.Write(data)
	return err
}
