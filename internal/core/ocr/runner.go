package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

// ErrToolMissing means a poppler or tesseract binary is not installed.
var ErrToolMissing = errors.New("ocr tool not installed")

// maxStderr caps how much diagnostic output is kept per command; tesseract
// prints a line per unreadable glyph on bad scans.
const maxStderr = 8 << 10

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, logger *slog.Logger, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs poppler and tesseract binaries. Env is appended to the
// process environment of every command.
type ExecRunner struct {
	Env []string
}

// defaultEnv keeps each tesseract process single threaded; batch imports
// already run one per worker.
var defaultEnv = []string{"OMP_THREAD_LIMIT=1"}

func (r ExecRunner) Run(ctx context.Context, name string, logger *slog.Logger, args ...string) ([]byte, []byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	bin, err := exec.LookPath(name)
	if err != nil {
		logger.Warn("ocr tool not found", "tool", name, "error", err)
		return nil, nil, fmt.Errorf("%w: %s", ErrToolMissing, name)
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	// a killed tool may leave children holding the output pipes
	cmd.WaitDelay = time.Second
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	var stdout bytes.Buffer
	stderr := &cappedBuffer{max: maxStderr}
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	start := time.Now()
	err = cmd.Run()
	elapsed := time.Since(start)

	if ctxErr := ctx.Err(); err != nil && ctxErr != nil {
		// the process was killed because the caller gave up
		logger.Debug("ocr tool cancelled", "tool", name, "duration_ms", elapsed.Milliseconds())
		return stdout.Bytes(), stderr.Bytes(), ctxErr
	}

	attrs := []any{
		"tool", name,
		"input", inputArg(args),
		"duration_ms", elapsed.Milliseconds(),
		"stdout_bytes", stdout.Len(),
	}
	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		logger.Warn("ocr tool exited with error",
			append(attrs, "exit_code", exitErr.ExitCode(), "stderr", stderr.String())...)
	case err != nil:
		logger.Warn("ocr tool failed to start", append(attrs, "error", err)...)
	default:
		logger.Debug("ocr tool ok", append(attrs, "stderr_bytes", stderr.Len())...)
	}
	return stdout.Bytes(), stderr.Bytes(), err
}

// inputArg is the document or image a poppler/tesseract call works on: the
// first argument that is not a flag or flag value.
func inputArg(args []string) string {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if len(a) > 1 && a[0] == '-' {
			if i+1 < len(args) && takesValue(a) {
				i++
			}
			continue
		}
		return a
	}
	return ""
}

func takesValue(flag string) bool {
	switch flag {
	case "-r", "-l", "-f", "-enc", "-eol", "--tessdata-dir", "--psm", "--oem":
		return true
	}
	return false
}

// cappedBuffer keeps the first max bytes written and drops the rest while
// still reporting full writes, so the child never blocks on stderr.
type cappedBuffer struct {
	buf       bytes.Buffer
	max       int
	truncated bool
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	if room := c.max - c.buf.Len(); room > 0 {
		if len(p) > room {
			c.buf.Write(p[:room])
			c.truncated = true
		} else {
			c.buf.Write(p)
		}
	} else if len(p) > 0 {
		c.truncated = true
	}
	return len(p), nil
}

func (c *cappedBuffer) Bytes() []byte {
	if !c.truncated {
		return c.buf.Bytes()
	}
	return append(c.buf.Bytes()[:c.buf.Len():c.buf.Len()], "...(truncated)"...)
}

func (c *cappedBuffer) String() string { return string(c.Bytes()) }

func (c *cappedBuffer) Len() int { return c.buf.Len() }

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
