package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"regexp"
	"slices"
	"strings"
	"sync"
)

var placeholderRe = regexp.MustCompile(`\{\{(\w+)\}\}`)

// ExtractParams lists the {{name}} placeholders a stored script expects,
// each once, in the order they first appear.
func ExtractParams(script string) []string {
	var params []string
	for _, m := range placeholderRe.FindAllStringSubmatch(script, -1) {
		if !slices.Contains(params, m[1]) {
			params = append(params, m[1])
		}
	}
	return params
}

// SubstituteParams fills a script's placeholders from values in one pass, so
// a value that itself looks like a placeholder is not expanded again.
// Placeholders without a value are left as written.
func SubstituteParams(script string, values map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(script, func(ph string) string {
		if v, ok := values[ph[2:len(ph)-2]]; ok {
			return v
		}
		return ph
	})
}

// MissingParams returns the placeholders in script that values does not cover.
func MissingParams(script string, values map[string]string) []string {
	var missing []string
	for _, name := range ExtractParams(script) {
		if _, ok := values[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// Elevation selects how a script gains privileges.
type Elevation string

const (
	ElevationSu   Elevation = "su"
	ElevationSudo Elevation = "sudo"
	ElevationNone Elevation = "none"
)

// ParseElevation validates a configured elevation mode.
func ParseElevation(s string) (Elevation, error) {
	switch e := Elevation(strings.ToLower(strings.TrimSpace(s))); e {
	case ElevationSu, ElevationSudo, ElevationNone:
		return e, nil
	case "":
		return ElevationSu, nil
	default:
		return "", fmt.Errorf("unknown elevation %q (want su, sudo or none)", s)
	}
}

// argv returns the program and arguments that run script under e.
func (e Elevation) argv(script string) []string {
	switch e {
	case ElevationSudo:
		return []string{"sudo", "sh", "-c", script}
	case ElevationNone:
		return []string{"sh", "-c", script}
	default:
		return []string{"su", "-c", script}
	}
}

// OutputMsg is sent through the channel for each line of output. The final
// message has Done set and carries the exit status.
type OutputMsg struct {
	Line     string
	IsErr    bool
	Done     bool
	ExitCode int
	ErrMsg   string
}

// Result is the collected outcome of Exec.
type Result struct {
	Stdout   []string
	Stderr   []string
	ExitCode int
}

// Gateway runs scripts with elevated privileges.
type Gateway struct {
	elevation Elevation
	logger    *slog.Logger
}

func NewGateway(elevation Elevation, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{elevation: elevation, logger: logger}
}

func (g *Gateway) Elevation() Elevation { return g.elevation }

// Run executes a script and streams output through a channel, closing it
// when the script has finished.
func (g *Gateway) Run(ctx context.Context, script string, output chan<- OutputMsg) {
	defer close(output)

	code, err := g.run(ctx, script, func(line string, isErr bool) {
		output <- OutputMsg{Line: line, IsErr: isErr}
	})
	if err != nil {
		output <- OutputMsg{Done: true, ExitCode: code, ErrMsg: err.Error()}
	} else {
		output <- OutputMsg{Done: true}
	}
}

// Exec executes a script and waits for it. A non-zero exit is reported both
// in Result.ExitCode and as an error.
func (g *Gateway) Exec(ctx context.Context, script string) (Result, error) {
	var (
		mu  sync.Mutex
		res Result
	)
	code, err := g.run(ctx, script, func(line string, isErr bool) {
		mu.Lock()
		defer mu.Unlock()
		if isErr {
			res.Stderr = append(res.Stderr, line)
		} else {
			res.Stdout = append(res.Stdout, line)
		}
	})
	res.ExitCode = code
	return res, err
}

func (g *Gateway) run(ctx context.Context, script string, emit func(line string, isErr bool)) (int, error) {
	args := g.elevation.argv(script)
	c := exec.CommandContext(ctx, args[0], args[1:]...)

	stdout, err := c.StdoutPipe()
	if err != nil {
		return -1, err
	}

	stderr, err := c.StderrPipe()
	if err != nil {
		return -1, err
	}

	g.logger.Info("running script", "elevation", g.elevation, "bytes", len(script))
	if err := c.Start(); err != nil {
		g.logger.Error("script failed to start", "error", err)
		return -1, err
	}

	// Stream stdout and stderr concurrently
	done := make(chan struct{}, 2)

	streamReader := func(r io.Reader, isErr bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			emit(scanner.Text(), isErr)
		}
		// drain so the child never blocks on a full pipe
		io.Copy(io.Discard, r)
		done <- struct{}{}
	}

	go streamReader(stdout, false)
	go streamReader(stderr, true)

	// Wait for both streams
	<-done
	<-done

	err = c.Wait()
	if err == nil {
		g.logger.Info("script finished", "exit_code", 0)
		return 0, nil
	}

	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	g.logger.Warn("script failed", "exit_code", code, "error", err)
	return code, err
}
