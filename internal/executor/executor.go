// -----------------------------------------------------------------------
// Executor - spawns job commands and supervises their lifecycle
// -----------------------------------------------------------------------

package executor

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/conductor/internal/common"
	"github.com/ternarybob/conductor/internal/interfaces"
	"github.com/ternarybob/conductor/internal/models"
	"github.com/ternarybob/conductor/internal/progress"
)

const (
	// maxOutputLines bounds how much process output is retained per stream.
	// Older lines are dropped; the tail is what diagnoses a failure.
	maxOutputLines = 200
	// maxLineBytes is the longest single output line the scanner accepts.
	// Anything longer truncates the stream; the rest is drained and dropped.
	maxLineBytes = 1024 * 1024
)

// Executor runs jobs by spawning the docs CLI as a child process. Each
// Execute call drives exactly one job from pending to a terminal state on the
// tracker; it never returns job-domain failures to the caller.
//
// Two gates sit in front of every spawn: a steady-state pacer bounding the
// spawn rate against the external API, and the shared backoff coordinator
// that suspends spawns while a rate-limit window is live.
type Executor struct {
	tracker interfaces.JobTracker
	backoff interfaces.BackoffCoordinator
	parser  *progress.Parser
	logger  arbor.ILogger
	pacer   *rate.Limiter

	binary  string
	workDir string
	timeout time.Duration
	table   map[models.JobType]CommandSpec

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// New creates an executor over the closed command table
func New(tracker interfaces.JobTracker, backoff interfaces.BackoffCoordinator, logger arbor.ILogger, config *common.Config) *Executor {
	limit := rate.Inf
	if config.RateLimit.SpawnsPerSecond > 0 {
		limit = rate.Limit(config.RateLimit.SpawnsPerSecond)
	}
	burst := config.RateLimit.Burst
	if burst < 1 {
		burst = 1
	}

	return &Executor{
		tracker: tracker,
		backoff: backoff,
		parser:  progress.MustParser(),
		logger:  logger,
		pacer:   rate.NewLimiter(limit, burst),
		binary:  config.Executor.Binary,
		workDir: config.Executor.WorkDir,
		timeout: config.Executor.Timeout(),
		table:   commandTable(),
		running: make(map[string]context.CancelFunc),
	}
}

// Supports reports whether the command table covers the job type
func (e *Executor) Supports(jobType models.JobType) bool {
	_, ok := e.table[jobType]
	return ok
}

// SupportedTypes returns the covered job types in declaration order
func (e *Executor) SupportedTypes() []models.JobType {
	types := make([]models.JobType, 0, len(e.table))
	for _, t := range models.AllJobTypes() {
		if _, ok := e.table[t]; ok {
			types = append(types, t)
		}
	}
	return types
}

// Execute runs one job to a terminal state. All failure modes, including an
// unknown job type and a spawn that never started, land on the tracker as a
// failed result.
func (e *Executor) Execute(ctx context.Context, jobID string, jobType models.JobType, options models.JobOptions) {
	spec, ok := e.table[jobType]
	if !ok {
		e.logger.Warn().Str("job_id", jobID).Str("job_type", string(jobType)).Msg("No command registered for job type")
		e.fail(jobID, fmt.Sprintf("unknown job type: %s", jobType), "")
		return
	}

	if err := e.pacer.Wait(ctx); err != nil {
		e.fail(jobID, "cancelled before start: "+err.Error(), "")
		return
	}
	if err := e.backoff.Wait(ctx); err != nil {
		e.fail(jobID, "cancelled while waiting out rate limit: "+err.Error(), "")
		return
	}

	runCtx, cancel := e.runContext(ctx)
	defer cancel()

	e.register(jobID, cancel)
	defer e.deregister(jobID)

	// The job may have been cancelled while queued behind the gates. Checked
	// after the cancel handle is registered: a cancel landing before this
	// point either marked the job failed (caught here) or fired the handle
	// (caught by the run context at spawn).
	if job, ok := e.tracker.GetJob(jobID); ok && job.IsTerminal() {
		e.logger.Debug().Str("job_id", jobID).Msg("Job reached a terminal state before spawn")
		return
	}

	args := spec.BuildArgs(options)
	cmd := exec.CommandContext(runCtx, e.binary, args...)
	cmd.Dir = e.workDir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		e.fail(jobID, "failed to open stdout pipe: "+err.Error(), "")
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		e.fail(jobID, "failed to open stderr pipe: "+err.Error(), "")
		return
	}

	e.logger.Info().
		Str("job_id", jobID).
		Str("job_type", string(jobType)).
		Str("command", e.binary+" "+strings.Join(args, " ")).
		Msg("Spawning job command")

	if err := cmd.Start(); err != nil {
		e.fail(jobID, "failed to start command: "+err.Error(), "")
		return
	}

	e.tracker.UpdateStatus(jobID, models.JobStatusRunning, nil)

	var wg sync.WaitGroup
	var stdoutTail, stderrTail *tailBuffer

	wg.Add(2)
	go func() {
		defer wg.Done()
		stdoutTail = e.streamStdout(jobID, stdout)
	}()
	go func() {
		defer wg.Done()
		stderrTail = e.streamStderr(jobID, stderr)
	}()
	wg.Wait()

	waitErr := cmd.Wait()
	if waitErr == nil {
		e.complete(jobID, stdoutTail)
		return
	}

	reason := waitErr.Error()
	switch {
	case runCtx.Err() == context.DeadlineExceeded:
		reason = fmt.Sprintf("command timed out after %s", e.timeout)
	case runCtx.Err() == context.Canceled:
		reason = "job cancelled"
	case stderrTail.len() > 0:
		reason = fmt.Sprintf("%s: %s", waitErr.Error(), stderrTail.lastLine())
	}

	e.logger.Warn().
		Str("job_id", jobID).
		Err(waitErr).
		Msg("Job command failed")
	e.fail(jobID, reason, stdoutTail.join())
}

// Cancel kills the running process for the job. Returns false when the job
// has no live process; the terminal bookkeeping happens inside Execute.
func (e *Executor) Cancel(jobID string) bool {
	e.mu.Lock()
	cancel, ok := e.running[jobID]
	e.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	return true
}

func (e *Executor) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout > 0 {
		return context.WithTimeout(ctx, e.timeout)
	}
	return context.WithCancel(ctx)
}

func (e *Executor) register(jobID string, cancel context.CancelFunc) {
	e.mu.Lock()
	e.running[jobID] = cancel
	e.mu.Unlock()
}

func (e *Executor) deregister(jobID string) {
	e.mu.Lock()
	delete(e.running, jobID)
	e.mu.Unlock()
}

// streamStdout forwards progress signals to the tracker line by line.
// The scanner owns chunk boundaries; the parser itself is stateless.
func (e *Executor) streamStdout(jobID string, r io.Reader) *tailBuffer {
	tail := newTailBuffer()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := scanner.Text()
		tail.add(line)
		if update, ok := e.parser.Parse(line); ok {
			e.tracker.UpdateProgress(jobID, update.Current, update.Total, update.Message)
		}
	}
	e.drainOnScanError(jobID, "stdout", scanner, r, tail)
	return tail
}

// streamStderr watches for rate-limit signals while collecting the error tail
func (e *Executor) streamStderr(jobID string, r io.Reader) *tailBuffer {
	tail := newTailBuffer()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := scanner.Text()
		tail.add(line)
		if retryAfter, hit := detectRateLimit(line); hit {
			e.logger.Warn().
				Str("job_id", jobID).
				Dur("retry_after", retryAfter).
				Msg("Rate limit signal in job output")
			e.backoff.RecordHit(retryAfter)
		}
	}
	e.drainOnScanError(jobID, "stderr", scanner, r, tail)
	return tail
}

// drainOnScanError handles a scanner stopping before EOF, typically a line
// over maxLineBytes. The remainder must be consumed: the child blocks writing
// to a full pipe, and an undrained pipe keeps cmd.Wait from ever returning.
func (e *Executor) drainOnScanError(jobID, stream string, scanner *bufio.Scanner, r io.Reader, tail *tailBuffer) {
	err := scanner.Err()
	if err == nil {
		return
	}
	io.Copy(io.Discard, r)
	tail.add(fmt.Sprintf("[%s truncated: %v]", stream, err))
	e.logger.Warn().
		Str("job_id", jobID).
		Str("stream", stream).
		Err(err).
		Msg("Job output truncated")
}

func (e *Executor) complete(jobID string, stdoutTail *tailBuffer) {
	result := &models.JobResult{Output: stdoutTail.join()}

	// Commands that report structured results emit a JSON object as their
	// final line of output.
	if last := stdoutTail.lastLine(); strings.HasPrefix(strings.TrimSpace(last), "{") {
		var data map[string]interface{}
		if err := json.Unmarshal([]byte(last), &data); err == nil {
			result.Data = data
		}
	}

	e.tracker.UpdateStatus(jobID, models.JobStatusCompleted, result)
}

func (e *Executor) fail(jobID, reason, output string) {
	e.tracker.UpdateStatus(jobID, models.JobStatusFailed, &models.JobResult{
		Error:  reason,
		Output: output,
	})
}

// tailBuffer keeps the most recent output lines up to maxOutputLines
type tailBuffer struct {
	lines []string
}

func newTailBuffer() *tailBuffer {
	return &tailBuffer{}
}

func (t *tailBuffer) add(line string) {
	t.lines = append(t.lines, line)
	if len(t.lines) > maxOutputLines {
		t.lines = t.lines[1:]
	}
}

func (t *tailBuffer) len() int {
	if t == nil {
		return 0
	}
	return len(t.lines)
}

func (t *tailBuffer) lastLine() string {
	if t == nil || len(t.lines) == 0 {
		return ""
	}
	for i := len(t.lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(t.lines[i]) != "" {
			return t.lines[i]
		}
	}
	return ""
}

func (t *tailBuffer) join() string {
	if t == nil {
		return ""
	}
	return strings.Join(t.lines, "\n")
}
