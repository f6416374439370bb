// Package worker is the pattern-execution logic invoked by
// cmd/chatvault-worker: render the target to text, run the pattern's
// prompt through Anthropic, write the resulting artifact, and drive the
// Job through running/done/failed.
package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/chatvault/chatvault/internal/pattern"
	"github.com/chatvault/chatvault/internal/render"
	"github.com/chatvault/chatvault/internal/store"
	"github.com/chatvault/chatvault/internal/telemetry"
	"github.com/chatvault/chatvault/internal/types"
)

const (
	maxRetries     = 3
	initialBackoff = 1 * time.Second
	defaultModel   = anthropic.Model("claude-3-5-haiku-latest")
)

// ErrAPIKeyRequired is returned when no Anthropic API key is available.
var ErrAPIKeyRequired = errors.New("worker: ANTHROPIC_API_KEY is required")

// Runner executes one Job to completion against a Store.
type Runner struct {
	store    *store.Store
	catalog  *pattern.Catalog
	client   anthropic.Client
	model    anthropic.Model
	cacheDir string
}

// Option configures a Runner.
type Option func(*Runner)

// WithModel overrides the Anthropic model used for every pattern call.
func WithModel(model anthropic.Model) Option {
	return func(r *Runner) { r.model = model }
}

// WithCacheDir overrides the directory artifacts are written under.
// Defaults to "generated".
func WithCacheDir(dir string) Option {
	return func(r *Runner) { r.cacheDir = dir }
}

// NewRunner builds a Runner. apiKey is used only if ANTHROPIC_API_KEY is
// unset, matching the teacher's own env-wins-over-config precedence in
// compact.newHaikuClient.
func NewRunner(s *store.Store, catalog *pattern.Catalog, apiKey string, opts ...Option) (*Runner, error) {
	if envKey := os.Getenv("ANTHROPIC_API_KEY"); envKey != "" {
		apiKey = envKey
	}
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}

	aiMetricsOnce.Do(initAIMetrics)

	r := &Runner{
		store:    s,
		catalog:  catalog,
		client:   anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:    defaultModel,
		cacheDir: "generated",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run executes jobID to completion: loads the Job row, transitions it
// to running, assembles the prompt for its target, calls Anthropic,
// writes the Markdown artifact, and transitions to done or failed
// (spec.md §4.7 Worker).
func (r *Runner) Run(ctx context.Context, jobID string) error {
	job, err := r.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("worker: load job: %w", err)
	}

	if err := r.store.UpdateJobStatus(ctx, job.ID, types.JobRunning, "", ""); err != nil {
		return fmt.Errorf("worker: mark running: %w", err)
	}

	prompt, err := r.assemblePrompt(ctx, job)
	if err != nil {
		return r.fail(ctx, job, fmt.Errorf("assemble prompt: %w", err))
	}

	r.reportProgress(ctx, job.ID, 1, 3, "calling anthropic")
	output, err := r.callWithRetry(ctx, prompt)
	if err != nil {
		return r.fail(ctx, job, fmt.Errorf("anthropic call: %w", err))
	}

	r.reportProgress(ctx, job.ID, 2, 3, "writing artifact")
	resultPath, err := r.writeArtifact(job, output)
	if err != nil {
		return r.fail(ctx, job, fmt.Errorf("write artifact: %w", err))
	}

	r.reportProgress(ctx, job.ID, 3, 3, "done")
	if err := r.store.UpdateJobStatus(ctx, job.ID, types.JobDone, "", resultPath); err != nil {
		return fmt.Errorf("worker: mark done: %w", err)
	}
	return nil
}

func (r *Runner) fail(ctx context.Context, job types.Job, cause error) error {
	msg := cause.Error()
	if err := r.store.UpdateJobStatus(ctx, job.ID, types.JobFailed, msg, ""); err != nil {
		return fmt.Errorf("worker: mark failed after %q: %w", msg, err)
	}
	return cause
}

func (r *Runner) reportProgress(ctx context.Context, jobID string, current, total int, message string) {
	_ = r.store.UpdateJobProgress(ctx, jobID, types.Progress{Current: current, Total: total, Message: message})
}

// assemblePrompt renders the target (conversation or whole project)
// into the per-conversation export format and wraps it in the
// pattern's prompt template (spec.md §4.7).
func (r *Runner) assemblePrompt(ctx context.Context, job types.Job) (string, error) {
	def, err := r.catalog.Load(job.Pattern)
	if err != nil {
		return "", err
	}

	var content string
	switch job.Type {
	case types.JobTypeConversation:
		conv, messages, err := r.store.GetConversation(ctx, job.TargetID)
		if err != nil {
			return "", err
		}
		content = render.Document(conv, messages)
	case types.JobTypeProject:
		convs, err := r.store.ListConversationsByProject(ctx, job.TargetID)
		if err != nil {
			return "", err
		}
		project := types.Project{GizmoID: job.TargetID, DisplayName: job.TargetName}
		var withMessages []render.ConversationMessages
		for _, c := range convs {
			_, messages, err := r.store.GetConversation(ctx, c.ID)
			if err != nil {
				return "", err
			}
			withMessages = append(withMessages, render.ConversationMessages{Conversation: c, Messages: messages})
		}
		content = render.ProjectDocument(project, withMessages)
	default:
		return "", fmt.Errorf("worker: unknown job type %q", job.Type)
	}

	return pattern.Render(def, map[string]string{"content": content}), nil
}

// writeArtifact writes output as Markdown to <cacheDir>/<job_id>.md,
// the stable per-job artifact path the Coordinator's cache probe checks
// for (spec.md §4.7 Cache).
func (r *Runner) writeArtifact(job types.Job, output string) (string, error) {
	if err := os.MkdirAll(r.cacheDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(r.cacheDir, job.ID+".md")
	if err := os.WriteFile(path, []byte(output), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// aiMetrics holds lazily-initialized OTel instruments for Anthropic API
// calls, the same shape as the teacher's compact.aiMetrics.
var aiMetrics struct {
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	duration     metric.Float64Histogram
}

var aiMetricsOnce sync.Once

func initAIMetrics() {
	m := telemetry.Meter("github.com/chatvault/chatvault/worker")
	aiMetrics.inputTokens, _ = m.Int64Counter("chatvault.ai.input_tokens",
		metric.WithDescription("Anthropic API input tokens consumed"),
		metric.WithUnit("{token}"),
	)
	aiMetrics.outputTokens, _ = m.Int64Counter("chatvault.ai.output_tokens",
		metric.WithDescription("Anthropic API output tokens generated"),
		metric.WithUnit("{token}"),
	)
	aiMetrics.duration, _ = m.Float64Histogram("chatvault.worker.duration",
		metric.WithDescription("Worker pattern-execution duration in milliseconds"),
		metric.WithUnit("ms"),
	)
}

// callWithRetry calls the Anthropic Messages API with exponential
// backoff on retryable errors, mirroring compact.haikuClient's
// callWithRetry.
func (r *Runner) callWithRetry(ctx context.Context, prompt string) (string, error) {
	tracer := telemetry.Tracer("github.com/chatvault/chatvault/worker")
	ctx, span := tracer.Start(ctx, "anthropic.messages.new")
	defer span.End()
	span.SetAttributes(
		attribute.String("chatvault.ai.model", string(r.model)),
	)

	var lastErr error
	params := anthropic.MessageNewParams{
		Model:     r.model,
		MaxTokens: 4096,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := initialBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		t0 := time.Now()
		message, err := r.client.Messages.New(ctx, params)
		ms := float64(time.Since(t0).Milliseconds())

		if err == nil {
			modelAttr := attribute.String("chatvault.ai.model", string(r.model))
			if aiMetrics.inputTokens != nil {
				aiMetrics.inputTokens.Add(ctx, message.Usage.InputTokens, metric.WithAttributes(modelAttr))
				aiMetrics.outputTokens.Add(ctx, message.Usage.OutputTokens, metric.WithAttributes(modelAttr))
				aiMetrics.duration.Record(ctx, ms, metric.WithAttributes(modelAttr))
			}
			span.SetAttributes(attribute.Int("chatvault.ai.attempts", attempt+1))

			if len(message.Content) == 0 {
				return "", fmt.Errorf("unexpected response format: no content blocks")
			}
			block := message.Content[0]
			if block.Type != "text" {
				return "", fmt.Errorf("unexpected response format: not a text block (type=%s)", block.Type)
			}
			return block.Text, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !isRetryable(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return "", fmt.Errorf("non-retryable error: %w", err)
		}
	}

	if lastErr != nil {
		span.RecordError(lastErr)
		span.SetStatus(codes.Error, lastErr.Error())
	}
	return "", fmt.Errorf("failed after %d attempts: %w", maxRetries+1, lastErr)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 429 || apiErr.StatusCode >= 500 {
			return true
		}
		return false
	}
	return false
}
