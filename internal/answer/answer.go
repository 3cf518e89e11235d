// Package answer turns ranked fragments and a question into a grounded answer
// by calling a chat model. Generation failures never escape as errors: they
// come back as a Result carrying a printable answer and a Failure.
package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/docqa-go/internal/budget"
	"github.com/54b3r/docqa-go/internal/corpus"
	"github.com/54b3r/docqa-go/internal/logging"
)

// SystemPrompt is the fixed instruction sent with every question.
const SystemPrompt = "You are a helpful AI assistant that answers questions based on the provided documents. " +
	"If the answer can be found in the documents, cite the document source names in your answer. " +
	"If the answer cannot be found in the documents, say so clearly and suggest what additional " +
	"information might be needed."

const (
	// DefaultMaxChunks is how many ranked fragments are sent as context.
	DefaultMaxChunks = 3
	// DefaultTimeout bounds a single generation call.
	DefaultTimeout = 60 * time.Second
)

// runInfo identifies generation calls to callback handlers such as tracing.
var runInfo = &callbacks.RunInfo{
	Name:      "docqa-answer",
	Type:      "Composer",
	Component: components.ComponentOfChatModel,
}

// contextSeparator separates labelled fragments in the context block.
const contextSeparator = "\n\n---\n\n"

// errorPrefix starts every answer produced for a failed generation.
const errorPrefix = "Error querying language model: "

// Reason classifies a generation failure.
type Reason string

const (
	// ReasonGeneration covers transport, auth and provider errors.
	ReasonGeneration Reason = "generation_failed"
	// ReasonTimeout means the call exceeded the configured timeout.
	ReasonTimeout Reason = "timeout"
	// ReasonEmptyResponse means the model replied without any text.
	ReasonEmptyResponse Reason = "empty_response"
)

// Failure describes why generation did not produce an answer.
type Failure struct {
	Reason Reason
	Err    error
}

// Error implements error.
func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Reason, f.Err)
}

// Unwrap returns the underlying cause.
func (f *Failure) Unwrap() error { return f.Err }

// Result is the outcome of one Compose call. Answer is always printable.
// On success Failure is nil and Sources lists the distinct sources of the
// fragments sent as context, in ranking order. On failure Answer holds a
// descriptive error message and Sources is empty.
type Result struct {
	Answer  string
	Sources []string
	Failure *Failure
}

// OK reports whether generation succeeded.
func (r Result) OK() bool { return r.Failure == nil }

// Config holds the dependencies of a Composer.
type Config struct {
	// Model generates the answer text.
	Model model.BaseChatModel
	// MaxChunks caps the fragments used as context. Defaults to DefaultMaxChunks.
	MaxChunks int
	// Timeout bounds each generation call. Defaults to DefaultTimeout.
	Timeout time.Duration
	// MaxContextTokens is the estimated prompt size above which a warning
	// is logged. Defaults to budget.DefaultMaxContextTokens.
	MaxContextTokens int
}

// Composer builds the grounded prompt and delegates generation to a chat model.
// It is safe for concurrent use when the model is.
type Composer struct {
	model     model.BaseChatModel
	maxChunks int
	timeout   time.Duration
	maxTokens int
}

// New constructs a Composer from cfg.
func New(cfg Config) (*Composer, error) {
	if cfg.Model == nil {
		return nil, errors.New("answer: Model must not be nil")
	}
	maxChunks := cfg.MaxChunks
	if maxChunks <= 0 {
		maxChunks = DefaultMaxChunks
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Composer{
		model:     cfg.Model,
		maxChunks: maxChunks,
		timeout:   timeout,
		maxTokens: cfg.MaxContextTokens,
	}, nil
}

// MaxChunks returns the context fragment limit.
func (c *Composer) MaxChunks() int { return c.maxChunks }

// Compose answers question from the first MaxChunks of ranked, which must
// already be in descending relevance order.
func (c *Composer) Compose(ctx context.Context, question string, ranked []corpus.ScoredFragment) Result {
	used := ranked[:min(len(ranked), c.maxChunks)]
	frags := make([]corpus.Fragment, len(used))
	for i, sf := range used {
		frags[i] = sf.Fragment
	}
	sources := UniqueSources(frags)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	// Attaches globally registered handlers; a no-op when none are registered.
	ctx = callbacks.InitCallbacks(ctx, runInfo)

	log := logging.FromContext(ctx)
	msgs := BuildMessages(question, frags)
	usage := budget.Measure(msgs, c.maxTokens)
	if usage.Over() {
		log.Warn("answer: prompt may exceed model context",
			slog.Int("estimated_tokens", usage.Tokens),
			slog.Int("max_tokens", usage.Max),
		)
	}

	start := time.Now()
	msg, err := c.model.Generate(ctx, msgs)

	var failure *Failure
	switch {
	case err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded):
		failure = &Failure{Reason: ReasonTimeout, Err: fmt.Errorf("no response within %s: %w", c.timeout, err)}
	case err != nil:
		failure = &Failure{Reason: ReasonGeneration, Err: err}
	case msg == nil || strings.TrimSpace(msg.Content) == "":
		failure = &Failure{Reason: ReasonEmptyResponse, Err: errors.New("model returned no text")}
	}

	if failure != nil {
		log.Error("answer: generation failed",
			slog.String("reason", string(failure.Reason)),
			slog.Any("error", failure.Err),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return Result{
			Answer:  errorPrefix + failure.Err.Error(),
			Sources: []string{},
			Failure: failure,
		}
	}

	log.Debug("answer: generated",
		slog.Int("fragments", len(frags)),
		slog.Int("sources", len(sources)),
		slog.Int("estimated_tokens", usage.Tokens),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return Result{Answer: msg.Content, Sources: sources}
}

// BuildContext labels each fragment with its source and joins them.
func BuildContext(frags []corpus.Fragment) string {
	parts := make([]string, len(frags))
	for i, f := range frags {
		parts[i] = "Document: " + f.Source + "\n\n" + f.Text
	}
	return strings.Join(parts, contextSeparator)
}

// BuildMessages returns the system instruction followed by the user turn
// carrying the labelled context and the question.
func BuildMessages(question string, frags []corpus.Fragment) []*schema.Message {
	user := "Here are some relevant documents:\n\n" + BuildContext(frags) +
		contextSeparator + "Question: " + question
	return []*schema.Message{
		schema.SystemMessage(SystemPrompt),
		schema.UserMessage(user),
	}
}

// UniqueSources returns the distinct sources of frags in first-seen order.
func UniqueSources(frags []corpus.Fragment) []string {
	seen := make(map[string]struct{}, len(frags))
	out := make([]string, 0, len(frags))
	for _, f := range frags {
		if _, ok := seen[f.Source]; ok {
			continue
		}
		seen[f.Source] = struct{}{}
		out = append(out, f.Source)
	}
	return out
}
