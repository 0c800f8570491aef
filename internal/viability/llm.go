package viability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"regexp"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const systemPrompt = "You are a product viability analyst. You fuse customer sentiment, industry trends, " +
	"competitor activity, and internal objectives into conservative, structured assessments. " +
	"You do not invent facts. When asked for JSON, return strict JSON only."

var statusCodeRe = regexp.MustCompile(`(?:status(?:\s+code)?[:=\s]+)(\d{3})`)

type transportFailureClass int

const (
	failureTimeout transportFailureClass = iota
	failureRateLimit
	failureServer
	failureClient
)

// LLMCaller is the text-generation capability. Transport-level retry and
// backoff are a property of the implementation, not of the stages that call
// it: each stage issues exactly one GenerateJSON/GenerateText call.
type LLMCaller interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
	GenerateText(ctx context.Context, prompt string) (string, error)
	ModelName() string
}

type AnthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type AnthropicCaller struct {
	messages    AnthropicMessager
	model       string
	maxAttempts int
}

type AnthropicClientCreator func(apiKey string) AnthropicMessager

func defaultAnthropicCreator(apiKey string) AnthropicMessager {
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &c.Messages
}

var newAnthropicClient AnthropicClientCreator = defaultAnthropicCreator

func NewAnthropicCallerFromEnv() (*AnthropicCaller, error) {
	apiKey := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	if apiKey == "" {
		return nil, &ConfigurationError{Missing: "ANTHROPIC_API_KEY not configured"}
	}
	model := strings.TrimSpace(os.Getenv("VIABILITY_LLM_MODEL"))
	if model == "" {
		model = DefaultLLMModel
	}
	return &AnthropicCaller{messages: newAnthropicClient(apiKey), model: model, maxAttempts: 3}, nil
}

func (a *AnthropicCaller) ModelName() string { return a.model }

func (a *AnthropicCaller) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	return a.generate(ctx, prompt+"\n\nReturn valid JSON only. No markdown fences, no commentary.")
}

func (a *AnthropicCaller) GenerateText(ctx context.Context, prompt string) (string, error) {
	return a.generate(ctx, prompt)
}

func (a *AnthropicCaller) generate(ctx context.Context, prompt string) (string, error) {
	attempts := a.maxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		start := time.Now()
		resp, err := a.messages.New(ctx, anthropic.MessageNewParams{
			Model:       anthropic.Model(a.model),
			MaxTokens:   4096,
			System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
			Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
			Temperature: anthropic.Float(0),
		})
		if err == nil {
			var sb strings.Builder
			for _, b := range resp.Content {
				if b.Type == "text" {
					sb.WriteString(b.Text)
				}
			}
			return sb.String(), nil
		}
		lastErr = err
		class := classifyTransportError(err)
		log.Printf("viability llm_transport_error attempt=%d class=%d elapsed_ms=%d err=%q", attempt, class, time.Since(start).Milliseconds(), err.Error())
		if class == failureClient || attempt == attempts {
			break
		}
		if err := sleepCtx(ctx, backoffDelay(attempt)); err != nil {
			return "", err
		}
	}
	return "", lastErr
}

// extractJSON issues one generation call and coerces the response into out.
// Every failure mode (transport, empty response, bad JSON, validation) comes
// back as a *GenerationError so callers can apply their fallback policy.
func extractJSON(ctx context.Context, caller LLMCaller, stage, prompt string, out any, validate func() error) error {
	start := time.Now()
	raw, err := caller.GenerateJSON(ctx, prompt)
	if err != nil {
		return &GenerationError{Stage: stage, Err: err}
	}
	clean := stripCodeFences(raw)
	if clean == "" {
		return &GenerationError{Stage: stage, Err: errors.New("empty response")}
	}
	if err := json.Unmarshal([]byte(clean), out); err != nil {
		log.Printf("viability llm_json_error stage=%s elapsed_ms=%d err=%q", stage, time.Since(start).Milliseconds(), err.Error())
		return &GenerationError{Stage: stage, Err: fmt.Errorf("json parse: %w", err)}
	}
	if validate != nil {
		if err := validate(); err != nil {
			log.Printf("viability llm_validation_error stage=%s elapsed_ms=%d err=%q", stage, time.Since(start).Milliseconds(), err.Error())
			return &GenerationError{Stage: stage, Err: fmt.Errorf("validation: %w", err)}
		}
	}
	log.Printf("viability llm_success stage=%s elapsed_ms=%d response_chars=%d", stage, time.Since(start).Milliseconds(), len(clean))
	return nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		parts := strings.SplitN(s, "\n", 2)
		if len(parts) == 2 {
			s = parts[1]
		}
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}

func classifyTransportError(err error) transportFailureClass {
	if errors.Is(err, context.DeadlineExceeded) {
		return failureTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return failureTimeout
	}
	msg := strings.ToLower(err.Error())
	if m := statusCodeRe.FindStringSubmatch(msg); len(m) == 2 {
		switch {
		case m[1] == "429":
			return failureRateLimit
		case strings.HasPrefix(m[1], "5"):
			return failureServer
		case strings.HasPrefix(m[1], "4"):
			return failureClient
		}
	}
	switch {
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "status 429"):
		return failureRateLimit
	case strings.Contains(msg, "status 4"), strings.Contains(msg, "status code: 4"):
		return failureClient
	default:
		return failureServer
	}
}

func backoffDelay(attempt int) time.Duration {
	switch attempt {
	case 1:
		return 1 * time.Second
	case 2:
		return 2 * time.Second
	default:
		return 4 * time.Second
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
