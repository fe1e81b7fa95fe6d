package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"carlton/internal/metrics"
)

// ErrGeneratorUnavailable is returned when the optional text generator is
// not configured, fails, times out or returns nothing usable.
var ErrGeneratorUnavailable = errors.New("text generator unavailable")

// TextGenerator produces free text for a prompt. Implementations wrap
// failures with ErrGeneratorUnavailable.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// generateOnce makes a single bounded attempt. It never retries.
func generateOnce(ctx context.Context, gen TextGenerator, timeout time.Duration, prompt string) (string, error) {
	if gen == nil {
		return "", ErrGeneratorUnavailable
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := gen.Generate(ctx, prompt)
	elapsed := time.Since(start)

	if err != nil {
		outcome := "error"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			outcome = "timeout"
		}
		metrics.RecordGeneratorCall(outcome, elapsed)
		if errors.Is(err, ErrGeneratorUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrGeneratorUnavailable, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		metrics.RecordGeneratorCall("empty", elapsed)
		return "", fmt.Errorf("%w: empty response", ErrGeneratorUnavailable)
	}
	metrics.RecordGeneratorCall("ok", elapsed)
	return text, nil
}

var templateFuncs = template.FuncMap{
	"join": strings.Join,
}

func parseTemplate(name, text string) (*template.Template, error) {
	t, err := template.New(name).Funcs(templateFuncs).Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
	}
	return t, nil
}

func render(t *template.Template, data interface{}) string {
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return ""
	}
	return strings.TrimSpace(sb.String())
}
