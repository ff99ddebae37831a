package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/compozy/plansync/engine/core"
)

const (
	ErrCodeRateLimit   = "LLM_RATE_LIMIT"
	ErrCodeUnavailable = "LLM_UNAVAILABLE"
	ErrCodeAuth        = "LLM_AUTH"
	ErrCodeBadRequest  = "LLM_BAD_REQUEST"
	ErrCodeGeneration  = "LLM_GENERATION"
)

var (
	statusPattern         = regexp.MustCompile(`(?i)(?:status(?: code)?:?|http)\s*(\d{3})`)
	transientRetryPattern = regexp.MustCompile(
		`(?i)(rate limit|too many requests|timeout|timed out|connection reset|connection refused|` +
			`temporarily unavailable|overloaded|EOF)`,
	)
)

// classify wraps provider errors into a core.Error carrying a stable code.
func classify(provider string, err error) error {
	code := ErrCodeGeneration
	if status := extractStatus(err.Error()); status > 0 {
		switch {
		case status == http.StatusTooManyRequests:
			code = ErrCodeRateLimit
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			code = ErrCodeAuth
		case status >= http.StatusInternalServerError:
			code = ErrCodeUnavailable
		case status >= http.StatusBadRequest:
			code = ErrCodeBadRequest
		}
	}
	return core.NewError(err, code, map[string]any{"provider": provider})
}

func extractStatus(msg string) int {
	m := statusPattern.FindStringSubmatch(msg)
	if len(m) != 2 {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// IsRetryable reports whether a failed generation is worth another attempt.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	switch core.ErrorCode(err) {
	case ErrCodeRateLimit, ErrCodeUnavailable:
		return true
	case ErrCodeAuth, ErrCodeBadRequest:
		return false
	}
	return transientRetryPattern.MatchString(strings.TrimSpace(err.Error()))
}
