package providers

import "strings"

type ErrorType string

const (
	ErrorQuota     ErrorType = "quota"
	ErrorRate      ErrorType = "rate"
	ErrorTransient ErrorType = "transient"
	ErrorPermanent ErrorType = "permanent"
	ErrorContext   ErrorType = "context"
)

func ClassifyError(err error) ErrorType {
	if err == nil {
		return ""
	}
	e := strings.ToLower(err.Error())
	switch {
	case strings.Contains(e, "quota"), strings.Contains(e, "credit"), strings.Contains(e, "insufficient_quota"):
		return ErrorQuota
	case strings.Contains(e, "rate"), strings.Contains(e, "429"):
		return ErrorRate
	case strings.Contains(e, "context length"), strings.Contains(e, "context window"), strings.Contains(e, "too long"):
		return ErrorContext
	case strings.Contains(e, "timeout"), strings.Contains(e, "deadline exceeded"),
		strings.Contains(e, "temporarily"), strings.Contains(e, "unavailable"),
		strings.Contains(e, "connection reset"), strings.Contains(e, "connection refused"),
		strings.Contains(e, "status 5"), strings.Contains(e, "error 5"):
		return ErrorTransient
	default:
		return ErrorPermanent
	}
}

// Retryable reports whether a failed backend call is worth repeating:
// rate limits (429) and transient network/5xx failures are; auth, quota and
// other permanent errors are not.
func Retryable(err error) bool {
	switch ClassifyError(err) {
	case ErrorRate, ErrorTransient:
		return true
	default:
		return false
	}
}
