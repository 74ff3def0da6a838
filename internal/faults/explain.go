package faults

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type Category string

const (
	CategoryAuth           Category = "auth"
	CategoryQuota          Category = "quota"
	CategoryRateLimited    Category = "rate_limited"
	CategoryGatewayTimeout Category = "gateway_timeout"
	CategoryUnavailable    Category = "unavailable"
	CategoryInvalidRequest Category = "invalid_request"
	CategoryMalformed      Category = "malformed"
	CategoryGeneric        Category = "generic"
)

const (
	authMessage           = "The workflow service rejected the credentials. Check the API key."
	quotaMessage          = "The workflow service quota is exhausted. Try again later or raise the quota."
	rateLimitedMessage    = "Too many requests were sent to the workflow service. Wait a moment and retry."
	gatewayTimeoutMessage = "The workflow service gateway timed out while processing the request."
	unavailableMessage    = "The workflow service is unreachable or temporarily unavailable."
	invalidRequestMessage = "The request was rejected as invalid. Check the submitted file list."
	malformedMessage      = "The workflow service returned a response that could not be interpreted."
	genericMessage        = "An unexpected error occurred while optimizing the file structure."
)

var (
	supportedLanguages = []language.Tag{language.English, language.Korean}
	languageMatcher    = language.NewMatcher(supportedLanguages)

	categoryMessages = map[Category]string{
		CategoryAuth:           authMessage,
		CategoryQuota:          quotaMessage,
		CategoryRateLimited:    rateLimitedMessage,
		CategoryGatewayTimeout: gatewayTimeoutMessage,
		CategoryUnavailable:    unavailableMessage,
		CategoryInvalidRequest: invalidRequestMessage,
		CategoryMalformed:      malformedMessage,
		CategoryGeneric:        genericMessage,
	}
)

func init() {
	koreanMessages := map[string]string{
		authMessage:           "워크플로 서비스가 인증 정보를 거부했습니다. API 키를 확인하세요.",
		quotaMessage:          "워크플로 서비스 사용량 한도를 초과했습니다. 나중에 다시 시도하거나 한도를 늘리세요.",
		rateLimitedMessage:    "워크플로 서비스에 요청이 너무 많습니다. 잠시 후 다시 시도하세요.",
		gatewayTimeoutMessage: "워크플로 서비스 게이트웨이에서 요청 처리 시간이 초과되었습니다.",
		unavailableMessage:    "워크플로 서비스에 연결할 수 없거나 일시적으로 사용할 수 없습니다.",
		invalidRequestMessage: "잘못된 요청입니다. 전송한 파일 목록을 확인하세요.",
		malformedMessage:      "워크플로 서비스의 응답을 해석할 수 없습니다.",
		genericMessage:        "파일 구조를 최적화하는 중 예상치 못한 오류가 발생했습니다.",
	}
	for key, translation := range koreanMessages {
		_ = message.SetString(language.Korean, key, translation)
	}
}

// Explanation is the user-facing description of a failure.
type Explanation struct {
	Kind     Kind     `json:"kind,omitempty"`
	Category Category `json:"category"`
	Message  string   `json:"message"`
	Language string   `json:"language"`
}

// Explain classifies err against the known failure table and renders the
// message in the best match among the preferred languages. English is used
// when nothing matches.
func Explain(err error, preferred ...language.Tag) Explanation {
	category := Categorize(err)
	tag := MatchLanguage(preferred...)
	printer := message.NewPrinter(tag)
	base, _ := tag.Base()
	return Explanation{
		Kind:     KindOf(err),
		Category: category,
		Message:  printer.Sprintf(categoryMessages[category]),
		Language: base.String(),
	}
}

// MatchLanguage picks the supported language closest to the preference list.
func MatchLanguage(preferred ...language.Tag) language.Tag {
	_, index, _ := languageMatcher.Match(preferred...)
	return supportedLanguages[index]
}

// ParseAcceptLanguage converts an Accept-Language header into preference
// tags, returning nil for an empty or invalid header.
func ParseAcceptLanguage(header string) []language.Tag {
	if strings.TrimSpace(header) == "" {
		return nil
	}
	tags, _, parseErr := language.ParseAcceptLanguage(header)
	if parseErr != nil {
		return nil
	}
	return tags
}

// Categorize matches the status code and error text against the failure table.
func Categorize(err error) Category {
	if err == nil {
		return CategoryGeneric
	}
	switch KindOf(err) {
	case KindInvalidInput:
		return CategoryInvalidRequest
	case KindMalformedResponse, KindInvalidShape:
		return CategoryMalformed
	}

	text := strings.ToLower(err.Error())
	switch status := StatusOf(err); status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return CategoryAuth
	case http.StatusTooManyRequests:
		return CategoryRateLimited
	case http.StatusBadGateway, http.StatusGatewayTimeout:
		return CategoryGatewayTimeout
	case http.StatusInternalServerError, http.StatusServiceUnavailable:
		return CategoryUnavailable
	case http.StatusBadRequest:
		if strings.Contains(text, "quota") {
			return CategoryQuota
		}
		return CategoryInvalidRequest
	case http.StatusNotFound:
		return CategoryUnavailable
	}

	var networkErr net.Error
	switch {
	case strings.Contains(text, "quota"):
		return CategoryQuota
	case strings.Contains(text, "unauthorized") || strings.Contains(text, "invalid api key") ||
		strings.Contains(text, "forbidden") || strings.Contains(text, "missing api key"):
		return CategoryAuth
	case strings.Contains(text, "rate limit") || strings.Contains(text, "too many requests"):
		return CategoryRateLimited
	case errors.Is(err, context.DeadlineExceeded) || errors.As(err, &networkErr) ||
		strings.Contains(text, "timeout") || strings.Contains(text, "connection refused") ||
		strings.Contains(text, "no such host") || strings.Contains(text, "network"):
		return CategoryUnavailable
	case strings.Contains(text, "json") || strings.Contains(text, "unexpected end"):
		return CategoryMalformed
	default:
		return CategoryGeneric
	}
}
