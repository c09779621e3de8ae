package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	openaisdk "github.com/openai/openai-go"

	"z-writer-ai-api/internal/workflow/port"
)

// finishContentFilter 供应商因内容策略截断输出
const finishContentFilter = "content_filter"

// classifyStatus 按 HTTP 状态码分类：除超时、冲突、限流外的 4xx 为拒绝，其余为不可用
func classifyStatus(status int, err error) error {
	switch {
	case status == http.StatusRequestTimeout, status == http.StatusConflict, status == http.StatusTooManyRequests:
		return port.Unavailable(err)
	case status >= 400 && status < 500:
		return port.Rejected(err)
	default:
		return port.Unavailable(err)
	}
}

// classifyOpenAIError openai-go 返回结构化错误，直接取状态码
func classifyOpenAIError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openaisdk.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.StatusCode, err)
	}
	return port.Unavailable(err)
}

// statusCodePattern eino openai 适配器的错误文本形如 "error, status code: 400, status: ..."
var statusCodePattern = regexp.MustCompile(`status code: (\d{3})\b`)

// classifyEinoError eino 适配器只暴露错误文本：优先取其中的状态码，否则按错误类型与关键字判断
func classifyEinoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return port.Unavailable(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return port.Unavailable(err)
	}

	msg := strings.ToLower(err.Error())
	if m := statusCodePattern.FindStringSubmatch(msg); m != nil {
		status, _ := strconv.Atoi(m[1])
		return classifyStatus(status, err)
	}
	switch {
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "timeout"):
		return port.Unavailable(err)
	case strings.Contains(msg, "content_policy"), strings.Contains(msg, "content policy"),
		strings.Contains(msg, "content_filter"), strings.Contains(msg, "invalid_request_error"),
		strings.Contains(msg, "context_length_exceeded"):
		return port.Rejected(err)
	default:
		return port.Unavailable(err)
	}
}
