package service

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// FeedFetcher 拉取外部渠道的日历订阅
type FeedFetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

type httpFeedFetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewFeedFetcher 创建 HTTP 订阅拉取器；timeout 为单次请求的总时长上限
func NewFeedFetcher(timeout time.Duration, maxBytes int64) FeedFetcher {
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	return &httpFeedFetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
	}
}

// ValidateFeedURL 仅接受 http / https / webcal 且带主机名的地址
func ValidateFeedURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ErrInvalidFeedURL
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "webcal":
		return nil
	}
	return ErrInvalidFeedURL
}

// normalizeFeedURL webcal:// → https://
func normalizeFeedURL(raw string) string {
	u := strings.TrimSpace(raw)
	if len(u) >= 9 && strings.EqualFold(u[:9], "webcal://") {
		u = "https://" + u[9:]
	}
	return u
}

// Fetch 任何 2xx 且正文为文本即视为成功；其余情况（含超时）都返回 ErrFeedFetch
func (f *httpFeedFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if err := ValidateFeedURL(rawURL); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFeedFetch, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, normalizeFeedURL(rawURL), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedFetch, err)
	}
	req.Header.Set("Accept", "text/calendar, text/plain;q=0.9, */*;q=0.1")
	req.Header.Set("User-Agent", "hostcal-sync/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: HTTP %d", ErrFeedFetch, resp.StatusCode)
	}

	// 限制响应体大小，多读一个字节用于判断是否超限
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: 读取响应失败: %v", ErrFeedFetch, err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("%w: 响应超过 %d 字节", ErrFeedFetch, f.maxBytes)
	}

	if !isTextContent(resp.Header.Get("Content-Type"), body) {
		return nil, fmt.Errorf("%w: 非文本响应 %q", ErrFeedFetch, resp.Header.Get("Content-Type"))
	}
	return body, nil
}

// isTextContent 声明了 Content-Type 时以声明为准，否则按内容嗅探
func isTextContent(contentType string, body []byte) bool {
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mediaType, "text/")
}
