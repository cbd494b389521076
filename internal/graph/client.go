// Package graph 封装对远端目录/邮件服务的访问。
//
// 传输层细节（重试、令牌刷新）由调用方注入的 TokenSource 和
// http.Client 承担，本包只负责请求组装、限流和响应解码。
package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	ErrUserNotFound = errors.New("user not found")
)

// APIError 表示目录服务返回的非 2xx 响应。
type APIError struct {
	StatusCode int    `json:"statusCode"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("graph api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
}

// IsNotFound 判断错误是否为目录服务的 404 响应。
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return errors.Is(err, ErrUserNotFound)
}

// TokenSource 提供访问令牌。
//
// 令牌的获取和刷新不在本系统职责范围内，由外部协作方实现。
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource 返回固定令牌（用于测试和简单部署）。
type StaticTokenSource string

func (s StaticTokenSource) Token(_ context.Context) (string, error) {
	return string(s), nil
}

// Client 是目录服务的最小请求接口。
//
// 所有探测和邮箱读取都通过这一个操作形状进行。
type Client interface {
	Request(ctx context.Context, method, path string, out interface{}) error
}

// HTTPClient 基于 HTTP 的目录服务客户端。
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	limiter    *rate.Limiter
	log        *zap.Logger
}

// NewHTTPClient 创建目录服务客户端。
//
// 参数:
//   - baseURL: 目录服务根地址，例如 https://graph.example.com/v1.0
//   - tokens: 访问令牌来源
//   - requestsPerSecond: 对远端服务的请求速率上限，<=0 表示不限流
func NewHTTPClient(baseURL string, tokens TokenSource, requestsPerSecond float64, log *zap.Logger) *HTTPClient {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), int(requestsPerSecond)+1)
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		tokens:  tokens,
		limiter: limiter,
		log:     log,
	}
}

// Request 执行一次认证请求并把 JSON 响应解码到 out。
//
// out 为 nil 时丢弃响应体（只关心状态码的调用，例如收件箱探测）。
func (c *HTTPClient) Request(ctx context.Context, method, path string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("acquire token: %w", err)
	}

	url := c.baseURL + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("graph request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.log.Debug("graph request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.decodeError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode graph response: %w", err)
	}
	return nil
}

// decodeError 解析服务端错误响应体，解析失败时退化为纯状态码错误。
func (c *HTTPClient) decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		apiErr.Code = body.Error.Code
		apiErr.Message = body.Error.Message
	}
	return apiErr
}
