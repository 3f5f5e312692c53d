// Package genai 封装外部文本生成服务：限流、重试退避、超时与错误分类
// 全部由本包持有，调用方只面对窄接口 Generator。
package genai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	"github.com/orxan-hv/press_radar/pkg/config"
)

// 生成服务错误分类
var (
	ErrRateLimited = errors.New("generation service rate limited")
	ErrTimeout     = errors.New("generation service timeout")
	ErrUpstream    = errors.New("generation service upstream error")
)

// Option 单次调用选项
type Option func(*callOptions)

type callOptions struct {
	temperature float32
	maxTokens   int
	system      string
}

// WithTemperature 设置采样温度
func WithTemperature(t float64) Option {
	return func(o *callOptions) { o.temperature = float32(t) }
}

// WithMaxTokens 设置输出 token 上限
func WithMaxTokens(n int) Option {
	return func(o *callOptions) { o.maxTokens = n }
}

// WithSystem 设置系统提示词
func WithSystem(s string) Option {
	return func(o *callOptions) { o.system = s }
}

// Generator 文本生成能力接口，业务组件依赖它而非具体客户端
type Generator interface {
	Generate(ctx context.Context, prompt string, opts ...Option) (string, error)
}

// Client 基于 eino ChatModel 的生成客户端，持有显式注入的令牌桶限流器
type Client struct {
	cm          model.ChatModel
	limiter     *rate.Limiter
	maxRetries  int
	baseDelay   time.Duration
	callTimeout time.Duration
}

var _ Generator = (*Client)(nil)

// New 创建生成客户端
func New(ctx context.Context, cfg config.LLMConfig, limiter *rate.Limiter) (*Client, error) {
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM 初始化失败: %w", err)
	}
	return NewWithModel(cm, limiter), nil
}

// NewWithModel 用现成的 ChatModel 构造客户端，便于测试注入
func NewWithModel(cm model.ChatModel, limiter *rate.Limiter) *Client {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Limit(1), 1)
	}
	return &Client{
		cm:          cm,
		limiter:     limiter,
		maxRetries:  3,
		baseDelay:   2 * time.Second,
		callTimeout: 90 * time.Second,
	}
}

// NewLimiter 按配置构造令牌桶：Limit 为 RPM/60，Burst 为 QPS
func NewLimiter(cc config.ConcurrencyConfig) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(float64(cc.RPM)/60.0), cc.QPS)
}

// Generate 发起一次生成调用。限流等待在重试循环内，429 按指数退避重试，
// 其余错误分类后直接返回。
func (c *Client) Generate(ctx context.Context, prompt string, opts ...Option) (string, error) {
	o := callOptions{temperature: 0.7}
	for _, opt := range opts {
		opt(&o)
	}

	messages := make([]*schema.Message, 0, 2)
	if o.system != "" {
		messages = append(messages, &schema.Message{Role: schema.System, Content: o.system})
	}
	messages = append(messages, &schema.Message{Role: schema.User, Content: prompt})

	var modelOpts []model.Option
	modelOpts = append(modelOpts, model.WithTemperature(o.temperature))
	if o.maxTokens > 0 {
		modelOpts = append(modelOpts, model.WithMaxTokens(o.maxTokens))
	}

	var lastErr error
	for i := 0; i <= c.maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", classify(err)
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if c.callTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, c.callTimeout)
		}
		resp, err := c.cm.Generate(callCtx, messages, modelOpts...)
		if cancel != nil {
			cancel()
		}
		if err != nil {
			lastErr = classify(err)
			if errors.Is(lastErr, ErrRateLimited) && i < c.maxRetries {
				select {
				case <-time.After(c.baseDelay * time.Duration(1<<i)):
					continue
				case <-ctx.Done():
					return "", classify(ctx.Err())
				}
			}
			return "", lastErr
		}
		return strings.TrimSpace(resp.Content), nil
	}
	return "", lastErr
}

// classify 将底层错误映射到固定分类
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case strings.Contains(msg, "429") || strings.Contains(msg, "too many requests") || strings.Contains(msg, "rate limit"):
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	default:
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
}

// StripFences 去掉模型输出中的 markdown 代码围栏，供结构化解析使用
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
