// Package progress 定义流水线对外的单向推送事件流。
// 事件只追加、不修改，生产顺序即投递顺序；流必须以 complete 或 error
// 二者之一收尾，且恰好一次。
package progress

import (
	"sync"

	"github.com/orxan-hv/press_radar/pkg/model"
)

// EventType 事件标签，闭集
type EventType string

const (
	EventStart            EventType = "start"
	EventScope            EventType = "scope"
	EventRegionStart      EventType = "region_start"
	EventQueriesGenerated EventType = "queries_generated"
	EventArticleFound     EventType = "article_found"
	EventRegionComplete   EventType = "region_complete"
	EventRegionError      EventType = "region_error"
	EventStatistics       EventType = "statistics"
	EventGeneratingDigest EventType = "generating_digest"
	EventComplete         EventType = "complete"
	EventError            EventType = "error"
)

// IsTerminal 判断事件是否结束整个流
func IsTerminal(t EventType) bool {
	return t == EventComplete || t == EventError
}

// Event 推送给客户端的单条事件
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

// ScopePayload 选定范围与预估规模
type ScopePayload struct {
	Subjects       []model.Subject      `json:"subjects"`
	Regions        []model.SourceRegion `json:"regions"`
	QueriesPerUnit int                  `json:"queries_per_unit"`
}

// RegionPayload 地区生命周期事件的通用负载
type RegionPayload struct {
	Region   string `json:"region"`
	Name     string `json:"name"`
	Language string `json:"language,omitempty"`
}

// QueriesPayload 查询生成完成
type QueriesPayload struct {
	Region  string   `json:"region"`
	Queries []string `json:"queries"`
}

// ArticlePayload 发现一篇候选文章
type ArticlePayload struct {
	Region     string `json:"region"`
	SourceName string `json:"source_name"`
	Title      string `json:"title"`
}

// RegionCompletePayload 单地区完成及其情感小计
type RegionCompletePayload struct {
	Region   string `json:"region"`
	Articles int    `json:"articles"`
	Positive int    `json:"positive"`
	Negative int    `json:"negative"`
	Neutral  int    `json:"neutral"`
}

// RegionErrorPayload 单地区失败，不中止运行
type RegionErrorPayload struct {
	Region   string `json:"region"`
	Stage    string `json:"stage"`
	Reason   string `json:"reason"`
	Articles int    `json:"articles"` // 失败前已累积的文章数
}

// StatisticsPayload 运行中汇总
type StatisticsPayload struct {
	RegionsDone  int `json:"regions_done"`
	RegionsTotal int `json:"regions_total"`
	Articles     int `json:"articles"`
}

// CompletePayload 终态负载，携带最终报告
type CompletePayload struct {
	Status  model.RunStatus `json:"status"`
	Digest  *model.Digest   `json:"digest"`
	Elapsed string          `json:"elapsed"`
}

// ErrorPayload 终态错误负载
type ErrorPayload struct {
	Message    string           `json:"message"`
	Statistics model.Statistics `json:"statistics"` // 全部失败时为零值统计
}

// Sink 事件接收方。实现必须保证同一调用方的发布顺序即投递顺序。
type Sink interface {
	Publish(ev Event)
}

// Discard 丢弃所有事件的 Sink，用于同步调用路径
var Discard Sink = discard{}

type discard struct{}

func (discard) Publish(Event) {}

// Stream 基于 channel 的 Sink，服务端推送的承载体。
// 终态事件之后的发布一律丢弃，保证 complete/error 恰好一次。
type Stream struct {
	ch       chan Event
	mu       sync.Mutex
	closed   bool
	terminal bool
}

// NewStream 创建事件流，buffer 为通道缓冲大小
func NewStream(buffer int) *Stream {
	if buffer <= 0 {
		buffer = 64
	}
	return &Stream{ch: make(chan Event, buffer)}
}

var _ Sink = (*Stream)(nil)

// Publish 投递一条事件。流已收尾或关闭时静默丢弃。
// 发送期间持锁，保证与 Close 互斥，不会向已关闭通道发送。
func (s *Stream) Publish(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.terminal {
		return
	}
	if IsTerminal(ev.Type) {
		s.terminal = true
	}
	s.ch <- ev
}

// Events 返回只读事件通道
func (s *Stream) Events() <-chan Event {
	return s.ch
}

// Close 关闭通道，之后的 Publish 被丢弃
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
