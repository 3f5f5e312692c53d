// Package server 对外 HTTP 接口：同步监测、SSE 流式监测与历史查询
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-kratos/kratos/v2/middleware/recovery"
	kratoshttp "github.com/go-kratos/kratos/v2/transport/http"

	"github.com/orxan-hv/press_radar/pkg/config"
	"github.com/orxan-hv/press_radar/pkg/logger"
	"github.com/orxan-hv/press_radar/pkg/model"
	"github.com/orxan-hv/press_radar/pkg/pipeline"
	"github.com/orxan-hv/press_radar/pkg/progress"
	"github.com/orxan-hv/press_radar/pkg/storage"
)

// monitorRequest 监测接口请求体。subjects/source_regions 给出时
// 跳过对应的意图解析。
type monitorRequest struct {
	Query         string   `json:"query"`
	Subjects      []string `json:"subjects,omitempty"`
	SourceRegions []string `json:"source_regions,omitempty"`
	Effort        int      `json:"effort"`
	UserLanguage  string   `json:"user_language,omitempty"`
}

func (r monitorRequest) input() pipeline.Input {
	return pipeline.Input{
		Query:        r.Query,
		Subjects:     r.Subjects,
		Regions:      r.SourceRegions,
		Effort:       r.Effort,
		UserLanguage: r.UserLanguage,
	}
}

// monitorResponse 同步监测接口响应体
type monitorResponse struct {
	Status model.RunStatus `json:"status"`
	Digest *model.Digest   `json:"digest"`
}

// handler 持有编排器与可选的持久化。timeout 只约束同步接口，
// 为 0 时运行时长仅受编排层自身的截止控制。
type handler struct {
	orc     *pipeline.Orchestrator
	store   *storage.Postgres
	timeout time.Duration
}

// NewServer 创建 HTTP 服务。store 允许为 nil。
// SSE 长连接要求服务级超时关闭，同步接口的超时由 cfg.Timeout 单独给出。
func NewServer(cfg config.ServerConfig, orc *pipeline.Orchestrator, store *storage.Postgres) *kratoshttp.Server {
	srv := kratoshttp.NewServer(
		kratoshttp.Address(cfg.Addr),
		kratoshttp.Timeout(0),
		kratoshttp.Middleware(recovery.Recovery()),
	)

	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil || timeout < 0 {
		timeout = 0
	}
	h := &handler{orc: orc, store: store, timeout: timeout}
	srv.HandleFunc("/health", h.health)
	srv.HandleFunc("/api/monitor", h.monitor)
	srv.HandleFunc("/api/monitor/stream", h.monitorStream)
	srv.HandleFunc("/api/runs", h.runs)
	return srv
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// monitor 同步执行一次监测，完成后一次性返回报告
func (h *handler) monitor(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeMonitorRequest(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	run, d, err := h.orc.Run(ctx, req.input(), progress.Discard)
	if err != nil {
		status := http.StatusBadGateway
		if run == nil {
			status = http.StatusBadRequest // 范围解析后无可用地区
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, monitorResponse{Status: run.Status, Digest: d})
}

// monitorStream 以 SSE 推送运行进度，流以 complete/error 事件收尾
func (h *handler) monitorStream(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeMonitorRequest(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	stream := progress.NewStream(64)
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go func() {
		defer stream.Close()
		// 运行错误已作为 error 事件进入流
		_, _, _ = h.orc.Run(ctx, req.input(), stream)
	}()

	for ev := range stream.Events() {
		payload, err := json.Marshal(ev)
		if err != nil {
			logger.Log.Warnf("事件序列化失败: %v", err)
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			// 客户端断开，取消运行并排空剩余事件
			cancel()
			for range stream.Events() {
			}
			return
		}
		flusher.Flush()
	}
}

// runs 查询最近的历史运行
func (h *handler) runs(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "persistence disabled"})
		return
	}
	timeout := h.timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	summaries, err := h.store.RecentRuns(ctx, 20)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": summaries})
}

func decodeMonitorRequest(w http.ResponseWriter, r *http.Request) (monitorRequest, bool) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "POST required"})
		return monitorRequest{}, false
	}
	var req monitorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return monitorRequest{}, false
	}
	return req, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Warnf("响应序列化失败: %v", err)
	}
}
