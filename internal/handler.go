package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const keepAliveTimeLayout = "2006-01-02 15:04:05 UTC"

// Handler HTTP 請求處理器（keep-alive 與唯讀查詢）
type Handler struct {
	manager *Manager
	clock   Clock
	logger  *slog.Logger
}

// NewHandler 創建 HTTP 處理器
func NewHandler(manager *Manager, clock Clock, logger *slog.Logger) *Handler {
	if clock == nil {
		clock = SystemClock
	}
	return &Handler{
		manager: manager,
		clock:   clock,
		logger:  logger,
	}
}

// Routes 設定路由
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	// 中間件鏈
	wrap := func(handler http.HandlerFunc) http.HandlerFunc {
		return h.recoverer(h.loggerMiddleware(handler))
	}

	// 外部 uptime 監控依賴此端點
	mux.HandleFunc("GET /{$}", wrap(h.keepAlive))

	mux.HandleFunc("GET /api/v1/lobby", wrap(h.getLobby))
	mux.HandleFunc("GET /health", wrap(h.health))
	mux.HandleFunc("GET /stats", wrap(h.stats))
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

// keepAlive 存活檢查
func (h *Handler) keepAlive(w http.ResponseWriter, r *http.Request) {
	timestamp := h.clock.Now().UTC().Format(keepAliveTimeLayout)
	h.logger.Info("✨ Keep-alive pinged", "at", timestamp)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "MH LobbyLinker is alive! Last check: %s", timestamp)
}

// getLobby 目前大廳快照
func (h *Handler) getLobby(w http.ResponseWriter, r *http.Request) {
	lobby, ok := h.manager.Get()
	if !ok {
		h.errorResponse(w, ErrNoActiveLobby.Error(), http.StatusNotFound)
		return
	}

	h.jsonResponse(w, map[string]any{
		"lobby":  lobby,
		"status": lobby.Status(),
	}, http.StatusOK)
}

// health 健康檢查
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, map[string]any{
		"status": "healthy",
		"time":   h.clock.Now().Unix(),
	}, http.StatusOK)
}

// stats 統計資訊
func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, h.manager.Stats(), http.StatusOK)
}

// jsonResponse 返回 JSON 響應
func (h *Handler) jsonResponse(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("編碼 JSON 失敗", "error", err)
	}
}

// errorResponse 返回錯誤響應
func (h *Handler) errorResponse(w http.ResponseWriter, message string, status int) {
	h.jsonResponse(w, map[string]any{
		"error": message,
	}, status)
}

// loggerMiddleware 日誌中間件
func (h *Handler) loggerMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// 包裝 ResponseWriter 以獲取狀態碼
		ww := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next(ww, r)

		h.logger.Debug("HTTP 請求",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.statusCode,
			"duration", time.Since(start))
	}
}

// recoverer panic 恢復中間件
func (h *Handler) recoverer(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				h.logger.Error("處理請求時發生 panic",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path)

				h.errorResponse(w, "內部伺服器錯誤", http.StatusInternalServerError)
			}
		}()

		next(w, r)
	}
}

// responseWriter 包裝 ResponseWriter 以獲取狀態碼
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// Listen 依序嘗試埠號，回傳第一個成功的 listener
func Listen(ports []int, logger *slog.Logger) (net.Listener, error) {
	if len(ports) == 0 {
		return nil, errors.New("listen: no ports configured")
	}

	var lastErr error
	for _, port := range ports {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err == nil {
			return ln, nil
		}
		logger.Warn("埠號無法使用，嘗試下一個", "port", port, "error", err)
		lastErr = err
	}
	return nil, fmt.Errorf("listen: all ports failed: %w", lastErr)
}
