package internal

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// Handler HTTP 請求處理器
//
// 房間的所有修改都走 WebSocket；HTTP 只提供唯讀查詢與監控。
type Handler struct {
	registry *Registry
	hub      *WebSocketHub
	logger   *slog.Logger
}

// NewHandler 創建 HTTP 處理器；hub 為 nil 時不掛載 /ws
func NewHandler(registry *Registry, hub *WebSocketHub, logger *slog.Logger) *Handler {
	return &Handler{
		registry: registry,
		hub:      hub,
		logger:   logger,
	}
}

// Routes 設定路由
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	// 中間件鏈
	wrap := func(handler http.HandlerFunc) http.HandlerFunc {
		return h.recoverer(h.loggerMiddleware(handler))
	}

	// 房間查詢 API
	mux.HandleFunc("GET /api/v1/rooms", wrap(h.listRooms))
	mux.HandleFunc("GET /api/v1/rooms/{room_id}", wrap(h.getRoomDetail))
	mux.HandleFunc("GET /api/v1/players/{player_id}/room", wrap(h.getPlayerRoom))

	// WebSocket 需要 Hijacker，不經過 loggerMiddleware
	if h.hub != nil {
		mux.HandleFunc("GET /ws", h.recoverer(h.hub.ServeWS))
	}

	// 健康檢查
	mux.HandleFunc("GET /health", wrap(h.health))
	mux.HandleFunc("GET /stats", wrap(h.stats))

	return mux
}

// listRooms 列出房間
func (h *Handler) listRooms(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	status := RoomStatus(query.Get("status"))
	switch status {
	case "", StatusWaiting, StatusReady, StatusPlaying, StatusFinished:
	default:
		h.errorResponse(w, "無效的房間狀態", http.StatusBadRequest)
		return
	}

	page := 1
	if p := query.Get("page"); p != "" {
		if val, err := strconv.Atoi(p); err == nil && val > 0 {
			page = val
		}
	}

	limit := 20
	if l := query.Get("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 && val <= 100 {
			limit = val
		}
	}

	rooms := h.registry.List(status)
	total := len(rooms)

	start := min((page-1)*limit, total)
	end := min(start+limit, total)

	h.jsonResponse(w, map[string]any{
		"rooms": rooms[start:end],
		"total": total,
		"page":  page,
	}, http.StatusOK)
}

// getRoomDetail 獲取房間詳情
func (h *Handler) getRoomDetail(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("room_id")

	snap, err := h.registry.Get(roomID)
	if errors.Is(err, ErrRoomNotFound) {
		h.errorResponse(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		h.errorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.jsonResponse(w, snap, http.StatusOK)
}

// getPlayerRoom 玩家目前所在的房間
func (h *Handler) getPlayerRoom(w http.ResponseWriter, r *http.Request) {
	playerID := r.PathValue("player_id")

	snap, ok := h.registry.FindByPlayer(playerID)
	if !ok {
		h.errorResponse(w, ErrRoomNotFound.Error(), http.StatusNotFound)
		return
	}

	h.jsonResponse(w, snap, http.StatusOK)
}

// health 健康檢查
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, map[string]any{
		"status": "healthy",
		"time":   time.Now().Unix(),
	}, http.StatusOK)
}

// stats 統計資訊
func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats := h.registry.Stats()
	if h.hub != nil {
		stats["websocket"] = h.hub.ConnectionStats()
	}
	h.jsonResponse(w, stats, http.StatusOK)
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

		h.logger.Info("HTTP 請求",
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
