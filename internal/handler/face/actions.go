package face

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/hotel-checkin/backend/internal/service/checkin"
	"github.com/zhouzirui/hotel-checkin/backend/internal/service/stream"
	"github.com/zhouzirui/hotel-checkin/backend/pkg/utils"
)

// Handler 会话动作与指标的HTTP处理器
type Handler struct {
	manager *stream.Manager
}

// New 创建处理器
func New(manager *stream.Manager) *Handler {
	return &Handler{manager: manager}
}

// RegisterRoutes 注册 /face 下的动作与指标路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/face/sessions", h.handleListSessions)
	r.Get("/face/sessions/{sessionID}/reservations", h.handleReservations)
	r.Post("/face/sessions/{sessionID}/checkin", h.handleCheckIn)
	r.Post("/face/sessions/{sessionID}/checkout", h.handleCheckOut)
	r.Post("/face/sessions/{sessionID}/dismiss", h.handleDismiss)
}

// handleListSessions 活跃会话指标快照
func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.manager.Registry().Snapshot())
}

// handleReservations 当前确认来宾的预订快照
func (h *Handler) handleReservations(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	orch := sess.Orchestration()
	if orch == nil {
		utils.RespondError(w, http.StatusNotFound, "no confirmed guest for session")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"guest":        orch.Guest,
		"reservations": orch.Reservations(),
	})
}

// handleCheckIn 提交入住动作
func (h *Handler) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	h.submitAction(w, r, checkin.ActionCheckIn)
}

// handleCheckOut 提交退房动作
func (h *Handler) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	h.submitAction(w, r, checkin.ActionCheckOut)
}

// handleDismiss 来宾关闭预订选择框，识别重新开始
func (h *Handler) handleDismiss(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.Dismiss(); err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "dismissed"})
}

func (h *Handler) submitAction(w http.ResponseWriter, r *http.Request, action checkin.Action) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var payload struct {
		ReservationID string `json:"reservation_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.ReservationID == "" {
		utils.RespondError(w, http.StatusBadRequest, "reservation_id is required")
		return
	}

	var err error
	switch action {
	case checkin.ActionCheckIn:
		err = sess.SubmitCheckIn(r.Context(), payload.ReservationID)
	case checkin.ActionCheckOut:
		err = sess.SubmitCheckOut(r.Context(), payload.ReservationID)
	}

	switch {
	case err == nil:
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": string(action)})
	case errors.Is(err, stream.ErrNoOrchestration):
		utils.RespondError(w, http.StatusNotFound, "no confirmed guest for session")
	case errors.Is(err, checkin.ErrConflict):
		utils.RespondError(w, http.StatusConflict, "another action is already in flight")
	case errors.Is(err, checkin.ErrClosed):
		utils.RespondError(w, http.StatusConflict, "orchestration already completed")
	case errors.Is(err, checkin.ErrUnknownReservation):
		utils.RespondError(w, http.StatusNotFound, "reservation does not belong to this guest")
	case errors.Is(err, checkin.ErrNotEligible):
		utils.RespondError(w, http.StatusConflict, "reservation is not eligible for this action")
	default:
		utils.RespondError(w, http.StatusBadGateway, err.Error())
	}
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*stream.Session, bool) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		utils.RespondError(w, http.StatusBadRequest, "sessionID is required")
		return nil, false
	}
	sess, ok := h.manager.Get(sessionID)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return sess, true
}
