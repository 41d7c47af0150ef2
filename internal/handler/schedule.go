package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/paifang/paifang/pkg/errors"
)

// requireStore 未配置数据库时检索端点不可用
func (h *PlanHandler) requireStore(w http.ResponseWriter) bool {
	if h.store == nil {
		respondError(w, errors.New(errors.CodeInvalidInput, "未配置数据库，排程不落库"))
		return false
	}
	return true
}

// Latest 读取排程：带 id 参数时按ID读取，否则按 date 读取当日最新版本
func (h *PlanHandler) Latest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持GET方法"))
		return
	}
	if !h.requireStore(w) {
		return
	}

	if raw := r.URL.Query().Get("id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(w, errors.New(errors.CodeInvalidInput, "排程ID无效"))
			return
		}
		sched, err := h.store.GetByID(r.Context(), id)
		if err != nil {
			respondError(w, asAppError(err))
			return
		}
		respondJSON(w, http.StatusOK, sched)
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		respondError(w, errors.New(errors.CodeInvalidInput, "缺少 date 或 id 参数"))
		return
	}
	sched, err := h.store.GetLatestByDate(r.Context(), date)
	if err != nil {
		respondError(w, asAppError(err))
		return
	}
	respondJSON(w, http.StatusOK, sched)
}

// History 列出某日全部排程版本（新在前）
func (h *PlanHandler) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持GET方法"))
		return
	}
	if !h.requireStore(w) {
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		respondError(w, errors.New(errors.CodeInvalidInput, "缺少 date 参数"))
		return
	}
	schedules, err := h.store.ListByDate(r.Context(), date)
	if err != nil {
		respondError(w, asAppError(err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"date":      date,
		"count":     len(schedules),
		"schedules": schedules,
	})
}

// Remove 删除指定排程
func (h *PlanHandler) Remove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持DELETE方法"))
		return
	}
	if !h.requireStore(w) {
		return
	}

	id, err := uuid.Parse(r.URL.Query().Get("id"))
	if err != nil {
		respondError(w, errors.New(errors.CodeInvalidInput, "排程ID无效"))
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		respondError(w, asAppError(err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"deleted": true, "id": id})
}
