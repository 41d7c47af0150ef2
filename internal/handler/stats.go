package handler

import (
	"encoding/json"
	"net/http"

	"github.com/paifang/paifang/pkg/errors"
	"github.com/paifang/paifang/pkg/model"
	"github.com/paifang/paifang/pkg/stats"
)

// StatsRequest 统计请求
type StatsRequest struct {
	PlanRequest
	Schedule *model.Schedule `json:"schedule"`
}

// Workload 计算排程的工作量与路途统计
func (h *PlanHandler) Workload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req StatsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}
	if req.Schedule == nil {
		respondError(w, errors.New(errors.CodeInvalidInput, "缺少排程"))
		return
	}

	p, appErr := h.buildProblem(&req.PlanRequest)
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	respondJSON(w, http.StatusOK, stats.Compute(p, req.Schedule))
}
