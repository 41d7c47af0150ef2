package handler

import (
	"encoding/json"
	"net/http"

	"github.com/paifang/paifang/internal/metrics"
	"github.com/paifang/paifang/pkg/dispatcher"
	"github.com/paifang/paifang/pkg/errors"
	"github.com/paifang/paifang/pkg/model"
)

// DispatchRequest 临时加访请求
// 排程与全量输入一并提交，新巡访须包含在 Visits 中
type DispatchRequest struct {
	PlanRequest
	Schedule *model.Schedule `json:"schedule"`
	VisitID  string          `json:"visit_id"`
}

// DispatchResponse 临时加访响应
type DispatchResponse struct {
	Success  bool                 `json:"success"`
	Decision *dispatcher.Decision `json:"decision,omitempty"`
	Schedule *model.Schedule      `json:"schedule,omitempty"`
}

// Dispatch 临时加访：在已有排程上插入单条巡访
func (h *PlanHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}
	if req.Schedule == nil || req.VisitID == "" {
		respondError(w, errors.New(errors.CodeInvalidInput, "缺少排程或加访巡访ID"))
		return
	}

	p, appErr := h.buildProblem(&req.PlanRequest)
	if appErr != nil {
		respondError(w, appErr)
		return
	}
	visit := p.Visit(req.VisitID)
	if visit == nil {
		respondError(w, errors.New(errors.CodeNotFound, "加访巡访不在提交的巡访列表中"))
		return
	}

	decision, err := h.dispatcher.Dispatch(p, req.Schedule, visit)
	if err != nil {
		metrics.RecordDispatch(false)
		respondError(w, asAppError(err))
		return
	}

	metrics.RecordDispatch(true)
	respondJSON(w, http.StatusOK, DispatchResponse{
		Success:  true,
		Decision: decision,
		Schedule: req.Schedule,
	})
}
