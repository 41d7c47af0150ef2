// Package handler 提供HTTP请求处理器
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/paifang/paifang/internal/metrics"
	"github.com/paifang/paifang/pkg/classifier"
	"github.com/paifang/paifang/pkg/dispatcher"
	"github.com/paifang/paifang/pkg/errors"
	"github.com/paifang/paifang/pkg/model"
	"github.com/paifang/paifang/pkg/procedure"
	"github.com/paifang/paifang/pkg/scheduler"
	"github.com/paifang/paifang/pkg/scheduler/problem"
	"github.com/paifang/paifang/pkg/stats"
	"github.com/paifang/paifang/pkg/validator"
	"github.com/paifang/paifang/pkg/zone"
)

// ScheduleStore 排程持久化接口
type ScheduleStore interface {
	Save(ctx context.Context, sched *model.Schedule) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Schedule, error)
	GetLatestByDate(ctx context.Context, date string) (*model.Schedule, error)
	ListByDate(ctx context.Context, date string) ([]*model.Schedule, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// PlanHandler 排程处理器
type PlanHandler struct {
	engine     *scheduler.Engine
	verifier   *validator.Verifier
	dispatcher *dispatcher.Dispatcher
	classifier *classifier.Classifier
	store      ScheduleStore // 可为nil，表示不持久化
	params     problem.Params
}

// NewPlanHandler 创建排程处理器
func NewPlanHandler(params problem.Params, clsCfg classifier.Config, store ScheduleStore) *PlanHandler {
	return &PlanHandler{
		engine:     scheduler.NewEngine(),
		verifier:   validator.New(),
		dispatcher: dispatcher.New(),
		classifier: classifier.New(procedure.NewCatalog(), zone.NewResolver(), clsCfg),
		store:      store,
		params:     params,
	}
}

// NurseInput 护士输入
type NurseInput struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Languages      []string `json:"languages,omitempty"`
	MaxVisitsAM    int      `json:"max_visits_am,omitempty"`
	MaxVisitsPM    int      `json:"max_visits_pm,omitempty"`
	PreferredZones []string `json:"preferred_zones,omitempty"`
}

// VisitInput 已分类巡访输入（时刻为 HH:MM 文本）
type VisitInput struct {
	ID          string `json:"id"`
	PatientName string `json:"patient_name,omitempty"`
	Address     string `json:"address,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"`
	Zone        string `json:"zone"`
	Language    string `json:"language,omitempty"`
	Procedure   string `json:"procedure"`
	Session     string `json:"session"`
	Duration    int    `json:"duration_minutes"`
	Earliest    string `json:"earliest,omitempty"`
	Latest      string `json:"latest,omitempty"`
	Deadline    string `json:"deadline,omitempty"`
	Pin         string `json:"pin,omitempty"`
	GroupID     string `json:"group_id,omitempty"`
}

// GroupInput 连续性组输入
type GroupInput struct {
	ID       string   `json:"id"`
	VisitIDs []string `json:"visit_ids"`
}

// PlanRequest 排程请求
// Records 为未分类的原始名单行；Visits 为已分类巡访，两者可并用
type PlanRequest struct {
	Date    string                 `json:"date"`
	Nurses  []NurseInput           `json:"nurses"`
	Records []classifier.RawRecord `json:"records,omitempty"`
	Visits  []VisitInput           `json:"visits,omitempty"`
	Groups  []GroupInput           `json:"groups,omitempty"`
}

// RecordFailure 分类失败的记录
type RecordFailure struct {
	Index   int    `json:"index"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PlanResponse 排程响应
type PlanResponse struct {
	Success       bool            `json:"success"`
	Schedule      *model.Schedule `json:"schedule,omitempty"`
	FailedRecords []RecordFailure `json:"failed_records,omitempty"`
	Summary       *stats.Summary  `json:"summary,omitempty"`
	Duration      string          `json:"duration"`
}

// Generate 生成排程
func (h *PlanHandler) Generate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}
	if req.Date == "" {
		respondError(w, errors.New(errors.CodeInvalidInput, "缺少排程日期"))
		return
	}

	start := time.Now()
	visits, groups, failures := h.assembleVisits(&req)

	engineReq, appErr := buildEngineRequest(&req, visits, groups, h.params)
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	sched, err := h.engine.Generate(r.Context(), engineReq)
	if err != nil {
		metrics.RecordPlanGeneration(false, 0, time.Since(start), 0, 0)
		respondError(w, asAppError(err))
		return
	}

	p, err := problem.New(req.Date, engineReq.Nurses, engineReq.Visits, engineReq.Groups, nil, h.params)
	var summary *stats.Summary
	if err == nil {
		summary = stats.Compute(p, sched)
	}

	gini := 0.0
	if summary != nil {
		gini = summary.WorkloadGini
	}
	metrics.RecordPlanGeneration(true, sched.Attempts, time.Since(start), sched.TravelTotal(), gini)

	if h.store != nil {
		if err := h.store.Save(r.Context(), sched); err != nil {
			respondError(w, asAppError(err))
			return
		}
	}

	respondJSON(w, http.StatusOK, PlanResponse{
		Success:       true,
		Schedule:      sched,
		FailedRecords: failures,
		Summary:       summary,
		Duration:      time.Since(start).String(),
	})
}

// ValidateRequest 校验请求
type ValidateRequest struct {
	PlanRequest
	Schedule *model.Schedule `json:"schedule"`
}

// Validate 校验既有排程
func (h *PlanHandler) Validate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}
	if req.Schedule == nil {
		respondError(w, errors.New(errors.CodeInvalidInput, "缺少待校验排程"))
		return
	}

	p, appErr := h.buildProblem(&req.PlanRequest)
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	report := h.verifier.Verify(p, req.Schedule)
	respondJSON(w, http.StatusOK, report)
}

// assembleVisits 合并原始记录分类结果与已分类巡访
func (h *PlanHandler) assembleVisits(req *PlanRequest) ([]*model.Visit, []*model.ContinuityGroup, []RecordFailure) {
	visits, groups, recordErrs := h.classifier.ClassifyAll(req.Records)

	var failures []RecordFailure
	for _, re := range recordErrs {
		code := errors.GetCode(re.Err)
		metrics.RecordClassifyFailure(string(code))
		failures = append(failures, RecordFailure{
			Index:   re.Index,
			Code:    string(code),
			Message: re.Err.Error(),
		})
	}

	for _, vi := range req.Visits {
		if v, err := vi.toVisit(); err == nil {
			visits = append(visits, v)
		} else {
			failures = append(failures, RecordFailure{
				Code:    string(errors.GetCode(err)),
				Message: err.Error(),
			})
		}
	}
	for _, gi := range req.Groups {
		groups = append(groups, &model.ContinuityGroup{ID: gi.ID, VisitIDs: gi.VisitIDs})
	}

	return visits, groups, failures
}

// buildProblem 从请求构建排程问题
func (h *PlanHandler) buildProblem(req *PlanRequest) (*problem.Problem, *errors.AppError) {
	visits, groups, _ := h.assembleVisits(req)
	engineReq, appErr := buildEngineRequest(req, visits, groups, h.params)
	if appErr != nil {
		return nil, appErr
	}
	p, err := problem.New(req.Date, engineReq.Nurses, engineReq.Visits, engineReq.Groups, nil, h.params)
	if err != nil {
		return nil, asAppError(err)
	}
	return p, nil
}

func buildEngineRequest(req *PlanRequest, visits []*model.Visit, groups []*model.ContinuityGroup, params problem.Params) (*scheduler.Request, *errors.AppError) {
	if len(req.Nurses) == 0 {
		return nil, errors.New(errors.CodeInvalidInput, "没有出勤护士")
	}

	nurses := make([]*model.Nurse, 0, len(req.Nurses))
	for _, ni := range req.Nurses {
		zones := make([]model.Zone, 0, len(ni.PreferredZones))
		for _, z := range ni.PreferredZones {
			zones = append(zones, model.Zone(z))
		}
		nurses = append(nurses, &model.Nurse{
			ID:             ni.ID,
			Name:           ni.Name,
			Languages:      ni.Languages,
			MaxVisitsAM:    ni.MaxVisitsAM,
			MaxVisitsPM:    ni.MaxVisitsPM,
			PreferredZones: zones,
		})
	}

	return &scheduler.Request{
		Date:   req.Date,
		Nurses: nurses,
		Visits: visits,
		Groups: groups,
		Params: params,
	}, nil
}

// toVisit 转换巡访输入，时刻项解析失败即拒绝
func (vi VisitInput) toVisit() (*model.Visit, error) {
	v := &model.Visit{
		ID:          vi.ID,
		PatientName: vi.PatientName,
		Address:     vi.Address,
		PostalCode:  vi.PostalCode,
		Zone:        model.Zone(vi.Zone),
		Language:    vi.Language,
		Procedure:   model.ProcedureKind(vi.Procedure),
		Session:     model.Session(vi.Session),
		Duration:    vi.Duration,
		GroupID:     vi.GroupID,
	}

	clocks := []struct {
		raw string
		dst *model.Minutes
	}{
		{vi.Earliest, &v.Earliest},
		{vi.Latest, &v.Latest},
	}
	for _, c := range clocks {
		if c.raw == "" {
			continue
		}
		m, err := model.ParseClock(c.raw)
		if err != nil {
			return nil, errors.UnparsableTimeSlot(vi.ID, c.raw)
		}
		*c.dst = m
	}
	if vi.Deadline != "" {
		m, err := model.ParseClock(vi.Deadline)
		if err != nil {
			return nil, errors.UnparsableTimeSlot(vi.ID, vi.Deadline)
		}
		v.Deadline = &m
	}
	if vi.Pin != "" {
		m, err := model.ParseClock(vi.Pin)
		if err != nil {
			return nil, errors.UnparsableTimeSlot(vi.ID, vi.Pin)
		}
		v.Pin = &m
	}

	return v, nil
}

// respondJSON 返回JSON响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError 返回错误响应
func respondError(w http.ResponseWriter, err *errors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   true,
		"code":    err.Code,
		"message": err.Message,
		"details": err.Details,
		"fields":  err.Fields,
	})
}

// asAppError 将任意错误规范化为应用错误
func asAppError(err error) *errors.AppError {
	if appErr, ok := err.(*errors.AppError); ok {
		return appErr
	}
	return errors.Wrap(err, errors.CodeInternal, "内部错误")
}
