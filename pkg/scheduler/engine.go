// Package scheduler 提供单日巡访排程引擎
// 流水线：分配求解 → 时段排序 → 午餐安置 → 局部优化 → 独立校验
// 校验不通过时按放宽策略重建问题整体重解，绝不局部修补
package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/paifang/paifang/pkg/errors"
	"github.com/paifang/paifang/pkg/logger"
	"github.com/paifang/paifang/pkg/model"
	"github.com/paifang/paifang/pkg/scheduler/optimizer"
	"github.com/paifang/paifang/pkg/scheduler/problem"
	"github.com/paifang/paifang/pkg/scheduler/sequencer"
	"github.com/paifang/paifang/pkg/scheduler/solver"
	"github.com/paifang/paifang/pkg/validator"
	"github.com/paifang/paifang/pkg/zone"
)

// RelaxationPolicy 放宽策略：根据尝试序号调整参数后整体重解
// 必须为纯函数，同样输入产生同样输出
type RelaxationPolicy func(attempt int, params problem.Params) problem.Params

// DefaultRelaxation 默认放宽策略
// 第二次尝试提高迭代上限，第三次起逐步提高默认时段容量
func DefaultRelaxation(attempt int, params problem.Params) problem.Params {
	if attempt >= 2 {
		params.MaxIterations *= 2
	}
	if attempt >= 3 {
		params.MaxVisitsAM++
		params.MaxVisitsPM++
	}
	return params
}

// Engine 排程引擎
type Engine struct {
	solver    solver.Solver
	sequencer *sequencer.Sequencer
	optimizer *optimizer.LocalSearch
	verifier  *validator.Verifier
	relax     RelaxationPolicy

	log *logger.PlannerLogger
}

// NewEngine 创建排程引擎
func NewEngine() *Engine {
	return &Engine{
		solver:    solver.NewGreedySolver(),
		sequencer: sequencer.New(),
		optimizer: optimizer.New(),
		verifier:  validator.New(),
		relax:     DefaultRelaxation,
		log:       logger.NewPlannerLogger(),
	}
}

// WithSolver 替换求解器
func (e *Engine) WithSolver(s solver.Solver) *Engine {
	e.solver = s
	return e
}

// WithRelaxation 替换放宽策略
func (e *Engine) WithRelaxation(r RelaxationPolicy) *Engine {
	e.relax = r
	return e
}

// Request 排程请求
type Request struct {
	Date   string                   `json:"date"`
	Nurses []*model.Nurse           `json:"nurses"`
	Visits []*model.Visit           `json:"visits"`
	Groups []*model.ContinuityGroup `json:"groups,omitempty"`
	Matrix *zone.Matrix             `json:"-"`
	Params problem.Params           `json:"params"`
}

// Generate 生成单日排程
// 所有巡访都被排定并通过校验，或返回具体失败原因，绝不静默丢弃
func (e *Engine) Generate(ctx context.Context, req *Request) (*model.Schedule, error) {
	e.log.StartPlan(req.Date, len(req.Nurses), len(req.Visits))
	start := time.Now()

	var lastErr error
	params := req.Params
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = problem.DefaultParams().MaxAttempts
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attemptParams := e.relax(attempt, params)
		e.log.Attempt(attempt, attempt > 1)

		p, err := problem.New(req.Date, req.Nurses, req.Visits, req.Groups, req.Matrix, attemptParams)
		if err != nil {
			return nil, err
		}

		sched, err := e.attempt(ctx, p)
		if err != nil {
			lastErr = err
			e.log.ConstraintViolation(string(errors.GetCode(err)), err.Error())
			continue
		}

		sched.ID = uuid.New()
		sched.Date = req.Date
		sched.Attempts = attempt
		sched.GeneratedAt = time.Now()
		e.log.PlanComplete(sched.ID.String(), time.Since(start), sched.TravelTotal())
		return sched, nil
	}

	return nil, lastErr
}

// attempt 单次完整流水线
func (e *Engine) attempt(ctx context.Context, p *problem.Problem) (*model.Schedule, error) {
	result, err := e.solver.Solve(ctx, p)
	if err != nil {
		return nil, err
	}

	sched := &model.Schedule{Date: p.Date}
	for _, n := range p.Nurses() {
		day := &model.NurseDay{NurseID: n.ID}

		am, err := e.sequencer.Sequence(p, n.ID, model.SessionAM, result.Route(n.ID, model.SessionAM))
		if err != nil {
			return nil, err
		}
		day.AM = am

		pm, err := e.sequencer.Sequence(p, n.ID, model.SessionPM, result.Route(n.ID, model.SessionPM))
		if err != nil {
			return nil, err
		}
		day.PM = pm

		lunch, err := e.placeLunch(p, am)
		if err != nil {
			return nil, err
		}
		day.Lunch = lunch

		sched.Days = append(sched.Days, day)
	}

	e.optimizer.Optimize(p, sched)

	if report := e.verifier.Verify(p, sched); !report.Valid {
		return nil, report.Err()
	}
	return sched, nil
}

// placeLunch 在上午收尾后的最早位置安置完整午餐
func (e *Engine) placeLunch(p *problem.Problem, am *model.Route) (model.MinuteRange, error) {
	band := p.LunchBand()
	start := band.Start
	if am != nil && am.End > start {
		start = am.End
	}
	end := start + model.Minutes(p.Params.LunchDuration)
	if end > band.End {
		return model.MinuteRange{}, errors.New(errors.CodeLunchOverlap,
			"上午巡访收尾过晚，午餐无法完整安置在窗口内").
			WithField("nurse_id", am.NurseID).
			WithField("am_end", am.End.Clock())
	}
	return model.MinuteRange{Start: start, End: end}, nil
}
