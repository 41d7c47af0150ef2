// Package validator 对候选排程做独立可行性校验
// 不信任求解与排序阶段的任何结论，按约束逐条重放
package validator

import (
	"fmt"

	"github.com/paifang/paifang/pkg/errors"
	"github.com/paifang/paifang/pkg/logger"
	"github.com/paifang/paifang/pkg/model"
	"github.com/paifang/paifang/pkg/scheduler/problem"
)

// Violation 单条约束违反
type Violation struct {
	Code    errors.Code `json:"code"`
	VisitID string      `json:"visit_id,omitempty"`
	NurseID string      `json:"nurse_id,omitempty"`
	Message string      `json:"message"`
}

// Report 校验报告
type Report struct {
	Valid      bool        `json:"valid"`
	Violations []Violation `json:"violations,omitempty"`
}

// Err 报告转错误：有效时返回nil，否则返回首条违反对应的错误
func (r *Report) Err() error {
	if r.Valid {
		return nil
	}
	v := r.Violations[0]
	return errors.New(v.Code, v.Message).
		WithField("visit_id", v.VisitID).
		WithField("nurse_id", v.NurseID).
		WithField("violations", len(r.Violations))
}

// Verifier 排程校验器
type Verifier struct {
	log *logger.PlannerLogger
}

// New 创建校验器
func New() *Verifier {
	return &Verifier{log: logger.NewPlannerLogger()}
}

// Verify 校验候选排程的全部硬约束
func (v *Verifier) Verify(p *problem.Problem, sched *model.Schedule) *Report {
	report := &Report{Valid: true}
	add := func(code errors.Code, visitID, nurseID, msg string) {
		report.Valid = false
		report.Violations = append(report.Violations, Violation{
			Code: code, VisitID: visitID, NurseID: nurseID, Message: msg,
		})
		v.log.ConstraintViolation(string(code), msg)
	}

	v.checkCoverage(p, sched, add)
	v.checkContinuity(p, sched, add)
	v.checkCapacity(p, sched, add)
	v.checkTimelines(p, sched, add)
	v.checkLunch(p, sched, add)
	v.checkPairSeparation(p, sched, add)

	return report
}

type addFunc func(code errors.Code, visitID, nurseID, msg string)

// checkCoverage 每条巡访恰好出现一次
func (v *Verifier) checkCoverage(p *problem.Problem, sched *model.Schedule, add addFunc) {
	seen := make(map[string]int)
	for _, day := range sched.Days {
		for _, s := range model.Sessions() {
			route := day.RouteFor(s)
			if route == nil {
				continue
			}
			for _, sv := range route.Visits {
				seen[sv.VisitID]++
				if p.Visit(sv.VisitID) == nil {
					add(errors.CodeUnscheduledVisit, sv.VisitID, day.NurseID,
						fmt.Sprintf("排程含未知巡访 %s", sv.VisitID))
				}
			}
		}
	}
	for _, visit := range p.Visits() {
		switch seen[visit.ID] {
		case 1:
		case 0:
			add(errors.CodeUnscheduledVisit, visit.ID, "",
				fmt.Sprintf("巡访 %s 未被排定", visit.ID))
		default:
			add(errors.CodeUnscheduledVisit, visit.ID, "",
				fmt.Sprintf("巡访 %s 被排定 %d 次", visit.ID, seen[visit.ID]))
		}
	}
}

// checkContinuity 连续性组两条腿必须同一护士
func (v *Verifier) checkContinuity(p *problem.Problem, sched *model.Schedule, add addFunc) {
	nurseOf := make(map[string]string)
	for _, day := range sched.Days {
		for _, s := range model.Sessions() {
			route := day.RouteFor(s)
			if route == nil {
				continue
			}
			for _, sv := range route.Visits {
				nurseOf[sv.VisitID] = day.NurseID
			}
		}
	}

	for _, g := range p.Groups() {
		var first string
		for _, id := range g.VisitIDs {
			n, ok := nurseOf[id]
			if !ok {
				continue // 覆盖检查已报告
			}
			if first == "" {
				first = n
			} else if n != first {
				add(errors.CodeContinuityBroken, id, n,
					fmt.Sprintf("连续性组 %s 跨护士: %s 与 %s", g.ID, first, n))
			}
		}
	}
}

// checkCapacity 时段巡访数不超过护士容量
func (v *Verifier) checkCapacity(p *problem.Problem, sched *model.Schedule, add addFunc) {
	for _, day := range sched.Days {
		nurse := p.Nurse(day.NurseID)
		if nurse == nil {
			add(errors.CodeUnscheduledVisit, "", day.NurseID,
				fmt.Sprintf("排程含未知护士 %s", day.NurseID))
			continue
		}
		for _, s := range model.Sessions() {
			route := day.RouteFor(s)
			if route == nil {
				continue
			}
			if got, limit := len(route.Visits), nurse.Capacity(s); got > limit {
				add(errors.CodeCapacityExceeded, "", day.NurseID,
					fmt.Sprintf("护士 %s 时段 %s 排定 %d 条超出容量 %d", day.NurseID, s, got, limit))
			}
		}
	}
}

// checkTimelines 按顺序重放时间线：路途可达、时间窗、截止、固定时刻
func (v *Verifier) checkTimelines(p *problem.Problem, sched *model.Schedule, add addFunc) {
	for _, day := range sched.Days {
		for _, s := range model.Sessions() {
			route := day.RouteFor(s)
			if route == nil || len(route.Visits) == 0 {
				continue
			}
			v.replayRoute(p, day.NurseID, route, add)
		}
	}
}

func (v *Verifier) replayRoute(p *problem.Problem, nurseID string, route *model.Route, add addFunc) {
	band := p.SessionBand(route.Session)
	curTime := band.Start
	var curZone model.Zone

	for i, sv := range route.Visits {
		visit := p.Visit(sv.VisitID)
		if visit == nil {
			return // 覆盖检查已报告
		}

		travel := p.Params.HospitalDepart
		if i > 0 {
			travel = p.Matrix().Travel(curZone, visit.Zone)
		}
		earliest := curTime + model.Minutes(travel)
		if sv.Start < earliest {
			add(errors.CodeValidationFail, visit.ID, nurseID,
				fmt.Sprintf("巡访 %s 开始 %s 早于最早可达 %s", visit.ID, sv.Start.Clock(), earliest.Clock()))
		}

		if visit.IsPinned() {
			diff := sv.Start - *visit.Pin
			if diff < 0 {
				diff = -diff
			}
			if int(diff) > p.Params.PinTolerance {
				add(errors.CodePinViolated, visit.ID, nurseID,
					fmt.Sprintf("巡访 %s 固定时刻 %s, 实际开始 %s", visit.ID, visit.Pin.Clock(), sv.Start.Clock()))
			}
		} else {
			if sv.Start < visit.Earliest || sv.Start > visit.Latest {
				add(errors.CodeValidationFail, visit.ID, nurseID,
					fmt.Sprintf("巡访 %s 开始 %s 超出时间窗 %s-%s",
						visit.ID, sv.Start.Clock(), visit.Earliest.Clock(), visit.Latest.Clock()))
			}
		}

		end := sv.Start + model.Minutes(visit.Duration)
		if visit.Deadline != nil && end > *visit.Deadline {
			add(errors.CodeDeadlineMissed, visit.ID, nurseID,
				fmt.Sprintf("巡访 %s 完成 %s 超过截止 %s", visit.ID, end.Clock(), visit.Deadline.Clock()))
		}
		if route.Session == model.SessionPM && sv.Start > p.Params.WorkEnd {
			add(errors.CodeValidationFail, visit.ID, nurseID,
				fmt.Sprintf("巡访 %s 开始 %s 晚于工作日结束 %s", visit.ID, sv.Start.Clock(), p.Params.WorkEnd.Clock()))
		}

		curTime = end
		curZone = visit.Zone
	}
}

// checkLunch 午餐完整时长落在午餐窗口内且不与巡访重叠
func (v *Verifier) checkLunch(p *problem.Problem, sched *model.Schedule, add addFunc) {
	lunchBand := p.LunchBand()
	for _, day := range sched.Days {
		lunch := day.Lunch
		if lunch.Duration() != p.Params.LunchDuration {
			add(errors.CodeLunchOverlap, "", day.NurseID,
				fmt.Sprintf("护士 %s 午餐时长 %d 分钟, 要求 %d 分钟",
					day.NurseID, lunch.Duration(), p.Params.LunchDuration))
			continue
		}
		if lunch.Start < lunchBand.Start || lunch.End > lunchBand.End {
			add(errors.CodeLunchOverlap, "", day.NurseID,
				fmt.Sprintf("护士 %s 午餐 %s-%s 超出窗口 %s-%s", day.NurseID,
					lunch.Start.Clock(), lunch.End.Clock(), lunchBand.Start.Clock(), lunchBand.End.Clock()))
		}
		for _, s := range model.Sessions() {
			route := day.RouteFor(s)
			if route == nil {
				continue
			}
			for _, sv := range route.Visits {
				work := model.MinuteRange{Start: sv.Start, End: sv.End}
				if work.Overlaps(lunch) {
					add(errors.CodeLunchOverlap, sv.VisitID, day.NurseID,
						fmt.Sprintf("巡访 %s (%s-%s) 占用午餐 %s-%s", sv.VisitID,
							sv.Start.Clock(), sv.End.Clock(), lunch.Start.Clock(), lunch.End.Clock()))
				}
			}
		}
	}
}

// checkPairSeparation 配对两条腿的开始间隔须落在配置区间内
func (v *Verifier) checkPairSeparation(p *problem.Problem, sched *model.Schedule, add addFunc) {
	startOf := make(map[string]model.Minutes)
	for _, day := range sched.Days {
		for _, s := range model.Sessions() {
			route := day.RouteFor(s)
			if route == nil {
				continue
			}
			for _, sv := range route.Visits {
				startOf[sv.VisitID] = sv.Start
			}
		}
	}

	for _, g := range p.Groups() {
		if !g.Paired() {
			continue
		}
		a, okA := startOf[g.VisitIDs[0]]
		b, okB := startOf[g.VisitIDs[1]]
		if !okA || !okB {
			continue
		}
		gap := b - a
		if gap < 0 {
			gap = -gap
		}
		if int(gap) < p.Params.IVMinSeparation || int(gap) > p.Params.IVMaxSeparation {
			add(errors.CodeValidationFail, g.VisitIDs[1], "",
				fmt.Sprintf("连续性组 %s 两剂间隔 %d 分钟, 要求 %d-%d 分钟",
					g.ID, int(gap), p.Params.IVMinSeparation, p.Params.IVMaxSeparation))
		}
	}
}
