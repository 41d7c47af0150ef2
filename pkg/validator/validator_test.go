package validator

import (
	"testing"

	"github.com/paifang/paifang/pkg/errors"
	"github.com/paifang/paifang/pkg/model"
	"github.com/paifang/paifang/pkg/scheduler/problem"
	"github.com/paifang/paifang/pkg/scheduler/sequencer"
)

func nurse(id string) *model.Nurse {
	return &model.Nurse{ID: id, Name: "Nurse " + id, MaxVisitsAM: 3, MaxVisitsPM: 3}
}

func visit(id string, session model.Session, zone model.Zone) *model.Visit {
	latest := model.MustClock("11:00")
	if session == model.SessionPM {
		latest = model.MustClock("16:00")
	}
	return &model.Visit{
		ID:        id,
		Zone:      zone,
		Procedure: model.ProcedureOther,
		Session:   session,
		Duration:  30,
		Earliest:  model.MustClock("08:30"),
		Latest:    latest,
	}
}

func defaultLunch() model.MinuteRange {
	return model.MinuteRange{Start: model.MustClock("12:00"), End: model.MustClock("13:00")}
}

func mustRoute(t *testing.T, p *problem.Problem, nurseID string, s model.Session, order []string) *model.Route {
	t.Helper()
	route, err := sequencer.Rebuild(p, nurseID, s, order)
	if err != nil {
		t.Fatalf("重建时间线失败: %v", err)
	}
	return route
}

func hasCode(r *Report, code errors.Code) bool {
	for _, v := range r.Violations {
		if v.Code == code {
			return true
		}
	}
	return false
}

func TestVerifyValidSchedule(t *testing.T) {
	visits := []*model.Visit{
		visit("V001_1", model.SessionAM, model.ZoneNorth),
		visit("V002_1", model.SessionAM, model.ZoneNorth),
		visit("V003_1", model.SessionPM, model.ZoneEast),
	}
	p, err := problem.New("2026-08-31", []*model.Nurse{nurse("N001")}, visits, nil, nil, problem.DefaultParams())
	if err != nil {
		t.Fatalf("构建问题失败: %v", err)
	}

	sched := &model.Schedule{
		Date: "2026-08-31",
		Days: []*model.NurseDay{{
			NurseID: "N001",
			AM:      mustRoute(t, p, "N001", model.SessionAM, []string{"V001_1", "V002_1"}),
			PM:      mustRoute(t, p, "N001", model.SessionPM, []string{"V003_1"}),
			Lunch:   defaultLunch(),
		}},
	}

	report := New().Verify(p, sched)
	if !report.Valid {
		t.Fatalf("排程应有效, 违反: %+v", report.Violations)
	}
	if report.Err() != nil {
		t.Error("有效报告的 Err 应为 nil")
	}
}

func TestVerifyUnscheduledVisit(t *testing.T) {
	visits := []*model.Visit{
		visit("V001_1", model.SessionAM, model.ZoneNorth),
		visit("V002_1", model.SessionAM, model.ZoneNorth),
	}
	p, err := problem.New("2026-08-31", []*model.Nurse{nurse("N001")}, visits, nil, nil, problem.DefaultParams())
	if err != nil {
		t.Fatalf("构建问题失败: %v", err)
	}

	// V002_1 被静默丢弃
	sched := &model.Schedule{
		Date: "2026-08-31",
		Days: []*model.NurseDay{{
			NurseID: "N001",
			AM:      mustRoute(t, p, "N001", model.SessionAM, []string{"V001_1"}),
			Lunch:   defaultLunch(),
		}},
	}

	report := New().Verify(p, sched)
	if !hasCode(report, errors.CodeUnscheduledVisit) {
		t.Error("丢失巡访应报 UNSCHEDULED_VISIT")
	}
	if !errors.Is(report.Err(), errors.CodeUnscheduledVisit) {
		t.Error("Err 应携带首条违反的错误码")
	}
}

func TestVerifyContinuityBroken(t *testing.T) {
	am := visit("V001_1", model.SessionAM, model.ZoneEast)
	pm := visit("V001_2", model.SessionPM, model.ZoneEast)
	am.GroupID = "CG001"
	pm.GroupID = "CG001"
	group := &model.ContinuityGroup{ID: "CG001", VisitIDs: []string{"V001_1", "V001_2"}}

	p, err := problem.New("2026-08-31",
		[]*model.Nurse{nurse("N001"), nurse("N002")},
		[]*model.Visit{am, pm}, []*model.ContinuityGroup{group},
		nil, problem.DefaultParams())
	if err != nil {
		t.Fatalf("构建问题失败: %v", err)
	}

	// 两条腿被拆给不同护士
	sched := &model.Schedule{
		Date: "2026-08-31",
		Days: []*model.NurseDay{
			{NurseID: "N001", AM: mustRoute(t, p, "N001", model.SessionAM, []string{"V001_1"}), Lunch: defaultLunch()},
			{NurseID: "N002", PM: mustRoute(t, p, "N002", model.SessionPM, []string{"V001_2"}), Lunch: defaultLunch()},
		},
	}

	report := New().Verify(p, sched)
	if !hasCode(report, errors.CodeContinuityBroken) {
		t.Error("跨护士配对应报 CONTINUITY_BROKEN")
	}
}

func TestVerifyCapacityExceeded(t *testing.T) {
	var visits []*model.Visit
	order := []string{"V001_1", "V002_1", "V003_1", "V004_1"}
	for _, id := range order {
		v := visit(id, model.SessionAM, model.ZoneNorth)
		v.Duration = 20
		visits = append(visits, v)
	}
	p, err := problem.New("2026-08-31", []*model.Nurse{nurse("N001")}, visits, nil, nil, problem.DefaultParams())
	if err != nil {
		t.Fatalf("构建问题失败: %v", err)
	}

	sched := &model.Schedule{
		Date: "2026-08-31",
		Days: []*model.NurseDay{{
			NurseID: "N001",
			AM:      mustRoute(t, p, "N001", model.SessionAM, order),
			Lunch:   defaultLunch(),
		}},
	}

	report := New().Verify(p, sched)
	if !hasCode(report, errors.CodeCapacityExceeded) {
		t.Error("超容量应报 CAPACITY_EXCEEDED")
	}
}

func TestVerifyDeadlineMissed(t *testing.T) {
	blood := visit("V001_1", model.SessionAM, model.ZoneNorth)
	blood.Procedure = model.ProcedureBlood
	blood.Duration = 20
	other := visit("V002_1", model.SessionAM, model.ZoneEast)

	p, err := problem.New("2026-08-31", []*model.Nurse{nurse("N001")},
		[]*model.Visit{blood, other}, nil, nil, problem.DefaultParams())
	if err != nil {
		t.Fatalf("构建问题失败: %v", err)
	}

	// 抽血被排在第二位: 09:00-09:30 后跨区 20 分钟, 09:50 开始 10:10 完成
	route := mustRoute(t, p, "N001", model.SessionAM, []string{"V002_1", "V001_1"})
	// 截止时间在时间线构建后补挂, 模拟上游遗漏
	deadline := model.MustClock("10:00")
	blood.Deadline = &deadline
	sched := &model.Schedule{
		Date: "2026-08-31",
		Days: []*model.NurseDay{{NurseID: "N001", AM: route, Lunch: defaultLunch()}},
	}

	report := New().Verify(p, sched)
	if !hasCode(report, errors.CodeDeadlineMissed) {
		t.Error("超过截止应报 DEADLINE_MISSED")
	}
}

func TestVerifyPinViolated(t *testing.T) {
	pinned := visit("V001_1", model.SessionAM, model.ZoneNorth)
	pin := model.MustClock("10:00")
	pinned.Pin = &pin

	p, err := problem.New("2026-08-31", []*model.Nurse{nurse("N001")},
		[]*model.Visit{pinned}, nil, nil, problem.DefaultParams())
	if err != nil {
		t.Fatalf("构建问题失败: %v", err)
	}

	route := mustRoute(t, p, "N001", model.SessionAM, []string{"V001_1"})
	// 篡改开始时刻使其偏离固定时刻超出容差
	route.Visits[0].Start = model.MustClock("10:10")
	route.Visits[0].End = route.Visits[0].Start + model.Minutes(pinned.Duration)

	sched := &model.Schedule{
		Date: "2026-08-31",
		Days: []*model.NurseDay{{NurseID: "N001", AM: route, Lunch: defaultLunch()}},
	}

	report := New().Verify(p, sched)
	if !hasCode(report, errors.CodePinViolated) {
		t.Error("固定时刻偏差应报 PIN_VIOLATED")
	}
}

func TestVerifyLunchOverlap(t *testing.T) {
	v := visit("V001_1", model.SessionAM, model.ZoneNorth)
	p, err := problem.New("2026-08-31", []*model.Nurse{nurse("N001")},
		[]*model.Visit{v}, nil, nil, problem.DefaultParams())
	if err != nil {
		t.Fatalf("构建问题失败: %v", err)
	}

	route := mustRoute(t, p, "N001", model.SessionAM, []string{"V001_1"})
	testCases := []struct {
		name  string
		lunch model.MinuteRange
	}{
		{"时长不足", model.MinuteRange{Start: model.MustClock("12:00"), End: model.MustClock("12:30")}},
		{"越过窗口末端", model.MinuteRange{Start: model.MustClock("13:30"), End: model.MustClock("14:30")}},
	}

	for _, tc := range testCases {
		sched := &model.Schedule{
			Date: "2026-08-31",
			Days: []*model.NurseDay{{NurseID: "N001", AM: route, Lunch: tc.lunch}},
		}
		report := New().Verify(p, sched)
		if !hasCode(report, errors.CodeLunchOverlap) {
			t.Errorf("%s: 应报 LUNCH_OVERLAP", tc.name)
		}
	}
}

func TestVerifyPairSeparation(t *testing.T) {
	am := visit("V001_1", model.SessionAM, model.ZoneEast)
	pm := visit("V001_2", model.SessionPM, model.ZoneEast)
	pm.Latest = model.MustClock("16:30")
	am.GroupID = "CG001"
	pm.GroupID = "CG001"
	group := &model.ContinuityGroup{ID: "CG001", VisitIDs: []string{"V001_1", "V001_2"}}

	p, err := problem.New("2026-08-31", []*model.Nurse{nurse("N001")},
		[]*model.Visit{am, pm}, []*model.ContinuityGroup{group},
		nil, problem.DefaultParams())
	if err != nil {
		t.Fatalf("构建问题失败: %v", err)
	}

	// 09:00 与 14:30 开始, 间隔 330 分钟低于下限 360
	sched := &model.Schedule{
		Date: "2026-08-31",
		Days: []*model.NurseDay{{
			NurseID: "N001",
			AM:      mustRoute(t, p, "N001", model.SessionAM, []string{"V001_1"}),
			PM:      mustRoute(t, p, "N001", model.SessionPM, []string{"V001_2"}),
			Lunch:   defaultLunch(),
		}},
	}

	report := New().Verify(p, sched)
	if !hasCode(report, errors.CodeValidationFail) {
		t.Error("两剂间隔不足应报 VALIDATION_FAILED")
	}
}
