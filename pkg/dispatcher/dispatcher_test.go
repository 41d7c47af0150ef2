package dispatcher

import (
	"testing"

	"github.com/paifang/paifang/pkg/errors"
	"github.com/paifang/paifang/pkg/model"
	"github.com/paifang/paifang/pkg/scheduler/problem"
	"github.com/paifang/paifang/pkg/scheduler/sequencer"
)

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

func setup(t *testing.T, nurses []*model.Nurse, visits []*model.Visit, scheduled map[string][]string) (*problem.Problem, *model.Schedule) {
	t.Helper()
	p, err := problem.New("2026-08-31", nurses, visits, nil, nil, problem.DefaultParams())
	if err != nil {
		t.Fatalf("构建问题失败: %v", err)
	}

	sched := &model.Schedule{Date: "2026-08-31"}
	for _, n := range p.Nurses() {
		day := &model.NurseDay{
			NurseID: n.ID,
			Lunch:   model.MinuteRange{Start: model.MustClock("12:00"), End: model.MustClock("13:00")},
		}
		if order := scheduled[n.ID]; len(order) > 0 {
			route, err := sequencer.Rebuild(p, n.ID, model.SessionAM, order)
			if err != nil {
				t.Fatalf("重建时间线失败: %v", err)
			}
			day.AM = route
		}
		sched.Days = append(sched.Days, day)
	}
	return p, sched
}

func TestDispatchInsertsVisit(t *testing.T) {
	nurses := []*model.Nurse{{ID: "N001", MaxVisitsAM: 3, MaxVisitsPM: 3}}
	existing := visit("V001_1", model.SessionAM, model.ZoneNorth)
	adhoc := visit("V002_1", model.SessionAM, model.ZoneNorth)

	p, sched := setup(t, nurses, []*model.Visit{existing, adhoc},
		map[string][]string{"N001": {"V001_1"}})

	decision, err := New().Dispatch(p, sched, adhoc)
	if err != nil {
		t.Fatalf("加访失败: %v", err)
	}
	if decision.NurseID != "N001" {
		t.Errorf("应插入护士 N001, 实际 %s", decision.NurseID)
	}
	if sched.Find("V002_1") == nil {
		t.Error("加访后排程应包含新巡访")
	}
	if got := len(sched.Day("N001").AM.Visits); got != 2 {
		t.Errorf("上午序列期望 2 条, 实际 %d", got)
	}
}

func TestDispatchPrefersLowestAddedTravel(t *testing.T) {
	nurses := []*model.Nurse{
		{ID: "N001", MaxVisitsAM: 3, MaxVisitsPM: 3},
		{ID: "N002", MaxVisitsAM: 3, MaxVisitsPM: 3},
	}
	inEast := visit("V001_1", model.SessionAM, model.ZoneEast)
	inNorth := visit("V002_1", model.SessionAM, model.ZoneNorth)
	adhoc := visit("V003_1", model.SessionAM, model.ZoneNorth)

	p, sched := setup(t, nurses, []*model.Visit{inEast, inNorth, adhoc},
		map[string][]string{"N001": {"V001_1"}, "N002": {"V002_1"}})

	decision, err := New().Dispatch(p, sched, adhoc)
	if err != nil {
		t.Fatalf("加访失败: %v", err)
	}
	// 同区追加仅 15 分钟路途, 跨区追加 20 分钟
	if decision.NurseID != "N002" {
		t.Errorf("应插入同区护士 N002, 实际 %s", decision.NurseID)
	}
	if decision.AddedTravel != 15 {
		t.Errorf("新增路途期望 15, 实际 %d", decision.AddedTravel)
	}
}

func TestDispatchCapacityExhausted(t *testing.T) {
	nurses := []*model.Nurse{{ID: "N001", MaxVisitsAM: 1, MaxVisitsPM: 3}}
	existing := visit("V001_1", model.SessionAM, model.ZoneNorth)
	adhoc := visit("V002_1", model.SessionAM, model.ZoneNorth)

	p, sched := setup(t, nurses, []*model.Visit{existing, adhoc},
		map[string][]string{"N001": {"V001_1"}})

	_, err := New().Dispatch(p, sched, adhoc)
	if !errors.Is(err, errors.CodeCapacityExhausted) {
		t.Fatalf("错误码应为 CAPACITY_EXHAUSTED, 实际 %v", err)
	}
}

func TestDispatchRejectsDuplicate(t *testing.T) {
	nurses := []*model.Nurse{{ID: "N001", MaxVisitsAM: 3, MaxVisitsPM: 3}}
	existing := visit("V001_1", model.SessionAM, model.ZoneNorth)

	p, sched := setup(t, nurses, []*model.Visit{existing},
		map[string][]string{"N001": {"V001_1"}})

	_, err := New().Dispatch(p, sched, existing)
	if !errors.Is(err, errors.CodeInvalidInput) {
		t.Fatalf("重复加访应报 INVALID_INPUT, 实际 %v", err)
	}
}
