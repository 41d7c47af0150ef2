package stats

import (
	"math"
	"testing"

	"github.com/paifang/paifang/pkg/model"
	"github.com/paifang/paifang/pkg/scheduler/problem"
	"github.com/paifang/paifang/pkg/scheduler/sequencer"
)

func visit(id string, zone model.Zone) *model.Visit {
	return &model.Visit{
		ID:        id,
		Zone:      zone,
		Procedure: model.ProcedureOther,
		Session:   model.SessionAM,
		Duration:  30,
		Earliest:  model.MustClock("08:30"),
		Latest:    model.MustClock("11:00"),
	}
}

func TestComputeSummary(t *testing.T) {
	nurses := []*model.Nurse{
		{ID: "N001", MaxVisitsAM: 3, MaxVisitsPM: 3},
		{ID: "N002", MaxVisitsAM: 3, MaxVisitsPM: 3},
	}
	visits := []*model.Visit{
		visit("V001_1", model.ZoneNorth),
		visit("V002_1", model.ZoneNorth),
		visit("V003_1", model.ZoneNorth),
		visit("V004_1", model.ZoneEast),
	}
	p, err := problem.New("2026-08-31", nurses, visits, nil, nil, problem.DefaultParams())
	if err != nil {
		t.Fatalf("构建问题失败: %v", err)
	}

	am1, err := sequencer.Rebuild(p, "N001", model.SessionAM, []string{"V001_1", "V002_1", "V003_1"})
	if err != nil {
		t.Fatalf("重建时间线失败: %v", err)
	}
	am2, err := sequencer.Rebuild(p, "N002", model.SessionAM, []string{"V004_1"})
	if err != nil {
		t.Fatalf("重建时间线失败: %v", err)
	}

	sched := &model.Schedule{
		Date: "2026-08-31",
		Days: []*model.NurseDay{
			{NurseID: "N001", AM: am1},
			{NurseID: "N002", AM: am2},
		},
	}

	summary := Compute(p, sched)
	if summary.TotalVisits != 4 {
		t.Errorf("总巡访数期望 4, 实际 %d", summary.TotalVisits)
	}
	if summary.AvgVisits != 2.0 {
		t.Errorf("人均巡访期望 2.0, 实际 %f", summary.AvgVisits)
	}
	// 同区三访: 30+15+15=60; 单访: 30
	if summary.TotalTravel != 90 {
		t.Errorf("总路途期望 90, 实际 %d", summary.TotalTravel)
	}
	// 工作量 [3,1] 的基尼系数为 0.25
	if math.Abs(summary.WorkloadGini-0.25) > 1e-9 {
		t.Errorf("基尼系数期望 0.25, 实际 %f", summary.WorkloadGini)
	}
	if summary.PerNurse[0].CareMinutes != 90 {
		t.Errorf("N001 护理分钟期望 90, 实际 %d", summary.PerNurse[0].CareMinutes)
	}
}

func TestGiniBalanced(t *testing.T) {
	if g := gini([]int{2, 2, 2}); g != 0 {
		t.Errorf("完全均衡的基尼系数应为 0, 实际 %f", g)
	}
	if g := gini(nil); g != 0 {
		t.Errorf("空列表基尼系数应为 0, 实际 %f", g)
	}
}
