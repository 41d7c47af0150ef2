package solver

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/paifang/paifang/pkg/errors"
	"github.com/paifang/paifang/pkg/model"
	"github.com/paifang/paifang/pkg/scheduler/problem"
)

func nurse(id string) *model.Nurse {
	return &model.Nurse{ID: id, Name: "Nurse " + id, MaxVisitsAM: 3, MaxVisitsPM: 3}
}

func visit(id string, session model.Session, zone model.Zone) *model.Visit {
	return &model.Visit{
		ID:        id,
		Zone:      zone,
		Procedure: model.ProcedureOther,
		Session:   session,
		Duration:  30,
		Earliest:  model.MustClock("08:30"),
		Latest:    model.MustClock("16:00"),
	}
}

func mustProblem(t *testing.T, nurses []*model.Nurse, visits []*model.Visit, groups []*model.ContinuityGroup) *problem.Problem {
	t.Helper()
	p, err := problem.New("2026-08-31", nurses, visits, groups, nil, problem.DefaultParams())
	if err != nil {
		t.Fatalf("构建问题失败: %v", err)
	}
	return p
}

func TestSolveContinuityPairSameNurse(t *testing.T) {
	am := visit("V001_1", model.SessionAM, model.ZoneEast)
	pm := visit("V001_2", model.SessionPM, model.ZoneWest)
	am.GroupID = "CG001"
	pm.GroupID = "CG001"
	group := &model.ContinuityGroup{ID: "CG001", VisitIDs: []string{"V001_1", "V001_2"}}

	p := mustProblem(t,
		[]*model.Nurse{nurse("N001"), nurse("N002")},
		[]*model.Visit{am, pm},
		[]*model.ContinuityGroup{group})

	result, err := NewGreedySolver().Solve(context.Background(), p)
	if err != nil {
		t.Fatalf("求解失败: %v", err)
	}

	a, b := result.Assignments["V001_1"], result.Assignments["V001_2"]
	if a == "" || a != b {
		t.Errorf("配对两条腿应分配给同一护士, 实际 %s / %s", a, b)
	}
}

func TestSolveCapacityExhausted(t *testing.T) {
	// 单护士 3+3 容量放不下 7 条巡访
	var visits []*model.Visit
	for i := 0; i < 4; i++ {
		visits = append(visits, visit(fmt.Sprintf("V00%d_1", i+1), model.SessionAM, model.ZoneNorth))
	}
	for i := 4; i < 7; i++ {
		visits = append(visits, visit(fmt.Sprintf("V00%d_1", i+1), model.SessionPM, model.ZoneNorth))
	}

	p := mustProblem(t, []*model.Nurse{nurse("N001")}, visits, nil)
	_, err := NewGreedySolver().Solve(context.Background(), p)
	if !errors.Is(err, errors.CodeCapacityExhausted) {
		t.Fatalf("错误码应为 CAPACITY_EXHAUSTED, 实际 %v", err)
	}

	var appErr *errors.AppError
	if !asAppError(err, &appErr) {
		t.Fatal("应返回 AppError")
	}
	if appErr.Fields["group_id"] == "" {
		t.Error("错误应指明被阻塞的需求单元")
	}

	// 增加一名护士后应可解
	p2 := mustProblem(t, []*model.Nurse{nurse("N001"), nurse("N002")}, visits, nil)
	result, err := NewGreedySolver().Solve(context.Background(), p2)
	if err != nil {
		t.Fatalf("双护士应可解: %v", err)
	}
	if len(result.Assignments) != 7 {
		t.Errorf("全部 7 条巡访都应被分配, 实际 %d", len(result.Assignments))
	}
}

func TestSolveNoSilentDrop(t *testing.T) {
	var visits []*model.Visit
	for i := 0; i < 6; i++ {
		s := model.SessionAM
		if i >= 3 {
			s = model.SessionPM
		}
		visits = append(visits, visit(fmt.Sprintf("V10%d_1", i+1), s, model.AllZones()[i%5]))
	}

	p := mustProblem(t, []*model.Nurse{nurse("N001"), nurse("N002")}, visits, nil)
	result, err := NewGreedySolver().Solve(context.Background(), p)
	if err != nil {
		t.Fatalf("求解失败: %v", err)
	}
	for _, v := range visits {
		if result.Assignments[v.ID] == "" {
			t.Errorf("巡访 %s 未被分配", v.ID)
		}
	}
}

func TestSolveDeterministic(t *testing.T) {
	var visits []*model.Visit
	for i := 0; i < 10; i++ {
		s := model.SessionAM
		if i%2 == 1 {
			s = model.SessionPM
		}
		visits = append(visits, visit(fmt.Sprintf("V20%d_1", i+1), s, model.AllZones()[i%5]))
	}
	nurses := []*model.Nurse{nurse("N001"), nurse("N002"), nurse("N003")}

	p1 := mustProblem(t, nurses, visits, nil)
	r1, err := NewGreedySolver().Solve(context.Background(), p1)
	if err != nil {
		t.Fatalf("第一次求解失败: %v", err)
	}
	r2, err := NewGreedySolver().Solve(context.Background(), p1)
	if err != nil {
		t.Fatalf("第二次求解失败: %v", err)
	}

	if !reflect.DeepEqual(r1.Assignments, r2.Assignments) {
		t.Error("同一问题两次求解分配结果应一致")
	}
	for _, n := range nurses {
		for _, s := range model.Sessions() {
			if !reflect.DeepEqual(r1.Route(n.ID, s), r2.Route(n.ID, s)) {
				t.Errorf("护士 %s 时段 %s 的放置顺序应一致", n.ID, s)
			}
		}
	}
}

func TestSolveIterationCap(t *testing.T) {
	visits := []*model.Visit{
		visit("V401_1", model.SessionAM, model.ZoneNorth),
		visit("V402_1", model.SessionAM, model.ZoneNorth),
	}

	params := problem.DefaultParams()
	params.MaxIterations = 1
	p, err := problem.New("2026-08-31", []*model.Nurse{nurse("N001")}, visits, nil, nil, params)
	if err != nil {
		t.Fatalf("构建问题失败: %v", err)
	}

	_, err = NewGreedySolver().Solve(context.Background(), p)
	if !errors.Is(err, errors.CodeSolverTimeout) {
		t.Fatalf("错误码应为 SOLVER_TIMEOUT, 实际 %v", err)
	}
}

func TestSolveCapacityRespected(t *testing.T) {
	var visits []*model.Visit
	for i := 0; i < 6; i++ {
		visits = append(visits, visit(fmt.Sprintf("V30%d_1", i+1), model.SessionAM, model.ZoneCentral))
	}

	p := mustProblem(t, []*model.Nurse{nurse("N001"), nurse("N002")}, visits, nil)
	result, err := NewGreedySolver().Solve(context.Background(), p)
	if err != nil {
		t.Fatalf("求解失败: %v", err)
	}
	for _, n := range p.Nurses() {
		if got := len(result.Route(n.ID, model.SessionAM)); got > n.Capacity(model.SessionAM) {
			t.Errorf("护士 %s 上午分配 %d 条超出容量 %d", n.ID, got, n.Capacity(model.SessionAM))
		}
	}
}

func asAppError(err error, target **errors.AppError) bool {
	for err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			*target = appErr
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
