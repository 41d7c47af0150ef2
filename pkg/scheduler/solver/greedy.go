// Package solver 提供巡访分配求解器
package solver

import (
	"context"
	"sort"
	"time"

	"github.com/paifang/paifang/pkg/errors"
	"github.com/paifang/paifang/pkg/logger"
	"github.com/paifang/paifang/pkg/model"
	"github.com/paifang/paifang/pkg/scheduler/problem"
)

// Solver 分配求解器接口
type Solver interface {
	// Solve 将全部需求单元分配到护士时段
	Solve(ctx context.Context, p *problem.Problem) (*Result, error)

	// Name 返回求解器名称
	Name() string
}

// Result 分配结果
type Result struct {
	// Assignments 巡访ID → 护士ID
	Assignments map[string]string `json:"assignments"`

	Iterations int           `json:"iterations"`
	Duration   time.Duration `json:"duration"`

	// routes 护士×时段 → 按放置顺序的巡访ID
	routes map[string]map[model.Session][]string
}

// Route 返回护士在指定时段内按放置顺序的巡访ID
func (r *Result) Route(nurseID string, s model.Session) []string {
	if byNurse, ok := r.routes[nurseID]; ok {
		return byNurse[s]
	}
	return nil
}

// GreedySolver 贪心求解器：按优先级放置需求单元，带撤销日志回溯
type GreedySolver struct {
	logger *logger.PlannerLogger
}

// NewGreedySolver 创建贪心求解器
func NewGreedySolver() *GreedySolver {
	return &GreedySolver{logger: logger.NewPlannerLogger()}
}

// Name 返回求解器名称
func (s *GreedySolver) Name() string { return "GreedySolver" }

// placement 单次放置决策（撤销日志条目）
type placement struct {
	unit       *problem.Unit
	candidates []string // 进入该单元时计算的候选护士排序
	cursor     int      // 当前选用的候选序号
	nurseID    string
}

// solveState 求解过程的可撤销状态
type solveState struct {
	capLeft map[string]map[model.Session]int
	zones   map[string]map[model.Zone]int // 护士当日触及分区的计数
}

func newSolveState(p *problem.Problem) *solveState {
	st := &solveState{
		capLeft: make(map[string]map[model.Session]int),
		zones:   make(map[string]map[model.Zone]int),
	}
	for _, n := range p.Nurses() {
		st.capLeft[n.ID] = map[model.Session]int{
			model.SessionAM: n.Capacity(model.SessionAM),
			model.SessionPM: n.Capacity(model.SessionPM),
		}
		st.zones[n.ID] = make(map[model.Zone]int)
	}
	return st
}

// fits 检查护士是否对单元的每条腿都有剩余容量
func (st *solveState) fits(nurseID string, u *problem.Unit) bool {
	for _, v := range u.Visits {
		if st.capLeft[nurseID][v.Session] < 1 {
			return false
		}
	}
	return true
}

// place 放置单元并更新状态
func (st *solveState) place(nurseID string, u *problem.Unit) {
	for _, v := range u.Visits {
		st.capLeft[nurseID][v.Session]--
		st.zones[nurseID][v.Zone]++
	}
}

// undo 撤销放置
func (st *solveState) undo(nurseID string, u *problem.Unit) {
	for _, v := range u.Visits {
		st.capLeft[nurseID][v.Session]++
		st.zones[nurseID][v.Zone]--
		if st.zones[nurseID][v.Zone] == 0 {
			delete(st.zones[nurseID], v.Zone)
		}
	}
}

// dispersionCost 计算放置后该护士当日触及的分区总数（单调递增惩罚）
func (st *solveState) dispersionCost(nurseID string, u *problem.Unit) int {
	distinct := make(map[model.Zone]bool)
	for z := range st.zones[nurseID] {
		distinct[z] = true
	}
	for _, v := range u.Visits {
		distinct[v.Zone] = true
	}
	return len(distinct)
}

// Solve 求解分配
// 保证：每个单元都被放置，或显式失败（CapacityExhausted/SolverTimeout），绝不静默丢弃
func (s *GreedySolver) Solve(ctx context.Context, p *problem.Problem) (*Result, error) {
	start := time.Now()
	units := orderUnits(p.Units())
	st := newSolveState(p)

	var log []*placement
	iterations := 0
	maxIter := p.Params.MaxIterations
	var blocked *problem.Unit

	i := 0
	for i < len(units) {
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), errors.CodeTimeout, "求解被取消")
		}

		var pl *placement
		if len(log) > i {
			// 回溯后重入：沿用原候选排序，游标前移
			pl = log[i]
		} else {
			pl = &placement{unit: units[i], candidates: s.rankCandidates(p, st, units[i])}
			log = append(log, pl)
		}

		placed := false
		for ; pl.cursor < len(pl.candidates); pl.cursor++ {
			iterations++
			if iterations > maxIter {
				return nil, errors.SolverTimeout(maxIter)
			}
			nurseID := pl.candidates[pl.cursor]
			if !st.fits(nurseID, pl.unit) {
				continue
			}
			st.place(nurseID, pl.unit)
			pl.nurseID = nurseID
			placed = true
			break
		}

		if placed {
			i++
			continue
		}

		// 本单元无可行候选：记录最深阻塞单元并回溯
		if blocked == nil {
			blocked = pl.unit
		}
		log = log[:len(log)-1]
		if i == 0 {
			s.logger.ConstraintViolation(string(errors.CodeCapacityExhausted), blocked.ID)
			return nil, errors.CapacityExhausted(blocked.ID, visitIDs(blocked))
		}
		i--
		prev := log[i]
		st.undo(prev.nurseID, prev.unit)
		prev.nurseID = ""
		prev.cursor++
	}

	result := &Result{
		Assignments: make(map[string]string),
		Iterations:  iterations,
		Duration:    time.Since(start),
		routes:      make(map[string]map[model.Session][]string),
	}
	for _, pl := range log {
		for _, v := range pl.unit.Visits {
			result.Assignments[v.ID] = pl.nurseID
			if result.routes[pl.nurseID] == nil {
				result.routes[pl.nurseID] = make(map[model.Session][]string)
			}
			result.routes[pl.nurseID][v.Session] = append(result.routes[pl.nurseID][v.Session], v.ID)
		}
	}

	return result, nil
}

// rankCandidates 计算单元的候选护士排序
// 代价：分区离散度（当日触及分区数），语言匹配作次级修正；同分按护士ID升序
func (s *GreedySolver) rankCandidates(p *problem.Problem, st *solveState, u *problem.Unit) []string {
	type scored struct {
		nurseID string
		cost    int
	}
	var list []scored

	for _, n := range p.Nurses() {
		cost := st.dispersionCost(n.ID, u) * 10
		for _, v := range u.Visits {
			if !n.PrefersZone(v.Zone) {
				cost += 2
			}
			if v.Language != "" && len(n.Languages) > 0 && !n.Speaks(v.Language) {
				cost++
			}
		}
		list = append(list, scored{nurseID: n.ID, cost: cost})
	}

	sort.Slice(list, func(i, j int) bool {
		if list[i].cost != list[j].cost {
			return list[i].cost < list[j].cost
		}
		return list[i].nurseID < list[j].nurseID
	})

	ids := make([]string, len(list))
	for i, sc := range list {
		ids[i] = sc.nurseID
	}
	return ids
}

// orderUnits 需求单元优先级排序：
// 固定时刻在前，其次截止时间升序，再次总时长降序，最后按ID升序保证确定性
func orderUnits(units []*problem.Unit) []*problem.Unit {
	ordered := make([]*problem.Unit, len(units))
	copy(ordered, units)

	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Pinned() != b.Pinned() {
			return a.Pinned()
		}
		da, db := a.Deadline(), b.Deadline()
		if (da == nil) != (db == nil) {
			return da != nil
		}
		if da != nil && db != nil && *da != *db {
			return *da < *db
		}
		if a.Duration() != b.Duration() {
			return a.Duration() > b.Duration()
		}
		return a.ID < b.ID
	})

	return ordered
}

func visitIDs(u *problem.Unit) []string {
	ids := make([]string, len(u.Visits))
	for i, v := range u.Visits {
		ids[i] = v.ID
	}
	return ids
}
