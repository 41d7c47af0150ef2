// Package optimizer 提供排程的确定性局部搜索优化
package optimizer

import (
	"github.com/paifang/paifang/pkg/model"
	"github.com/paifang/paifang/pkg/scheduler/problem"
	"github.com/paifang/paifang/pkg/scheduler/sequencer"
)

// LocalSearch 时段内两两交换的局部搜索
// 完全确定性：固定扫描顺序，仅接受严格降低代价的交换
type LocalSearch struct {
	MaxPasses int
}

// New 创建局部搜索优化器
func New() *LocalSearch {
	return &LocalSearch{MaxPasses: 4}
}

// Optimize 逐护士逐时段优化访问顺序，原地更新排程
// 失败的候选顺序直接跳过，永不破坏已有可行性
func (o *LocalSearch) Optimize(p *problem.Problem, sched *model.Schedule) {
	for _, day := range sched.Days {
		for _, s := range model.Sessions() {
			route := day.RouteFor(s)
			if route == nil || len(route.Visits) < 3 {
				continue
			}
			improved := o.improveRoute(p, route)
			if improved != nil {
				*route = *improved
			}
		}
	}
}

// improveRoute 对单条时段序列做两两交换改进，无改进时返回nil
func (o *LocalSearch) improveRoute(p *problem.Problem, route *model.Route) *model.Route {
	best := route
	bestCost := routeCost(best)
	changed := false

	for pass := 0; pass < o.MaxPasses; pass++ {
		passImproved := false
		order := best.VisitIDs()

		for i := 0; i < len(order)-1; i++ {
			for j := i + 1; j < len(order); j++ {
				if best.Visits[i].Pinned || best.Visits[j].Pinned {
					continue
				}
				swapped := make([]string, len(order))
				copy(swapped, order)
				swapped[i], swapped[j] = swapped[j], swapped[i]

				candidate, err := sequencer.Rebuild(p, route.NurseID, route.Session, swapped)
				if err != nil {
					continue
				}
				if cost := routeCost(candidate); cost < bestCost {
					best = candidate
					bestCost = cost
					order = swapped
					passImproved = true
					changed = true
				}
			}
		}

		if !passImproved {
			break
		}
	}

	if !changed {
		return nil
	}
	return best
}

// routeCost 序列代价：路途与等待分钟之和
func routeCost(r *model.Route) int {
	return r.TravelTotal() + r.IdleTotal()
}
