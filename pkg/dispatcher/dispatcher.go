// Package dispatcher 处理排程生成后的临时加访
// 不整体重解：在已有排程上寻找代价最小的可行插入位置
package dispatcher

import (
	"fmt"

	"github.com/paifang/paifang/pkg/errors"
	"github.com/paifang/paifang/pkg/logger"
	"github.com/paifang/paifang/pkg/model"
	"github.com/paifang/paifang/pkg/scheduler/problem"
	"github.com/paifang/paifang/pkg/scheduler/sequencer"
)

// Decision 加访决策
type Decision struct {
	VisitID     string        `json:"visit_id"`
	NurseID     string        `json:"nurse_id"`
	Session     model.Session `json:"session"`
	Position    int           `json:"position"`     // 插入后的时段内序号
	AddedTravel int           `json:"added_travel"` // 新增路途分钟数
}

// Dispatcher 加访调度器
type Dispatcher struct{}

// New 创建加访调度器
func New() *Dispatcher {
	return &Dispatcher{}
}

// Dispatch 将临时巡访插入已有排程
// 成功时原地更新排程并返回决策；无可行位置时返回容量耗尽错误
func (d *Dispatcher) Dispatch(p *problem.Problem, sched *model.Schedule, visit *model.Visit) (*Decision, error) {
	if visit == nil || visit.ID == "" {
		return nil, errors.New(errors.CodeInvalidInput, "加访巡访无效")
	}
	if p.Visit(visit.ID) == nil {
		return nil, errors.New(errors.CodeInvalidInput,
			fmt.Sprintf("加访巡访 %s 未注册到问题中", visit.ID))
	}
	if sched.Find(visit.ID) != nil {
		return nil, errors.New(errors.CodeInvalidInput,
			fmt.Sprintf("巡访 %s 已在排程中", visit.ID))
	}

	var best *Decision
	var bestRoute *model.Route

	for _, day := range sched.Days {
		nurse := p.Nurse(day.NurseID)
		if nurse == nil {
			continue
		}
		route := day.RouteFor(visit.Session)
		if route == nil {
			route = &model.Route{NurseID: day.NurseID, Session: visit.Session}
		}
		if len(route.Visits) >= nurse.Capacity(visit.Session) {
			continue
		}

		order := route.VisitIDs()
		baseTravel := route.TravelTotal()

		for pos := 0; pos <= len(order); pos++ {
			candidate := make([]string, 0, len(order)+1)
			candidate = append(candidate, order[:pos]...)
			candidate = append(candidate, visit.ID)
			candidate = append(candidate, order[pos:]...)

			rebuilt, err := sequencer.Rebuild(p, day.NurseID, visit.Session, candidate)
			if err != nil {
				continue
			}
			if overlapsLunch(rebuilt, day.Lunch) {
				continue
			}

			added := rebuilt.TravelTotal() - baseTravel
			if best == nil || added < best.AddedTravel ||
				(added == best.AddedTravel && day.NurseID < best.NurseID) {
				best = &Decision{
					VisitID:     visit.ID,
					NurseID:     day.NurseID,
					Session:     visit.Session,
					Position:    pos,
					AddedTravel: added,
				}
				bestRoute = rebuilt
			}
		}
	}

	if best == nil {
		return nil, errors.CapacityExhausted(visit.ID, []string{visit.ID})
	}

	day := sched.Day(best.NurseID)
	if visit.Session == model.SessionAM {
		day.AM = bestRoute
	} else {
		day.PM = bestRoute
	}

	logger.Info().
		Str("visit_id", best.VisitID).
		Str("nurse_id", best.NurseID).
		Str("session", string(best.Session)).
		Int("added_travel", best.AddedTravel).
		Msg("临时加访已插入排程")
	return best, nil
}

func overlapsLunch(route *model.Route, lunch model.MinuteRange) bool {
	for _, sv := range route.Visits {
		if (model.MinuteRange{Start: sv.Start, End: sv.End}).Overlaps(lunch) {
			return true
		}
	}
	return false
}
