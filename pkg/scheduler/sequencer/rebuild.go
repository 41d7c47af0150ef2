package sequencer

import (
	"fmt"

	"github.com/paifang/paifang/pkg/errors"
	"github.com/paifang/paifang/pkg/model"
	"github.com/paifang/paifang/pkg/scheduler/problem"
)

// Rebuild 按给定顺序重建时段时间线
// 与 Sequence 不同，不做任何重排：顺序不可行时返回错误
// 供局部搜索评估候选顺序与临时加访复算使用
func Rebuild(p *problem.Problem, nurseID string, session model.Session, order []string) (*model.Route, error) {
	band := p.SessionBand(session)
	route := &model.Route{
		NurseID: nurseID,
		Session: session,
		Depart:  band.Start,
		End:     band.Start,
	}

	curTime := band.Start
	var curZone model.Zone
	for i, id := range order {
		v := p.Visit(id)
		if v == nil {
			return nil, errors.New(errors.CodeInvalidInput, fmt.Sprintf("巡访 %s 不存在", id))
		}

		travel := p.Params.HospitalDepart
		if i > 0 {
			travel = p.Matrix().Travel(curZone, v.Zone)
		}
		arrival := curTime + model.Minutes(travel)

		start := arrival
		if v.IsPinned() {
			if arrival > *v.Pin {
				return nil, errors.PinConflict(v.ID, "前序巡访",
					fmt.Sprintf("最早可达 %s，固定时刻 %s", arrival.Clock(), v.Pin.Clock()))
			}
			start = *v.Pin
		} else if start < v.Earliest {
			start = v.Earliest
		}

		if start > v.Latest && !v.IsPinned() {
			return nil, errors.DeadlineMissed(v.ID, v.Latest.Clock(), start.Clock())
		}
		end := start + model.Minutes(v.Duration)
		if v.Deadline != nil && end > *v.Deadline {
			return nil, errors.DeadlineMissed(v.ID, v.Deadline.Clock(), end.Clock())
		}

		route.Visits = append(route.Visits, model.ScheduledVisit{
			VisitID:      v.ID,
			Sequence:     i,
			TravelBefore: travel,
			IdleBefore:   int(start - arrival),
			Arrival:      arrival,
			Start:        start,
			End:          end,
			Pinned:       v.IsPinned(),
		})
		curZone = v.Zone
		curTime = end
	}

	route.End = curTime
	return route, nil
}
