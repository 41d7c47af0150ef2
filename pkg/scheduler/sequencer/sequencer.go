// Package sequencer 将护士时段内的巡访排出访问顺序与时间线
package sequencer

import (
	"fmt"
	"sort"

	"github.com/paifang/paifang/pkg/errors"
	"github.com/paifang/paifang/pkg/model"
	"github.com/paifang/paifang/pkg/scheduler/problem"
)

// Sequencer 时段内巡访排序器
// 启发式：最近分区优先，固定时刻巡访作为锚点切分序列
type Sequencer struct{}

// New 创建排序器
func New() *Sequencer {
	return &Sequencer{}
}

// Sequence 排定单个护士单个时段的巡访序列
// visitIDs 为分配顺序（决定起始分区种子）；返回带时间线的序列
func (s *Sequencer) Sequence(p *problem.Problem, nurseID string, session model.Session, visitIDs []string) (*model.Route, error) {
	band := p.SessionBand(session)
	route := &model.Route{
		NurseID: nurseID,
		Session: session,
		Depart:  band.Start,
		End:     band.Start,
	}
	if len(visitIDs) == 0 {
		return route, nil
	}

	visits := make([]*model.Visit, 0, len(visitIDs))
	for _, id := range visitIDs {
		v := p.Visit(id)
		if v == nil {
			return nil, errors.New(errors.CodeInvalidInput, fmt.Sprintf("巡访 %s 不存在", id))
		}
		visits = append(visits, v)
	}

	anchors, free := splitPinned(visits)
	if err := checkPinSpacing(p, anchors); err != nil {
		return nil, err
	}

	// 种子分区：有固定时刻巡访取其分区，否则取首个分配巡访的分区
	seedZone := visits[0].Zone
	if len(anchors) > 0 {
		seedZone = anchors[0].Zone
	}

	curZone := seedZone
	curTime := band.Start
	first := true
	anchorIdx := 0

	appendVisit := func(v *model.Visit, start model.Minutes, travel, idle int) {
		route.Visits = append(route.Visits, model.ScheduledVisit{
			VisitID:      v.ID,
			Sequence:     len(route.Visits),
			TravelBefore: travel,
			IdleBefore:   idle,
			Arrival:      start - model.Minutes(idle),
			Start:        start,
			End:          start + model.Minutes(v.Duration),
			Pinned:       v.IsPinned(),
		})
		curZone = v.Zone
		curTime = start + model.Minutes(v.Duration)
		first = false
	}

	for len(free) > 0 || anchorIdx < len(anchors) {
		var nextAnchor *model.Visit
		if anchorIdx < len(anchors) {
			nextAnchor = anchors[anchorIdx]
		}

		// 在下一锚点前尽量插入普通巡访
		pick, start, travel, idle := s.pickNext(p, free, curZone, curTime, first, nextAnchor)
		if pick >= 0 {
			appendVisit(free[pick], start, travel, idle)
			free = append(free[:pick], free[pick+1:]...)
			continue
		}

		if nextAnchor != nil {
			// 推进到锚点：固定时刻精确执行，提前到达产生显式等待
			travel := p.Matrix().Travel(curZone, nextAnchor.Zone)
			if first {
				travel = p.Params.HospitalDepart
			}
			arrival := curTime + model.Minutes(travel)
			if arrival > *nextAnchor.Pin {
				prev := "时段起点"
				if len(route.Visits) > 0 {
					prev = route.Visits[len(route.Visits)-1].VisitID
				}
				return nil, errors.PinConflict(nextAnchor.ID, prev,
					fmt.Sprintf("最早可达 %s，固定时刻 %s", arrival.Clock(), nextAnchor.Pin.Clock()))
			}
			idle := int(*nextAnchor.Pin - arrival)
			appendVisit(nextAnchor, *nextAnchor.Pin, travel, idle)
			anchorIdx++
			continue
		}

		// 无锚点且剩余巡访均放不下：报告时间窗最紧的一条
		tightest := free[0]
		for _, v := range free[1:] {
			if v.Latest < tightest.Latest {
				tightest = v
			}
		}
		travelNeeded := p.Matrix().Travel(curZone, tightest.Zone)
		if first {
			travelNeeded = p.Params.HospitalDepart
		}
		earliest := curTime + model.Minutes(travelNeeded)
		return nil, errors.DeadlineMissed(tightest.ID,
			tightest.Latest.Clock(), earliest.Clock())
	}

	route.End = curTime
	return route, nil
}

// pickNext 在当前局面下选择下一条普通巡访
// 优先最小路途，平手取更早截止时间，再取ID升序；返回-1表示无可行选择
func (s *Sequencer) pickNext(p *problem.Problem, free []*model.Visit, curZone model.Zone, curTime model.Minutes, first bool, anchor *model.Visit) (idx int, start model.Minutes, travel, idle int) {
	best := -1
	var bestTravel int
	var bestStart model.Minutes
	var bestIdle int

	for i, v := range free {
		t := p.Matrix().Travel(curZone, v.Zone)
		charged := t
		if first {
			charged = p.Params.HospitalDepart
		}
		arrival := curTime + model.Minutes(charged)
		st := arrival
		if st < v.Earliest {
			st = v.Earliest
		}
		if st > v.Latest {
			continue
		}
		end := st + model.Minutes(v.Duration)
		if v.Deadline != nil && end > *v.Deadline {
			continue
		}
		if anchor != nil {
			// 完成后还须赶到锚点
			toAnchor := p.Matrix().Travel(v.Zone, anchor.Zone)
			if end+model.Minutes(toAnchor) > *anchor.Pin {
				continue
			}
		}

		if best >= 0 && !betterPick(v, t, free[best], bestTravel) {
			continue
		}
		best = i
		bestTravel = t
		bestStart = st
		bestIdle = int(st - arrival)
		travel = charged
	}

	if best < 0 {
		return -1, 0, 0, 0
	}
	// travel 记录实际路途（首访为出发路途）
	charged := bestTravel
	if first {
		charged = p.Params.HospitalDepart
	}
	return best, bestStart, charged, bestIdle
}

// betterPick 候选比较：路途短者优，平手取截止时间早者，再取ID小者
func betterPick(a *model.Visit, travelA int, b *model.Visit, travelB int) bool {
	if travelA != travelB {
		return travelA < travelB
	}
	da, db := deadlineOrMax(a), deadlineOrMax(b)
	if da != db {
		return da < db
	}
	return a.ID < b.ID
}

func deadlineOrMax(v *model.Visit) model.Minutes {
	if v.Deadline != nil {
		return *v.Deadline
	}
	return model.Minutes(24 * 60)
}

// splitPinned 拆分固定时刻巡访（按时刻升序）与普通巡访（按ID升序）
func splitPinned(visits []*model.Visit) (anchors, free []*model.Visit) {
	for _, v := range visits {
		if v.IsPinned() {
			anchors = append(anchors, v)
		} else {
			free = append(free, v)
		}
	}
	sort.Slice(anchors, func(i, j int) bool {
		if *anchors[i].Pin != *anchors[j].Pin {
			return *anchors[i].Pin < *anchors[j].Pin
		}
		return anchors[i].ID < anchors[j].ID
	})
	sort.Slice(free, func(i, j int) bool { return free[i].ID < free[j].ID })
	return anchors, free
}

// checkPinSpacing 校验锚点之间的间隔足够完成操作与路途
// 冲突时显式失败，绝不静默调换顺序
func checkPinSpacing(p *problem.Problem, anchors []*model.Visit) error {
	for i := 1; i < len(anchors); i++ {
		a, b := anchors[i-1], anchors[i]
		need := model.Minutes(a.Duration + p.Matrix().Travel(a.Zone, b.Zone))
		if *a.Pin+need > *b.Pin {
			return errors.PinConflict(a.ID, b.ID,
				fmt.Sprintf("间隔 %d 分钟，需要 %d 分钟", int(*b.Pin-*a.Pin), int(need)))
		}
	}
	return nil
}
