package problem

import (
	"sort"

	"github.com/paifang/paifang/pkg/model"
)

// Unit 需求单元：分配时不可拆分的巡访集合
// 连续性组是一个单元；无组巡访各自成为单腿单元
type Unit struct {
	ID     string
	Visits []*model.Visit // 上午腿在前
}

// Pinned 检查单元是否含固定时刻巡访
func (u *Unit) Pinned() bool {
	for _, v := range u.Visits {
		if v.IsPinned() {
			return true
		}
	}
	return false
}

// Deadline 返回单元内最紧的截止时间，全无截止时返回nil
func (u *Unit) Deadline() *model.Minutes {
	var tightest *model.Minutes
	for _, v := range u.Visits {
		if v.Deadline == nil {
			continue
		}
		if tightest == nil || *v.Deadline < *tightest {
			d := *v.Deadline
			tightest = &d
		}
	}
	return tightest
}

// Duration 返回单元总操作时长
func (u *Unit) Duration() int {
	total := 0
	for _, v := range u.Visits {
		total += v.Duration
	}
	return total
}

// Leg 返回指定时段的腿，不存在时返回nil
func (u *Unit) Leg(s model.Session) *model.Visit {
	for _, v := range u.Visits {
		if v.Session == s {
			return v
		}
	}
	return nil
}

// Sessions 返回单元触及的时段（AM在前）
func (u *Unit) Sessions() []model.Session {
	var sessions []model.Session
	for _, s := range model.Sessions() {
		if u.Leg(s) != nil {
			sessions = append(sessions, s)
		}
	}
	return sessions
}

// buildUnits 构建需求单元列表（按单元ID升序）
func (p *Problem) buildUnits() {
	grouped := make(map[string]bool)
	var units []*Unit

	for _, g := range p.groups {
		u := &Unit{ID: g.ID}
		for _, id := range g.VisitIDs {
			u.Visits = append(u.Visits, p.visitByID[id])
			grouped[id] = true
		}
		// 上午腿在前
		sort.Slice(u.Visits, func(i, j int) bool {
			if u.Visits[i].Session != u.Visits[j].Session {
				return u.Visits[i].Session == model.SessionAM
			}
			return u.Visits[i].ID < u.Visits[j].ID
		})
		units = append(units, u)
	}

	for _, v := range p.visits {
		if !grouped[v.ID] {
			units = append(units, &Unit{ID: v.ID, Visits: []*model.Visit{v}})
		}
	}

	sort.Slice(units, func(i, j int) bool { return units[i].ID < units[j].ID })
	p.units = units
}

// Units 返回需求单元列表（按ID升序）
func (p *Problem) Units() []*Unit {
	return p.units
}

// UnitOf 返回巡访所属的需求单元
func (p *Problem) UnitOf(visitID string) *Unit {
	v := p.visitByID[visitID]
	if v == nil {
		return nil
	}
	id := v.GroupID
	if id == "" {
		id = v.ID
	}
	for _, u := range p.units {
		if u.ID == id {
			return u
		}
	}
	return nil
}
