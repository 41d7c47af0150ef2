// Package model 定义巡访排程引擎的核心数据模型
package model

import (
	"time"

	"github.com/google/uuid"
)

// ScheduledVisit 排定的一次巡访及其时间线
type ScheduledVisit struct {
	VisitID      string  `json:"visit_id"`
	Sequence     int     `json:"sequence"`      // 时段内序号，从0开始
	TravelBefore int     `json:"travel_before"` // 抵达前路途分钟数
	IdleBefore   int     `json:"idle_before"`   // 抵达后等待分钟数（固定时刻巡访可能产生）
	Arrival      Minutes `json:"arrival"`
	Start        Minutes `json:"start"`
	End          Minutes `json:"end"`
	Pinned       bool    `json:"pinned"`
}

// Route 单个护士在单个时段内的巡访序列
type Route struct {
	NurseID string           `json:"nurse_id"`
	Session Session          `json:"session"`
	Visits  []ScheduledVisit `json:"visits"`
	Depart  Minutes          `json:"depart"` // 出发时刻
	End     Minutes          `json:"end"`    // 最后一次巡访完成时刻
}

// VisitIDs 返回序列中的巡访ID（按顺序）
func (r *Route) VisitIDs() []string {
	ids := make([]string, len(r.Visits))
	for i, v := range r.Visits {
		ids[i] = v.VisitID
	}
	return ids
}

// TravelTotal 返回序列总路途分钟数
func (r *Route) TravelTotal() int {
	total := 0
	for _, v := range r.Visits {
		total += v.TravelBefore
	}
	return total
}

// IdleTotal 返回序列总等待分钟数
func (r *Route) IdleTotal() int {
	total := 0
	for _, v := range r.Visits {
		total += v.IdleBefore
	}
	return total
}

// NurseDay 单个护士的全天安排
type NurseDay struct {
	NurseID string      `json:"nurse_id"`
	AM      *Route      `json:"am,omitempty"`
	PM      *Route      `json:"pm,omitempty"`
	Lunch   MinuteRange `json:"lunch"` // 午餐窗口，不得与巡访重叠
}

// RouteFor 返回指定时段的序列（可能为nil）
func (d *NurseDay) RouteFor(s Session) *Route {
	if s == SessionAM {
		return d.AM
	}
	return d.PM
}

// VisitCount 返回当日巡访总数
func (d *NurseDay) VisitCount() int {
	count := 0
	if d.AM != nil {
		count += len(d.AM.Visits)
	}
	if d.PM != nil {
		count += len(d.PM.Visits)
	}
	return count
}

// Schedule 排程结果：护士×时段 → 有序巡访序列
type Schedule struct {
	ID          uuid.UUID   `json:"id"`
	Date        string      `json:"date"` // YYYY-MM-DD
	Days        []*NurseDay `json:"days"` // 按护士ID升序
	Attempts    int         `json:"attempts"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// Day 返回指定护士的当日安排
func (s *Schedule) Day(nurseID string) *NurseDay {
	for _, d := range s.Days {
		if d.NurseID == nurseID {
			return d
		}
	}
	return nil
}

// VisitCount 返回已排定的巡访总数
func (s *Schedule) VisitCount() int {
	count := 0
	for _, d := range s.Days {
		count += d.VisitCount()
	}
	return count
}

// Placement 巡访在排程中的位置
type Placement struct {
	NurseID string
	Session Session
	Visit   *ScheduledVisit
}

// Find 定位某巡访在排程中的位置，未排定时返回nil
func (s *Schedule) Find(visitID string) *Placement {
	for _, d := range s.Days {
		for _, sess := range Sessions() {
			route := d.RouteFor(sess)
			if route == nil {
				continue
			}
			for i := range route.Visits {
				if route.Visits[i].VisitID == visitID {
					return &Placement{NurseID: d.NurseID, Session: sess, Visit: &route.Visits[i]}
				}
			}
		}
	}
	return nil
}

// TravelTotal 返回排程总路途分钟数
func (s *Schedule) TravelTotal() int {
	total := 0
	for _, d := range s.Days {
		if d.AM != nil {
			total += d.AM.TravelTotal()
		}
		if d.PM != nil {
			total += d.PM.TravelTotal()
		}
	}
	return total
}
