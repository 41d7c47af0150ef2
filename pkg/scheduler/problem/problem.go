// Package problem 定义单日排程问题的规范内存表示
// 构建完成后只读：每次排程请求构建独立实例，求解过程不回写
package problem

import (
	"fmt"
	"sort"

	"github.com/paifang/paifang/pkg/errors"
	"github.com/paifang/paifang/pkg/model"
	"github.com/paifang/paifang/pkg/zone"
)

// Params 全局排程参数（配置面）
type Params struct {
	WorkStart     model.Minutes `json:"work_start"`
	WorkEnd       model.Minutes `json:"work_end"`
	LunchStart    model.Minutes `json:"lunch_start"`
	LunchEnd      model.Minutes `json:"lunch_end"`
	LunchDuration int           `json:"lunch_duration"`

	MaxVisitsAM int `json:"max_visits_am"` // 护士未显式配置时的默认时段容量
	MaxVisitsPM int `json:"max_visits_pm"`

	SameZoneTravel  int `json:"same_zone_travel"`
	CrossZoneTravel int `json:"cross_zone_travel"`
	HospitalDepart  int `json:"hospital_depart"` // 出发首访的路途分钟数

	BloodDrawLatest model.Minutes `json:"blood_draw_latest"`

	IVMinSeparation int `json:"iv_min_separation"` // 配对腿最小间隔（分钟）
	IVMaxSeparation int `json:"iv_max_separation"` // 配对腿最大间隔（分钟）

	PinTolerance int `json:"pin_tolerance"` // 固定时刻校验容差（分钟）

	MaxIterations int `json:"max_iterations"` // 求解迭代上限
	MaxAttempts   int `json:"max_attempts"`   // 放宽重解的尝试上限
}

// DefaultParams 返回默认参数
func DefaultParams() Params {
	return Params{
		WorkStart:       model.MustClock("08:30"),
		WorkEnd:         model.MustClock("16:30"),
		LunchStart:      model.MustClock("11:00"),
		LunchEnd:        model.MustClock("14:00"),
		LunchDuration:   60,
		MaxVisitsAM:     3,
		MaxVisitsPM:     3,
		SameZoneTravel:  15,
		CrossZoneTravel: 20,
		HospitalDepart:  30,
		BloodDrawLatest: model.MustClock("10:00"),
		IVMinSeparation: 6 * 60,
		IVMaxSeparation: 10 * 60,
		PinTolerance:    5,
		MaxIterations:   1000,
		MaxAttempts:     3,
	}
}

// Validate 检查参数一致性
func (p Params) Validate() error {
	if p.WorkStart >= p.WorkEnd {
		return fmt.Errorf("工作时间段无效: %s-%s", p.WorkStart.Clock(), p.WorkEnd.Clock())
	}
	if p.LunchStart >= p.LunchEnd || p.LunchStart < p.WorkStart || p.LunchEnd > p.WorkEnd {
		return fmt.Errorf("午餐窗口无效: %s-%s", p.LunchStart.Clock(), p.LunchEnd.Clock())
	}
	if p.LunchDuration <= 0 || model.Minutes(p.LunchDuration) > p.LunchEnd-p.LunchStart {
		return fmt.Errorf("午餐时长 %d 超出午餐窗口", p.LunchDuration)
	}
	if p.MaxVisitsAM <= 0 || p.MaxVisitsPM <= 0 {
		return fmt.Errorf("时段容量必须为正")
	}
	if p.SameZoneTravel < 0 || p.CrossZoneTravel < 0 || p.HospitalDepart < 0 {
		return fmt.Errorf("路途时间不能为负")
	}
	if p.IVMinSeparation > p.IVMaxSeparation {
		return fmt.Errorf("配对间隔上下限颠倒: %d > %d", p.IVMinSeparation, p.IVMaxSeparation)
	}
	if p.PinTolerance < 0 {
		return fmt.Errorf("固定时刻容差不能为负")
	}
	return nil
}

// Problem 单日排程问题：护士、巡访、连续性组、路途矩阵与全局参数的聚合
type Problem struct {
	Date   string
	Params Params

	nurses []*model.Nurse
	visits []*model.Visit
	groups []*model.ContinuityGroup
	matrix *zone.Matrix

	visitByID map[string]*model.Visit
	groupByID map[string]*model.ContinuityGroup
	nurseByID map[string]*model.Nurse
	units     []*Unit
}

// New 构建并校验排程问题
func New(date string, nurses []*model.Nurse, visits []*model.Visit, groups []*model.ContinuityGroup, matrix *zone.Matrix, params Params) (*Problem, error) {
	if err := params.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidInput, "排程参数无效")
	}
	if len(nurses) == 0 {
		return nil, errors.New(errors.CodeInvalidInput, "没有出勤护士")
	}
	if matrix == nil {
		matrix = zone.NewMatrix(params.SameZoneTravel, params.CrossZoneTravel)
	}

	p := &Problem{
		Date:      date,
		Params:    params,
		matrix:    matrix,
		visitByID: make(map[string]*model.Visit),
		groupByID: make(map[string]*model.ContinuityGroup),
		nurseByID: make(map[string]*model.Nurse),
	}

	// 复制护士结构体并按ID排序：容量回填只作用于副本，调用方输入不被改写
	p.nurses = make([]*model.Nurse, len(nurses))
	for i, n := range nurses {
		c := *n
		p.nurses[i] = &c
	}
	sort.Slice(p.nurses, func(i, j int) bool { return p.nurses[i].ID < p.nurses[j].ID })

	for _, n := range p.nurses {
		if n.ID == "" {
			return nil, errors.New(errors.CodeInvalidInput, "护士ID不能为空")
		}
		if _, dup := p.nurseByID[n.ID]; dup {
			return nil, errors.New(errors.CodeInvalidInput, fmt.Sprintf("护士ID重复: %s", n.ID))
		}
		if n.MaxVisitsAM == 0 {
			n.MaxVisitsAM = params.MaxVisitsAM
		}
		if n.MaxVisitsPM == 0 {
			n.MaxVisitsPM = params.MaxVisitsPM
		}
		p.nurseByID[n.ID] = n
	}

	p.visits = make([]*model.Visit, len(visits))
	copy(p.visits, visits)
	sort.Slice(p.visits, func(i, j int) bool { return p.visits[i].ID < p.visits[j].ID })

	for _, v := range p.visits {
		if v.ID == "" {
			return nil, errors.New(errors.CodeInvalidInput, "巡访ID不能为空")
		}
		if _, dup := p.visitByID[v.ID]; dup {
			return nil, errors.New(errors.CodeInvalidInput, fmt.Sprintf("巡访ID重复: %s", v.ID))
		}
		if v.Duration <= 0 {
			return nil, errors.New(errors.CodeInvalidInput, fmt.Sprintf("巡访 %s 时长无效", v.ID))
		}
		if v.Session != model.SessionAM && v.Session != model.SessionPM {
			return nil, errors.New(errors.CodeInvalidInput, fmt.Sprintf("巡访 %s 时段无效: %s", v.ID, v.Session))
		}
		p.visitByID[v.ID] = v
	}

	p.groups = make([]*model.ContinuityGroup, len(groups))
	copy(p.groups, groups)
	sort.Slice(p.groups, func(i, j int) bool { return p.groups[i].ID < p.groups[j].ID })

	for _, g := range p.groups {
		if _, dup := p.groupByID[g.ID]; dup {
			return nil, errors.New(errors.CodeInvalidInput, fmt.Sprintf("连续性组ID重复: %s", g.ID))
		}
		if len(g.VisitIDs) == 0 || len(g.VisitIDs) > 2 {
			return nil, errors.New(errors.CodeInvalidInput, fmt.Sprintf("连续性组 %s 成员数无效", g.ID))
		}
		for _, id := range g.VisitIDs {
			v, ok := p.visitByID[id]
			if !ok {
				return nil, errors.New(errors.CodeInvalidInput, fmt.Sprintf("连续性组 %s 引用不存在的巡访 %s", g.ID, id))
			}
			if v.GroupID != g.ID {
				return nil, errors.New(errors.CodeInvalidInput, fmt.Sprintf("巡访 %s 未回指连续性组 %s", id, g.ID))
			}
		}
		if g.Paired() {
			a, b := p.visitByID[g.VisitIDs[0]], p.visitByID[g.VisitIDs[1]]
			if a.Session == b.Session {
				return nil, errors.New(errors.CodeInvalidInput, fmt.Sprintf("连续性组 %s 两条腿时段相同", g.ID))
			}
		}
	}

	for _, v := range p.visits {
		if v.GroupID != "" {
			if _, ok := p.groupByID[v.GroupID]; !ok {
				return nil, errors.New(errors.CodeInvalidInput, fmt.Sprintf("巡访 %s 引用不存在的连续性组 %s", v.ID, v.GroupID))
			}
		}
	}

	p.buildUnits()
	return p, nil
}

// Nurses 返回护士列表（按ID升序）
func (p *Problem) Nurses() []*model.Nurse { return p.nurses }

// Visits 返回巡访列表（按ID升序）
func (p *Problem) Visits() []*model.Visit { return p.visits }

// Groups 返回连续性组列表（按ID升序）
func (p *Problem) Groups() []*model.ContinuityGroup { return p.groups }

// Matrix 返回路途矩阵
func (p *Problem) Matrix() *zone.Matrix { return p.matrix }

// Visit 按ID查巡访
func (p *Problem) Visit(id string) *model.Visit { return p.visitByID[id] }

// Nurse 按ID查护士
func (p *Problem) Nurse(id string) *model.Nurse { return p.nurseByID[id] }

// Group 按ID查连续性组
func (p *Problem) Group(id string) *model.ContinuityGroup { return p.groupByID[id] }

// VisitsBySession 返回指定时段的巡访（按ID升序）
func (p *Problem) VisitsBySession(s model.Session) []*model.Visit {
	var result []*model.Visit
	for _, v := range p.visits {
		if v.Session == s {
			result = append(result, v)
		}
	}
	return result
}

// SessionBand 返回时段的时间带
func (p *Problem) SessionBand(s model.Session) model.MinuteRange {
	if s == model.SessionAM {
		return model.MinuteRange{Start: p.Params.WorkStart, End: p.Params.LunchStart}
	}
	return model.MinuteRange{Start: p.Params.LunchEnd, End: p.Params.WorkEnd}
}

// LunchBand 返回午餐窗口时间带
func (p *Problem) LunchBand() model.MinuteRange {
	return model.MinuteRange{Start: p.Params.LunchStart, End: p.Params.LunchEnd}
}
