// Package model 定义巡访排程引擎的核心数据模型
package model

// ProcedureKind 护理操作类型
type ProcedureKind string

const (
	ProcedureIV8H   ProcedureKind = "IV_8HR"  // 8小时静脉抗生素（早晚配对）
	ProcedureIV12H  ProcedureKind = "IV_12HR" // 12小时静脉抗生素（早晚配对）
	ProcedureIV     ProcedureKind = "IV"      // 单次静脉注射
	ProcedureBlood  ProcedureKind = "BLOOD"   // 抽血（受化验截止时间约束）
	ProcedureWound  ProcedureKind = "WOUND"   // 伤口护理
	ProcedureVitals ProcedureKind = "VITALS"  // 生命体征监测
	ProcedureOther  ProcedureKind = "OTHER"   // 其他
)

// Visit 一次上门巡访（单条腿：一个时段内的一次护理）
type Visit struct {
	ID          string        `json:"id"`
	PatientName string        `json:"patient_name"` // 仅展示用，不参与匹配
	Address     string        `json:"address"`      // 原始地址，透传
	PostalCode  string        `json:"postal_code"`
	Zone        Zone          `json:"zone"`
	Language    string        `json:"language,omitempty"` // 语言偏好，仅软提示
	Procedure   ProcedureKind `json:"procedure"`
	Session     Session       `json:"session"`
	Duration    int           `json:"duration_minutes"`

	// 时间窗：巡访必须在 [Earliest, Latest] 内开始
	Earliest Minutes `json:"earliest"`
	Latest   Minutes `json:"latest"`

	// Deadline 硬性完成截止时间（如抽血须在化验送检前完成），可缺省
	Deadline *Minutes `json:"deadline,omitempty"`

	// Pin 优先固定时刻：排程必须精确在该时刻开始，与普通排序互斥
	Pin *Minutes `json:"pin,omitempty"`

	// GroupID 连续性组标识，同组巡访必须由同一护士执行；空串表示单腿组
	GroupID string `json:"group_id,omitempty"`
}

// IsPinned 检查是否为固定时刻巡访
func (v *Visit) IsPinned() bool {
	return v.Pin != nil
}

// HasDeadline 检查是否带硬性截止时间
func (v *Visit) HasDeadline() bool {
	return v.Deadline != nil
}

// DeadlineOr 返回截止时间，缺省时返回给定默认值
func (v *Visit) DeadlineOr(def Minutes) Minutes {
	if v.Deadline != nil {
		return *v.Deadline
	}
	return def
}

// ContinuityGroup 连续性组：必须共享同一护士的巡访腿集合（1或2条）
type ContinuityGroup struct {
	ID       string   `json:"id"`
	VisitIDs []string `json:"visit_ids"`
}

// Paired 检查是否为早晚配对组
func (g *ContinuityGroup) Paired() bool {
	return len(g.VisitIDs) == 2
}

// Nurse 当日出勤护士
type Nurse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Languages   []string `json:"languages,omitempty"`
	MaxVisitsAM int      `json:"max_visits_am"`
	MaxVisitsPM int      `json:"max_visits_pm"`

	// PreferredZones 偏好分区（软约束，不影响可行性）
	PreferredZones []Zone `json:"preferred_zones,omitempty"`
}

// Capacity 返回指定时段的巡访容量上限
func (n *Nurse) Capacity(s Session) int {
	if s == SessionAM {
		return n.MaxVisitsAM
	}
	return n.MaxVisitsPM
}

// Speaks 检查护士是否掌握某语言
func (n *Nurse) Speaks(lang string) bool {
	for _, l := range n.Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// PrefersZone 检查护士是否偏好某分区
func (n *Nurse) PrefersZone(z Zone) bool {
	if len(n.PreferredZones) == 0 {
		return true // 无限制
	}
	for _, p := range n.PreferredZones {
		if p == z {
			return true
		}
	}
	return false
}
