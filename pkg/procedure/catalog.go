// Package procedure 提供护理操作目录管理
package procedure

import (
	"fmt"
	"strings"

	"github.com/paifang/paifang/pkg/model"
)

// Spec 护理操作规格
type Spec struct {
	Kind      model.ProcedureKind `json:"kind"`
	Duration  int                 `json:"duration_minutes"` // 标称时长
	NeedsPair bool                `json:"needs_pair"`       // 是否生成早晚配对巡访
}

// entry 目录条目：任务文本模式 → 规格
type entry struct {
	pattern string
	spec    Spec
}

// Catalog 操作目录：按任务文本识别操作类型，表驱动
type Catalog struct {
	entries []entry // 有序：长模式优先匹配
	other   Spec
}

// NewCatalog 创建默认操作目录
func NewCatalog() *Catalog {
	return &Catalog{
		entries: []entry{
			{"iv abx 8 hrly", Spec{Kind: model.ProcedureIV8H, Duration: 45, NeedsPair: true}},
			{"iv abx 12 hrly", Spec{Kind: model.ProcedureIV12H, Duration: 45, NeedsPair: true}},
			{"iv abx", Spec{Kind: model.ProcedureIV, Duration: 45}},
			{"iv antibiotics", Spec{Kind: model.ProcedureIV, Duration: 45}},
			{"blood taking", Spec{Kind: model.ProcedureBlood, Duration: 20}},
			{"blood draw", Spec{Kind: model.ProcedureBlood, Duration: 20}},
			{"wound dressing", Spec{Kind: model.ProcedureWound, Duration: 30}},
			{"wound care", Spec{Kind: model.ProcedureWound, Duration: 30}},
			{"vital signs", Spec{Kind: model.ProcedureVitals, Duration: 20}},
			{"others", Spec{Kind: model.ProcedureOther, Duration: 30}},
		},
		other: Spec{Kind: model.ProcedureOther, Duration: 30},
	}
}

// Identify 从任务文本识别操作规格，无匹配时归为 OTHER
func (c *Catalog) Identify(task string) Spec {
	lower := strings.ToLower(task)
	for _, e := range c.entries {
		if strings.Contains(lower, e.pattern) {
			return e.spec
		}
	}
	return c.other
}

// Register 注册自定义模式（追加在默认模式之前，优先匹配）
func (c *Catalog) Register(pattern string, spec Spec) error {
	if strings.TrimSpace(pattern) == "" {
		return fmt.Errorf("模式不能为空")
	}
	if spec.Duration <= 0 {
		return fmt.Errorf("操作时长必须为正: %s", pattern)
	}
	if spec.Kind == "" {
		return fmt.Errorf("操作类型不能为空: %s", pattern)
	}
	c.entries = append([]entry{{strings.ToLower(pattern), spec}}, c.entries...)
	return nil
}

// DurationFor 返回操作类型的标称时长
func (c *Catalog) DurationFor(kind model.ProcedureKind) int {
	for _, e := range c.entries {
		if e.spec.Kind == kind {
			return e.spec.Duration
		}
	}
	return c.other.Duration
}

// Kinds 返回目录覆盖的操作类型（去重，按首次出现顺序）
func (c *Catalog) Kinds() []model.ProcedureKind {
	seen := make(map[model.ProcedureKind]bool)
	var kinds []model.ProcedureKind
	for _, e := range c.entries {
		if !seen[e.spec.Kind] {
			seen[e.spec.Kind] = true
			kinds = append(kinds, e.spec.Kind)
		}
	}
	return kinds
}
