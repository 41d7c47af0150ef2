package procedure

import (
	"testing"

	"github.com/paifang/paifang/pkg/model"
)

func TestCatalogIdentify(t *testing.T) {
	c := NewCatalog()

	testCases := []struct {
		task     string
		kind     model.ProcedureKind
		duration int
		pair     bool
	}{
		{"IV ABx 8 hrly", model.ProcedureIV8H, 45, true},
		{"IV ABx 12 hrly", model.ProcedureIV12H, 45, true},
		{"IV ABx", model.ProcedureIV, 45, false},
		{"iv antibiotics", model.ProcedureIV, 45, false},
		{"Blood taking", model.ProcedureBlood, 20, false},
		{"blood draw before 10am", model.ProcedureBlood, 20, false},
		{"Wound dressing", model.ProcedureWound, 30, false},
		{"Vital signs", model.ProcedureVitals, 20, false},
		{"Others (Priority) 10:00", model.ProcedureOther, 30, false},
		{"随便写的内容", model.ProcedureOther, 30, false},
	}

	for _, tc := range testCases {
		spec := c.Identify(tc.task)
		if spec.Kind != tc.kind {
			t.Errorf("任务 %q: 类型期望 %s, 实际 %s", tc.task, tc.kind, spec.Kind)
		}
		if spec.Duration != tc.duration {
			t.Errorf("任务 %q: 时长期望 %d, 实际 %d", tc.task, tc.duration, spec.Duration)
		}
		if spec.NeedsPair != tc.pair {
			t.Errorf("任务 %q: 配对期望 %v, 实际 %v", tc.task, tc.pair, spec.NeedsPair)
		}
	}
}

func TestCatalogLongPatternWins(t *testing.T) {
	c := NewCatalog()

	// "iv abx 8 hrly" 同时包含 "iv abx"，长模式必须优先
	spec := c.Identify("iv abx 8 hrly")
	if spec.Kind != model.ProcedureIV8H {
		t.Errorf("长模式应优先匹配: 实际 %s", spec.Kind)
	}
}

func TestCatalogRegister(t *testing.T) {
	c := NewCatalog()

	if err := c.Register("physio", Spec{Kind: model.ProcedureKind("PHYSIO"), Duration: 40}); err != nil {
		t.Fatalf("注册失败: %v", err)
	}
	if spec := c.Identify("Physio session"); spec.Duration != 40 {
		t.Errorf("自定义模式时长期望 40, 实际 %d", spec.Duration)
	}

	testCases := []struct {
		name    string
		pattern string
		spec    Spec
	}{
		{"空模式", "", Spec{Kind: model.ProcedureOther, Duration: 30}},
		{"无效时长", "x", Spec{Kind: model.ProcedureOther, Duration: 0}},
		{"无类型", "y", Spec{Duration: 30}},
	}
	for _, tc := range testCases {
		if err := c.Register(tc.pattern, tc.spec); err == nil {
			t.Errorf("%s: 注册应失败", tc.name)
		}
	}
}
