package zone

import (
	"testing"

	"github.com/paifang/paifang/pkg/errors"
	"github.com/paifang/paifang/pkg/model"
)

func TestResolverResolve(t *testing.T) {
	r := NewResolver()

	testCases := []struct {
		postal   string
		expected model.Zone
	}{
		{"560123", model.ZoneNorth},   // Ang Mo Kio
		{"310456", model.ZoneCentral}, // Toa Payoh
		{"530789", model.ZoneNorth},   // Hougang
		{"730567", model.ZoneNorth},   // Woodlands
		{"018956", model.ZoneSouth},   // Marina Bay
		{"460001", model.ZoneEast},    // Bedok
		{"640001", model.ZoneWest},    // Jurong
	}

	for _, tc := range testCases {
		zone, err := r.Resolve(tc.postal)
		if err != nil {
			t.Errorf("解析 %s 失败: %v", tc.postal, err)
			continue
		}
		if zone != tc.expected {
			t.Errorf("邮编 %s: 期望 %s, 实际 %s", tc.postal, tc.expected, zone)
		}
	}
}

func TestResolverUnresolved(t *testing.T) {
	r := NewResolver()

	for _, postal := range []string{"990000", "0", ""} {
		_, err := r.Resolve(postal)
		if err == nil {
			t.Errorf("邮编 %q 应解析失败", postal)
			continue
		}
		if !errors.Is(err, errors.CodeUnresolvedLocation) {
			t.Errorf("邮编 %q 错误码应为 UNRESOLVED_LOCATION, 实际 %s", postal, errors.GetCode(err))
		}
	}
}

func TestMatrixTotalAndSymmetric(t *testing.T) {
	m := NewMatrix(15, 20)

	for _, a := range model.AllZones() {
		for _, b := range model.AllZones() {
			v := m.Travel(a, b)
			if v < 0 {
				t.Errorf("路途时间不应为负: %s->%s = %d", a, b, v)
			}
			if v != m.Travel(b, a) {
				t.Errorf("矩阵应对称: %s->%s", a, b)
			}
			if a == b && v != 15 {
				t.Errorf("同区路途期望 15, 实际 %d", v)
			}
			if a != b && v != 20 {
				t.Errorf("跨区路途期望 20, 实际 %d", v)
			}
		}
	}
}

func TestMatrixNegativeClamped(t *testing.T) {
	m := NewMatrix(-5, -1)
	if m.SameZone() != 0 || m.CrossZone() != 0 {
		t.Error("负值常量应被钳制为 0")
	}
}
