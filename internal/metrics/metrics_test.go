package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHistogramBucketsCumulative(t *testing.T) {
	h := Get().NewHistogram("paifang_test_duration_seconds", "测试直方图",
		[]string{}, []float64{0.01, 0.1, 1})

	h.Observe(0.003)
	h.Observe(0.2)
	h.Observe(5)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	// 每次观测只计入一个桶，展示时逐桶累计，_count 等于观测总数
	for _, line := range []string{
		`paifang_test_duration_seconds_bucket{le="0.01"} 1`,
		`paifang_test_duration_seconds_bucket{le="0.1"} 1`,
		`paifang_test_duration_seconds_bucket{le="1"} 2`,
		`paifang_test_duration_seconds_bucket{le="+Inf"} 3`,
		`paifang_test_duration_seconds_count 3`,
	} {
		if !strings.Contains(body, line) {
			t.Errorf("输出应包含 %q", line)
		}
	}
	if !strings.Contains(body, "paifang_test_duration_seconds_sum") {
		t.Error("输出应包含 _sum 样本")
	}
}

func TestCounterWithLabels(t *testing.T) {
	c := Get().Counter("paifang_classify_failures_total")
	if c == nil {
		t.Fatal("默认计数器应已注册")
	}
	c.Inc("UNRESOLVED_LOCATION")
	c.Inc("UNRESOLVED_LOCATION")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if !strings.Contains(rec.Body.String(),
		`paifang_classify_failures_total{code="UNRESOLVED_LOCATION"} 2`) {
		t.Error("带标签的计数器样本缺失或计数错误")
	}
}
