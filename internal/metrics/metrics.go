// Package metrics 提供Prometheus文本格式的监控指标
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// Registry 指标注册表
type Registry struct {
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
	mu         sync.RWMutex
}

// Counter 单调递增计数器
type Counter struct {
	Name   string
	Help   string
	Labels []string
	values map[string]float64
	mu     sync.RWMutex
}

// Gauge 可增减的瞬时值
type Gauge struct {
	Name   string
	Help   string
	Labels []string
	values map[string]float64
	mu     sync.RWMutex
}

// Histogram 观测值分布
type Histogram struct {
	Name    string
	Help    string
	Labels  []string
	Buckets []float64
	counts  map[string][]int
	sums    map[string]float64
	mu      sync.RWMutex
}

var (
	registry *Registry
	once     sync.Once
)

// Get 获取全局注册表
func Get() *Registry {
	once.Do(func() {
		registry = &Registry{
			counters:   make(map[string]*Counter),
			gauges:     make(map[string]*Gauge),
			histograms: make(map[string]*Histogram),
		}
		registerDefaults()
	})
	return registry
}

func registerDefaults() {
	registry.NewCounter("paifang_http_requests_total", "HTTP请求总数", []string{"method", "path", "status"})
	registry.NewHistogram("paifang_http_request_duration_seconds", "HTTP请求延迟",
		[]string{"method", "path"},
		[]float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0})

	registry.NewCounter("paifang_plan_generation_total", "排程生成次数", []string{"status"})
	registry.NewHistogram("paifang_plan_generation_duration_seconds", "排程生成延迟",
		[]string{}, []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0})
	registry.NewGauge("paifang_plan_attempts", "最近一次排程的求解尝试次数", []string{})
	registry.NewGauge("paifang_plan_travel_minutes", "最近一次排程的总路途分钟数", []string{})
	registry.NewGauge("paifang_plan_workload_gini", "最近一次排程的工作量基尼系数", []string{})

	registry.NewCounter("paifang_dispatch_total", "临时加访次数", []string{"status"})
	registry.NewCounter("paifang_classify_failures_total", "分类失败记录数", []string{"code"})
	registry.NewGauge("paifang_db_connections", "数据库连接数", []string{"state"})
}

// NewCounter 注册计数器
func (r *Registry) NewCounter(name, help string, labels []string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := &Counter{Name: name, Help: help, Labels: labels, values: make(map[string]float64)}
	r.counters[name] = c
	return c
}

// NewGauge 注册仪表
func (r *Registry) NewGauge(name, help string, labels []string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	g := &Gauge{Name: name, Help: help, Labels: labels, values: make(map[string]float64)}
	r.gauges[name] = g
	return g
}

// NewHistogram 注册直方图
func (r *Registry) NewHistogram(name, help string, labels []string, buckets []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := &Histogram{
		Name: name, Help: help, Labels: labels, Buckets: buckets,
		counts: make(map[string][]int),
		sums:   make(map[string]float64),
	}
	r.histograms[name] = h
	return h
}

// Counter 按名称取计数器
func (r *Registry) Counter(name string) *Counter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counters[name]
}

// Gauge 按名称取仪表
func (r *Registry) Gauge(name string) *Gauge {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gauges[name]
}

// Histogram 按名称取直方图
func (r *Registry) Histogram(name string) *Histogram {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.histograms[name]
}

// Inc 计数加一
func (c *Counter) Inc(labelValues ...string) {
	c.Add(1, labelValues...)
}

// Add 计数增加指定值
func (c *Counter) Add(value float64, labelValues ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[labelKey(labelValues)] += value
}

// Set 设置仪表值
func (g *Gauge) Set(value float64, labelValues ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.values[labelKey(labelValues)] = value
}

// Add 仪表增加指定值
func (g *Gauge) Add(value float64, labelValues ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.values[labelKey(labelValues)] += value
}

// Observe 记录观测值
func (h *Histogram) Observe(value float64, labelValues ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := labelKey(labelValues)
	if _, ok := h.counts[key]; !ok {
		h.counts[key] = make([]int, len(h.Buckets)+1)
	}
	// 只落入首个匹配桶，展示时再逐桶累计
	placed := false
	for i, bucket := range h.Buckets {
		if value <= bucket {
			h.counts[key][i]++
			placed = true
			break
		}
	}
	if !placed {
		h.counts[key][len(h.Buckets)]++
	}
	h.sums[key] += value
}

func labelKey(values []string) string {
	return strings.Join(values, ",")
}

// Handler 返回Prometheus文本格式的指标HTTP处理器
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		r := Get()
		r.mu.RLock()
		defer r.mu.RUnlock()

		for _, name := range sortedKeys(r.counters) {
			c := r.counters[name]
			fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n", c.Name, c.Help, c.Name)
			c.mu.RLock()
			for key, value := range c.values {
				writeSample(w, c.Name, c.Labels, key, value)
			}
			c.mu.RUnlock()
		}

		for _, name := range sortedKeys(r.gauges) {
			g := r.gauges[name]
			fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n", g.Name, g.Help, g.Name)
			g.mu.RLock()
			for key, value := range g.values {
				writeSample(w, g.Name, g.Labels, key, value)
			}
			g.mu.RUnlock()
		}

		for _, name := range sortedKeys(r.histograms) {
			h := r.histograms[name]
			fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s histogram\n", h.Name, h.Help, h.Name)
			h.mu.RLock()
			for key, counts := range h.counts {
				cumulative := 0
				for i, bucket := range h.Buckets {
					cumulative += counts[i]
					fmt.Fprintf(w, "%s_bucket{%sle=\"%g\"} %d\n",
						h.Name, labelPrefix(h.Labels, key), bucket, cumulative)
				}
				cumulative += counts[len(h.Buckets)]
				fmt.Fprintf(w, "%s_bucket{%sle=\"+Inf\"} %d\n", h.Name, labelPrefix(h.Labels, key), cumulative)
				writeSample(w, h.Name+"_sum", h.Labels, key, h.sums[key])
				writeSample(w, h.Name+"_count", h.Labels, key, float64(cumulative))
			}
			h.mu.RUnlock()
		}
	})
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeSample(w http.ResponseWriter, name string, labels []string, key string, value float64) {
	if key == "" {
		fmt.Fprintf(w, "%s %g\n", name, value)
		return
	}
	fmt.Fprintf(w, "%s{%s} %g\n", name, formatLabels(labels, key), value)
}

func labelPrefix(labels []string, key string) string {
	if key == "" {
		return ""
	}
	return formatLabels(labels, key) + ","
}

func formatLabels(names []string, key string) string {
	values := strings.Split(key, ",")
	parts := make([]string, 0, len(names))
	for i, name := range names {
		val := ""
		if i < len(values) {
			val = values[i]
		}
		parts = append(parts, fmt.Sprintf("%s=%q", name, val))
	}
	return strings.Join(parts, ",")
}

// RecordRequest 记录HTTP请求指标
func RecordRequest(method, path string, status int, duration time.Duration) {
	r := Get()
	if c := r.Counter("paifang_http_requests_total"); c != nil {
		c.Inc(method, path, fmt.Sprintf("%d", status))
	}
	if h := r.Histogram("paifang_http_request_duration_seconds"); h != nil {
		h.Observe(duration.Seconds(), method, path)
	}
}

// RecordPlanGeneration 记录排程生成指标
func RecordPlanGeneration(success bool, attempts int, duration time.Duration, travelMinutes int, gini float64) {
	r := Get()
	status := "success"
	if !success {
		status = "failure"
	}
	if c := r.Counter("paifang_plan_generation_total"); c != nil {
		c.Inc(status)
	}
	if h := r.Histogram("paifang_plan_generation_duration_seconds"); h != nil {
		h.Observe(duration.Seconds())
	}
	if !success {
		return
	}
	if g := r.Gauge("paifang_plan_attempts"); g != nil {
		g.Set(float64(attempts))
	}
	if g := r.Gauge("paifang_plan_travel_minutes"); g != nil {
		g.Set(float64(travelMinutes))
	}
	if g := r.Gauge("paifang_plan_workload_gini"); g != nil {
		g.Set(gini)
	}
}

// RecordDispatch 记录临时加访指标
func RecordDispatch(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	if c := Get().Counter("paifang_dispatch_total"); c != nil {
		c.Inc(status)
	}
}

// RecordClassifyFailure 记录分类失败指标
func RecordClassifyFailure(code string) {
	if c := Get().Counter("paifang_classify_failures_total"); c != nil {
		c.Inc(code)
	}
}
