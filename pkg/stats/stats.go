// Package stats 提供排程的工作量与路途统计
package stats

import (
	"sort"

	"github.com/paifang/paifang/pkg/model"
	"github.com/paifang/paifang/pkg/scheduler/problem"
)

// NurseStats 单个护士的当日统计
type NurseStats struct {
	NurseID     string  `json:"nurse_id"`
	Visits      int     `json:"visits"`
	CareMinutes int     `json:"care_minutes"`
	Travel      int     `json:"travel_minutes"`
	Idle        int     `json:"idle_minutes"`
	Utilization float64 `json:"utilization"` // 护理时间占可用工时比例
}

// Summary 排程整体统计
type Summary struct {
	Date          string       `json:"date"`
	TotalVisits   int          `json:"total_visits"`
	TotalTravel   int          `json:"total_travel_minutes"`
	TotalIdle     int          `json:"total_idle_minutes"`
	AvgVisits     float64      `json:"avg_visits_per_nurse"`
	WorkloadGini  float64      `json:"workload_gini"` // 0为完全均衡
	PerNurse      []NurseStats `json:"per_nurse"`
}

// Compute 计算排程统计
func Compute(p *problem.Problem, sched *model.Schedule) *Summary {
	summary := &Summary{Date: sched.Date}

	available := int(p.Params.WorkEnd-p.Params.WorkStart) - p.Params.LunchDuration
	var counts []int

	for _, day := range sched.Days {
		ns := NurseStats{NurseID: day.NurseID}
		for _, s := range model.Sessions() {
			route := day.RouteFor(s)
			if route == nil {
				continue
			}
			ns.Visits += len(route.Visits)
			ns.Travel += route.TravelTotal()
			ns.Idle += route.IdleTotal()
			for _, sv := range route.Visits {
				ns.CareMinutes += int(sv.End - sv.Start)
			}
		}
		if available > 0 {
			ns.Utilization = float64(ns.CareMinutes) / float64(available)
		}

		summary.TotalVisits += ns.Visits
		summary.TotalTravel += ns.Travel
		summary.TotalIdle += ns.Idle
		summary.PerNurse = append(summary.PerNurse, ns)
		counts = append(counts, ns.Visits)
	}

	if n := len(summary.PerNurse); n > 0 {
		summary.AvgVisits = float64(summary.TotalVisits) / float64(n)
	}
	summary.WorkloadGini = gini(counts)
	return summary
}

// gini 计算工作量基尼系数：0为完全均衡，越大越不均
func gini(counts []int) float64 {
	n := len(counts)
	if n == 0 {
		return 0
	}
	sorted := make([]int, n)
	copy(sorted, counts)
	sort.Ints(sorted)

	total := 0
	for _, c := range sorted {
		total += c
	}
	if total == 0 {
		return 0
	}

	weighted := 0
	for i, c := range sorted {
		weighted += (2*(i+1) - n - 1) * c
	}
	return float64(weighted) / float64(n*total)
}
