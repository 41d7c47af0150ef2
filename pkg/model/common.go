// Package model 定义巡访排程引擎的核心数据模型
package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Session 工作时段（上午/下午）
type Session string

const (
	SessionAM Session = "AM" // 上午时段
	SessionPM Session = "PM" // 下午时段
)

// Sessions 返回全部时段（固定顺序，保证确定性遍历）
func Sessions() []Session {
	return []Session{SessionAM, SessionPM}
}

// Zone 地理分区
type Zone string

const (
	ZoneNorth   Zone = "North"
	ZoneSouth   Zone = "South"
	ZoneEast    Zone = "East"
	ZoneWest    Zone = "West"
	ZoneCentral Zone = "Central"
)

// AllZones 返回全部分区（固定顺序）
func AllZones() []Zone {
	return []Zone{ZoneNorth, ZoneSouth, ZoneEast, ZoneWest, ZoneCentral}
}

// Minutes 自午夜起的分钟数时钟
type Minutes int

// Clock 格式化为 HH:MM
func (m Minutes) Clock() string {
	return fmt.Sprintf("%02d:%02d", int(m)/60, int(m)%60)
}

// ParseClock 解析时间字符串为分钟数
// 支持 "15:04"、"9:00"、"10:00AM"、"4PM" 等写法
func ParseClock(s string) (Minutes, error) {
	raw := strings.ToUpper(strings.TrimSpace(s))
	if raw == "" {
		return 0, fmt.Errorf("时间为空")
	}

	isPM := strings.Contains(raw, "PM")
	isAM := strings.Contains(raw, "AM")
	raw = strings.TrimSpace(strings.NewReplacer("AM", "", "PM", "").Replace(raw))

	var hours, mins int
	var err error
	if idx := strings.Index(raw, ":"); idx >= 0 {
		hours, err = strconv.Atoi(strings.TrimSpace(raw[:idx]))
		if err != nil {
			return 0, fmt.Errorf("无法解析小时: %q", s)
		}
		mins, err = strconv.Atoi(strings.TrimSpace(raw[idx+1:]))
		if err != nil {
			return 0, fmt.Errorf("无法解析分钟: %q", s)
		}
	} else {
		hours, err = strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("无法解析时间: %q", s)
		}
	}

	if isPM && hours != 12 {
		hours += 12
	}
	if isAM && hours == 12 {
		hours = 0
	}

	if hours < 0 || hours > 24 || mins < 0 || mins > 59 {
		return 0, fmt.Errorf("时间超出范围: %q", s)
	}

	return Minutes(hours*60 + mins), nil
}

// MustClock 解析时间字符串，失败则 panic（仅用于常量和测试）
func MustClock(s string) Minutes {
	m, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return m
}

// MinuteRange 分钟数时间范围 [Start, End)
type MinuteRange struct {
	Start Minutes `json:"start"`
	End   Minutes `json:"end"`
}

// Duration 返回范围的持续分钟数
func (r MinuteRange) Duration() int {
	return int(r.End - r.Start)
}

// Overlaps 检查两个范围是否重叠
func (r MinuteRange) Overlaps(other MinuteRange) bool {
	return r.Start < other.End && other.Start < r.End
}

// Contains 检查范围是否包含某时刻
func (r MinuteRange) Contains(m Minutes) bool {
	return m >= r.Start && m < r.End
}
