package model

import "testing"

func TestParseClock(t *testing.T) {
	testCases := []struct {
		input    string
		expected Minutes
		hasError bool
	}{
		{"08:30", 510, false},
		{"8:30", 510, false},
		{"16:30", 990, false},
		{"10:00AM", 600, false},
		{"4:00PM", 960, false},
		{"4PM", 960, false},
		{"12:00AM", 0, false},
		{"12:30PM", 750, false},
		{"", 0, true},
		{"abc", 0, true},
		{"25:00", 0, true},
		{"10:75", 0, true},
	}

	for _, tc := range testCases {
		got, err := ParseClock(tc.input)
		if tc.hasError {
			if err == nil {
				t.Errorf("解析 %q 应该失败，实际得到 %v", tc.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("解析 %q 失败: %v", tc.input, err)
			continue
		}
		if got != tc.expected {
			t.Errorf("解析 %q: 期望 %d, 实际 %d", tc.input, tc.expected, got)
		}
	}
}

func TestMinutesClock(t *testing.T) {
	if got := Minutes(510).Clock(); got != "08:30" {
		t.Errorf("期望 08:30, 实际 %s", got)
	}
	if got := Minutes(990).Clock(); got != "16:30" {
		t.Errorf("期望 16:30, 实际 %s", got)
	}
}

func TestMinuteRangeOverlaps(t *testing.T) {
	lunch := MinuteRange{Start: MustClock("11:00"), End: MustClock("12:00")}

	testCases := []struct {
		name     string
		other    MinuteRange
		overlaps bool
	}{
		{"完全包含", MinuteRange{MustClock("11:15"), MustClock("11:45")}, true},
		{"部分重叠", MinuteRange{MustClock("10:30"), MustClock("11:30")}, true},
		{"紧邻在前", MinuteRange{MustClock("10:00"), MustClock("11:00")}, false},
		{"紧邻在后", MinuteRange{MustClock("12:00"), MustClock("13:00")}, false},
		{"完全分离", MinuteRange{MustClock("14:00"), MustClock("15:00")}, false},
	}

	for _, tc := range testCases {
		if got := lunch.Overlaps(tc.other); got != tc.overlaps {
			t.Errorf("%s: 期望 %v, 实际 %v", tc.name, tc.overlaps, got)
		}
	}
}

func TestNurseCapacity(t *testing.T) {
	n := &Nurse{ID: "N001", MaxVisitsAM: 3, MaxVisitsPM: 2}

	if n.Capacity(SessionAM) != 3 {
		t.Errorf("上午容量期望 3, 实际 %d", n.Capacity(SessionAM))
	}
	if n.Capacity(SessionPM) != 2 {
		t.Errorf("下午容量期望 2, 实际 %d", n.Capacity(SessionPM))
	}
}

func TestVisitPinAndDeadline(t *testing.T) {
	pin := MustClock("10:00")
	deadline := MustClock("10:00")

	plain := &Visit{ID: "V001"}
	if plain.IsPinned() || plain.HasDeadline() {
		t.Error("普通巡访不应有固定时刻或截止时间")
	}

	pinned := &Visit{ID: "V002", Pin: &pin}
	if !pinned.IsPinned() {
		t.Error("应识别为固定时刻巡访")
	}

	blood := &Visit{ID: "V003", Deadline: &deadline}
	if !blood.HasDeadline() {
		t.Error("应识别为带截止时间巡访")
	}
	if blood.DeadlineOr(MustClock("16:30")) != deadline {
		t.Error("DeadlineOr 应返回显式截止时间")
	}
	if plain.DeadlineOr(MustClock("16:30")) != MustClock("16:30") {
		t.Error("DeadlineOr 缺省时应返回默认值")
	}
}
