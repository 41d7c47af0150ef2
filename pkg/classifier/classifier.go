// Package classifier 将原始巡访记录分类为带约束画像的巡访
package classifier

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/paifang/paifang/pkg/errors"
	"github.com/paifang/paifang/pkg/model"
	"github.com/paifang/paifang/pkg/procedure"
	"github.com/paifang/paifang/pkg/zone"
)

// RawRecord 上游解析后的单条患者记录（列已对齐，未分类）
type RawRecord struct {
	Index       int    `json:"index"`
	PatientName string `json:"patient_name"`
	Address     string `json:"address"`
	Task        string `json:"task"`        // 上门任务/时间列
	SecondTask  string `json:"second_task"` // 第二时段任务列
	Priority    bool   `json:"priority"`    // 是否标记为优先（固定时刻）
	Language    string `json:"language"`
}

// Config 分类参数
type Config struct {
	WorkStart  model.Minutes
	WorkEnd    model.Minutes
	LunchStart model.Minutes
	LunchEnd   model.Minutes

	// BloodDrawLatest 抽血完成截止时刻（化验送检截止减去运送时间）
	BloodDrawLatest model.Minutes

	// 8小时静脉配对的时间窗边界
	IV8AMLatest   model.Minutes
	IV8PMEarliest model.Minutes

	// 12小时静脉配对的时间窗边界
	IV12AMLatest  model.Minutes
	IV12PMFromEnd int // 下午腿最早时刻 = WorkEnd - IV12PMFromEnd

	// FallbackZone 分区解析失败时的回退分区；空值表示拒绝该记录
	FallbackZone model.Zone
}

// DefaultConfig 返回默认分类参数
func DefaultConfig() Config {
	return Config{
		WorkStart:       model.MustClock("08:30"),
		WorkEnd:         model.MustClock("16:30"),
		LunchStart:      model.MustClock("11:00"),
		LunchEnd:        model.MustClock("14:00"),
		BloodDrawLatest: model.MustClock("10:00"),
		IV8AMLatest:     model.MustClock("10:00"),
		IV8PMEarliest:   model.MustClock("16:00"),
		IV12AMLatest:    model.MustClock("09:00"),
		IV12PMFromEnd:   60,
	}
}

var (
	postalParenRe = regexp.MustCompile(`S\((\d{6})\)`)
	postalBareRe  = regexp.MustCompile(`\b(\d{6})\b`)
	clockTokenRe  = regexp.MustCompile(`(\d{1,2}):(\d{2})`)
)

// Classifier 巡访分类器
type Classifier struct {
	catalog  *procedure.Catalog
	resolver *zone.Resolver
	cfg      Config
}

// New 创建分类器
func New(catalog *procedure.Catalog, resolver *zone.Resolver, cfg Config) *Classifier {
	return &Classifier{catalog: catalog, resolver: resolver, cfg: cfg}
}

// RecordError 单条记录的分类错误（隔离上报，不中断整体）
type RecordError struct {
	Index int   `json:"index"`
	Err   error `json:"error"`
}

// ClassifyAll 批量分类：逐条隔离错误，返回分类结果与失败记录
func (c *Classifier) ClassifyAll(records []RawRecord) ([]*model.Visit, []*model.ContinuityGroup, []RecordError) {
	var visits []*model.Visit
	var groups []*model.ContinuityGroup
	var failed []RecordError

	for _, rec := range records {
		vs, g, err := c.Classify(rec)
		if err != nil {
			failed = append(failed, RecordError{Index: rec.Index, Err: err})
			continue
		}
		visits = append(visits, vs...)
		if g != nil {
			groups = append(groups, g)
		}
	}

	return visits, groups, failed
}

// Classify 分类单条记录
// 配对操作生成两条共享连续性组的巡访；普通操作生成单条巡访
func (c *Classifier) Classify(rec RawRecord) ([]*model.Visit, *model.ContinuityGroup, error) {
	task := strings.TrimSpace(rec.Task)
	if task == "" || isEmptyCell(task) {
		return nil, nil, errors.New(errors.CodeInvalidInput,
			fmt.Sprintf("记录 %d 无巡访任务", rec.Index))
	}

	postal := extractPostalCode(rec.Address)
	z, err := c.resolver.Resolve(postal)
	if err != nil {
		if c.cfg.FallbackZone == "" {
			return nil, nil, errors.UnresolvedLocation(visitID(rec.Index, 1), postal)
		}
		z = c.cfg.FallbackZone
	}

	spec := c.catalog.Identify(task)

	var visits []*model.Visit
	var group *model.ContinuityGroup

	first, err := c.buildVisit(rec, task, spec, model.SessionAM, z, postal, 1)
	if err != nil {
		return nil, nil, err
	}
	visits = append(visits, first)

	if spec.NeedsPair {
		// 早晚配对：下午腿与上午腿共享连续性组
		second, err := c.buildVisit(rec, task, spec, model.SessionPM, z, postal, 2)
		if err != nil {
			return nil, nil, err
		}
		group = &model.ContinuityGroup{
			ID:       fmt.Sprintf("CG%03d", rec.Index),
			VisitIDs: []string{first.ID, second.ID},
		}
		first.GroupID = group.ID
		second.GroupID = group.ID
		visits = append(visits, second)
	} else if task2 := strings.TrimSpace(rec.SecondTask); task2 != "" && !isEmptyCell(task2) && !strings.EqualFold(task2, "pm") {
		// 独立的第二时段任务
		spec2 := c.catalog.Identify(task2)
		second, err := c.buildVisit(rec, task2, spec2, model.SessionPM, z, postal, 2)
		if err != nil {
			return nil, nil, err
		}
		visits = append(visits, second)
	}

	return visits, group, nil
}

// buildVisit 构建单条巡访：时间窗由操作类型表驱动，优先时刻覆盖时间窗
func (c *Classifier) buildVisit(rec RawRecord, task string, spec procedure.Spec, session model.Session, z model.Zone, postal string, leg int) (*model.Visit, error) {
	id := visitID(rec.Index, leg)
	earliest, latest, deadline := c.timeWindow(spec, session)

	v := &model.Visit{
		ID:          id,
		PatientName: rec.PatientName,
		Address:     rec.Address,
		PostalCode:  postal,
		Zone:        z,
		Language:    normalizeLanguage(rec.Language),
		Procedure:   spec.Kind,
		Session:     session,
		Duration:    spec.Duration,
		Earliest:    earliest,
		Latest:      latest,
		Deadline:    deadline,
	}

	if rec.Priority {
		pin, err := c.extractPin(id, task)
		if err != nil {
			return nil, err
		}
		if pin != nil {
			v.Pin = pin
			v.Earliest = *pin
			v.Latest = *pin
			// 固定时刻决定实际时段
			if *pin < c.cfg.LunchStart {
				v.Session = model.SessionAM
			} else if *pin >= c.cfg.LunchEnd {
				v.Session = model.SessionPM
			}
		}
	}

	return v, nil
}

// timeWindow 按操作类型推导时间窗与截止时间
func (c *Classifier) timeWindow(spec procedure.Spec, session model.Session) (earliest, latest model.Minutes, deadline *model.Minutes) {
	switch spec.Kind {
	case model.ProcedureBlood:
		d := c.cfg.BloodDrawLatest
		return c.cfg.WorkStart, d - model.Minutes(spec.Duration), &d
	case model.ProcedureIV8H:
		if session == model.SessionAM {
			return c.cfg.WorkStart, c.cfg.IV8AMLatest, nil
		}
		// 晚间剂量须在下班前开始，允许执行时段顺延到下班后
		return c.cfg.IV8PMEarliest, c.cfg.WorkEnd, nil
	case model.ProcedureIV12H:
		if session == model.SessionAM {
			return c.cfg.WorkStart, c.cfg.IV12AMLatest, nil
		}
		return c.cfg.WorkEnd - model.Minutes(c.cfg.IV12PMFromEnd), c.cfg.WorkEnd - model.Minutes(spec.Duration), nil
	default:
		if session == model.SessionAM {
			return c.cfg.WorkStart, c.cfg.LunchStart, nil
		}
		return c.cfg.LunchEnd, c.cfg.WorkEnd - model.Minutes(spec.Duration), nil
	}
}

// extractPin 从任务文本提取优先固定时刻
// 优先记录无可解析时刻时返回 UnparsableTimeSlot，由调用方决定默认或拒绝
func (c *Classifier) extractPin(id, task string) (*model.Minutes, error) {
	m := clockTokenRe.FindStringSubmatch(task)
	if m == nil {
		return nil, errors.UnparsableTimeSlot(id, task)
	}

	hours, _ := strconv.Atoi(m[1])
	mins, _ := strconv.Atoi(m[2])
	if hours > 24 || mins > 59 {
		return nil, errors.UnparsableTimeSlot(id, m[0])
	}

	// 无上下午标记时，早于上班的小时按下午解释
	if model.Minutes(hours*60) < c.cfg.WorkStart-model.Minutes(30) {
		hours += 12
	}

	pin := model.Minutes(hours*60 + mins)
	if pin < c.cfg.WorkStart || pin > c.cfg.WorkEnd {
		return nil, errors.UnparsableTimeSlot(id, m[0]).
			WithDetails("固定时刻超出工作时间")
	}

	return &pin, nil
}

// extractPostalCode 从地址中提取邮编：优先 S(dddddd)，其次裸6位数字
func extractPostalCode(address string) string {
	if m := postalParenRe.FindStringSubmatch(address); m != nil {
		return m[1]
	}
	if m := postalBareRe.FindStringSubmatch(address); m != nil {
		return m[1]
	}
	return ""
}

// visitID 生成巡访ID
func visitID(index, leg int) string {
	return fmt.Sprintf("V%03d_%d", index, leg)
}

// isEmptyCell 检查表格单元是否为空值占位
func isEmptyCell(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nan", "none", "-":
		return true
	}
	return false
}

// normalizeLanguage 规范化语言偏好，空值归为英语
func normalizeLanguage(lang string) string {
	lang = strings.TrimSpace(lang)
	if isEmptyCell(lang) {
		return "English"
	}
	return lang
}
