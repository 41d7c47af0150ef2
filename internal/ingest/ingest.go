// Package ingest 解析上游巡访名单表格
package ingest

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/paifang/paifang/pkg/classifier"
	"github.com/paifang/paifang/pkg/errors"
)

// 列名按包含匹配，兼容上游表头的措辞差异
var columnAliases = map[string][]string{
	"name":     {"name", "patient"},
	"address":  {"location", "address"},
	"task":     {"home visit", "task 1", "am task", "task/time"},
	"task2":    {"session 2", "second", "task 2", "pm task"},
	"priority": {"priority"},
	"language": {"language"},
}

// ParseCSV 解析CSV名单为原始记录
// 首行视为表头；记录序号从1开始，与名单行号对应
func ParseCSV(r io.Reader) ([]classifier.RawRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidInput, "名单CSV解析失败")
	}
	if len(rows) < 2 {
		return nil, errors.New(errors.CodeInvalidInput, "名单为空或缺少表头")
	}

	cols := mapColumns(rows[0])
	if cols["name"] < 0 || cols["task"] < 0 {
		return nil, errors.New(errors.CodeInvalidInput, "名单缺少姓名或任务列")
	}

	var records []classifier.RawRecord
	for i, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		records = append(records, classifier.RawRecord{
			Index:       i + 1,
			PatientName: cell(row, cols["name"]),
			Address:     cell(row, cols["address"]),
			Task:        cell(row, cols["task"]),
			SecondTask:  cell(row, cols["task2"]),
			Priority:    parsePriority(cell(row, cols["priority"])),
			Language:    cell(row, cols["language"]),
		})
	}

	return records, nil
}

// mapColumns 将表头映射到列号，未匹配的列为-1
func mapColumns(header []string) map[string]int {
	cols := make(map[string]int, len(columnAliases))
	for key := range columnAliases {
		cols[key] = -1
	}
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		for key, aliases := range columnAliases {
			if cols[key] >= 0 {
				continue
			}
			for _, alias := range aliases {
				if strings.Contains(name, alias) {
					cols[key] = i
					break
				}
			}
		}
	}
	return cols
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// parsePriority 解释优先列：任何肯定标记都视为优先
func parsePriority(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "no", "n", "0", "false", "nan", "none", "-":
		return false
	}
	return true
}
