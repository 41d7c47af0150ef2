// Package zone 提供分区解析与区间路途时间查询
package zone

import (
	"github.com/paifang/paifang/pkg/errors"
	"github.com/paifang/paifang/pkg/model"
)

// 邮编前两位到分区的映射表（新加坡邮区划分）
var defaultPrefixes = map[model.Zone][]string{
	model.ZoneNorth: {"50", "51", "52", "53", "54", "55", "56", "57", "72", "73"},
	model.ZoneSouth: {"01", "02", "03", "04", "05", "06", "07", "08", "09", "10"},
	model.ZoneEast:  {"38", "39", "40", "41", "42", "43", "44", "45", "46", "47", "48", "49"},
	model.ZoneWest:  {"60", "61", "62", "63", "64", "65", "66", "67", "68", "69", "70", "71"},
	model.ZoneCentral: {
		"11", "12", "13", "14", "15", "16", "17", "18", "19", "20",
		"21", "22", "23", "24", "25", "26", "27", "28", "29", "30",
		"31", "32", "33", "34", "35", "36", "37",
	},
}

// Resolver 分区解析器：邮编前缀 → 分区，纯查表无副作用
type Resolver struct {
	byPrefix map[string]model.Zone
}

// NewResolver 创建使用默认邮区映射的解析器
func NewResolver() *Resolver {
	return NewResolverWithPrefixes(defaultPrefixes)
}

// NewResolverWithPrefixes 创建使用自定义映射的解析器
func NewResolverWithPrefixes(prefixes map[model.Zone][]string) *Resolver {
	byPrefix := make(map[string]model.Zone)
	for zone, list := range prefixes {
		for _, p := range list {
			byPrefix[p] = zone
		}
	}
	return &Resolver{byPrefix: byPrefix}
}

// Resolve 解析邮编为分区，无匹配前缀时返回 UnresolvedLocation
// 调用方需自行决定回退分区或拒绝该记录
func (r *Resolver) Resolve(postalCode string) (model.Zone, error) {
	if len(postalCode) < 2 {
		return "", errors.UnresolvedLocation("", postalCode)
	}
	zone, ok := r.byPrefix[postalCode[:2]]
	if !ok {
		return "", errors.UnresolvedLocation("", postalCode)
	}
	return zone, nil
}

// Matrix 区间路途时间矩阵：对称、全覆盖（含自环）、非负
type Matrix struct {
	sameZone  int
	crossZone int
	travel    map[model.Zone]map[model.Zone]int
}

// NewMatrix 创建平铺矩阵：同区为 sameZone 常量，跨区为 crossZone 常量
func NewMatrix(sameZone, crossZone int) *Matrix {
	if sameZone < 0 {
		sameZone = 0
	}
	if crossZone < 0 {
		crossZone = 0
	}

	travel := make(map[model.Zone]map[model.Zone]int)
	for _, a := range model.AllZones() {
		travel[a] = make(map[model.Zone]int)
		for _, b := range model.AllZones() {
			if a == b {
				travel[a][b] = sameZone
			} else {
				travel[a][b] = crossZone
			}
		}
	}

	return &Matrix{sameZone: sameZone, crossZone: crossZone, travel: travel}
}

// Travel 返回两分区间的路途分钟数
func (m *Matrix) Travel(a, b model.Zone) int {
	if row, ok := m.travel[a]; ok {
		if v, ok := row[b]; ok {
			return v
		}
	}
	// 未知分区按跨区处理
	if a == b {
		return m.sameZone
	}
	return m.crossZone
}

// SameZone 返回同区路途常量
func (m *Matrix) SameZone() int { return m.sameZone }

// CrossZone 返回跨区路途常量
func (m *Matrix) CrossZone() int { return m.crossZone }
