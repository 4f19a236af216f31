package locator

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Tier 匹配精度等级
type Tier int

const (
	TierNone Tier = iota
	TierExact
	TierAlternate
	TierLoose
)

func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierAlternate:
		return "alternate-format"
	case TierLoose:
		return "loose-keyword"
	default:
		return "none"
	}
}

// MatchMode 匹配对象
type MatchMode int

const (
	// MatchFilename 匹配附件文件名
	MatchFilename MatchMode = iota
	// MatchText 匹配消息正文
	MatchText
)

// Variant 某一种日期写法下的期望值
type Variant struct {
	Date string // 日期渲染结果
	Name string // 期望文件名或正文片段
	Alt  string // 空格差异写法，可为空
}

// Expectation 一个待查找的目标
// Variants[0] 为主日期格式，其余为去零写法
type Expectation struct {
	Label        string
	Mode         MatchMode
	Variants     []Variant
	Loose        bool // 是否允许宽松匹配
	RequireMedia bool // MatchText 模式下要求消息带媒体
}

// Primary 返回主期望值
func (e Expectation) Primary() string {
	if len(e.Variants) == 0 {
		return ""
	}
	return e.Variants[0].Name
}

// MatchResult 匹配结果
type MatchResult struct {
	Tier        Tier
	Variant     int    // 命中的日期写法下标
	Expected    string // 命中的期望值
	Candidate   Candidate
	Message     Message
	Expectation Expectation
}

// MatchName 按精确、空格变体两级比较文件名（不区分大小写）
func MatchName(candidate, expected, alt string) Tier {
	if candidate == "" || expected == "" {
		return TierNone
	}
	if strings.EqualFold(candidate, expected) {
		return TierExact
	}
	if alt != "" && strings.EqualFold(candidate, alt) {
		return TierAlternate
	}
	return TierNone
}

// MatchBody 正文包含期望文本（不区分大小写，忽略换行风格）
func MatchBody(body, expected string) bool {
	if body == "" || expected == "" {
		return false
	}
	return strings.Contains(normalizeText(body), normalizeText(expected))
}

var tokenPattern = regexp.MustCompile(`[A-Za-z]+|[0-9]+`)

// LooseTerms 宽松匹配使用的关键词与日期片段
type LooseTerms struct {
	Keywords  []string
	Fragments []string
	Ext       string
}

// SplitLoose 将期望文件名拆为字母关键词（长度大于 1）和数字日期片段
func SplitLoose(expected string) LooseTerms {
	ext := strings.ToLower(filepath.Ext(expected))
	stem := strings.TrimSuffix(expected, filepath.Ext(expected))

	terms := LooseTerms{Ext: ext}
	for _, token := range tokenPattern.FindAllString(stem, -1) {
		if isDigits(token) {
			terms.Fragments = appendUnique(terms.Fragments, token)
			continue
		}
		if len(token) > 1 {
			terms.Keywords = appendUnique(terms.Keywords, strings.ToLower(token))
		}
	}
	return terms
}

// MatchLoose 候选文件名包含全部关键词、至少 minFragments 个日期片段，且扩展名相同
func MatchLoose(candidate, expected string, minFragments int) bool {
	if candidate == "" || expected == "" {
		return false
	}
	if minFragments < 1 {
		minFragments = 1
	}

	terms := SplitLoose(expected)
	if len(terms.Keywords) == 0 || len(terms.Fragments) == 0 {
		return false
	}

	lower := strings.ToLower(candidate)
	if terms.Ext != "" && strings.ToLower(filepath.Ext(candidate)) != terms.Ext {
		return false
	}

	for _, keyword := range terms.Keywords {
		if !strings.Contains(lower, keyword) {
			return false
		}
	}

	hits := 0
	for _, fragment := range terms.Fragments {
		if strings.Contains(lower, fragment) {
			hits++
		}
	}
	return hits >= minFragments
}

// matchVariant 用第 i 种日期写法做精确与变体匹配
// 非主日期写法的命中一律记为 alternate-format
func matchVariant(exp Expectation, c Candidate, i int) *MatchResult {
	if i < 0 || i >= len(exp.Variants) {
		return nil
	}
	v := exp.Variants[i]
	tier := TierNone
	expected := v.Name

	switch exp.Mode {
	case MatchFilename:
		tier = MatchName(c.Name, v.Name, v.Alt)
		if tier == TierAlternate {
			expected = v.Alt
		}
	case MatchText:
		if exp.RequireMedia && !c.HasMedia {
			return nil
		}
		if MatchBody(c.Text, v.Name) {
			tier = TierExact
		}
	}

	if tier == TierNone {
		return nil
	}
	if i > 0 {
		tier = TierAlternate
	}
	return &MatchResult{Tier: tier, Variant: i, Expected: expected, Candidate: c, Expectation: exp}
}

// matchLoose 宽松匹配，仅用于文件名模式
func matchLoose(exp Expectation, c Candidate, minFragments int) *MatchResult {
	if !exp.Loose || exp.Mode != MatchFilename {
		return nil
	}
	primary := exp.Primary()
	if !MatchLoose(c.Name, primary, minFragments) {
		return nil
	}
	return &MatchResult{Tier: TierLoose, Variant: 0, Expected: primary, Candidate: c, Expectation: exp}
}

func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ToLower(strings.TrimSpace(s))
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
