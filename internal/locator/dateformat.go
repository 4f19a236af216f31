package locator

import (
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/strftime"
)

// 支持的日期分隔符，按优先级检测；"--" 必须先于 "-"
var dateSeparators = []string{"/", "~", "--", "-", "."}

// ExpandDate 渲染日期模板并生成去前导零的候选写法
//
// 第一个元素永远是模板的字面渲染结果，随后依次为：
// 日去零、月去零、日月都去零。结果去重，最多 4 个。
// 模板未使用可识别的分隔符时只返回字面结果。
func ExpandDate(format string, date time.Time) ([]string, error) {
	literal, err := strftime.Format(format, date)
	if err != nil {
		return nil, fmt.Errorf("render date format %q: %w", format, err)
	}
	if literal == "" {
		return nil, fmt.Errorf("date format %q renders empty", format)
	}

	sep := separatorOf(format)
	if sep == "" {
		return []string{literal}, nil
	}

	fields := strings.Split(format, sep)
	rendered := make([]string, len(fields))
	dayIdx, monthIdx := -1, -1
	for i, field := range fields {
		value, err := strftime.Format(field, date)
		if err != nil {
			return nil, fmt.Errorf("render date field %q: %w", field, err)
		}
		rendered[i] = value

		switch strings.TrimSpace(field) {
		case "%d", "%e":
			dayIdx = i
		case "%m":
			monthIdx = i
		}
	}

	// 字段拆分后无法还原字面结果（例如分隔符出现在 verb 输出中），不做扩展
	if strings.Join(rendered, sep) != literal {
		return []string{literal}, nil
	}

	dayZero := dayIdx >= 0 && hasLeadingZero(rendered[dayIdx])
	monthZero := monthIdx >= 0 && hasLeadingZero(rendered[monthIdx])

	out := []string{literal}
	if dayZero {
		out = appendUnique(out, stripFields(rendered, sep, dayIdx))
	}
	if monthZero {
		out = appendUnique(out, stripFields(rendered, sep, monthIdx))
	}
	if dayZero && monthZero {
		out = appendUnique(out, stripFields(rendered, sep, dayIdx, monthIdx))
	}

	return out, nil
}

// separatorOf 返回模板使用的分隔符
func separatorOf(format string) string {
	for _, sep := range dateSeparators {
		if strings.Contains(format, sep) {
			return sep
		}
	}
	return ""
}

func hasLeadingZero(s string) bool {
	return len(s) > 1 && s[0] == '0'
}

func stripFields(rendered []string, sep string, idxs ...int) string {
	parts := make([]string, len(rendered))
	copy(parts, rendered)
	for _, idx := range idxs {
		parts[idx] = strings.TrimPrefix(parts[idx], "0")
	}
	return strings.Join(parts, sep)
}

func appendUnique(list []string, value string) []string {
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}
