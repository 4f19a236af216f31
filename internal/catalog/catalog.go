// Package catalog loads the list of channels to watch and the dated file
// templates expected in each of them.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"news_bot/internal/locator"

	"gopkg.in/yaml.v3"
)

// DatePlaceholder 模板中的日期占位符
const DatePlaceholder = "{date}"

// ErrInvalidCatalog 频道清单配置错误
var ErrInvalidCatalog = errors.New("invalid channel catalog")

// Kind 频道类型
type Kind string

const (
	KindNewspaper  Kind = "newspaper"
	KindHighlights Kind = "highlights"
)

// 可识别的目标扩展名
var recognizedExtensions = []string{".pdf", ".jpg", ".jpeg", ".png"}

// Catalog 频道清单
type Catalog struct {
	Channels []Channel `yaml:"channels" validate:"required,min=1,dive"`
}

// Channel 一个被监控的频道
// Kind 为 newspaper 时使用 Files，为 highlights 时使用 Patterns
type Channel struct {
	Ref      string        `yaml:"username" validate:"required,channelref"`
	Name     string        `yaml:"name,omitempty"`
	Kind     Kind          `yaml:"type" validate:"required,oneof=newspaper highlights"`
	Files    []FileSpec    `yaml:"files,omitempty" validate:"dive"`
	Patterns []PatternSpec `yaml:"patterns,omitempty" validate:"dive"`
}

// FileSpec 报纸频道中的一个目标文件
type FileSpec struct {
	Name             string `yaml:"name,omitempty"`
	Source           string `yaml:"source_format" validate:"required,datetemplate"`
	Target           string `yaml:"target_format" validate:"required,datetemplate"`
	DateFormat       string `yaml:"date_format" validate:"required"`
	TargetDateFormat string `yaml:"target_date_format" validate:"required"`
	SpacingVariant   bool   `yaml:"spacing_variant,omitempty"` // 来源会在日期前多加或少加空格
	Loose            *bool  `yaml:"loose_match,omitempty"`     // 未设置时私有频道默认开启
}

// PatternSpec 要点频道中按正文匹配的目标
type PatternSpec struct {
	Name             string `yaml:"name,omitempty"`
	Text             string `yaml:"text_pattern" validate:"required,datetemplate"`
	Target           string `yaml:"target_format" validate:"required,datetemplate"`
	DateFormat       string `yaml:"date_format" validate:"required"`
	TargetDateFormat string `yaml:"target_date_format" validate:"required"`
	RequireMedia     *bool  `yaml:"require_media,omitempty"`
}

// Load 读取并校验频道清单
func Load(path string, now time.Time) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read channel catalog %s: %w", path, err)
	}
	return Parse(data, now)
}

// Parse 解析并校验频道清单
func Parse(data []byte, now time.Time) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: decode yaml: %v", ErrInvalidCatalog, err)
	}
	if err := c.Validate(now); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate 结构校验后，用 now 渲染每个模板确认可用
func (c *Catalog) Validate(now time.Time) error {
	if err := validateStruct(c); err != nil {
		return err
	}

	// 报纸按展示名记录下载状态，重名会互相覆盖
	names := make(map[string]string)
	for i := range c.Channels {
		ch := &c.Channels[i]
		if err := ch.validate(now); err != nil {
			return fmt.Errorf("%w: channel %s: %v", ErrInvalidCatalog, ch.Ref, err)
		}
		if ch.Kind != KindNewspaper {
			continue
		}
		for _, f := range ch.Files {
			name := f.DisplayName()
			if prev, ok := names[name]; ok {
				return fmt.Errorf("%w: channel %s: duplicate newspaper name %q (also in %s)", ErrInvalidCatalog, ch.Ref, name, prev)
			}
			names[name] = ch.Ref
		}
	}
	return nil
}

// ExpectedNewspapers 清单中报纸文件总数
func (c *Catalog) ExpectedNewspapers() int {
	total := 0
	for _, ch := range c.Channels {
		if ch.Kind == KindNewspaper {
			total += len(ch.Files)
		}
	}
	return total
}

func (ch *Channel) validate(now time.Time) error {
	switch ch.Kind {
	case KindNewspaper:
		if len(ch.Files) == 0 {
			return fmt.Errorf("newspaper channel needs at least one file")
		}
		if len(ch.Patterns) > 0 {
			return fmt.Errorf("newspaper channel cannot define patterns")
		}
		for _, f := range ch.Files {
			if _, err := f.Expectation(now, false); err != nil {
				return err
			}
			if err := checkRendered(f.Source, f.DateFormat, now); err != nil {
				return fmt.Errorf("source_format: %w", err)
			}
			if err := checkRendered(f.Target, f.TargetDateFormat, now); err != nil {
				return fmt.Errorf("target_format: %w", err)
			}
		}
	case KindHighlights:
		if len(ch.Patterns) == 0 {
			return fmt.Errorf("highlights channel needs at least one pattern")
		}
		if len(ch.Files) > 0 {
			return fmt.Errorf("highlights channel cannot define files")
		}
		for _, p := range ch.Patterns {
			if _, err := p.Expectation(now); err != nil {
				return err
			}
			if err := checkRendered(p.Target, p.TargetDateFormat, now); err != nil {
				return fmt.Errorf("target_format: %w", err)
			}
		}
	default:
		return fmt.Errorf("unknown channel type %q", ch.Kind)
	}
	return nil
}

// IsPrivate 是否为邀请链接形式的私有频道
func (ch Channel) IsPrivate() bool {
	_, ok := locator.ParseInvite(ch.Ref)
	return ok
}

// DisplayName 频道展示名
func (ch Channel) DisplayName() string {
	if ch.Name != "" {
		return ch.Name
	}
	return ch.Ref
}

// Expectation 构建当天的文件名查找目标
func (f FileSpec) Expectation(now time.Time, looseDefault bool) (locator.Expectation, error) {
	dates, err := locator.ExpandDate(f.DateFormat, now)
	if err != nil {
		return locator.Expectation{}, err
	}

	loose := looseDefault
	if f.Loose != nil {
		loose = *f.Loose
	}

	exp := locator.Expectation{
		Label: f.DisplayName(),
		Mode:  locator.MatchFilename,
		Loose: loose,
	}
	for _, date := range dates {
		v := locator.Variant{Date: date, Name: Render(f.Source, date)}
		if f.SpacingVariant {
			v.Alt = Render(SpacingVariant(f.Source), date)
		}
		exp.Variants = append(exp.Variants, v)
	}
	return exp, nil
}

// TargetName 当天的目标文件名
func (f FileSpec) TargetName(now time.Time) (string, error) {
	return renderWith(f.Target, f.TargetDateFormat, now)
}

// DisplayName 文件展示名，未配置时由目标模板推导（Indian_Express_{date}.pdf -> Indian_Express）
func (f FileSpec) DisplayName() string {
	if f.Name != "" {
		return f.Name
	}
	return nameFromTemplate(f.Target)
}

// Expectation 构建当天的正文查找目标
func (p PatternSpec) Expectation(now time.Time) (locator.Expectation, error) {
	dates, err := locator.ExpandDate(p.DateFormat, now)
	if err != nil {
		return locator.Expectation{}, err
	}

	requireMedia := true
	if p.RequireMedia != nil {
		requireMedia = *p.RequireMedia
	}

	exp := locator.Expectation{
		Label:        p.DisplayName(),
		Mode:         locator.MatchText,
		RequireMedia: requireMedia,
	}
	for _, date := range dates {
		exp.Variants = append(exp.Variants, locator.Variant{Date: date, Name: Render(p.Text, date)})
	}
	return exp, nil
}

// TargetName 当天的目标文件名
func (p PatternSpec) TargetName(now time.Time) (string, error) {
	return renderWith(p.Target, p.TargetDateFormat, now)
}

// DisplayName 展示名
func (p PatternSpec) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return nameFromTemplate(p.Target)
}

// Render 用日期字符串替换模板占位符
func Render(template, date string) string {
	return strings.ReplaceAll(template, DatePlaceholder, date)
}

// SpacingVariant 切换日期前的空格：有空格则去掉，没有则加上
func SpacingVariant(template string) string {
	if strings.Contains(template, " "+DatePlaceholder) {
		return strings.Replace(template, " "+DatePlaceholder, DatePlaceholder, 1)
	}
	return strings.Replace(template, DatePlaceholder, " "+DatePlaceholder, 1)
}

func renderWith(template, dateFormat string, now time.Time) (string, error) {
	dates, err := locator.ExpandDate(dateFormat, now)
	if err != nil {
		return "", err
	}
	return Render(template, dates[0]), nil
}

func checkRendered(template, dateFormat string, now time.Time) error {
	rendered, err := renderWith(template, dateFormat, now)
	if err != nil {
		return err
	}
	if strings.TrimSpace(rendered) == "" {
		return fmt.Errorf("template %q renders empty", template)
	}
	if !HasRecognizedExtension(rendered) {
		return fmt.Errorf("template %q renders %q without a recognized extension", template, rendered)
	}
	return nil
}

// HasRecognizedExtension 是否以 pdf/jpg/jpeg/png 结尾
func HasRecognizedExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, known := range recognizedExtensions {
		if ext == known {
			return true
		}
	}
	return false
}

func nameFromTemplate(template string) string {
	name := strings.TrimSuffix(template, filepath.Ext(template))
	name = strings.ReplaceAll(name, DatePlaceholder, "")
	return strings.Trim(name, "_- ")
}
