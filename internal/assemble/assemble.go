// Package assemble builds the per-newspaper reading documents: every organized
// highlight is placed under the newspaper page that actually carries it, with
// that page's text excerpted below.
package assemble

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"news_bot/internal/logger"
	"news_bot/internal/organize"

	"github.com/fumiama/go-docx"
)

// 版面定位参数
const (
	// SearchRadius 在给定页前后各查找的页数（广告页会让页码偏移）
	SearchRadius = 3
	// TailWords 部分匹配时使用标题末尾的词数
	TailWords = 4
	// ExcerptRunes 每个版面摘录的最大字符数
	ExcerptRunes = 1500
)

// DocExt 阅读文档扩展名
const DocExt = ".docx"

const bullet = "• "

// FindPage 查找真正包含 headline 的页码
//
// 从给定页开始向两侧逐页扩展，每页先试整句包含，再试末尾 4 个词全部出现。
// 找不到时返回 given 与 false。
func FindPage(doc Pages, headline string, given int) (int, bool) {
	headline = strings.ToLower(strings.TrimSpace(headline))
	if headline == "" {
		return given, false
	}

	words := strings.Fields(headline)
	if len(words) > TailWords {
		words = words[len(words)-TailWords:]
	}

	total := doc.NumPage()
	for _, page := range searchOrder(given, total) {
		text, err := doc.PageText(page)
		if err != nil {
			logger.L().Debugf("Skipping page %d: %v", page, err)
			continue
		}
		text = strings.ToLower(text)

		if strings.Contains(text, headline) {
			return page, true
		}
		if containsAll(text, words) {
			return page, true
		}
	}

	logger.L().Debugf("No page match for %q near page %d, using given page", headline, given)
	return given, false
}

// searchOrder given, given-1, given+1, ... 限定在 [1, total]
func searchOrder(given, total int) []int {
	var pages []int
	add := func(p int) {
		if p >= 1 && p <= total {
			pages = append(pages, p)
		}
	}
	add(given)
	for d := 1; d <= SearchRadius; d++ {
		add(given - d)
		add(given + d)
	}
	return pages
}

func containsAll(text string, words []string) bool {
	if len(words) == 0 {
		return false
	}
	for _, w := range words {
		if !strings.Contains(text, w) {
			return false
		}
	}
	return true
}

// Build 生成 docx 阅读文档；doc 为 nil 时只包含条目
func Build(title string, sections []organize.Section, doc Pages) *docx.Docx {
	w := docx.New().WithDefaultTheme()
	w.AddParagraph().Justification("center").AddText(title).Bold().Size("36")

	for _, section := range sections {
		if doc != nil && section.Page > doc.NumPage() {
			logger.L().Warnf("Page %d exceeds PDF length %d, skipping", section.Page, doc.NumPage())
			continue
		}

		w.AddParagraph().AddText(fmt.Sprintf("%s %d:", organize.SectionHeaderPrefix, section.Page)).Bold().Size("28")
		for _, item := range section.Items {
			w.AddParagraph().AddText(bullet + item)
		}

		if doc == nil {
			continue
		}

		actual := section.Page
		for _, item := range section.Items {
			if page, ok := FindPage(doc, item, section.Page); ok {
				actual = page
				break
			}
		}

		text, err := doc.PageText(actual)
		if err != nil || strings.TrimSpace(text) == "" {
			continue
		}
		w.AddParagraph().AddText(fmt.Sprintf("Newspaper page %d", actual)).Italic().Color("666666")
		w.AddParagraph().Justification("both").AddText(excerpt(text)).Size("20")
	}

	return w
}

func excerpt(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= ExcerptRunes {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:ExcerptRunes])) + " …"
}

// Dir 为 organizedDir 中的每份整理文本生成阅读文档，写入 outDir/<同名>.docx
//
// 报纸 PDF 在 newspaperDir 中查找：先找同名 PDF，再找同一报名前缀、同一日期的 PDF。
// 找不到 PDF 时生成只含条目的文档。
func Dir(organizedDir, newspaperDir, outDir string) ([]string, error) {
	entries, err := os.ReadDir(organizedDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.L().Warnf("Organized text folder not found: %s", organizedDir)
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", organizedDir, err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", outDir, err)
	}

	var written []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".txt" {
			continue
		}
		stem := strings.TrimSuffix(entry.Name(), ".txt")

		out, err := assembleOne(filepath.Join(organizedDir, entry.Name()), findNewspaper(newspaperDir, stem), filepath.Join(outDir, stem+DocExt), stem)
		if err != nil {
			logger.L().Errorf("Failed to assemble %s: %v", stem, err)
			continue
		}
		written = append(written, out)
	}
	sort.Strings(written)
	return written, nil
}

func assembleOne(textPath, pdfPath, outPath, title string) (string, error) {
	f, err := os.Open(textPath)
	if err != nil {
		return "", err
	}
	sections, err := organize.ReadSections(f)
	f.Close()
	if err != nil {
		return "", fmt.Errorf("read sections: %w", err)
	}

	var pages Pages
	if pdfPath == "" {
		logger.L().Warnf("Newspaper PDF not found for %s, writing text-only document", title)
	} else {
		doc, err := OpenPDF(pdfPath)
		if err != nil {
			logger.L().Warnf("Cannot read %s, writing text-only document: %v", pdfPath, err)
		} else {
			defer doc.Close()
			pages = doc
			logger.L().Infof("Assembling %s from %s (%d pages)", title, filepath.Base(pdfPath), doc.NumPage())
		}
	}

	if err := save(Build(title, sections, pages), outPath); err != nil {
		return "", err
	}
	logger.L().Infof("Reading document saved: %s", outPath)
	return outPath, nil
}

func save(w *docx.Docx, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := w.WriteTo(f); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("write docx: %w", err)
	}
	return f.Close()
}

// findNewspaper The_Hindu_05-06-2024 可对应 The_Hindu_05-06-2024.pdf 或 The_Hindu_Delhi_05-06-2024.pdf
func findNewspaper(dir, stem string) string {
	exact := filepath.Join(dir, stem+".pdf")
	if _, err := os.Stat(exact); err == nil {
		return exact
	}

	idx := strings.LastIndex(stem, "_")
	if idx <= 0 {
		return ""
	}
	prefix, date := stem[:idx+1], stem[idx+1:]

	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(name), ".pdf") {
			continue
		}
		if strings.HasPrefix(name, prefix) && strings.Contains(name, date) {
			return filepath.Join(dir, name)
		}
	}
	return ""
}
