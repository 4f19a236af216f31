// Package organize 将要点图片的 OCR 文本整理为按版面分组的条目
package organize

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"news_bot/internal/logger"
)

// SectionHeaderPrefix 整理后文本中每个版面的标题前缀
const SectionHeaderPrefix = "Contents from Page"

// DefaultMastheads 可识别的报头
var DefaultMastheads = []string{"THE HINDU", "The Indian EXPRESS"}

// ErrUnknownMasthead 文本中找不到已知报头
var ErrUnknownMasthead = errors.New("unknown newspaper masthead")

// Section 同一版面上的条目
type Section struct {
	Page  int
	Items []string
}

// Document 整理结果
type Document struct {
	Masthead string
	Sections []Section
}

var (
	nonWordPattern = regexp.MustCompile(`[^a-zA-Z0-9\s]`)
	pagePattern    = regexp.MustCompile(`Page (\d+)`)
	headerPattern  = regexp.MustCompile(`^` + SectionHeaderPrefix + ` (\d+):\s*$`)
)

// Parse 清理 OCR 文本并按 "Page N" 标记拆分
//
// 每个 "Page N" 前面的文字归入第 N 版；没有页码的尾部文字丢弃。
func Parse(text string, mastheads []string) (*Document, error) {
	if len(mastheads) == 0 {
		mastheads = DefaultMastheads
	}

	cleaned := strings.Join(strings.Fields(nonWordPattern.ReplaceAllString(text, " ")), " ")

	masthead := ""
	for _, candidate := range mastheads {
		if strings.Contains(cleaned, candidate) {
			masthead = candidate
			break
		}
	}
	if masthead == "" {
		return nil, ErrUnknownMasthead
	}
	cleaned = strings.TrimSpace(strings.ReplaceAll(cleaned, masthead, ""))

	byPage := make(map[int][]string)
	start := 0
	for _, loc := range pagePattern.FindAllStringSubmatchIndex(cleaned, -1) {
		item := strings.TrimSpace(cleaned[start:loc[0]])
		start = loc[1]
		if item == "" {
			continue
		}
		page, err := strconv.Atoi(cleaned[loc[2]:loc[3]])
		if err != nil {
			continue
		}
		byPage[page] = append(byPage[page], item)
	}

	doc := &Document{Masthead: masthead}
	for page, items := range byPage {
		doc.Sections = append(doc.Sections, Section{Page: page, Items: items})
	}
	sort.Slice(doc.Sections, func(i, j int) bool { return doc.Sections[i].Page < doc.Sections[j].Page })
	return doc, nil
}

// WriteText 按 "Contents from Page N:" 格式输出
func (d *Document) WriteText(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, section := range d.Sections {
		fmt.Fprintf(bw, "%s %d:\n", SectionHeaderPrefix, section.Page)
		for _, item := range section.Items {
			fmt.Fprintln(bw, item)
		}
		fmt.Fprintln(bw)
	}
	return bw.Flush()
}

// ReadSections 读取 WriteText 输出的格式
func ReadSections(r io.Reader) ([]Section, error) {
	var sections []Section
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if m := headerPattern.FindStringSubmatch(line); m != nil {
			page, err := strconv.Atoi(m[1])
			if err != nil {
				return nil, fmt.Errorf("invalid page number in %q: %w", line, err)
			}
			sections = append(sections, Section{Page: page})
			continue
		}
		if len(sections) == 0 {
			continue
		}
		last := &sections[len(sections)-1]
		last.Items = append(last.Items, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return sections, nil
}

// Dir 整理 srcDir 下的所有 .txt，结果写入 dstDir 同名文件
// 无法识别报头的文件跳过
func Dir(srcDir, dstDir string, mastheads []string) ([]string, error) {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.L().Warnf("OCR text folder not found: %s", srcDir)
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", srcDir, err)
	}

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dstDir, err)
	}

	var written []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".txt" {
			continue
		}

		out, err := organizeFile(filepath.Join(srcDir, entry.Name()), filepath.Join(dstDir, entry.Name()), mastheads)
		if err != nil {
			logger.L().Warnf("Skipping %s: %v", entry.Name(), err)
			continue
		}
		written = append(written, out)
	}
	sort.Strings(written)
	return written, nil
}

func organizeFile(src, dst string, mastheads []string) (string, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return "", err
	}

	doc, err := Parse(string(data), mastheads)
	if err != nil {
		return "", err
	}

	f, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if err := doc.WriteText(f); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	logger.L().Infof("Organized %s: masthead=%q, pages=%d", filepath.Base(src), doc.Masthead, len(doc.Sections))
	return dst, nil
}
