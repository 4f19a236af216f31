package assemble

import (
	"fmt"
	"os"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// Pages 按页读取文字，页码从 1 开始
type Pages interface {
	NumPage() int
	PageText(page int) (string, error)
}

// PDFDocument 基于 ledongthuc/pdf 的只读文档，页面文字按需提取并缓存
type PDFDocument struct {
	file   *os.File
	reader *pdf.Reader
	cache  map[int]string
}

// OpenPDF 打开 PDF 文件
func OpenPDF(path string) (*PDFDocument, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	return &PDFDocument{file: f, reader: r, cache: make(map[int]string)}, nil
}

// NumPage 总页数
func (d *PDFDocument) NumPage() int {
	return d.reader.NumPage()
}

// PageText 提取第 page 页的纯文本
func (d *PDFDocument) PageText(page int) (string, error) {
	if text, ok := d.cache[page]; ok {
		return text, nil
	}
	if page < 1 || page > d.NumPage() {
		return "", fmt.Errorf("page %d out of range (1-%d)", page, d.NumPage())
	}

	p := d.reader.Page(page)
	if p.V.IsNull() {
		d.cache[page] = ""
		return "", nil
	}

	text, err := p.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("page %d: %w", page, err)
	}
	text = strings.TrimSpace(text)
	d.cache[page] = text
	return text, nil
}

// Close 关闭底层文件
func (d *PDFDocument) Close() error {
	return d.file.Close()
}
