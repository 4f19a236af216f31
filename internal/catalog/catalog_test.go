package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"news_bot/internal/locator"
)

var testDate = time.Date(2024, time.June, 5, 0, 0, 0, 0, time.UTC)

const validCatalog = `
channels:
  - username: "@csaccoep"
    type: newspaper
    files:
      - source_format: "INDIAN EXPRESS HD Delhi {date}.pdf"
        target_format: "Indian_Express_{date}.pdf"
        date_format: "%d~%m~%Y"
        target_date_format: "%d-%m-%Y"
  - username: "https://t.me/+Bu7senHpQdhlODg1"
    name: UPSC editions
    type: newspaper
    files:
      - name: The_Hindu_UPSC
        source_format: "THE HINDU UPSC IAS EDITION HD {date}.pdf"
        target_format: "The_Hindu_UPSC_{date}.pdf"
        date_format: "%d~%m~%Y"
        target_date_format: "%d-%m-%Y"
      - source_format: "TH Delhi {date}.pdf"
        target_format: "The_Hindu_Delhi_{date}.pdf"
        date_format: "%d--%m"
        target_date_format: "%d-%m-%Y"
        spacing_variant: true
        loose_match: false
  - username: "@vajiramandraviofficial"
    type: highlights
    patterns:
      - text_pattern: "#ToBeReadVajiram in The Indian Express: {date}"
        target_format: "Indian_Express_{date}.jpg"
        date_format: "%d/%m/%Y"
        target_date_format: "%d-%m-%Y"
`

func TestParseValidCatalog(t *testing.T) {
	c, err := Parse([]byte(validCatalog), testDate)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(c.Channels) != 3 {
		t.Fatalf("channels = %d, want 3", len(c.Channels))
	}
	if got := c.ExpectedNewspapers(); got != 3 {
		t.Fatalf("ExpectedNewspapers() = %d, want 3", got)
	}

	if c.Channels[0].IsPrivate() {
		t.Fatal("@csaccoep should be public")
	}
	if !c.Channels[1].IsPrivate() {
		t.Fatal("invite link should be private")
	}
	if got := c.Channels[0].DisplayName(); got != "@csaccoep" {
		t.Fatalf("DisplayName() = %q", got)
	}
	if got := c.Channels[1].DisplayName(); got != "UPSC editions" {
		t.Fatalf("DisplayName() = %q", got)
	}
}

func TestParseInvalidCatalog(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantMsg string
	}{
		{
			name:    "empty",
			yaml:    "channels: []",
			wantMsg: "Channels",
		},
		{
			name:    "bad yaml",
			yaml:    "channels: [",
			wantMsg: "decode yaml",
		},
		{
			name: "missing placeholder",
			yaml: `
channels:
  - username: "@a"
    type: newspaper
    files:
      - source_format: "paper.pdf"
        target_format: "Paper_{date}.pdf"
        date_format: "%d-%m-%Y"
        target_date_format: "%d-%m-%Y"
`,
			wantMsg: "datetemplate",
		},
		{
			name: "bad channel ref",
			yaml: `
channels:
  - username: "csaccoep"
    type: newspaper
    files:
      - source_format: "P {date}.pdf"
        target_format: "P_{date}.pdf"
        date_format: "%d-%m-%Y"
        target_date_format: "%d-%m-%Y"
`,
			wantMsg: "channelref",
		},
		{
			name: "duplicate newspaper name",
			yaml: `
channels:
  - username: "@a"
    type: newspaper
    files:
      - source_format: "P {date}.pdf"
        target_format: "Paper_{date}.pdf"
        date_format: "%d-%m-%Y"
        target_date_format: "%d-%m-%Y"
  - username: "@b"
    type: newspaper
    files:
      - name: Paper
        source_format: "Q {date}.pdf"
        target_format: "Q_{date}.pdf"
        date_format: "%d-%m-%Y"
        target_date_format: "%d-%m-%Y"
`,
			wantMsg: `duplicate newspaper name "Paper"`,
		},
		{
			name: "unknown type",
			yaml: `
channels:
  - username: "@a"
    type: magazine
`,
			wantMsg: "oneof",
		},
		{
			name: "newspaper without files",
			yaml: `
channels:
  - username: "@a"
    type: newspaper
`,
			wantMsg: "at least one file",
		},
		{
			name: "highlights with files",
			yaml: `
channels:
  - username: "@a"
    type: highlights
    patterns:
      - text_pattern: "Read {date}"
        target_format: "R_{date}.jpg"
        date_format: "%d/%m/%Y"
        target_date_format: "%d-%m-%Y"
    files:
      - source_format: "P {date}.pdf"
        target_format: "P_{date}.pdf"
        date_format: "%d-%m-%Y"
        target_date_format: "%d-%m-%Y"
`,
			wantMsg: "cannot define files",
		},
		{
			name: "unrecognized extension",
			yaml: `
channels:
  - username: "@a"
    type: newspaper
    files:
      - source_format: "P {date}.zip"
        target_format: "P_{date}.pdf"
        date_format: "%d-%m-%Y"
        target_date_format: "%d-%m-%Y"
`,
			wantMsg: "recognized extension",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), testDate)
			if err == nil {
				t.Fatal("Parse() error = nil, want error")
			}
			if !errors.Is(err, ErrInvalidCatalog) {
				t.Fatalf("error %v is not ErrInvalidCatalog", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "channels.yaml")
	if err := os.WriteFile(path, []byte(validCatalog), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, testDate); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), testDate); err == nil {
		t.Fatal("Load() of missing file should fail")
	}
}

func TestFileSpecExpectation(t *testing.T) {
	c, err := Parse([]byte(validCatalog), testDate)
	if err != nil {
		t.Fatal(err)
	}
	private := c.Channels[1]

	// 私有频道默认开启宽松匹配
	upsc, err := private.Files[0].Expectation(testDate, private.IsPrivate())
	if err != nil {
		t.Fatal(err)
	}
	if !upsc.Loose {
		t.Fatal("private channel file should default to loose matching")
	}
	if upsc.Mode != locator.MatchFilename {
		t.Fatalf("mode = %v", upsc.Mode)
	}
	wantNames := []string{
		"THE HINDU UPSC IAS EDITION HD 05~06~2024.pdf",
		"THE HINDU UPSC IAS EDITION HD 5~06~2024.pdf",
		"THE HINDU UPSC IAS EDITION HD 05~6~2024.pdf",
		"THE HINDU UPSC IAS EDITION HD 5~6~2024.pdf",
	}
	if len(upsc.Variants) != len(wantNames) {
		t.Fatalf("variants = %d, want %d", len(upsc.Variants), len(wantNames))
	}
	for i, want := range wantNames {
		if upsc.Variants[i].Name != want {
			t.Fatalf("variant %d = %q, want %q", i, upsc.Variants[i].Name, want)
		}
		if upsc.Variants[i].Alt != "" {
			t.Fatalf("variant %d has unexpected alt %q", i, upsc.Variants[i].Alt)
		}
	}

	// 显式关闭宽松匹配，并生成空格变体
	hindu, err := private.Files[1].Expectation(testDate, private.IsPrivate())
	if err != nil {
		t.Fatal(err)
	}
	if hindu.Loose {
		t.Fatal("loose_match: false should override the private default")
	}
	if got := hindu.Variants[0]; got.Name != "TH Delhi 05--06.pdf" || got.Alt != "TH Delhi05--06.pdf" {
		t.Fatalf("variant = %+v", got)
	}
	if got := hindu.Label; got != "The_Hindu_Delhi" {
		t.Fatalf("label = %q", got)
	}
}

func TestPatternSpecExpectation(t *testing.T) {
	c, err := Parse([]byte(validCatalog), testDate)
	if err != nil {
		t.Fatal(err)
	}
	p := c.Channels[2].Patterns[0]

	exp, err := p.Expectation(testDate)
	if err != nil {
		t.Fatal(err)
	}
	if exp.Mode != locator.MatchText || !exp.RequireMedia {
		t.Fatalf("expectation = %+v", exp)
	}
	if got := exp.Primary(); got != "#ToBeReadVajiram in The Indian Express: 05/06/2024" {
		t.Fatalf("Primary() = %q", got)
	}

	target, err := p.TargetName(testDate)
	if err != nil {
		t.Fatal(err)
	}
	if target != "Indian_Express_05-06-2024.jpg" {
		t.Fatalf("TargetName() = %q", target)
	}
	if got := p.DisplayName(); got != "Indian_Express" {
		t.Fatalf("DisplayName() = %q", got)
	}
}

func TestTargetNameUsesLiteralDate(t *testing.T) {
	f := FileSpec{Target: "Indian_Express_{date}.pdf", TargetDateFormat: "%d-%m-%Y"}
	got, err := f.TargetName(time.Date(2024, time.January, 3, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if got != "Indian_Express_03-01-2024.pdf" {
		t.Fatalf("TargetName() = %q", got)
	}
}

func TestSpacingVariant(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"TH Delhi {date}.pdf", "TH Delhi{date}.pdf"},
		{"TH Delhi{date}.pdf", "TH Delhi {date}.pdf"},
	}
	for _, tt := range tests {
		if got := SpacingVariant(tt.in); got != tt.want {
			t.Fatalf("SpacingVariant(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHasRecognizedExtension(t *testing.T) {
	tests := map[string]bool{
		"a.pdf":  true,
		"a.PDF":  true,
		"a.jpeg": true,
		"a.png":  true,
		"a.docx": false,
		"a":      false,
	}
	for name, want := range tests {
		if got := HasRecognizedExtension(name); got != want {
			t.Fatalf("HasRecognizedExtension(%q) = %v, want %v", name, got, want)
		}
	}
}
