package preprocess

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

// CleanBasic normalizes extracted text: strips control characters, fixes
// common OCR ligature artifacts, and collapses runs of whitespace.
func CleanBasic(text string) string {
	if text == "" {
		return ""
	}

	// remove control chars except newline
	b := strings.Map(func(r rune) rune {
		if r == '\n' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)

	// fix common ligatures / OCR artifacts
	fixes := map[string]string{
		"ﬁ": "fi", "ﬂ": "fl", "ﬀ": "ff",
		"—": "-", "–": "-",
		"·": ".", "•": "-",
	}
	for k, v := range fixes {
		b = strings.ReplaceAll(b, k, v)
	}

	// collapse spaces & tabs
	reSpaces := regexp.MustCompile(`[ \t]+`)
	b = reSpaces.ReplaceAllString(b, " ")

	// collapse multiple newlines to two
	reNewlines := regexp.MustCompile(`\n{3,}`)
	b = reNewlines.ReplaceAllString(b, "\n\n")

	return strings.TrimSpace(b)
}

// DigitRatio returns the fraction of non-space characters that are digits.
// Pages dominated by digits are usually tables of contents, indexes, or
// answer keys and are poor retrieval material.
func DigitRatio(text string) float64 {
	var digits, total int
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.IsDigit(r) {
			digits++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(digits) / float64(total)
}

// HTMLToText extracts readable content from an HTML page, keeping headings,
// paragraphs, lists, code, and tables.
func HTMLToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script,style,nav,footer,aside").Remove()

	var out []string
	doc.Find("h1,h2,h3,h4,p,li,pre,code,table").Each(func(i int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "h1":
			out = append(out, "# "+strings.TrimSpace(s.Text()))
		case "h2":
			out = append(out, "## "+strings.TrimSpace(s.Text()))
		case "h3":
			out = append(out, "### "+strings.TrimSpace(s.Text()))
		case "h4":
			out = append(out, "#### "+strings.TrimSpace(s.Text()))
		case "p":
			out = append(out, strings.TrimSpace(s.Text()))
		case "li":
			out = append(out, "- "+strings.TrimSpace(s.Text()))
		case "pre", "code":
			out = append(out, "```\n"+strings.TrimSpace(s.Text())+"\n```")
		case "table":
			out = append(out, parseTable(s))
		}
	})
	return strings.Join(out, "\n\n"), nil
}

// HTMLTitle returns the page title, if any.
func HTMLTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func parseTable(sel *goquery.Selection) string {
	var rows []string
	sel.Find("tr").Each(func(i int, tr *goquery.Selection) {
		var cols []string
		tr.Find("th,td").Each(func(j int, td *goquery.Selection) {
			cols = append(cols, strings.TrimSpace(td.Text()))
		})
		if len(cols) > 0 {
			rows = append(rows, "| "+strings.Join(cols, " | ")+" |")
		}
	})
	return strings.Join(rows, "\n")
}

// RemoveDuplicateParagraphs dedupes by exact paragraph text. Repeated
// headers and footers in a PDF extraction collapse to one occurrence.
func RemoveDuplicateParagraphs(text string) string {
	parts := strings.Split(text, "\n\n")
	seen := map[string]struct{}{}
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return strings.Join(out, "\n\n")
}

// RemoveWebNoise drops boilerplate lines that dominate scraped pages.
func RemoveWebNoise(s string) string {
	patterns := []string{
		"cookie", "Cookie", "privacy policy", "Privacy Policy",
		"all rights reserved", "All Rights Reserved",
		"subscribe to our newsletter", "Related articles", "Share this",
		"advertisement", "Advertisement",
	}
	lines := strings.Split(s, "\n")
	var out []string
	for _, l := range lines {
		skip := false
		for _, p := range patterns {
			if strings.Contains(l, p) {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

// Preprocess runs the full cleaning pipeline for web content.
func Preprocess(raw string) string {
	t := CleanBasic(raw)
	t = RemoveWebNoise(t)
	t = RemoveDuplicateParagraphs(t)
	return t
}
