package hybrid

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sweetpotato0/ai-tutor/vector"
	"github.com/sweetpotato0/ai-tutor/websearch"
)

// DefaultContextBudget caps the fused context length in characters.
const DefaultContextBudget = 16000

const (
	textbookHeader = "[TEXTBOOK SOURCES]"
	webHeader      = "[WEB SOURCES]"
)

// Fuse merges textbook hits and web results into one grounded context
// string. Textbook sources come first to bias generation toward the
// curated corpus; each block is ordered by descending score. When the
// budget is exceeded the lowest-ranked entries are dropped first, web
// entries before textbook ones.
func Fuse(pdf []*vector.Result, web []websearch.Result, budget int) string {
	if budget <= 0 {
		budget = DefaultContextBudget
	}

	pdfEntries := formatPDFEntries(pdf)
	webEntries := formatWebEntries(web)

	for {
		text := assemble(pdfEntries, webEntries)
		if len(text) <= budget {
			return text
		}
		switch {
		case len(webEntries) > 0:
			webEntries = webEntries[:len(webEntries)-1]
		case len(pdfEntries) > 0:
			pdfEntries = pdfEntries[:len(pdfEntries)-1]
		default:
			return ""
		}
	}
}

func assemble(pdfEntries, webEntries []string) string {
	var b strings.Builder
	if len(pdfEntries) > 0 {
		b.WriteString(textbookHeader)
		b.WriteString("\n")
		b.WriteString(strings.Join(pdfEntries, "\n"))
	}
	if len(webEntries) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(webHeader)
		b.WriteString("\n")
		b.WriteString(strings.Join(webEntries, "\n"))
	}
	return b.String()
}

func formatPDFEntries(results []*vector.Result) []string {
	sorted := make([]*vector.Result, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	entries := make([]string, 0, len(sorted))
	for i, res := range sorted {
		attrs := fmt.Sprintf("source=%s", res.Metadata["source"])
		if page := res.Metadata["page"]; page != "" {
			attrs += fmt.Sprintf(", page=%s", page)
		}
		if chapter := res.Metadata["chapter"]; chapter != "" {
			attrs += fmt.Sprintf(", chapter=%s", chapter)
		}
		entries = append(entries, fmt.Sprintf("(%d) %s  — %s", i+1, res.Text, attrs))
	}
	return entries
}

func formatWebEntries(results []websearch.Result) []string {
	sorted := make([]websearch.Result, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	entries := make([]string, 0, len(sorted))
	for i, res := range sorted {
		head := fmt.Sprintf("(W%d) %s — %s", i+1, res.Title, res.URL)
		if res.PublishedDate != "" {
			head += " — " + res.PublishedDate
		}
		if res.Snippet != "" {
			head += "\n     " + res.Snippet
		}
		entries = append(entries, head)
	}
	return entries
}
