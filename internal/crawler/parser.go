package crawler

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"catalogprj/internal/model"
)

const (
	DefaultVisibleChars = 18000
	ShrunkVisibleChars  = 9000

	maxSpecKeyChars   = 70
	maxSpecValueChars = 220
	maxSpecLines      = 140

	// share of the visible-text budget kept from the start of the page;
	// the rest comes from the end
	headShare = 0.75
	ellipsis  = " ... "
)

// Payload is the compacted page content sent to the model.
type Payload struct {
	PageTitle       string `json:"page_title"`
	MetaDescription string `json:"meta_description"`
	TablesText      string `json:"tables_text"`
	VisibleText     string `json:"visible_text"`
}

// Compact reduces raw HTML to title, meta description, key/value spec lines
// taken from table rows, and visible body text bounded to maxVisible
// characters. Empty parts are NA.
func Compact(raw string, maxVisible int) (Payload, error) {
	doc, err := parseStripped(raw)
	if err != nil {
		return Payload{}, err
	}

	title := collapseSpace(doc.Find("title").First().Text())
	meta, _ := doc.Find(`meta[name='description']`).First().Attr("content")
	meta = collapseSpace(meta)

	var (
		specs []string
		seen  = make(map[string]bool)
	)
	doc.Find("tr").EachWithBreak(func(_ int, tr *goquery.Selection) bool {
		cells := tr.Find("th, td")
		if cells.Length() < 2 {
			return true
		}
		k := collapseSpace(nodeText(cells.Eq(0)))
		v := collapseSpace(nodeText(cells.Eq(1)))
		if k == "" || v == "" || utf8.RuneCountInString(k) > maxSpecKeyChars || utf8.RuneCountInString(v) > maxSpecValueChars {
			return true
		}
		line := k + ": " + v
		if !seen[line] {
			seen[line] = true
			specs = append(specs, line)
		}
		return len(specs) < maxSpecLines
	})

	text := collapseSpace(nodeText(doc.Find("body")))
	text = trimMiddle(text, maxVisible)

	return Payload{
		PageTitle:       orNA(title),
		MetaDescription: orNA(meta),
		TablesText:      orNA(strings.Join(specs, "\n")),
		VisibleText:     orNA(text),
	}, nil
}

// trimMiddle keeps the first 75% and last 25% of the budget so both the
// intro specs and the footer specs of a product page survive.
func trimMiddle(s string, budget int) string {
	if budget <= 0 || utf8.RuneCountInString(s) <= budget {
		return s
	}
	r := []rune(s)
	head := int(float64(budget) * headShare)
	tail := int(float64(budget) * (1 - headShare))
	return string(r[:head]) + ellipsis + string(r[len(r)-tail:])
}

func orNA(s string) string {
	if s == "" {
		return model.NA
	}
	return s
}
