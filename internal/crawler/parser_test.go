package crawler

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"catalogprj/internal/model"
)

const productPage = `<html><head>
<title>  Acme   Book 14 </title>
<meta name="description" content="A light laptop">
<style>.x{color:red}</style>
<script>var secret = "do not send";</script>
</head><body>
<h1>Acme Book 14</h1>
<table>
<tr><th>Brand</th><td>Acme</td></tr>
<tr><td>RAM</td><td>16 <b>GB</b></td></tr>
<tr><td>Brand</td><td>Acme</td></tr>
<tr><td>only one cell</td></tr>
<tr><td></td><td>empty key</td></tr>
<tr><td>Weight</td><td>1.2 kg</td><td>ignored third</td></tr>
</table>
<noscript>enable javascript</noscript>
<svg><text>logo</text></svg>
</body></html>`

func TestCompact(t *testing.T) {
	p, err := Compact(productPage, DefaultVisibleChars)
	if err != nil {
		t.Fatal(err)
	}
	if p.PageTitle != "Acme Book 14" {
		t.Errorf("PageTitle = %q", p.PageTitle)
	}
	if p.MetaDescription != "A light laptop" {
		t.Errorf("MetaDescription = %q", p.MetaDescription)
	}
	wantSpecs := "Brand: Acme\nRAM: 16 GB\nWeight: 1.2 kg"
	if p.TablesText != wantSpecs {
		t.Errorf("TablesText = %q, want %q", p.TablesText, wantSpecs)
	}
	for _, banned := range []string{"secret", "color:red", "enable javascript", "logo"} {
		if strings.Contains(p.VisibleText, banned) {
			t.Errorf("VisibleText contains %q: %q", banned, p.VisibleText)
		}
	}
	if !strings.HasPrefix(p.VisibleText, "Acme Book 14 Brand Acme RAM 16 GB") {
		t.Errorf("VisibleText = %q", p.VisibleText)
	}
}

func TestCompactEmptyPartsAreNA(t *testing.T) {
	p, err := Compact("<html><body></body></html>", DefaultVisibleChars)
	if err != nil {
		t.Fatal(err)
	}
	for name, v := range map[string]string{
		"title": p.PageTitle, "meta": p.MetaDescription, "tables": p.TablesText, "visible": p.VisibleText,
	} {
		if v != model.NA {
			t.Errorf("%s = %q, want NA", name, v)
		}
	}
}

func TestCompactLimitsSpecLines(t *testing.T) {
	var b strings.Builder
	b.WriteString("<table>")
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&b, "<tr><td>key %d</td><td>value %d</td></tr>", i, i)
	}
	fmt.Fprintf(&b, "<tr><td>%s</td><td>too long key</td></tr>", strings.Repeat("k", 71))
	b.WriteString("</table>")

	p, err := Compact(b.String(), DefaultVisibleChars)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(p.TablesText, "\n")
	if len(lines) != maxSpecLines {
		t.Errorf("got %d spec lines, want %d", len(lines), maxSpecLines)
	}
	if strings.Contains(p.TablesText, "kkkk") {
		t.Error("over-long key kept")
	}
}

func TestCompactTrimsMiddle(t *testing.T) {
	body := "START " + strings.Repeat("é", 5000) + " END"
	p, err := Compact("<body>"+body+"</body>", 1000)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(p.VisibleText, "START") || !strings.HasSuffix(p.VisibleText, "END") {
		t.Errorf("head or tail lost: %q...", p.VisibleText[:20])
	}
	if !strings.Contains(p.VisibleText, " ... ") {
		t.Error("missing ellipsis")
	}
	if n := utf8.RuneCountInString(p.VisibleText); n > 1000+len(ellipsis) {
		t.Errorf("visible text has %d runes", n)
	}
}

func TestTrimMiddleShortInput(t *testing.T) {
	if got := trimMiddle("short", 100); got != "short" {
		t.Errorf("trimMiddle() = %q", got)
	}
}

func TestLooksBlocked(t *testing.T) {
	tests := []struct {
		name string
		html string
		want bool
	}{
		{"robot check", "<body><h4>Enter the characters you see below</h4></body>", true},
		{"captcha with companion", "<body>Please solve this CAPTCHA to verify</body>", true},
		{"captcha alone", "<body>captcha</body>", false},
		{"unusual traffic", "<body>We detected Unusual Traffic from your network</body>", true},
		{"phrase only in script", `<body><script>"not a robot"</script><p>Laptop</p></body>`, false},
		{"product page", productPage, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LooksBlocked(tt.html); got != tt.want {
				t.Errorf("LooksBlocked() = %v, want %v", got, tt.want)
			}
		})
	}
}
