package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"catalogprj/internal/crawler"
	"catalogprj/internal/model"
)

const SystemPrompt = "You must output strict JSON only. No explanations."

// BuildPrompt embeds the column list, the mapping rules, the input record
// and the compacted page in one user instruction.
func BuildPrompt(rec model.InputRecord, payload crawler.Payload) (string, error) {
	headers, err := marshalNoEscape(model.Headers)
	if err != nil {
		return "", err
	}
	row, err := marshalNoEscape(rec)
	if err != nil {
		return "", err
	}
	page, err := marshalNoEscape(payload)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("Return ONLY a valid JSON object (no markdown, no extra text).\n")
	sb.WriteString("The JSON MUST contain EXACTLY these keys (all of them):\n")
	sb.WriteString(headers + "\n\n")

	sb.WriteString("Rules:\n")
	fmt.Fprintf(&sb, "- If unknown, use %q.\n", model.NA)
	sb.WriteString("- Keep values factual and short. No promotional language.\n")
	sb.WriteString("- Bullet points must be single-line strings (no numbering).\n")
	sb.WriteString("- attributes__keywords: comma-separated search keywords.\n")
	sb.WriteString("- base_code: same as sku.\n")
	sb.WriteString("- Prefer values from tables_text when available (specs).\n\n")

	sb.WriteString("Mapping rules from the input sheet (must follow):\n")
	sb.WriteString("- sku -> sku\n")
	sb.WriteString("- ean -> attributes__lulu_ean\n")
	sb.WriteString("- shipping_weight -> attributes__shipping_weight\n")
	sb.WriteString("- color -> attributes__color\n")
	sb.WriteString("- product_type -> attributes__lulu_product_type\n")
	fmt.Fprintf(&sb, "- mm43 -> attributes__version (if not empty else %q)\n", model.NA)
	fmt.Fprintf(&sb, "- category -> attributes__other_information (if not empty else %q)\n\n", model.NA)

	sb.WriteString("Input row:\n" + row + "\n\n")
	sb.WriteString("Webpage content (trimmed):\n" + page + "\n\n")
	sb.WriteString("Output the JSON object only.")
	return sb.String(), nil
}

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// ParseReply pulls the outermost {...} span out of the reply text.
func ParseReply(text string) (model.Extraction, error) {
	text = strings.TrimSpace(text)
	m := jsonObject.FindString(text)
	if m == "" {
		return nil, fmt.Errorf("%w: no JSON found, reply starts %q", ErrMalformedOutput, head(text, 200))
	}
	var out model.Extraction
	if err := json.Unmarshal([]byte(m), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return out, nil
}

func marshalNoEscape(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func head(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
