package crawler

import (
	"errors"
	"strings"
)

// ErrBlocked marks a page whose visible text is a bot challenge.
var ErrBlocked = errors.New("blocked_visible_text")

// strongBlockPhrases identify challenge pages on their own.
var strongBlockPhrases = []string{
	"enter the characters you see",
	"verify you are a human",
	"robot check",
	"not a robot",
	"unusual traffic",
	"automated access",
}

// captchaCompanions only count as a block when "captcha" is also present.
var captchaCompanions = []string{"verify", "robot", "human", "unusual traffic"}

// LooksBlocked reports whether the visible text of a page reads like a bot
// challenge. It is a heuristic: a product page that merely mentions one of
// the phrases is classified as blocked too.
func LooksBlocked(raw string) bool {
	doc, err := parseStripped(raw)
	if err != nil {
		return false
	}
	text := strings.ToLower(nodeText(doc.Selection))

	for _, p := range strongBlockPhrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	if strings.Contains(text, "captcha") {
		for _, p := range captchaCompanions {
			if strings.Contains(text, p) {
				return true
			}
		}
	}
	return false
}
