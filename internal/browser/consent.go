package browser

import "github.com/go-rod/rod"

type consentStrategy struct {
	name string
	find func(p *rod.Page) (*rod.Element, error)
}

func bySelector(sel string) consentStrategy {
	return consentStrategy{
		name: sel,
		find: func(p *rod.Page) (*rod.Element, error) { return p.Element(sel) },
	}
}

// byButtonText matches a button whose text contains label, ignoring case.
func byButtonText(label string) consentStrategy {
	return consentStrategy{
		name: "button:" + label,
		find: func(p *rod.Page) (*rod.Element, error) { return p.ElementR("button", "/"+label+"/i") },
	}
}

// consentStrategies in the order they are tried; the Amazon banner first.
var consentStrategies = []consentStrategy{
	bySelector("#sp-cc-accept"),
	byButtonText("Accept"),
	byButtonText("I Accept"),
	byButtonText("Agree"),
	byButtonText("Accept All"),
	byButtonText("Allow all"),
	bySelector("[data-testid='cookie-accept']"),
	bySelector("[aria-label*='Accept']"),
	bySelector("[id*='accept'][role='button']"),
}
