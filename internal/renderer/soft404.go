package renderer

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// notFoundTokens are the title/heading substrings the detector checks for.
var notFoundTokens = []string{"404", "not found", "page not found"}

// notFoundPhrases are the body-text phrases.
var notFoundPhrases = []string{
	"the page you are looking for",
	"nothing found",
	"this page cannot be found",
	"we couldn't find that page",
	"oops! that page can't be found",
}

// notFoundSelectors are the CSS selectors error pages commonly carry.
var notFoundSelectors = []string{
	".error-404", "#error-404", ".not-found", "[class*=not-found]", "[id*=not-found]",
}

// minWordCount is the threshold below which a short body plus a
// title/h1 token is itself evidence of a soft-404.
const minWordCount = 50

// detectSoft404 analyzes rendered HTML for 404 indicators: any single
// triggering signal is sufficient, and every signal that fired is
// recorded for diagnostics.
func detectSoft404(html string) (bool, []string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false, nil
	}

	var reasons []string

	title := strings.ToLower(doc.Find("title").First().Text())
	titleHit := containsAny(title, notFoundTokens)
	if titleHit {
		reasons = append(reasons, "title contains not-found token")
	}

	headingHit := false
	doc.Find("h1, h2").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if containsAny(strings.ToLower(s.Text()), notFoundTokens) {
			headingHit = true
			return false
		}
		return true
	})
	if headingHit {
		reasons = append(reasons, "heading contains not-found token")
	}

	h1Hit := false
	doc.Find("h1").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		h1Hit = containsAny(strings.ToLower(s.Text()), notFoundTokens)
		return !h1Hit
	})

	bodyText := strings.ToLower(doc.Find("body").Text())
	if containsAny(bodyText, notFoundPhrases) {
		reasons = append(reasons, "body text contains not-found phrase")
	}

	selectorHit := false
	for _, sel := range notFoundSelectors {
		if doc.Find(sel).Length() > 0 {
			selectorHit = true
			break
		}
	}
	if selectorHit {
		reasons = append(reasons, "body matches not-found CSS selector")
	}

	wordCount := len(strings.Fields(bodyText))
	if wordCount < minWordCount && (titleHit || h1Hit) {
		reasons = append(reasons, "short body combined with not-found title/heading")
	}

	return len(reasons) > 0, reasons
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
