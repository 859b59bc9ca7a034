// Package diagnose inspects the html of a page at the point a run failed
// and suggests what the page offered instead of what the step expected.
package diagnose

import (
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/agnivade/levenshtein"
	"golang.org/x/net/html"
)

// Summary lists what a user could see and address on a page.
type Summary struct {
	Title        string
	Texts        []string
	Placeholders []string
}

// Summarize extracts the title, the distinct visible text fragments and
// the input placeholders of a html document. Texts are whitespace
// normalised and kept in document order.
func Summarize(doc string) (*Summary, error) {
	d, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return nil, err
	}
	s := &Summary{
		Title: normalize(d.Find("title").First().Text()),
	}

	seen := map[string]bool{}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template", "head":
				return
			}
			for _, a := range n.Attr {
				if a.Key == "style" && hidden(a.Val) {
					return
				}
				if a.Key == "hidden" {
					return
				}
			}
		}
		if n.Type == html.TextNode {
			if t := normalize(n.Data); t != "" && !seen[t] {
				seen[t] = true
				s.Texts = append(s.Texts, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range d.Find("body").Nodes {
		walk(n)
	}

	d.Find("[placeholder]").Each(func(i int, sel *goquery.Selection) {
		if p, ok := sel.Attr("placeholder"); ok && p != "" {
			s.Placeholders = append(s.Placeholders, p)
		}
	})
	return s, nil
}

// Suggest returns up to n candidates among the texts and placeholders of
// the page, closest to wanted first. Candidates much longer than wanted are
// cut down to the best matching window so that a label inside a sentence
// still ranks well.
func Suggest(doc, wanted string, n int) ([]string, error) {
	s, err := Summarize(doc)
	if err != nil {
		return nil, err
	}
	want := strings.ToLower(normalize(wanted))
	if want == "" || n <= 0 {
		return nil, nil
	}

	type candidate struct {
		text string
		dist int
	}
	var candidates []candidate
	seen := map[string]bool{}
	for _, t := range append(append([]string{}, s.Texts...), s.Placeholders...) {
		if seen[t] {
			continue
		}
		seen[t] = true
		candidates = append(candidates, candidate{t, distance(want, strings.ToLower(t))})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].dist < candidates[j].dist
	})

	// more than half of the wanted text changed is not a suggestion
	var result []string
	for _, c := range candidates {
		if len(result) == n || c.dist > len(want)/2 {
			break
		}
		result = append(result, c.text)
	}
	return result, nil
}

// distance is the smallest levenshtein distance between want and any
// run of words of candidate that is about as long as want.
func distance(want, candidate string) int {
	best := levenshtein.ComputeDistance(want, candidate)
	words := strings.Fields(candidate)
	size := len(strings.Fields(want))
	if size == 0 || len(words) <= size {
		return best
	}
	for i := 0; i+size <= len(words); i++ {
		if d := levenshtein.ComputeDistance(want, strings.Join(words[i:i+size], " ")); d < best {
			best = d
		}
	}
	return best
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func hidden(style string) bool {
	style = strings.ReplaceAll(strings.ToLower(style), " ", "")
	return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
}
