// Package page detects job-detail pages on the host site, injects the match
// button next to the save button and extracts the posting text for analysis.
package page

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
)

// Host page DOM contract.
const (
	JobURLPattern       = "/jobs/"
	LayoutSelector      = ".job-view-layout.jobs-details"
	AnchorSelector      = ".jobs-save-button"
	DetailsMarkerClass  = "jobs-details"
	DescriptionSelector = ".job-details-module"
	CompanySelector     = ".jobs-company"
	ContainerID         = "nightcrawler-content-app"

	DescriptionMinLength = 50
	CompanyMinLength     = 2
)

// Rendered size attributes stamped onto candidate elements by the live
// session before a snapshot is taken.
const (
	WidthAttr  = "data-nc-width"
	HeightAttr = "data-nc-height"
)

// Extraction is the text pulled from a job page.
type Extraction struct {
	JobDescription string `json:"jobDescription"`
	CompanyInfo    string `json:"companyInfo"`
}

// Empty reports whether nothing could be extracted.
func (e Extraction) Empty() bool {
	return e.JobDescription == "" && e.CompanyInfo == ""
}

// ParseSnapshot parses an HTML snapshot of the page.
func ParseSnapshot(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse page snapshot")
	}
	return doc, nil
}

// IsJobPage classifies a URL as a job-detail page.
func IsJobPage(url string) bool {
	return strings.Contains(url, JobURLPattern)
}

// FindAnchor returns the save button inside the job view layout, or an empty
// selection when either is missing.
func FindAnchor(doc *goquery.Document) *goquery.Selection {
	return doc.Find(LayoutSelector).First().Find(AnchorSelector).First()
}

// FindDetailsContainer walks up from the anchor's parent to the first element
// carrying the marker class. It gives up at body.
func FindDetailsContainer(anchor *goquery.Selection) *goquery.Selection {
	for el := anchor.Parent(); el.Length() > 0; el = el.Parent() {
		if goquery.NodeName(el) == "body" {
			break
		}
		if el.HasClass(DetailsMarkerClass) {
			return el
		}
	}
	return anchor.Slice(0, 0)
}

// Extract pulls the job description and company text from a snapshot.
func Extract(doc *goquery.Document) Extraction {
	anchor := FindAnchor(doc)
	if anchor.Length() == 0 {
		return Extraction{}
	}
	container := FindDetailsContainer(anchor)
	if container.Length() == 0 {
		return Extraction{}
	}
	return Extraction{
		JobDescription: FirstVisibleText(container, DescriptionSelector, DescriptionMinLength),
		CompanyInfo:    FirstVisibleText(container, CompanySelector, CompanyMinLength),
	}
}

// FirstVisibleText returns the normalized text of the first element matching
// selector, in document order, that is visible and longer than minLength
// characters. Pages render duplicate hidden copies of the same block.
func FirstVisibleText(scope *goquery.Selection, selector string, minLength int) string {
	var found string
	scope.Find(selector).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if !IsVisible(el) {
			return true
		}
		text := NormalizeText(el.Text())
		if utf8.RuneCountInString(text) > minLength {
			found = text
			return false
		}
		return true
	})
	return found
}

// IsVisible reports whether el would be rendered. Elements without a size
// measurement are assumed to have one.
func IsVisible(el *goquery.Selection) bool {
	if _, hidden := el.Attr("hidden"); hidden {
		return false
	}
	if style, ok := el.Attr("style"); ok && hasDisplayNone(style) {
		return false
	}
	return measured(el, WidthAttr) && measured(el, HeightAttr)
}

func hasDisplayNone(style string) bool {
	for _, decl := range strings.Split(style, ";") {
		name, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(name), "display") {
			value = strings.TrimSuffix(strings.TrimSpace(strings.ToLower(value)), "!important")
			if strings.TrimSpace(value) == "none" {
				return true
			}
		}
	}
	return false
}

func measured(el *goquery.Selection, attr string) bool {
	raw, ok := el.Attr(attr)
	if !ok {
		return true
	}
	size, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return true
	}
	return size > 0
}

// NormalizeText collapses runs of spaces within each line, trims every line
// and drops blank lines.
func NormalizeText(text string) string {
	lines := strings.Split(text, "\n")
	cleaned := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
