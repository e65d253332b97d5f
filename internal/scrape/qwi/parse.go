package qwi

import (
	"strings"

	"econstats-engine/internal/scrape/util"

	"github.com/PuerkitoBio/goquery"
)

func parse(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// MostRecentYear scans the availability grid top-to-bottom and returns the
// year of the first row that has exactly four quarter checkboxes, none
// disabled. The grid lists years newest first, so this is the most recent
// fully published year.
func MostRecentYear(html string) (string, bool) {
	doc, err := parse(html)
	if err != nil {
		return "", false
	}
	year := ""
	doc.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		cells := row.Find("td[abbr]")
		if cells.Length() == 0 {
			return true
		}
		boxes := row.Find("input[type='checkbox']")
		if boxes.Length() != 4 {
			return true
		}
		enabled := true
		boxes.Each(func(_ int, b *goquery.Selection) {
			if _, disabled := b.Attr("disabled"); disabled {
				enabled = false
			}
		})
		if !enabled {
			return true
		}
		year = strings.TrimSpace(cells.First().AttrOr("abbr", ""))
		return year == ""
	})
	return year, year != ""
}

// MetroCodes returns the data-value of every selected metro list item.
func MetroCodes(html string) []string {
	doc, err := parse(html)
	if err != nil {
		return nil
	}
	var out []string
	doc.Find("li[data-value]").Each(func(_ int, li *goquery.Selection) {
		if v := strings.TrimSpace(li.AttrOr("data-value", "")); v != "" {
			out = append(out, v)
		}
	})
	return out
}

// StateLabels returns the text of each geography tab.
func StateLabels(html string) []string {
	doc, err := parse(html)
	if err != nil {
		return nil
	}
	var out []string
	doc.Find("li.vtab").Each(func(_ int, li *goquery.Selection) {
		out = append(out, util.CleanText(li.Find("div").First().Text()))
	})
	return out
}
