// Package parser extracts listing records from catalog result pages.
package parser

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/aluiziolira/go-scrape-parts/models"
)

// Layout identifies which of the two known result templates a page uses.
type Layout int

const (
	LayoutNone Layout = iota
	// LayoutList renders one form.list-item block per listing.
	LayoutList
	// LayoutTable renders listings as rows of a bordered table.
	LayoutTable
)

func (l Layout) String() string {
	switch l {
	case LayoutList:
		return "list"
	case LayoutTable:
		return "table"
	default:
		return "none"
	}
}

const (
	listItemSelector    = "form.list-item"
	tableRowSelector    = "table.table.table-bordered tbody tr"
	applicationSelector = "#applications-facet a.name"
	interchangeSelector = "#applications-facet .panel-body"
	yardFacetSelector   = "#yard-facet li label"
	companySelector     = ".item-company-address"
	priceSelector       = ".buy-panel-sell-price"
	stockSelector       = ".stockno-link"
)

var (
	yardDistanceRe  = regexp.MustCompile(`\((\d+)\s*mi\.\)`)
	listYardRe      = regexp.MustCompile(`/([a-zA-Z0-9]{4})/images/`)
	tableYardRe     = regexp.MustCompile(`//.*?/(.*?)/inventory/`)
	scriptImageRe   = regexp.MustCompile(`"src":"(.*?)"`)
	vinPrefix       = "Vin:"
	applicationKey  = "application="
	yardQueryKey    = "yard="
	showInfoLinkTxt = "Show Info"
)

// PageContext carries per-request metadata stamped onto every record.
type PageContext struct {
	Application  *models.InterchangeOption
	RunTimestamp string
}

// Page is everything extracted from a single fetched result page.
type Page struct {
	Layout        Layout
	Interchange   *string
	YardDistances map[string]int
	Records       []*models.ListingRecord
}

// Parse runs layout detection and listing extraction over a raw page body.
func Parse(body []byte, pc PageContext) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	layout := DetectLayout(doc)
	label := ExtractInterchangeLabel(doc)
	yards := ExtractYardDistances(doc)
	return &Page{
		Layout:        layout,
		Interchange:   label,
		YardDistances: yards,
		Records:       ExtractListings(doc, layout, label, yards, pc),
	}, nil
}

// ParseInterchangeOptions parses body and returns its application options,
// resolving relative links against pageURL.
func ParseInterchangeOptions(body []byte, pageURL string) ([]models.InterchangeOption, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}
	return ExtractInterchangeOptions(doc, base), nil
}

// DetectLayout looks for the container markers of each template.
func DetectLayout(doc *goquery.Document) Layout {
	if doc.Find(listItemSelector).Length() > 0 {
		return LayoutList
	}
	if doc.Find(tableRowSelector).Length() > 0 {
		return LayoutTable
	}
	return LayoutNone
}

// ExtractInterchangeLabel returns the first application facet label with its
// count suffix removed.
func ExtractInterchangeLabel(doc *goquery.Document) *string {
	facet := doc.Find(interchangeSelector).First()
	if facet.Length() == 0 {
		return nil
	}
	lbl := facet.Find("label.checkbox").First()
	if lbl.Length() == 0 {
		return nil
	}
	return optional(StripCount(lbl.Text()))
}

// ExtractYardDistances maps yard identifiers to their distance in miles.
func ExtractYardDistances(doc *goquery.Document) map[string]int {
	out := make(map[string]int)
	doc.Find(yardFacetSelector).Each(func(_ int, s *goquery.Selection) {
		raw := strings.Join(strippedStrings(s), " ")
		m := yardDistanceRe.FindStringSubmatch(raw)
		if m == nil {
			return
		}
		href, ok := s.Find("a").First().Attr("href")
		if !ok {
			return
		}
		_, yard, found := strings.Cut(href, yardQueryKey)
		if !found || yard == "" {
			return
		}
		miles, err := strconv.Atoi(m[1])
		if err != nil {
			return
		}
		out[strings.ToUpper(yard)] = miles
	})
	return out
}

// ExtractInterchangeOptions lists application options from the shared facet.
// Links without an application parameter are ignored.
func ExtractInterchangeOptions(doc *goquery.Document, base *url.URL) []models.InterchangeOption {
	var options []models.InterchangeOption
	doc.Find(applicationSelector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || !strings.Contains(href, applicationKey) {
			return
		}
		_, id, _ := strings.Cut(href, applicationKey)
		options = append(options, models.InterchangeOption{
			Text: strings.TrimSpace(s.Text()),
			ID:   id,
			URL:  resolve(base, href),
		})
	})
	return options
}

// ExtractListings maps the page's rows to records using the given layout.
func ExtractListings(doc *goquery.Document, layout Layout, interchange *string, yards map[string]int, pc PageContext) []*models.ListingRecord {
	switch layout {
	case LayoutList:
		return extractList(doc, interchange, yards, pc)
	case LayoutTable:
		return extractTable(doc, interchange, yards, pc)
	default:
		return nil
	}
}

func extractList(doc *goquery.Document, interchange *string, yards map[string]int, pc PageContext) []*models.ListingRecord {
	var records []*models.ListingRecord
	doc.Find(listItemSelector).Each(func(_ int, item *goquery.Selection) {
		rec := newRecord(pc, interchange)

		pn := item.Find("a[title*='Engine Assembly'], a[href*='itemdetail']").First()
		if pn.Length() > 0 {
			rec.PartName = optional(pn.Text())
			rec.DetailURL = attr(pn, "href")
		}
		if price := item.Find(priceSelector).First(); price.Length() > 0 {
			rec.Price = optional(NormalizePrice(price.Text()))
		}

		applySeller(rec, item)

		tds := item.Find("td")
		if tds.Length() > 2 {
			rec.Mileage = optional(tds.Eq(2).Text())
		}
		if tds.Length() > 3 {
			rec.Grade = optional(tds.Eq(3).Text())
			rec.ConditionDescription = ConditionFor(tds.Eq(3).Text())
		}
		if vin := item.Find("td b").First(); vin.Length() > 0 {
			rec.VIN = optional(strings.ReplaceAll(vin.Text(), vinPrefix, ""))
		}
		if tds.Length() >= 5 {
			rec.Position, rec.Color = ClassifyTokens(strippedStrings(tds.Eq(4)))
		}
		if stock := item.Find(stockSelector).First(); stock.Length() > 0 {
			rec.StockNo = optional(stock.Text())
		}

		rec.Thumbnail = attr(item.Find("td img").First(), "src")
		if script := item.Find("script").First(); script.Length() > 0 {
			for _, m := range scriptImageRe.FindAllStringSubmatch(script.Text(), -1) {
				rec.Images = append(rec.Images, m[1])
			}
		}
		rec.ImageCount = len(rec.Images)
		if rec.Thumbnail != nil {
			rec.YardID = yardFrom(listYardRe, *rec.Thumbnail)
		}
		rec.DistanceMiles = distanceFor(yards, rec.YardID)

		info := item.Find("a#tool-tip").First()
		if info.Length() == 0 {
			info = item.Find("a").FilterFunction(func(_ int, a *goquery.Selection) bool {
				return strings.Contains(a.Text(), showInfoLinkTxt)
			}).First()
		}
		rec.ShowInfo = attr(info, "data-original-title")

		records = append(records, rec)
	})
	return records
}

func extractTable(doc *goquery.Document, interchange *string, yards map[string]int, pc PageContext) []*models.ListingRecord {
	var records []*models.ListingRecord
	// The table template renders a single seller block for the whole page.
	company := doc.Find(companySelector).First()

	doc.Find(tableRowSelector).Each(func(_ int, row *goquery.Selection) {
		tds := row.Find("td")
		if tds.Length() < 5 {
			return
		}
		rec := newRecord(pc, interchange)

		if pn := tds.Eq(1).Find("a[href*='itemdetail']").First(); pn.Length() > 0 {
			rec.PartName = optional(pn.Text())
			rec.DetailURL = attr(pn, "href")
		}
		price := tds.Eq(1).Find(priceSelector).First()
		if price.Length() == 0 {
			price = tds.Eq(0).Find(priceSelector).First()
		}
		if price.Length() > 0 {
			rec.Price = optional(NormalizePrice(price.Text()))
		}

		rec.Mileage = optional(tds.Eq(2).Text())
		rec.Grade = optional(tds.Eq(3).Text())
		rec.ConditionDescription = ConditionFor(tds.Eq(3).Text())

		infoCell := tds.Eq(4)
		var rest []string
		for _, t := range strippedStrings(infoCell) {
			if strings.HasPrefix(t, vinPrefix) {
				if rec.VIN == nil {
					rec.VIN = optional(strings.TrimPrefix(t, vinPrefix))
				}
				continue
			}
			rest = append(rest, t)
		}
		rec.Position, rec.Color = ClassifyTokens(rest)
		if stock := infoCell.Find(stockSelector).First(); stock.Length() > 0 {
			rec.StockNo = optional(stock.Text())
		}

		rec.Thumbnail = attr(row.Find("img").First(), "src")
		if rec.Thumbnail != nil {
			rec.Images = []string{*rec.Thumbnail}
			rec.YardID = yardFrom(tableYardRe, *rec.Thumbnail)
		}
		rec.ImageCount = len(rec.Images)
		rec.DistanceMiles = distanceFor(yards, rec.YardID)

		applySeller(rec, company)
		rec.ShowInfo = attr(infoCell.Find("a#tool-tip").First(), "data-original-title")

		records = append(records, rec)
	})
	return records
}

func newRecord(pc PageContext, interchange *string) *models.ListingRecord {
	rec := &models.ListingRecord{
		RunTimestamp: pc.RunTimestamp,
		Interchange:  interchange,
		Address:      []string{},
		Images:       []string{},
	}
	if app := pc.Application; app != nil {
		rec.ApplicationText = optional(app.Text)
		rec.ApplicationID = optional(app.ID)
		rec.ApplicationURL = optional(app.URL)
	}
	return rec
}

// applySeller fills seller fields from the address block found in scope.
func applySeller(rec *models.ListingRecord, scope *goquery.Selection) {
	block := scope
	if !block.Is(companySelector) {
		block = scope.Find(companySelector).First()
	}
	if block.Length() == 0 {
		return
	}
	if strong := block.Find("strong").First(); strong.Length() > 0 {
		rec.Seller = optional(strong.Text())
	}
	rec.Address = strippedStrings(block)
	rec.SellerCity, rec.SellerState, rec.SellerPhone = ParseAddress(rec.Address)
}

func yardFrom(re *regexp.Regexp, thumbnail string) *string {
	m := re.FindStringSubmatch(thumbnail)
	if m == nil {
		return nil
	}
	return optional(strings.ToUpper(m[1]))
}

func distanceFor(yards map[string]int, yard *string) *int {
	if yard == nil {
		return nil
	}
	miles, ok := yards[*yard]
	if !ok {
		return nil
	}
	return &miles
}

func attr(s *goquery.Selection, name string) *string {
	if s == nil || s.Length() == 0 {
		return nil
	}
	v, ok := s.Attr(name)
	if !ok {
		return nil
	}
	return optional(v)
}

func resolve(base *url.URL, href string) string {
	if base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// strippedStrings returns the trimmed, non-empty text nodes under s in
// document order.
func strippedStrings(s *goquery.Selection) []string {
	out := []string{}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				out = append(out, t)
			}
			return
		}
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return out
}
