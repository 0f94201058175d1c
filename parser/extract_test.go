package parser

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/go-scrape-parts/internal/fixture"
	"github.com/aluiziolira/go-scrape-parts/models"
)

func mustDoc(t *testing.T, body string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	require.NoError(t, err)
	return doc
}

var testFacets = fixture.Facets{
	Label: "Sedan (12)",
	Yards: []fixture.Yard{{ID: "AB12", Miles: 42}},
}

func TestDetectLayout(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Layout
	}{
		{name: "list", body: fixture.ListPage(fixture.Rows(1, 2), fixture.Facets{}), want: LayoutList},
		{name: "table", body: fixture.TablePage(fixture.Rows(1, 2), fixture.Facets{}), want: LayoutTable},
		{name: "table without rows", body: fixture.TablePage(nil, fixture.Facets{}), want: LayoutNone},
		{name: "empty", body: fixture.EmptyPage(testFacets), want: LayoutNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectLayout(mustDoc(t, tt.body)))
		})
	}
}

func TestExtractYardDistancesAndLabel(t *testing.T) {
	doc := mustDoc(t, fixture.EmptyPage(fixture.Facets{
		Label: "Sedan (12)",
		Yards: []fixture.Yard{{ID: "AB12", Miles: 42}, {ID: "ZZ99", Miles: 7}},
	}))

	yards := ExtractYardDistances(doc)
	assert.Equal(t, map[string]int{"AB12": 42, "ZZ99": 7}, yards)

	label := ExtractInterchangeLabel(doc)
	require.NotNil(t, label)
	assert.Equal(t, "Sedan", *label)

	assert.Nil(t, ExtractInterchangeLabel(mustDoc(t, "<html><body></body></html>")))
}

func TestExtractInterchangeOptions(t *testing.T) {
	doc := mustDoc(t, fixture.EmptyPage(fixture.Facets{Applications: []fixture.Application{
		{Text: "Sedan (12)", Href: "/catalog-6/vehicle/TOYOTA/2010/CAMRY/engine-assembly?application=101"},
		{Text: "Wagon (4)", Href: "https://www.example.test/x?application=202"},
		{Text: "All", Href: "/catalog-6/vehicle/TOYOTA/2010/CAMRY/engine-assembly"},
	}}))
	base, err := url.Parse("https://www.example.test/catalog-6/vehicle/TOYOTA/2010/CAMRY/engine-assembly")
	require.NoError(t, err)

	options := ExtractInterchangeOptions(doc, base)
	require.Len(t, options, 2)
	assert.Equal(t, models.InterchangeOption{
		Text: "Sedan (12)",
		ID:   "101",
		URL:  "https://www.example.test/catalog-6/vehicle/TOYOTA/2010/CAMRY/engine-assembly?application=101",
	}, options[0])
	assert.Equal(t, "202", options[1].ID)
	assert.Equal(t, "https://www.example.test/x?application=202", options[1].URL)
}

func TestParseListLayout(t *testing.T) {
	rows := fixture.Rows(1, 3)
	rows[0].ShowInfo = "Runs great"
	rows[0].Images = []string{"https://img.example.test/ab12/images/a.jpg", "https://img.example.test/ab12/images/b.jpg"}
	body := fixture.ListPage(rows, testFacets)

	app := &models.InterchangeOption{Text: "Sedan (12)", ID: "101", URL: "https://example.test/?application=101"}
	page, err := Parse([]byte(body), PageContext{Application: app, RunTimestamp: "20250101000000"})
	require.NoError(t, err)
	assert.Equal(t, LayoutList, page.Layout)
	require.Len(t, page.Records, 3)

	rec := page.Records[0]
	assert.Equal(t, "20250101000000", rec.RunTimestamp)
	assert.Equal(t, "Engine Assembly 1", *rec.PartName)
	assert.Equal(t, "/itemdetail/0", *rec.DetailURL)
	assert.Equal(t, "1001.00", *rec.Price)
	assert.Equal(t, "Acme Auto Salvage", *rec.Seller)
	assert.Equal(t, "Springfield", *rec.SellerCity)
	assert.Equal(t, "IL", *rec.SellerState)
	assert.Equal(t, "(555) 123-4567", *rec.SellerPhone)
	assert.Equal(t, fixture.Seller, rec.Address)
	assert.Equal(t, "50001", *rec.Mileage)
	assert.Equal(t, "A", *rec.Grade)
	assert.Equal(t, "Very Good", *rec.ConditionDescription)
	assert.Equal(t, "VIN00001", *rec.VIN)
	assert.Equal(t, "STK1", *rec.StockNo)
	assert.Equal(t, "Left", *rec.Position)
	assert.Equal(t, "SILVER", *rec.Color)
	assert.Equal(t, "Runs great", *rec.ShowInfo)
	assert.Equal(t, "AB12", *rec.YardID)
	require.NotNil(t, rec.DistanceMiles)
	assert.Equal(t, 42, *rec.DistanceMiles)
	assert.Equal(t, "Sedan", *rec.Interchange)
	assert.Equal(t, 2, rec.ImageCount)
	assert.Len(t, rec.Images, 2)
	assert.Equal(t, "101", *rec.ApplicationID)

	assert.Equal(t, 0, page.Records[1].ImageCount)
	assert.Nil(t, page.Records[1].ShowInfo)
}

func TestParseTableLayout(t *testing.T) {
	rows := fixture.Rows(1, 2)
	rows[1].YardID = "ZZ99"
	rows[1].Tokens = []string{"Front", "BLUE"}
	body := fixture.TablePage(rows, testFacets)

	page, err := Parse([]byte(body), PageContext{RunTimestamp: "ts"})
	require.NoError(t, err)
	assert.Equal(t, LayoutTable, page.Layout)
	require.Len(t, page.Records, 2)

	first := page.Records[0]
	assert.Equal(t, "Engine Assembly 1", *first.PartName)
	assert.Equal(t, "1001.00", *first.Price)
	assert.Equal(t, "VIN00001", *first.VIN)
	assert.Equal(t, "Left", *first.Position)
	assert.Equal(t, "SILVER", *first.Color)
	assert.Equal(t, "STK1", *first.StockNo)
	assert.Equal(t, "AB12", *first.YardID)
	assert.Equal(t, 42, *first.DistanceMiles)
	assert.Equal(t, 1, first.ImageCount)
	assert.Equal(t, "Acme Auto Salvage", *first.Seller)
	assert.Nil(t, first.ApplicationID)

	second := page.Records[1]
	assert.Equal(t, "Front", *second.Position)
	assert.Equal(t, "BLUE", *second.Color)
	assert.Equal(t, "ZZ99", *second.YardID)
	assert.Nil(t, second.DistanceMiles, "yard missing from the facet has no distance")
}

func TestParseTableSkipsShortRows(t *testing.T) {
	body := `<html><body><table class="table table-bordered"><tbody>
		<tr><td>only</td><td>two</td></tr>
	</tbody></table></body></html>`
	page, err := Parse([]byte(body), PageContext{})
	require.NoError(t, err)
	assert.Equal(t, LayoutTable, page.Layout)
	assert.Empty(t, page.Records)
}

func TestParseEmptyPageYieldsNoRecords(t *testing.T) {
	page, err := Parse([]byte(fixture.EmptyPage(testFacets)), PageContext{})
	require.NoError(t, err)
	assert.Equal(t, LayoutNone, page.Layout)
	assert.Empty(t, page.Records)
	assert.Equal(t, 42, page.YardDistances["AB12"])
}

func TestParseInterchangeOptionsRelativeBase(t *testing.T) {
	body := fixture.EmptyPage(fixture.Facets{Applications: []fixture.Application{{Text: "Sedan (12)", Href: "?application=7"}}})
	options, err := ParseInterchangeOptions([]byte(body), "https://example.test/catalog-6/vehicle/A/2010/B/engine")
	require.NoError(t, err)
	require.Len(t, options, 1)
	assert.Equal(t, "https://example.test/catalog-6/vehicle/A/2010/B/engine?application=7", options[0].URL)
}
