// Package fixture renders synthetic catalog pages for tests.
package fixture

import (
	"fmt"
	"strings"
)

// Listing describes one row to render.
type Listing struct {
	Name     string
	Price    string
	Mileage  string
	Grade    string
	VIN      string
	Stock    string
	Tokens   []string
	YardID   string
	ShowInfo string
	Images   []string
}

// Application is a facet entry linking to an application-filtered listing.
type Application struct {
	Text string
	Href string
}

// Yard is a facet entry carrying a distance.
type Yard struct {
	ID    string
	Miles int
}

// Facets are the shared side-panel blocks rendered on every page.
type Facets struct {
	Applications []Application
	Label        string
	Yards        []Yard
}

// Seller is rendered as the company address block.
var Seller = []string{"Acme Auto Salvage", "123 Main St", "Springfield, IL 62701", "(555) 123-4567"}

// Rows returns n generic listings numbered from start.
func Rows(start, n int) []Listing {
	out := make([]Listing, 0, n)
	for i := start; i < start+n; i++ {
		out = append(out, Listing{
			Name:    fmt.Sprintf("Engine Assembly %d", i),
			Price:   fmt.Sprintf("$%d.00", 1000+i),
			Mileage: fmt.Sprintf("%d", 50000+i),
			Grade:   "A",
			VIN:     fmt.Sprintf("VIN%05d", i),
			Stock:   fmt.Sprintf("STK%d", i),
			Tokens:  []string{"Left", "SILVER"},
			YardID:  "ab12",
		})
	}
	return out
}

// ListPage renders the form.list-item template.
func ListPage(rows []Listing, f Facets) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	writeFacets(&b, f)
	for i, r := range rows {
		b.WriteString(`<form class="list-item">`)
		fmt.Fprintf(&b, `<a title="Engine Assembly" href="/itemdetail/%d">%s</a>`, i, r.Name)
		fmt.Fprintf(&b, `<span class="buy-panel-sell-price">%s</span>`, r.Price)
		writeSeller(&b)
		b.WriteString("<table><tr>")
		thumb := ""
		if r.YardID != "" {
			thumb = fmt.Sprintf("https://img.example.test/%s/images/%d.jpg", r.YardID, i)
		}
		if thumb != "" {
			fmt.Fprintf(&b, `<td><img src="%s"></td>`, thumb)
		} else {
			b.WriteString("<td></td>")
		}
		b.WriteString("<td>desc</td>")
		fmt.Fprintf(&b, "<td>%s</td><td>%s</td>", r.Mileage, r.Grade)
		b.WriteString("<td>")
		if r.VIN != "" {
			fmt.Fprintf(&b, "<b>Vin:%s</b>", r.VIN)
		}
		for _, t := range r.Tokens {
			fmt.Fprintf(&b, "<span>%s</span>", t)
		}
		if r.Stock != "" {
			fmt.Fprintf(&b, `<a class="stockno-link">%s</a>`, r.Stock)
		}
		if r.ShowInfo != "" {
			fmt.Fprintf(&b, `<a id="tool-tip" data-original-title="%s">Show Info</a>`, r.ShowInfo)
		}
		b.WriteString("</td></tr></table>")
		if len(r.Images) > 0 {
			b.WriteString("<script>var gallery = [")
			for j, img := range r.Images {
				if j > 0 {
					b.WriteString(",")
				}
				fmt.Fprintf(&b, `{"src":"%s"}`, img)
			}
			b.WriteString("];</script>")
		}
		b.WriteString("</form>")
	}
	b.WriteString("</body></html>")
	return b.String()
}

// TablePage renders the bordered-table template.
func TablePage(rows []Listing, f Facets) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	writeFacets(&b, f)
	writeSeller(&b)
	b.WriteString(`<table class="table table-bordered"><thead><tr><th>x</th></tr></thead><tbody>`)
	for i, r := range rows {
		b.WriteString("<tr>")
		if r.YardID != "" {
			fmt.Fprintf(&b, `<td><img src="//cdn.example.test/%s/inventory/%d.jpg"></td>`, r.YardID, i)
		} else {
			b.WriteString("<td></td>")
		}
		fmt.Fprintf(&b, `<td><a href="/itemdetail/%d">%s</a><span class="buy-panel-sell-price">%s</span></td>`, i, r.Name, r.Price)
		fmt.Fprintf(&b, "<td>%s</td><td>%s</td>", r.Mileage, r.Grade)
		b.WriteString("<td>")
		if r.VIN != "" {
			fmt.Fprintf(&b, "<div>Vin:%s</div>", r.VIN)
		}
		for _, t := range r.Tokens {
			fmt.Fprintf(&b, "<div>%s</div>", t)
		}
		if r.Stock != "" {
			fmt.Fprintf(&b, `<a class="stockno-link">%s</a>`, r.Stock)
		}
		if r.ShowInfo != "" {
			fmt.Fprintf(&b, `<a id="tool-tip" data-original-title="%s">info</a>`, r.ShowInfo)
		}
		b.WriteString("</td></tr>")
	}
	b.WriteString("</tbody></table></body></html>")
	return b.String()
}

// EmptyPage renders facets and no listing container at all.
func EmptyPage(f Facets) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	writeFacets(&b, f)
	b.WriteString("<p>No parts found.</p></body></html>")
	return b.String()
}

func writeFacets(b *strings.Builder, f Facets) {
	if len(f.Applications) > 0 || f.Label != "" {
		b.WriteString(`<div id="applications-facet"><div class="panel-body">`)
		if f.Label != "" {
			fmt.Fprintf(b, `<label class="checkbox">%s</label>`, f.Label)
		}
		for _, a := range f.Applications {
			fmt.Fprintf(b, `<a class="name" href="%s">%s</a>`, a.Href, a.Text)
		}
		b.WriteString("</div></div>")
	}
	if len(f.Yards) > 0 {
		b.WriteString(`<div id="yard-facet"><ul>`)
		for _, y := range f.Yards {
			fmt.Fprintf(b, `<li><label><a href="?yard=%s">%s</a> (%d mi.)</label></li>`, strings.ToLower(y.ID), y.ID, y.Miles)
		}
		b.WriteString("</ul></div>")
	}
}

func writeSeller(b *strings.Builder) {
	b.WriteString(`<div class="item-company-address"><strong>`)
	b.WriteString(Seller[0])
	b.WriteString("</strong>")
	for _, line := range Seller[1:] {
		fmt.Fprintf(b, "<br>%s", line)
	}
	b.WriteString("</div>")
}
