package extract

import (
	"testing"

	"github.com/sellerscope/pdpfetch/classify"
	"github.com/sellerscope/pdpfetch/models"
)

const productFixture = `<html><head><title>Acme Widget Deluxe : Home</title></head><body>
<div id="dp-container">
  <span id="productTitle">
     Acme   Widget Deluxe,
     2-Pack
  </span>
  <a id="bylineInfo" href="/stores/acme">Visit the Acme Store</a>
  <div id="corePrice_feature_div">
    <span class="a-price"><span class="a-offscreen">$19.99</span></span>
  </div>
  <div id="productOverview_feature_div">
    <table class="a-normal">
      <tr class="po-item_form"><td class="a-span3">Item Form</td><td class="a-span9">Powder</td></tr>
      <tr class="po-brand"><td class="a-span3">Brand</td><td class="a-span9">Acme</td></tr>
    </table>
  </div>
  <div id="feature-bullets">
    <ul>
      <li><span class="a-list-item">Durable   construction</span></li>
      <li><span class="a-list-item">Two-pack value</span></li>
    </ul>
  </div>
  <div id="productDescription"><p>The <b>Acme Widget Deluxe</b> solves everything.</p></div>
  <div id="averageCustomerReviews">
    <span id="acrPopover" title="4.6 out of 5 stars"></span>
    <span id="acrCustomerReviewText">1,234 ratings</span>
  </div>
  <div id="detailBulletsWrapper_feature_div">
    <ul>
      <li>Date First Available : March 5, 2023</li>
      <li>Best Sellers Rank: #1,024 in Home &amp; Kitchen (See Top 100 in Home &amp; Kitchen) #37 in Widget Accessories</li>
    </ul>
  </div>
</div>
</body></html>`

func extractFixture(t *testing.T, html string) *models.ExtractionResult {
	t.Helper()
	snap, err := classify.NewSnapshot("https://www.amazon.com/dp/B0TESTASIN1", 200, html)
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	return New().Extract(snap)
}

func TestExtractProductFields(t *testing.T) {
	result := extractFixture(t, productFixture)

	if result.Title != "Acme Widget Deluxe, 2-Pack" {
		t.Errorf("Title = %q (whitespace must be normalized)", result.Title)
	}
	if result.Brand != "Acme" {
		t.Errorf("Brand = %q, want %q", result.Brand, "Acme")
	}
	if result.ItemForm != "Powder" {
		t.Errorf("ItemForm = %q, want %q", result.ItemForm, "Powder")
	}
	if result.Price != "$19.99" {
		t.Errorf("Price = %q, want %q", result.Price, "$19.99")
	}
	if len(result.Bullets) != 2 || result.Bullets[0] != "Durable construction" {
		t.Errorf("Bullets = %v", result.Bullets)
	}
	if result.Description == models.Unspecified {
		t.Error("Description missing")
	}
	if result.DescriptionMarkdown == models.Unspecified {
		t.Error("DescriptionMarkdown missing")
	}
	if result.Rating != "4.6" {
		t.Errorf("Rating = %q, want %q", result.Rating, "4.6")
	}
	if result.ReviewCount != "1,234" {
		t.Errorf("ReviewCount = %q, want %q", result.ReviewCount, "1,234")
	}
	if result.AvailabilityDate != "March 5, 2023" {
		t.Errorf("AvailabilityDate = %q", result.AvailabilityDate)
	}
	if result.PrimaryRank.Rank != "1,024" {
		t.Errorf("PrimaryRank = %+v", result.PrimaryRank)
	}
	if result.SecondaryRank.Rank != "37" {
		t.Errorf("SecondaryRank = %+v", result.SecondaryRank)
	}
}

func TestExtractFallsBackThroughChains(t *testing.T) {
	html := `<html><head>
	<title>Fallback Widget</title>
	<meta name="title" content="Meta Fallback Widget"/>
	</head><body>
	<table><tr><th>Brand</th><td>FallbackCo</td></tr></table>
	<ul><li>Item Form: Liquid</li></ul>
	</body></html>`
	result := extractFixture(t, html)

	if result.Title != "Meta Fallback Widget" {
		t.Errorf("Title = %q, want meta fallback", result.Title)
	}
	if result.Brand != "FallbackCo" {
		t.Errorf("Brand = %q, want label-scan fallback", result.Brand)
	}
	if result.ItemForm != "Liquid" {
		t.Errorf("ItemForm = %q, want bullet fallback", result.ItemForm)
	}
}

func TestExtractAbsentFieldsStaySentinel(t *testing.T) {
	result := extractFixture(t, `<html><head><title>t</title></head><body><p>bare</p></body></html>`)

	for name, got := range map[string]string{
		"Brand":            result.Brand,
		"ItemForm":         result.ItemForm,
		"Price":            result.Price,
		"Rating":           result.Rating,
		"ReviewCount":      result.ReviewCount,
		"AvailabilityDate": result.AvailabilityDate,
		"MainImage":        result.MainImage,
		"Description":      result.Description,
	} {
		if got != models.Unspecified {
			t.Errorf("%s = %q, want the sentinel", name, got)
		}
	}
	if result.PrimaryRank.Rank != models.Unspecified {
		t.Errorf("PrimaryRank = %+v, want sentinel", result.PrimaryRank)
	}
}

func TestExtractBorrowsCurrencySymbol(t *testing.T) {
	html := `<html><body>
	<div id="corePrice_feature_div">
	  <span class="a-price"><span class="a-price-symbol">$</span><span class="a-offscreen">24.99</span></span>
	</div>
	</body></html>`
	result := extractFixture(t, html)
	if result.Price != "$24.99" {
		t.Errorf("Price = %q, want borrowed symbol form", result.Price)
	}
}
