package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

const imageFixture = `<html><body>
<img id="landingImage"
     data-old-hires="https://m.media-amazon.com/images/I/71abcdef._AC_SL1500_.jpg"
     data-a-dynamic-image='{"https://m.media-amazon.com/images/I/71abcdef._AC_SX425_.jpg":[425,425],"https://m.media-amazon.com/images/I/71abcdef._AC_SX679_.jpg":[679,679]}'
     src="https://m.media-amazon.com/images/I/71abcdef._AC_SX300_.jpg"/>
<script type="text/javascript">
P.when('A').register("ImageBlockATF", function(A){
  var data = {
    'colorImages': { 'initial': [
      {"hiRes":"https://m.media-amazon.com/images/I/81second._AC_SL1500_.jpg","large":"https://m.media-amazon.com/images/I/81second._AC_SL1000_.jpg"},
      {"hiRes":null,"large":"https://m.media-amazon.com/images/I/91third._AC_SL1000_.jpg"}
    ]},
    'colorToAsin': {'initial': {}}
  };
  return data;
});
</script>
<img src="https://m.media-amazon.com/images/G/01/nav-sprite._AC_SL1500_.png"/>
<div>https://m.media-amazon.com/images/I/41sweep._AC_SL1200_.jpg</div>
<div>https://m.media-amazon.com/images/I/icon-play-button._AC_SL1000_.jpg</div>
</body></html>`

func imageDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}

func TestImagesPriorityAndFiltering(t *testing.T) {
	doc := imageDoc(t, imageFixture)
	primary, others := Images(doc, imageFixture)

	// The dedicated hi-res attribute wins the primary slot.
	wantPrimary := "https://m.media-amazon.com/images/I/71abcdef._AC_SL1500_.jpg"
	if primary != wantPrimary {
		t.Errorf("primary = %q, want %q", primary, wantPrimary)
	}

	// The primary is never a member of the secondary set.
	for _, u := range others {
		if u == primary {
			t.Errorf("secondary set contains the primary image %q", u)
		}
	}

	// Sprite/icon naming patterns never survive the filter.
	for _, u := range others {
		if strings.Contains(u, "sprite") || strings.Contains(u, "play-button") || strings.Contains(u, "/G/01/") {
			t.Errorf("icon-like candidate survived filtering: %q", u)
		}
	}

	// The gallery fragment and the hi-res sweep both contribute.
	joined := strings.Join(others, " ")
	for _, want := range []string{"81second._AC_SL1500_", "91third._AC_SL1000_", "41sweep._AC_SL1200_"} {
		if !strings.Contains(joined, want) {
			t.Errorf("secondary set missing expected candidate %q: %v", want, others)
		}
	}
}

func TestImagesDeduplicates(t *testing.T) {
	html := `<html><body>
	<img id="landingImage" data-old-hires="https://m.media-amazon.com/images/I/dup._AC_SL1500_.jpg"/>
	<div>https://m.media-amazon.com/images/I/dup._AC_SL1500_.jpg</div>
	</body></html>`
	doc := imageDoc(t, html)
	primary, others := Images(doc, html)

	if primary != "https://m.media-amazon.com/images/I/dup._AC_SL1500_.jpg" {
		t.Fatalf("primary = %q", primary)
	}
	if len(others) != 0 {
		t.Errorf("duplicate candidate not removed: %v", others)
	}
}

func TestImagesEmptyPage(t *testing.T) {
	html := `<html><body><p>no images here</p></body></html>`
	doc := imageDoc(t, html)
	primary, others := Images(doc, html)
	if primary != "" || len(others) != 0 {
		t.Errorf("expected no candidates, got %q / %v", primary, others)
	}
}

func TestDynamicImageURLsOrderedByArea(t *testing.T) {
	attr := `{"https://img/small.jpg":[100,100],"https://img/big.jpg":[1000,1000],"https://img/mid.jpg":[500,500]}`
	urls := dynamicImageURLs(attr)
	want := []string{"https://img/big.jpg", "https://img/mid.jpg", "https://img/small.jpg"}
	if len(urls) != len(want) {
		t.Fatalf("got %d urls, want %d", len(urls), len(want))
	}
	for i := range want {
		if urls[i] != want[i] {
			t.Errorf("urls[%d] = %q, want %q", i, urls[i], want[i])
		}
	}
}
