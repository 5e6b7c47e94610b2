package pipeline

import (
	"strings"
	"testing"

	"github.com/hitoshi/pinflow/internal/model"
)

func TestPinBuilder_BuildTrackedLink_AppendsWithAmpersand(t *testing.T) {
	b := NewPinBuilder("Amazon Finds")

	link := b.BuildTrackedLink("https://www.amazon.com/dp/B001/?tag=mytag-20", "B001")

	if !strings.Contains(link, "?tag=mytag-20&utm_source=pinterest") {
		t.Errorf("expected existing query to be joined with &, got %q", link)
	}
	if !strings.Contains(link, "utm_medium=pin") {
		t.Errorf("expected utm_medium=pin in %q", link)
	}
	if !strings.Contains(link, "utm_campaign=amazon_automation") {
		t.Errorf("expected utm_campaign=amazon_automation in %q", link)
	}
	if !strings.HasSuffix(link, "utm_content=B001") {
		t.Errorf("expected utm_content=B001 suffix in %q", link)
	}
}

func TestPinBuilder_BuildTrackedLink_AppendsWithQuestionMark(t *testing.T) {
	b := NewPinBuilder("Amazon Finds")

	link := b.BuildTrackedLink("https://www.amazon.com/dp/B001", "B001")

	if !strings.Contains(link, "/dp/B001?utm_source=pinterest") {
		t.Errorf("expected bare link to be joined with ?, got %q", link)
	}
}

func TestPinBuilder_DecorateTitle(t *testing.T) {
	b := NewPinBuilder("Amazon Finds")

	bestSeller := b.DecorateTitle(&model.CatalogItem{Title: "Instant Pot", BestSeller: true})
	if bestSeller != "🔥 Instant Pot - Amazon Best Seller!" {
		t.Errorf("title = %q, want best seller decoration", bestSeller)
	}

	regular := b.DecorateTitle(&model.CatalogItem{Title: "Wall Art", BestSeller: false})
	if regular != "✨ Wall Art" {
		t.Errorf("title = %q, want regular decoration", regular)
	}
}

func TestPinBuilder_BuildDescription_AllFields(t *testing.T) {
	b := NewPinBuilder("Amazon Finds")
	item := &model.CatalogItem{
		Title:       "Instant Pot",
		Description: "7-in-1 pressure cooker.",
		Price:       89.95,
		Rating:      4.7,
		Category:    "kitchen gadgets",
	}

	desc := b.BuildDescription(item)

	if !strings.Contains(desc, "7-in-1 pressure cooker.") {
		t.Error("expected product description in body")
	}
	if !strings.Contains(desc, "💰 Price: $89.95") {
		t.Errorf("expected price line in body, got %q", desc)
	}
	if !strings.Contains(desc, "⭐ Rating: 4.7/5") {
		t.Errorf("expected rating line in body, got %q", desc)
	}
	if !strings.Contains(desc, "🛒 Click link to buy on Amazon!") {
		t.Error("expected call to action in body")
	}
	if !strings.Contains(desc, "#kitchengadgets") {
		t.Errorf("expected category hashtag without spaces, got %q", desc)
	}
	for _, tag := range []string{"#AmazonFinds", "#BestProducts", "#MustHave"} {
		if !strings.Contains(desc, tag) {
			t.Errorf("expected %q in body", tag)
		}
	}
	for _, tag := range []string{"#GiftIdeas", "#ShoppingDeals"} {
		if strings.Contains(desc, tag) {
			t.Errorf("unexpected %q in body (only first 3 pool tags are used)", tag)
		}
	}
}

func TestPinBuilder_BuildDescription_OmitsConditionalLines(t *testing.T) {
	b := NewPinBuilder("Amazon Finds")
	item := &model.CatalogItem{
		Title:    "Mystery Product",
		Price:    0,
		Rating:   3.9,
		Category: "",
	}

	desc := b.BuildDescription(item)

	if strings.Contains(desc, "💰 Price:") {
		t.Error("unexpected price line for zero price")
	}
	if strings.Contains(desc, "⭐ Rating:") {
		t.Error("unexpected rating line for rating below 4.0")
	}
	if !strings.Contains(desc, "🛒 Click link to buy on Amazon!") {
		t.Error("expected call to action in body")
	}
}

func TestPinBuilder_Build(t *testing.T) {
	b := NewPinBuilder("Amazon Finds")
	item := &model.CatalogItem{
		ASIN:          "B001",
		Title:         "Wall Art",
		Description:   "Canvas print set.",
		Price:         49.99,
		Rating:        4.6,
		Category:      "home decor",
		AffiliateLink: "https://www.amazon.com/dp/B001/?tag=mytag-20",
	}

	pin := b.Build(item, "https://images.example.com/prepared.jpg")

	if pin.BoardName != "Amazon Finds" {
		t.Errorf("BoardName = %q, want %q", pin.BoardName, "Amazon Finds")
	}
	if pin.ImageRef != "https://images.example.com/prepared.jpg" {
		t.Errorf("ImageRef = %q, want prepared image", pin.ImageRef)
	}
	if !strings.Contains(pin.Link, "utm_content=B001") {
		t.Errorf("expected tracked link, got %q", pin.Link)
	}
}

func TestBuildHashtags_NormalizesCategory(t *testing.T) {
	tags := buildHashtags("home & garden")
	if tags[0] != "#homegarden" {
		t.Errorf("tags[0] = %q, want %q", tags[0], "#homegarden")
	}
	if len(tags) != 4 {
		t.Errorf("tags length = %d, want 4", len(tags))
	}
}
