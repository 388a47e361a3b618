package stores

import (
	"golang.org/x/time/rate"

	"github.com/matpris/backend/internal/domain"
	"github.com/matpris/backend/internal/infrastructure/browser"
)

// NewOda creates the Oda search source. Oda's search page talks to a JSON
// API, so structured extraction almost always wins; the card selector is
// kept as the fallback for layout experiments that bypass the API shape.
func NewOda(session *browser.Session) *Source {
	return &Source{
		store:     domain.StoreOda,
		session:   session,
		limiter:   rate.NewLimiter(rate.Limit(0.5), 2),
		searchURL: "https://oda.com/no/search/products/?q=%s",
		logTag:    "[ODA]",
		payload: payloadSpec{
			urlHint:    "search",
			containers: []string{"products", "data.products", "results", "items", "data.items"},
			aliases: fieldAliases{
				"id":             {"id", "product_id", "sku"},
				"title":          {"full_name", "name", "title", "product_name"},
				"brand":          {"brand", "brand_name"},
				"price":          {"gross_price", "price", "current_price"},
				"unitPrice":      {"gross_unit_price_string", "unit_price_string", "unit_price"},
				"unitPriceValue": {"gross_unit_price"},
				"unitPriceUnit":  {"unit_price_quantity_abbreviation"},
				"packageSize":    {"name_extra", "size", "package_size", "quantity_text"},
				"imageUrl":       {"image_url", "image"},
				"url":            {"front_url", "absolute_url", "url"},
				"badges":         {"badges", "labels"},
			},
		},
		document: documentSpec{
			itemSelector: `article[data-testid="product-card"], article.product-card`,
		},
	}
}
