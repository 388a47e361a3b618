package stores

import (
	"golang.org/x/time/rate"

	"github.com/matpris/backend/internal/domain"
	"github.com/matpris/backend/internal/infrastructure/browser"
)

// NewMeny creates the Meny search source. Meny renders most of its search
// results client-side, so the document fallback carries more weight here
// than for Oda.
func NewMeny(session *browser.Session) *Source {
	return &Source{
		store:     domain.StoreMeny,
		session:   session,
		limiter:   rate.NewLimiter(rate.Limit(0.5), 2),
		searchURL: "https://meny.no/sok/?search=%s",
		logTag:    "[MENY]",
		payload: payloadSpec{
			urlHint:    "search",
			containers: []string{"products", "data.products", "results", "hits", "items"},
			aliases: fieldAliases{
				"id":             {"ean", "id", "productId", "sku"},
				"title":          {"title", "name", "productName"},
				"brand":          {"brand", "vendor"},
				"price":          {"pricePerUnit", "price", "currentPrice"},
				"unitPrice":      {"comparePriceText", "unitPriceText", "compare_price_text"},
				"unitPriceValue": {"comparePrice", "compare_price"},
				"unitPriceUnit":  {"compareUnit", "compare_unit"},
				"packageSize":    {"subtitle", "packageSize", "size", "weight"},
				"imageUrl":       {"imageUrl", "image"},
				"url":            {"url", "slug", "link"},
				"badges":         {"badges", "labels", "shoppingListGroups"},
			},
		},
		document: documentSpec{
			itemSelector: `[data-testid="product-card"], li.product-list-item, article.product-item`,
		},
	}
}
