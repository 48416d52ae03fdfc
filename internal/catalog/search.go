// Package catalog filters, searches and caches the product catalog.
package catalog

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/pricing"
)

// Sort names an ordering of search results.
type Sort string

const (
	SortRelevance Sort = "relevance"
	SortPriceAsc  Sort = "price_asc"
	SortPriceDesc Sort = "price_desc"
	SortDiscount  Sort = "discount"
	SortPopular   Sort = "popular"
	SortNewest    Sort = "newest"
)

// MaxSuggestions caps Suggest results.
const MaxSuggestions = 5

// ParseSort maps a query value to a Sort. Unknown values fall back to relevance.
func ParseSort(value string) Sort {
	switch s := Sort(strings.ToLower(strings.TrimSpace(value))); s {
	case SortPriceAsc, SortPriceDesc, SortDiscount, SortPopular, SortNewest:
		return s
	default:
		return SortRelevance
	}
}

// Params are the AND-combined search inputs. Zero values disable a filter.
type Params struct {
	Query       string
	Categories  []string
	MinPrice    *decimal.Decimal
	MaxPrice    *decimal.Decimal
	MinDiscount int
	Sort        Sort
}

// Matches reports whether the product name, category or description contains
// query, ignoring case. A blank query matches everything.
func Matches(p models.Product, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.Name), q) ||
		strings.Contains(strings.ToLower(p.CategoryName()), q) ||
		strings.Contains(strings.ToLower(p.DescriptionText()), q)
}

// Search returns the matching products in the requested order. The input is
// never modified and the result is never nil.
func Search(products []models.Product, params Params) []models.Product {
	categories := categorySet(params.Categories)
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if !Matches(p, params.Query) {
			continue
		}
		if len(categories) > 0 {
			if _, ok := categories[strings.ToLower(strings.TrimSpace(p.CategoryName()))]; !ok {
				continue
			}
		}
		price := pricing.EffectivePrice(p.Price, p.DiscountPercent)
		if params.MinPrice != nil && price.LessThan(*params.MinPrice) {
			continue
		}
		if params.MaxPrice != nil && price.GreaterThan(*params.MaxPrice) {
			continue
		}
		if pricing.ClampDiscount(p.DiscountPercent) < params.MinDiscount {
			continue
		}
		out = append(out, p)
	}

	sortProducts(out, params.Sort, params.Query)
	return out
}

// Suggest returns up to limit matches in input order. Limits above
// MaxSuggestions are capped and a blank query suggests nothing.
func Suggest(products []models.Product, query string, limit int) []models.Product {
	out := []models.Product{}
	if strings.TrimSpace(query) == "" {
		return out
	}
	if limit <= 0 || limit > MaxSuggestions {
		limit = MaxSuggestions
	}
	for _, p := range products {
		if len(out) == limit {
			break
		}
		if Matches(p, query) {
			out = append(out, p)
		}
	}
	return out
}

// Categories lists the distinct non-empty categories, sorted without regard
// to case. The first spelling seen wins.
func Categories(products []models.Product) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, p := range products {
		name := strings.TrimSpace(p.CategoryName())
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i]) < strings.ToLower(out[j])
	})
	return out
}

func categorySet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

func sortProducts(products []models.Product, by Sort, query string) {
	switch ParseSort(string(by)) {
	case SortPriceAsc:
		sort.SliceStable(products, func(i, j int) bool {
			return effective(products[i]).LessThan(effective(products[j]))
		})
	case SortPriceDesc:
		sort.SliceStable(products, func(i, j int) bool {
			return effective(products[i]).GreaterThan(effective(products[j]))
		})
	case SortDiscount:
		sort.SliceStable(products, func(i, j int) bool {
			return pricing.ClampDiscount(products[i].DiscountPercent) > pricing.ClampDiscount(products[j].DiscountPercent)
		})
	case SortPopular:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].Popular && !products[j].Popular
		})
	case SortNewest:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].CreatedAt.After(products[j].CreatedAt)
		})
	default:
		q := strings.ToLower(strings.TrimSpace(query))
		if q == "" {
			return
		}
		sort.SliceStable(products, func(i, j int) bool {
			return relevanceTier(products[i], q) < relevanceTier(products[j], q)
		})
	}
}

// relevanceTier ranks an exact name match first, then a partial name match,
// then everything else.
func relevanceTier(p models.Product, q string) int {
	name := strings.ToLower(strings.TrimSpace(p.Name))
	switch {
	case name == q:
		return 0
	case strings.Contains(name, q):
		return 1
	default:
		return 2
	}
}

func effective(p models.Product) decimal.Decimal {
	return pricing.EffectivePrice(p.Price, p.DiscountPercent)
}
