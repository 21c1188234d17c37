package service

import "storefront-gateway/internal/domain"

// extractor looks a field up in either the item or its first variant
type extractor func(item, variant domain.RawItem) (any, bool)

// fieldRule is an ordered list of extractors; the first present value wins
type fieldRule []extractor

func fromItem(key string) extractor {
	return func(item, _ domain.RawItem) (any, bool) {
		return item.Value(key)
	}
}

func fromVariant(key string) extractor {
	return func(_, variant domain.RawItem) (any, bool) {
		return variant.Value(key)
	}
}

func (r fieldRule) resolve(item, variant domain.RawItem) (any, bool) {
	for _, extract := range r {
		if v, ok := extract(item, variant); ok {
			return v, true
		}
	}
	return nil, false
}

// Field precedence for the canonical product. Upstream shapes are not under
// our control, so each list must stay in this exact order.
var (
	idRule = fieldRule{
		fromVariant("item_id"), fromVariant("id"),
		fromItem("item_group_id"), fromItem("item_id"),
	}
	nameRule = fieldRule{
		fromItem("item_name"), fromVariant("item_name"),
	}
	skuRule = fieldRule{
		fromVariant("item_code"), fromVariant("sku"),
	}
	priceRule = fieldRule{
		fromVariant("sell_price"), fromVariant("sellPrice"),
		fromItem("sell_price"), fromItem("sellPrice"),
	}
	stockRule = fieldRule{
		fromVariant("available_qty"), fromVariant("end_qty"), fromVariant("quantity_on_hand"),
		fromItem("available_qty"), fromItem("end_qty"), fromItem("quantity_on_hand"),
	}
	imageRule = fieldRule{
		fromVariant("thumbnail"), fromVariant("image"),
		fromItem("thumbnail"), fromItem("image_url"), fromItem("image"),
	}
	groupRule = fieldRule{
		fromItem("item_group_name"), fromItem("item_name"),
	}
	descriptionRule = fieldRule{
		fromItem("description"), fromItem("notes"),
	}
)

// Normalize maps a raw upstream item to the canonical product for list
// responses. Missing stock counts as 0. It never fails.
func Normalize(raw domain.RawItem) domain.Product {
	p := normalize(raw)
	if p.Stock == nil {
		zero := 0
		p.Stock = &zero
	}
	return p
}

// NormalizeDetail is Normalize for single-product responses, where a
// missing stock level is left unknown.
func NormalizeDetail(raw domain.RawItem) domain.Product {
	return normalize(unwrapDetail(raw))
}

func normalize(raw domain.RawItem) domain.Product {
	variant := raw.FirstVariant()

	p := domain.Product{
		ID:          resolveInt(idRule, raw, variant),
		Name:        resolveString(nameRule, raw, variant),
		SKU:         resolveString(skuRule, raw, variant),
		Description: resolveString(descriptionRule, raw, variant),
		Price:       resolvePrice(raw, variant),
	}

	if v, ok := stockRule.resolve(raw, variant); ok {
		n, _ := domain.Int(v)
		stock := int(n)
		p.Stock = &stock
	}
	if s, ok := resolveOptionalString(imageRule, raw, variant); ok {
		p.ImageURL = &s
	}
	if s, ok := resolveOptionalString(groupRule, raw, variant); ok {
		p.ItemGroupName = &s
	}
	return p
}

// unwrapDetail descends into a "data", "item" or "product" object when the
// detail payload is wrapped in one.
func unwrapDetail(raw domain.RawItem) domain.RawItem {
	for _, key := range []string{"data", "item", "product"} {
		if v, ok := raw.Value(key); ok {
			if inner, ok := v.(map[string]any); ok && len(inner) > 0 {
				return domain.RawItem(inner)
			}
		}
	}
	return raw
}

func resolveInt(rule fieldRule, item, variant domain.RawItem) int64 {
	v, ok := rule.resolve(item, variant)
	if !ok {
		return 0
	}
	n, _ := domain.Int(v)
	return n
}

func resolveString(rule fieldRule, item, variant domain.RawItem) string {
	s, _ := resolveOptionalString(rule, item, variant)
	return s
}

func resolveOptionalString(rule fieldRule, item, variant domain.RawItem) (string, bool) {
	v, ok := rule.resolve(item, variant)
	if !ok {
		return "", false
	}
	return domain.String(v)
}

// resolvePrice coerces the winning price to a non-negative float; text that
// does not parse becomes 0.
func resolvePrice(item, variant domain.RawItem) float64 {
	v, ok := priceRule.resolve(item, variant)
	if !ok {
		return 0
	}
	f, ok := domain.Float(v)
	if !ok || f < 0 {
		return 0
	}
	return f
}
