package adapter

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/domain"
)

// parseProductDocument extracts product data from a parsed HTML document,
// falling back across markup dialects: JSON-LD first, then microdata, then
// OpenGraph product tags. Returns false when no dialect yields a product.
func parseProductDocument(doc *goquery.Document, sourceURL string) (*RawExtraction, bool) {
	if ext, ok := parseJSONLD(doc, sourceURL); ok {
		return ext, true
	}
	if ext, ok := parseMicrodata(doc, sourceURL); ok {
		return ext, true
	}
	if ext, ok := parseOpenGraph(doc, sourceURL); ok {
		return ext, true
	}
	return nil, false
}

// parseJSONLD scans ld+json scripts for a schema.org Product node, including
// nodes nested in @graph containers and top-level arrays.
func parseJSONLD(doc *goquery.Document, sourceURL string) (*RawExtraction, bool) {
	var result *RawExtraction

	doc.Find("script[type='application/ld+json']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := s.Text()

		var node any
		if err := json.Unmarshal([]byte(raw), &node); err != nil {
			return true // malformed script, keep scanning
		}

		product, ok := findProductNode(node)
		if !ok {
			return true
		}

		result = productFromJSONLD(product, sourceURL)
		result.Payload = []byte(raw)
		result.PayloadKind = domain.PayloadStructured
		return false
	})

	return result, result != nil
}

// findProductNode walks a decoded JSON-LD value looking for an object whose
// @type is (or includes) Product.
func findProductNode(node any) (map[string]any, bool) {
	switch v := node.(type) {
	case map[string]any:
		if hasType(v, "Product") {
			return v, true
		}
		if graph, ok := v["@graph"]; ok {
			return findProductNode(graph)
		}
	case []any:
		for _, item := range v {
			if product, ok := findProductNode(item); ok {
				return product, true
			}
		}
	}
	return nil, false
}

func hasType(node map[string]any, want string) bool {
	switch t := node["@type"].(type) {
	case string:
		return t == want
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && s == want {
				return true
			}
		}
	}
	return false
}

func productFromJSONLD(product map[string]any, sourceURL string) *RawExtraction {
	ext := &RawExtraction{
		Title:        stringValue(product["name"]),
		Images:       imageList(product["image"]),
		VendorItemID: firstString(product["sku"], product["productID"]),
		Manufacturer: nameOrString(product["brand"]),
		ModelNumber:  stringValue(product["model"]),
		ConditionRaw: schemaConditionLabel(stringValue(product["itemCondition"])),
		Description:  stringValue(product["description"]),
		Marketplace:  domain.ExtractDomain(sourceURL),
		SourceURL:    sourceURL,
	}

	if offer, ok := firstOffer(product["offers"]); ok {
		ext.PriceRaw = stringValue(offer["price"])
		if ext.PriceRaw == "" {
			if spec, specOK := offer["priceSpecification"].(map[string]any); specOK {
				ext.PriceRaw = stringValue(spec["price"])
				if ext.Currency == "" {
					ext.Currency = stringValue(spec["priceCurrency"])
				}
			}
		}
		if ext.Currency == "" {
			ext.Currency = stringValue(offer["priceCurrency"])
		}
		if ext.Seller == "" {
			ext.Seller = nameOrString(offer["seller"])
		}
		if ext.ConditionRaw == "" {
			ext.ConditionRaw = schemaConditionLabel(stringValue(offer["itemCondition"]))
		}
	}

	return ext
}

// firstOffer unwraps offers that may be a single object, an array, or an
// AggregateOffer.
func firstOffer(offers any) (map[string]any, bool) {
	switch v := offers.(type) {
	case map[string]any:
		if nested, ok := v["offers"]; ok && stringValue(v["price"]) == "" {
			if inner, innerOK := firstOffer(nested); innerOK {
				return inner, true
			}
		}
		return v, true
	case []any:
		for _, item := range v {
			if offer, ok := item.(map[string]any); ok {
				return offer, true
			}
		}
	}
	return nil, false
}

// schemaConditionLabel reduces a schema.org condition URL to its label, e.g.
// "https://schema.org/NewCondition" -> "NewCondition".
func schemaConditionLabel(value string) string {
	if value == "" {
		return ""
	}
	if idx := strings.LastIndex(value, "/"); idx >= 0 {
		return value[idx+1:]
	}
	return value
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case json.Number:
		return s.String()
	}
	return ""
}

func firstString(values ...any) string {
	for _, v := range values {
		if s := stringValue(v); s != "" {
			return s
		}
	}
	return ""
}

// nameOrString handles values that may be a plain string or an object with a
// "name" property (Brand, Organization, Person).
func nameOrString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case map[string]any:
		return stringValue(val["name"])
	}
	return ""
}

// imageList handles image values that may be a string, a list, or ImageObject.
func imageList(v any) []string {
	switch val := v.(type) {
	case string:
		if s := strings.TrimSpace(val); s != "" {
			return []string{s}
		}
	case map[string]any:
		if s := stringValue(val["url"]); s != "" {
			return []string{s}
		}
	case []any:
		images := make([]string, 0, len(val))
		for _, item := range val {
			if s := firstString(item); s != "" {
				images = append(images, s)
			} else if obj, ok := item.(map[string]any); ok {
				if s := stringValue(obj["url"]); s != "" {
					images = append(images, s)
				}
			}
		}
		if len(images) > 0 {
			return images
		}
	}
	return nil
}

// parseMicrodata extracts a schema.org Product expressed as HTML microdata.
func parseMicrodata(doc *goquery.Document, sourceURL string) (*RawExtraction, bool) {
	product := doc.Find("[itemtype*='schema.org/Product']").First()
	if product.Length() == 0 {
		return nil, false
	}

	itemprop := func(name string) *goquery.Selection {
		return product.Find("[itemprop='" + name + "']").First()
	}

	propValue := func(name string) string {
		sel := itemprop(name)
		if sel.Length() == 0 {
			return ""
		}
		if content, ok := sel.Attr("content"); ok && content != "" {
			return strings.TrimSpace(content)
		}
		return strings.TrimSpace(sel.Text())
	}

	title := propValue("name")
	if title == "" {
		return nil, false
	}

	ext := &RawExtraction{
		Title:        title,
		PriceRaw:     propValue("price"),
		Currency:     propValue("priceCurrency"),
		ConditionRaw: schemaConditionLabel(propValue("itemCondition")),
		Seller:       propValue("seller"),
		VendorItemID: propValue("sku"),
		Manufacturer: propValue("brand"),
		ModelNumber:  propValue("model"),
		Description:  propValue("description"),
		Marketplace:  domain.ExtractDomain(sourceURL),
		SourceURL:    sourceURL,
	}

	if img, ok := itemprop("image").Attr("src"); ok {
		ext.Images = []string{img}
	} else if content, contentOK := itemprop("image").Attr("content"); contentOK {
		ext.Images = []string{content}
	}

	return ext, true
}

// parseOpenGraph is the last markup fallback: OG product meta tags carry far
// less detail but still yield title, price, and image.
func parseOpenGraph(doc *goquery.Document, sourceURL string) (*RawExtraction, bool) {
	meta := func(property string) string {
		content, _ := doc.Find("meta[property='" + property + "']").Attr("content")
		return strings.TrimSpace(content)
	}

	if ogType := meta("og:type"); !strings.Contains(ogType, "product") {
		return nil, false
	}

	title := meta("og:title")
	price := meta("product:price:amount")
	if title == "" || price == "" {
		return nil, false
	}

	ext := &RawExtraction{
		Title:        title,
		PriceRaw:     price,
		Currency:     meta("product:price:currency"),
		ConditionRaw: meta("product:condition"),
		Description:  meta("og:description"),
		Marketplace:  domain.ExtractDomain(sourceURL),
		SourceURL:    sourceURL,
	}
	if img := meta("og:image"); img != "" {
		ext.Images = []string{img}
	}

	return ext, true
}
