package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// ParsedSpecs holds best-effort fields recovered from listing free text.
// Empty/zero fields simply mean no confident match.
type ParsedSpecs struct {
	Manufacturer string
	ModelNumber  string
	CPUModel     string
	RAMGB        int
	StorageGB    int
}

// knownBrands are matched case-insensitively as whole words in title text.
var knownBrands = []string{
	"Dell", "Lenovo", "HP", "Apple", "ASUS", "Acer", "MSI",
	"Samsung", "Microsoft", "Toshiba", "Razer", "Alienware",
	"LG", "Gigabyte", "Fujitsu", "Panasonic",
}

var brandPatterns = func() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(knownBrands))
	for i, brand := range knownBrands {
		patterns[i] = regexp.MustCompile(`(?i)\b` + brand + `\b`)
	}
	return patterns
}()

// modelFamilies maps a brand's product-line token to a pattern capturing the
// model designation that follows it.
var modelFamilies = []struct {
	pattern *regexp.Regexp
}{
	{regexp.MustCompile(`(?i)\b(ThinkPad\s+[A-Z]\d{2,3}[a-z]?s?)\b`)},
	{regexp.MustCompile(`(?i)\b(Latitude\s+\d{4})\b`)},
	{regexp.MustCompile(`(?i)\b(Precision\s+\d{4})\b`)},
	{regexp.MustCompile(`(?i)\b(XPS\s+\d{2})\b`)},
	{regexp.MustCompile(`(?i)\b(EliteBook\s+\d{3,4}\s?G\d)\b`)},
	{regexp.MustCompile(`(?i)\b(ProBook\s+\d{3,4}\s?G\d)\b`)},
	{regexp.MustCompile(`(?i)\b(IdeaPad\s+[A-Za-z0-9-]+)\b`)},
	{regexp.MustCompile(`(?i)\b(MacBook\s+(?:Pro|Air)\s+\d{2})\b`)},
	{regexp.MustCompile(`(?i)\b(Surface\s+(?:Pro|Laptop)\s+\d)\b`)},
	{regexp.MustCompile(`(?i)\b(OptiPlex\s+\d{4})\b`)},
	{regexp.MustCompile(`(?i)\b(ThinkCentre\s+[A-Z]\d{2,3}[a-z]?)\b`)},
}

var cpuPatterns = []*regexp.Regexp{
	// Intel Core i3/i5/i7/i9, e.g. "i7-8650U", "Core i5 10210U", "i7-1185G7"
	regexp.MustCompile(`(?i)\b(?:intel\s+)?(?:core\s+)?(i[3579])[\s-]?(\d{4,5}[A-Z]{0,2}\d?)\b`),
	// Intel Xeon, e.g. "Xeon E5-2680 v4"
	regexp.MustCompile(`(?i)\b(xeon)\s+([EWD]\d?-?\d{4}[A-Za-z]?(?:\s?v\d)?)\b`),
	// AMD Ryzen, e.g. "Ryzen 7 5800X", "Ryzen 5 PRO 4650U"
	regexp.MustCompile(`(?i)\b(ryzen)\s+([3579])\s+(?:pro\s+)?(\d{4}[A-Z]{0,2})\b`),
	// Apple silicon, e.g. "M1 Pro", "M2", "M3 Max"
	regexp.MustCompile(`(?i)\bapple\s+(m[1-4])(\s+(?:pro|max|ultra))?\b`),
}

var (
	ramPattern = regexp.MustCompile(`(?i)\b(\d{1,3})\s?GB\s?(?:DDR\d[A-Z]*|RAM|Memory)\b`)

	storageGBPattern = regexp.MustCompile(`(?i)\b(\d{2,4})\s?GB\s?(?:SSD|HDD|NVMe|eMMC|Storage|Hard\s?Drive)\b`)
	storageTBPattern = regexp.MustCompile(`(?i)\b(\d{1,2})\s?TB\b`)
)

const gbPerTB = 1000

// ParseSpecs scans listing free text (title plus description) for brand, model
// number, CPU model, RAM, and storage. Parsing is best-effort and never
// fails: a no-match just leaves the field empty.
func ParseSpecs(text string) ParsedSpecs {
	specs := ParsedSpecs{}

	for i, pattern := range brandPatterns {
		if pattern.MatchString(text) {
			specs.Manufacturer = knownBrands[i]
			break
		}
	}

	for _, family := range modelFamilies {
		if m := family.pattern.FindStringSubmatch(text); m != nil {
			specs.ModelNumber = collapseSpaces(m[1])
			break
		}
	}

	specs.CPUModel = parseCPU(text)

	if m := ramPattern.FindStringSubmatch(text); m != nil {
		specs.RAMGB, _ = strconv.Atoi(m[1])
	}

	if m := storageGBPattern.FindStringSubmatch(text); m != nil {
		specs.StorageGB, _ = strconv.Atoi(m[1])
	} else if m := storageTBPattern.FindStringSubmatch(text); m != nil {
		tb, _ := strconv.Atoi(m[1])
		specs.StorageGB = tb * gbPerTB
	}

	return specs
}

func parseCPU(text string) string {
	for _, pattern := range cpuPatterns {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}

		parts := make([]string, 0, len(m)-1)
		for _, part := range m[1:] {
			part = strings.TrimSpace(part)
			if part != "" {
				parts = append(parts, part)
			}
		}
		return canonicalCPUCase(strings.Join(parts, "-"))
	}
	return ""
}

// canonicalCPUCase normalises the matched token casing: "I7-8650u" ->
// "i7-8650U", "ryzen-7-5800x" -> "Ryzen-7-5800X".
func canonicalCPUCase(cpu string) string {
	lower := strings.ToLower(cpu)
	switch {
	case strings.HasPrefix(lower, "i3"), strings.HasPrefix(lower, "i5"),
		strings.HasPrefix(lower, "i7"), strings.HasPrefix(lower, "i9"):
		return lower[:2] + strings.ToUpper(lower[2:])
	case strings.HasPrefix(lower, "xeon"):
		return "Xeon" + strings.ToUpper(lower[4:])
	case strings.HasPrefix(lower, "ryzen"):
		return "Ryzen" + strings.ToUpper(lower[5:])
	case strings.HasPrefix(lower, "m"):
		return strings.ToUpper(lower[:2]) + lower[2:]
	default:
		return cpu
	}
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
