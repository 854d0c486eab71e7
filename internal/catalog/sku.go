package catalog

import (
	"strings"

	"github.com/google/uuid"
)

const (
	skuPlaceholder   = "XXX"
	skuPrefixLength  = 3
	skuSuffixLength  = 8
	skuMaxGeneration = 5
)

// GenerateSKU derives a SKU from the first three characters of category (or a
// placeholder when empty) and eight random hex digits, upper-cased.
func GenerateSKU(category string) string {
	prefix := skuPlaceholder
	if category != "" {
		runes := []rune(category)
		if len(runes) > skuPrefixLength {
			runes = runes[:skuPrefixLength]
		}
		prefix = string(runes)
	}
	suffix := uuid.NewString()[:skuSuffixLength]
	return strings.ToUpper(prefix + "-" + suffix)
}
