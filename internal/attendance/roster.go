package attendance

import (
	"context"
	"fmt"
	"strings"

	"github.com/kozaktomas/roll-call/internal/identity"
)

var referenceExtensions = []string{".jpg", ".jpeg", ".png"}

// IsReferenceImage reports whether key names a supported reference image.
func IsReferenceImage(key string) bool {
	lower := strings.ToLower(key)
	for _, ext := range referenceExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// LoadRoster lists the reference image keys stored under a batch, in lexical order.
func LoadRoster(ctx context.Context, store ObjectReader, batch string) ([]string, error) {
	prefix := identity.BatchPrefix(batch)
	keys, err := store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list roster %q: %w", prefix, err)
	}

	roster := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == prefix || !IsReferenceImage(k) {
			continue
		}
		roster = append(roster, k)
	}
	return roster, nil
}
