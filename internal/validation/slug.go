package validation

import (
	"fmt"
	"regexp"
)

// SlugPattern defines the allowed instance slug format: lowercase latin
// letters and digits only. Slugs end up in URLs and local file names, so
// the character set is deliberately narrow.
var SlugPattern = regexp.MustCompile(`^[a-z0-9]+$`)

// MaxSlugLen is the maximum slug length.
const MaxSlugLen = 63

// ValidateSlug checks that slug is non-empty, within length limits and
// matches SlugPattern.
func ValidateSlug(slug string) error {
	if slug == "" {
		return fmt.Errorf("slug cannot be empty")
	}

	if len(slug) > MaxSlugLen {
		return fmt.Errorf("slug must not exceed %d characters", MaxSlugLen)
	}

	if !SlugPattern.MatchString(slug) {
		return fmt.Errorf("slug can only contain lowercase letters (a-z) and digits (0-9)")
	}

	return nil
}
