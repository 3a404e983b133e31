package labeler

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"feedpulse/internal/core/domain"
)

const (
	maxIdentityTags = 2
	maxThemeTags    = 2
	maxExtraTags    = 2
	maxExtraTagLen  = 6
)

// ErrInvalidLabelSet indicates the model output violates the tag contract.
var ErrInvalidLabelSet = errors.New("invalid label set")

// ValidateLabelSet enforces the tag contract on model output: one or two
// identity tags from the closed vocabulary, at most two theme tags from
// the closed vocabulary, and at most two short free-form extra tags.
func ValidateLabelSet(set *domain.LabelSet) error {
	if set == nil {
		return fmt.Errorf("%w: nil", ErrInvalidLabelSet)
	}

	if len(set.Identities) == 0 || len(set.Identities) > maxIdentityTags {
		return fmt.Errorf("%w: expected 1-%d identity tags, got %d", ErrInvalidLabelSet, maxIdentityTags, len(set.Identities))
	}

	for _, tag := range set.Identities {
		if !contains(domain.IdentityTags, tag) {
			return fmt.Errorf("%w: unknown identity tag %q", ErrInvalidLabelSet, tag)
		}
	}

	if len(set.Themes) > maxThemeTags {
		return fmt.Errorf("%w: at most %d theme tags, got %d", ErrInvalidLabelSet, maxThemeTags, len(set.Themes))
	}

	for _, tag := range set.Themes {
		if !contains(domain.ThemeTags, tag) {
			return fmt.Errorf("%w: unknown theme tag %q", ErrInvalidLabelSet, tag)
		}
	}

	if len(set.Extra) > maxExtraTags {
		return fmt.Errorf("%w: at most %d extra tags, got %d", ErrInvalidLabelSet, maxExtraTags, len(set.Extra))
	}

	for _, tag := range set.Extra {
		if tag == "" || utf8.RuneCountInString(tag) > maxExtraTagLen {
			return fmt.Errorf("%w: extra tag %q exceeds %d characters", ErrInvalidLabelSet, tag, maxExtraTagLen)
		}
	}

	return nil
}

func contains(vocabulary []string, tag string) bool {
	for _, v := range vocabulary {
		if v == tag {
			return true
		}
	}

	return false
}
