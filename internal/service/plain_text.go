package service

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/noah-isme/docflow-api/pkg/apperror"
)

const (
	maxTitleLength = 255
	maxPathLength  = 512
)

// plainText strips markup from value and keeps its literal characters.
// StrictPolicy entity-encodes what it keeps, so the result is unescaped.
func plainText(policy *bluemonday.Policy, value string) string {
	return strings.TrimSpace(html.UnescapeString(policy.Sanitize(value)))
}

// plainTextField is plainText plus a length check on the stored value.
func plainTextField(policy *bluemonday.Policy, field, value string, maxLength int) (string, error) {
	cleaned := plainText(policy, value)
	if utf8.RuneCountInString(cleaned) > maxLength {
		return "", apperror.NewValidation(field, fmt.Sprintf("must be at most %d characters", maxLength))
	}
	return cleaned, nil
}
