package validation

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

const (
	MaxTitleLen          = 300
	MaxPostContentLen    = 50000
	MaxCommentContentLen = 10000
	MaxTags              = 20
	MaxTagLen            = 50
)

// ValidateTitle checks a trimmed post title.
func ValidateTitle(title string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(title))
	if n == 0 {
		return fmt.Errorf("title is required")
	}
	if n > MaxTitleLen {
		return fmt.Errorf("title too long (max %d characters)", MaxTitleLen)
	}
	return nil
}

// ValidatePostContent checks a post body.
func ValidatePostContent(content string) error {
	return validateText("content", content, MaxPostContentLen)
}

// ValidateCommentContent checks a comment body after sanitizing.
func ValidateCommentContent(content string) error {
	return validateText("content", content, MaxCommentContentLen)
}

func validateText(field, s string, max int) error {
	n := utf8.RuneCountInString(strings.TrimSpace(s))
	if n == 0 {
		return fmt.Errorf("%s is required", field)
	}
	if n > max {
		return fmt.Errorf("%s too long (max %d characters)", field, max)
	}
	return nil
}

// NormalizeTags trims, lowercases and de-duplicates tags, keeping first-seen order.
func NormalizeTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if utf8.RuneCountInString(tag) > MaxTagLen {
			return nil, fmt.Errorf("tag %q too long (max %d characters)", tag, MaxTagLen)
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	if len(out) > MaxTags {
		return nil, fmt.Errorf("too many tags (max %d)", MaxTags)
	}
	return out, nil
}

// ValidateImageURL accepts absolute http(s) URLs.
func ValidateImageURL(raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("must be an absolute http(s) URL")
	}
	return nil
}
