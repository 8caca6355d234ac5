package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MinTitleLength   = 5
	MinContentLength = 10
	MaxTitleLength   = 200
)

// ValidatePostTitle checks the trimmed title length and returns the trimmed value.
func ValidatePostTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	n := utf8.RuneCountInString(title)
	if n < MinTitleLength {
		return "", fmt.Errorf("title must be at least %d characters", MinTitleLength)
	}
	if n > MaxTitleLength {
		return "", fmt.Errorf("title must not exceed %d characters", MaxTitleLength)
	}
	return title, nil
}

// ValidatePostContent checks the trimmed content length and returns the trimmed value.
func ValidatePostContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if utf8.RuneCountInString(content) < MinContentLength {
		return "", fmt.Errorf("content must be at least %d characters", MinContentLength)
	}
	return content, nil
}

// ValidateCommentText trims text and rejects it when nothing is left.
func ValidateCommentText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("comment text is required")
	}
	return text, nil
}
