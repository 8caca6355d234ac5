package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePostFields(t *testing.T) {
	t.Parallel()

	title, err := ValidatePostTitle("  Hello World Title  ")
	require.NoError(t, err)
	assert.Equal(t, "Hello World Title", title)

	_, err = ValidatePostTitle("   Hey    ")
	assert.Error(t, err)

	content, err := ValidatePostContent("This is body text")
	require.NoError(t, err)
	assert.Equal(t, "This is body text", content)

	_, err = ValidatePostContent("  too short ")
	assert.Error(t, err)
}

func TestValidateCommentText(t *testing.T) {
	t.Parallel()

	text, err := ValidateCommentText("  nice post \n")
	require.NoError(t, err)
	assert.Equal(t, "nice post", text)

	_, err = ValidateCommentText(" \t\n ")
	assert.Error(t, err)
}
