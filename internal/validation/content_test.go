package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTitleAndContent(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateTitle("Hello"))
	assert.Error(t, ValidateTitle("   "))
	assert.NoError(t, ValidateTitle(strings.Repeat("é", MaxTitleLen)))
	assert.Error(t, ValidateTitle(strings.Repeat("a", MaxTitleLen+1)))

	assert.NoError(t, ValidatePostContent("body"))
	assert.Error(t, ValidatePostContent(""))
	assert.Error(t, ValidatePostContent(strings.Repeat("a", MaxPostContentLen+1)))

	assert.Error(t, ValidateCommentContent("\n\t"))
	assert.Error(t, ValidateCommentContent(strings.Repeat("a", MaxCommentContentLen+1)))
}

func TestNormalizeTags(t *testing.T) {
	t.Parallel()
	tags, err := NormalizeTags([]string{" Go ", "web", "", "go", "WEB", "api"})
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "web", "api"}, tags)

	empty, err := NormalizeTags(nil)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = NormalizeTags([]string{strings.Repeat("t", MaxTagLen+1)})
	assert.Error(t, err)

	many := make([]string, MaxTags+1)
	for i := range many {
		many[i] = strings.Repeat("x", i+1)
	}
	_, err = NormalizeTags(many)
	assert.Error(t, err)
}

func TestValidateImageURL(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateImageURL("https://cdn.example.com/a.png"))
	assert.Error(t, ValidateImageURL("ftp://example.com/a.png"))
	assert.Error(t, ValidateImageURL("/relative/a.png"))
	assert.Error(t, ValidateImageURL("javascript:alert(1)"))
}
