package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRSS = `<?xml version="1.0"?>
<rss version="2.0"><channel>
<title>Example Feed</title>
<item>
  <title>First story</title>
  <link>https://example.com/first</link>
  <description>First description</description>
</item>
<item>
  <title>Second story</title>
  <link>https://example.com/second</link>
  <content:encoded xmlns:content="http://purl.org/rss/1.0/modules/content/">Second full content</content:encoded>
</item>
</channel></rss>`

func TestExtractRSS_ParsesItems(t *testing.T) {
	items := ExtractRSS([]byte(sampleRSS))
	require.Len(t, items, 2)
	assert.Equal(t, "First story", items[0].Title)
	assert.Equal(t, "https://example.com/first", items[0].URL)
	assert.Equal(t, "First description", items[0].Description)
}

func TestExtractRSS_InvalidBodyReturnsNil(t *testing.T) {
	items := ExtractRSS([]byte("not a feed"))
	assert.Nil(t, items)
}
