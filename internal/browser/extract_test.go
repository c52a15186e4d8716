package browser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replygate/internal/verify"
)

const rootPostPage = `<html><body><main>
<article data-testid="tweet" tabindex="-1">
  <div data-testid="User-Name">
    <span>Lifter Jane</span>
    <span>@lifter_jane</span>
  </div>
  <time datetime="2025-06-10T09:30:00.000Z">Jun 10</time>
  <div data-testid="tweetText"><span>Creatine timing doesn't matter.</span><br/><span>Take it whenever </span><img alt="💪"/></div>
</article>
</main></body></html>`

const replyDetailPage = `<html><body><main>
<article data-testid="tweet" tabindex="0">
  <div data-testid="User-Name"><span>Coach DB</span><span>@coach_db</span></div>
  <div data-testid="tweetText"><span>Original post about training volume.</span></div>
</article>
<article data-testid="tweet" tabindex="-1">
  <div><span>Replying to </span><a href="/coach_db">@coach_db</a></div>
  <div data-testid="User-Name"><span>Dr Feelgood</span><span>@drfeelgood</span></div>
  <div data-testid="tweetText"><span>Magnesium glycinate fixed my sleep inside a week.</span></div>
</article>
</main></body></html>`

const deletedNoticePage = `<html><body><main>
<div data-testid="error-detail"><span>Hmm...this page doesn’t exist. Try searching for something else.</span></div>
</main></body></html>`

const shellPage = `<html><body><main><div id="react-root"></div></main></body></html>`

func TestParsePostPageRootPost(t *testing.T) {
	parsed := parsePostPage(rootPostPage)

	require.Equal(t, pagePost, parsed.Kind)
	require.NotNil(t, parsed.Post)
	assert.Equal(t, "Creatine timing doesn't matter.\nTake it whenever 💪", parsed.Post.Text)
	assert.Equal(t, "lifter_jane", parsed.Post.AuthorHandle)
	assert.False(t, parsed.Post.IsReply)
	assert.True(t, parsed.Post.PostedAt.Equal(time.Date(2025, 6, 10, 9, 30, 0, 0, time.UTC)))
}

func TestParsePostPageReplyDetail(t *testing.T) {
	parsed := parsePostPage(replyDetailPage)

	require.Equal(t, pagePost, parsed.Kind)
	require.NotNil(t, parsed.Post)
	// The focal article carries tabindex="-1"; the ancestor above it must
	// not win even though it appears first in the document.
	assert.Equal(t, "Magnesium glycinate fixed my sleep inside a week.", parsed.Post.Text)
	assert.Equal(t, "drfeelgood", parsed.Post.AuthorHandle)
	assert.True(t, parsed.Post.IsReply)
	assert.True(t, parsed.Post.PostedAt.IsZero())
}

func TestParsePostPageSingleArticleFallback(t *testing.T) {
	page := `<html><body><article data-testid="tweet"><div data-testid="User-Name"><span>@solo_poster</span></div><div data-testid="tweetText"><span>Zinc absorption drops when taken with calcium.</span></div></article></body></html>`

	parsed := parsePostPage(page)

	require.Equal(t, pagePost, parsed.Kind)
	assert.Equal(t, "solo_poster", parsed.Post.AuthorHandle)
	assert.Equal(t, "Zinc absorption drops when taken with calcium.", parsed.Post.Text)
}

func TestParsePostPageNotice(t *testing.T) {
	parsed := parsePostPage(deletedNoticePage)

	require.Equal(t, pageNotice, parsed.Kind)
	assert.Equal(t, "Hmm...this page doesn’t exist. Try searching for something else.", parsed.Notice)
}

func TestParsePostPageShell(t *testing.T) {
	t.Run("empty app root", func(t *testing.T) {
		assert.Equal(t, pageShell, parsePostPage(shellPage).Kind)
	})

	t.Run("article without post text", func(t *testing.T) {
		page := `<html><body><article data-testid="tweet" tabindex="-1"><div data-testid="User-Name"><span>@ghost</span></div></article></body></html>`
		assert.Equal(t, pageShell, parsePostPage(page).Kind)
	})
}

func TestClassifyNotice(t *testing.T) {
	cases := []struct {
		name   string
		notice string
		reason verify.FetchReason
		retry  bool
	}{
		{"page gone", "Hmm...this page doesn’t exist. Try searching for something else.", verify.FetchDeleted, false},
		{"author deleted", "This Post was deleted by the Post author.", verify.FetchDeleted, false},
		{"account gone", "This Post is from an account that no longer exists.", verify.FetchDeleted, false},
		{"protected", "This account owner limits who can view their Posts.", verify.FetchInaccessible, false},
		{"suspended", "This Post is from a suspended account.", verify.FetchInaccessible, false},
		{"age wall", "Age-restricted adult content. Log in to confirm your age.", verify.FetchInaccessible, false},
		{"transient", "Something went wrong. Try reloading.", "", true},
		{"unknown banner", "You have exceeded your request quota.", verify.FetchFailed, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reason, retry := classifyNotice(tc.notice)
			assert.Equal(t, tc.reason, reason)
			assert.Equal(t, tc.retry, retry)
		})
	}
}
