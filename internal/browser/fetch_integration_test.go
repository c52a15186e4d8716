//go:build integration

package browser_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"replygate/internal/browser"
	"replygate/internal/config"
	"replygate/internal/reply"
	"replygate/internal/verify"
)

const liveRootPage = `<html><body><main>
<article data-testid="tweet" tabindex="-1">
  <div data-testid="User-Name"><span>Lifter Jane</span><span>@lifter_jane</span></div>
  <time datetime="2025-06-10T09:30:00.000Z">Jun 10</time>
  <div data-testid="tweetText"><span>Creatine timing doesn't matter. Take it whenever.</span></div>
</article>
</main></body></html>`

const liveDeletedPage = `<html><body><main>
<div data-testid="error-detail"><span>Hmm...this page doesn’t exist. Try searching for something else.</span></div>
</main></body></html>`

const liveHydratingPage = `<html><body><div id="app"></div>
<script>
setTimeout(function () {
  document.getElementById("app").innerHTML = '<article data-testid="tweet" tabindex="-1"><div data-testid="User-Name"><span>@late_bird</span></div><div data-testid="tweetText"><span>This post hydrates late, like the real app.</span></div></article>';
}, 300);
</script>
</body></html>`

const liveEmptyShellPage = `<html><body><main><div id="react-root"></div></main></body></html>`

const liveSecondLoadPage = `<html><body><main>
<article data-testid="tweet" tabindex="-1"><div data-testid="User-Name"><span>@retry_owl</span></div><div data-testid="tweetText"><span>Content arrived on the second load.</span></div></article>
</main></body></html>`

func TestFetcher_LocalServer_Integration(t *testing.T) {
	// 1. Local server standing in for the post pages
	var mu sync.Mutex
	hits := map[string]int{}
	mux := http.NewServeMux()
	mux.HandleFunc("/post/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/post/")
		mu.Lock()
		hits[id]++
		n := hits[id]
		mu.Unlock()

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch id {
		case "1001":
			fmt.Fprint(w, liveRootPage)
		case "1002":
			fmt.Fprint(w, liveDeletedPage)
		case "1003":
			fmt.Fprint(w, liveHydratingPage)
		case "1004":
			if n == 1 {
				fmt.Fprint(w, liveEmptyShellPage)
			} else {
				fmt.Fprint(w, liveSecondLoadPage)
			}
		default:
			http.NotFound(w, r)
		}
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	// 2. Real Chrome, headless, pointed at the local server
	cfg := config.DefaultConfig().Browser
	cfg.Headless = true
	cfg.NavigationTimeoutMs = 8000
	cfg.PostURLTemplate = ts.URL + "/post/%s"

	mgr := browser.NewManager(cfg, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()
	require.NoError(t, mgr.Start(ctx))
	defer func() { _ = mgr.Shutdown() }()

	f := browser.NewFetcher(mgr, cfg, nil)

	t.Run("live root post", func(t *testing.T) {
		live, err := f.FetchPost(ctx, "1001")
		require.NoError(t, err)
		require.Equal(t, "1001", live.TargetID)
		require.Equal(t, "lifter_jane", live.AuthorHandle)
		require.Equal(t, reply.TristateTrue, live.IsRoot)
		require.Contains(t, live.Text, "Creatine timing")
	})

	t.Run("deleted post", func(t *testing.T) {
		_, err := f.FetchPost(ctx, "1002")
		var fe *verify.FetchError
		require.ErrorAs(t, err, &fe)
		require.Equal(t, verify.FetchDeleted, fe.Reason)
	})

	t.Run("late hydration", func(t *testing.T) {
		live, err := f.FetchPost(ctx, "1003")
		require.NoError(t, err)
		require.Contains(t, live.Text, "hydrates late")
	})

	t.Run("shell recovers after one reload", func(t *testing.T) {
		live, err := f.FetchPost(ctx, "1004")
		require.NoError(t, err)
		require.Contains(t, live.Text, "second load")
		mu.Lock()
		require.Equal(t, 2, hits["1004"])
		mu.Unlock()
	})

	t.Run("background priority fetch", func(t *testing.T) {
		live, err := f.Background().FetchPost(ctx, "1001")
		require.NoError(t, err)
		require.Equal(t, "1001", live.TargetID)
	})
}
