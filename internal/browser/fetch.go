package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"go.uber.org/zap"

	"replygate/internal/config"
	"replygate/internal/reply"
	"replygate/internal/verify"
)

// Fetcher loads post pages and reads their current state back out of the
// DOM. It implements verify.Fetcher on the posting path; Background
// returns a sweep-priority view for checks that can wait.
type Fetcher struct {
	mgr  *Manager
	cfg  config.Browser
	pool *pagePool
	log  *zap.Logger
}

func NewFetcher(mgr *Manager, cfg config.Browser, log *zap.Logger) *Fetcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Fetcher{mgr: mgr, cfg: cfg, pool: newPagePool(cfg.PoolSize), log: log}
}

// FetchPost loads the target's page at interactive priority.
func (f *Fetcher) FetchPost(ctx context.Context, targetID string) (*verify.LivePost, error) {
	return f.fetch(ctx, targetID, PriorityInteractive)
}

// Background returns a view of the fetcher that loads pages at sweep
// priority, for verification outside the posting path.
func (f *Fetcher) Background() verify.Fetcher {
	return backgroundFetcher{f}
}

type backgroundFetcher struct{ f *Fetcher }

func (b backgroundFetcher) FetchPost(ctx context.Context, targetID string) (*verify.LivePost, error) {
	return b.f.fetch(ctx, targetID, PriorityBackground)
}

func (f *Fetcher) fetch(ctx context.Context, targetID string, pri Priority) (*verify.LivePost, error) {
	release, err := f.pool.acquire(ctx, pri)
	if err != nil {
		return nil, fetchErr("page pool", err)
	}
	defer release()

	page, cleanup, err := f.mgr.newPage(ctx)
	if err != nil {
		return nil, fetchErr("open page", err)
	}
	defer cleanup()

	timeout := f.cfg.NavigationTimeout()
	p := page.Context(ctx)
	url := fmt.Sprintf(f.cfg.PostURLTemplate, targetID)
	if err := p.Timeout(timeout).Navigate(url); err != nil {
		return nil, fetchErr("navigate", err)
	}
	parsed, err := f.readPage(p, timeout)
	if err != nil {
		return nil, err
	}
	if needsReload(parsed) {
		// The app sometimes serves its shell without ever hydrating the
		// post. One reload clears it; more never has.
		f.log.Debug("post page did not hydrate, reloading once",
			zap.String("target_id", targetID))
		if err := p.Timeout(timeout).Reload(); err != nil {
			return nil, fetchErr("reload", err)
		}
		parsed, err = f.readPage(p, timeout)
		if err != nil {
			return nil, err
		}
	}
	return resolvePost(targetID, parsed)
}

// readPage waits for the client app to hydrate, then snapshots and
// parses the DOM. Load alone is not enough: the post text arrives well
// after the load event.
func (f *Fetcher) readPage(p *rod.Page, timeout time.Duration) (parsedPage, error) {
	if err := p.Timeout(timeout).WaitLoad(); err != nil {
		return parsedPage{}, fetchErr("wait load", err)
	}
	// Wait for whichever of post text or error banner lands first. A
	// quiet timeout here just means the parse sees a shell.
	_, _ = p.Timeout(timeout).Race().
		Element(`[data-testid="tweetText"]`).
		Element(`[data-testid="error-detail"]`).
		Do()
	src, err := p.Timeout(timeout).HTML()
	if err != nil {
		return parsedPage{}, fetchErr("read html", err)
	}
	return parsePostPage(src), nil
}

func needsReload(parsed parsedPage) bool {
	if parsed.Kind == pageShell {
		return true
	}
	if parsed.Kind == pageNotice {
		_, retry := classifyNotice(parsed.Notice)
		return retry
	}
	return false
}

// resolvePost turns a parsed page into a live post or a classified
// failure.
func resolvePost(targetID string, parsed parsedPage) (*verify.LivePost, error) {
	switch parsed.Kind {
	case pagePost:
		isRoot := reply.TristateTrue
		if parsed.Post.IsReply {
			isRoot = reply.TristateFalse
		}
		return &verify.LivePost{
			TargetID:     targetID,
			Text:         parsed.Post.Text,
			AuthorHandle: parsed.Post.AuthorHandle,
			IsRoot:       isRoot,
			PostedAt:     parsed.Post.PostedAt,
			FetchedAt:    time.Now(),
		}, nil
	case pageNotice:
		reason, retry := classifyNotice(parsed.Notice)
		if retry {
			// Transient banner survived the reload.
			reason = verify.FetchFailed
		}
		return nil, &verify.FetchError{Reason: reason, Err: fmt.Errorf("page notice: %s", parsed.Notice)}
	default:
		return nil, &verify.FetchError{Reason: verify.FetchFailed, Err: errors.New("page never rendered a post")}
	}
}

// fetchErr classifies a navigation failure. Deadline errors, whether from
// the caller's context or rod's own timeout, count as timeouts.
func fetchErr(step string, err error) error {
	reason := verify.FetchFailed
	if errors.Is(err, context.DeadlineExceeded) {
		reason = verify.FetchTimeout
	}
	return &verify.FetchError{Reason: reason, Err: fmt.Errorf("%s: %w", step, err)}
}
