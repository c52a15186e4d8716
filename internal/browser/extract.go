package browser

import (
	"strings"
	"time"

	"golang.org/x/net/html"

	"replygate/internal/verify"
)

type pageKind int

const (
	pageShell pageKind = iota // rendered, but no post and no notice yet
	pagePost
	pageNotice
)

// parsedPage is the outcome of reading one rendered post page.
type parsedPage struct {
	Kind   pageKind
	Post   *postContent
	Notice string
}

// postContent is the raw DOM reading of the focal post.
type postContent struct {
	Text         string
	AuthorHandle string
	PostedAt     time.Time
	IsReply      bool
}

// parsePostPage classifies the rendered HTML of a post page. It never
// touches the network, so every branch is testable with fixture
// documents.
func parsePostPage(src string) parsedPage {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return parsedPage{Kind: pageShell}
	}

	if n := findNode(doc, byTestID("error-detail")); n != nil {
		return parsedPage{Kind: pageNotice, Notice: collapseSpace(nodeText(n))}
	}

	article := focalArticle(doc)
	if article == nil {
		return parsedPage{Kind: pageShell}
	}
	textNode := findNode(article, byTestID("tweetText"))
	if textNode == nil {
		return parsedPage{Kind: pageShell}
	}

	post := &postContent{
		Text:         nodeText(textNode),
		AuthorHandle: authorHandle(article),
		IsReply:      hasReplyBanner(article),
	}
	if ts := findNode(article, byTag("time")); ts != nil {
		if at, err := time.Parse(time.RFC3339, attr(ts, "datetime")); err == nil {
			post.PostedAt = at
		}
	}
	return parsedPage{Kind: pagePost, Post: post}
}

// classifyNotice maps the page's error banner to a fetch failure reason.
// The second return reports a transient banner worth one reload.
func classifyNotice(notice string) (verify.FetchReason, bool) {
	low := strings.ToLower(notice)
	switch {
	case strings.Contains(low, "doesn’t exist"),
		strings.Contains(low, "doesn't exist"),
		strings.Contains(low, "no longer exists"),
		strings.Contains(low, "deleted"):
		return verify.FetchDeleted, false
	case strings.Contains(low, "suspended"),
		strings.Contains(low, "limits who can view"),
		strings.Contains(low, "not authorized"),
		strings.Contains(low, "log in"),
		strings.Contains(low, "age-restricted"):
		return verify.FetchInaccessible, false
	case strings.Contains(low, "try reloading"),
		strings.Contains(low, "something went wrong"),
		strings.Contains(low, "over capacity"):
		return "", true
	}
	return verify.FetchFailed, false
}

// focalArticle picks the article for the post the page is about. Detail
// pages render ancestor and reply articles too; the focal one carries
// tabindex="-1" while the rest stay tabbable.
func focalArticle(doc *html.Node) *html.Node {
	var first, focal *html.Node
	walk(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.Data != "article" {
			return true
		}
		if first == nil {
			first = n
		}
		if attr(n, "tabindex") == "-1" {
			focal = n
			return false
		}
		return true
	})
	if focal != nil {
		return focal
	}
	return first
}

// authorHandle digs the @handle out of the author block.
func authorHandle(article *html.Node) string {
	block := findNode(article, byTestID("User-Name"))
	if block == nil {
		block = article
	}
	var handle string
	walk(block, func(n *html.Node) bool {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); strings.HasPrefix(t, "@") {
				handle = strings.TrimPrefix(t, "@")
				return false
			}
		}
		return true
	})
	return handle
}

// hasReplyBanner reports whether the focal article carries the
// "Replying to @…" banner shown above reply posts.
func hasReplyBanner(article *html.Node) bool {
	found := false
	walk(article, func(n *html.Node) bool {
		if n.Type == html.TextNode && strings.Contains(n.Data, "Replying to") {
			found = true
			return false
		}
		return true
	})
	return found
}

// nodeText renders the visible text under n. Line breaks come through as
// newlines; emoji, which the page renders as img tags, come through as
// their alt text.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var emit func(*html.Node)
	emit = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
		case n.Type == html.ElementNode && n.Data == "br":
			b.WriteString("\n")
		case n.Type == html.ElementNode && n.Data == "img":
			b.WriteString(attr(n, "alt"))
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			emit(c)
		}
	}
	emit(n)
	return b.String()
}

// walk visits nodes depth-first. The visitor returns false to stop the
// whole traversal.
func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

func findNode(root *html.Node, pred func(*html.Node) bool) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if pred(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

func byTestID(id string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && attr(n, "data-testid") == id
	}
}

func byTag(tag string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == tag
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
