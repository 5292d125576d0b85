package httpx

import (
	"net/http"
	"strconv"
	"time"

	"github.com/beevik/etree"

	"github.com/target/oidc-gate/internal/domain/access"
	"github.com/target/oidc-gate/internal/domain/model"
	"github.com/target/oidc-gate/internal/service"
)

// Texts that replace feed content when the site ACL denies the reader.
const (
	feedNotLoggedInText = "Authentication required"
	feedForbiddenText   = "Permission denied"
)

// Feed serves the RSS 2.0 feed. The feed never redirects: a reader denied
// by the site ACL gets the item texts replaced instead.
// GET /feed.
func (h *PageHandlers) Feed(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	posts, _, err := h.Content.List(ctx, rc, service.SurfaceFeed, model.PostListOptions{Limit: FeedSize})
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	replacement := ""
	switch h.Access.CheckSite(ctx, rc) {
	case access.DeniedNotLoggedIn:
		replacement = feedNotLoggedInText
	case access.DeniedNotInGroups:
		replacement = feedForbiddenText
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	rss := doc.CreateElement("rss")
	rss.CreateAttr("version", "2.0")
	channel := rss.CreateElement("channel")
	channel.CreateElement("title").SetText(rc.Gate.HomeURL)
	channel.CreateElement("link").SetText(rc.Gate.HomeURL)
	channel.CreateElement("description").SetText("Latest posts")

	for _, p := range posts {
		link := rc.Gate.URL("/posts/" + strconv.FormatInt(p.ID, 10))
		item := channel.CreateElement("item")
		item.CreateElement("title").SetText(p.Title)
		item.CreateElement("link").SetText(link)
		guid := item.CreateElement("guid")
		guid.CreateAttr("isPermaLink", "true")
		guid.SetText(link)
		if !p.CreatedAt.IsZero() {
			item.CreateElement("pubDate").SetText(p.CreatedAt.UTC().Format(time.RFC1123Z))
		}
		text := p.Excerpt
		if replacement != "" {
			text = replacement
		}
		item.CreateElement("description").SetText(text)
	}

	doc.Indent(2)
	w.Header().Set("Content-Type", "application/rss+xml; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	if _, err := doc.WriteTo(w); err != nil {
		h.logger().DebugContext(ctx, "write feed", "error", err)
	}
}
