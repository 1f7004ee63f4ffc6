package handlers

import (
	"time"

	"github.com/gofiber/fiber/v3"

	"linkpage/internal/engine"
	"linkpage/internal/metrics"
	"linkpage/internal/resolver"
)

// RedirectHandler bounces visitors from a link id to its target URL.
type RedirectHandler struct {
	resolver *resolver.Resolver
	manager  *engine.Manager
}

// NewRedirectHandler creates a new redirect handler.
func NewRedirectHandler(res *resolver.Resolver, manager *engine.Manager) *RedirectHandler {
	return &RedirectHandler{resolver: res, manager: manager}
}

// Redirect looks up a link on the addressed page and redirects to its
// URL. Hidden links and links outside their scheduling window do not
// redirect. Clicks count only on pages this node authors; foreign pages
// are read-only.
func (h *RedirectHandler) Redirect(c fiber.Ctx) error {
	linkID := c.Params("linkID")
	path := c.Query("path")
	if path == "" {
		return jsonError(c, fiber.StatusBadRequest, "path query parameter is required")
	}

	view, err := lookupPage(c.Context(), h.resolver, h.manager, path)
	if err != nil {
		metrics.RecordLinkRedirect("error")
		return mapError(c, err)
	}

	link, _ := view.Document.FindLink(linkID)
	if link == nil || !link.ActiveAt(time.Now()) {
		metrics.RecordLinkRedirect("miss")
		return jsonError(c, fiber.StatusNotFound, "no active link here")
	}

	h.recordClick(view.Owner, view.Slug, linkID)

	metrics.RecordLinkRedirect("ok")
	return c.Redirect().To(link.URL)
}

// recordClick bumps the click counter when the page is our own. The bump
// rides the normal publish path; a session still loading skips the count
// rather than delay the redirect.
func (h *RedirectHandler) recordClick(owner, slug, linkID string) {
	if !h.manager.CanWrite() || h.manager.Owner() != owner {
		return
	}
	sess, err := h.manager.Session(slug)
	if err != nil {
		return
	}
	_ = sess.RecordClick(linkID)
}
