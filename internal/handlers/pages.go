package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v3"

	"linkpage/internal/engine"
	"linkpage/internal/event"
	"linkpage/internal/models"
	"linkpage/internal/resolver"
	"linkpage/internal/validation"
)

// PagesHandler serves public page reads and address resolution.
type PagesHandler struct {
	resolver *resolver.Resolver
	manager  *engine.Manager
}

// NewPagesHandler creates a new pages handler.
func NewPagesHandler(res *resolver.Resolver, manager *engine.Manager) *PagesHandler {
	return &PagesHandler{resolver: res, manager: manager}
}

// pageView is a located page: the owner holding it, the slug it was
// found under, and the newest document.
type pageView struct {
	Owner     string
	Slug      string
	UpdatedAt int64
	Document  *models.LinkTreeDocument
}

// lookupPage locates the page behind a path. Paths that parse as an
// address go through resolution and a direct fetch; anything else is
// tried as a bare discoverable slug.
func lookupPage(ctx context.Context, res *resolver.Resolver, manager *engine.Manager, path string) (*pageView, error) {
	if resolver.ParsePath(path) != nil {
		addr, err := res.Resolve(ctx, path)
		if err != nil {
			return nil, err
		}
		doc, updatedAt, err := manager.Fetch(ctx, addr.Owner, addr.Slug)
		if err != nil {
			return nil, err
		}
		return &pageView{Owner: addr.Owner, Slug: addr.Slug, UpdatedAt: updatedAt, Document: doc}, nil
	}

	slug := validation.NormalizeSlug(strings.Trim(path, "/"))
	match, err := res.FindBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return &pageView{Owner: match.Owner, Slug: slug, UpdatedAt: match.UpdatedAt, Document: match.Document}, nil
}

// GetPage resolves a page path and returns the newest document together
// with the owner's effective profile. A failed profile fetch never fails
// the page read; the profile is simply omitted.
func (h *PagesHandler) GetPage(c fiber.Ctx) error {
	view, err := lookupPage(c.Context(), h.resolver, h.manager, c.Params("*"))
	if err != nil {
		return mapError(c, err)
	}

	profile, err := h.resolver.FetchProfile(c.Context(), view.Owner)
	if err != nil {
		profile = nil
	}
	merged := profile.MergeOverride(view.Document.ProfileOverride)
	if *merged == (models.Profile{}) {
		merged = nil
	}

	npub, _ := event.EncodeNpub(view.Owner)
	return jsonSuccess(c, models.PageResponse{
		Owner:     view.Owner,
		Npub:      npub,
		Slug:      view.Slug,
		UpdatedAt: view.UpdatedAt,
		Document:  view.Document,
		Profile:   merged,
	})
}

// ResolveAddress resolves a page path to its canonical address without
// fetching the document.
func (h *PagesHandler) ResolveAddress(c fiber.Ctx) error {
	addr, err := h.resolver.Resolve(c.Context(), c.Params("*"))
	if err != nil {
		return mapError(c, err)
	}

	npub, _ := event.EncodeNpub(addr.Owner)
	return jsonSuccess(c, models.ResolveResponse{
		Scheme:     addr.Scheme,
		Owner:      addr.Owner,
		Npub:       npub,
		Slug:       addr.Slug,
		StorageKey: addr.StorageKey,
	})
}
