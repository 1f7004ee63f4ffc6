package handlers

import (
	"github.com/gofiber/fiber/v3"

	"linkpage/internal/models"
	"linkpage/internal/resolver"
)

// SlugsHandler answers slug availability checks.
type SlugsHandler struct {
	resolver *resolver.Resolver
}

// NewSlugsHandler creates a new slugs handler.
func NewSlugsHandler(res *resolver.Resolver) *SlugsHandler {
	return &SlugsHandler{resolver: res}
}

// CheckAvailability reports whether a slug can be claimed.
func (h *SlugsHandler) CheckAvailability(c fiber.Ctx) error {
	avail, err := h.resolver.CheckSlugAvailability(c.Context(), c.Params("slug"))
	if err != nil {
		return mapError(c, err)
	}

	return jsonSuccess(c, models.SlugCheckResponse{
		Slug:      avail.Slug,
		Available: avail.Available,
		Reason:    avail.Reason,
		Owner:     avail.Owner,
	})
}
