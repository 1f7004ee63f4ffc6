package handlers

import (
	"encoding/json"

	"github.com/gofiber/fiber/v3"

	"linkpage/internal/engine"
	"linkpage/internal/models"
)

// AuthoringHandler edits this node's own pages through the optimistic
// engine. Mutations queue an edit, wait for the publish round, and
// return the session snapshot. When the network rejects a save the
// response is an error, but the edit is not lost: the optimistic
// document stays visible through GetSession until a later save lands.
type AuthoringHandler struct {
	manager *engine.Manager
}

// NewAuthoringHandler creates a new authoring handler.
func NewAuthoringHandler(manager *engine.Manager) *AuthoringHandler {
	return &AuthoringHandler{manager: manager}
}

// session resolves the slug parameter into a settled session.
func (h *AuthoringHandler) session(c fiber.Ctx) (*engine.Session, error) {
	sess, err := h.manager.Session(c.Params("slug"))
	if err != nil {
		return nil, err
	}
	if err := sess.WaitReady(c.Context()); err != nil {
		return nil, err
	}
	return sess, nil
}

// parseBody decodes an optional JSON request body. An empty body keeps
// the destination's zero values.
func parseBody(c fiber.Ctx, dst any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(c.Body(), dst); err != nil {
		return &models.ValidationError{Field: "body", Msg: "malformed JSON"}
	}
	return nil
}

func sessionResponse(sess *engine.Session) models.SessionResponse {
	snap := sess.Snapshot()
	resp := models.SessionResponse{
		Owner:    snap.Owner,
		Slug:     snap.Slug,
		State:    string(snap.State),
		Saving:   snap.Saving,
		Document: snap.Document,
	}
	if snap.Err != nil {
		resp.LastError = snap.Err.Error()
	}
	return resp
}

// respond waits out the publish queue and returns the snapshot.
func (h *AuthoringHandler) respond(c fiber.Ctx, sess *engine.Session) error {
	if err := sess.Flush(c.Context()); err != nil {
		return mapError(c, err)
	}
	return jsonSuccess(c, sessionResponse(sess))
}

// GetSession returns the session snapshot without mutating anything. A
// ready session with a null document means the slug is unclaimed.
func (h *AuthoringHandler) GetSession(c fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return mapError(c, err)
	}
	return jsonSuccess(c, sessionResponse(sess))
}

// CreatePage claims the slug with a fresh empty page.
func (h *AuthoringHandler) CreatePage(c fiber.Ctx) error {
	var req struct {
		Title string `json:"title"`
	}
	if err := parseBody(c, &req); err != nil {
		return mapError(c, err)
	}

	sess, err := h.session(c)
	if err != nil {
		return mapError(c, err)
	}
	if err := sess.CreatePage(req.Title); err != nil {
		return mapError(c, err)
	}
	return h.respond(c, sess)
}

// DeletePage publishes a logical deletion marker. The slug stays bound
// to this session and can be reclaimed with CreatePage.
func (h *AuthoringHandler) DeletePage(c fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return mapError(c, err)
	}
	if err := sess.Delete(); err != nil {
		return mapError(c, err)
	}
	return h.respond(c, sess)
}

// AddLink appends a link to the page root.
func (h *AuthoringHandler) AddLink(c fiber.Ctx) error {
	var req struct {
		Title    string           `json:"title"`
		URL      string           `json:"url"`
		Emoji    string           `json:"emoji"`
		Schedule *models.Schedule `json:"schedule"`
	}
	if err := parseBody(c, &req); err != nil {
		return mapError(c, err)
	}

	sess, err := h.session(c)
	if err != nil {
		return mapError(c, err)
	}
	id, err := sess.AddLink(engine.LinkParams{
		Title:    req.Title,
		URL:      req.URL,
		Emoji:    req.Emoji,
		Schedule: req.Schedule,
	})
	if err != nil {
		return mapError(c, err)
	}
	if err := sess.Flush(c.Context()); err != nil {
		return mapError(c, err)
	}
	return jsonSuccess(c, fiber.Map{
		"id":      id,
		"session": sessionResponse(sess),
	})
}

// UpdateLink edits a link in place. Omitted fields keep their values;
// clear_schedule removes the scheduling window.
func (h *AuthoringHandler) UpdateLink(c fiber.Ctx) error {
	var req struct {
		Title         *string          `json:"title"`
		URL           *string          `json:"url"`
		Emoji         *string          `json:"emoji"`
		Schedule      *models.Schedule `json:"schedule"`
		ClearSchedule bool             `json:"clear_schedule"`
	}
	if err := parseBody(c, &req); err != nil {
		return mapError(c, err)
	}

	sess, err := h.session(c)
	if err != nil {
		return mapError(c, err)
	}
	if err := sess.UpdateLink(c.Params("id"), engine.LinkUpdate{
		Title:         req.Title,
		URL:           req.URL,
		Emoji:         req.Emoji,
		Schedule:      req.Schedule,
		ClearSchedule: req.ClearSchedule,
	}); err != nil {
		return mapError(c, err)
	}
	return h.respond(c, sess)
}

// DeleteLink removes a link from the page.
func (h *AuthoringHandler) DeleteLink(c fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return mapError(c, err)
	}
	if err := sess.DeleteLink(c.Params("id")); err != nil {
		return mapError(c, err)
	}
	return h.respond(c, sess)
}

// MoveLink relocates a link into a group, or back to the root when
// group_id is empty.
func (h *AuthoringHandler) MoveLink(c fiber.Ctx) error {
	var req struct {
		GroupID string `json:"group_id"`
	}
	if err := parseBody(c, &req); err != nil {
		return mapError(c, err)
	}

	sess, err := h.session(c)
	if err != nil {
		return mapError(c, err)
	}
	if err := sess.MoveLink(c.Params("id"), req.GroupID); err != nil {
		return mapError(c, err)
	}
	return h.respond(c, sess)
}

// ToggleVisibility flips a link's or group's visibility flag.
func (h *AuthoringHandler) ToggleVisibility(c fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return mapError(c, err)
	}
	if err := sess.ToggleVisibility(c.Params("id")); err != nil {
		return mapError(c, err)
	}
	return h.respond(c, sess)
}

// AddGroup appends an empty group to the page root.
func (h *AuthoringHandler) AddGroup(c fiber.Ctx) error {
	var req struct {
		Title string `json:"title"`
		Emoji string `json:"emoji"`
	}
	if err := parseBody(c, &req); err != nil {
		return mapError(c, err)
	}

	sess, err := h.session(c)
	if err != nil {
		return mapError(c, err)
	}
	id, err := sess.AddGroup(engine.GroupParams{Title: req.Title, Emoji: req.Emoji})
	if err != nil {
		return mapError(c, err)
	}
	if err := sess.Flush(c.Context()); err != nil {
		return mapError(c, err)
	}
	return jsonSuccess(c, fiber.Map{
		"id":      id,
		"session": sessionResponse(sess),
	})
}

// UpdateGroup edits a group's title, emoji, or collapsed state.
func (h *AuthoringHandler) UpdateGroup(c fiber.Ctx) error {
	var req struct {
		Title     *string `json:"title"`
		Emoji     *string `json:"emoji"`
		Collapsed *bool   `json:"collapsed"`
	}
	if err := parseBody(c, &req); err != nil {
		return mapError(c, err)
	}

	sess, err := h.session(c)
	if err != nil {
		return mapError(c, err)
	}
	if err := sess.UpdateGroup(c.Params("id"), engine.GroupUpdate{
		Title:     req.Title,
		Emoji:     req.Emoji,
		Collapsed: req.Collapsed,
	}); err != nil {
		return mapError(c, err)
	}
	return h.respond(c, sess)
}

// DeleteGroup dissolves a group, moving its links back to the root.
func (h *AuthoringHandler) DeleteGroup(c fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return mapError(c, err)
	}
	if err := sess.DeleteGroup(c.Params("id")); err != nil {
		return mapError(c, err)
	}
	return h.respond(c, sess)
}

// Reorder rearranges the page root to the given id order. Ids not on
// the page are skipped; items not listed keep their relative order at
// the end.
func (h *AuthoringHandler) Reorder(c fiber.Ctx) error {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := parseBody(c, &req); err != nil {
		return mapError(c, err)
	}

	sess, err := h.session(c)
	if err != nil {
		return mapError(c, err)
	}
	if err := sess.Reorder(req.IDs); err != nil {
		return mapError(c, err)
	}
	return h.respond(c, sess)
}

// ReorderGroup rearranges the links inside one group.
func (h *AuthoringHandler) ReorderGroup(c fiber.Ctx) error {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := parseBody(c, &req); err != nil {
		return mapError(c, err)
	}

	sess, err := h.session(c)
	if err != nil {
		return mapError(c, err)
	}
	if err := sess.ReorderGroup(c.Params("id"), req.IDs); err != nil {
		return mapError(c, err)
	}
	return h.respond(c, sess)
}

// UpdateTheme replaces the page theme whole.
func (h *AuthoringHandler) UpdateTheme(c fiber.Ctx) error {
	var req models.Theme
	if err := parseBody(c, &req); err != nil {
		return mapError(c, err)
	}

	sess, err := h.session(c)
	if err != nil {
		return mapError(c, err)
	}
	if err := sess.UpdateTheme(req); err != nil {
		return mapError(c, err)
	}
	return h.respond(c, sess)
}

// UpdateMeta edits the page title. The slug is immutable.
func (h *AuthoringHandler) UpdateMeta(c fiber.Ctx) error {
	var req struct {
		Title *string `json:"title"`
	}
	if err := parseBody(c, &req); err != nil {
		return mapError(c, err)
	}

	sess, err := h.session(c)
	if err != nil {
		return mapError(c, err)
	}
	if err := sess.UpdateMeta(engine.TreeMetaUpdate{Title: req.Title}); err != nil {
		return mapError(c, err)
	}
	return h.respond(c, sess)
}

// UpdateProfileOverride replaces the page's profile override. An empty
// body clears it, so the page falls back to the published identity
// metadata.
func (h *AuthoringHandler) UpdateProfileOverride(c fiber.Ctx) error {
	var req struct {
		Name             string `json:"name"`
		Bio              string `json:"bio"`
		Picture          string `json:"picture"`
		HeaderImage      string `json:"header_image"`
		ShowVerification *bool  `json:"show_verification"`
	}
	if err := parseBody(c, &req); err != nil {
		return mapError(c, err)
	}

	po := &models.ProfileOverride{
		Name:             req.Name,
		Bio:              req.Bio,
		Picture:          req.Picture,
		HeaderImage:      req.HeaderImage,
		ShowVerification: req.ShowVerification,
	}
	if *po == (models.ProfileOverride{}) {
		po = nil
	}

	sess, err := h.session(c)
	if err != nil {
		return mapError(c, err)
	}
	if err := sess.UpdateProfileOverride(po); err != nil {
		return mapError(c, err)
	}
	return h.respond(c, sess)
}

// UpdateSocials replaces the social links whole.
func (h *AuthoringHandler) UpdateSocials(c fiber.Ctx) error {
	var req struct {
		Socials []models.Social `json:"socials"`
	}
	if err := parseBody(c, &req); err != nil {
		return mapError(c, err)
	}

	sess, err := h.session(c)
	if err != nil {
		return mapError(c, err)
	}
	if err := sess.UpdateSocials(req.Socials); err != nil {
		return mapError(c, err)
	}
	return h.respond(c, sess)
}
