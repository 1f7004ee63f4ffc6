package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"

	"linkpage/internal/engine"
	"linkpage/internal/event"
	"linkpage/internal/models"
	"linkpage/internal/relay"
	"linkpage/internal/resolver"
	"linkpage/internal/testutil"
)

func newTestManager(t *testing.T, gw relay.Gateway, signer event.Signer) *engine.Manager {
	t.Helper()

	m, err := engine.NewManager(engine.Config{
		Gateway:        gw,
		Signer:         signer,
		LoadTimeout:    2 * time.Second,
		PublishTimeout: 2 * time.Second,
		Now:            testutil.NewClock().Now,
		Logger:         slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(m.Close)
	return m
}

func newTestResolver(gw relay.Gateway) *resolver.Resolver {
	return resolver.New(resolver.Config{
		Gateway:          gw,
		DiscoveryTimeout: 2 * time.Second,
		Logger:           slog.New(slog.DiscardHandler),
	})
}

// newTestApp wires every route the server registers, without the auth
// middleware; the token guard has its own tests.
func newTestApp(manager *engine.Manager, res *resolver.Resolver) *fiber.App {
	app := fiber.New()

	health := NewHealthHandler(manager)
	pages := NewPagesHandler(res, manager)
	slugs := NewSlugsHandler(res)
	redirect := NewRedirectHandler(res, manager)
	authoring := NewAuthoringHandler(manager)

	app.Get("/healthz", health.Healthz)
	app.Get("/api/page/*", pages.GetPage)
	app.Get("/api/resolve/*", pages.ResolveAddress)
	app.Get("/api/slugs/:slug/availability", slugs.CheckAvailability)
	app.Get("/go/:linkID", redirect.Redirect)

	app.Post("/api/my/pages/:slug", authoring.CreatePage)
	app.Get("/api/my/pages/:slug", authoring.GetSession)
	app.Delete("/api/my/pages/:slug", authoring.DeletePage)
	app.Post("/api/my/pages/:slug/links", authoring.AddLink)
	app.Put("/api/my/pages/:slug/links/:id", authoring.UpdateLink)
	app.Delete("/api/my/pages/:slug/links/:id", authoring.DeleteLink)
	app.Post("/api/my/pages/:slug/links/:id/move", authoring.MoveLink)
	app.Post("/api/my/pages/:slug/links/:id/visibility", authoring.ToggleVisibility)
	app.Post("/api/my/pages/:slug/groups", authoring.AddGroup)
	app.Put("/api/my/pages/:slug/groups/:id", authoring.UpdateGroup)
	app.Delete("/api/my/pages/:slug/groups/:id", authoring.DeleteGroup)
	app.Post("/api/my/pages/:slug/groups/:id/reorder", authoring.ReorderGroup)
	app.Post("/api/my/pages/:slug/reorder", authoring.Reorder)
	app.Put("/api/my/pages/:slug/theme", authoring.UpdateTheme)
	app.Put("/api/my/pages/:slug/meta", authoring.UpdateMeta)
	app.Put("/api/my/pages/:slug/profile", authoring.UpdateProfileOverride)
	app.Put("/api/my/pages/:slug/socials", authoring.UpdateSocials)

	return app
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
}

// doJSON issues a request and decodes the response envelope. A []byte
// body is sent verbatim; anything else non-nil is marshaled as JSON.
func doJSON(t *testing.T, app *fiber.App, method, target string, body any) (int, envelope) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, target, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("%s %s: malformed envelope %q: %v", method, target, raw, err)
		}
	}
	return resp.StatusCode, env
}

func decodeData(t *testing.T, env envelope, dst any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("decode data payload: %v", err)
	}
}

// seedPage publishes a minimal valid page document as if its owner's
// client had put it on the network.
func seedPage(t *testing.T, gw *testutil.FakeGateway, signer *event.KeySigner, slug string, mutate func(*models.LinkTreeDocument)) *models.LinkTreeDocument {
	t.Helper()

	doc := models.NewDocument(slug, "Test Page", 100)
	if mutate != nil {
		mutate(doc)
	}
	gw.Seed(testutil.SignedLinkPage(t, signer, resolver.StorageKey(slug), doc, 500))
	return doc
}
