// Package resolver turns human-supplied page paths into canonical
// network addresses: an owner public key, a slug, and the storage key the
// document is slotted under. It also discovers pages by bare slug when
// the owner is unknown.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"linkpage/internal/cache"
	"linkpage/internal/event"
	"linkpage/internal/metrics"
	"linkpage/internal/models"
	"linkpage/internal/relay"
	"linkpage/internal/validation"
)

// Identifier schemes accepted in a page path.
const (
	SchemeVerifiedIdentity = "verified-identity"
	SchemePublicKey        = "public-key"
	SchemeRawKey           = "raw-key"
)

// Storage key namespace. The default slug keeps the bare historical key
// so documents published before slots existed stay discoverable. This
// mapping is load-bearing for every already-published page; do not
// change it.
const (
	storageKeyPrefix = "linkpage/"
	legacyStorageKey = "linkpage"
)

// StorageKey derives the replaceable-slot key for a slug.
func StorageKey(slug string) string {
	if slug == models.DefaultSlug {
		return legacyStorageKey
	}
	return storageKeyPrefix + slug
}

// ParsedPath is the syntactic decomposition of a page path.
type ParsedPath struct {
	Scheme string
	// Local and Domain are set for verified identities. Domain is empty
	// when the path gave only a local part; Resolve fills it from the
	// configured identity domain.
	Local  string
	Domain string
	// PubKey is the hex owner key for public-key and raw-key schemes.
	PubKey string
	Slug   string
}

// ParsePath decomposes a path of the form <identifier>[/<slug>]. The
// identifier is one of @name, @name@domain, @domain.tld, an npub, or a
// 64-hex key. A missing slug means the default page. Returns nil when
// the path matches none of the accepted shapes.
func ParsePath(path string) *ParsedPath {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return nil
	}
	segments := strings.Split(path, "/")
	if len(segments) > 2 {
		return nil
	}

	slug := models.DefaultSlug
	if len(segments) == 2 {
		slug = validation.NormalizeSlug(segments[1])
		if !validation.ValidateSlug(slug) {
			return nil
		}
	}

	ident := segments[0]
	switch {
	case strings.HasPrefix(ident, "@"):
		rest := strings.TrimPrefix(ident, "@")
		if rest == "" {
			return nil
		}
		p := &ParsedPath{Scheme: SchemeVerifiedIdentity, Slug: slug}
		switch {
		case strings.Contains(rest, "@"):
			at := strings.Index(rest, "@")
			p.Local, p.Domain = rest[:at], rest[at+1:]
			if p.Local == "" || !validation.ValidateIdentityDomain(p.Domain) {
				return nil
			}
		case strings.Contains(rest, "."):
			// A bare dotted identifier is a domain; the identity is the
			// domain's root name.
			if !validation.ValidateIdentityDomain(rest) {
				return nil
			}
			p.Local, p.Domain = "_", rest
		default:
			p.Local = rest
		}
		return p
	case event.IsNpub(ident):
		pub, err := event.DecodeNpub(ident)
		if err != nil {
			return nil
		}
		return &ParsedPath{Scheme: SchemePublicKey, PubKey: pub, Slug: slug}
	case event.IsHexKey(ident):
		return &ParsedPath{Scheme: SchemeRawKey, PubKey: ident, Slug: slug}
	}
	return nil
}

// ResolvedAddress is the canonical form of a page path. Ephemeral,
// recomputed per resolution.
type ResolvedAddress struct {
	Scheme     string
	Owner      string
	Slug       string
	StorageKey string
}

// Config assembles a Resolver. Caches left nil get the standard bounds.
type Config struct {
	Gateway relay.Gateway
	// IdentityDomain backs @name identifiers written without a domain.
	IdentityDomain string
	// DiscoveryTimeout bounds slug discovery and profile fetches.
	DiscoveryTimeout time.Duration
	// WellKnownTimeout bounds one verified-identity lookup.
	WellKnownTimeout time.Duration
	SlugCache        *cache.Cache[SlugMatch]
	ProfileCache     *cache.Cache[models.Profile]
	Logger           *slog.Logger
}

func (cfg Config) withDefaults() Config {
	if cfg.DiscoveryTimeout == 0 {
		cfg.DiscoveryTimeout = 2 * time.Second
	}
	if cfg.WellKnownTimeout == 0 {
		cfg.WellKnownTimeout = 5 * time.Second
	}
	if cfg.SlugCache == nil {
		cfg.SlugCache = cache.New[SlugMatch](10, 30*time.Second)
	}
	if cfg.ProfileCache == nil {
		cfg.ProfileCache = cache.New[models.Profile](0, time.Minute)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

// Resolver resolves identifiers and discovers documents. Safe for
// concurrent use.
type Resolver struct {
	gateway          relay.Gateway
	wellKnown        *wellKnownClient
	identityDomain   string
	discoveryTimeout time.Duration
	slugCache        *cache.Cache[SlugMatch]
	profileCache     *cache.Cache[models.Profile]
	logger           *slog.Logger

	owners slugOwners
}

// New creates a Resolver from cfg. cfg.Gateway is required.
func New(cfg Config) *Resolver {
	cfg = cfg.withDefaults()
	return &Resolver{
		gateway:          cfg.Gateway,
		wellKnown:        newWellKnownClient(cfg.WellKnownTimeout, cfg.Logger),
		identityDomain:   cfg.IdentityDomain,
		discoveryTimeout: cfg.DiscoveryTimeout,
		slugCache:        cfg.SlugCache,
		profileCache:     cfg.ProfileCache,
		logger:           cfg.Logger,
		owners:           slugOwners{last: make(map[string]string)},
	}
}

// Resolve turns a page path into a canonical address. Paths that match no
// accepted shape and identities that cannot be verified yield
// ErrResolution; Resolve never reports not-found, since it does not look
// at documents.
func (r *Resolver) Resolve(ctx context.Context, path string) (*ResolvedAddress, error) {
	parsed := ParsePath(path)
	if parsed == nil {
		metrics.RecordResolution("invalid", "error")
		return nil, fmt.Errorf("%w: unrecognized path %q", ErrResolution, path)
	}

	switch parsed.Scheme {
	case SchemePublicKey, SchemeRawKey:
		metrics.RecordResolution(parsed.Scheme, "ok")
		return &ResolvedAddress{
			Scheme:     parsed.Scheme,
			Owner:      parsed.PubKey,
			Slug:       parsed.Slug,
			StorageKey: StorageKey(parsed.Slug),
		}, nil
	default:
		domain := parsed.Domain
		if domain == "" {
			domain = r.identityDomain
		}
		if domain == "" {
			metrics.RecordResolution(SchemeVerifiedIdentity, "error")
			return nil, fmt.Errorf("%w: identity %q needs a domain and none is configured", ErrResolution, parsed.Local)
		}
		pub := r.ResolveVerifiedIdentity(ctx, parsed.Local, domain)
		if pub == "" {
			metrics.RecordResolution(SchemeVerifiedIdentity, "error")
			return nil, fmt.Errorf("%w: could not verify %s@%s", ErrResolution, parsed.Local, domain)
		}
		metrics.RecordResolution(SchemeVerifiedIdentity, "ok")
		return &ResolvedAddress{
			Scheme:     SchemeVerifiedIdentity,
			Owner:      pub,
			Slug:       parsed.Slug,
			StorageKey: StorageKey(parsed.Slug),
		}, nil
	}
}

// ResolveVerifiedIdentity looks up local@domain through the domain's
// well-known identity document and returns the owner's hex key, or ""
// when the identity cannot be verified. Lookup failures are misses, not
// errors.
func (r *Resolver) ResolveVerifiedIdentity(ctx context.Context, local, domain string) string {
	return r.wellKnown.resolve(ctx, local, domain)
}
