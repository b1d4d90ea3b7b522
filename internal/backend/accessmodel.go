package backend

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/me/chatadmin/pkg/model"
)

// AccessModelCoordinator treats "the profile's access model" as a
// derived value over the three profile facets: reads take the first
// defined facet, writes fan out to all three.
type AccessModelCoordinator struct {
	rc       *ResourceClient
	sessions *SessionManager
	logger   *slog.Logger
}

// NewAccessModelCoordinator creates a coordinator sharing the caller's
// session.
func NewAccessModelCoordinator(rc *ResourceClient, sessions *SessionManager, logger *slog.Logger) *AccessModelCoordinator {
	return &AccessModelCoordinator{
		rc:       rc,
		sessions: sessions,
		logger:   logger.With("service", "access"),
	}
}

// SetProfileAccessModel applies the model to all three facets
// concurrently and joins the results. Facets that succeeded are
// returned even when others failed: there is no rollback, and partial
// application must reach the caller as a warning rather than be
// swallowed. The error is the first failure in facet priority order.
// Siblings of a failed call are never cancelled; aborting writes the
// backend may already be applying would leave its state even more
// inconsistent.
func (c *AccessModelCoordinator) SetProfileAccessModel(ctx context.Context, am model.AccessModel) ([]model.Facet, error) {
	if !model.ValidAccessModel(am) {
		return nil, model.NewValidation("unknown access model", map[string]string{
			"model": string(am),
		})
	}
	sess, err := c.sessions.Current(model.RoleUser)
	if err != nil {
		return nil, err
	}

	results := make([]error, len(model.ProfileFacets))
	var wg sync.WaitGroup
	for i, facet := range model.ProfileFacets {
		wg.Add(1)
		go func(i int, facet model.Facet) {
			defer wg.Done()
			results[i] = setFacetAccessModel(ctx, c.rc, sess, facet, am)
		}(i, facet)
	}
	wg.Wait()

	var applied []model.Facet
	var first error
	for i, facet := range model.ProfileFacets {
		if results[i] == nil {
			applied = append(applied, facet)
			continue
		}
		if first == nil {
			first = results[i]
		}
		c.logger.Warn("facet access model not applied",
			"facet", facet, "model", am, "error", results[i])
	}
	return applied, first
}

type facetAccessResponse struct {
	Model model.AccessModel `json:"model"`
}

// GuessProfileAccessModel returns the first defined facet model in
// priority order (nickname, avatar, vcard), defaulting to whitelist
// when no facet has one. Best-effort read: there is no single
// canonical access model stored anywhere.
func (c *AccessModelCoordinator) GuessProfileAccessModel(ctx context.Context) (model.AccessModel, error) {
	sess, err := c.sessions.Current(model.RoleUser)
	if err != nil {
		return "", err
	}

	for _, facet := range model.ProfileFacets {
		res, err := fetch[facetAccessResponse](ctx, c.rc, sess, http.MethodGet, facetAccessPath(facet), nil)
		if model.IsKind(err, model.KindNotFound) {
			continue
		}
		if err != nil {
			return "", err
		}
		if model.ValidAccessModel(res.Model) {
			return res.Model, nil
		}
	}
	return model.AccessWhitelist, nil
}
