package backend

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"sort"

	"github.com/me/chatadmin/pkg/model"
)

const invitesPath = "/admin/api/v1/invites"

// InviteService manages invitation links. All operations require an
// admin session.
type InviteService struct {
	rc       *ResourceClient
	sessions *SessionManager
	logger   *slog.Logger
}

// NewInviteService creates an invite service sharing the caller's session.
func NewInviteService(rc *ResourceClient, sessions *SessionManager, logger *slog.Logger) *InviteService {
	return &InviteService{
		rc:       rc,
		sessions: sessions,
		logger:   logger.With("service", "invites"),
	}
}

// List returns all pending invites except password-reset links, sorted
// newest first regardless of backend ordering.
func (s *InviteService) List(ctx context.Context) ([]model.Invite, error) {
	sess, err := s.sessions.Current(model.RoleAdmin)
	if err != nil {
		return nil, err
	}

	all, err := fetch[[]model.Invite](ctx, s.rc, sess, http.MethodGet, invitesPath, nil)
	if err != nil {
		return nil, err
	}

	invites := all[:0]
	for _, inv := range all {
		if !inv.IsReset() {
			invites = append(invites, inv)
		}
	}
	sort.Slice(invites, func(i, j int) bool {
		return invites[i].CreatedAt.After(invites[j].CreatedAt)
	})
	return invites, nil
}

type createInviteRequest struct {
	Kind      model.InviteKind `json:"kind"`
	Groups    []string         `json:"groups,omitempty"`
	TTL       int64            `json:"ttl"`
	Localpart string           `json:"localpart,omitempty"`
}

// CreateAccountInvite creates an individual account invite, optionally
// pre-assigning circles.
func (s *InviteService) CreateAccountInvite(ctx context.Context, groupIDs []string, ttlSeconds int64) (*model.Invite, error) {
	return s.create(ctx, createInviteRequest{
		Kind:   model.InviteAccount,
		Groups: groupIDs,
		TTL:    ttlSeconds,
	})
}

// CreateGroupInvite creates a multi-use circle invite. At least one
// circle is required; this is rejected locally before any remote call.
func (s *InviteService) CreateGroupInvite(ctx context.Context, groupIDs []string, ttlSeconds int64) (*model.Invite, error) {
	if len(groupIDs) == 0 {
		return nil, model.NewValidation("at least one circle must be selected", map[string]string{
			"groups": "at least one circle must be selected",
		})
	}
	return s.create(ctx, createInviteRequest{
		Kind:   model.InviteGroup,
		Groups: groupIDs,
		TTL:    ttlSeconds,
	})
}

// CreatePasswordResetInvite creates a reset link for one account.
func (s *InviteService) CreatePasswordResetInvite(ctx context.Context, localpart string, ttlSeconds int64) (*model.Invite, error) {
	return s.create(ctx, createInviteRequest{
		Kind:      model.InvitePasswordReset,
		TTL:       ttlSeconds,
		Localpart: localpart,
	})
}

func (s *InviteService) create(ctx context.Context, req createInviteRequest) (*model.Invite, error) {
	if req.TTL <= 0 {
		return nil, model.NewValidation("invite lifetime must be positive", map[string]string{
			"ttl": "must be greater than zero",
		})
	}
	sess, err := s.sessions.Current(model.RoleAdmin)
	if err != nil {
		return nil, err
	}

	inv, err := fetch[model.Invite](ctx, s.rc, sess, http.MethodPost, invitesPath, req)
	if err != nil {
		return nil, err
	}
	s.logger.Info("invite created", "id", inv.ID, "kind", inv.Kind, "ttl", inv.TTL)
	return &inv, nil
}

// Get returns one invite. Unknown and expired identifiers both fail
// NotFound; the backend does not distinguish them and callers must
// treat both as "invite no longer usable".
func (s *InviteService) Get(ctx context.Context, id string) (*model.Invite, error) {
	sess, err := s.sessions.Current(model.RoleAdmin)
	if err != nil {
		return nil, err
	}

	inv, err := fetch[model.Invite](ctx, s.rc, sess, http.MethodGet, invitePath(id), nil)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// Revoke deletes an invite. An unknown id is a benign outcome, not an
// error: the desired end state — invite gone — is already achieved.
func (s *InviteService) Revoke(ctx context.Context, id string) error {
	sess, err := s.sessions.Current(model.RoleAdmin)
	if err != nil {
		return err
	}

	err = send(ctx, s.rc, sess, http.MethodDelete, invitePath(id), nil)
	if model.IsKind(err, model.KindNotFound) {
		s.logger.Debug("revoke of unknown invite", "id", id)
		return nil
	}
	if err != nil {
		return err
	}
	s.logger.Info("invite revoked", "id", id)
	return nil
}

func invitePath(id string) string {
	return invitesPath + "/" + url.PathEscape(id)
}
