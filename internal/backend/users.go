package backend

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"sort"

	"github.com/me/chatadmin/pkg/model"
)

const (
	usersPath   = "/admin/api/v1/users"
	accountPath = "/api/v1/account"
)

// UserService manages chat accounts and the acting account's own
// profile. Directory operations need an admin session; profile and
// password operations work for any authenticated user.
type UserService struct {
	rc       *ResourceClient
	sessions *SessionManager
	logger   *slog.Logger
}

// NewUserService creates a user service sharing the caller's session.
func NewUserService(rc *ResourceClient, sessions *SessionManager, logger *slog.Logger) *UserService {
	return &UserService{
		rc:       rc,
		sessions: sessions,
		logger:   logger.With("service", "users"),
	}
}

// List returns all accounts sorted ascending by localpart, regardless
// of backend ordering.
func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	sess, err := s.sessions.Current(model.RoleAdmin)
	if err != nil {
		return nil, err
	}

	users, err := fetch[[]model.User](ctx, s.rc, sess, http.MethodGet, usersPath, nil)
	if err != nil {
		return nil, err
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].Localpart < users[j].Localpart
	})
	return users, nil
}

// Get returns one account by localpart.
func (s *UserService) Get(ctx context.Context, localpart string) (*model.User, error) {
	sess, err := s.sessions.Current(model.RoleAdmin)
	if err != nil {
		return nil, err
	}

	user, err := fetch[model.User](ctx, s.rc, sess, http.MethodGet, userPath(localpart), nil)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Delete permanently removes an account. The backend cascades removal
// of the account's invites and memberships; deleting an already
// deleted account fails NotFound, matching backend semantics.
func (s *UserService) Delete(ctx context.Context, localpart string) error {
	sess, err := s.sessions.Current(model.RoleAdmin)
	if err != nil {
		return err
	}

	if err := send(ctx, s.rc, sess, http.MethodDelete, userPath(localpart), nil); err != nil {
		return err
	}
	s.logger.Info("user deleted", "localpart", localpart)
	return nil
}

// DebugInfo returns the backend's diagnostic record for an account,
// passed through unmodified.
func (s *UserService) DebugInfo(ctx context.Context, localpart string) (model.DebugInfo, error) {
	sess, err := s.sessions.Current(model.RoleAdmin)
	if err != nil {
		return nil, err
	}
	return fetch[model.DebugInfo](ctx, s.rc, sess, http.MethodGet, userPath(localpart)+"/debug", nil)
}

type changePasswordRequest struct {
	Current string `json:"current"`
	New     string `json:"new"`
}

// ChangePassword replaces the acting account's password. A rejected
// current password surfaces as field-level validation, not as an
// authentication failure: the acting session itself stays valid.
func (s *UserService) ChangePassword(ctx context.Context, current, newPassword string) error {
	sess, err := s.sessions.Current(model.RoleUser)
	if err != nil {
		return err
	}

	err = send(ctx, s.rc, sess, http.MethodPut, accountPath+"/password", changePasswordRequest{
		Current: current,
		New:     newPassword,
	})
	switch model.KindOf(err) {
	case model.KindUnauthenticated, model.KindForbidden:
		return model.NewValidation("incorrect password", map[string]string{
			"current_password": "incorrect password",
		})
	}
	return err
}

// SetNickname updates the acting account's display nickname.
func (s *UserService) SetNickname(ctx context.Context, nickname string) error {
	sess, err := s.sessions.Current(model.RoleUser)
	if err != nil {
		return err
	}
	return send(ctx, s.rc, sess, http.MethodPut, accountPath+"/nickname", map[string]string{
		"nickname": nickname,
	})
}

type avatarUpload struct {
	Data []byte `json:"data"`
	Type string `json:"type"`
}

// SetAvatar uploads a new avatar. A zero-length payload is a local
// no-op, not an error.
func (s *UserService) SetAvatar(ctx context.Context, data []byte, mimetype string) error {
	if len(data) == 0 {
		return nil
	}
	sess, err := s.sessions.Current(model.RoleUser)
	if err != nil {
		return err
	}
	return send(ctx, s.rc, sess, http.MethodPut, accountPath+"/avatar", avatarUpload{
		Data: data,
		Type: mimetype,
	})
}

// SetFacetAccessModel sets the visibility policy of one profile facet.
func (s *UserService) SetFacetAccessModel(ctx context.Context, facet model.Facet, am model.AccessModel) error {
	if !model.ValidAccessModel(am) {
		return model.NewValidation("unknown access model", map[string]string{
			"model": string(am),
		})
	}
	sess, err := s.sessions.Current(model.RoleUser)
	if err != nil {
		return err
	}
	return setFacetAccessModel(ctx, s.rc, sess, facet, am)
}

func userPath(localpart string) string {
	return usersPath + "/" + url.PathEscape(localpart)
}

func facetAccessPath(facet model.Facet) string {
	return accountPath + "/access/" + string(facet)
}

func setFacetAccessModel(ctx context.Context, rc *ResourceClient, sess *model.Session, facet model.Facet, am model.AccessModel) error {
	return send(ctx, rc, sess, http.MethodPut, facetAccessPath(facet), map[string]string{
		"model": string(am),
	})
}
