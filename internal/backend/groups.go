package backend

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"sort"

	"github.com/me/chatadmin/pkg/model"
)

const circlesPath = "/admin/api/v1/circles"

// GroupService manages circles and their membership. All operations
// require an admin session.
type GroupService struct {
	rc       *ResourceClient
	sessions *SessionManager
	logger   *slog.Logger
}

// NewGroupService creates a circle service sharing the caller's session.
func NewGroupService(rc *ResourceClient, sessions *SessionManager, logger *slog.Logger) *GroupService {
	return &GroupService{
		rc:       rc,
		sessions: sessions,
		logger:   logger.With("service", "circles"),
	}
}

// List returns all circles sorted ascending by name, regardless of
// backend ordering.
func (s *GroupService) List(ctx context.Context) ([]model.Circle, error) {
	sess, err := s.sessions.Current(model.RoleAdmin)
	if err != nil {
		return nil, err
	}

	circles, err := fetch[[]model.Circle](ctx, s.rc, sess, http.MethodGet, circlesPath, nil)
	if err != nil {
		return nil, err
	}
	sort.Slice(circles, func(i, j int) bool {
		return circles[i].Name < circles[j].Name
	})
	return circles, nil
}

// Get returns one circle by id.
func (s *GroupService) Get(ctx context.Context, id string) (*model.Circle, error) {
	sess, err := s.sessions.Current(model.RoleAdmin)
	if err != nil {
		return nil, err
	}
	return s.get(ctx, sess, id)
}

func (s *GroupService) get(ctx context.Context, sess *model.Session, id string) (*model.Circle, error) {
	circle, err := fetch[model.Circle](ctx, s.rc, sess, http.MethodGet, circlePath(id), nil)
	if err != nil {
		return nil, err
	}
	return &circle, nil
}

// Create creates a circle with the given name.
func (s *GroupService) Create(ctx context.Context, name string) (*model.Circle, error) {
	if name == "" {
		return nil, model.NewValidation("circle name must not be empty", map[string]string{
			"name": "must not be empty",
		})
	}
	sess, err := s.sessions.Current(model.RoleAdmin)
	if err != nil {
		return nil, err
	}

	circle, err := fetch[model.Circle](ctx, s.rc, sess, http.MethodPost, circlesPath, map[string]string{
		"name": name,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("circle created", "id", circle.ID, "name", circle.Name)
	return &circle, nil
}

// Update renames a circle.
func (s *GroupService) Update(ctx context.Context, id, newName string) error {
	if newName == "" {
		return model.NewValidation("circle name must not be empty", map[string]string{
			"name": "must not be empty",
		})
	}
	sess, err := s.sessions.Current(model.RoleAdmin)
	if err != nil {
		return err
	}
	return send(ctx, s.rc, sess, http.MethodPut, circlePath(id), map[string]string{
		"name": newName,
	})
}

// Delete removes a circle.
func (s *GroupService) Delete(ctx context.Context, id string) error {
	sess, err := s.sessions.Current(model.RoleAdmin)
	if err != nil {
		return err
	}
	if err := send(ctx, s.rc, sess, http.MethodDelete, circlePath(id), nil); err != nil {
		return err
	}
	s.logger.Info("circle deleted", "id", id)
	return nil
}

// Snapshot reads a circle together with the full user directory under
// one session scope, so membership views and the candidate set for
// AddMember come from a consistent read. Users are sorted by localpart.
func (s *GroupService) Snapshot(ctx context.Context, id string) (*model.Circle, []model.User, error) {
	var circle *model.Circle
	var users []model.User

	err := s.sessions.Scoped(ctx, model.RoleAdmin, func(ctx context.Context, sess *model.Session) error {
		var err error
		if circle, err = s.get(ctx, sess, id); err != nil {
			return err
		}
		if users, err = fetch[[]model.User](ctx, s.rc, sess, http.MethodGet, usersPath, nil); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	sort.Slice(users, func(i, j int) bool {
		return users[i].Localpart < users[j].Localpart
	})
	return circle, users, nil
}

// AddMember adds a user to a circle. The circle and directory are read
// under one session scope and the localpart is validated against the
// resulting non-member candidate set before the write. A concurrent
// mutation between read and write can still race; the backend's answer
// wins in that case.
func (s *GroupService) AddMember(ctx context.Context, id, localpart string) error {
	return s.sessions.Scoped(ctx, model.RoleAdmin, func(ctx context.Context, sess *model.Session) error {
		circle, err := s.get(ctx, sess, id)
		if err != nil {
			return err
		}
		users, err := fetch[[]model.User](ctx, s.rc, sess, http.MethodGet, usersPath, nil)
		if err != nil {
			return err
		}

		candidate := false
		for _, u := range users {
			if u.Localpart == localpart && !circle.HasMember(localpart) {
				candidate = true
				break
			}
		}
		if !candidate {
			return model.NewValidation("user cannot be added to this circle", map[string]string{
				"localpart": "not an addable user",
			})
		}

		if err := send(ctx, s.rc, sess, http.MethodPut, memberPath(id, localpart), nil); err != nil {
			return err
		}
		s.logger.Info("member added", "circle", id, "localpart", localpart)
		return nil
	})
}

// RemoveMember removes a user from a circle. Idempotent: removing a
// non-member succeeds silently, and the backend answering NotFound for
// an absent membership is treated the same way.
func (s *GroupService) RemoveMember(ctx context.Context, id, localpart string) error {
	sess, err := s.sessions.Current(model.RoleAdmin)
	if err != nil {
		return err
	}

	err = send(ctx, s.rc, sess, http.MethodDelete, memberPath(id, localpart), nil)
	if model.IsKind(err, model.KindNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	s.logger.Info("member removed", "circle", id, "localpart", localpart)
	return nil
}

func circlePath(id string) string {
	return circlesPath + "/" + url.PathEscape(id)
}

func memberPath(id, localpart string) string {
	return circlePath(id) + "/members/" + url.PathEscape(localpart)
}
