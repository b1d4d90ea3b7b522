package web

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/me/chatadmin/pkg/model"
)

const defaultInviteTTL = 7 * 86400 // one week, in seconds

type loginBody struct {
	Address  string `json:"address"`
	Password string `json:"password"`
}

// HandleLogin authenticates against the backend and establishes a web
// session. A bare localpart gets the configured domain appended; an
// address for a foreign domain is rejected locally so the password is
// never forwarded anywhere it does not belong.
func (web *Web) HandleLogin(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var body loginBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, reqID, model.NewValidation("invalid request body", nil), web.logger)
		return
	}
	if body.Address == "" || body.Password == "" {
		respondError(w, reqID, model.NewValidation("address and password are required", nil), web.logger)
		return
	}

	address, ok := web.normalizeAddress(body.Address)
	if !ok {
		respondError(w, reqID, model.NewUnauthenticated("invalid username or password"), web.logger)
		return
	}

	client := web.client(r)
	sess, err := client.Sessions.Login(r.Context(), address, body.Password)
	if err != nil {
		respondError(w, reqID, err, web.logger)
		return
	}

	sess.ID, err = newSessionID()
	if err != nil {
		respondError(w, reqID, err, web.logger)
		return
	}
	if err := web.store.CreateSession(r.Context(), sess); err != nil {
		web.logger.Error("store session failed", "error", err)
		respondError(w, reqID, err, web.logger)
		return
	}
	web.setSessionCookie(w, sess)

	web.logger.Info("user logged in", "localpart", sess.Localpart, "role", sess.Role)
	respondOK(w, reqID, map[string]any{
		"localpart": sess.Localpart,
		"role":      sess.Role,
		"next":      safeNext(r.URL.Query().Get("next")),
	})
}

// normalizeAddress expands a bare localpart with the service domain
// and rejects addresses for other domains.
func (web *Web) normalizeAddress(address string) (string, bool) {
	i := strings.IndexByte(address, '@')
	if i < 0 {
		return address + "@" + web.domain, true
	}
	if address[i+1:] != web.domain {
		return "", false
	}
	return address, true
}

// safeNext keeps post-login redirects on this host.
func safeNext(next string) string {
	if strings.HasPrefix(next, "/") && !strings.HasPrefix(next, "//") {
		return next
	}
	return "/"
}

// HandleLogout invalidates the session on the backend and locally.
func (web *Web) HandleLogout(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	sess := SessionFromContext(r.Context())

	client := web.client(r)
	if err := client.Sessions.Logout(r.Context()); err != nil {
		// The local session goes away regardless; backend state will
		// catch up when the credential expires.
		web.logger.Warn("backend logout failed", "error", err)
	}
	if err := web.store.DeleteSession(r.Context(), sess.ID); err != nil {
		web.logger.Error("delete session failed", "error", err)
	}
	clearSessionCookie(w)

	web.logger.Info("user logged out", "localpart", sess.Localpart)
	respondOK(w, reqID, nil)
}

// --- Self-service profile ---

// HandleGetProfile returns the acting account's identity and its
// best-effort profile access model.
func (web *Web) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	sess := SessionFromContext(r.Context())

	am, err := web.client(r).Access.GuessProfileAccessModel(r.Context())
	if err != nil {
		respondError(w, reqID, err, web.logger)
		return
	}
	respondOK(w, reqID, map[string]any{
		"localpart":    sess.Localpart,
		"role":         sess.Role,
		"access_model": am,
	})
}

type updateProfileBody struct {
	Nickname    *string           `json:"nickname,omitempty"`
	Avatar      []byte            `json:"avatar,omitempty"`
	AvatarType  string            `json:"avatar_type,omitempty"`
	AccessModel model.AccessModel `json:"access_model,omitempty"`
}

// HandleUpdateProfile applies nickname, avatar, and visibility changes
// for the acting account. A partially applied access-model fan-out is
// reported as a warning, not silently swallowed.
func (web *Web) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var body updateProfileBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, reqID, model.NewValidation("invalid request body", nil), web.logger)
		return
	}

	client := web.client(r)

	// Empty avatar payloads are skipped inside SetAvatar.
	if err := client.Users.SetAvatar(r.Context(), body.Avatar, body.AvatarType); err != nil {
		respondError(w, reqID, err, web.logger)
		return
	}
	if body.Nickname != nil {
		if err := client.Users.SetNickname(r.Context(), *body.Nickname); err != nil {
			respondError(w, reqID, err, web.logger)
			return
		}
	}

	data := map[string]any{}
	if body.AccessModel != "" {
		applied, err := client.Access.SetProfileAccessModel(r.Context(), body.AccessModel)
		data["applied_facets"] = applied
		if err != nil && len(applied) == 0 {
			respondError(w, reqID, err, web.logger)
			return
		}
		if err != nil {
			respondWarning(w, reqID, data,
				"profile visibility was only partially applied: "+err.Error())
			return
		}
	}
	respondOK(w, reqID, data)
}

type changePasswordBody struct {
	Current string `json:"current"`
	New     string `json:"new"`
}

// HandleChangePassword replaces the acting account's password. A wrong
// current password comes back as field-level validation; the session
// stays usable.
func (web *Web) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var body changePasswordBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, reqID, model.NewValidation("invalid request body", nil), web.logger)
		return
	}
	if body.New == "" {
		respondError(w, reqID, model.NewValidation("new password must not be empty", map[string]string{
			"new": "must not be empty",
		}), web.logger)
		return
	}

	if err := web.client(r).Users.ChangePassword(r.Context(), body.Current, body.New); err != nil {
		respondError(w, reqID, err, web.logger)
		return
	}
	respondOK(w, reqID, nil)
}

// --- Admin: users ---

func (web *Web) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	users, err := web.client(r).Users.List(r.Context())
	if err != nil {
		respondError(w, reqID, err, web.logger)
		return
	}
	respondOK(w, reqID, users)
}

func (web *Web) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	user, err := web.client(r).Users.Get(r.Context(), chi.URLParam(r, "localpart"))
	if err != nil {
		respondError(w, reqID, err, web.logger)
		return
	}
	respondOK(w, reqID, user)
}

func (web *Web) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	if err := web.client(r).Users.Delete(r.Context(), chi.URLParam(r, "localpart")); err != nil {
		respondError(w, reqID, err, web.logger)
		return
	}
	respondOK(w, reqID, nil)
}

func (web *Web) HandleUserDebugInfo(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	info, err := web.client(r).Users.DebugInfo(r.Context(), chi.URLParam(r, "localpart"))
	if err != nil {
		respondError(w, reqID, err, web.logger)
		return
	}
	respondOK(w, reqID, info)
}

type resetLinkBody struct {
	TTL int64 `json:"ttl"`
}

// HandleCreateResetLink creates a password-reset invite for one
// account, verifying the account exists first.
func (web *Web) HandleCreateResetLink(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	localpart := chi.URLParam(r, "localpart")

	var body resetLinkBody
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	if body.TTL == 0 {
		body.TTL = 86400
	}

	client := web.client(r)
	if _, err := client.Users.Get(r.Context(), localpart); err != nil {
		respondError(w, reqID, err, web.logger)
		return
	}
	invite, err := client.Invites.CreatePasswordResetInvite(r.Context(), localpart, body.TTL)
	if err != nil {
		respondError(w, reqID, err, web.logger)
		return
	}
	respondCreated(w, reqID, invite)
}

// --- Admin: invites ---

func (web *Web) HandleListInvites(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	invites, err := web.client(r).Invites.List(r.Context())
	if err != nil {
		respondError(w, reqID, err, web.logger)
		return
	}
	respondOK(w, reqID, invites)
}

type createInviteBody struct {
	Kind   model.InviteKind `json:"kind"`
	Groups []string         `json:"groups"`
	TTL    int64            `json:"ttl"`
}

func (web *Web) HandleCreateInvite(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var body createInviteBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, reqID, model.NewValidation("invalid request body", nil), web.logger)
		return
	}
	if body.TTL == 0 {
		body.TTL = defaultInviteTTL
	}

	client := web.client(r)
	var invite *model.Invite
	var err error
	switch body.Kind {
	case model.InviteGroup:
		invite, err = client.Invites.CreateGroupInvite(r.Context(), body.Groups, body.TTL)
	case model.InviteAccount, "":
		invite, err = client.Invites.CreateAccountInvite(r.Context(), body.Groups, body.TTL)
	default:
		err = model.NewValidation("unknown invitation type", map[string]string{
			"kind": "must be account or group",
		})
	}
	if err != nil {
		respondError(w, reqID, err, web.logger)
		return
	}
	respondCreated(w, reqID, invite)
}

func (web *Web) HandleGetInvite(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	invite, err := web.client(r).Invites.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, reqID, err, web.logger)
		return
	}
	respondOK(w, reqID, invite)
}

// HandleRevokeInvite deletes an invite. Revoking an invite that is
// already gone reports success; the end state is what was asked for.
func (web *Web) HandleRevokeInvite(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := web.client(r).Invites.Revoke(r.Context(), id); err != nil {
		respondError(w, reqID, err, web.logger)
		return
	}
	respondOK(w, reqID, map[string]string{"revoked": id})
}

// --- Admin: circles ---

func (web *Web) HandleListCircles(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	circles, err := web.client(r).Circles.List(r.Context())
	if err != nil {
		respondError(w, reqID, err, web.logger)
		return
	}
	respondOK(w, reqID, circles)
}

type circleBody struct {
	Name string `json:"name"`
}

func (web *Web) HandleCreateCircle(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var body circleBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, reqID, model.NewValidation("invalid request body", nil), web.logger)
		return
	}

	circle, err := web.client(r).Circles.Create(r.Context(), body.Name)
	if err != nil {
		respondError(w, reqID, err, web.logger)
		return
	}
	respondCreated(w, reqID, circle)
}

// HandleGetCircle returns a circle together with its member accounts
// and the localparts that could still be added, from one consistent
// snapshot.
func (web *Web) HandleGetCircle(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	circle, users, err := web.client(r).Circles.Snapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, reqID, err, web.logger)
		return
	}

	members := make([]model.User, 0, len(circle.Members))
	addable := make([]string, 0, len(users))
	for _, u := range users {
		if circle.HasMember(u.Localpart) {
			members = append(members, u)
		} else {
			addable = append(addable, u.Localpart)
		}
	}
	respondOK(w, reqID, map[string]any{
		"circle":  circle,
		"members": members,
		"addable": addable,
	})
}

func (web *Web) HandleUpdateCircle(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var body circleBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, reqID, model.NewValidation("invalid request body", nil), web.logger)
		return
	}

	if err := web.client(r).Circles.Update(r.Context(), chi.URLParam(r, "id"), body.Name); err != nil {
		respondError(w, reqID, err, web.logger)
		return
	}
	respondOK(w, reqID, nil)
}

func (web *Web) HandleDeleteCircle(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	if err := web.client(r).Circles.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, reqID, err, web.logger)
		return
	}
	respondOK(w, reqID, nil)
}

func (web *Web) HandleAddMember(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	err := web.client(r).Circles.AddMember(r.Context(),
		chi.URLParam(r, "id"), chi.URLParam(r, "localpart"))
	if err != nil {
		respondError(w, reqID, err, web.logger)
		return
	}
	respondOK(w, reqID, nil)
}

func (web *Web) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	err := web.client(r).Circles.RemoveMember(r.Context(),
		chi.URLParam(r, "id"), chi.URLParam(r, "localpart"))
	if err != nil {
		respondError(w, reqID, err, web.logger)
		return
	}
	respondOK(w, reqID, nil)
}
