package backend_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/me/chatadmin/internal/backend"
	"github.com/me/chatadmin/internal/logging"
	"github.com/me/chatadmin/pkg/model"
)

// fakeBackend is an in-memory stand-in for the chat backend's admin
// API, implementing exactly the operations the portal consumes.
type fakeBackend struct {
	mu sync.Mutex

	accounts map[string]fakeAccount // login address -> account
	issued   map[string]bool        // accepted bearer tokens

	users      []model.User
	invites    map[string]model.Invite
	nextInvite int
	circles    map[string]*model.Circle

	password string // current account password for the password endpoint
	nickname string
	avatar   []byte
	facets   map[model.Facet]model.AccessModel

	failFacetPut  map[model.Facet]int // facet -> forced status on PUT
	totalCalls    int
	tokenLifetime time.Duration // credential validity on login
}

type fakeAccount struct {
	password string
	role     model.Role
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		accounts: map[string]fakeAccount{
			"admin@example.com": {password: "adminpw", role: model.RoleAdmin},
			"alice@example.com": {password: "alicepw", role: model.RoleUser},
		},
		issued:       map[string]bool{},
		invites:      map[string]model.Invite{},
		circles:      map[string]*model.Circle{},
		password:      "alicepw",
		facets:        map[model.Facet]model.AccessModel{},
		failFacetPut:  map[model.Facet]int{},
		tokenLifetime: time.Hour,
	}
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.totalCalls
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func (f *fakeBackend) handler() http.Handler {
	r := chi.NewRouter()

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			f.mu.Lock()
			f.totalCalls++
			f.mu.Unlock()
			next.ServeHTTP(w, req)
		})
	})

	r.Post("/admin/api/v1/session", f.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(f.requireToken)

		r.Delete("/admin/api/v1/session", func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})

		r.Get("/admin/api/v1/users", func(w http.ResponseWriter, req *http.Request) {
			f.mu.Lock()
			defer f.mu.Unlock()
			writeJSON(w, http.StatusOK, f.users)
		})
		r.Get("/admin/api/v1/users/{localpart}", f.handleGetUser)
		r.Delete("/admin/api/v1/users/{localpart}", f.handleDeleteUser)
		r.Get("/admin/api/v1/users/{localpart}/debug", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"localpart":   chi.URLParam(req, "localpart"),
				"connections": 2,
			})
		})

		r.Get("/admin/api/v1/invites", func(w http.ResponseWriter, req *http.Request) {
			f.mu.Lock()
			defer f.mu.Unlock()
			out := make([]model.Invite, 0, len(f.invites))
			for _, inv := range f.invites {
				out = append(out, inv)
			}
			writeJSON(w, http.StatusOK, out)
		})
		r.Post("/admin/api/v1/invites", f.handleCreateInvite)
		r.Get("/admin/api/v1/invites/{id}", f.handleGetInvite)
		r.Delete("/admin/api/v1/invites/{id}", f.handleDeleteInvite)

		r.Get("/admin/api/v1/circles", func(w http.ResponseWriter, req *http.Request) {
			f.mu.Lock()
			defer f.mu.Unlock()
			out := make([]model.Circle, 0, len(f.circles))
			for _, c := range f.circles {
				out = append(out, *c)
			}
			writeJSON(w, http.StatusOK, out)
		})
		r.Post("/admin/api/v1/circles", f.handleCreateCircle)
		r.Get("/admin/api/v1/circles/{id}", f.handleGetCircle)
		r.Put("/admin/api/v1/circles/{id}", f.handleUpdateCircle)
		r.Delete("/admin/api/v1/circles/{id}", f.handleDeleteCircle)
		r.Put("/admin/api/v1/circles/{id}/members/{localpart}", f.handleAddMember)
		r.Delete("/admin/api/v1/circles/{id}/members/{localpart}", f.handleRemoveMember)

		r.Put("/api/v1/account/password", f.handleChangePassword)
		r.Put("/api/v1/account/nickname", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Nickname string `json:"nickname"`
			}
			json.NewDecoder(req.Body).Decode(&body)
			f.mu.Lock()
			f.nickname = body.Nickname
			f.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		})
		r.Put("/api/v1/account/avatar", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Data []byte `json:"data"`
				Type string `json:"type"`
			}
			json.NewDecoder(req.Body).Decode(&body)
			f.mu.Lock()
			f.avatar = body.Data
			f.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		})
		r.Get("/api/v1/account/access/{facet}", f.handleGetFacet)
		r.Put("/api/v1/account/access/{facet}", f.handleSetFacet)
	})

	return r
}

func (f *fakeBackend) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		auth := req.Header.Get("Authorization")
		f.mu.Lock()
		ok := len(auth) > 7 && f.issued[auth[7:]]
		f.mu.Unlock()
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing or invalid token")
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (f *fakeBackend) handleLogin(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Address  string `json:"address"`
		Password string `json:"password"`
	}
	json.NewDecoder(req.Body).Decode(&body)

	f.mu.Lock()
	defer f.mu.Unlock()
	acct, ok := f.accounts[body.Address]
	if !ok || acct.password != body.Password {
		writeError(w, http.StatusUnauthorized, "bad credentials")
		return
	}
	token := "tok-" + body.Address
	f.issued[token] = true
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"role":       acct.role,
		"expires_at": time.Now().UTC().Add(f.tokenLifetime),
	})
}

func (f *fakeBackend) handleGetUser(w http.ResponseWriter, req *http.Request) {
	lp := chi.URLParam(req, "localpart")
	if lp == "teapot" {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
		return
	}
	if lp == "garbled" {
		// Nominal success carrying a body that is not JSON.
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("::not json::"))
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Localpart == lp {
			writeJSON(w, http.StatusOK, u)
			return
		}
	}
	writeError(w, http.StatusNotFound, "user not found")
}

func (f *fakeBackend) handleDeleteUser(w http.ResponseWriter, req *http.Request) {
	lp := chi.URLParam(req, "localpart")
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, u := range f.users {
		if u.Localpart == lp {
			f.users = append(f.users[:i], f.users[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeError(w, http.StatusNotFound, "user not found")
}

func (f *fakeBackend) handleCreateInvite(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Kind      model.InviteKind `json:"kind"`
		Groups    []string         `json:"groups"`
		TTL       int64            `json:"ttl"`
		Localpart string           `json:"localpart"`
	}
	json.NewDecoder(req.Body).Decode(&body)
	if body.TTL <= 0 {
		writeError(w, http.StatusBadRequest, "ttl must be positive")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextInvite++
	inv := model.Invite{
		ID:        "inv-" + time.Now().UTC().Format("150405") + "-" + string(rune('a'+f.nextInvite)),
		Kind:      body.Kind,
		CreatedAt: time.Now().UTC(),
		TTL:       body.TTL,
		Groups:    body.Groups,
		Localpart: body.Localpart,
	}
	f.invites[inv.ID] = inv
	writeJSON(w, http.StatusCreated, inv)
}

func (f *fakeBackend) handleGetInvite(w http.ResponseWriter, req *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.invites[chi.URLParam(req, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "invite not found")
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (f *fakeBackend) handleDeleteInvite(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.invites[id]; !ok {
		writeError(w, http.StatusNotFound, "invite not found")
		return
	}
	delete(f.invites, id)
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeBackend) handleCreateCircle(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	json.NewDecoder(req.Body).Decode(&body)
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &model.Circle{
		ID:      "circle-" + body.Name,
		Name:    body.Name,
		Members: []string{},
	}
	f.circles[c.ID] = c
	writeJSON(w, http.StatusCreated, c)
}

func (f *fakeBackend) handleGetCircle(w http.ResponseWriter, req *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.circles[chi.URLParam(req, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "circle not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (f *fakeBackend) handleUpdateCircle(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	json.NewDecoder(req.Body).Decode(&body)
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.circles[chi.URLParam(req, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "circle not found")
		return
	}
	c.Name = body.Name
	writeJSON(w, http.StatusOK, c)
}

func (f *fakeBackend) handleDeleteCircle(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.circles[id]; !ok {
		writeError(w, http.StatusNotFound, "circle not found")
		return
	}
	delete(f.circles, id)
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeBackend) handleAddMember(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	lp := chi.URLParam(req, "localpart")
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.circles[id]
	if !ok {
		writeError(w, http.StatusNotFound, "circle not found")
		return
	}
	if !c.HasMember(lp) {
		c.Members = append(c.Members, lp)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeBackend) handleRemoveMember(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	lp := chi.URLParam(req, "localpart")
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.circles[id]
	if !ok {
		writeError(w, http.StatusNotFound, "circle not found")
		return
	}
	for i, m := range c.Members {
		if m == lp {
			c.Members = append(c.Members[:i], c.Members[i+1:]...)
			break
		}
	}
	// Removal of a non-member falls through to the same answer.
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeBackend) handleChangePassword(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Current string `json:"current"`
		New     string `json:"new"`
	}
	json.NewDecoder(req.Body).Decode(&body)
	f.mu.Lock()
	defer f.mu.Unlock()
	if body.Current != f.password {
		writeError(w, http.StatusUnauthorized, "current password rejected")
		return
	}
	f.password = body.New
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeBackend) handleGetFacet(w http.ResponseWriter, req *http.Request) {
	facet := model.Facet(chi.URLParam(req, "facet"))
	f.mu.Lock()
	defer f.mu.Unlock()
	am, ok := f.facets[facet]
	if !ok {
		writeError(w, http.StatusNotFound, "no access model set")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"model": string(am)})
}

func (f *fakeBackend) handleSetFacet(w http.ResponseWriter, req *http.Request) {
	facet := model.Facet(chi.URLParam(req, "facet"))
	f.mu.Lock()
	defer f.mu.Unlock()
	if status := f.failFacetPut[facet]; status != 0 {
		writeError(w, status, "facet write refused")
		return
	}
	var body struct {
		Model model.AccessModel `json:"model"`
	}
	json.NewDecoder(req.Body).Decode(&body)
	f.facets[facet] = body.Model
	w.WriteHeader(http.StatusNoContent)
}

// startBackend wires a fake backend to a fresh client.
func startBackend(t *testing.T) (*fakeBackend, *backend.Client) {
	t.Helper()
	f := newFakeBackend()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	tr := backend.NewTransport(srv.URL, 5*time.Second, logging.Discard())
	return f, backend.NewClient(tr, time.Hour, logging.Discard())
}

func loginAdmin(t *testing.T, c *backend.Client) *model.Session {
	t.Helper()
	sess, err := c.Sessions.Login(context.Background(), "admin@example.com", "adminpw")
	require.NoError(t, err)
	return sess
}

func loginUser(t *testing.T, c *backend.Client) *model.Session {
	t.Helper()
	sess, err := c.Sessions.Login(context.Background(), "alice@example.com", "alicepw")
	require.NoError(t, err)
	return sess
}
