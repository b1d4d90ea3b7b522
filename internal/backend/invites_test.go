package backend_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/me/chatadmin/pkg/model"
)

func TestInviteList_SortedNewestFirstExcludingResets(t *testing.T) {
	f, c := startBackend(t)
	loginAdmin(t, c)

	base := time.Now().UTC()
	f.invites = map[string]model.Invite{
		"old":   {ID: "old", Kind: model.InviteAccount, CreatedAt: base.Add(-2 * time.Hour), TTL: 3600},
		"new":   {ID: "new", Kind: model.InviteGroup, CreatedAt: base, TTL: 3600, Groups: []string{"g1"}},
		"mid":   {ID: "mid", Kind: model.InviteAccount, CreatedAt: base.Add(-time.Hour), TTL: 3600},
		"reset": {ID: "reset", Kind: model.InvitePasswordReset, CreatedAt: base.Add(time.Hour), TTL: 3600},
	}

	invites, err := c.Invites.List(context.Background())
	require.NoError(t, err)
	require.Len(t, invites, 3, "password-reset invites are excluded")
	assert.Equal(t, "new", invites[0].ID)
	assert.Equal(t, "mid", invites[1].ID)
	assert.Equal(t, "old", invites[2].ID)
}

func TestCreateGroupInvite_EmptyGroupsFailsLocally(t *testing.T) {
	f, c := startBackend(t)
	loginAdmin(t, c)

	before := f.callCount()
	_, err := c.Invites.CreateGroupInvite(context.Background(), nil, 86400)
	require.Equal(t, model.KindValidation, model.KindOf(err))
	assert.Equal(t, before, f.callCount(), "validation must fail before any remote call")
}

func TestCreateInvite_NonPositiveTTLFailsLocally(t *testing.T) {
	f, c := startBackend(t)
	loginAdmin(t, c)

	before := f.callCount()
	_, err := c.Invites.CreateAccountInvite(context.Background(), nil, 0)
	assert.Equal(t, model.KindValidation, model.KindOf(err))
	assert.Equal(t, before, f.callCount())
}

func TestCreatePasswordResetInvite(t *testing.T) {
	_, c := startBackend(t)
	loginAdmin(t, c)

	inv, err := c.Invites.CreatePasswordResetInvite(context.Background(), "alice", 86400)
	require.NoError(t, err)
	assert.Equal(t, model.InvitePasswordReset, inv.Kind)
	assert.Equal(t, "alice", inv.Localpart)
	assert.True(t, inv.IsReset())
}

func TestRevoke_UnknownIDIsBenign(t *testing.T) {
	_, c := startBackend(t)
	loginAdmin(t, c)

	// The desired end state, invite gone, is already achieved.
	require.NoError(t, c.Invites.Revoke(context.Background(), "no-such-invite"))
}

func TestInviteLifecycle(t *testing.T) {
	_, c := startBackend(t)
	ctx := context.Background()
	loginAdmin(t, c)

	created, err := c.Invites.CreateAccountInvite(ctx, nil, 3600)
	require.NoError(t, err)

	got, err := c.Invites.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3600), got.TTL)
	assert.Equal(t, model.InviteAccount, got.Kind)

	require.NoError(t, c.Invites.Revoke(ctx, created.ID))

	_, err = c.Invites.Get(ctx, created.ID)
	assert.Equal(t, model.KindNotFound, model.KindOf(err))
}

func TestInviteOperations_RequireAdmin(t *testing.T) {
	_, c := startBackend(t)
	loginUser(t, c)

	_, err := c.Invites.List(context.Background())
	assert.Equal(t, model.KindForbidden, model.KindOf(err))

	_, err = c.Invites.CreateAccountInvite(context.Background(), nil, 3600)
	assert.Equal(t, model.KindForbidden, model.KindOf(err))
}
