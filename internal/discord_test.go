package internal_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/koopa0/system-design/lobby-linker/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memberInteraction(typ discordgo.InteractionType, data discordgo.InteractionData, perms int64) *discordgo.Interaction {
	return &discordgo.Interaction{
		Type:      typ,
		Data:      data,
		ChannelID: "chan-1",
		Member: &discordgo.Member{
			User:        &discordgo.User{ID: "u-1", Username: "hunter"},
			Permissions: perms,
		},
	}
}

// TestActionFromInteraction 測試互動轉換
func TestActionFromInteraction(t *testing.T) {
	tests := []struct {
		name        string
		interaction *discordgo.Interaction
		wantOK      bool
		validate    func(t *testing.T, action internal.Action)
	}{
		{
			name: "createlobby",
			interaction: memberInteraction(discordgo.InteractionApplicationCommand, discordgo.ApplicationCommandInteractionData{
				Name: "createlobby",
				Options: []*discordgo.ApplicationCommandInteractionDataOption{
					{Name: "lobby_id", Type: discordgo.ApplicationCommandOptionString, Value: "ABC123"},
				},
			}, 0),
			wantOK: true,
			validate: func(t *testing.T, action internal.Action) {
				assert.Equal(t, internal.ActionCreate, action.Kind)
				assert.Equal(t, "ABC123", action.LobbyID)
				assert.Equal(t, "u-1", action.Requester.ID)
				assert.Equal(t, "<@u-1>", action.Requester.Mention)
			},
		},
		{
			name: "activelobby",
			interaction: memberInteraction(discordgo.InteractionApplicationCommand, discordgo.ApplicationCommandInteractionData{
				Name: "activelobby",
			}, 0),
			wantOK: true,
			validate: func(t *testing.T, action internal.Action) {
				assert.Equal(t, internal.ActionQuery, action.Kind)
			},
		},
		{
			name: "unknown command",
			interaction: memberInteraction(discordgo.InteractionApplicationCommand, discordgo.ApplicationCommandInteractionData{
				Name: "other",
			}, 0),
		},
		{
			name: "extend button",
			interaction: func() *discordgo.Interaction {
				i := memberInteraction(discordgo.InteractionMessageComponent, discordgo.MessageComponentInteractionData{
					CustomID: internal.ButtonExtendID,
				}, 0)
				i.Message = &discordgo.Message{ID: "msg-1", ChannelID: "chan-1"}
				return i
			}(),
			wantOK: true,
			validate: func(t *testing.T, action internal.Action) {
				assert.Equal(t, internal.ActionExtend, action.Kind)
				assert.Equal(t, internal.MessageRef{ChannelID: "chan-1", MessageID: "msg-1"}, action.Source)
			},
		},
		{
			name: "expire button without message channel",
			interaction: func() *discordgo.Interaction {
				i := memberInteraction(discordgo.InteractionMessageComponent, discordgo.MessageComponentInteractionData{
					CustomID: internal.ButtonExpireID,
				}, discordgo.PermissionModerateMembers)
				i.Message = &discordgo.Message{ID: "msg-1"}
				return i
			}(),
			wantOK: true,
			validate: func(t *testing.T, action internal.Action) {
				assert.Equal(t, internal.ActionForceExpire, action.Kind)
				assert.Equal(t, "chan-1", action.Source.ChannelID)
				assert.True(t, action.Requester.Permissions.ModerateMembers)
			},
		},
		{
			name: "unknown button",
			interaction: memberInteraction(discordgo.InteractionMessageComponent, discordgo.MessageComponentInteractionData{
				CustomID: "something:else",
			}, 0),
		},
		{
			name:        "ping",
			interaction: &discordgo.Interaction{Type: discordgo.InteractionPing},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, ok := internal.ActionFromInteraction(tt.interaction)
			require.Equal(t, tt.wantOK, ok)
			if tt.validate != nil {
				tt.validate(t, action)
			}
		})
	}
}

// TestIdentityFromInteraction 權限位元轉換
func TestIdentityFromInteraction(t *testing.T) {
	tests := []struct {
		name  string
		perms int64
		want  internal.Permissions
	}{
		{name: "none", perms: discordgo.PermissionSendMessages},
		{name: "administrator", perms: discordgo.PermissionAdministrator, want: internal.Permissions{Administrator: true}},
		{name: "moderator", perms: discordgo.PermissionModerateMembers, want: internal.Permissions{ModerateMembers: true}},
		{
			name:  "both",
			perms: discordgo.PermissionAdministrator | discordgo.PermissionModerateMembers,
			want:  internal.Permissions{Administrator: true, ModerateMembers: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i := memberInteraction(discordgo.InteractionApplicationCommand, discordgo.ApplicationCommandInteractionData{}, tt.perms)
			identity := internal.IdentityFromInteraction(i)
			assert.Equal(t, "u-1", identity.ID)
			assert.Equal(t, "hunter", identity.Name)
			assert.Equal(t, tt.want, identity.Permissions)
		})
	}

	t.Run("direct message user", func(t *testing.T) {
		identity := internal.IdentityFromInteraction(&discordgo.Interaction{
			User: &discordgo.User{ID: "u-9", Username: "dm"},
		})
		assert.Equal(t, "u-9", identity.ID)
		assert.Equal(t, internal.Permissions{}, identity.Permissions)
	})

	t.Run("no user", func(t *testing.T) {
		assert.Equal(t, internal.Identity{}, internal.IdentityFromInteraction(&discordgo.Interaction{}))
	})
}

// TestClassifyRenderError 403 對應缺少權限
func TestClassifyRenderError(t *testing.T) {
	restErr := func(status int) error {
		return &discordgo.RESTError{
			Response:     &http.Response{StatusCode: status, Status: http.StatusText(status)},
			ResponseBody: []byte(`{}`),
		}
	}

	assert.NoError(t, internal.ClassifyRenderError(nil))

	err := internal.ClassifyRenderError(restErr(http.StatusForbidden))
	assert.ErrorIs(t, err, internal.ErrRenderPermission)
	assert.NotErrorIs(t, err, internal.ErrRenderFailed)

	err = internal.ClassifyRenderError(fmt.Errorf("edit: %w", restErr(http.StatusForbidden)))
	assert.ErrorIs(t, err, internal.ErrRenderPermission)

	err = internal.ClassifyRenderError(restErr(http.StatusNotFound))
	assert.ErrorIs(t, err, internal.ErrRenderFailed)

	err = internal.ClassifyRenderError(errors.New("connection reset"))
	assert.ErrorIs(t, err, internal.ErrRenderFailed)
}

func TestNewBot_MissingToken(t *testing.T) {
	_, err := internal.NewBot("", "", nil, testLogger())
	require.ErrorIs(t, err, internal.ErrConfigMissing)
}

func TestCommands(t *testing.T) {
	names := make([]string, 0, len(internal.Commands))
	for _, cmd := range internal.Commands {
		names = append(names, cmd.Name)
	}
	assert.ElementsMatch(t, []string{"createlobby", "activelobby"}, names)

	create := internal.Commands[0]
	require.Len(t, create.Options, 1)
	assert.Equal(t, "lobby_id", create.Options[0].Name)
	assert.True(t, create.Options[0].Required)
}
