package internal

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscordComponents(t *testing.T) {
	active := Content{Kind: ContentLobbyActive, Lobby: Lobby{
		ID:        "ABC123",
		Creator:   Identity{ID: "u-1", Name: "hunter"},
		ExpiresAt: time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC),
	}}.View()

	components := discordComponents(active)
	require.Len(t, components, 1)
	row, ok := components[0].(discordgo.ActionsRow)
	require.True(t, ok)
	require.Len(t, row.Components, 2)

	extend := row.Components[0].(discordgo.Button)
	assert.Equal(t, ButtonExtendID, extend.CustomID)
	assert.Equal(t, discordgo.SuccessButton, extend.Style)

	expire := row.Components[1].(discordgo.Button)
	assert.Equal(t, ButtonExpireID, expire.CustomID)
	assert.Equal(t, discordgo.DangerButton, expire.Style)

	embeds := discordEmbeds(active)
	require.Len(t, embeds, 1)
	assert.Equal(t, colorGreen, embeds[0].Color)
	require.NotNil(t, embeds[0].Footer)
	assert.Contains(t, embeds[0].Footer.Text, "Created by hunter")
}

// 過期畫面要清除 embed 與按鈕，必須是空切片而非 nil
func TestDiscordComponents_Cleared(t *testing.T) {
	expired := Content{Kind: ContentExpiredBySweep, Lobby: Lobby{Creator: Identity{Mention: "<@u-1>"}}}.View()

	components := discordComponents(expired)
	assert.NotNil(t, components)
	assert.Empty(t, components)

	embeds := discordEmbeds(expired)
	assert.NotNil(t, embeds)
	assert.Empty(t, embeds)
}

func TestSessionSink_RejectsEmptyTargets(t *testing.T) {
	sink := &sessionSink{}
	ctx := context.Background()

	err := sink.RenderEdit(ctx, MessageRef{}, Notice("x"))
	assert.ErrorIs(t, err, ErrRenderFailed)

	err = sink.Announce(ctx, "", "x")
	assert.ErrorIs(t, err, ErrRenderFailed)

	_, err = sink.RenderNew(ctx, Notice("x"))
	assert.ErrorIs(t, err, ErrRenderFailed)
}
