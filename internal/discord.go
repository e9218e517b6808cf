package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

const interactionTimeout = 10 * time.Second

// Commands 斜線指令定義
var Commands = []*discordgo.ApplicationCommand{
	{
		Name:        "createlobby",
		Description: "Create a Monster Hunter Wilds lobby",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "lobby_id",
				Description: "Lobby ID",
				Required:    true,
			},
		},
	},
	{
		Name:        "activelobby",
		Description: "Show the active Monster Hunter Wilds lobby",
	},
}

// Bot Discord 呈現層
//
// 負責把斜線指令與按鈕轉成 Action 交給 Controller，
// 再把 Reply 送回給請求者。ready 之後才觸發 onReady（啟動清掃）。
type Bot struct {
	session    *discordgo.Session
	controller *Controller
	guildID    string
	logger     *slog.Logger

	mu      sync.Mutex
	onReady func(ctx context.Context)
}

// NewBot 創建 Bot（尚未連線）
func NewBot(token, guildID string, controller *Controller, logger *slog.Logger) (*Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("discord token: %w", ErrConfigMissing)
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages

	return &Bot{
		session:    session,
		controller: controller,
		guildID:    guildID,
		logger:     logger,
	}, nil
}

// OnReady 設定 ready 後的回呼（平台重連時會再次觸發）
func (b *Bot) OnReady(fn func(ctx context.Context)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onReady = fn
}

// Open 註冊事件處理並連線
func (b *Bot) Open(ctx context.Context) error {
	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.handleReady(ctx, s, r)
	})
	b.session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		b.handleInteraction(ctx, s, i)
	})

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("discord open: %w", err)
	}
	return nil
}

// Close 關閉連線
func (b *Bot) Close() error {
	return b.session.Close()
}

// Sink 不綁定互動的 RenderSink（背景清掃使用）
func (b *Bot) Sink() RenderSink {
	return &sessionSink{session: b.session}
}

func (b *Bot) handleReady(ctx context.Context, s *discordgo.Session, r *discordgo.Ready) {
	b.logger.Info("✅ Logged in", "user", r.User.String())

	if err := b.syncCommands(s, r.User.ID); err != nil {
		// 不致命：繼續以舊的指令定義運作
		b.logger.Error("❌ Sync failed", "error", err)
	}

	b.mu.Lock()
	onReady := b.onReady
	b.mu.Unlock()
	if onReady != nil {
		onReady(ctx)
	}
}

// syncCommands 同步斜線指令；有 GUILD_ID 時只同步到該伺服器
func (b *Bot) syncCommands(s *discordgo.Session, appID string) error {
	synced, err := s.ApplicationCommandBulkOverwrite(appID, b.guildID, Commands)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCommandSync, err)
	}
	b.logger.Info("🧙 Synced commands", "count", len(synced), "guild_id", b.guildID)
	return nil
}

func (b *Bot) handleInteraction(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	action, ok := ActionFromInteraction(i.Interaction)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, interactionTimeout)
	defer cancel()

	sink := &interactionSink{
		sessionSink: sessionSink{session: s},
		interaction: i.Interaction,
	}

	reply := b.controller.Handle(ctx, action, sink)
	if reply == nil {
		return
	}
	if err := sink.reply(ctx, *reply); err != nil {
		b.logger.Error("回應互動失敗",
			"action", action.Kind.String(),
			"requester", action.Requester.ID,
			"error", err)
	}
}

// ActionFromInteraction 將 Discord 互動轉成 Action；不認得的互動回傳 false
func ActionFromInteraction(i *discordgo.Interaction) (Action, bool) {
	action := Action{Requester: IdentityFromInteraction(i)}

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		switch data.Name {
		case "createlobby":
			action.Kind = ActionCreate
			for _, opt := range data.Options {
				if opt.Name == "lobby_id" {
					action.LobbyID = opt.StringValue()
				}
			}
		case "activelobby":
			action.Kind = ActionQuery
		default:
			return Action{}, false
		}
	case discordgo.InteractionMessageComponent:
		switch i.MessageComponentData().CustomID {
		case ButtonExtendID:
			action.Kind = ActionExtend
		case ButtonExpireID:
			action.Kind = ActionForceExpire
		default:
			return Action{}, false
		}
		if i.Message != nil {
			action.Source = MessageRef{ChannelID: i.Message.ChannelID, MessageID: i.Message.ID}
		}
		if action.Source.ChannelID == "" {
			action.Source.ChannelID = i.ChannelID
		}
	default:
		return Action{}, false
	}

	return action, true
}

// IdentityFromInteraction 取出請求者身分與權限
func IdentityFromInteraction(i *discordgo.Interaction) Identity {
	var (
		user  *discordgo.User
		perms int64
	)
	if i.Member != nil {
		user = i.Member.User
		perms = i.Member.Permissions
	}
	if user == nil {
		user = i.User
	}
	if user == nil {
		return Identity{}
	}

	return Identity{
		ID:      user.ID,
		Name:    user.Username,
		Mention: user.Mention(),
		Permissions: Permissions{
			Administrator:   perms&discordgo.PermissionAdministrator != 0,
			ModerateMembers: perms&discordgo.PermissionModerateMembers != 0,
		},
	}
}

// sessionSink 以 REST API 更新訊息
type sessionSink struct {
	session *discordgo.Session
}

// RenderNew 新大廳訊息必須回應建立它的互動
func (s *sessionSink) RenderNew(ctx context.Context, content Content) (MessageRef, error) {
	return MessageRef{}, fmt.Errorf("%w: new lobby messages require an interaction", ErrRenderFailed)
}

// RenderEdit 替換訊息內容；沒有 embed/按鈕的畫面會清除原本的 embed 與控制項
func (s *sessionSink) RenderEdit(ctx context.Context, ref MessageRef, content Content) error {
	if ref.IsZero() {
		return fmt.Errorf("%w: empty message reference", ErrRenderFailed)
	}

	view := content.View()
	text := view.Text
	embeds := discordEmbeds(view)
	components := discordComponents(view)

	edit := discordgo.NewMessageEdit(ref.ChannelID, ref.MessageID)
	edit.Content = &text
	edit.Embeds = &embeds
	edit.Components = &components

	if _, err := s.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx)); err != nil {
		return ClassifyRenderError(err)
	}
	return nil
}

// Announce 在頻道發送公開訊息
func (s *sessionSink) Announce(ctx context.Context, channelID, text string) error {
	if channelID == "" {
		return fmt.Errorf("%w: empty channel", ErrRenderFailed)
	}
	if _, err := s.session.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx)); err != nil {
		return ClassifyRenderError(err)
	}
	return nil
}

// interactionSink 綁定單一互動：RenderNew 走 defer + followup，回覆走互動回應
type interactionSink struct {
	sessionSink
	interaction *discordgo.Interaction
	responded   bool
}

func (s *interactionSink) RenderNew(ctx context.Context, content Content) (MessageRef, error) {
	err := s.session.InteractionRespond(s.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return MessageRef{}, ClassifyRenderError(err)
	}
	s.responded = true

	view := content.View()
	msg, err := s.session.FollowupMessageCreate(s.interaction, true, &discordgo.WebhookParams{
		Content:    view.Text,
		Embeds:     discordEmbeds(view),
		Components: discordComponents(view),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return MessageRef{}, ClassifyRenderError(err)
	}
	return MessageRef{ChannelID: msg.ChannelID, MessageID: msg.ID}, nil
}

// reply 回覆請求者；已 defer 過則改用 followup
func (s *interactionSink) reply(ctx context.Context, reply Reply) error {
	view := reply.Content.View()

	var flags discordgo.MessageFlags
	if reply.Ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}

	if s.responded {
		_, err := s.session.FollowupMessageCreate(s.interaction, true, &discordgo.WebhookParams{
			Content:    view.Text,
			Embeds:     discordEmbeds(view),
			Components: discordComponents(view),
			Flags:      flags,
		}, discordgo.WithContext(ctx))
		return err
	}

	s.responded = true
	return s.session.InteractionRespond(s.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:    view.Text,
			Embeds:     discordEmbeds(view),
			Components: discordComponents(view),
			Flags:      flags,
		},
	}, discordgo.WithContext(ctx))
}

// ClassifyRenderError HTTP 403 視為缺少權限，其他都是一般失敗
func ClassifyRenderError(err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: %w", ErrRenderPermission, err)
	}
	return fmt.Errorf("%w: %w", ErrRenderFailed, err)
}

func discordEmbeds(view View) []*discordgo.MessageEmbed {
	if view.Embed == nil {
		return []*discordgo.MessageEmbed{}
	}
	embed := &discordgo.MessageEmbed{
		Title:       view.Embed.Title,
		Description: view.Embed.Description,
		Color:       view.Embed.Color,
	}
	if view.Embed.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: view.Embed.Footer}
	}
	return []*discordgo.MessageEmbed{embed}
}

func discordComponents(view View) []discordgo.MessageComponent {
	if len(view.Buttons) == 0 {
		return []discordgo.MessageComponent{}
	}

	buttons := make([]discordgo.MessageComponent, 0, len(view.Buttons))
	for _, btn := range view.Buttons {
		style := discordgo.SuccessButton
		if btn.Danger {
			style = discordgo.DangerButton
		}
		buttons = append(buttons, discordgo.Button{
			Label:    btn.Label,
			Style:    style,
			CustomID: btn.CustomID,
		})
	}
	return []discordgo.MessageComponent{discordgo.ActionsRow{Components: buttons}}
}
