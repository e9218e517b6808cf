package internal

import (
	"context"
	"errors"
	"log/slog"
)

// 系統設計問題：
//   狀態機決定「能不能」，但使用者需要知道「發生了什麼」。
//
// 設計方案：
//   ✅ Action 列舉 - 斜線指令與按鈕統一轉成 Action，與傳輸層解耦
//   ✅ RenderSink 介面 - 核心只下達「呈現 X」，不直接操作訊息
//   ✅ 先改狀態再呈現 - 呈現失敗不回滾槽位，只回報給請求者

// ActionKind 使用者操作種類
type ActionKind int

const (
	ActionCreate ActionKind = iota
	ActionQuery
	ActionExtend
	ActionForceExpire
)

func (k ActionKind) String() string {
	switch k {
	case ActionCreate:
		return "create"
	case ActionQuery:
		return "query"
	case ActionExtend:
		return "extend"
	case ActionForceExpire:
		return "force_expire"
	default:
		return "unknown"
	}
}

// Action 一次使用者操作
type Action struct {
	Kind      ActionKind
	LobbyID   string     // ActionCreate
	Requester Identity
	Source    MessageRef // 按鈕所在的訊息
}

// RenderSink 呈現層
//
// RenderEdit 的錯誤必須可被 errors.Is 判斷為 ErrRenderPermission 或 ErrRenderFailed。
type RenderSink interface {
	RenderNew(ctx context.Context, content Content) (MessageRef, error)
	RenderEdit(ctx context.Context, ref MessageRef, content Content) error
	Announce(ctx context.Context, channelID, text string) error
}

// Reply 回給請求者的內容；Ephemeral 表示只有請求者看得到
type Reply struct {
	Content   Content
	Ephemeral bool
}

func ephemeral(text string) *Reply {
	return &Reply{Content: Notice(text), Ephemeral: true}
}

// Controller 生命週期控制器
type Controller struct {
	manager *Manager
	clock   Clock
	logger  *slog.Logger
}

// NewController 創建控制器
func NewController(manager *Manager, clock Clock, logger *slog.Logger) *Controller {
	if clock == nil {
		clock = SystemClock
	}
	return &Controller{
		manager: manager,
		clock:   clock,
		logger:  logger,
	}
}

// Handle 處理一次使用者操作，回傳 nil 代表呈現層已自行回應（例如 RenderNew）
func (c *Controller) Handle(ctx context.Context, action Action, sink RenderSink) *Reply {
	switch action.Kind {
	case ActionCreate:
		return c.create(ctx, action, sink)
	case ActionQuery:
		return c.query()
	case ActionExtend:
		return c.extend(ctx, action, sink)
	case ActionForceExpire:
		return c.forceExpire(ctx, action, sink)
	default:
		c.logger.Warn("未知的操作", "kind", action.Kind)
		return nil
	}
}

func (c *Controller) create(ctx context.Context, action Action, sink RenderSink) *Reply {
	lobby, err := c.manager.TryCreate(action.LobbyID, action.Requester, c.clock.Now())
	if err != nil {
		return c.rejection(action, err)
	}

	ref, err := sink.RenderNew(ctx, Content{Kind: ContentLobbyActive, Lobby: lobby})
	if err != nil {
		// 沒有訊息就沒有按鈕可以結束大廳，撤銷建立
		RenderFailures.WithLabelValues("create").Inc()
		c.logger.Error("呈現新大廳失敗", "lobby_id", lobby.ID, "error", err)
		c.manager.Discard(lobby.Seq, c.clock.Now())
		return ephemeral(TextCreateFailed)
	}

	if !c.manager.AttachMessage(lobby.Seq, ref) {
		c.logger.Warn("大廳在呈現期間已結束，略過訊息綁定", "lobby_id", lobby.ID)
	}
	return nil
}

func (c *Controller) query() *Reply {
	lobby, ok := c.manager.Get()
	if !ok {
		return ephemeral(TextNoActiveLobby)
	}
	return &Reply{Content: Content{Kind: ContentLobbySummary, Lobby: lobby}}
}

func (c *Controller) extend(ctx context.Context, action Action, sink RenderSink) *Reply {
	lobby, err := c.manager.Extend(action.Requester, c.clock.Now())
	if err != nil {
		return c.rejection(action, err)
	}

	ref := messageFor(lobby, action)
	if err := sink.RenderEdit(ctx, ref, Content{Kind: ContentLobbyActive, Lobby: lobby}); err != nil {
		RenderFailures.WithLabelValues("extend").Inc()
		c.logger.Error("更新大廳訊息失敗", "lobby_id", lobby.ID, "error", err)
		return ephemeral(TextExtendRenderFail)
	}
	if err := sink.Announce(ctx, ref.ChannelID, ExtendAnnouncement(lobby)); err != nil {
		RenderFailures.WithLabelValues("announce").Inc()
		c.logger.Error("發送延長通知失敗", "lobby_id", lobby.ID, "error", err)
	}
	return ephemeral(TextExtended)
}

// forceExpire 先清空槽位再嘗試更新訊息；更新失敗不回滾
func (c *Controller) forceExpire(ctx context.Context, action Action, sink RenderSink) *Reply {
	lobby, err := c.manager.ForceExpire(action.Requester, c.clock.Now())
	if err != nil {
		return c.rejection(action, err)
	}

	content := Content{Kind: ContentExpiredByUser, Lobby: lobby, Actor: action.Requester}
	if err := sink.RenderEdit(ctx, messageFor(lobby, action), content); err != nil {
		RenderFailures.WithLabelValues("force_expire").Inc()
		if errors.Is(err, ErrRenderPermission) {
			c.logger.Warn("缺少訊息權限，無法更新過期訊息", "lobby_id", lobby.ID, "error", err)
			return ephemeral(TextBotMissingPerms)
		}
		c.logger.Error("更新過期訊息失敗", "lobby_id", lobby.ID, "error", err)
		return ephemeral(TextExpireFailed)
	}
	return ephemeral(TextExpired)
}

// Sweep 執行一次清掃；呈現錯誤只記錄不回傳，清掃迴圈不會因此停止
func (c *Controller) Sweep(ctx context.Context, sink RenderSink) {
	SweepTicks.Inc()

	lobby, expired := c.manager.SweepExpire(c.clock.Now())
	if !expired {
		return
	}
	if lobby.Message.IsZero() {
		c.logger.Warn("過期大廳沒有綁定訊息", "lobby_id", lobby.ID)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("清掃呈現時發生 panic", "lobby_id", lobby.ID, "error", r)
		}
	}()

	if err := sink.RenderEdit(ctx, lobby.Message, Content{Kind: ContentExpiredBySweep, Lobby: lobby}); err != nil {
		RenderFailures.WithLabelValues("sweep").Inc()
		c.logger.Error("更新過期訊息失敗", "lobby_id", lobby.ID, "error", err)
	}
}

// rejection 將拒絕原因轉為 ephemeral 通知
func (c *Controller) rejection(action Action, err error) *Reply {
	c.logger.Debug("操作被拒絕",
		"action", action.Kind.String(),
		"requester", action.Requester.ID,
		"reason", err)

	switch {
	case errors.Is(err, ErrAlreadyActive):
		return ephemeral(TextAlreadyActive)
	case errors.Is(err, ErrNotCreator):
		return ephemeral(TextNotCreator)
	case errors.Is(err, ErrNotYetExpired):
		return ephemeral(TextNotYetExpired)
	case errors.Is(err, ErrNoPermission):
		return ephemeral(TextNoPermission)
	case errors.Is(err, ErrNoActiveLobby):
		return ephemeral(TextNoActiveLobby)
	default:
		c.logger.Error("未預期的錯誤", "action", action.Kind.String(), "error", err)
		return ephemeral(TextGenericFailure)
	}
}

// messageFor 優先使用大廳綁定的訊息，尚未綁定時退回按鈕所在訊息
func messageFor(lobby Lobby, action Action) MessageRef {
	if !lobby.Message.IsZero() {
		return lobby.Message
	}
	return action.Source
}
