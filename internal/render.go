package internal

import (
	"fmt"
	"time"
)

// ContentKind 呈現內容種類
type ContentKind int

const (
	ContentNotice         ContentKind = iota // 純文字通知
	ContentLobbyActive                       // 大廳 embed + 延長/過期按鈕
	ContentLobbySummary                      // /activelobby 查詢結果
	ContentExpiredByUser                     // 被使用者強制過期
	ContentExpiredBySweep                    // 背景清掃過期
)

// Content 核心要求呈現層顯示的內容
type Content struct {
	Kind  ContentKind
	Lobby Lobby
	Actor Identity // ContentExpiredByUser 的操作者
	Text  string   // ContentNotice 的文字
}

// Notice 建立純文字通知
func Notice(text string) Content {
	return Content{Kind: ContentNotice, Text: text}
}

const (
	ButtonExtendID = "lobby:extend"
	ButtonExpireID = "lobby:expire"

	colorGreen = 0x2ecc71
	colorBlue  = 0x3498db

	footerTimeLayout = "2006-01-02 15:04 UTC"
)

// 使用者看到的文字
const (
	TextAlreadyActive     = "❌ There's already an active lobby. Please wait until it expires or is closed."
	TextNoActiveLobby     = "No active lobby right now. Create one with `/createlobby`!"
	TextNotCreator        = "Only the creator can extend this lobby."
	TextNotYetExpired     = "Cannot extend - lobby hasn't expired yet!"
	TextExtended          = "Lobby extended!"
	TextNoPermission      = "Only the creator, moderators, or admins can expire this lobby."
	TextExpired           = "Lobby has been expired."
	TextBotMissingPerms   = "Bot is missing required permissions. Please ensure it has 'Manage Messages' permission."
	TextExpireFailed      = "Failed to expire lobby. Please try again."
	TextCreateFailed      = "Failed to create lobby. Please try again."
	TextExtendRenderFail  = "Lobby extended, but the lobby message could not be updated."
	TextGenericFailure    = "Something went wrong. Please try again."
	textExtendAnnounceFmt = "🎮 %s Your lobby has been extended for 4 more hours! Happy hunting! 🦖"
	textExpiredByFmt      = "❌ Lobby expired by %s"
	textSweepExpiredFmt   = "⏰ Hey %s! Your lobby has expired! Use `/createlobby` to start a new one or click Extend if you want to keep this one going! 🦖"
)

// Embed 平台無關的 embed
type Embed struct {
	Title       string
	Description string
	Footer      string
	Color       int
}

// Button 平台無關的按鈕
type Button struct {
	Label    string
	CustomID string
	Danger   bool
}

// View Content 展開後的完整畫面；Embed 為 nil 且 Buttons 為空代表移除 embed 與控制項
type View struct {
	Text    string
	Embed   *Embed
	Buttons []Button
}

// View 將 Content 轉為畫面
func (c Content) View() View {
	switch c.Kind {
	case ContentLobbyActive:
		return View{
			Embed: &Embed{
				Title:       "🦖 Monster Hunter Wilds Lobby",
				Description: fmt.Sprintf("**Lobby ID:** `%s`\n**Expires in:** %s", c.Lobby.ID, ttlLabel(c.Lobby)),
				Footer:      fmt.Sprintf("Created by %s | Expires at %s", c.Lobby.Creator.Name, formatFooterTime(c.Lobby.ExpiresAt)),
				Color:       colorGreen,
			},
			Buttons: []Button{
				{Label: "🔄 Extend (4h)", CustomID: ButtonExtendID},
				{Label: "🙅 Expire Now", CustomID: ButtonExpireID, Danger: true},
			},
		}
	case ContentLobbySummary:
		return View{
			Embed: &Embed{
				Title:       "🧭 Active Lobby",
				Description: fmt.Sprintf("**Lobby ID:** `%s`\n**Expires at:** %s", c.Lobby.ID, formatFooterTime(c.Lobby.ExpiresAt)),
				Footer:      fmt.Sprintf("Created by %s", c.Lobby.Creator.Name),
				Color:       colorBlue,
			},
		}
	case ContentExpiredByUser:
		return View{Text: fmt.Sprintf(textExpiredByFmt, mention(c.Actor))}
	case ContentExpiredBySweep:
		return View{Text: fmt.Sprintf(textSweepExpiredFmt, mention(c.Lobby.Creator))}
	default:
		return View{Text: c.Text}
	}
}

// ExtendAnnouncement 延長後在頻道公開通知建立者
func ExtendAnnouncement(lobby Lobby) string {
	return fmt.Sprintf(textExtendAnnounceFmt, mention(lobby.Creator))
}

func ttlLabel(l Lobby) string {
	if l.Extended {
		return "4 hours"
	}
	return "6 hours"
}

func formatFooterTime(t time.Time) string {
	return t.UTC().Format(footerTimeLayout)
}

// mention 沒有平台 mention 時退回使用者名稱
func mention(i Identity) string {
	if i.Mention != "" {
		return i.Mention
	}
	return i.Name
}
