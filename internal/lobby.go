package internal

import (
	"errors"
	"time"
)

// 系統設計問題：
//   如何在單一伺服器（guild）中管理「唯一」一個獵人大廳的生命週期？
//
// 核心挑戰：
//   1. 單例約束：任何時刻最多只有一個大廳存在
//   2. 並發控制：使用者按鈕（延長、立即過期）與背景清掃同時觸發
//   3. 權限判斷：只有建立者可以延長；建立者、管理員、版主可以強制過期
//
// 設計方案：
//   ✅ 單一槽位（slot）+ Mutex - 所有讀改寫在同一臨界區完成
//   ✅ 有限狀態機 - Empty → Active → Extended → Empty
//   ✅ 哨兵錯誤 - 拒絕原因以 errors.Is 判斷，直接回報給使用者

// Status 槽位狀態
//
// 狀態轉換：
//
//	Empty --create--> Active --extend--> Extended
//	  ↑_______forceExpire / sweep________|
//
// Extended 只是顯示用的子狀態（顯示 4 小時而非 6 小時），行為與 Active 相同。
type Status string

const (
	StatusEmpty    Status = "empty"
	StatusActive   Status = "active"
	StatusExtended Status = "extended"
)

const (
	// CreateTTL 新大廳的存活時間
	CreateTTL = 6 * time.Hour
	// ExtendTTL 延長後從「現在」起算的存活時間（不累加）
	ExtendTTL = 4 * time.Hour
)

var (
	ErrAlreadyActive    = errors.New("lobby already active")
	ErrNotCreator       = errors.New("only the creator can extend the lobby")
	ErrNotYetExpired    = errors.New("lobby has not expired yet")
	ErrNoPermission     = errors.New("requester may not expire the lobby")
	ErrNoActiveLobby    = errors.New("no active lobby")
	ErrRenderPermission = errors.New("render: bot is missing permissions")
	ErrRenderFailed     = errors.New("render: failed")
	ErrConfigMissing    = errors.New("config: required value missing")
	ErrCommandSync      = errors.New("command sync failed")
)

// Permissions 請求者在伺服器中的粗粒度權限
type Permissions struct {
	Administrator   bool `json:"administrator"`
	ModerateMembers bool `json:"moderate_members"`
}

// Identity 觸發操作的使用者
type Identity struct {
	ID          string      `json:"user_id"`
	Name        string      `json:"user_name"`
	Mention     string      `json:"-"`
	Permissions Permissions `json:"-"`
}

// Is 以 ID 判斷是否為同一使用者
func (i Identity) Is(other Identity) bool {
	return i.ID != "" && i.ID == other.ID
}

// MessageRef 指向呈現層訊息的參照，核心只持有不修改
type MessageRef struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

// IsZero 尚未呈現
func (r MessageRef) IsZero() bool {
	return r.ChannelID == "" && r.MessageID == ""
}

// Lobby 大廳紀錄
//
// Seq 是程序內的世代編號，每次建立遞增，
// 讓 AttachMessage 只會綁定到產生該訊息的那一個大廳。
type Lobby struct {
	Seq       uint64     `json:"seq"`
	ID        string     `json:"lobby_id"`
	Creator   Identity   `json:"creator"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	Extended  bool       `json:"extended"`
	Message   MessageRef `json:"message"`
}

// Status 依延長旗標回傳狀態
func (l Lobby) Status() Status {
	if l.Extended {
		return StatusExtended
	}
	return StatusActive
}

// ExpiredAt 檢查在 now 時是否已過期（now >= ExpiresAt）
func (l Lobby) ExpiredAt(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// CanForceExpire 建立者、管理員或版主可以強制過期
func (l Lobby) CanForceExpire(requester Identity) bool {
	return requester.Is(l.Creator) ||
		requester.Permissions.Administrator ||
		requester.Permissions.ModerateMembers
}
