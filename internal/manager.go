package internal

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType 生命週期事件類型
type EventType string

const (
	EventCreated      EventType = "lobby_created"
	EventExtended     EventType = "lobby_extended"
	EventForceExpired EventType = "lobby_force_expired"
	EventSweepExpired EventType = "lobby_sweep_expired"
	EventDiscarded    EventType = "lobby_discarded"
)

// Event 生命週期事件（推送給 WebSocket 觀察者）
type Event struct {
	ID    string    `json:"event_id"`
	Type  EventType `json:"event"`
	Lobby Lobby     `json:"lobby"`
	At    time.Time `json:"at"`
}

// Manager 大廳槽位管理器
//
// 系統設計考量：
//
//  1. 單一臨界區（Mutex 而非 RWMutex）：
//     問題：延長要先讀 ExpiresAt 再寫回，與背景清掃同時發生會遺失更新
//     方案：所有讀改寫都在同一把鎖內完成
//     結果：extend 與 sweep 同時滿足前置條件時，只有一方會成功
//
//  2. 快照讀取：
//     Get 回傳值拷貝，呼叫者拿到的 Lobby 不會被後續操作改動
//
//  3. 事件通知（events chan）：
//     轉換成功後以非阻塞方式送出事件，慢消費者不影響狀態機
type Manager struct {
	slot   *Lobby // nil = Empty
	seq    uint64
	mu     sync.Mutex
	events chan Event
	logger *slog.Logger
}

// NewManager 創建大廳管理器（初始狀態 Empty）
func NewManager(logger *slog.Logger) *Manager {
	LobbyActive.Set(0)
	return &Manager{
		events: make(chan Event, 100),
		logger: logger,
	}
}

// TryCreate 建立大廳，槽位已被佔用時回傳 ErrAlreadyActive 且不改動現有大廳
func (m *Manager) TryCreate(id string, creator Identity, now time.Time) (Lobby, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.slot != nil {
		m.reject(ErrAlreadyActive)
		return Lobby{}, fmt.Errorf("create %q: %w", id, ErrAlreadyActive)
	}

	m.seq++
	m.slot = &Lobby{
		Seq:       m.seq,
		ID:        id,
		Creator:   creator,
		CreatedAt: now,
		ExpiresAt: now.Add(CreateTTL),
	}
	lobby := *m.slot

	LobbyTransitions.WithLabelValues("create").Inc()
	LobbyActive.Set(1)
	m.sendEvent(EventCreated, lobby, now)

	m.logger.Info("大廳已創建",
		"lobby_id", id,
		"creator", creator.Name,
		"expires_at", lobby.ExpiresAt)

	return lobby, nil
}

// Get 取得目前大廳快照
func (m *Manager) Get() (Lobby, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.slot == nil {
		return Lobby{}, false
	}
	return *m.slot, true
}

// Extend 延長大廳
//
// 規則（依序檢查）：
//   - 槽位為空 → ErrNoActiveLobby
//   - 非建立者 → ErrNotCreator（與時間無關）
//   - now < ExpiresAt → ErrNotYetExpired（只能在過期後延長，不能預先延長）
//
// 成功時 ExpiresAt = now + 4h（以 now 起算，不累加）
func (m *Manager) Extend(requester Identity, now time.Time) (Lobby, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.slot == nil {
		m.reject(ErrNoActiveLobby)
		return Lobby{}, ErrNoActiveLobby
	}
	if !requester.Is(m.slot.Creator) {
		m.reject(ErrNotCreator)
		return Lobby{}, fmt.Errorf("extend %q by %s: %w", m.slot.ID, requester.ID, ErrNotCreator)
	}
	if !m.slot.ExpiredAt(now) {
		m.reject(ErrNotYetExpired)
		return Lobby{}, fmt.Errorf("extend %q: %w", m.slot.ID, ErrNotYetExpired)
	}

	m.slot.ExpiresAt = now.Add(ExtendTTL)
	m.slot.Extended = true
	lobby := *m.slot

	LobbyTransitions.WithLabelValues("extend").Inc()
	m.sendEvent(EventExtended, lobby, now)

	m.logger.Info("大廳已延長",
		"lobby_id", lobby.ID,
		"expires_at", lobby.ExpiresAt)

	return lobby, nil
}

// ForceExpire 強制過期，成功時清空槽位並回傳被清除的大廳
func (m *Manager) ForceExpire(requester Identity, now time.Time) (Lobby, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.slot == nil {
		m.reject(ErrNoActiveLobby)
		return Lobby{}, ErrNoActiveLobby
	}
	if !m.slot.CanForceExpire(requester) {
		m.reject(ErrNoPermission)
		return Lobby{}, fmt.Errorf("expire %q by %s: %w", m.slot.ID, requester.ID, ErrNoPermission)
	}

	lobby := m.clear()

	LobbyTransitions.WithLabelValues("force_expire").Inc()
	m.sendEvent(EventForceExpired, lobby, now)

	m.logger.Info("大廳已被強制過期",
		"lobby_id", lobby.ID,
		"requester", requester.Name)

	return lobby, nil
}

// SweepExpire 背景清掃：槽位存在且 now >= ExpiresAt 時清空並回傳，否則 no-op
func (m *Manager) SweepExpire(now time.Time) (Lobby, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.slot == nil || !m.slot.ExpiredAt(now) {
		return Lobby{}, false
	}

	lobby := m.clear()

	LobbyTransitions.WithLabelValues("sweep_expire").Inc()
	m.sendEvent(EventSweepExpired, lobby, now)

	m.logger.Info("大廳已過期清理",
		"lobby_id", lobby.ID,
		"expired_at", lobby.ExpiresAt)

	return lobby, true
}

// AttachMessage 將呈現層訊息綁定到指定世代的大廳
//
// 呈現（RenderNew）在鎖外進行，期間大廳可能已被清除或重建，
// 因此以 Seq 比對，避免把舊訊息綁到新大廳上。
func (m *Manager) AttachMessage(seq uint64, ref MessageRef) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.slot == nil || m.slot.Seq != seq {
		return false
	}
	m.slot.Message = ref
	return true
}

// Discard 撤銷指定世代的大廳（新大廳無法呈現時使用）
func (m *Manager) Discard(seq uint64, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.slot == nil || m.slot.Seq != seq {
		return false
	}

	lobby := m.clear()
	m.sendEvent(EventDiscarded, lobby, now)
	m.logger.Info("大廳已撤銷", "lobby_id", lobby.ID)
	return true
}

// Status 目前槽位狀態
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.slot == nil {
		return StatusEmpty
	}
	return m.slot.Status()
}

// Events 獲取事件通道
func (m *Manager) Events() <-chan Event {
	return m.events
}

// Stats 獲取統計資訊
func (m *Manager) Stats() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := map[string]any{
		"status":        StatusEmpty,
		"lobbies_total": m.seq,
	}
	if m.slot != nil {
		stats["status"] = m.slot.Status()
		stats["lobby_id"] = m.slot.ID
		stats["expires_at"] = m.slot.ExpiresAt
	}
	return stats
}

// clear 清空槽位（需要持有鎖）
func (m *Manager) clear() Lobby {
	lobby := *m.slot
	m.slot = nil
	LobbyActive.Set(0)
	return lobby
}

// reject 記錄拒絕（需要持有鎖）
func (m *Manager) reject(err error) {
	LobbyRejections.WithLabelValues(rejectionReason(err)).Inc()
}

// sendEvent 發送事件（內部使用，需要持有鎖）
//
// 非阻塞發送：通道滿時丟棄事件，優先保證狀態轉換完成
func (m *Manager) sendEvent(typ EventType, lobby Lobby, at time.Time) {
	select {
	case m.events <- Event{ID: uuid.NewString(), Type: typ, Lobby: lobby, At: at}:
	default:
		m.logger.Warn("事件通道已滿，丟棄事件", "event", typ, "lobby_id", lobby.ID)
	}
}
