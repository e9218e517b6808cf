package internal

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 狀態轉換：create / extend / force_expire / sweep_expire
	LobbyTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lobbylinker_transitions_total",
			Help: "Total lobby lifecycle transitions",
		},
		[]string{"transition"},
	)

	// 拒絕原因：already_active / not_creator / not_yet_expired / no_permission / no_active_lobby
	LobbyRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lobbylinker_rejections_total",
			Help: "Total rejected lobby actions",
		},
		[]string{"reason"},
	)

	RenderFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lobbylinker_render_failures_total",
			Help: "Total failed render calls to the chat platform",
		},
		[]string{"op"},
	)

	SweepTicks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lobbylinker_sweep_ticks_total",
			Help: "Total sweep ticks executed",
		},
	)

	LobbyActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lobbylinker_lobby_active",
			Help: "1 when a lobby occupies the slot, 0 otherwise",
		},
	)
)

// rejectionReason 將哨兵錯誤對應為 metrics label
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyActive):
		return "already_active"
	case errors.Is(err, ErrNotCreator):
		return "not_creator"
	case errors.Is(err, ErrNotYetExpired):
		return "not_yet_expired"
	case errors.Is(err, ErrNoPermission):
		return "no_permission"
	case errors.Is(err, ErrNoActiveLobby):
		return "no_active_lobby"
	default:
		return "other"
	}
}
