package internal_test

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/koopa0/system-design/lobby-linker/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHandler(t *testing.T) (http.Handler, *internal.Manager) {
	t.Helper()
	manager := internal.NewManager(testLogger())
	clock := internal.ClockFunc(func() time.Time {
		return time.Date(2025, 3, 1, 9, 30, 5, 0, time.UTC)
	})
	return internal.NewHandler(manager, clock, testLogger()).Routes(), manager
}

func doRequest(t *testing.T, handler http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

// TestHandler_KeepAlive 外部 uptime 監控依賴的固定格式
func TestHandler_KeepAlive(t *testing.T) {
	handler, _ := setupHandler(t)

	w := doRequest(t, handler, http.MethodGet, "/")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.Equal(t, "MH LobbyLinker is alive! Last check: 2025-03-01 09:30:05 UTC", w.Body.String())
}

// TestHandler_Routes 測試其他端點
func TestHandler_Routes(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		path           string
		setup          func(t *testing.T, m *internal.Manager)
		expectedStatus int
		validate       func(t *testing.T, body []byte)
	}{
		{
			name:           "health",
			method:         http.MethodGet,
			path:           "/health",
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, body []byte) {
				var resp map[string]any
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, "healthy", resp["status"])
			},
		},
		{
			name:           "no lobby",
			method:         http.MethodGet,
			path:           "/api/v1/lobby",
			expectedStatus: http.StatusNotFound,
			validate: func(t *testing.T, body []byte) {
				var resp map[string]any
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, internal.ErrNoActiveLobby.Error(), resp["error"])
			},
		},
		{
			name:   "active lobby",
			method: http.MethodGet,
			path:   "/api/v1/lobby",
			setup: func(t *testing.T, m *internal.Manager) {
				_, err := m.TryCreate("ABC123", creator, t0)
				require.NoError(t, err)
			},
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, body []byte) {
				var resp struct {
					Status string         `json:"status"`
					Lobby  internal.Lobby `json:"lobby"`
				}
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, "active", resp.Status)
				assert.Equal(t, "ABC123", resp.Lobby.ID)
				assert.Equal(t, "u-1", resp.Lobby.Creator.ID)
				assert.True(t, t0.Add(6*time.Hour).Equal(resp.Lobby.ExpiresAt))
			},
		},
		{
			name:   "stats",
			method: http.MethodGet,
			path:   "/stats",
			setup: func(t *testing.T, m *internal.Manager) {
				_, err := m.TryCreate("ABC123", creator, t0)
				require.NoError(t, err)
			},
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, body []byte) {
				var resp map[string]any
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, "active", resp["status"])
				assert.Equal(t, "ABC123", resp["lobby_id"])
				assert.Equal(t, float64(1), resp["lobbies_total"])
			},
		},
		{
			name:           "metrics",
			method:         http.MethodGet,
			path:           "/metrics",
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, body []byte) {
				assert.Contains(t, string(body), "lobbylinker_lobby_active")
			},
		},
		{
			name:           "keep-alive only answers GET",
			method:         http.MethodPost,
			path:           "/",
			expectedStatus: http.StatusMethodNotAllowed,
		},
		{
			name:           "unknown path",
			method:         http.MethodGet,
			path:           "/nope",
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, manager := setupHandler(t)
			if tt.setup != nil {
				tt.setup(t, manager)
			}

			w := doRequest(t, handler, tt.method, tt.path)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.validate != nil {
				body, err := io.ReadAll(w.Body)
				require.NoError(t, err)
				tt.validate(t, body)
			}
		})
	}
}

// TestListen 主埠被佔用時改用下一個
func TestListen(t *testing.T) {
	busy, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer busy.Close()
	busyPort := busy.Addr().(*net.TCPAddr).Port

	free, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	freePort := free.Addr().(*net.TCPAddr).Port
	require.NoError(t, free.Close())

	ln, err := internal.Listen([]int{busyPort, freePort}, testLogger())
	require.NoError(t, err)
	defer ln.Close()

	assert.Equal(t, freePort, ln.Addr().(*net.TCPAddr).Port)

	t.Run("all ports busy", func(t *testing.T) {
		_, err := internal.Listen([]int{busyPort}, testLogger())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "all ports failed")
	})

	t.Run("no ports", func(t *testing.T) {
		_, err := internal.Listen(nil, testLogger())
		require.Error(t, err)
	})
}
