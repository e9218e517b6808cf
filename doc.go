// Package lobbylinker 提供 LobbyLinker：單一 Discord 伺服器的獵人大廳生命週期管理 bot。
//
// 任何時刻最多只有一個大廳，使用者透過斜線指令建立、查詢，
// 透過按鈕延長或強制過期，背景清掃每分鐘自動結束過期的大廳。
//
// 大廳生命週期
//
// 單一槽位狀態機：
//   - Empty --/createlobby--> Active（6 小時）
//   - Active --Extend（僅限建立者，且已過期）--> Extended（從現在起 4 小時）
//   - Active|Extended --Expire Now（建立者、管理員、版主）--> Empty
//   - Active|Extended --清掃（now >= 過期時間）--> Empty
//
// # 併發安全設計
//
// 所有讀改寫都在 Manager 的同一把鎖內完成：
//   - 兩個同時的 /createlobby 只有一個成功
//   - 延長與清掃同時發生時只有一方勝出
//   - 呈現（Discord API）在鎖外進行，失敗不回滾槽位
//
// 兩階段啟動
//
// 清掃排程在 Discord ready 之後才啟動，重連觸發的 ready 不會重複啟動。
//
// 使用範例
//
//	manager := internal.NewManager(logger)
//	controller := internal.NewController(manager, internal.SystemClock, logger)
//	bot, _ := internal.NewBot(token, guildID, controller, logger)
//	scheduler := internal.NewScheduler(time.Minute, func(ctx context.Context) {
//	    controller.Sweep(ctx, bot.Sink())
//	}, logger)
//	bot.OnReady(func(ctx context.Context) { scheduler.Start(ctx) })
//
// 配置選項（環境變數，支援 .env）
//
//   - BOT_TOKEN：Discord bot token（必填）
//   - GUILD_ID：只同步指令到此伺服器（選填，空白則全域同步）
//   - PORT：keep-alive 端口（預設 8080，失敗時改用 8081、5000）
//   - LOG_LEVEL：日誌級別（debug/info/warn/error）
//   - LOG_FORMAT：日誌格式（text/json）
//   - SWEEP_INTERVAL：清掃週期（預設 1m）
//
// HTTP 端點
//
//   - GET /：keep-alive（外部 uptime 監控使用）
//   - GET /health、GET /stats、GET /api/v1/lobby
//   - GET /metrics：Prometheus 指標
//   - GET /ws/lobby：大廳事件 WebSocket 資料流
package lobbylinker
