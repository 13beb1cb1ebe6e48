// Package internal 提供突襲房間（Raid Room）的配對與生命週期引擎。
//
// 2–4 名玩家組成一個房間，一起跑步並使用道具攻擊同一隻 Boss，
// 在時間內把 Boss 血量打到 0 即為勝利。
//
// 房間管理
//
// 房間由配對引擎建立，三種入口：
//   - 隨機配對：加入最早建立、同等級同人數的公開房間，沒有就建立新的
//   - 私人房間：分配 6 碼邀請碼
//   - 邀請碼加入
//
// 房間生命週期
//
//	waiting → ready → playing → {fever}* → finished → 拆除
//
//   - 人數到齊立即開始，ready 只以通知的形式出現
//   - Boss 被擊倒或時間到（先到先贏）結束遊戲，另一條路徑為 no-op
//   - 結束後收集所有在場玩家的跑步數據，全員提交後廣播排名並拆除房間
//
// 併發設計
//
//   - Registry：全域讀寫鎖保護索引，房間鎖序列化同一房間的讀改寫
//   - 不同房間完全並行，沒有跨房間的全域鎖
//   - 計時器到期事件經由 channel 交給 LifecycleController.Run 單一處理
//
// WebSocket 通訊
//
// 單一 /ws 端點，連線後先送 authenticate（JWT），之後的事件：
//   - randomMatch / createRoom / joinRoom / cancelMatch
//   - updateRunningData / useItem / submitResult / ping
//
// 使用範例
//
//	codes := internal.NewInviteCodes()
//	registry := internal.NewRegistry(codes, logger)
//	timers := internal.NewTimerManager(cfg.Game.GameDuration, logger)
//	hub := internal.NewWebSocketHub(internal.NewMemoryPresence(), verifier, cfg.WebSocket, logger)
//
//	matchmaker := internal.NewMatchmaker(registry, codes, hub, cfg.Game, logger)
//	lifecycle := internal.NewLifecycleController(registry, timers, hub, cfg.Game, logger)
//	lifecycle.Attach(matchmaker)
//	hub.Attach(matchmaker, lifecycle)
//	registry.OnRemove(hub.DetachRoom)
//
//	go lifecycle.Run(ctx)
//	http.ListenAndServe(":8080", internal.NewHandler(registry, hub, logger).Routes())
//
// 配置選項
//
// YAML 配置檔（-config），命令行參數可覆蓋：
//   - -port：服務監聽端口（預設 8080）
//   - -log-level：日誌級別（debug/info/warn/error）
//   - -log-format：日誌格式（text/json）
//
// 設定 redis.addr 後 Presence 改用 Redis；設定 nats.url 後房間事件同時轉發到 NATS。
package internal
