package internal

import "errors"

// 錯誤分類
//
// 所有錯誤都在修改狀態之前回傳（先驗證、後修改），
// 傳輸層以 errors.Is 判斷後轉成單一連線的 error 事件。
var (
	ErrRoomNotFound          = errors.New("房間不存在")
	ErrInvalidInviteCode     = errors.New("無效的邀請碼")
	ErrRoomFull              = errors.New("房間已滿")
	ErrGameAlreadyInProgress = errors.New("遊戲已在進行中")
	ErrGameNotFinished       = errors.New("遊戲尚未結束")
	ErrDuplicateRoom         = errors.New("房間 ID 重複")
	ErrPlayerAlreadyInRoom   = errors.New("玩家已在其他房間中")
	ErrInvalidRoomConfig     = errors.New("房間參數不合法")
	ErrMatchCancelled        = errors.New("配對已取消")
)
