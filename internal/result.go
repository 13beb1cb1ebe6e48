package internal

import (
	"cmp"
	"slices"
)

// RunningResult 玩家結束後回報的跑步結算
type RunningResult struct {
	RunningTime   int64   `json:"runningTime"` // 秒
	TotalDistance float64 `json:"totalDistance"`
	PaceAvg       float64 `json:"paceAvg"`
	HeartRateAvg  float64 `json:"heartRateAvg"`
	CadenceAvg    float64 `json:"cadenceAvg"`
}

// PlayerResult 排名後的單一玩家結果
type PlayerResult struct {
	PlayerID      string  `json:"userId"`
	RunningTime   int64   `json:"runningTime"`
	TotalDistance float64 `json:"totalDistance"`
	PaceAvg       float64 `json:"paceAvg"`
	HeartRateAvg  float64 `json:"heartRateAvg"`
	CadenceAvg    float64 `json:"cadenceAvg"`
	RewardExp     int     `json:"rewardExp"`
	ItemUseCount  int     `json:"itemUseCount"`
}

type submission struct {
	result RunningResult
	seq    int
}

// ResultSet 單一房間結束後的結果集（playerID → 結算）
//
// 同一玩家重複提交視為更正：覆寫數據，但保留第一次提交的順序。
type ResultSet struct {
	submissions map[string]submission
	seq         int
}

// NewResultSet 創建空的結果集
func NewResultSet() *ResultSet {
	return &ResultSet{submissions: make(map[string]submission)}
}

// Record 記錄或更正提交
func (s *ResultSet) Record(playerID string, result RunningResult) {
	if prev, ok := s.submissions[playerID]; ok {
		prev.result = result
		s.submissions[playerID] = prev
		return
	}
	s.seq++
	s.submissions[playerID] = submission{result: result, seq: s.seq}
}

// Has 玩家是否已提交
func (s *ResultSet) Has(playerID string) bool {
	_, ok := s.submissions[playerID]
	return ok
}

// Ranked 依總距離遞減排序，距離相同時先提交者在前
//
// 只包含 players 中已提交的玩家。
func (s *ResultSet) Ranked(players []*Player) []PlayerResult {
	type ranked struct {
		PlayerResult
		seq int
	}

	rows := make([]ranked, 0, len(players))
	for _, p := range players {
		sub, ok := s.submissions[p.ID]
		if !ok {
			continue
		}
		rows = append(rows, ranked{
			PlayerResult: PlayerResult{
				PlayerID:      p.ID,
				RunningTime:   sub.result.RunningTime,
				TotalDistance: sub.result.TotalDistance,
				PaceAvg:       sub.result.PaceAvg,
				HeartRateAvg:  sub.result.HeartRateAvg,
				CadenceAvg:    sub.result.CadenceAvg,
				ItemUseCount:  p.UsedItemCount,
			},
			seq: sub.seq,
		})
	}

	slices.SortFunc(rows, func(a, b ranked) int {
		if c := cmp.Compare(b.TotalDistance, a.TotalDistance); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})

	out := make([]PlayerResult, len(rows))
	for i, row := range rows {
		out[i] = row.PlayerResult
	}
	return out
}
