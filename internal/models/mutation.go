package models

// AnswerRequest 提交答案请求体
type AnswerRequest struct {
	RoundID       int64 `json:"round_id"`
	GridID        int64 `json:"grid_id"`
	CorrectAnswer bool  `json:"correct_answer"`
	SkipAnswer    bool  `json:"skip_answer"`
}

// NextRound 自动开启的下一回合
type NextRound struct {
	ID          int64 `json:"id"`
	PlayerID    int64 `json:"player_id"`
	RoundNumber int   `json:"round_number"`
}

// AnswerResponse 提交答案的返回
type AnswerResponse struct {
	GridID        int64      `json:"grid_id"`
	RoundID       int64      `json:"round_id"`
	CorrectAnswer bool       `json:"correct_answer"`
	SkipAnswer    bool       `json:"skip_answer"`
	NextRound     *NextRound `json:"next_round,omitempty"`
}

// JokerUseRequest 使用道具请求体，目标不需要时为null
type JokerUseRequest struct {
	JokerInGameID  int64  `json:"joker_in_game_id"`
	RoundID        int64  `json:"round_id"`
	TargetGridID   *int64 `json:"target_grid_id"`
	TargetPlayerID *int64 `json:"target_player_id"`
}

// JokerUseResponse 道具使用记录
type JokerUseResponse struct {
	ID             int64  `json:"id"`
	JokerInGameID  int64  `json:"joker_in_game_id"`
	RoundID        int64  `json:"round_id"`
	TargetPlayerID *int64 `json:"target_player_id,omitempty"`
	TargetGridID   *int64 `json:"target_grid_id,omitempty"`
}
