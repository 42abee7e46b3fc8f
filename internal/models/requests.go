package models

type JoinReq struct {
	UserID string `json:"userId"`
	ExamID string `json:"examId"`
}

type CancelReq struct {
	UserID string `json:"userId"`
}

type Resp struct {
	OK   bool        `json:"ok"`
	Info interface{} `json:"info"`
}

// CheckResp answers "am I matched yet" polls from clients whose websocket
// dropped while waiting.
type CheckResp struct {
	Matched   bool   `json:"matched"`
	SessionID string `json:"sessionId,omitempty"`
	Role      string `json:"role,omitempty"`
	ExamID    string `json:"examId,omitempty"`
	Token     string `json:"token,omitempty"`
}

// MatchNotification is published to both participants when the matchmaker
// creates a session.
type MatchNotification struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Role      string `json:"role"`
	ExamID    string `json:"examId"`
	Token     string `json:"token"`
}

// ScoreReq is the interviewer's rubric submission.
type ScoreReq struct {
	ScorerID      string `json:"scorerId"`
	Fluency       int    `json:"fluency"`
	Vocabulary    int    `json:"vocabulary"`
	Grammar       int    `json:"grammar"`
	Pronunciation int    `json:"pronunciation"`
}
