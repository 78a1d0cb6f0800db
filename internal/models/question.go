package models

// Question 题目内容，选中格子后才按需加载
type Question struct {
	ID       int64  `json:"id"`
	ThemeID  int64  `json:"theme_id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Points   int    `json:"points"`

	QuestionImageID *int64 `json:"question_image_id,omitempty"`
	AnswerImageID   *int64 `json:"answer_image_id,omitempty"`
	QuestionAudioID *int64 `json:"question_audio_id,omitempty"`
	AnswerAudioID   *int64 `json:"answer_audio_id,omitempty"`
	QuestionVideoID *int64 `json:"question_video_id,omitempty"`
	AnswerVideoID   *int64 `json:"answer_video_id,omitempty"`

	// 带时效的签名地址
	QuestionImageSignedURL *string `json:"question_image_signed_url,omitempty"`
	AnswerImageSignedURL   *string `json:"answer_image_signed_url,omitempty"`
	QuestionAudioSignedURL *string `json:"question_audio_signed_url,omitempty"`
	AnswerAudioSignedURL   *string `json:"answer_audio_signed_url,omitempty"`
	QuestionVideoSignedURL *string `json:"question_video_signed_url,omitempty"`
	AnswerVideoSignedURL   *string `json:"answer_video_signed_url,omitempty"`

	QuestionImageSignedExpiresIn *int `json:"question_image_signed_expires_in,omitempty"`
	AnswerImageSignedExpiresIn   *int `json:"answer_image_signed_expires_in,omitempty"`
	QuestionAudioSignedExpiresIn *int `json:"question_audio_signed_expires_in,omitempty"`
	AnswerAudioSignedExpiresIn   *int `json:"answer_audio_signed_expires_in,omitempty"`
	QuestionVideoSignedExpiresIn *int `json:"question_video_signed_expires_in,omitempty"`
	AnswerVideoSignedExpiresIn   *int `json:"answer_video_signed_expires_in,omitempty"`
}

// HasMedia 是否带有任意媒体
func (q *Question) HasMedia() bool {
	return q.QuestionImageID != nil || q.AnswerImageID != nil ||
		q.QuestionAudioID != nil || q.AnswerAudioID != nil ||
		q.QuestionVideoID != nil || q.AnswerVideoID != nil
}
