package testsession

// Navigation is derived from a session on every read and has no state of its own.
type Navigation struct {
	Index           int  `json:"index"`
	Total           int  `json:"total"`
	CanGoPrevious   bool `json:"can_go_previous"`
	CanGoNext       bool `json:"can_go_next"`
	AllAnswered     bool `json:"all_answered"`
	AnsweredCount   int  `json:"answered_count"`
	ProgressPercent int  `json:"progress_percent"`
	CanFinish       bool `json:"can_finish"`
}

// Navigate computes the navigation block for s.
func Navigate(s *Session) Navigation {
	total := s.Total()
	answered := s.AnsweredCount()
	all := s.AllAnswered()

	return Navigation{
		Index:           s.Index(),
		Total:           total,
		CanGoPrevious:   s.Index() > 0,
		CanGoNext:       s.Index() < total-1,
		AllAnswered:     all,
		AnsweredCount:   answered,
		ProgressPercent: Percentage(answered, total),
		CanFinish:       all && !s.Completed(),
	}
}
