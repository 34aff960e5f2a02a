package models

// JobRunsQuery binds GET /api/job-runs.
type JobRunsQuery struct {
	Name  string `query:"name" validate:"omitempty,max=64"`
	Limit int    `query:"limit" default:"20" validate:"min=1,max=200"`
}

// QualityEventsQuery binds GET /api/quality-events.
type QualityEventsQuery struct {
	Symbol string `query:"symbol" validate:"omitempty,len=6,uppercase"`
	TF     string `query:"tf" validate:"omitempty,oneof=H1 H4"`
	Limit  int    `query:"limit" default:"50" validate:"min=1,max=200"`
}
