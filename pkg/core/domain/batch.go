package domain

// BatchReport summarises one periodic checker run.
type BatchReport struct {
	Total     int64 `json:"total"`
	BatchSize int   `json:"batch_size"`
	Checked   int   `json:"checked"`
	Skipped   int   `json:"skipped"`
	Broken    int   `json:"broken"`
	Failed    int   `json:"failed"`
}
