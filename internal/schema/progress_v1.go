package schema

// ProgressEventV1 is one line of <exchange>/progress.jsonl, appended after
// every operation so dashboards can follow a long 2^32 run.
type ProgressEventV1 struct {
	SchemaVersion int    `json:"schemaVersion"`
	RunID         string `json:"runId"`
	ScenarioTag   string `json:"scenarioTag"`
	Operation     string `json:"operation"`
	Status        string `json:"status"` // pass|fail|skip
	DurationMs    int64  `json:"durationMs"`
	At            string `json:"at"`
}
