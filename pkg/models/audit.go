package models

import "time"

// AuditEntry records the metadata of one answered question.
// Question and answer text are never stored, only their lengths.
type AuditEntry struct {
	RequestID    string        `json:"request_id"`
	ClientHash   string        `json:"client_hash"`
	ClientPrefix string        `json:"client_prefix"`
	Persona      string        `json:"persona"`
	QuestionLen  int           `json:"question_len"`
	ResponseLen  int           `json:"response_len"`
	Cached       bool          `json:"cached"`
	Fallback     bool          `json:"fallback"`
	InScope      bool          `json:"in_scope"`
	Category     string        `json:"category"`
	Latency      time.Duration `json:"latency"`
	CreatedAt    time.Time     `json:"created_at"`
}

// AuditConfig controls the audit logging subsystem.
type AuditConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DBPath        string `yaml:"db_path"`
	RetentionDays int    `yaml:"retention_days"`
}

// AuditQueryOpts specifies filters for querying audit entries.
type AuditQueryOpts struct {
	Persona      string
	Since        time.Time
	ClientPrefix string
	RequestID    string
	FallbackOnly bool
	Limit        int
}

// AuditStat holds aggregate audit counts for a persona/day combination.
type AuditStat struct {
	Persona   string
	Day       string
	Count     int
	Cached    int
	Fallbacks int
}
