package storage

// Timestamps are unix milliseconds so every dialect stores them the same way.
// interval_days avoids INTERVAL, which MySQL reserves.

var portableSchema = []string{
	`CREATE TABLE IF NOT EXISTS flashcards (
		student_id VARCHAR(128) NOT NULL,
		id VARCHAR(64) NOT NULL,
		subject_id VARCHAR(128) NOT NULL DEFAULT '',
		outcome_id VARCHAR(128) NOT NULL DEFAULT '',
		front TEXT NOT NULL,
		back TEXT NOT NULL,
		interval_days INTEGER NOT NULL,
		ease_factor DOUBLE PRECISION NOT NULL,
		repetition_count INTEGER NOT NULL,
		next_review_at BIGINT NOT NULL,
		review_count INTEGER NOT NULL DEFAULT 0,
		correct_count INTEGER NOT NULL DEFAULT 0,
		mastery_percent INTEGER NOT NULL DEFAULT 0,
		version BIGINT NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		PRIMARY KEY (student_id, id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_flashcards_due ON flashcards (student_id, next_review_at)`,
	`CREATE TABLE IF NOT EXISTS review_events (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		student_id VARCHAR(128) NOT NULL,
		card_id VARCHAR(64) NOT NULL,
		session_id VARCHAR(64) NOT NULL DEFAULT '',
		reviewed_at BIGINT NOT NULL,
		was_correct INTEGER NOT NULL,
		quality_rating INTEGER NOT NULL,
		interval_before INTEGER NOT NULL,
		interval_after INTEGER NOT NULL,
		ease_factor_before DOUBLE PRECISION NOT NULL,
		ease_factor_after DOUBLE PRECISION NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_review_events_student ON review_events (student_id, reviewed_at)`,
	`CREATE INDEX IF NOT EXISTS idx_review_events_card ON review_events (card_id)`,
	`CREATE TABLE IF NOT EXISTS revision_sessions (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		student_id VARCHAR(128) NOT NULL,
		subject_id VARCHAR(128) NOT NULL DEFAULT '',
		answered_count INTEGER NOT NULL DEFAULT 0,
		correct_count INTEGER NOT NULL DEFAULT 0,
		status VARCHAR(16) NOT NULL,
		started_at BIGINT NOT NULL,
		ended_at BIGINT,
		version BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_revision_sessions_status ON revision_sessions (student_id, status)`,
	`CREATE TABLE IF NOT EXISTS session_cards (
		session_id VARCHAR(64) NOT NULL,
		position INTEGER NOT NULL,
		card_id VARCHAR(64) NOT NULL,
		answered INTEGER NOT NULL DEFAULT 0,
		was_correct INTEGER NOT NULL DEFAULT 0,
		answered_at BIGINT,
		PRIMARY KEY (session_id, position)
	)`,
}

// MySQL has no CREATE INDEX IF NOT EXISTS, so its indexes are declared inline.
var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS flashcards (
		student_id VARCHAR(128) NOT NULL,
		id VARCHAR(64) NOT NULL,
		subject_id VARCHAR(128) NOT NULL DEFAULT '',
		outcome_id VARCHAR(128) NOT NULL DEFAULT '',
		front TEXT NOT NULL,
		back TEXT NOT NULL,
		interval_days INT NOT NULL,
		ease_factor DOUBLE NOT NULL,
		repetition_count INT NOT NULL,
		next_review_at BIGINT NOT NULL,
		review_count INT NOT NULL DEFAULT 0,
		correct_count INT NOT NULL DEFAULT 0,
		mastery_percent INT NOT NULL DEFAULT 0,
		version BIGINT NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		PRIMARY KEY (student_id, id),
		INDEX idx_flashcards_due (student_id, next_review_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS review_events (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		student_id VARCHAR(128) NOT NULL,
		card_id VARCHAR(64) NOT NULL,
		session_id VARCHAR(64) NOT NULL DEFAULT '',
		reviewed_at BIGINT NOT NULL,
		was_correct TINYINT NOT NULL,
		quality_rating INT NOT NULL,
		interval_before INT NOT NULL,
		interval_after INT NOT NULL,
		ease_factor_before DOUBLE NOT NULL,
		ease_factor_after DOUBLE NOT NULL,
		INDEX idx_review_events_student (student_id, reviewed_at),
		INDEX idx_review_events_card (card_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS revision_sessions (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		student_id VARCHAR(128) NOT NULL,
		subject_id VARCHAR(128) NOT NULL DEFAULT '',
		answered_count INT NOT NULL DEFAULT 0,
		correct_count INT NOT NULL DEFAULT 0,
		status VARCHAR(16) NOT NULL,
		started_at BIGINT NOT NULL,
		ended_at BIGINT NULL,
		version BIGINT NOT NULL,
		INDEX idx_revision_sessions_status (student_id, status)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS session_cards (
		session_id VARCHAR(64) NOT NULL,
		position INT NOT NULL,
		card_id VARCHAR(64) NOT NULL,
		answered TINYINT NOT NULL DEFAULT 0,
		was_correct TINYINT NOT NULL DEFAULT 0,
		answered_at BIGINT NULL,
		PRIMARY KEY (session_id, position)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}
