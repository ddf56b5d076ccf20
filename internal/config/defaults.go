package config

import "time"

// Per-tier generation time budgets. Easy generators answer from rules
// or retrieval and get a tight budget; hard generators run heavier
// models and get a wider one.
const (
	defaultEasyTimeout   = 5 * time.Second
	defaultMediumTimeout = 15 * time.Second
	defaultHardTimeout   = 30 * time.Second
)
