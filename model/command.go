package model

// Command is a named shell script. The JSON tags define both the persisted
// blob and the import/export file format.
type Command struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Script string `json:"script"`
}
