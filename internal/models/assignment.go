package models

import "time"

// Assignment binds a learner to a training module
//
// Assignments are created outside of this service and are read-only here.
type Assignment struct {
	ID        int        `json:"id"`
	LearnerID int        `json:"learnerId"`
	ModuleID  int        `json:"moduleId"`
	DueDate   *time.Time `json:"dueDate,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// ModuleContent is everything a playback session needs to run an assignment
type ModuleContent struct {
	Assignment   Assignment `json:"assignment"`
	Title        string     `json:"title"`
	Primary      Scene      `json:"primary"`
	Supplemental *Scene     `json:"supplemental,omitempty"`
	Quiz         *Quiz      `json:"quiz,omitempty"`
}

// HasSupplemental reports whether the module carries an optional review stage
func (c *ModuleContent) HasSupplemental() bool {
	return c.Supplemental != nil
}
