/*
dto.go - Data Transfer Objects for API responses

PURPOSE:
  JSON structures returned to clients. The batch wire contract itself
  (BatchRequest/BatchResponse) lives in the attendance package because it
  is shared with the tier 2/3 REST adapter; the types here are the
  API-only wrappers on top of it.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - ErrorResponse: Uniform error envelope

SEE ALSO:
  - handlers.go: Uses these types
  - attendance/types.go: The shared batch contract
*/
package api

import "github.com/warp/attendance-engine/attendance"

// AttendanceRowsDTO wraps the persisted rows for one meeting.
type AttendanceRowsDTO struct {
	MeetingID string           `json:"meetingId"`
	Rows      []attendance.Row `json:"rows"`
}

// SummaryDTO is the per-meeting attendance summary.
// AttendanceRate is a percentage with one decimal place, over members
// with a recorded decision.
type SummaryDTO struct {
	MeetingID         string `json:"meetingId"`
	MembersPresent    int    `json:"membersPresent"`
	MembersApology    int    `json:"membersApology"`
	MembersAbsent     int    `json:"membersAbsent"`
	GuestsPresent     int    `json:"guestsPresent"`
	PipelinersPresent int    `json:"pipelinersPresent"`
	AttendanceRate    string `json:"attendanceRate"`
}

// ErrorResponse is the uniform error envelope for non-save endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
