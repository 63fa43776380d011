package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"bloodfinder/internal/apperr"
)

// BloodGroup is one of the eight ABO/Rh groups.
type BloodGroup string

const (
	APos  BloodGroup = "A+"
	ANeg  BloodGroup = "A-"
	BPos  BloodGroup = "B+"
	BNeg  BloodGroup = "B-"
	OPos  BloodGroup = "O+"
	ONeg  BloodGroup = "O-"
	ABPos BloodGroup = "AB+"
	ABNeg BloodGroup = "AB-"
)

// BloodGroups lists every group in display order.
var BloodGroups = []BloodGroup{APos, ANeg, BPos, BNeg, OPos, ONeg, ABPos, ABNeg}

// ParseBloodGroup accepts a group case-insensitively, ignoring surrounding spaces.
func ParseBloodGroup(s string) (BloodGroup, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	for _, g := range BloodGroups {
		if string(g) == v {
			return g, nil
		}
	}
	return "", apperr.Validation("invalid blood group %q", s)
}

// Role is the donor's relationship to the campus.
type Role string

const (
	Student Role = "Student"
	Faculty Role = "Faculty"
	Other   Role = "Other"
)

// Roles lists every role.
var Roles = []Role{Student, Faculty, Other}

// ParseRole accepts a role case-insensitively.
func ParseRole(s string) (Role, error) {
	v := strings.TrimSpace(s)
	for _, r := range Roles {
		if strings.EqualFold(string(r), v) {
			return r, nil
		}
	}
	return "", apperr.Validation("invalid role %q", s)
}

// Status is the lifecycle state of an emergency request.
type Status string

const (
	StatusOpen      Status = "open"
	StatusFulfilled Status = "fulfilled"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every request status.
var Statuses = []Status{StatusOpen, StatusFulfilled, StatusCancelled}

// ParseStatus accepts a status case-insensitively.
func ParseStatus(s string) (Status, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for _, st := range Statuses {
		if string(st) == v {
			return st, nil
		}
	}
	return "", apperr.Validation("invalid status %q", s)
}

// UnmarshalJSON rejects values outside the enumeration.
func (g *BloodGroup) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("blood group: %w", err)
	}
	parsed, err := ParseBloodGroup(s)
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}
