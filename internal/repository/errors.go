package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrDuplicate indicates a unique index rejected the insert.
	ErrDuplicate = errors.New("duplicate record")
	// ErrScoringFrozen indicates a bank already has graded attempts, so its
	// questions and marks can no longer change.
	ErrScoringFrozen = errors.New("question bank has graded attempts")
	// ErrScoringChanged indicates an attempt was graded against a bank
	// revision that has since been replaced.
	ErrScoringChanged = errors.New("question bank scoring changed")
)

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

func translateCreateError(err error) error {
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}
