package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// duplicateKeyMarkers are the driver-native unique violation messages,
// for paths where gorm's error translation does not run (raw Exec).
var duplicateKeyMarkers = []string{
	// postgres 23505, mysql 1062, sqlite 2067
	"duplicate key value violates unique constraint",
	"Error 1062",
	"UNIQUE constraint failed",
}

// IsDuplicateKeyErr reports whether err is a unique constraint
// violation on any supported driver.
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	for _, marker := range duplicateKeyMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
