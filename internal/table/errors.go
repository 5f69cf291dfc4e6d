package table

import "github.com/pkg/errors"

var (
	// ErrDuplicateKey is returned by Insert when the record carries an
	// explicit primary key that already exists.
	ErrDuplicateKey = errors.New("duplicate primary key")

	// ErrRecordNotFound is returned by Update and Delete when no records
	// match the criteria.
	ErrRecordNotFound = errors.New("no matching records")
)
