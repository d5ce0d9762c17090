// Package repository is the data access layer over MySQL. Sentinel errors
// defined here let handlers translate failures into HTTP responses without
// inspecting driver internals. Uniqueness of emails, usernames and asset
// tokens is enforced by database unique keys, not by prior reads, so two
// racing requests cannot both claim the same value.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a referenced account, company or asset does
// not exist. Handlers map it to 404.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation on a
// resource owned by another company. Handlers map it to 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict signals state that blocks the operation, e.g. removing a
// company's owner. Handlers map it to 409.
var ErrConflict = errors.New("conflict")

// ErrEmailExists and ErrUsernameExists are duplicate-key violations on the
// accounts table surfaced as validation failures.
var (
	ErrEmailExists    = errors.New("email already exists")
	ErrUsernameExists = errors.New("username already exists")
)

const mysqlDupEntry = 1062

// dupKeyError converts a MySQL duplicate-entry error into the matching
// sentinel based on the violated key name. Other errors pass through.
func dupKeyError(err error) error {
	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != mysqlDupEntry {
		return err
	}
	// Classify by the key name quoted after "for key", never by the full
	// message: the duplicated value is quoted first and may itself contain
	// "email" or "username".
	key := strings.ToLower(violatedKey(me.Message))
	switch {
	case strings.Contains(key, "username"):
		return ErrUsernameExists
	case strings.Contains(key, "email"):
		return ErrEmailExists
	default:
		return ErrConflict
	}
}

// violatedKey extracts the index name from a duplicate-entry message, e.g.
// "Duplicate entry 'x' for key 'accounts.email'" -> "accounts.email".
func violatedKey(msg string) string {
	const marker = "for key '"
	i := strings.LastIndex(msg, marker)
	if i < 0 {
		return ""
	}
	key := msg[i+len(marker):]
	if j := strings.IndexByte(key, '\''); j >= 0 {
		return key[:j]
	}
	return ""
}
