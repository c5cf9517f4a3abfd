package spot2

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a single-row lookup matches nothing.
var ErrNotFound = errors.New("spot2: entity not found")

// UnsupportedOperatorError is returned when a where-clause condition uses a
// token no operator has been registered for.
type UnsupportedOperatorError struct {
	Token string
}

func (e *UnsupportedOperatorError) Error() string {
	return fmt.Sprintf("spot2: unsupported operator %q (register it with operator.Register)", e.Token)
}

// NewUnsupportedOperatorError returns an error naming the unknown token.
func NewUnsupportedOperatorError(token string) *UnsupportedOperatorError {
	return &UnsupportedOperatorError{Token: token}
}

// IsUnsupportedOperator reports whether err is an UnsupportedOperatorError.
func IsUnsupportedOperator(err error) bool {
	var e *UnsupportedOperatorError
	return errors.As(err, &e)
}

// InvalidOperandError is returned when an operator receives a value of the
// wrong shape, such as a membership operator given a scalar.
type InvalidOperandError struct {
	Token  string
	Reason string
}

func (e *InvalidOperandError) Error() string {
	return fmt.Sprintf("spot2: invalid operand for operator %q: %s", e.Token, e.Reason)
}

// NewInvalidOperandError returns an error describing the operand mismatch.
func NewInvalidOperandError(token, reason string) *InvalidOperandError {
	return &InvalidOperandError{Token: token, Reason: reason}
}

// IsInvalidOperand reports whether err is an InvalidOperandError.
func IsInvalidOperand(err error) bool {
	var e *InvalidOperandError
	return errors.As(err, &e)
}

// UnknownRelationError is returned when an eager-load path names a relation
// the entity type does not define.
type UnknownRelationError struct {
	EntityType string
	Relation   string
}

func (e *UnknownRelationError) Error() string {
	return fmt.Sprintf("spot2: entity type %s has no relation %q", e.EntityType, e.Relation)
}

// NewUnknownRelationError returns an error for an unresolvable relation name.
func NewUnknownRelationError(entityType, relation string) *UnknownRelationError {
	return &UnknownRelationError{EntityType: entityType, Relation: relation}
}

// IsUnknownRelation reports whether err is an UnknownRelationError.
func IsUnknownRelation(err error) bool {
	var e *UnknownRelationError
	return errors.As(err, &e)
}

// NoSuchMethodError is returned by a lazy relation proxy when a call matches
// neither a query modifier, a named scope, nor the resolved result.
type NoSuchMethodError struct {
	Method       string
	RelationKind string
}

func (e *NoSuchMethodError) Error() string {
	return fmt.Sprintf("spot2: no method %q on %s relation proxy", e.Method, e.RelationKind)
}

// NewNoSuchMethodError returns an error naming the unmatched call and the
// proxy's backing relation kind.
func NewNoSuchMethodError(method, relationKind string) *NoSuchMethodError {
	return &NoSuchMethodError{Method: method, RelationKind: relationKind}
}

// IsNoSuchMethod reports whether err is a NoSuchMethodError.
func IsNoSuchMethod(err error) bool {
	var e *NoSuchMethodError
	return errors.As(err, &e)
}

// MissingPrimaryKeyError is returned when an operation that requires a
// primary key runs against an entity type that defines none.
type MissingPrimaryKeyError struct {
	EntityType string
}

func (e *MissingPrimaryKeyError) Error() string {
	return fmt.Sprintf("spot2: entity type %s has no primary key", e.EntityType)
}

// NewMissingPrimaryKeyError returns an error for a keyless entity type.
func NewMissingPrimaryKeyError(entityType string) *MissingPrimaryKeyError {
	return &MissingPrimaryKeyError{EntityType: entityType}
}

// IsMissingPrimaryKey reports whether err is a MissingPrimaryKeyError.
func IsMissingPrimaryKey(err error) bool {
	var e *MissingPrimaryKeyError
	return errors.As(err, &e)
}
