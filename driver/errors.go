package driver

import (
	"errors"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// DriverError represents an error returned by the Neo4j server or the
// underlying driver while running a statement or managing a transaction.
type DriverError struct {
	// Op is the statement operation or lifecycle step that failed.
	Op string
	// Code is the Neo4j status code, empty for client-side failures.
	Code string
	Err  error
}

func (e *DriverError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("driver: %s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("driver: %s: %v", e.Op, e.Err)
}

func (e *DriverError) Unwrap() error {
	return e.Err
}

var (
	// ErrNotConnected is returned when an operation is attempted on a closed or uninitialized driver.
	ErrNotConnected = errors.New("driver: not connected")
	// ErrTxDone is returned when a statement is run on a committed or rolled back transaction.
	ErrTxDone = errors.New("driver: transaction already finished")
)

// wrapError turns err into a *DriverError carrying the server status code
// when there is one.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	de := &DriverError{Op: op, Err: err}
	var serverErr *neo4j.Neo4jError
	if errors.As(err, &serverErr) {
		de.Code = serverErr.Code
	}
	return de
}
