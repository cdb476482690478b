package database

import (
	"context"
	"errors"
)

var (
	postgresStudentWriter func() StudentWriter
	postgresSessionWriter func() SessionWriter
	postgresInitialized   bool
)

var errNotInitialized = errors.New("PostgreSQL backend not initialized: DATABASE_URL is required")

// RegisterPostgresBackend registers PostgreSQL repository constructors.
// This is called by the postgres package to avoid import cycles.
func RegisterPostgresBackend(studentWriter func() StudentWriter, sessionWriter func() SessionWriter) {
	postgresStudentWriter = studentWriter
	postgresSessionWriter = sessionWriter
	postgresInitialized = true
}

// IsInitialized returns whether the PostgreSQL backend has been initialized.
func IsInitialized() bool {
	return postgresInitialized
}

// GetStudentWriter returns a StudentWriter from the PostgreSQL backend
func GetStudentWriter(ctx context.Context) (StudentWriter, error) {
	if !postgresInitialized {
		return nil, errNotInitialized
	}
	if postgresStudentWriter == nil {
		return nil, errors.New("PostgreSQL student writer not registered")
	}
	return postgresStudentWriter(), nil
}

// GetStudentReader returns a StudentReader from the PostgreSQL backend
func GetStudentReader(ctx context.Context) (StudentReader, error) {
	return GetStudentWriter(ctx)
}

// GetSessionWriter returns a SessionWriter from the PostgreSQL backend
func GetSessionWriter(ctx context.Context) (SessionWriter, error) {
	if !postgresInitialized {
		return nil, errNotInitialized
	}
	if postgresSessionWriter == nil {
		return nil, errors.New("PostgreSQL session writer not registered")
	}
	return postgresSessionWriter(), nil
}

// GetSessionReader returns a SessionReader from the PostgreSQL backend
func GetSessionReader(ctx context.Context) (SessionReader, error) {
	return GetSessionWriter(ctx)
}
