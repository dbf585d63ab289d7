package store

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

type rowScanner interface {
	Scan(dest ...any) error
}

// mapWriteErr turns constraint violations into store sentinels.
func mapWriteErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrConflict
	}
	return err
}

// validID reports whether id can be a primary key. Malformed ids are
// treated as missing rows rather than query errors.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func jsonParam(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// nullableJSON encodes v or returns nil for a NULL parameter.
func nullableJSON[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	return jsonParam(v)
}

func nullable[T any](v *T) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableArray(v *[]string) any {
	if v == nil {
		return nil
	}
	values := *v
	if values == nil {
		values = []string{}
	}
	return pq.Array(values)
}

func decodeJSON[T any](data []byte, dst *T) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, dst)
}

// decodeOptionalJSON returns nil for SQL NULL or JSON null.
func decodeOptionalJSON[T any](data []byte) (*T, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}
