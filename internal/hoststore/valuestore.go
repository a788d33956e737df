package hoststore

import (
	"database/sql"
	"errors"
	"fmt"
)

// ValueStore implements the per-project attribute value interface over
// the project_values table. Single-valued attributes use value_index 0;
// multi-valued attributes (keywords) append indices.
type ValueStore struct {
	db *sql.DB
}

const (
	sqlValueGet = `SELECT text FROM project_values
		WHERE project_ref = ? AND attribute = ? AND value_index = 0`

	sqlValueSet = `INSERT INTO project_values (project_ref, attribute, value_index, text)
		VALUES (?, ?, 0, ?)
		ON CONFLICT(project_ref, attribute, value_index) DO UPDATE SET
		 text = excluded.text`

	sqlValueTexts = `SELECT text FROM project_values
		WHERE project_ref = ? AND attribute = ?
		ORDER BY value_index`

	sqlValueNextIndex = `SELECT COALESCE(MAX(value_index) + 1, 0) FROM project_values
		WHERE project_ref = ? AND attribute = ?`

	sqlValueInsert = `INSERT INTO project_values (project_ref, attribute, value_index, text)
		VALUES (?, ?, ?, ?)`
)

// Get returns the first value of the attribute. Absence and an empty
// stored value are distinct: a cleared attribute reads back as ("", true).
func (v *ValueStore) Get(projectRef, attribute string) (string, bool, error) {
	var text string

	err := v.db.QueryRow(sqlValueGet, projectRef, attribute).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}

	if err != nil {
		return "", false, fmt.Errorf("hoststore: reading value %s of project %s: %w", attribute, projectRef, err)
	}

	return text, true, nil
}

// Set writes the first value of the attribute, creating it if necessary.
func (v *ValueStore) Set(projectRef, attribute, text string) error {
	if _, err := v.db.Exec(sqlValueSet, projectRef, attribute, text); err != nil {
		return fmt.Errorf("hoststore: writing value %s of project %s: %w", attribute, projectRef, err)
	}

	return nil
}

// Texts returns all values of the attribute in index order.
func (v *ValueStore) Texts(projectRef, attribute string) ([]string, error) {
	rows, err := v.db.Query(sqlValueTexts, projectRef, attribute)
	if err != nil {
		return nil, fmt.Errorf("hoststore: listing values %s of project %s: %w", attribute, projectRef, err)
	}
	defer rows.Close()

	var texts []string

	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("hoststore: scanning value: %w", err)
		}

		texts = append(texts, text)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("hoststore: listing values: %w", err)
	}

	return texts, nil
}

// Append adds a value at the next free index of the attribute.
func (v *ValueStore) Append(projectRef, attribute, text string) error {
	var next int
	if err := v.db.QueryRow(sqlValueNextIndex, projectRef, attribute).Scan(&next); err != nil {
		return fmt.Errorf("hoststore: finding next value index: %w", err)
	}

	if _, err := v.db.Exec(sqlValueInsert, projectRef, attribute, next, text); err != nil {
		return fmt.Errorf("hoststore: appending value %s of project %s: %w", attribute, projectRef, err)
	}

	return nil
}
