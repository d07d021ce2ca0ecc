package local

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/la5nta/memorymap/backend"
)

// where builds the WHERE clause for filters, scoping the statement to the
// signed in user when the table has an owner column.
func (c *Client) where(name string, t table, filters []backend.Filter) (string, []interface{}, error) {
	uid, err := c.userID()
	if err != nil {
		return "", nil, err
	}
	var (
		conds []string
		args  []interface{}
	)
	for _, f := range filters {
		if !t.hasColumn(f.Column) {
			return "", nil, unknownColumn(name, f.Column)
		}
		conds = append(conds, f.Column+" = ?")
		args = append(args, f.Value)
	}
	if t.owner != "" {
		conds = append(conds, t.owner+" = ?")
		args = append(args, uid)
	}
	if len(conds) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func (c *Client) Select(ctx context.Context, name string, columns []string, filters []backend.Filter, dst interface{}) error {
	t, err := lookupTable(name)
	if err != nil {
		return err
	}
	cols := t.columns
	if len(columns) > 0 && !(len(columns) == 1 && columns[0] == "*") {
		for _, col := range columns {
			if !t.hasColumn(col) {
				return unknownColumn(name, col)
			}
		}
		cols = columns
	}
	where, args, err := c.where(name, t, filters)
	if err != nil {
		return err
	}
	query := "SELECT " + strings.Join(cols, ", ") + " FROM " + name + where
	if t.stamp != "" {
		query += " ORDER BY " + t.stamp
	}
	return c.query(ctx, query, args, dst)
}

func (c *Client) Insert(ctx context.Context, name string, row interface{}, dst interface{}) error {
	t, err := lookupTable(name)
	if err != nil {
		return err
	}
	uid, err := c.userID()
	if err != nil {
		return err
	}
	values, err := toColumns(name, t, row)
	if err != nil {
		return err
	}
	if t.hasID && values["id"] == nil {
		values["id"] = uuid.NewString()
	}
	if t.stamp != "" && values[t.stamp] == nil {
		values[t.stamp] = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if t.owner != "" && values[t.owner] != uid {
		return &backend.Error{Status: 403, Code: "42501", Message: fmt.Sprintf("new row violates row-level security policy for table %q", name)}
	}

	cols := make([]string, 0, len(values))
	for col := range values {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	args := make([]interface{}, len(cols))
	for i, col := range cols {
		args[i] = values[col]
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		name, strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))

	if dst == nil {
		_, err := c.exec(ctx, query, args...)
		return err
	}
	return c.query(ctx, query+" RETURNING "+strings.Join(t.columns, ", "), args, dst)
}

func (c *Client) Update(ctx context.Context, name string, patch interface{}, filters []backend.Filter) error {
	t, err := lookupTable(name)
	if err != nil {
		return err
	}
	values, err := toColumns(name, t, patch)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}
	if _, ok := values["id"]; ok {
		return &backend.Error{Status: 400, Message: "id is read-only"}
	}
	if t.owner != "" {
		if _, ok := values[t.owner]; ok {
			return &backend.Error{Status: 400, Message: t.owner + " is read-only"}
		}
	}
	cols := make([]string, 0, len(values))
	for col := range values {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	sets := make([]string, len(cols))
	args := make([]interface{}, 0, len(cols)+len(filters)+1)
	for i, col := range cols {
		sets[i] = col + " = ?"
		args = append(args, values[col])
	}
	where, wargs, err := c.where(name, t, filters)
	if err != nil {
		return err
	}
	_, err = c.exec(ctx, "UPDATE "+name+" SET "+strings.Join(sets, ", ")+where, append(args, wargs...)...)
	return err
}

func (c *Client) Delete(ctx context.Context, name string, filters []backend.Filter) error {
	t, err := lookupTable(name)
	if err != nil {
		return err
	}
	where, args, err := c.where(name, t, filters)
	if err != nil {
		return err
	}
	_, err = c.exec(ctx, "DELETE FROM "+name+where, args...)
	return err
}

// toColumns flattens a row value through its JSON representation and
// checks every key against the table's columns.
func toColumns(name string, t table, row interface{}) (map[string]interface{}, error) {
	b, err := json.Marshal(row)
	if err != nil {
		return nil, err
	}
	var values map[string]interface{}
	if err := json.Unmarshal(b, &values); err != nil {
		return nil, fmt.Errorf("row must be an object: %w", err)
	}
	for col := range values {
		if !t.hasColumn(col) {
			return nil, unknownColumn(name, col)
		}
	}
	return values, nil
}

// query runs a row returning statement and decodes the rows into dst by
// way of JSON, the same path rows take from the hosted backend.
func (c *Client) query(ctx context.Context, query string, args []interface{}, dst interface{}) error {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	result := []map[string]interface{}{}
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		m := make(map[string]interface{}, len(cols))
		for i, col := range cols {
			if b, ok := vals[i].([]byte); ok {
				vals[i] = string(b)
			}
			m[col] = vals[i]
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return mapError(err)
	}
	if dst == nil {
		return nil
	}
	b, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}
