package datarecording

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// QueryParams selects rows of a table.
type QueryParams struct {
	// Where is a condition without the WHERE keyword, with ? placeholders
	// bound to Args, as in "Kind = ? AND StartTime > ?".
	Where string
	Args  []any

	// OrderBy is a list of columns without the ORDER BY keywords.
	OrderBy string

	// Limit caps the rows returned. 0 means no cap. Offset only applies
	// with a Limit.
	Limit  int
	Offset int
}

// DataReader reads back the tables that a DataRecorder wrote.
type DataReader interface {
	// MapTable tells the reader to decode the rows of a table into the
	// struct type of sampleEntry. Columns are matched to field names.
	MapTable(tableName string, sampleEntry any)

	// ListTables returns the mapped tables, sorted.
	ListTables() []string

	// Query returns pointers to decoded rows and the number of rows that
	// match the condition regardless of Limit.
	Query(ctx context.Context, tableName string, params QueryParams) (
		results []any,
		totalCount int,
		err error,
	)

	Close() error
}

type mappedTable struct {
	entryType reflect.Type
	fields    map[string]int
}

type sqliteReader struct {
	*sql.DB

	tables map[string]mappedTable
}

// NewReader opens a trace database for reading.
func NewReader(dbFilename string) (DataReader, error) {
	db, err := sql.Open("sqlite3", dbFilename)
	if err != nil {
		return nil, err
	}

	return NewReaderWithDB(db), nil
}

// NewReaderWithDB creates a DataReader on an open database.
func NewReaderWithDB(db *sql.DB) DataReader {
	return &sqliteReader{
		DB:     db,
		tables: make(map[string]mappedTable),
	}
}

func (r *sqliteReader) MapTable(tableName string, sampleEntry any) {
	t := reflect.TypeOf(sampleEntry)
	if err := checkStructFields(sampleEntry); err != nil {
		panic(err)
	}

	fields := make(map[string]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		fields[t.Field(i).Name] = i
	}

	r.tables[tableName] = mappedTable{entryType: t, fields: fields}
}

func (r *sqliteReader) ListTables() []string {
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func (r *sqliteReader) Query(
	ctx context.Context,
	tableName string,
	params QueryParams,
) ([]any, int, error) {
	table, ok := r.tables[tableName]
	if !ok {
		return nil, 0, fmt.Errorf("table %s is not mapped", tableName)
	}

	var total int

	err := r.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+tableName+whereClause(params),
		params.Args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.QueryContext(ctx, selectQuery(tableName, params),
		params.Args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	results, err := table.scan(rows)
	if err != nil {
		return nil, 0, err
	}

	return results, total, nil
}

func (r *sqliteReader) Close() error {
	return r.DB.Close()
}

func whereClause(params QueryParams) string {
	if params.Where == "" {
		return ""
	}

	return " WHERE " + params.Where
}

func selectQuery(tableName string, params QueryParams) string {
	var b strings.Builder

	b.WriteString("SELECT * FROM ")
	b.WriteString(tableName)
	b.WriteString(whereClause(params))

	if params.OrderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(params.OrderBy)
	}

	if params.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", params.Limit)

		if params.Offset > 0 {
			fmt.Fprintf(&b, " OFFSET %d", params.Offset)
		}
	}

	return b.String()
}

// scan decodes every row. Columns without a matching field are dropped.
func (t mappedTable) scan(rows *sql.Rows) ([]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []any

	for rows.Next() {
		entry := reflect.New(t.entryType)
		targets := make([]any, len(columns))

		for i, col := range columns {
			idx, ok := t.fields[col]
			if !ok {
				targets[i] = new(any)
				continue
			}

			targets[i] = entry.Elem().Field(idx).Addr().Interface()
		}

		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}

		results = append(results, entry.Interface())
	}

	return results, rows.Err()
}

// QueryAs runs a query on a table mapped to T and returns the rows by value.
func QueryAs[T any](
	ctx context.Context,
	r DataReader,
	tableName string,
	params QueryParams,
) ([]T, int, error) {
	results, total, err := r.Query(ctx, tableName, params)
	if err != nil {
		return nil, 0, err
	}

	rows := make([]T, 0, len(results))

	for _, res := range results {
		row, ok := res.(*T)
		if !ok {
			return nil, 0, fmt.Errorf("table %s is mapped to %T, not %T",
				tableName, res, new(T))
		}

		rows = append(rows, *row)
	}

	return rows, total, nil
}
