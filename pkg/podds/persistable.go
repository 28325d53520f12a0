package podds

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/richard-senior/podds/internal/logger"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Persistable interface defines methods that persistent objects must implement
type Persistable interface {
	GetTableName() string
	GetPrimaryKey() map[string]any
	SetPrimaryKey(map[string]any) error
	BeforeSave() error
	AfterSave() error
	BeforeDelete() error
	AfterDelete() error
}

// ErrNotFound is returned by FindByPrimaryKey when no row matches.
var ErrNotFound = errors.New("record not found")

// Store maps Persistable structs onto a sqlite or postgres database using their
// column, dbtype, primary and index struct tags.
type Store struct {
	db     *sql.DB
	driver string
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// OpenStore opens and pings the database. driver is "sqlite" (dsn is a file path or
// ":memory:") or "postgres" (dsn is a lib/pq connection string).
func OpenStore(ctx context.Context, driver, dsn string) (*Store, error) {
	var db *sql.DB
	var err error
	switch driver {
	case "sqlite":
		source := dsn
		if dsn != ":memory:" {
			source = dsn + "?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)"
		}
		db, err = sql.Open("sqlite", source)
		if err == nil {
			// one writer, and a single shared connection keeps :memory: databases alive
			db.SetMaxOpenConns(1)
		}
	case "postgres":
		db, err = sql.Open("postgres", dsn)
	default:
		return nil, configError("db_driver", "unsupported driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	logger.Info("Database initialized successfully", driver)
	return &Store{db: db, driver: driver}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the connection for ad hoc queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates the tables and indexes for each object.
func (s *Store) Migrate(ctx context.Context, objs ...Persistable) error {
	for _, obj := range objs {
		if err := s.CreateTable(ctx, obj); err != nil {
			return err
		}
	}
	return nil
}

// CreateTable creates a table for the given persistable object using struct tags
func (s *Store) CreateTable(ctx context.Context, obj Persistable) error {
	tableName := obj.GetTableName()
	createSQL := generateCreateTableSQL(obj, tableName)

	logger.Debug("Creating table with SQL", createSQL)
	if _, err := s.db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("failed to create table %s: %w", tableName, err)
	}

	for _, query := range generateIndexSQL(obj, tableName) {
		logger.Debug("Creating index with SQL", query)
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", tableName, err)
		}
	}
	return nil
}

// persistedFields returns the exported struct fields that carry a dbtype tag.
func persistedFields(t reflect.Type) []reflect.StructField {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	var fields []reflect.StructField
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() || field.Tag.Get("dbtype") == "" || field.Tag.Get("db") == "-" {
			continue
		}
		fields = append(fields, field)
	}
	return fields
}

func columnName(field reflect.StructField) string {
	if c := field.Tag.Get("column"); c != "" {
		return c
	}
	return strings.ToLower(field.Name)
}

// generateCreateTableSQL generates CREATE TABLE SQL from struct tags
func generateCreateTableSQL(obj any, tableName string) string {
	var columns []string
	var primaryKeys []string

	for _, field := range persistedFields(reflect.TypeOf(obj)) {
		name := columnName(field)
		dbType := field.Tag.Get("dbtype")
		if field.Tag.Get("primary") == "true" {
			primaryKeys = append(primaryKeys, name)
			dbType = strings.TrimSpace(strings.ReplaceAll(dbType, "PRIMARY KEY", ""))
		}
		columns = append(columns, fmt.Sprintf("%s %s", name, dbType))
	}

	if len(primaryKeys) > 0 {
		columns = append(columns, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(primaryKeys, ", ")))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", tableName, strings.Join(columns, ", "))
}

// generateIndexSQL generates index creation SQL from struct tags
func generateIndexSQL(obj any, tableName string) []string {
	var indexSQL []string
	for _, field := range persistedFields(reflect.TypeOf(obj)) {
		if field.Tag.Get("index") == "" {
			continue
		}
		name := columnName(field)
		indexName := fmt.Sprintf("idx_%s_%s", tableName, name)
		indexSQL = append(indexSQL, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(%s)", indexName, tableName, name))
	}
	return indexSQL
}

// rebind rewrites ? placeholders as $1, $2... for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Save persists the object to the database (INSERT or UPDATE)
func (s *Store) Save(ctx context.Context, obj Persistable) error {
	return s.save(ctx, s.db, obj)
}

func (s *Store) save(ctx context.Context, ex execer, obj Persistable) error {
	if err := obj.BeforeSave(); err != nil {
		return fmt.Errorf("before save hook failed: %w", err)
	}

	exists, err := s.exists(ctx, ex, obj)
	if err != nil {
		return fmt.Errorf("failed to check existence: %w", err)
	}
	if exists {
		err = s.update(ctx, ex, obj)
	} else {
		err = s.insert(ctx, ex, obj)
	}
	if err != nil {
		return err
	}

	if err := obj.AfterSave(); err != nil {
		return fmt.Errorf("after save hook failed: %w", err)
	}
	return nil
}

// insert adds a new record to the database
func (s *Store) insert(ctx context.Context, ex execer, obj Persistable) error {
	tableName := obj.GetTableName()
	columns, placeholders, values := getInsertData(obj)

	query := s.rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		tableName, strings.Join(columns, ", "), strings.Join(placeholders, ", ")))
	if _, err := ex.ExecContext(ctx, query, values...); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", tableName, err)
	}
	return nil
}

// update modifies an existing record in the database
func (s *Store) update(ctx context.Context, ex execer, obj Persistable) error {
	tableName := obj.GetTableName()
	setPairs, values := getUpdateData(obj)
	if len(setPairs) == 0 {
		return nil
	}
	whereClause, whereValues := buildWhereClause(obj.GetPrimaryKey())
	values = append(values, whereValues...)

	query := s.rebind(fmt.Sprintf("UPDATE %s SET %s WHERE %s", tableName, strings.Join(setPairs, ", "), whereClause))
	if _, err := ex.ExecContext(ctx, query, values...); err != nil {
		return fmt.Errorf("failed to update %s: %w", tableName, err)
	}
	return nil
}

// getInsertData extracts column names, placeholders, and values for INSERT
func getInsertData(obj any) ([]string, []string, []any) {
	v := reflect.Indirect(reflect.ValueOf(obj))
	var columns, placeholders []string
	var values []any
	for _, field := range persistedFields(v.Type()) {
		columns = append(columns, columnName(field))
		placeholders = append(placeholders, "?")
		values = append(values, v.FieldByIndex(field.Index).Interface())
	}
	return columns, placeholders, values
}

// getUpdateData extracts SET pairs and values for UPDATE, skipping primary key columns
func getUpdateData(obj any) ([]string, []any) {
	v := reflect.Indirect(reflect.ValueOf(obj))
	var setPairs []string
	var values []any
	for _, field := range persistedFields(v.Type()) {
		if field.Tag.Get("primary") == "true" {
			continue
		}
		setPairs = append(setPairs, fmt.Sprintf("%s = ?", columnName(field)))
		values = append(values, v.FieldByIndex(field.Index).Interface())
	}
	return setPairs, values
}

// getSelectData extracts column names and scan destinations for SELECT
func getSelectData(obj any) ([]string, []any) {
	v := reflect.Indirect(reflect.ValueOf(obj))
	var columns []string
	var destinations []any
	for _, field := range persistedFields(v.Type()) {
		columns = append(columns, columnName(field))
		destinations = append(destinations, v.FieldByIndex(field.Index).Addr().Interface())
	}
	return columns, destinations
}

// Exists checks if the object exists in the database
func (s *Store) Exists(ctx context.Context, obj Persistable) (bool, error) {
	return s.exists(ctx, s.db, obj)
}

func (s *Store) exists(ctx context.Context, ex execer, obj Persistable) (bool, error) {
	tableName := obj.GetTableName()
	whereClause, values := buildWhereClause(obj.GetPrimaryKey())

	var count int
	query := s.rebind(fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", tableName, whereClause))
	if err := ex.QueryRowContext(ctx, query, values...).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check existence in %s: %w", tableName, err)
	}
	return count > 0, nil
}

// Delete removes the object from the database
func (s *Store) Delete(ctx context.Context, obj Persistable) error {
	if err := obj.BeforeDelete(); err != nil {
		return fmt.Errorf("before delete hook failed: %w", err)
	}

	tableName := obj.GetTableName()
	whereClause, values := buildWhereClause(obj.GetPrimaryKey())
	query := s.rebind(fmt.Sprintf("DELETE FROM %s WHERE %s", tableName, whereClause))
	if _, err := s.db.ExecContext(ctx, query, values...); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", tableName, err)
	}

	if err := obj.AfterDelete(); err != nil {
		return fmt.Errorf("after delete hook failed: %w", err)
	}
	return nil
}

// FindByPrimaryKey loads the row with obj's primary key into obj.
func (s *Store) FindByPrimaryKey(ctx context.Context, obj Persistable) error {
	tableName := obj.GetTableName()
	columns, destinations := getSelectData(obj)
	whereClause, values := buildWhereClause(obj.GetPrimaryKey())

	query := s.rebind(fmt.Sprintf("SELECT %s FROM %s WHERE %s", strings.Join(columns, ", "), tableName, whereClause))
	err := s.db.QueryRowContext(ctx, query, values...).Scan(destinations...)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", tableName, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to scan row from %s: %w", tableName, err)
	}
	return nil
}

// FindWhere executes a custom WHERE query, written with ? placeholders, and returns
// new instances of obj's type. An empty whereClause selects every row.
func (s *Store) FindWhere(ctx context.Context, obj Persistable, whereClause string, args ...any) ([]any, error) {
	tableName := obj.GetTableName()
	columns, _ := getSelectData(obj)

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(columns, ", "), tableName)
	if whereClause != "" {
		query += " WHERE " + whereClause
	}
	query = s.rebind(query)
	logger.Debug("FindWhere SQL", query)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", tableName, err)
	}
	defer rows.Close()

	objType := reflect.TypeOf(obj)
	if objType.Kind() == reflect.Ptr {
		objType = objType.Elem()
	}

	var results []any
	for rows.Next() {
		newObj := reflect.New(objType).Interface()
		_, destinations := getSelectData(newObj)
		if err := rows.Scan(destinations...); err != nil {
			return nil, fmt.Errorf("failed to scan row from %s: %w", tableName, err)
		}
		results = append(results, newObj)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows from %s: %w", tableName, err)
	}
	return results, nil
}

// BulkSave saves multiple objects in a single transaction
func (s *Store) BulkSave(ctx context.Context, objects []Persistable) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, obj := range objects {
		if err := s.save(ctx, tx, obj); err != nil {
			return fmt.Errorf("failed to save object: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// buildWhereClause builds a WHERE clause from a primary key map.
// Columns are sorted so the clause and its arguments line up deterministically.
func buildWhereClause(primaryKey map[string]any) (string, []any) {
	columns := make([]string, 0, len(primaryKey))
	for column := range primaryKey {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	conditions := make([]string, 0, len(columns))
	values := make([]any, 0, len(columns))
	for _, column := range columns {
		conditions = append(conditions, fmt.Sprintf("%s = ?", column))
		values = append(values, primaryKey[column])
	}
	return strings.Join(conditions, " AND "), values
}
