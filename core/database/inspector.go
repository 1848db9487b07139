package database

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// ColumnInfo matches the output of SHOW COLUMNS
type ColumnInfo struct {
	Field   string
	Type    string
	Null    string
	Key     string
	Default *string // Pointer because NULL default is possible
	Extra   string
}

// GetTableColumns retrieves the column definitions for a given table.
// A table that does not exist yields an empty slice.
func GetTableColumns(db *gorm.DB, tableName string) ([]ColumnInfo, error) {
	var columns []ColumnInfo

	switch db.Dialector.Name() {
	case DriverSQLite:
		type SQLiteColumn struct {
			Cid        int
			Name       string
			Type       string
			Notnull    int
			DefaultVal *string
			Pk         int
		}
		var sqliteCols []SQLiteColumn
		if err := db.Raw(fmt.Sprintf("PRAGMA table_info('%s')", tableName)).Scan(&sqliteCols).Error; err != nil {
			return nil, fmt.Errorf("failed to get columns for table %s: %w", tableName, err)
		}
		for _, col := range sqliteCols {
			columns = append(columns, ColumnInfo{
				Field: strings.ToLower(col.Name),
				Type:  strings.ToLower(col.Type),
			})
		}
		return columns, nil

	case DriverPostgres:
		err := db.Raw(`SELECT column_name AS field, data_type AS type, is_nullable AS "null"
			FROM information_schema.columns WHERE table_name = ?`, tableName).Scan(&columns).Error
		if err != nil {
			return nil, fmt.Errorf("failed to get columns for table %s: %w", tableName, err)
		}

	default:
		// MySQL does not support binding identifiers, table names come from our own models.
		if !db.Migrator().HasTable(tableName) {
			return columns, nil
		}
		err := db.Raw(fmt.Sprintf("SHOW COLUMNS FROM `%s`", tableName)).Scan(&columns).Error
		if err != nil {
			return nil, fmt.Errorf("failed to get columns for table %s: %w", tableName, err)
		}
	}

	for i := range columns {
		columns[i].Type = strings.ToLower(columns[i].Type)
		columns[i].Field = strings.ToLower(columns[i].Field)
	}
	return columns, nil
}

// CheckSchema verifies that every required table carries the required columns.
// It returns one "table.column" entry per missing column ("table" when the whole
// table is absent), sorted for stable output.
func CheckSchema(db *gorm.DB, required map[string][]string) ([]string, error) {
	var missing []string

	for table, wanted := range required {
		columns, err := GetTableColumns(db, table)
		if err != nil {
			return nil, err
		}
		if len(columns) == 0 {
			missing = append(missing, table)
			continue
		}

		present := make(map[string]struct{}, len(columns))
		for _, col := range columns {
			present[col.Field] = struct{}{}
		}
		for _, col := range wanted {
			if _, ok := present[strings.ToLower(col)]; !ok {
				missing = append(missing, table+"."+col)
			}
		}
	}

	sort.Strings(missing)
	return missing, nil
}

// RequiredColumns derives the table and column names the given models map to.
func RequiredColumns(db *gorm.DB, models ...any) (map[string][]string, error) {
	cache := &sync.Map{}
	required := make(map[string][]string, len(models))

	for _, model := range models {
		s, err := schema.Parse(model, cache, db.NamingStrategy)
		if err != nil {
			return nil, fmt.Errorf("failed to parse model %T: %w", model, err)
		}
		required[s.Table] = append([]string(nil), s.DBNames...)
	}

	return required, nil
}
