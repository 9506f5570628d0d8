/*-------------------------------------------------------------------------
 *
 * LATS Admin - Table Metadata Types
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package database

// TableInfo describes a destination table
type TableInfo struct {
	SchemaName string
	TableName  string
	Columns    []ColumnInfo
}

// ColumnInfo describes one column of a destination table
type ColumnInfo struct {
	ColumnName   string
	DataType     string
	IsNullable   bool
	HasDefault   bool
	IsPrimaryKey bool
	IsUnique     bool // covered by a single-column unique constraint or index
}

// Column returns the named column
func (t TableInfo) Column(name string) (ColumnInfo, bool) {
	for _, c := range t.Columns {
		if c.ColumnName == name {
			return c, true
		}
	}
	return ColumnInfo{}, false
}

// RequiredColumns returns the NOT NULL columns without a default. An
// insert has to supply a value for each of them.
func (t TableInfo) RequiredColumns() []string {
	var required []string
	for _, c := range t.Columns {
		if !c.IsNullable && !c.HasDefault {
			required = append(required, c.ColumnName)
		}
	}
	return required
}
