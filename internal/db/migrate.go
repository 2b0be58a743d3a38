package db

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
)

//go:embed sql/notify_table.sql
var notifyTableSQL string

// Migrate creates the notify table when it does not exist. The source table is
// owned by the crawler side and is never created or altered here.
func (p *Pool) Migrate(ctx context.Context, notifyTable string) error {
	gdb := p.handle()
	if gdb == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	table := strings.TrimSpace(notifyTable)
	if table == "" {
		return fmt.Errorf("notify table name is empty")
	}

	ddl := strings.TrimSpace(fmt.Sprintf(notifyTableSQL, table))
	if err := gdb.WithContext(ctx).Exec(ddl).Error; err != nil {
		return fmt.Errorf("create notify table %s: %w", table, err)
	}
	return nil
}
