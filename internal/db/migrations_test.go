package db

import (
	"io/fs"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var createTable = regexp.MustCompile(`(?s)CREATE TABLE IF NOT EXISTS (\w+) \((.*?)\n\);`)

// Engine tables must accept any tenant id the token carries; only the
// identity service's own tables may point at tenants.
func TestEngineTablesHaveNoTenantForeignKey(t *testing.T) {
	raw, err := migrations.ReadFile("migrations/0001_init.sql")
	require.NoError(t, err)

	tables := map[string]string{}
	for _, m := range createTable.FindAllStringSubmatch(string(raw), -1) {
		tables[m[1]] = m[2]
	}
	for _, name := range []string{"tenant_message_seq", "channels", "chat_groups", "messages"} {
		body, ok := tables[name]
		require.True(t, ok, name)
		require.Contains(t, body, "tenant_id", name)
		require.NotContains(t, body, "REFERENCES tenants", name)
	}
	require.Contains(t, tables["users"], "REFERENCES tenants")
}

func TestMigrationsDropLegacyTenantForeignKeys(t *testing.T) {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	require.NoError(t, err)
	require.Equal(t, []string{"migrations/0001_init.sql", "migrations/0002_drop_tenant_fks.sql"}, names)

	raw, err := migrations.ReadFile("migrations/0002_drop_tenant_fks.sql")
	require.NoError(t, err)
	for _, table := range []string{"tenant_message_seq", "channels", "chat_groups", "messages"} {
		require.True(t, strings.Contains(string(raw),
			"ALTER TABLE "+table+" DROP CONSTRAINT IF EXISTS "+table+"_tenant_id_fkey;"), table)
	}
}
