package db

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	_, err := buildDSN("", "")
	require.Error(t, err)

	dsn, err := buildDSN("postgres://u:p@localhost:5432/docqa", "")
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@localhost:5432/docqa", dsn)

	_, err = buildDSN("postgres://localhost/docqa", filepath.Join(t.TempDir(), "missing.crt"))
	require.Error(t, err)

	cert := filepath.Join(t.TempDir(), "ca.crt")
	require.NoError(t, os.WriteFile(cert, []byte("cert"), 0o600))
	dsn, err = buildDSN("postgres://u:p@localhost:5432/docqa?application_name=api", cert)
	require.NoError(t, err)

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "verify-ca", u.Query().Get("sslmode"))
	assert.Equal(t, cert, u.Query().Get("sslrootcert"))
	assert.Equal(t, "api", u.Query().Get("application_name"))
}

func TestBootstrapScriptIsEmbedded(t *testing.T) {
	data, err := bootstrapFS.ReadFile("scripts/initdb.sql")
	require.NoError(t, err)
	sql := string(data)
	for _, table := range []string{"users", "documents", "document_analyses", "chat_history", "docqa_schema"} {
		assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS "+table)
	}
}

func TestBootstrapScriptRecordsSchemaVersion(t *testing.T) {
	data, err := bootstrapFS.ReadFile("scripts/initdb.sql")
	require.NoError(t, err)
	assert.Contains(t, string(data), fmt.Sprintf("INSERT INTO docqa_schema (version) VALUES (%d)", schemaVersion))
}
