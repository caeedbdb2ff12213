package profiles

import (
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Column drift between the repository and the profiles migration only
// surfaces at runtime, so pin the scan list to the schema here.

func profilesTableColumns(t *testing.T) []string {
	t.Helper()
	schema, err := os.ReadFile("../../pkg/database/migrations/001_schema.sql")
	require.NoError(t, err)

	block := regexp.MustCompile(`(?s)CREATE TABLE IF NOT EXISTS profiles \((.*?)\);`).
		FindStringSubmatch(string(schema))
	require.Len(t, block, 2, "profiles table not found in migration")

	var cols []string
	for _, line := range strings.Split(block[1], "\n") {
		fields := strings.Fields(strings.TrimSuffix(strings.TrimSpace(line), ","))
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "PRIMARY", "UNIQUE", "CHECK", "CONSTRAINT", "FOREIGN":
			continue
		}
		cols = append(cols, fields[0])
	}
	return cols
}

func TestProfileColumnsMatchSchema(t *testing.T) {
	require.ElementsMatch(t, profilesTableColumns(t), strings.Split(profileColumns, ", "))
}

func TestProfileUpdateWritesOnlySchemaColumns(t *testing.T) {
	schemaCols := make(map[string]bool)
	for _, c := range profilesTableColumns(t) {
		schemaCols[c] = true
	}

	updated := []string{
		"first_name", "last_name", "dob", "school", "linkedin_url",
		"sector", "referral", "role_interest", "cv_path", "updated_at",
	}
	for _, c := range updated {
		require.True(t, schemaCols[c], "column %q not in profiles schema", c)
	}
}
