package catalog

import (
	"strings"
	"testing"
)

func TestReferenceSchemaCoversSeededTables(t *testing.T) {
	if len(referenceSchema) != len(referenceTables) {
		t.Fatalf("schema has %d statements, seed list has %d tables",
			len(referenceSchema), len(referenceTables))
	}
	for _, table := range referenceTables {
		found := false
		for _, stmt := range referenceSchema {
			if strings.Contains(stmt, "CREATE TABLE IF NOT EXISTS "+table+" ") {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("table %s seeded but missing from schema", table)
		}
	}
}
