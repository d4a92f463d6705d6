package all

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dbbench/internal/schema"
	"dbbench/internal/storage"
)

func TestAllKindsRegistered(t *testing.T) {
	kinds := []string{"clickhouse", "mongodb", "mssql", "mysql", "postgres", "sqlite"}
	assert.Equal(t, kinds, storage.ListKinds())
	for _, k := range kinds {
		d, err := schema.EmitDDL(k, "people", schema.People())
		if assert.NoError(t, err, k) {
			assert.NotEmpty(t, d.Statements, k)
		}
	}
}
