package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasBreakingChanges(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		diff     string
		breaking bool
	}{
		{"empty diff", "", false},
		{"additive change", "CREATE TABLE orders (id INT)", false},
		{"insert only", "INSERT INTO orders VALUES (1)", false},
		{"add column", "ALTER TABLE orders ADD COLUMN note TEXT", false},
		{"drop table", "DROP TABLE orders", true},
		{"drop table lowercase", "drop table orders", true},
		{"drop column", "ALTER TABLE orders DROP COLUMN legacy_id", true},
		{"set not null", "ALTER TABLE orders ALTER COLUMN id SET NOT NULL", true},
		{"set not null across lines", "ALTER TABLE orders\n  ALTER COLUMN id\n  SET NOT NULL", true},
		{"set not null mixed case", "alter table orders alter column id set not null", true},
		{"not null without alter", "CREATE TABLE t (id INT NOT NULL)", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.breaking, HasBreakingChanges(tt.diff))
		})
	}
}

func TestDetectDataLoss(t *testing.T) {
	t.Parallel()

	t.Run("clean diff yields no warnings", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, DetectDataLoss("CREATE TABLE orders (id INT)"))
	})

	t.Run("each destructive operation is reported once", func(t *testing.T) {
		t.Parallel()
		warnings := DetectDataLoss("DROP TABLE old; TRUNCATE stage; DELETE FROM events")
		assert.Len(t, warnings, 3)
	})

	t.Run("delete alone is data loss but not breaking", func(t *testing.T) {
		t.Parallel()
		diff := "DELETE FROM events WHERE ts < now()"
		assert.NotEmpty(t, DetectDataLoss(diff))
		assert.False(t, HasBreakingChanges(diff))
	})
}
