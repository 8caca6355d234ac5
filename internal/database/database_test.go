package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"inkwell/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMigrate_CreatesSchema(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)

	require.NoError(t, Migrate(db))

	for _, table := range []string{"users", "posts", "comments", "likes", "categories", "tags", "post_categories", "post_tags"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	assert.False(t, db.Migrator().HasColumn("posts", "likes_count"), "computed columns must not be migrated")
	assert.True(t, db.Migrator().HasIndex("likes", "idx_user_post"))
}

func TestDSN(t *testing.T) {
	cfg := &config.Config{DBHost: "db", DBPort: "5432", DBUser: "u", DBPassword: "p", DBName: "blog"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=blog sslmode=disable", DSN(cfg))

	cfg.DBSSLMode = "require"
	assert.Contains(t, DSN(cfg), "sslmode=require")
}

func TestGormLogger_Trace(t *testing.T) {
	var buf bytes.Buffer
	l := NewGormLogger(slog.New(slog.NewTextHandler(&buf, nil)), logger.Warn)
	sql := func() (string, int64) { return "SELECT 1", 1 }
	ctx := context.Background()

	l.Trace(ctx, time.Now(), sql, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String(), "record-not-found is not an error worth logging")

	l.Trace(ctx, time.Now(), sql, nil)
	assert.Empty(t, buf.String(), "fast queries are silent at warn level")

	l.Trace(ctx, time.Now().Add(-time.Second), sql, nil)
	assert.Contains(t, buf.String(), "gorm slow query")

	buf.Reset()
	l.Trace(ctx, time.Now(), sql, errors.New("syntax error"))
	assert.Contains(t, buf.String(), "gorm query error")

	buf.Reset()
	l.LogMode(logger.Silent).Trace(ctx, time.Now(), sql, errors.New("syntax error"))
	assert.Empty(t, buf.String())
}
