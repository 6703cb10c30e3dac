package migration

import (
	"io/fs"
	"testing"

	"github.com/questx-lab/coursechat/internal/entity"
	"github.com/questx-lab/coursechat/pkg/testutil"
	"github.com/questx-lab/coursechat/pkg/xcontext"
	"github.com/stretchr/testify/require"
)

func TestMysqlSource(t *testing.T) {
	src, err := mysqlSource()
	require.NoError(t, err)
	defer src.Close()

	version, err := src.First()
	require.NoError(t, err)
	require.EqualValues(t, 1, version)

	_, err = src.Next(version)
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestScyllaFiles(t *testing.T) {
	files, err := fs.Glob(scyllaFS, "scylla/*.cql")
	require.NoError(t, err)
	require.Equal(t, []string{"scylla/0001_chat_messages.cql"}, files)
}

func TestMigrate_Sqlite(t *testing.T) {
	ctx := testutil.MockContext()

	// Running twice must be harmless.
	require.NoError(t, Migrate(ctx))
	require.NoError(t, Migrate(ctx))

	for _, table := range []any{&entity.ChatRoom{}, &entity.ChatMessage{}, &entity.ChatMember{}} {
		require.True(t, xcontext.DB(ctx).Migrator().HasTable(table))
	}
}
