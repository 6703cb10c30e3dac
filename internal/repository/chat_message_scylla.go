package repository

import (
	"context"
	"errors"
	"math"

	"github.com/gocql/gocql"
	"github.com/questx-lab/coursechat/internal/entity"
	"github.com/questx-lab/coursechat/pkg/cqlutil"
	"github.com/questx-lab/coursechat/pkg/numberutil"
	"github.com/scylladb/gocqlx/v2"
	"github.com/scylladb/gocqlx/v2/qb"
	"github.com/scylladb/gocqlx/v2/table"
	"gorm.io/gorm"
)

var chatMessageColumns = cqlutil.GetColumnNames(&entity.ChatMessage{})

type chatMessageScyllaRepository struct {
	session gocqlx.Session
	tbl     *table.Table
}

// NewChatMessageScyllaRepository stores messages in ScyllaDB, partitioned by
// room and ten-day bucket. Ordering inside a room relies on snowflake ids, so
// CreatedAt is kept as given.
func NewChatMessageScyllaRepository(session gocqlx.Session) ChatMessageRepository {
	e := &entity.ChatMessage{}
	return &chatMessageScyllaRepository{
		session: session,
		tbl: table.New(table.Metadata{
			Name:    e.TableName(),
			Columns: chatMessageColumns,
			PartKey: []string{"room_id", "bucket"},
			SortKey: []string{"id"},
		}),
	}
}

func (r *chatMessageScyllaRepository) Create(ctx context.Context, data *entity.ChatMessage) error {
	data.Bucket = numberutil.BucketOf(data.ID)
	return cqlutil.Insert(ctx, r.session, r.tbl, data)
}

func (r *chatMessageScyllaRepository) GetByID(ctx context.Context, roomID, id int64) (*entity.ChatMessage, error) {
	var result entity.ChatMessage
	stmt, names := r.tbl.Get()
	err := r.session.Query(stmt, names).
		WithContext(ctx).
		Bind(roomID, numberutil.BucketOf(id), id).
		GetRelease(&result)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			// Callers check not-found the same way for every message store.
			return nil, gorm.ErrRecordNotFound
		}
		return nil, err
	}

	return &result, nil
}

func (r *chatMessageScyllaRepository) GetListBefore(
	ctx context.Context, roomID, before int64, limit int,
) ([]entity.ChatMessage, error) {
	stmt, names := r.listBeforeStmt(limit)
	return walkBuckets(roomID, before, limit, func(bucket, before int64) ([]entity.ChatMessage, error) {
		var messages []entity.ChatMessage
		err := r.session.Query(stmt, names).
			WithContext(ctx).
			BindMap(qb.M{"room_id": roomID, "bucket": bucket, "id": before}).
			SelectRelease(&messages)
		return messages, err
	})
}

// listBeforeStmt selects, newest first, the messages of one (room, bucket)
// partition older than a given id.
func (r *chatMessageScyllaRepository) listBeforeStmt(limit int) (string, []string) {
	return qb.Select(r.tbl.Name()).
		Columns(chatMessageColumns...).
		Where(qb.Eq("room_id"), qb.Eq("bucket"), qb.Lt("id")).
		OrderBy("id", qb.DESC).
		Limit(uint(limit)).
		ToCql()
}

// walkBuckets collects up to limit messages older than before, newest first.
// It queries the bucket of before, then the previous ones down to the bucket
// the room was created in. A zero before starts from the current bucket.
func walkBuckets(
	roomID, before int64, limit int,
	query func(bucket, before int64) ([]entity.ChatMessage, error),
) ([]entity.ChatMessage, error) {
	bucket := numberutil.BucketOf(before)
	if before == 0 {
		before = math.MaxInt64
	}
	firstBucket := numberutil.BucketOf(roomID)

	result := []entity.ChatMessage{}
	for ; bucket >= firstBucket && len(result) < limit; bucket-- {
		messages, err := query(bucket, before)
		if err != nil {
			return nil, err
		}

		for _, msg := range messages {
			if len(result) == limit {
				break
			}
			result = append(result, msg)
		}
	}

	return result, nil
}
