package cqlutil

import (
	"context"
	"reflect"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/gocql/gocql"
	"github.com/questx-lab/coursechat/config"
	"github.com/scylladb/gocqlx/v2"
	"github.com/scylladb/gocqlx/v2/table"
)

func CreateCluster(cfg config.ScyllaConfigs) *gocql.ClusterConfig {
	cluster := gocql.NewCluster(cfg.Addrs...)
	cluster.Keyspace = cfg.KeySpace
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = 5 * time.Second
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		NumRetries: 3,
		Min:        100 * time.Millisecond,
		Max:        time.Second,
	}

	return cluster
}

func Insert(ctx context.Context, session gocqlx.Session, tbl *table.Table, data any) error {
	stmt, names := tbl.Insert()
	return session.Query(stmt, names).WithContext(ctx).BindStruct(data).ExecRelease()
}

// GetColumnNames returns the sorted column names of a struct pointer, taken
// from the db tag or the snake case of the field name. Fields tagged "-" are
// skipped.
func GetColumnNames(i any) []string {
	result := []string{}
	val := reflect.ValueOf(i).Elem()
	for i := 0; i < val.NumField(); i++ {
		field := val.Type().Field(i)
		name := field.Tag.Get("db")
		if name == "-" {
			continue
		}
		if name == "" {
			name = toSnakeCase(field.Name)
		}
		result = append(result, name)
	}
	sort.Strings(result)

	return result
}

func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}

	return b.String()
}
