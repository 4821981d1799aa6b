package cassandra

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/samueltorres/r8backend/pkg/store"
)

// DefaultTable is the counters table used when none is configured.
// Expected schema:
//
//	CREATE TABLE counters (key text PRIMARY KEY, value bigint, version bigint);
const DefaultTable = "counters"

// RemoteStorage is a store.Conn on top of Cassandra lightweight
// transactions. The session is shared and owned by the caller; every
// pooled connection may wrap the same session.
type RemoteStorage struct {
	session  *gocql.Session
	keyspace string
	logger   *logrus.Logger

	stmts statements
}

// statements are the CQL statements run against one counters table.
// Both writes are conditional updates on the version cell, so a record
// exists exactly as long as its cells do. An INSERT would also write a
// row marker whose TTL later updates do not refresh.
type statements struct {
	selectStmt string
	updateStmt string
	createStmt string
	multiStmt  string
}

func newStatements(keyspace, table string) statements {
	name := keyspace + "." + table
	return statements{
		selectStmt: fmt.Sprintf(`SELECT value, version FROM %s WHERE key = ?`, name),
		updateStmt: fmt.Sprintf(`UPDATE %s USING TTL ? SET value = ?, version = ? WHERE key = ? IF version = ?`, name),
		createStmt: fmt.Sprintf(`UPDATE %s USING TTL ? SET value = ?, version = ? WHERE key = ? IF version = null`, name),
		multiStmt:  fmt.Sprintf(`SELECT key, value FROM %s WHERE key IN ?`, name),
	}
}

// record interprets the cells of a counter row. Expired cells read as
// null; a row without both cells is absent, never zero.
func record(value, version *int64) (int64, store.Version, bool) {
	if value == nil || version == nil {
		return 0, 0, false
	}
	return *value, store.Version(*version), true
}

// NewRemoteStorage verifies that table carries a version column, which
// the conditional updates depend on.
func NewRemoteStorage(ctx context.Context, logger *logrus.Logger, session *gocql.Session, keyspace, table string) (*RemoteStorage, error) {
	if table == "" {
		table = DefaultTable
	}

	var column string
	err := session.
		Query(`SELECT column_name FROM system_schema.columns WHERE keyspace_name = ? AND table_name = ? AND column_name = 'version'`, keyspace, table).
		WithContext(ctx).
		Scan(&column)
	if err == gocql.ErrNotFound {
		return nil, errors.Wrapf(store.ErrCASUnsupported, "table %s.%s has no version column", keyspace, table)
	}
	if err != nil {
		return nil, errors.Wrap(err, "cassandra schema check failure")
	}

	return &RemoteStorage{
		session:  session,
		keyspace: keyspace,
		logger:   logger,
		stmts:    newStatements(keyspace, table),
	}, nil
}

// Dialer hands every pool slot the same storage; gocql multiplexes
// requests over its own connections.
func Dialer(s *RemoteStorage) store.Dialer {
	return func() (store.Conn, error) {
		return s, nil
	}
}

func (s *RemoteStorage) query(ctx context.Context, stmt string, values ...interface{}) *gocql.Query {
	return s.session.
		Query(stmt, values...).
		WithContext(ctx).
		Consistency(gocql.LocalQuorum).
		SerialConsistency(gocql.LocalSerial)
}

// GetWithVersion implements store.Conn. Reads go through the serial
// consistency level so they observe committed conditional writes.
func (s *RemoteStorage) GetWithVersion(ctx context.Context, key string) (int64, store.Version, bool, error) {
	var value, version *int64

	err := s.query(ctx, s.stmts.selectStmt, key).
		Consistency(gocql.Consistency(gocql.LocalSerial)).
		Scan(&value, &version)
	if err == gocql.ErrNotFound {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, errors.Wrap(err, "cassandra storage get failure")
	}

	v, ver, found := record(value, version)
	return v, ver, found, nil
}

// CompareAndSwap implements store.Conn.
func (s *RemoteStorage) CompareAndSwap(ctx context.Context, key string, value int64, version store.Version, ttl int32) (bool, error) {
	applied, err := s.query(ctx, s.stmts.updateStmt, int(ttl), value, int64(version)+1, key, int64(version)).
		MapScanCAS(map[string]interface{}{})
	if err != nil {
		return false, errors.Wrap(err, "cassandra storage cas failure")
	}

	return applied, nil
}

// AddIfAbsent implements store.Conn. New rows start from a time based
// version so a recreated key does not repeat the versions of an
// expired one.
func (s *RemoteStorage) AddIfAbsent(ctx context.Context, key string, value int64, ttl int32) (bool, error) {
	version := time.Now().UnixNano()

	applied, err := s.query(ctx, s.stmts.createStmt, int(ttl), value, version, key).
		MapScanCAS(map[string]interface{}{})
	if err != nil {
		return false, errors.Wrap(err, "cassandra storage add failure")
	}

	return applied, nil
}

// MultiGet implements store.Conn.
func (s *RemoteStorage) MultiGet(ctx context.Context, keys []string) (map[string]int64, error) {
	values := make(map[string]int64, len(keys))
	if len(keys) == 0 {
		return values, nil
	}

	iter := s.query(ctx, s.stmts.multiStmt, keys).Iter()

	var (
		key   string
		value *int64
	)
	for iter.Scan(&key, &value) {
		if value != nil {
			values[key] = *value
		}
		value = nil
	}

	if err := iter.Close(); err != nil {
		return nil, errors.Wrap(err, "cassandra storage multi get failure")
	}

	return values, nil
}

// Close implements store.Conn. The session belongs to the caller.
func (s *RemoteStorage) Close() error {
	return nil
}
