// Package sqlite exposes named embedded databases to guests.
//
//	execute(db, sql) -> result<u32, string>
//	query(db, sql)   -> result<query-result, string>
//
// Both take two (ptr, len) string pairs and return a pointer to the encoded
// result. Engine errors reach the guest verbatim in the Err arm.
package sqlite

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-workspace/dbmanager"
	"github.com/wippyai/wasm-workspace/errors"
	"github.com/wippyai/wasm-workspace/host"
	"github.com/wippyai/wasm-workspace/transcoder"
)

const Namespace = "sqlite"

var (
	// QueryResultType is record query-result { columns: list<string>, rows: list<list<string>> }.
	QueryResultType = transcoder.Record("query-result",
		transcoder.Field("columns", transcoder.List(transcoder.String)),
		transcoder.Field("rows", transcoder.List(transcoder.List(transcoder.String))),
	)
	ExecuteResult = transcoder.ResultOf(transcoder.U32, transcoder.String)
	QueryResult   = transcoder.ResultOf(QueryResultType, transcoder.String)
)

// Databases is the part of the database manager guests can reach.
type Databases interface {
	Execute(ctx context.Context, name, stmt string) (uint32, error)
	Query(ctx context.Context, name, stmt string) (*dbmanager.ResultSet, error)
}

var stringPairs = []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32}

// Register adds sqlite.execute and sqlite.query backed by dbs.
func Register(r *host.Registry, dbs Databases) error {
	c := &capability{dbs: dbs}
	if err := r.Register(Namespace, "execute", host.Func{
		Handler: c.execute,
		Params:  stringPairs,
		Results: []api.ValueType{api.ValueTypeI32},
	}); err != nil {
		return err
	}
	return r.Register(Namespace, "query", host.Func{
		Handler: c.query,
		Params:  stringPairs,
		Results: []api.ValueType{api.ValueTypeI32},
	})
}

type capability struct {
	dbs Databases
}

func (c *capability) execute(call *host.Call) error {
	db, stmt, err := args(call)
	if err != nil {
		return call.Fail(ExecuteResult, err)
	}
	n, err := c.dbs.Execute(call.Context(), db, stmt)
	if err != nil {
		host.Logger().Debug("sqlite execute failed", zap.String("db", db), zap.Error(err))
		return call.Fail(ExecuteResult, errors.Capability(Namespace, "execute", err))
	}
	return call.ReturnResult(ExecuteResult, transcoder.Ok(n))
}

func (c *capability) query(call *host.Call) error {
	db, stmt, err := args(call)
	if err != nil {
		return call.Fail(QueryResult, err)
	}
	rs, err := c.dbs.Query(call.Context(), db, stmt)
	if err != nil {
		host.Logger().Debug("sqlite query failed", zap.String("db", db), zap.Error(err))
		return call.Fail(QueryResult, errors.Capability(Namespace, "query", err))
	}
	return call.ReturnResult(QueryResult, transcoder.Ok(map[string]any{
		"columns": rs.Columns,
		"rows":    rs.Rows,
	}))
}

func args(call *host.Call) (db, stmt string, err error) {
	if db, err = call.String(0); err != nil {
		return "", "", err
	}
	if stmt, err = call.String(2); err != nil {
		return "", "", err
	}
	return db, stmt, nil
}
