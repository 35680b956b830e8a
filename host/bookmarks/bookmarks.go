// Package bookmarks exposes the bookmark cache to guests.
//
// get-tree returns the cached tree as result<list<bookmark-node>, string>.
// create is declared so guests link, but writes are not supported: it always
// returns the Err arm.
package bookmarks

import (
	stderrors "errors"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-workspace/bookmarks"
	"github.com/wippyai/wasm-workspace/errors"
	"github.com/wippyai/wasm-workspace/host"
	"github.com/wippyai/wasm-workspace/transcoder"
)

const Namespace = "bookmarks"

// ErrCreateUnavailable is the Err text of every create call.
const ErrCreateUnavailable = "capability unavailable: bookmark creation is not supported by this host"

var errCreateUnavailable = stderrors.New(ErrCreateUnavailable)

var (
	// NodeType is the recursive bookmark-node record:
	//
	//	id string, parent-id option<string>, title string,
	//	url option<string>, children option<list<bookmark-node>>
	NodeType = transcoder.Recursive("bookmark-node", func(self *wit.TypeDef) []wit.Field {
		return []wit.Field{
			transcoder.Field("id", transcoder.String),
			transcoder.Field("parent-id", transcoder.Option(transcoder.String)),
			transcoder.Field("title", transcoder.String),
			transcoder.Field("url", transcoder.Option(transcoder.String)),
			transcoder.Field("children", transcoder.Option(transcoder.List(self))),
		}
	})
	TreeResult   = transcoder.ResultOf(transcoder.List(NodeType), transcoder.String)
	CreateResult = transcoder.ResultOf(NodeType, transcoder.String)
)

// Snapshotter is the read side of bookmarks.Cache.
type Snapshotter interface {
	Snapshot() ([]*bookmarks.Node, error)
}

var i32 = api.ValueTypeI32

// Register adds get-tree and create, with their underscore aliases.
func Register(r *host.Registry, cache Snapshotter) error {
	c := &capability{cache: cache}
	if err := r.Register(Namespace, "get-tree", host.Func{
		Handler: c.getTree,
		Results: []api.ValueType{i32},
	}, "get_tree"); err != nil {
		return err
	}
	return r.Register(Namespace, "create", host.Func{
		Handler: c.create,
		Params:  []api.ValueType{i32, i32, i32, i32},
		Results: []api.ValueType{i32},
	}, "create_bookmark")
}

type capability struct {
	cache Snapshotter
}

func (c *capability) getTree(call *host.Call) error {
	roots, err := c.cache.Snapshot()
	if err != nil {
		return call.Fail(TreeResult, err)
	}
	return call.ReturnResult(TreeResult, transcoder.Ok(nodeList(roots)))
}

func (c *capability) create(call *host.Call) error {
	return call.Fail(CreateResult, errors.Unavailable(call.Namespace, call.Name, errCreateUnavailable))
}

func nodeList(nodes []*bookmarks.Node) []any {
	out := make([]any, len(nodes))
	for i, n := range nodes {
		out[i] = nodeValue(n)
	}
	return out
}

// nodeValue converts n to the record form the encoder walks. Empty optional
// strings and nil children are absent.
func nodeValue(n *bookmarks.Node) map[string]any {
	v := map[string]any{
		"id":        n.ID,
		"parent-id": optional(n.ParentID),
		"title":     n.Title,
		"url":       optional(n.URL),
		"children":  nil,
	}
	if n.Children != nil {
		v["children"] = nodeList(n.Children)
	}
	return v
}

func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}
