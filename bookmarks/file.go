package bookmarks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// chromiumRoots lists the root folders of a Chromium Bookmarks file in
// display order.
var chromiumRoots = []string{"bookmark_bar", "other", "synced"}

// FileSource reads a Chromium-format Bookmarks JSON file.
type FileSource struct {
	Path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

type chromiumFile struct {
	Roots map[string]*chromiumNode `json:"roots"`
}

type chromiumNode struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Type     string          `json:"type"`
	URL      string          `json:"url"`
	Children []*chromiumNode `json:"children"`
}

func (s *FileSource) Tree(ctx context.Context) ([]*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read bookmarks: %w", err)
	}
	return ParseChromium(data)
}

// ParseChromium converts Chromium Bookmarks JSON into a forest with one root
// per present root folder.
func ParseChromium(data []byte) ([]*Node, error) {
	var file chromiumFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse bookmarks: %w", err)
	}
	roots := make([]*Node, 0, len(chromiumRoots))
	for _, key := range chromiumRoots {
		cn, ok := file.Roots[key]
		if !ok || cn == nil {
			continue
		}
		roots = append(roots, convert(cn, ""))
	}
	return roots, nil
}

func convert(cn *chromiumNode, parent string) *Node {
	n := &Node{ID: cn.ID, ParentID: parent, Title: cn.Name}
	if cn.Type == "url" {
		n.URL = cn.URL
		return n
	}
	n.Children = make([]*Node, 0, len(cn.Children))
	for _, child := range cn.Children {
		n.Children = append(n.Children, convert(child, cn.ID))
	}
	return n
}
