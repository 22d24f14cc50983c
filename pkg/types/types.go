package types

import (
	"time"

	"urltree/internal/tree"
)

// SourceItem is one entry of the upstream URL list
type SourceItem struct {
	FileURL string `json:"fileUrl"`
}

// URLs returns the file URLs of items in order
func URLs(items []SourceItem) []string {
	urls := make([]string, 0, len(items))
	for _, item := range items {
		urls = append(urls, item.FileURL)
	}
	return urls
}

// Snapshot is a built tree together with its bookkeeping
type Snapshot struct {
	Key      string      `json:"key"`
	Tree     tree.Result `json:"tree"`
	Stats    tree.Stats  `json:"stats"`
	Links    tree.Links  `json:"links,omitempty"`
	BuiltAt  time.Time   `json:"built_at"`
	CachedAt time.Time   `json:"-"`
}
