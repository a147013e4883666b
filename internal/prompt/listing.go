package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
)

const DefaultListingLimit = 30

// ListingRetriever shows the first entries of a directory in name order,
// directories suffixed with "/".
type ListingRetriever struct {
	dir   string
	limit int
}

// NewListingRetriever uses DefaultListingLimit when limit is not positive.
func NewListingRetriever(dir string, limit int) *ListingRetriever {
	if limit <= 0 {
		limit = DefaultListingLimit
	}
	return &ListingRetriever{dir: dir, limit: limit}
}

func (r *ListingRetriever) Name() string {
	return "cwd_listing"
}

func (r *ListingRetriever) GetContext() (string, error) {
	return fmt.Sprintf("\nCWD listing (max %d):\n%s\n", r.limit, r.listing()), nil
}

func (r *ListingRetriever) listing() string {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return "<error listing directory>"
	}
	if len(entries) == 0 {
		return "<empty>"
	}

	names := lo.Map(entries[:min(len(entries), r.limit)], func(entry os.DirEntry, _ int) string {
		if r.isDir(entry) {
			return entry.Name() + "/"
		}
		return entry.Name()
	})
	return strings.Join(names, "  ")
}

// isDir follows symlinks so that a link to a directory is listed as one.
func (r *ListingRetriever) isDir(entry os.DirEntry) bool {
	if entry.Type()&os.ModeSymlink == 0 {
		return entry.IsDir()
	}
	info, err := os.Stat(filepath.Join(r.dir, entry.Name()))
	return err == nil && info.IsDir()
}
