package handlers

import (
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"go.uber.org/zap"

	"urltree/internal/logging"
	"urltree/internal/tree"
	"urltree/internal/webdav"
	"urltree/pkg/types"
)

const davPrefix = "/dav"

// WebDAVHandler exposes the tree as a read-only WebDAV share. Hosts are the
// top-level collections and file GETs redirect to the source URL.
type WebDAVHandler struct {
	files FilesProvider
}

func NewWebDAVHandler(files FilesProvider) *WebDAVHandler {
	return &WebDAVHandler{
		files: files,
	}
}

func (h *WebDAVHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "OPTIONS":
		h.handleOptions(w, r)
	case "PROPFIND":
		h.handlePropFind(w, r)
	case "GET", "HEAD":
		h.handleGetHead(w, r)
	default:
		w.Header().Set("Allow", "OPTIONS, PROPFIND, GET, HEAD")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *WebDAVHandler) handleOptions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", "OPTIONS, PROPFIND, GET, HEAD")
	w.Header().Set("DAV", "1")
	w.Header().Set("MS-Author-Via", "DAV")
	w.WriteHeader(http.StatusOK)
}

func (h *WebDAVHandler) snapshot(w http.ResponseWriter, r *http.Request) (*types.Snapshot, bool) {
	snapshot, err := h.files.Files(r.Context())
	if err != nil {
		status := StatusForError(err)
		logging.WithContext(r.Context()).Error("webdav request failed", zap.Int("status", status), zap.Error(err))
		http.Error(w, http.StatusText(status), status)
		return nil, false
	}
	return snapshot, true
}

func (h *WebDAVHandler) handlePropFind(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	parts := splitPrefixedPath(r.URL.Path, davPrefix)
	depth := r.Header.Get("Depth")
	if depth == "" {
		depth = "1"
	}

	var responses []webdav.Response
	entries, isDir := h.lookup(snapshot, parts)
	switch {
	case isDir:
		responses = append(responses, webdav.CollectionResponse(davHref(parts, true), displayName(parts), snapshot.BuiltAt))
		if depth != "0" {
			for _, e := range entries {
				child := append(append([]string{}, parts...), e.Name)
				responses = append(responses, entryResponse(child, e, snapshot))
			}
		}
	case len(parts) > 1 && hasVisibleFile(snapshot, parts):
		responses = append(responses, entryResponse(parts, tree.File(parts[len(parts)-1]), snapshot))
	default:
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusMultiStatus)

	if err := webdav.Encode(w, webdav.Multistatus{Responses: responses}); err != nil {
		logging.WithContext(r.Context()).Error("encoding multistatus failed", zap.Error(err))
	}
}

// lookup returns the children of the collection at parts. The root lists
// the hosts.
func (h *WebDAVHandler) lookup(snapshot *types.Snapshot, parts []string) ([]tree.Entry, bool) {
	if len(parts) == 0 {
		entries := make([]tree.Entry, 0, len(snapshot.Tree))
		for _, ht := range snapshot.Tree {
			entries = append(entries, tree.Dir(ht.Host))
		}
		return entries, true
	}
	return snapshot.Tree.Lookup(parts[0], parts[1:]...)
}

func entryResponse(parts []string, e tree.Entry, snapshot *types.Snapshot) webdav.Response {
	if e.Dir {
		return webdav.CollectionResponse(davHref(parts, true), e.Name, snapshot.BuiltAt)
	}
	return webdav.FileResponse(davHref(parts, false), e.Name, mime.TypeByExtension(path.Ext(e.Name)), snapshot.BuiltAt)
}

// For WebDAV compatibility, collections carry a trailing slash.
func davHref(parts []string, dir bool) string {
	href := escapedPath(davPrefix, parts...)
	if dir {
		href += "/"
	}
	return href
}

func displayName(parts []string) string {
	if len(parts) == 0 {
		return "Root"
	}
	return parts[len(parts)-1]
}

func (h *WebDAVHandler) handleGetHead(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	parts := splitPrefixedPath(r.URL.Path, davPrefix)
	if _, isDir := h.lookup(snapshot, parts); isDir {
		http.Error(w, "Cannot GET directory", http.StatusBadRequest)
		return
	}

	target, found := fileURL(snapshot, parts)
	if !found {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func hasVisibleFile(snapshot *types.Snapshot, parts []string) bool {
	parent, found := snapshot.Tree.Lookup(parts[0], parts[1:len(parts)-1]...)
	return found && hasFile(parent, parts[len(parts)-1])
}

// escapedPath joins parts under prefix, escaping each one so names holding
// "#", "?" or "%" come back unchanged from splitPrefixedPath.
func escapedPath(prefix string, parts ...string) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, part := range parts {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(part))
	}
	return b.String()
}

func splitPrefixedPath(p, prefix string) []string {
	p = strings.TrimPrefix(p, prefix)
	var parts []string
	for _, part := range strings.Split(p, "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}
