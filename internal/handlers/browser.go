package handlers

import (
	"encoding/json"
	"html/template"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"urltree/internal/logging"
	"urltree/internal/tree"
	"urltree/pkg/types"
)

const htmlTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>urltree - {{.Path}}</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            margin: 0;
            padding: 20px;
            background-color: #f5f5f7;
        }
        .container {
            max-width: 1200px;
            margin: 0 auto;
            background: white;
            border-radius: 12px;
            box-shadow: 0 4px 6px rgba(0, 0, 0, 0.1);
            overflow: hidden;
        }
        .header {
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            color: white;
            padding: 20px 30px;
        }
        .header h1 { margin: 0; font-size: 24px; font-weight: 600; }
        .breadcrumb { background: #f8f9fa; padding: 15px 30px; border-bottom: 1px solid #e9ecef; }
        .breadcrumb a { color: #0066cc; text-decoration: none; margin-right: 5px; }
        .file-item { display: flex; align-items: center; padding: 12px 30px; border-bottom: 1px solid #f0f0f0; }
        .file-item:last-child { border-bottom: none; }
        .file-icon { width: 24px; margin-right: 12px; }
        .file-name a { color: #333; text-decoration: none; }
        .directory a { color: #0066cc; }
        .empty-state { text-align: center; padding: 60px 30px; color: #666; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>📁 urltree</h1>
        </div>

        <div class="breadcrumb">
            {{range .Breadcrumbs}}
                <a href="{{.URL}}">{{.Name}}</a> /
            {{end}}
        </div>

        <div class="file-list">
            {{if .Items}}
                {{range .Items}}
                <div class="file-item">
                    <div class="file-icon">{{if .IsDir}}📁{{else}}📄{{end}}</div>
                    <div class="file-name {{if .IsDir}}directory{{end}}">
                        <a href="{{.Href}}">{{.Name}}</a>
                    </div>
                </div>
                {{end}}
            {{else}}
                <div class="empty-state">
                    <h3>📂 Empty Directory</h3>
                </div>
            {{end}}
        </div>
    </div>
</body>
</html>`

const browsePrefix = "/browse"

// BrowserHandler serves directory listings of the cached tree under /browse.
// Browsers get HTML; other clients get the directory's entries as JSON.
type BrowserHandler struct {
	files    FilesProvider
	template *template.Template
}

// NewBrowserHandler creates a new browser handler
func NewBrowserHandler(files FilesProvider) *BrowserHandler {
	tmpl := template.Must(template.New("directory").Parse(htmlTemplate))
	return &BrowserHandler{
		files:    files,
		template: tmpl,
	}
}

// BreadcrumbItem represents a breadcrumb item
type BreadcrumbItem struct {
	Name string
	URL  string
}

// TemplateData represents data for the HTML template
type TemplateData struct {
	Path        string
	Breadcrumbs []BreadcrumbItem
	Items       []TemplateItem
}

// TemplateItem represents an item in the directory listing
type TemplateItem struct {
	Name  string
	Href  string
	IsDir bool
}

func (h *BrowserHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snapshot, err := h.files.Files(r.Context())
	if err != nil {
		status := StatusForError(err)
		logging.WithContext(r.Context()).Error("browse failed", zap.Int("status", status), zap.Error(err))
		http.Error(w, http.StatusText(status), status)
		return
	}

	parts := splitPrefixedPath(r.URL.Path, browsePrefix)

	var entries []tree.Entry
	if len(parts) == 0 {
		for _, ht := range snapshot.Tree {
			entries = append(entries, tree.Dir(ht.Host))
		}
	} else {
		var ok bool
		entries, ok = snapshot.Tree.Lookup(parts[0], parts[1:]...)
		if !ok {
			// Files redirect to their source URL
			if target, ok := fileURL(snapshot, parts); ok {
				http.Redirect(w, r, target, http.StatusFound)
				return
			}
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
	}

	if !strings.Contains(r.Header.Get("Accept"), "text/html") {
		w.Header().Set("Content-Type", "application/json")
		if entries == nil {
			entries = []tree.Entry{}
		}
		json.NewEncoder(w).Encode(entries)
		return
	}

	h.renderDirectoryListing(w, r, parts, entries)
}

// fileURL returns the source URL of a file that is visible in the tree.
// Files shadowed by a directory of the same name have no link.
func fileURL(snapshot *types.Snapshot, parts []string) (string, bool) {
	if len(parts) < 2 || !hasVisibleFile(snapshot, parts) {
		return "", false
	}
	return snapshot.Links.Resolve(parts...)
}

func hasFile(entries []tree.Entry, name string) bool {
	for _, e := range entries {
		if !e.Dir && e.Name == name {
			return true
		}
	}
	return false
}

func (h *BrowserHandler) renderDirectoryListing(w http.ResponseWriter, r *http.Request, parts []string, entries []tree.Entry) {
	items := make([]TemplateItem, len(entries))
	for i, e := range entries {
		items[i] = TemplateItem{
			Name:  e.Name,
			Href:  escapedPath(browsePrefix, append(parts[:len(parts):len(parts)], e.Name)...),
			IsDir: e.Dir,
		}
	}

	data := TemplateData{
		Path:        "/" + strings.Join(parts, "/"),
		Breadcrumbs: h.generateBreadcrumbs(parts),
		Items:       items,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.template.Execute(w, data); err != nil {
		logging.WithContext(r.Context()).Error("rendering listing failed", zap.Error(err))
	}
}

// generateBreadcrumbs links every ancestor of the listed directory.
func (h *BrowserHandler) generateBreadcrumbs(parts []string) []BreadcrumbItem {
	breadcrumbs := []BreadcrumbItem{{Name: "Hosts", URL: browsePrefix + "/"}}
	for i, part := range parts {
		breadcrumbs = append(breadcrumbs, BreadcrumbItem{
			Name: part,
			URL:  escapedPath(browsePrefix, parts[:i+1]...),
		})
	}
	return breadcrumbs
}
