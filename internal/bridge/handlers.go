package bridge

import (
	"net/http"
	"strconv"

	"github.com/petervdpas/elypad/internal/editor"
	"github.com/petervdpas/elypad/internal/notify"
	"github.com/petervdpas/elypad/internal/search"
	"github.com/petervdpas/elypad/internal/shell"
)

type pathReq struct {
	Path string `json:"path"`
}

type idReq struct {
	ID string `json:"id"`
}

func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	a, ok := s.assets[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", a.contentType)
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(a.body)
}

// ── queries ─────────────────────────────────────────────────────────────────

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.reply(w, r, nil)
}

// page is one poll of an append-only stream. Pass Next as ?since= to get
// only what came after.
type page[T any] struct {
	Items []T    `json:"items"`
	Next  uint64 `json:"next"`
}

func sinceParam(r *http.Request) (uint64, error) {
	v := r.URL.Query().Get("since")
	if v == "" {
		return 0, nil
	}
	return strconv.ParseUint(v, 10, 64)
}

func (s *Server) handleNotices(w http.ResponseWriter, r *http.Request) {
	since, err := sinceParam(r)
	if err != nil {
		http.Error(w, "bad since", http.StatusBadRequest)
		return
	}
	items, next := s.shell.Notices().Since(since)
	if items == nil {
		items = []notify.Notice{}
	}
	writeJSON(w, page[notify.Notice]{Items: items, Next: next})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	since, err := sinceParam(r)
	if err != nil {
		http.Error(w, "bad since", http.StatusBadRequest)
		return
	}
	if s.logs == nil {
		writeJSON(w, page[notify.LogEntry]{Items: []notify.LogEntry{}})
		return
	}
	items, next := s.logs.Since(since)
	if items == nil {
		items = []notify.LogEntry{}
	}
	writeJSON(w, page[notify.LogEntry]{Items: items, Next: next})
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	diags, err := s.shell.Diagnostics(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	if diags == nil {
		writeJSON(w, []any{})
		return
	}
	writeJSON(w, diags)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	it, err := s.shell.Preview().Current()
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, it)
}

func (s *Server) handlePreviewRaw(w http.ResponseWriter, r *http.Request) {
	it, err := s.shell.Preview().Current()
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if it.HTML != "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(it.HTML))
		return
	}
	w.Header().Set("Content-Type", it.ContentType)
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(it.Data)
}

// ── documents ───────────────────────────────────────────────────────────────

func (s *Server) handleNew(w http.ResponseWriter, r *http.Request) {
	_, err := s.shell.NewDocument(r.Context())
	s.reply(w, r, err)
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	var in pathReq
	if decodeJSON(w, r, &in) != nil {
		return
	}
	if in.Path == "" {
		http.Error(w, "missing path", http.StatusBadRequest)
		return
	}
	s.reply(w, r, s.shell.OpenPath(r.Context(), in.Path))
}

func (s *Server) handleOpenDialog(w http.ResponseWriter, r *http.Request) {
	s.reply(w, r, s.shell.OpenFileDialog(r.Context()))
}

func (s *Server) handleOpenFolderDialog(w http.ResponseWriter, r *http.Request) {
	s.reply(w, r, s.shell.OpenFolderDialog(r.Context()))
}

func (s *Server) handleWorkspace(w http.ResponseWriter, r *http.Request) {
	var in pathReq
	if decodeJSON(w, r, &in) != nil {
		return
	}
	if in.Path == "" {
		http.Error(w, "missing path", http.StatusBadRequest)
		return
	}
	s.reply(w, r, s.shell.LoadWorkspace(r.Context(), in.Path))
}

func (s *Server) handleDrop(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Paths []string `json:"paths"`
	}
	if decodeJSON(w, r, &in) != nil {
		return
	}
	for _, p := range in.Paths {
		if err := s.shell.OpenDropped(r.Context(), p); err != nil {
			writeErr(w, err)
			return
		}
	}
	s.reply(w, r, nil)
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	var in idReq
	if decodeJSON(w, r, &in) != nil {
		return
	}
	s.reply(w, r, s.shell.Activate(r.Context(), in.ID))
}

// handleSave saves the given document, or the active one without an id.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	var in idReq
	if decodeJSON(w, r, &in) != nil {
		return
	}
	if in.ID == "" {
		s.reply(w, r, s.shell.SaveActive(r.Context()))
		return
	}
	s.reply(w, r, s.shell.Save(r.Context(), in.ID))
}

// handleSaveAs saves to an explicit path when one is given and asks the
// dialog capability otherwise.
func (s *Server) handleSaveAs(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ID   string `json:"id"`
		Path string `json:"path"`
	}
	if decodeJSON(w, r, &in) != nil {
		return
	}
	ctx := r.Context()
	if in.ID == "" {
		d, err := s.shell.Active(ctx)
		if err != nil {
			writeErr(w, err)
			return
		}
		in.ID = d.ID
	}
	if in.Path != "" {
		s.reply(w, r, s.shell.SaveTo(ctx, in.ID, in.Path))
		return
	}
	s.reply(w, r, s.shell.SaveAs(ctx, in.ID))
}

// handleClose closes a document. Save, when present, answers the
// save-before-close prompt for that document in advance.
func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ID   string `json:"id"`
		Save *bool  `json:"save"`
	}
	if decodeJSON(w, r, &in) != nil {
		return
	}
	ctx := r.Context()
	if in.ID == "" {
		d, err := s.shell.Active(ctx)
		if err != nil {
			writeErr(w, err)
			return
		}
		in.ID = d.ID
	}
	if in.Save != nil && s.dialogs != nil {
		st, err := s.shell.State(ctx)
		if err != nil {
			writeErr(w, err)
			return
		}
		for _, t := range st.Tabs {
			if t.ID == in.ID {
				s.dialogs.Answer(t.DisplayName, *in.Save)
			}
		}
	}
	s.reply(w, r, s.shell.Close(ctx, in.ID))
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	var in idReq
	if decodeJSON(w, r, &in) != nil {
		return
	}
	s.reply(w, r, s.shell.Reload(r.Context(), in.ID))
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	var in pathReq
	if decodeJSON(w, r, &in) != nil {
		return
	}
	s.reply(w, r, s.shell.ToggleExpand(r.Context(), in.Path))
}

// ── editor ──────────────────────────────────────────────────────────────────

// handleEdit replaces the text, or inserts at the selection when Insert
// is set.
func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Text   *string `json:"text"`
		Insert *string `json:"insert"`
	}
	if decodeJSON(w, r, &in) != nil {
		return
	}
	buf := s.shell.Editor()
	if !buf.Loaded() {
		writeErr(w, shell.ErrNoActive)
		return
	}
	switch {
	case in.Text != nil:
		buf.SetText(*in.Text)
	case in.Insert != nil:
		buf.Insert(*in.Insert)
	}
	s.reply(w, r, nil)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var in editor.Selection
	if decodeJSON(w, r, &in) != nil {
		return
	}
	s.shell.Editor().Select(in.Anchor, in.Cursor)
	writeJSON(w, s.shell.Editor().Status())
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	s.shell.Editor().Undo()
	s.reply(w, r, nil)
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	s.shell.Editor().Redo()
	s.reply(w, r, nil)
}

type findReq struct {
	Term        string         `json:"term"`
	Replacement string         `json:"replacement"`
	Options     search.Options `json:"options"`
	Backwards   bool           `json:"backwards"`
	All         bool           `json:"all"`
}

type findResp struct {
	Found     bool             `json:"found"`
	Match     search.Match     `json:"match"`
	Replaced  int              `json:"replaced"`
	Selection editor.Selection `json:"selection"`
}

func (s *Server) handleFind(w http.ResponseWriter, r *http.Request) {
	var in findReq
	if decodeJSON(w, r, &in) != nil {
		return
	}
	buf := s.shell.Editor()
	find := buf.FindNext
	if in.Backwards {
		find = buf.FindPrevious
	}
	m, ok, err := find(in.Term, in.Options)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, findResp{Found: ok, Match: m, Selection: buf.Selection()})
}

func (s *Server) handleReplace(w http.ResponseWriter, r *http.Request) {
	var in findReq
	if decodeJSON(w, r, &in) != nil {
		return
	}
	buf := s.shell.Editor()
	var out findResp
	if in.All {
		n, err := buf.ReplaceAll(in.Term, in.Replacement, in.Options)
		if err != nil {
			writeErr(w, err)
			return
		}
		out.Replaced = n
	} else {
		ok, err := buf.Replace(in.Term, in.Replacement, in.Options)
		if err != nil {
			writeErr(w, err)
			return
		}
		if ok {
			out.Replaced = 1
		}
	}
	out.Selection = buf.Selection()
	out.Found = out.Selection.Anchor != out.Selection.Cursor
	writeJSON(w, out)
}

func (s *Server) handlePreviewActive(w http.ResponseWriter, r *http.Request) {
	if err := s.shell.PreviewActive(r.Context()); err != nil {
		writeErr(w, err)
		return
	}
	s.handlePreview(w, r)
}
