package drifttest

import (
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/driftbase/driftbase/protocol"
	"github.com/driftbase/driftbase/query"
	"github.com/driftbase/driftbase/record"
)

func (s *Server) handleHello(w http.ResponseWriter, r *http.Request) {
	body, err := json.Marshal(s.Info())
	if err != nil {
		writeError(w, s.profile, http.StatusInternalServerError, "failed to encode hello")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func (s *Server) handleResource(w http.ResponseWriter, r *http.Request) {
	segs := segments(mux.Vars(r))
	switch r.Method {
	case http.MethodGet:
		s.handleGet(w, r, segs)
	case http.MethodPut:
		s.handlePut(w, r, segs)
	case http.MethodPatch:
		s.handlePatch(w, r, segs)
	case http.MethodDelete:
		s.handleDelete(w, r, segs)
	default:
		writeError(w, s.profile, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, segs []string) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	_, _, n := s.locate(segs)
	if n == nil {
		writeError(w, s.profile, s.profile.StatusMissing, "resource not found")
		return
	}

	if inm := r.Header.Get(s.profile.NoneMatchHeader); inm != "" && inm != protocol.NoneMatchAny {
		if ts, ok := parseVersion(inm); ok && ts == n.modified {
			w.Header().Set(s.profile.VersionHeader, etag(n.modified))
			w.WriteHeader(s.profile.StatusNotModified)
			return
		}
	}
	s.writeResource(w, http.StatusOK, n)
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request, segs []string) {
	if s.isReadonly() {
		writeError(w, s.profile, http.StatusMethodNotAllowed, "server is in readonly mode")
		return
	}
	data, perms, ok := s.readBody(w, r)
	if !ok {
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	parent, id, n := s.locate(segs)
	if parent == nil {
		writeError(w, s.profile, s.profile.StatusMissing, "parent container not found")
		return
	}
	if docID := gjson.GetBytes(data, "id"); docID.Exists() && docID.String() != id {
		writeError(w, s.profile, s.profile.StatusInvalid, "document id does not match the resource path")
		return
	}
	if !s.checkPreconditions(r, n) {
		s.writeConflict(w, n)
		return
	}

	ts := s.tick()
	doc, err := injectMeta(data, id, ts)
	if err != nil {
		writeError(w, s.profile, s.profile.StatusInvalid, "invalid document")
		return
	}

	status := http.StatusOK
	if n == nil {
		status = http.StatusCreated
		n = newNode()
		parent.children[id] = n
	}
	n.data = doc
	n.modified = ts
	if perms != nil {
		n.perms = perms
	}
	parent.childMod = ts
	s.writeResource(w, status, n)
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request, segs []string) {
	if s.isReadonly() {
		writeError(w, s.profile, http.StatusMethodNotAllowed, "server is in readonly mode")
		return
	}
	data, perms, ok := s.readBody(w, r)
	if !ok {
		return
	}
	var patch map[string]json.RawMessage
	if err := json.Unmarshal(data, &patch); err != nil {
		writeError(w, s.profile, s.profile.StatusInvalid, "invalid patch document")
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	parent, _, n := s.locate(segs)
	if n == nil {
		writeError(w, s.profile, s.profile.StatusMissing, "resource not found")
		return
	}
	if !s.checkPreconditions(r, n) {
		s.writeConflict(w, n)
		return
	}

	doc := n.data
	var err error
	for key, value := range patch {
		if key == "id" || key == "last_modified" {
			continue
		}
		doc, err = sjson.SetRawBytes(doc, key, value)
		if err != nil {
			writeError(w, s.profile, s.profile.StatusInvalid, "invalid patch document")
			return
		}
	}

	ts := s.tick()
	doc, err = sjson.SetBytes(doc, "last_modified", ts)
	if err != nil {
		writeError(w, s.profile, http.StatusInternalServerError, "failed to update document")
		return
	}
	n.data = doc
	n.modified = ts
	if perms != nil {
		n.perms = perms
	}
	parent.childMod = ts
	s.writeResource(w, http.StatusOK, n)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, segs []string) {
	if s.isReadonly() {
		writeError(w, s.profile, http.StatusMethodNotAllowed, "server is in readonly mode")
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	parent, id, n := s.locate(segs)
	if n == nil {
		writeError(w, s.profile, s.profile.StatusMissing, "resource not found")
		return
	}
	if !s.checkPreconditions(r, n) {
		s.writeConflict(w, n)
		return
	}

	ts := s.tick()
	delete(parent.children, id)
	parent.childMod = ts

	tombstone, err := json.Marshal(map[string]interface{}{
		"id":            id,
		"deleted":       true,
		"last_modified": ts,
	})
	if err != nil {
		writeError(w, s.profile, http.StatusInternalServerError, "failed to encode tombstone")
		return
	}
	envelope := map[string]json.RawMessage{s.profile.DataKey: tombstone}
	body, err := json.Marshal(envelope)
	if err != nil {
		writeError(w, s.profile, http.StatusInternalServerError, "failed to encode response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(s.profile.VersionHeader, etag(ts))
	_, _ = w.Write(body)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	container := s.lookup(segments(mux.Vars(r)))
	if container == nil {
		writeError(w, s.profile, s.profile.StatusMissing, "container not found")
		return
	}

	q, err := query.ParseValues(r.URL.Query())
	if err != nil {
		writeError(w, s.profile, s.profile.StatusInvalid, err.Error())
		return
	}
	since := int64(-1)
	if q.SinceToken() != "" {
		ts, ok := parseVersion(q.SinceToken())
		if !ok {
			writeError(w, s.profile, s.profile.StatusInvalid, "invalid _since token")
			return
		}
		since = ts
	}
	offset := 0
	if tok := r.URL.Query().Get(query.ParamToken); tok != "" {
		offset, err = strconv.Atoi(tok)
		if err != nil || offset < 0 {
			writeError(w, s.profile, s.profile.StatusInvalid, "invalid pagination token")
			return
		}
	}

	matched := make([]*node, 0, len(container.children))
	for _, child := range container.children {
		if since >= 0 && child.modified <= since {
			continue
		}
		if len(q.Conditions()) > 0 && !matchesQuery(q, child) {
			continue
		}
		matched = append(matched, child)
	}
	sortNodes(matched, q.SortFields())

	total := len(matched)
	if offset > total {
		offset = total
	}
	end := total
	next := ""
	if limit := q.PageLimit(); limit > 0 && offset+limit < total {
		end = offset + limit
		next = s.nextPageURL(r, end)
	}

	fields := q.FieldSelection()
	docs := make([]json.RawMessage, 0, end-offset)
	for _, n := range matched[offset:end] {
		docs = append(docs, projectDoc(n.data, fields))
	}
	s.writeListing(w, container.childMod, total, next, docs)
}

func (s *Server) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	if s.isReadonly() {
		writeError(w, s.profile, http.StatusMethodNotAllowed, "server is in readonly mode")
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	container := s.lookup(segments(mux.Vars(r)))
	if container == nil {
		writeError(w, s.profile, s.profile.StatusMissing, "container not found")
		return
	}
	if im := r.Header.Get(s.profile.MatchHeader); im != "" {
		ts, ok := parseVersion(im)
		if !ok || ts != container.childMod {
			w.Header().Set(s.profile.VersionHeader, etag(container.childMod))
			writeError(w, s.profile, s.profile.StatusConflict, "listing was modified meanwhile")
			return
		}
	}

	ts := s.tick()
	ids := maps.Keys(container.children)
	slices.Sort(ids)

	docs := make([]json.RawMessage, 0, len(ids))
	for _, id := range ids {
		tombstone, err := json.Marshal(map[string]interface{}{
			"id":            id,
			"deleted":       true,
			"last_modified": ts,
		})
		if err != nil {
			continue
		}
		docs = append(docs, tombstone)
	}
	container.children = make(map[string]*node)
	container.childMod = ts
	s.writeListing(w, ts, -1, "", docs)
}

// readBody reads and unpacks a request body envelope. A missing or empty
// body counts as an empty document.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, record.Permissions, bool) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, s.profile, s.profile.StatusInvalid, "failed to read body")
		return nil, nil, false
	}
	if len(raw) == 0 {
		return []byte(`{}`), nil, true
	}

	data, perms, err := s.profile.DecodeBody(raw)
	if err != nil {
		writeError(w, s.profile, s.profile.StatusInvalid, "invalid body envelope")
		return nil, nil, false
	}
	if len(data) == 0 || string(data) == "null" {
		data = []byte(`{}`)
	}
	return data, perms, true
}

// checkPreconditions evaluates the version conditions of a write against the
// resource's current state. It returns false when a condition fails.
func (s *Server) checkPreconditions(r *http.Request, n *node) bool {
	if im := r.Header.Get(s.profile.MatchHeader); im != "" {
		ts, ok := parseVersion(im)
		if !ok || n == nil || n.modified != ts {
			return false
		}
	}
	if inm := r.Header.Get(s.profile.NoneMatchHeader); inm == protocol.NoneMatchAny && n != nil {
		return false
	}
	return true
}

func (s *Server) writeConflict(w http.ResponseWriter, existing *node) {
	eb := &protocol.ErrorBody{
		Code:    s.profile.StatusConflict,
		Errno:   114,
		Reason:  "Precondition Failed",
		Message: "resource was modified meanwhile",
	}
	if existing != nil {
		w.Header().Set(s.profile.VersionHeader, etag(existing.modified))
		eb.Details.Existing = json.RawMessage(existing.data)
	}
	body, err := json.Marshal(eb)
	if err != nil {
		writeError(w, s.profile, http.StatusInternalServerError, "failed to encode conflict")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(s.profile.StatusConflict)
	_, _ = w.Write(body)
}

func (s *Server) writeResource(w http.ResponseWriter, status int, n *node) {
	envelope := map[string]json.RawMessage{s.profile.DataKey: n.data}
	if n.perms != nil {
		pb, err := json.Marshal(n.perms)
		if err == nil {
			envelope[s.profile.PermissionsKey] = pb
		}
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		writeError(w, s.profile, http.StatusInternalServerError, "failed to encode response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(s.profile.VersionHeader, etag(n.modified))
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (s *Server) writeListing(w http.ResponseWriter, ts int64, total int, next string, docs []json.RawMessage) {
	envelope := map[string][]json.RawMessage{s.profile.DataKey: docs}
	body, err := json.Marshal(envelope)
	if err != nil {
		writeError(w, s.profile, http.StatusInternalServerError, "failed to encode listing")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(s.profile.VersionHeader, etag(ts))
	if total >= 0 {
		w.Header().Set(s.profile.TotalHeader, strconv.Itoa(total))
	}
	if next != "" {
		w.Header().Set(s.profile.NextPageHeader, next)
	}
	_, _ = w.Write(body)
}

func (s *Server) nextPageURL(r *http.Request, offset int) string {
	values := r.URL.Query()
	values.Set(query.ParamToken, strconv.Itoa(offset))
	return s.srv.URL + r.URL.Path + "?" + values.Encode()
}

func writeError(w http.ResponseWriter, p protocol.Profile, status int, message string) {
	body, err := json.Marshal(&protocol.ErrorBody{
		Code:    status,
		Errno:   status,
		Reason:  http.StatusText(status),
		Message: message,
	})
	if err != nil {
		http.Error(w, message, status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// injectMeta stamps the id and version timestamp into a document.
func injectMeta(data []byte, id string, ts int64) ([]byte, error) {
	doc, err := sjson.SetBytes(data, "id", id)
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(doc, "last_modified", ts)
}

func matchesQuery(q *query.Query, n *node) bool {
	var data map[string]interface{}
	if err := json.Unmarshal(n.data, &data); err != nil {
		return false
	}
	acc, err := record.New(data).Accessor()
	if err != nil {
		return false
	}
	return q.Matches(acc)
}

func sortNodes(nodes []*node, fields []string) {
	if len(fields) == 0 {
		fields = []string{"-last_modified"}
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		for _, field := range fields {
			desc := strings.HasPrefix(field, "-")
			name := strings.TrimPrefix(field, "-")
			c := compareField(nodes[i].data, nodes[j].data, name)
			if c == 0 {
				continue
			}
			if desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func compareField(a, b []byte, field string) int {
	av := gjson.GetBytes(a, field)
	bv := gjson.GetBytes(b, field)
	if av.Type == gjson.Number && bv.Type == gjson.Number {
		switch {
		case av.Num < bv.Num:
			return -1
		case av.Num > bv.Num:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(av.String(), bv.String())
}

// projectDoc reduces a document to the selected fields. The id and version
// timestamp are always kept.
func projectDoc(data []byte, fields []string) json.RawMessage {
	if len(fields) == 0 {
		return json.RawMessage(data)
	}

	out := []byte(`{}`)
	var err error
	for _, field := range append([]string{"id", "last_modified"}, fields...) {
		v := gjson.GetBytes(data, field)
		if !v.Exists() {
			continue
		}
		out, err = sjson.SetRawBytes(out, field, []byte(v.Raw))
		if err != nil {
			return json.RawMessage(data)
		}
	}
	return json.RawMessage(out)
}
