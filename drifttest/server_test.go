package drifttest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/tidwall/gjson"
)

func do(t *testing.T, method, url string, header map[string]string, body string) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatal(err)
	}
	for name, value := range header {
		req.Header.Set(name, value)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, raw
}

func TestResourceRoundTrip(t *testing.T) {
	s := New()
	defer s.Close()
	base := s.URL() + "/v1"

	// Create the hierarchy.
	resp, _ := do(t, http.MethodPut, base+"/buckets/blog", nil, `{"data":{}}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodPut, base+"/buckets/blog/collections/articles", nil, `{"data":{}}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	// Create a record and check the stamped fields.
	resp, body := do(t, http.MethodPut, base+"/buckets/blog/collections/articles/records/a1", nil, `{"data":{"title":"one"}}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, body)
	}
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatal("expected an ETag")
	}
	if id := gjson.GetBytes(body, "data.id").String(); id != "a1" {
		t.Errorf("expected stamped id a1, got %q", id)
	}
	if !gjson.GetBytes(body, "data.last_modified").Exists() {
		t.Error("expected a stamped last_modified")
	}

	// Conditional read: matching token yields 304.
	resp, _ = do(t, http.MethodGet, base+"/buckets/blog/collections/articles/records/a1",
		map[string]string{"If-None-Match": etag}, "")
	if resp.StatusCode != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", resp.StatusCode)
	}

	// Stale If-Match yields 412 with the current state attached.
	resp, body = do(t, http.MethodPut, base+"/buckets/blog/collections/articles/records/a1",
		map[string]string{"If-Match": `"1"`}, `{"data":{"title":"two"}}`)
	if resp.StatusCode != http.StatusPreconditionFailed {
		t.Fatalf("expected 412, got %d", resp.StatusCode)
	}
	if resp.Header.Get("ETag") != etag {
		t.Errorf("conflict should report the current token %s, got %s", etag, resp.Header.Get("ETag"))
	}
	if title := gjson.GetBytes(body, "details.existing.title").String(); title != "one" {
		t.Errorf("conflict should attach the existing state, got %q", title)
	}

	// Create-only condition fails on the existing record.
	resp, _ = do(t, http.MethodPut, base+"/buckets/blog/collections/articles/records/a1",
		map[string]string{"If-None-Match": "*"}, `{"data":{"title":"dup"}}`)
	if resp.StatusCode != http.StatusPreconditionFailed {
		t.Fatalf("expected 412, got %d", resp.StatusCode)
	}

	// Patch merges instead of replacing.
	resp, _ = do(t, http.MethodPatch, base+"/buckets/blog/collections/articles/records/a1", nil, `{"data":{"views":7}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	_, body = do(t, http.MethodGet, base+"/buckets/blog/collections/articles/records/a1", nil, "")
	if gjson.GetBytes(body, "data.title").String() != "one" {
		t.Error("patch should keep untouched fields")
	}
	if gjson.GetBytes(body, "data.views").Int() != 7 {
		t.Error("patch should apply the given fields")
	}

	// Delete, then 404.
	resp, _ = do(t, http.MethodDelete, base+"/buckets/blog/collections/articles/records/a1", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodGet, base+"/buckets/blog/collections/articles/records/a1", nil, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestMissingParent(t *testing.T) {
	s := New()
	defer s.Close()

	resp, _ := do(t, http.MethodPut, s.URL()+"/v1/buckets/nope/collections/c/records/r", nil, `{"data":{}}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for a missing parent, got %d", resp.StatusCode)
	}
}

func TestIDMismatch(t *testing.T) {
	s := New()
	defer s.Close()

	do(t, http.MethodPut, s.URL()+"/v1/buckets/blog", nil, `{"data":{}}`)
	resp, _ := do(t, http.MethodPut, s.URL()+"/v1/buckets/blog/collections/articles", nil, `{"data":{"id":"other"}}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for an id mismatch, got %d", resp.StatusCode)
	}
}

func TestListingPages(t *testing.T) {
	s := New()
	defer s.Close()
	base := s.URL() + "/v1"

	do(t, http.MethodPut, base+"/buckets/blog", nil, `{"data":{}}`)
	do(t, http.MethodPut, base+"/buckets/blog/collections/articles", nil, `{"data":{}}`)
	for i := 0; i < 5; i++ {
		do(t, http.MethodPut, fmt.Sprintf("%s/buckets/blog/collections/articles/records/a%d", base, i), nil,
			fmt.Sprintf(`{"data":{"n":%d}}`, i))
	}

	resp, body := do(t, http.MethodGet, base+"/buckets/blog/collections/articles/records?_limit=2&_sort=n", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if total := resp.Header.Get("Total-Records"); total != "5" {
		t.Errorf("expected Total-Records 5, got %s", total)
	}
	if n := len(gjson.GetBytes(body, "data").Array()); n != 2 {
		t.Fatalf("expected 2 records on the page, got %d", n)
	}

	// Follow the cursor to the end.
	pages := 1
	seen := len(gjson.GetBytes(body, "data").Array())
	next := resp.Header.Get("Next-Page")
	for next != "" {
		resp, body = do(t, http.MethodGet, next, nil, "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200 on page %d, got %d", pages+1, resp.StatusCode)
		}
		pages++
		seen += len(gjson.GetBytes(body, "data").Array())
		next = resp.Header.Get("Next-Page")
	}
	if pages != 3 || seen != 5 {
		t.Errorf("expected 5 records over 3 pages, got %d over %d", seen, pages)
	}
}

func TestBatchDispatch(t *testing.T) {
	s := New()
	defer s.Close()
	base := s.URL() + "/v1"

	do(t, http.MethodPut, base+"/buckets/blog", nil, `{"data":{}}`)
	do(t, http.MethodPut, base+"/buckets/blog/collections/articles", nil, `{"data":{}}`)

	envelope := `{"requests":[
		{"method":"PUT","path":"/buckets/blog/collections/articles/records/a1","body":{"data":{"title":"one"}}},
		{"method":"GET","path":"/buckets/blog/collections/articles/records/a1"},
		{"method":"GET","path":"/buckets/blog/collections/articles/records/missing"}
	]}`
	resp, body := do(t, http.MethodPost, base+"/batch", nil, envelope)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var parsed struct {
		Responses []struct {
			Status int `json:"status"`
		} `json:"responses"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatal(err)
	}
	if len(parsed.Responses) != 3 {
		t.Fatalf("expected 3 responses, got %d", len(parsed.Responses))
	}
	want := []int{http.StatusCreated, http.StatusOK, http.StatusNotFound}
	for i, w := range want {
		if parsed.Responses[i].Status != w {
			t.Errorf("sub-request %d: expected %d, got %d", i, w, parsed.Responses[i].Status)
		}
	}
}

func TestBatchLimit(t *testing.T) {
	s := New()
	defer s.Close()
	s.SetBatchMax(1)

	envelope := `{"requests":[{"method":"GET","path":"/"},{"method":"GET","path":"/"}]}`
	resp, _ := do(t, http.MethodPost, s.URL()+"/v1/batch", nil, envelope)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestHello(t *testing.T) {
	s := New()
	defer s.Close()

	resp, body := do(t, http.MethodGet, s.URL()+"/v1/", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if v := gjson.GetBytes(body, "protocol_version").String(); v != ProtocolVersion {
		t.Errorf("expected protocol version %s, got %s", ProtocolVersion, v)
	}
	if !gjson.GetBytes(body, "capabilities.batch").Exists() {
		t.Error("expected the batch capability to be advertised")
	}
}
