package jobsvc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/orgs/ITSCM_DEV/evaluation_jobs/j-1", r.URL.Path)
		io.WriteString(w, `{"job_id":"j-1","org":"ITSCM_DEV","job_name":"plan","repo_name":"repo",
			"checklist_file_path":"ehb.yaml","sandbox_name":"sg","document_url":"test.docx","status":"new"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/api/v1/", 0)
	job, err := c.GetJob(context.Background(), "ITSCM_DEV", "j-1")
	require.NoError(t, err)
	assert.Equal(t, &Job{
		JobID: "j-1", Org: "ITSCM_DEV", JobName: "plan", RepoName: "repo",
		ChecklistFilePath: "ehb.yaml", SandboxName: "sg", DocumentURL: "test.docx", Status: "new",
	}, job)
}

func TestGetJob_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such job", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, 0).GetJob(context.Background(), "o", "missing")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Contains(t, se.Body, "no such job")
}

func TestUpdateStatusAndPostFindings(t *testing.T) {
	type call struct {
		method, path string
		body         any
	}
	var calls []call
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		calls = append(calls, call{r.Method, r.URL.Path, body})
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0)
	require.NoError(t, c.UpdateStatus(context.Background(), "o", "j", "plan", StatusProcessing))
	findings := []map[string]any{{"section_name": "contacts", "score": 8}}
	require.NoError(t, c.PostFindings(context.Background(), "o", "j", findings))

	require.Len(t, calls, 2)
	assert.Equal(t, http.MethodPut, calls[0].method)
	assert.Equal(t, "/orgs/o/evaluation_jobs/j", calls[0].path)
	assert.Equal(t, map[string]any{"job_name": "plan", "status": "processing"}, calls[0].body)

	assert.Equal(t, http.MethodPost, calls[1].method)
	assert.Equal(t, "/orgs/o/evaluation_jobs/j/findings", calls[1].path)
	assert.Equal(t, []any{map[string]any{"section_name": "contacts", "score": float64(8)}}, calls[1].body)
}

func TestUpdateStatus_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, 0).UpdateStatus(context.Background(), "o", "j", "n", StatusCompleted)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
}

func TestDownloads(t *testing.T) {
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Path+"?"+r.URL.RawQuery)
		switch r.URL.Path {
		case "/orgs/o/repos/repo/checklist":
			io.WriteString(w, "sections: []\n")
		case "/orgs/o/sandboxes/sg/files/download":
			io.WriteString(w, "docx-bytes")
		case "/files/direct/report.pdf":
			io.WriteString(w, "pdf-bytes")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0)
	dir := t.TempDir()
	job := &Job{Org: "o", RepoName: "repo", ChecklistFilePath: "dir/ehb v1.yaml", SandboxName: "sg", DocumentURL: "test.docx"}

	checklist, err := c.DownloadChecklist(context.Background(), job, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ehb v1.yaml"), checklist)
	data, _ := os.ReadFile(checklist)
	assert.Equal(t, "sections: []\n", string(data))

	doc, err := c.DownloadDocument(context.Background(), job, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "test.docx"), doc)
	data, _ = os.ReadFile(doc)
	assert.Equal(t, "docx-bytes", string(data))

	job.DocumentURL = srv.URL + "/files/direct/report.pdf"
	doc, err = c.DownloadDocument(context.Background(), job, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "report.pdf"), doc)

	job.DocumentURL = srv.URL + "/orgs/o/sandboxes/sg/files/download?filename=test.docx"
	doc, err = c.DownloadDocument(context.Background(), job, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "test.docx", filepath.Base(doc))

	assert.Equal(t, []string{
		"/orgs/o/repos/repo/checklist?filename=dir%2Fehb+v1.yaml",
		"/orgs/o/sandboxes/sg/files/download?filename=test.docx",
		"/files/direct/report.pdf?",
		"/orgs/o/sandboxes/sg/files/download?filename=test.docx",
	}, queries)

	job.DocumentURL = "missing.docx"
	job.SandboxName = "other"
	_, err = c.DownloadDocument(context.Background(), job, dir)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
}

func TestDocumentName(t *testing.T) {
	assert.Equal(t, "test.docx", documentName("test.docx"))
	assert.Equal(t, "a/b.pdf", documentName("a/b.pdf"))
	assert.Equal(t, "/files/r.pdf", documentName("https://h/files/r.pdf"))
	assert.Equal(t, "plan v2.docx", documentName("https://h/x/files/download?filename=plan+v2.docx"))
	assert.Equal(t, "dir/p.pdf", documentName("http://h/download?filename=dir%2Fp.pdf"))
}

func TestLocalName(t *testing.T) {
	assert.Equal(t, "a.yaml", LocalName("x/y/a.yaml", "f"))
	assert.Equal(t, "a.docx", LocalName(`C:\docs\a.docx`, "f"))
	assert.Equal(t, "f", LocalName("", "f"))
	assert.Equal(t, "f", LocalName("../", "f"))
}

func TestStatusErrorTruncatesBody(t *testing.T) {
	err := &StatusError{Op: "get job", StatusCode: 500, Body: strings.Repeat("ö", 300)}
	msg := err.Error()
	assert.True(t, strings.HasSuffix(msg, "..."))
	assert.LessOrEqual(t, len(msg), len("get job: status 500: ")+200+3)
	assert.True(t, utf8.ValidString(msg))
}
