package jobsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgallion1/docassess/internal/textutil"
)

// Remote job statuses written by the pipeline.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
)

// Job is an evaluation job as stored by the job service.
type Job struct {
	JobID             string `json:"job_id"`
	Org               string `json:"org"`
	JobName           string `json:"job_name"`
	RepoName          string `json:"repo_name"`
	ChecklistFilePath string `json:"checklist_file_path"`
	SandboxName       string `json:"sandbox_name"`
	DocumentURL       string `json:"document_url"`
	Status            string `json:"status"`
}

// Client communicates with the job service HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) jobURL(org, jobID string) string {
	return c.baseURL + "/orgs/" + url.PathEscape(org) + "/evaluation_jobs/" + url.PathEscape(jobID)
}

// GetJob fetches job metadata.
func (c *Client) GetJob(ctx context.Context, org, jobID string) (*Job, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.jobURL(org, jobID), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, "get job "+jobID); err != nil {
		return nil, err
	}

	var job Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}

// UpdateStatus sets the job's status. The job name is sent along because the
// service requires it on every PUT.
func (c *Client) UpdateStatus(ctx context.Context, org, jobID, jobName, status string) error {
	body, err := json.Marshal(struct {
		JobName string `json:"job_name"`
		Status  string `json:"status"`
	}{jobName, status})
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	return c.send(ctx, http.MethodPut, c.jobURL(org, jobID), body, "update job "+jobID)
}

// PostFindings reports the evaluation results as a JSON array.
func (c *Client) PostFindings(ctx context.Context, org, jobID string, findings any) error {
	body, err := json.Marshal(findings)
	if err != nil {
		return fmt.Errorf("marshal findings: %w", err)
	}
	return c.send(ctx, http.MethodPost, c.jobURL(org, jobID)+"/findings", body, "post findings "+jobID)
}

func (c *Client) send(ctx context.Context, method, u string, body []byte, op string) error {
	httpReq, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, op); err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// ChecklistURL is the download location of a repository checklist.
func (c *Client) ChecklistURL(org, repo, filename string) string {
	return c.baseURL + "/orgs/" + url.PathEscape(org) + "/repos/" + url.PathEscape(repo) +
		"/checklist?filename=" + url.QueryEscape(filename)
}

// SandboxFileURL is the download location of a file in a sandbox.
func (c *Client) SandboxFileURL(org, sandbox, filename string) string {
	return c.baseURL + "/orgs/" + url.PathEscape(org) + "/sandboxes/" + url.PathEscape(sandbox) +
		"/files/download?filename=" + url.QueryEscape(filename)
}

// DocumentURL resolves a job's document reference. An absolute http(s) URL
// is used as is; anything else names a file in the job's sandbox.
func (c *Client) DocumentURL(job *Job) string {
	if u, err := url.Parse(job.DocumentURL); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return job.DocumentURL
	}
	return c.SandboxFileURL(job.Org, job.SandboxName, job.DocumentURL)
}

// DownloadChecklist saves the job's checklist into dir and returns its path.
func (c *Client) DownloadChecklist(ctx context.Context, job *Job, dir string) (string, error) {
	dst := filepath.Join(dir, LocalName(job.ChecklistFilePath, "checklist.yaml"))
	if err := c.Download(ctx, c.ChecklistURL(job.Org, job.RepoName, job.ChecklistFilePath), dst); err != nil {
		return "", err
	}
	return dst, nil
}

// DownloadDocument saves the job's document into dir and returns its path.
func (c *Client) DownloadDocument(ctx context.Context, job *Job, dir string) (string, error) {
	dst := filepath.Join(dir, LocalName(documentName(job.DocumentURL), "document"))
	if err := c.Download(ctx, c.DocumentURL(job), dst); err != nil {
		return "", err
	}
	return dst, nil
}

// documentName picks the file name for a document reference. For URLs the
// filename query parameter wins over the last path segment, since sandbox
// download links all end in /download.
func documentName(ref string) string {
	u, err := url.Parse(ref)
	if err != nil || u.Host == "" {
		return ref
	}
	if name := u.Query().Get("filename"); name != "" {
		return name
	}
	return u.Path
}

// Download fetches u into the file at dst.
func (c *Client) Download(ctx context.Context, u, dst string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, "download "+u); err != nil {
		return err
	}

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return f.Close()
}

// LocalName reduces a remote path to a safe base file name.
func LocalName(remote, fallback string) string {
	name := path.Base(strings.ReplaceAll(remote, `\`, "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		return fallback
	}
	return name
}

func checkStatus(resp *http.Response, op string) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
}

// StatusError is a non-2xx answer from the job service.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, textutil.Truncate(e.Body, 200))
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
