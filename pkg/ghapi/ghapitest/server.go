// Package ghapitest provides an in-process fake of the GitHub endpoints the
// harvester uses: commit search, commit detail and raw file content.
package ghapitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// Endpoint names as recorded in Request.
const (
	EndpointSearch = "search"
	EndpointCommit = "commit"
	EndpointRaw    = "raw"
)

// RawPrefix is the path under which raw file content is served.
const RawPrefix = "/raw/"

// Hit is one search result.
type Hit struct {
	Repo string
	SHA  string
}

// File is one changed file of a commit. A nil Patch omits the field.
type File struct {
	Name   string
	Status string
	Patch  *string
}

// Commit is the detail served for one repository and SHA.
type Commit struct {
	Message string
	Parents []string
	Files   []File
}

// Response is a scripted answer that preempts the normal handler.
type Response struct {
	Status int
	Header http.Header
	Body   string
}

// RateLimited is the primary rate limit answer.
func RateLimited() Response {
	return Response{
		Status: http.StatusForbidden,
		Header: http.Header{"X-Ratelimit-Remaining": []string{"0"}},
		Body:   `{"message":"API rate limit exceeded"}`,
	}
}

// ServerError is a transient failure answer.
func ServerError() Response {
	return Response{Status: http.StatusBadGateway, Body: `{"message":"bad gateway"}`}
}

// Request records one request received by the server.
type Request struct {
	Endpoint      string
	Path          string
	Query         string
	Page          int
	Authorization string
}

// Server is a fake GitHub. Configure it before issuing requests; all methods
// are safe for concurrent use.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	pages    map[string]map[int][]Hit
	commits  map[string]Commit
	files    map[string]string
	scripted map[string][]Response
	requests []Request
}

// NewServer starts a fake GitHub server. Close it when done.
func NewServer() *Server {
	s := &Server{
		pages:    make(map[string]map[int][]Hit),
		commits:  make(map[string]Commit),
		files:    make(map[string]string),
		scripted: make(map[string][]Response),
	}

	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))

	return s
}

// APIURL is the REST base URL to configure on the client.
func (s *Server) APIURL() string {
	return s.URL + "/"
}

// RawURL is the raw content base URL to configure on the client.
func (s *Server) RawURL() string {
	return s.URL + RawPrefix
}

// AddPage registers the hits of one page for an exact query string.
func (s *Server) AddPage(query string, page int, hits ...Hit) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pages[query] == nil {
		s.pages[query] = make(map[int][]Hit)
	}

	s.pages[query][page] = hits
}

// AddCommit registers the detail of sha in repo.
func (s *Server) AddCommit(repo, sha string, c Commit) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.commits[repo+"@"+sha] = c
}

// AddFile registers the content of path at sha in repo.
func (s *Server) AddFile(repo, sha, path, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.files[repo+"/"+sha+"/"+path] = content
}

// Enqueue schedules responses for the next requests to endpoint, in order.
func (s *Server) Enqueue(endpoint string, responses ...Response) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scripted[endpoint] = append(s.scripted[endpoint], responses...)
}

// Requests returns a copy of the requests received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Request, len(s.requests))
	copy(out, s.requests)

	return out
}

// Count returns the number of requests received for endpoint.
func (s *Server) Count(endpoint string) int {
	n := 0

	for _, r := range s.Requests() {
		if r.Endpoint == endpoint {
			n++
		}
	}

	return n
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	endpoint := classify(r.URL.Path)
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))

	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Endpoint:      endpoint,
		Path:          r.URL.Path,
		Query:         r.URL.Query().Get("q"),
		Page:          page,
		Authorization: r.Header.Get("Authorization"),
	})

	var (
		scripted Response
		hasNext  bool
	)

	if queue := s.scripted[endpoint]; len(queue) > 0 {
		scripted, hasNext = queue[0], true
		s.scripted[endpoint] = queue[1:]
	}
	s.mu.Unlock()

	if hasNext {
		for k, v := range scripted.Header {
			w.Header()[k] = v
		}

		w.WriteHeader(scripted.Status)
		_, _ = w.Write([]byte(scripted.Body))

		return
	}

	switch endpoint {
	case EndpointSearch:
		s.serveSearch(w, r.URL.Query().Get("q"), page)
	case EndpointCommit:
		s.serveCommit(w, r.URL.Path)
	case EndpointRaw:
		s.serveRaw(w, strings.TrimPrefix(r.URL.Path, RawPrefix))
	default:
		http.NotFound(w, r)
	}
}

func classify(path string) string {
	switch {
	case path == "/search/commits":
		return EndpointSearch
	case strings.HasPrefix(path, "/repos/") && strings.Contains(path, "/commits/"):
		return EndpointCommit
	case strings.HasPrefix(path, RawPrefix):
		return EndpointRaw
	default:
		return ""
	}
}

type searchItem struct {
	SHA        string `json:"sha"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

type searchBody struct {
	TotalCount int          `json:"total_count"`
	Incomplete bool         `json:"incomplete_results"`
	Items      []searchItem `json:"items"`
}

func (s *Server) serveSearch(w http.ResponseWriter, query string, page int) {
	s.mu.Lock()
	pages := s.pages[query]
	hits := pages[page]

	total := 0
	for _, p := range pages {
		total += len(p)
	}
	s.mu.Unlock()

	body := searchBody{TotalCount: total, Items: make([]searchItem, 0, len(hits))}

	for _, h := range hits {
		item := searchItem{SHA: h.SHA}
		item.Repository.FullName = h.Repo
		body.Items = append(body.Items, item)
	}

	writeJSON(w, body)
}

type shaRef struct {
	SHA string `json:"sha"`
}

type fileBody struct {
	Filename string  `json:"filename"`
	Status   string  `json:"status,omitempty"`
	Patch    *string `json:"patch,omitempty"`
}

type commitBody struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string `json:"message"`
	} `json:"commit"`
	Parents []shaRef   `json:"parents"`
	Files   []fileBody `json:"files"`
}

func (s *Server) serveCommit(w http.ResponseWriter, path string) {
	// /repos/{owner}/{name}/commits/{sha}
	parts := strings.Split(strings.TrimPrefix(path, "/repos/"), "/")
	if len(parts) != 4 {
		writeNotFound(w)

		return
	}

	repo, sha := parts[0]+"/"+parts[1], parts[3]

	s.mu.Lock()
	c, ok := s.commits[repo+"@"+sha]
	s.mu.Unlock()

	if !ok {
		writeNotFound(w)

		return
	}

	body := commitBody{SHA: sha, Parents: make([]shaRef, 0, len(c.Parents)), Files: make([]fileBody, 0, len(c.Files))}
	body.Commit.Message = c.Message

	for _, p := range c.Parents {
		body.Parents = append(body.Parents, shaRef{SHA: p})
	}

	for _, f := range c.Files {
		status := f.Status
		if status == "" {
			status = "modified"
		}

		body.Files = append(body.Files, fileBody{Filename: f.Name, Status: status, Patch: f.Patch})
	}

	writeJSON(w, body)
}

func (s *Server) serveRaw(w http.ResponseWriter, key string) {
	s.mu.Lock()
	content, ok := s.files[key]
	s.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("404: Not Found"))

		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(content))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	_ = json.NewEncoder(w).Encode(v)
}

func writeNotFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte(`{"message":"Not Found"}`))
}

// Patch returns a pointer to p for use in File.
func Patch(p string) *string {
	return &p
}
