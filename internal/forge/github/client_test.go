package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shurcooL/githubv4"

	"github.com/msuozzo/jj-ryu/internal/forge"
)

// githubv4TestClient points a githubv4 client at the test server's /api/graphql
// route, reusing its default http.Client since the fake handlers don't check
// authorization.
func githubv4TestClient(server *httptest.Server) *githubv4.Client {
	return githubv4.NewEnterpriseClient(server.URL+"/api/graphql", server.Client())
}

// newTestClient builds a Client whose REST and GraphQL traffic both land on
// server, using the Enterprise URL hooks New already exposes for self-hosted
// hosts (mirroring the WithEnterpriseURLs-with-test-server trick the rest of
// the ecosystem uses to mock go-github).
func newTestClient(t *testing.T, server *httptest.Server, cfg forge.Config) *Client {
	t.Helper()
	ctx := context.Background()
	c, err := New(ctx, "test-token", cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rest, err := c.rest.WithEnterpriseURLs(server.URL, server.URL)
	if err != nil {
		t.Fatalf("WithEnterpriseURLs: %v", err)
	}
	c.rest = rest
	c.graphQL = githubv4TestClient(server)
	return c
}

func TestFindExistingPR_picksLowestNumber(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v3/repos/acme/widgets/pulls", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("head"); got != "acme:feature/foo" {
			t.Errorf("unexpected head filter: %q", got)
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"number": 12, "html_url": "https://github.invalid/acme/widgets/pull/12", "title": "foo", "draft": false,
				"head": map[string]any{"ref": "feature/foo"}, "base": map[string]any{"ref": "main"}},
			{"number": 7, "html_url": "https://github.invalid/acme/widgets/pull/7", "title": "foo (dup)", "draft": false,
				"head": map[string]any{"ref": "feature/foo"}, "base": map[string]any{"ref": "main"}},
		})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := forge.Config{Platform: "github", Owner: "acme", Repo: "widgets", Host: server.Listener.Addr().String()}
	client := newTestClient(t, server, cfg)

	pr, err := client.FindExistingPR(context.Background(), "feature/foo")
	if err != nil {
		t.Fatalf("FindExistingPR: %v", err)
	}
	if pr == nil || pr.Number != 7 {
		t.Fatalf("expected PR #7 (lowest number), got %+v", pr)
	}
}

func TestFindExistingPR_none(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v3/repos/acme/widgets/pulls", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := forge.Config{Platform: "github", Owner: "acme", Repo: "widgets", Host: server.Listener.Addr().String()}
	client := newTestClient(t, server, cfg)

	pr, err := client.FindExistingPR(context.Background(), "feature/missing")
	if err != nil {
		t.Fatalf("FindExistingPR: %v", err)
	}
	if pr != nil {
		t.Fatalf("expected no PR, got %+v", pr)
	}
}

func TestCreatePRWithOptions(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v3/repos/acme/widgets/pulls", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		_ = json.Unmarshal(body, &req)
		if req["draft"] != true {
			t.Errorf("expected draft=true, got %v", req["draft"])
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"number": 42, "html_url": "https://github.invalid/acme/widgets/pull/42",
			"title": req["title"], "draft": true,
			"head": map[string]any{"ref": req["head"]}, "base": map[string]any{"ref": req["base"]},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := forge.Config{Platform: "github", Owner: "acme", Repo: "widgets", Host: server.Listener.Addr().String()}
	client := newTestClient(t, server, cfg)

	pr, err := client.CreatePRWithOptions(context.Background(), forge.CreateOptions{
		Head: "feature/foo", Base: "main", Title: "Add foo", Draft: true,
	})
	if err != nil {
		t.Fatalf("CreatePRWithOptions: %v", err)
	}
	if pr.Number != 42 || !pr.IsDraft {
		t.Fatalf("unexpected PR: %+v", pr)
	}
}

func TestUpdatePRBase(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PATCH /api/v3/repos/acme/widgets/pulls/9", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		_ = json.Unmarshal(body, &req)
		base, _ := req["base"].(map[string]any)
		if base["ref"] != "develop" {
			t.Errorf("unexpected base: %v", req["base"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"number": 9, "base": map[string]any{"ref": "develop"}, "head": map[string]any{"ref": "feature/bar"},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := forge.Config{Platform: "github", Owner: "acme", Repo: "widgets", Host: server.Listener.Addr().String()}
	client := newTestClient(t, server, cfg)

	pr, err := client.UpdatePRBase(context.Background(), 9, "develop")
	if err != nil {
		t.Fatalf("UpdatePRBase: %v", err)
	}
	if pr.BaseRef != "develop" {
		t.Fatalf("expected base develop, got %q", pr.BaseRef)
	}
}

func TestPublishPR(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v3/repos/acme/widgets/pulls/3", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"number": 3, "node_id": "PR_kwDOabc123"})
	})
	mux.HandleFunc("POST /api/graphql", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Variables struct {
				Input struct {
					PullRequestID string `json:"pullRequestId"`
				} `json:"input"`
			} `json:"variables"`
		}
		_ = json.Unmarshal(body, &req)
		if req.Variables.Input.PullRequestID != "PR_kwDOabc123" {
			t.Errorf("unexpected pull request id: %+v", req.Variables.Input)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"markPullRequestReadyForReview": map[string]any{
					"pullRequest": map[string]any{
						"number":      3,
						"url":         "https://github.invalid/acme/widgets/pull/3",
						"baseRefName": "main",
						"headRefName": "feature/baz",
						"title":       "Add baz",
						"id":          "PR_kwDOabc123",
						"isDraft":     false,
					},
				},
			},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := forge.Config{Platform: "github", Owner: "acme", Repo: "widgets", Host: server.Listener.Addr().String()}
	client := newTestClient(t, server, cfg)

	pr, err := client.PublishPR(context.Background(), 3)
	if err != nil {
		t.Fatalf("PublishPR: %v", err)
	}
	if pr.IsDraft {
		t.Fatalf("expected published PR to not be draft")
	}
	if pr.Number != 3 {
		t.Fatalf("unexpected PR number: %d", pr.Number)
	}
}

func TestListCreateUpdatePRComment(t *testing.T) {
	var created, updated bool
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v3/repos/acme/widgets/issues/5/comments", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{{"id": 100, "body": "<!-- jj-ryu-stack-begin -->old<!-- jj-ryu-stack-end -->"}})
	})
	mux.HandleFunc("POST /api/v3/repos/acme/widgets/issues/5/comments", func(w http.ResponseWriter, r *http.Request) {
		created = true
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 101, "body": "new"})
	})
	mux.HandleFunc("PATCH /api/v3/repos/acme/widgets/issues/comments/100", func(w http.ResponseWriter, r *http.Request) {
		updated = true
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 100, "body": "updated"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := forge.Config{Platform: "github", Owner: "acme", Repo: "widgets", Host: server.Listener.Addr().String()}
	client := newTestClient(t, server, cfg)

	comments, err := client.ListPRComments(context.Background(), 5)
	if err != nil {
		t.Fatalf("ListPRComments: %v", err)
	}
	if len(comments) != 1 || comments[0].ID != "100" {
		t.Fatalf("unexpected comments: %+v", comments)
	}

	if err := client.UpdatePRComment(context.Background(), 5, "100", "updated"); err != nil {
		t.Fatalf("UpdatePRComment: %v", err)
	}
	if !updated {
		t.Fatal("expected PATCH to comment 100")
	}

	if err := client.CreatePRComment(context.Background(), 5, "new"); err != nil {
		t.Fatalf("CreatePRComment: %v", err)
	}
	if !created {
		t.Fatal("expected POST creating a new comment")
	}
}

func TestFindExistingPR_paginationPropagatesError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v3/repos/acme/widgets/pulls", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"message": "boom"}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := forge.Config{Platform: "github", Owner: "acme", Repo: "widgets", Host: server.Listener.Addr().String()}
	client := newTestClient(t, server, cfg)

	if _, err := client.FindExistingPR(context.Background(), "feature/foo"); err == nil {
		t.Fatal("expected error from 500 response")
	}
}
