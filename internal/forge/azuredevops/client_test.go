package azuredevops

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/msuozzo/jj-ryu/internal/forge"
)

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	cfg := forge.Config{Platform: "azuredevops", Owner: "acme/widgets-project", Repo: "widgets", Host: server.Listener.Addr().String()}
	c, err := New("test-pat", cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// apiURL always builds https:// URLs, so the test servers are TLS
	// servers and the client trusts their certificate.
	c.http.HTTPClient = server.Client()
	return c
}

func TestFindExistingPR(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /acme/widgets-project/_apis/git/repositories/widgets/pullrequests", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("searchCriteria.sourceRefName"); got != "refs/heads/feature/foo" {
			t.Errorf("unexpected source ref filter: %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"value": []map[string]any{
				{"pullRequestId": 14, "sourceRefName": "refs/heads/feature/foo", "targetRefName": "refs/heads/main",
					"title": "foo", "isDraft": false, "repository": map[string]any{"webUrl": "https://dev.azure.com/acme/widgets-project/_git/widgets"}},
			},
		})
	})
	server := httptest.NewTLSServer(mux)
	defer server.Close()

	client := newTestClient(t, server)
	pr, err := client.FindExistingPR(context.Background(), "feature/foo")
	if err != nil {
		t.Fatalf("FindExistingPR: %v", err)
	}
	if pr == nil || pr.Number != 14 || pr.BaseRef != "main" || pr.HeadRef != "feature/foo" {
		t.Fatalf("unexpected PR: %+v", pr)
	}
}

func TestCreatePRWithOptions(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /acme/widgets-project/_apis/git/repositories/widgets/pullrequests", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		_ = json.Unmarshal(body, &req)
		if req["sourceRefName"] != "refs/heads/feature/foo" {
			t.Errorf("unexpected sourceRefName: %v", req["sourceRefName"])
		}
		if req["isDraft"] != true {
			t.Errorf("expected isDraft=true, got %v", req["isDraft"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"pullRequestId": 20, "sourceRefName": req["sourceRefName"], "targetRefName": req["targetRefName"],
			"title": req["title"], "isDraft": true,
			"repository": map[string]any{"webUrl": "https://dev.azure.com/acme/widgets-project/_git/widgets"},
		})
	})
	server := httptest.NewTLSServer(mux)
	defer server.Close()

	client := newTestClient(t, server)
	pr, err := client.CreatePRWithOptions(context.Background(), forge.CreateOptions{Head: "feature/foo", Base: "main", Title: "Add foo", Draft: true})
	if err != nil {
		t.Fatalf("CreatePRWithOptions: %v", err)
	}
	if pr.Number != 20 || !pr.IsDraft {
		t.Fatalf("unexpected PR: %+v", pr)
	}
}

func TestUpdatePRBase(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PATCH /acme/widgets-project/_apis/git/repositories/widgets/pullrequests/30", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		_ = json.Unmarshal(body, &req)
		if req["targetRefName"] != "refs/heads/develop" {
			t.Errorf("unexpected targetRefName: %v", req["targetRefName"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"pullRequestId": 30, "sourceRefName": "refs/heads/feature/bar", "targetRefName": "refs/heads/develop",
			"title": "bar", "repository": map[string]any{"webUrl": "https://dev.azure.com/acme/widgets-project/_git/widgets"},
		})
	})
	server := httptest.NewTLSServer(mux)
	defer server.Close()

	client := newTestClient(t, server)
	pr, err := client.UpdatePRBase(context.Background(), 30, "develop")
	if err != nil {
		t.Fatalf("UpdatePRBase: %v", err)
	}
	if pr.BaseRef != "develop" {
		t.Fatalf("expected base develop, got %q", pr.BaseRef)
	}
}

func TestListAndUpdatePRComment_locatesOwningThread(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /acme/widgets-project/_apis/git/repositories/widgets/pullrequests/40/threads", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"value": []map[string]any{
				{"id": 1, "comments": []map[string]any{{"id": 1, "content": "system note", "commentType": 2}}},
				{"id": 2, "comments": []map[string]any{{"id": 2, "content": "<!-- jj-ryu-stack-begin -->old<!-- jj-ryu-stack-end -->", "commentType": 1}}},
			},
		})
	})
	var patchedThread int
	mux.HandleFunc("PATCH /acme/widgets-project/_apis/git/repositories/widgets/pullrequests/40/threads/2/comments/2", func(w http.ResponseWriter, r *http.Request) {
		patchedThread = 2
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 2, "content": "updated"})
	})
	server := httptest.NewTLSServer(mux)
	defer server.Close()

	client := newTestClient(t, server)
	comments, err := client.ListPRComments(context.Background(), 40)
	if err != nil {
		t.Fatalf("ListPRComments: %v", err)
	}
	if len(comments) != 1 || comments[0].ID != "2" {
		t.Fatalf("expected exactly one text comment (system comment filtered), got %+v", comments)
	}

	if err := client.UpdatePRComment(context.Background(), 40, "2", "updated"); err != nil {
		t.Fatalf("UpdatePRComment: %v", err)
	}
	if patchedThread != 2 {
		t.Fatal("expected PATCH against thread 2, the thread owning comment 2")
	}
}

func TestCreatePRComment_opensNewThread(t *testing.T) {
	var created bool
	mux := http.NewServeMux()
	mux.HandleFunc("POST /acme/widgets-project/_apis/git/repositories/widgets/pullrequests/50/threads", func(w http.ResponseWriter, r *http.Request) {
		created = true
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		_ = json.Unmarshal(body, &req)
		comments, _ := req["comments"].([]any)
		if len(comments) != 1 {
			t.Errorf("expected exactly one seed comment, got %d", len(comments))
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 9})
	})
	server := httptest.NewTLSServer(mux)
	defer server.Close()

	client := newTestClient(t, server)
	if err := client.CreatePRComment(context.Background(), 50, "hello"); err != nil {
		t.Fatalf("CreatePRComment: %v", err)
	}
	if !created {
		t.Fatal("expected POST creating a thread")
	}
}

func TestNew_rejectsOwnerWithoutProject(t *testing.T) {
	_, err := New("test-pat", forge.Config{Platform: "azuredevops", Owner: "acme", Repo: "widgets"})
	if err == nil {
		t.Fatal("expected error for owner missing '/project' suffix")
	}
}
