package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"taskdesk/internal/audit"
	"taskdesk/internal/auth"
	"taskdesk/internal/blob"
	"taskdesk/internal/db"
	"taskdesk/internal/domain"
	"taskdesk/internal/migrate"
	"taskdesk/internal/repo"
	"taskdesk/internal/token"
)

const testBcryptCost = 4

type testServer struct {
	URL      string
	client   *http.Client
	users    repo.Users
	admin    domain.Principal
	employee domain.Principal
	other    domain.Principal
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dataDir := t.TempDir()
	conn, err := db.Open(db.Config{DataDir: dataDir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	users := repo.Users{DB: conn}
	ctx := context.Background()
	admin, err := users.Create(ctx, domain.Principal{
		Name: "Admin User", Email: "admin@example.com", Role: domain.RoleAdmin,
	}, "admin123", testBcryptCost)
	if err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	employee, err := users.Create(ctx, domain.Principal{
		Name: "Jane Employee", Email: "jane@example.com", Role: domain.RoleEmployee,
	}, "jane1234", testBcryptCost)
	if err != nil {
		t.Fatalf("seed employee: %v", err)
	}
	other, err := users.Create(ctx, domain.Principal{
		Name: "Sam Employee", Email: "sam@example.com", Role: domain.RoleEmployee,
	}, "sam12345", testBcryptCost)
	if err != nil {
		t.Fatalf("seed second employee: %v", err)
	}
	codec := token.NewCodec([]byte("test-secret"))
	authn := auth.NewAuthenticator(users, codec, time.Hour)
	blobs, err := blob.NewStore(filepath.Join(dataDir, "uploads"))
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}
	handler, err := New(Config{
		Repo:       repo.Repo{DB: conn},
		Users:      users,
		Auth:       authn,
		Audit:      audit.Writer{DB: conn, Log: zerolog.Nop()},
		Blobs:      blobs,
		BasePath:   "/api",
		BcryptCost: testBcryptCost,
		Log:        zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		ln.Close()
		conn.Close()
	})
	return &testServer{
		URL:      "http://" + ln.Addr().String(),
		client:   &http.Client{},
		users:    users,
		admin:    admin,
		employee: employee,
		other:    other,
	}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func login(t *testing.T, srv *testServer, email, password string) string {
	t.Helper()
	res, data := doJSON(t, srv.client, http.MethodPost, srv.URL+"/api/auth/login", map[string]string{
		"email": email, "password": password,
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("login %s: status %d: %s", email, res.StatusCode, string(data))
	}
	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Token string                  `json:"token"`
			User  domain.PrincipalSummary `json:"user"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("unmarshal login response: %v", err)
	}
	if !body.Success || body.Data.Token == "" {
		t.Fatalf("login %s: unexpected body %s", email, string(data))
	}
	return body.Data.Token
}

func bearer(tok string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + tok}
}

func TestAdminLogin(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.client, http.MethodPost, srv.URL+"/api/auth/login", map[string]string{
		"email": "admin@example.com", "password": "admin123",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Token string                  `json:"token"`
			User  domain.PrincipalSummary `json:"user"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !body.Success {
		t.Fatalf("expected success envelope: %s", string(data))
	}
	if body.Data.Token == "" {
		t.Fatal("expected a token")
	}
	if body.Data.User.Role != domain.RoleAdmin {
		t.Fatalf("expected admin role, got %s", body.Data.User.Role)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.client, http.MethodPost, srv.URL+"/api/auth/login", map[string]string{
		"email": "admin@example.com", "password": "wrong-password",
	}, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", res.StatusCode, string(data))
	}
	resUnknown, dataUnknown := doJSON(t, srv.client, http.MethodPost, srv.URL+"/api/auth/login", map[string]string{
		"email": "nobody@example.com", "password": "admin123",
	}, nil)
	if resUnknown.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", resUnknown.StatusCode, string(dataUnknown))
	}
	// Wrong password and unknown email must be indistinguishable.
	var a, b struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &a); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := json.Unmarshal(dataUnknown, &b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if a.Success || b.Success {
		t.Fatal("expected success=false")
	}
	if a.Message != b.Message {
		t.Fatalf("failure messages differ: %q vs %q", a.Message, b.Message)
	}
}

func TestWrongAuthorizationScheme(t *testing.T) {
	srv := newTestServer(t)
	tok := login(t, srv, "admin@example.com", "admin123")
	res, data := doJSON(t, srv.client, http.MethodGet, srv.URL+"/api/tasks", nil, map[string]string{
		"Authorization": "Token " + tok,
	})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for Token scheme, got %d: %s", res.StatusCode, string(data))
	}
	resBare, dataBare := doJSON(t, srv.client, http.MethodGet, srv.URL+"/api/tasks", nil, map[string]string{
		"Authorization": tok,
	})
	if resBare.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bare token, got %d: %s", resBare.StatusCode, string(dataBare))
	}
	resLower, dataLower := doJSON(t, srv.client, http.MethodGet, srv.URL+"/api/tasks", nil, map[string]string{
		"Authorization": "bearer " + tok,
	})
	if resLower.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for lowercase scheme, got %d: %s", resLower.StatusCode, string(dataLower))
	}
	resOK, dataOK := doJSON(t, srv.client, http.MethodGet, srv.URL+"/api/tasks", nil, bearer(tok))
	if resOK.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for Bearer scheme, got %d: %s", resOK.StatusCode, string(dataOK))
	}
}

func TestEmployeeCannotDeleteUser(t *testing.T) {
	srv := newTestServer(t)
	tok := login(t, srv, "jane@example.com", "jane1234")
	res, data := doJSON(t, srv.client, http.MethodDelete, srv.URL+"/api/users/"+srv.other.ID, nil, bearer(tok))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", res.StatusCode, string(data))
	}
	if _, err := srv.users.FindByID(context.Background(), srv.other.ID); err != nil {
		t.Fatalf("target user should still exist: %v", err)
	}
}

func TestAdminCannotDeleteSelf(t *testing.T) {
	srv := newTestServer(t)
	tok := login(t, srv, "admin@example.com", "admin123")
	res, data := doJSON(t, srv.client, http.MethodDelete, srv.URL+"/api/users/"+srv.admin.ID, nil, bearer(tok))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for self-delete, got %d: %s", res.StatusCode, string(data))
	}
	resOther, dataOther := doJSON(t, srv.client, http.MethodDelete, srv.URL+"/api/users/"+srv.other.ID, nil, bearer(tok))
	if resOther.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 deleting another user, got %d: %s", resOther.StatusCode, string(dataOther))
	}
}

func TestTaskVisibility(t *testing.T) {
	srv := newTestServer(t)
	adminTok := login(t, srv, "admin@example.com", "admin123")
	janeTok := login(t, srv, "jane@example.com", "jane1234")
	samTok := login(t, srv, "sam@example.com", "sam12345")

	res, data := doJSON(t, srv.client, http.MethodPost, srv.URL+"/api/tasks", map[string]any{
		"title":       "Prepare quarterly report",
		"description": "Numbers for Q3",
		"priority":    "high",
		"due_date":    time.Now().Add(72 * time.Hour).UTC().Format(time.RFC3339),
		"assigned_to": []string{srv.employee.ID},
	}, bearer(adminTok))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create task: %d %s", res.StatusCode, string(data))
	}
	var created struct {
		Data domain.Task `json:"data"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	getRes, getData := doJSON(t, srv.client, http.MethodGet, srv.URL+"/api/tasks/"+created.Data.ID, nil, bearer(janeTok))
	if getRes.StatusCode != http.StatusOK {
		t.Fatalf("assignee read: %d %s", getRes.StatusCode, string(getData))
	}
	otherRes, otherData := doJSON(t, srv.client, http.MethodGet, srv.URL+"/api/tasks/"+created.Data.ID, nil, bearer(samTok))
	if otherRes.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for unassigned employee, got %d: %s", otherRes.StatusCode, string(otherData))
	}

	listRes, listData := doJSON(t, srv.client, http.MethodGet, srv.URL+"/api/tasks", nil, bearer(samTok))
	if listRes.StatusCode != http.StatusOK {
		t.Fatalf("list: %d %s", listRes.StatusCode, string(listData))
	}
	var list struct {
		Data []domain.Task `json:"data"`
	}
	if err := json.Unmarshal(listData, &list); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(list.Data) != 0 {
		t.Fatalf("unassigned employee should see no tasks, got %d", len(list.Data))
	}
}

func TestEmployeeTaskUpdateLimitedToStatus(t *testing.T) {
	srv := newTestServer(t)
	adminTok := login(t, srv, "admin@example.com", "admin123")
	janeTok := login(t, srv, "jane@example.com", "jane1234")

	_, data := doJSON(t, srv.client, http.MethodPost, srv.URL+"/api/tasks", map[string]any{
		"title":       "Fix login page",
		"description": "Button misaligned",
		"due_date":    time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
		"assigned_to": []string{srv.employee.ID},
	}, bearer(adminTok))
	var created struct {
		Data domain.Task `json:"data"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	statusRes, statusData := doJSON(t, srv.client, http.MethodPut, srv.URL+"/api/tasks/"+created.Data.ID, map[string]any{
		"status": "in_progress",
	}, bearer(janeTok))
	if statusRes.StatusCode != http.StatusOK {
		t.Fatalf("assignee status update: %d %s", statusRes.StatusCode, string(statusData))
	}

	reassignRes, reassignData := doJSON(t, srv.client, http.MethodPut, srv.URL+"/api/tasks/"+created.Data.ID, map[string]any{
		"assigned_to": []string{srv.other.ID},
	}, bearer(janeTok))
	if reassignRes.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for reassignment, got %d: %s", reassignRes.StatusCode, string(reassignData))
	}

	deleteRes, deleteData := doJSON(t, srv.client, http.MethodDelete, srv.URL+"/api/tasks/"+created.Data.ID, nil, bearer(janeTok))
	if deleteRes.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for delete, got %d: %s", deleteRes.StatusCode, string(deleteData))
	}
}

func TestMessagePrivacy(t *testing.T) {
	srv := newTestServer(t)
	janeTok := login(t, srv, "jane@example.com", "jane1234")
	samTok := login(t, srv, "sam@example.com", "sam12345")
	adminTok := login(t, srv, "admin@example.com", "admin123")

	res, data := doJSON(t, srv.client, http.MethodPost, srv.URL+"/api/messages", map[string]any{
		"recipient_id": srv.admin.ID,
		"subject":      "Vacation request",
		"content":      "Two weeks in October",
	}, bearer(janeTok))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("send message: %d %s", res.StatusCode, string(data))
	}
	var created struct {
		Data domain.Message `json:"data"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	strangerRes, strangerData := doJSON(t, srv.client, http.MethodGet, srv.URL+"/api/messages/"+created.Data.ID, nil, bearer(samTok))
	if strangerRes.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-participant, got %d: %s", strangerRes.StatusCode, string(strangerData))
	}

	readRes, readData := doJSON(t, srv.client, http.MethodPut, srv.URL+"/api/messages/"+created.Data.ID+"/read", nil, bearer(adminTok))
	if readRes.StatusCode != http.StatusOK {
		t.Fatalf("recipient mark read: %d %s", readRes.StatusCode, string(readData))
	}
	var read struct {
		Data domain.Message `json:"data"`
	}
	if err := json.Unmarshal(readData, &read); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !read.Data.IsRead || read.Data.ReadAt == nil {
		t.Fatalf("expected read message, got %s", string(readData))
	}

	senderReadRes, senderReadData := doJSON(t, srv.client, http.MethodPut, srv.URL+"/api/messages/"+created.Data.ID+"/read", nil, bearer(janeTok))
	if senderReadRes.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for sender marking read, got %d: %s", senderReadRes.StatusCode, string(senderReadData))
	}
}

func TestAnnouncementVisibilityAndExpiry(t *testing.T) {
	srv := newTestServer(t)
	adminTok := login(t, srv, "admin@example.com", "admin123")
	janeTok := login(t, srv, "jane@example.com", "jane1234")
	samTok := login(t, srv, "sam@example.com", "sam12345")

	targetedRes, targetedData := doJSON(t, srv.client, http.MethodPost, srv.URL+"/api/announcements", map[string]any{
		"title":      "Team offsite",
		"content":    "Friday all day",
		"visible_to": []string{srv.employee.ID},
	}, bearer(adminTok))
	if targetedRes.StatusCode != http.StatusCreated {
		t.Fatalf("create targeted: %d %s", targetedRes.StatusCode, string(targetedData))
	}
	expired := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	expiredRes, expiredData := doJSON(t, srv.client, http.MethodPost, srv.URL+"/api/announcements", map[string]any{
		"title":      "Old notice",
		"content":    "Already over",
		"expires_at": expired,
	}, bearer(adminTok))
	if expiredRes.StatusCode != http.StatusCreated {
		t.Fatalf("create expired: %d %s", expiredRes.StatusCode, string(expiredData))
	}

	countFor := func(tok string) int {
		res, data := doJSON(t, srv.client, http.MethodGet, srv.URL+"/api/announcements", nil, bearer(tok))
		if res.StatusCode != http.StatusOK {
			t.Fatalf("list announcements: %d %s", res.StatusCode, string(data))
		}
		var list struct {
			Data []domain.Announcement `json:"data"`
		}
		if err := json.Unmarshal(data, &list); err != nil {
			t.Fatalf("unmarshal list: %v", err)
		}
		return len(list.Data)
	}
	if n := countFor(janeTok); n != 1 {
		t.Fatalf("targeted employee should see 1 announcement, got %d", n)
	}
	if n := countFor(samTok); n != 0 {
		t.Fatalf("untargeted employee should see 0 announcements, got %d", n)
	}
	if n := countFor(adminTok); n != 2 {
		t.Fatalf("admin should see both announcements, got %d", n)
	}
}

func TestRegisterCreatesEmployee(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.client, http.MethodPost, srv.URL+"/api/auth/register", map[string]any{
		"name":     "New Hire",
		"email":    "new@example.com",
		"password": "newhire1",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("register: %d %s", res.StatusCode, string(data))
	}
	var body struct {
		Data struct {
			Token string                  `json:"token"`
			User  domain.PrincipalSummary `json:"user"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Data.User.Role != domain.RoleEmployee {
		t.Fatalf("self-registration must yield employee, got %s", body.Data.User.Role)
	}

	dupRes, dupData := doJSON(t, srv.client, http.MethodPost, srv.URL+"/api/auth/register", map[string]any{
		"name":     "Duplicate",
		"email":    "new@example.com",
		"password": "whatever1",
	}, nil)
	if dupRes.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate email, got %d: %s", dupRes.StatusCode, string(dupData))
	}
}

func TestUpdatePassword(t *testing.T) {
	srv := newTestServer(t)
	tok := login(t, srv, "jane@example.com", "jane1234")

	wrongRes, wrongData := doJSON(t, srv.client, http.MethodPut, srv.URL+"/api/auth/updatepassword", map[string]any{
		"current_password": "not-her-password",
		"new_password":     "changed123",
	}, bearer(tok))
	if wrongRes.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong current password, got %d: %s", wrongRes.StatusCode, string(wrongData))
	}

	okRes, okData := doJSON(t, srv.client, http.MethodPut, srv.URL+"/api/auth/updatepassword", map[string]any{
		"current_password": "jane1234",
		"new_password":     "changed123",
	}, bearer(tok))
	if okRes.StatusCode != http.StatusOK {
		t.Fatalf("update password: %d %s", okRes.StatusCode, string(okData))
	}
	login(t, srv, "jane@example.com", "changed123")
}

func TestReopenedTaskClearsCompletionDate(t *testing.T) {
	srv := newTestServer(t)
	adminTok := login(t, srv, "admin@example.com", "admin123")

	_, data := doJSON(t, srv.client, http.MethodPost, srv.URL+"/api/tasks", map[string]any{
		"title":       "Ship release notes",
		"description": "For the 1.2 release",
		"due_date":    time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
		"assigned_to": []string{srv.employee.ID},
	}, bearer(adminTok))
	var created struct {
		Data domain.Task `json:"data"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	doneRes, doneData := doJSON(t, srv.client, http.MethodPut, srv.URL+"/api/tasks/"+created.Data.ID, map[string]any{
		"status": "completed",
	}, bearer(adminTok))
	if doneRes.StatusCode != http.StatusOK {
		t.Fatalf("complete task: %d %s", doneRes.StatusCode, string(doneData))
	}
	var done struct {
		Data domain.Task `json:"data"`
	}
	if err := json.Unmarshal(doneData, &done); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if done.Data.CompletedDate == nil {
		t.Fatal("completing a task should stamp completed_date")
	}

	reRes, reData := doJSON(t, srv.client, http.MethodPut, srv.URL+"/api/tasks/"+created.Data.ID, map[string]any{
		"status": "in_progress",
	}, bearer(adminTok))
	if reRes.StatusCode != http.StatusOK {
		t.Fatalf("reopen task: %d %s", reRes.StatusCode, string(reData))
	}
	var reopened struct {
		Data domain.Task `json:"data"`
	}
	if err := json.Unmarshal(reData, &reopened); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if reopened.Data.CompletedDate != nil {
		t.Fatalf("reopened task kept completed_date %q", *reopened.Data.CompletedDate)
	}
}

func TestAnnouncementExpiryClearedOnUpdate(t *testing.T) {
	srv := newTestServer(t)
	adminTok := login(t, srv, "admin@example.com", "admin123")

	_, data := doJSON(t, srv.client, http.MethodPost, srv.URL+"/api/announcements", map[string]any{
		"title":      "Office closed Friday",
		"content":    "Building maintenance",
		"expires_at": time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339),
	}, bearer(adminTok))
	var created struct {
		Data domain.Announcement `json:"data"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if created.Data.ExpiresAt == nil {
		t.Fatal("expected expiry on created announcement")
	}

	updRes, updData := doJSON(t, srv.client, http.MethodPut, srv.URL+"/api/announcements/"+created.Data.ID, map[string]any{
		"expires_at": "",
	}, bearer(adminTok))
	if updRes.StatusCode != http.StatusOK {
		t.Fatalf("update announcement: %d %s", updRes.StatusCode, string(updData))
	}
	var updated struct {
		Data domain.Announcement `json:"data"`
	}
	if err := json.Unmarshal(updData, &updated); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if updated.Data.ExpiresAt != nil {
		t.Fatalf("expiry not cleared: %q", *updated.Data.ExpiresAt)
	}
}

func TestDeletingUserWhoCreatedTasks(t *testing.T) {
	srv := newTestServer(t)
	adminTok := login(t, srv, "admin@example.com", "admin123")

	_, userData := doJSON(t, srv.client, http.MethodPost, srv.URL+"/api/users", map[string]any{
		"name":     "Second Admin",
		"email":    "admin2@example.com",
		"password": "admin2pass",
		"role":     "admin",
	}, bearer(adminTok))
	var second struct {
		Data domain.PrincipalSummary `json:"data"`
	}
	if err := json.Unmarshal(userData, &second); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	secondTok := login(t, srv, "admin2@example.com", "admin2pass")

	_, taskData := doJSON(t, srv.client, http.MethodPost, srv.URL+"/api/tasks", map[string]any{
		"title":       "Audit licenses",
		"description": "Before renewal",
		"due_date":    time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
		"assigned_to": []string{srv.employee.ID},
	}, bearer(secondTok))
	var created struct {
		Data domain.Task `json:"data"`
	}
	if err := json.Unmarshal(taskData, &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	delRes, delData := doJSON(t, srv.client, http.MethodDelete, srv.URL+"/api/users/"+second.Data.ID, nil, bearer(adminTok))
	if delRes.StatusCode != http.StatusOK {
		t.Fatalf("delete task creator: %d %s", delRes.StatusCode, string(delData))
	}

	getRes, getData := doJSON(t, srv.client, http.MethodGet, srv.URL+"/api/tasks/"+created.Data.ID, nil, bearer(adminTok))
	if getRes.StatusCode != http.StatusOK {
		t.Fatalf("task gone after creator delete: %d %s", getRes.StatusCode, string(getData))
	}
	var got struct {
		Data domain.Task `json:"data"`
	}
	if err := json.Unmarshal(getData, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Data.AssignedBy != "" {
		t.Fatalf("expected detached creator, got %q", got.Data.AssignedBy)
	}
}

func TestAttachmentDownloadFilenameEscaped(t *testing.T) {
	srv := newTestServer(t)
	adminTok := login(t, srv, "admin@example.com", "admin123")

	_, taskData := doJSON(t, srv.client, http.MethodPost, srv.URL+"/api/tasks", map[string]any{
		"title":       "Collect weekly reports",
		"description": "Attachments land here",
		"due_date":    time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
	}, bearer(adminTok))
	var created struct {
		Data domain.Task `json:"data"`
	}
	if err := json.Unmarshal(taskData, &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	const filename = `weekly "status" report.txt`
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte("all green")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	mw.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/tasks/"+created.Data.ID+"/attachments", &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+adminTok)
	upRes, err := srv.client.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	upBody, _ := io.ReadAll(upRes.Body)
	upRes.Body.Close()
	if upRes.StatusCode != http.StatusCreated {
		t.Fatalf("upload: %d %s", upRes.StatusCode, string(upBody))
	}
	var uploaded struct {
		Data domain.Attachment `json:"data"`
	}
	if err := json.Unmarshal(upBody, &uploaded); err != nil {
		t.Fatalf("unmarshal upload: %v", err)
	}

	dlRes, dlBody := doJSON(t, srv.client, http.MethodGet,
		srv.URL+"/api/tasks/"+created.Data.ID+"/attachments/"+uploaded.Data.ID, nil, bearer(adminTok))
	if dlRes.StatusCode != http.StatusOK {
		t.Fatalf("download: %d %s", dlRes.StatusCode, string(dlBody))
	}
	if string(dlBody) != "all green" {
		t.Fatalf("unexpected content %q", string(dlBody))
	}
	mediaType, params, err := mime.ParseMediaType(dlRes.Header.Get("Content-Disposition"))
	if err != nil {
		t.Fatalf("parse content-disposition %q: %v", dlRes.Header.Get("Content-Disposition"), err)
	}
	if mediaType != "attachment" || params["filename"] != filename {
		t.Fatalf("bad disposition: type %q filename %q", mediaType, params["filename"])
	}
}
