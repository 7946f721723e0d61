// Package taskdesksdk is a minimal typed client for the Taskdesk HTTP
// API. All calls unwrap the {success, message, data} envelope; non-2xx
// responses surface as *APIError carrying the server's message.
package taskdesksdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a Taskdesk HTTP API client. Set Token after Login (Login
// does this automatically) to authenticate subsequent calls.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// User is the public principal view.
type User struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Department string `json:"department,omitempty"`
	Position   string `json:"position,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Avatar     string `json:"avatar,omitempty"`
}

// AuthResult carries the credential and principal returned by login and
// register.
type AuthResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type Task struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Status        string    `json:"status"`
	Priority      string    `json:"priority"`
	Category      string    `json:"category,omitempty"`
	AssignedTo    []string  `json:"assigned_to"`
	AssignedBy    string    `json:"assigned_by"`
	StartDate     string    `json:"start_date,omitempty"`
	DueDate       string    `json:"due_date"`
	CompletedDate *string   `json:"completed_date,omitempty"`
	Comments      []Comment `json:"comments,omitempty"`
	CreatedAt     string    `json:"created_at"`
	UpdatedAt     string    `json:"updated_at"`
}

type Comment struct {
	ID        string `json:"id"`
	TaskID    string `json:"task_id"`
	AuthorID  string `json:"author_id"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
}

type Message struct {
	ID          string  `json:"id"`
	SenderID    string  `json:"sender_id"`
	RecipientID string  `json:"recipient_id"`
	Subject     string  `json:"subject"`
	Content     string  `json:"content"`
	IsRead      bool    `json:"is_read"`
	ReadAt      *string `json:"read_at,omitempty"`
	RelatedTask *string `json:"related_task,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

type Announcement struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	AuthorID   string   `json:"author_id"`
	Importance string   `json:"importance"`
	VisibleTo  []string `json:"visible_to"`
	ExpiresAt  *string  `json:"expires_at,omitempty"`
	CreatedAt  string   `json:"created_at"`
	UpdatedAt  string   `json:"updated_at"`
}

// TaskStats is the by-status breakdown from /tasks/stats.
type TaskStats struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d message=%s", e.StatusCode, e.Message)
}

// Login authenticates and stores the returned token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (AuthResult, error) {
	var resp AuthResult
	err := c.do(ctx, http.MethodPost, "auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &resp)
	if err == nil {
		c.Token = resp.Token
	}
	return resp, err
}

// Register creates an employee account and stores the returned token.
func (c *Client) Register(ctx context.Context, name, email, password string) (AuthResult, error) {
	var resp AuthResult
	err := c.do(ctx, http.MethodPost, "auth/register", map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	}, &resp)
	if err == nil {
		c.Token = resp.Token
	}
	return resp, err
}

// Me returns the authenticated principal.
func (c *Client) Me(ctx context.Context) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodGet, "auth/me", nil, &resp)
	return resp, err
}

// ListTasks returns tasks visible to the caller, optionally filtered by
// status.
func (c *Client) ListTasks(ctx context.Context, status string) ([]Task, error) {
	endpoint := "tasks"
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(status)
	}
	var resp []Task
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// CreateTask creates a task (admin only).
func (c *Client) CreateTask(ctx context.Context, title, description, priority, dueDate string, assignedTo []string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks", map[string]any{
		"title":       title,
		"description": description,
		"priority":    priority,
		"due_date":    dueDate,
		"assigned_to": assignedTo,
	}, &resp)
	return resp, err
}

// GetTask fetches a task by id.
func (c *Client) GetTask(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodGet, "tasks/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// UpdateTaskStatus moves a task to the given status.
func (c *Client) UpdateTaskStatus(ctx context.Context, id, status string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPut, "tasks/"+url.PathEscape(id), map[string]string{
		"status": status,
	}, &resp)
	return resp, err
}

// AddComment comments on a task.
func (c *Client) AddComment(ctx context.Context, taskID, text string) (Comment, error) {
	var resp Comment
	err := c.do(ctx, http.MethodPost, "tasks/"+url.PathEscape(taskID)+"/comments", map[string]string{
		"text": text,
	}, &resp)
	return resp, err
}

// TaskStats returns task counts by status (admin only).
func (c *Client) TaskStats(ctx context.Context) (TaskStats, error) {
	var resp TaskStats
	err := c.do(ctx, http.MethodGet, "tasks/stats", nil, &resp)
	return resp, err
}

// SendMessage sends a direct message.
func (c *Client) SendMessage(ctx context.Context, recipientID, subject, content string) (Message, error) {
	var resp Message
	err := c.do(ctx, http.MethodPost, "messages", map[string]string{
		"recipient_id": recipientID,
		"subject":      subject,
		"content":      content,
	}, &resp)
	return resp, err
}

// Inbox returns received messages, newest first.
func (c *Client) Inbox(ctx context.Context) ([]Message, error) {
	var resp []Message
	err := c.do(ctx, http.MethodGet, "messages", nil, &resp)
	return resp, err
}

// Sent returns sent messages, newest first.
func (c *Client) Sent(ctx context.Context) ([]Message, error) {
	var resp []Message
	err := c.do(ctx, http.MethodGet, "messages/sent", nil, &resp)
	return resp, err
}

// MarkMessageRead marks a received message read.
func (c *Client) MarkMessageRead(ctx context.Context, id string) (Message, error) {
	var resp Message
	err := c.do(ctx, http.MethodPut, "messages/"+url.PathEscape(id)+"/read", nil, &resp)
	return resp, err
}

// Announcements returns announcements visible to the caller.
func (c *Client) Announcements(ctx context.Context) ([]Announcement, error) {
	var resp []Announcement
	err := c.do(ctx, http.MethodGet, "announcements", nil, &resp)
	return resp, err
}

// MarkAnnouncementRead records a read receipt.
func (c *Client) MarkAnnouncementRead(ctx context.Context, id string) (Announcement, error) {
	var resp Announcement
	err := c.do(ctx, http.MethodPut, "announcements/"+url.PathEscape(id)+"/read", nil, &resp)
	return resp, err
}

// ListUsers returns all users (admin only).
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var resp []User
	err := c.do(ctx, http.MethodGet, "users", nil, &resp)
	return resp, err
}

// DeleteUser removes a user (admin only, never the caller itself).
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "users/"+url.PathEscape(id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	reqURL := c.base() + "/api/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	var env struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)
	if resp.StatusCode >= 300 || (decodeErr == nil && !env.Success) {
		return &APIError{StatusCode: resp.StatusCode, Message: env.Message}
	}
	if decodeErr != nil {
		return decodeErr
	}
	if out != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
