package domain

// Role is the closed set of principal roles.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

// IsValid reports whether the role is one of the predefined roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleEmployee:
		return true
	default:
		return false
	}
}

// ParseRole safely parses a string into a Role.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.IsValid()
}

// Principal is an authenticated actor. PasswordHash never leaves the
// repo/auth layers; Public strips it for API responses.
type Principal struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Role         Role   `json:"role" enum:"admin,employee"`
	Department   string `json:"department,omitempty"`
	Position     string `json:"position,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Avatar       string `json:"avatar,omitempty"`
	PasswordHash string `json:"-"`
	CreatedAt    string `json:"created_at" format:"date-time"`
	UpdatedAt    string `json:"updated_at" format:"date-time"`
}

// PrincipalSummary is the public-safe view of a Principal.
type PrincipalSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       Role   `json:"role" enum:"admin,employee"`
	Department string `json:"department,omitempty"`
	Position   string `json:"position,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Avatar     string `json:"avatar,omitempty"`
}

// Public returns the principal without credential material.
func (p Principal) Public() PrincipalSummary {
	return PrincipalSummary{
		ID:         p.ID,
		Name:       p.Name,
		Email:      p.Email,
		Role:       p.Role,
		Department: p.Department,
		Position:   p.Position,
		Phone:      p.Phone,
		Avatar:     p.Avatar,
	}
}

// Task statuses. There is no enforced transition graph; any status may
// overwrite any other, but non-monotonic transitions are flagged to
// operators (see the audit package).
const (
	TaskStatusTodo        = "todo"
	TaskStatusInProgress  = "in_progress"
	TaskStatusUnderReview = "under_review"
	TaskStatusCompleted   = "completed"
	TaskStatusBlocked     = "blocked"
)

// TaskStatusRank orders statuses for monotonicity checks only; it does
// not constrain writes.
var TaskStatusRank = map[string]int{
	TaskStatusTodo:        0,
	TaskStatusInProgress:  1,
	TaskStatusUnderReview: 2,
	TaskStatusCompleted:   3,
	TaskStatusBlocked:     3,
}

func ValidTaskStatus(s string) bool {
	_, ok := TaskStatusRank[s]
	return ok
}

func ValidTaskPriority(p string) bool {
	switch p {
	case "low", "medium", "high", "urgent":
		return true
	default:
		return false
	}
}

type Task struct {
	ID            string       `json:"id"`
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	Status        string       `json:"status" enum:"todo,in_progress,under_review,completed,blocked"`
	Priority      string       `json:"priority" enum:"low,medium,high,urgent"`
	Category      string       `json:"category,omitempty"`
	AssignedTo    []string     `json:"assigned_to"`
	AssignedBy    string       `json:"assigned_by"`
	StartDate     string       `json:"start_date,omitempty" format:"date-time"`
	DueDate       string       `json:"due_date" format:"date-time"`
	CompletedDate *string      `json:"completed_date,omitempty" format:"date-time"`
	Attachments   []Attachment `json:"attachments,omitempty"`
	Comments      []Comment    `json:"comments,omitempty"`
	CreatedAt     string       `json:"created_at" format:"date-time"`
	UpdatedAt     string       `json:"updated_at" format:"date-time"`
}

// AssignedToContains reports whether the principal id is an assignee.
func (t Task) AssignedToContains(id string) bool {
	for _, a := range t.AssignedTo {
		if a == id {
			return true
		}
	}
	return false
}

type Comment struct {
	ID        string `json:"id"`
	TaskID    string `json:"task_id"`
	AuthorID  string `json:"author_id"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Attachment references a blob-store object by generated key.
type Attachment struct {
	ID         string `json:"id"`
	TaskID     string `json:"task_id"`
	Filename   string `json:"filename"`
	BlobKey    string `json:"blob_key"`
	UploadedBy string `json:"uploaded_by"`
	UploadedAt string `json:"uploaded_at" format:"date-time"`
}

const (
	ImportanceNormal    = "normal"
	ImportanceImportant = "important"
	ImportanceUrgent    = "urgent"
)

func ValidImportance(s string) bool {
	switch s {
	case ImportanceNormal, ImportanceImportant, ImportanceUrgent:
		return true
	default:
		return false
	}
}

type Announcement struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Content    string        `json:"content"`
	AuthorID   string        `json:"author_id"`
	Importance string        `json:"importance" enum:"normal,important,urgent"`
	VisibleTo  []string      `json:"visible_to"`
	ExpiresAt  *string       `json:"expires_at,omitempty" format:"date-time"`
	ReadBy     []ReadReceipt `json:"read_by,omitempty"`
	CreatedAt  string        `json:"created_at" format:"date-time"`
	UpdatedAt  string        `json:"updated_at" format:"date-time"`
}

// VisibleToContains reports whether the principal id is in the
// visibility set. An empty set means visible to all.
func (a Announcement) VisibleToContains(id string) bool {
	for _, v := range a.VisibleTo {
		if v == id {
			return true
		}
	}
	return false
}

type ReadReceipt struct {
	ReaderID string `json:"reader_id"`
	ReadAt   string `json:"read_at" format:"date-time"`
}

type Message struct {
	ID          string  `json:"id"`
	SenderID    string  `json:"sender_id"`
	RecipientID string  `json:"recipient_id"`
	Subject     string  `json:"subject"`
	Content     string  `json:"content"`
	IsRead      bool    `json:"is_read"`
	ReadAt      *string `json:"read_at,omitempty" format:"date-time"`
	RelatedTask *string `json:"related_task,omitempty"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
}

type AuditEvent struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
