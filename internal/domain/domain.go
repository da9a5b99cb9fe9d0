package domain

// Task is an administrative work item linked to a patient.
type Task struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Expertise   *string `json:"expertise,omitempty"`
	PatientID   int64   `json:"patient_id"`
	Complete    bool    `json:"complete"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

type Patient struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// PatientOption is an ephemeral (id, label) pair produced by a patient search.
// Options are never persisted; a fresh set is derived per query.
type PatientOption struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   int64  `json:"entity_id"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
