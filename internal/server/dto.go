package server

import (
	"encoding/json"

	"careboard/internal/domain"
)

// Request payloads

type CreateTaskRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Expertise   *string `json:"expertise,omitempty"`
	PatientID   int64   `json:"patient_id"`
}

// UpdateTaskRequest carries the full editable field set; the update is
// applied all-or-nothing.
type UpdateTaskRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Expertise   *string `json:"expertise,omitempty"`
	PatientID   int64   `json:"patient_id"`
	Complete    bool    `json:"complete"`
}

type CreatePatientRequest struct {
	Name string `json:"name"`
}

// Response payloads

type TaskResponse struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Expertise   *string `json:"expertise,omitempty"`
	PatientID   int64   `json:"patient_id"`
	Complete    bool    `json:"complete"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

type PatientResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   int64          `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type taskList struct {
	Items []TaskResponse `json:"items"`
}

type patientList struct {
	Items []PatientResponse `json:"items"`
}

type eventList struct {
	Items []EventResponse `json:"items"`
}

// Conversion helpers

func taskResponse(t domain.Task) TaskResponse {
	return TaskResponse(t)
}

func patientResponse(p domain.Patient) PatientResponse {
	return PatientResponse(p)
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

func mapTasks(tasks []domain.Task) []TaskResponse {
	res := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		res = append(res, taskResponse(t))
	}
	return res
}

func mapPatients(patients []domain.Patient) []PatientResponse {
	res := make([]PatientResponse, 0, len(patients))
	for _, p := range patients {
		res = append(res, patientResponse(p))
	}
	return res
}

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var tmp any
	if err := json.Unmarshal([]byte(raw), &tmp); err != nil {
		return nil
	}
	if obj, ok := tmp.(map[string]any); ok {
		return obj
	}
	return nil
}
