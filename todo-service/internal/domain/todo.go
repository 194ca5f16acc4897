package domain

type Todo struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

type TodoCreate struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

// TodoUpdate is a partial update; nil fields are left unchanged.
type TodoUpdate struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
}

func (u TodoUpdate) Apply(t *Todo) {
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.Completed != nil {
		t.Completed = *u.Completed
	}
}

func SeedTodos() []TodoCreate {
	return []TodoCreate{
		{Title: "Learn OpenTelemetry", Description: "Study distributed tracing with OpenTelemetry"},
		{Title: "Setup Grafana", Description: "Configure Grafana dashboards for monitoring", Completed: true},
		{Title: "Implement Todo App", Description: "Create a full-stack todo application with tracing"},
		{Title: "Study Tempo", Description: "Learn how to use Grafana Tempo for trace visualization"},
	}
}
