package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTodoUpdate_Apply(t *testing.T) {
	title := "Study Loki"
	done := true

	tests := []struct {
		name   string
		update TodoUpdate
		want   Todo
	}{
		{"nothing", TodoUpdate{}, Todo{ID: 1, Title: "Study Tempo", Description: "traces"}},
		{"title only", TodoUpdate{Title: &title}, Todo{ID: 1, Title: "Study Loki", Description: "traces"}},
		{"completed only", TodoUpdate{Completed: &done}, Todo{ID: 1, Title: "Study Tempo", Description: "traces", Completed: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			todo := Todo{ID: 1, Title: "Study Tempo", Description: "traces"}
			tt.update.Apply(&todo)
			assert.Equal(t, tt.want, todo)
		})
	}
}
