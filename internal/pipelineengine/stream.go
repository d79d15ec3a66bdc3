package pipelineengine

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hoofy-labs/pipeline-engine/internal/runner"
	"github.com/hoofy-labs/pipeline-engine/internal/task"
	"go.uber.org/zap"
)

// handleStreamEvent applies one Runner stream event to tk's transient
// state and forwards telemetry to obs (spec §4.D streaming protocol,
// §4.E.4 partial-content durability, §4.E.5 activity/todo telemetry,
// §4.E.6 stall detection).
func (e *Engine) handleStreamEvent(tk *task.Task, stage task.Stage, ev runner.StreamEvent, obs Observer, stall *stallDetector) {
	obs.emitStream(StreamTelemetry{TaskID: tk.ID, Event: ev})

	switch ev.Type {
	case runner.EventText:
		stall.poke()
		tk.PendingContent += ev.Content
	case runner.EventToolUse:
		stall.poke()
	case runner.EventTodo:
		if ev.Todo != nil {
			e.applyTodoEvent(tk, stage, *ev.Todo)
			obs.emitTodos(TodosTelemetry{TaskID: tk.ID, Stage: stage, Todos: tk.Todos[stage]})
		}
	case runner.EventContext:
		if ev.ContextOK {
			obs.emitContext(ContextTelemetry{TaskID: tk.ID, Stage: stage, UsedTokens: ev.UsedTokens, MaxTokens: ev.MaxTokens})
		}
	case runner.EventError:
		tk.AppendActivity("session-error", ev.Content, e.now())
	}
}

// applyTodoEvent mutates tk's stage-scoped todo list per the parsed
// todo-tool invocation shape (spec §4.D "todo").
func (e *Engine) applyTodoEvent(tk *task.Task, stage task.Stage, ev runner.TodoEvent) {
	if tk.Todos == nil {
		tk.Todos = make(map[task.Stage][]task.TodoItem)
	}

	switch ev.Kind {
	case runner.TodoCreateOne:
		tk.Todos[stage] = append(tk.Todos[stage], task.TodoItem{
			ID:        uuid.NewString(),
			TaskID:    tk.ID,
			Stage:     stage,
			Subject:   ev.Subject,
			Status:    task.TodoPending,
			CreatedAt: e.now(),
			UpdatedAt: e.now(),
		})
	case runner.TodoUpdateOneByID:
		items := tk.Todos[stage]
		for i := range items {
			if items[i].ID == ev.ID {
				items[i].Status = task.TodoStatus(ev.Status)
				items[i].UpdatedAt = e.now()
				break
			}
		}
	case runner.TodoWriteList:
		var items []task.TodoItem
		if err := json.Unmarshal(ev.Items, &items); err == nil {
			for i := range items {
				items[i].TaskID = tk.ID
				items[i].Stage = stage
			}
			tk.Todos[stage] = items
		} else {
			e.logger.Warn("malformed todo write_list payload, ignoring", zap.String("stage", string(stage)))
		}
	}
}
