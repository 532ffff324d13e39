package reconcile

import (
	"testing"
	"time"

	"vibeshell/internal/types"
)

func userMessage(id, text string) types.Message {
	return types.Message{
		Info:  types.MessageInfo{ID: id, Role: types.RoleUser},
		Parts: []types.Part{types.TextPart(text)},
	}
}

func toolPart(id, callID string, status types.ToolStatus) types.Part {
	return types.Part{ID: id, CallID: callID, Type: types.PartTool, Tool: "bash", State: &types.ToolState{Status: status}}
}

func TestApplyPartUpdateCreatesAssistantMessage(t *testing.T) {
	r := New()
	fixed := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }
	r.LoadSnapshot(nil)

	if !r.ApplyPartUpdate(types.TextPart("Hi"), "m1") {
		t.Fatalf("expected update to apply")
	}
	messages := r.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected one message, got %d", len(messages))
	}
	got := messages[0]
	if got.ID() != "m1" || got.Info.Role != types.RoleAssistant {
		t.Fatalf("unexpected message info: %#v", got.Info)
	}
	if len(got.Parts) != 1 || got.Parts[0].Type != types.PartText || got.Parts[0].Text != "Hi" {
		t.Fatalf("unexpected parts: %#v", got.Parts)
	}
	if !got.CreatedAt().Equal(fixed) {
		t.Fatalf("expected created=now, got %s", got.CreatedAt())
	}
}

func TestApplyPartUpdateTextIsIdempotent(t *testing.T) {
	r := New()
	r.ApplyPartUpdate(types.TextPart("Hel"), "m1")
	r.ApplyPartUpdate(types.TextPart("Hello"), "m1")
	r.ApplyPartUpdate(types.TextPart("Hello"), "m1")
	message, ok := r.Get("m1")
	if !ok {
		t.Fatalf("expected message m1")
	}
	if len(message.Parts) != 1 || message.Parts[0].Text != "Hello" {
		t.Fatalf("expected single latest text part, got %#v", message.Parts)
	}
}

func TestApplyPartUpdateToolIdentity(t *testing.T) {
	r := New()
	r.ApplyPartUpdate(types.TextPart("Running"), "m1")
	r.ApplyPartUpdate(toolPart("prt_1", "call_1", types.ToolPending), "m1")
	r.ApplyPartUpdate(toolPart("prt_1", "call_1", types.ToolRunning), "m1")
	r.ApplyPartUpdate(toolPart("prt_1", "call_1", types.ToolCompleted), "m1")
	r.ApplyPartUpdate(toolPart("", "call_2", types.ToolRunning), "m1")
	r.ApplyPartUpdate(toolPart("", "call_2", types.ToolError), "m1")

	message, _ := r.Get("m1")
	if len(message.Parts) != 3 {
		t.Fatalf("expected text plus two tool parts, got %#v", message.Parts)
	}
	if message.Parts[1].ToolStatus() != types.ToolCompleted {
		t.Fatalf("expected first tool completed, got %q", message.Parts[1].ToolStatus())
	}
	if message.Parts[2].ToolStatus() != types.ToolError {
		t.Fatalf("expected second tool error, got %q", message.Parts[2].ToolStatus())
	}
}

func TestApplyPartUpdateMergesToolWithoutID(t *testing.T) {
	r := New()
	bash := types.Part{Type: types.PartTool, Tool: "bash", State: &types.ToolState{Status: types.ToolRunning}}
	r.ApplyPartUpdate(bash, "m1")
	r.ApplyPartUpdate(bash, "m1")

	message, _ := r.Get("m1")
	if len(message.Parts) != 1 {
		t.Fatalf("expected one tool part after repeated update, got %#v", message.Parts)
	}

	done := bash.Clone()
	done.State.Status = types.ToolCompleted
	r.ApplyPartUpdate(done, "m1")
	r.ApplyPartUpdate(types.Part{Type: types.PartTool, Tool: "read", State: &types.ToolState{Status: types.ToolPending}}, "m1")

	message, _ = r.Get("m1")
	if len(message.Parts) != 2 {
		t.Fatalf("expected bash and read tool parts, got %#v", message.Parts)
	}
	if message.Parts[0].ToolStatus() != types.ToolCompleted {
		t.Fatalf("expected bash completed, got %q", message.Parts[0].ToolStatus())
	}
	if message.Parts[1].Tool != "read" {
		t.Fatalf("expected read appended, got %q", message.Parts[1].Tool)
	}
}

func TestApplyPartUpdateIgnoresNonContent(t *testing.T) {
	r := New()
	if r.ApplyPartUpdate(types.Part{Type: types.PartStepStart}, "m1") {
		t.Fatalf("step-start must be ignored")
	}
	if r.ApplyPartUpdate(types.TextPart("x"), "") {
		t.Fatalf("empty message id must be ignored")
	}
	if r.Len() != 0 {
		t.Fatalf("expected empty list, got %d", r.Len())
	}
}

func TestPartUpdatesNeverReorder(t *testing.T) {
	r := New()
	r.LoadSnapshot([]types.Message{userMessage("u1", "one"), userMessage("u2", "two")})
	r.ApplyPartUpdate(types.TextPart("reply"), "a1")
	r.ApplyPartUpdate(types.TextPart("edited"), "u1")
	ids := []string{}
	for _, message := range r.Messages() {
		ids = append(ids, message.ID())
	}
	want := []string{"u1", "u2", "a1"}
	if len(ids) != len(want) {
		t.Fatalf("unexpected ids: %v", ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("unexpected order: %v", ids)
		}
	}
}

func TestLoadSnapshotCollapsesDuplicates(t *testing.T) {
	r := New()
	r.LoadSnapshot([]types.Message{
		userMessage("u1", "first"),
		userMessage("u2", "middle"),
		userMessage("u1", "latest"),
	})
	messages := r.Messages()
	if len(messages) != 2 {
		t.Fatalf("expected duplicates collapsed, got %d", len(messages))
	}
	if messages[0].ID() != "u1" || messages[0].Text() != "latest" {
		t.Fatalf("expected first position with last content, got %#v", messages[0])
	}
}

func TestAppendAndRemoveRollback(t *testing.T) {
	r := New()
	r.LoadSnapshot([]types.Message{userMessage("u1", "one")})
	before := r.Len()
	r.Append(userMessage("local_1", "hello"))
	if r.Len() != before+1 {
		t.Fatalf("expected echo appended")
	}
	if !r.Remove("local_1") {
		t.Fatalf("expected echo removed")
	}
	if r.Len() != before {
		t.Fatalf("expected length restored to %d, got %d", before, r.Len())
	}
	if r.Remove("local_1") {
		t.Fatalf("second remove should report false")
	}
	if _, ok := r.Get("u1"); !ok {
		t.Fatalf("expected index rebuilt after remove")
	}
}

func TestMessagesReturnsDeepCopy(t *testing.T) {
	r := New()
	r.ApplyPartUpdate(toolPart("prt_1", "", types.ToolRunning), "m1")
	messages := r.Messages()
	messages[0].Parts[0].State.Status = types.ToolError
	messages[0].Parts = append(messages[0].Parts, types.TextPart("x"))
	stored, _ := r.Get("m1")
	if len(stored.Parts) != 1 || stored.Parts[0].ToolStatus() != types.ToolRunning {
		t.Fatalf("stored message mutated through copy: %#v", stored.Parts)
	}
}

func TestClear(t *testing.T) {
	r := New()
	r.ApplyPartUpdate(types.TextPart("x"), "m1")
	r.Clear()
	if r.Len() != 0 {
		t.Fatalf("expected empty after Clear")
	}
	if _, ok := r.Get("m1"); ok {
		t.Fatalf("expected index cleared")
	}
}
