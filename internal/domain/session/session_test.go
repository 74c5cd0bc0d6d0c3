package session

import (
	"encoding/json"
	"testing"
)

func testCatalog() *ToolCatalog {
	return NewToolCatalog([]CatalogEntry{
		{Name: "weather_lookup", UpstreamName: "weather", ToolName: "lookup", InputSchema: json.RawMessage(`{}`)},
	})
}

func TestNewChatSessionSeedsSystemMessage(t *testing.T) {
	sess := NewChatSession("id-1", "gpt-4", "You are helpful.", testCatalog(), nil)
	msgs := sess.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 seeded message, got %d", len(msgs))
	}
	if msgs[0].Role != RoleSystem || msgs[0].Content != "You are helpful." {
		t.Errorf("unexpected seeded message: %+v", msgs[0])
	}
}

func TestAppendMessageAndSteps(t *testing.T) {
	sess := NewChatSession("id-2", "gpt-4", "", testCatalog(), nil)
	sess.AppendMessage(Message{Role: RoleUser, Content: "hi"})
	sess.AppendMessage(Message{Role: RoleAssistant, Content: "hello"})

	if got := len(sess.Messages()); got != 2 {
		t.Fatalf("expected 2 messages, got %d", got)
	}

	sess.AppendStep(Step{ToolName: "lookup", UpstreamID: "weather"})
	sess.AppendStep(Step{ToolName: "lookup", UpstreamID: "weather"})
	steps := sess.Steps()
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
	if steps[0].Index != 0 || steps[1].Index != 1 {
		t.Errorf("expected steps indexed in order, got %d, %d", steps[0].Index, steps[1].Index)
	}
}

func TestResetPreservesLeadingSystemMessage(t *testing.T) {
	sess := NewChatSession("id-3", "gpt-4", "system prompt", testCatalog(), nil)
	sess.AppendMessage(Message{Role: RoleUser, Content: "hi"})
	sess.AppendMessage(Message{Role: RoleAssistant, Content: "hello"})
	sess.AppendStep(Step{ToolName: "lookup"})

	sess.Reset()

	msgs := sess.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected reset to leave only the system message, got %d messages", len(msgs))
	}
	if msgs[0].Role != RoleSystem {
		t.Errorf("expected remaining message to be system role, got %s", msgs[0].Role)
	}
	if len(sess.Steps()) != 0 {
		t.Errorf("expected reset to clear steps")
	}
}

func TestResetWithoutSystemMessageClearsEverything(t *testing.T) {
	sess := NewChatSession("id-4", "gpt-4", "", testCatalog(), nil)
	sess.AppendMessage(Message{Role: RoleUser, Content: "hi"})
	sess.Reset()
	if len(sess.Messages()) != 0 {
		t.Errorf("expected no messages to remain, got %d", len(sess.Messages()))
	}
}

func TestGenerateSessionIDIsUniqueAndHex(t *testing.T) {
	a, err := GenerateSessionID()
	if err != nil {
		t.Fatalf("GenerateSessionID: %v", err)
	}
	b, err := GenerateSessionID()
	if err != nil {
		t.Fatalf("GenerateSessionID: %v", err)
	}
	if a == b {
		t.Errorf("expected distinct session ids")
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}

func TestStoreCreateGetDelete(t *testing.T) {
	store := NewStore()
	mgr := NewManager(store)

	sess, err := mgr.Create("gpt-4", "", testCatalog(), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := mgr.Get(sess.ID()); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := mgr.Delete(sess.ID()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := mgr.Get(sess.ID()); err != ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound after delete, got %v", err)
	}
}

func TestToolCatalogLookup(t *testing.T) {
	cat := testCatalog()
	if cat.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", cat.Len())
	}
	entry, ok := cat.Lookup("weather_lookup")
	if !ok {
		t.Fatalf("expected lookup to find weather_lookup")
	}
	if entry.UpstreamName != "weather" {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if _, ok := cat.Lookup("missing"); ok {
		t.Errorf("expected lookup of unknown name to fail")
	}
}

func TestMergeReasoningDetailsByIndex(t *testing.T) {
	var acc []ReasoningDetail
	acc = MergeReasoningDetails(acc, ReasoningDetail{Index: 0, Type: "text", Text: "Let "})
	acc = MergeReasoningDetails(acc, ReasoningDetail{Index: 0, Text: "me think"})
	acc = MergeReasoningDetails(acc, ReasoningDetail{Index: 1, Type: "text", Text: "Second block"})

	if len(acc) != 2 {
		t.Fatalf("expected 2 merged details, got %d", len(acc))
	}
	if acc[0].Text != "Let me think" {
		t.Errorf("expected merged text, got %q", acc[0].Text)
	}
	if acc[1].Text != "Second block" {
		t.Errorf("expected second block unmerged, got %q", acc[1].Text)
	}
}

func TestMergeReasoningDetailsByID(t *testing.T) {
	var acc []ReasoningDetail
	acc = MergeReasoningDetails(acc, ReasoningDetail{ID: "r1", Text: "a"})
	acc = MergeReasoningDetails(acc, ReasoningDetail{ID: "r1", Text: "b"})
	if len(acc) != 1 || acc[0].Text != "ab" {
		t.Errorf("expected single merged detail by id, got %+v", acc)
	}
}
