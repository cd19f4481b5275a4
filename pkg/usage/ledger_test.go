package usage

import (
	"fmt"
	"testing"
	"time"
)

func TestLedgerRingBound(t *testing.T) {
	l := NewLedger()

	for i := 0; i < MaxLogEntries*3; i++ {
		l.RecordRequest(RequestLog{
			ID:        fmt.Sprintf("req-%d", i),
			Timestamp: time.Now(),
			Provider:  "deepseek",
		})
	}

	got := l.Requests()
	if len(got) != MaxLogEntries {
		t.Fatalf("retained %d entries, want %d", len(got), MaxLogEntries)
	}

	// Oldest retained entry is the first that survived eviction
	if got[0].ID != fmt.Sprintf("req-%d", MaxLogEntries*2) {
		t.Errorf("oldest retained = %s, want req-%d", got[0].ID, MaxLogEntries*2)
	}
	if got[len(got)-1].ID != fmt.Sprintf("req-%d", MaxLogEntries*3-1) {
		t.Errorf("newest retained = %s, want req-%d", got[len(got)-1].ID, MaxLogEntries*3-1)
	}

	if totals := l.Totals(); totals.Requests != MaxLogEntries*3 {
		t.Errorf("request total = %d, want %d", totals.Requests, MaxLogEntries*3)
	}
}

func TestLedgerTotalsSurviveEviction(t *testing.T) {
	l := NewLedger()

	for i := 0; i < MaxLogEntries+50; i++ {
		l.RecordResponse(ResponseLog{
			ID:               fmt.Sprintf("resp-%d", i),
			Provider:         "deepseek",
			PromptTokens:     10,
			CompletionTokens: 5,
			Cost:             0.001,
		})
	}

	totals := l.Totals()
	wantPrompt := int64((MaxLogEntries + 50) * 10)
	if totals.PromptTokens != wantPrompt {
		t.Errorf("prompt token total = %d, want %d", totals.PromptTokens, wantPrompt)
	}
	wantCompletion := int64((MaxLogEntries + 50) * 5)
	if totals.CompletionTokens != wantCompletion {
		t.Errorf("completion token total = %d, want %d", totals.CompletionTokens, wantCompletion)
	}

	wantCost := float64(MaxLogEntries+50) * 0.001
	if diff := totals.TotalCost - wantCost; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("total cost = %v, want %v", totals.TotalCost, wantCost)
	}

	if len(l.Responses()) != MaxLogEntries {
		t.Errorf("retained %d responses, want %d", len(l.Responses()), MaxLogEntries)
	}
}

func TestLedgerOrdering(t *testing.T) {
	l := NewLedger()

	for i := 0; i < 10; i++ {
		l.RecordRequest(RequestLog{ID: fmt.Sprintf("req-%d", i)})
	}

	got := l.Requests()
	for i, entry := range got {
		want := fmt.Sprintf("req-%d", i)
		if entry.ID != want {
			t.Errorf("entry %d = %s, want %s", i, entry.ID, want)
		}
	}
}
