package ledger

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestJSONLRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "fills.jsonl")

	recorder, err := NewJSONLRecorder(path)
	if err != nil {
		t.Fatalf("NewJSONLRecorder error: %v", err)
	}
	fill := FillRecord{
		Symbol:      "EWA",
		OrderID:     "ord-1",
		Side:        "sell",
		Event:       "fill",
		FilledQty:   120,
		PositionQty: -120,
		Ts:          time.Now().UTC(),
	}
	recorder.Record(fill)
	if err := recorder.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open recorded file: %v", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	if !scanner.Scan() {
		t.Fatalf("expected one line in recorder output")
	}
	var decoded FillRecord
	if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
		t.Fatalf("json decode: %v", err)
	}
	if decoded.Symbol != fill.Symbol || decoded.PositionQty != fill.PositionQty {
		t.Fatalf("unexpected decoded fill: %+v", decoded)
	}
}

func TestJSONLRecorderCloseIdempotent(t *testing.T) {
	recorder, err := NewJSONLRecorder(filepath.Join(t.TempDir(), "fills.jsonl"))
	if err != nil {
		t.Fatalf("NewJSONLRecorder error: %v", err)
	}
	if err := recorder.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := recorder.Close(); err != nil {
		t.Fatalf("second close must be a no-op: %v", err)
	}
}
