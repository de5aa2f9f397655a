package tools_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/toolbridge/toolbridge/internal/tools"
)

// ─── Calculator ───────────────────────────────────────────────────────────────

func TestCalculator(t *testing.T) {
	tool := tools.CalculatorTool()

	tests := []struct {
		name    string
		input   map[string]interface{}
		want    string
		wantErr bool
	}{
		{"addition", map[string]interface{}{"operation": "addition", "number1": 15.0, "number2": 30.0}, "45", false},
		{"subtraction", map[string]interface{}{"operation": "subtraction", "number1": 10.0, "number2": 4.0}, "6", false},
		{"multiplication", map[string]interface{}{"operation": "multiplication", "number1": 6.0, "number2": 7.0}, "42", false},
		{"division", map[string]interface{}{"operation": "division", "number1": 9.0, "number2": 2.0}, "4.5", false},
		{"division by zero", map[string]interface{}{"operation": "division", "number1": 1.0, "number2": 0.0}, "", true},
		{"unknown operation", map[string]interface{}{"operation": "modulo", "number1": 1.0, "number2": 2.0}, "", true},
		{"missing operands", map[string]interface{}{"operation": "addition"}, "", true},
		{"stringly numbers", map[string]interface{}{"operation": "addition", "number1": "2", "number2": "3"}, "5", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tool.Execute(context.Background(), tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("result = %q, want %q", got, tt.want)
			}
		})
	}
}

// ─── File sandbox ─────────────────────────────────────────────────────────────

func TestFileSandbox(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "hello.txt"), []byte("hi there"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "sub"), 0755); err != nil {
		t.Fatal(err)
	}

	sandbox, err := tools.NewFileSandbox(root)
	if err != nil {
		t.Fatalf("NewFileSandbox: %v", err)
	}

	got, err := sandbox.ReadFile("hello.txt")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got != "hi there" {
		t.Errorf("content = %q", got)
	}

	entries, err := sandbox.ListDirectory("")
	if err != nil {
		t.Fatalf("ListDirectory: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("entries = %d, want 2", len(entries))
	}
}

func TestFileSandboxRejectsEscape(t *testing.T) {
	root := t.TempDir()
	sandbox, err := tools.NewFileSandbox(root)
	if err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{"../etc/passwd", "../../secret", "sub/../../other"} {
		if _, err := sandbox.ReadFile(path); err == nil {
			t.Errorf("ReadFile(%q) escaped the sandbox", path)
		}
	}

	// Cleaned traversal that stays inside the root is fine.
	if err := os.WriteFile(filepath.Join(root, "ok.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := sandbox.ReadFile("sub/../ok.txt"); err != nil {
		t.Errorf("in-root traversal rejected: %v", err)
	}
}

// ─── Notes ────────────────────────────────────────────────────────────────────

func TestNotesStore(t *testing.T) {
	store, err := tools.OpenNotesStore(filepath.Join(t.TempDir(), "notes.db"))
	if err != nil {
		t.Fatalf("OpenNotesStore: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	n, err := store.Save(ctx, "groceries", "milk, eggs")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if n.ID == "" {
		t.Fatal("no id assigned")
	}

	got, err := store.Get(ctx, n.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "groceries" || got.Content != "milk, eggs" {
		t.Errorf("unexpected note: %+v", got)
	}

	notes, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("len(notes) = %d, want 1", len(notes))
	}

	existed, err := store.Delete(ctx, n.ID)
	if err != nil || !existed {
		t.Fatalf("Delete = (%v, %v), want (true, nil)", existed, err)
	}
	existed, err = store.Delete(ctx, n.ID)
	if err != nil || existed {
		t.Fatalf("second Delete = (%v, %v), want (false, nil)", existed, err)
	}
}

func TestNoteToolsRoundTrip(t *testing.T) {
	store, err := tools.OpenNotesStore(filepath.Join(t.TempDir(), "notes.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	ctx := context.Background()
	save := tools.SaveNoteTool(store)
	list := tools.ListNotesTool(store)
	del := tools.DeleteNoteTool(store)

	out, err := save.Execute(ctx, map[string]interface{}{"title": "t", "content": "c"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	var saved tools.Note
	if err := json.Unmarshal([]byte(out), &saved); err != nil {
		t.Fatalf("save output not json: %v", err)
	}

	out, err = list.Execute(ctx, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, saved.ID) {
		t.Errorf("list output missing saved note: %s", out)
	}

	if _, err := del.Execute(ctx, map[string]interface{}{"id": saved.ID}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := del.Execute(ctx, map[string]interface{}{"id": saved.ID}); err == nil {
		t.Error("deleting a missing note should fail")
	}
}

// ─── Weather ──────────────────────────────────────────────────────────────────

func TestWeatherTool(t *testing.T) {
	geoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("name"); got != "Berlin" {
			t.Errorf("geocoding name = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{
				{"name": "Berlin", "country": "Germany", "latitude": 52.52, "longitude": 13.41},
			},
		})
	}))
	defer geoSrv.Close()

	fcSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"current": map[string]interface{}{
				"temperature_2m":       21.5,
				"wind_speed_10m":       12.0,
				"relative_humidity_2m": 60.0,
				"weather_code":         1,
			},
		})
	}))
	defer fcSrv.Close()

	tool := tools.WeatherTool(tools.NewWeatherClient(geoSrv.URL, fcSrv.URL))
	out, err := tool.Execute(context.Background(), map[string]interface{}{"location": "Berlin"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var report map[string]interface{}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("output not json: %v", err)
	}
	if report["location"] != "Berlin, Germany" {
		t.Errorf("location = %v", report["location"])
	}
	if report["temperature"] != 21.5 {
		t.Errorf("temperature = %v", report["temperature"])
	}
	if report["conditions"] != "partly cloudy" {
		t.Errorf("conditions = %v", report["conditions"])
	}
}

func TestWeatherToolUnknownLocation(t *testing.T) {
	geoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"results": []interface{}{}})
	}))
	defer geoSrv.Close()

	tool := tools.WeatherTool(tools.NewWeatherClient(geoSrv.URL, geoSrv.URL))
	if _, err := tool.Execute(context.Background(), map[string]interface{}{"location": "Nowhereville"}); err == nil {
		t.Fatal("expected error for unknown location")
	}
}
