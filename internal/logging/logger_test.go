package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// TestAllCategoriesLog tests that all categories create log files when debug mode is on
func TestAllCategoriesLog(t *testing.T) {
	logs := filepath.Join(t.TempDir(), "logs")
	if err := Initialize(logs, Config{DebugMode: true, Level: "debug"}); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}
	defer CloseAll()

	categories := []Category{
		CategoryBoot, CategoryStore, CategoryProject, CategoryWorkspace, CategoryIndex,
		CategoryAgent, CategoryAssistant, CategoryAPI, CategoryPreview, CategoryServer, CategoryBackup,
	}

	for _, cat := range categories {
		if !IsCategoryEnabled(cat) {
			t.Errorf("Category %s should be enabled", cat)
		}
		logger := Get(cat)
		logger.Info("Test info message for %s", cat)
		logger.Debug("Test debug message for %s", cat)
		logger.Warn("Test warn message for %s", cat)
		logger.Error("Test error message for %s", cat)
	}
	Store("Convenience store log")
	Agent("Convenience agent log")

	CloseAll()

	entries, err := os.ReadDir(logs)
	if err != nil {
		t.Fatalf("Failed to read logs dir: %v", err)
	}
	for _, cat := range categories {
		found := false
		for _, entry := range entries {
			if strings.HasSuffix(entry.Name(), "_"+string(cat)+".log") {
				found = true
				content, err := os.ReadFile(filepath.Join(logs, entry.Name()))
				if err != nil {
					t.Errorf("Failed to read log file for %s: %v", cat, err)
					continue
				}
				if !strings.Contains(string(content), "Test info message for "+string(cat)) {
					t.Errorf("Log file for %s missing info line", cat)
				}
				break
			}
		}
		if !found {
			t.Errorf("No log file found for category: %s", cat)
		}
	}
}

// TestDebugModeDisabled tests that no logs are created when debug mode is off
func TestDebugModeDisabled(t *testing.T) {
	logs := filepath.Join(t.TempDir(), "logs")
	if err := Initialize(logs, Config{DebugMode: false}); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}
	defer CloseAll()

	if IsDebugMode() {
		t.Error("Expected debug mode to be disabled")
	}
	Get(CategoryBoot).Info("should not be written")

	if _, err := os.Stat(logs); !os.IsNotExist(err) {
		t.Errorf("Logs directory should not exist in production mode")
	}
}

func TestCategoryFilter(t *testing.T) {
	logs := filepath.Join(t.TempDir(), "logs")
	cfg := Config{DebugMode: true, Categories: map[string]bool{"api": false, "agent": true}}
	if err := Initialize(logs, cfg); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}
	defer CloseAll()

	if IsCategoryEnabled(CategoryAPI) {
		t.Error("api category should be disabled")
	}
	if !IsCategoryEnabled(CategoryAgent) {
		t.Error("agent category should be enabled")
	}
	if !IsCategoryEnabled(CategoryIndex) {
		t.Error("unlisted categories default to enabled")
	}
}

func TestLevelFiltering(t *testing.T) {
	logs := filepath.Join(t.TempDir(), "logs")
	if err := Initialize(logs, Config{DebugMode: true, Level: "warn"}); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}
	Get(CategoryIndex).Info("info is filtered")
	Get(CategoryIndex).Warn("warn is kept")
	CloseAll()

	entries, _ := os.ReadDir(logs)
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), "_index.log") {
			continue
		}
		content, _ := os.ReadFile(filepath.Join(logs, entry.Name()))
		if strings.Contains(string(content), "info is filtered") {
			t.Error("info line should be filtered at warn level")
		}
		if !strings.Contains(string(content), "warn is kept") {
			t.Error("warn line should be written")
		}
		return
	}
	t.Fatal("index log file not created")
}

func TestConcurrentGet(t *testing.T) {
	logs := filepath.Join(t.TempDir(), "logs")
	if err := Initialize(logs, Config{DebugMode: true}); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}
	defer CloseAll()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			Get(CategoryWorkspace).Info("goroutine %d", n)
		}(i)
	}
	wg.Wait()

	if Get(CategoryWorkspace) != Get(CategoryWorkspace) {
		t.Error("Get should return the cached logger")
	}
}

func TestAuditJSONLines(t *testing.T) {
	logs := filepath.Join(t.TempDir(), "logs")
	if err := Initialize(logs, Config{DebugMode: true}); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}
	if err := InitAudit(); err != nil {
		t.Fatalf("InitAudit: %v", err)
	}
	Audit("p1").ActionComplete("createFile", "/index.html", true, "")
	Audit("p1").LLMCall("gemini-2.0-flash", 12, false, "boom")
	CloseAll()

	matches, _ := filepath.Glob(filepath.Join(logs, "*_audit.jsonl"))
	if len(matches) != 1 {
		t.Fatalf("expected one audit file, got %v", matches)
	}
	f, err := os.Open(matches[0])
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var events []AuditEvent
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e AuditEvent
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("bad audit line %q: %v", sc.Text(), err)
		}
		events = append(events, e)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].EventType != AuditActionComplete || events[0].ProjectID != "p1" {
		t.Errorf("unexpected first event: %+v", events[0])
	}
	if events[1].EventType != AuditLLMError || events[1].Error != "boom" {
		t.Errorf("unexpected second event: %+v", events[1])
	}
}
