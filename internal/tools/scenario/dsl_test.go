package scenario

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeScenarioFixture(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestLoadScenarioFromFileCollectsSteps(t *testing.T) {
	path := writeScenarioFixture(t, "steps.lua", `
local scene = Scenario.new("steps")
scene:post({message_num = 7, agent_id = 2, x = 10, y = 5000, checksum = 5012})
scene:expect_rejected({message_num = 8, agent_id = 2})
scene:process()
scene:process({batches = 1})
scene:drain()
scene:expect_highest(7)
scene:expect_actions(1)
return scene
`)

	scenario, err := LoadScenarioFromFile(path)
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	if scenario.Name != "steps" {
		t.Fatalf("name = %q, want steps", scenario.Name)
	}

	kinds := make([]string, 0, len(scenario.Steps))
	for _, step := range scenario.Steps {
		kinds = append(kinds, step.Kind)
	}
	want := "post,expect_rejected,process,process,drain,expect_highest,expect_actions"
	if got := strings.Join(kinds, ","); got != want {
		t.Fatalf("steps = %s, want %s", got, want)
	}

	post := scenario.Steps[0].Args
	if post["message_num"] != 7 || post["checksum"] != 5012 {
		t.Fatalf("post args = %v", post)
	}
	if len(scenario.Steps[2].Args) != 0 {
		t.Fatalf("bare process args = %v, want empty", scenario.Steps[2].Args)
	}
	if scenario.Steps[3].Args["batches"] != 1 {
		t.Fatalf("process args = %v, want batches=1", scenario.Steps[3].Args)
	}
	if scenario.Steps[5].Args["value"] != 7 {
		t.Fatalf("expect_highest args = %v", scenario.Steps[5].Args)
	}
}

func TestLoadScenarioFromFileDefaultsNameToFile(t *testing.T) {
	path := writeScenarioFixture(t, "unnamed.lua", `return Scenario.new()`)

	scenario, err := LoadScenarioFromFile(path)
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	if scenario.Name != "unnamed" {
		t.Fatalf("name = %q, want unnamed", scenario.Name)
	}
}

func TestLoadScenarioFromFileErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "syntax", body: `local scene = `},
		{name: "no return", body: `local scene = Scenario.new("x")`},
		{name: "wrong return", body: `return 42`},
		{name: "negative highest", body: `local s = Scenario.new("x"); s:expect_highest(-1); return s`},
		{name: "post without table", body: `local s = Scenario.new("x"); s:post(5); return s`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScenarioFixture(t, "bad.lua", tt.body)
			if _, err := LoadScenarioFromFile(path); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadScenarioFromFileMissing(t *testing.T) {
	if _, err := LoadScenarioFromFile(filepath.Join(t.TempDir(), "missing.lua")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
