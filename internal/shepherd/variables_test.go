package shepherd

import (
	"path/filepath"
	"testing"

	"github.com/coldforge/shepherd/internal/models"
	"github.com/coldforge/shepherd/internal/objectStore/bolt"
	secretbolt "github.com/coldforge/shepherd/internal/secretStore/bolt"
)

func TestCombineStackOrderLastWins(t *testing.T) {
	run := &models.Run{
		NamespaceID: "ns", PipelineID: "pipe", RunID: 1,
		Variables: []models.Variable{{Key: "greeting", Value: "from-run", Source: models.VariableSourceRunOptions}},
	}
	task := models.Task{
		ID: "build", Image: "alpine",
		Variables: []models.Variable{{Key: "GREETING", Value: "from-task", Source: models.VariableSourcePipelineConfig}},
	}

	combined := combine(run, task)

	found := false
	for _, v := range combined {
		if v.Key == "GREETING" {
			found = true
			if v.Value != "from-run" {
				t.Fatalf("expected run variable to win over task variable, got %q", v.Value)
			}
		}
	}
	if !found {
		t.Fatal("expected GREETING in combined variables")
	}
}

func TestCombineDropsEmptyKeys(t *testing.T) {
	run := &models.Run{NamespaceID: "ns", PipelineID: "pipe", RunID: 1,
		Variables: []models.Variable{{Key: "  ", Value: "ignored"}}}
	task := models.Task{ID: "build", Image: "alpine"}

	combined := combine(run, task)
	for _, v := range combined {
		if v.Key == "" {
			t.Fatal("expected empty key to be dropped")
		}
	}
}

func TestSystemVariablesInjectAPIToken(t *testing.T) {
	run := &models.Run{NamespaceID: "ns", PipelineID: "pipe", RunID: 7}
	task := models.Task{ID: "build", Image: "alpine", InjectAPIToken: true}

	vars := systemVariables(run, task)

	var token *models.Variable
	for i := range vars {
		if vars[i].Key == "GOFER_API_TOKEN" {
			token = &vars[i]
		}
	}
	if token == nil {
		t.Fatal("expected GOFER_API_TOKEN to be present")
	}
	if token.Value != "secret{{ "+runAPITokenKey(7)+" }}" {
		t.Fatalf("expected token value to reference the run token secret key, got %q", token.Value)
	}
}

func TestSystemVariablesOmitAPITokenWhenNotRequested(t *testing.T) {
	run := &models.Run{NamespaceID: "ns", PipelineID: "pipe", RunID: 7}
	task := models.Task{ID: "build", Image: "alpine"}

	vars := systemVariables(run, task)
	for _, v := range vars {
		if v.Key == "GOFER_API_TOKEN" {
			t.Fatal("did not expect GOFER_API_TOKEN without InjectAPIToken")
		}
	}
}

func TestParseInterpolationToken(t *testing.T) {
	cases := []struct {
		value   string
		wantKey string
		wantOK  bool
	}{
		{"secret{{ my_key }}", "my_key", true},
		{"secret{{my_key}}", "my_key", true},
		{"  secret{{ my_key }}  ", "my_key", true},
		{"pipeline{{ my_key }}", "", false},
		{"plain-value", "", false},
		{"secret{{ my_key }", "", false},
	}

	for _, c := range cases {
		key, ok := parseInterpolationToken("secret", c.value)
		if ok != c.wantOK {
			t.Errorf("parseInterpolationToken(%q) ok = %v, want %v", c.value, ok, c.wantOK)
			continue
		}
		if ok && key != c.wantKey {
			t.Errorf("parseInterpolationToken(%q) key = %q, want %q", c.value, key, c.wantKey)
		}
	}
}

func newTestResolver(t *testing.T) resolver {
	t.Helper()

	objects, err := bolt.New(filepath.Join(t.TempDir(), "objects.db"))
	if err != nil {
		t.Fatal(err)
	}

	secrets, err := secretbolt.New(filepath.Join(t.TempDir(), "secrets.db"), "0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatal(err)
	}

	return resolver{
		namespace: "ns", pipeline: "pipe", runID: 1,
		secretStore: &secrets,
		objectStore: &objects,
	}
}

func TestInterpolateResolvesPipelineSecret(t *testing.T) {
	r := newTestResolver(t)
	if err := r.secretStore.PutSecret(pipelineSecretKey(r.namespace, r.pipeline, "db_password"), "hunter2", false); err != nil {
		t.Fatal(err)
	}

	resolved, err := interpolate([]models.Variable{{Key: "DB_PASSWORD", Value: "secret{{ db_password }}"}}, r)
	if err != nil {
		t.Fatal(err)
	}
	if resolved[0].Value != "hunter2" {
		t.Fatalf("expected resolved secret value, got %q", resolved[0].Value)
	}
}

func TestInterpolateFallsBackToGlobalSecret(t *testing.T) {
	r := newTestResolver(t)
	if err := r.secretStore.PutSecret(globalSecretKey("api_key"), "global-value", false); err != nil {
		t.Fatal(err)
	}

	resolved, err := interpolate([]models.Variable{{Key: "API_KEY", Value: "secret{{ api_key }}"}}, r)
	if err != nil {
		t.Fatal(err)
	}
	if resolved[0].Value != "global-value" {
		t.Fatalf("expected fallback to global secret, got %q", resolved[0].Value)
	}
}

func TestInterpolateResolvesPipelineAndRunObjects(t *testing.T) {
	r := newTestResolver(t)
	if err := r.objectStore.PutObject(pipelineObjectKey(r.namespace, r.pipeline, "build_number"), []byte("42"), false); err != nil {
		t.Fatal(err)
	}
	if err := r.objectStore.PutObject(runObjectKey(r.namespace, r.pipeline, r.runID, "commit_sha"), []byte("abc123"), false); err != nil {
		t.Fatal(err)
	}

	resolved, err := interpolate([]models.Variable{
		{Key: "BUILD_NUMBER", Value: "pipeline{{ build_number }}"},
		{Key: "COMMIT_SHA", Value: "run{{ commit_sha }}"},
	}, r)
	if err != nil {
		t.Fatal(err)
	}
	if resolved[0].Value != "42" {
		t.Fatalf("expected pipeline object value, got %q", resolved[0].Value)
	}
	if resolved[1].Value != "abc123" {
		t.Fatalf("expected run object value, got %q", resolved[1].Value)
	}
}

func TestInterpolatePassesThroughPlainValues(t *testing.T) {
	r := newTestResolver(t)

	resolved, err := interpolate([]models.Variable{{Key: "PLAIN", Value: "just-a-value"}}, r)
	if err != nil {
		t.Fatal(err)
	}
	if resolved[0].Value != "just-a-value" {
		t.Fatalf("expected plain value to pass through, got %q", resolved[0].Value)
	}
}

func TestInterpolateReturnsErrorForMissingSecret(t *testing.T) {
	r := newTestResolver(t)

	_, err := interpolate([]models.Variable{{Key: "MISSING", Value: "secret{{ nope }}"}}, r)
	if err == nil {
		t.Fatal("expected an error for an unresolvable secret reference")
	}
}
