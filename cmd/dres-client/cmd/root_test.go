package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Sentinel-Gate/dres-client/internal/config"
	"github.com/Sentinel-Gate/dres-client/internal/domain/dres"
)

// fakeDRES is a minimal DRES server recording what it receives.
type fakeDRES struct {
	srv *httptest.Server

	mu       sync.Mutex
	requests []recordedRequest
}

type recordedRequest struct {
	Method string
	Path   string
	Body   []byte
}

func newFakeDRES(t *testing.T) *fakeDRES {
	t.Helper()
	f := &fakeDRES{}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeDRES) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: body})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	reply := func(status int, v any) {
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(v)
	}
	failure := func(status int, msg string) {
		reply(status, map[string]any{"status": false, "description": msg})
	}

	if r.URL.Path != "/api/v2/login" && r.URL.Path != "/api/v2/status/time" && r.URL.Query().Get("session") != "sess-1" {
		failure(http.StatusUnauthorized, "Unauthorized")
		return
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/v2/login":
		var req dres.LoginRequest
		json.Unmarshal(body, &req)
		if req.Username != "alice" || req.Password != "secret" {
			failure(http.StatusUnauthorized, "Invalid credentials")
			return
		}
		reply(http.StatusOK, dres.User{ID: "u1", Username: "alice", Role: "PARTICIPANT", SessionID: "sess-1"})

	case r.Method == http.MethodGet && r.URL.Path == "/api/v2/client/evaluation/list":
		reply(http.StatusOK, []dres.Evaluation{{ID: "E1", Name: "first"}, {ID: "E2", Name: "second"}})

	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/v2/client/evaluation/currentTask/"):
		reply(http.StatusOK, dres.TaskInfo{Name: "kis-" + strings.TrimPrefix(r.URL.Path, "/api/v2/client/evaluation/currentTask/"), Duration: 300})

	case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/api/v2/submit/"):
		reply(http.StatusOK, dres.SubmissionStatus{Status: true, Submission: "CORRECT", Description: "ok"})

	case r.Method == http.MethodPost && (r.URL.Path == "/api/v2/log/result" || r.URL.Path == "/api/v2/log/query"):
		reply(http.StatusOK, dres.SuccessStatus{Status: true, Description: "logged"})

	case r.Method == http.MethodGet && r.URL.Path == "/api/v2/status/time":
		reply(http.StatusOK, dres.CurrentTime{TimeStamp: 1700000000000})

	default:
		failure(http.StatusNotFound, "Not found")
	}
}

// requestsTo returns the recorded requests whose path starts with prefix.
func (f *fakeDRES) requestsTo(prefix string) []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedRequest
	for _, r := range f.requests {
		if strings.HasPrefix(r.Path, prefix) {
			out = append(out, r)
		}
	}
	return out
}

// dataDirFor writes dresapi.json pointing at the fake server and, if
// password is not empty, credentials.json for alice.
func dataDirFor(t *testing.T, f *fakeDRES, password string) string {
	t.Helper()
	u, err := url.Parse(f.srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	cfg := `{"host": "` + u.Hostname() + `", "port": ` + u.Port() + `, "tls": false}`
	if err := os.WriteFile(filepath.Join(dir, config.ConfigFile), []byte(cfg), 0600); err != nil {
		t.Fatal(err)
	}
	if password != "" {
		creds := `{"username": "alice", "password": "` + password + `"}`
		if err := os.WriteFile(filepath.Join(dir, config.CredentialsFile), []byte(creds), 0600); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"DRES_HOST", "DRES_PORT", "DRES_TLS", "DRES_USER", "DRES_PASSWORD", "DRES_DATA_DIR"} {
		t.Setenv(key, "")
	}
}

// resetFlags restores every flag of c and its children to its default.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, child := range c.Commands() {
		resetFlags(child)
	}
}

// execute runs the CLI with args and returns stdout and stderr.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCommands_Registered(t *testing.T) {
	want := []string{"config", "login", "evaluations", "task", "submit", "log", "status", "version"}
	registered := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		registered[c.Name()] = true
	}
	for _, name := range want {
		if !registered[name] {
			t.Errorf("%s command not registered with rootCmd", name)
		}
	}
}

func TestRootCmd_FlagDefaults(t *testing.T) {
	flags := rootCmd.PersistentFlags()

	timeout, err := flags.GetDuration("timeout")
	if err != nil {
		t.Fatalf("failed to get timeout flag: %v", err)
	}
	if timeout.String() != "30s" {
		t.Errorf("timeout default = %v, want 30s", timeout)
	}

	output, _ := flags.GetString("output")
	if output != "json" {
		t.Errorf("output default = %q, want json", output)
	}
	format, _ := flags.GetString("log-format")
	if format != "text" {
		t.Errorf("log-format default = %q, want text", format)
	}
}

func TestVersionCmd(t *testing.T) {
	stdout, _, err := execute(t, "", "version")
	if err != nil {
		t.Fatalf("version error: %v", err)
	}
	if !strings.HasPrefix(stdout, "dres-client "+Version) {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestRootCmd_InvalidOutputFormat(t *testing.T) {
	_, _, err := execute(t, "", "--output", "xml", "version")
	if err == nil || !strings.Contains(err.Error(), "unsupported output format") {
		t.Errorf("error = %v, want unsupported output format", err)
	}
}

func TestConfigShow_MasksPassword(t *testing.T) {
	clearEnv(t)
	f := newFakeDRES(t)
	dir := dataDirFor(t, f, "secret")

	stdout, _, err := execute(t, "", "--data-dir", dir, "config", "show")
	if err != nil {
		t.Fatalf("config show error: %v", err)
	}
	if strings.Contains(stdout, "secret") {
		t.Error("config show leaked the password")
	}

	var view map[string]any
	if err := json.Unmarshal([]byte(stdout), &view); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, stdout)
	}
	if view["password"] != "********" || view["user"] != "alice" || view["hasCredentials"] != true {
		t.Errorf("view = %v", view)
	}
	if view["endpoint"] != f.srv.URL+"/" {
		t.Errorf("endpoint = %v, want %s/", view["endpoint"], f.srv.URL)
	}
}

func TestConfigShow_WithoutCredentials(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	stdout, _, err := execute(t, "", "--data-dir", dir, "--output", "yaml", "config", "show")
	if err != nil {
		t.Fatalf("config show error: %v", err)
	}
	for _, want := range []string{"host: localhost", "port: 8080", "hasCredentials: false", "endpoint: http://localhost:8080/"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("output missing %q:\n%s", want, stdout)
		}
	}
}

func TestConfigSave(t *testing.T) {
	clearEnv(t)
	f := newFakeDRES(t)
	dir := dataDirFor(t, f, "secret")

	stdout, _, err := execute(t, "", "--data-dir", dir, "config", "save", "--host", "dres.example.org", "--port", "443", "--tls")
	if err != nil {
		t.Fatalf("config save error: %v", err)
	}
	if !strings.Contains(stdout, "https://dres.example.org:443/") {
		t.Errorf("stdout = %q", stdout)
	}

	data, err := os.ReadFile(filepath.Join(dir, config.ConfigFile))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "secret") || strings.Contains(string(data), "alice") {
		t.Errorf("saved file contains credentials:\n%s", data)
	}

	cfg, err := config.NewResolver(config.NewPaths(dir), testLogger()).Resolve()
	if err != nil {
		t.Fatalf("Resolve() after save error: %v", err)
	}
	if cfg.Host != "dres.example.org" || cfg.Port != 443 || !cfg.TLS {
		t.Errorf("resolved = %+v", cfg)
	}
}

func TestConfigSave_KeepsUnsetFields(t *testing.T) {
	clearEnv(t)
	f := newFakeDRES(t)
	dir := dataDirFor(t, f, "")
	u, _ := url.Parse(f.srv.URL)

	if _, _, err := execute(t, "", "--data-dir", dir, "config", "save", "--tls"); err != nil {
		t.Fatalf("config save error: %v", err)
	}

	cfg, err := config.NewResolver(config.NewPaths(dir), testLogger()).LoadRaw()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Host != u.Hostname() || !cfg.TLS {
		t.Errorf("resolved = %+v", cfg)
	}
}

func TestConfigSave_InvalidPort(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	_, _, err := execute(t, "", "--data-dir", dir, "config", "save", "--port", "70000")
	if err == nil || !strings.Contains(err.Error(), "port must be at most 65535") {
		t.Errorf("error = %v, want port validation failure", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, config.ConfigFile)); !os.IsNotExist(statErr) {
		t.Error("invalid configuration must not be written")
	}
}

func TestConfigPath(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	stdout, _, err := execute(t, "", "--data-dir", dir, "config", "path")
	if err != nil {
		t.Fatalf("config path error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 2 || lines[0] != filepath.Join(dir, config.ConfigFile) || lines[1] != filepath.Join(dir, config.CredentialsFile) {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestLoginCmd(t *testing.T) {
	clearEnv(t)
	f := newFakeDRES(t)
	dir := dataDirFor(t, f, "secret")

	stdout, _, err := execute(t, "", "--data-dir", dir, "-o", "yaml", "login")
	if err != nil {
		t.Fatalf("login error: %v", err)
	}
	if !strings.Contains(stdout, "sessionId: sess-1") || !strings.Contains(stdout, "username: alice") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestLoginCmd_MissingCredentials(t *testing.T) {
	clearEnv(t)
	f := newFakeDRES(t)
	dir := dataDirFor(t, f, "")

	_, _, err := execute(t, "", "--data-dir", dir, "login")
	if !errors.Is(err, config.ErrCredentialsMissing) {
		t.Fatalf("error = %v, want ErrCredentialsMissing", err)
	}
	if !strings.Contains(err.Error(), filepath.Join(dir, config.CredentialsFile)) {
		t.Errorf("error should name the credentials path: %v", err)
	}
	if len(f.requestsTo("/")) != 0 {
		t.Error("no request should reach the server")
	}
}

func TestLoginCmd_Rejected(t *testing.T) {
	clearEnv(t)
	f := newFakeDRES(t)
	dir := dataDirFor(t, f, "wrong")

	_, _, err := execute(t, "", "--data-dir", dir, "login")
	if !errors.Is(err, dres.ErrAuthentication) {
		t.Fatalf("error = %v, want ErrAuthentication", err)
	}
	if !strings.Contains(err.Error(), "Invalid credentials") {
		t.Errorf("error should carry the server description: %v", err)
	}
}

func TestLoginCmd_EnvFile(t *testing.T) {
	clearEnv(t)
	f := newFakeDRES(t)
	dir := dataDirFor(t, f, "")

	// godotenv does not override variables that are already set.
	for _, key := range []string{"DRES_USER", "DRES_PASSWORD"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	envPath := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envPath, []byte("DRES_USER=alice\nDRES_PASSWORD=secret\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, _, err := execute(t, "", "--data-dir", dir, "--env-file", envPath, "login"); err != nil {
		t.Fatalf("login error: %v", err)
	}
}

func TestEvaluationsCmd(t *testing.T) {
	clearEnv(t)
	f := newFakeDRES(t)
	dir := dataDirFor(t, f, "secret")

	stdout, _, err := execute(t, "", "--data-dir", dir, "evaluations")
	if err != nil {
		t.Fatalf("evaluations error: %v", err)
	}
	var evaluations []dres.Evaluation
	if err := json.Unmarshal([]byte(stdout), &evaluations); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(evaluations) != 2 || evaluations[1].ID != "E2" {
		t.Errorf("evaluations = %+v", evaluations)
	}
}

func TestTaskCmd(t *testing.T) {
	clearEnv(t)
	f := newFakeDRES(t)
	dir := dataDirFor(t, f, "secret")

	stdout, _, err := execute(t, "", "--data-dir", dir, "task", "--evaluation", "E1")
	if err != nil {
		t.Fatalf("task error: %v", err)
	}
	if !strings.Contains(stdout, `"name": "kis-E1"`) {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestSubmitItemCmd(t *testing.T) {
	clearEnv(t)
	f := newFakeDRES(t)
	dir := dataDirFor(t, f, "secret")

	stdout, _, err := execute(t, "", "--data-dir", dir, "submit", "item", "v_00123",
		"--evaluation", "E2", "--start", "1000", "--end", "4000", "--collection", "V3C")
	if err != nil {
		t.Fatalf("submit item error: %v", err)
	}
	if !strings.Contains(stdout, `"submission": "CORRECT"`) {
		t.Errorf("stdout = %q", stdout)
	}

	submits := f.requestsTo("/api/v2/submit/")
	if len(submits) != 1 || submits[0].Path != "/api/v2/submit/E2" {
		t.Fatalf("submit requests = %+v", submits)
	}
	var body dres.Submission
	if err := json.Unmarshal(submits[0].Body, &body); err != nil {
		t.Fatal(err)
	}
	a := body.AnswerSets[0].Answers[0]
	if a.MediaItemName != "v_00123" || a.MediaItemCollectionName != "V3C" || a.Start == nil || *a.Start != 1000 || a.End == nil || *a.End != 4000 {
		t.Errorf("answer = %+v", a)
	}
}

func TestSubmitItemCmd_NoRange(t *testing.T) {
	clearEnv(t)
	f := newFakeDRES(t)
	dir := dataDirFor(t, f, "secret")

	if _, _, err := execute(t, "", "--data-dir", dir, "submit", "item", "v_1", "--evaluation", "E1"); err != nil {
		t.Fatalf("submit item error: %v", err)
	}
	submits := f.requestsTo("/api/v2/submit/")
	if len(submits) != 1 {
		t.Fatalf("submit requests = %d, want 1", len(submits))
	}
	if strings.Contains(string(submits[0].Body), "start") || strings.Contains(string(submits[0].Body), "end") {
		t.Errorf("unset range should be omitted: %s", submits[0].Body)
	}
}

func TestSubmitCmd_UnknownEvaluation(t *testing.T) {
	clearEnv(t)
	f := newFakeDRES(t)
	dir := dataDirFor(t, f, "secret")

	_, _, err := execute(t, "", "--data-dir", dir, "submit", "text", "x", "--evaluation", "E9")
	if err == nil || !strings.Contains(err.Error(), `evaluation "E9" not found`) {
		t.Errorf("error = %v, want not found", err)
	}
	if len(f.requestsTo("/api/v2/submit/")) != 0 {
		t.Error("nothing should be submitted")
	}
}

func TestSubmitTextCmd_NoEvaluation(t *testing.T) {
	clearEnv(t)
	f := newFakeDRES(t)
	dir := dataDirFor(t, f, "secret")

	_, _, err := execute(t, "", "--data-dir", dir, "submit", "text", "red car")
	if !errors.Is(err, dres.ErrNoEvaluation) {
		t.Fatalf("error = %v, want ErrNoEvaluation", err)
	}
	if len(f.requestsTo("/api/v2/submit/")) != 0 {
		t.Error("nothing should be submitted")
	}
}

func TestLogResultsCmd_Stdin(t *testing.T) {
	clearEnv(t)
	f := newFakeDRES(t)
	dir := dataDirFor(t, f, "secret")

	body := `{"timestamp": 1700000000000, "sortType": "score", "resultSetAvailability": "top-k",
		"results": [{"item": "v_1", "rank": 1}], "events": []}`
	stdout, _, err := execute(t, body, "--data-dir", dir, "log", "results", "-")
	if err != nil {
		t.Fatalf("log results error: %v", err)
	}
	if !strings.Contains(stdout, `"status": true`) {
		t.Errorf("stdout = %q", stdout)
	}

	logs := f.requestsTo("/api/v2/log/result")
	if len(logs) != 1 {
		t.Fatalf("log requests = %d, want 1", len(logs))
	}
	var got dres.QueryResultLog
	if err := json.Unmarshal(logs[0].Body, &got); err != nil {
		t.Fatal(err)
	}
	if got.Timestamp != 1700000000000 || got.SortType != "score" || len(got.Results) != 1 || got.Results[0].Item != "v_1" {
		t.Errorf("sent log = %+v", got)
	}
}

func TestLogEventsCmd_File(t *testing.T) {
	clearEnv(t)
	f := newFakeDRES(t)
	dir := dataDirFor(t, f, "secret")

	path := filepath.Join(t.TempDir(), "events.json")
	body := `{"timestamp": 42, "events": [{"timestamp": 40, "category": "TEXT", "type": "clip", "value": "dog"}]}`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}

	if _, _, err := execute(t, "", "--data-dir", dir, "log", "events", path); err != nil {
		t.Fatalf("log events error: %v", err)
	}
	logs := f.requestsTo("/api/v2/log/query")
	if len(logs) != 1 || !strings.Contains(string(logs[0].Body), `"value":"dog"`) {
		t.Errorf("log requests = %+v", logs)
	}
}

func TestLogCmd_InvalidBody(t *testing.T) {
	clearEnv(t)
	f := newFakeDRES(t)
	dir := dataDirFor(t, f, "secret")

	_, _, err := execute(t, "not json", "--data-dir", dir, "log", "events", "-")
	if err == nil || !strings.Contains(err.Error(), "failed to parse log body") {
		t.Errorf("error = %v, want parse failure", err)
	}
	if len(f.requestsTo("/")) != 0 {
		t.Error("no request should reach the server")
	}
}

func TestStatusCmd_WithoutCredentials(t *testing.T) {
	clearEnv(t)
	f := newFakeDRES(t)
	dir := dataDirFor(t, f, "")

	stdout, _, err := execute(t, "", "--data-dir", dir, "status")
	if err != nil {
		t.Fatalf("status error: %v", err)
	}
	if !strings.Contains(stdout, `"timeStamp": 1700000000000`) || !strings.Contains(stdout, "2023-11-14T22:13:20Z") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestStatusCmd_MetricsAndTrace(t *testing.T) {
	clearEnv(t)
	f := newFakeDRES(t)
	dir := dataDirFor(t, f, "")

	_, stderr, err := execute(t, "", "--data-dir", dir, "--metrics", "--trace", "status")
	if err != nil {
		t.Fatalf("status error: %v", err)
	}
	if !strings.Contains(stderr, `dres_client_requests_total{operation="server_time",status="ok"} 1`) {
		t.Errorf("metrics dump missing counter:\n%s", stderr)
	}
	if !strings.Contains(stderr, "dres.server_time") {
		t.Errorf("trace output missing span:\n%s", stderr)
	}
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"text", "json", "pretty", ""} {
		if _, err := newLogger(io.Discard, "debug", format); err != nil {
			t.Errorf("newLogger(%q) error: %v", format, err)
		}
	}
	if _, err := newLogger(io.Discard, "info", "xml"); err == nil {
		t.Error("newLogger(xml) expected error")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]string{
		"debug":   "DEBUG",
		"WARN":    "WARN",
		"warning": "WARN",
		"error":   "ERROR",
		"bogus":   "INFO",
	}
	for in, want := range tests {
		if got := parseLogLevel(in).String(); got != want {
			t.Errorf("parseLogLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
