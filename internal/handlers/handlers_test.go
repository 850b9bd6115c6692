package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/video-summarizer/internal/cleanup"
	"github.com/codebuildervaibhav/video-summarizer/internal/logging"
	"github.com/codebuildervaibhav/video-summarizer/internal/monitor"
	"github.com/codebuildervaibhav/video-summarizer/internal/pipeline"
	"github.com/codebuildervaibhav/video-summarizer/internal/storage"
	"github.com/codebuildervaibhav/video-summarizer/internal/summarization"
	"github.com/codebuildervaibhav/video-summarizer/internal/transcription"
	"github.com/codebuildervaibhav/video-summarizer/internal/types"
)

type stubExtractor struct{ err error }

func (s *stubExtractor) Extract(ctx context.Context, media *types.UploadedMedia, threads int) (*types.ExtractedAudio, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &types.ExtractedAudio{
		Data:          []byte("RIFF-wav-bytes"),
		SampleRate:    types.SampleRate,
		Channels:      types.Channels,
		BitsPerSample: types.BitsPerSample,
		Threads:       threads,
	}, nil
}

type stubTranscriber struct{}

func (stubTranscriber) Backend() string { return "stub" }

func (stubTranscriber) Transcribe(ctx context.Context, audio *types.ExtractedAudio, model types.ModelSize, language string, onSample func(monitor.Sample)) (*types.Transcription, error) {
	return &types.Transcription{Text: "hola a todos", Language: language, Model: model}, nil
}

type stubSummarizer struct{}

func (stubSummarizer) Summarize(ctx context.Context, gen summarization.Generator, model, text, instruction string) (*types.Summary, error) {
	return &types.Summary{Text: "## Puntos\n\n- **saludo** inicial", Model: model, Prompt: instruction}, nil
}

type stubModels struct{}

func (stubModels) Names() []string { return []string{"gpt-4o-mini"} }

func (stubModels) Has(name string) bool { return name == "gpt-4o-mini" }

func (stubModels) Get(context.Context, string) (summarization.Generator, error) { return nil, nil }

type stubExporter struct {
	base  string
	files []storage.ExportFile
	err   error
}

func (s *stubExporter) Export(ctx context.Context, base string, files []storage.ExportFile) (string, error) {
	s.base, s.files = base, files
	if s.err != nil {
		return "", s.err
	}
	return "https://drive.example/folder", nil
}

func newTestApp(t *testing.T, ext *stubExtractor, exporter Exporter) *fiber.App {
	t.Helper()
	files, err := cleanup.NewTempFiles(t.TempDir(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	opts := pipeline.Options{
		MaxUploadBytes:      1024,
		AllowedExtensions:   []string{".mp4"},
		DefaultThreads:      2,
		MaxThreads:          4,
		Languages:           []string{"es", "en"},
		DefaultLanguage:     "es",
		DefaultModel:        types.ModelSmall,
		DefaultSummaryModel: "gpt-4o-mini",
		DefaultPrompt:       "Resuma el texto.",
	}
	orch := pipeline.New(pipeline.NewStore(time.Hour), nil, ext, stubTranscriber{}, stubSummarizer{}, stubModels{}, opts, nil)

	logs := logging.NewLogBuffer(10)
	logs.Write([]byte("server started\n"))

	app := fiber.New()
	NewAPI(orch, files, exporter, logs, nil).Register(app)
	return app
}

func do(t *testing.T, app *fiber.App, req *http.Request) (int, []byte) {
	t.Helper()
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, body
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func uploadRequest(t *testing.T, path, filename, mime string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", mime)
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(data)
	w.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func createSession(t *testing.T, app *fiber.App) string {
	t.Helper()
	status, body := do(t, app, postJSON("/api/sessions", ""))
	if status != fiber.StatusCreated {
		t.Fatalf("create session: %d %s", status, body)
	}
	var info pipeline.Info
	if err := json.Unmarshal(body, &info); err != nil {
		t.Fatal(err)
	}
	return info.ID
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode error body %q: %v", body, err)
	}
	code, _ := out["code"].(string)
	return code
}

func TestSessionFlow(t *testing.T) {
	exporter := &stubExporter{}
	app := newTestApp(t, &stubExtractor{}, exporter)
	id := createSession(t, app)
	base := "/api/sessions/" + id

	status, body := do(t, app, uploadRequest(t, base+"/upload", "clase.mp4", "video/mp4", []byte("video-bytes")))
	if status != fiber.StatusOK {
		t.Fatalf("upload: %d %s", status, body)
	}

	steps := []struct {
		path, body string
		state      types.State
	}{
		{base + "/extract", `{"threads":3}`, types.StateExtracted},
		{base + "/transcribe", `{"model":"tiny","language":"en"}`, types.StateTranscribed},
		{base + "/summarize", "", types.StateSummarized},
	}
	for _, s := range steps {
		status, body := do(t, app, postJSON(s.path, s.body))
		if status != fiber.StatusOK {
			t.Fatalf("%s: %d %s", s.path, status, body)
		}
		var info pipeline.Info
		if err := json.Unmarshal(body, &info); err != nil {
			t.Fatal(err)
		}
		if info.State != s.state {
			t.Errorf("%s: state = %s, want %s", s.path, info.State, s.state)
		}
	}

	status, body = do(t, app, httptest.NewRequest(http.MethodGet, base+"/audio", nil))
	if status != fiber.StatusOK || string(body) != "RIFF-wav-bytes" {
		t.Errorf("audio: %d %q", status, body)
	}

	status, body = do(t, app, httptest.NewRequest(http.MethodGet, base+"/transcription", nil))
	if status != fiber.StatusOK || string(body) != "hola a todos" {
		t.Errorf("transcription: %d %q", status, body)
	}

	formats := map[string]string{
		"txt":  "**saludo**",
		"md":   "# clase",
		"html": "<strong>saludo</strong>",
		"docx": "PK",
	}
	for format, want := range formats {
		status, body := do(t, app, httptest.NewRequest(http.MethodGet, base+"/summary?format="+format, nil))
		if status != fiber.StatusOK || !bytes.Contains(body, []byte(want)) {
			t.Errorf("summary %s: %d, body missing %q", format, status, want)
		}
	}

	status, body = do(t, app, httptest.NewRequest(http.MethodGet, base+"/summary?format=pdf", nil))
	if status != fiber.StatusBadRequest {
		t.Errorf("summary pdf: %d %s", status, body)
	}

	status, body = do(t, app, postJSON(base+"/export", ""))
	if status != fiber.StatusOK {
		t.Fatalf("export: %d %s", status, body)
	}
	if exporter.base != "clase" || len(exporter.files) != 4 {
		t.Errorf("exported %q with %d files", exporter.base, len(exporter.files))
	}

	status, _ = do(t, app, httptest.NewRequest(http.MethodDelete, base, nil))
	if status != fiber.StatusNoContent {
		t.Errorf("delete: %d", status)
	}
	status, body = do(t, app, httptest.NewRequest(http.MethodGet, base, nil))
	if status != fiber.StatusNotFound || errorCode(t, body) != "ERR_SESSION_NOT_FOUND" {
		t.Errorf("get after delete: %d %s", status, body)
	}
}

func TestErrorMapping(t *testing.T) {
	convErr := &transcription.ConversionError{ExitCode: 1, Stderr: "moov atom not found", Err: errors.New("exit status 1")}
	app := newTestApp(t, &stubExtractor{err: convErr}, nil)
	id := createSession(t, app)
	base := "/api/sessions/" + id

	tests := []struct {
		name   string
		req    *http.Request
		status int
		code   string
	}{
		{"extract before upload", postJSON(base+"/extract", ""), fiber.StatusConflict, "ERR_STAGE_NOT_READY"},
		{"summary before summarize", httptest.NewRequest(http.MethodGet, base+"/summary", nil), fiber.StatusConflict, "ERR_STAGE_NOT_READY"},
		{"unknown session", postJSON("/api/sessions/nope/extract", ""), fiber.StatusNotFound, "ERR_SESSION_NOT_FOUND"},
		{"wrong extension", uploadRequest(t, base+"/upload", "clase.avi", "video/x-msvideo", []byte("x")), fiber.StatusUnsupportedMediaType, "ERR_INVALID_FORMAT"},
		{"too large", uploadRequest(t, base+"/upload", "clase.mp4", "video/mp4", make([]byte, 2048)), fiber.StatusRequestEntityTooLarge, "ERR_FILE_TOO_LARGE"},
		{"bad language", postJSON(base+"/transcribe", `{"language":"xx"}`), fiber.StatusBadRequest, "ERR_INVALID_OPTION"},
		{"unknown summary model", postJSON(base+"/summarize", `{"model":"gpt-undefined"}`), fiber.StatusBadRequest, "ERR_INVALID_OPTION"},
		{"export unconfigured", postJSON(base+"/export", ""), fiber.StatusServiceUnavailable, "ERR_DRIVE_UNAVAILABLE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, app, tt.req)
			if status != tt.status || errorCode(t, body) != tt.code {
				t.Errorf("got %d %s, want %d %s", status, body, tt.status, tt.code)
			}
		})
	}

	status, body := do(t, app, uploadRequest(t, base+"/upload", "clase.mp4", "video/mp4", []byte("broken")))
	if status != fiber.StatusOK {
		t.Fatalf("upload: %d %s", status, body)
	}
	status, body = do(t, app, postJSON(base+"/extract", ""))
	if status != fiber.StatusUnprocessableEntity {
		t.Fatalf("extract: %d %s", status, body)
	}
	var out map[string]any
	json.Unmarshal(body, &out)
	if out["stderr"] != "moov atom not found" || out["code"] != "ERR_CONVERSION_FAILED" {
		t.Errorf("conversion error body = %v", out)
	}

	_, body = do(t, app, httptest.NewRequest(http.MethodGet, base, nil))
	var info pipeline.Info
	json.Unmarshal(body, &info)
	if info.State != types.StateUploaded || info.Audio != nil {
		t.Errorf("failed extraction changed session: %+v", info)
	}
}

func TestOptionsHealthLogs(t *testing.T) {
	app := newTestApp(t, &stubExtractor{}, nil)

	status, body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/options", nil))
	if status != fiber.StatusOK {
		t.Fatalf("options: %d", status)
	}
	var opts struct {
		ModelSizes    []string `json:"model_sizes"`
		SummaryModels []string `json:"summary_models"`
		MaxThreads    int      `json:"max_threads"`
		DriveExport   bool     `json:"drive_export"`
	}
	if err := json.Unmarshal(body, &opts); err != nil {
		t.Fatal(err)
	}
	if len(opts.ModelSizes) != 5 || len(opts.SummaryModels) != 1 || opts.MaxThreads != 4 || opts.DriveExport {
		t.Errorf("options = %+v", opts)
	}

	status, body = do(t, app, httptest.NewRequest(http.MethodGet, "/health", nil))
	if status != fiber.StatusOK || !bytes.Contains(body, []byte(`"backend":"stub"`)) {
		t.Errorf("health: %d %s", status, body)
	}

	status, body = do(t, app, httptest.NewRequest(http.MethodGet, "/logs", nil))
	if status != fiber.StatusOK || !bytes.Contains(body, []byte("server started")) {
		t.Errorf("logs: %d %s", status, body)
	}
}

func TestProgressRequiresUpgrade(t *testing.T) {
	app := newTestApp(t, &stubExtractor{}, nil)
	status, _ := do(t, app, httptest.NewRequest(http.MethodGet, "/ws/sessions/abc/progress", nil))
	if status != fiber.StatusUpgradeRequired {
		t.Errorf("status = %d, want 426", status)
	}
}
