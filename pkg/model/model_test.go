package model

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// identityArtifact is a two layer linear autoencoder that reproduces a
// width-3 input exactly.
const identityArtifact = `{
	"manifest": {"name": "identity", "version": "1", "input_dim": 3, "calibrated_threshold": 0.2},
	"layers": [
		{"weights": [[1, 0], [0, 1], [0, 0]], "bias": [0, 0], "activation": "linear"},
		{"weights": [[1, 0, 0], [0, 1, 0]], "bias": [0, 0, 0.5], "activation": "linear"}
	]
}`

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)
	return logger
}

func TestLoadDensePredict(t *testing.T) {
	m, err := LoadDense(strings.NewReader(identityArtifact))
	if err != nil {
		t.Fatalf("LoadDense error: %v", err)
	}
	if !m.Loaded() {
		t.Fatalf("model not loaded")
	}
	if m.Manifest().CalibratedThreshold != 0.2 {
		t.Fatalf("calibrated threshold = %v, want 0.2", m.Manifest().CalibratedThreshold)
	}

	batch := mat.NewDense(2, 3, []float64{1, 2, 3, -4, 5, -6})
	got, err := m.Predict(batch)
	if err != nil {
		t.Fatalf("Predict error: %v", err)
	}

	want := mat.NewDense(2, 3, []float64{1, 2, 0.5, -4, 5, 0.5})
	if !mat.Equal(got, want) {
		t.Fatalf("Predict = %v, want %v", mat.Formatted(got), mat.Formatted(want))
	}

	if _, err := m.Predict(mat.NewDense(1, 4, nil)); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("Predict wrong width error = %v, want ErrShapeMismatch", err)
	}
}

func TestLoadDenseActivations(t *testing.T) {
	artifact := `{"layers": [{"weights": [[1, 0], [0, 1]], "bias": [0, 0], "activation": "relu"}]}`
	m, err := LoadDense(strings.NewReader(artifact))
	if err != nil {
		t.Fatalf("LoadDense error: %v", err)
	}
	if m.Manifest().InputDim != 2 {
		t.Fatalf("input dim = %d, want 2", m.Manifest().InputDim)
	}

	got, err := m.Predict(mat.NewDense(1, 2, []float64{-1, 3}))
	if err != nil {
		t.Fatalf("Predict error: %v", err)
	}
	if got.At(0, 0) != 0 || got.At(0, 1) != 3 {
		t.Fatalf("relu output = %v, want [0 3]", mat.Formatted(got))
	}
}

func TestLoadDenseRejectsInvalidArtifacts(t *testing.T) {
	tests := map[string]string{
		"not json":           `{"layers": [`,
		"no layers":          `{"layers": []}`,
		"empty weights":      `{"layers": [{"weights": [], "bias": []}]}`,
		"ragged weights":     `{"layers": [{"weights": [[1, 0], [1]], "bias": [0, 0]}]}`,
		"bias width":         `{"layers": [{"weights": [[1, 0], [0, 1]], "bias": [0]}]}`,
		"broken chain":       `{"layers": [{"weights": [[1], [1]], "bias": [0]}, {"weights": [[1, 0], [0, 1]], "bias": [0, 0]}]}`,
		"not reconstructing": `{"layers": [{"weights": [[1], [1]], "bias": [0]}]}`,
		"unknown activation": `{"layers": [{"weights": [[1, 0], [0, 1]], "bias": [0, 0], "activation": "softplus"}]}`,
		"manifest mismatch":  `{"manifest": {"input_dim": 5}, "layers": [{"weights": [[1, 0], [0, 1]], "bias": [0, 0]}]}`,
	}

	for name, artifact := range tests {
		if _, err := LoadDense(strings.NewReader(artifact)); !errors.Is(err, ErrInvalidModel) {
			t.Errorf("%s: LoadDense error = %v, want ErrInvalidModel", name, err)
		}
	}
}

type fakeFetcher struct {
	body string
	err  error
	keys []string
}

func (f *fakeFetcher) DownloadFile(_ context.Context, key string, dest string) error {
	f.keys = append(f.keys, key)
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(dest, []byte(f.body), 0o600)
}

func TestLoadFetchesArtifact(t *testing.T) {
	fetcher := &fakeFetcher{body: identityArtifact}
	cfg := Config{
		Backend:  BackendDense,
		Path:     filepath.Join(t.TempDir(), "model.json"),
		S3Key:    "models/identity.json",
		InputDim: 3,
	}

	m, err := Load(context.Background(), cfg, fetcher, testLogger())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !m.Loaded() || m.Manifest().Name != "identity" {
		t.Fatalf("unexpected model %+v", m.Manifest())
	}
	if len(fetcher.keys) != 1 || fetcher.keys[0] != cfg.S3Key {
		t.Fatalf("fetched keys = %v, want [%s]", fetcher.keys, cfg.S3Key)
	}
}

func TestLoadFailureIsUnavailable(t *testing.T) {
	tests := map[string]struct {
		cfg     Config
		fetcher ArtifactFetcher
	}{
		"missing file":    {cfg: Config{Backend: BackendDense, Path: filepath.Join(t.TempDir(), "absent.json")}},
		"fetch failed":    {cfg: Config{Backend: BackendDense, Path: filepath.Join(t.TempDir(), "m.json"), S3Key: "k"}, fetcher: &fakeFetcher{err: errors.New("denied")}},
		"no fetcher":      {cfg: Config{Backend: BackendDense, Path: "m.json", S3Key: "k"}},
		"width mismatch":  {cfg: Config{Backend: BackendDense, Path: "m.json", S3Key: "k", InputDim: 107}, fetcher: &fakeFetcher{body: identityArtifact}},
		"remote no url":   {cfg: Config{Backend: BackendRemote}},
		"unknown backend": {cfg: Config{Backend: "onnx"}},
	}

	for name, tt := range tests {
		if tt.cfg.S3Key != "" && tt.fetcher != nil {
			tt.cfg.Path = filepath.Join(t.TempDir(), "model.json")
		}
		m, err := Load(context.Background(), tt.cfg, tt.fetcher, testLogger())
		if err == nil {
			t.Errorf("%s: Load succeeded, want error", name)
			continue
		}
		if m == nil || m.Loaded() {
			t.Errorf("%s: Load returned %v, want an unloaded stand-in", name, m)
		}
	}
}

// echoServer answers every prediction request with the instances it got,
// shifted by offset.
func echoServer(t *testing.T, offset float64) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req predictRequest
			if err := jsoniter.Unmarshal(message, &req); err != nil {
				t.Errorf("decode request: %v", err)
				return
			}
			resp := predictResponse{Predictions: req.Instances}
			for _, row := range resp.Predictions {
				for j := range row {
					row[j] += offset
				}
			}
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestRemoteModelPredict(t *testing.T) {
	srv := echoServer(t, 1)
	defer srv.Close()

	m := NewRemoteModel(wsURL(srv), Manifest{Name: "echo", InputDim: 2}, testLogger())
	defer m.Close()

	if !m.Loaded() {
		t.Fatalf("remote model not loaded")
	}

	got, err := m.Predict(mat.NewDense(2, 2, []float64{1, 2, 3, 4}))
	if err != nil {
		t.Fatalf("Predict error: %v", err)
	}
	want := mat.NewDense(2, 2, []float64{2, 3, 4, 5})
	if !mat.Equal(got, want) {
		t.Fatalf("Predict = %v, want %v", mat.Formatted(got), mat.Formatted(want))
	}

	if _, err := m.Predict(mat.NewDense(1, 3, nil)); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("Predict wrong width error = %v, want ErrShapeMismatch", err)
	}
}

func TestRemoteModelUnreachable(t *testing.T) {
	srv := echoServer(t, 0)
	url := wsURL(srv)
	srv.Close()

	m := NewRemoteModel(url, Manifest{InputDim: 2}, testLogger(), WithRetryInterval(time.Hour))
	if m.Loaded() {
		t.Fatalf("model reported loaded without a server")
	}
	if _, err := m.Predict(mat.NewDense(1, 2, nil)); err == nil {
		t.Fatalf("Predict succeeded without a server")
	}
}

func TestToDenseRejectsShape(t *testing.T) {
	if _, err := toDense([][]float64{{1, 2}}, 2, 2); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("row count error = %v, want ErrShapeMismatch", err)
	}
	if _, err := toDense([][]float64{{1, 2}, {3}}, 2, 2); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("ragged error = %v, want ErrShapeMismatch", err)
	}
}
