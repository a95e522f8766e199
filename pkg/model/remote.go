package model

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

type predictRequest struct {
	Instances [][]float64 `json:"instances"`
}

type predictResponse struct {
	Predictions [][]float64 `json:"predictions"`
	Error       string      `json:"error,omitempty"`
}

type RemoteOption func(*RemoteModel)

func WithTimeouts(read, write time.Duration) RemoteOption {
	return func(m *RemoteModel) {
		m.readTimeout = read
		m.writeTimeout = write
	}
}

func WithRetryInterval(d time.Duration) RemoteOption {
	return func(m *RemoteModel) {
		m.retryInterval = d
	}
}

// RemoteModel forwards batches to a model server over a websocket. One
// request is in flight at a time; a broken connection is dropped and
// redialled on the next use.
type RemoteModel struct {
	url      string
	manifest Manifest
	log      *logrus.Logger

	mu            sync.Mutex
	conn          *websocket.Conn
	lastDial      time.Time
	pingInterval  time.Duration
	readTimeout   time.Duration
	writeTimeout  time.Duration
	retryInterval time.Duration
}

func NewRemoteModel(url string, manifest Manifest, log *logrus.Logger, opts ...RemoteOption) *RemoteModel {
	m := &RemoteModel{
		url:           url,
		manifest:      manifest,
		log:           log,
		pingInterval:  30 * time.Second,
		readTimeout:   10 * time.Second,
		writeTimeout:  5 * time.Second,
		retryInterval: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.mu.Lock()
	if err := m.dialLocked(); err != nil {
		m.log.WithFields(logrus.Fields{
			"url":   url,
			"error": err.Error(),
		}).Warn("Initial connection to model server failed, will retry on demand")
	}
	m.mu.Unlock()

	return m
}

func (m *RemoteModel) Manifest() Manifest {
	return m.manifest
}

// Loaded reports whether a connection to the model server is open,
// redialling at most once per retry interval.
func (m *RemoteModel) Loaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil {
		return true
	}
	if time.Since(m.lastDial) < m.retryInterval {
		return false
	}
	if err := m.dialLocked(); err != nil {
		m.log.WithError(err).Warn("Reconnect to model server failed")
		return false
	}
	return true
}

func (m *RemoteModel) dialLocked() error {
	m.lastDial = time.Now()

	if m.url == "" {
		return errors.New("model server URL not configured")
	}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.Dial(m.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", m.url, err)
	}

	conn.SetPingHandler(func(appData string) error {
		if err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(m.writeTimeout)); err != nil {
			m.log.WithError(err).Warn("Error sending pong to model server")
		}
		return nil
	})

	m.conn = conn
	m.log.WithField("url", m.url).Info("Connected to model server")

	go m.keepAlive(conn)

	return nil
}

func (m *RemoteModel) keepAlive(conn *websocket.Conn) {
	ticker := time.NewTicker(m.pingInterval)
	defer ticker.Stop()

	for range ticker.C {
		m.mu.Lock()
		if m.conn != conn {
			m.mu.Unlock()
			return
		}

		err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(m.writeTimeout))
		if err != nil {
			m.log.WithError(err).Warn("Ping to model server failed, marking connection as dead")
			m.dropLocked()
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()
	}
}

func (m *RemoteModel) dropLocked() {
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
}

// Close shuts the connection down; keepAlive exits on its next tick.
func (m *RemoteModel) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropLocked()
}

func (m *RemoteModel) Predict(batch *mat.Dense) (*mat.Dense, error) {
	rows, cols := batch.Dims()
	if m.manifest.InputDim != 0 && cols != m.manifest.InputDim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrShapeMismatch, cols, m.manifest.InputDim)
	}

	req := predictRequest{Instances: make([][]float64, rows)}
	for i := 0; i < rows; i++ {
		req.Instances[i] = mat.Row(nil, i, batch)
	}
	payload, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("error encoding batch: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		if err := m.dialLocked(); err != nil {
			return nil, fmt.Errorf("cannot connect to model server: %w", err)
		}
	}
	conn := m.conn

	if err := conn.SetWriteDeadline(time.Now().Add(m.writeTimeout)); err != nil {
		m.dropLocked()
		return nil, fmt.Errorf("error setting write deadline: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		m.dropLocked()
		return nil, fmt.Errorf("error sending batch: %w", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(m.readTimeout)); err != nil {
		m.dropLocked()
		return nil, fmt.Errorf("error setting read deadline: %w", err)
	}
	_, message, err := conn.ReadMessage()
	if err != nil {
		m.dropLocked()
		return nil, fmt.Errorf("error reading prediction: %w", err)
	}

	_ = conn.SetReadDeadline(time.Time{})
	_ = conn.SetWriteDeadline(time.Time{})

	var resp predictResponse
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(message, &resp); err != nil {
		return nil, fmt.Errorf("error decoding prediction: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("model server error: %s", resp.Error)
	}

	return toDense(resp.Predictions, rows, cols)
}

func toDense(rows [][]float64, wantRows, wantCols int) (*mat.Dense, error) {
	if len(rows) != wantRows {
		return nil, fmt.Errorf("%w: got %d predictions, want %d", ErrShapeMismatch, len(rows), wantRows)
	}

	data := make([]float64, 0, wantRows*wantCols)
	for i, row := range rows {
		if len(row) != wantCols {
			return nil, fmt.Errorf("%w: prediction %d has %d values, want %d", ErrShapeMismatch, i, len(row), wantCols)
		}
		data = append(data, row...)
	}
	return mat.NewDense(wantRows, wantCols, data), nil
}
