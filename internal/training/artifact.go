package training

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/wonny/stockcast/internal/contracts"
	"github.com/wonny/stockcast/internal/lstm"
	"github.com/wonny/stockcast/internal/series"
)

// Artifact 학습된 모델 + scaler (티커당 하나, 재학습 시 덮어씀)
// ⭐ SSOT: Forecaster는 이 구조체만 읽음
type Artifact struct {
	Ticker         string        `json:"ticker"`
	TrainedAt      time.Time     `json:"trained_at"`
	ConfigHash     string        `json:"config_hash"`
	SequenceLength int           `json:"sequence_length"`
	EpochsRun      int           `json:"epochs_run"`
	BestEpoch      int           `json:"best_epoch"`
	FinalLoss      float64       `json:"final_loss"`
	Windows        int           `json:"windows"`
	DataEnd        time.Time     `json:"data_end"`
	Model          *lstm.Model   `json:"model"`
	Scaler         series.Scaler `json:"scaler"`
}

// Validate checks that a loaded artifact is usable for rollout
func (a *Artifact) Validate() error {
	if a.Model == nil {
		return fmt.Errorf("artifact %s has no model", a.Ticker)
	}
	if a.SequenceLength < 1 {
		return fmt.Errorf("artifact %s: invalid sequence length %d", a.Ticker, a.SequenceLength)
	}
	return a.Model.Validate()
}

// ArtifactStore persists artifacts keyed by ticker
type ArtifactStore interface {
	Save(ctx context.Context, artifact *Artifact) error
	Load(ctx context.Context, ticker string) (*Artifact, error)
	List(ctx context.Context) ([]string, error)
}

// FileStore stores artifacts as <dir>/<TICKER>.json
// 쓰기는 temp 파일 → fsync → rename, 실패 시 기존 파일은 그대로
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed artifact store
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the artifact directory
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(ticker string) (string, error) {
	if ticker == "" || strings.ContainsAny(ticker, `/\`) || strings.Contains(ticker, "..") {
		return "", fmt.Errorf("invalid ticker %q", ticker)
	}
	return filepath.Join(s.dir, strings.ToUpper(ticker)+".json"), nil
}

// Save atomically replaces the artifact for artifact.Ticker
func (s *FileStore) Save(ctx context.Context, artifact *Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	final, err := s.path(artifact.Ticker)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, filepath.Base(final)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	enc := json.NewEncoder(tmp)
	if err := enc.Encode(artifact); err != nil {
		tmp.Close()
		return fmt.Errorf("encode artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		return fmt.Errorf("replace artifact: %w", err)
	}
	committed = true
	return nil
}

// Load reads the artifact for ticker; missing → contracts.ErrArtifactNotFound
func (s *FileStore) Load(ctx context.Context, ticker string) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.path(ticker)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", ticker, contracts.ErrArtifactNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}

	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", ticker, err)
	}
	if err := artifact.Validate(); err != nil {
		return nil, err
	}
	return &artifact, nil
}

// List returns the tickers that have an artifact, sorted
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list model dir: %w", err)
	}

	tickers := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		tickers = append(tickers, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(tickers)
	return tickers, nil
}
