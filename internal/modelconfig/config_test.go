package modelconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_RepoConfig(t *testing.T) {
	path := "../../config/lstm/model.yaml"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skip("config file not found")
	}

	cfg, yamlData, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "lstm_close_v1", cfg.Meta.ModelID)
	assert.Equal(t, 25, cfg.Training.Epochs)
	assert.Equal(t, 64, cfg.Training.BatchSize)
	assert.Equal(t, 10, cfg.Training.Patience)
	assert.NotEmpty(t, yamlData)

	// 기본값과 동일한 파일 → 동일 해시
	fileHash, err := Hash(cfg)
	require.NoError(t, err)
	defaultHash, err := Hash(Default())
	require.NoError(t, err)
	assert.Equal(t, defaultHash, fileHash)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := writeYAML(t, "training:\n  epochs: 5\n")

	cfg, _, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Training.Epochs)
	assert.Equal(t, 64, cfg.Training.BatchSize)
	assert.Equal(t, 32, cfg.Model.HiddenSize)
}

func TestLoad_UnknownFieldFails(t *testing.T) {
	path := writeYAML(t, "training:\n  epoch: 5\n")

	_, _, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_InvalidValueFails(t *testing.T) {
	path := writeYAML(t, "training:\n  learning_rate: 0\n")

	_, data, err := Load(path)
	var vErr ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "training.learning_rate", vErr.Field)
	assert.NotEmpty(t, data)
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestHash(t *testing.T) {
	a := Default()
	b := Default()

	ha, err := Hash(a)
	require.NoError(t, err)
	assert.Len(t, ha, 64)

	hb, _ := Hash(b)
	assert.Equal(t, ha, hb)

	b.Training.Epochs = 30
	hb, _ = Hash(b)
	assert.NotEqual(t, ha, hb)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{name: "default ok", mutate: func(*Config) {}},
		{name: "missing model id", mutate: func(c *Config) { c.Meta.ModelID = "" }, field: "meta.model_id"},
		{name: "hidden too large", mutate: func(c *Config) { c.Model.HiddenSize = 1024 }, field: "model.hidden_size"},
		{name: "zero epochs", mutate: func(c *Config) { c.Training.Epochs = 0 }, field: "training.epochs"},
		{name: "zero batch", mutate: func(c *Config) { c.Training.BatchSize = 0 }, field: "training.batch_size"},
		{name: "negative patience", mutate: func(c *Config) { c.Training.Patience = -1 }, field: "training.patience"},
		{name: "negative clip", mutate: func(c *Config) { c.Training.ClipNorm = -1 }, field: "training.clip_norm"},
		{name: "negative max windows", mutate: func(c *Config) { c.Training.MaxWindows = -5 }, field: "training.max_windows"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var vErr ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestWarn(t *testing.T) {
	assert.Empty(t, Warn(Default()))

	cfg := Default()
	cfg.Training.ClipNorm = 0
	cfg.Training.Patience = 30
	cfg.Training.MaxWindows = 0

	codes := make([]string, 0)
	for _, w := range Warn(cfg) {
		codes = append(codes, w.Code)
	}
	assert.ElementsMatch(t, []string{"NO_CLIPPING", "PATIENCE_UNUSED", "UNBOUNDED_WINDOWS"}, codes)
}
