package modelconfig

// Config는 티커별 LSTM 학습 하이퍼파라미터 전체 설정
type Config struct {
	Meta     Meta     `yaml:"meta" json:"meta"`
	Model    Model    `yaml:"model" json:"model"`
	Training Training `yaml:"training" json:"training"`
}

// Meta 메타 정보
type Meta struct {
	ModelID string `yaml:"model_id" json:"model_id"`
	Version string `yaml:"version" json:"version"`
}

// Model 네트워크 구조 (단일 LSTM 레이어 + dense head)
type Model struct {
	HiddenSize int   `yaml:"hidden_size" json:"hidden_size"`
	Seed       int64 `yaml:"seed" json:"seed"` // 0이면 티커에서 파생
}

// Training 학습 루프 설정
type Training struct {
	Epochs       int     `yaml:"epochs" json:"epochs"`
	BatchSize    int     `yaml:"batch_size" json:"batch_size"`
	LearningRate float64 `yaml:"learning_rate" json:"learning_rate"`
	Patience     int     `yaml:"patience" json:"patience"`       // early stopping (loss 기준)
	MinDelta     float64 `yaml:"min_delta" json:"min_delta"`     // 개선으로 인정할 최소 감소량
	ClipNorm     float64 `yaml:"clip_norm" json:"clip_norm"`     // global-norm gradient clipping
	MaxWindows   int     `yaml:"max_windows" json:"max_windows"` // 0이면 전체 윈도우 사용
}

// Default returns the built-in hyperparameters used when no YAML file is configured
func Default() *Config {
	return &Config{
		Meta: Meta{
			ModelID: "lstm_close_v1",
			Version: "1",
		},
		Model: Model{
			HiddenSize: 32,
		},
		Training: Training{
			Epochs:       25,
			BatchSize:    64,
			LearningRate: 0.001,
			Patience:     10,
			MinDelta:     0,
			ClipNorm:     1.0,
			MaxWindows:   1500,
		},
	}
}
