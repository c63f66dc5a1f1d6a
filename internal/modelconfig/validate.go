package modelconfig

import "fmt"

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.ModelID == "" {
		return ValidationError{"meta.model_id", "required"}
	}

	// === Model ===
	if cfg.Model.HiddenSize < 1 || cfg.Model.HiddenSize > 256 {
		return ValidationError{"model.hidden_size", "must be in [1, 256]"}
	}

	// === Training ===
	t := cfg.Training
	if t.Epochs < 1 {
		return ValidationError{"training.epochs", "must be >= 1"}
	}
	if t.BatchSize < 1 {
		return ValidationError{"training.batch_size", "must be >= 1"}
	}
	if t.LearningRate <= 0 || t.LearningRate > 1 {
		return ValidationError{"training.learning_rate", "must be in (0, 1]"}
	}
	if t.Patience < 0 {
		return ValidationError{"training.patience", "must be >= 0"}
	}
	if t.MinDelta < 0 {
		return ValidationError{"training.min_delta", "must be >= 0"}
	}
	if t.ClipNorm < 0 {
		return ValidationError{"training.clip_norm", "must be >= 0 (0 disables clipping)"}
	}
	if t.MaxWindows < 0 {
		return ValidationError{"training.max_windows", "must be >= 0"}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	if cfg.Training.ClipNorm == 0 {
		warnings = append(warnings, Warning{
			Code:    "NO_CLIPPING",
			Message: "clip_norm = 0: BPTT gradient 폭주 위험",
		})
	}

	if cfg.Training.Patience >= cfg.Training.Epochs {
		warnings = append(warnings, Warning{
			Code:    "PATIENCE_UNUSED",
			Message: "patience >= epochs: early stopping이 동작하지 않음",
		})
	}

	// 윈도우 제한 없음 → 장기 시계열에서 학습 시간 급증
	if cfg.Training.MaxWindows == 0 {
		warnings = append(warnings, Warning{
			Code:    "UNBOUNDED_WINDOWS",
			Message: "max_windows = 0: 2010년 이후 전체 윈도우로 학습",
		})
	}

	return warnings
}
