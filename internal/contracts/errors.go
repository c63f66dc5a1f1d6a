package contracts

import (
	"errors"
	"fmt"
)

// ⭐ SSOT: 예측 파이프라인 센티넬 에러는 여기서만 정의
var (
	// ErrInsufficientData 윈도우를 만들 수 없을 만큼 시계열이 짧음
	ErrInsufficientData = errors.New("insufficient data for windowing")
	// ErrArtifactNotFound 해당 티커의 학습된 모델이 없음
	ErrArtifactNotFound = errors.New("model artifact not found")
	// ErrInsufficientHistory 시드 윈도우를 채울 최근 종가가 부족함
	ErrInsufficientHistory = errors.New("insufficient recent history")
	// ErrNonFiniteForecast 롤아웃 중 NaN/Inf 발생
	ErrNonFiniteForecast = errors.New("non-finite forecast value")
	// ErrUpstreamData 가격 소스 조회 실패
	ErrUpstreamData = errors.New("upstream price data unavailable")
	// ErrNoData 가격 소스에 해당 티커 데이터가 없음
	ErrNoData = errors.New("no price data")
	// ErrTrainingDiverged 학습 손실이 유한하지 않음
	ErrTrainingDiverged = errors.New("training diverged")
	// ErrUnitTimeout 티커 작업이 제한 시간을 넘김
	ErrUnitTimeout = errors.New("unit timed out")
)

// Stage names the pipeline step a unit of work reached
type Stage string

const (
	StageSelecting   Stage = "SELECTING"
	StageTraining    Stage = "TRAINING"
	StageForecasting Stage = "FORECASTING"
)

// UnitError wraps a per-ticker failure with the stage it happened in
type UnitError struct {
	Ticker string
	Stage  Stage
	Err    error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Ticker, e.Stage, e.Err)
}

func (e *UnitError) Unwrap() error {
	return e.Err
}
