package selection

// ScorePolicy combines mention frequency and priority into a selection score
type ScorePolicy interface {
	Score(mentionFrequency, priority int) float64
}

// WeightedScore = mention_frequency × Weight + priority
// priority는 건너뛸 때마다 +1 → 언급이 적은 티커도 결국 선정됨 (starvation 방지)
type WeightedScore struct {
	Weight float64
}

// Score implements ScorePolicy
func (w WeightedScore) Score(mentionFrequency, priority int) float64 {
	return float64(mentionFrequency)*w.Weight + float64(priority)
}

// ScoreFunc adapts a plain function to ScorePolicy
type ScoreFunc func(mentionFrequency, priority int) float64

// Score implements ScorePolicy
func (f ScoreFunc) Score(mentionFrequency, priority int) float64 {
	return f(mentionFrequency, priority)
}
