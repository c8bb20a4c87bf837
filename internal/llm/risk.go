package llm

import "fmt"

// Emotion labels produced by classifiers.
const (
	EmotionNeutral      = "中性"
	EmotionAnxious      = "焦虑"
	EmotionDepressed    = "抑郁"
	EmotionIrritable    = "烦躁"
	EmotionSelfNegation = "自我否定"
	EmotionUnknown      = "unknown"
)

// Risk tiers, lowest to highest.
const (
	RiskNone    = "无风险"
	RiskLow     = "低风险"
	RiskMedium  = "中风险"
	RiskHigh    = "高风险"
	RiskUnknown = "unknown"
)

// Emotions lists the closed set of emotion labels.
var Emotions = []string{EmotionNeutral, EmotionAnxious, EmotionDepressed, EmotionIrritable, EmotionSelfNegation}

// RiskPolicy derives a risk tier from an emotion label.
type RiskPolicy func(emotion string) (string, error)

var heuristicRiskTable = map[string]string{
	EmotionNeutral:      RiskNone,
	EmotionAnxious:      RiskLow,
	EmotionIrritable:    RiskLow,
	EmotionDepressed:    RiskMedium,
	EmotionSelfNegation: RiskHigh,
}

// HeuristicRisk maps emotions to risk tiers with a fixed table. It stands in
// for a trained risk model.
func HeuristicRisk(emotion string) (string, error) {
	risk, ok := heuristicRiskTable[emotion]
	if !ok {
		return "", fmt.Errorf("no risk tier for emotion %q", emotion)
	}
	return risk, nil
}

// IsElevatedRisk reports whether the tier requires escalation to in-person help.
func IsElevatedRisk(risk string) bool {
	return risk == RiskHigh || risk == RiskMedium
}

// ValidEmotion reports whether label is in the closed emotion set.
func ValidEmotion(label string) bool {
	_, ok := heuristicRiskTable[label]
	return ok
}
