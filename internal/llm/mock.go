package llm

import (
	"context"
	"strings"
)

// DeepModeMarker is the heading of the deep-analysis instruction block.
// MockProvider looks for it to decide which canned reply to return.
const DeepModeMarker = "【深度思考模式补充】"

const mockReply = `【MOCK 响应】
感谢您的分享。这只是一个模拟响应，因为后端正在以无模型模式运行。

通常，我会根据您的情感分析结果、风险评估和SCL-90历史记录，为您提供定制化的建议。

建议如下：
1. 保持规律作息。
2. 尝试与朋友倾诉。
3. 适当进行户外运动。

本建议仅供参考，不能替代专业医疗诊断。`

// MockProvider returns a canned reply without calling any model.
type MockProvider struct{}

// NewMockProvider creates a mock-mode generator.
func NewMockProvider() *MockProvider { return &MockProvider{} }

func (m *MockProvider) IsConfigured() bool { return true }

// Generate returns the canned reply, with a deep-mode heading when the prompt
// carries the deep-analysis block. Classification prompts get a neutral label.
func (m *MockProvider) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.HasPrefix(prompt, classifyPromptHeading) {
		return `{"emotion": "中性"}`, nil
	}
	if strings.Contains(prompt, DeepModeMarker) {
		return "【MOCK 深度思考模式】\n正在深入分析您的心理机制...\n\n" + strings.TrimPrefix(mockReply, "【MOCK 响应】\n"), nil
	}
	return mockReply, nil
}
