package knowledge

import (
	"context"
	"fmt"
	"log"
)

type seedEntry struct {
	Title   string
	Content string
}

var seedEntries = []seedEntry{
	{
		Title:   "如何缓解考前焦虑",
		Content: "考前焦虑是大学生常见的心理问题。缓解方法包括：1. 制定合理的复习计划，避免临阵磨枪；2. 保持规律作息，保证充足睡眠；3. 进行深呼吸或冥想练习，放松身心；4. 适当运动，释放压力；5. 调整心态，接受适度焦虑有助于发挥，但不要过度担忧结果。",
	},
	{
		Title:   "人际交往中的倾听技巧",
		Content: "有效倾听是建立良好人际关系的关键。技巧包括：1. 保持眼神接触，展示关注；2. 不打断对方，耐心听完；3. 适时给予回应，如点头或简单的“嗯”、“是的”；4. 尝试复述对方的观点，确认理解是否正确；5. 关注对方的情绪，而不仅仅是语言内容。",
	},
	{
		Title:   "失眠的自我调节",
		Content: "改善失眠的建议：1. 建立固定的睡眠时间表；2. 睡前避免使用电子产品，减少蓝光刺激；3. 营造舒适的睡眠环境（黑暗、安静、适宜温度）；4. 避免下午摄入咖啡因；5. 睡前进行放松活动，如阅读、热水澡或轻柔拉伸。",
	},
	{
		Title:   "应对抑郁情绪",
		Content: "如果你感到持续的低落，可以尝试：1. 接纳自己的情绪，不要自责；2. 保持规律的生活节奏；3. 坚持适量运动，促进多巴胺分泌；4. 与信任的朋友或家人倾诉；5. 设定小目标，逐步完成，建立成就感。注意：如果症状严重或持续时间长，请务必寻求专业心理医生的帮助。",
	},
}

// Seed adds the built-in shared entries whose titles are not stored yet and
// returns how many were added.
func (f *Fusion) Seed(ctx context.Context) (int, error) {
	added := 0
	for _, e := range seedEntries {
		exists, err := f.db.SharedKnowledgeTitleExists(e.Title)
		if err != nil {
			return added, fmt.Errorf("checking %q: %w", e.Title, err)
		}
		if exists {
			log.Printf("Already seeded: %s", e.Title)
			continue
		}
		if _, err := f.AddShared(ctx, e.Title, e.Content); err != nil {
			return added, err
		}
		log.Printf("Seeded: %s", e.Title)
		added++
	}
	return added, nil
}
