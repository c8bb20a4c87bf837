package scl90

// Factor is one of the ten symptom dimensions used to aggregate items.
type Factor string

const (
	Somatization  Factor = "somatization"
	Obsessive     Factor = "obsessive"
	Interpersonal Factor = "interpersonal"
	Depression    Factor = "depression"
	Anxiety       Factor = "anxiety"
	Hostility     Factor = "hostility"
	Phobic        Factor = "phobic"
	Paranoid      Factor = "paranoid"
	Psychotic     Factor = "psychotic"
	Other         Factor = "other"
)

// ItemCount is the number of items in the questionnaire.
const ItemCount = 90

// factorOrder is the canonical order factors are reported in.
var factorOrder = []Factor{
	Somatization, Obsessive, Interpersonal, Depression, Anxiety,
	Hostility, Phobic, Paranoid, Psychotic, Other,
}

var factorNames = map[Factor]string{
	Somatization:  "躯体化",
	Obsessive:     "强迫症状",
	Interpersonal: "人际关系敏感",
	Depression:    "抑郁",
	Anxiety:       "焦虑",
	Hostility:     "敌对",
	Phobic:        "恐怖",
	Paranoid:      "偏执",
	Psychotic:     "精神病性",
	Other:         "其他",
}

// Question is a single questionnaire item.
type Question struct {
	ID     int    `json:"id"`
	Text   string `json:"text"`
	Factor Factor `json:"category"`
}

// FactorInfo pairs a factor key with its display name.
type FactorInfo struct {
	Key  Factor `json:"key"`
	Name string `json:"name"`
}

// questions is the fixed item-to-factor table. Several assignments differ
// from the published SCL-90-R key; stored records were scored against this
// table, so it must not be changed.
var questions = [ItemCount]Question{
	{ID: 1, Text: "头痛", Factor: Somatization},
	{ID: 2, Text: "神经过敏，心中不踏实", Factor: Anxiety},
	{ID: 3, Text: "头脑中有不必要的想法或字句盘旋", Factor: Obsessive},
	{ID: 4, Text: "头晕或晕倒", Factor: Somatization},
	{ID: 5, Text: "对异性的兴趣减退", Factor: Depression},
	{ID: 6, Text: "对旁人求全责备", Factor: Interpersonal},
	{ID: 7, Text: "感到别人能控制您的思想", Factor: Psychotic},
	{ID: 8, Text: "责怪别人制造麻烦", Factor: Paranoid},
	{ID: 9, Text: "忘记性大", Factor: Obsessive},
	{ID: 10, Text: "担心自己的衣饰整齐及仪态的端正", Factor: Obsessive},
	{ID: 11, Text: "容易烦恼和激动", Factor: Hostility},
	{ID: 12, Text: "胸痛", Factor: Somatization},
	{ID: 13, Text: "害怕空旷的场所或街道", Factor: Phobic},
	{ID: 14, Text: "感到自己的精力下降，活动减慢", Factor: Depression},
	{ID: 15, Text: "想结束自己的生命", Factor: Depression},
	{ID: 16, Text: "听到旁人听不到的声音", Factor: Psychotic},
	{ID: 17, Text: "发抖", Factor: Anxiety},
	{ID: 18, Text: "感到大多数人都不可信任", Factor: Paranoid},
	{ID: 19, Text: "胃口不好", Factor: Other},
	{ID: 20, Text: "容易哭泣", Factor: Depression},
	{ID: 21, Text: "同异性相处时感到害羞不自在", Factor: Interpersonal},
	{ID: 22, Text: "感到受骗，中了圈套或有人想抓住您", Factor: Depression},
	{ID: 23, Text: "无缘无故地突然感到害怕", Factor: Anxiety},
	{ID: 24, Text: "自己不能控制地大发脾气", Factor: Hostility},
	{ID: 25, Text: "怕单独出门", Factor: Phobic},
	{ID: 26, Text: "经常责怪自己", Factor: Depression},
	{ID: 27, Text: "腰痛", Factor: Somatization},
	{ID: 28, Text: "感到难以完成任务", Factor: Obsessive},
	{ID: 29, Text: "感到孤独", Factor: Depression},
	{ID: 30, Text: "感到苦闷", Factor: Depression},
	{ID: 31, Text: "过分担忧", Factor: Depression},
	{ID: 32, Text: "对事物不感兴趣", Factor: Depression},
	{ID: 33, Text: "感到害怕", Factor: Anxiety},
	{ID: 34, Text: "您的感情容易受到伤害", Factor: Interpersonal},
	{ID: 35, Text: "旁人能知道您的私下想法", Factor: Psychotic},
	{ID: 36, Text: "感到别人不理解您、不同情您", Factor: Interpersonal},
	{ID: 37, Text: "感到人们对您不友好、不喜欢您", Factor: Interpersonal},
	{ID: 38, Text: "做事必须做得很慢以保证做得正确", Factor: Obsessive},
	{ID: 39, Text: "心跳得很厉害", Factor: Anxiety},
	{ID: 40, Text: "恶心或胃部不舒服", Factor: Somatization},
	{ID: 41, Text: "感到比不上他人", Factor: Interpersonal},
	{ID: 42, Text: "肌肉酸痛", Factor: Somatization},
	{ID: 43, Text: "感到有人在监视您、谈论您", Factor: Paranoid},
	{ID: 44, Text: "难以入睡", Factor: Other},
	{ID: 45, Text: "做事必须反复检查", Factor: Obsessive},
	{ID: 46, Text: "难以作出决定", Factor: Obsessive},
	{ID: 47, Text: "怕乘电车、公共汽车、地铁或火车", Factor: Phobic},
	{ID: 48, Text: "呼吸有困难", Factor: Somatization},
	{ID: 49, Text: "一阵阵发冷或发热", Factor: Somatization},
	{ID: 50, Text: "因为感到害怕而避开某些东西、场合或活动", Factor: Phobic},
	{ID: 51, Text: "脑子变空了", Factor: Obsessive},
	{ID: 52, Text: "身体发麻或刺痛", Factor: Somatization},
	{ID: 53, Text: "喉咙有梗塞感", Factor: Somatization},
	{ID: 54, Text: "感到对前途没有希望", Factor: Depression},
	{ID: 55, Text: "不能集中注意力", Factor: Obsessive},
	{ID: 56, Text: "感到身体的某一部分软弱无力", Factor: Somatization},
	{ID: 57, Text: "感到紧张或容易紧张", Factor: Anxiety},
	{ID: 58, Text: "感到手或脚发重", Factor: Somatization},
	{ID: 59, Text: "想到死亡的事", Factor: Other},
	{ID: 60, Text: "吃得太多", Factor: Other},
	{ID: 61, Text: "当别人看着您或谈论您时感到不自在", Factor: Interpersonal},
	{ID: 62, Text: "有一些不属于您自己的想法", Factor: Psychotic},
	{ID: 63, Text: "有想打人或伤害他人的冲动", Factor: Hostility},
	{ID: 64, Text: "醒得太早", Factor: Other},
	{ID: 65, Text: "必须反复洗手、点数目或触摸某些东西", Factor: Obsessive},
	{ID: 66, Text: "睡得不稳不深", Factor: Other},
	{ID: 67, Text: "有想摔坏或破坏东西的冲动", Factor: Hostility},
	{ID: 68, Text: "有一些别人没有的想法或念头", Factor: Paranoid},
	{ID: 69, Text: "感到对别人神经过敏", Factor: Interpersonal},
	{ID: 70, Text: "在商店或电影院等人多的地方感到不自在", Factor: Phobic},
	{ID: 71, Text: "感到任何事情都很困难", Factor: Depression},
	{ID: 72, Text: "一阵阵恐惧或惊恐", Factor: Anxiety},
	{ID: 73, Text: "感到在公共场合吃东西很不舒服", Factor: Interpersonal},
	{ID: 74, Text: "经常与人争论", Factor: Hostility},
	{ID: 75, Text: "单独一人时神经很紧张", Factor: Phobic},
	{ID: 76, Text: "别人对您的成绩没有作出恰当的评价", Factor: Paranoid},
	{ID: 77, Text: "即使和别人在一起也感到孤单", Factor: Psychotic},
	{ID: 78, Text: "感到坐立不安、心神不定", Factor: Anxiety},
	{ID: 79, Text: "感到自己没有什么价值", Factor: Depression},
	{ID: 80, Text: "感到熟悉的东西变得陌生或不像是真的", Factor: Anxiety},
	{ID: 81, Text: "大叫或摔东西", Factor: Hostility},
	{ID: 82, Text: "害怕会在公共场合晕倒", Factor: Phobic},
	{ID: 83, Text: "感到别人想占您的便宜", Factor: Paranoid},
	{ID: 84, Text: "为一些有关性的想法而很苦恼", Factor: Psychotic},
	{ID: 85, Text: "您认为应该因为自己的过错而受到惩罚", Factor: Psychotic},
	{ID: 86, Text: "感到要很快把事情做完", Factor: Anxiety},
	{ID: 87, Text: "感到自己的身体有严重问题", Factor: Psychotic},
	{ID: 88, Text: "从未感到和其他人很亲近", Factor: Psychotic},
	{ID: 89, Text: "感到自己有罪", Factor: Other},
	{ID: 90, Text: "感到自己的脑子有毛病", Factor: Psychotic},
}

// Questions returns a copy of the questionnaire in id order.
func Questions() []Question {
	out := make([]Question, ItemCount)
	copy(out, questions[:])
	return out
}

// Factors returns the ten factors in canonical order.
func Factors() []FactorInfo {
	out := make([]FactorInfo, 0, len(factorOrder))
	for _, f := range factorOrder {
		out = append(out, FactorInfo{Key: f, Name: factorNames[f]})
	}
	return out
}

// Name returns the display name of the factor.
func (f Factor) Name() string {
	return factorNames[f]
}

// factorItemCounts is derived once from the table.
var factorItemCounts = func() map[Factor]int {
	counts := make(map[Factor]int, len(factorOrder))
	for _, q := range questions {
		counts[q.Factor]++
	}
	return counts
}()

// ItemsInFactor returns how many items belong to the factor.
func ItemsInFactor(f Factor) int {
	return factorItemCounts[f]
}
