package drafting

import "strings"

// StyleInstruction is the system instruction sent with every draft request.
const StyleInstruction = "醫院行政通報助手，嚴禁更動固定格式。"

const pending = "待補"

const draftHeader = "【緊急協尋：不假離院】\n" +
	"📢 請全體同仁注意：病人不假離院緊急通報 📢\n" +
	"一位住院病患已在未經許可的情況下離開院區。請各單位同仁協助留意並進行協尋。\n" +
	"---\n" +
	"【病人特徵與最後目擊資訊】\n"

// FormatDraftPrompt fills the fixed notification template request. Empty optional fields
// become "待補". The caller must not request generation when info.Name is empty.
func FormatDraftPrompt(info PatientDraftInfo) string {
	var b strings.Builder
	b.WriteString("請將資訊填入固定格式：\n")
	b.WriteString("姓名：" + info.Name + "\n")
	b.WriteString("性別：" + string(info.Gender) + "\n")
	b.WriteString("病歷號：" + orDefault(info.IDNum, pending) + "\n")
	b.WriteString("衣著：" + orDefault(info.Clothing, pending) + "\n")
	b.WriteString("最後目擊地點：" + orDefault(info.Location, pending) + "\n")
	b.WriteString("移動方向：" + orDefault(info.Direction, pending) + "\n")
	b.WriteString("\n固定格式要求：\n")
	b.WriteString(draftHeader)
	b.WriteString("* 病歷號碼：[填入病歷號]\n")
	b.WriteString("* 姓 名：[填入姓名]\n")
	b.WriteString("* 性 別：[填入性別]\n")
	b.WriteString("* 衣著特徵：[填入衣著特徵]\n")
	b.WriteString("* 最後目擊地點：[填入最後目擊地點]\n")
	b.WriteString("* 移動方向：[填入移動方向]")
	return b.String()
}

// RenderLocalDraft fills the fixed template without a generator.
func RenderLocalDraft(info PatientDraftInfo) string {
	var b strings.Builder
	b.WriteString(draftHeader)
	b.WriteString("* 病歷號碼：" + orDefault(info.IDNum, pending) + "\n")
	b.WriteString("* 姓 名：" + orDefault(info.Name, pending) + "\n")
	b.WriteString("* 性 別：" + orDefault(string(info.Gender), pending) + "\n")
	b.WriteString("* 衣著特徵：" + orDefault(info.Clothing, pending) + "\n")
	b.WriteString("* 最後目擊地點：" + orDefault(info.Location, pending) + "\n")
	b.WriteString("* 移動方向：" + orDefault(info.Direction, pending))
	return b.String()
}

// Phrase is a quick-broadcast sentence: Display is shown to the operator, Spoken is read aloud.
type Phrase struct {
	Key     string `json:"key"`
	Label   string `json:"label"`
	Display string `json:"display"`
	Spoken  string `json:"spoken"`
}

const (
	PhraseWitnessed = "witnessed"
	PhraseNotFound  = "not_found"
)

// QuickBroadcastPhrases returns the witnessed-elopement and missed-at-rounds phrases.
func QuickBroadcastPhrases(info PatientDraftInfo) []Phrase {
	return []Phrase{
		{
			Key:   PhraseWitnessed,
			Label: "目睹不假離院廣播語法",
			Display: "「" + orDefault(info.Location, "地點") + " 333, " + orDefault(info.Name, "姓名") + " " +
				orDefault(info.IDNum, "病歷號") + " 往 " + orDefault(info.Direction, "方向") + " 移動」",
			Spoken: "發現離院：" + orDefault(info.Location, "某地點") + "三三三，" + orDefault(info.Name, "某某某") +
				"，往" + orDefault(info.Direction, "某方向") + "移動",
		},
		{
			Key:   PhraseNotFound,
			Label: "未尋獲廣播語法",
			Display: "「" + orDefault(info.Location, "病房") + " 333, " + orDefault(info.Name, "姓名") + " " +
				orDefault(info.IDNum, "病歷號") + " 查房未尋獲」",
			Spoken: orDefault(info.Location, "某病房") + "三三三，" + orDefault(info.Name, "某某某") + "，查房未尋獲",
		},
	}
}

// LookupPhrase returns the quick-broadcast phrase with the given key.
func LookupPhrase(info PatientDraftInfo, key string) (Phrase, bool) {
	for _, p := range QuickBroadcastPhrases(info) {
		if p.Key == key {
			return p, true
		}
	}
	return Phrase{}, false
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
