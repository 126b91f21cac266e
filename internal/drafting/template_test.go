package drafting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDraftPromptFillsPending(t *testing.T) {
	got := FormatDraftPrompt(PatientDraftInfo{Name: "王小明", Gender: GenderMale})

	want := "請將資訊填入固定格式：\n" +
		"姓名：王小明\n" +
		"性別：男\n" +
		"病歷號：待補\n" +
		"衣著：待補\n" +
		"最後目擊地點：待補\n" +
		"移動方向：待補\n" +
		"\n" +
		"固定格式要求：\n" +
		"【緊急協尋：不假離院】\n" +
		"📢 請全體同仁注意：病人不假離院緊急通報 📢\n" +
		"一位住院病患已在未經許可的情況下離開院區。請各單位同仁協助留意並進行協尋。\n" +
		"---\n" +
		"【病人特徵與最後目擊資訊】\n" +
		"* 病歷號碼：[填入病歷號]\n" +
		"* 姓 名：[填入姓名]\n" +
		"* 性 別：[填入性別]\n" +
		"* 衣著特徵：[填入衣著特徵]\n" +
		"* 最後目擊地點：[填入最後目擊地點]\n" +
		"* 移動方向：[填入移動方向]"
	assert.Equal(t, want, got)
}

func TestFormatDraftPromptUsesProvidedFields(t *testing.T) {
	got := FormatDraftPrompt(PatientDraftInfo{
		Name:      "陳美玲",
		Gender:    GenderFemale,
		IDNum:     "123456",
		Clothing:  "藍色院服",
		Location:  "一樓大廳",
		Direction: "往正門方向",
	})

	assert.Contains(t, got, "病歷號：123456\n")
	assert.Contains(t, got, "衣著：藍色院服\n")
	assert.Contains(t, got, "最後目擊地點：一樓大廳\n")
	assert.Contains(t, got, "移動方向：往正門方向\n")
	assert.NotContains(t, got, "待補")
}

func TestRenderLocalDraft(t *testing.T) {
	got := RenderLocalDraft(PatientDraftInfo{Name: "王小明", Gender: GenderMale, Location: "二病房"})

	assert.Contains(t, got, "【緊急協尋：不假離院】\n")
	assert.Contains(t, got, "* 姓 名：王小明\n")
	assert.Contains(t, got, "* 性 別：男\n")
	assert.Contains(t, got, "* 病歷號碼：待補\n")
	assert.Contains(t, got, "* 最後目擊地點：二病房\n")
	assert.NotContains(t, got, "[填入")
}

func TestQuickBroadcastPhrases(t *testing.T) {
	empty := QuickBroadcastPhrases(PatientDraftInfo{})
	require.Len(t, empty, 2)
	assert.Equal(t, "發現離院：某地點三三三，某某某，往某方向移動", empty[0].Spoken)
	assert.Equal(t, "某病房三三三，某某某，查房未尋獲", empty[1].Spoken)
	assert.Equal(t, "「地點 333, 姓名 病歷號 往 方向 移動」", empty[0].Display)

	info := PatientDraftInfo{Name: "王小明", IDNum: "123456", Location: "一病房", Direction: "正門"}
	p, ok := LookupPhrase(info, PhraseWitnessed)
	require.True(t, ok)
	assert.Equal(t, "發現離院：一病房三三三，王小明，往正門移動", p.Spoken)
	assert.Equal(t, "「一病房 333, 王小明 123456 往 正門 移動」", p.Display)

	p, ok = LookupPhrase(info, PhraseNotFound)
	require.True(t, ok)
	assert.Equal(t, "一病房三三三，王小明，查房未尋獲", p.Spoken)

	_, ok = LookupPhrase(info, "missing")
	assert.False(t, ok)
}
