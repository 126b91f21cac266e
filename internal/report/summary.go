package report

import (
	"fmt"
	"strings"
	"time"

	"elopement-response/internal/checklist"
	"elopement-response/internal/response"
)

const timeLayout = "2006-01-02 15:04:05"

var branchLabels = map[checklist.Branch]string{
	checklist.BranchInternal: "院內協尋",
	checklist.BranchExternal: "院外協尋",
}

// Summary is the plain-text form of the incident report.
func Summary(inc response.Incident) string {
	var b strings.Builder
	for _, line := range reportLines(inc) {
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// reportLines is shared by the text summary and the PDF body.
func reportLines(inc response.Incident) []string {
	lines := []string{
		"【333 協尋結案報告】",
		"啟動時間：" + formatTime(inc.StartedAt),
		"結束時間：" + formatTime(inc.FinishedAt),
		fmt.Sprintf("完成進度：%d%%", inc.Progress),
		"",
		"病人資料",
		"姓名：" + orPending(inc.Patient.Name),
		"性別：" + orPending(string(inc.Patient.Gender)),
		"病歷號：" + orPending(inc.Patient.IDNum),
		"衣著：" + orPending(inc.Patient.Clothing),
		"最後目擊地點：" + orPending(inc.Patient.Location),
		"移動方向：" + orPending(inc.Patient.Direction),
		"",
		"處置時間軸",
	}

	timeline := inc.Timeline()
	if len(timeline) == 0 {
		lines = append(lines, "（無已完成步驟）")
	}
	for _, st := range timeline {
		lines = append(lines, fmt.Sprintf("%s  %d. %s", formatTime(*st.CompletedAt), st.Index+1, st.Title))
	}

	for _, br := range []checklist.Branch{checklist.BranchInternal, checklist.BranchExternal} {
		if at, ok := inc.Branches[br]; ok {
			lines = append(lines, fmt.Sprintf("%s  啟動%s", formatTime(at), branchLabels[br]))
		}
	}

	var pending []string
	for _, st := range inc.Steps {
		if !st.Completed {
			pending = append(pending, fmt.Sprintf("%d. %s", st.Index+1, st.Title))
		}
	}
	if len(pending) > 0 {
		lines = append(lines, "", "未完成步驟")
		lines = append(lines, pending...)
	}
	return lines
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(timeLayout)
}

func orPending(v string) string {
	if v == "" {
		return "待補"
	}
	return v
}
