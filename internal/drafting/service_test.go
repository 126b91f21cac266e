package drafting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGenerateRequiresName(t *testing.T) {
	gen := &scriptedGenerator{text: "draft"}
	policy, _ := instantPolicy()
	svc := NewService(NewClient(gen, policy, zap.NewNop()), zap.NewNop())

	_, err := svc.Generate(context.Background(), PatientDraftInfo{Name: "  ", Gender: GenderMale})

	assert.ErrorIs(t, err, ErrPreconditionNotMet)
	assert.Zero(t, gen.calls)
}

func TestGenerateSendsPromptAndStyle(t *testing.T) {
	gen := &scriptedGenerator{text: "draft"}
	policy, _ := instantPolicy()
	svc := NewService(NewClient(gen, policy, zap.NewNop()), zap.NewNop())
	info := PatientDraftInfo{Name: "王小明", Gender: GenderMale}

	out, err := svc.Generate(context.Background(), info)

	require.NoError(t, err)
	assert.Equal(t, Outcome{Status: StatusSuccess, Text: "draft"}, out)
	assert.Equal(t, []string{FormatDraftPrompt(info)}, gen.prompts)
	assert.Equal(t, []string{StyleInstruction}, gen.styles)
}

func TestGenerateConvertsUpstreamFailure(t *testing.T) {
	gen := &scriptedGenerator{results: []error{
		errUnavailable, errUnavailable, errUnavailable, errUnavailable, errUnavailable,
	}}
	policy, _ := instantPolicy()
	svc := NewService(NewClient(gen, policy, zap.NewNop()), zap.NewNop())

	out, err := svc.Generate(context.Background(), PatientDraftInfo{Name: "王小明", Gender: GenderMale})

	require.NoError(t, err)
	assert.Equal(t, Outcome{Status: StatusFailed, Text: FailedDraftText}, out)
}

func TestGenerateLocalWhenRemoteDisabled(t *testing.T) {
	svc := NewService(nil, zap.NewNop())
	info := PatientDraftInfo{Name: "王小明", Gender: GenderMale}

	out, err := svc.Generate(context.Background(), info)

	require.NoError(t, err)
	assert.False(t, svc.RemoteEnabled())
	assert.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, RenderLocalDraft(info), out.Text)
}

type steppingClock struct {
	t time.Time
}

func (c *steppingClock) Now() time.Time { return c.t }

func TestWorkspaceLifecycle(t *testing.T) {
	clock := &steppingClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	w := NewWorkspace(clock.Now)

	assert.Equal(t, StatusIdle, w.View().Status)
	assert.False(t, w.View().Ready)
	_, _, err := w.Begin()
	require.ErrorIs(t, err, ErrPreconditionNotMet)
	assert.Equal(t, StatusIdle, w.View().Status, "loading is not entered without a name")

	require.NoError(t, w.SetField(FieldName, " 王小明 "))
	assert.Equal(t, "王小明", w.Info().Name)
	assert.Equal(t, GenderMale, w.Info().Gender)

	info, ticket, err := w.Begin()
	require.NoError(t, err)
	assert.Equal(t, "王小明", info.Name)
	assert.Equal(t, StatusLoading, w.View().Status)

	assert.False(t, w.Finish(ticket, Outcome{Status: StatusFailed, Text: FailedDraftText}))
	assert.Equal(t, StatusFailed, w.View().Status)

	_, ticket, err = w.Begin()
	require.NoError(t, err)
	assert.Equal(t, StatusLoading, w.View().Status)
	w.Finish(ticket, Outcome{Status: StatusSuccess, Text: "draft"})
	assert.Equal(t, StatusSuccess, w.View().Status)
	assert.Equal(t, "draft", w.Draft())
}

func TestWorkspaceLastCompletionWins(t *testing.T) {
	w := NewWorkspace(nil)
	require.NoError(t, w.SetField(FieldName, "王小明"))

	_, first, _ := w.Begin()
	_, second, _ := w.Begin()

	assert.False(t, w.Finish(second, Outcome{Status: StatusSuccess, Text: "second"}))
	assert.True(t, w.Finish(first, Outcome{Status: StatusSuccess, Text: "first"}))
	assert.Equal(t, "first", w.Draft())
}

func TestWorkspaceCopyAck(t *testing.T) {
	clock := &steppingClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	w := NewWorkspace(clock.Now)

	_, err := w.MarkCopied()
	require.ErrorIs(t, err, ErrNoDraft)

	require.NoError(t, w.SetField(FieldName, "王小明"))
	_, ticket, _ := w.Begin()
	w.Finish(ticket, Outcome{Status: StatusSuccess, Text: "draft"})

	text, err := w.MarkCopied()
	require.NoError(t, err)
	assert.Equal(t, "draft", text)
	assert.True(t, w.Copied())

	clock.t = clock.t.Add(1999 * time.Millisecond)
	assert.True(t, w.Copied())
	clock.t = clock.t.Add(time.Millisecond)
	assert.False(t, w.Copied())
}

func TestWorkspaceRejectsBadInput(t *testing.T) {
	w := NewWorkspace(nil)

	assert.ErrorIs(t, w.SetInfo(PatientDraftInfo{Name: "x", Gender: "other"}), ErrInvalidGender)
	assert.ErrorIs(t, w.SetField("age", "40"), ErrUnknownField)

	require.NoError(t, w.SetInfo(PatientDraftInfo{Name: "x", Gender: GenderFemale}))
	assert.Equal(t, GenderFemale, w.Info().Gender)
}
