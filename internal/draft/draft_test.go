package draft

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fmconsole/internal/model"
	"fmconsole/internal/wizard"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func questions() []model.ChecklistQuestion {
	return []model.ChecklistQuestion{
		{ID: "q1", Prompt: "Valve closed?", Kind: model.InputSingleChoice, Required: true, Options: []string{"Yes", "No"}},
		{ID: "q2", Prompt: "Reading", Kind: model.InputNumeric},
		{ID: "q3", Prompt: "Notes", Kind: model.InputFreeText},
	}
}

func TestFromWizard_StripsAttachments(t *testing.T) {
	w := wizard.New(questions(), model.WorkflowMulti)
	_, err := w.SetPhoto(model.StepBeforePhoto, &model.Attachment{Name: "a.jpg", Object: "sessions/s1/a.jpg"})
	require.NoError(t, err)
	require.NoError(t, w.SetValue("q1", "Yes"))
	_, err = w.Attach("q1", &model.Attachment{Name: "b.jpg", Object: "sessions/s1/b.jpg"})
	require.NoError(t, err)
	require.NoError(t, w.Next())

	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	d := FromWizard("42", w, now)

	assert.Equal(t, "42", d.TaskID)
	assert.Equal(t, PhotoSaved, d.BeforePhoto)
	assert.Empty(t, d.AfterPhoto)
	assert.Equal(t, 2, d.CurrentStep)
	assert.Equal(t, now, d.SavedAt)
	assert.Equal(t, "Yes", d.Answers["q1"].Value)
	assert.Nil(t, d.Answers["q1"].Attachment)
}

func TestSummary(t *testing.T) {
	qs := questions()

	assert.Equal(t, "No data", Draft{}.Summary(qs, model.WorkflowMulti))

	d := Draft{
		BeforePhoto: PhotoSaved,
		AfterPhoto:  PhotoSaved,
		Answers: map[string]model.Answer{
			"q1": {Value: "No"},
			"q3": {Value: "   "},
			"q2": {Value: "12"},
		},
	}
	assert.Equal(t, "Before Photo, After Photo, 2/3 Checklist Items", d.Summary(qs, model.WorkflowMulti))
	assert.Equal(t, "2/3 Checklist Items", d.Summary(qs, model.WorkflowSingle))

	d.Answers = nil
	assert.Equal(t, "No data", d.Summary(qs, model.WorkflowSingle))
}

func TestSnapshot_RestoresAnswers(t *testing.T) {
	w := wizard.New(questions(), model.WorkflowSingle)
	require.NoError(t, w.SetValue("q1", "No"))
	require.NoError(t, w.SetComment("q3", "leak at flange"))

	d := FromWizard("7", w, time.Now())

	restored := wizard.New(questions(), model.WorkflowSingle)
	restored.Restore(d.Snapshot())

	a, err := restored.Answer("q1")
	require.NoError(t, err)
	assert.Equal(t, "No", a.Value)
	a, err = restored.Answer("q3")
	require.NoError(t, err)
	assert.Equal(t, "leak at flange", a.Comment)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "task_draft_99", Key("99"))
}

func openSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "drafts.db"), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_SaveLoadDelete(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	_, found, err := s.Load(ctx, "1")
	require.NoError(t, err)
	assert.False(t, found)

	d := Draft{TaskID: "1", Answers: map[string]model.Answer{"q1": {Value: "Yes"}}, CurrentStep: 2, CompletedSteps: []int{1}}
	require.NoError(t, s.Save(ctx, d))

	got, found, err := s.Load(ctx, "1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Yes", got.Answers["q1"].Value)
	assert.Equal(t, []int{1}, got.CompletedSteps)

	// saving again overwrites
	d.CurrentStep = 3
	require.NoError(t, s.Save(ctx, d))
	got, _, err = s.Load(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.CurrentStep)

	require.NoError(t, s.Delete(ctx, "1"))
	_, found, err = s.Load(ctx, "1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLiteStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	require.NoError(t, s.Save(ctx, Draft{TaskID: "old"}))
	s.now = func() time.Time { return base.Add(30 * time.Minute) }
	require.NoError(t, s.Save(ctx, Draft{TaskID: "new"}))

	s.now = func() time.Time { return base.Add(time.Hour + time.Minute) }
	_, found, err := s.Load(ctx, "old")
	require.NoError(t, err)
	assert.False(t, found, "expired drafts are not loaded")
	_, found, err = s.Load(ctx, "new")
	require.NoError(t, err)
	assert.True(t, found)

	n, err := s.ExpireBefore(ctx, base.Add(time.Hour+time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("FMCONSOLE_TEST_REDIS_URL")
	if url == "" {
		t.Skip("FMCONSOLE_TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	defer client.Close()

	ctx := context.Background()
	s := NewRedisStore(client, time.Minute)
	id := "test-" + time.Now().Format("150405.000000")

	require.NoError(t, s.Save(ctx, Draft{TaskID: id, CurrentStep: 2}))
	got, found, err := s.Load(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2, got.CurrentStep)

	require.NoError(t, s.Delete(ctx, id))
	_, found, err = s.Load(ctx, id)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestApplyTo_KeepsStagedFiles(t *testing.T) {
	w := wizard.New(questions(), model.WorkflowMulti)
	_, err := w.SetPhoto(model.StepBeforePhoto, &model.Attachment{Name: "a.jpg", Object: "sessions/s1/a.jpg"})
	require.NoError(t, err)
	_, err = w.Attach("q2", &model.Attachment{Name: "meter.jpg", Object: "sessions/s1/m.jpg"})
	require.NoError(t, err)

	d := Draft{
		TaskID:      "5",
		Answers:     map[string]model.Answer{"q1": {Value: "Yes"}, "q2": {Value: "40"}},
		CurrentStep: 2,
	}
	d.ApplyTo(w)

	assert.Equal(t, 2, w.Current())
	assert.NotNil(t, w.Photo(model.StepBeforePhoto))
	a, err := w.Answer("q2")
	require.NoError(t, err)
	assert.Equal(t, "40", a.Value)
	require.NotNil(t, a.Attachment)
	assert.Equal(t, "meter.jpg", a.Attachment.Name)
}
