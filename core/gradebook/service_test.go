package gradebook_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/notas/core"
	"github.com/trezcool/notas/core/class"
	"github.com/trezcool/notas/core/gradebook"
	"github.com/trezcool/notas/core/grading"
	"github.com/trezcool/notas/storage/database/inmem"
	"github.com/trezcool/notas/tests"
)

const delta = 1e-9

type fixture struct {
	repo     gradebook.Repository
	svc      *gradebook.Service
	class    class.Class
	students []string
}

func setup(t *testing.T) fixture {
	db := inmemdb.Open()
	profiles := inmemdb.NewProfileRepository(db)
	classes := inmemdb.NewClassRepository(db)
	repo := inmemdb.NewGradebookRepository(db)

	teacher := testutil.CreateProfile(t, profiles, "Ada Teacher", "ada@test.co", "", core.RoleTeacher)
	c := testutil.CreateClass(t, classes, teacher.ID, "Algebra", "ABC123")
	s1 := testutil.CreateProfile(t, profiles, "Ana", "ana@test.co", "", core.RoleStudent)
	s2 := testutil.CreateProfile(t, profiles, "Ben", "ben@test.co", "", core.RoleStudent)
	testutil.Enroll(t, classes, c.ID, s1.ID)
	testutil.Enroll(t, classes, c.ID, s2.ID)

	svc := gradebook.NewService(repo, class.NewService(classes))
	return fixture{repo: repo, svc: svc, class: c, students: []string{s1.ID, s2.ID}}
}

func fieldErrors(t *testing.T, err error) []core.FieldError {
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr), "want ValidationError, got %v", err)
	return vErr.Fields
}

func TestNewGradeItem_Validate(t *testing.T) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	gradebook.InitValidators(validate, translator)

	tests := []struct {
		name       string
		item       gradebook.NewGradeItem
		wantFields []string
	}{
		{name: "valid", item: gradebook.NewGradeItem{Name: " Quiz ", Corte: 1, Percentage: 12.5}},
		{name: "blank name", item: gradebook.NewGradeItem{Name: "  ", Corte: 1, Percentage: 10}, wantFields: []string{"name"}},
		{name: "corte out of range", item: gradebook.NewGradeItem{Name: "Quiz", Corte: 4, Percentage: 10}, wantFields: []string{"corte"}},
		{name: "percentage zero", item: gradebook.NewGradeItem{Name: "Quiz", Corte: 2, Percentage: 0}, wantFields: []string{"percentage"}},
		{name: "percentage over 100", item: gradebook.NewGradeItem{Name: "Quiz", Corte: 2, Percentage: 100.01}, wantFields: []string{"percentage"}},
		{name: "three decimals", item: gradebook.NewGradeItem{Name: "Quiz", Corte: 2, Percentage: 10.125}, wantFields: []string{"percentage"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.Validate(validate)
			if tt.wantFields == nil {
				assert.NoError(t, err)
				return
			}
			var vErrs validator.ValidationErrors
			require.True(t, errors.As(err, &vErrs), "want ValidationErrors, got %v", err)
			assert.Equal(t, tt.wantFields, keys(core.TranslateValidationErrors(vErrs, translator)))
		})
	}
}

func keys(m map[string]string) []string {
	ks := make([]string, 0, len(m))
	for k := range m {
		ks = append(ks, k)
	}
	return ks
}

func TestService_CreateItem_budget(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testutil.CreateGradeItem(t, f.repo, f.class.ID, "Quiz 1", 1, 10)
	testutil.CreateGradeItem(t, f.repo, f.class.ID, "Quiz 2", 1, 15)

	// 25 used: +6 exceeds the 30 cap
	_, err := f.svc.CreateItem(ctx, f.class.ID, gradebook.NewGradeItem{Name: "Exam", Corte: 1, Percentage: 6})
	flds := fieldErrors(t, err)
	require.Len(t, flds, 1)
	assert.Equal(t, "percentage", flds[0].Field)
	assert.Equal(t, "total percentage of corte 1 cannot exceed 30%: 25% already used, 31% attempted", flds[0].Error)

	var bErr *grading.BudgetError
	require.True(t, errors.As(err, &bErr))
	assert.InDelta(t, 31, bErr.Attempted(), delta)

	items, err := f.svc.Items(ctx, f.class.ID, 1)
	require.NoError(t, err)
	assert.Len(t, items, 2, "nothing is stored on budget failure")

	// +5 reaches the cap exactly
	item, err := f.svc.CreateItem(ctx, f.class.ID, gradebook.NewGradeItem{Name: "Exam", Corte: 1, Percentage: 5})
	require.NoError(t, err)
	assert.Equal(t, grading.Corte(1), item.Corte)

	usage, err := f.svc.Budget(ctx, f.class.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, grading.Usage{Corte: 1, Cap: 30, Used: 30, Remaining: 0}, usage)

	// other cortes have their own budget
	_, err = f.svc.CreateItem(ctx, f.class.ID, gradebook.NewGradeItem{Name: "Project", Corte: 2, Percentage: 35})
	require.NoError(t, err)

	_, err = f.svc.Budget(ctx, f.class.ID, 0)
	assert.Equal(t, "corte", fieldErrors(t, err)[0].Field)
}

func TestService_CreateItem_concurrentBudget(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	const workers = 5
	var (
		wg      sync.WaitGroup
		created int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CreateItem(ctx, f.class.ID, gradebook.NewGradeItem{Name: "Quiz", Corte: 1, Percentage: 20})
			if err == nil {
				atomic.AddInt32(&created, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), created)
	usage, err := f.svc.Budget(ctx, f.class.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 20.0, usage.Used)
}

func TestService_DeleteItem(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	item := testutil.CreateGradeItem(t, f.repo, f.class.ID, "Quiz", 1, 10)
	testutil.SetGrade(t, f.repo, f.students[0], item.ID, 4)

	assert.Equal(t, gradebook.ErrItemNotFound, f.svc.DeleteItem(ctx, "other-class", item.ID))
	require.NoError(t, f.svc.DeleteItem(ctx, f.class.ID, item.ID))

	grades, err := f.repo.ListGrades(ctx, f.class.ID)
	require.NoError(t, err)
	assert.Empty(t, grades)
	assert.Equal(t, gradebook.ErrItemNotFound, f.svc.DeleteItem(ctx, f.class.ID, item.ID))
}

func TestService_SaveGrades(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	item := testutil.CreateGradeItem(t, f.repo, f.class.ID, "Quiz", 1, 10)
	ana, ben := f.students[0], f.students[1]

	t.Run("scores are clamped", func(t *testing.T) {
		grades, err := f.svc.SaveGrades(ctx, f.class.ID, []gradebook.GradeInput{
			{StudentID: ana, GradeItemID: item.ID, Score: 7},
			{StudentID: ben, GradeItemID: item.ID, Score: -2},
		})
		require.NoError(t, err)
		require.Len(t, grades, 2)
		assert.Equal(t, 5.0, grades[0].Score)
		assert.Equal(t, 0.0, grades[1].Score)
	})

	t.Run("upsert keeps one grade per student and item", func(t *testing.T) {
		_, err := f.svc.SaveGrades(ctx, f.class.ID, []gradebook.GradeInput{
			{StudentID: ana, GradeItemID: item.ID, Score: 3.5},
			{StudentID: ana, GradeItemID: item.ID, Score: 4.2},
		})
		require.NoError(t, err)

		grades, err := f.repo.ListGrades(ctx, f.class.ID, ana)
		require.NoError(t, err)
		require.Len(t, grades, 1)
		assert.Equal(t, 4.2, grades[0].Score)
	})

	t.Run("foreign item or student", func(t *testing.T) {
		_, err := f.svc.SaveGrades(ctx, f.class.ID, []gradebook.GradeInput{
			{StudentID: ana, GradeItemID: "unknown", Score: 3},
			{StudentID: "stranger", GradeItemID: item.ID, Score: 3},
		})
		flds := fieldErrors(t, err)
		require.Len(t, flds, 2)
		assert.Equal(t, "grades[0].grade_item_id", flds[0].Field)
		assert.Equal(t, "grades[1].student_id", flds[1].Field)
	})

	t.Run("empty", func(t *testing.T) {
		grades, err := f.svc.SaveGrades(ctx, f.class.ID, nil)
		require.NoError(t, err)
		assert.Empty(t, grades)
	})
}

func TestService_Sheet(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	now := time.Now()
	q1 := testutil.CreateGradeItem(t, f.repo, f.class.ID, "Quiz 1", 1, 10, now)
	q2 := testutil.CreateGradeItem(t, f.repo, f.class.ID, "Quiz 2", 1, 5, now.Add(time.Second))
	p2 := testutil.CreateGradeItem(t, f.repo, f.class.ID, "Project", 2, 20)
	testutil.SetGrade(t, f.repo, f.students[0], q1.ID, 4)
	testutil.SetGrade(t, f.repo, f.students[0], p2.ID, 2)

	sheet, err := f.svc.Sheet(ctx, f.class.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, grading.Usage{Corte: 1, Cap: 30, Used: 15, Remaining: 15}, sheet.Budget)
	require.Len(t, sheet.Items, 2)
	assert.Equal(t, q1.ID, sheet.Items[0].ID)
	assert.Equal(t, q2.ID, sheet.Items[1].ID)
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, "Ana", sheet.Rows[0].Student.FullName)
	assert.Equal(t, map[string]float64{q1.ID: 4}, sheet.Rows[0].Scores)
	assert.Equal(t, map[string]float64{}, sheet.Rows[1].Scores)
}

func TestService_StudentReport(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ana := f.students[0]
	q1 := testutil.CreateGradeItem(t, f.repo, f.class.ID, "Quiz 1", 1, 20)
	q2 := testutil.CreateGradeItem(t, f.repo, f.class.ID, "Quiz 2", 1, 10)
	p2 := testutil.CreateGradeItem(t, f.repo, f.class.ID, "Project", 2, 20)
	testutil.SetGrade(t, f.repo, ana, q1.ID, 4.0)
	testutil.SetGrade(t, f.repo, ana, q2.ID, 3.0)

	rep, err := f.svc.StudentReport(ctx, f.class.ID, ana)
	require.NoError(t, err)
	require.Len(t, rep.Cortes, 3)

	c1 := rep.Cortes[0]
	require.NotNil(t, c1.Average)
	assert.InDelta(t, 3.6666666666, *c1.Average, 1e-9)
	assert.InDelta(t, 1.1, c1.Contribution, delta)
	assert.Equal(t, 0.30, c1.Weight)
	require.Len(t, c1.Items, 2)
	assert.Equal(t, 4.0, *c1.Items[0].Score)

	c2 := rep.Cortes[1]
	assert.Nil(t, c2.Average, "ungraded corte has no average")
	assert.Equal(t, 0.0, c2.Contribution)
	require.Len(t, c2.Items, 1)
	assert.Equal(t, p2.ID, c2.Items[0].Item.ID)
	assert.Nil(t, c2.Items[0].Score)

	assert.Empty(t, rep.Cortes[2].Items)
	assert.InDelta(t, 1.1, rep.FinalGrade, delta)

	t.Run("no grades", func(t *testing.T) {
		rep, err := f.svc.StudentReport(ctx, f.class.ID, f.students[1])
		require.NoError(t, err)
		assert.Equal(t, 0.0, rep.FinalGrade)
		for _, cr := range rep.Cortes {
			assert.Nil(t, cr.Average)
		}
	})
}

func TestService_ClassReport(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	item := testutil.CreateGradeItem(t, f.repo, f.class.ID, "Final", 3, 35)
	testutil.SetGrade(t, f.repo, f.students[1], item.ID, 5)

	rep, err := f.svc.ClassReport(ctx, f.class.ID)
	require.NoError(t, err)
	require.Len(t, rep.Rows, 2)
	assert.Equal(t, "Ana", rep.Rows[0].Student.FullName)
	assert.Equal(t, 0.0, rep.Rows[0].Report.FinalGrade)
	assert.Equal(t, "Ben", rep.Rows[1].Student.FullName)
	assert.InDelta(t, 5*0.35, rep.Rows[1].Report.FinalGrade, delta)
}
