package gradebook

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/notas/core"
	"github.com/trezcool/notas/core/class"
	"github.com/trezcool/notas/core/grading"
)

var (
	// errors
	ErrItemNotFound = errors.New("grade item not found")
)

type (
	Repository interface {
		CreateGradeItem(ctx context.Context, item GradeItem) (GradeItem, error)
		// CreateGradeItemWithinCap calls fits with the percentages of the item's corte and inserts the item
		// only when fits returns nil. Concurrent calls for the same class are serialized.
		CreateGradeItemWithinCap(ctx context.Context, item GradeItem, fits func(existing []float64) error) (GradeItem, error)
		GetGradeItem(ctx context.Context, id string) (GradeItem, error)
		// ListGradeItems returns the class items of the given cortes (all when none), ordered by corte then creation.
		ListGradeItems(ctx context.Context, classID string, cortes ...grading.Corte) ([]GradeItem, error)
		// DeleteGradeItem deletes the item with its grades.
		DeleteGradeItem(ctx context.Context, id string) error
		// UpsertGrades inserts or updates grades keyed by (student, grade item) in one statement.
		UpsertGrades(ctx context.Context, grades []Grade) error
		// ListGrades returns the grades of the class items, restricted to studentIDs when given.
		ListGrades(ctx context.Context, classID string, studentIDs ...string) ([]Grade, error)
	}

	// Roster lists the students enrolled in a class.
	Roster interface {
		Roster(ctx context.Context, classID string) ([]class.RosterEntry, error)
	}

	Service struct {
		repo   Repository
		roster Roster
	}
)

func NewService(repo Repository, roster Roster) *Service {
	return &Service{repo: repo, roster: roster}
}

func percentages(items []GradeItem) []float64 {
	pcts := make([]float64, len(items))
	for i, item := range items {
		pcts[i] = item.Percentage
	}
	return pcts
}

// CreateItem adds a grade item to the class once its percentage fits into the corte's budget.
// A budget failure is a ValidationError on "percentage" and nothing is stored.
func (svc *Service) CreateItem(ctx context.Context, classID string, ni NewGradeItem) (GradeItem, error) {
	if !ni.Corte.Valid() {
		return GradeItem{}, core.NewValidationError(grading.ErrInvalidCorte, core.FieldError{Field: "corte", Error: corteText})
	}

	item := GradeItem{
		ID:         uuid.New().String(),
		ClassID:    classID,
		Name:       ni.Name,
		Corte:      ni.Corte,
		Percentage: ni.Percentage,
		CreatedAt:  time.Now().UTC(),
	}
	return svc.repo.CreateGradeItemWithinCap(ctx, item, func(existing []float64) error {
		if err := grading.ValidatePercentageBudget(existing, ni.Corte, ni.Percentage); err != nil {
			return core.NewValidationError(err, core.FieldError{Field: "percentage", Error: err.Error()})
		}
		return nil
	})
}

func (svc *Service) Items(ctx context.Context, classID string, cortes ...grading.Corte) ([]GradeItem, error) {
	return svc.repo.ListGradeItems(ctx, classID, cortes...)
}

// Budget reports the corte's percentage usage.
func (svc *Service) Budget(ctx context.Context, classID string, corte grading.Corte) (grading.Usage, error) {
	if !corte.Valid() {
		return grading.Usage{}, core.NewValidationError(grading.ErrInvalidCorte, core.FieldError{Field: "corte", Error: corteText})
	}
	items, err := svc.repo.ListGradeItems(ctx, classID, corte)
	if err != nil {
		return grading.Usage{}, errors.Wrap(err, "querying grade items")
	}
	return grading.BudgetUsage(percentages(items), corte), nil
}

func (svc *Service) DeleteItem(ctx context.Context, classID, itemID string) error {
	item, err := svc.repo.GetGradeItem(ctx, itemID)
	if err != nil {
		return err
	}
	if item.ClassID != classID {
		return ErrItemNotFound
	}
	return svc.repo.DeleteGradeItem(ctx, itemID)
}

// SaveGrades clamps every score to the 0-5 scale and upserts them.
// Grade items must belong to the class and students must be enrolled in it.
// When the same (student, item) pair is sent twice, the last score wins.
func (svc *Service) SaveGrades(ctx context.Context, classID string, inputs []GradeInput) ([]Grade, error) {
	if len(inputs) == 0 {
		return []Grade{}, nil
	}

	items, err := svc.repo.ListGradeItems(ctx, classID)
	if err != nil {
		return nil, errors.Wrap(err, "querying grade items")
	}
	itemIDs := make(map[string]struct{}, len(items))
	for _, item := range items {
		itemIDs[item.ID] = struct{}{}
	}

	students, err := svc.roster.Roster(ctx, classID)
	if err != nil {
		return nil, errors.Wrap(err, "querying roster")
	}
	studentIDs := make(map[string]struct{}, len(students))
	for _, s := range students {
		studentIDs[s.StudentID] = struct{}{}
	}

	var fldErrs []core.FieldError
	now := time.Now().UTC()
	byKey := make(map[[2]string]int, len(inputs))
	grades := make([]Grade, 0, len(inputs))
	for i, in := range inputs {
		if _, ok := itemIDs[in.GradeItemID]; !ok {
			fldErrs = append(fldErrs, core.FieldError{Field: fmt.Sprintf("grades[%d].grade_item_id", i), Error: ErrItemNotFound.Error()})
			continue
		}
		if _, ok := studentIDs[in.StudentID]; !ok {
			fldErrs = append(fldErrs, core.FieldError{Field: fmt.Sprintf("grades[%d].student_id", i), Error: "student is not enrolled in this class"})
			continue
		}

		g := Grade{
			ID:          uuid.New().String(),
			StudentID:   in.StudentID,
			GradeItemID: in.GradeItemID,
			Score:       grading.ClampScore(in.Score),
			UpdatedAt:   now,
		}
		key := [2]string{in.StudentID, in.GradeItemID}
		if idx, ok := byKey[key]; ok {
			grades[idx] = g
			continue
		}
		byKey[key] = len(grades)
		grades = append(grades, g)
	}
	if fldErrs != nil {
		return nil, core.NewValidationError(nil, fldErrs...)
	}

	if err = svc.repo.UpsertGrades(ctx, grades); err != nil {
		return nil, errors.Wrap(err, "saving grades")
	}
	return grades, nil
}

// Sheet returns the grade entry matrix of the corte.
func (svc *Service) Sheet(ctx context.Context, classID string, corte grading.Corte) (Sheet, error) {
	if !corte.Valid() {
		return Sheet{}, core.NewValidationError(grading.ErrInvalidCorte, core.FieldError{Field: "corte", Error: corteText})
	}

	items, err := svc.repo.ListGradeItems(ctx, classID, corte)
	if err != nil {
		return Sheet{}, errors.Wrap(err, "querying grade items")
	}
	students, err := svc.roster.Roster(ctx, classID)
	if err != nil {
		return Sheet{}, errors.Wrap(err, "querying roster")
	}
	grades, err := svc.repo.ListGrades(ctx, classID)
	if err != nil {
		return Sheet{}, errors.Wrap(err, "querying grades")
	}

	inCorte := make(map[string]struct{}, len(items))
	for _, item := range items {
		inCorte[item.ID] = struct{}{}
	}
	scores := make(map[string]map[string]float64, len(students))
	for _, g := range grades {
		if _, ok := inCorte[g.GradeItemID]; !ok {
			continue
		}
		if scores[g.StudentID] == nil {
			scores[g.StudentID] = make(map[string]float64)
		}
		scores[g.StudentID][g.GradeItemID] = g.Score
	}

	sheet := Sheet{
		ClassID: classID,
		Corte:   corte,
		Budget:  grading.BudgetUsage(percentages(items), corte),
		Items:   items,
		Rows:    make([]SheetRow, len(students)),
	}
	for i, s := range students {
		row := SheetRow{Student: s, Scores: scores[s.StudentID]}
		if row.Scores == nil {
			row.Scores = map[string]float64{}
		}
		sheet.Rows[i] = row
	}
	return sheet, nil
}

// StudentReport computes the per corte averages and the final grade of a student.
func (svc *Service) StudentReport(ctx context.Context, classID, studentID string) (Report, error) {
	items, err := svc.repo.ListGradeItems(ctx, classID)
	if err != nil {
		return Report{}, errors.Wrap(err, "querying grade items")
	}
	grades, err := svc.repo.ListGrades(ctx, classID, studentID)
	if err != nil {
		return Report{}, errors.Wrap(err, "querying grades")
	}
	return buildReport(classID, studentID, items, scoresOf(grades)[studentID]), nil
}

// ClassReport computes the Report of every enrolled student.
func (svc *Service) ClassReport(ctx context.Context, classID string) (ClassReport, error) {
	items, err := svc.repo.ListGradeItems(ctx, classID)
	if err != nil {
		return ClassReport{}, errors.Wrap(err, "querying grade items")
	}
	students, err := svc.roster.Roster(ctx, classID)
	if err != nil {
		return ClassReport{}, errors.Wrap(err, "querying roster")
	}
	grades, err := svc.repo.ListGrades(ctx, classID)
	if err != nil {
		return ClassReport{}, errors.Wrap(err, "querying grades")
	}

	scores := scoresOf(grades)
	rep := ClassReport{ClassID: classID, Items: items, Rows: make([]ClassReportRow, len(students))}
	for i, s := range students {
		rep.Rows[i] = ClassReportRow{Student: s, Report: buildReport(classID, s.StudentID, items, scores[s.StudentID])}
	}
	return rep, nil
}

// scoresOf indexes scores by student then grade item.
func scoresOf(grades []Grade) map[string]map[string]float64 {
	scores := make(map[string]map[string]float64)
	for _, g := range grades {
		if scores[g.StudentID] == nil {
			scores[g.StudentID] = make(map[string]float64)
		}
		scores[g.StudentID][g.GradeItemID] = g.Score
	}
	return scores
}

func buildReport(classID, studentID string, items []GradeItem, scores map[string]float64) Report {
	rep := Report{ClassID: classID, StudentID: studentID, Cortes: make([]CorteReport, 0, len(grading.Cortes))}

	var records []grading.Record
	for _, corte := range grading.Cortes {
		cr := CorteReport{Corte: corte, Weight: corte.Weight(), Cap: corte.Cap(), Items: []ItemScore{}}
		for _, item := range items {
			if item.Corte != corte {
				continue
			}
			is := ItemScore{Item: item}
			if score, ok := scores[item.ID]; ok {
				score := score
				is.Score = &score
				records = append(records, grading.Record{Corte: corte, Score: score, Percentage: item.Percentage})
			}
			cr.Items = append(cr.Items, is)
		}
		if avg, ok := grading.PeriodAverage(records, corte); ok {
			cr.Average = &avg
		}
		cr.Contribution = grading.Contribution(records, corte)
		rep.Cortes = append(rep.Cortes, cr)
	}
	rep.FinalGrade = grading.FinalGrade(records)
	return rep
}
