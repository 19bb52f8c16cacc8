// Package exportsvc renders class reports as spreadsheets.
package exportsvc

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/notas/core/class"
	"github.com/trezcool/notas/core/gradebook"
	"github.com/trezcool/notas/core/grading"
)

const (
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	gradesSheet     = "Grades"
)

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// GradebookFileName returns the download name of the class gradebook.
func GradebookFileName(c class.Class) string {
	return strings.ToLower(c.Code) + "-grades.xlsx"
}

// GradebookHeader lists the column titles: student, email, one column per grade item,
// one contribution column per corte and the final grade.
func GradebookHeader(items []gradebook.GradeItem) []interface{} {
	header := []interface{}{"Student", "Email"}
	for _, item := range items {
		header = append(header, fmt.Sprintf("%s (C%d, %g%%)", item.Name, item.Corte, item.Percentage))
	}
	for _, corte := range grading.Cortes {
		header = append(header, fmt.Sprintf("Corte %d (%g%%)", corte, math.Round(corte.Weight()*100)))
	}
	return append(header, "Final")
}

func gradebookRow(items []gradebook.GradeItem, row gradebook.ClassReportRow) []interface{} {
	scores := make(map[string]*float64, len(items))
	for _, cr := range row.Report.Cortes {
		for _, is := range cr.Items {
			scores[is.Item.ID] = is.Score
		}
	}

	values := []interface{}{row.Student.FullName, row.Student.Email}
	for _, item := range items {
		if s := scores[item.ID]; s != nil {
			values = append(values, round2(*s))
		} else {
			values = append(values, nil)
		}
	}
	for _, cr := range row.Report.Cortes {
		values = append(values, round2(cr.Contribution))
	}
	return append(values, round2(row.Report.FinalGrade))
}

// Gradebook renders the class report as an xlsx workbook. Scores are rounded to 2 decimals and
// ungraded items are left blank.
func Gradebook(c class.Class, rep gradebook.ClassReport) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), gradesSheet); err != nil {
		return nil, errors.Wrap(err, "naming sheet")
	}
	if err := f.SetDocProps(&excelize.DocProperties{Title: c.Name, Subject: c.Code}); err != nil {
		return nil, errors.Wrap(err, "setting properties")
	}

	header := GradebookHeader(rep.Items)
	if err := f.SetSheetRow(gradesSheet, "A1", &header); err != nil {
		return nil, errors.Wrap(err, "writing header")
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, errors.Wrap(err, "creating style")
	}
	lastCol, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err = f.SetCellStyle(gradesSheet, "A1", lastCol, bold); err != nil {
		return nil, errors.Wrap(err, "styling header")
	}

	for i, row := range rep.Rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := gradebookRow(rep.Items, row)
		if err = f.SetSheetRow(gradesSheet, cell, &values); err != nil {
			return nil, errors.Wrapf(err, "writing row %d", i+2)
		}
	}
	if err = f.SetColWidth(gradesSheet, "A", "B", 28); err != nil {
		return nil, errors.Wrap(err, "sizing columns")
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "writing workbook")
	}
	return buf.Bytes(), nil
}
