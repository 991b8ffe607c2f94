package handlers

import (
	"github.com/mlearn/apiserver/types"
	"github.com/xuri/excelize/v2"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	rosterSheet     = "Students"
)

func rosterWorkbook(students []types.RosterEntry) (*excelize.File, error) {
	book := excelize.NewFile()
	if err := book.SetSheetName("Sheet1", rosterSheet); err != nil {
		_ = book.Close()
		return nil, err
	}

	header := []any{"ID", "Name", "Email", "Enrolled at"}
	if err := book.SetSheetRow(rosterSheet, "A1", &header); err != nil {
		_ = book.Close()
		return nil, err
	}

	for i, student := range students {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			_ = book.Close()
			return nil, err
		}
		row := []any{student.ID, student.Name, student.Email, student.EnrolledAt.UTC().Format("2006-01-02 15:04:05")}
		if err := book.SetSheetRow(rosterSheet, cell, &row); err != nil {
			_ = book.Close()
			return nil, err
		}
	}

	if err := book.SetColWidth(rosterSheet, "B", "C", 30); err != nil {
		_ = book.Close()
		return nil, err
	}
	return book, nil
}
