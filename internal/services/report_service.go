package services

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"cds-ils/internal/dto"
)

const (
	reportSheetSummary = "Summary"
	reportSheetChanges = "Changes"
	reportSheetSkipped = "Skipped"
	reportTimeFormat   = "2006-01-02 15:04:05"
)

var (
	changeHeaders  = []interface{}{"Kind", "User ID", "Person ID", "Previous name", "New name", "Previous department", "New department", "Previous email", "New email"}
	skippedHeaders = []interface{}{"Reason", "Person ID", "Email", "User ID"}
)

type SyncReportServiceInterface interface {
	Write(path string, result *dto.SyncResultDTO) error
	WriteTo(w io.Writer, result *dto.SyncResultDTO) error
}

type syncReportService struct {
	logger *zap.Logger
}

func NewSyncReportService(logger *zap.Logger) SyncReportServiceInterface {
	return &syncReportService{logger: logger.Named("sync_report")}
}

func (s *syncReportService) Write(path string, result *dto.SyncResultDTO) error {
	f, err := s.build(result)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save sync report %s: %w", path, err)
	}
	s.logger.Info("sync report written", zap.String("path", path), zap.String("run_id", result.RunID))
	return nil
}

func (s *syncReportService) WriteTo(w io.Writer, result *dto.SyncResultDTO) error {
	f, err := s.build(result)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

func (s *syncReportService) build(result *dto.SyncResultDTO) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", reportSheetSummary); err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	summary := [][]interface{}{
		{"Run ID", result.RunID},
		{"Action", result.Action},
		{"Dry run", result.DryRun},
		{"Started at", result.StartedAt.Format(reportTimeFormat)},
		{"Duration (s)", fmt.Sprintf("%.2f", result.Duration.Seconds())},
		{"LDAP users", result.LDAPUsers},
		{"Updated", result.Updated},
		{"Added", result.Added},
		{"Deleted", result.Deleted},
		{"Skipped", len(result.Skipped)},
	}
	for i, row := range summary {
		if err := setRow(f, reportSheetSummary, i+1, row); err != nil {
			return nil, err
		}
	}
	f.SetCellStyle(reportSheetSummary, "A1", fmt.Sprintf("A%d", len(summary)), bold)
	f.SetColWidth(reportSheetSummary, "A", "A", 16)
	f.SetColWidth(reportSheetSummary, "B", "B", 40)

	if _, err := f.NewSheet(reportSheetChanges); err != nil {
		return nil, err
	}
	if err := setRow(f, reportSheetChanges, 1, changeHeaders); err != nil {
		return nil, err
	}
	f.SetCellStyle(reportSheetChanges, "A1", "I1", bold)
	for i, c := range result.Changes {
		row := []interface{}{
			c.Kind, c.UserID, c.PersonID, c.PreviousName, c.NewName,
			c.PreviousDepartment.String, c.NewDepartment, c.PreviousEmail, c.NewEmail,
		}
		if err := setRow(f, reportSheetChanges, i+2, row); err != nil {
			return nil, err
		}
	}
	f.SetColWidth(reportSheetChanges, "D", "I", 25)

	if _, err := f.NewSheet(reportSheetSkipped); err != nil {
		return nil, err
	}
	if err := setRow(f, reportSheetSkipped, 1, skippedHeaders); err != nil {
		return nil, err
	}
	f.SetCellStyle(reportSheetSkipped, "A1", "D1", bold)
	for i, item := range result.Skipped {
		row := []interface{}{item.Reason, item.PersonID, item.Email, item.UserID}
		if err := setRow(f, reportSheetSkipped, i+2, row); err != nil {
			return nil, err
		}
	}
	f.SetColWidth(reportSheetSkipped, "A", "A", 50)
	f.SetColWidth(reportSheetSkipped, "C", "C", 30)

	return f, nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}
