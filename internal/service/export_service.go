package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/meemli/meemli-api/internal/models"
	appErrors "github.com/meemli/meemli-api/pkg/errors"
	"github.com/meemli/meemli-api/pkg/export"
)

type sessionDetailer interface {
	Get(ctx context.Context, id string) (*models.SessionDetail, error)
}

// ExportFile is a rendered attendance sheet.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService renders a session's attendance sheet.
type ExportService struct {
	sessions sessionDetailer
}

// NewExportService constructs the export service.
func NewExportService(sessions sessionDetailer) *ExportService {
	return &ExportService{sessions: sessions}
}

// ExportSession renders the session's attendance as csv, pdf or xlsx.
func (s *ExportService) ExportSession(ctx context.Context, sessionID, format string) (*ExportFile, error) {
	exporter, err := export.ForFormat(format)
	if err != nil {
		if errors.Is(err, export.ErrUnsupportedFormat) {
			return nil, appErrors.Validation("format must be one of csv, pdf, xlsx")
		}
		return nil, err
	}
	detail, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	body, err := exporter.Render(AttendanceDataset(detail))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render attendance export")
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("attendance-%s-%s.%s", sectionCode(detail), detail.SessionDate, exporter.Extension()),
		ContentType: exporter.ContentType(),
		Body:        body,
	}, nil
}

// AttendanceDataset lays out one row per attendee.
func AttendanceDataset(detail *models.SessionDetail) export.Dataset {
	headers := []string{"Student", "Email", "Grade", "Status", "Notes"}
	rows := make([]map[string]string, 0, len(detail.Attendees))
	for _, attendee := range detail.Attendees {
		row := map[string]string{"Status": string(attendee.Status)}
		if attendee.Notes != nil {
			row["Notes"] = *attendee.Notes
		}
		if attendee.Student != nil {
			row["Student"] = attendee.Student.DisplayName
			row["Email"] = attendee.Student.MeemliEmail
			row["Grade"] = fmt.Sprintf("%d", attendee.Student.Grade)
		} else {
			row["Student"] = attendee.StudentID
		}
		rows = append(rows, row)
	}
	title := fmt.Sprintf("Attendance %s %s", sectionCode(detail), detail.SessionDate)
	if detail.Section != nil {
		title = fmt.Sprintf("%s (%s-%s)", title, detail.Section.StartTime, detail.Section.EndTime)
	}
	return export.Dataset{Title: title, Headers: headers, Rows: rows}
}

func sectionCode(detail *models.SessionDetail) string {
	if detail.Section == nil || detail.Section.Code == "" {
		return detail.SectionID
	}
	return strings.ReplaceAll(detail.Section.Code, " ", "_")
}
