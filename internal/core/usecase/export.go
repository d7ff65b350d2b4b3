package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/invoice-webapp/internal/core/ports"
)

type ExportAdminReportUseCase struct {
	reporter ports.AdminReporter
	renderer ports.ReportRenderer
}

func NewExportAdminReportUseCase(reporter ports.AdminReporter, renderer ports.ReportRenderer) *ExportAdminReportUseCase {
	return &ExportAdminReportUseCase{reporter: reporter, renderer: renderer}
}

func (uc *ExportAdminReportUseCase) ExportXLSX(ctx context.Context) ([]byte, error) {
	report, err := uc.reporter.Report(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := uc.renderer.RenderXLSX(report)
	if err != nil {
		return nil, fmt.Errorf("render admin workbook: %w", err)
	}
	return payload, nil
}
