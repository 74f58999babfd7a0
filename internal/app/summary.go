package app

import (
	"fmt"
	"strings"

	"go.trai.ch/monorun/internal/core/domain"
	"go.trai.ch/monorun/internal/engine/executor"
	"go.trai.ch/zerr"
)

var summaryOrder = []domain.OperationStatus{
	domain.StatusSuccess,
	domain.StatusSuccessWithWarning,
	domain.StatusSkipped,
	domain.StatusNoOp,
	domain.StatusFailure,
	domain.StatusBlocked,
}

// summarize logs failed and blocked operations followed by one line of counts.
func (a *App) summarize(report *executor.Report) {
	restored := 0
	for _, name := range report.Order {
		res := report.Results[name]
		if res.Restored {
			restored++
		}

		switch res.Status {
		case domain.StatusFailure:
			err := res.Err
			if err == nil {
				err = domain.ErrOperationFailed
			}
			a.logger.Error(zerr.With(err, "operation", name.String()))
		case domain.StatusBlocked:
			a.logger.Warn(fmt.Sprintf("%s did not run: %v", name, res.Err))
		}
	}

	a.logger.Info(formatCounts(len(report.Order), report.Counts(), restored))
}

// formatCounts renders e.g. "5 operations: 3 Success, 2 Skipped (1 restored)".
func formatCounts(total int, counts map[domain.OperationStatus]int, restored int) string {
	parts := make([]string, 0, len(summaryOrder))
	for _, status := range summaryOrder {
		n := counts[status]
		if n == 0 {
			continue
		}
		part := fmt.Sprintf("%d %s", n, status)
		if status == domain.StatusSkipped && restored > 0 {
			part += fmt.Sprintf(" (%d restored)", restored)
		}
		parts = append(parts, part)
	}

	noun := "operations"
	if total == 1 {
		noun = "operation"
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%d %s", total, noun)
	}
	return fmt.Sprintf("%d %s: %s", total, noun, strings.Join(parts, ", "))
}
