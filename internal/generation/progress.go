package generation

import "webdash/internal/domain"

// Step is the human-readable phase label derived from coarse progress.
type Step string

const (
	StepCreatingSite         Step = "creating-site"
	StepGeneratingSitemap    Step = "generating-sitemap"
	StepDesigningPages       Step = "designing-pages"
	StepOptimizingForDevices Step = "optimizing-for-devices"
	StepFinalizing           Step = "finalizing"
)

// TotalSteps is fixed at 7: the five mapped bands plus the pre-verification
// and post-completion slots the UI renders around them.
const TotalSteps = 7

// MapProgress maps a coarse 0-100 progress value onto a discrete step.
// Band upper bounds are inclusive, so the mapping is deterministic and
// monotonic non-decreasing in the input.
func MapProgress(progress int) (Step, int) {
	switch {
	case progress <= 20:
		return StepCreatingSite, 0
	case progress <= 40:
		return StepGeneratingSitemap, 1
	case progress <= 60:
		return StepDesigningPages, 2
	case progress <= 80:
		return StepOptimizingForDevices, 3
	default:
		return StepFinalizing, 4
	}
}

// ProgressStatus is the status vocabulary of the derived progress view.
// It mirrors the snapshot statuses except that the server's "failed"
// surfaces as "error", which is the spelling UI consumers key on.
type ProgressStatus string

const (
	ProgressPending    ProgressStatus = "pending"
	ProgressProcessing ProgressStatus = "processing"
	ProgressComplete   ProgressStatus = "complete"
	ProgressError      ProgressStatus = "error"
	ProgressCancelled  ProgressStatus = "cancelled"
)

func progressStatus(status domain.JobStatus) ProgressStatus {
	switch status {
	case domain.JobStatusPending:
		return ProgressPending
	case domain.JobStatusComplete:
		return ProgressComplete
	case domain.JobStatusFailed:
		return ProgressError
	case domain.JobStatusCancelled:
		return ProgressCancelled
	default:
		return ProgressProcessing
	}
}

// Progress is the derived view the supervisor exposes to callers. It is
// recomputed from each observation, never patched in place.
type Progress struct {
	StepIndex   int            `json:"stepIndex"`
	TotalSteps  int            `json:"totalSteps"`
	CurrentStep Step           `json:"currentStep"`
	Progress    int            `json:"progress"`
	Status      ProgressStatus `json:"status"`
}

func progressFor(status domain.JobStatus, progress int) Progress {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	step, idx := MapProgress(progress)
	return Progress{
		StepIndex:   idx,
		TotalSteps:  TotalSteps,
		CurrentStep: step,
		Progress:    progress,
		Status:      progressStatus(status),
	}
}
