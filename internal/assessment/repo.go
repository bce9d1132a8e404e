package assessment

import "context"

// ItemFilter narrows ListItems. Zero values mean "any".
type ItemFilter struct {
	Domain     Domain
	ScaleID    string
	ActiveOnly bool
}

// ListOpts pages assessment listings for dashboards.
type ListOpts struct {
	CandidateID string
	Status      Status
	Limit       int
	Offset      int
}

// Store is the persistence boundary of the core. Implementations must keep
// responses append-only and totally ordered within one assessment.
type Store interface {
	PutScale(ctx context.Context, s Scale) error
	ListScales(ctx context.Context) ([]Scale, error)

	PutItem(ctx context.Context, it Item) error
	GetItem(ctx context.Context, id string) (Item, error)
	ListItems(ctx context.Context, f ItemFilter) ([]Item, error)

	PutCandidate(ctx context.Context, c Candidate) error
	GetCandidate(ctx context.Context, id string) (Candidate, error)

	CreateAssessment(ctx context.Context, a Assessment) error
	GetAssessment(ctx context.Context, id string) (Assessment, error)
	UpdateAssessment(ctx context.Context, a Assessment) error
	ListAssessments(ctx context.Context, opts ListOpts) ([]Assessment, error)

	AppendResponse(ctx context.Context, r Response) error
	ListResponses(ctx context.Context, assessmentID string) ([]Response, error)

	PutScaleScores(ctx context.Context, assessmentID string, scores []ScaleScore) error
	ListScaleScores(ctx context.Context, assessmentID string) ([]ScaleScore, error)

	PutModel(ctx context.Context, m PerformanceModel) error
	GetModel(ctx context.Context, id string) (PerformanceModel, error)
	ListModels(ctx context.Context) ([]PerformanceModel, error)
}
