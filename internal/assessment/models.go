package assessment

import "github.com/talentprofile/talentprofile/internal/psych/irt"

type Domain string

const (
	DomainCognitive  Domain = "cognitive"
	DomainBehavioral Domain = "behavioral"
	DomainInterests  Domain = "interests"
)

type ScaleType string

const (
	ScaleCognitive  ScaleType = "cognitive"
	ScaleTrait      ScaleType = "trait"
	ScaleInterest   ScaleType = "interest"
	ScaleDistortion ScaleType = "distortion"
)

// Scale is one measured dimension of the profile. Immutable after seeding.
type Scale struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Domain      Domain    `json:"domain"`
	Type        ScaleType `json:"type"`
	CompositeOf []string  `json:"composite_of,omitempty"` // sub-scale ids for composites
	SortOrder   int       `json:"sort_order"`
}

type ItemFormat string

const (
	FormatMultipleChoice ItemFormat = "multiple_choice"
	FormatLikert         ItemFormat = "likert"
	FormatForcedChoice   ItemFormat = "forced_choice"
	FormatBinary         ItemFormat = "binary"
)

// Item is an administrable question. Cognitive items carry a correct answer
// and 3PL parameters; interest items are forced-choice pairs whose two options
// belong to ScaleID and PairScaleID respectively; behavioral forced-choice
// blocks carry per-trait loadings applied with the sign of the choice.
type Item struct {
	ID            string             `json:"id"`
	ScaleID       string             `json:"scale_id"`
	Text          string             `json:"text"`
	Format        ItemFormat         `json:"format"`
	Options       []string           `json:"options,omitempty"`
	CorrectAnswer string             `json:"correct_answer,omitempty"` // cognitive only
	IRT           irt.Params         `json:"irt"`
	Domain        Domain             `json:"domain"`
	PairScaleID   string             `json:"pair_scale_id,omitempty"` // interest option B
	Loadings      map[string]float64 `json:"loadings,omitempty"`      // behavioral MFC
	ReverseKeyed  bool               `json:"reverse_keyed,omitempty"`
	Distortion    bool               `json:"distortion,omitempty"`
	Active        bool               `json:"active"`
	Order         int                `json:"order"`
}

// Candidate demographics are opaque to the scoring core.
type Candidate struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

type AssessmentType string

const (
	TypeFull           AssessmentType = "full"
	TypeCognitiveOnly  AssessmentType = "cognitive_only"
	TypeBehavioralOnly AssessmentType = "behavioral_only"
	TypeInterestsOnly  AssessmentType = "interests_only"
)

type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusExpired    Status = "expired"
)

type Assessment struct {
	ID               string         `json:"id"`
	CandidateID      string         `json:"candidate_id"`
	Type             AssessmentType `json:"type"`
	Status           Status         `json:"status"`
	CurrentSection   Domain         `json:"current_section,omitempty"`
	CurrentItemIndex int            `json:"current_item_index"`
	StartedAt        int64          `json:"started_at,omitempty"`
	CompletedAt      int64          `json:"completed_at,omitempty"`
	ExpiresAt        int64          `json:"expires_at"`
	CreatedAt        int64          `json:"created_at"`
}

// Sections returns the section walk for the assessment type, in order.
func (a Assessment) Sections() []Domain {
	switch a.Type {
	case TypeCognitiveOnly:
		return []Domain{DomainCognitive}
	case TypeBehavioralOnly:
		return []Domain{DomainBehavioral}
	case TypeInterestsOnly:
		return []Domain{DomainInterests}
	default:
		return []Domain{DomainCognitive, DomainBehavioral, DomainInterests}
	}
}

type ResponseKind string

const (
	KindLikert         ResponseKind = "likert"
	KindMultipleChoice ResponseKind = "multiple_choice"
	KindForcedChoice   ResponseKind = "forced_choice"
	KindBinary         ResponseKind = "binary"
)

// ResponseValue is the tagged variant of an examinee answer. Exactly one
// payload field is meaningful, selected by Kind.
type ResponseValue struct {
	Kind   ResponseKind `json:"kind"`
	Likert int          `json:"likert,omitempty"` // 1..5
	Choice string       `json:"choice,omitempty"` // multiple-choice answer text
	Option string       `json:"option,omitempty"` // "A" | "B"
	Flag   bool         `json:"flag,omitempty"`   // binary
}

// Matches reports whether the value's kind is administrable for the format.
func (v ResponseValue) Matches(f ItemFormat) bool {
	switch v.Kind {
	case KindLikert:
		return f == FormatLikert && v.Likert >= 1 && v.Likert <= 5
	case KindMultipleChoice:
		return f == FormatMultipleChoice && v.Choice != ""
	case KindForcedChoice:
		return f == FormatForcedChoice && (v.Option == "A" || v.Option == "B")
	case KindBinary:
		return f == FormatBinary
	}
	return false
}

// Response is append-only per assessment; Theta and IsCorrect are only set
// for cognitive items.
type Response struct {
	ID             string        `json:"id"`
	AssessmentID   string        `json:"assessment_id"`
	ItemID         string        `json:"item_id"`
	Value          ResponseValue `json:"value"`
	ResponseTimeMs int           `json:"response_time_ms"`
	IsCorrect      *bool         `json:"is_correct,omitempty"`
	Theta          *float64      `json:"theta,omitempty"`
	CreatedAt      int64         `json:"created_at"`
}

// ScaleScore is one row of the finalized profile.
type ScaleScore struct {
	ID           string   `json:"id"`
	AssessmentID string   `json:"assessment_id"`
	ScaleID      string   `json:"scale_id"`
	Raw          float64  `json:"raw"`
	Sten         int      `json:"sten"`
	Percentile   int      `json:"percentile"`
	Theta        *float64 `json:"theta,omitempty"`
	ItemCount    int      `json:"item_count"`
	ComputedAt   int64    `json:"computed_at"`
}

// ModelScaleRange is the target STEN band and weight for one scale of a
// performance model.
type ModelScaleRange struct {
	ScaleID   string  `json:"scale_id"`
	TargetMin int     `json:"target_min"`
	TargetMax int     `json:"target_max"`
	Weight    float64 `json:"weight"`
}

// PerformanceModel describes the ideal incumbent for a role as per-scale
// STEN bands.
type PerformanceModel struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Category string            `json:"category,omitempty"`
	Template bool              `json:"template"`
	Ranges   []ModelScaleRange `json:"ranges"`
}

// Validate enforces the model invariants: bands inside [1,10], min <= max,
// strictly positive weights.
func (m PerformanceModel) Validate() error {
	for _, r := range m.Ranges {
		if r.ScaleID == "" {
			return errInput("model range missing scale id")
		}
		if r.TargetMin < 1 || r.TargetMax > 10 || r.TargetMin > r.TargetMax {
			return errInput("model range %s: band [%d,%d] invalid", r.ScaleID, r.TargetMin, r.TargetMax)
		}
		if r.Weight <= 0 {
			return errInput("model range %s: weight must be positive", r.ScaleID)
		}
	}
	return nil
}
