package signals

// #region points
const (
	PointsIdentifierPresent      = 10
	PointsIdentifierCorroborated = 30
	PointsMeetingConfirms        = 20
	PointsEmployerPublic         = 20
	PointsTitlePublic            = 10
	PointsLocationPublic         = 10
	PointsIndependentAgreement   = 20

	// MaxScore caps the entity lock score.
	MaxScore = 100
	// LockedThreshold is the score at which a subject is labelled locked.
	// It is a display label and does not drive the dossier mode.
	LockedThreshold = 70
	// PartialThreshold is the lower bound of the partial-lock label.
	PartialThreshold = 50
)

// #endregion points

// #region types
// SignalType names one contributor to the entity lock score.
type SignalType string

const (
	SignalIdentifierPresent      SignalType = "identifier_present"
	SignalIdentifierCorroborated SignalType = "identifier_corroborated"
	SignalMeetingConfirms        SignalType = "meeting_confirms_identity"
	SignalEmployerPublic         SignalType = "employer_public"
	SignalTitlePublic            SignalType = "title_public"
	SignalLocationPublic         SignalType = "location_public"
	SignalIndependentAgreement   SignalType = "independent_agreement"
)

// Signal is one awarded contributor with the nodes that earned it.
type Signal struct {
	Type        SignalType `json:"type"`
	Points      int        `json:"points"`
	Description string     `json:"description"`
	NodeIDs     []string   `json:"node_ids,omitempty"`
}

// Subject is what the graph is expected to confirm about the person.
// Empty fields simply cannot earn their signal.
type Subject struct {
	Name          string
	Aliases       []string
	Emails        []string
	Company       string
	Title         string
	Location      string
	IdentifierURL string
}

// EntityLock is the scorer output.
type EntityLock struct {
	Score   int      `json:"score"`
	Signals []Signal `json:"signals"`
	Locked  bool     `json:"locked"`
}

// Label returns LOCKED, PARTIAL or NOT LOCKED for display.
func (l EntityLock) Label() string {
	switch {
	case l.Score >= LockedThreshold:
		return "LOCKED"
	case l.Score >= PartialThreshold:
		return "PARTIAL"
	}
	return "NOT LOCKED"
}

// #endregion types
