// internal/workflow/table.go
package workflow

import (
	"sort"

	"admissions-workflow/internal/models"
)

// StatusSet is an ordered set of statuses.
type StatusSet []models.Status

func (s StatusSet) Has(status models.Status) bool {
	for _, v := range s {
		if v == status {
			return true
		}
	}
	return false
}

func (s StatusSet) Strings() []string {
	out := make([]string, len(s))
	for i, v := range s {
		out[i] = string(v)
	}
	return out
}

type table map[models.Status][]models.Status

// Every status has a row in every table, terminal ones included, so a status
// added to models without a row here fails TestTablesCoverEveryStatus.
var (
	studentTable = table{
		models.StatusStarted:             {models.StatusSubmitted, models.StatusEligibilityComplete, models.StatusRejected},
		models.StatusEligibilityComplete: {models.StatusDocumentsComplete, models.StatusRejected},
		models.StatusDocumentsComplete:   {models.StatusReviewReady, models.StatusRejected},
		models.StatusReviewReady:         {models.StatusSubmitted, models.StatusRejected},
		models.StatusSubmitted:           {models.StatusInReview, models.StatusPending, models.StatusApproved, models.StatusRejected},
		models.StatusPending:             {models.StatusInReview, models.StatusRejected},
		models.StatusInReview:            {models.StatusApproved, models.StatusRejected, models.StatusPending},
		models.StatusApproved:            nil,
		models.StatusRejected:            nil,
	}

	// Partner and employer applications have no eligibility/documents steps.
	reviewTable = table{
		models.StatusStarted:             {models.StatusSubmitted, models.StatusRejected},
		models.StatusEligibilityComplete: nil,
		models.StatusDocumentsComplete:   nil,
		models.StatusReviewReady:         nil,
		models.StatusSubmitted:           {models.StatusInReview, models.StatusPending, models.StatusApproved, models.StatusRejected},
		models.StatusPending:             {models.StatusInReview, models.StatusRejected},
		models.StatusInReview:            {models.StatusApproved, models.StatusRejected, models.StatusPending},
		models.StatusApproved:            nil,
		models.StatusRejected:            nil,
	}

	tables = map[models.RecordType]table{
		models.RecordTypeStudent:  studentTable,
		models.RecordTypePartner:  reviewTable,
		models.RecordTypeEmployer: reviewTable,
	}

	unionTable = buildUnion()
)

func buildUnion() table {
	union := table{}
	for _, t := range tables {
		for from, tos := range t {
			for _, to := range tos {
				if !StatusSet(union[from]).Has(to) {
					union[from] = append(union[from], to)
				}
			}
		}
	}
	for from := range union {
		sortPipeline(union[from])
	}
	return union
}

func sortPipeline(s []models.Status) {
	rank := map[models.Status]int{}
	for i, st := range models.AllStatuses() {
		rank[st] = i
	}
	sort.Slice(s, func(i, j int) bool { return rank[s[i]] < rank[s[j]] })
}

// AllowedNextStates returns the statuses reachable in one step from current
// for any record type. Terminal and unknown statuses yield an empty set.
func AllowedNextStates(current models.Status) StatusSet {
	return unionTable.next(current)
}

// AllowedNextStatesFor returns the legal next statuses for one record type.
func AllowedNextStatesFor(recordType models.RecordType, current models.Status) StatusSet {
	t, ok := tables[recordType]
	if !ok {
		return StatusSet{}
	}
	return t.next(current)
}

func (t table) next(current models.Status) StatusSet {
	tos := t[current]
	out := make(StatusSet, len(tos))
	copy(out, tos)
	return out
}

// StatusDisplay is the admin UI treatment of a status.
type StatusDisplay struct {
	Status models.Status `json:"status"`
	Label  string        `json:"label"`
	Tone   string        `json:"tone"`
}

func Display(s models.Status) StatusDisplay {
	d := StatusDisplay{Status: s}
	switch s {
	case models.StatusStarted:
		d.Label, d.Tone = "Started", "gray"
	case models.StatusPending:
		d.Label, d.Tone = "Pending", "yellow"
	case models.StatusSubmitted:
		d.Label, d.Tone = "Submitted", "blue"
	case models.StatusApproved:
		d.Label, d.Tone = "Approved", "green"
	case models.StatusRejected:
		d.Label, d.Tone = "Rejected", "red"
	case models.StatusInReview:
		d.Label, d.Tone = "In Review", "purple"
	case models.StatusEligibilityComplete:
		d.Label, d.Tone = "Eligibility Complete", "blue"
	case models.StatusDocumentsComplete:
		d.Label, d.Tone = "Documents Complete", "indigo"
	case models.StatusReviewReady:
		d.Label, d.Tone = "Ready for Review", "yellow"
	default:
		d.Label, d.Tone = string(s), "gray"
	}
	return d
}

// TableEntry is one row of the published transition table.
type TableEntry struct {
	StatusDisplay
	Terminal bool                                  `json:"terminal"`
	Next     map[models.RecordType][]models.Status `json:"next"`
}

// Describe returns every status with its display metadata and its outgoing
// edges per record type.
func Describe() []TableEntry {
	var out []TableEntry
	for _, s := range models.AllStatuses() {
		entry := TableEntry{
			StatusDisplay: Display(s),
			Terminal:      s.Terminal(),
			Next:          map[models.RecordType][]models.Status{},
		}
		for _, rt := range models.AllRecordTypes() {
			entry.Next[rt] = AllowedNextStatesFor(rt, s)
		}
		out = append(out, entry)
	}
	return out
}
