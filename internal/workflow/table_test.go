package workflow

import (
	"testing"

	"admissions-workflow/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestTablesCoverEveryStatus(t *testing.T) {
	for rt, tbl := range tables {
		for _, s := range models.AllStatuses() {
			_, ok := tbl[s]
			assert.True(t, ok, "%s table has no row for %s", rt, s)
		}
		assert.Len(t, tbl, len(models.AllStatuses()), string(rt))
	}
	for _, rt := range models.AllRecordTypes() {
		_, ok := tables[rt]
		assert.True(t, ok, "no table for %s", rt)
	}
}

func TestTerminalStatesHaveNoEdges(t *testing.T) {
	for _, s := range []models.Status{models.StatusApproved, models.StatusRejected} {
		assert.Empty(t, AllowedNextStates(s))
		for _, rt := range models.AllRecordTypes() {
			assert.Empty(t, AllowedNextStatesFor(rt, s))
		}
	}
}

func TestUnknownStatusFailsClosed(t *testing.T) {
	assert.Empty(t, AllowedNextStates(models.Status("draft")))
	assert.Empty(t, AllowedNextStates(models.Status("")))
	assert.Empty(t, AllowedNextStatesFor(models.RecordType("vendor"), models.StatusSubmitted))
}

func TestEveryStatusReachable(t *testing.T) {
	reached := map[models.Status]bool{models.StatusStarted: true, models.StatusSubmitted: true}
	queue := []models.Status{models.StatusStarted, models.StatusSubmitted}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range AllowedNextStates(cur) {
			if !reached[next] {
				reached[next] = true
				queue = append(queue, next)
			}
		}
	}
	for _, s := range models.AllStatuses() {
		assert.True(t, reached[s], "%s unreachable", s)
	}
}

func TestPerTypeEdgesAreUnionEdges(t *testing.T) {
	for _, rt := range models.AllRecordTypes() {
		for _, from := range models.AllStatuses() {
			for _, to := range AllowedNextStatesFor(rt, from) {
				assert.True(t, AllowedNextStates(from).Has(to), "%s: %s -> %s", rt, from, to)
				assert.True(t, to.Valid())
			}
		}
	}
}

func TestNoSelfLoops(t *testing.T) {
	for _, s := range models.AllStatuses() {
		assert.False(t, AllowedNextStates(s).Has(s), string(s))
	}
}

func TestAllowedNextStatesReturnsCopy(t *testing.T) {
	next := AllowedNextStates(models.StatusSubmitted)
	want := append(StatusSet(nil), next...)
	next[0] = models.StatusStarted
	assert.Equal(t, want, AllowedNextStates(models.StatusSubmitted))

	perType := AllowedNextStatesFor(models.RecordTypeStudent, models.StatusInReview)
	perType[0] = models.StatusStarted
	assert.False(t, AllowedNextStatesFor(models.RecordTypeStudent, models.StatusInReview).Has(models.StatusStarted))
}

func TestPartnerSkipsEligibilitySteps(t *testing.T) {
	assert.Equal(t,
		StatusSet{models.StatusSubmitted, models.StatusRejected},
		AllowedNextStatesFor(models.RecordTypePartner, models.StatusStarted))
	assert.True(t, AllowedNextStatesFor(models.RecordTypeStudent, models.StatusStarted).Has(models.StatusEligibilityComplete))
}

func TestDisplay(t *testing.T) {
	for _, s := range models.AllStatuses() {
		d := Display(s)
		assert.NotEqual(t, string(s), d.Label, "%s has no label", s)
		assert.NotEmpty(t, d.Tone)
	}
	assert.Equal(t, "Ready for Review", Display(models.StatusReviewReady).Label)
	assert.Equal(t, "green", Display(models.StatusApproved).Tone)
}

func TestDescribe(t *testing.T) {
	entries := Describe()
	assert.Len(t, entries, len(models.AllStatuses()))
	for _, e := range entries {
		assert.Equal(t, e.Status.Terminal(), e.Terminal)
		assert.Len(t, e.Next, len(models.AllRecordTypes()))
	}
}
