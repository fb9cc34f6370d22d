package quotes

import (
	"iter"
	"sort"
	"time"
)

// NextVersion clones the quote into a fresh draft that supersedes it.
// maxVersion is the highest version number currently in the chain. The clone
// carries no id or doc number yet; the repository assigns both on insert.
// Converted quotes cannot be revised, they go through credit-note flows.
func NextVersion(q Quote, maxVersion int, now time.Time) (Quote, error) {
	if q.Status == StatusConverted {
		return Quote{}, &NotEditableError{QuoteID: q.ID, Status: q.Status}
	}

	root := q.ChainRootID()
	clone := q
	clone.ID = 0
	clone.DocNumber = ""
	clone.Status = StatusDraft
	clone.OriginalQuoteID = &root
	clone.VersionNumber = maxVersion + 1
	clone.IsLatestVersion = true
	clone.ValidationNotes = nil
	clone.ValidatedAt = nil
	clone.AcceptedAt = nil
	clone.RejectedAt = nil
	clone.RejectionReason = nil
	clone.CreatedAt = now
	clone.UpdatedAt = now

	clone.Lines = make([]QuoteLine, len(q.Lines))
	for i, l := range q.Lines {
		l.ID = 0
		l.QuoteID = 0
		l.CreatedAt = now
		l.UpdatedAt = now
		clone.Lines[i] = l
	}
	return clone, nil
}

// VerifyChain checks the version invariants over a full chain: version
// numbers run 1..N with no gaps, exactly one record is flagged latest, and
// that record carries the highest version number.
func VerifyChain(versions []Quote) error {
	if len(versions) == 0 {
		return nil
	}
	root := versions[0].ChainRootID()

	seen := make(map[int]bool, len(versions))
	latestCount := 0
	maxVersion := 0
	var latestVersion int
	for _, v := range versions {
		if v.ChainRootID() != root {
			return &ChainIntegrityError{RootID: root, Detail: "mixed chain roots"}
		}
		if v.VersionNumber < 1 {
			return &ChainIntegrityError{RootID: root, Detail: "version number below 1"}
		}
		if seen[v.VersionNumber] {
			return &ChainIntegrityError{RootID: root, Detail: "duplicate version number"}
		}
		seen[v.VersionNumber] = true
		if v.VersionNumber > maxVersion {
			maxVersion = v.VersionNumber
		}
		if v.IsLatestVersion {
			latestCount++
			latestVersion = v.VersionNumber
		}
	}
	if maxVersion != len(versions) {
		return &ChainIntegrityError{RootID: root, Detail: "version numbers have gaps"}
	}
	if latestCount != 1 {
		return &ChainIntegrityError{RootID: root, Detail: "latest flag count is not one"}
	}
	if latestVersion != maxVersion {
		return &ChainIntegrityError{RootID: root, Detail: "latest flag not on highest version"}
	}
	return nil
}

// Descending yields chain versions newest first without mutating the input.
// The sequence is lazy and restartable; the ordering is a presentation
// contract for version history views.
func Descending(versions []Quote) iter.Seq[Quote] {
	order := make([]int, len(versions))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return versions[order[a]].VersionNumber > versions[order[b]].VersionNumber
	})
	return func(yield func(Quote) bool) {
		for _, idx := range order {
			if !yield(versions[idx]) {
				return
			}
		}
	}
}
