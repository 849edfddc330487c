package view

import "github.com/desertthunder/pureplaylist/internal/models"

// IDsNeedingEnrichment returns catalog ids of rows[start..stop] (inclusive, clamped) that known does not report.
//
// known should be true for ids already resolved or in flight. Local files have no id and are skipped.
func IDsNeedingEnrichment(rows []models.AnnotatedTrack, start, stop int, known func(id string) bool) []string {
	if len(rows) == 0 {
		return nil
	}
	start = max(start, 0)
	stop = min(stop, len(rows)-1)
	if start > stop {
		return nil
	}

	seen := make(map[string]struct{})
	var ids []string
	for _, r := range rows[start : stop+1] {
		if r.ID == "" || r.IsLocal {
			continue
		}
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		if known != nil && known(r.ID) {
			continue
		}
		ids = append(ids, r.ID)
	}
	return ids
}
