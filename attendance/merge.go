/*
merge.go - Reconciliation merge of a batch response into the ledger

PURPOSE:
  Folds the gateway's canonical response back into local state: baseline
  becomes the server-confirmed value and client-side "no row yet" entries
  are bound to their server-assigned identifiers.

THE DON'T-CLOBBER RULE:
  Edits can land while a batch is in flight. A naive merge would overwrite
  them with the (already stale) server response and silently lose them.
  Instead, current is only aligned to the server value when it still equals
  what was sent; otherwise the newer edit is left alone and stays dirty for
  the next save cycle. Baseline and the row id are always updated - they
  describe the store, not the user's intent.

INPUTS:
  The sent snapshot comes from the ChangeSet that produced the batch
  (diff.go). Subjects absent from the response are never touched: an
  unrelated save must not clear another subject's dirty state.
*/
package attendance

// ApplyResponse merges a successful batch response into the ledger.
//
// sent is the per-subject current value captured when the batch was built.
// Responses from failed saves must not be merged; callers check Success
// before calling.
func (l *Ledger) ApplyResponse(resp BatchResponse, sent map[Subject]AttendanceStatus) {
	for _, rec := range resp.Records {
		e := l.entry(rec.Subject)
		e.AttendanceID = rec.ID
		e.Baseline = rec.Status
		if sentStatus, ok := sent[rec.Subject]; ok && e.Current == sentStatus {
			e.Current = rec.Status
		}
	}

	for _, id := range resp.DeletedIDs {
		for _, e := range l.entries {
			if e.AttendanceID != id {
				continue
			}
			e.Baseline = StatusUnset
			e.AttendanceID = ""
			if sentStatus, ok := sent[e.Subject]; ok && e.Current == sentStatus {
				e.Current = StatusUnset
			}
			break
		}
	}
}
