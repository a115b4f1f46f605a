package driven

import "context"

// AdmissionProvider decides whether a new document may enter the
// pipeline. Existing documents re-entering (re-ingest, rename) are not
// subject to admission.
type AdmissionProvider interface {
	// Admit returns nil when a new document may be ingested, or
	// domain.ErrAdmissionDenied when the trial limit is reached and no
	// valid licence key is configured.
	Admit(ctx context.Context) error
}
