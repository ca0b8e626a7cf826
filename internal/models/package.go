package models

// OfflinePackage is the decoded content of a self-contained handoff
// document: the original file plus the metadata needed to save it again.
// A package has no expiry and no backend dependency.
type OfflinePackage struct {
	FileName  string
	MimeType  string
	SizeBytes int64
	Payload   []byte
}
