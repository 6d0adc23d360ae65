package model

// ResolvedKind tags what a share code points at.
type ResolvedKind int

const (
	ResolvedNotFound ResolvedKind = iota
	ResolvedSingle
	ResolvedBatch
)

func (k ResolvedKind) String() string {
	switch k {
	case ResolvedSingle:
		return "single"
	case ResolvedBatch:
		return "batch"
	default:
		return "not_found"
	}
}

// Resolved is the result of looking up a share code. Files holds one record
// for ResolvedSingle and the batch members in upload order for ResolvedBatch.
type Resolved struct {
	Kind  ResolvedKind
	Code  string
	Files []FileRecord
}
