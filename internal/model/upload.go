package model

// Upload describes a file the admin sent, after it has been copied into the storage archive.
type Upload struct {
	FileHandle       string
	DisplayName      string
	Kind             string
	ArchiveMessageID int
}
