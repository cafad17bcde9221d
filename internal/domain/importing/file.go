package importing

type FileInfo struct {
	OriginalName string
	StoredPath   string
	StoredName   string
	Size         int64
	MimeType     string
}
