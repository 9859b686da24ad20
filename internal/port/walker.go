package port

// FileInfo is a document found on disk. Path is absolute; DocID is the key its collection is stored under.
type FileInfo struct {
	Path    string
	DocID   string
	ModTime int64
	Size    int64
}

// FileWalker lists the documents under a file or directory root.
type FileWalker interface {
	Walk(root string) ([]FileInfo, error)
}

// FileReader extracts the plain text of one document.
type FileReader interface {
	ReadFile(path string) (string, error)
}
