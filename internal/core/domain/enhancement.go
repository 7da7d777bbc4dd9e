package domain

// EnhancementContext carries the document-level facts the content
// enhancer injects into each chunk.
type EnhancementContext struct {
	// RepositoryID is the owning repository.
	RepositoryID string

	// ContentType is the document's content type.
	ContentType ContentType

	// Language is the repository's primary programming language, when known.
	Language string
}
