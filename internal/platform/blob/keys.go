package blob

import (
	"fmt"

	"github.com/google/uuid"
)

// SourceKey addresses raw file bytes: repos/{repoId}/{sha}/{path}.
func SourceKey(repoID uuid.UUID, blobSHA, path string) string {
	return fmt.Sprintf("repos/%s/%s/%s", repoID, blobSHA, path)
}

// ASTKey addresses the parsed node listing for one file version:
// ast/{repoId}/{sha}/{path}.json.
func ASTKey(repoID uuid.UUID, blobSHA, path string) string {
	return fmt.Sprintf("ast/%s/%s/%s.json", repoID, blobSHA, path)
}

// RepoPrefix covers every object belonging to one repository, for cleanup.
func RepoPrefix(repoID uuid.UUID) string {
	return fmt.Sprintf("repos/%s/", repoID)
}
