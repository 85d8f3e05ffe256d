package badger

import (
	"fmt"

	"github.com/poiesic/larder/core"
)

// Key prefixes for different data types
const (
	recipeCollectionKey = "recidx:meta"
	recipePrefix        = "recidx:rec:"
	recipeKeyPrefix     = "recidx:key:"
	jobPrefix           = "job:"
)

// makeRecipeKey generates a key for an indexed recipe by ID.
func makeRecipeKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s%d", recipePrefix, id))
}

// makeRecipeSourceKey generates the secondary index key mapping a recipe's
// source key to its ID.
func makeRecipeSourceKey(key string) []byte {
	buf := make([]byte, 0, len(recipeKeyPrefix)+len(key))
	buf = append(buf, recipeKeyPrefix...)
	return append(buf, key...)
}

// makeJobKey generates a key for a job by ID.
func makeJobKey(jobID string) []byte {
	return []byte(jobPrefix + jobID)
}
