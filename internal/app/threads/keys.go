package threads

import (
	"strings"

	"github.com/PabloGalante/farum-chat/internal/domain"
)

const indexKeyPrefix = "thread-index:"

// ThreadKey returns the storage key of a user's thread record, {userId}:{threadId}.
func ThreadKey(userID domain.UserID, threadID domain.ThreadID) (string, error) {
	if err := validateUser(userID); err != nil {
		return "", err
	}
	if strings.TrimSpace(string(threadID)) == "" {
		return "", domain.ErrMissingThreadID
	}
	return string(userID) + ":" + string(threadID), nil
}

// IndexKey returns the storage key of a user's thread index, thread-index:{userId}.
func IndexKey(userID domain.UserID) (string, error) {
	if err := validateUser(userID); err != nil {
		return "", err
	}
	return indexKeyPrefix + string(userID), nil
}

// validateUser rejects ids that would build keys outside the user's namespace.
func validateUser(userID domain.UserID) error {
	if strings.TrimSpace(string(userID)) == "" {
		return domain.ErrMissingUserID
	}
	// "thread-index" would make {userId}:{threadId} equal another user's index key.
	if strings.Contains(string(userID), ":") || string(userID) == strings.TrimSuffix(indexKeyPrefix, ":") {
		return domain.ErrInvalidUserID
	}
	return nil
}
