package history

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateID returns a new conversation id of the form conv_<unix-ms>_<suffix>.
func GenerateID() string {
	return newID(time.Now())
}

func newID(now time.Time) string {
	return fmt.Sprintf("conv_%d_%s", now.UnixMilli(), randomSuffix())
}

// randomSuffix returns nine random lowercase characters.
func randomSuffix() string {
	id, err := uuid.NewRandom()
	if err != nil {
		s := strconv.FormatInt(time.Now().UnixNano(), 36)
		return s[len(s)-9:]
	}
	return strings.ReplaceAll(id.String(), "-", "")[:9]
}
