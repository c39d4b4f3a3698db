package command

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"aoi/internal/modules"
	"aoi/internal/permission"
	"aoi/internal/storage"
)

// UsageError reports bad command input. Its message is shown to the user.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string { return e.Msg }

func Usagef(format string, a ...any) error {
	return &UsageError{Msg: fmt.Sprintf(format, a...)}
}

// MissingPermissionsError is returned when the invoking member lacks every
// one of a command's required permissions.
type MissingPermissionsError struct {
	Permissions []string
}

func (e *MissingPermissionsError) Error() string {
	return fmt.Sprintf("You need at least one of the following permissions to run this command:\n`%s`",
		strings.Join(e.Permissions, "`, `"))
}

// CooldownError is returned while a command is rate limited.
type CooldownError struct {
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("This command is on cooldown. Try again in %.0fs.", e.RetryAfter.Round(time.Second).Seconds())
}

// ErrGuildOnly is returned for guild commands used in direct messages.
var ErrGuildOnly = errors.New("command is only available in servers")

// UserMessage returns the text to show the user for err, and whether err is
// one that should be shown at all. Other errors are internal.
func UserMessage(err error) (string, bool) {
	var (
		usage    *UsageError
		missing  *MissingPermissionsError
		cooldown *CooldownError
		denied   *permission.DeniedError
		notFound *modules.NotFoundError
		ambig    *modules.AmbiguousError
		fault    *permission.RuleParseFault
	)
	switch {
	case errors.As(err, &usage):
		return usage.Error(), true
	case errors.As(err, &missing):
		return missing.Error(), true
	case errors.As(err, &cooldown):
		return cooldown.Error(), true
	case errors.As(err, &denied):
		return denied.Error(), true
	case errors.As(err, &notFound):
		return notFound.Error(), true
	case errors.As(err, &ambig):
		return ambig.Error(), true
	case errors.As(err, &fault):
		return fmt.Sprintf("Invalid rule `%s`: %s", fault.Raw, fault.Reason), true
	case errors.Is(err, ErrGuildOnly):
		return "This command cannot be used in private messages.", true
	case errors.Is(err, storage.ErrRuleIndex):
		return "There is no permission with that index.", true
	}
	return "", false
}
